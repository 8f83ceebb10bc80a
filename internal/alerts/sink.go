package alerts

import (
	"context"
	"fmt"

	"github.com/hetulpatel/crossarb/internal/logging"
)

// Sink delivers a formatted message to a channel.
type Sink interface {
	Name() string
	Send(ctx context.Context, channelID, message string) error
}

// DeliveryError records one failed recipient.
type DeliveryError struct {
	Sink    string
	Channel string
	Err     error
}

func (e *DeliveryError) Error() string {
	return fmt.Sprintf("deliver via %s to %q: %v", e.Sink, e.Channel, e.Err)
}

func (e *DeliveryError) Unwrap() error { return e.Err }

// Report summarises one broadcast.
type Report struct {
	Sent     int
	Failures []*DeliveryError
}

// Broadcast sends message to every channel on every sink. A failing recipient
// is recorded and skipped; the rest still receive the message.
func Broadcast(ctx context.Context, sinks []Sink, channels []string, message string) Report {
	var rep Report
	if len(channels) == 0 {
		channels = []string{""}
	}
	for _, s := range sinks {
		for _, ch := range channels {
			if err := safeSend(ctx, s, ch, message); err != nil {
				derr := &DeliveryError{Sink: s.Name(), Channel: ch, Err: err}
				logging.Warnf("[alerts] %v", derr)
				rep.Failures = append(rep.Failures, derr)
				continue
			}
			rep.Sent++
		}
	}
	return rep
}

func safeSend(ctx context.Context, s Sink, channel, message string) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("sink panic: %v", r)
		}
	}()
	return s.Send(ctx, channel, message)
}

// LogSink writes alerts to the application log.
type LogSink struct{}

func (LogSink) Name() string { return "log" }

func (LogSink) Send(_ context.Context, channelID, message string) error {
	if channelID == "" {
		logging.Infof("[alert] %s", message)
		return nil
	}
	logging.Infof("[alert] channel=%s %s", channelID, message)
	return nil
}
