package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/hetulpatel/crossarb/internal/matches"
)

const (
	EventAlert       = "alert"
	EventOpportunity = "opportunity"
)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Event is the envelope written for every message.
type Event struct {
	Type        string               `json:"type"`
	Channel     string               `json:"channel,omitempty"`
	Message     string               `json:"message,omitempty"`
	Opportunity *matches.Opportunity `json:"opportunity,omitempty"`
	At          time.Time            `json:"at"`
}

// Publisher is an alert sink that also streams scan results. Messages are
// keyed by pair so a pair's events stay ordered on one partition.
type Publisher struct {
	w   messageWriter
	now func() time.Time
}

func NewPublisher(brokers []string, topic string) *Publisher {
	if topic == "" {
		topic = DefaultTopic
	}
	return &Publisher{w: NewWriter(Brokers(brokers), topic), now: time.Now}
}

func (p *Publisher) Name() string { return "kafka" }

// Send implements alerts.Sink.
func (p *Publisher) Send(ctx context.Context, channelID, message string) error {
	ev := Event{Type: EventAlert, Channel: channelID, Message: message, At: p.now().UTC()}
	return p.write(ctx, channelID, ev)
}

// PublishOpportunities writes one event per opportunity in a single batch.
func (p *Publisher) PublishOpportunities(ctx context.Context, opps []matches.Opportunity) error {
	if len(opps) == 0 {
		return nil
	}
	msgs := make([]kafka.Message, 0, len(opps))
	at := p.now().UTC()
	for i := range opps {
		opp := opps[i]
		payload, err := json.Marshal(Event{Type: EventOpportunity, Opportunity: &opp, At: at})
		if err != nil {
			return fmt.Errorf("marshal opportunity %s: %w", opp.ID, err)
		}
		msgs = append(msgs, kafka.Message{Key: []byte(opp.PairID), Value: payload, Time: at})
	}
	if err := p.w.WriteMessages(ctx, msgs...); err != nil {
		return fmt.Errorf("publish opportunities: %w", err)
	}
	return nil
}

func (p *Publisher) write(ctx context.Context, key string, ev Event) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	if err := p.w.WriteMessages(ctx, kafka.Message{Key: []byte(key), Value: payload, Time: ev.At}); err != nil {
		return fmt.Errorf("publish %s: %w", ev.Type, err)
	}
	return nil
}

func (p *Publisher) Close() error {
	if p == nil || p.w == nil {
		return nil
	}
	return p.w.Close()
}
