package hashutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHashSortedIgnoresOrder(t *testing.T) {
	assert.Equal(t, HashSorted("b", "a", "c"), HashSorted("c", "b", "a"))
	assert.NotEqual(t, HashStrings("a", "b"), HashStrings("b", "a"))
	assert.NotEqual(t, HashStrings("ab"), HashStrings("a", "b"))
	assert.Len(t, HashStrings("x"), 64)
}

func TestShort(t *testing.T) {
	assert.Equal(t, "abcd", Short("abcdef", 4))
	assert.Equal(t, "ab", Short("ab", 4))
	assert.Equal(t, "abc", Short("abc", 0))
}
