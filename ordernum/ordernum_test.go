package ordernum

import (
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

var format = regexp.MustCompile(`^ORD-\d{11}$`)

func TestNext_Format(t *testing.T) {
	g := NewGenerator()
	for i := 0; i < 100; i++ {
		assert.Regexp(t, format, g.Next())
	}
}

func TestNext_Deterministic(t *testing.T) {
	at := time.UnixMilli(1_760_000_123_456)
	g := NewGeneratorWith(func() time.Time { return at }, func(int) int { return 7 })

	assert.Equal(t, "ORD-00123456007", g.Next())
	assert.Equal(t, g.Next(), g.Next(), "same clock and suffix must give the same number")
}

func TestNext_SuffixVariesWithinSameMillisecond(t *testing.T) {
	at := time.UnixMilli(1_760_000_000_001)
	n := 0
	g := NewGeneratorWith(func() time.Time { return at }, func(int) int { n++; return n })

	assert.NotEqual(t, g.Next(), g.Next())
}
