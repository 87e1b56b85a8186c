package ordernum

import (
	"fmt"
	"math/rand/v2"
	"time"
)

const (
	Prefix = "ORD-"
	// timeModulus keeps the last eight digits of the unix millisecond clock,
	// roughly a 27 hour window before the time part repeats.
	timeModulus = 100_000_000
	suffixRange = 1000
)

// Generator builds human readable order numbers: a truncated millisecond
// timestamp followed by a three digit random suffix. It holds no state
// between calls; uniqueness is enforced by the orders collection and
// callers retry on collision.
type Generator struct {
	now  func() time.Time
	intn func(n int) int
}

func NewGenerator() *Generator {
	return &Generator{now: time.Now, intn: rand.IntN}
}

// NewGeneratorWith uses the given clock and random source.
func NewGeneratorWith(now func() time.Time, intn func(n int) int) *Generator {
	return &Generator{now: now, intn: intn}
}

func (g *Generator) Next() string {
	ms := g.now().UnixMilli() % timeModulus
	return fmt.Sprintf("%s%08d%03d", Prefix, ms, g.intn(suffixRange))
}
