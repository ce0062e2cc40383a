package store

import (
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
)

// IDGenerator names run records.
type IDGenerator interface {
	Generate() string
}

// UUIDv7Generator names runs with UUIDv7s, so ids sort by creation time.
type UUIDv7Generator struct{}

func (UUIDv7Generator) Generate() string {
	return uuid.Must(uuid.NewV7()).String()
}

// FixedGenerator replays a fixed list of ids. It panics once the list is
// used up, which flags a test recording more runs than it declared.
type FixedGenerator struct {
	mu   sync.Mutex
	ids  []string
	next int
}

func NewFixedGenerator(ids ...string) *FixedGenerator {
	return &FixedGenerator{ids: ids}
}

func (g *FixedGenerator) Generate() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.next == len(g.ids) {
		panic("store: FixedGenerator has no ids left")
	}
	g.next++
	return g.ids[g.next-1]
}

// Sequencer stamps run records with their position in the history.
type Sequencer interface {
	Next() int64
}

// Clock is the default Sequencer: a counter resumed from the highest seq
// already stored.
type Clock struct {
	seq atomic.Int64
}

// NewClockAt returns a Clock whose first Next is start+1.
func NewClockAt(start int64) *Clock {
	c := new(Clock)
	c.seq.Store(start)
	return c
}

func (c *Clock) Next() int64    { return c.seq.Add(1) }
func (c *Clock) Current() int64 { return c.seq.Load() }
