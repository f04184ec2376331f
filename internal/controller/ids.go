package controller

import (
	"fmt"
	"math/rand/v2"
	"sync"
	"sync/atomic"
)

// IDGenerator hands out object ids that are unique within a session.
type IDGenerator interface {
	NextID() int32
}

// maxRandomID keeps random ids within 24 bits.
const maxRandomID = 1 << 24

// RandomIDs returns random positive 24-bit ids and never repeats one. It
// can hand out 2^24-1 ids; NextID panics once they are all in use.
type RandomIDs struct {
	mu    sync.Mutex
	seen  map[int32]struct{}
	rnd   *rand.Rand
	limit int32
}

// NewRandomIDs returns a generator seeded from the runtime's entropy.
func NewRandomIDs() *RandomIDs {
	return &RandomIDs{
		seen:  make(map[int32]struct{}),
		rnd:   rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64())),
		limit: maxRandomID - 1,
	}
}

// NextID implements IDGenerator.
func (g *RandomIDs) NextID() int32 {
	g.mu.Lock()
	defer g.mu.Unlock()
	if len(g.seen) >= int(g.limit) {
		panic(fmt.Sprintf("controller: all %d random object ids are in use", g.limit))
	}
	for {
		id := g.rnd.Int32N(g.limit) + 1
		if _, dup := g.seen[id]; !dup {
			g.seen[id] = struct{}{}
			return id
		}
	}
}

// SequentialIDs counts up from 1.
type SequentialIDs struct {
	last atomic.Int32
}

// NextID implements IDGenerator.
func (g *SequentialIDs) NextID() int32 { return g.last.Add(1) }
