package gate

import (
	"context"
	"sync/atomic"

	"golang.org/x/sync/semaphore"
)

// DefaultCapacity is the number of outbound fetches allowed at once
// across every batch in the process.
const DefaultCapacity = 8

// Gate bounds how many fetches may hold a network slot at the same time.
// A single Gate is created at startup and shared by all coordinators.
type Gate struct {
	sem      *semaphore.Weighted
	capacity int64
	inFlight atomic.Int64
	peak     atomic.Int64
}

// Permit is one unit of gate capacity held by a single worker.
type Permit struct {
	g        *Gate
	released atomic.Bool
}

func New(capacity int) *Gate {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Gate{
		sem:      semaphore.NewWeighted(int64(capacity)),
		capacity: int64(capacity),
	}
}

// Acquire blocks until a slot is free. It only fails when ctx is done.
func (g *Gate) Acquire(ctx context.Context) (*Permit, error) {
	if err := g.sem.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	n := g.inFlight.Add(1)
	for {
		p := g.peak.Load()
		if n <= p || g.peak.CompareAndSwap(p, n) {
			break
		}
	}
	return &Permit{g: g}, nil
}

// Release returns the slot. Only the first call has an effect.
func (p *Permit) Release() {
	if p == nil || !p.released.CompareAndSwap(false, true) {
		return
	}
	p.g.inFlight.Add(-1)
	p.g.sem.Release(1)
}

func (g *Gate) Capacity() int { return int(g.capacity) }

// InFlight reports how many permits are currently held.
func (g *Gate) InFlight() int { return int(g.inFlight.Load()) }

// Peak reports the highest InFlight value observed since creation.
func (g *Gate) Peak() int { return int(g.peak.Load()) }
