package query

import (
	"context"
	"math/rand/v2"
	"sync"
	"time"
)

// Policy models the latency and unreliability of a remote API in front of
// local storage.
type Policy interface {
	// Delay blocks for the simulated latency or until ctx is done.
	Delay(ctx context.Context) error
	// Fail reports whether the current call should fail transiently.
	Fail() bool
}

const (
	DefaultLatency     = 500 * time.Millisecond
	DefaultFailureRate = 0.05
)

// Simulated sleeps a fixed latency and fails with probability FailureRate.
type Simulated struct {
	Latency     time.Duration
	FailureRate float64

	mu  sync.Mutex
	rng *rand.Rand
}

// NewSimulated returns a Simulated policy. A nil rng draws from the global
// source.
func NewSimulated(latency time.Duration, failureRate float64, rng *rand.Rand) *Simulated {
	return &Simulated{Latency: latency, FailureRate: failureRate, rng: rng}
}

func (p *Simulated) Delay(ctx context.Context) error {
	if p.Latency <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(p.Latency)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func (p *Simulated) Fail() bool {
	if p.FailureRate <= 0 {
		return false
	}
	var f float64
	if p.rng == nil {
		f = rand.Float64()
	} else {
		p.mu.Lock()
		f = p.rng.Float64()
		p.mu.Unlock()
	}
	return f < p.FailureRate
}

// Instant never waits and never fails.
type Instant struct{}

func (Instant) Delay(ctx context.Context) error { return ctx.Err() }
func (Instant) Fail() bool                      { return false }
