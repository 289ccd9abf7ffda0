package walker

import (
	"context"
	"math/rand/v2"
	"time"
)

// Pauser abstracts how the walker waits between listing pages.
type Pauser interface {
	Pause(ctx context.Context, delay time.Duration)
}

type timerPauser struct{}

func (timerPauser) Pause(ctx context.Context, delay time.Duration) {
	if delay <= 0 {
		return
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}

// JitterFunc picks a delay in [lo, hi].
type JitterFunc func(lo, hi time.Duration) time.Duration

// uniformJitter draws uniformly from [lo, hi].
func uniformJitter(lo, hi time.Duration) time.Duration {
	if hi <= lo {
		return lo
	}
	return lo + rand.N(hi-lo+1)
}
