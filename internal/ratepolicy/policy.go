// Package ratepolicy implements the two delay schedules of the crawl loop:
// pacing between successful pages and exponential backoff after failures.
package ratepolicy

import (
	"context"
	"crypto/rand"
	"math/big"
	"time"
)

const (
	// paceFloor and paceCeil bound the per-page random jitter.
	paceFloor = 500 * time.Millisecond
	paceCeil  = 1500 * time.Millisecond
	// Milestone pauses mimic a human taking a break. The long pause wins
	// when both milestones coincide.
	longPause      = 55 * time.Second
	shortPause     = 40 * time.Second
	milestoneSlack = 10 * time.Second

	backoffJitterMax = time.Second
)

// Policy produces interruptible pacing and backoff waits. Safe for use by
// concurrent engines; it holds no mutable state.
type Policy struct {
	base           time.Duration
	backoffCap     time.Duration
	milestoneEvery int
}

// New builds a Policy. Zero arguments fall back to a 1s base, a 60s backoff
// ceiling, and a milestone every 50 pages.
func New(base, backoffCap time.Duration, milestoneEvery int) *Policy {
	if base <= 0 {
		base = time.Second
	}
	if backoffCap <= 0 {
		backoffCap = 60 * time.Second
	}
	if milestoneEvery <= 0 {
		milestoneEvery = 50
	}
	return &Policy{base: base, backoffCap: backoffCap, milestoneEvery: milestoneEvery}
}

// PaceWait sleeps the happy-path cadence after the given page completed.
// The delay grows slowly with page depth and escalates sharply at every
// milestone page, longer still at every second milestone, to avoid a
// bulk-request signature.
func (p *Policy) PaceWait(ctx context.Context, page int) error {
	return wait(ctx, p.paceDelay(page))
}

func (p *Policy) paceDelay(page int) time.Duration {
	switch {
	case page > 0 && page%(2*p.milestoneEvery) == 0:
		return longPause + randDuration(milestoneSlack)
	case page > 0 && page%p.milestoneEvery == 0:
		return shortPause + randDuration(milestoneSlack)
	}
	depth := time.Duration(page/10) * 100 * time.Millisecond
	return p.base + depth + paceFloor + randDuration(paceCeil-paceFloor)
}

// BackoffWait sleeps the recovery cadence for the given 1-based retry:
// min(2^retry, cap) seconds plus up to one second of jitter.
func (p *Policy) BackoffWait(ctx context.Context, retry int) error {
	return wait(ctx, p.backoffDelay(retry))
}

func (p *Policy) backoffDelay(retry int) time.Duration {
	if retry < 1 {
		retry = 1
	}
	d := p.backoffCap
	// Shift overflows past 62; any retry that deep is capped anyway.
	if retry < 62 {
		exp := time.Duration(1<<uint(retry)) * time.Second
		if exp < d {
			d = exp
		}
	}
	return d + randDuration(backoffJitterMax)
}

// wait blocks for d or until the context is cancelled, whichever comes
// first.
func wait(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// randDuration returns a uniform duration in [0, limit).
func randDuration(limit time.Duration) time.Duration {
	if limit <= 0 {
		return 0
	}
	n, err := rand.Int(rand.Reader, big.NewInt(int64(limit)))
	if err != nil {
		return limit / 2
	}
	return time.Duration(n.Int64())
}
