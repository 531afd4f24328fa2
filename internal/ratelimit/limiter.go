// Package ratelimit provides the shared outbound throttle. One Limiter value
// is constructed by the hosting process and handed to every dispatcher that
// must respect the same provider-level throughput ceiling; concurrent
// dispatch calls throttle each other through it rather than each hitting the
// configured rate independently.
package ratelimit

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/time/rate"
)

// DefaultPerSecond is substituted for non-positive configured rates.
const DefaultPerSecond = 1.0

type Limiter struct {
	lim *rate.Limiter
}

// New builds a limiter enforcing a minimum inter-send interval of
// 1/perSecond. Burst is fixed at 1 so two permits can never be granted
// closer together than the interval.
func New(perSecond float64) *Limiter {
	if perSecond <= 0 {
		slog.Warn("non-positive send rate configured, using safe minimum",
			"configured", perSecond, "using", DefaultPerSecond)
		perSecond = DefaultPerSecond
	}
	return &Limiter{lim: rate.NewLimiter(rate.Limit(perSecond), 1)}
}

// Wait blocks the caller until the next send is permitted or ctx is done.
func (l *Limiter) Wait(ctx context.Context) error {
	return l.lim.Wait(ctx)
}

// Interval is the enforced minimum spacing between sends.
func (l *Limiter) Interval() time.Duration {
	return time.Duration(float64(time.Second) / float64(l.lim.Limit()))
}
