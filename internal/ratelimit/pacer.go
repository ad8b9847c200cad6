// Package ratelimit paces outbound Discord REST traffic. The library client
// already honors per-route rate limit headers; the pacer sits in front of it
// and smooths out the burst a full startup snapshot would otherwise fire.
package ratelimit

import (
	"context"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// Default pacing for snapshot traffic. Discord's global limit is 50
// requests per second per bot; staying under half leaves room for
// interaction responses while a snapshot is running.
const (
	DefaultRequestsPerSecond = 20
	DefaultBurst             = 5
)

// Pacer gates REST calls behind a token bucket.
type Pacer struct {
	limiter *rate.Limiter
	log     *zap.Logger
}

// NewPacer creates a pacer allowing requestsPerSecond sustained with the
// given burst. Non-positive values fall back to the defaults.
func NewPacer(requestsPerSecond float64, burst int, log *zap.Logger) *Pacer {
	if requestsPerSecond <= 0 {
		requestsPerSecond = DefaultRequestsPerSecond
	}
	if burst <= 0 {
		burst = DefaultBurst
	}
	return &Pacer{
		limiter: rate.NewLimiter(rate.Limit(requestsPerSecond), burst),
		log:     log,
	}
}

// Wait blocks until the next request may go out or the context is done.
func (p *Pacer) Wait(ctx context.Context) error {
	if err := p.limiter.Wait(ctx); err != nil {
		p.log.Debug("pacer wait aborted", zap.Error(err))
		return err
	}
	return nil
}
