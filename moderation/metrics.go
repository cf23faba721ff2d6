package moderation

import (
	"context"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var metricCandidates = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "bulkmod_candidates_total",
	Help: "Candidates processed by bulk operations, by outcome",
}, []string{"op", "outcome"})

var metricConfirmations = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "bulkmod_confirmations_total",
	Help: "Confirmation prompts and how they were resolved",
}, []string{"state"})

var metricRatelimitWaits = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "bulkmod_ratelimit_waits_total",
	Help: "Rate limiter acquisitions by route kind",
}, []string{"route_kind"})

// countingLimiter counts the acquisitions per route kind, the part before the colon
type countingLimiter struct {
	inner RateLimiter
}

func (c countingLimiter) Acquire(ctx context.Context, route string) error {
	kind := route
	if idx := strings.IndexByte(route, ':'); idx != -1 {
		kind = route[:idx]
	}

	metricRatelimitWaits.WithLabelValues(kind).Inc()
	return c.inner.Acquire(ctx, route)
}
