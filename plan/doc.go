// Package plan implements the ad-hoc plan cache and planner facade: a
// two-level cache mapping raw SQL text and parameter-normalized "parsed
// tokens" to precompiled execution plans, orchestrated by a facade that
// serializes planning calls against a non-reentrant external optimizer.
package plan

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	cacheUseTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "planner_cache_use_total",
		Help: "Cumulative planning calls by cache outcome (hit, miss, fail).",
	}, []string{"outcome"})
	largeModeSampledTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "planner_large_mode_sampled_total",
		Help: "Cumulative ad-hoc plans forced into large-query mode by LARGE_MODE_RATIO sampling.",
	})
	largeModeFallbackTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "planner_large_mode_fallback_total",
		Help: "Cumulative plans whose compiled large-query-ness disagreed with the requested mode.",
	})
)
