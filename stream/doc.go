// Package stream implements the per-partition transactional export tuple
// stream: a chain of fixed-capacity StreamBlocks addressed by a
// monotonically advancing Universal Stream Offset (USO), with interleaved
// transaction-boundary tracking, generation-change fencing, and precise
// rollback to arbitrary stream positions.
package stream

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	appendedBytesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "exportstream_appended_bytes_total",
		Help: "Cumulative number of row bytes appended across all tuple streams.",
	})
	rolledBackBytesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "exportstream_rolled_back_bytes_total",
		Help: "Cumulative number of bytes discarded by rollbackTo across all tuple streams.",
	})
	blocksPushedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "exportstream_blocks_pushed_total",
		Help: "Cumulative number of blocks handed off to a TopEndSink.",
	}, []string{"end_of_stream"})
	generationChangesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "exportstream_generation_changes_total",
		Help: "Cumulative number of generation (schema epoch) changes observed by tuple streams.",
	})
)
