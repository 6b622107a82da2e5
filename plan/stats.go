package plan

import (
	"sync"
	"time"
)

// CacheOutcome records the outcome a single plan() call had with respect to
// the plan cache.
type CacheOutcome int

const (
	// CacheFail means no cache outcome was determined: the call ended
	// before the literal-cache probe, or forced partitioning or large mode
	// kept the cache out of the call. A call that fails after a
	// literal-cache miss records CacheMiss.
	CacheFail CacheOutcome = iota
	CacheHit
	CacheMiss
)

func (u CacheOutcome) String() string {
	switch u {
	case CacheHit:
		return "hit"
	case CacheMiss:
		return "miss"
	default:
		return "fail"
	}
}

// StatsSnapshot is a point-in-time read of accumulated planner statistics.
type StatsSnapshot struct {
	Invocations int64
	Hits        int64
	Misses      int64
	Fails       int64
	LiteralSize int
	CoreSize    int
}

// StatsCollector brackets one planning call with Start/End, recording its
// cache-use outcome. NewPlannerFacade uses a lazy process-wide singleton
// (see SharedStatsCollector); NewPlannerFacadeWithStats accepts an
// injected StatsCollector so tests can read isolated counters.
type StatsCollector interface {
	Start() time.Time
	End(literalSize, coreSize int, use CacheOutcome, startedAt time.Time)
	Snapshot() StatsSnapshot
}

// statsCollector is the process-wide planner statistics sink. One instance
// is created lazily the first time a PlannerFacade is constructed and
// lives until process exit; every subsequent facade shares it.
type statsCollector struct {
	mu sync.Mutex

	invocations  int64
	hits         int64
	misses       int64
	fails        int64
	literalSize  int
	coreSize     int
	lastDuration time.Duration
}

func (s *statsCollector) Start() time.Time {
	return time.Now()
}

func (s *statsCollector) End(literalSize, coreSize int, use CacheOutcome, startedAt time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.invocations++
	s.literalSize = literalSize
	s.coreSize = coreSize
	if !startedAt.IsZero() {
		s.lastDuration = time.Since(startedAt)
	}
	switch use {
	case CacheHit:
		s.hits++
	case CacheMiss:
		s.misses++
	default:
		s.fails++
	}
	cacheUseTotal.WithLabelValues(use.String()).Inc()
}

func (s *statsCollector) Snapshot() StatsSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return StatsSnapshot{
		Invocations: s.invocations,
		Hits:        s.hits,
		Misses:      s.misses,
		Fails:       s.fails,
		LiteralSize: s.literalSize,
		CoreSize:    s.coreSize,
	}
}

var (
	plannerStatsOnce sync.Once
	plannerStats     *statsCollector
)

// SharedStatsCollector returns the process-wide planner stats singleton,
// creating it under a one-shot guarded region on first use.
func SharedStatsCollector() StatsCollector {
	plannerStatsOnce.Do(func() {
		plannerStats = &statsCollector{}
	})
	return plannerStats
}
