package plan

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestStatsCollectorAccumulates(t *testing.T) {
	var s = &statsCollector{}

	var started = s.Start()
	s.End(3, 5, CacheMiss, started)
	s.End(3, 5, CacheHit, time.Time{})
	s.End(3, 5, CacheFail, time.Time{})

	var snap = s.Snapshot()
	require.Equal(t, int64(3), snap.Invocations)
	require.Equal(t, int64(1), snap.Hits)
	require.Equal(t, int64(1), snap.Misses)
	require.Equal(t, int64(1), snap.Fails)
	require.Equal(t, 3, snap.LiteralSize)
	require.Equal(t, 5, snap.CoreSize)
}

func TestSharedStatsCollectorIsASingleton(t *testing.T) {
	require.Same(t, SharedStatsCollector(), SharedStatsCollector())
}

func TestCacheOutcomeString(t *testing.T) {
	require.Equal(t, "hit", CacheHit.String())
	require.Equal(t, "miss", CacheMiss.String())
	require.Equal(t, "fail", CacheFail.String())
}
