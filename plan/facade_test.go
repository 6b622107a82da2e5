package plan

import (
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// fakeOptimizer is a minimal Optimizer test double. It never really parses
// SQL; compile extracts whatever the test needs from the literal string.
type fakeOptimizer struct {
	mu          sync.Mutex
	calls       int64
	inFlight    int
	maxInFlight int
	compile     func(sql string, partitioning Partitioning, large, swap bool) (*CompiledPlan, error)
}

func (f *fakeOptimizer) Compile(sql string, partitioning Partitioning, large, swap bool) (*CompiledPlan, error) {
	atomic.AddInt64(&f.calls, 1)

	f.mu.Lock()
	f.inFlight++
	if f.inFlight > f.maxInFlight {
		f.maxInFlight = f.inFlight
	}
	f.mu.Unlock()

	time.Sleep(2 * time.Millisecond)

	f.mu.Lock()
	f.inFlight--
	f.mu.Unlock()

	return f.compile(sql, partitioning, large, swap)
}

func idParamCompile(sql string, _ Partitioning, _, _ bool) (*CompiledPlan, error) {
	var id = strings.TrimPrefix(sql, "SELECT * FROM T WHERE id=")
	return &CompiledPlan{
		ParsedToken:             "SELECT * FROM T WHERE id=?",
		UserParamCount:          0,
		ParamTypes:              []ParamType{ParamInt64},
		ExtractedLiterals:       []string{id},
		CompiledAsParameterized: true,
	}, nil
}

func TestScenarioS4_PlanCacheHit(t *testing.T) {
	var opt = &fakeOptimizer{compile: idParamCompile}
	var stats = &statsCollector{}
	var facade = NewPlannerFacadeWithStats(opt, NewPlanCache(16, 16), []byte("catalog-v1"), stats)

	var stmt1, err1 = facade.Plan("SELECT * FROM T WHERE id=1", PartitioningInferred, false, nil, false, false)
	require.NoError(t, err1)
	require.NotNil(t, stmt1)
	require.Equal(t, int64(1), stats.Snapshot().Misses)

	var stmt2, err2 = facade.Plan("SELECT * FROM T WHERE id=1", PartitioningInferred, false, nil, false, false)
	require.NoError(t, err2)
	require.Same(t, stmt1, stmt2)
	require.Equal(t, int64(1), stats.Snapshot().Hits)
	require.Equal(t, int64(1), atomic.LoadInt64(&opt.calls), "second call must be served from cache, not the optimizer")
}

func TestScenarioS5_ParameterizedCacheHit(t *testing.T) {
	var opt = &fakeOptimizer{compile: idParamCompile}
	var facade = NewPlannerFacade(opt, NewPlanCache(16, 16), []byte("catalog-v1"))

	var _, err1 = facade.Plan("SELECT * FROM T WHERE id=1", PartitioningInferred, false, nil, false, false)
	require.NoError(t, err1)

	var stmt2, err2 = facade.Plan("SELECT * FROM T WHERE id=2", PartitioningInferred, false, nil, false, false)
	require.NoError(t, err2)
	require.Equal(t, []interface{}{"2"}, stmt2.Params)
	require.Equal(t, int64(2), atomic.LoadInt64(&opt.calls), "a distinct literal still requires a fresh optimizer call")

	// The second SQL text is now itself cached as a literal, directly.
	var stmt3, err3 = facade.Plan("SELECT * FROM T WHERE id=2", PartitioningInferred, false, nil, false, false)
	require.NoError(t, err3)
	require.Same(t, stmt2, stmt3)
	require.Equal(t, int64(2), atomic.LoadInt64(&opt.calls))
}

func TestPlanRejectsEmptySQL(t *testing.T) {
	var opt = &fakeOptimizer{compile: idParamCompile}
	var facade = NewPlannerFacade(opt, NewPlanCache(16, 16), nil)

	var _, err = facade.Plan("   ", PartitioningInferred, false, nil, false, false)
	require.Error(t, err)
	require.True(t, IsPlanningError(err))
}

func TestPlanWrongParamCountFailsOutsideExplain(t *testing.T) {
	var opt = &fakeOptimizer{compile: func(sql string, _ Partitioning, _, _ bool) (*CompiledPlan, error) {
		return &CompiledPlan{ParsedToken: sql, UserParamCount: 2}, nil
	}}
	var facade = NewPlannerFacade(opt, NewPlanCache(16, 16), nil)

	var _, err = facade.Plan("SELECT * FROM T WHERE a=? AND b=?", PartitioningInferred, false, []interface{}{1}, false, false)
	require.Error(t, err)
	require.True(t, IsPlanningError(err))
}

func TestPlanWrongParamCountProceedsUncachedInExplainMode(t *testing.T) {
	var opt = &fakeOptimizer{compile: func(sql string, _ Partitioning, _, _ bool) (*CompiledPlan, error) {
		return &CompiledPlan{ParsedToken: sql, UserParamCount: 2}, nil
	}}
	var cache = NewPlanCache(16, 16)
	var facade = NewPlannerFacade(opt, cache, nil)

	var stmt, err = facade.Plan("SELECT * FROM T WHERE a=? AND b=?", PartitioningInferred, true, []interface{}{1}, false, false)
	require.NoError(t, err)
	require.NotNil(t, stmt)
	require.Equal(t, 0, cache.LiteralSize(), "wrong-parameter-count explain plans must not be cached")
}

func TestPlanAdmissionRejectsForcedPartitioning(t *testing.T) {
	var opt = &fakeOptimizer{compile: idParamCompile}
	var cache = NewPlanCache(16, 16)
	var facade = NewPlannerFacade(opt, cache, nil)

	var _, err = facade.Plan("SELECT * FROM T WHERE id=1", PartitioningForced, false, nil, false, false)
	require.NoError(t, err)
	require.Equal(t, 0, cache.LiteralSize())
}

func TestPlanAdmissionRejectsLargeMode(t *testing.T) {
	var opt = &fakeOptimizer{compile: idParamCompile}
	var cache = NewPlanCache(16, 16)
	var facade = NewPlannerFacade(opt, cache, nil)

	var _, err = facade.Plan("SELECT * FROM T WHERE id=1", PartitioningInferred, false, nil, false, true)
	require.NoError(t, err)
	require.Equal(t, 0, cache.LiteralSize())
}

func TestPlannerSerializesOptimizerCalls(t *testing.T) {
	var opt = &fakeOptimizer{compile: idParamCompile}
	var facade = NewPlannerFacade(opt, NewPlanCache(16, 16), nil)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			var sql = "SELECT * FROM T WHERE id=" + string(rune('a'+n))
			var _, err = facade.Plan(sql, PartitioningForced, false, nil, false, false)
			require.NoError(t, err)
		}(i)
	}
	wg.Wait()

	opt.mu.Lock()
	defer opt.mu.Unlock()
	require.Equal(t, 1, opt.maxInFlight, "the optimizer must never see two concurrent compiles")
}

func TestUpdateCatalogPurgesCache(t *testing.T) {
	var opt = &fakeOptimizer{compile: idParamCompile}
	var cache = NewPlanCache(16, 16)
	var facade = NewPlannerFacade(opt, cache, []byte("v1"))

	var _, err = facade.Plan("SELECT * FROM T WHERE id=1", PartitioningInferred, false, nil, false, false)
	require.NoError(t, err)
	require.Equal(t, 1, cache.LiteralSize())

	facade.UpdateCatalog([]byte("v2"))
	require.Equal(t, 0, cache.LiteralSize())
}
