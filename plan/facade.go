package plan

import (
	"math/rand"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// largeModeRatioEnvVar names the environment knob holding the fraction of
// ad-hoc, non-large queries forced through the large-query path, purely
// for test coverage of that path. Sampling happens before compilation and
// does not distinguish read-only statements from writing ones.
const largeModeRatioEnvVar = "LARGE_MODE_RATIO"

func largeModeRatioFromEnv() float64 {
	var raw = strings.TrimSpace(os.Getenv(largeModeRatioEnvVar))
	if raw == "" {
		return 0
	}
	var v, err = strconv.ParseFloat(raw, 64)
	if err != nil || v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// PlannerFacade serializes ad-hoc planning calls against a single,
// non-reentrant Optimizer, consulting a PlanCache before invoking it and
// recording cache-use statistics for every call.
type PlannerFacade struct {
	mu sync.Mutex

	optimizer      Optimizer
	cache          *PlanCache
	catalogHash    []byte
	largeModeRatio float64
	rng            *rand.Rand
	log            *logrus.Entry

	largeModeCount     int64
	largeFallbackCount int64

	stats StatsCollector
}

// NewPlannerFacade constructs a PlannerFacade around the given optimizer,
// cache, and catalog hash. It shares the process-wide lazy stats
// singleton, created on first construction.
func NewPlannerFacade(optimizer Optimizer, cache *PlanCache, catalogHash []byte) *PlannerFacade {
	return NewPlannerFacadeWithStats(optimizer, cache, catalogHash, SharedStatsCollector())
}

// NewPlannerFacadeWithStats is NewPlannerFacade with an injected
// StatsCollector, for tests that need isolated counters instead of the
// process-wide singleton.
func NewPlannerFacadeWithStats(optimizer Optimizer, cache *PlanCache, catalogHash []byte, stats StatsCollector) *PlannerFacade {
	return &PlannerFacade{
		optimizer:      optimizer,
		cache:          cache,
		catalogHash:    catalogHash,
		largeModeRatio: largeModeRatioFromEnv(),
		rng:            rand.New(rand.NewSource(time.Now().UnixNano())),
		stats:          stats,
	}
}

// SetLogger attaches a structured logger used to report internal compile
// errors (with stack trace); nil disables logging.
func (f *PlannerFacade) SetLogger(log *logrus.Entry) { f.log = log }

// UpdateCatalog replaces the catalog hash a facade plans against. Because
// any previously cached plan was compiled against the old catalog, the
// cache is purged wholesale.
func (f *PlannerFacade) UpdateCatalog(catalogHash []byte) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.catalogHash = catalogHash
	f.cache.Purge()
}

// LargeModeCount returns how many calls were sampled into large-query mode.
func (f *PlannerFacade) LargeModeCount() int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.largeModeCount
}

// LargeFallbackCount returns how many compiled plans disagreed with the
// requested large-query mode.
func (f *PlannerFacade) LargeFallbackCount() int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.largeFallbackCount
}

// Plan compiles sql to an AdHocPlannedStatement, consulting the plan cache
// first when eligible. Calls through one facade are serialized: only one
// of them runs inside the facade's optimizer at a time, because the
// optimizer is not reentrant. Distinct facades do not share this lock.
func (f *PlannerFacade) Plan(sql string, partitioning Partitioning, explain bool, userParams []interface{}, swapTables bool, large bool) (*AdHocPlannedStatement, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var startedAt = f.stats.Start()
	var cacheUse = CacheFail
	defer func() {
		f.stats.End(f.cache.LiteralSize(), f.cache.CoreSize(), cacheUse, startedAt)
	}()

	// Step 1: large-mode sampling. A forced large query is left alone;
	// otherwise a configured ratio forces a fraction of calls through the
	// large-query path purely for test coverage of that path.
	if f.largeModeRatio > 0 && !large {
		if f.largeModeRatio >= 1 || f.largeModeRatio > f.rng.Float64() {
			large = true
			f.largeModeCount++
			largeModeSampledTotal.Inc()
		}
	}

	// Step 2: trim and reject empty SQL.
	sql = strings.TrimSpace(sql)
	if sql == "" {
		return nil, newPlanningError("can't plan empty or null SQL")
	}

	// Step 3: literal cache probe. Forced partitioning and large mode are
	// never cacheable, since their plans may be invalid or suboptimal in
	// other contexts.
	if partitioning.IsInferred() && !large {
		if cached, ok := f.cache.GetWithSQL(sql); ok {
			cacheUse = CacheHit
			return cached, nil
		}
		cacheUse = CacheMiss
	}

	// Step 4: invoke the external optimizer.
	compiled, err := f.optimizer.Compile(sql, partitioning, large, swapTables)
	if err != nil {
		if IsPlanningError(err) {
			return nil, err
		}
		var wrapped = wrapCompileError(err, "error compiling query")
		if f.log != nil {
			f.log.WithError(err).WithField("sql", sql).Error("error compiling query")
		}
		return nil, wrapped
	}
	if compiled.IsLargeQuery != large {
		f.largeFallbackCount++
		largeModeFallbackTotal.Inc()
	}

	// Step 5: parameter-count check.
	var inputParamCount = len(userParams)
	var wrongParamCount = compiled.UserParamCount != inputParamCount
	if wrongParamCount && !explain {
		return nil, newPlanningError(
			"incorrect number of parameters passed: expected %d, passed %d",
			compiled.UserParamCount, inputParamCount)
	}
	var hasUserQuestionMark = compiled.UserParamCount > 0

	// Step 6: cacheable and not mismatched -> try a parameterized-variant
	// match before doing the expensive remainder of planning.
	if !wrongParamCount && partitioning.IsInferred() && !large {
		if variants, ok := f.cache.GetWithParsedToken(compiled.ParsedToken); ok {
			for _, candidate := range variants {
				if !candidate.AllowsParams(compiled.ExtractedLiterals) {
					continue
				}
				var params []interface{}
				switch {
				case compiled.CompiledAsParameterized:
					params = literalsToParams(candidate.Core.ParamTypes, compiled.ExtractedLiterals)
				case hasUserQuestionMark:
					params = userParams
				default:
					params = nil
				}
				var stmt = &AdHocPlannedStatement{
					SQL:            sql,
					Core:           candidate.Core,
					Params:         params,
					BoundConstants: candidate.Constants,
				}
				f.cache.Put(sql, compiled.ParsedToken, stmt, compiled.ExtractedLiterals, hasUserQuestionMark, false)
				cacheUse = CacheHit
				return stmt, nil
			}
		}
	}

	// Step 7: finalize the plan and admit it to the cache if allowed.
	var core = &CorePlan{
		SQL:         sql,
		CatalogHash: f.catalogHash,
		ParamTypes:  compiled.ParamTypes,
	}
	if partitioning.IsInferred() {
		core.HasPartitioningValue = len(compiled.ExtractedLiterals) > 0
	}
	var stmt = &AdHocPlannedStatement{
		SQL:    sql,
		Core:   core,
		Params: userParams,
	}

	// Never admit wrong-parameter-count explain queries or large-mode plans.
	if !wrongParamCount && partitioning.IsInferred() && !large {
		f.cache.Put(sql, compiled.ParsedToken, stmt, compiled.ExtractedLiterals, hasUserQuestionMark, compiled.BadParameterization)
	}
	return stmt, nil
}

func literalsToParams(types []ParamType, literals []string) []interface{} {
	var out = make([]interface{}, len(literals))
	for i, lit := range literals {
		out[i] = lit
	}
	return out
}
