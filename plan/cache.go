package plan

import (
	"github.com/hashicorp/golang-lru"
)

const (
	// DefaultLiteralCacheSize bounds the exact-SQL-text cache.
	DefaultLiteralCacheSize = 1000
	// DefaultParsedTokenCacheSize bounds the parameterized-token cache.
	DefaultParsedTokenCacheSize = 1000
)

// PlanCache is the two-level ad-hoc plan cache: one level keyed by exact
// SQL text, the other keyed by a parameterized "parsed token" mapping to
// the list of BoundPlan variants compiled for that token so far.
//
// PlanCache performs no locking of its own; callers (PlannerFacade) are
// expected to serialize access, touching it from a single dispatch path
// at a time.
type PlanCache struct {
	literal *lru.Cache
	parsed  *lru.Cache
}

// NewPlanCache returns a PlanCache whose two levels hold at most
// literalSize and parsedSize entries respectively.
func NewPlanCache(literalSize, parsedSize int) *PlanCache {
	literal, err := lru.New(literalSize)
	if err != nil {
		panic(err.Error()) // Only errors on size <= 0.
	}
	parsed, err := lru.New(parsedSize)
	if err != nil {
		panic(err.Error())
	}
	return &PlanCache{literal: literal, parsed: parsed}
}

// GetWithSQL returns the plan cached under the exact SQL text, if any.
func (c *PlanCache) GetWithSQL(sql string) (*AdHocPlannedStatement, bool) {
	v, ok := c.literal.Get(sql)
	if !ok {
		return nil, false
	}
	return v.(*AdHocPlannedStatement), true
}

// GetWithParsedToken returns the bound-plan variants cached for a
// parameterized token, if any. The caller filters variants with
// BoundPlan.AllowsParams to find one compatible with a new literal tuple.
func (c *PlanCache) GetWithParsedToken(token string) ([]*BoundPlan, bool) {
	v, ok := c.parsed.Get(token)
	if !ok {
		return nil, false
	}
	return v.([]*BoundPlan), true
}

// Put admits a freshly planned statement into the literal cache, and, when
// parameterization succeeded cleanly, appends a new BoundPlan variant to
// the parsed-token cache. The caller is responsible for withholding Put
// entirely when admission is disallowed (forced partitioning, large mode,
// or a wrong parameter count).
func (c *PlanCache) Put(sql, parsedToken string, stmt *AdHocPlannedStatement, extractedLiterals []string, hadUserQuestionMark bool, badParameterization bool) {
	c.literal.Add(sql, stmt)

	if badParameterization {
		// Re-parameterizing this plan threw during compilation; a bound
		// variant built from it cannot be trusted for reuse.
		return
	}

	var bound = &BoundPlan{Core: stmt.Core, Constants: extractedLiterals}
	var variants []*BoundPlan
	if existing, ok := c.parsed.Get(parsedToken); ok {
		variants = existing.([]*BoundPlan)
	}
	variants = append(variants, bound)
	c.parsed.Add(parsedToken, variants)
}

// LiteralSize returns the current number of entries in the literal cache.
func (c *PlanCache) LiteralSize() int { return c.literal.Len() }

// CoreSize returns the current number of entries in the parsed-token cache.
func (c *PlanCache) CoreSize() int { return c.parsed.Len() }

// Purge discards every cached entry in both levels. Called when the
// catalog changes underneath a PlannerFacade, since plans compiled
// against a stale catalog hash are no longer valid.
func (c *PlanCache) Purge() {
	c.literal.Purge()
	c.parsed.Purge()
}
