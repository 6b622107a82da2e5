package plan

import "strconv"

// ParamType identifies the compile-time type of an extracted literal or a
// plan's placeholder, used by BoundPlan.AllowsParams to decide whether a
// cached parameterized plan variant may be reused for a new literal tuple.
type ParamType int

const (
	ParamInt64 ParamType = iota
	ParamFloat64
	ParamString
)

// literalCompatible reports whether the raw extracted-literal text could
// have been produced by a value of type t.
func literalCompatible(t ParamType, literal string) bool {
	switch t {
	case ParamInt64:
		_, err := strconv.ParseInt(literal, 10, 64)
		return err == nil
	case ParamFloat64:
		_, err := strconv.ParseFloat(literal, 64)
		return err == nil
	case ParamString:
		return true
	default:
		return false
	}
}

// CorePlan is the catalog-independent compiled form of a statement: the
// optimizer's output together with the catalog hash it was compiled
// against and, for plans whose partitioning key was inferred, the
// partitioning parameter's index or literal value.
type CorePlan struct {
	SQL                    string
	CatalogHash            []byte
	ParamTypes             []ParamType
	PartitioningParamIndex int
	PartitioningParamValue string
	HasPartitioningValue   bool
}

// BoundPlan is a CorePlan specialized to one set of constant values
// extracted from a prior parameterization, together with a predicate
// deciding whether a new literal tuple is compatible with it.
type BoundPlan struct {
	Core      *CorePlan
	Constants []string
}

// AllowsParams reports whether every extracted literal is type-compatible
// with this plan's placeholder schema, in positional order.
func (b *BoundPlan) AllowsParams(literals []string) bool {
	if len(literals) != len(b.Core.ParamTypes) {
		return false
	}
	for i, lit := range literals {
		if !literalCompatible(b.Core.ParamTypes[i], lit) {
			return false
		}
	}
	return true
}

// AdHocPlannedStatement is the fully bound, ready-to-execute result of
// planning one ad-hoc SQL statement.
type AdHocPlannedStatement struct {
	SQL            string
	Core           *CorePlan
	Params         []interface{}
	BoundConstants []string
}
