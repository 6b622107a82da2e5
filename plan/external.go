package plan

// Partitioning describes how a statement's partitioning key was determined.
// It is opaque beyond this distinction: the facade only needs to know
// whether a cache lookup is permitted, never how partitioning was computed.
type Partitioning int

const (
	// PartitioningInferred means the optimizer derived the partitioning key
	// from the statement itself; plans in this mode are cacheable.
	PartitioningInferred Partitioning = iota
	// PartitioningForced means the caller pinned single- or multi-partition
	// execution; such plans are never admitted to the cache because they may
	// be invalid or suboptimal in other contexts.
	PartitioningForced
)

// IsInferred reports whether partitioning was derived rather than forced.
func (p Partitioning) IsInferred() bool { return p == PartitioningInferred }

// CompiledPlan is the result of invoking the external parser/optimizer on
// one SQL statement. Everything about the optimizer's internals is opaque
// to this package; only this shape is relied upon.
type CompiledPlan struct {
	ParsedToken             string
	UserParamCount          int
	ParamTypes              []ParamType
	ExtractedLiterals       []string
	CompiledAsParameterized bool
	IsLargeQuery            bool
	BadParameterization     bool
}

// Optimizer is the external parser/optimizer collaborator: out of scope for
// this package, consumed only through this interface. It is not reentrant;
// PlannerFacade.Plan is responsible for serializing calls into it.
type Optimizer interface {
	// Compile parses and plans sql under the given partitioning mode. large
	// requests the large-query execution path; swapTables requests the
	// swap-tables planning path in place of ordinary statement planning.
	Compile(sql string, partitioning Partitioning, large bool, swapTables bool) (*CompiledPlan, error)
}
