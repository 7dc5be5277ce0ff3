package milp

import (
	"context"
	"time"
)

// Status classifies the outcome of a solve.
type Status int

const (
	// StatusUnknown means the backend could not classify the outcome.
	StatusUnknown Status = iota
	// StatusOptimal means an optimal assignment was proven.
	StatusOptimal
	// StatusFeasible means the time limit was hit with an incumbent in hand.
	StatusFeasible
	// StatusInfeasible means the constraints admit no assignment.
	StatusInfeasible
	// StatusNoSolution means the time limit was hit before any incumbent.
	StatusNoSolution
)

func (s Status) String() string {
	switch s {
	case StatusOptimal:
		return "optimal"
	case StatusFeasible:
		return "feasible"
	case StatusInfeasible:
		return "infeasible"
	case StatusNoSolution:
		return "no_solution"
	default:
		return "unknown"
	}
}

// HasValues reports whether the status carries a usable assignment.
func (s Status) HasValues() bool {
	return s == StatusOptimal || s == StatusFeasible
}

// Params carries per-solve tuning handed to a backend.
type Params struct {
	// TimeLimit bounds the optimize call. Zero means no limit beyond the
	// caller's context.
	TimeLimit time.Duration
	// Threads is advisory; single-threaded backends ignore it.
	Threads int
	// Presolve asks the backend to simplify the model before search.
	// Advisory: the pseudo-Boolean backend always simplifies during parsing.
	Presolve bool
	// FocusFeasibility hints that good incumbents early matter more than
	// proving optimality fast.
	FocusFeasibility bool
	// ObjectiveScale converts float coefficients to the integer cost space of
	// pseudo-Boolean backends. Zero selects DefaultObjectiveScale.
	ObjectiveScale float64
	// ObjectiveCutoff, when set, adds the bound objective <= *ObjectiveCutoff
	// before solving. Used to inject a known incumbent value.
	ObjectiveCutoff *float64
	// FeasibilityOnly skips objective descent; any satisfying assignment is
	// reported as optimal.
	FeasibilityOnly bool
	// DisabledTags lists row tags to leave out of this solve.
	DisabledTags map[string]bool
}

// DefaultObjectiveScale is the coefficient scale used when Params leaves it 0.
const DefaultObjectiveScale = 1e6

// Scale returns the effective objective scale.
func (p Params) Scale() float64 {
	if p.ObjectiveScale > 0 {
		return p.ObjectiveScale
	}
	return DefaultObjectiveScale
}

// RowEnabled reports whether the row participates in a solve under p.
func (p Params) RowEnabled(r Row) bool {
	return r.Tag == "" || !p.DisabledTags[r.Tag]
}

// Solution is the outcome of one solve.
type Solution struct {
	Status    Status
	Objective float64
	// Values holds one 0/1 value per variable when Status.HasValues().
	Values []float64
	// Cost is the backend's raw integer objective, for diagnostics.
	Cost int64
}

// BoolValue returns the value of the variable in the solution.
func (s *Solution) BoolValue(b BoolVar) bool {
	return s.Values[b.Index()] > 0.5
}

// Solver is a black-box MILP backend.
type Solver interface {
	Solve(ctx context.Context, m *Model, p Params) (*Solution, error)
}
