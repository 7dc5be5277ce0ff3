// Package highsmip adapts the HiGHS mixed-integer solver to the milp Solver
// interface for deployments with the native library installed. Unlike the
// pure Go backend it cannot stream incumbents, so a solve either finishes or
// reports no solution.
package highsmip

import (
	"context"
	"fmt"
	"math"
	"strings"

	"github.com/lanl/highs"

	"github.com/camsched/course-opt-core/pkg/milp"
)

// Solver implements milp.Solver on github.com/lanl/highs.
type Solver struct{}

// New returns a HiGHS-backed solver.
func New() *Solver { return &Solver{} }

// Solve builds the sparse row matrix and invokes HiGHS. Params.TimeLimit,
// Threads and the context are not passed to HiGHS: the context is checked
// once before the solve, and a started solve runs until HiGHS returns.
func (s *Solver) Solve(ctx context.Context, m *milp.Model, p milp.Params) (*milp.Solution, error) {
	if err := m.Validate(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	nv := m.NumVars()
	lp := new(highs.Model)
	lp.VarTypes = make([]highs.VariableType, nv)
	lp.ColLower = make([]float64, nv)
	lp.ColUpper = make([]float64, nv)
	lp.ColCosts = make([]float64, nv)
	for j := 0; j < nv; j++ {
		lp.VarTypes[j] = highs.IntegerType
		lp.ColUpper[j] = 1
	}

	var offset float64
	if m.HasObjective() && !p.FeasibilityOnly {
		var terms []milp.Term
		terms, offset = m.Objective()
		for _, t := range terms {
			lp.ColCosts[t.Var] = t.Coeff
		}
	}

	ri := 0
	for _, row := range m.Rows() {
		if !p.RowEnabled(row) {
			continue
		}
		for _, t := range row.Terms {
			lp.ConstMatrix = append(lp.ConstMatrix, highs.Nonzero{Row: ri, Col: int(t.Var), Val: t.Coeff})
		}
		lp.RowLower = append(lp.RowLower, row.Lo)
		lp.RowUpper = append(lp.RowUpper, row.Hi)
		ri++
	}
	if p.ObjectiveCutoff != nil && m.HasObjective() && !p.FeasibilityOnly {
		terms, _ := m.Objective()
		for _, t := range terms {
			lp.ConstMatrix = append(lp.ConstMatrix, highs.Nonzero{Row: ri, Col: int(t.Var), Val: t.Coeff})
		}
		lp.RowLower = append(lp.RowLower, math.Inf(-1))
		lp.RowUpper = append(lp.RowUpper, *p.ObjectiveCutoff-offset)
	}

	sol, err := lp.Solve()
	if err != nil {
		return nil, fmt.Errorf("highs solve: %w", err)
	}

	if sol.Status != highs.Optimal {
		status := classify(sol.Status.String())
		return &milp.Solution{Status: status}, nil
	}

	values := make([]float64, nv)
	for j := 0; j < nv && j < len(sol.ColumnPrimal); j++ {
		// MIP primals come back as floats; snap to the binary grid.
		values[j] = math.Round(sol.ColumnPrimal[j])
	}
	return &milp.Solution{
		Status:    milp.StatusOptimal,
		Objective: m.ObjectiveValue(values),
		Values:    values,
	}, nil
}

// classify maps a non-optimal HiGHS model status onto the milp statuses. The
// wrapper only exports the status stringer, so the mapping is textual.
func classify(status string) milp.Status {
	s := strings.ToLower(status)
	switch {
	case strings.Contains(s, "infeasible"):
		return milp.StatusInfeasible
	case strings.Contains(s, "time") || strings.Contains(s, "limit"):
		return milp.StatusNoSolution
	default:
		return milp.StatusUnknown
	}
}
