// Package pbsolve adapts the gophersat pseudo-Boolean engine to the milp
// Solver interface. Every model variable is binary, so each bounded row maps
// to one or two pseudo-Boolean constraints and the float objective maps to an
// integer cost function after coefficient scaling.
package pbsolve

import (
	"context"
	"math"
	"sync"

	"github.com/crillab/gophersat/solver"

	"github.com/camsched/course-opt-core/pkg/milp"
)

// integralEps is the tolerance under which a coefficient is treated as an
// integer and used unscaled.
const integralEps = 1e-9

// boundEps absorbs float noise when rounding row bounds to integers.
const boundEps = 1e-6

// Solver implements milp.Solver on github.com/crillab/gophersat.
type Solver struct {
	// Verbose forwards the underlying solver's progress output.
	Verbose bool
}

// New returns a gophersat-backed solver.
func New() *Solver { return &Solver{} }

// Solve encodes the model and runs an objective descent: find a model, then
// repeatedly cut off the current cost and re-solve until unsatisfiable. The
// context bounds the descent between rounds; a round already handed to the
// SAT engine cannot be interrupted and is abandoned in the background when
// the context expires.
func (s *Solver) Solve(ctx context.Context, m *milp.Model, p milp.Params) (*milp.Solution, error) {
	if err := m.Validate(); err != nil {
		return nil, err
	}
	if p.TimeLimit > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.TimeLimit)
		defer cancel()
	}

	enc, infeasible := encode(m, p)
	if infeasible {
		return &milp.Solution{Status: milp.StatusInfeasible}, nil
	}
	if m.NumVars() == 0 {
		_, offset := m.Objective()
		return &milp.Solution{Status: milp.StatusOptimal, Objective: offset, Values: nil}, nil
	}

	prob := solver.ParsePBConstrs(enc.constrs)
	if prob.Status == solver.Unsat {
		return &milp.Solution{Status: milp.StatusInfeasible}, nil
	}
	if len(enc.objLits) > 0 {
		prob.SetCostFunc(enc.objLits, enc.objWeights)
	}
	sat := solver.New(prob)
	sat.Verbose = s.Verbose

	run := &descent{m: m, sat: sat, enc: enc}
	done := make(chan *milp.Solution, 1)
	go func() { done <- run.minimize(ctx) }()

	select {
	case sol := <-done:
		return sol, nil
	case <-ctx.Done():
		return run.best(), nil
	}
}

// encoding is the pseudo-Boolean image of a model.
type encoding struct {
	constrs    []solver.PBConstr
	objLits    []solver.Lit
	objWeights []int
	// costLits/costWeights mirror objLits in CNF literal form for cost
	// evaluation and cutting planes.
	costLits    []int
	costWeights []int
	maxCost     int64
	// negOffset is the scaled constant folded out of negative coefficients.
	negOffset int64
	scale     float64
	descend   bool
}

func encode(m *milp.Model, p milp.Params) (*encoding, bool) {
	enc := &encoding{scale: p.Scale()}

	for _, row := range m.Rows() {
		if !p.RowEnabled(row) {
			continue
		}
		lits, weights, lo, hi, hasLo, hasHi := scaleRow(row, enc.scale)
		if len(lits) == 0 {
			if (hasLo && lo > 0) || (hasHi && hi < 0) {
				return nil, true
			}
			continue
		}
		enc.addRow(lits, weights, lo, hi, hasLo, hasHi)
	}

	if m.HasObjective() && !p.FeasibilityOnly {
		enc.descend = true
		terms, offset := m.Objective()
		for _, t := range terms {
			w := int(math.Round(t.Coeff * enc.scale))
			if w == 0 {
				continue
			}
			lit := int(t.Var) + 1
			if w < 0 {
				lit = -lit
				enc.negOffset += int64(w)
				w = -w
			}
			enc.costLits = append(enc.costLits, lit)
			enc.costWeights = append(enc.costWeights, w)
			enc.objLits = append(enc.objLits, solver.IntToLit(int32(lit)))
			enc.objWeights = append(enc.objWeights, w)
			enc.maxCost += int64(w)
		}
		if p.ObjectiveCutoff != nil {
			bound := int(math.Floor((*p.ObjectiveCutoff-offset)*enc.scale + boundEps))
			scaledBound := bound - int(enc.negOffset)
			lits := append([]int(nil), enc.costLits...)
			weights := append([]int(nil), enc.costWeights...)
			enc.constrs = append(enc.constrs, solver.LtEq(lits, weights, scaledBound))
		}
	}

	// Tautology keeping the variable count intact even when trailing
	// variables only appear in disabled rows.
	if nv := m.NumVars(); nv > 0 {
		enc.constrs = append(enc.constrs, solver.PropClause(nv, -nv))
	}

	return enc, false
}

func (e *encoding) addRow(lits, weights []int, lo, hi int, hasLo, hasHi bool) {
	if hasLo && hasHi && lo == hi {
		l := append([]int(nil), lits...)
		w := append([]int(nil), weights...)
		e.constrs = append(e.constrs, solver.Eq(l, w, lo)...)
		return
	}
	if hasLo {
		l := append([]int(nil), lits...)
		w := append([]int(nil), weights...)
		e.constrs = append(e.constrs, solver.GtEq(l, w, lo))
	}
	if hasHi {
		l := append([]int(nil), lits...)
		w := append([]int(nil), weights...)
		e.constrs = append(e.constrs, solver.LtEq(l, w, hi))
	}
}

// scaleRow converts a row to integer weights, multiplying through by the
// objective scale only when some coefficient is fractional.
func scaleRow(row milp.Row, scale float64) (lits, weights []int, lo, hi int, hasLo, hasHi bool) {
	factor := 1.0
	for _, t := range row.Terms {
		if math.Abs(t.Coeff-math.Round(t.Coeff)) > integralEps {
			factor = scale
			break
		}
	}
	for _, t := range row.Terms {
		w := int(math.Round(t.Coeff * factor))
		if w == 0 {
			continue
		}
		lits = append(lits, int(t.Var)+1)
		weights = append(weights, w)
	}
	if !math.IsInf(row.Lo, -1) {
		hasLo = true
		lo = int(math.Ceil(row.Lo*factor - boundEps))
	}
	if !math.IsInf(row.Hi, 1) {
		hasHi = true
		hi = int(math.Floor(row.Hi*factor + boundEps))
	}
	return lits, weights, lo, hi, hasLo, hasHi
}

// descent runs the linear-search minimization and tracks the incumbent so an
// expiring context can still hand back the best assignment seen.
type descent struct {
	m   *milp.Model
	sat *solver.Solver
	enc *encoding

	mu         sync.Mutex
	bestValues []float64
	bestCost   int64
	found      bool
}

func (d *descent) minimize(ctx context.Context) *milp.Solution {
	status := d.sat.Solve()
	if status == solver.Unsat {
		return &milp.Solution{Status: milp.StatusInfeasible}
	}
	if status != solver.Sat {
		return &milp.Solution{Status: milp.StatusUnknown}
	}

	for {
		values := modelValues(d.sat.Model(), d.m.NumVars())
		cost := d.enc.evalCost(values)
		d.record(values, cost)

		if !d.enc.descend || cost == 0 {
			return d.solution(milp.StatusOptimal)
		}
		if ctx.Err() != nil {
			return d.solution(milp.StatusFeasible)
		}

		// Cut off the incumbent: sum(w * ~lit) >= maxCost - cost + 1 is the
		// pseudo-Boolean form of cost' <= cost - 1.
		lits := make([]solver.Lit, len(d.enc.costLits))
		weights := make([]int, len(d.enc.costWeights))
		for i, l := range d.enc.costLits {
			lits[i] = solver.IntToLit(int32(-l))
			weights[i] = d.enc.costWeights[i]
		}
		d.sat.AppendClause(solver.NewPBClause(lits, weights, int(d.enc.maxCost-cost)+1))

		status = d.sat.Solve()
		if status == solver.Unsat {
			return d.solution(milp.StatusOptimal)
		}
		if status != solver.Sat {
			return d.solution(milp.StatusFeasible)
		}
	}
}

func (d *descent) record(values []float64, cost int64) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.found || cost < d.bestCost {
		d.bestValues = values
		d.bestCost = cost
		d.found = true
	}
}

// best is the timeout path: whatever incumbent exists, or no solution at all.
func (d *descent) best() *milp.Solution {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.found {
		return &milp.Solution{Status: milp.StatusNoSolution}
	}
	return d.solutionLocked(milp.StatusFeasible)
}

func (d *descent) solution(status milp.Status) *milp.Solution {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.solutionLocked(status)
}

func (d *descent) solutionLocked(status milp.Status) *milp.Solution {
	return &milp.Solution{
		Status:    status,
		Objective: d.m.ObjectiveValue(d.bestValues),
		Values:    d.bestValues,
		Cost:      d.bestCost + d.enc.negOffset,
	}
}

func (e *encoding) evalCost(values []float64) int64 {
	var cost int64
	for i, l := range e.costLits {
		v := values[abs(l)-1] > 0.5
		if l < 0 {
			v = !v
		}
		if v {
			cost += int64(e.costWeights[i])
		}
	}
	return cost
}

func modelValues(model []bool, nv int) []float64 {
	values := make([]float64, nv)
	for i := 0; i < nv && i < len(model); i++ {
		if model[i] {
			values[i] = 1
		}
	}
	return values
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
