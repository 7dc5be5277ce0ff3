// Package milp offers a small builder API for 0-1 integer linear programs.
//
// The Model struct collects binary variables, bounded linear rows and a
// linear objective. Solving is delegated to a Solver implementation; the
// builder itself is backend-agnostic. Rows may carry a tag so that groups of
// constraints can be disabled per solve, which is how the conflict-set
// extraction in this package probes infeasibility.
package milp

import (
	"fmt"
	"math"
)

type (
	// VarIndex is the index of a variable in the model.
	VarIndex int32
	// ConstrIndex is the index of a row in the model.
	ConstrIndex int32
)

// BoolVar is a reference to a binary variable in the model.
type BoolVar struct {
	ind VarIndex
	m   *Model
}

// Index returns the index of the variable.
func (b BoolVar) Index() VarIndex { return b.ind }

// Name returns the name of the variable.
func (b BoolVar) Name() string { return b.m.varNames[b.ind] }

// WithName sets the name of the variable.
func (b BoolVar) WithName(s string) BoolVar {
	b.m.varNames[b.ind] = s
	return b
}

func (b BoolVar) addToLinearExpr(e *LinearExpr, c float64) {
	e.varCoeffs = append(e.varCoeffs, varCoeff{ind: b.ind, coeff: c})
}

// Term is one (variable, coefficient) entry of a row or objective.
type Term struct {
	Var   VarIndex
	Coeff float64
}

// Row is a bounded linear constraint Lo <= sum(Terms) <= Hi. Open sides use
// ±Inf. Terms are merged and sorted by variable index.
type Row struct {
	Terms []Term
	Lo    float64
	Hi    float64
	Name  string
	Tag   string
}

// Constraint is a reference to a row in the model.
type Constraint struct {
	ind ConstrIndex
	m   *Model
}

// Index returns the index of the constraint.
func (c Constraint) Index() ConstrIndex { return c.ind }

// Name returns the name of the constraint.
func (c Constraint) Name() string { return c.m.rows[c.ind].Name }

// WithName sets the name of the constraint.
func (c Constraint) WithName(s string) Constraint {
	c.m.rows[c.ind].Name = s
	return c
}

// Tag returns the tag of the constraint.
func (c Constraint) Tag() string { return c.m.rows[c.ind].Tag }

// WithTag labels the constraint so it can be disabled as a group member
// during conflict probing.
func (c Constraint) WithTag(tag string) Constraint {
	c.m.rows[c.ind].Tag = tag
	return c
}

// Hint is a partial assignment handed to hint-capable solvers.
type Hint struct {
	Bools map[BoolVar]bool
}

// Model is a 0-1 integer linear program under construction.
type Model struct {
	name      string
	varNames  []string
	rows      []Row
	objTerms  []Term
	objOffset float64
	hasObj    bool
	hint      map[VarIndex]bool
	// The first and only the first error is reported by Validate.
	err error
}

// NewModel creates an empty model.
func NewModel(name string) *Model {
	return &Model{name: name}
}

// Name returns the model name.
func (m *Model) Name() string { return m.name }

// NewBoolVar creates a new binary variable.
func (m *Model) NewBoolVar() BoolVar {
	v := BoolVar{ind: VarIndex(len(m.varNames)), m: m}
	m.varNames = append(m.varNames, fmt.Sprintf("x%d", v.ind))
	return v
}

// NumVars returns the number of variables in the model.
func (m *Model) NumVars() int { return len(m.varNames) }

// VarName returns the name of the variable at the given index.
func (m *Model) VarName(ind VarIndex) string { return m.varNames[ind] }

// AddLinearConstraint adds the row lo <= expr <= hi.
func (m *Model) AddLinearConstraint(expr LinearArgument, lo, hi float64) Constraint {
	le := NewLinearExpr().Add(expr)
	terms, offset := le.terms()
	if lo > hi {
		m.setErrorf("constraint %d has empty bounds [%v, %v]", len(m.rows), lo, hi)
	}
	row := Row{Terms: terms, Lo: lo - offset, Hi: hi - offset}
	if math.IsInf(lo, -1) {
		row.Lo = math.Inf(-1)
	}
	if math.IsInf(hi, 1) {
		row.Hi = math.Inf(1)
	}
	ind := ConstrIndex(len(m.rows))
	m.rows = append(m.rows, row)
	return Constraint{ind: ind, m: m}
}

// AddEquality adds the row expr == rhs.
func (m *Model) AddEquality(expr LinearArgument, rhs float64) Constraint {
	return m.AddLinearConstraint(expr, rhs, rhs)
}

// AddLessOrEqual adds the row expr <= rhs.
func (m *Model) AddLessOrEqual(expr LinearArgument, rhs float64) Constraint {
	return m.AddLinearConstraint(expr, math.Inf(-1), rhs)
}

// AddGreaterOrEqual adds the row expr >= rhs.
func (m *Model) AddGreaterOrEqual(expr LinearArgument, rhs float64) Constraint {
	return m.AddLinearConstraint(expr, rhs, math.Inf(1))
}

// Minimize sets the linear minimization objective.
func (m *Model) Minimize(obj LinearArgument) {
	le := NewLinearExpr().Add(obj)
	m.objTerms, m.objOffset = le.terms()
	m.hasObj = true
}

// HasObjective reports whether an objective was set.
func (m *Model) HasObjective() bool { return m.hasObj }

// Objective returns the merged objective terms and the constant offset.
func (m *Model) Objective() ([]Term, float64) { return m.objTerms, m.objOffset }

// ObjectiveValue evaluates the objective under the given assignment.
func (m *Model) ObjectiveValue(values []float64) float64 {
	result := m.objOffset
	for _, t := range m.objTerms {
		result += t.Coeff * values[t.Var]
	}
	return result
}

// Rows returns the constraint rows. The slice is shared with the model and
// must not be mutated by callers.
func (m *Model) Rows() []Row { return m.rows }

// SetHint records a partial starting assignment. Backends without hint
// support ignore it.
func (m *Model) SetHint(h *Hint) {
	if h == nil {
		m.hint = nil
		return
	}
	m.hint = make(map[VarIndex]bool, len(h.Bools))
	for bv, val := range h.Bools {
		if bv.m != m {
			m.setErrorf("hint variable %v belongs to another model", bv.ind)
			continue
		}
		m.hint[bv.ind] = val
	}
}

// HintValues returns the recorded hint keyed by variable index.
func (m *Model) HintValues() map[VarIndex]bool { return m.hint }

// Validate returns the first error recorded while building the model.
func (m *Model) Validate() error { return m.err }

func (m *Model) setErrorf(format string, a ...any) {
	if m.err == nil {
		m.err = fmt.Errorf(format, a...)
	}
}
