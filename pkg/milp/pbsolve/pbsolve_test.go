package pbsolve_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/camsched/course-opt-core/pkg/milp"
	"github.com/camsched/course-opt-core/pkg/milp/pbsolve"
)

func solve(t *testing.T, m *milp.Model, p milp.Params) *milp.Solution {
	t.Helper()
	sol, err := pbsolve.New().Solve(context.Background(), m, p)
	require.NoError(t, err)
	return sol
}

func TestMinimizeSimpleCover(t *testing.T) {
	m := milp.NewModel("cover")
	x := m.NewBoolVar()
	y := m.NewBoolVar()
	m.AddGreaterOrEqual(milp.NewLinearExpr().Add(x).Add(y), 1)
	m.Minimize(milp.NewLinearExpr().AddTerm(x, 1).AddTerm(y, 2))

	sol := solve(t, m, milp.Params{})
	require.Equal(t, milp.StatusOptimal, sol.Status)
	assert.InDelta(t, 1.0, sol.Objective, 1e-6)
	assert.True(t, sol.BoolValue(x))
	assert.False(t, sol.BoolValue(y))
}

func TestMinimizeNegativeCoefficients(t *testing.T) {
	m := milp.NewModel("negative")
	x := m.NewBoolVar()
	y := m.NewBoolVar()
	m.AddLessOrEqual(milp.NewLinearExpr().Add(x).Add(y), 1)
	m.Minimize(milp.NewLinearExpr().AddTerm(x, -2).AddTerm(y, -1))

	sol := solve(t, m, milp.Params{})
	require.Equal(t, milp.StatusOptimal, sol.Status)
	assert.InDelta(t, -2.0, sol.Objective, 1e-6)
	assert.True(t, sol.BoolValue(x))
	assert.False(t, sol.BoolValue(y))
}

func TestFractionalCoefficientsAreScaled(t *testing.T) {
	m := milp.NewModel("fractional")
	x := m.NewBoolVar()
	y := m.NewBoolVar()
	m.AddGreaterOrEqual(milp.NewLinearExpr().Add(x).Add(y), 1)
	m.Minimize(milp.NewLinearExpr().AddTerm(x, 0.5).AddTerm(y, 1.5))

	sol := solve(t, m, milp.Params{})
	require.Equal(t, milp.StatusOptimal, sol.Status)
	assert.InDelta(t, 0.5, sol.Objective, 1e-6)
}

func TestEqualityRow(t *testing.T) {
	m := milp.NewModel("equality")
	x := m.NewBoolVar()
	y := m.NewBoolVar()
	z := m.NewBoolVar()
	m.AddEquality(milp.NewLinearExpr().Add(x).Add(y).Add(z), 2)
	m.Minimize(milp.NewLinearExpr().AddTerm(x, 5).AddTerm(y, 1).AddTerm(z, 1))

	sol := solve(t, m, milp.Params{})
	require.Equal(t, milp.StatusOptimal, sol.Status)
	assert.InDelta(t, 2.0, sol.Objective, 1e-6)
	assert.False(t, sol.BoolValue(x))
}

func TestInfeasibleBounds(t *testing.T) {
	m := milp.NewModel("infeasible")
	x := m.NewBoolVar()
	m.AddGreaterOrEqual(milp.NewLinearExpr().Add(x), 1)
	m.AddLessOrEqual(milp.NewLinearExpr().Add(x), 0)

	sol := solve(t, m, milp.Params{})
	assert.Equal(t, milp.StatusInfeasible, sol.Status)
}

func TestEmptyEnforceRowIsInfeasible(t *testing.T) {
	m := milp.NewModel("empty-row")
	m.NewBoolVar()
	m.AddEquality(milp.NewLinearExpr(), 1)

	sol := solve(t, m, milp.Params{})
	assert.Equal(t, milp.StatusInfeasible, sol.Status)
}

func TestObjectiveCutoffPrunes(t *testing.T) {
	m := milp.NewModel("cutoff")
	x := m.NewBoolVar()
	y := m.NewBoolVar()
	m.AddGreaterOrEqual(milp.NewLinearExpr().Add(x).Add(y), 2)
	m.Minimize(milp.NewLinearExpr().AddTerm(x, 1).AddTerm(y, 1))

	tooTight := 1.0
	sol := solve(t, m, milp.Params{ObjectiveCutoff: &tooTight})
	assert.Equal(t, milp.StatusInfeasible, sol.Status)

	enough := 2.5
	sol = solve(t, m, milp.Params{ObjectiveCutoff: &enough})
	require.Equal(t, milp.StatusOptimal, sol.Status)
	assert.InDelta(t, 2.0, sol.Objective, 1e-6)
}

func TestDisabledTagSkipsRow(t *testing.T) {
	m := milp.NewModel("disabled")
	x := m.NewBoolVar()
	m.AddGreaterOrEqual(milp.NewLinearExpr().Add(x), 1)
	m.AddLessOrEqual(milp.NewLinearExpr().Add(x), 0).WithTag("veto")

	sol := solve(t, m, milp.Params{})
	assert.Equal(t, milp.StatusInfeasible, sol.Status)

	sol = solve(t, m, milp.Params{DisabledTags: map[string]bool{"veto": true}})
	require.Equal(t, milp.StatusOptimal, sol.Status)
	assert.True(t, sol.BoolValue(x))
}

func TestFeasibilityOnlySkipsDescent(t *testing.T) {
	m := milp.NewModel("feasibility")
	x := m.NewBoolVar()
	y := m.NewBoolVar()
	m.AddGreaterOrEqual(milp.NewLinearExpr().Add(x).Add(y), 1)
	m.Minimize(milp.NewLinearExpr().AddTerm(x, 1).AddTerm(y, 1))

	sol := solve(t, m, milp.Params{FeasibilityOnly: true})
	assert.Equal(t, milp.StatusOptimal, sol.Status)
	require.NotNil(t, sol.Values)
}

func TestConflictSetDeletionFilter(t *testing.T) {
	m := milp.NewModel("conflict")
	x := m.NewBoolVar()
	y := m.NewBoolVar()
	m.AddGreaterOrEqual(milp.NewLinearExpr().Add(x), 1).WithTag("a")
	m.AddLessOrEqual(milp.NewLinearExpr().Add(x), 0).WithTag("b")
	m.AddGreaterOrEqual(milp.NewLinearExpr().Add(y), 1).WithTag("c")

	iis, err := milp.ConflictSet(context.Background(), pbsolve.New(), m, []string{"a", "b", "c"}, milp.Params{})
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, iis)
}
