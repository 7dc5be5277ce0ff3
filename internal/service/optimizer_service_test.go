package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/camsched/course-opt-core/internal/dto"
	appErrors "github.com/camsched/course-opt-core/pkg/errors"
)

func TestSolveTrivialFeasible(t *testing.T) {
	optimizer := newTestOptimizer(NewRunStore(0))

	result, err := optimizer.Solve(context.Background(), baseInput())
	require.NoError(t, err)
	require.Equal(t, dto.StatusOptimal, result.Status)
	require.NotNil(t, result.ObjectiveValue)
	assert.InDelta(t, 0.0, *result.ObjectiveValue, 1e-6)
	assert.NotEmpty(t, result.RunID)
	assert.NotEmpty(t, result.ImprovementSummary)

	require.Len(t, result.Schedule.Assignments, 1)
	a := result.Schedule.Assignments[0]
	assert.Equal(t, "c1", a.CourseID)
	assert.Equal(t, 0, a.Week)
	assert.Equal(t, "Mon", a.Day)
	assert.Equal(t, 0, a.PeriodStart)
	assert.Equal(t, 3, a.PeriodLength)
	assert.Equal(t, "r1", a.RoomID)
	assert.Equal(t, "i1", a.InstructorID)
	assert.Equal(t, 1, a.SessionNumber)
}

func TestSolveUnavoidableStudentConflict(t *testing.T) {
	optimizer := newTestOptimizer(NewRunStore(0))

	result, err := optimizer.Solve(context.Background(), twoCourseInput())
	require.NoError(t, err)
	require.Equal(t, dto.StatusOptimal, result.Status)
	require.NotNil(t, result.ObjectiveValue)

	// Both courses are pinned to the single start: overlap of three periods
	// for one shared student at w1=2.
	assert.InDelta(t, 6.0, *result.ObjectiveValue, 1e-6)
	assert.InDelta(t, 6.0, result.SoftConstraintSummary.StudentConflicts, 1e-6)
	assert.Len(t, result.Schedule.Assignments, 2)
}

func TestSolveInfeasibleByCapacity(t *testing.T) {
	input := baseInput()
	input.Courses[0].ExpectedEnrollment = 50

	result, err := newTestOptimizer(NewRunStore(0)).Solve(context.Background(), input)
	require.NoError(t, err)
	assert.Equal(t, dto.StatusInfeasible, result.Status)
	assert.Nil(t, result.ObjectiveValue)
	assert.Empty(t, result.Schedule.Assignments)
}

func TestSolveHalfTermConfinedToFirstWeeks(t *testing.T) {
	input := dto.ScheduleInput{
		TermConfig: dto.TermConfigInput{
			NumWeeks:            4,
			Days:                []string{"Mon"},
			DayStartTime:        "09:00",
			DayEndTime:          "12:00",
			PeriodLengthMinutes: 30,
		},
		Classrooms:  []dto.ClassroomInput{{ID: "r1", Capacity: 30}},
		Instructors: []dto.InstructorInput{{ID: "i1", AllowLunchTeaching: true}},
		Courses: []dto.CourseInput{
			{ID: "h1", InstructorID: "i1", ExpectedEnrollment: 10, Type: "first_half_term"},
		},
		ConflictWeights: dto.ConflictWeightsInput{
			GlobalStudentConflictWeight: 1,
			InstructorCompactnessWeight: 1,
			PreferredTimeSlotsWeight:    1,
		},
	}

	result, err := newTestOptimizer(NewRunStore(0)).Solve(context.Background(), input)
	require.NoError(t, err)
	require.Equal(t, dto.StatusOptimal, result.Status)
	require.Len(t, result.Schedule.Assignments, 2)
	weeks := []int{result.Schedule.Assignments[0].Week, result.Schedule.Assignments[1].Week}
	assert.ElementsMatch(t, []int{0, 1}, weeks)
	for _, a := range result.Schedule.Assignments {
		assert.Equal(t, 6, a.PeriodLength)
	}
}

func TestSolveRespectsInstructorAvailability(t *testing.T) {
	// Three 90-minute periods; the first is blocked.
	input := baseInput()
	input.TermConfig.DayEndTime = "13:30"
	input.TermConfig.PeriodLengthMinutes = 90
	input.Instructors[0].Availability = []dto.AvailabilitySlotInput{
		{Day: "Mon", PeriodIndex: 1},
		{Day: "Mon", PeriodIndex: 2},
	}

	result, err := newTestOptimizer(NewRunStore(0)).Solve(context.Background(), input)
	require.NoError(t, err)
	require.Equal(t, dto.StatusOptimal, result.Status)
	require.Len(t, result.Schedule.Assignments, 1)
	assert.GreaterOrEqual(t, result.Schedule.Assignments[0].PeriodStart, 1)
}

func TestSolveInfeasibleWhenOnlyStartUnavailable(t *testing.T) {
	input := baseInput() // the single valid start occupies the whole day
	input.Instructors[0].Availability = []dto.AvailabilitySlotInput{
		{Day: "Mon", PeriodIndex: 1},
		{Day: "Mon", PeriodIndex: 2},
	}

	result, err := newTestOptimizer(NewRunStore(0)).Solve(context.Background(), input)
	require.NoError(t, err)
	assert.Equal(t, dto.StatusInfeasible, result.Status)
}

func TestSolvePrefersGapWhenMinimizingAdjacency(t *testing.T) {
	input := lunchDayInput()
	input.Instructors[0].AllowLunchTeaching = true
	input.Instructors[0].BackToBackPreference = 1
	input.Courses = []dto.CourseInput{
		{ID: "c1", InstructorID: "i1", ExpectedEnrollment: 10, Type: "full_term"},
		{ID: "c2", InstructorID: "i1", ExpectedEnrollment: 10, Type: "full_term"},
	}

	result, err := newTestOptimizer(NewRunStore(0)).Solve(context.Background(), input)
	require.NoError(t, err)
	require.Equal(t, dto.StatusOptimal, result.Status)
	require.NotNil(t, result.ObjectiveValue)
	// Minimizing 2B-(T-1) over one forced teaching day: B=0 gives -1.
	assert.InDelta(t, -1.0, *result.ObjectiveValue, 1e-6)

	require.Len(t, result.Schedule.Assignments, 2)
	p1 := result.Schedule.Assignments[0].PeriodStart
	p2 := result.Schedule.Assignments[1].PeriodStart
	if p1 > p2 {
		p1, p2 = p2, p1
	}
	assert.GreaterOrEqual(t, p2-p1, 2, "sessions should not be adjacent")
}

func TestSolveFullTermPatternRepeatsAcrossWeeks(t *testing.T) {
	input := baseInput()
	input.TermConfig.NumWeeks = 4
	input.TermConfig.Days = []string{"Mon", "Tue"}

	result, err := newTestOptimizer(NewRunStore(0)).Solve(context.Background(), input)
	require.NoError(t, err)
	require.Equal(t, dto.StatusOptimal, result.Status)
	require.Len(t, result.Schedule.Assignments, 4)

	first := result.Schedule.Assignments[0]
	for _, a := range result.Schedule.Assignments {
		assert.Equal(t, first.Day, a.Day)
		assert.Equal(t, first.PeriodStart, a.PeriodStart)
		assert.Equal(t, first.RoomID, a.RoomID)
	}
}

func TestSolveObjectiveMatchesEvaluator(t *testing.T) {
	optimizer := newTestOptimizer(NewRunStore(0))
	input := twoCourseInput()

	result, err := optimizer.Solve(context.Background(), input)
	require.NoError(t, err)
	require.NotNil(t, result.ObjectiveValue)

	// The reported objective is the evaluator applied to the reported
	// schedule; the solver's internal cost must agree after unscaling.
	cost, ok := result.Diagnostics["solver_cost"].(int64)
	require.True(t, ok)
	assert.InDelta(t, *result.ObjectiveValue, float64(cost)/1e6, 1e-3)
}

func TestSolveRejectsInvalidInput(t *testing.T) {
	input := baseInput()
	input.Courses[0].InstructorID = "ghost"

	result, err := newTestOptimizer(NewRunStore(0)).Solve(context.Background(), input)
	require.Error(t, err)
	assert.Nil(t, result)
	assert.True(t, appErrors.Is(err, appErrors.ErrInvalidInput))
}

func TestSolveStoresRun(t *testing.T) {
	runs := NewRunStore(0)
	optimizer := newTestOptimizer(runs)

	result, err := optimizer.Solve(context.Background(), baseInput())
	require.NoError(t, err)

	record, ok := runs.Get(result.RunID)
	require.True(t, ok)
	assert.Equal(t, result.RunID, record.RunID)
	assert.InDelta(t, *result.ObjectiveValue, record.Objective, 1e-9)
}
