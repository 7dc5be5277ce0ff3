package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/camsched/course-opt-core/internal/dto"
	"github.com/camsched/course-opt-core/internal/models"
	"github.com/camsched/course-opt-core/pkg/config"
	"github.com/camsched/course-opt-core/pkg/milp/pbsolve"
)

// baseInput is the trivial feasible fixture: one 90-minute course, one fully
// available instructor, one room, a single Monday with three 30-minute
// periods.
func baseInput() dto.ScheduleInput {
	return dto.ScheduleInput{
		TermConfig: dto.TermConfigInput{
			NumWeeks:            1,
			Days:                []string{"Mon"},
			DayStartTime:        "09:00",
			DayEndTime:          "10:30",
			PeriodLengthMinutes: 30,
		},
		Classrooms: []dto.ClassroomInput{
			{ID: "r1", Name: "Room 1", Capacity: 30},
		},
		Instructors: []dto.InstructorInput{
			{ID: "i1", Name: "Instructor 1", AllowLunchTeaching: true},
		},
		Courses: []dto.CourseInput{
			{ID: "c1", Name: "Course 1", InstructorID: "i1", ExpectedEnrollment: 10, Type: "full_term"},
		},
		ConflictWeights: dto.ConflictWeightsInput{
			GlobalStudentConflictWeight: 2,
			InstructorCompactnessWeight: 1,
			PreferredTimeSlotsWeight:    1,
		},
	}
}

// twoCourseInput forces two courses into the single feasible start with one
// shared student: the unavoidable-conflict fixture.
func twoCourseInput() dto.ScheduleInput {
	input := baseInput()
	input.Classrooms = append(input.Classrooms, dto.ClassroomInput{ID: "r2", Name: "Room 2", Capacity: 40})
	input.Instructors = append(input.Instructors, dto.InstructorInput{ID: "i2", Name: "Instructor 2", AllowLunchTeaching: true})
	input.Courses = []dto.CourseInput{
		{ID: "c1", Name: "Course 1", InstructorID: "i1", ExpectedEnrollment: 20, Type: "full_term"},
		{ID: "c2", Name: "Course 2", InstructorID: "i2", ExpectedEnrollment: 10, Type: "full_term"},
	}
	input.Students = []dto.StudentInput{
		{EnrolledCourseIDs: []string{"c1", "c2"}},
	}
	return input
}

// lunchDayInput has four 90-minute periods where only the third intersects
// the lunch window, and an instructor who does not allow lunch teaching.
func lunchDayInput() dto.ScheduleInput {
	input := baseInput()
	input.TermConfig.DayStartTime = "09:00"
	input.TermConfig.DayEndTime = "15:00"
	input.TermConfig.PeriodLengthMinutes = 90
	input.Instructors[0].AllowLunchTeaching = false
	return input
}

func normalizeInput(t *testing.T, input dto.ScheduleInput) *models.Instance {
	t.Helper()
	inst, err := NewNormalizerService(nil, zap.NewNop()).Normalize(input)
	require.NoError(t, err)
	return inst
}

func solverConfig() config.SolverConfig {
	return config.SolverConfig{
		TimeLimit:      time.Minute,
		ObjectiveScale: 1e6,
	}
}

func newTestOptimizer(runs *RunStore) *OptimizerService {
	return NewOptimizerService(pbsolve.New(), solverConfig(), runs, nil, zap.NewNop())
}

func newTestWhatIf(runs *RunStore) *WhatIfService {
	optimizer := newTestOptimizer(runs)
	return NewWhatIfService(optimizer, pbsolve.New(), solverConfig(), config.WhatIfConfig{
		IISEnabled: true,
		IISTimeout: 30 * time.Second,
	}, runs, nil, zap.NewNop())
}
