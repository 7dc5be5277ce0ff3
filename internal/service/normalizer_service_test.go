package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/camsched/course-opt-core/internal/dto"
	"github.com/camsched/course-opt-core/internal/models"
	appErrors "github.com/camsched/course-opt-core/pkg/errors"
)

func TestNormalizeDerivesTermQuantities(t *testing.T) {
	inst := normalizeInput(t, baseInput())

	assert.Equal(t, 3, inst.Term.NumPeriods)
	assert.Equal(t, 0, inst.Term.HalfPoint)
	assert.Empty(t, inst.Term.LunchPeriods)
	assert.Equal(t, []int{models.Block2}, inst.Term.Blocks())

	course := inst.Courses[0]
	assert.Equal(t, 3, course.PeriodsPerSession)
	assert.Equal(t, 1, course.TotalSessions)
	assert.Equal(t, 1, course.SessionsPerWeek)
	assert.Equal(t, 1, course.WeekStart)
	assert.Equal(t, 1, course.WeekEnd)
	assert.Equal(t, []int{models.Block2}, course.Blocks)
}

func TestNormalizeLunchPeriods(t *testing.T) {
	inst := normalizeInput(t, lunchDayInput())

	// Periods: 09:00, 10:30, 12:00, 13:30. Only the third intersects
	// [12:00, 12:30).
	assert.Equal(t, 4, inst.Term.NumPeriods)
	assert.Equal(t, []int{3}, inst.Term.LunchPeriods)
}

func TestNormalizeHalfTermCourses(t *testing.T) {
	input := baseInput()
	input.TermConfig.NumWeeks = 4
	input.Courses = append(input.Courses,
		dto.CourseInput{ID: "h1", InstructorID: "i1", ExpectedEnrollment: 5, Type: "first_half_term"},
		dto.CourseInput{ID: "h2", InstructorID: "i1", ExpectedEnrollment: 5, Type: "second_half_term"},
	)
	inst := normalizeInput(t, input)

	full := inst.Courses[0]
	assert.Equal(t, []int{models.Block1, models.Block2}, full.Blocks)
	assert.Equal(t, 4, full.TotalSessions)

	firstHalf := inst.Courses[1]
	assert.Equal(t, []int{models.Block1}, firstHalf.Blocks)
	assert.Equal(t, 1, firstHalf.WeekStart)
	assert.Equal(t, 2, firstHalf.WeekEnd)
	assert.Equal(t, 2, firstHalf.TotalSessions)
	assert.Equal(t, 6, firstHalf.PeriodsPerSession)

	secondHalf := inst.Courses[2]
	assert.Equal(t, []int{models.Block2}, secondHalf.Blocks)
	assert.Equal(t, 3, secondHalf.WeekStart)
	assert.Equal(t, 4, secondHalf.WeekEnd)
}

func TestNormalizeAvailabilityFlipsDefault(t *testing.T) {
	input := baseInput()
	input.Instructors[0].Availability = []dto.AvailabilitySlotInput{
		{Day: "Mon", PeriodIndex: 1},
		{Day: "Mon", PeriodIndex: 2},
	}
	inst := normalizeInput(t, input)

	avail := inst.Instructors[0].Avail
	assert.False(t, avail.At(0, 1))
	assert.True(t, avail.At(0, 2))
	assert.True(t, avail.At(0, 3))
}

func TestNormalizeConflictMatrix(t *testing.T) {
	inst := normalizeInput(t, twoCourseInput())

	assert.Equal(t, 1, inst.ConflictCount(0, 1))
	assert.Equal(t, 1, inst.ConflictCount(1, 0))
	assert.Equal(t, 0, inst.ConflictCount(0, 0))
}

func TestNormalizeErrors(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*dto.ScheduleInput)
	}{
		{"duplicate day labels", func(in *dto.ScheduleInput) { in.TermConfig.Days = []string{"Mon", "Mon"} }},
		{"empty time range", func(in *dto.ScheduleInput) { in.TermConfig.DayEndTime = "09:00" }},
		{"malformed clock", func(in *dto.ScheduleInput) { in.TermConfig.DayStartTime = "nine" }},
		{"unknown instructor", func(in *dto.ScheduleInput) { in.Courses[0].InstructorID = "ghost" }},
		{"unknown course in enrollment", func(in *dto.ScheduleInput) {
			in.Students = []dto.StudentInput{{EnrolledCourseIDs: []string{"ghost"}}}
		}},
		{"availability day unknown", func(in *dto.ScheduleInput) {
			in.Instructors[0].Availability = []dto.AvailabilitySlotInput{{Day: "Fri", PeriodIndex: 0}}
		}},
		{"availability period out of range", func(in *dto.ScheduleInput) {
			in.Instructors[0].Availability = []dto.AvailabilitySlotInput{{Day: "Mon", PeriodIndex: 9}}
		}},
		{"duplicate course id", func(in *dto.ScheduleInput) {
			in.Courses = append(in.Courses, in.Courses[0])
		}},
		{"half-term in one-week term", func(in *dto.ScheduleInput) {
			in.Courses[0].Type = "first_half_term"
		}},
		{"missing courses", func(in *dto.ScheduleInput) { in.Courses = nil }},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			input := baseInput()
			tc.mutate(&input)
			_, err := NewNormalizerService(nil, zap.NewNop()).Normalize(input)
			require.Error(t, err)
			assert.True(t, appErrors.Is(err, appErrors.ErrInvalidInput), "want INVALID_INPUT, got %v", err)
		})
	}
}
