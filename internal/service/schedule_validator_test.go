package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/camsched/course-opt-core/internal/dto"
)

func validAssignment() dto.Assignment {
	return dto.Assignment{
		CourseID:      "c1",
		SessionNumber: 1,
		RoomID:        "r1",
		Week:          0,
		Day:           "Mon",
		PeriodStart:   0,
		PeriodLength:  3,
		InstructorID:  "i1",
	}
}

func TestValidateAcceptsCleanSchedule(t *testing.T) {
	inst := normalizeInput(t, baseInput())
	violations := ValidateSchedule(inst, []dto.Assignment{validAssignment()})
	assert.Empty(t, violations)
}

func TestValidateFlagsViolations(t *testing.T) {
	tests := []struct {
		name        string
		assignments func() []dto.Assignment
		want        string
	}{
		{
			name: "missing session",
			assignments: func() []dto.Assignment {
				return nil
			},
			want: "has 0 sessions",
		},
		{
			name: "duration overflow",
			assignments: func() []dto.Assignment {
				a := validAssignment()
				a.PeriodStart = 1
				return []dto.Assignment{a}
			},
			want: "does not fit",
		},
		{
			name: "week out of range",
			assignments: func() []dto.Assignment {
				a := validAssignment()
				a.Week = 3
				return []dto.Assignment{a}
			},
			want: "outside its active range",
		},
		{
			name: "unknown room",
			assignments: func() []dto.Assignment {
				a := validAssignment()
				a.RoomID = "ghost"
				return []dto.Assignment{a}
			},
			want: "unknown room",
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			inst := normalizeInput(t, baseInput())
			violations := ValidateSchedule(inst, tc.assignments())
			require.NotEmpty(t, violations)
			assert.Contains(t, violations[0], tc.want)
		})
	}
}

func TestValidateCapacityViolation(t *testing.T) {
	input := twoCourseInput()
	inst := normalizeInput(t, input)

	a := validAssignment() // c1 has enrollment 20; send it to the room of 40 first
	a.RoomID = "r2"
	b := validAssignment()
	b.CourseID = "c2"
	b.InstructorID = "i2"
	b.RoomID = "r1"
	violations := ValidateSchedule(inst, []dto.Assignment{a, b})
	assert.Empty(t, violations)

	// Shrink r1 below c2's enrollment.
	input.Classrooms[0].Capacity = 5
	inst = normalizeInput(t, input)
	violations = ValidateSchedule(inst, []dto.Assignment{a, b})
	require.NotEmpty(t, violations)
	assert.Contains(t, violations[0], "below enrollment")
}

func TestValidateDoubleBookings(t *testing.T) {
	input := twoCourseInput()
	inst := normalizeInput(t, input)

	sameRoom := []dto.Assignment{validAssignment(), func() dto.Assignment {
		a := validAssignment()
		a.CourseID = "c2"
		a.InstructorID = "i2"
		return a
	}()}
	violations := ValidateSchedule(inst, sameRoom)
	require.NotEmpty(t, violations)
	assert.Contains(t, violations[0], "double-booked")
}

func TestValidateFullTermPatternDrift(t *testing.T) {
	input := baseInput()
	input.TermConfig.NumWeeks = 2
	input.TermConfig.Days = []string{"Mon", "Tue"}
	inst := normalizeInput(t, input)

	w0 := validAssignment()
	w1 := validAssignment()
	w1.Week = 1
	w1.SessionNumber = 2
	w1.Day = "Tue" // drifts from the week-0 pattern
	violations := ValidateSchedule(inst, []dto.Assignment{w0, w1})
	require.NotEmpty(t, violations)
	assert.Contains(t, violations[0], "weekly pattern differs")
}

func TestValidateUnavailableInstructor(t *testing.T) {
	input := baseInput()
	input.TermConfig.DayEndTime = "13:30"
	input.TermConfig.PeriodLengthMinutes = 90
	input.Instructors[0].Availability = []dto.AvailabilitySlotInput{
		{Day: "Mon", PeriodIndex: 1},
		{Day: "Mon", PeriodIndex: 2},
	}
	inst := normalizeInput(t, input)

	a := validAssignment()
	a.PeriodLength = 1 // 90-minute periods now
	violations := ValidateSchedule(inst, []dto.Assignment{a})
	require.NotEmpty(t, violations)
	assert.Contains(t, violations[0], "unavailable")
}
