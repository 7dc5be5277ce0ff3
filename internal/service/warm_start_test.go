package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/camsched/course-opt-core/internal/dto"
	"github.com/camsched/course-opt-core/internal/models"
)

func buildWarmStart(t *testing.T, input dto.ScheduleInput) (*models.Instance, *WarmStart) {
	t.Helper()
	inst := normalizeInput(t, input)
	domain := NewDomainPruner(zap.NewNop()).Build(inst)
	return inst, NewWarmStarter(zap.NewNop()).Build(inst, domain)
}

func TestWarmStartPlacesTrivialCourse(t *testing.T) {
	inst, ws := buildWarmStart(t, baseInput())

	require.True(t, ws.Complete)
	require.Len(t, ws.Placements, 1)
	assert.Equal(t, models.Placement{Course: 0, Block: models.Block2, Day: 0, Period: 1, Room: 0}, ws.Placements[0])

	violations := ValidateSchedule(inst, expandAssignments(inst, ws.Placements))
	assert.Empty(t, violations)
}

func TestWarmStartUsesSecondRoomOnClash(t *testing.T) {
	inst, ws := buildWarmStart(t, twoCourseInput())

	require.True(t, ws.Complete)
	require.Len(t, ws.Placements, 2)
	// Both courses need the single start; rooms must differ.
	assert.NotEqual(t, ws.Placements[0].Room, ws.Placements[1].Room)

	violations := ValidateSchedule(inst, expandAssignments(inst, ws.Placements))
	assert.Empty(t, violations)
}

func TestWarmStartOrdersByEnrollment(t *testing.T) {
	_, ws := buildWarmStart(t, twoCourseInput())

	// c1 has the larger enrollment and is placed first, taking the smaller
	// room that still fits it.
	require.Len(t, ws.Placements, 2)
	assert.Equal(t, 0, ws.Placements[0].Course)
	assert.Equal(t, 0, ws.Placements[0].Room)
	assert.Equal(t, 1, ws.Placements[1].Room)
}

func TestWarmStartPartialWhenNoRoomLeft(t *testing.T) {
	input := twoCourseInput()
	input.Classrooms = input.Classrooms[:1] // one room, both courses need the same start
	_, ws := buildWarmStart(t, input)

	assert.False(t, ws.Complete)
	assert.Len(t, ws.Placements, 1)
}

func TestWarmStartSharedInstructorSpreadsDays(t *testing.T) {
	input := twoCourseInput()
	input.TermConfig.Days = []string{"Mon", "Tue"}
	input.Courses[1].InstructorID = "i1" // same instructor, same single start per day
	inst, ws := buildWarmStart(t, input)

	require.True(t, ws.Complete)
	days := map[int]bool{}
	for _, p := range ws.Placements {
		days[p.Day] = true
	}
	assert.Len(t, days, 2)

	violations := ValidateSchedule(inst, expandAssignments(inst, ws.Placements))
	assert.Empty(t, violations)
}

func TestWarmStartFullTermMirrorsBlocks(t *testing.T) {
	input := baseInput()
	input.TermConfig.NumWeeks = 4
	inst, ws := buildWarmStart(t, input)

	require.True(t, ws.Complete)
	require.Len(t, ws.Placements, 2)
	first, second := ws.Placements[0], ws.Placements[1]
	assert.Equal(t, first.Day, second.Day)
	assert.Equal(t, first.Period, second.Period)
	assert.Equal(t, first.Room, second.Room)
	assert.NotEqual(t, first.Block, second.Block)

	violations := ValidateSchedule(inst, expandAssignments(inst, ws.Placements))
	assert.Empty(t, violations)
}

func TestWarmStartIsDeterministic(t *testing.T) {
	input := twoCourseInput()
	input.TermConfig.Days = []string{"Mon", "Tue", "Wed"}

	_, first := buildWarmStart(t, input)
	_, second := buildWarmStart(t, input)
	assert.Equal(t, first.Placements, second.Placements)
}
