package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

func TestTermBlocks(t *testing.T) {
	tests := []struct {
		name      string
		weeks     int
		blocks    []int
		weights   map[int]int
		halfPoint int
	}{
		{name: "single week", weeks: 1, blocks: []int{Block2}, weights: map[int]int{Block2: 1}, halfPoint: 0},
		{name: "even term", weeks: 10, blocks: []int{Block1, Block2}, weights: map[int]int{Block1: 5, Block2: 5}, halfPoint: 5},
		{name: "odd term", weeks: 9, blocks: []int{Block1, Block2}, weights: map[int]int{Block1: 4, Block2: 5}, halfPoint: 4},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			term := TermConfig{NumWeeks: tc.weeks, HalfPoint: tc.weeks / 2}
			assert.Equal(t, tc.halfPoint, term.HalfPoint)
			assert.Equal(t, tc.blocks, term.Blocks())
			for b, w := range tc.weights {
				assert.Equal(t, w, term.BlockWeight(b), "block %d", b)
			}
		})
	}
}

func TestTermBlockOfWeek(t *testing.T) {
	term := TermConfig{NumWeeks: 4, HalfPoint: 2}
	assert.Equal(t, Block1, term.BlockOfWeek(1))
	assert.Equal(t, Block1, term.BlockOfWeek(2))
	assert.Equal(t, Block2, term.BlockOfWeek(3))
	assert.Equal(t, Block2, term.BlockOfWeek(4))

	first, last := term.BlockWeeks(Block2)
	assert.Equal(t, 3, first)
	assert.Equal(t, 4, last)
}

func TestAvailabilityDefaults(t *testing.T) {
	open := NewAvailability(2, 3, true)
	assert.True(t, open.At(1, 3))

	closed := NewAvailability(2, 3, false)
	assert.False(t, closed.At(0, 1))
	closed.Set(0, 1, true)
	assert.True(t, closed.At(0, 1))
	assert.False(t, closed.At(0, 2))
}

func TestInstructorAvailableRange(t *testing.T) {
	avail := NewAvailability(1, 4, true)
	avail.Set(0, 3, false)
	instructor := Instructor{Avail: avail}

	assert.True(t, instructor.AvailableRange(0, 1, 2))
	assert.False(t, instructor.AvailableRange(0, 2, 2))
	assert.False(t, instructor.AvailableRange(0, 3, 1))
}

func TestCourseTypeDerivations(t *testing.T) {
	assert.Equal(t, 90, CourseFullTerm.SessionMinutes())
	assert.Equal(t, 180, CourseFirstHalf.SessionMinutes())
	assert.True(t, CourseSecondHalf.Valid())
	assert.False(t, CourseType("weekly").Valid())
}

func TestLunchPenalty(t *testing.T) {
	assert.Equal(t, 1.0, Instructor{}.LunchPenalty())
	assert.Equal(t, 0.0, Instructor{AllowLunchTeaching: true}.LunchPenalty())
}

func TestInstanceLookups(t *testing.T) {
	term := TermConfig{NumWeeks: 2, HalfPoint: 1, Days: []string{"Mon", "Tue"}}
	rooms := []Classroom{{ID: "r1", Capacity: 30}}
	instructors := []Instructor{{ID: "i1"}}
	courses := []Course{{ID: "c1", Instructor: 0}, {ID: "c2", Instructor: 0}}
	conflicts := mat.NewSymDense(2, nil)
	conflicts.SetSym(0, 1, 3)

	inst := NewInstance(term, rooms, instructors, courses, conflicts, Weights{})

	ci, ok := inst.CourseByID("c2")
	require.True(t, ok)
	assert.Equal(t, 1, ci)
	_, ok = inst.CourseByID("missing")
	assert.False(t, ok)

	di, ok := inst.DayByLabel("Tue")
	require.True(t, ok)
	assert.Equal(t, 1, di)

	assert.Equal(t, 3, inst.ConflictCount(0, 1))
	assert.Equal(t, 3, inst.ConflictCount(1, 0))
	assert.Equal(t, 0, inst.ConflictCount(0, 0))
}

func TestDomainContains(t *testing.T) {
	p := Placement{Course: 0, Block: Block1, Day: 1, Period: 2, Room: 0}
	d := NewDomain([]Placement{p})
	assert.True(t, d.Contains(p))
	p.Period = 3
	assert.False(t, d.Contains(p))
	assert.Equal(t, 1, d.Size())
}
