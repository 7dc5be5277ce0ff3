package models

import "gonum.org/v1/gonum/mat"

// CourseType distinguishes full-term courses from the two half-term kinds.
type CourseType string

const (
	CourseFullTerm   CourseType = "full_term"
	CourseFirstHalf  CourseType = "first_half_term"
	CourseSecondHalf CourseType = "second_half_term"
)

// Valid reports whether the course type is one of the known kinds.
func (t CourseType) Valid() bool {
	switch t {
	case CourseFullTerm, CourseFirstHalf, CourseSecondHalf:
		return true
	}
	return false
}

// SessionMinutes returns the contiguous meeting length for the course type:
// 90 minutes weekly for full-term courses, 180 for half-term ones.
func (t CourseType) SessionMinutes() int {
	if t == CourseFullTerm {
		return 90
	}
	return 180
}

// Block identifiers for the half-term decomposition.
const (
	Block1 = 1
	Block2 = 2
)

// TermConfig is the normalized calendar of one term. Periods are 1-based
// internally; the wire format is 0-based and converted at the boundary.
type TermConfig struct {
	NumWeeks            int
	Days                []string
	DayStartMinutes     int
	DayEndMinutes       int
	PeriodLengthMinutes int

	// NumPeriods is the number of whole periods fitting into a day.
	NumPeriods int
	// LunchPeriods lists the 1-based periods intersecting [12:00, 12:30).
	LunchPeriods []int
	// HalfPoint splits the term: block 1 covers weeks 1..HalfPoint, block 2
	// the remainder.
	HalfPoint int
}

// Blocks returns the non-empty blocks of the term in order.
func (t TermConfig) Blocks() []int {
	var blocks []int
	if t.HalfPoint >= 1 {
		blocks = append(blocks, Block1)
	}
	if t.NumWeeks > t.HalfPoint {
		blocks = append(blocks, Block2)
	}
	return blocks
}

// BlockWeeks returns the inclusive 1-based week range of a block.
func (t TermConfig) BlockWeeks(block int) (first, last int) {
	if block == Block1 {
		return 1, t.HalfPoint
	}
	return t.HalfPoint + 1, t.NumWeeks
}

// BlockWeight is the number of weeks in the block; it scales every soft
// penalty arising in that block.
func (t TermConfig) BlockWeight(block int) int {
	first, last := t.BlockWeeks(block)
	if last < first {
		return 0
	}
	return last - first + 1
}

// BlockOfWeek maps a 1-based week to its block.
func (t TermConfig) BlockOfWeek(week int) int {
	if week <= t.HalfPoint {
		return Block1
	}
	return Block2
}

// IsLunchPeriod reports whether the 1-based period is a lunch period.
func (t TermConfig) IsLunchPeriod(period int) bool {
	for _, p := range t.LunchPeriods {
		if p == period {
			return true
		}
	}
	return false
}

// Classroom is one schedulable room.
type Classroom struct {
	ID       string
	Name     string
	Capacity int
}

// Availability is a per-instructor (day, period) boolean grid.
type Availability struct {
	days    int
	periods int
	grid    []bool
}

// NewAvailability builds a grid with every cell set to the default value.
func NewAvailability(days, periods int, defaultValue bool) Availability {
	grid := make([]bool, days*periods)
	if defaultValue {
		for i := range grid {
			grid[i] = true
		}
	}
	return Availability{days: days, periods: periods, grid: grid}
}

// Set marks the cell for the 0-based day and 1-based period.
func (a Availability) Set(day, period int, v bool) {
	a.grid[day*a.periods+period-1] = v
}

// At reports the cell for the 0-based day and 1-based period.
func (a Availability) At(day, period int) bool {
	return a.grid[day*a.periods+period-1]
}

// Instructor is one teaching staff member with availability and preferences.
type Instructor struct {
	ID   string
	Name string
	// BackToBackPref weights the symmetric adjacency metric of the
	// instructor's daily sessions.
	BackToBackPref int
	// AllowLunchTeaching disables the lunch penalty when true.
	AllowLunchTeaching bool
	Avail              Availability
}

// LunchPenalty is the per-lunch-period penalty weight of the instructor.
func (i Instructor) LunchPenalty() float64 {
	if i.AllowLunchTeaching {
		return 0
	}
	return 1
}

// AvailableRange reports whether the instructor is free on every period of
// [period, period+length-1] on the given day.
func (i Instructor) AvailableRange(day, period, length int) bool {
	for t := period; t < period+length; t++ {
		if !i.Avail.At(day, t) {
			return false
		}
	}
	return true
}

// Course is one course with its derived scheduling quantities.
type Course struct {
	ID         string
	Name       string
	Instructor int
	Enrollment int
	Type       CourseType

	// PeriodsPerSession is ceil(session minutes / period length).
	PeriodsPerSession int
	// TotalSessions over the whole term, one per active week.
	TotalSessions int
	// WeekStart and WeekEnd bound the active weeks, 1-based inclusive.
	WeekStart int
	WeekEnd   int
	// SessionsPerWeek is the per-block weekly quota.
	SessionsPerWeek int
	// Blocks lists the half-term blocks the course is active in.
	Blocks []int
}

// ActiveWeeks is the number of weeks the course meets.
func (c Course) ActiveWeeks() int { return c.WeekEnd - c.WeekStart + 1 }

// InBlock reports whether the course is active in the block.
func (c Course) InBlock(block int) bool {
	for _, b := range c.Blocks {
		if b == block {
			return true
		}
	}
	return false
}

// SpansBothBlocks reports whether the weekly pattern must repeat across the
// half-term split.
func (c Course) SpansBothBlocks() bool { return len(c.Blocks) == 2 }

// Weights scales the three soft objectives.
type Weights struct {
	StudentConflict       float64
	InstructorCompactness float64
	PreferredSlots        float64
}

// Instance is a fully normalized scheduling problem. It is built once per
// optimization run and treated as read-only afterwards.
type Instance struct {
	Term        TermConfig
	Rooms       []Classroom
	Instructors []Instructor
	Courses     []Course
	// StudentConflicts[i][j] counts students enrolled in both course i and j.
	StudentConflicts *mat.SymDense
	Weights          Weights

	courseIndex     map[string]int
	roomIndex       map[string]int
	instructorIndex map[string]int
}

// NewInstance finalizes an instance by building the id lookup tables.
func NewInstance(term TermConfig, rooms []Classroom, instructors []Instructor, courses []Course, conflicts *mat.SymDense, weights Weights) *Instance {
	inst := &Instance{
		Term:             term,
		Rooms:            rooms,
		Instructors:      instructors,
		Courses:          courses,
		StudentConflicts: conflicts,
		Weights:          weights,
		courseIndex:      make(map[string]int, len(courses)),
		roomIndex:        make(map[string]int, len(rooms)),
		instructorIndex:  make(map[string]int, len(instructors)),
	}
	for i, c := range courses {
		inst.courseIndex[c.ID] = i
	}
	for i, r := range rooms {
		inst.roomIndex[r.ID] = i
	}
	for i, ins := range instructors {
		inst.instructorIndex[ins.ID] = i
	}
	return inst
}

// CourseByID resolves a course id to its index.
func (inst *Instance) CourseByID(id string) (int, bool) {
	i, ok := inst.courseIndex[id]
	return i, ok
}

// RoomByID resolves a room id to its index.
func (inst *Instance) RoomByID(id string) (int, bool) {
	i, ok := inst.roomIndex[id]
	return i, ok
}

// InstructorByID resolves an instructor id to its index.
func (inst *Instance) InstructorByID(id string) (int, bool) {
	i, ok := inst.instructorIndex[id]
	return i, ok
}

// DayByLabel resolves a day label to its index.
func (inst *Instance) DayByLabel(label string) (int, bool) {
	for i, d := range inst.Term.Days {
		if d == label {
			return i, true
		}
	}
	return -1, false
}

// ConflictCount returns the number of students shared by two courses.
func (inst *Instance) ConflictCount(c1, c2 int) int {
	if inst.StudentConflicts == nil {
		return 0
	}
	return int(inst.StudentConflicts.At(c1, c2))
}
