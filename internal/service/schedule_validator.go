package service

import (
	"fmt"
	"sort"

	"github.com/camsched/course-opt-core/internal/dto"
	"github.com/camsched/course-opt-core/internal/models"
)

// ValidateSchedule checks an expanded schedule against the hard feasibility
// rules: room and instructor non-overlap, availability, capacity, session
// counts and week confinement, the per-day cap, duration fit and the
// full-term weekly-pattern consistency. It returns human-readable violations
// and is used both by tests and as a guard before reporting success.
func ValidateSchedule(inst *models.Instance, assignments []dto.Assignment) []string {
	var violations []string
	add := func(format string, a ...any) {
		violations = append(violations, fmt.Sprintf(format, a...))
	}

	type cell struct {
		week   int
		day    string
		period int
	}
	roomUse := make(map[string]map[cell]int)
	instructorUse := make(map[string]map[cell]int)
	perCourseDay := make(map[string]int)
	sessionTotal := make(map[string]int)
	patterns := make(map[string]map[int][]string) // course -> week -> sorted slot keys

	for _, a := range assignments {
		ci, ok := inst.CourseByID(a.CourseID)
		if !ok {
			add("assignment references unknown course %q", a.CourseID)
			continue
		}
		course := inst.Courses[ci]
		ri, ok := inst.RoomByID(a.RoomID)
		if !ok {
			add("assignment for %s references unknown room %q", a.CourseID, a.RoomID)
			continue
		}
		di, ok := inst.DayByLabel(a.Day)
		if !ok {
			add("assignment for %s references unknown day %q", a.CourseID, a.Day)
			continue
		}

		if a.PeriodStart+a.PeriodLength > inst.Term.NumPeriods {
			add("%s session %d does not fit in the day (start %d, length %d)", a.CourseID, a.SessionNumber, a.PeriodStart, a.PeriodLength)
		}
		if inst.Rooms[ri].Capacity < course.Enrollment {
			add("%s assigned to %s with capacity %d below enrollment %d", a.CourseID, a.RoomID, inst.Rooms[ri].Capacity, course.Enrollment)
		}
		week := a.Week + 1
		if week < course.WeekStart || week > course.WeekEnd {
			add("%s session %d scheduled in week %d outside its active range", a.CourseID, a.SessionNumber, a.Week)
		}

		instructor := inst.Instructors[course.Instructor]
		for t := a.PeriodStart + 1; t <= a.PeriodStart+a.PeriodLength; t++ {
			// Periods outside the day are already reported as not fitting.
			if t >= 1 && t <= inst.Term.NumPeriods && !instructor.Avail.At(di, t) {
				add("%s occupies %s period %d where instructor %s is unavailable", a.CourseID, a.Day, t-1, instructor.ID)
			}
			c := cell{week: a.Week, day: a.Day, period: t}
			if roomUse[a.RoomID] == nil {
				roomUse[a.RoomID] = make(map[cell]int)
			}
			roomUse[a.RoomID][c]++
			if roomUse[a.RoomID][c] == 2 {
				add("room %s double-booked in week %d, %s period %d", a.RoomID, a.Week, a.Day, t-1)
			}
			if instructorUse[instructor.ID] == nil {
				instructorUse[instructor.ID] = make(map[cell]int)
			}
			instructorUse[instructor.ID][c]++
			if instructorUse[instructor.ID][c] == 2 {
				add("instructor %s double-booked in week %d, %s period %d", instructor.ID, a.Week, a.Day, t-1)
			}
		}

		dayKey := fmt.Sprintf("%s|%d|%s", a.CourseID, a.Week, a.Day)
		perCourseDay[dayKey]++
		if perCourseDay[dayKey] == 2 {
			add("%s has more than one session in week %d on %s", a.CourseID, a.Week, a.Day)
		}
		sessionTotal[a.CourseID]++

		if patterns[a.CourseID] == nil {
			patterns[a.CourseID] = make(map[int][]string)
		}
		patterns[a.CourseID][a.Week] = append(patterns[a.CourseID][a.Week],
			fmt.Sprintf("%s@%d@%s", a.Day, a.PeriodStart, a.RoomID))
	}

	for _, course := range inst.Courses {
		if got := sessionTotal[course.ID]; got != course.TotalSessions {
			add("%s has %d sessions, want %d", course.ID, got, course.TotalSessions)
		}
		if course.Type != models.CourseFullTerm {
			continue
		}
		// Full-term weekly pattern must repeat across every active week.
		var reference []string
		for week := course.WeekStart; week <= course.WeekEnd; week++ {
			pattern := append([]string(nil), patterns[course.ID][week-1]...)
			sort.Strings(pattern)
			if reference == nil {
				reference = pattern
				continue
			}
			if !equalStrings(reference, pattern) {
				add("%s weekly pattern differs between weeks", course.ID)
				break
			}
		}
	}
	return violations
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
