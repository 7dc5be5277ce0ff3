package service

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
	"gonum.org/v1/gonum/mat"

	"github.com/camsched/course-opt-core/internal/dto"
	"github.com/camsched/course-opt-core/internal/models"
	appErrors "github.com/camsched/course-opt-core/pkg/errors"
)

// The lunch window [12:00, 12:30) in minutes from midnight.
const (
	lunchStartMinutes = 12 * 60
	lunchEndMinutes   = 12*60 + 30
)

// NormalizerService parses the wire input into an immutable problem instance
// and computes the derived quantities every downstream component relies on.
type NormalizerService struct {
	validator *validator.Validate
	logger    *zap.Logger
}

// NewNormalizerService wires the normalizer.
func NewNormalizerService(validate *validator.Validate, logger *zap.Logger) *NormalizerService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NormalizerService{validator: validate, logger: logger}
}

// Normalize builds the problem instance. Period indexes are converted from
// the 0-based wire convention to the 1-based internal one here.
func (s *NormalizerService) Normalize(input dto.ScheduleInput) (*models.Instance, error) {
	if err := s.validator.Struct(input); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInvalidInput.Code, appErrors.ErrInvalidInput.Status, "invalid scheduling input")
	}

	term, err := s.normalizeTerm(input.TermConfig)
	if err != nil {
		return nil, err
	}

	rooms := make([]models.Classroom, len(input.Classrooms))
	roomSeen := make(map[string]bool, len(input.Classrooms))
	for i, r := range input.Classrooms {
		if roomSeen[r.ID] {
			return nil, appErrors.Clone(appErrors.ErrInvalidInput, fmt.Sprintf("duplicate classroom id %q", r.ID))
		}
		roomSeen[r.ID] = true
		rooms[i] = models.Classroom{ID: r.ID, Name: r.Name, Capacity: r.Capacity}
	}

	dayIndex := make(map[string]int, len(term.Days))
	for i, d := range term.Days {
		dayIndex[d] = i
	}

	instructors, err := s.normalizeInstructors(input.Instructors, term, dayIndex)
	if err != nil {
		return nil, err
	}
	instructorIndex := make(map[string]int, len(instructors))
	for i, ins := range instructors {
		instructorIndex[ins.ID] = i
	}

	courses, err := s.normalizeCourses(input.Courses, term, instructorIndex)
	if err != nil {
		return nil, err
	}
	courseIndex := make(map[string]int, len(courses))
	for i, c := range courses {
		courseIndex[c.ID] = i
	}

	conflicts, err := buildConflictMatrix(input.Students, courseIndex)
	if err != nil {
		return nil, err
	}

	weights := models.Weights{
		StudentConflict:       input.ConflictWeights.GlobalStudentConflictWeight,
		InstructorCompactness: input.ConflictWeights.InstructorCompactnessWeight,
		PreferredSlots:        input.ConflictWeights.PreferredTimeSlotsWeight,
	}

	inst := models.NewInstance(term, rooms, instructors, courses, conflicts, weights)
	s.logger.Debug("input normalized",
		zap.Int("courses", len(courses)),
		zap.Int("instructors", len(instructors)),
		zap.Int("rooms", len(rooms)),
		zap.Int("periods", term.NumPeriods),
		zap.Ints("lunch_periods", term.LunchPeriods),
	)
	return inst, nil
}

func (s *NormalizerService) normalizeTerm(tc dto.TermConfigInput) (models.TermConfig, error) {
	var term models.TermConfig

	seen := make(map[string]bool, len(tc.Days))
	for _, d := range tc.Days {
		if seen[d] {
			return term, appErrors.Clone(appErrors.ErrInvalidInput, fmt.Sprintf("duplicate day label %q", d))
		}
		seen[d] = true
	}

	start, err := parseClock(tc.DayStartTime)
	if err != nil {
		return term, appErrors.Clone(appErrors.ErrInvalidInput, fmt.Sprintf("invalid day_start_time: %v", err))
	}
	end, err := parseClock(tc.DayEndTime)
	if err != nil {
		return term, appErrors.Clone(appErrors.ErrInvalidInput, fmt.Sprintf("invalid day_end_time: %v", err))
	}
	if end <= start {
		return term, appErrors.Clone(appErrors.ErrInvalidInput, "day time range is empty")
	}

	numPeriods := (end - start) / tc.PeriodLengthMinutes
	if numPeriods < 1 {
		return term, appErrors.Clone(appErrors.ErrInvalidInput, "day time range is shorter than one period")
	}

	term = models.TermConfig{
		NumWeeks:            tc.NumWeeks,
		Days:                append([]string(nil), tc.Days...),
		DayStartMinutes:     start,
		DayEndMinutes:       end,
		PeriodLengthMinutes: tc.PeriodLengthMinutes,
		NumPeriods:          numPeriods,
		HalfPoint:           tc.NumWeeks / 2,
	}
	for p := 1; p <= numPeriods; p++ {
		pStart := start + (p-1)*tc.PeriodLengthMinutes
		pEnd := pStart + tc.PeriodLengthMinutes
		if pEnd > lunchStartMinutes && pStart < lunchEndMinutes {
			term.LunchPeriods = append(term.LunchPeriods, p)
		}
	}
	return term, nil
}

func (s *NormalizerService) normalizeInstructors(in []dto.InstructorInput, term models.TermConfig, dayIndex map[string]int) ([]models.Instructor, error) {
	instructors := make([]models.Instructor, len(in))
	seen := make(map[string]bool, len(in))
	for i, ins := range in {
		if seen[ins.ID] {
			return nil, appErrors.Clone(appErrors.ErrInvalidInput, fmt.Sprintf("duplicate instructor id %q", ins.ID))
		}
		seen[ins.ID] = true

		// Listing any availability slots flips the default from available to
		// unavailable, with the listed slots opened back up.
		avail := models.NewAvailability(len(term.Days), term.NumPeriods, len(ins.Availability) == 0)
		for _, slot := range ins.Availability {
			d, ok := dayIndex[slot.Day]
			if !ok {
				return nil, appErrors.Clone(appErrors.ErrInvalidInput, fmt.Sprintf("instructor %q availability references unknown day %q", ins.ID, slot.Day))
			}
			if slot.PeriodIndex < 0 || slot.PeriodIndex >= term.NumPeriods {
				return nil, appErrors.Clone(appErrors.ErrInvalidInput, fmt.Sprintf("instructor %q availability period index %d out of range", ins.ID, slot.PeriodIndex))
			}
			avail.Set(d, slot.PeriodIndex+1, true)
		}
		instructors[i] = models.Instructor{
			ID:                 ins.ID,
			Name:               ins.Name,
			BackToBackPref:     ins.BackToBackPreference,
			AllowLunchTeaching: ins.AllowLunchTeaching,
			Avail:              avail,
		}
	}
	return instructors, nil
}

func (s *NormalizerService) normalizeCourses(in []dto.CourseInput, term models.TermConfig, instructorIndex map[string]int) ([]models.Course, error) {
	courses := make([]models.Course, len(in))
	seen := make(map[string]bool, len(in))
	for i, c := range in {
		if seen[c.ID] {
			return nil, appErrors.Clone(appErrors.ErrInvalidInput, fmt.Sprintf("duplicate course id %q", c.ID))
		}
		seen[c.ID] = true

		instr, ok := instructorIndex[c.InstructorID]
		if !ok {
			return nil, appErrors.Clone(appErrors.ErrInvalidInput, fmt.Sprintf("course %q references unknown instructor %q", c.ID, c.InstructorID))
		}
		ctype := models.CourseType(c.Type)
		if !ctype.Valid() {
			return nil, appErrors.Clone(appErrors.ErrInvalidInput, fmt.Sprintf("course %q has unknown type %q", c.ID, c.Type))
		}

		weekStart, weekEnd := 1, term.NumWeeks
		switch ctype {
		case models.CourseFirstHalf:
			weekEnd = term.HalfPoint
		case models.CourseSecondHalf:
			weekStart = term.HalfPoint + 1
		}
		if weekEnd < weekStart {
			return nil, appErrors.Clone(appErrors.ErrInvalidInput, fmt.Sprintf("course %q: term is too short for a %s course", c.ID, c.Type))
		}
		activeWeeks := weekEnd - weekStart + 1
		totalSessions := activeWeeks

		course := models.Course{
			ID:                c.ID,
			Name:              c.Name,
			Instructor:        instr,
			Enrollment:        c.ExpectedEnrollment,
			Type:              ctype,
			PeriodsPerSession: ceilDiv(ctype.SessionMinutes(), term.PeriodLengthMinutes),
			TotalSessions:     totalSessions,
			WeekStart:         weekStart,
			WeekEnd:           weekEnd,
			SessionsPerWeek:   ceilDiv(totalSessions, activeWeeks),
		}
		for _, b := range term.Blocks() {
			first, last := term.BlockWeeks(b)
			if weekStart <= last && weekEnd >= first {
				course.Blocks = append(course.Blocks, b)
			}
		}
		courses[i] = course
	}
	return courses, nil
}

// buildConflictMatrix counts co-enrollments over every unordered course pair.
func buildConflictMatrix(students []dto.StudentInput, courseIndex map[string]int) (*mat.SymDense, error) {
	n := len(courseIndex)
	conflicts := mat.NewSymDense(n, nil)
	for si, student := range students {
		ids := student.EnrolledCourseIDs
		indexes := make([]int, 0, len(ids))
		dedup := make(map[int]bool, len(ids))
		for _, id := range ids {
			ci, ok := courseIndex[id]
			if !ok {
				return nil, appErrors.Clone(appErrors.ErrInvalidInput, fmt.Sprintf("student %d enrolled in unknown course %q", si, id))
			}
			if !dedup[ci] {
				dedup[ci] = true
				indexes = append(indexes, ci)
			}
		}
		for a := 0; a < len(indexes); a++ {
			for b := a + 1; b < len(indexes); b++ {
				i, j := indexes[a], indexes[b]
				conflicts.SetSym(i, j, conflicts.At(i, j)+1)
			}
		}
	}
	return conflicts, nil
}

func parseClock(raw string) (int, error) {
	parts := strings.SplitN(strings.TrimSpace(raw), ":", 2)
	if len(parts) != 2 {
		return 0, fmt.Errorf("want HH:MM, got %q", raw)
	}
	hour, err := strconv.Atoi(parts[0])
	if err != nil || hour < 0 || hour > 23 {
		return 0, fmt.Errorf("bad hour in %q", raw)
	}
	minute, err := strconv.Atoi(parts[1])
	if err != nil || minute < 0 || minute > 59 {
		return 0, fmt.Errorf("bad minute in %q", raw)
	}
	return hour*60 + minute, nil
}

func ceilDiv(a, b int) int {
	return (a + b - 1) / b
}
