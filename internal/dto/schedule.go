package dto

// TermConfigInput is the calendar section of the scheduling input.
type TermConfigInput struct {
	NumWeeks            int      `json:"num_weeks" validate:"required,min=1"`
	Days                []string `json:"days" validate:"required,min=1,dive,required"`
	DayStartTime        string   `json:"day_start_time" validate:"required"`
	DayEndTime          string   `json:"day_end_time" validate:"required"`
	PeriodLengthMinutes int      `json:"period_length_minutes" validate:"required,min=1"`
}

// ClassroomInput describes one room.
type ClassroomInput struct {
	ID       string `json:"id" validate:"required"`
	Name     string `json:"name"`
	Capacity int    `json:"capacity" validate:"min=0"`
}

// AvailabilitySlotInput marks one (day, period) an instructor can teach.
// Period indexes are 0-based on the wire.
type AvailabilitySlotInput struct {
	Day         string `json:"day" validate:"required"`
	PeriodIndex int    `json:"period_index" validate:"min=0"`
}

// InstructorInput describes one instructor. An absent availability list means
// fully available; a non-empty list flips the default to unavailable with the
// listed slots available.
type InstructorInput struct {
	ID                   string                  `json:"id" validate:"required"`
	Name                 string                  `json:"name"`
	Availability         []AvailabilitySlotInput `json:"availability,omitempty" validate:"omitempty,dive"`
	BackToBackPreference int                     `json:"back_to_back_preference" validate:"min=0"`
	AllowLunchTeaching   bool                    `json:"allow_lunch_teaching"`
}

// CourseInput describes one course to schedule.
type CourseInput struct {
	ID                 string `json:"id" validate:"required"`
	Name               string `json:"name"`
	InstructorID       string `json:"instructor_id" validate:"required"`
	ExpectedEnrollment int    `json:"expected_enrollment" validate:"min=0"`
	Type               string `json:"type" validate:"required,oneof=full_term first_half_term second_half_term"`
}

// StudentInput lists one student's enrollments; pairs of co-enrolled courses
// feed the student-conflict matrix.
type StudentInput struct {
	EnrolledCourseIDs []string `json:"enrolled_course_ids"`
}

// ConflictWeightsInput scales the three soft objectives.
type ConflictWeightsInput struct {
	GlobalStudentConflictWeight float64 `json:"global_student_conflict_weight" validate:"min=0"`
	InstructorCompactnessWeight float64 `json:"instructor_compactness_weight" validate:"min=0"`
	PreferredTimeSlotsWeight    float64 `json:"preferred_time_slots_weight" validate:"min=0"`
}

// ScheduleInput is the full scheduling problem as received on the wire.
type ScheduleInput struct {
	TermConfig      TermConfigInput      `json:"term_config" validate:"required"`
	Classrooms      []ClassroomInput     `json:"classrooms" validate:"required,min=1,dive"`
	Instructors     []InstructorInput    `json:"instructors" validate:"required,min=1,dive"`
	Courses         []CourseInput        `json:"courses" validate:"required,min=1,dive"`
	Students        []StudentInput       `json:"students" validate:"omitempty,dive"`
	ConflictWeights ConflictWeightsInput `json:"conflict_weights"`
}
