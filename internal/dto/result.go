package dto

// Run statuses reported to the caller.
const (
	StatusOptimal           = "optimal"
	StatusTimeLimitFeasible = "time_limit_feasible"
	StatusInfeasible        = "infeasible"
	StatusError             = "error"
)

// Assignment is one scheduled session. Weeks and period starts are 0-based
// on the wire.
type Assignment struct {
	CourseID        string `json:"course_id"`
	CourseSessionID string `json:"course_session_id"`
	SessionNumber   int    `json:"session_number"`
	RoomID          string `json:"room_id"`
	Week            int    `json:"week"`
	Day             string `json:"day"`
	PeriodStart     int    `json:"period_start"`
	PeriodLength    int    `json:"period_length"`
	InstructorID    string `json:"instructor_id"`
}

// Schedule wraps the assignment list.
type Schedule struct {
	Assignments []Assignment `json:"assignments"`
}

// PenaltyBreakdown reports the weighted total of each soft constraint.
type PenaltyBreakdown struct {
	StudentConflicts      float64 `json:"s1_student_conflicts"`
	InstructorCompactness float64 `json:"s2_instructor_compactness"`
	Lunch                 float64 `json:"s3_lunch"`
}

// Total sums the weighted penalties.
func (p PenaltyBreakdown) Total() float64 {
	return p.StudentConflicts + p.InstructorCompactness + p.Lunch
}

// ScheduleResult is the outcome of one optimization run.
type ScheduleResult struct {
	RunID                 string           `json:"run_id"`
	Status                string           `json:"status"`
	ObjectiveValue        *float64         `json:"objective_value"`
	ImprovementSummary    string           `json:"improvement_summary,omitempty"`
	SoftConstraintSummary PenaltyBreakdown `json:"soft_constraint_summary"`
	Schedule              Schedule         `json:"schedule"`
	SolveTimeSeconds      float64          `json:"solve_time_seconds"`
	Error                 string           `json:"error,omitempty"`
	Diagnostics           map[string]any   `json:"diagnostics,omitempty"`
}
