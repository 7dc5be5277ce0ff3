package dto

// Query constraint types accepted by the what-if analyzer. The first six are
// encoded directly; the remaining kinds expand into the direct ones before
// the model is built.
const (
	QueryEnforceTimeSlot   = "enforce_time_slot"
	QueryVetoTimeSlot      = "veto_time_slot"
	QueryVetoDay           = "veto_day"
	QueryEnforceRoom       = "enforce_room"
	QueryEnforceBeforeTime = "enforce_before_time"
	QueryEnforceAfterTime  = "enforce_after_time"

	QueryEnforceNoLunch    = "enforce_no_lunch"
	QueryVetoInstructorDay = "veto_instructor_day"
	QuerySwapTimeSlots     = "swap_time_slots"
)

// What-if statuses reported to the caller.
const (
	StatusFeasibleQuery   = "feasible_query"
	StatusInfeasibleQuery = "infeasible_query"
	StatusUDSPError       = "udsp_error"
)

// QueryConstraint is one user-imposed constraint of a what-if question.
// Weeks and period indexes are 0-based on the wire.
type QueryConstraint struct {
	Type         string `json:"type" validate:"required"`
	CourseID     string `json:"course_id,omitempty"`
	InstructorID string `json:"instructor_id,omitempty"`
	Week         *int   `json:"week,omitempty"`
	Day          string `json:"day,omitempty"`
	PeriodStart  *int   `json:"period_start,omitempty"`
	PeriodEnd    *int   `json:"period_end,omitempty"`
	RoomID       string `json:"room_id,omitempty"`
	CourseID2    string `json:"course_id_2,omitempty"`
}

// WhatIfRequest asks whether the queries admit an alternative schedule no
// worse than the original optimum. The baseline objective comes from a
// stored run, from an explicit value, or, when neither is given, from
// solving the input first.
type WhatIfRequest struct {
	Queries           []QueryConstraint `json:"queries" validate:"required,min=1,dive"`
	BaselineRunID     string            `json:"baseline_run_id,omitempty"`
	OriginalObjective *float64          `json:"original_objective,omitempty"`
}

// IISItem attributes infeasibility to one tagged constraint.
type IISItem struct {
	Tag         string `json:"tag"`
	Kind        string `json:"kind"`
	QueryIndex  *int   `json:"query_index,omitempty"`
	Description string `json:"description"`
}

// WhatIfResult is the outcome of a counterfactual analysis.
type WhatIfResult struct {
	Status               string         `json:"status"`
	AlternativeObjective *float64       `json:"alternative_objective,omitempty"`
	ObjectiveDifference  *float64       `json:"objective_difference,omitempty"`
	Schedule             *Schedule      `json:"schedule,omitempty"`
	IIS                  []IISItem      `json:"iis,omitempty"`
	Interpretation       string         `json:"interpretation,omitempty"`
	Error                string         `json:"error,omitempty"`
	Diagnostics          map[string]any `json:"diagnostics,omitempty"`
}
