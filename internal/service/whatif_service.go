package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/camsched/course-opt-core/internal/dto"
	"github.com/camsched/course-opt-core/internal/models"
	"github.com/camsched/course-opt-core/pkg/config"
	appErrors "github.com/camsched/course-opt-core/pkg/errors"
	"github.com/camsched/course-opt-core/pkg/milp"
)

const minimalityTag = "minimality"

// WhatIfService answers counterfactual queries by re-optimizing the full
// model with the user constraints appended and the objective bounded by the
// original optimum. Infeasibility is explained through conflict-set
// extraction over the appended constraints.
type WhatIfService struct {
	optimizer  *OptimizerService
	normalizer *NormalizerService
	pruner     *DomainPruner
	evaluator  *ScoreEvaluator
	builder    *ModelBuilder
	solver     milp.Solver
	solverCfg  config.SolverConfig
	whatifCfg  config.WhatIfConfig
	runs       *RunStore
	validator  *validator.Validate
	logger     *zap.Logger
}

// NewWhatIfService wires the analyzer.
func NewWhatIfService(
	optimizer *OptimizerService,
	solver milp.Solver,
	solverCfg config.SolverConfig,
	whatifCfg config.WhatIfConfig,
	runs *RunStore,
	validate *validator.Validate,
	logger *zap.Logger,
) *WhatIfService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &WhatIfService{
		optimizer:  optimizer,
		normalizer: NewNormalizerService(validate, logger),
		pruner:     NewDomainPruner(logger),
		evaluator:  NewScoreEvaluator(),
		builder:    NewModelBuilder(logger),
		solver:     solver,
		solverCfg:  solverCfg,
		whatifCfg:  whatifCfg,
		runs:       runs,
		validator:  validate,
		logger:     logger,
	}
}

// encodedQuery is one direct constraint after id resolution and expansion.
// Weeks and periods are 1-based internally; zero means unspecified.
type encodedQuery struct {
	index     int
	typ       string
	course    int
	day       int
	week      int
	period    int
	periodEnd int
	room      int
	desc      string
}

// Analyze runs the UDSP construction. The error return covers invalid
// requests and a baseline that cannot be resolved (unknown run, baseline
// solve error or infeasible baseline); outcomes of the what-if solve itself
// are folded into the result.
func (s *WhatIfService) Analyze(ctx context.Context, input dto.ScheduleInput, req dto.WhatIfRequest) (*dto.WhatIfResult, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid what-if request")
	}

	inst, err := s.normalizer.Normalize(input)
	if err != nil {
		return nil, err
	}

	original, baseline, err := s.baseline(ctx, input, req)
	if err != nil {
		return nil, err
	}

	queries, err := s.translateQueries(inst, req.Queries, baseline)
	if err != nil {
		return nil, err
	}
	if err := validateQueryConsistency(queries, inst); err != nil {
		return nil, err
	}

	domain := s.pruner.Build(inst)
	bm, err := s.builder.Build(inst, domain, nil)
	if err != nil {
		return &dto.WhatIfResult{Status: dto.StatusUDSPError, Error: err.Error()}, nil
	}

	tags := s.applyQueries(bm, domain, queries)
	bound := original + objectiveSlack(original)
	bm.Model.AddLessOrEqual(bm.Objective, bound).WithTag(minimalityTag).WithName(minimalityTag)
	tags = append(tags, minimalityTag)

	params := milp.Params{
		TimeLimit:        s.solverCfg.TimeLimit,
		Threads:          s.solverCfg.Threads,
		ObjectiveScale:   s.solverCfg.ObjectiveScale,
		Presolve:         true,
		FocusFeasibility: true,
	}
	sol, err := s.solver.Solve(ctx, bm.Model, params)
	if err != nil {
		s.logger.Error("what-if solve failed", zap.Error(err))
		return &dto.WhatIfResult{Status: dto.StatusUDSPError, Error: err.Error()}, nil
	}

	switch {
	case sol.Status.HasValues():
		placements := extractPlacements(domain, bm, sol)
		alternative := s.evaluator.Total(inst, placements)
		difference := alternative - original
		schedule := &dto.Schedule{Assignments: expandAssignments(inst, placements)}
		return &dto.WhatIfResult{
			Status:               dto.StatusFeasibleQuery,
			AlternativeObjective: &alternative,
			ObjectiveDifference:  &difference,
			Schedule:             schedule,
			Interpretation:       fmt.Sprintf("the requested changes are achievable with objective %.4f (difference %.4f)", alternative, difference),
		}, nil
	case sol.Status == milp.StatusInfeasible || sol.Status == milp.StatusNoSolution:
		return s.explainInfeasibility(ctx, bm, queries, tags, params, sol.Status), nil
	default:
		return &dto.WhatIfResult{Status: dto.StatusUDSPError, Error: "solver returned an inconclusive status"}, nil
	}
}

// baseline resolves the original objective and, when available, the original
// schedule (needed by swap queries).
func (s *WhatIfService) baseline(ctx context.Context, input dto.ScheduleInput, req dto.WhatIfRequest) (float64, *dto.Schedule, error) {
	if req.BaselineRunID != "" {
		if s.runs != nil {
			if record, ok := s.runs.Get(req.BaselineRunID); ok {
				return record.Objective, &record.Result.Schedule, nil
			}
		}
		return 0, nil, appErrors.Clone(appErrors.ErrNotFound, fmt.Sprintf("baseline run %q not found or expired", req.BaselineRunID))
	}
	if req.OriginalObjective != nil {
		return *req.OriginalObjective, nil, nil
	}

	result, err := s.optimizer.Solve(ctx, input)
	if err != nil {
		return 0, nil, err
	}
	if result.ObjectiveValue == nil {
		return 0, nil, appErrors.Clone(appErrors.ErrInfeasible, "baseline problem has no feasible schedule to compare against")
	}
	return *result.ObjectiveValue, &result.Schedule, nil
}

// translateQueries resolves ids and expands the compound query kinds into
// direct ones, preserving the originating query index for blame attribution.
func (s *WhatIfService) translateQueries(inst *models.Instance, queries []dto.QueryConstraint, baseline *dto.Schedule) ([]encodedQuery, error) {
	var out []encodedQuery
	for qi, q := range queries {
		switch q.Type {
		case dto.QueryEnforceTimeSlot, dto.QueryVetoTimeSlot, dto.QueryVetoDay,
			dto.QueryEnforceRoom, dto.QueryEnforceBeforeTime, dto.QueryEnforceAfterTime:
			enc, err := s.encodeDirect(inst, qi, q)
			if err != nil {
				return nil, err
			}
			out = append(out, enc)

		case dto.QueryEnforceNoLunch:
			ci, err := resolveCourse(inst, qi, q.CourseID)
			if err != nil {
				return nil, err
			}
			for d := range inst.Term.Days {
				for _, lp := range inst.Term.LunchPeriods {
					out = append(out, encodedQuery{
						index: qi, typ: dto.QueryVetoTimeSlot, course: ci, day: d, period: lp, room: -1,
						desc: fmt.Sprintf("keep %s out of lunch periods", q.CourseID),
					})
				}
			}

		case dto.QueryVetoInstructorDay:
			ii, ok := inst.InstructorByID(q.InstructorID)
			if !ok {
				return nil, queryErr(qi, "unknown instructor id %q", q.InstructorID)
			}
			d, err := resolveDay(inst, qi, q.Day)
			if err != nil {
				return nil, err
			}
			found := false
			for ci, course := range inst.Courses {
				if course.Instructor != ii {
					continue
				}
				found = true
				out = append(out, encodedQuery{
					index: qi, typ: dto.QueryVetoDay, course: ci, day: d, room: -1,
					desc: fmt.Sprintf("keep instructor %s off %s", q.InstructorID, q.Day),
				})
			}
			if !found {
				return nil, queryErr(qi, "no courses found for instructor %q", q.InstructorID)
			}

		case dto.QuerySwapTimeSlots:
			swapped, err := s.expandSwap(inst, qi, q, baseline)
			if err != nil {
				return nil, err
			}
			out = append(out, swapped...)

		default:
			return nil, queryErr(qi, "unknown query type %q", q.Type)
		}
	}
	return out, nil
}

func (s *WhatIfService) encodeDirect(inst *models.Instance, qi int, q dto.QueryConstraint) (encodedQuery, error) {
	enc := encodedQuery{index: qi, typ: q.Type, day: -1, room: -1, desc: describeQuery(q)}

	ci, err := resolveCourse(inst, qi, q.CourseID)
	if err != nil {
		return enc, err
	}
	enc.course = ci

	if q.Day != "" {
		if enc.day, err = resolveDay(inst, qi, q.Day); err != nil {
			return enc, err
		}
	}
	if q.Week != nil {
		week := *q.Week + 1
		if week < 1 || week > inst.Term.NumWeeks {
			return enc, queryErr(qi, "week %d out of range", *q.Week)
		}
		enc.week = week
	}
	if q.PeriodStart != nil {
		period := *q.PeriodStart + 1
		if period < 1 || period > inst.Term.NumPeriods {
			return enc, queryErr(qi, "period_start %d out of range", *q.PeriodStart)
		}
		enc.period = period
	}
	if q.PeriodEnd != nil {
		period := *q.PeriodEnd + 1
		if period < 1 || period > inst.Term.NumPeriods {
			return enc, queryErr(qi, "period_end %d out of range", *q.PeriodEnd)
		}
		enc.periodEnd = period
	}
	if q.RoomID != "" {
		ri, ok := inst.RoomByID(q.RoomID)
		if !ok {
			return enc, queryErr(qi, "unknown room id %q", q.RoomID)
		}
		enc.room = ri
	}

	switch q.Type {
	case dto.QueryEnforceTimeSlot:
		if q.Week == nil || enc.day < 0 || enc.period == 0 {
			return enc, queryErr(qi, "enforce_time_slot requires week, day and period_start")
		}
	case dto.QueryVetoTimeSlot:
		if enc.day < 0 || enc.period == 0 {
			return enc, queryErr(qi, "veto_time_slot requires day and period_start")
		}
	case dto.QueryVetoDay:
		if enc.day < 0 {
			return enc, queryErr(qi, "veto_day requires day")
		}
	case dto.QueryEnforceRoom:
		if enc.room < 0 {
			return enc, queryErr(qi, "enforce_room requires room_id")
		}
	case dto.QueryEnforceBeforeTime:
		if enc.periodEnd == 0 {
			return enc, queryErr(qi, "enforce_before_time requires period_end")
		}
	case dto.QueryEnforceAfterTime:
		if enc.period == 0 {
			return enc, queryErr(qi, "enforce_after_time requires period_start")
		}
	}
	return enc, nil
}

// expandSwap turns a swap into enforce+veto pairs built from the baseline
// schedule of the two courses.
func (s *WhatIfService) expandSwap(inst *models.Instance, qi int, q dto.QueryConstraint, baseline *dto.Schedule) ([]encodedQuery, error) {
	if baseline == nil {
		return nil, queryErr(qi, "swap_time_slots needs a baseline schedule; pass baseline_run_id or omit original_objective")
	}
	c1, err := resolveCourse(inst, qi, q.CourseID)
	if err != nil {
		return nil, err
	}
	c2, err := resolveCourse(inst, qi, q.CourseID2)
	if err != nil {
		return nil, err
	}
	a1 := findAssignment(baseline, q.CourseID)
	a2 := findAssignment(baseline, q.CourseID2)
	if a1 == nil || a2 == nil {
		return nil, queryErr(qi, "cannot find baseline assignments to swap")
	}

	build := func(course int, id string, target, source *dto.Assignment) ([]encodedQuery, error) {
		d, err := resolveDay(inst, qi, target.Day)
		if err != nil {
			return nil, err
		}
		ds, err := resolveDay(inst, qi, source.Day)
		if err != nil {
			return nil, err
		}
		return []encodedQuery{
			{
				index: qi, typ: dto.QueryEnforceTimeSlot, course: course, day: d,
				week: target.Week + 1, period: target.PeriodStart + 1, room: -1,
				desc: fmt.Sprintf("move %s to %s period %d", id, target.Day, target.PeriodStart),
			},
			{
				index: qi, typ: dto.QueryVetoTimeSlot, course: course, day: ds,
				week: source.Week + 1, period: source.PeriodStart + 1, room: -1,
				desc: fmt.Sprintf("move %s away from %s period %d", id, source.Day, source.PeriodStart),
			},
		}, nil
	}

	first, err := build(c1, q.CourseID, a2, a1)
	if err != nil {
		return nil, err
	}
	second, err := build(c2, q.CourseID2, a1, a2)
	if err != nil {
		return nil, err
	}
	return append(first, second...), nil
}

// applyQueries encodes each direct query as tagged rows and returns the tags
// that actually materialized, in first-appearance order.
func (s *WhatIfService) applyQueries(bm *BuiltModel, domain *models.Domain, queries []encodedQuery) []string {
	var tags []string
	seen := make(map[string]bool)
	for _, q := range queries {
		tag := fmt.Sprintf("query_%d", q.index)
		if s.applyQuery(bm, domain, q, tag) && !seen[tag] {
			seen[tag] = true
			tags = append(tags, tag)
		}
	}
	return tags
}

// applyQuery emits the rows of one query; it reports whether any row was
// added. Enforce kinds always add a row: over an empty placement set the row
// is unsatisfiable, which is exactly the intended signal.
func (s *WhatIfService) applyQuery(bm *BuiltModel, domain *models.Domain, q encodedQuery, tag string) bool {
	inst := bm.inst
	course := inst.Courses[q.course]

	sum := func(match func(models.Placement) bool) (*milp.LinearExpr, int) {
		expr := milp.NewLinearExpr()
		n := 0
		for _, p := range domain.Slots() {
			if p.Course == q.course && match(p) {
				expr.Add(bm.X[p])
				n++
			}
		}
		return expr, n
	}

	switch q.typ {
	case dto.QueryEnforceTimeSlot:
		block := inst.Term.BlockOfWeek(q.week)
		expr, _ := sum(func(p models.Placement) bool {
			return p.Block == block && p.Day == q.day && p.Period == q.period
		})
		bm.Model.AddEquality(expr, 1).WithTag(tag).WithName(q.desc)
		return true

	case dto.QueryVetoTimeSlot:
		expr, n := sum(func(p models.Placement) bool {
			if q.week != 0 && p.Block != inst.Term.BlockOfWeek(q.week) {
				return false
			}
			return p.Day == q.day && p.Period == q.period
		})
		if n == 0 {
			return false
		}
		bm.Model.AddEquality(expr, 0).WithTag(tag).WithName(q.desc)
		return true

	case dto.QueryVetoDay:
		expr, n := sum(func(p models.Placement) bool { return p.Day == q.day })
		if n == 0 {
			return false
		}
		bm.Model.AddEquality(expr, 0).WithTag(tag).WithName(q.desc)
		return true

	case dto.QueryEnforceRoom:
		expr, _ := sum(func(p models.Placement) bool { return p.Room == q.room })
		bm.Model.AddGreaterOrEqual(expr, 1).WithTag(tag).WithName(q.desc)
		return true

	case dto.QueryEnforceBeforeTime:
		dur := course.PeriodsPerSession
		expr, _ := sum(func(p models.Placement) bool { return p.Period+dur-1 <= q.periodEnd })
		bm.Model.AddGreaterOrEqual(expr, float64(blockSessions(course))).WithTag(tag).WithName(q.desc)
		return true

	case dto.QueryEnforceAfterTime:
		expr, _ := sum(func(p models.Placement) bool { return p.Period >= q.period })
		bm.Model.AddGreaterOrEqual(expr, float64(blockSessions(course))).WithTag(tag).WithName(q.desc)
		return true
	}
	return false
}

// explainInfeasibility extracts the conflict set over the tagged rows, or
// falls back to the conservative all-in-conflict report when extraction is
// disabled, times out or fails.
func (s *WhatIfService) explainInfeasibility(
	ctx context.Context,
	bm *BuiltModel,
	queries []encodedQuery,
	tags []string,
	params milp.Params,
	status milp.Status,
) *dto.WhatIfResult {
	result := &dto.WhatIfResult{
		Status:      dto.StatusInfeasibleQuery,
		Diagnostics: map[string]any{"solver_status": status.String()},
	}

	conflict := tags
	conservative := true
	if s.whatifCfg.IISEnabled && status == milp.StatusInfeasible {
		iisCtx, cancel := context.WithTimeout(ctx, s.whatifCfg.IISTimeout)
		defer cancel()
		extracted, err := milp.ConflictSet(iisCtx, s.solver, bm.Model, tags, params)
		if err != nil {
			s.logger.Warn("conflict extraction failed, reporting conservatively", zap.Error(err))
			result.Diagnostics["iis_error"] = err.Error()
		} else {
			conflict = extracted
			conservative = false
		}
	}

	result.IIS = s.iisItems(conflict, queries, conservative)
	result.Interpretation = interpretConflicts(result.IIS, conservative)
	return result
}

func (s *WhatIfService) iisItems(conflict []string, queries []encodedQuery, conservative bool) []dto.IISItem {
	descriptions := make(map[int][]string)
	for _, q := range queries {
		descriptions[q.index] = append(descriptions[q.index], q.desc)
	}

	var items []dto.IISItem
	for _, tag := range conflict {
		item := dto.IISItem{Tag: tag, Kind: "query"}
		if tag == minimalityTag {
			item.Kind = minimalityTag
			item.Description = "the alternative must be no worse than the original optimum"
		} else {
			var idx int
			fmt.Sscanf(tag, "query_%d", &idx)
			item.QueryIndex = &idx
			item.Description = strings.Join(descriptions[idx], "; ")
		}
		if conservative {
			item.Description += " (likely in conflict)"
		}
		items = append(items, item)
	}
	return items
}

func interpretConflicts(items []dto.IISItem, conservative bool) string {
	var queryTags []string
	minimality := false
	for _, item := range items {
		if item.Kind == minimalityTag {
			minimality = true
		} else {
			queryTags = append(queryTags, item.Tag)
		}
	}

	if conservative {
		return "conflict extraction was skipped or failed; every appended constraint, including the minimality bound, is likely in conflict"
	}

	var b strings.Builder
	switch {
	case minimality:
		// The bound being removable means the scenario is feasible without
		// it, just at a worse cost than the original optimum.
		b.WriteString("the requested changes are achievable, but only with a strictly worse objective than the original optimum")
	case len(queryTags) > 0:
		fmt.Fprintf(&b, "the requested changes (%s) contradict the hard scheduling constraints", strings.Join(queryTags, ", "))
	default:
		b.WriteString("the problem is infeasible independent of the appended constraints")
	}
	return b.String()
}

// validateQueryConsistency rejects requests that both enforce and veto the
// same slot before any solver work happens.
func validateQueryConsistency(queries []encodedQuery, inst *models.Instance) error {
	type slotKey struct {
		course int
		day    int
		period int
	}
	enforced := make(map[slotKey]int)
	for _, q := range queries {
		if q.typ == dto.QueryEnforceTimeSlot {
			enforced[slotKey{course: q.course, day: q.day, period: q.period}] = q.week
		}
	}
	for _, q := range queries {
		if q.typ != dto.QueryVetoTimeSlot {
			continue
		}
		key := slotKey{course: q.course, day: q.day, period: q.period}
		week, ok := enforced[key]
		if !ok {
			continue
		}
		if q.week == 0 || inst.Term.BlockOfWeek(q.week) == inst.Term.BlockOfWeek(week) {
			return appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf(
				"contradictory constraints: %s is both enforced and vetoed on %s at period %d",
				inst.Courses[q.course].ID, inst.Term.Days[q.day], q.period-1))
		}
	}
	return nil
}

func blockSessions(c models.Course) int {
	return len(c.Blocks) * c.SessionsPerWeek
}

func resolveCourse(inst *models.Instance, qi int, id string) (int, error) {
	if id == "" {
		return 0, queryErr(qi, "course_id is required")
	}
	ci, ok := inst.CourseByID(id)
	if !ok {
		return 0, queryErr(qi, "unknown course id %q", id)
	}
	return ci, nil
}

func resolveDay(inst *models.Instance, qi int, label string) (int, error) {
	d, ok := inst.DayByLabel(label)
	if !ok {
		return 0, queryErr(qi, "unknown day %q", label)
	}
	return d, nil
}

func queryErr(qi int, format string, a ...any) error {
	return appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("query %d: %s", qi, fmt.Sprintf(format, a...)))
}

func findAssignment(schedule *dto.Schedule, courseID string) *dto.Assignment {
	for i := range schedule.Assignments {
		if schedule.Assignments[i].CourseID == courseID {
			return &schedule.Assignments[i]
		}
	}
	return nil
}

// describeQuery renders a query in words for the IIS report.
func describeQuery(q dto.QueryConstraint) string {
	switch q.Type {
	case dto.QueryEnforceTimeSlot:
		return fmt.Sprintf("schedule %s on %s at period %d", q.CourseID, q.Day, deref(q.PeriodStart))
	case dto.QueryVetoTimeSlot:
		return fmt.Sprintf("keep %s away from %s period %d", q.CourseID, q.Day, deref(q.PeriodStart))
	case dto.QueryVetoDay:
		return fmt.Sprintf("avoid scheduling %s on %s", q.CourseID, q.Day)
	case dto.QueryEnforceRoom:
		return fmt.Sprintf("hold %s in room %s", q.CourseID, q.RoomID)
	case dto.QueryEnforceBeforeTime:
		return fmt.Sprintf("finish %s by period %d", q.CourseID, deref(q.PeriodEnd))
	case dto.QueryEnforceAfterTime:
		return fmt.Sprintf("start %s at period %d or later", q.CourseID, deref(q.PeriodStart))
	default:
		return fmt.Sprintf("query type %s for %s", q.Type, q.CourseID)
	}
}

func deref(v *int) int {
	if v == nil {
		return 0
	}
	return *v
}
