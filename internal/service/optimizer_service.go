package service

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/camsched/course-opt-core/internal/dto"
	"github.com/camsched/course-opt-core/internal/models"
	"github.com/camsched/course-opt-core/pkg/config"
	"github.com/camsched/course-opt-core/pkg/milp"
)

// OptimizerService runs the full pipeline: normalize, prune, warm start,
// build, solve, verify and format. One call runs to completion before the
// next; cancellation is honored between phases.
type OptimizerService struct {
	normalizer *NormalizerService
	pruner     *DomainPruner
	warm       *WarmStarter
	evaluator  *ScoreEvaluator
	builder    *ModelBuilder
	solver     milp.Solver
	cfg        config.SolverConfig
	runs       *RunStore
	logger     *zap.Logger
}

// NewOptimizerService wires the pipeline components.
func NewOptimizerService(solver milp.Solver, cfg config.SolverConfig, runs *RunStore, validate *validator.Validate, logger *zap.Logger) *OptimizerService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &OptimizerService{
		normalizer: NewNormalizerService(validate, logger),
		pruner:     NewDomainPruner(logger),
		warm:       NewWarmStarter(logger),
		evaluator:  NewScoreEvaluator(),
		builder:    NewModelBuilder(logger),
		solver:     solver,
		cfg:        cfg,
		runs:       runs,
		logger:     logger,
	}
}

// Solve optimizes the input and returns a status-tagged result. The error
// return is reserved for invalid input and caller cancellation; solver
// failures are folded into the result so the host process never dies on
// them.
func (s *OptimizerService) Solve(ctx context.Context, input dto.ScheduleInput) (result *dto.ScheduleResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("optimization panicked", zap.Any("cause", r), zap.Stack("stack"))
			result = &dto.ScheduleResult{
				Status:      dto.StatusError,
				Error:       fmt.Sprintf("solver failure: %v", r),
				Diagnostics: map[string]any{"panic": fmt.Sprint(r)},
			}
			err = nil
		}
	}()

	started := time.Now()

	inst, err := s.normalizer.Normalize(input)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	domain := s.pruner.Build(inst)
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	warm := s.warm.Build(inst, domain)
	initial := s.evaluator.Score(inst, warm.Placements)
	s.logger.Info("warm start built",
		zap.Int("placements", len(warm.Placements)),
		zap.Bool("complete", warm.Complete),
		zap.Float64("heuristic_score", initial.Total()),
	)
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	bm, err := s.builder.Build(inst, domain, warm)
	if err != nil {
		return errorResult(err), nil
	}

	params := milp.Params{
		TimeLimit:        s.cfg.TimeLimit,
		Threads:          s.cfg.Threads,
		ObjectiveScale:   s.cfg.ObjectiveScale,
		Presolve:         true,
		FocusFeasibility: true,
	}
	// Only a complete warm start bounds the objective: a partial one scores
	// fewer sessions than any full schedule and would cut off the optimum.
	if warm.Complete {
		cutoff := initial.Total() + objectiveSlack(initial.Total())
		params.ObjectiveCutoff = &cutoff
	}

	sol, err := s.solver.Solve(ctx, bm.Model, params)
	if err != nil {
		s.logger.Error("solver failed", zap.Error(err))
		return errorResult(err), nil
	}

	result = s.formatResult(inst, domain, bm, sol, warm, initial, time.Since(started))
	result.RunID = uuid.NewString()
	if s.runs != nil {
		s.runs.Save(RunRecord{
			RunID:     result.RunID,
			Input:     input,
			Result:    result,
			Objective: objectiveOrZero(result.ObjectiveValue),
		})
	}
	return result, nil
}

// formatResult extracts the assignment, recomputes the objective with the
// heuristic evaluator so the reported value matches the scoring semantics
// exactly, and expands block placements into absolute weeks.
func (s *OptimizerService) formatResult(
	inst *models.Instance,
	domain *models.Domain,
	bm *BuiltModel,
	sol *milp.Solution,
	warm *WarmStart,
	initial dto.PenaltyBreakdown,
	elapsed time.Duration,
) *dto.ScheduleResult {
	result := &dto.ScheduleResult{
		SolveTimeSeconds: elapsed.Seconds(),
		Diagnostics: map[string]any{
			"solver_status":       sol.Status.String(),
			"warm_start_complete": warm.Complete,
		},
	}

	switch sol.Status {
	case milp.StatusOptimal:
		result.Status = dto.StatusOptimal
	case milp.StatusFeasible:
		result.Status = dto.StatusTimeLimitFeasible
	case milp.StatusInfeasible:
		result.Status = dto.StatusInfeasible
		return result
	case milp.StatusNoSolution:
		result.Status = dto.StatusInfeasible
		result.Diagnostics["time_limit_no_solution"] = true
		return result
	default:
		result.Status = dto.StatusError
		result.Error = "solver returned an inconclusive status"
		return result
	}

	placements := extractPlacements(domain, bm, sol)
	breakdown := s.evaluator.Score(inst, placements)
	objective := breakdown.Total()

	result.ObjectiveValue = &objective
	result.SoftConstraintSummary = breakdown
	result.Schedule = dto.Schedule{Assignments: expandAssignments(inst, placements)}
	result.ImprovementSummary = fmt.Sprintf("initial heuristic score %.4f -> final objective %.4f", initial.Total(), objective)
	result.Diagnostics["solver_cost"] = sol.Cost

	if violations := ValidateSchedule(inst, result.Schedule.Assignments); len(violations) > 0 {
		s.logger.Warn("solved schedule failed verification", zap.Strings("violations", violations))
		result.Status = dto.StatusError
		result.Error = "solver returned a schedule violating hard constraints"
		result.Diagnostics["violations"] = violations
	}
	return result
}

func extractPlacements(domain *models.Domain, bm *BuiltModel, sol *milp.Solution) []models.Placement {
	var placements []models.Placement
	for _, p := range domain.Slots() {
		if sol.BoolValue(bm.X[p]) {
			placements = append(placements, p)
		}
	}
	return placements
}

// expandAssignments maps block placements onto absolute weeks and numbers
// each course's sessions in enumeration order. Wire weeks and periods are
// 0-based.
func expandAssignments(inst *models.Instance, placements []models.Placement) []dto.Assignment {
	sessionCount := make(map[int]int)
	var out []dto.Assignment
	for _, p := range placements {
		course := inst.Courses[p.Course]
		first, last := inst.Term.BlockWeeks(p.Block)
		if course.WeekStart > first {
			first = course.WeekStart
		}
		if course.WeekEnd < last {
			last = course.WeekEnd
		}
		for week := first; week <= last; week++ {
			sessionCount[p.Course]++
			n := sessionCount[p.Course]
			out = append(out, dto.Assignment{
				CourseID:        course.ID,
				CourseSessionID: fmt.Sprintf("%s_s%d", course.ID, n),
				SessionNumber:   n,
				RoomID:          inst.Rooms[p.Room].ID,
				Week:            week - 1,
				Day:             inst.Term.Days[p.Day],
				PeriodStart:     p.Period - 1,
				PeriodLength:    course.PeriodsPerSession,
				InstructorID:    inst.Instructors[course.Instructor].ID,
			})
		}
	}
	return out
}

func errorResult(err error) *dto.ScheduleResult {
	return &dto.ScheduleResult{
		Status: dto.StatusError,
		Error:  err.Error(),
	}
}

// objectiveSlack widens a bound enough to absorb coefficient scaling noise.
func objectiveSlack(v float64) float64 {
	return 1e-6*math.Abs(v) + 1e-6
}

func objectiveOrZero(v *float64) float64 {
	if v == nil {
		return 0
	}
	return *v
}
