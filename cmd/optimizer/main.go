package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/camsched/course-opt-core/internal/dto"
	"github.com/camsched/course-opt-core/internal/service"
	"github.com/camsched/course-opt-core/pkg/config"
	"github.com/camsched/course-opt-core/pkg/export"
	"github.com/camsched/course-opt-core/pkg/logger"
	"github.com/camsched/course-opt-core/pkg/milp"
	"github.com/camsched/course-opt-core/pkg/milp/highsmip"
	"github.com/camsched/course-opt-core/pkg/milp/pbsolve"
)

const usage = `usage:
  optimizer solve  -input problem.json [-output result.json] [-export-csv out.csv] [-export-pdf out.pdf]
  optimizer whatif -input problem.json -queries queries.json [-output result.json]`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprintln(os.Stderr, usage)
		os.Exit(2)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	var code int
	switch os.Args[1] {
	case "solve":
		code = runSolve(os.Args[2:], cfg, logr)
	case "whatif":
		code = runWhatIf(os.Args[2:], cfg, logr)
	default:
		fmt.Fprintln(os.Stderr, usage)
		code = 2
	}
	os.Exit(code)
}

func newSolver(cfg *config.Config) milp.Solver {
	if cfg.Solver.Backend == "highs" {
		return highsmip.New()
	}
	return pbsolve.New()
}

func runSolve(args []string, cfg *config.Config, logr *zap.Logger) int {
	fs := flag.NewFlagSet("solve", flag.ExitOnError)
	inputPath := fs.String("input", "", "path to the scheduling input JSON")
	outputPath := fs.String("output", "", "path for the result JSON (default stdout)")
	csvPath := fs.String("export-csv", "", "optional path for a CSV export of the schedule")
	pdfPath := fs.String("export-pdf", "", "optional path for a PDF export of the schedule")
	fs.Parse(args) //nolint:errcheck

	var input dto.ScheduleInput
	if err := readJSON(*inputPath, &input); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 2
	}

	runs := service.NewRunStore(cfg.Runs.TTL)
	optimizer := service.NewOptimizerService(newSolver(cfg), cfg.Solver, runs, validator.New(), logr)

	result, err := optimizer.Solve(context.Background(), input)
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid input: %v\n", err)
		return 2
	}
	if err := writeJSON(*outputPath, result); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 2
	}

	if result.Status == dto.StatusOptimal || result.Status == dto.StatusTimeLimitFeasible {
		if err := exportSchedule(result, *csvPath, *pdfPath); err != nil {
			fmt.Fprintln(os.Stderr, err)
			return 2
		}
		return 0
	}
	if result.Status == dto.StatusError {
		return 2
	}
	return 1
}

func runWhatIf(args []string, cfg *config.Config, logr *zap.Logger) int {
	fs := flag.NewFlagSet("whatif", flag.ExitOnError)
	inputPath := fs.String("input", "", "path to the scheduling input JSON")
	queriesPath := fs.String("queries", "", "path to the what-if request JSON")
	outputPath := fs.String("output", "", "path for the result JSON (default stdout)")
	fs.Parse(args) //nolint:errcheck

	var input dto.ScheduleInput
	if err := readJSON(*inputPath, &input); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 2
	}
	var request dto.WhatIfRequest
	if err := readJSON(*queriesPath, &request); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 2
	}

	solver := newSolver(cfg)
	runs := service.NewRunStore(cfg.Runs.TTL)
	optimizer := service.NewOptimizerService(solver, cfg.Solver, runs, validator.New(), logr)
	whatif := service.NewWhatIfService(optimizer, solver, cfg.Solver, cfg.WhatIf, runs, validator.New(), logr)

	result, err := whatif.Analyze(context.Background(), input, request)
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid request: %v\n", err)
		return 2
	}
	if err := writeJSON(*outputPath, result); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 2
	}

	switch result.Status {
	case dto.StatusFeasibleQuery:
		return 0
	case dto.StatusInfeasibleQuery:
		return 1
	default:
		return 2
	}
}

func exportSchedule(result *dto.ScheduleResult, csvPath, pdfPath string) error {
	if csvPath == "" && pdfPath == "" {
		return nil
	}
	rows := make([]export.SessionRow, 0, len(result.Schedule.Assignments))
	for _, a := range result.Schedule.Assignments {
		rows = append(rows, export.SessionRow{
			CourseID:      a.CourseID,
			SessionNumber: a.SessionNumber,
			Week:          a.Week,
			Day:           a.Day,
			PeriodStart:   a.PeriodStart,
			PeriodLength:  a.PeriodLength,
			RoomID:        a.RoomID,
			InstructorID:  a.InstructorID,
		})
	}
	if csvPath != "" {
		data, err := export.CSV(rows)
		if err != nil {
			return fmt.Errorf("export csv: %w", err)
		}
		if err := os.WriteFile(csvPath, data, 0o644); err != nil {
			return fmt.Errorf("write csv: %w", err)
		}
	}
	if pdfPath != "" {
		data, err := export.PDF(rows, "Course Schedule")
		if err != nil {
			return fmt.Errorf("export pdf: %w", err)
		}
		if err := os.WriteFile(pdfPath, data, 0o644); err != nil {
			return fmt.Errorf("write pdf: %w", err)
		}
	}
	return nil
}

func readJSON(path string, v any) error {
	if path == "" {
		return fmt.Errorf("missing required -input/-queries path")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}
	return nil
}

func writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encode result: %w", err)
	}
	data = append(data, '\n')
	if path == "" {
		_, err = os.Stdout.Write(data)
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}
