package service

import (
	"sort"

	"github.com/camsched/course-opt-core/internal/dto"
	"github.com/camsched/course-opt-core/internal/models"
)

// ScoreEvaluator computes the exact objective of a block-space assignment.
// Its arithmetic is the reference semantics of the MILP objective: the model
// builder must produce term-for-term the same value, otherwise warm starts
// and improvement summaries silently break.
type ScoreEvaluator struct{}

// NewScoreEvaluator wires the evaluator.
func NewScoreEvaluator() *ScoreEvaluator { return &ScoreEvaluator{} }

type sessionInterval struct {
	start int
	end   int // inclusive
}

type sessionKey struct {
	course int
	block  int
	day    int
}

// Score returns the weighted per-objective totals for the assignment.
func (e *ScoreEvaluator) Score(inst *models.Instance, placements []models.Placement) dto.PenaltyBreakdown {
	sessions := make(map[sessionKey][]sessionInterval)
	for _, p := range placements {
		dur := inst.Courses[p.Course].PeriodsPerSession
		key := sessionKey{course: p.Course, block: p.Block, day: p.Day}
		sessions[key] = append(sessions[key], sessionInterval{start: p.Period, end: p.Period + dur - 1})
	}

	var breakdown dto.PenaltyBreakdown
	breakdown.StudentConflicts = e.studentConflicts(inst, sessions)
	breakdown.InstructorCompactness = e.instructorCompactness(inst, sessions)
	breakdown.Lunch = e.lunch(inst, placements)
	return breakdown
}

// Total is a convenience over Score for callers needing only the objective.
func (e *ScoreEvaluator) Total(inst *models.Instance, placements []models.Placement) float64 {
	return e.Score(inst, placements).Total()
}

// studentConflicts sums, for every co-enrolled course pair meeting on the
// same day of a common block, the number of overlapping periods weighted by
// the pair's student count and the block weight.
func (e *ScoreEvaluator) studentConflicts(inst *models.Instance, sessions map[sessionKey][]sessionInterval) float64 {
	w1 := inst.Weights.StudentConflict
	var total float64
	for c1 := range inst.Courses {
		for c2 := c1 + 1; c2 < len(inst.Courses); c2++ {
			cc := inst.ConflictCount(c1, c2)
			if cc == 0 {
				continue
			}
			for _, b := range inst.Courses[c1].Blocks {
				if !inst.Courses[c2].InBlock(b) {
					continue
				}
				bw := float64(inst.Term.BlockWeight(b))
				for d := range inst.Term.Days {
					for _, iv1 := range sessions[sessionKey{course: c1, block: b, day: d}] {
						for _, iv2 := range sessions[sessionKey{course: c2, block: b, day: d}] {
							overlap := min(iv1.end, iv2.end) - max(iv1.start, iv2.start) + 1
							if overlap > 0 {
								total += w1 * float64(cc) * bw * float64(overlap)
							}
						}
					}
				}
			}
		}
	}
	return total
}

// instructorCompactness scores each instructor-day with the symmetric
// adjacency metric 2B - (T - 1): B adjacency pairs realized out of the T - 1
// possible in a fully compact arrangement.
func (e *ScoreEvaluator) instructorCompactness(inst *models.Instance, sessions map[sessionKey][]sessionInterval) float64 {
	w2 := inst.Weights.InstructorCompactness
	var total float64
	for ii, instructor := range inst.Instructors {
		if instructor.BackToBackPref == 0 {
			continue
		}
		pref := float64(instructor.BackToBackPref)
		for _, b := range inst.Term.Blocks() {
			bw := float64(inst.Term.BlockWeight(b))
			for d := range inst.Term.Days {
				var intervals []sessionInterval
				for ci, course := range inst.Courses {
					if course.Instructor != ii {
						continue
					}
					intervals = append(intervals, sessions[sessionKey{course: ci, block: b, day: d}]...)
				}
				if len(intervals) < 2 {
					continue
				}
				sort.Slice(intervals, func(i, j int) bool { return intervals[i].start < intervals[j].start })
				adjacent := 0
				for k := 0; k+1 < len(intervals); k++ {
					if intervals[k].end+1 == intervals[k+1].start {
						adjacent++
					}
				}
				total += w2 * pref * bw * float64(2*adjacent-(len(intervals)-1))
			}
		}
	}
	return total
}

// lunch charges every occupied lunch period of instructors who do not allow
// lunch teaching.
func (e *ScoreEvaluator) lunch(inst *models.Instance, placements []models.Placement) float64 {
	w3 := inst.Weights.PreferredSlots
	var total float64
	for _, p := range placements {
		course := inst.Courses[p.Course]
		penalty := inst.Instructors[course.Instructor].LunchPenalty()
		if penalty == 0 {
			continue
		}
		bw := float64(inst.Term.BlockWeight(p.Block))
		hit := 0
		for t := p.Period; t < p.Period+course.PeriodsPerSession; t++ {
			if inst.Term.IsLunchPeriod(t) {
				hit++
			}
		}
		if hit > 0 {
			total += w3 * penalty * bw * float64(hit)
		}
	}
	return total
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}
