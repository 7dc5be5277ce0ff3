package service

import (
	"go.uber.org/zap"

	"github.com/camsched/course-opt-core/internal/models"
)

// DomainPruner enumerates the placements that already satisfy the trivially
// checkable hard constraints: session fits in the day, instructor available
// on every occupied period, room large enough. Only survivors become MILP
// variables.
type DomainPruner struct {
	logger *zap.Logger
}

// NewDomainPruner wires the pruner.
func NewDomainPruner(logger *zap.Logger) *DomainPruner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DomainPruner{logger: logger}
}

// Build enumerates the valid placements in (course, block, day, period, room)
// order.
func (p *DomainPruner) Build(inst *models.Instance) *models.Domain {
	var slots []models.Placement
	term := inst.Term
	for ci, course := range inst.Courses {
		dur := course.PeriodsPerSession
		instructor := inst.Instructors[course.Instructor]
		for _, b := range course.Blocks {
			for d := range term.Days {
				for start := 1; start+dur-1 <= term.NumPeriods; start++ {
					if !instructor.AvailableRange(d, start, dur) {
						continue
					}
					for ri, room := range inst.Rooms {
						if room.Capacity < course.Enrollment {
							continue
						}
						slots = append(slots, models.Placement{
							Course: ci,
							Block:  b,
							Day:    d,
							Period: start,
							Room:   ri,
						})
					}
				}
			}
		}
	}

	full := 0
	for _, c := range inst.Courses {
		full += len(c.Blocks) * len(term.Days) * term.NumPeriods * len(inst.Rooms)
	}
	p.logger.Debug("variable domain pruned",
		zap.Int("valid_tuples", len(slots)),
		zap.Int("unpruned_tuples", full),
	)
	return models.NewDomain(slots)
}
