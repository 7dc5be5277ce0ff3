package service

import (
	"sort"

	"go.uber.org/zap"

	"github.com/camsched/course-opt-core/internal/models"
)

// WarmStart is a feasible, possibly partial, starting assignment in block
// space.
type WarmStart struct {
	Placements []models.Placement
	// Complete is true when every course met its weekly quota in every block
	// it belongs to. Only a complete warm start may bound the objective.
	Complete bool
}

// WarmStarter greedily places courses to seed the solver with a feasible
// incumbent. More constrained courses go first: single-block courses, then
// full-term ones, larger enrollments within each group.
type WarmStarter struct {
	logger *zap.Logger
}

// NewWarmStarter wires the warm starter.
func NewWarmStarter(logger *zap.Logger) *WarmStarter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &WarmStarter{logger: logger}
}

type resourceKey struct {
	owner  int // room or instructor index
	block  int
	day    int
	period int
}

// Build runs the greedy pass. The result respects every hard constraint the
// full model enforces; sessions that cannot be placed are simply left out.
func (w *WarmStarter) Build(inst *models.Instance, domain *models.Domain) *WarmStart {
	order := make([]int, len(inst.Courses))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		ca, cb := inst.Courses[order[a]], inst.Courses[order[b]]
		if sa, sb := ca.SpansBothBlocks(), cb.SpansBothBlocks(); sa != sb {
			return !sa // single-block first
		}
		return ca.Enrollment > cb.Enrollment
	})

	roomOrder := make([]int, len(inst.Rooms))
	for i := range roomOrder {
		roomOrder[i] = i
	}
	sort.SliceStable(roomOrder, func(a, b int) bool {
		return inst.Rooms[roomOrder[a]].Capacity < inst.Rooms[roomOrder[b]].Capacity
	})

	roomsUsed := make(map[resourceKey]bool)
	instructorBusy := make(map[resourceKey]bool)

	ws := &WarmStart{Complete: true}
	for _, ci := range order {
		course := inst.Courses[ci]
		dur := course.PeriodsPerSession
		placed := 0
		for d := 0; d < len(inst.Term.Days) && placed < course.SessionsPerWeek; d++ {
			if w.placeOnDay(inst, domain, ws, roomsUsed, instructorBusy, roomOrder, ci, d, dur) {
				placed++
			}
		}
		if placed < course.SessionsPerWeek {
			ws.Complete = false
			w.logger.Debug("warm start left course short",
				zap.String("course", course.ID),
				zap.Int("placed", placed),
				zap.Int("quota", course.SessionsPerWeek),
			)
		}
	}
	return ws
}

// placeOnDay finds the first (period, room) usable in every block of the
// course on the given day, claims the resources and records the placements.
func (w *WarmStarter) placeOnDay(
	inst *models.Instance,
	domain *models.Domain,
	ws *WarmStart,
	roomsUsed, instructorBusy map[resourceKey]bool,
	roomOrder []int,
	ci, d, dur int,
) bool {
	course := inst.Courses[ci]
	for start := 1; start+dur-1 <= inst.Term.NumPeriods; start++ {
		for _, ri := range roomOrder {
			if !w.fits(inst, domain, roomsUsed, instructorBusy, ci, d, start, ri, dur) {
				continue
			}
			for _, b := range course.Blocks {
				for t := start; t < start+dur; t++ {
					roomsUsed[resourceKey{owner: ri, block: b, day: d, period: t}] = true
					instructorBusy[resourceKey{owner: course.Instructor, block: b, day: d, period: t}] = true
				}
				ws.Placements = append(ws.Placements, models.Placement{
					Course: ci, Block: b, Day: d, Period: start, Room: ri,
				})
			}
			return true
		}
	}
	return false
}

func (w *WarmStarter) fits(
	inst *models.Instance,
	domain *models.Domain,
	roomsUsed, instructorBusy map[resourceKey]bool,
	ci, d, start, ri, dur int,
) bool {
	course := inst.Courses[ci]
	for _, b := range course.Blocks {
		if !domain.Contains(models.Placement{Course: ci, Block: b, Day: d, Period: start, Room: ri}) {
			return false
		}
		for t := start; t < start+dur; t++ {
			if roomsUsed[resourceKey{owner: ri, block: b, day: d, period: t}] {
				return false
			}
			if instructorBusy[resourceKey{owner: course.Instructor, block: b, day: d, period: t}] {
				return false
			}
		}
	}
	return true
}
