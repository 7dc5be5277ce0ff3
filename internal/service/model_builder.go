package service

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/camsched/course-opt-core/internal/models"
	"github.com/camsched/course-opt-core/pkg/milp"
)

// BuiltModel bundles the MILP with the handles the rest of the pipeline
// needs: the placement variables for extraction and query encoding, and the
// objective expression for the UDSP minimality bound.
type BuiltModel struct {
	Model     *milp.Model
	Objective *milp.LinearExpr
	X         map[models.Placement]milp.BoolVar

	inst   *models.Instance
	domain *models.Domain
}

// ModelBuilder declares the decision variables, hard constraints, soft
// constraint linearizations and objective over the pruned domain.
type ModelBuilder struct {
	logger *zap.Logger
}

// NewModelBuilder wires the builder.
func NewModelBuilder(logger *zap.Logger) *ModelBuilder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ModelBuilder{logger: logger}
}

type courseSlotKey struct {
	course int
	block  int
	day    int
	period int
}

type roomSlotKey struct {
	room   int
	block  int
	day    int
	period int
}

// builderState carries the variable groupings needed while emitting rows.
type builderState struct {
	inst   *models.Instance
	m      *milp.Model
	x      map[models.Placement]milp.BoolVar
	starts map[courseSlotKey][]milp.BoolVar
	// roomOcc lists, per (room, block, day, period), every start variable
	// whose session occupies that period in that room.
	roomOcc map[roomSlotKey][]milp.BoolVar
	// cbVars and cbdVars group start variables per (course, block) and
	// (course, block, day), in domain order.
	cbVars  map[[2]int][]milp.BoolVar
	cbdVars map[[3]int][]milp.BoolVar
	obj     *milp.LinearExpr
}

// occupying returns the start variables of course c whose session covers
// period p on (block, day), in deterministic order.
func (st *builderState) occupying(c, b, d, p int) []milp.BoolVar {
	dur := st.inst.Courses[c].PeriodsPerSession
	first := p - dur + 1
	if first < 1 {
		first = 1
	}
	var out []milp.BoolVar
	for s := first; s <= p; s++ {
		out = append(out, st.starts[courseSlotKey{course: c, block: b, day: d, period: s}]...)
	}
	return out
}

func sumOf(vars []milp.BoolVar) *milp.LinearExpr {
	e := milp.NewLinearExpr()
	for _, v := range vars {
		e.Add(v)
	}
	return e
}

// Build assembles the model. When warm is non-nil its placements become the
// solver hint.
func (b *ModelBuilder) Build(inst *models.Instance, domain *models.Domain, warm *WarmStart) (*BuiltModel, error) {
	st := &builderState{
		inst:    inst,
		m:       milp.NewModel("course-schedule"),
		x:       make(map[models.Placement]milp.BoolVar, domain.Size()),
		starts:  make(map[courseSlotKey][]milp.BoolVar),
		roomOcc: make(map[roomSlotKey][]milp.BoolVar),
		cbVars:  make(map[[2]int][]milp.BoolVar),
		cbdVars: make(map[[3]int][]milp.BoolVar),
		obj:     milp.NewLinearExpr(),
	}

	b.declarePlacementVars(st, domain)
	b.addInstructorRows(st)
	b.addRoomRows(st)
	b.addSessionQuotaRows(st, domain)
	b.addFullTermConsistency(st, domain)
	b.addStudentConflictTerms(st)
	b.addCompactnessTerms(st)
	b.addLunchTerms(st)

	st.m.Minimize(st.obj)

	if warm != nil && len(warm.Placements) > 0 {
		hint := &milp.Hint{Bools: make(map[milp.BoolVar]bool, len(warm.Placements))}
		for _, p := range warm.Placements {
			hint.Bools[st.x[p]] = true
		}
		st.m.SetHint(hint)
	}

	if err := st.m.Validate(); err != nil {
		return nil, err
	}
	b.logger.Debug("model built",
		zap.Int("variables", st.m.NumVars()),
		zap.Int("rows", len(st.m.Rows())),
	)
	return &BuiltModel{Model: st.m, Objective: st.obj, X: st.x, inst: inst, domain: domain}, nil
}

func (b *ModelBuilder) declarePlacementVars(st *builderState, domain *models.Domain) {
	inst := st.inst
	for _, p := range domain.Slots() {
		course := inst.Courses[p.Course]
		v := st.m.NewBoolVar().WithName(fmt.Sprintf(
			"x[%s,b%d,%s,p%d,%s]",
			course.ID, p.Block, inst.Term.Days[p.Day], p.Period, inst.Rooms[p.Room].ID,
		))
		st.x[p] = v
		st.starts[courseSlotKey{course: p.Course, block: p.Block, day: p.Day, period: p.Period}] = append(
			st.starts[courseSlotKey{course: p.Course, block: p.Block, day: p.Day, period: p.Period}], v)
		st.cbVars[[2]int{p.Course, p.Block}] = append(st.cbVars[[2]int{p.Course, p.Block}], v)
		st.cbdVars[[3]int{p.Course, p.Block, p.Day}] = append(st.cbdVars[[3]int{p.Course, p.Block, p.Day}], v)
		for t := p.Period; t < p.Period+course.PeriodsPerSession; t++ {
			key := roomSlotKey{room: p.Room, block: p.Block, day: p.Day, period: t}
			st.roomOcc[key] = append(st.roomOcc[key], v)
		}
	}
}

// addInstructorRows links the teaching indicator h to the per-period
// occupancy of each instructor. The equality with a binary h also caps the
// occupancy at one, which is the instructor-conflict constraint.
func (b *ModelBuilder) addInstructorRows(st *builderState) {
	inst := st.inst
	for ii := range inst.Instructors {
		for _, blk := range inst.Term.Blocks() {
			for d := range inst.Term.Days {
				for p := 1; p <= inst.Term.NumPeriods; p++ {
					var occ []milp.BoolVar
					for ci, course := range inst.Courses {
						if course.Instructor != ii {
							continue
						}
						occ = append(occ, st.occupying(ci, blk, d, p)...)
					}
					if len(occ) < 2 {
						continue
					}
					h := st.m.NewBoolVar().WithName(fmt.Sprintf("h[%s,b%d,%s,p%d]", inst.Instructors[ii].ID, blk, inst.Term.Days[d], p))
					st.m.AddEquality(sumOf(occ).AddTerm(h, -1), 0).
						WithName(fmt.Sprintf("instructor_occ[%s,b%d,%s,p%d]", inst.Instructors[ii].ID, blk, inst.Term.Days[d], p))
				}
			}
		}
	}
}

// addRoomRows keeps every (room, block, day, period) cell at one session.
func (b *ModelBuilder) addRoomRows(st *builderState) {
	inst := st.inst
	for ri := range inst.Rooms {
		for _, blk := range inst.Term.Blocks() {
			for d := range inst.Term.Days {
				for p := 1; p <= inst.Term.NumPeriods; p++ {
					vars := st.roomOcc[roomSlotKey{room: ri, block: blk, day: d, period: p}]
					if len(vars) < 2 {
						continue
					}
					st.m.AddLessOrEqual(sumOf(vars), 1).
						WithName(fmt.Sprintf("room_conflict[%s,b%d,%s,p%d]", inst.Rooms[ri].ID, blk, inst.Term.Days[d], p))
				}
			}
		}
	}
}

// addSessionQuotaRows emits the weekly quota equality per course-block and
// the one-session-per-day cap. A course-block with an empty domain yields an
// unsatisfiable quota row, which is the correct infeasibility signal.
func (b *ModelBuilder) addSessionQuotaRows(st *builderState, domain *models.Domain) {
	inst := st.inst
	for ci, course := range inst.Courses {
		for _, blk := range course.Blocks {
			st.m.AddEquality(sumOf(st.cbVars[[2]int{ci, blk}]), float64(course.SessionsPerWeek)).
				WithName(fmt.Sprintf("sessions[%s,b%d]", course.ID, blk))
			for d := range inst.Term.Days {
				vars := st.cbdVars[[3]int{ci, blk, d}]
				if len(vars) < 2 {
					continue
				}
				st.m.AddLessOrEqual(sumOf(vars), 1).
					WithName(fmt.Sprintf("per_day[%s,b%d,%s]", course.ID, blk, inst.Term.Days[d]))
			}
		}
	}
}

// addFullTermConsistency pins the weekly pattern of a full-term course to be
// identical in both blocks.
func (b *ModelBuilder) addFullTermConsistency(st *builderState, domain *models.Domain) {
	for _, p := range domain.Slots() {
		if p.Block != models.Block1 {
			continue
		}
		if !st.inst.Courses[p.Course].SpansBothBlocks() {
			continue
		}
		twin := p
		twin.Block = models.Block2
		v2, ok := st.x[twin]
		if !ok {
			continue
		}
		st.m.AddEquality(milp.NewLinearExpr().Add(st.x[p]).AddTerm(v2, -1), 0).
			WithName(fmt.Sprintf("weekly_pattern[%s,%s,p%d,%s]",
				st.inst.Courses[p.Course].ID, st.inst.Term.Days[p.Day], p.Period, st.inst.Rooms[p.Room].ID))
	}
}

// addStudentConflictTerms creates, per co-enrolled pair and shared period, a
// conflict indicator phi with occ1 + occ2 <= 1 + phi.
func (b *ModelBuilder) addStudentConflictTerms(st *builderState) {
	inst := st.inst
	w1 := inst.Weights.StudentConflict
	for c1 := range inst.Courses {
		for c2 := c1 + 1; c2 < len(inst.Courses); c2++ {
			cc := inst.ConflictCount(c1, c2)
			if cc == 0 {
				continue
			}
			for _, blk := range inst.Courses[c1].Blocks {
				if !inst.Courses[c2].InBlock(blk) {
					continue
				}
				bw := float64(inst.Term.BlockWeight(blk))
				for d := range inst.Term.Days {
					for p := 1; p <= inst.Term.NumPeriods; p++ {
						occ1 := st.occupying(c1, blk, d, p)
						occ2 := st.occupying(c2, blk, d, p)
						if len(occ1) == 0 || len(occ2) == 0 {
							continue
						}
						phi := st.m.NewBoolVar().WithName(fmt.Sprintf(
							"phi[%s,%s,b%d,%s,p%d]", inst.Courses[c1].ID, inst.Courses[c2].ID, blk, inst.Term.Days[d], p))
						st.m.AddLessOrEqual(sumOf(occ1).AddSum(sumOf(occ2)).AddTerm(phi, -1), 1).
							WithName(fmt.Sprintf("student_overlap[%s,%s,b%d,%s,p%d]",
								inst.Courses[c1].ID, inst.Courses[c2].ID, blk, inst.Term.Days[d], p))
						st.obj.AddTerm(phi, w1*float64(cc)*bw)
					}
				}
			}
		}
	}
}

// addCompactnessTerms linearizes the symmetric back-to-back metric
// 2B - (T - 1) per instructor-day. With the teaching indicator forced to
// [T >= 1], the product form has*(2B - T + 1) reduces to the linear
// 2B - T + has because B and T vanish together.
func (b *ModelBuilder) addCompactnessTerms(st *builderState) {
	inst := st.inst
	w2 := inst.Weights.InstructorCompactness
	for ii, instructor := range inst.Instructors {
		if instructor.BackToBackPref == 0 {
			continue
		}
		weight := w2 * float64(instructor.BackToBackPref)
		for _, blk := range inst.Term.Blocks() {
			bw := float64(inst.Term.BlockWeight(blk))
			var courses []int
			for ci, course := range inst.Courses {
				if course.Instructor == ii && course.InBlock(blk) {
					courses = append(courses, ci)
				}
			}
			if len(courses) == 0 {
				continue
			}
			for d := range inst.Term.Days {
				var dayVars []milp.BoolVar
				activeCourses := 0
				for _, ci := range courses {
					vars := st.cbdVars[[3]int{ci, blk, d}]
					if len(vars) > 0 {
						activeCourses++
					}
					dayVars = append(dayVars, vars...)
				}
				if len(dayVars) == 0 {
					continue
				}

				label := fmt.Sprintf("%s,b%d,%s", instructor.ID, blk, inst.Term.Days[d])
				has := st.m.NewBoolVar().WithName("has_teaching[" + label + "]")
				st.m.AddLessOrEqual(milp.NewLinearExpr().Add(has).AddTerm(sumOf(dayVars), -1), 0).
					WithName("has_teaching_ub[" + label + "]")
				st.m.AddLessOrEqual(sumOf(dayVars).AddTerm(has, float64(-activeCourses)), 0).
					WithName("has_teaching_lb[" + label + "]")

				st.obj.AddTerm(has, weight*bw)
				for _, v := range dayVars {
					st.obj.AddTerm(v, -weight*bw)
				}

				b.addAdjacencyVars(st, courses, blk, d, weight*bw, label)
			}
		}
	}
}

// addAdjacencyVars introduces, for every ordered course pair of the
// instructor and every feasible junction period, a binary that is one iff
// the first course's session is immediately followed by the second's.
func (b *ModelBuilder) addAdjacencyVars(st *builderState, courses []int, blk, d int, weight float64, label string) {
	inst := st.inst
	for _, c1 := range courses {
		dur1 := inst.Courses[c1].PeriodsPerSession
		for _, c2 := range courses {
			if c1 == c2 {
				continue
			}
			for p := 1; p+dur1 <= inst.Term.NumPeriods; p++ {
				first := st.starts[courseSlotKey{course: c1, block: blk, day: d, period: p}]
				second := st.starts[courseSlotKey{course: c2, block: blk, day: d, period: p + dur1}]
				if len(first) == 0 || len(second) == 0 {
					continue
				}
				z := st.m.NewBoolVar().WithName(fmt.Sprintf(
					"z[%s,%s,p%d|%s]", inst.Courses[c1].ID, inst.Courses[c2].ID, p, label))
				st.m.AddLessOrEqual(milp.NewLinearExpr().Add(z).AddTerm(sumOf(first), -1), 0)
				st.m.AddLessOrEqual(milp.NewLinearExpr().Add(z).AddTerm(sumOf(second), -1), 0)
				st.m.AddGreaterOrEqual(
					milp.NewLinearExpr().Add(z).AddTerm(sumOf(first), -1).AddTerm(sumOf(second), -1), -1)
				st.obj.AddTerm(z, 2*weight)
			}
		}
	}
}

// addLunchTerms charges occupied lunch periods through indicator pi.
func (b *ModelBuilder) addLunchTerms(st *builderState) {
	inst := st.inst
	w3 := inst.Weights.PreferredSlots
	for ci, course := range inst.Courses {
		penalty := inst.Instructors[course.Instructor].LunchPenalty()
		if penalty == 0 {
			continue
		}
		for _, blk := range course.Blocks {
			bw := float64(inst.Term.BlockWeight(blk))
			for d := range inst.Term.Days {
				for _, p := range inst.Term.LunchPeriods {
					occ := st.occupying(ci, blk, d, p)
					if len(occ) == 0 {
						continue
					}
					pi := st.m.NewBoolVar().WithName(fmt.Sprintf(
						"pi[%s,b%d,%s,p%d]", course.ID, blk, inst.Term.Days[d], p))
					st.m.AddLessOrEqual(sumOf(occ).AddTerm(pi, -1), 0).
						WithName(fmt.Sprintf("lunch[%s,b%d,%s,p%d]", course.ID, blk, inst.Term.Days[d], p))
					st.obj.AddTerm(pi, w3*penalty*bw)
				}
			}
		}
	}
}
