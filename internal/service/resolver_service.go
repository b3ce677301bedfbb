package service

import (
	"context"
	"database/sql"
	"fmt"
	"sort"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/school-sim/scheduling-api/internal/models"
	appErrors "github.com/school-sim/scheduling-api/pkg/errors"
)

// ResolutionStrategy selects how detected conflicts should be repaired.
type ResolutionStrategy string

const (
	StrategyShiftTime         ResolutionStrategy = "SHIFT_TIME"
	StrategyReassignClassRoom ResolutionStrategy = "REASSIGN_CLASSROOM"
	StrategyManual            ResolutionStrategy = "MANUAL"
)

type resolverClassRoomRepository interface {
	FindByID(ctx context.Context, id string) (*models.ClassRoom, error)
	ListAlternatives(ctx context.Context, excludeID, grade string, minCapacity int) ([]models.ClassRoom, error)
}

// ResolveConflictsRequest asks for the given schedules to be repaired.
type ResolveConflictsRequest struct {
	ScheduleIDs []string           `json:"schedule_ids" validate:"required,min=1,max=100,dive,required"`
	Strategy    ResolutionStrategy `json:"strategy" validate:"required,oneof=SHIFT_TIME REASSIGN_CLASSROOM MANUAL"`
}

// ScheduleResolution reports the outcome for one schedule.
type ScheduleResolution struct {
	ScheduleID string           `json:"schedule_id"`
	Resolved   bool             `json:"resolved"`
	Action     string           `json:"action,omitempty"`
	Reason     string           `json:"reason,omitempty"`
	Schedule   *models.Schedule `json:"schedule,omitempty"`
}

// ResolveConflictsResult summarises a resolution run.
type ResolveConflictsResult struct {
	Strategy   ResolutionStrategy   `json:"strategy"`
	Resolved   int                  `json:"resolved"`
	Unresolved int                  `json:"unresolved"`
	Items      []ScheduleResolution `json:"items"`
}

// ResolverService repairs conflicting schedules by shifting their time slot
// or reassigning their classroom. Every repair goes through the schedule
// service's locking and conflict detection before it is written.
type ResolverService struct {
	core       *ScheduleService
	classrooms resolverClassRoomRepository
	validator  *validator.Validate
	logger     *zap.Logger
}

// NewResolverService constructs a ResolverService around the schedule service.
func NewResolverService(core *ScheduleService, classrooms resolverClassRoomRepository, validate *validator.Validate, logger *zap.Logger) *ResolverService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ResolverService{core: core, classrooms: classrooms, validator: validate, logger: logger}
}

// Resolve applies the requested strategy to each schedule and reports the
// results in request order. SHIFT_TIME moves the later-starting member of a
// conflicting pair, so its worklist is processed latest start first; earlier
// members are then re-checked after their counterpart has moved. Schedules
// that are already conflict free resolve trivially; the MANUAL strategy marks
// everything for human intervention.
func (s *ResolverService) Resolve(ctx context.Context, req ResolveConflictsRequest) (*ResolveConflictsResult, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid resolution payload")
	}

	order := req.ScheduleIDs
	if req.Strategy == StrategyShiftTime {
		order = s.shiftOrder(ctx, req.ScheduleIDs)
	}

	items := make(map[string]ScheduleResolution, len(order))
	for _, id := range order {
		if _, done := items[id]; done {
			continue
		}
		items[id] = s.resolveOne(ctx, id, req.Strategy)
	}

	result := &ResolveConflictsResult{Strategy: req.Strategy, Items: make([]ScheduleResolution, 0, len(req.ScheduleIDs))}
	for _, id := range req.ScheduleIDs {
		item := items[id]
		if item.Resolved {
			result.Resolved++
		} else {
			result.Unresolved++
		}
		s.core.metrics.RecordResolution(string(req.Strategy), item.Resolved)
		result.Items = append(result.Items, item)
	}
	s.logger.Sugar().Infow("resolution run finished", "strategy", req.Strategy, "resolved", result.Resolved, "unresolved", result.Unresolved)
	return result, nil
}

// shiftOrder sorts the worklist by start time, latest first. Schedules that
// cannot be loaded sort last and report their failure during resolution.
func (s *ResolverService) shiftOrder(ctx context.Context, ids []string) []string {
	starts := make(map[string]models.TimeOfDay, len(ids))
	for _, id := range ids {
		start := models.TimeOfDay(-1)
		if sched, err := s.core.Get(ctx, id); err == nil {
			start = sched.StartTime
		}
		starts[id] = start
	}
	ordered := append([]string(nil), ids...)
	sort.SliceStable(ordered, func(i, j int) bool {
		if starts[ordered[i]] != starts[ordered[j]] {
			return starts[ordered[i]] > starts[ordered[j]]
		}
		return ordered[i] > ordered[j]
	})
	return ordered
}

func (s *ResolverService) resolveOne(ctx context.Context, id string, strategy ResolutionStrategy) ScheduleResolution {
	item := ScheduleResolution{ScheduleID: id}

	sched, err := s.core.Get(ctx, id)
	if err != nil {
		item.Reason = appErrors.FromError(err).Message
		return item
	}
	if !sched.Active() {
		item.Reason = "only active schedules can be resolved"
		return item
	}

	if strategy == StrategyManual {
		item.Reason = "manual intervention requested"
		return item
	}

	// unlocked triage read; commit re-validates under the resource locks
	conflicts, err := s.core.conflictsFor(ctx, *sched)
	if err != nil {
		item.Reason = appErrors.FromError(err).Message
		return item
	}
	if len(conflicts) == 0 {
		item.Resolved = true
		item.Action = "no conflict"
		item.Schedule = sched
		return item
	}

	switch strategy {
	case StrategyShiftTime:
		return s.shiftTime(ctx, *sched)
	case StrategyReassignClassRoom:
		return s.reassignClassRoom(ctx, *sched, conflicts)
	default:
		item.Reason = fmt.Sprintf("unknown strategy %q", strategy)
		return item
	}
}

// shiftTime moves the schedule to the earliest slot of equal duration, at or
// after its current start, that is free for both its teacher and classroom.
// Only the later-starting member of a conflicting pair moves; the earlier one
// keeps its slot. The schedule's own occupancy is ignored when computing free
// slots.
func (s *ResolverService) shiftTime(ctx context.Context, sched models.Schedule) ScheduleResolution {
	item := ScheduleResolution{ScheduleID: sched.ID}

	teacherDay, err := s.core.schedules.ListActiveByTeacherDay(ctx, sched.TeacherID, sched.DayOfWeek, sched.AcademicYear, sched.Semester)
	if err != nil {
		item.Reason = "failed to load teacher schedules"
		return item
	}
	roomDay, err := s.core.schedules.ListActiveByClassRoomDay(ctx, sched.ClassRoomID, sched.DayOfWeek, sched.AcademicYear, sched.Semester)
	if err != nil {
		item.Reason = "failed to load classroom schedules"
		return item
	}

	if !laterMemberOfPair(sched, teacherDay, roomDay) {
		item.Reason = "schedule starts first in its conflicts; the later session is the one that shifts"
		return item
	}

	window := s.core.window
	teacherFree := complementWithin(window, mergeBusy(window, withoutSchedule(teacherDay, sched.ID)), 0)
	roomFree := complementWithin(window, mergeBusy(window, withoutSchedule(roomDay, sched.ID)), 0)

	duration := models.TimeOfDay(sched.Duration())
	start, ok := earliestCommonStart(teacherFree, roomFree, sched.StartTime, duration)
	if !ok {
		item.Reason = "no free slot of equal duration available"
		return item
	}

	moved := sched
	moved.StartTime = start
	moved.EndTime = start + duration
	return s.commit(ctx, moved, fmt.Sprintf("shifted to %s-%s", moved.StartTime, moved.EndTime))
}

// reassignClassRoom moves the schedule into the first alternative room, in
// code order, that is free for its slot. Teacher conflicts cannot be repaired
// by changing rooms.
func (s *ResolverService) reassignClassRoom(ctx context.Context, sched models.Schedule, conflicts []models.Conflict) ScheduleResolution {
	item := ScheduleResolution{ScheduleID: sched.ID}

	for _, c := range conflicts {
		if c.Kind == models.ConflictKindTeacher {
			item.Reason = "teacher conflicts cannot be resolved by reassigning the classroom"
			return item
		}
	}

	current, err := s.classrooms.FindByID(ctx, sched.ClassRoomID)
	if err != nil {
		if err == sql.ErrNoRows {
			item.Reason = "classroom not found"
		} else {
			item.Reason = "failed to load classroom"
		}
		return item
	}

	alternatives, err := s.classrooms.ListAlternatives(ctx, current.ID, current.Grade, current.Capacity)
	if err != nil {
		item.Reason = "failed to load alternative classrooms"
		return item
	}

	for _, room := range alternatives {
		candidate := sched
		candidate.ClassRoomID = room.ID

		roomDay, err := s.core.schedules.ListActiveByClassRoomDay(ctx, room.ID, sched.DayOfWeek, sched.AcademicYear, sched.Semester)
		if err != nil {
			item.Reason = "failed to load classroom schedules"
			return item
		}
		if len(DetectConflicts(candidate, roomDay, models.ConflictKindClassRoom)) > 0 {
			continue
		}
		return s.commit(ctx, candidate, fmt.Sprintf("reassigned to classroom %s", room.Code))
	}

	item.Reason = "no alternative classroom available"
	return item
}

// commit re-validates the repaired slot under its locks and persists it.
func (s *ResolverService) commit(ctx context.Context, moved models.Schedule, action string) ScheduleResolution {
	item := ScheduleResolution{ScheduleID: moved.ID}

	release, err := s.core.acquireLocks(ctx, scheduleLockKeys(moved)...)
	if err != nil {
		item.Reason = appErrors.FromError(err).Message
		return item
	}
	defer release()

	conflicts, err := s.core.conflictsFor(ctx, moved)
	if err != nil {
		item.Reason = appErrors.FromError(err).Message
		return item
	}
	if len(conflicts) > 0 {
		item.Reason = "repaired slot conflicts again"
		return item
	}

	if err := s.core.schedules.Update(ctx, &moved); err != nil {
		item.Reason = "failed to persist repaired schedule"
		return item
	}

	s.core.publish(ScheduleEventResolved, &moved)
	item.Resolved = true
	item.Action = action
	item.Schedule = &moved
	return item
}

// laterMemberOfPair reports whether sched starts after at least one session it
// overlaps, breaking start-time ties on ID.
func laterMemberOfPair(sched models.Schedule, groups ...[]models.Schedule) bool {
	for _, group := range groups {
		for _, other := range group {
			if other.ID == sched.ID || !other.Active() {
				continue
			}
			if !sched.Range().Overlaps(other.Range()) {
				continue
			}
			if other.StartTime < sched.StartTime || (other.StartTime == sched.StartTime && other.ID < sched.ID) {
				return true
			}
		}
	}
	return false
}

func withoutSchedule(schedules []models.Schedule, id string) []models.Schedule {
	kept := make([]models.Schedule, 0, len(schedules))
	for _, s := range schedules {
		if s.ID == id {
			continue
		}
		kept = append(kept, s)
	}
	return kept
}

// earliestCommonStart finds the earliest start at or after from where both
// free-slot lists can host a session of the given duration.
func earliestCommonStart(a, b []models.TimeRange, from, duration models.TimeOfDay) (models.TimeOfDay, bool) {
	for _, ra := range a {
		for _, rb := range b {
			common, ok := ra.Intersect(rb)
			if !ok {
				continue
			}
			start := common.Start
			if start < from {
				start = from
			}
			if start+duration <= common.End {
				return start, true
			}
		}
	}
	return 0, false
}
