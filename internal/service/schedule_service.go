package service

import (
	"context"
	"database/sql"
	"fmt"
	"regexp"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/school-sim/scheduling-api/internal/models"
	"github.com/school-sim/scheduling-api/pkg/config"
	appErrors "github.com/school-sim/scheduling-api/pkg/errors"
	"github.com/school-sim/scheduling-api/pkg/locks"
)

var academicYearPattern = regexp.MustCompile(`^\d{4}/\d{4}$`)

type scheduleRepository interface {
	List(ctx context.Context, filter models.ScheduleFilter) ([]models.Schedule, int, error)
	FindByID(ctx context.Context, id string) (*models.Schedule, error)
	ListActiveByTeacherDay(ctx context.Context, teacherID, dayOfWeek, academicYear string, semester int) ([]models.Schedule, error)
	ListActiveByClassRoomDay(ctx context.Context, classRoomID, dayOfWeek, academicYear string, semester int) ([]models.Schedule, error)
	ListActiveForPeriod(ctx context.Context, academicYear string, semester int) ([]models.Schedule, error)
	Create(ctx context.Context, schedule *models.Schedule) error
	Update(ctx context.Context, schedule *models.Schedule) error
	UpdateStatus(ctx context.Context, id string, status models.ScheduleStatus) error
	ArchivePeriod(ctx context.Context, academicYear string) (int64, error)
	Delete(ctx context.Context, id string) error
}

type scheduleClassRoomReader interface {
	FindByID(ctx context.Context, id string) (*models.ClassRoom, error)
}

type scheduleSubjectReader interface {
	FindByID(ctx context.Context, id string) (*models.Subject, error)
}

type scheduleTeacherReader interface {
	FindByID(ctx context.Context, id string) (*models.Teacher, error)
}

type schedulePublisher interface {
	Publish(event ScheduleEvent)
}

// CreateScheduleRequest describes payload for creating a schedule.
type CreateScheduleRequest struct {
	ClassRoomID  string  `json:"class_room_id" validate:"required"`
	SubjectID    string  `json:"subject_id" validate:"required"`
	TeacherID    string  `json:"teacher_id" validate:"required"`
	DayOfWeek    string  `json:"day_of_week" validate:"required"`
	StartTime    string  `json:"start_time" validate:"required"`
	EndTime      string  `json:"end_time" validate:"required"`
	AcademicYear string  `json:"academic_year" validate:"required"`
	Semester     int     `json:"semester" validate:"required,min=1,max=2"`
	Notes        *string `json:"notes" validate:"omitempty,max=500"`
}

// UpdateScheduleRequest updates an existing schedule.
type UpdateScheduleRequest struct {
	ClassRoomID  string                 `json:"class_room_id" validate:"required"`
	SubjectID    string                 `json:"subject_id" validate:"required"`
	TeacherID    string                 `json:"teacher_id" validate:"required"`
	DayOfWeek    string                 `json:"day_of_week" validate:"required"`
	StartTime    string                 `json:"start_time" validate:"required"`
	EndTime      string                 `json:"end_time" validate:"required"`
	AcademicYear string                 `json:"academic_year" validate:"required"`
	Semester     int                    `json:"semester" validate:"required,min=1,max=2"`
	Status       *models.ScheduleStatus `json:"status" validate:"omitempty,oneof=ACTIVE INACTIVE ARCHIVED"`
	Notes        *string                `json:"notes" validate:"omitempty,max=500"`
}

// CheckConflictsRequest asks which committed schedules a candidate slot
// collides with. ExcludeScheduleID skips one row, for probing updates.
type CheckConflictsRequest struct {
	ClassRoomID       string `json:"class_room_id" validate:"required"`
	TeacherID         string `json:"teacher_id" validate:"required"`
	DayOfWeek         string `json:"day_of_week" validate:"required"`
	StartTime         string `json:"start_time" validate:"required"`
	EndTime           string `json:"end_time" validate:"required"`
	AcademicYear      string `json:"academic_year" validate:"required"`
	Semester          int    `json:"semester" validate:"required,min=1,max=2"`
	ExcludeScheduleID string `json:"exclude_schedule_id"`
}

// Bulk item outcomes.
const (
	BulkItemCommitted    = "COMMITTED"
	BulkItemRejected     = "REJECTED"
	BulkItemNotProcessed = "NOT_PROCESSED"
)

// BulkScheduleRequest holds multiple schedules created in request order.
type BulkScheduleRequest struct {
	Items []CreateScheduleRequest `json:"items" validate:"required,min=1,max=100,dive"`
}

// BulkScheduleItemResult reports the outcome of one bulk item.
type BulkScheduleItemResult struct {
	Index    int              `json:"index"`
	Status   string           `json:"status"`
	Schedule *models.Schedule `json:"schedule,omitempty"`
	Error    *appErrors.Error `json:"error,omitempty"`
}

// BulkScheduleResult summarises a bulk creation run.
type BulkScheduleResult struct {
	Items        []BulkScheduleItemResult `json:"items"`
	Committed    int                      `json:"committed"`
	Rejected     int                      `json:"rejected"`
	NotProcessed int                      `json:"not_processed"`
}

// ScheduleService coordinates schedule mutations: validation, referenced
// entity checks, per-resource locking, conflict detection and change events.
type ScheduleService struct {
	schedules  scheduleRepository
	classrooms scheduleClassRoomReader
	subjects   scheduleSubjectReader
	teachers   scheduleTeacherReader
	locks      *locks.KeyedMutex
	events     schedulePublisher
	metrics    *MetricsService

	window      models.TimeRange
	minSession  int
	maxSession  int
	lockTimeout time.Duration
	lockRetries int
	lockBackoff time.Duration

	validator *validator.Validate
	logger    *zap.Logger
}

// NewScheduleService instantiates a ScheduleService.
func NewScheduleService(
	schedules scheduleRepository,
	classrooms scheduleClassRoomReader,
	subjects scheduleSubjectReader,
	teachers scheduleTeacherReader,
	keyed *locks.KeyedMutex,
	cfg config.SchedulingConfig,
	events schedulePublisher,
	metrics *MetricsService,
	validate *validator.Validate,
	logger *zap.Logger,
) *ScheduleService {
	if keyed == nil {
		keyed = locks.NewKeyedMutex()
	}
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	maxSession := cfg.MaxSessionMinutes
	if maxSession <= 0 {
		maxSession = 180
	}
	lockTimeout := cfg.LockTimeout
	if lockTimeout <= 0 {
		lockTimeout = 3 * time.Second
	}
	lockBackoff := cfg.LockRetryBackoff
	if lockBackoff <= 0 {
		lockBackoff = 100 * time.Millisecond
	}
	return &ScheduleService{
		schedules:   schedules,
		classrooms:  classrooms,
		subjects:    subjects,
		teachers:    teachers,
		locks:       keyed,
		events:      events,
		metrics:     metrics,
		window:      workingWindow(cfg),
		minSession:  minSessionMinutes(cfg),
		maxSession:  maxSession,
		lockTimeout: lockTimeout,
		lockRetries: cfg.LockRetries,
		lockBackoff: lockBackoff,
		validator:   validate,
		logger:      logger,
	}
}

// List returns schedules plus pagination data.
func (s *ScheduleService) List(ctx context.Context, filter models.ScheduleFilter) ([]models.Schedule, *models.Pagination, error) {
	if filter.DayOfWeek != "" {
		day, ok := models.NormalizeDay(filter.DayOfWeek)
		if !ok {
			return nil, nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown day of week %q", filter.DayOfWeek))
		}
		filter.DayOfWeek = day
	}
	schedules, total, err := s.schedules.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list schedules")
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 {
		size = 20
	}
	return schedules, &models.Pagination{Page: page, PageSize: size, TotalCount: total}, nil
}

// Get returns a schedule by id.
func (s *ScheduleService) Get(ctx context.Context, id string) (*models.Schedule, error) {
	sched, err := s.schedules.FindByID(ctx, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "schedule not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load schedule")
	}
	return sched, nil
}

// Create validates and commits a new schedule. The teacher-day and
// classroom-day are locked while conflicts are checked and the row is written,
// so concurrent writers cannot commit overlapping sessions.
func (s *ScheduleService) Create(ctx context.Context, req CreateScheduleRequest) (*models.Schedule, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid schedule payload")
	}
	return s.createOne(ctx, req)
}

func (s *ScheduleService) createOne(ctx context.Context, req CreateScheduleRequest) (*models.Schedule, error) {
	candidate, err := s.buildCandidate(req)
	if err != nil {
		return nil, err
	}
	if err := s.ensureReferences(ctx, candidate); err != nil {
		return nil, err
	}

	release, err := s.acquireLocks(ctx, scheduleLockKeys(candidate)...)
	if err != nil {
		return nil, err
	}
	defer release()

	conflicts, err := s.conflictsFor(ctx, candidate)
	if err != nil {
		return nil, err
	}
	if len(conflicts) > 0 {
		s.metrics.RecordConflictsDetected(conflicts)
		return nil, appErrors.Clone(appErrors.ErrConflict, "schedule conflicts detected").WithDetails(conflicts)
	}

	if err := s.schedules.Create(ctx, &candidate); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create schedule")
	}

	s.publish(ScheduleEventCreated, &candidate)
	s.logger.Sugar().Infow("schedule created", "schedule_id", candidate.ID, "teacher_id", candidate.TeacherID, "class_room_id", candidate.ClassRoomID, "day", candidate.DayOfWeek)
	return &candidate, nil
}

// Update rewrites a schedule's slot. Both the old and the new resource-day
// keys are locked so the row cannot race with writers on either side of the
// move. Archived schedules are immutable.
func (s *ScheduleService) Update(ctx context.Context, id string, req UpdateScheduleRequest) (*models.Schedule, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid schedule payload")
	}

	existing, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if existing.Status == models.ScheduleStatusArchived {
		return nil, appErrors.Clone(appErrors.ErrArchived, "archived schedules cannot be modified")
	}

	candidate, err := s.buildCandidate(CreateScheduleRequest{
		ClassRoomID:  req.ClassRoomID,
		SubjectID:    req.SubjectID,
		TeacherID:    req.TeacherID,
		DayOfWeek:    req.DayOfWeek,
		StartTime:    req.StartTime,
		EndTime:      req.EndTime,
		AcademicYear: req.AcademicYear,
		Semester:     req.Semester,
		Notes:        req.Notes,
	})
	if err != nil {
		return nil, err
	}
	candidate.ID = existing.ID
	candidate.CreatedAt = existing.CreatedAt
	candidate.Status = existing.Status
	if req.Status != nil {
		candidate.Status = *req.Status
	}
	if err := s.ensureReferences(ctx, candidate); err != nil {
		return nil, err
	}

	keys := append(scheduleLockKeys(*existing), scheduleLockKeys(candidate)...)
	release, err := s.acquireLocks(ctx, keys...)
	if err != nil {
		return nil, err
	}
	defer release()

	if candidate.Active() {
		conflicts, err := s.conflictsFor(ctx, candidate)
		if err != nil {
			return nil, err
		}
		if len(conflicts) > 0 {
			s.metrics.RecordConflictsDetected(conflicts)
			return nil, appErrors.Clone(appErrors.ErrConflict, "schedule conflicts detected").WithDetails(conflicts)
		}
	}

	if err := s.schedules.Update(ctx, &candidate); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update schedule")
	}

	s.publish(ScheduleEventUpdated, &candidate)
	return &candidate, nil
}

// SetStatus transitions a schedule's lifecycle state. Reactivating a slot
// re-runs conflict detection under the resource locks.
func (s *ScheduleService) SetStatus(ctx context.Context, id string, status models.ScheduleStatus) (*models.Schedule, error) {
	switch status {
	case models.ScheduleStatusActive, models.ScheduleStatusInactive, models.ScheduleStatusArchived:
	default:
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown schedule status %q", status))
	}

	existing, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if existing.Status == status {
		return existing, nil
	}
	if existing.Status == models.ScheduleStatusArchived {
		return nil, appErrors.Clone(appErrors.ErrArchived, "archived schedules cannot be modified")
	}

	if status == models.ScheduleStatusActive {
		release, err := s.acquireLocks(ctx, scheduleLockKeys(*existing)...)
		if err != nil {
			return nil, err
		}
		defer release()

		probe := *existing
		probe.Status = models.ScheduleStatusActive
		conflicts, err := s.conflictsFor(ctx, probe)
		if err != nil {
			return nil, err
		}
		if len(conflicts) > 0 {
			s.metrics.RecordConflictsDetected(conflicts)
			return nil, appErrors.Clone(appErrors.ErrConflict, "reactivating would introduce conflicts").WithDetails(conflicts)
		}
	}

	if err := s.schedules.UpdateStatus(ctx, id, status); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update schedule status")
	}
	existing.Status = status
	s.publish(ScheduleEventUpdated, existing)
	return existing, nil
}

// Delete removes a schedule.
func (s *ScheduleService) Delete(ctx context.Context, id string) error {
	existing, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if err := s.schedules.Delete(ctx, id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete schedule")
	}
	s.publish(ScheduleEventDeleted, existing)
	return nil
}

// ArchiveYear marks every schedule of an academic year archived and returns
// how many rows changed.
func (s *ScheduleService) ArchiveYear(ctx context.Context, academicYear string) (int64, error) {
	if !academicYearPattern.MatchString(academicYear) {
		return 0, appErrors.Clone(appErrors.ErrValidation, "academic year must look like 2024/2025")
	}
	affected, err := s.schedules.ArchivePeriod(ctx, academicYear)
	if err != nil {
		return 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to archive schedules")
	}
	if affected > 0 && s.events != nil {
		s.events.Publish(ScheduleEvent{Type: ScheduleEventArchived, AcademicYear: academicYear})
	}
	s.logger.Sugar().Infow("academic year archived", "academic_year", academicYear, "schedules", affected)
	return affected, nil
}

// BulkCreate commits items one by one in request order. Items that fail
// validation or conflict with committed state, including earlier items of the
// same request, are rejected; the rest proceed. Cancellation marks remaining
// items as not processed.
func (s *ScheduleService) BulkCreate(ctx context.Context, req BulkScheduleRequest) (*BulkScheduleResult, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid bulk payload")
	}

	result := &BulkScheduleResult{Items: make([]BulkScheduleItemResult, 0, len(req.Items))}
	for i, item := range req.Items {
		if ctx.Err() != nil {
			for j := i; j < len(req.Items); j++ {
				result.Items = append(result.Items, BulkScheduleItemResult{Index: j, Status: BulkItemNotProcessed})
				result.NotProcessed++
				s.metrics.RecordBulkItem(BulkItemNotProcessed)
			}
			break
		}

		created, err := s.createOne(ctx, item)
		if err != nil {
			result.Items = append(result.Items, BulkScheduleItemResult{Index: i, Status: BulkItemRejected, Error: appErrors.FromError(err)})
			result.Rejected++
			s.metrics.RecordBulkItem(BulkItemRejected)
			continue
		}
		result.Items = append(result.Items, BulkScheduleItemResult{Index: i, Status: BulkItemCommitted, Schedule: created})
		result.Committed++
		s.metrics.RecordBulkItem(BulkItemCommitted)
	}

	s.logger.Sugar().Infow("bulk schedule run finished", "committed", result.Committed, "rejected", result.Rejected, "not_processed", result.NotProcessed)
	return result, nil
}

// CheckConflicts reports which committed schedules a candidate slot overlaps,
// without writing anything.
func (s *ScheduleService) CheckConflicts(ctx context.Context, req CheckConflictsRequest) ([]models.Conflict, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid conflict query")
	}
	candidate, err := s.buildCandidate(CreateScheduleRequest{
		ClassRoomID:  req.ClassRoomID,
		TeacherID:    req.TeacherID,
		DayOfWeek:    req.DayOfWeek,
		StartTime:    req.StartTime,
		EndTime:      req.EndTime,
		AcademicYear: req.AcademicYear,
		Semester:     req.Semester,
	})
	if err != nil {
		return nil, err
	}
	candidate.ID = req.ExcludeScheduleID
	conflicts, err := s.conflictsFor(ctx, candidate)
	if err != nil {
		return nil, err
	}
	s.metrics.RecordConflictsDetected(conflicts)
	return conflicts, nil
}

// AuditConflicts sweeps every active schedule of a period and reports each
// conflicting pair once.
func (s *ScheduleService) AuditConflicts(ctx context.Context, academicYear string, semester int) ([]models.ConflictPair, error) {
	if !academicYearPattern.MatchString(academicYear) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "academic year must look like 2024/2025")
	}
	if semester < 1 || semester > 2 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "semester must be 1 or 2")
	}
	schedules, err := s.schedules.ListActiveForPeriod(ctx, academicYear, semester)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load period schedules")
	}
	return DetectPeriodConflicts(schedules), nil
}

// buildCandidate parses and validates the scheduling fields shared by create
// and update payloads.
func (s *ScheduleService) buildCandidate(req CreateScheduleRequest) (models.Schedule, error) {
	var sched models.Schedule

	day, ok := models.NormalizeDay(req.DayOfWeek)
	if !ok {
		return sched, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown day of week %q", req.DayOfWeek))
	}
	start, err := models.ParseTimeOfDay(req.StartTime)
	if err != nil {
		return sched, appErrors.Clone(appErrors.ErrValidation, "start_time must look like HH:MM")
	}
	end, err := models.ParseTimeOfDay(req.EndTime)
	if err != nil {
		return sched, appErrors.Clone(appErrors.ErrValidation, "end_time must look like HH:MM")
	}
	if start >= end {
		return sched, appErrors.Clone(appErrors.ErrValidation, "start_time must be before end_time")
	}
	duration := int(end - start)
	if duration < s.minSession {
		return sched, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("session must last at least %d minutes", s.minSession))
	}
	if duration > s.maxSession {
		return sched, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("session must last at most %d minutes", s.maxSession))
	}
	if start < s.window.Start || end > s.window.End {
		return sched, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("session must fall within working hours %s-%s", s.window.Start, s.window.End))
	}
	if !academicYearPattern.MatchString(req.AcademicYear) {
		return sched, appErrors.Clone(appErrors.ErrValidation, "academic year must look like 2024/2025")
	}

	sched = models.Schedule{
		ClassRoomID:  req.ClassRoomID,
		SubjectID:    req.SubjectID,
		TeacherID:    req.TeacherID,
		DayOfWeek:    day,
		StartTime:    start,
		EndTime:      end,
		AcademicYear: req.AcademicYear,
		Semester:     req.Semester,
		Status:       models.ScheduleStatusActive,
		Notes:        req.Notes,
	}
	return sched, nil
}

// ensureReferences verifies the classroom, subject and teacher exist and can
// host new sessions.
func (s *ScheduleService) ensureReferences(ctx context.Context, sched models.Schedule) error {
	room, err := s.classrooms.FindByID(ctx, sched.ClassRoomID)
	if err != nil {
		if err == sql.ErrNoRows {
			return appErrors.Clone(appErrors.ErrNotFound, "classroom not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load classroom")
	}
	if !room.Active {
		return appErrors.Clone(appErrors.ErrValidation, "classroom is inactive")
	}

	if _, err := s.subjects.FindByID(ctx, sched.SubjectID); err != nil {
		if err == sql.ErrNoRows {
			return appErrors.Clone(appErrors.ErrNotFound, "subject not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load subject")
	}

	teacher, err := s.teachers.FindByID(ctx, sched.TeacherID)
	if err != nil {
		if err == sql.ErrNoRows {
			return appErrors.Clone(appErrors.ErrNotFound, "teacher not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load teacher")
	}
	if !teacher.Active {
		return appErrors.Clone(appErrors.ErrValidation, "teacher is inactive")
	}
	return nil
}

// conflictsFor loads the candidate's teacher-day and classroom-day reference
// sets and reports every overlap, teacher conflicts first.
func (s *ScheduleService) conflictsFor(ctx context.Context, candidate models.Schedule) ([]models.Conflict, error) {
	teacherDay, err := s.schedules.ListActiveByTeacherDay(ctx, candidate.TeacherID, candidate.DayOfWeek, candidate.AcademicYear, candidate.Semester)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load teacher schedules")
	}
	roomDay, err := s.schedules.ListActiveByClassRoomDay(ctx, candidate.ClassRoomID, candidate.DayOfWeek, candidate.AcademicYear, candidate.Semester)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load classroom schedules")
	}

	conflicts := DetectConflicts(candidate, teacherDay, models.ConflictKindTeacher)
	conflicts = append(conflicts, DetectConflicts(candidate, roomDay, models.ConflictKindClassRoom)...)
	return conflicts, nil
}

// acquireLocks takes the given resource keys with a bounded number of retries.
func (s *ScheduleService) acquireLocks(ctx context.Context, keys ...string) (func(), error) {
	attempts := s.lockRetries + 1
	if attempts < 1 {
		attempts = 1
	}
	for attempt := 1; ; attempt++ {
		release, err := s.locks.Acquire(ctx, s.lockTimeout, keys...)
		if err == nil {
			return release, nil
		}
		if ctx.Err() != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "schedule lock cancelled")
		}
		if attempt >= attempts {
			s.metrics.RecordLockTimeout()
			s.logger.Sugar().Warnw("schedule lock timed out", "keys", keys, "attempts", attempt)
			return nil, appErrors.Clone(appErrors.ErrLockTimeout, fmt.Sprintf("could not lock scheduling resources after %d attempts", attempt))
		}

		timer := time.NewTimer(s.lockBackoff)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, appErrors.Wrap(ctx.Err(), appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "schedule lock cancelled")
		case <-timer.C:
		}
	}
}

func (s *ScheduleService) publish(eventType ScheduleEventType, sched *models.Schedule) {
	if s.events == nil || sched == nil {
		return
	}
	s.events.Publish(ScheduleEvent{
		Type:         eventType,
		ScheduleID:   sched.ID,
		AcademicYear: sched.AcademicYear,
		Semester:     sched.Semester,
	})
}

func scheduleLockKeys(sched models.Schedule) []string {
	return []string{
		fmt.Sprintf("teacher:%s:%s:%s:%d", sched.TeacherID, sched.DayOfWeek, sched.AcademicYear, sched.Semester),
		fmt.Sprintf("room:%s:%s:%s:%d", sched.ClassRoomID, sched.DayOfWeek, sched.AcademicYear, sched.Semester),
	}
}
