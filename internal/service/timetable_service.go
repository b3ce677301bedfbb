package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/school-sim/scheduling-api/internal/models"
	appErrors "github.com/school-sim/scheduling-api/pkg/errors"
)

const timetableCachePrefix = "timetables"

type timetableScheduleRepository interface {
	ListActiveByTeacher(ctx context.Context, teacherID, academicYear string, semester int) ([]models.Schedule, error)
	ListActiveByClassRoom(ctx context.Context, classRoomID, academicYear string, semester int) ([]models.Schedule, error)
	ListActiveBySubject(ctx context.Context, subjectID, academicYear string, semester int) ([]models.Schedule, error)
}

type timetableCache interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	DeleteByPattern(ctx context.Context, pattern string) error
}

// TimetableEntry is one session cell of a timetable grid.
type TimetableEntry struct {
	ScheduleID  string           `json:"schedule_id"`
	ClassRoomID string           `json:"class_room_id"`
	SubjectID   string           `json:"subject_id"`
	TeacherID   string           `json:"teacher_id"`
	StartTime   models.TimeOfDay `json:"start_time"`
	EndTime     models.TimeOfDay `json:"end_time"`
	Duration    int              `json:"duration_minutes"`
}

// TimetableDay groups a day's sessions in start order.
type TimetableDay struct {
	Day     string           `json:"day"`
	Entries []TimetableEntry `json:"entries"`
}

// TimetableStatistics aggregates a timetable's load.
type TimetableStatistics struct {
	TotalSessions int                `json:"total_sessions"`
	TotalHours    float64            `json:"total_hours"`
	SessionsByDay map[string]int     `json:"sessions_by_day"`
	SubjectHours  map[string]float64 `json:"subject_hours"`
}

// Timetable is the weekly grid of one resource within an academic period.
type Timetable struct {
	Resource     string              `json:"resource"`
	ResourceID   string              `json:"resource_id"`
	AcademicYear string              `json:"academic_year"`
	Semester     int                 `json:"semester"`
	Days         []TimetableDay      `json:"days"`
	Statistics   TimetableStatistics `json:"statistics"`
	GeneratedAt  time.Time           `json:"generated_at"`
}

// TimetableService builds per-resource weekly grids from committed schedules
// and serves them through a Redis-backed cache.
type TimetableService struct {
	schedules  timetableScheduleRepository
	teachers   scheduleTeacherReader
	classrooms scheduleClassRoomReader
	subjects   scheduleSubjectReader
	cache      timetableCache
	ttl        time.Duration
	metrics    *MetricsService
	logger     *zap.Logger
}

// NewTimetableService constructs a TimetableService.
func NewTimetableService(
	schedules timetableScheduleRepository,
	teachers scheduleTeacherReader,
	classrooms scheduleClassRoomReader,
	subjects scheduleSubjectReader,
	cache timetableCache,
	ttl time.Duration,
	metrics *MetricsService,
	logger *zap.Logger,
) *TimetableService {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TimetableService{
		schedules:  schedules,
		teachers:   teachers,
		classrooms: classrooms,
		subjects:   subjects,
		cache:      cache,
		ttl:        ttl,
		metrics:    metrics,
		logger:     logger,
	}
}

// TeacherTimetable returns a teacher's weekly grid.
func (s *TimetableService) TeacherTimetable(ctx context.Context, teacherID, academicYear string, semester int) (*Timetable, error) {
	if err := validatePeriod(academicYear, semester); err != nil {
		return nil, err
	}
	return s.timetable(ctx, "teacher", teacherID, academicYear, semester, func() error {
		_, err := s.teachers.FindByID(ctx, teacherID)
		return err
	}, func() ([]models.Schedule, error) {
		return s.schedules.ListActiveByTeacher(ctx, teacherID, academicYear, semester)
	})
}

// ClassRoomTimetable returns a classroom's weekly grid.
func (s *TimetableService) ClassRoomTimetable(ctx context.Context, classRoomID, academicYear string, semester int) (*Timetable, error) {
	if err := validatePeriod(academicYear, semester); err != nil {
		return nil, err
	}
	return s.timetable(ctx, "classroom", classRoomID, academicYear, semester, func() error {
		_, err := s.classrooms.FindByID(ctx, classRoomID)
		return err
	}, func() ([]models.Schedule, error) {
		return s.schedules.ListActiveByClassRoom(ctx, classRoomID, academicYear, semester)
	})
}

// SubjectTimetable returns all sessions of a subject as a weekly grid.
func (s *TimetableService) SubjectTimetable(ctx context.Context, subjectID, academicYear string, semester int) (*Timetable, error) {
	if err := validatePeriod(academicYear, semester); err != nil {
		return nil, err
	}
	return s.timetable(ctx, "subject", subjectID, academicYear, semester, func() error {
		_, err := s.subjects.FindByID(ctx, subjectID)
		return err
	}, func() ([]models.Schedule, error) {
		return s.schedules.ListActiveBySubject(ctx, subjectID, academicYear, semester)
	})
}

// Invalidate drops every cached timetable. Wired as a schedule event handler.
func (s *TimetableService) Invalidate(ctx context.Context) error {
	if s.cache == nil {
		return nil
	}
	if err := s.cache.DeleteByPattern(ctx, timetableCachePrefix+":*"); err != nil {
		return fmt.Errorf("invalidate timetables: %w", err)
	}
	return nil
}

// HandleScheduleEvent adapts Invalidate to the event dispatcher contract.
func (s *TimetableService) HandleScheduleEvent(ctx context.Context, _ ScheduleEvent) error {
	return s.Invalidate(ctx)
}

func (s *TimetableService) timetable(
	ctx context.Context,
	resource, id, academicYear string,
	semester int,
	exists func() error,
	load func() ([]models.Schedule, error),
) (*Timetable, error) {
	key := fmt.Sprintf("%s:%s:%s:%s:%d", timetableCachePrefix, resource, id, academicYear, semester)

	if s.cache != nil {
		started := time.Now()
		var cached Timetable
		err := s.cache.Get(ctx, key, &cached)
		if err == nil {
			s.metrics.RecordCacheOperation(true, time.Since(started))
			return &cached, nil
		}
		s.metrics.RecordCacheOperation(false, time.Since(started))
		if !errors.Is(err, appErrors.ErrCacheMiss) {
			s.logger.Sugar().Warnw("timetable cache read failed", "key", key, "error", err)
		}
	}

	if err := exists(); err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, fmt.Sprintf("%s not found", resource))
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, fmt.Sprintf("failed to load %s", resource))
	}

	schedules, err := load()
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load schedules")
	}

	timetable := buildTimetable(resource, id, academicYear, semester, schedules)
	if s.cache != nil {
		if err := s.cache.Set(ctx, key, timetable, s.ttl); err != nil {
			s.logger.Sugar().Warnw("timetable cache write failed", "key", key, "error", err)
		}
	}
	return timetable, nil
}

// buildTimetable lays schedules out Monday first. Repositories return rows
// ordered by day and start time, so each day's entries arrive in start order.
func buildTimetable(resource, id, academicYear string, semester int, schedules []models.Schedule) *Timetable {
	byDay := make(map[string][]TimetableEntry, len(models.WeekDays))
	stats := TimetableStatistics{
		SessionsByDay: make(map[string]int),
		SubjectHours:  make(map[string]float64),
	}

	for _, sched := range schedules {
		entry := TimetableEntry{
			ScheduleID:  sched.ID,
			ClassRoomID: sched.ClassRoomID,
			SubjectID:   sched.SubjectID,
			TeacherID:   sched.TeacherID,
			StartTime:   sched.StartTime,
			EndTime:     sched.EndTime,
			Duration:    sched.Duration(),
		}
		byDay[sched.DayOfWeek] = append(byDay[sched.DayOfWeek], entry)

		hours := float64(entry.Duration) / 60
		stats.TotalSessions++
		stats.TotalHours += hours
		stats.SessionsByDay[sched.DayOfWeek]++
		stats.SubjectHours[sched.SubjectID] += hours
	}

	days := make([]TimetableDay, 0, len(models.WeekDays))
	for _, day := range models.WeekDays {
		days = append(days, TimetableDay{Day: day, Entries: byDay[day]})
	}

	return &Timetable{
		Resource:     resource,
		ResourceID:   id,
		AcademicYear: academicYear,
		Semester:     semester,
		Days:         days,
		Statistics:   stats,
		GeneratedAt:  time.Now().UTC(),
	}
}

func validatePeriod(academicYear string, semester int) error {
	if !academicYearPattern.MatchString(academicYear) {
		return appErrors.Clone(appErrors.ErrValidation, "academic year must look like 2024/2025")
	}
	if semester < 1 || semester > 2 {
		return appErrors.Clone(appErrors.ErrValidation, "semester must be 1 or 2")
	}
	return nil
}
