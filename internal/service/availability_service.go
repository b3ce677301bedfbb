package service

import (
	"context"
	"fmt"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/school-sim/scheduling-api/internal/models"
	"github.com/school-sim/scheduling-api/pkg/config"
	appErrors "github.com/school-sim/scheduling-api/pkg/errors"
)

// ResourceType selects which shared resource an availability query targets.
type ResourceType string

const (
	ResourceTeacher   ResourceType = "teacher"
	ResourceClassRoom ResourceType = "classroom"
)

type availabilityScheduleRepository interface {
	ListActiveByTeacherDay(ctx context.Context, teacherID, dayOfWeek, academicYear string, semester int) ([]models.Schedule, error)
	ListActiveByClassRoomDay(ctx context.Context, classRoomID, dayOfWeek, academicYear string, semester int) ([]models.Schedule, error)
}

// AvailabilityQuery identifies one resource-day within an academic period.
// MinDuration optionally drops free gaps shorter than that many minutes; at
// zero every gap is reported.
type AvailabilityQuery struct {
	Resource     ResourceType `json:"resource" validate:"required,oneof=teacher classroom"`
	ResourceID   string       `json:"resource_id" validate:"required"`
	DayOfWeek    string       `json:"day_of_week" validate:"required"`
	AcademicYear string       `json:"academic_year" validate:"required"`
	Semester     int          `json:"semester" validate:"required,min=1,max=2"`
	MinDuration  int          `json:"min_duration" validate:"min=0"`
}

// AvailabilityResult lists the free slots of one resource-day.
type AvailabilityResult struct {
	Resource     ResourceType       `json:"resource"`
	ResourceID   string             `json:"resource_id"`
	DayOfWeek    string             `json:"day_of_week"`
	AcademicYear string             `json:"academic_year"`
	Semester     int                `json:"semester"`
	Window       models.TimeRange   `json:"window"`
	FreeSlots    []models.TimeRange `json:"free_slots"`
}

// AvailabilityCheckQuery asks whether one concrete slot is free.
type AvailabilityCheckQuery struct {
	AvailabilityQuery
	StartTime string `json:"start_time" validate:"required"`
	EndTime   string `json:"end_time" validate:"required"`
}

// AvailabilityCheckResult reports a point availability query.
type AvailabilityCheckResult struct {
	Available bool              `json:"available"`
	Conflicts []models.Conflict `json:"conflicts,omitempty"`
}

// AvailabilityService computes free slots as the complement of a resource's
// committed sessions within the configured working window.
type AvailabilityService struct {
	schedules availabilityScheduleRepository
	window    models.TimeRange
	validator *validator.Validate
	logger    *zap.Logger
}

// NewAvailabilityService constructs an AvailabilityService from the
// scheduling configuration.
func NewAvailabilityService(schedules availabilityScheduleRepository, cfg config.SchedulingConfig, validate *validator.Validate, logger *zap.Logger) *AvailabilityService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AvailabilityService{
		schedules: schedules,
		window:    workingWindow(cfg),
		validator: validate,
		logger:    logger,
	}
}

// AvailableSlots returns the free intervals of one resource-day, ordered by
// start time. Committed sessions are clipped to the working window and merged
// before taking the complement, so free slots and busy sessions together
// cover the whole window unless the query asks for gaps below MinDuration to
// be dropped.
func (s *AvailabilityService) AvailableSlots(ctx context.Context, query AvailabilityQuery) (*AvailabilityResult, error) {
	if err := s.validator.Struct(query); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid availability query")
	}
	day, ok := models.NormalizeDay(query.DayOfWeek)
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown day of week %q", query.DayOfWeek))
	}
	if !academicYearPattern.MatchString(query.AcademicYear) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "academic year must look like 2024/2025")
	}

	busy, err := s.loadBusy(ctx, query.Resource, query.ResourceID, day, query.AcademicYear, query.Semester)
	if err != nil {
		return nil, err
	}

	free := complementWithin(s.window, mergeBusy(s.window, busy), query.MinDuration)
	return &AvailabilityResult{
		Resource:     query.Resource,
		ResourceID:   query.ResourceID,
		DayOfWeek:    day,
		AcademicYear: query.AcademicYear,
		Semester:     query.Semester,
		Window:       s.window,
		FreeSlots:    free,
	}, nil
}

// CheckAvailability reports whether one concrete slot is free for the
// resource, along with the sessions that occupy it when it is not.
func (s *AvailabilityService) CheckAvailability(ctx context.Context, query AvailabilityCheckQuery) (*AvailabilityCheckResult, error) {
	if err := s.validator.Struct(query); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid availability query")
	}
	day, ok := models.NormalizeDay(query.DayOfWeek)
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown day of week %q", query.DayOfWeek))
	}
	start, err := models.ParseTimeOfDay(query.StartTime)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "start_time must look like HH:MM")
	}
	end, err := models.ParseTimeOfDay(query.EndTime)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "end_time must look like HH:MM")
	}
	if start >= end {
		return nil, appErrors.Clone(appErrors.ErrValidation, "start_time must be before end_time")
	}

	busy, err := s.loadBusy(ctx, query.Resource, query.ResourceID, day, query.AcademicYear, query.Semester)
	if err != nil {
		return nil, err
	}

	kind := models.ConflictKindTeacher
	if query.Resource == ResourceClassRoom {
		kind = models.ConflictKindClassRoom
	}
	candidate := models.Schedule{DayOfWeek: day, StartTime: start, EndTime: end}
	conflicts := DetectConflicts(candidate, busy, kind)
	return &AvailabilityCheckResult{Available: len(conflicts) == 0, Conflicts: conflicts}, nil
}

func (s *AvailabilityService) loadBusy(ctx context.Context, resource ResourceType, id, day, academicYear string, semester int) ([]models.Schedule, error) {
	var (
		busy []models.Schedule
		err  error
	)
	switch resource {
	case ResourceTeacher:
		busy, err = s.schedules.ListActiveByTeacherDay(ctx, id, day, academicYear, semester)
	case ResourceClassRoom:
		busy, err = s.schedules.ListActiveByClassRoomDay(ctx, id, day, academicYear, semester)
	default:
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown resource %q", resource))
	}
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load schedules")
	}
	return busy, nil
}

// mergeBusy clips each session to the window and merges overlapping or
// touching intervals. Input is ordered by start time.
func mergeBusy(window models.TimeRange, busy []models.Schedule) []models.TimeRange {
	var merged []models.TimeRange
	for _, s := range busy {
		clipped, ok := s.Range().Intersect(window)
		if !ok {
			continue
		}
		if n := len(merged); n > 0 && clipped.Start <= merged[n-1].End {
			if clipped.End > merged[n-1].End {
				merged[n-1].End = clipped.End
			}
			continue
		}
		merged = append(merged, clipped)
	}
	return merged
}

// complementWithin returns the gaps of the window not covered by the merged
// busy intervals, dropping gaps shorter than minMinutes.
func complementWithin(window models.TimeRange, busy []models.TimeRange, minMinutes int) []models.TimeRange {
	free := make([]models.TimeRange, 0, len(busy)+1)
	cursor := window.Start
	for _, b := range busy {
		if b.Start > cursor {
			free = append(free, models.TimeRange{Start: cursor, End: b.Start})
		}
		if b.End > cursor {
			cursor = b.End
		}
	}
	if cursor < window.End {
		free = append(free, models.TimeRange{Start: cursor, End: window.End})
	}

	if minMinutes <= 0 {
		return free
	}
	kept := free[:0]
	for _, f := range free {
		if f.Duration() >= minMinutes {
			kept = append(kept, f)
		}
	}
	return kept
}

func workingWindow(cfg config.SchedulingConfig) models.TimeRange {
	start, err := models.ParseTimeOfDay(cfg.WorkingDayStart)
	if err != nil {
		start, _ = models.ParseTimeOfDay("07:00")
	}
	end, err := models.ParseTimeOfDay(cfg.WorkingDayEnd)
	if err != nil {
		end, _ = models.ParseTimeOfDay("16:00")
	}
	if start >= end {
		start, _ = models.ParseTimeOfDay("07:00")
		end, _ = models.ParseTimeOfDay("16:00")
	}
	return models.TimeRange{Start: start, End: end}
}

func minSessionMinutes(cfg config.SchedulingConfig) int {
	if cfg.MinSessionMinutes <= 0 {
		return 30
	}
	return cfg.MinSessionMinutes
}
