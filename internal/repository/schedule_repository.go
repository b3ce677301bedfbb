package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/school-sim/scheduling-api/internal/models"
)

const scheduleColumns = "id, class_room_id, subject_id, teacher_id, day_of_week, start_time, end_time, academic_year, semester, status, notes, created_at, updated_at"

// ScheduleRepository provides persistence for schedules.
type ScheduleRepository struct {
	db *sqlx.DB
}

// NewScheduleRepository creates a new schedule repository.
func NewScheduleRepository(db *sqlx.DB) *ScheduleRepository {
	return &ScheduleRepository{db: db}
}

// List returns schedules with optional filtering and pagination.
func (r *ScheduleRepository) List(ctx context.Context, filter models.ScheduleFilter) ([]models.Schedule, int, error) {
	base := "FROM schedules WHERE 1=1"
	var conditions []string
	var args []interface{}

	if filter.ClassRoomID != "" {
		conditions = append(conditions, fmt.Sprintf("class_room_id = $%d", len(args)+1))
		args = append(args, filter.ClassRoomID)
	}
	if filter.SubjectID != "" {
		conditions = append(conditions, fmt.Sprintf("subject_id = $%d", len(args)+1))
		args = append(args, filter.SubjectID)
	}
	if filter.TeacherID != "" {
		conditions = append(conditions, fmt.Sprintf("teacher_id = $%d", len(args)+1))
		args = append(args, filter.TeacherID)
	}
	if filter.DayOfWeek != "" {
		conditions = append(conditions, fmt.Sprintf("day_of_week = $%d", len(args)+1))
		args = append(args, filter.DayOfWeek)
	}
	if filter.AcademicYear != "" {
		conditions = append(conditions, fmt.Sprintf("academic_year = $%d", len(args)+1))
		args = append(args, filter.AcademicYear)
	}
	if filter.Semester != 0 {
		conditions = append(conditions, fmt.Sprintf("semester = $%d", len(args)+1))
		args = append(args, filter.Semester)
	}
	if filter.Status != "" {
		conditions = append(conditions, fmt.Sprintf("status = $%d", len(args)+1))
		args = append(args, filter.Status)
	}

	if len(conditions) > 0 {
		base += " AND " + strings.Join(conditions, " AND ")
	}

	sortBy := filter.SortBy
	if sortBy == "" {
		sortBy = "day_of_week"
	}
	allowedSorts := map[string]bool{
		"day_of_week": true,
		"start_time":  true,
		"created_at":  true,
	}
	if !allowedSorts[sortBy] {
		sortBy = "day_of_week"
	}
	order := strings.ToUpper(filter.SortOrder)
	if order != "ASC" && order != "DESC" {
		order = "ASC"
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 20
	}
	offset := (page - 1) * size

	query := fmt.Sprintf("SELECT %s %s ORDER BY %s %s, start_time ASC LIMIT %d OFFSET %d", scheduleColumns, base, sortBy, order, size, offset)
	var schedules []models.Schedule
	if err := r.db.SelectContext(ctx, &schedules, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list schedules: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", base)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count schedules: %w", err)
	}

	return schedules, total, nil
}

// FindByID loads a schedule by id.
func (r *ScheduleRepository) FindByID(ctx context.Context, id string) (*models.Schedule, error) {
	query := fmt.Sprintf("SELECT %s FROM schedules WHERE id = $1", scheduleColumns)
	var sched models.Schedule
	if err := r.db.GetContext(ctx, &sched, query, id); err != nil {
		return nil, err
	}
	return &sched, nil
}

// ListActiveByTeacherDay returns the active schedules of one teacher on one
// day within a period, ordered by start time. This is the reference set for
// teacher conflict detection and availability.
func (r *ScheduleRepository) ListActiveByTeacherDay(ctx context.Context, teacherID, dayOfWeek, academicYear string, semester int) ([]models.Schedule, error) {
	query := fmt.Sprintf("SELECT %s FROM schedules WHERE teacher_id = $1 AND day_of_week = $2 AND academic_year = $3 AND semester = $4 AND status = $5 ORDER BY start_time ASC", scheduleColumns)
	var schedules []models.Schedule
	if err := r.db.SelectContext(ctx, &schedules, query, teacherID, dayOfWeek, academicYear, semester, models.ScheduleStatusActive); err != nil {
		return nil, fmt.Errorf("list teacher day schedules: %w", err)
	}
	return schedules, nil
}

// ListActiveByClassRoomDay mirrors ListActiveByTeacherDay for a classroom.
func (r *ScheduleRepository) ListActiveByClassRoomDay(ctx context.Context, classRoomID, dayOfWeek, academicYear string, semester int) ([]models.Schedule, error) {
	query := fmt.Sprintf("SELECT %s FROM schedules WHERE class_room_id = $1 AND day_of_week = $2 AND academic_year = $3 AND semester = $4 AND status = $5 ORDER BY start_time ASC", scheduleColumns)
	var schedules []models.Schedule
	if err := r.db.SelectContext(ctx, &schedules, query, classRoomID, dayOfWeek, academicYear, semester, models.ScheduleStatusActive); err != nil {
		return nil, fmt.Errorf("list classroom day schedules: %w", err)
	}
	return schedules, nil
}

// ListActiveByTeacher returns a teacher's active schedules for a whole period.
func (r *ScheduleRepository) ListActiveByTeacher(ctx context.Context, teacherID, academicYear string, semester int) ([]models.Schedule, error) {
	return r.listActiveByColumn(ctx, "teacher_id", teacherID, academicYear, semester)
}

// ListActiveByClassRoom returns a classroom's active schedules for a whole period.
func (r *ScheduleRepository) ListActiveByClassRoom(ctx context.Context, classRoomID, academicYear string, semester int) ([]models.Schedule, error) {
	return r.listActiveByColumn(ctx, "class_room_id", classRoomID, academicYear, semester)
}

// ListActiveBySubject returns a subject's active schedules for a whole period.
func (r *ScheduleRepository) ListActiveBySubject(ctx context.Context, subjectID, academicYear string, semester int) ([]models.Schedule, error) {
	return r.listActiveByColumn(ctx, "subject_id", subjectID, academicYear, semester)
}

func (r *ScheduleRepository) listActiveByColumn(ctx context.Context, column, value, academicYear string, semester int) ([]models.Schedule, error) {
	query := fmt.Sprintf("SELECT %s FROM schedules WHERE %s = $1 AND academic_year = $2 AND semester = $3 AND status = $4 ORDER BY day_of_week ASC, start_time ASC", scheduleColumns, column)
	var schedules []models.Schedule
	if err := r.db.SelectContext(ctx, &schedules, query, value, academicYear, semester, models.ScheduleStatusActive); err != nil {
		return nil, fmt.Errorf("list schedules by %s: %w", column, err)
	}
	return schedules, nil
}

// ListActiveForPeriod returns every active schedule within a period, ordered
// by day and start time for the period-wide conflict audit.
func (r *ScheduleRepository) ListActiveForPeriod(ctx context.Context, academicYear string, semester int) ([]models.Schedule, error) {
	query := fmt.Sprintf("SELECT %s FROM schedules WHERE academic_year = $1 AND semester = $2 AND status = $3 ORDER BY day_of_week ASC, start_time ASC", scheduleColumns)
	var schedules []models.Schedule
	if err := r.db.SelectContext(ctx, &schedules, query, academicYear, semester, models.ScheduleStatusActive); err != nil {
		return nil, fmt.Errorf("list period schedules: %w", err)
	}
	return schedules, nil
}

// Create stores a new schedule record.
func (r *ScheduleRepository) Create(ctx context.Context, schedule *models.Schedule) error {
	if schedule.ID == "" {
		schedule.ID = uuid.NewString()
	}
	if schedule.Status == "" {
		schedule.Status = models.ScheduleStatusActive
	}
	now := time.Now().UTC()
	if schedule.CreatedAt.IsZero() {
		schedule.CreatedAt = now
	}
	schedule.UpdatedAt = now

	const query = `INSERT INTO schedules (id, class_room_id, subject_id, teacher_id, day_of_week, start_time, end_time, academic_year, semester, status, notes, created_at, updated_at) VALUES (:id, :class_room_id, :subject_id, :teacher_id, :day_of_week, :start_time, :end_time, :academic_year, :semester, :status, :notes, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, schedule); err != nil {
		return fmt.Errorf("create schedule: %w", err)
	}
	return nil
}

// Update modifies a schedule record.
func (r *ScheduleRepository) Update(ctx context.Context, schedule *models.Schedule) error {
	schedule.UpdatedAt = time.Now().UTC()
	const query = `UPDATE schedules SET class_room_id = :class_room_id, subject_id = :subject_id, teacher_id = :teacher_id, day_of_week = :day_of_week, start_time = :start_time, end_time = :end_time, academic_year = :academic_year, semester = :semester, status = :status, notes = :notes, updated_at = :updated_at WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, schedule); err != nil {
		return fmt.Errorf("update schedule: %w", err)
	}
	return nil
}

// UpdateStatus transitions a schedule's lifecycle state without touching the slot.
func (r *ScheduleRepository) UpdateStatus(ctx context.Context, id string, status models.ScheduleStatus) error {
	if _, err := r.db.ExecContext(ctx, `UPDATE schedules SET status = $1, updated_at = $2 WHERE id = $3`, status, time.Now().UTC(), id); err != nil {
		return fmt.Errorf("update schedule status: %w", err)
	}
	return nil
}

// ArchivePeriod marks every non-archived schedule of an academic year archived.
func (r *ScheduleRepository) ArchivePeriod(ctx context.Context, academicYear string) (int64, error) {
	res, err := r.db.ExecContext(ctx, `UPDATE schedules SET status = $1, updated_at = $2 WHERE academic_year = $3 AND status <> $1`, models.ScheduleStatusArchived, time.Now().UTC(), academicYear)
	if err != nil {
		return 0, fmt.Errorf("archive period schedules: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("archive period schedules: %w", err)
	}
	return affected, nil
}

// Delete removes a schedule by id.
func (r *ScheduleRepository) Delete(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM schedules WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete schedule: %w", err)
	}
	return nil
}
