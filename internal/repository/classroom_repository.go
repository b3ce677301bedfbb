package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/school-sim/scheduling-api/internal/models"
)

const classRoomColumns = "id, code, name, grade, capacity, location, active, created_at, updated_at"

// ClassRoomRepository manages persistence for classrooms.
type ClassRoomRepository struct {
	db *sqlx.DB
}

// NewClassRoomRepository constructs a new classroom repository.
func NewClassRoomRepository(db *sqlx.DB) *ClassRoomRepository {
	return &ClassRoomRepository{db: db}
}

// List returns classrooms matching filter criteria.
func (r *ClassRoomRepository) List(ctx context.Context, filter models.ClassRoomFilter) ([]models.ClassRoom, int, error) {
	base := "FROM class_rooms WHERE 1=1"
	var conditions []string
	var args []interface{}

	if filter.Grade != "" {
		conditions = append(conditions, fmt.Sprintf("grade = $%d", len(args)+1))
		args = append(args, filter.Grade)
	}
	if filter.MinCapacity > 0 {
		conditions = append(conditions, fmt.Sprintf("capacity >= $%d", len(args)+1))
		args = append(args, filter.MinCapacity)
	}
	if filter.Active != nil {
		conditions = append(conditions, fmt.Sprintf("active = $%d", len(args)+1))
		args = append(args, *filter.Active)
	}
	if filter.Search != "" {
		conditions = append(conditions, fmt.Sprintf("(LOWER(name) LIKE $%d OR LOWER(code) LIKE $%d)", len(args)+1, len(args)+1))
		args = append(args, "%"+strings.ToLower(filter.Search)+"%")
	}

	if len(conditions) > 0 {
		base += " AND " + strings.Join(conditions, " AND ")
	}

	sortBy := filter.SortBy
	allowedSorts := map[string]bool{
		"code":       true,
		"name":       true,
		"grade":      true,
		"capacity":   true,
		"created_at": true,
	}
	if !allowedSorts[sortBy] {
		sortBy = "code"
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

	query := fmt.Sprintf("SELECT %s %s ORDER BY %s %s LIMIT %d OFFSET %d", classRoomColumns, base, sortBy, order, size, offset)
	var rooms []models.ClassRoom
	if err := r.db.SelectContext(ctx, &rooms, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list classrooms: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", base)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count classrooms: %w", err)
	}
	return rooms, total, nil
}

// FindByID returns a classroom record by ID.
func (r *ClassRoomRepository) FindByID(ctx context.Context, id string) (*models.ClassRoom, error) {
	query := fmt.Sprintf("SELECT %s FROM class_rooms WHERE id = $1", classRoomColumns)
	var room models.ClassRoom
	if err := r.db.GetContext(ctx, &room, query, id); err != nil {
		return nil, err
	}
	return &room, nil
}

// ListAlternatives returns active classrooms, excluding one id, that match the
// given grade and offer at least the requested capacity, ordered by code so
// reassignment picks rooms deterministically.
func (r *ClassRoomRepository) ListAlternatives(ctx context.Context, excludeID, grade string, minCapacity int) ([]models.ClassRoom, error) {
	query := fmt.Sprintf("SELECT %s FROM class_rooms WHERE active = TRUE AND id <> $1 AND grade = $2 AND capacity >= $3 ORDER BY code ASC", classRoomColumns)
	var rooms []models.ClassRoom
	if err := r.db.SelectContext(ctx, &rooms, query, excludeID, grade, minCapacity); err != nil {
		return nil, fmt.Errorf("list alternative classrooms: %w", err)
	}
	return rooms, nil
}

// ExistsByCode checks if a classroom with the same code already exists.
func (r *ClassRoomRepository) ExistsByCode(ctx context.Context, code, excludeID string) (bool, error) {
	query := "SELECT 1 FROM class_rooms WHERE LOWER(code) = LOWER($1)"
	args := []interface{}{code}
	if excludeID != "" {
		query += " AND id <> $2"
		args = append(args, excludeID)
	}
	query += " LIMIT 1"

	var one int
	if err := r.db.GetContext(ctx, &one, query, args...); err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("check classroom code: %w", err)
	}
	return true, nil
}

// Create stores a new classroom record.
func (r *ClassRoomRepository) Create(ctx context.Context, room *models.ClassRoom) error {
	if room.ID == "" {
		room.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if room.CreatedAt.IsZero() {
		room.CreatedAt = now
	}
	room.UpdatedAt = now

	const query = `INSERT INTO class_rooms (id, code, name, grade, capacity, location, active, created_at, updated_at) VALUES (:id, :code, :name, :grade, :capacity, :location, :active, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, room); err != nil {
		return fmt.Errorf("create classroom: %w", err)
	}
	return nil
}

// Update modifies a classroom record.
func (r *ClassRoomRepository) Update(ctx context.Context, room *models.ClassRoom) error {
	room.UpdatedAt = time.Now().UTC()
	const query = `UPDATE class_rooms SET code = :code, name = :name, grade = :grade, capacity = :capacity, location = :location, active = :active, updated_at = :updated_at WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, room); err != nil {
		return fmt.Errorf("update classroom: %w", err)
	}
	return nil
}

// Deactivate marks a classroom unavailable for new schedules.
func (r *ClassRoomRepository) Deactivate(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, `UPDATE class_rooms SET active = FALSE, updated_at = $2 WHERE id = $1`, id, time.Now().UTC()); err != nil {
		return fmt.Errorf("deactivate classroom: %w", err)
	}
	return nil
}
