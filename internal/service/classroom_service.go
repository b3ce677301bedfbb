package service

import (
	"context"
	"database/sql"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/school-sim/scheduling-api/internal/models"
	appErrors "github.com/school-sim/scheduling-api/pkg/errors"
)

type classRoomRepository interface {
	List(ctx context.Context, filter models.ClassRoomFilter) ([]models.ClassRoom, int, error)
	FindByID(ctx context.Context, id string) (*models.ClassRoom, error)
	ExistsByCode(ctx context.Context, code, excludeID string) (bool, error)
	Create(ctx context.Context, room *models.ClassRoom) error
	Update(ctx context.Context, room *models.ClassRoom) error
	Deactivate(ctx context.Context, id string) error
}

// CreateClassRoomRequest represents payload for creating classrooms.
type CreateClassRoomRequest struct {
	Code     string  `json:"code" validate:"required,max=20"`
	Name     string  `json:"name" validate:"required,max=120"`
	Grade    string  `json:"grade" validate:"required,max=10"`
	Capacity int     `json:"capacity" validate:"required,min=1,max=100"`
	Location *string `json:"location" validate:"omitempty,max=120"`
}

// UpdateClassRoomRequest represents payload for updating classrooms.
type UpdateClassRoomRequest struct {
	Code     string  `json:"code" validate:"required,max=20"`
	Name     string  `json:"name" validate:"required,max=120"`
	Grade    string  `json:"grade" validate:"required,max=10"`
	Capacity int     `json:"capacity" validate:"required,min=1,max=100"`
	Location *string `json:"location" validate:"omitempty,max=120"`
	Active   *bool   `json:"active"`
}

// ClassRoomService orchestrates classroom operations.
type ClassRoomService struct {
	repo      classRoomRepository
	validator *validator.Validate
	logger    *zap.Logger
}

// NewClassRoomService constructs a ClassRoomService.
func NewClassRoomService(repo classRoomRepository, validate *validator.Validate, logger *zap.Logger) *ClassRoomService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ClassRoomService{repo: repo, validator: validate, logger: logger}
}

// List returns classrooms plus pagination data.
func (s *ClassRoomService) List(ctx context.Context, filter models.ClassRoomFilter) ([]models.ClassRoom, *models.Pagination, error) {
	rooms, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list classrooms")
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 {
		size = 20
	}
	return rooms, &models.Pagination{Page: page, PageSize: size, TotalCount: total}, nil
}

// Get returns a classroom by id.
func (s *ClassRoomService) Get(ctx context.Context, id string) (*models.ClassRoom, error) {
	room, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "classroom not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load classroom")
	}
	return room, nil
}

// Create registers a new classroom.
func (s *ClassRoomService) Create(ctx context.Context, req CreateClassRoomRequest) (*models.ClassRoom, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid classroom payload")
	}
	if err := s.ensureUniqueCode(ctx, req.Code, ""); err != nil {
		return nil, err
	}

	room := &models.ClassRoom{
		Code:     strings.TrimSpace(req.Code),
		Name:     strings.TrimSpace(req.Name),
		Grade:    strings.ToUpper(strings.TrimSpace(req.Grade)),
		Capacity: req.Capacity,
		Location: normalizeOptional(req.Location),
		Active:   true,
	}
	if err := s.repo.Create(ctx, room); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create classroom")
	}
	return room, nil
}

// Update modifies an existing classroom.
func (s *ClassRoomService) Update(ctx context.Context, id string, req UpdateClassRoomRequest) (*models.ClassRoom, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid classroom payload")
	}

	room, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.ensureUniqueCode(ctx, req.Code, id); err != nil {
		return nil, err
	}

	room.Code = strings.TrimSpace(req.Code)
	room.Name = strings.TrimSpace(req.Name)
	room.Grade = strings.ToUpper(strings.TrimSpace(req.Grade))
	room.Capacity = req.Capacity
	room.Location = normalizeOptional(req.Location)
	if req.Active != nil {
		room.Active = *req.Active
	}

	if err := s.repo.Update(ctx, room); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update classroom")
	}
	return room, nil
}

// Deactivate retires a classroom from new schedules without deleting history.
func (s *ClassRoomService) Deactivate(ctx context.Context, id string) error {
	if _, err := s.Get(ctx, id); err != nil {
		return err
	}
	if err := s.repo.Deactivate(ctx, id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to deactivate classroom")
	}
	return nil
}

func (s *ClassRoomService) ensureUniqueCode(ctx context.Context, code, excludeID string) error {
	exists, err := s.repo.ExistsByCode(ctx, code, excludeID)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check classroom code")
	}
	if exists {
		return appErrors.Clone(appErrors.ErrConflict, "classroom code already in use")
	}
	return nil
}
