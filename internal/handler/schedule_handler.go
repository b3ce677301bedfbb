package handler

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/school-sim/scheduling-api/internal/models"
	"github.com/school-sim/scheduling-api/internal/service"
	appErrors "github.com/school-sim/scheduling-api/pkg/errors"
	"github.com/school-sim/scheduling-api/pkg/response"
)

// ScheduleHandler manages schedule endpoints.
type ScheduleHandler struct {
	service  *service.ScheduleService
	resolver *service.ResolverService
}

// NewScheduleHandler constructs a ScheduleHandler.
func NewScheduleHandler(svc *service.ScheduleService, resolver *service.ResolverService) *ScheduleHandler {
	return &ScheduleHandler{service: svc, resolver: resolver}
}

// List godoc
// @Summary List schedules
// @Tags Schedules
// @Produce json
// @Param classRoomId query string false "Filter by classroom"
// @Param subjectId query string false "Filter by subject"
// @Param teacherId query string false "Filter by teacher"
// @Param dayOfWeek query string false "Filter by day"
// @Param academicYear query string false "Filter by academic year"
// @Param semester query int false "Filter by semester"
// @Param status query string false "Filter by status"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /schedules [get]
func (h *ScheduleHandler) List(c *gin.Context) {
	var filter models.ScheduleFilter
	filter.ClassRoomID = c.Query("classRoomId")
	filter.SubjectID = c.Query("subjectId")
	filter.TeacherID = c.Query("teacherId")
	filter.DayOfWeek = c.Query("dayOfWeek")
	filter.AcademicYear = c.Query("academicYear")
	if semester, err := strconv.Atoi(c.Query("semester")); err == nil {
		filter.Semester = semester
	}
	filter.Status = models.ScheduleStatus(strings.ToUpper(c.Query("status")))
	if page, err := strconv.Atoi(c.DefaultQuery("page", "1")); err == nil {
		filter.Page = page
	}
	if limit, err := strconv.Atoi(c.DefaultQuery("limit", "20")); err == nil {
		filter.PageSize = limit
	}
	filter.SortBy = c.Query("sort")
	filter.SortOrder = c.Query("order")

	schedules, pagination, err := h.service.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, schedules, pagination)
}

// Get godoc
// @Summary Get schedule detail
// @Tags Schedules
// @Produce json
// @Param id path string true "Schedule ID"
// @Success 200 {object} response.Envelope
// @Router /schedules/{id} [get]
func (h *ScheduleHandler) Get(c *gin.Context) {
	schedule, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, schedule, nil)
}

// Create godoc
// @Summary Create schedule
// @Tags Schedules
// @Accept json
// @Produce json
// @Param payload body service.CreateScheduleRequest true "Schedule payload"
// @Success 201 {object} response.Envelope
// @Router /schedules [post]
func (h *ScheduleHandler) Create(c *gin.Context) {
	var req service.CreateScheduleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	schedule, err := h.service.Create(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, schedule)
}

// Update godoc
// @Summary Update schedule
// @Tags Schedules
// @Accept json
// @Produce json
// @Param id path string true "Schedule ID"
// @Param payload body service.UpdateScheduleRequest true "Schedule payload"
// @Success 200 {object} response.Envelope
// @Router /schedules/{id} [put]
func (h *ScheduleHandler) Update(c *gin.Context) {
	var req service.UpdateScheduleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	schedule, err := h.service.Update(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, schedule, nil)
}

type setScheduleStatusRequest struct {
	Status models.ScheduleStatus `json:"status" binding:"required"`
}

// SetStatus godoc
// @Summary Transition schedule status
// @Tags Schedules
// @Accept json
// @Produce json
// @Param id path string true "Schedule ID"
// @Param payload body setScheduleStatusRequest true "Status payload"
// @Success 200 {object} response.Envelope
// @Router /schedules/{id}/status [patch]
func (h *ScheduleHandler) SetStatus(c *gin.Context) {
	var req setScheduleStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	schedule, err := h.service.SetStatus(c.Request.Context(), c.Param("id"), req.Status)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, schedule, nil)
}

// Delete godoc
// @Summary Delete schedule
// @Tags Schedules
// @Param id path string true "Schedule ID"
// @Success 204
// @Router /schedules/{id} [delete]
func (h *ScheduleHandler) Delete(c *gin.Context) {
	if err := h.service.Delete(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// BulkCreate godoc
// @Summary Bulk create schedules
// @Tags Schedules
// @Accept json
// @Produce json
// @Param payload body service.BulkScheduleRequest true "Bulk payload"
// @Success 207 {object} response.Envelope
// @Router /schedules/bulk [post]
func (h *ScheduleHandler) BulkCreate(c *gin.Context) {
	var req service.BulkScheduleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	result, err := h.service.BulkCreate(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	status := http.StatusCreated
	if result.Rejected > 0 || result.NotProcessed > 0 {
		status = http.StatusMultiStatus
	}
	response.JSON(c, status, result, nil)
}

// CheckConflicts godoc
// @Summary Check a candidate slot for conflicts
// @Tags Conflicts
// @Accept json
// @Produce json
// @Param payload body service.CheckConflictsRequest true "Candidate slot"
// @Success 200 {object} response.Envelope
// @Router /schedules/conflicts/check [post]
func (h *ScheduleHandler) CheckConflicts(c *gin.Context) {
	var req service.CheckConflictsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	conflicts, err := h.service.CheckConflicts(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, gin.H{"has_conflicts": len(conflicts) > 0, "conflicts": conflicts}, nil)
}

// AuditConflicts godoc
// @Summary List every conflicting schedule pair of a period
// @Tags Conflicts
// @Produce json
// @Param academicYear query string true "Academic year"
// @Param semester query int true "Semester"
// @Success 200 {object} response.Envelope
// @Router /schedules/conflicts [get]
func (h *ScheduleHandler) AuditConflicts(c *gin.Context) {
	semester, _ := strconv.Atoi(c.Query("semester"))
	pairs, err := h.service.AuditConflicts(c.Request.Context(), c.Query("academicYear"), semester)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, gin.H{"total": len(pairs), "conflicts": pairs}, nil)
}

// ResolveConflicts godoc
// @Summary Resolve conflicting schedules
// @Tags Conflicts
// @Accept json
// @Produce json
// @Param payload body service.ResolveConflictsRequest true "Resolution payload"
// @Success 200 {object} response.Envelope
// @Router /schedules/conflicts/resolve [post]
func (h *ScheduleHandler) ResolveConflicts(c *gin.Context) {
	var req service.ResolveConflictsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	result, err := h.resolver.Resolve(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

type archiveYearRequest struct {
	AcademicYear string `json:"academic_year" binding:"required"`
}

// ArchiveYear godoc
// @Summary Archive every schedule of an academic year
// @Tags Schedules
// @Accept json
// @Produce json
// @Param payload body archiveYearRequest true "Archive payload"
// @Success 200 {object} response.Envelope
// @Router /schedules/archive [post]
func (h *ScheduleHandler) ArchiveYear(c *gin.Context) {
	var req archiveYearRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	affected, err := h.service.ArchiveYear(c.Request.Context(), req.AcademicYear)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, gin.H{"archived": affected}, nil)
}
