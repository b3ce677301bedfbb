package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/school-sim/scheduling-api/internal/service"
	"github.com/school-sim/scheduling-api/pkg/response"
)

// AvailabilityHandler serves free-slot queries.
type AvailabilityHandler struct {
	service *service.AvailabilityService
}

// NewAvailabilityHandler constructs an AvailabilityHandler.
func NewAvailabilityHandler(svc *service.AvailabilityService) *AvailabilityHandler {
	return &AvailabilityHandler{service: svc}
}

func availabilityQueryFromContext(c *gin.Context) service.AvailabilityQuery {
	semester, _ := strconv.Atoi(c.Query("semester"))
	minDuration, _ := strconv.Atoi(c.Query("minDuration"))
	return service.AvailabilityQuery{
		Resource:     service.ResourceType(c.Query("resource")),
		ResourceID:   c.Query("resourceId"),
		DayOfWeek:    c.Query("dayOfWeek"),
		AcademicYear: c.Query("academicYear"),
		Semester:     semester,
		MinDuration:  minDuration,
	}
}

// Slots godoc
// @Summary List free slots of a teacher or classroom
// @Tags Availability
// @Produce json
// @Param resource query string true "Resource type (teacher or classroom)"
// @Param resourceId query string true "Resource ID"
// @Param dayOfWeek query string true "Day of week"
// @Param academicYear query string true "Academic year"
// @Param semester query int true "Semester"
// @Param minDuration query int false "Drop free gaps shorter than this many minutes"
// @Success 200 {object} response.Envelope
// @Router /availability/slots [get]
func (h *AvailabilityHandler) Slots(c *gin.Context) {
	result, err := h.service.AvailableSlots(c.Request.Context(), availabilityQueryFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// Check godoc
// @Summary Check whether one slot is free
// @Tags Availability
// @Produce json
// @Param resource query string true "Resource type (teacher or classroom)"
// @Param resourceId query string true "Resource ID"
// @Param dayOfWeek query string true "Day of week"
// @Param academicYear query string true "Academic year"
// @Param semester query int true "Semester"
// @Param startTime query string true "Start time HH:MM"
// @Param endTime query string true "End time HH:MM"
// @Success 200 {object} response.Envelope
// @Router /availability/check [get]
func (h *AvailabilityHandler) Check(c *gin.Context) {
	query := service.AvailabilityCheckQuery{
		AvailabilityQuery: availabilityQueryFromContext(c),
		StartTime:         c.Query("startTime"),
		EndTime:           c.Query("endTime"),
	}
	result, err := h.service.CheckAvailability(c.Request.Context(), query)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}
