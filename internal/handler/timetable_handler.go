package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/school-sim/scheduling-api/internal/service"
	"github.com/school-sim/scheduling-api/pkg/response"
)

// TimetableHandler serves weekly grid endpoints.
type TimetableHandler struct {
	service *service.TimetableService
}

// NewTimetableHandler constructs a TimetableHandler.
func NewTimetableHandler(svc *service.TimetableService) *TimetableHandler {
	return &TimetableHandler{service: svc}
}

func periodFromContext(c *gin.Context) (string, int) {
	semester, _ := strconv.Atoi(c.Query("semester"))
	return c.Query("academicYear"), semester
}

// Teacher godoc
// @Summary Weekly timetable of a teacher
// @Tags Timetables
// @Produce json
// @Param id path string true "Teacher ID"
// @Param academicYear query string true "Academic year"
// @Param semester query int true "Semester"
// @Success 200 {object} response.Envelope
// @Router /timetables/teachers/{id} [get]
func (h *TimetableHandler) Teacher(c *gin.Context) {
	year, semester := periodFromContext(c)
	timetable, err := h.service.TeacherTimetable(c.Request.Context(), c.Param("id"), year, semester)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, timetable, nil)
}

// ClassRoom godoc
// @Summary Weekly timetable of a classroom
// @Tags Timetables
// @Produce json
// @Param id path string true "Classroom ID"
// @Param academicYear query string true "Academic year"
// @Param semester query int true "Semester"
// @Success 200 {object} response.Envelope
// @Router /timetables/classrooms/{id} [get]
func (h *TimetableHandler) ClassRoom(c *gin.Context) {
	year, semester := periodFromContext(c)
	timetable, err := h.service.ClassRoomTimetable(c.Request.Context(), c.Param("id"), year, semester)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, timetable, nil)
}

// Subject godoc
// @Summary Weekly timetable of a subject
// @Tags Timetables
// @Produce json
// @Param id path string true "Subject ID"
// @Param academicYear query string true "Academic year"
// @Param semester query int true "Semester"
// @Success 200 {object} response.Envelope
// @Router /timetables/subjects/{id} [get]
func (h *TimetableHandler) Subject(c *gin.Context) {
	year, semester := periodFromContext(c)
	timetable, err := h.service.SubjectTimetable(c.Request.Context(), c.Param("id"), year, semester)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, timetable, nil)
}
