package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/school-sim/scheduling-api/internal/models"
	"github.com/school-sim/scheduling-api/internal/service"
	"github.com/school-sim/scheduling-api/pkg/config"
)

func newAvailabilityHandlerFixture(store *scheduleStoreMock) *AvailabilityHandler {
	cfg := config.SchedulingConfig{
		WorkingDayStart:   "07:00",
		WorkingDayEnd:     "16:00",
		MinSessionMinutes: 30,
	}
	return NewAvailabilityHandler(service.NewAvailabilityService(store, cfg, nil, nil))
}

func seedSchedule(t *testing.T, store *scheduleStoreMock, start, end string) {
	t.Helper()
	startAt, err := models.ParseTimeOfDay(start)
	require.NoError(t, err)
	endAt, err := models.ParseTimeOfDay(end)
	require.NoError(t, err)
	require.NoError(t, store.Create(context.Background(), &models.Schedule{
		ClassRoomID:  "r1",
		SubjectID:    "sub1",
		TeacherID:    "t1",
		DayOfWeek:    "MONDAY",
		StartTime:    startAt,
		EndTime:      endAt,
		AcademicYear: "2024/2025",
		Semester:     1,
		Status:       models.ScheduleStatusActive,
	}))
}

func TestAvailabilityHandlerSlots(t *testing.T) {
	gin.SetMode(gin.TestMode)
	store := newScheduleStoreMock()
	seedSchedule(t, store, "08:00", "09:30")
	handler := newAvailabilityHandlerFixture(store)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodGet, "/availability/slots?resource=teacher&resourceId=t1&dayOfWeek=monday&academicYear=2024/2025&semester=1", nil)
	c.Request = req

	handler.Slots(c)
	require.Equal(t, http.StatusOK, w.Code)

	var envelope struct {
		Data service.AvailabilityResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
	require.Len(t, envelope.Data.FreeSlots, 2)
	assert.Equal(t, "07:00", envelope.Data.FreeSlots[0].Start.String())
	assert.Equal(t, "08:00", envelope.Data.FreeSlots[0].End.String())
	assert.Equal(t, "09:30", envelope.Data.FreeSlots[1].Start.String())
	assert.Equal(t, "16:00", envelope.Data.FreeSlots[1].End.String())
}

func TestAvailabilityHandlerSlotsInvalidResource(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := newAvailabilityHandlerFixture(newScheduleStoreMock())

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodGet, "/availability/slots?resource=student&resourceId=t1&dayOfWeek=monday&academicYear=2024/2025&semester=1", nil)
	c.Request = req

	handler.Slots(c)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAvailabilityHandlerCheck(t *testing.T) {
	gin.SetMode(gin.TestMode)
	store := newScheduleStoreMock()
	seedSchedule(t, store, "08:00", "09:30")
	handler := newAvailabilityHandlerFixture(store)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodGet, "/availability/check?resource=teacher&resourceId=t1&dayOfWeek=monday&academicYear=2024/2025&semester=1&startTime=09:00&endTime=10:00", nil)
	c.Request = req

	handler.Check(c)
	require.Equal(t, http.StatusOK, w.Code)

	var envelope struct {
		Data service.AvailabilityCheckResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
	assert.False(t, envelope.Data.Available)
	require.Len(t, envelope.Data.Conflicts, 1)
}

func TestAvailabilityHandlerCheckMissingTimes(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := newAvailabilityHandlerFixture(newScheduleStoreMock())

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodGet, "/availability/check?resource=teacher&resourceId=t1&dayOfWeek=monday&academicYear=2024/2025&semester=1", nil)
	c.Request = req

	handler.Check(c)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
