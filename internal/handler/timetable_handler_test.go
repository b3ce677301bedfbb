package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/school-sim/scheduling-api/internal/models"
	"github.com/school-sim/scheduling-api/internal/service"
	appErrors "github.com/school-sim/scheduling-api/pkg/errors"
)

type cacheStoreMock struct {
	mu      sync.Mutex
	entries map[string][]byte
}

func newCacheStoreMock() *cacheStoreMock {
	return &cacheStoreMock{entries: map[string][]byte{}}
}

func (m *cacheStoreMock) Get(ctx context.Context, key string, dest interface{}) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	raw, ok := m.entries[key]
	if !ok {
		return appErrors.ErrCacheMiss
	}
	return json.Unmarshal(raw, dest)
}

func (m *cacheStoreMock) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[key] = raw
	return nil
}

func (m *cacheStoreMock) DeleteByPattern(ctx context.Context, pattern string) error {
	prefix := strings.TrimSuffix(pattern, "*")
	m.mu.Lock()
	defer m.mu.Unlock()
	for key := range m.entries {
		if strings.HasPrefix(key, prefix) {
			delete(m.entries, key)
		}
	}
	return nil
}

func newTimetableHandlerFixture(store *scheduleStoreMock) *TimetableHandler {
	rooms := &classRoomReaderMock{rooms: map[string]models.ClassRoom{
		"r1": {ID: "r1", Code: "X-A", Grade: "X", Capacity: 30, Active: true},
	}}
	subjects := &subjectReaderMock{subjects: map[string]models.Subject{
		"sub1": {ID: "sub1", Code: "MATH", Name: "Mathematics", Credits: 4},
	}}
	teachers := &teacherReaderMock{teachers: map[string]models.Teacher{
		"t1": {ID: "t1", Email: "t1@example.sch.id", FullName: "Rina Wulandari", Active: true},
	}}
	svc := service.NewTimetableService(store, teachers, rooms, subjects, newCacheStoreMock(), time.Minute, nil, nil)
	return NewTimetableHandler(svc)
}

func TestTimetableHandlerTeacher(t *testing.T) {
	gin.SetMode(gin.TestMode)
	store := newScheduleStoreMock()
	seedSchedule(t, store, "08:00", "09:30")
	handler := newTimetableHandlerFixture(store)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodGet, "/timetables/teachers/t1?academicYear=2024/2025&semester=1", nil)
	c.Request = req
	c.Params = gin.Params{{Key: "id", Value: "t1"}}

	handler.Teacher(c)
	require.Equal(t, http.StatusOK, w.Code)

	var envelope struct {
		Data service.Timetable `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
	assert.Equal(t, "t1", envelope.Data.ResourceID)
	require.Len(t, envelope.Data.Days, 7)
	assert.Equal(t, "MONDAY", envelope.Data.Days[0].Day)
	require.Len(t, envelope.Data.Days[0].Entries, 1)
	assert.Equal(t, 1, envelope.Data.Statistics.TotalSessions)
}

func TestTimetableHandlerTeacherUnknown(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := newTimetableHandlerFixture(newScheduleStoreMock())

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodGet, "/timetables/teachers/ghost?academicYear=2024/2025&semester=1", nil)
	c.Request = req
	c.Params = gin.Params{{Key: "id", Value: "ghost"}}

	handler.Teacher(c)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestTimetableHandlerClassRoomMissingPeriod(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := newTimetableHandlerFixture(newScheduleStoreMock())

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodGet, "/timetables/classrooms/r1", nil)
	c.Request = req
	c.Params = gin.Params{{Key: "id", Value: "r1"}}

	handler.ClassRoom(c)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestTimetableHandlerSubject(t *testing.T) {
	gin.SetMode(gin.TestMode)
	store := newScheduleStoreMock()
	seedSchedule(t, store, "10:00", "11:00")
	handler := newTimetableHandlerFixture(store)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodGet, "/timetables/subjects/sub1?academicYear=2024/2025&semester=1", nil)
	c.Request = req
	c.Params = gin.Params{{Key: "id", Value: "sub1"}}

	handler.Subject(c)
	require.Equal(t, http.StatusOK, w.Code)

	var envelope struct {
		Data service.Timetable `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
	assert.InDelta(t, 1.0, envelope.Data.Statistics.TotalHours, 0.001)
}
