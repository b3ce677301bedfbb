package service

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/school-sim/scheduling-api/internal/models"
	appErrors "github.com/school-sim/scheduling-api/pkg/errors"
)

type memCache struct {
	mu    sync.Mutex
	store map[string][]byte
	gets  int
	hits  int
}

func newMemCache() *memCache {
	return &memCache{store: make(map[string][]byte)}
}

func (m *memCache) Get(ctx context.Context, key string, dest interface{}) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.gets++
	raw, ok := m.store[key]
	if !ok {
		return appErrors.ErrCacheMiss
	}
	m.hits++
	return json.Unmarshal(raw, dest)
}

func (m *memCache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	m.store[key] = raw
	return nil
}

func (m *memCache) DeleteByPattern(ctx context.Context, pattern string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	prefix := strings.TrimSuffix(pattern, "*")
	for key := range m.store {
		if strings.HasPrefix(key, prefix) {
			delete(m.store, key)
		}
	}
	return nil
}

func newTimetableFixture() (*memScheduleRepo, *memCache, *TimetableService) {
	repo := newMemScheduleRepo()
	cache := newMemCache()
	teachers := &memTeacherReader{items: map[string]*models.Teacher{
		"t1": {ID: "t1", Email: "t1@example.com", FullName: "Teacher One", Active: true},
	}}
	rooms := &memClassRoomReader{items: map[string]*models.ClassRoom{
		"r1": {ID: "r1", Code: "X-A", Name: "Class X-A", Grade: "X", Capacity: 36, Active: true},
	}}
	subjects := &memSubjectReader{items: map[string]*models.Subject{
		"sub1": {ID: "sub1", Code: "MATH", Name: "Mathematics", Credits: 4},
		"sub2": {ID: "sub2", Code: "PHYS", Name: "Physics", Credits: 3},
	}}
	svc := NewTimetableService(repo, teachers, rooms, subjects, cache, time.Minute, nil, nil)
	return repo, cache, svc
}

func TestTeacherTimetableGridAndStatistics(t *testing.T) {
	repo, _, svc := newTimetableFixture()
	repo.add(slot("s1", "t1", "r1", "MONDAY", mustTime(t, "08:00"), mustTime(t, "09:30")))
	monday2 := slot("s2", "t1", "r1", "MONDAY", mustTime(t, "10:00"), mustTime(t, "11:00"))
	monday2.SubjectID = "sub2"
	repo.add(monday2)
	repo.add(slot("s3", "t1", "r1", "WEDNESDAY", mustTime(t, "13:00"), mustTime(t, "14:00")))

	timetable, err := svc.TeacherTimetable(context.Background(), "t1", "2024/2025", 1)
	require.NoError(t, err)

	require.Len(t, timetable.Days, 7)
	assert.Equal(t, "MONDAY", timetable.Days[0].Day)
	require.Len(t, timetable.Days[0].Entries, 2)
	assert.Equal(t, "s1", timetable.Days[0].Entries[0].ScheduleID)
	assert.Equal(t, "s2", timetable.Days[0].Entries[1].ScheduleID)
	assert.Empty(t, timetable.Days[1].Entries)
	require.Len(t, timetable.Days[2].Entries, 1)

	stats := timetable.Statistics
	assert.Equal(t, 3, stats.TotalSessions)
	assert.InDelta(t, 3.5, stats.TotalHours, 0.001)
	assert.Equal(t, 2, stats.SessionsByDay["MONDAY"])
	assert.Equal(t, 1, stats.SessionsByDay["WEDNESDAY"])
	assert.InDelta(t, 2.5, stats.SubjectHours["sub1"], 0.001)
	assert.InDelta(t, 1.0, stats.SubjectHours["sub2"], 0.001)
}

func TestTeacherTimetableUsesCache(t *testing.T) {
	repo, cache, svc := newTimetableFixture()
	repo.add(slot("s1", "t1", "r1", "MONDAY", mustTime(t, "08:00"), mustTime(t, "09:00")))

	first, err := svc.TeacherTimetable(context.Background(), "t1", "2024/2025", 1)
	require.NoError(t, err)
	assert.Equal(t, 0, cache.hits)

	// a row added behind the cache's back stays invisible until invalidation
	repo.add(slot("s2", "t1", "r1", "TUESDAY", mustTime(t, "08:00"), mustTime(t, "09:00")))

	second, err := svc.TeacherTimetable(context.Background(), "t1", "2024/2025", 1)
	require.NoError(t, err)
	assert.Equal(t, 1, cache.hits)
	assert.Equal(t, first.Statistics.TotalSessions, second.Statistics.TotalSessions)

	require.NoError(t, svc.Invalidate(context.Background()))

	third, err := svc.TeacherTimetable(context.Background(), "t1", "2024/2025", 1)
	require.NoError(t, err)
	assert.Equal(t, 2, third.Statistics.TotalSessions)
}

func TestTimetableUnknownResource(t *testing.T) {
	_, _, svc := newTimetableFixture()

	_, err := svc.TeacherTimetable(context.Background(), "missing", "2024/2025", 1)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)

	_, err = svc.ClassRoomTimetable(context.Background(), "missing", "2024/2025", 1)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)

	_, err = svc.SubjectTimetable(context.Background(), "missing", "2024/2025", 1)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestTimetablePeriodValidation(t *testing.T) {
	_, _, svc := newTimetableFixture()

	_, err := svc.TeacherTimetable(context.Background(), "t1", "2024", 1)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)

	_, err = svc.TeacherTimetable(context.Background(), "t1", "2024/2025", 5)
	require.Error(t, err)
}

func TestClassRoomAndSubjectTimetables(t *testing.T) {
	repo, _, svc := newTimetableFixture()
	repo.add(slot("s1", "t1", "r1", "FRIDAY", mustTime(t, "08:00"), mustTime(t, "09:00")))

	roomTable, err := svc.ClassRoomTimetable(context.Background(), "r1", "2024/2025", 1)
	require.NoError(t, err)
	assert.Equal(t, "classroom", roomTable.Resource)
	assert.Equal(t, 1, roomTable.Statistics.TotalSessions)

	subjectTable, err := svc.SubjectTimetable(context.Background(), "sub1", "2024/2025", 1)
	require.NoError(t, err)
	assert.Equal(t, "subject", subjectTable.Resource)
	require.Len(t, subjectTable.Days[4].Entries, 1)
	assert.Equal(t, "s1", subjectTable.Days[4].Entries[0].ScheduleID)
}

func TestHandleScheduleEventInvalidates(t *testing.T) {
	repo, cache, svc := newTimetableFixture()
	repo.add(slot("s1", "t1", "r1", "MONDAY", mustTime(t, "08:00"), mustTime(t, "09:00")))

	_, err := svc.TeacherTimetable(context.Background(), "t1", "2024/2025", 1)
	require.NoError(t, err)
	assert.NotEmpty(t, cache.store)

	require.NoError(t, svc.HandleScheduleEvent(context.Background(), ScheduleEvent{Type: ScheduleEventCreated}))
	assert.Empty(t, cache.store)
}
