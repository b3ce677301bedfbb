package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/school-sim/scheduling-api/internal/models"
)

func slot(id, teacherID, roomID, day string, start, end models.TimeOfDay) models.Schedule {
	return models.Schedule{
		ID:           id,
		ClassRoomID:  roomID,
		SubjectID:    "sub1",
		TeacherID:    teacherID,
		DayOfWeek:    day,
		StartTime:    start,
		EndTime:      end,
		AcademicYear: "2024/2025",
		Semester:     1,
		Status:       models.ScheduleStatusActive,
	}
}

func mustTime(t *testing.T, raw string) models.TimeOfDay {
	t.Helper()
	tod, err := models.ParseTimeOfDay(raw)
	require.NoError(t, err)
	return tod
}

func TestDetectConflictsOverlap(t *testing.T) {
	existing := []models.Schedule{
		slot("s1", "t1", "r1", "MONDAY", mustTime(t, "08:00"), mustTime(t, "09:00")),
	}
	candidate := slot("", "t1", "r2", "MONDAY", mustTime(t, "08:30"), mustTime(t, "09:30"))

	conflicts := DetectConflicts(candidate, existing, models.ConflictKindTeacher)
	require.Len(t, conflicts, 1)
	assert.Equal(t, "s1", conflicts[0].ConflictingScheduleID)
	assert.Equal(t, models.ConflictKindTeacher, conflicts[0].Kind)
	assert.Equal(t, "08:30", conflicts[0].Overlap.Start.String())
	assert.Equal(t, "09:00", conflicts[0].Overlap.End.String())
}

func TestDetectConflictsAdjacentSlotsDoNotConflict(t *testing.T) {
	existing := []models.Schedule{
		slot("s1", "t1", "r1", "MONDAY", mustTime(t, "08:00"), mustTime(t, "09:00")),
	}
	candidate := slot("", "t1", "r1", "MONDAY", mustTime(t, "09:00"), mustTime(t, "10:00"))

	assert.Empty(t, DetectConflicts(candidate, existing, models.ConflictKindTeacher))

	before := slot("", "t1", "r1", "MONDAY", mustTime(t, "07:00"), mustTime(t, "08:00"))
	assert.Empty(t, DetectConflicts(before, existing, models.ConflictKindTeacher))
}

func TestDetectConflictsContainment(t *testing.T) {
	existing := []models.Schedule{
		slot("s1", "t1", "r1", "MONDAY", mustTime(t, "08:00"), mustTime(t, "12:00")),
	}
	candidate := slot("", "t1", "r1", "MONDAY", mustTime(t, "09:00"), mustTime(t, "10:00"))

	conflicts := DetectConflicts(candidate, existing, models.ConflictKindClassRoom)
	require.Len(t, conflicts, 1)
	assert.Equal(t, "09:00", conflicts[0].Overlap.Start.String())
	assert.Equal(t, "10:00", conflicts[0].Overlap.End.String())
}

func TestDetectConflictsSkipsOwnRowAndInactive(t *testing.T) {
	inactive := slot("s2", "t1", "r1", "MONDAY", mustTime(t, "08:00"), mustTime(t, "09:00"))
	inactive.Status = models.ScheduleStatusInactive
	existing := []models.Schedule{
		inactive,
		slot("s1", "t1", "r1", "MONDAY", mustTime(t, "08:00"), mustTime(t, "09:00")),
	}

	candidate := slot("s1", "t1", "r1", "MONDAY", mustTime(t, "08:15"), mustTime(t, "09:15"))
	assert.Empty(t, DetectConflicts(candidate, existing, models.ConflictKindTeacher))
}

func TestDetectConflictsMultipleOverlaps(t *testing.T) {
	existing := []models.Schedule{
		slot("s1", "t1", "r1", "MONDAY", mustTime(t, "08:00"), mustTime(t, "09:00")),
		slot("s2", "t1", "r2", "MONDAY", mustTime(t, "09:00"), mustTime(t, "10:00")),
		slot("s3", "t1", "r3", "MONDAY", mustTime(t, "10:30"), mustTime(t, "11:30")),
	}
	candidate := slot("", "t1", "r4", "MONDAY", mustTime(t, "08:30"), mustTime(t, "09:30"))

	conflicts := DetectConflicts(candidate, existing, models.ConflictKindTeacher)
	require.Len(t, conflicts, 2)
	assert.Equal(t, "s1", conflicts[0].ConflictingScheduleID)
	assert.Equal(t, "s2", conflicts[1].ConflictingScheduleID)
}

func TestDetectPeriodConflicts(t *testing.T) {
	schedules := []models.Schedule{
		slot("s1", "t1", "r1", "MONDAY", mustTime(t, "08:00"), mustTime(t, "09:00")),
		slot("s2", "t1", "r2", "MONDAY", mustTime(t, "08:30"), mustTime(t, "09:30")),
		slot("s3", "t2", "r1", "MONDAY", mustTime(t, "08:45"), mustTime(t, "09:45")),
		slot("s4", "t2", "r2", "TUESDAY", mustTime(t, "08:00"), mustTime(t, "09:00")),
	}

	pairs := DetectPeriodConflicts(schedules)
	require.Len(t, pairs, 2)

	assert.Equal(t, models.ConflictKindTeacher, pairs[0].Kind)
	assert.Equal(t, "s1", pairs[0].FirstScheduleID)
	assert.Equal(t, "s2", pairs[0].SecondScheduleID)
	assert.Equal(t, "08:30", pairs[0].Overlap.Start.String())

	assert.Equal(t, models.ConflictKindClassRoom, pairs[1].Kind)
	assert.Equal(t, "s1", pairs[1].FirstScheduleID)
	assert.Equal(t, "s3", pairs[1].SecondScheduleID)
	assert.Equal(t, "08:45", pairs[1].Overlap.Start.String())
}

func TestDetectPeriodConflictsIgnoresInactive(t *testing.T) {
	archived := slot("s2", "t1", "r1", "MONDAY", mustTime(t, "08:30"), mustTime(t, "09:30"))
	archived.Status = models.ScheduleStatusArchived
	schedules := []models.Schedule{
		slot("s1", "t1", "r1", "MONDAY", mustTime(t, "08:00"), mustTime(t, "09:00")),
		archived,
	}

	assert.Empty(t, DetectPeriodConflicts(schedules))
}
