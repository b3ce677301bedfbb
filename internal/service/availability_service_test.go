package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/school-sim/scheduling-api/internal/models"
	appErrors "github.com/school-sim/scheduling-api/pkg/errors"
)

func newAvailabilityService(repo *memScheduleRepo) *AvailabilityService {
	return NewAvailabilityService(repo, testSchedulingConfig(), nil, nil)
}

func teacherSlotsQuery() AvailabilityQuery {
	return AvailabilityQuery{
		Resource:     ResourceTeacher,
		ResourceID:   "t1",
		DayOfWeek:    "MONDAY",
		AcademicYear: "2024/2025",
		Semester:     1,
	}
}

func TestAvailableSlotsEmptyDay(t *testing.T) {
	svc := newAvailabilityService(newMemScheduleRepo())

	result, err := svc.AvailableSlots(context.Background(), teacherSlotsQuery())
	require.NoError(t, err)
	require.Len(t, result.FreeSlots, 1)
	assert.Equal(t, "07:00", result.FreeSlots[0].Start.String())
	assert.Equal(t, "16:00", result.FreeSlots[0].End.String())
}

func TestAvailableSlotsComplement(t *testing.T) {
	repo := newMemScheduleRepo()
	repo.add(slot("s1", "t1", "r1", "MONDAY", mustTime(t, "08:00"), mustTime(t, "09:30")))
	repo.add(slot("s2", "t1", "r2", "MONDAY", mustTime(t, "10:00"), mustTime(t, "11:00")))
	svc := newAvailabilityService(repo)

	result, err := svc.AvailableSlots(context.Background(), teacherSlotsQuery())
	require.NoError(t, err)
	require.Len(t, result.FreeSlots, 3)
	assert.Equal(t, "07:00", result.FreeSlots[0].Start.String())
	assert.Equal(t, "08:00", result.FreeSlots[0].End.String())
	assert.Equal(t, "09:30", result.FreeSlots[1].Start.String())
	assert.Equal(t, "10:00", result.FreeSlots[1].End.String())
	assert.Equal(t, "11:00", result.FreeSlots[2].Start.String())
	assert.Equal(t, "16:00", result.FreeSlots[2].End.String())
}

func TestAvailableSlotsMergesOverlapsAndKeepsShortGaps(t *testing.T) {
	repo := newMemScheduleRepo()
	repo.add(slot("s1", "t1", "r1", "MONDAY", mustTime(t, "08:00"), mustTime(t, "09:30")))
	repo.add(slot("s2", "t1", "r2", "MONDAY", mustTime(t, "09:00"), mustTime(t, "10:00")))
	repo.add(slot("s3", "t1", "r3", "MONDAY", mustTime(t, "10:15"), mustTime(t, "11:00")))
	svc := newAvailabilityService(repo)

	result, err := svc.AvailableSlots(context.Background(), teacherSlotsQuery())
	require.NoError(t, err)
	require.Len(t, result.FreeSlots, 3)
	assert.Equal(t, "07:00", result.FreeSlots[0].Start.String())
	assert.Equal(t, "08:00", result.FreeSlots[0].End.String())
	// even the 15-minute gap is reported; free and busy cover the window
	assert.Equal(t, "10:00", result.FreeSlots[1].Start.String())
	assert.Equal(t, "10:15", result.FreeSlots[1].End.String())
	assert.Equal(t, "11:00", result.FreeSlots[2].Start.String())
	assert.Equal(t, "16:00", result.FreeSlots[2].End.String())

	covered := 0
	for _, f := range result.FreeSlots {
		covered += f.Duration()
	}
	for _, b := range []models.TimeRange{
		{Start: mustTime(t, "08:00"), End: mustTime(t, "10:00")},
		{Start: mustTime(t, "10:15"), End: mustTime(t, "11:00")},
	} {
		covered += b.Duration()
	}
	assert.Equal(t, result.Window.Duration(), covered)
}

func TestAvailableSlotsMinDurationFilter(t *testing.T) {
	repo := newMemScheduleRepo()
	repo.add(slot("s1", "t1", "r1", "MONDAY", mustTime(t, "08:00"), mustTime(t, "10:00")))
	repo.add(slot("s2", "t1", "r2", "MONDAY", mustTime(t, "10:15"), mustTime(t, "11:00")))
	svc := newAvailabilityService(repo)

	query := teacherSlotsQuery()
	query.MinDuration = 30
	result, err := svc.AvailableSlots(context.Background(), query)
	require.NoError(t, err)
	require.Len(t, result.FreeSlots, 2)
	assert.Equal(t, "07:00", result.FreeSlots[0].Start.String())
	assert.Equal(t, "08:00", result.FreeSlots[0].End.String())
	assert.Equal(t, "11:00", result.FreeSlots[1].Start.String())
	assert.Equal(t, "16:00", result.FreeSlots[1].End.String())
}

func TestAvailableSlotsClipsToWindow(t *testing.T) {
	repo := newMemScheduleRepo()
	full := slot("s1", "t1", "r1", "MONDAY", mustTime(t, "07:00"), mustTime(t, "16:00"))
	repo.add(full)
	svc := newAvailabilityService(repo)

	result, err := svc.AvailableSlots(context.Background(), teacherSlotsQuery())
	require.NoError(t, err)
	assert.Empty(t, result.FreeSlots)
}

func TestAvailableSlotsValidation(t *testing.T) {
	svc := newAvailabilityService(newMemScheduleRepo())

	query := teacherSlotsQuery()
	query.DayOfWeek = "SOMEDAY"
	_, err := svc.AvailableSlots(context.Background(), query)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)

	query = teacherSlotsQuery()
	query.Resource = "hallway"
	_, err = svc.AvailableSlots(context.Background(), query)
	require.Error(t, err)

	query = teacherSlotsQuery()
	query.AcademicYear = "24/25"
	_, err = svc.AvailableSlots(context.Background(), query)
	require.Error(t, err)
}

func TestCheckAvailability(t *testing.T) {
	repo := newMemScheduleRepo()
	repo.add(slot("s1", "t1", "r1", "MONDAY", mustTime(t, "08:00"), mustTime(t, "09:00")))
	svc := newAvailabilityService(repo)

	query := AvailabilityCheckQuery{
		AvailabilityQuery: teacherSlotsQuery(),
		StartTime:         "08:30",
		EndTime:           "09:30",
	}
	result, err := svc.CheckAvailability(context.Background(), query)
	require.NoError(t, err)
	assert.False(t, result.Available)
	require.Len(t, result.Conflicts, 1)
	assert.Equal(t, "s1", result.Conflicts[0].ConflictingScheduleID)

	query.StartTime = "09:00"
	query.EndTime = "10:00"
	result, err = svc.CheckAvailability(context.Background(), query)
	require.NoError(t, err)
	assert.True(t, result.Available)
	assert.Empty(t, result.Conflicts)

	query.StartTime = "10:00"
	query.EndTime = "09:00"
	_, err = svc.CheckAvailability(context.Background(), query)
	require.Error(t, err)
}

func TestCheckAvailabilityClassRoom(t *testing.T) {
	repo := newMemScheduleRepo()
	repo.add(slot("s1", "t2", "r1", "MONDAY", mustTime(t, "08:00"), mustTime(t, "09:00")))
	svc := newAvailabilityService(repo)

	query := AvailabilityCheckQuery{
		AvailabilityQuery: AvailabilityQuery{
			Resource:     ResourceClassRoom,
			ResourceID:   "r1",
			DayOfWeek:    "MONDAY",
			AcademicYear: "2024/2025",
			Semester:     1,
		},
		StartTime: "08:30",
		EndTime:   "09:30",
	}
	result, err := svc.CheckAvailability(context.Background(), query)
	require.NoError(t, err)
	assert.False(t, result.Available)
	require.Len(t, result.Conflicts, 1)
	assert.Equal(t, models.ConflictKindClassRoom, result.Conflicts[0].Kind)
}
