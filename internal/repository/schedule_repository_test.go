package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/school-sim/scheduling-api/internal/models"
)

func newScheduleRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func scheduleRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{"id", "class_room_id", "subject_id", "teacher_id", "day_of_week", "start_time", "end_time", "academic_year", "semester", "status", "notes", "created_at", "updated_at"})
}

func TestScheduleRepositoryList(t *testing.T) {
	db, mock, cleanup := newScheduleRepoMock(t)
	defer cleanup()
	repo := NewScheduleRepository(db)

	rows := scheduleRows().
		AddRow("s1", "r1", "sub1", "t1", "MONDAY", 480, 570, "2024/2025", 1, "ACTIVE", nil, time.Now(), time.Now())
	mock.ExpectQuery(regexp.QuoteMeta("SELECT "+scheduleColumns+" FROM schedules WHERE 1=1 AND teacher_id = $1 ORDER BY day_of_week ASC, start_time ASC LIMIT 20 OFFSET 0")).
		WithArgs("t1").
		WillReturnRows(rows)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM schedules WHERE 1=1 AND teacher_id = $1")).
		WithArgs("t1").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	list, total, err := repo.List(context.Background(), models.ScheduleFilter{TeacherID: "t1"})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, 1, total)
	assert.Equal(t, "08:00", list[0].StartTime.String())
	assert.Equal(t, "09:30", list[0].EndTime.String())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestScheduleRepositoryListActiveByTeacherDay(t *testing.T) {
	db, mock, cleanup := newScheduleRepoMock(t)
	defer cleanup()
	repo := NewScheduleRepository(db)

	rows := scheduleRows().
		AddRow("s1", "r1", "sub1", "t1", "MONDAY", 420, 510, "2024/2025", 1, "ACTIVE", nil, time.Now(), time.Now()).
		AddRow("s2", "r2", "sub2", "t1", "MONDAY", 540, 630, "2024/2025", 1, "ACTIVE", nil, time.Now(), time.Now())
	mock.ExpectQuery(regexp.QuoteMeta("SELECT "+scheduleColumns+" FROM schedules WHERE teacher_id = $1 AND day_of_week = $2 AND academic_year = $3 AND semester = $4 AND status = $5 ORDER BY start_time ASC")).
		WithArgs("t1", "MONDAY", "2024/2025", 1, models.ScheduleStatusActive).
		WillReturnRows(rows)

	list, err := repo.ListActiveByTeacherDay(context.Background(), "t1", "MONDAY", "2024/2025", 1)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "07:00", list[0].StartTime.String())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestScheduleRepositoryCreateDefaults(t *testing.T) {
	db, mock, cleanup := newScheduleRepoMock(t)
	defer cleanup()
	repo := NewScheduleRepository(db)

	mock.ExpectExec("INSERT INTO schedules").
		WithArgs(sqlmock.AnyArg(), "r1", "sub1", "t1", "MONDAY", int64(480), int64(570), "2024/2025", 1, string(models.ScheduleStatusActive), nil, sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	sched := &models.Schedule{
		ClassRoomID:  "r1",
		SubjectID:    "sub1",
		TeacherID:    "t1",
		DayOfWeek:    "MONDAY",
		StartTime:    480,
		EndTime:      570,
		AcademicYear: "2024/2025",
		Semester:     1,
	}
	require.NoError(t, repo.Create(context.Background(), sched))
	assert.NotEmpty(t, sched.ID)
	assert.Equal(t, models.ScheduleStatusActive, sched.Status)
	assert.False(t, sched.UpdatedAt.IsZero())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestScheduleRepositoryUpdateStatus(t *testing.T) {
	db, mock, cleanup := newScheduleRepoMock(t)
	defer cleanup()
	repo := NewScheduleRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE schedules SET status = $1, updated_at = $2 WHERE id = $3")).
		WithArgs(string(models.ScheduleStatusInactive), sqlmock.AnyArg(), "s1").
		WillReturnResult(sqlmock.NewResult(1, 1))

	require.NoError(t, repo.UpdateStatus(context.Background(), "s1", models.ScheduleStatusInactive))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestScheduleRepositoryArchivePeriod(t *testing.T) {
	db, mock, cleanup := newScheduleRepoMock(t)
	defer cleanup()
	repo := NewScheduleRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE schedules SET status = $1, updated_at = $2 WHERE academic_year = $3 AND status <> $1")).
		WithArgs(string(models.ScheduleStatusArchived), sqlmock.AnyArg(), "2023/2024").
		WillReturnResult(sqlmock.NewResult(0, 7))

	affected, err := repo.ArchivePeriod(context.Background(), "2023/2024")
	require.NoError(t, err)
	assert.Equal(t, int64(7), affected)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestScheduleRepositoryDelete(t *testing.T) {
	db, mock, cleanup := newScheduleRepoMock(t)
	defer cleanup()
	repo := NewScheduleRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM schedules WHERE id = $1")).
		WithArgs("s1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.Delete(context.Background(), "s1"))
	assert.NoError(t, mock.ExpectationsWereMet())
}
