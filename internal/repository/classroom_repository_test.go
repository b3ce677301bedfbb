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

func newClassRoomRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func TestClassRoomRepositoryList(t *testing.T) {
	db, mock, cleanup := newClassRoomRepoMock(t)
	defer cleanup()
	repo := NewClassRoomRepository(db)

	active := true
	rows := sqlmock.NewRows([]string{"id", "code", "name", "grade", "capacity", "location", "active", "created_at", "updated_at"}).
		AddRow("r1", "X-A", "Class X-A", "X", 36, nil, true, time.Now(), time.Now())
	mock.ExpectQuery(regexp.QuoteMeta("SELECT "+classRoomColumns+" FROM class_rooms WHERE 1=1 AND grade = $1 AND active = $2 ORDER BY code ASC LIMIT 20 OFFSET 0")).
		WithArgs("X", true).
		WillReturnRows(rows)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM class_rooms WHERE 1=1 AND grade = $1 AND active = $2")).
		WithArgs("X", true).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	list, total, err := repo.List(context.Background(), models.ClassRoomFilter{Grade: "X", Active: &active})
	require.NoError(t, err)
	assert.Len(t, list, 1)
	assert.Equal(t, 1, total)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestClassRoomRepositoryListAlternatives(t *testing.T) {
	db, mock, cleanup := newClassRoomRepoMock(t)
	defer cleanup()
	repo := NewClassRoomRepository(db)

	rows := sqlmock.NewRows([]string{"id", "code", "name", "grade", "capacity", "location", "active", "created_at", "updated_at"}).
		AddRow("r2", "X-B", "Class X-B", "X", 36, nil, true, time.Now(), time.Now()).
		AddRow("r3", "X-C", "Class X-C", "X", 40, nil, true, time.Now(), time.Now())
	mock.ExpectQuery(regexp.QuoteMeta("SELECT "+classRoomColumns+" FROM class_rooms WHERE active = TRUE AND id <> $1 AND grade = $2 AND capacity >= $3 ORDER BY code ASC")).
		WithArgs("r1", "X", 30).
		WillReturnRows(rows)

	list, err := repo.ListAlternatives(context.Background(), "r1", "X", 30)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "X-B", list[0].Code)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestClassRoomRepositoryExistsByCode(t *testing.T) {
	db, mock, cleanup := newClassRoomRepoMock(t)
	defer cleanup()
	repo := NewClassRoomRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT 1 FROM class_rooms WHERE LOWER(code) = LOWER($1) LIMIT 1")).
		WithArgs("X-A").
		WillReturnRows(sqlmock.NewRows([]string{"1"}).AddRow(1))

	exists, err := repo.ExistsByCode(context.Background(), "X-A", "")
	require.NoError(t, err)
	assert.True(t, exists)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT 1 FROM class_rooms WHERE LOWER(code) = LOWER($1) AND id <> $2 LIMIT 1")).
		WithArgs("X-A", "r1").
		WillReturnRows(sqlmock.NewRows([]string{"1"}))

	exists, err = repo.ExistsByCode(context.Background(), "X-A", "r1")
	require.NoError(t, err)
	assert.False(t, exists)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestClassRoomRepositoryCreate(t *testing.T) {
	db, mock, cleanup := newClassRoomRepoMock(t)
	defer cleanup()
	repo := NewClassRoomRepository(db)

	mock.ExpectExec("INSERT INTO class_rooms").
		WithArgs(sqlmock.AnyArg(), "X-A", "Class X-A", "X", 36, nil, true, sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	room := &models.ClassRoom{Code: "X-A", Name: "Class X-A", Grade: "X", Capacity: 36, Active: true}
	require.NoError(t, repo.Create(context.Background(), room))
	assert.NotEmpty(t, room.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}
