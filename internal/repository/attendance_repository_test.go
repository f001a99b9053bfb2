package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Azizbek961/crm-edu-crm/internal/models"
)

func newAttendanceRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func TestAttendanceRepositoryUpsert(t *testing.T) {
	db, mock, cleanup := newAttendanceRepoMock(t)
	defer cleanup()
	repo := NewAttendanceRepository(db)

	day := time.Date(2026, time.March, 2, 0, 0, 0, 0, time.UTC)
	rows := sqlmock.NewRows([]string{"id", "student_id", "group_id", "date", "status", "recorded_by", "notes", "created_at", "updated_at"}).
		AddRow("a1", "s1", "g1", day, "present", "u1", nil, time.Now(), time.Now())
	mock.ExpectQuery("INSERT INTO attendance").
		WithArgs(sqlmock.AnyArg(), "s1", "g1", day, models.AttendanceStatusPresent, "u1", nil, sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnRows(rows)

	stored, err := repo.Upsert(context.Background(), &models.Attendance{
		StudentID:  "s1",
		GroupID:    "g1",
		Date:       day,
		Status:     models.AttendanceStatusPresent,
		RecordedBy: "u1",
	})
	require.NoError(t, err)
	assert.Equal(t, "a1", stored.ID)
	assert.Equal(t, models.AttendanceStatusPresent, stored.Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAttendanceRepositoryStatusCounts(t *testing.T) {
	db, mock, cleanup := newAttendanceRepoMock(t)
	defer cleanup()
	repo := NewAttendanceRepository(db)

	rows := sqlmock.NewRows([]string{"present", "absent", "late", "excused", "total"}).
		AddRow(8, 1, 1, 0, 10)
	mock.ExpectQuery(`FROM attendance a WHERE 1=1 AND a\.group_id = \$1`).
		WithArgs("g1").
		WillReturnRows(rows)

	counts, err := repo.StatusCounts(context.Background(), models.AttendanceFilter{GroupID: "g1"})
	require.NoError(t, err)
	assert.Equal(t, 8, counts.Present)
	assert.Equal(t, 10, counts.Total)
	assert.InDelta(t, 80.0, counts.Rate(), 0.001)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAttendanceRepositoryStatusCountsTeacherJoin(t *testing.T) {
	db, mock, cleanup := newAttendanceRepoMock(t)
	defer cleanup()
	repo := NewAttendanceRepository(db)

	rows := sqlmock.NewRows([]string{"present", "absent", "late", "excused", "total"}).
		AddRow(0, 0, 0, 0, 0)
	mock.ExpectQuery(`FROM attendance a JOIN groups g ON g\.id = a\.group_id WHERE 1=1 AND g\.teacher_id = \$1`).
		WithArgs("t1").
		WillReturnRows(rows)

	counts, err := repo.StatusCounts(context.Background(), models.AttendanceFilter{TeacherID: "t1"})
	require.NoError(t, err)
	assert.Zero(t, counts.Total)
	assert.Zero(t, counts.Rate())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAttendanceRepositoryStatusCountsStudentSet(t *testing.T) {
	db, mock, cleanup := newAttendanceRepoMock(t)
	defer cleanup()
	repo := NewAttendanceRepository(db)

	rows := sqlmock.NewRows([]string{"present", "absent", "late", "excused", "total"}).
		AddRow(4, 1, 0, 0, 5)
	mock.ExpectQuery(regexp.QuoteMeta("FROM attendance a WHERE 1=1 AND a.student_id = ANY($1)")).
		WithArgs(pq.Array([]string{"s1", "s2"})).
		WillReturnRows(rows)

	counts, err := repo.StatusCounts(context.Background(), models.AttendanceFilter{StudentIDs: []string{"s1", "s2"}})
	require.NoError(t, err)
	assert.Equal(t, 5, counts.Total)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAttendanceRepositoryListDefaultPaging(t *testing.T) {
	db, mock, cleanup := newAttendanceRepoMock(t)
	defer cleanup()
	repo := NewAttendanceRepository(db)

	day := time.Date(2026, time.March, 2, 0, 0, 0, 0, time.UTC)
	rows := sqlmock.NewRows([]string{"id", "student_id", "group_id", "date", "status", "recorded_by", "notes", "created_at", "updated_at", "student_name", "group_name", "subject_name", "recorded_by_name"}).
		AddRow("a1", "s1", "g1", day, "late", "u1", nil, time.Now(), time.Now(), "Aziza Karimova", "Algebra A", "Mathematics", "Teacher One")
	mock.ExpectQuery(regexp.QuoteMeta("ORDER BY a.date DESC\n\tLIMIT 20 OFFSET 0")).
		WillReturnRows(rows)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM attendance a")).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	list, total, err := repo.List(context.Background(), models.AttendanceFilter{})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, 1, total)
	assert.Equal(t, "Aziza Karimova", list[0].StudentName)
	assert.NoError(t, mock.ExpectationsWereMet())
}
