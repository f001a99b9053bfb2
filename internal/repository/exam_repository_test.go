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

func newExamRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func TestExamRepositoryUpsertResult(t *testing.T) {
	db, mock, cleanup := newExamRepoMock(t)
	defer cleanup()
	repo := NewExamRepository(db)

	rows := sqlmock.NewRows([]string{"id", "exam_id", "student_id", "score", "remarks", "created_at", "updated_at"}).
		AddRow("r1", "e1", "s1", 87.5, nil, time.Now(), time.Now())
	mock.ExpectQuery("INSERT INTO results").
		WithArgs(sqlmock.AnyArg(), "e1", "s1", 87.5, nil, sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnRows(rows)

	stored, err := repo.UpsertResult(context.Background(), &models.Result{ExamID: "e1", StudentID: "s1", Score: 87.5})
	require.NoError(t, err)
	assert.Equal(t, "r1", stored.ID)
	assert.InDelta(t, 87.5, stored.Score, 0.001)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestExamRepositoryListResultsStudentSet(t *testing.T) {
	db, mock, cleanup := newExamRepoMock(t)
	defer cleanup()
	repo := NewExamRepository(db)

	day := time.Date(2026, time.March, 2, 0, 0, 0, 0, time.UTC)
	rows := sqlmock.NewRows([]string{"id", "exam_id", "student_id", "score", "remarks", "created_at", "updated_at", "student_name", "exam_name", "exam_date", "max_score", "subject_id", "subject_name", "group_id", "group_name"}).
		AddRow("r1", "e1", "s1", 87.5, nil, time.Now(), time.Now(), "Aziza Karimova", "Midterm", day, 100.0, "sub1", "Mathematics", "g1", "Algebra A")
	mock.ExpectQuery(regexp.QuoteMeta("res.student_id = ANY($1)")).
		WithArgs(pq.Array([]string{"s1", "s2"})).
		WillReturnRows(rows)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM results res")).
		WithArgs(pq.Array([]string{"s1", "s2"})).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	list, total, err := repo.ListResults(context.Background(), models.ResultFilter{StudentIDs: []string{"s1", "s2"}})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, 1, total)
	assert.Equal(t, "s1", list[0].StudentID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestExamRepositoryRoster(t *testing.T) {
	db, mock, cleanup := newExamRepoMock(t)
	defer cleanup()
	repo := NewExamRepository(db)

	resultID := "r1"
	score := 92.0
	rows := sqlmock.NewRows([]string{"student_id", "student_name", "result_id", "score", "remarks"}).
		AddRow("s1", "Aziza Karimova", resultID, score, nil).
		AddRow("s2", "Bobur Toshev", nil, nil, nil)
	mock.ExpectQuery(regexp.QuoteMeta("LEFT JOIN results res ON res.exam_id = e.id AND res.student_id = gm.student_id")).
		WithArgs("e1").
		WillReturnRows(rows)

	roster, err := repo.Roster(context.Background(), "e1")
	require.NoError(t, err)
	require.Len(t, roster, 2)
	require.NotNil(t, roster[0].Score)
	assert.InDelta(t, 92.0, *roster[0].Score, 0.001)
	assert.Nil(t, roster[1].ResultID)
	assert.NoError(t, mock.ExpectationsWereMet())
}
