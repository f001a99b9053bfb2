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

func newHomeworkRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func homeworkRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{"id", "title", "subject_id", "assigned_by", "assigned_to", "due_date", "description", "created_at", "updated_at", "subject_name", "group_name", "teacher_name"}).
		AddRow("h1", "Chapter 4 problems", "sub1", "t1", "g1", time.Now().AddDate(0, 0, 3), "Solve 1-10", time.Now(), time.Now(), "Mathematics", "Algebra A", "Teacher One")
}

func TestHomeworkRepositoryListByGroups(t *testing.T) {
	db, mock, cleanup := newHomeworkRepoMock(t)
	defer cleanup()
	repo := NewHomeworkRepository(db)

	groupIDs := []string{"g1", "g2"}
	mock.ExpectQuery(regexp.QuoteMeta("h.assigned_to = ANY($1)")).
		WithArgs(pq.Array(groupIDs)).
		WillReturnRows(homeworkRows())
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM homework h")).
		WithArgs(pq.Array(groupIDs)).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	list, total, err := repo.List(context.Background(), models.HomeworkFilter{GroupIDs: groupIDs})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, 1, total)
	assert.Equal(t, "Algebra A", list[0].GroupName)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestHomeworkRepositoryListStatusWindow(t *testing.T) {
	db, mock, cleanup := newHomeworkRepoMock(t)
	defer cleanup()
	repo := NewHomeworkRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("h.due_date >= CURRENT_DATE AND h.due_date <= CURRENT_DATE + INTERVAL '7 days'")).
		WillReturnRows(homeworkRows())
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM homework h")).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	list, _, err := repo.List(context.Background(), models.HomeworkFilter{Status: models.HomeworkStatusActive})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.NoError(t, mock.ExpectationsWereMet())
}
