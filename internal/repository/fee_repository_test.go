package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Azizbek961/crm-edu-crm/internal/models"
)

func newFeeRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func TestFeeRepositoryUpdateStatus(t *testing.T) {
	db, mock, cleanup := newFeeRepoMock(t)
	defer cleanup()
	repo := NewFeeRepository(db)

	paid := time.Now().UTC()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE fees SET status = $2, paid_date = $3, updated_at = $4 WHERE id = $1")).
		WithArgs("f1", models.FeeStatusPaid, &paid, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.UpdateStatus(context.Background(), "f1", models.FeeStatusPaid, &paid))

	mock.ExpectExec(regexp.QuoteMeta("UPDATE fees SET status = $2")).
		WithArgs("missing", models.FeeStatusPaid, &paid, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.UpdateStatus(context.Background(), "missing", models.FeeStatusPaid, &paid)
	assert.ErrorIs(t, err, sql.ErrNoRows)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFeeRepositoryMarkOverdue(t *testing.T) {
	db, mock, cleanup := newFeeRepoMock(t)
	defer cleanup()
	repo := NewFeeRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE fees SET status = 'overdue', updated_at = $1 WHERE status = 'pending' AND due_date < $2")).
		WithArgs(sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 3))

	affected, err := repo.MarkOverdue(context.Background(), time.Now().UTC())
	require.NoError(t, err)
	assert.Equal(t, int64(3), affected)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFeeRepositorySummary(t *testing.T) {
	db, mock, cleanup := newFeeRepoMock(t)
	defer cleanup()
	repo := NewFeeRepository(db)

	rows := sqlmock.NewRows([]string{"total_collected", "total_pending", "total_overdue", "paid_count", "pending_count", "overdue_count"}).
		AddRow(1500.0, 300.0, 120.0, 10, 2, 1)
	mock.ExpectQuery(regexp.QuoteMeta("FROM fees WHERE student_id IN (?, ?)")).
		WithArgs("s1", "s2").
		WillReturnRows(rows)

	summary, err := repo.Summary(context.Background(), []string{"s1", "s2"})
	require.NoError(t, err)
	assert.InDelta(t, 1500.0, summary.TotalCollected, 0.001)
	assert.Equal(t, 1, summary.OverdueCount)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFeeRepositorySummaryEmptyScope(t *testing.T) {
	db, mock, cleanup := newFeeRepoMock(t)
	defer cleanup()
	repo := NewFeeRepository(db)

	// An empty but non-nil scope short-circuits without touching the database.
	summary, err := repo.Summary(context.Background(), []string{})
	require.NoError(t, err)
	assert.Zero(t, summary.TotalCollected)
	assert.Zero(t, summary.PaidCount)
	assert.NoError(t, mock.ExpectationsWereMet())
}
