package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Azizbek961/crm-edu-crm/internal/models"
	"github.com/Azizbek961/crm-edu-crm/pkg/config"
	appErrors "github.com/Azizbek961/crm-edu-crm/pkg/errors"
)

type feeStatusUpdate struct {
	id       string
	status   models.FeeStatus
	paidDate *time.Time
}

type mockFeeRepo struct {
	rows       []models.FeeRecord
	record     *models.FeeRecord
	updates    []feeStatusUpdate
	lastFilter models.FeeFilter
	sweptAt    []time.Time
}

func (m *mockFeeRepo) List(ctx context.Context, filter models.FeeFilter) ([]models.FeeRecord, int, error) {
	m.lastFilter = filter
	return m.rows, len(m.rows), nil
}

func (m *mockFeeRepo) FindByID(ctx context.Context, id string) (*models.FeeRecord, error) {
	if m.record != nil && m.record.ID == id {
		cp := *m.record
		return &cp, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockFeeRepo) Create(ctx context.Context, fee *models.Fee) error {
	fee.ID = "generated"
	return nil
}

func (m *mockFeeRepo) UpdateStatus(ctx context.Context, id string, status models.FeeStatus, paidDate *time.Time) error {
	m.updates = append(m.updates, feeStatusUpdate{id: id, status: status, paidDate: paidDate})
	if m.record != nil && m.record.ID == id {
		m.record.Status = status
		m.record.PaidDate = paidDate
	}
	return nil
}

func (m *mockFeeRepo) Delete(ctx context.Context, id string) error {
	return nil
}

func (m *mockFeeRepo) Summary(ctx context.Context, studentIDs []string) (*models.FeeSummary, error) {
	return &models.FeeSummary{TotalCollected: 500, PaidCount: 2}, nil
}

func (m *mockFeeRepo) MarkOverdue(ctx context.Context, now time.Time) (int64, error) {
	m.sweptAt = append(m.sweptAt, now)
	return 2, nil
}

type mockChildLookup struct {
	children map[string][]string
}

func (m *mockChildLookup) ChildrenOfParent(ctx context.Context, parentID string) ([]string, error) {
	return m.children[parentID], nil
}

func feeRow(id string, status models.FeeStatus, due time.Time) models.FeeRecord {
	return models.FeeRecord{
		Fee:         models.Fee{ID: id, StudentID: testStudentID, Amount: 150, DueDate: due, Status: status},
		StudentName: "Aziza Karimova",
	}
}

func TestFeeServiceListBucketsEffectiveStatus(t *testing.T) {
	now := time.Now().UTC()
	repo := &mockFeeRepo{
		rows: []models.FeeRecord{
			feeRow("f1", models.FeeStatusPending, now.AddDate(0, 0, -3)),
			feeRow("f2", models.FeeStatusPending, now.AddDate(0, 0, 3)),
			feeRow("f3", models.FeeStatusPaid, now.AddDate(0, 0, -3)),
		},
	}
	svc := NewFeeService(repo, &mockChildLookup{}, nil, nil)

	rows, _, err := svc.List(context.Background(), models.Scope{Role: models.RoleAdmin}, models.FeeFilter{})
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, models.FeeStatusOverdue, rows[0].Status)
	assert.Equal(t, models.FeeStatusPending, rows[1].Status)
	assert.Equal(t, models.FeeStatusPaid, rows[2].Status)
}

func TestFeeServiceListParentScope(t *testing.T) {
	repo := &mockFeeRepo{}
	students := &mockChildLookup{children: map[string][]string{"p1": {testStudentID, testStudentID2}}}
	svc := NewFeeService(repo, students, nil, nil)
	scope := models.Scope{Role: models.RoleParent, ParentID: "p1"}

	_, _, err := svc.List(context.Background(), scope, models.FeeFilter{})
	require.NoError(t, err)
	assert.Equal(t, []string{testStudentID, testStudentID2}, repo.lastFilter.StudentIDs)

	_, _, err = svc.List(context.Background(), scope, models.FeeFilter{StudentID: testStudentID3})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
}

func TestFeeServiceListParentWithoutChildren(t *testing.T) {
	repo := &mockFeeRepo{}
	svc := NewFeeService(repo, &mockChildLookup{}, nil, nil)

	_, _, err := svc.List(context.Background(), models.Scope{Role: models.RoleParent, ParentID: "p1"}, models.FeeFilter{})
	require.NoError(t, err)
	// The filter pins a non-student id so nothing matches.
	assert.Equal(t, "p1", repo.lastFilter.StudentID)
	assert.Empty(t, repo.lastFilter.StudentIDs)
}

func TestFeeServiceUpdateStatusStampsPaidDate(t *testing.T) {
	repo := &mockFeeRepo{record: &models.FeeRecord{Fee: models.Fee{ID: "f1", Status: models.FeeStatusPending}}}
	svc := NewFeeService(repo, &mockChildLookup{}, nil, nil)

	record, err := svc.UpdateStatus(context.Background(), "f1", UpdateFeeStatusRequest{Status: models.FeeStatusPaid})
	require.NoError(t, err)
	require.Len(t, repo.updates, 1)
	require.NotNil(t, repo.updates[0].paidDate)
	assert.Equal(t, models.FeeStatusPaid, record.Status)

	_, err = svc.UpdateStatus(context.Background(), "f1", UpdateFeeStatusRequest{Status: models.FeeStatusPending})
	require.NoError(t, err)
	require.Len(t, repo.updates, 2)
	assert.Nil(t, repo.updates[1].paidDate)
}

func TestFeeServiceStudentRowAccess(t *testing.T) {
	repo := &mockFeeRepo{record: &models.FeeRecord{Fee: models.Fee{ID: "f1", StudentID: testStudentID2}}}
	svc := NewFeeService(repo, &mockChildLookup{}, nil, nil)

	_, err := svc.Get(context.Background(), models.Scope{Role: models.RoleStudent, StudentID: testStudentID}, "f1")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
}

func TestFeeServiceSweepOverdue(t *testing.T) {
	repo := &mockFeeRepo{}
	svc := NewFeeService(repo, &mockChildLookup{}, nil, nil)

	require.NoError(t, svc.SweepOverdue(context.Background()))
	assert.Len(t, repo.sweptAt, 1)
}

func TestFeeEffectiveStatus(t *testing.T) {
	now := time.Now().UTC()

	pending := models.Fee{Status: models.FeeStatusPending, DueDate: now.AddDate(0, 0, -1)}
	assert.Equal(t, models.FeeStatusOverdue, pending.EffectiveStatus(now))

	upcoming := models.Fee{Status: models.FeeStatusPending, DueDate: now.AddDate(0, 0, 1)}
	assert.Equal(t, models.FeeStatusPending, upcoming.EffectiveStatus(now))

	paid := models.Fee{Status: models.FeeStatusPaid, DueDate: now.AddDate(0, 0, -1)}
	assert.Equal(t, models.FeeStatusPaid, paid.EffectiveStatus(now))
}

func TestPaymentServiceDisabled(t *testing.T) {
	svc := NewPaymentService(&mockFeeRepo{}, config.PaymentsConfig{}, nil)

	assert.False(t, svc.Enabled())
	_, err := svc.CreateLink(context.Background(), "f1")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
}
