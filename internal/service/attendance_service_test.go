package service

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Azizbek961/crm-edu-crm/internal/models"
	appErrors "github.com/Azizbek961/crm-edu-crm/pkg/errors"
)

const (
	testGroupID    = "0f0b2a1c-5b7d-4a53-9e34-8c2f6d1e7a90"
	testGroupID2   = "3b8c4f0e-2d41-4b8a-9c5e-7f1a2b3c4d5e"
	testSubjectID  = "7c9e6679-7425-40de-944b-e07fc1f90ae7"
	testStudentID  = "5a3c0bd2-8d77-4e19-9aff-3e0f8e4d86f1"
	testStudentID2 = "9b2d7a10-3c4d-4e5f-8a6b-7c8d9e0f1a2b"
	testStudentID3 = "1e2d3c4b-5a69-4788-9695-a4b3c2d1e0f9"
)

// mockGroupDirectory serves the group lookups every scoped service
// needs: existence, membership and a student's group list.
type mockGroupDirectory struct {
	groups   map[string]*models.GroupRecord
	members  map[string]map[string]bool
	enrolled map[string][]string
}

func (m *mockGroupDirectory) FindByID(ctx context.Context, id string) (*models.GroupRecord, error) {
	if group, ok := m.groups[id]; ok {
		cp := *group
		return &cp, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockGroupDirectory) IsMember(ctx context.Context, groupID, studentID string) (bool, error) {
	return m.members[groupID][studentID], nil
}

func (m *mockGroupDirectory) GroupsOfStudent(ctx context.Context, studentID string) ([]string, error) {
	return m.enrolled[studentID], nil
}

type mockAttendanceRepo struct {
	upserted   []models.Attendance
	upsertErr  map[string]error
	listRows   []models.AttendanceRecord
	listTotal  int
	lastFilter models.AttendanceFilter
	counts     *models.AttendanceStatusCounts
}

func (m *mockAttendanceRepo) List(ctx context.Context, filter models.AttendanceFilter) ([]models.AttendanceRecord, int, error) {
	m.lastFilter = filter
	return m.listRows, m.listTotal, nil
}

func (m *mockAttendanceRepo) ListAll(ctx context.Context, filter models.AttendanceFilter) ([]models.AttendanceRecord, error) {
	return m.listRows, nil
}

func (m *mockAttendanceRepo) FindByID(ctx context.Context, id string) (*models.Attendance, error) {
	return nil, sql.ErrNoRows
}

func (m *mockAttendanceRepo) Upsert(ctx context.Context, record *models.Attendance) (*models.Attendance, error) {
	if err := m.upsertErr[record.StudentID]; err != nil {
		return nil, err
	}
	m.upserted = append(m.upserted, *record)
	cp := *record
	cp.ID = "generated"
	return &cp, nil
}

func (m *mockAttendanceRepo) Update(ctx context.Context, record *models.Attendance) error {
	return nil
}

func (m *mockAttendanceRepo) Delete(ctx context.Context, id string) error {
	return nil
}

func (m *mockAttendanceRepo) StatusCounts(ctx context.Context, filter models.AttendanceFilter) (*models.AttendanceStatusCounts, error) {
	if m.counts != nil {
		return m.counts, nil
	}
	return &models.AttendanceStatusCounts{}, nil
}

func activeGroup(teacherID string) *models.GroupRecord {
	return &models.GroupRecord{
		Group: models.Group{
			ID:        testGroupID,
			Name:      "Algebra A",
			SubjectID: testSubjectID,
			TeacherID: teacherID,
			Status:    models.GroupStatusActive,
		},
		SubjectName: "Mathematics",
	}
}

func TestAttendanceServiceBulkMarkCollectsRowErrors(t *testing.T) {
	repo := &mockAttendanceRepo{
		upsertErr: map[string]error{testStudentID3: errors.New("boom")},
	}
	groups := &mockGroupDirectory{
		groups: map[string]*models.GroupRecord{testGroupID: activeGroup("t1")},
		members: map[string]map[string]bool{
			testGroupID: {testStudentID: true, testStudentID3: true},
		},
	}
	svc := NewAttendanceService(repo, groups, &mockChildLookup{}, nil, nil)

	result, err := svc.BulkMark(context.Background(), models.Scope{Role: models.RoleAdmin, UserID: "u1"}, BulkAttendanceRequest{
		GroupID: testGroupID,
		Date:    "2026-03-02",
		Records: []BulkAttendanceEntry{
			{StudentID: testStudentID, Status: "present"},
			{StudentID: testStudentID2, Status: "absent"},
			{StudentID: testStudentID3, Status: "late"},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, result.Saved)
	require.Len(t, result.Errors, 2)
	assert.Equal(t, testStudentID2, result.Errors[0].StudentID)
	assert.Equal(t, "student is not a member of this group", result.Errors[0].Reason)
	assert.Equal(t, testStudentID3, result.Errors[1].StudentID)

	require.Len(t, repo.upserted, 1)
	assert.Equal(t, testStudentID, repo.upserted[0].StudentID)
	assert.Equal(t, models.AttendanceStatusPresent, repo.upserted[0].Status)
	assert.Equal(t, "u1", repo.upserted[0].RecordedBy)
}

func TestAttendanceServiceBulkMarkForeignGroup(t *testing.T) {
	repo := &mockAttendanceRepo{}
	groups := &mockGroupDirectory{
		groups: map[string]*models.GroupRecord{testGroupID: activeGroup("t2")},
	}
	svc := NewAttendanceService(repo, groups, &mockChildLookup{}, nil, nil)

	_, err := svc.BulkMark(context.Background(), models.Scope{Role: models.RoleTeacher, TeacherID: "t1"}, BulkAttendanceRequest{
		GroupID: testGroupID,
		Date:    "2026-03-02",
		Records: []BulkAttendanceEntry{{StudentID: testStudentID, Status: "present"}},
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
	assert.Empty(t, repo.upserted)
}

func TestAttendanceServiceMarkRejectsBadDate(t *testing.T) {
	svc := NewAttendanceService(&mockAttendanceRepo{}, &mockGroupDirectory{}, &mockChildLookup{}, nil, nil)

	_, err := svc.Mark(context.Background(), models.Scope{Role: models.RoleAdmin}, MarkAttendanceRequest{
		StudentID: testStudentID,
		GroupID:   testGroupID,
		Date:      "02-03-2026",
		Status:    "present",
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestAttendanceServiceListPinsStudentScope(t *testing.T) {
	repo := &mockAttendanceRepo{}
	svc := NewAttendanceService(repo, &mockGroupDirectory{}, &mockChildLookup{}, nil, nil)

	_, _, err := svc.List(context.Background(), models.Scope{Role: models.RoleStudent, StudentID: testStudentID}, models.AttendanceFilter{})
	require.NoError(t, err)
	assert.Equal(t, testStudentID, repo.lastFilter.StudentID)
}

func TestAttendanceServiceListPinsParentScope(t *testing.T) {
	repo := &mockAttendanceRepo{}
	students := &mockChildLookup{children: map[string][]string{"p1": {testStudentID, testStudentID2}}}
	svc := NewAttendanceService(repo, &mockGroupDirectory{}, students, nil, nil)
	scope := models.Scope{Role: models.RoleParent, ParentID: "p1"}

	_, _, err := svc.List(context.Background(), scope, models.AttendanceFilter{})
	require.NoError(t, err)
	assert.Equal(t, []string{testStudentID, testStudentID2}, repo.lastFilter.StudentIDs)

	_, _, err = svc.List(context.Background(), scope, models.AttendanceFilter{StudentID: testStudentID3})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
}

func TestAttendanceServiceListParentWithoutChildren(t *testing.T) {
	repo := &mockAttendanceRepo{}
	svc := NewAttendanceService(repo, &mockGroupDirectory{}, &mockChildLookup{}, nil, nil)

	_, _, err := svc.List(context.Background(), models.Scope{Role: models.RoleParent, ParentID: "p-unlinked"}, models.AttendanceFilter{})
	require.NoError(t, err)
	assert.Equal(t, "p-unlinked", repo.lastFilter.StudentID)
	assert.Empty(t, repo.lastFilter.StudentIDs)
}

func TestAttendanceStatusCountsRate(t *testing.T) {
	assert.Zero(t, models.AttendanceStatusCounts{}.Rate())

	counts := models.AttendanceStatusCounts{Present: 3, Absent: 1, Total: 4}
	assert.InDelta(t, 75.0, counts.Rate(), 0.001)
}

func TestAttendanceServiceExportCSV(t *testing.T) {
	date := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
	repo := &mockAttendanceRepo{
		listRows: []models.AttendanceRecord{
			{
				Attendance:  models.Attendance{StudentID: testStudentID, GroupID: testGroupID, Date: date, Status: models.AttendanceStatusPresent},
				StudentName: "Aziza Karimova",
				GroupName:   "Algebra A",
				SubjectName: "Mathematics",
			},
		},
		listTotal: 1,
	}
	svc := NewAttendanceService(repo, &mockGroupDirectory{}, &mockChildLookup{}, nil, nil)

	payload, err := svc.Export(context.Background(), models.Scope{Role: models.RoleAdmin}, models.AttendanceFilter{}, ExportFormatCSV)
	require.NoError(t, err)
	assert.Equal(t, "text/csv", payload.ContentType)
	assert.Contains(t, payload.Filename, ".csv")
	assert.Contains(t, string(payload.Data), "Aziza Karimova")
}
