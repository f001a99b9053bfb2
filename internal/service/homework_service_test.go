package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Azizbek961/crm-edu-crm/internal/models"
	appErrors "github.com/Azizbek961/crm-edu-crm/pkg/errors"
)

type mockHomeworkRepo struct {
	items      map[string]*models.HomeworkRecord
	listRows   []models.HomeworkRecord
	listTotal  int
	listCalled bool
	lastFilter models.HomeworkFilter
	updated    []models.Homework
}

func (m *mockHomeworkRepo) List(ctx context.Context, filter models.HomeworkFilter) ([]models.HomeworkRecord, int, error) {
	m.listCalled = true
	m.lastFilter = filter
	return m.listRows, m.listTotal, nil
}

func (m *mockHomeworkRepo) FindByID(ctx context.Context, id string) (*models.HomeworkRecord, error) {
	if record, ok := m.items[id]; ok {
		cp := *record
		return &cp, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockHomeworkRepo) Create(ctx context.Context, hw *models.Homework) error {
	hw.ID = "generated"
	return nil
}

func (m *mockHomeworkRepo) Update(ctx context.Context, hw *models.Homework) error {
	m.updated = append(m.updated, *hw)
	return nil
}

func (m *mockHomeworkRepo) Delete(ctx context.Context, id string) error {
	return nil
}

func (m *mockHomeworkRepo) Counts(ctx context.Context, filter models.HomeworkFilter) (*models.HomeworkCounts, error) {
	return &models.HomeworkCounts{}, nil
}

func TestDeriveHomeworkStatus(t *testing.T) {
	now := time.Date(2026, 3, 10, 15, 30, 0, 0, time.UTC)
	day := func(offset int) time.Time { return now.AddDate(0, 0, offset) }

	assert.Equal(t, models.HomeworkStatusOverdue, deriveHomeworkStatus(day(-1), now))
	assert.Equal(t, models.HomeworkStatusActive, deriveHomeworkStatus(day(0), now))
	assert.Equal(t, models.HomeworkStatusActive, deriveHomeworkStatus(day(7), now))
	assert.Equal(t, models.HomeworkStatusUpcoming, deriveHomeworkStatus(day(8), now))
}

func TestHomeworkServiceListStudentWithoutGroups(t *testing.T) {
	repo := &mockHomeworkRepo{}
	svc := NewHomeworkService(repo, &mockGroupDirectory{}, &mockChildLookup{}, nil, nil)

	list, pagination, err := svc.List(context.Background(), models.Scope{Role: models.RoleStudent, StudentID: testStudentID}, models.HomeworkFilter{})
	require.NoError(t, err)
	assert.Empty(t, list.Items)
	assert.Zero(t, pagination.TotalCount)
	assert.False(t, repo.listCalled)
}

func TestHomeworkServiceListStudentScope(t *testing.T) {
	repo := &mockHomeworkRepo{}
	groups := &mockGroupDirectory{enrolled: map[string][]string{testStudentID: {testGroupID}}}
	svc := NewHomeworkService(repo, groups, &mockChildLookup{}, nil, nil)
	scope := models.Scope{Role: models.RoleStudent, StudentID: testStudentID}

	_, _, err := svc.List(context.Background(), scope, models.HomeworkFilter{})
	require.NoError(t, err)
	assert.Equal(t, []string{testGroupID}, repo.lastFilter.GroupIDs)

	_, _, err = svc.List(context.Background(), scope, models.HomeworkFilter{GroupID: "some-other-group"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
}

func TestHomeworkServiceUpdateForeignTeacher(t *testing.T) {
	repo := &mockHomeworkRepo{
		items: map[string]*models.HomeworkRecord{
			"hw1": {Homework: models.Homework{ID: "hw1", AssignedBy: "t2", AssignedTo: testGroupID}},
		},
	}
	svc := NewHomeworkService(repo, &mockGroupDirectory{}, &mockChildLookup{}, nil, nil)

	_, err := svc.Update(context.Background(), models.Scope{Role: models.RoleTeacher, TeacherID: "t1"}, "hw1", UpdateHomeworkRequest{
		Title:      "Chapter 4 problems",
		SubjectID:  testSubjectID,
		AssignedTo: testGroupID,
		DueDate:    "2026-03-20",
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
	assert.Empty(t, repo.updated)
}

func TestHomeworkServiceUpdateMovesToForeignGroup(t *testing.T) {
	repo := &mockHomeworkRepo{
		items: map[string]*models.HomeworkRecord{
			"hw1": {Homework: models.Homework{ID: "hw1", AssignedBy: "t1", AssignedTo: testGroupID}},
		},
	}
	groups := &mockGroupDirectory{
		groups: map[string]*models.GroupRecord{
			testGroupID:  activeGroup("t1"),
			testGroupID2: activeGroup("t2"),
		},
	}
	svc := NewHomeworkService(repo, groups, &mockChildLookup{}, nil, nil)
	scope := models.Scope{Role: models.RoleTeacher, TeacherID: "t1"}

	_, err := svc.Update(context.Background(), scope, "hw1", UpdateHomeworkRequest{
		Title:      "Chapter 4 problems",
		SubjectID:  testSubjectID,
		AssignedTo: testGroupID2,
		DueDate:    "2026-03-20",
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
	assert.Empty(t, repo.updated)

	_, err = svc.Update(context.Background(), scope, "hw1", UpdateHomeworkRequest{
		Title:      "Chapter 4 problems",
		SubjectID:  testSubjectID,
		AssignedTo: testStudentID3,
		DueDate:    "2026-03-20",
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
	assert.Empty(t, repo.updated)
}

func TestHomeworkServiceListParentScope(t *testing.T) {
	repo := &mockHomeworkRepo{}
	groups := &mockGroupDirectory{enrolled: map[string][]string{
		testStudentID:  {testGroupID},
		testStudentID2: {testGroupID, testGroupID2},
	}}
	students := &mockChildLookup{children: map[string][]string{"p1": {testStudentID, testStudentID2}}}
	svc := NewHomeworkService(repo, groups, students, nil, nil)
	scope := models.Scope{Role: models.RoleParent, ParentID: "p1"}

	_, _, err := svc.List(context.Background(), scope, models.HomeworkFilter{})
	require.NoError(t, err)
	assert.Equal(t, []string{testGroupID, testGroupID2}, repo.lastFilter.GroupIDs)

	_, _, err = svc.List(context.Background(), scope, models.HomeworkFilter{GroupID: "some-other-group"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
}

func TestHomeworkServiceGetParentForeignGroup(t *testing.T) {
	repo := &mockHomeworkRepo{
		items: map[string]*models.HomeworkRecord{
			"hw1": {Homework: models.Homework{ID: "hw1", AssignedTo: testGroupID2}},
		},
	}
	groups := &mockGroupDirectory{enrolled: map[string][]string{testStudentID: {testGroupID}}}
	students := &mockChildLookup{children: map[string][]string{"p1": {testStudentID}}}
	svc := NewHomeworkService(repo, groups, students, nil, nil)

	_, err := svc.Get(context.Background(), models.Scope{Role: models.RoleParent, ParentID: "p1"}, "hw1")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
}

func TestHomeworkServiceCreateForeignGroup(t *testing.T) {
	groups := &mockGroupDirectory{
		groups: map[string]*models.GroupRecord{testGroupID: activeGroup("t2")},
	}
	svc := NewHomeworkService(&mockHomeworkRepo{}, groups, &mockChildLookup{}, nil, nil)

	_, err := svc.Create(context.Background(), models.Scope{Role: models.RoleTeacher, TeacherID: "t1"}, CreateHomeworkRequest{
		Title:      "Chapter 4 problems",
		SubjectID:  testSubjectID,
		AssignedTo: testGroupID,
		DueDate:    "2026-03-20",
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
}
