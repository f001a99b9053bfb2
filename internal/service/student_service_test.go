package service

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Azizbek961/crm-edu-crm/internal/models"
	appErrors "github.com/Azizbek961/crm-edu-crm/pkg/errors"
)

type mockStudentRepo struct {
	students map[string]*models.StudentDetail
	groups   map[string][]models.GroupRecord
	children map[string][]string
}

func (m *mockStudentRepo) List(ctx context.Context, filter models.StudentFilter) ([]models.StudentDetail, int, error) {
	return nil, 0, nil
}

func (m *mockStudentRepo) FindByID(ctx context.Context, id string) (*models.StudentDetail, error) {
	if student, ok := m.students[id]; ok {
		cp := *student
		return &cp, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockStudentRepo) CreateWithUser(ctx context.Context, user *models.User, student *models.Student) error {
	student.ID = "generated"
	return nil
}

func (m *mockStudentRepo) Update(ctx context.Context, student *models.Student) error {
	return nil
}

func (m *mockStudentRepo) Groups(ctx context.Context, studentID string) ([]models.GroupRecord, error) {
	return m.groups[studentID], nil
}

func (m *mockStudentRepo) ChildrenOfParent(ctx context.Context, parentID string) ([]string, error) {
	return m.children[parentID], nil
}

func (m *mockStudentRepo) Stats(ctx context.Context) (*models.StudentStats, error) {
	return &models.StudentStats{}, nil
}

type mockStudentUserRepo struct{}

func (m *mockStudentUserRepo) FindByID(ctx context.Context, id string) (*models.User, error) {
	return nil, sql.ErrNoRows
}

func (m *mockStudentUserRepo) FindByUsername(ctx context.Context, username string) (*models.User, error) {
	return nil, sql.ErrNoRows
}

func (m *mockStudentUserRepo) Update(ctx context.Context, user *models.User) error {
	return nil
}

func (m *mockStudentUserRepo) Delete(ctx context.Context, id string) error {
	return nil
}

func enrolledStudent(id string) *models.StudentDetail {
	return &models.StudentDetail{
		Student:   models.Student{ID: id, UserID: "u-" + id},
		FirstName: "Aziza",
		LastName:  "Karimova",
		Active:    true,
	}
}

func TestStudentServiceGetPinsStudentScope(t *testing.T) {
	repo := &mockStudentRepo{students: map[string]*models.StudentDetail{testStudentID: enrolledStudent(testStudentID)}}
	svc := NewStudentService(repo, &mockStudentUserRepo{}, nil, nil)

	student, err := svc.Get(context.Background(), models.Scope{Role: models.RoleStudent, StudentID: testStudentID}, testStudentID)
	require.NoError(t, err)
	assert.Equal(t, testStudentID, student.ID)

	_, err = svc.Get(context.Background(), models.Scope{Role: models.RoleStudent, StudentID: testStudentID2}, testStudentID)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
}

func TestStudentServiceGetParentScope(t *testing.T) {
	repo := &mockStudentRepo{
		students: map[string]*models.StudentDetail{testStudentID: enrolledStudent(testStudentID)},
		children: map[string][]string{"p1": {testStudentID}},
	}
	svc := NewStudentService(repo, &mockStudentUserRepo{}, nil, nil)

	student, err := svc.Get(context.Background(), models.Scope{Role: models.RoleParent, ParentID: "p1"}, testStudentID)
	require.NoError(t, err)
	assert.Equal(t, testStudentID, student.ID)

	_, err = svc.Get(context.Background(), models.Scope{Role: models.RoleParent, ParentID: "p-unlinked"}, testStudentID)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
}

func TestStudentServiceGroupsParentScope(t *testing.T) {
	repo := &mockStudentRepo{
		students: map[string]*models.StudentDetail{testStudentID: enrolledStudent(testStudentID)},
		groups:   map[string][]models.GroupRecord{testStudentID: {*activeGroup("t1")}},
		children: map[string][]string{"p1": {testStudentID}},
	}
	svc := NewStudentService(repo, &mockStudentUserRepo{}, nil, nil)

	groups, err := svc.Groups(context.Background(), models.Scope{Role: models.RoleParent, ParentID: "p1"}, testStudentID)
	require.NoError(t, err)
	require.Len(t, groups, 1)
	assert.Equal(t, testGroupID, groups[0].ID)

	_, err = svc.Groups(context.Background(), models.Scope{Role: models.RoleParent, ParentID: "p1"}, testStudentID2)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
}
