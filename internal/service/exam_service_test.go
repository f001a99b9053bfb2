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

type mockExamRepo struct {
	exams      map[string]*models.ExamRecord
	results    []models.Result
	subjects   []models.SubjectPerformance
	passed     int
	failed     int
	lastFilter models.ResultFilter
}

func (m *mockExamRepo) List(ctx context.Context, filter models.ExamFilter) ([]models.ExamRecord, int, error) {
	return nil, 0, nil
}

func (m *mockExamRepo) FindByID(ctx context.Context, id string) (*models.ExamRecord, error) {
	if exam, ok := m.exams[id]; ok {
		cp := *exam
		return &cp, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockExamRepo) Create(ctx context.Context, exam *models.Exam) error {
	exam.ID = "generated"
	return nil
}

func (m *mockExamRepo) Update(ctx context.Context, exam *models.Exam) error {
	return nil
}

func (m *mockExamRepo) Delete(ctx context.Context, id string) error {
	return nil
}

func (m *mockExamRepo) Roster(ctx context.Context, examID string) ([]models.ExamRosterRow, error) {
	return nil, nil
}

func (m *mockExamRepo) UpsertResult(ctx context.Context, result *models.Result) (*models.Result, error) {
	m.results = append(m.results, *result)
	cp := *result
	cp.ID = "generated"
	return &cp, nil
}

func (m *mockExamRepo) DeleteResult(ctx context.Context, examID, studentID string) error {
	return nil
}

func (m *mockExamRepo) ListResults(ctx context.Context, filter models.ResultFilter) ([]models.ResultRecord, int, error) {
	m.lastFilter = filter
	return nil, 0, nil
}

func (m *mockExamRepo) SubjectPerformance(ctx context.Context, studentID string) ([]models.SubjectPerformance, error) {
	return m.subjects, nil
}

func (m *mockExamRepo) PassFailCounts(ctx context.Context, studentID string) (int, int, error) {
	return m.passed, m.failed, nil
}

func midtermExam(teacherGroup string) *models.ExamRecord {
	return &models.ExamRecord{
		Exam: models.Exam{
			ID:        "e1",
			Name:      "Midterm",
			SubjectID: testSubjectID,
			GroupID:   teacherGroup,
			MaxScore:  100,
		},
		SubjectName: "Mathematics",
	}
}

func TestExamServiceSaveResultsCollectsRowErrors(t *testing.T) {
	repo := &mockExamRepo{exams: map[string]*models.ExamRecord{"e1": midtermExam(testGroupID)}}
	groups := &mockGroupDirectory{
		groups: map[string]*models.GroupRecord{testGroupID: activeGroup("t1")},
		members: map[string]map[string]bool{
			testGroupID: {testStudentID: true, testStudentID2: true},
		},
	}
	svc := NewExamService(repo, groups, &mockChildLookup{}, nil, nil)

	out, err := svc.SaveResults(context.Background(), models.Scope{Role: models.RoleAdmin}, "e1", SaveResultsRequest{
		Results: []ResultEntry{
			{StudentID: testStudentID, Score: 87.5},
			{StudentID: testStudentID2, Score: 150},
			{StudentID: testStudentID3, Score: 40},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, out.Saved)
	require.Len(t, out.Errors, 2)
	assert.Equal(t, testStudentID2, out.Errors[0].StudentID)
	assert.Equal(t, "score must be between 0 and 100", out.Errors[0].Reason)
	assert.Equal(t, "student is not a member of the exam group", out.Errors[1].Reason)

	require.Len(t, repo.results, 1)
	assert.InDelta(t, 87.5, repo.results[0].Score, 0.001)
}

func TestExamServiceSaveResultsForeignTeacher(t *testing.T) {
	repo := &mockExamRepo{exams: map[string]*models.ExamRecord{"e1": midtermExam(testGroupID)}}
	groups := &mockGroupDirectory{
		groups: map[string]*models.GroupRecord{testGroupID: activeGroup("t2")},
	}
	svc := NewExamService(repo, groups, &mockChildLookup{}, nil, nil)

	_, err := svc.SaveResults(context.Background(), models.Scope{Role: models.RoleTeacher, TeacherID: "t1"}, "e1", SaveResultsRequest{
		Results: []ResultEntry{{StudentID: testStudentID, Score: 50}},
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
	assert.Empty(t, repo.results)
}

func TestExamServiceResultStats(t *testing.T) {
	repo := &mockExamRepo{
		subjects: []models.SubjectPerformance{
			{SubjectName: "Biology", AveragePercent: 90, ResultCount: 1},
			{SubjectName: "Chemistry", AveragePercent: 90, ResultCount: 2},
			{SubjectName: "Mathematics", AveragePercent: 60, ResultCount: 1},
		},
		passed: 3,
		failed: 1,
	}
	svc := NewExamService(repo, &mockGroupDirectory{}, &mockChildLookup{}, nil, nil)

	stats, err := svc.ResultStats(context.Background(), models.Scope{Role: models.RoleAdmin}, testStudentID)
	require.NoError(t, err)
	// Biology and Chemistry tie on average; the name-sorted input keeps
	// Biology as the best subject.
	assert.Equal(t, "Biology", stats.BestSubject)
	assert.InDelta(t, 82.5, stats.AveragePercent, 0.001)
	assert.Equal(t, 3, stats.Passed)
	assert.Equal(t, 1, stats.Failed)
	assert.NotEmpty(t, stats.Subjects[0].Color)
}

func TestExamServiceResultStatsEmpty(t *testing.T) {
	svc := NewExamService(&mockExamRepo{}, &mockGroupDirectory{}, &mockChildLookup{}, nil, nil)

	stats, err := svc.ResultStats(context.Background(), models.Scope{Role: models.RoleAdmin}, testStudentID)
	require.NoError(t, err)
	assert.Zero(t, stats.AveragePercent)
	assert.Empty(t, stats.BestSubject)
}

func TestExamServiceListResultsPinsStudentScope(t *testing.T) {
	repo := &mockExamRepo{}
	svc := NewExamService(repo, &mockGroupDirectory{}, &mockChildLookup{}, nil, nil)
	scope := models.Scope{Role: models.RoleStudent, StudentID: testStudentID}

	_, _, err := svc.ListResults(context.Background(), scope, models.ResultFilter{})
	require.NoError(t, err)
	assert.Equal(t, testStudentID, repo.lastFilter.StudentID)

	_, _, err = svc.ListResults(context.Background(), scope, models.ResultFilter{StudentID: testStudentID2})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
}

func TestExamServiceListResultsPinsParentScope(t *testing.T) {
	repo := &mockExamRepo{}
	students := &mockChildLookup{children: map[string][]string{"p1": {testStudentID, testStudentID2}}}
	svc := NewExamService(repo, &mockGroupDirectory{}, students, nil, nil)
	scope := models.Scope{Role: models.RoleParent, ParentID: "p1"}

	_, _, err := svc.ListResults(context.Background(), scope, models.ResultFilter{})
	require.NoError(t, err)
	assert.Equal(t, []string{testStudentID, testStudentID2}, repo.lastFilter.StudentIDs)

	_, _, err = svc.ListResults(context.Background(), scope, models.ResultFilter{StudentID: testStudentID2})
	require.NoError(t, err)
	assert.Equal(t, testStudentID2, repo.lastFilter.StudentID)

	_, _, err = svc.ListResults(context.Background(), scope, models.ResultFilter{StudentID: testStudentID3})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)

	_, err = svc.ResultStats(context.Background(), scope, testStudentID3)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
}

func TestExamServiceListResultsParentWithoutChildren(t *testing.T) {
	repo := &mockExamRepo{}
	svc := NewExamService(repo, &mockGroupDirectory{}, &mockChildLookup{}, nil, nil)

	_, _, err := svc.ListResults(context.Background(), models.Scope{Role: models.RoleParent, ParentID: "p-unlinked"}, models.ResultFilter{})
	require.NoError(t, err)
	assert.Equal(t, "p-unlinked", repo.lastFilter.StudentID)
	assert.Empty(t, repo.lastFilter.StudentIDs)
}

func TestResultPercentageZeroMax(t *testing.T) {
	result := models.Result{Score: 50}
	assert.Zero(t, result.Percentage(0))
	assert.InDelta(t, 75.0, models.Result{Score: 75}.Percentage(100), 0.001)
}
