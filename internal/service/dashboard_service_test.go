package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Azizbek961/crm-edu-crm/internal/models"
	appErrors "github.com/Azizbek961/crm-edu-crm/pkg/errors"
)

// mockDashboardData backs every aggregate source the dashboards read from.
type mockDashboardData struct {
	userStats    models.UserStats
	studentStats models.StudentStats
	teachers     int
	subjects     int
	groupCounts  map[models.GroupStatus]int
	groups       []models.GroupRecord
	children     map[string][]string
	attendance   models.AttendanceStatusCounts
	homework     models.HomeworkCounts
	upcoming     int
	average      float64
	performance  []models.SubjectPerformance
	feeSummary   models.FeeSummary
}

func (m *mockDashboardData) Stats(ctx context.Context) (*models.UserStats, error) {
	stats := m.userStats
	return &stats, nil
}

// mockDashboardStudents carries the student-shaped view of the same
// fixture; its Stats signature differs from the user one.
type mockDashboardStudents struct {
	d *mockDashboardData
}

func (m *mockDashboardStudents) Stats(ctx context.Context) (*models.StudentStats, error) {
	stats := m.d.studentStats
	return &stats, nil
}

func (m *mockDashboardStudents) Groups(ctx context.Context, studentID string) ([]models.GroupRecord, error) {
	return m.d.groups, nil
}

func (m *mockDashboardStudents) ChildrenOfParent(ctx context.Context, parentID string) ([]string, error) {
	return m.d.children[parentID], nil
}

func (m *mockDashboardData) CountActive(ctx context.Context) (int, error) {
	return m.teachers, nil
}

func (m *mockDashboardData) Count(ctx context.Context) (int, error) {
	return m.subjects, nil
}

func (m *mockDashboardData) List(ctx context.Context, filter models.GroupFilter) ([]models.GroupRecord, int, error) {
	return m.groups, len(m.groups), nil
}

func (m *mockDashboardData) CountByStatus(ctx context.Context, status models.GroupStatus) (int, error) {
	return m.groupCounts[status], nil
}

func (m *mockDashboardData) StatusCounts(ctx context.Context, filter models.AttendanceFilter) (*models.AttendanceStatusCounts, error) {
	counts := m.attendance
	return &counts, nil
}

func (m *mockDashboardData) Counts(ctx context.Context, filter models.HomeworkFilter) (*models.HomeworkCounts, error) {
	counts := m.homework
	return &counts, nil
}

func (m *mockDashboardData) CountsForGroups(ctx context.Context, groupIDs []string) (*models.HomeworkCounts, error) {
	counts := m.homework
	return &counts, nil
}

func (m *mockDashboardData) CountUpcoming(ctx context.Context, groupIDs []string) (int, error) {
	return m.upcoming, nil
}

func (m *mockDashboardData) AveragePercent(ctx context.Context, teacherID, studentID string) (float64, error) {
	return m.average, nil
}

func (m *mockDashboardData) SubjectPerformance(ctx context.Context, studentID string) ([]models.SubjectPerformance, error) {
	out := make([]models.SubjectPerformance, len(m.performance))
	copy(out, m.performance)
	return out, nil
}

func (m *mockDashboardData) Summary(ctx context.Context, studentIDs []string) (*models.FeeSummary, error) {
	summary := m.feeSummary
	return &summary, nil
}

func (m *mockDashboardData) RevenueSince(ctx context.Context, since time.Time) (float64, error) {
	return 450, nil
}

func (m *mockDashboardData) RevenueBetween(ctx context.Context, from, to time.Time) (float64, error) {
	return 200, nil
}

func newDashboardService(data *mockDashboardData) *DashboardService {
	repos := DashboardRepos{
		Users:      data,
		Students:   &mockDashboardStudents{d: data},
		Teachers:   data,
		Subjects:   data,
		Groups:     data,
		Attendance: data,
		Homework:   data,
		Exams:      data,
		Fees:       data,
	}
	return NewDashboardService(repos, nil, 0, zap.NewNop())
}

func TestDashboardAdminAggregatesTotals(t *testing.T) {
	data := &mockDashboardData{
		userStats:    models.UserStats{Total: 40, Active: 36},
		studentStats: models.StudentStats{Total: 30, Active: 28, NewThisMonth: 4},
		teachers:     6,
		subjects:     5,
		groupCounts: map[models.GroupStatus]int{
			models.GroupStatusActive:    7,
			models.GroupStatusInactive:  1,
			models.GroupStatusCompleted: 3,
			models.GroupStatusHold:      1,
		},
		attendance: models.AttendanceStatusCounts{Present: 20, Absent: 4, Late: 1, Total: 25},
		feeSummary: models.FeeSummary{TotalCollected: 1200, TotalPending: 300, PaidCount: 12},
	}
	svc := newDashboardService(data)

	resp, err := svc.Admin(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 30, resp.Totals.Students)
	assert.Equal(t, 4, resp.Totals.NewStudents)
	assert.Equal(t, 6, resp.Totals.Teachers)
	assert.Equal(t, 5, resp.Totals.Subjects)
	assert.Equal(t, 36, resp.Totals.ActiveAccounts)
	assert.Equal(t, 12, resp.Totals.Groups)
	assert.Equal(t, 7, resp.GroupStatus["active"])
	assert.Equal(t, 1, resp.GroupStatus["hold"])
	assert.InDelta(t, 1200, resp.Fees.Summary.TotalCollected, 0.001)
	assert.Equal(t, 25, resp.AttendanceToday.Total)
	assert.Len(t, resp.AttendanceTrend, 6)
	assert.InDelta(t, 80.0, resp.AttendanceTrend[5].Rate, 0.001)
}

func TestDashboardTeacherRequiresProfile(t *testing.T) {
	svc := newDashboardService(&mockDashboardData{})

	_, err := svc.Teacher(context.Background(), models.Scope{Role: models.RoleTeacher, UserID: "u1"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
}

func TestDashboardTeacherOverview(t *testing.T) {
	data := &mockDashboardData{
		groups: []models.GroupRecord{
			{Group: models.Group{ID: testGroupID, Name: "Algebra A", Status: models.GroupStatusActive}, SubjectName: "Mathematics", StudentCount: 12},
			{Group: models.Group{ID: "g2", Name: "Algebra B", Status: models.GroupStatusActive}, SubjectName: "Mathematics", StudentCount: 9},
		},
		attendance: models.AttendanceStatusCounts{Present: 2, Total: 3},
		homework:   models.HomeworkCounts{Active: 3, Overdue: 1, Total: 4},
		upcoming:   2,
		average:    78.25,
	}
	svc := newDashboardService(data)

	resp, err := svc.Teacher(context.Background(), models.Scope{Role: models.RoleTeacher, TeacherID: "t1"})
	require.NoError(t, err)

	assert.Equal(t, 2, resp.GroupCount)
	assert.Equal(t, 21, resp.StudentCount)
	assert.Equal(t, 2, resp.UpcomingExams)
	assert.Equal(t, 4, resp.Homework.Total)
	assert.InDelta(t, 66.7, resp.AttendanceRate, 0.001)
	assert.InDelta(t, 78.3, resp.AveragePercent, 0.001)
	require.Len(t, resp.Groups, 2)
	assert.Equal(t, "Algebra A", resp.Groups[0].Name)
	assert.NotEmpty(t, resp.Groups[0].Color)
	assert.NotEqual(t, resp.Groups[0].Color, resp.Groups[1].Color)
}

func TestDashboardStudentOverview(t *testing.T) {
	data := &mockDashboardData{
		groups: []models.GroupRecord{
			{Group: models.Group{ID: testGroupID, Name: "Algebra A", Status: models.GroupStatusActive}, SubjectName: "Mathematics", StudentCount: 12},
		},
		attendance: models.AttendanceStatusCounts{Present: 9, Total: 10},
		homework:   models.HomeworkCounts{Active: 2, Total: 2},
		upcoming:   1,
		average:    81.5,
		performance: []models.SubjectPerformance{
			{SubjectName: "Mathematics", ResultCount: 3, AveragePercent: 74.0},
			{SubjectName: "Physics", ResultCount: 2, AveragePercent: 89.0},
		},
		feeSummary: models.FeeSummary{TotalPending: 150, PendingCount: 1},
	}
	svc := newDashboardService(data)

	resp, err := svc.Student(context.Background(), models.Scope{Role: models.RoleStudent, StudentID: testStudentID}, "")
	require.NoError(t, err)

	assert.InDelta(t, 90.0, resp.AttendanceRate, 0.001)
	assert.Equal(t, 1, resp.UpcomingExams)
	assert.InDelta(t, 81.5, resp.AveragePercent, 0.001)
	assert.Equal(t, "Physics", resp.BestSubject)
	require.Len(t, resp.Subjects, 2)
	assert.NotEmpty(t, resp.Subjects[0].Color)
	assert.InDelta(t, 150, resp.Fees.PendingAmount, 0.001)
	assert.Equal(t, 1, resp.Fees.PendingCount)
}

func TestDashboardStudentParentScope(t *testing.T) {
	data := &mockDashboardData{
		children:   map[string][]string{"p1": {testStudentID, testStudentID2}},
		attendance: models.AttendanceStatusCounts{Present: 1, Total: 1},
		homework:   models.HomeworkCounts{},
		feeSummary: models.FeeSummary{},
	}
	svc := newDashboardService(data)
	scope := models.Scope{Role: models.RoleParent, ParentID: "p1"}

	// Defaults to the first linked child when no student is requested.
	resp, err := svc.Student(context.Background(), scope, "")
	require.NoError(t, err)
	assert.InDelta(t, 100.0, resp.AttendanceRate, 0.001)

	_, err = svc.Student(context.Background(), scope, testStudentID2)
	require.NoError(t, err)

	_, err = svc.Student(context.Background(), scope, testStudentID3)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
}

func TestDashboardStudentParentWithoutChildren(t *testing.T) {
	svc := newDashboardService(&mockDashboardData{children: map[string][]string{}})

	_, err := svc.Student(context.Background(), models.Scope{Role: models.RoleParent, ParentID: "p1"}, "")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
}
