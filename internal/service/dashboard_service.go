package service

import (
	"context"
	"fmt"
	"math"
	"time"

	"go.uber.org/zap"

	"github.com/Azizbek961/crm-edu-crm/internal/dto"
	"github.com/Azizbek961/crm-edu-crm/internal/models"
	appErrors "github.com/Azizbek961/crm-edu-crm/pkg/errors"
)

type dashboardUserRepository interface {
	Stats(ctx context.Context) (*models.UserStats, error)
}

type dashboardStudentRepository interface {
	Stats(ctx context.Context) (*models.StudentStats, error)
	Groups(ctx context.Context, studentID string) ([]models.GroupRecord, error)
	ChildrenOfParent(ctx context.Context, parentID string) ([]string, error)
}

type dashboardTeacherRepository interface {
	CountActive(ctx context.Context) (int, error)
}

type dashboardSubjectRepository interface {
	Count(ctx context.Context) (int, error)
}

type dashboardGroupRepository interface {
	List(ctx context.Context, filter models.GroupFilter) ([]models.GroupRecord, int, error)
	CountByStatus(ctx context.Context, status models.GroupStatus) (int, error)
}

type dashboardAttendanceRepository interface {
	StatusCounts(ctx context.Context, filter models.AttendanceFilter) (*models.AttendanceStatusCounts, error)
}

type dashboardHomeworkRepository interface {
	Counts(ctx context.Context, filter models.HomeworkFilter) (*models.HomeworkCounts, error)
	CountsForGroups(ctx context.Context, groupIDs []string) (*models.HomeworkCounts, error)
}

type dashboardExamRepository interface {
	CountUpcoming(ctx context.Context, groupIDs []string) (int, error)
	AveragePercent(ctx context.Context, teacherID, studentID string) (float64, error)
	SubjectPerformance(ctx context.Context, studentID string) ([]models.SubjectPerformance, error)
}

type dashboardFeeRepository interface {
	Summary(ctx context.Context, studentIDs []string) (*models.FeeSummary, error)
	RevenueSince(ctx context.Context, since time.Time) (float64, error)
	RevenueBetween(ctx context.Context, from, to time.Time) (float64, error)
}

// DashboardRepos groups the aggregate sources the dashboards read from.
type DashboardRepos struct {
	Users      dashboardUserRepository
	Students   dashboardStudentRepository
	Teachers   dashboardTeacherRepository
	Subjects   dashboardSubjectRepository
	Groups     dashboardGroupRepository
	Attendance dashboardAttendanceRepository
	Homework   dashboardHomeworkRepository
	Exams      dashboardExamRepository
	Fees       dashboardFeeRepository
}

// DashboardService builds role specific overview payloads with a
// cache-aside layer in front of the aggregate queries.
type DashboardService struct {
	repos  DashboardRepos
	cache  *CacheService
	ttl    time.Duration
	logger *zap.Logger
}

// NewDashboardService creates an instance of DashboardService.
func NewDashboardService(repos DashboardRepos, cache *CacheService, ttl time.Duration, logger *zap.Logger) *DashboardService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &DashboardService{repos: repos, cache: cache, ttl: ttl, logger: logger}
}

// Admin builds the school wide overview.
func (s *DashboardService) Admin(ctx context.Context) (*dto.AdminDashboardResponse, error) {
	const cacheKey = "dashboard:admin"
	var cached dto.AdminDashboardResponse
	if hit, _ := s.cache.Get(ctx, cacheKey, &cached); hit {
		return &cached, nil
	}

	userStats, err := s.repos.Users.Stats(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load user stats")
	}
	studentStats, err := s.repos.Students.Stats(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student stats")
	}
	teachers, err := s.repos.Teachers.CountActive(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count teachers")
	}
	subjects, err := s.repos.Subjects.Count(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count subjects")
	}

	groupStatus := map[string]int{}
	groupTotal := 0
	for _, status := range []models.GroupStatus{models.GroupStatusActive, models.GroupStatusInactive, models.GroupStatusCompleted, models.GroupStatusHold} {
		count, err := s.repos.Groups.CountByStatus(ctx, status)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count groups")
		}
		groupStatus[string(status)] = count
		groupTotal += count
	}

	now := time.Now().UTC()
	feeSummary, err := s.repos.Fees.Summary(ctx, nil)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load fee summary")
	}
	revenue30, err := s.repos.Fees.RevenueSince(ctx, now.AddDate(0, 0, -30))
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load revenue")
	}
	monthStart := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	revenueMonth, err := s.repos.Fees.RevenueBetween(ctx, monthStart, now)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load revenue")
	}

	today := now.Truncate(24 * time.Hour)
	todayCounts, err := s.repos.Attendance.StatusCounts(ctx, models.AttendanceFilter{Date: &today})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load attendance counts")
	}
	trend, err := s.attendanceTrend(ctx, models.AttendanceFilter{}, 6)
	if err != nil {
		return nil, err
	}

	resp := &dto.AdminDashboardResponse{
		Totals: dto.AdminTotalsSection{
			Students:       studentStats.Total,
			NewStudents:    studentStats.NewThisMonth,
			Teachers:       teachers,
			Groups:         groupTotal,
			Subjects:       subjects,
			ActiveAccounts: userStats.Active,
		},
		GroupStatus: groupStatus,
		Fees: dto.AdminFeesSection{
			Summary:          *feeSummary,
			RevenueLast30:    revenue30,
			RevenueThisMonth: revenueMonth,
		},
		AttendanceToday: *todayCounts,
		AttendanceTrend: trend,
	}

	if err := s.cache.Set(ctx, cacheKey, resp, s.ttl); err != nil {
		s.logger.Sugar().Warnw("failed to cache admin dashboard", "error", err)
	}
	return resp, nil
}

// Teacher builds the overview scoped to the teacher's own groups.
func (s *DashboardService) Teacher(ctx context.Context, scope models.Scope) (*dto.TeacherDashboardResponse, error) {
	if scope.TeacherID == "" {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "teacher profile required")
	}
	cacheKey := fmt.Sprintf("dashboard:teacher:%s", scope.TeacherID)
	var cached dto.TeacherDashboardResponse
	if hit, _ := s.cache.Get(ctx, cacheKey, &cached); hit {
		return &cached, nil
	}

	groups, _, err := s.repos.Groups.List(ctx, models.GroupFilter{TeacherID: scope.TeacherID, PageSize: 100})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load groups")
	}
	groupIDs := make([]string, 0, len(groups))
	cards := make([]dto.GroupCard, 0, len(groups))
	studentCount := 0
	for i, g := range groups {
		groupIDs = append(groupIDs, g.ID)
		studentCount += g.StudentCount
		cards = append(cards, dto.GroupCard{
			ID:           g.ID,
			Name:         g.Name,
			SubjectName:  g.SubjectName,
			StudentCount: g.StudentCount,
			Status:       string(g.Status),
			Color:        dto.GroupColor(i),
		})
	}

	upcoming, err := s.repos.Exams.CountUpcoming(ctx, groupIDs)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count exams")
	}
	homework, err := s.repos.Homework.Counts(ctx, models.HomeworkFilter{TeacherID: scope.TeacherID})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count homework")
	}
	attendance, err := s.repos.Attendance.StatusCounts(ctx, models.AttendanceFilter{TeacherID: scope.TeacherID})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load attendance counts")
	}
	average, err := s.repos.Exams.AveragePercent(ctx, scope.TeacherID, "")
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load result average")
	}

	resp := &dto.TeacherDashboardResponse{
		GroupCount:     len(groups),
		StudentCount:   studentCount,
		UpcomingExams:  upcoming,
		Homework:       *homework,
		AttendanceRate: round1(attendance.Rate()),
		AveragePercent: round1(average),
		Groups:         cards,
	}

	if err := s.cache.Set(ctx, cacheKey, resp, s.ttl); err != nil {
		s.logger.Sugar().Warnw("failed to cache teacher dashboard", "teacher_id", scope.TeacherID, "error", err)
	}
	return resp, nil
}

// Student builds the personal overview. Students see their own data;
// parents may pass a linked child's id.
func (s *DashboardService) Student(ctx context.Context, scope models.Scope, studentID string) (*dto.StudentDashboardResponse, error) {
	switch scope.Role {
	case models.RoleStudent:
		studentID = scope.StudentID
	case models.RoleParent:
		children, err := s.repos.Students.ChildrenOfParent(ctx, scope.ParentID)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load children")
		}
		if studentID == "" && len(children) > 0 {
			studentID = children[0]
		}
		if !containsString(children, studentID) {
			return nil, appErrors.Clone(appErrors.ErrForbidden, "cannot access a foreign student's dashboard")
		}
	}
	if studentID == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "student id is required")
	}

	cacheKey := fmt.Sprintf("dashboard:student:%s", studentID)
	var cached dto.StudentDashboardResponse
	if hit, _ := s.cache.Get(ctx, cacheKey, &cached); hit {
		return &cached, nil
	}

	groups, err := s.repos.Students.Groups(ctx, studentID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load groups")
	}
	groupIDs := make([]string, 0, len(groups))
	cards := make([]dto.GroupCard, 0, len(groups))
	for i, g := range groups {
		groupIDs = append(groupIDs, g.ID)
		cards = append(cards, dto.GroupCard{
			ID:           g.ID,
			Name:         g.Name,
			SubjectName:  g.SubjectName,
			StudentCount: g.StudentCount,
			Status:       string(g.Status),
			Color:        dto.GroupColor(i),
		})
	}

	attendance, err := s.repos.Attendance.StatusCounts(ctx, models.AttendanceFilter{StudentID: studentID})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load attendance counts")
	}
	homework, err := s.repos.Homework.CountsForGroups(ctx, groupIDs)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count homework")
	}
	upcoming, err := s.repos.Exams.CountUpcoming(ctx, groupIDs)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count exams")
	}
	average, err := s.repos.Exams.AveragePercent(ctx, "", studentID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load result average")
	}
	subjects, err := s.repos.Exams.SubjectPerformance(ctx, studentID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load subject performance")
	}
	best := ""
	bestAvg := 0.0
	for i := range subjects {
		subjects[i].Color = dto.SubjectColor(subjects[i].SubjectName)
		subjects[i].AveragePercent = round1(subjects[i].AveragePercent)
		if best == "" || subjects[i].AveragePercent > bestAvg {
			best = subjects[i].SubjectName
			bestAvg = subjects[i].AveragePercent
		}
	}
	feeSummary, err := s.repos.Fees.Summary(ctx, []string{studentID})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load fee summary")
	}

	resp := &dto.StudentDashboardResponse{
		Groups:         cards,
		AttendanceRate: round1(attendance.Rate()),
		Homework:       *homework,
		UpcomingExams:  upcoming,
		AveragePercent: round1(average),
		BestSubject:    best,
		Subjects:       subjects,
		Fees: dto.StudentFeesSection{
			PendingAmount: feeSummary.TotalPending,
			OverdueAmount: feeSummary.TotalOverdue,
			PaidCount:     feeSummary.PaidCount,
			PendingCount:  feeSummary.PendingCount,
			OverdueCount:  feeSummary.OverdueCount,
		},
	}

	if err := s.cache.Set(ctx, cacheKey, resp, s.ttl); err != nil {
		s.logger.Sugar().Warnw("failed to cache student dashboard", "student_id", studentID, "error", err)
	}
	return resp, nil
}

// attendanceTrend aggregates one bucket per calendar month, newest last.
func (s *DashboardService) attendanceTrend(ctx context.Context, base models.AttendanceFilter, months int) ([]models.MonthlyAttendanceBucket, error) {
	now := time.Now().UTC()
	buckets := make([]models.MonthlyAttendanceBucket, 0, months)
	for i := months - 1; i >= 0; i-- {
		start := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC).AddDate(0, -i, 0)
		end := start.AddDate(0, 1, 0).Add(-time.Nanosecond)
		filter := base
		filter.DateFrom = &start
		filter.DateTo = &end
		counts, err := s.repos.Attendance.StatusCounts(ctx, filter)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load attendance trend")
		}
		buckets = append(buckets, models.MonthlyAttendanceBucket{
			Label:   start.Format("Jan 2006"),
			Present: counts.Present,
			Total:   counts.Total,
			Rate:    round1(counts.Rate()),
		})
	}
	return buckets, nil
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
