package dto

import "github.com/Azizbek961/crm-edu-crm/internal/models"

// AdminDashboardResponse captures the aggregated admin dashboard payload.
type AdminDashboardResponse struct {
	Totals          AdminTotalsSection               `json:"totals"`
	GroupStatus     map[string]int                   `json:"group_status"`
	Fees            AdminFeesSection                 `json:"fees"`
	AttendanceToday models.AttendanceStatusCounts    `json:"attendance_today"`
	AttendanceTrend []models.MonthlyAttendanceBucket `json:"attendance_trend"`
}

// AdminTotalsSection counts the main entities.
type AdminTotalsSection struct {
	Students       int `json:"students"`
	NewStudents    int `json:"new_students_this_month"`
	Teachers       int `json:"teachers"`
	Groups         int `json:"groups"`
	Subjects       int `json:"subjects"`
	ActiveAccounts int `json:"active_accounts"`
}

// AdminFeesSection combines fee buckets with revenue windows.
type AdminFeesSection struct {
	Summary          models.FeeSummary `json:"summary"`
	RevenueLast30    float64           `json:"revenue_last_30_days"`
	RevenueThisMonth float64           `json:"revenue_this_month"`
}

// TeacherDashboardResponse captures personalised teacher dashboard data.
type TeacherDashboardResponse struct {
	GroupCount     int                   `json:"group_count"`
	StudentCount   int                   `json:"student_count"`
	UpcomingExams  int                   `json:"upcoming_exams"`
	Homework       models.HomeworkCounts `json:"homework"`
	AttendanceRate float64               `json:"attendance_rate"`
	AveragePercent float64               `json:"average_percent"`
	Groups         []GroupCard           `json:"groups"`
}

// GroupCard is a colored group tile.
type GroupCard struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	SubjectName  string `json:"subject_name"`
	StudentCount int    `json:"student_count"`
	Status       string `json:"status"`
	Color        string `json:"color"`
}

// StudentDashboardResponse captures the student's personal overview.
type StudentDashboardResponse struct {
	Groups         []GroupCard                 `json:"groups"`
	AttendanceRate float64                     `json:"attendance_rate"`
	Homework       models.HomeworkCounts       `json:"homework"`
	UpcomingExams  int                         `json:"upcoming_exams"`
	AveragePercent float64                     `json:"average_percent"`
	BestSubject    string                      `json:"best_subject"`
	Subjects       []models.SubjectPerformance `json:"subjects"`
	Fees           StudentFeesSection          `json:"fees"`
}

// StudentFeesSection summarises the student's own fee buckets.
type StudentFeesSection struct {
	PendingAmount float64 `json:"pending_amount"`
	OverdueAmount float64 `json:"overdue_amount"`
	PaidCount     int     `json:"paid_count"`
	PendingCount  int     `json:"pending_count"`
	OverdueCount  int     `json:"overdue_count"`
}
