package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/Azizbek961/crm-edu-crm/internal/middleware"
	"github.com/Azizbek961/crm-edu-crm/internal/models"
	"github.com/Azizbek961/crm-edu-crm/internal/service"
)

// Routes bundles every handler mounted on the API surface.
type Routes struct {
	Auth       *AuthHandler
	Users      *UserHandler
	Teachers   *TeacherHandler
	Students   *StudentHandler
	Subjects   *SubjectHandler
	Groups     *GroupHandler
	Attendance *AttendanceHandler
	Homework   *HomeworkHandler
	Exams      *ExamHandler
	Fees       *FeeHandler
	Dashboard  *DashboardHandler

	AuthService *service.AuthService
}

// RouterConfig controls how the surface is mounted.
type RouterConfig struct {
	Prefix           string
	DashboardEnabled bool
}

// Register mounts the versioned API on the engine. Route guards stay
// coarse here; row-level scoping lives in the services.
func Register(r *gin.Engine, cfg RouterConfig, h Routes) {
	api := r.Group(cfg.Prefix)

	api.POST("/auth/login", h.Auth.Login)
	api.POST("/auth/refresh", h.Auth.Refresh)

	authed := api.Group("")
	authed.Use(middleware.JWT(h.AuthService))

	authed.POST("/auth/logout", h.Auth.Logout)
	authed.POST("/auth/change-password", h.Auth.ChangePassword)

	admin := middleware.RequireRoles(models.RoleAdmin)
	staff := middleware.RequireRoles(models.RoleAdmin, models.RoleTeacher)
	anyRole := middleware.RequireRoles(models.RoleAdmin, models.RoleTeacher, models.RoleStudent, models.RoleParent)

	users := authed.Group("/users")
	{
		users.GET("", admin, h.Users.List)
		users.GET("/stats", admin, h.Users.Stats)
		users.POST("", admin, h.Users.Create)
		users.GET("/:id", middleware.RBAC(string(models.RoleAdmin), middleware.SelfRole), h.Users.Get)
		users.PUT("/:id", admin, h.Users.Update)
		users.DELETE("/:id", admin, h.Users.Delete)
	}

	teachers := authed.Group("/teachers", admin)
	{
		teachers.GET("", h.Teachers.List)
		teachers.POST("", h.Teachers.Create)
		teachers.GET("/:id", h.Teachers.Get)
		teachers.PUT("/:id", h.Teachers.Update)
		teachers.DELETE("/:id", h.Teachers.Delete)
	}

	students := authed.Group("/students")
	{
		students.GET("", staff, h.Students.List)
		students.GET("/stats", staff, h.Students.Stats)
		students.POST("", admin, h.Students.Create)
		students.GET("/:id", anyRole, h.Students.Get)
		students.GET("/:id/groups", anyRole, h.Students.Groups)
		students.PUT("/:id", admin, h.Students.Update)
		students.DELETE("/:id", admin, h.Students.Delete)
	}

	subjects := authed.Group("/subjects")
	{
		subjects.GET("", anyRole, h.Subjects.List)
		subjects.GET("/:id", anyRole, h.Subjects.Get)
		subjects.POST("", admin, h.Subjects.Create)
		subjects.PUT("/:id", admin, h.Subjects.Update)
		subjects.DELETE("/:id", admin, h.Subjects.Delete)
	}

	groups := authed.Group("/groups")
	{
		groups.GET("", anyRole, h.Groups.List)
		groups.GET("/:id", anyRole, h.Groups.Get)
		groups.GET("/:id/detail", staff, h.Groups.Detail)
		groups.POST("", admin, h.Groups.Create)
		groups.PUT("/:id", admin, h.Groups.Update)
		groups.DELETE("/:id", admin, h.Groups.Delete)
		groups.POST("/:id/students", admin, h.Groups.AddStudent)
		groups.DELETE("/:id/students/:studentId", admin, h.Groups.RemoveStudent)
		groups.GET("/:id/students/available", admin, h.Groups.AvailableStudents)
		groups.GET("/:id/attendance", staff, h.Attendance.GroupAttendance)
	}

	attendance := authed.Group("/attendance")
	{
		attendance.GET("", anyRole, h.Attendance.List)
		attendance.GET("/export", staff, h.Attendance.Export)
		attendance.POST("", staff, h.Attendance.Mark)
		attendance.POST("/bulk", staff, h.Attendance.Bulk)
		attendance.PUT("/:id", staff, h.Attendance.Update)
		attendance.DELETE("/:id", staff, h.Attendance.Delete)
	}

	homework := authed.Group("/homework")
	{
		homework.GET("", anyRole, h.Homework.List)
		homework.GET("/:id", anyRole, h.Homework.Get)
		homework.POST("", staff, h.Homework.Create)
		homework.PUT("/:id", staff, h.Homework.Update)
		homework.DELETE("/:id", staff, h.Homework.Delete)
	}

	exams := authed.Group("/exams")
	{
		exams.GET("", staff, h.Exams.List)
		exams.GET("/:id", staff, h.Exams.Get)
		exams.POST("", staff, h.Exams.Create)
		exams.PUT("/:id", staff, h.Exams.Update)
		exams.DELETE("/:id", staff, h.Exams.Delete)
		exams.GET("/:id/results", staff, h.Exams.Roster)
		exams.PUT("/:id/results", staff, h.Exams.SaveResults)
	}

	authed.GET("/results", anyRole, h.Exams.ListResults)

	fees := authed.Group("/fees")
	{
		fees.GET("", anyRole, h.Fees.List)
		fees.GET("/summary", anyRole, h.Fees.Summary)
		fees.POST("", admin, h.Fees.Create)
		fees.PUT("/:id/status", admin, h.Fees.UpdateStatus)
		fees.DELETE("/:id", admin, h.Fees.Delete)
		fees.POST("/:id/payment-link", anyRole, h.Fees.PaymentLink)
	}

	if cfg.DashboardEnabled && h.Dashboard != nil {
		dashboard := authed.Group("/dashboard")
		{
			dashboard.GET("/admin", middleware.RequireRoles(models.RoleAdmin), h.Dashboard.Admin)
			dashboard.GET("/teacher", middleware.RequireRoles(models.RoleTeacher), h.Dashboard.Teacher)
			dashboard.GET("/student", middleware.RequireRoles(models.RoleStudent, models.RoleParent), h.Dashboard.Student)
		}
	}
}
