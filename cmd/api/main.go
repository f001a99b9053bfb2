package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/Azizbek961/crm-edu-crm/api/swagger"
	"github.com/Azizbek961/crm-edu-crm/internal/handler"
	"github.com/Azizbek961/crm-edu-crm/internal/middleware"
	"github.com/Azizbek961/crm-edu-crm/internal/repository"
	"github.com/Azizbek961/crm-edu-crm/internal/service"
	"github.com/Azizbek961/crm-edu-crm/pkg/cache"
	"github.com/Azizbek961/crm-edu-crm/pkg/config"
	"github.com/Azizbek961/crm-edu-crm/pkg/database"
	"github.com/Azizbek961/crm-edu-crm/pkg/jobs"
	"github.com/Azizbek961/crm-edu-crm/pkg/logger"
	corsmiddleware "github.com/Azizbek961/crm-edu-crm/pkg/middleware/cors"
	reqidmiddleware "github.com/Azizbek961/crm-edu-crm/pkg/middleware/requestid"
)

// @title Edu CRM API
// @version 1.0.0
// @description Education center CRM: users, groups, attendance, homework, exams and fees
// @BasePath /api/v1
// @schemes http

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck
	sugar := logr.Sugar()

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		sugar.Fatalw("failed to connect to postgres", "error", err)
	}
	defer db.Close() //nolint:errcheck

	validate := validator.New()

	metricsSvc := service.NewMetricsService()

	var cacheSvc *service.CacheService
	if cfg.Dashboard.Enabled {
		redisClient, redisErr := cache.NewRedis(cfg.Redis)
		if redisErr != nil {
			sugar.Warnw("redis unavailable, dashboards run uncached", "error", redisErr)
		} else {
			cacheRepo := repository.NewCacheRepository(redisClient, logr)
			cacheSvc = service.NewCacheService(cacheRepo, metricsSvc, cfg.Dashboard.CacheTTL, logr, true)
			defer cacheRepo.Close() //nolint:errcheck
		}
	}

	userRepo := repository.NewUserRepository(db)
	teacherRepo := repository.NewTeacherRepository(db)
	studentRepo := repository.NewStudentRepository(db)
	subjectRepo := repository.NewSubjectRepository(db)
	groupRepo := repository.NewGroupRepository(db)
	attendanceRepo := repository.NewAttendanceRepository(db)
	homeworkRepo := repository.NewHomeworkRepository(db)
	examRepo := repository.NewExamRepository(db)
	feeRepo := repository.NewFeeRepository(db)

	authSvc := service.NewAuthService(userRepo, validate, logr, service.AuthConfig{
		AccessTokenSecret:  cfg.JWT.Secret,
		AccessTokenExpiry:  cfg.JWT.Expiration,
		RefreshTokenExpiry: cfg.JWT.RefreshExpiration,
		Issuer:             "crm-edu",
		Audience:           []string{"crm-edu-api"},
	})
	userSvc := service.NewUserService(userRepo, validate, logr)
	teacherSvc := service.NewTeacherService(teacherRepo, userRepo, validate, logr)
	studentSvc := service.NewStudentService(studentRepo, userRepo, validate, logr)
	subjectSvc := service.NewSubjectService(subjectRepo, validate, logr)
	groupSvc := service.NewGroupService(groupRepo, validate, logr)
	attendanceSvc := service.NewAttendanceService(attendanceRepo, groupRepo, studentRepo, validate, logr)
	homeworkSvc := service.NewHomeworkService(homeworkRepo, groupRepo, studentRepo, validate, logr)
	examSvc := service.NewExamService(examRepo, groupRepo, studentRepo, validate, logr)
	feeSvc := service.NewFeeService(feeRepo, studentRepo, validate, logr)
	paymentSvc := service.NewPaymentService(feeRepo, cfg.Payments, logr)
	scopeSvc := service.NewScopeService(teacherRepo, studentRepo)
	dashboardSvc := service.NewDashboardService(service.DashboardRepos{
		Users:      userRepo,
		Students:   studentRepo,
		Teachers:   teacherRepo,
		Subjects:   subjectRepo,
		Groups:     groupRepo,
		Attendance: attendanceRepo,
		Homework:   homeworkRepo,
		Exams:      examRepo,
		Fees:       feeRepo,
	}, cacheSvc, cfg.Dashboard.CacheTTL, logr)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metricsSvc))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	r.GET("/ready", func(c *gin.Context) {
		if err := db.PingContext(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})

	r.GET("/metrics", gin.WrapH(metricsSvc.Handler()))

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	handler.Register(r, handler.RouterConfig{
		Prefix:           cfg.APIPrefix,
		DashboardEnabled: cfg.Dashboard.Enabled,
	}, handler.Routes{
		Auth:        handler.NewAuthHandler(authSvc),
		Users:       handler.NewUserHandler(userSvc),
		Teachers:    handler.NewTeacherHandler(teacherSvc),
		Students:    handler.NewStudentHandler(studentSvc, scopeSvc),
		Subjects:    handler.NewSubjectHandler(subjectSvc),
		Groups:      handler.NewGroupHandler(groupSvc, scopeSvc),
		Attendance:  handler.NewAttendanceHandler(attendanceSvc, scopeSvc),
		Homework:    handler.NewHomeworkHandler(homeworkSvc, scopeSvc),
		Exams:       handler.NewExamHandler(examSvc, scopeSvc),
		Fees:        handler.NewFeeHandler(feeSvc, paymentSvc, scopeSvc),
		Dashboard:   handler.NewDashboardHandler(dashboardSvc, scopeSvc),
		AuthService: authSvc,
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.Fees.SweepEnabled {
		sweepQueue := jobs.NewQueue("fee-overdue-sweep", func(ctx context.Context, _ jobs.Job) error {
			return feeSvc.SweepOverdue(ctx)
		}, jobs.QueueConfig{
			Workers:    1,
			MaxRetries: cfg.Fees.SweepRetries,
			Logger:     logr,
		})
		sweepQueue.Start(ctx)
		defer sweepQueue.Stop()

		go func() {
			ticker := time.NewTicker(cfg.Fees.SweepInterval)
			defer ticker.Stop()
			for {
				select {
				case <-ctx.Done():
					return
				case now := <-ticker.C:
					job := jobs.Job{
						ID:   fmt.Sprintf("fee-sweep-%d", now.Unix()),
						Type: "fee.sweep",
					}
					if err := sweepQueue.Enqueue(job); err != nil {
						sugar.Warnw("failed to enqueue fee sweep", "error", err)
					}
				}
			}
		}()
		sugar.Infow("fee sweep scheduled", "interval", cfg.Fees.SweepInterval)
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		sugar.Infow("server starting", "addr", srv.Addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			sugar.Fatalw("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	sugar.Infow("server shutting down")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		sugar.Errorw("graceful shutdown failed", "error", err)
	}
	logr.Info("server stopped", zap.String("env", cfg.Env))
}
