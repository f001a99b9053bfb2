package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/Azizbek961/crm-edu-crm/internal/dto"
	"github.com/Azizbek961/crm-edu-crm/internal/models"
	appErrors "github.com/Azizbek961/crm-edu-crm/pkg/errors"
)

type examRepository interface {
	List(ctx context.Context, filter models.ExamFilter) ([]models.ExamRecord, int, error)
	FindByID(ctx context.Context, id string) (*models.ExamRecord, error)
	Create(ctx context.Context, exam *models.Exam) error
	Update(ctx context.Context, exam *models.Exam) error
	Delete(ctx context.Context, id string) error
	Roster(ctx context.Context, examID string) ([]models.ExamRosterRow, error)
	UpsertResult(ctx context.Context, result *models.Result) (*models.Result, error)
	DeleteResult(ctx context.Context, examID, studentID string) error
	ListResults(ctx context.Context, filter models.ResultFilter) ([]models.ResultRecord, int, error)
	SubjectPerformance(ctx context.Context, studentID string) ([]models.SubjectPerformance, error)
	PassFailCounts(ctx context.Context, studentID string) (int, int, error)
}

type examGroupRepository interface {
	FindByID(ctx context.Context, id string) (*models.GroupRecord, error)
	IsMember(ctx context.Context, groupID, studentID string) (bool, error)
}

type examStudentRepository interface {
	ChildrenOfParent(ctx context.Context, parentID string) ([]string, error)
}

// CreateExamRequest payload for scheduling an exam.
type CreateExamRequest struct {
	Name      string  `json:"name" validate:"required"`
	SubjectID string  `json:"subject_id" validate:"required,uuid4"`
	GroupID   string  `json:"group_id" validate:"required,uuid4"`
	Date      string  `json:"date" validate:"required"`
	MaxScore  float64 `json:"max_score" validate:"required,gt=0"`
}

// UpdateExamRequest payload for editing an exam.
type UpdateExamRequest struct {
	Name      string  `json:"name" validate:"required"`
	SubjectID string  `json:"subject_id" validate:"required,uuid4"`
	GroupID   string  `json:"group_id" validate:"required,uuid4"`
	Date      string  `json:"date" validate:"required"`
	MaxScore  float64 `json:"max_score" validate:"required,gt=0"`
}

// ResultEntry is one student's score in a bulk save.
type ResultEntry struct {
	StudentID string  `json:"student_id" validate:"required,uuid4"`
	Score     float64 `json:"score"`
	Remarks   string  `json:"remarks"`
}

// SaveResultsRequest payload for grading an exam roster.
type SaveResultsRequest struct {
	Results []ResultEntry `json:"results" validate:"required,min=1,dive"`
}

// ResultError describes one entry that could not be saved.
type ResultError struct {
	StudentID string `json:"student_id"`
	Reason    string `json:"reason"`
}

// SaveResultsResult summarises a bulk grading call. Saved counts the
// rows written; Errors holds the entries that were skipped.
type SaveResultsResult struct {
	Saved  int           `json:"saved"`
	Errors []ResultError `json:"errors,omitempty"`
}

// ExamDetail bundles an exam with its grading roster.
type ExamDetail struct {
	models.ExamRecord
	Roster []models.ExamRosterRow `json:"roster"`
}

// ResultStats summarises a student's results.
type ResultStats struct {
	AveragePercent float64                     `json:"average_percent"`
	Passed         int                         `json:"passed"`
	Failed         int                         `json:"failed"`
	BestSubject    string                      `json:"best_subject"`
	Subjects       []models.SubjectPerformance `json:"subjects"`
}

// ExamService handles exams, results and their aggregates.
type ExamService struct {
	repo      examRepository
	groups    examGroupRepository
	students  examStudentRepository
	validator *validator.Validate
	logger    *zap.Logger
}

// NewExamService creates an instance of ExamService.
func NewExamService(repo examRepository, groups examGroupRepository, students examStudentRepository, validate *validator.Validate, logger *zap.Logger) *ExamService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &ExamService{repo: repo, groups: groups, students: students, validator: validate, logger: logger}
}

// List returns paginated exams. Teachers see exams of their groups only.
func (s *ExamService) List(ctx context.Context, scope models.Scope, filter models.ExamFilter) ([]models.ExamRecord, *models.Pagination, error) {
	if scope.Role == models.RoleTeacher {
		filter.TeacherID = scope.TeacherID
	}
	rows, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list exams")
	}
	return rows, paginationFor(filter.Page, filter.PageSize, total), nil
}

// Get returns a single exam with its grading roster.
func (s *ExamService) Get(ctx context.Context, scope models.Scope, id string) (*ExamDetail, error) {
	record, err := s.loadScoped(ctx, scope, id)
	if err != nil {
		return nil, err
	}
	roster, err := s.repo.Roster(ctx, id)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load exam roster")
	}
	return &ExamDetail{ExamRecord: *record, Roster: roster}, nil
}

// Create schedules an exam. Teachers may only schedule for their own
// groups.
func (s *ExamService) Create(ctx context.Context, scope models.Scope, req CreateExamRequest) (*models.ExamRecord, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid create exam payload")
	}
	date, err := time.Parse("2006-01-02", req.Date)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "date must be formatted as YYYY-MM-DD")
	}

	group, err := s.groups.FindByID(ctx, req.GroupID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "group not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load group")
	}
	if scope.Role == models.RoleTeacher && group.TeacherID != scope.TeacherID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "cannot schedule an exam for another teacher's group")
	}

	exam := &models.Exam{
		Name:      req.Name,
		SubjectID: req.SubjectID,
		GroupID:   req.GroupID,
		Date:      date,
		MaxScore:  req.MaxScore,
	}
	if err := s.repo.Create(ctx, exam); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create exam")
	}
	return s.fetch(ctx, exam.ID)
}

// Update edits an exam. Teachers may only edit exams of their groups.
func (s *ExamService) Update(ctx context.Context, scope models.Scope, id string, req UpdateExamRequest) (*models.ExamRecord, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid update exam payload")
	}
	record, err := s.loadScoped(ctx, scope, id)
	if err != nil {
		return nil, err
	}
	date, err := time.Parse("2006-01-02", req.Date)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "date must be formatted as YYYY-MM-DD")
	}
	if req.GroupID != record.GroupID {
		group, err := s.groups.FindByID(ctx, req.GroupID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil, appErrors.Clone(appErrors.ErrNotFound, "group not found")
			}
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load group")
		}
		if scope.Role == models.RoleTeacher && group.TeacherID != scope.TeacherID {
			return nil, appErrors.Clone(appErrors.ErrForbidden, "cannot move an exam to another teacher's group")
		}
	}

	exam := record.Exam
	exam.Name = req.Name
	exam.SubjectID = req.SubjectID
	exam.GroupID = req.GroupID
	exam.Date = date
	exam.MaxScore = req.MaxScore
	if err := s.repo.Update(ctx, &exam); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update exam")
	}
	return s.fetch(ctx, id)
}

// Delete removes an exam and its results.
func (s *ExamService) Delete(ctx context.Context, scope models.Scope, id string) error {
	if _, err := s.loadScoped(ctx, scope, id); err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete exam")
	}
	return nil
}

// SaveResults upserts scores for an exam. Entries with an invalid score
// or a student outside the group are skipped and reported; valid
// entries are still written.
func (s *ExamService) SaveResults(ctx context.Context, scope models.Scope, examID string, req SaveResultsRequest) (*SaveResultsResult, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid save results payload")
	}
	exam, err := s.loadScoped(ctx, scope, examID)
	if err != nil {
		return nil, err
	}

	out := &SaveResultsResult{}
	for _, entry := range req.Results {
		if entry.Score < 0 || entry.Score > exam.MaxScore {
			out.Errors = append(out.Errors, ResultError{StudentID: entry.StudentID, Reason: fmt.Sprintf("score must be between 0 and %g", exam.MaxScore)})
			continue
		}
		member, err := s.groups.IsMember(ctx, exam.GroupID, entry.StudentID)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check group membership")
		}
		if !member {
			out.Errors = append(out.Errors, ResultError{StudentID: entry.StudentID, Reason: "student is not a member of the exam group"})
			continue
		}
		result := &models.Result{ExamID: examID, StudentID: entry.StudentID, Score: entry.Score}
		if entry.Remarks != "" {
			remarks := entry.Remarks
			result.Remarks = &remarks
		}
		if _, err := s.repo.UpsertResult(ctx, result); err != nil {
			s.logger.Sugar().Errorw("failed to save result", "exam_id", examID, "student_id", entry.StudentID, "error", err)
			out.Errors = append(out.Errors, ResultError{StudentID: entry.StudentID, Reason: "failed to save result"})
			continue
		}
		out.Saved++
	}
	return out, nil
}

// DeleteResult removes a single student's result from an exam.
func (s *ExamService) DeleteResult(ctx context.Context, scope models.Scope, examID, studentID string) error {
	if _, err := s.loadScoped(ctx, scope, examID); err != nil {
		return err
	}
	if err := s.repo.DeleteResult(ctx, examID, studentID); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete result")
	}
	return nil
}

// ListResults returns paginated result rows. Students only see their
// own results; parents their children's.
func (s *ExamService) ListResults(ctx context.Context, scope models.Scope, filter models.ResultFilter) ([]models.ResultRecord, *models.Pagination, error) {
	switch scope.Role {
	case models.RoleStudent:
		if filter.StudentID != "" && filter.StudentID != scope.StudentID {
			return nil, nil, appErrors.Clone(appErrors.ErrForbidden, "cannot access another student's results")
		}
		filter.StudentID = scope.StudentID
	case models.RoleParent:
		children, err := s.students.ChildrenOfParent(ctx, scope.ParentID)
		if err != nil {
			return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load children")
		}
		if filter.StudentID != "" {
			if !containsString(children, filter.StudentID) {
				return nil, nil, appErrors.Clone(appErrors.ErrForbidden, "cannot access results of a foreign student")
			}
		} else if len(children) == 0 {
			// No linked children, match nothing.
			filter.StudentID = scope.ParentID
		} else {
			filter.StudentIDs = children
		}
	}
	rows, total, err := s.repo.ListResults(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list results")
	}
	return rows, paginationFor(filter.Page, filter.PageSize, total), nil
}

// ResultStats aggregates a student's results: average percentage, pass
// and fail counts at the 50 percent threshold, and the subject with the
// highest average. Ties on the average break to the lexicographically
// smaller subject name.
func (s *ExamService) ResultStats(ctx context.Context, scope models.Scope, studentID string) (*ResultStats, error) {
	switch scope.Role {
	case models.RoleStudent:
		if studentID != "" && studentID != scope.StudentID {
			return nil, appErrors.Clone(appErrors.ErrForbidden, "cannot access another student's results")
		}
		studentID = scope.StudentID
	case models.RoleParent:
		if studentID != "" {
			children, err := s.students.ChildrenOfParent(ctx, scope.ParentID)
			if err != nil {
				return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load children")
			}
			if !containsString(children, studentID) {
				return nil, appErrors.Clone(appErrors.ErrForbidden, "cannot access results of a foreign student")
			}
		}
	}
	if studentID == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "student id is required")
	}

	subjects, err := s.repo.SubjectPerformance(ctx, studentID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load subject performance")
	}
	passed, failed, err := s.repo.PassFailCounts(ctx, studentID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load pass counts")
	}

	stats := &ResultStats{Passed: passed, Failed: failed, Subjects: subjects}
	var weighted, bestAvg float64
	var count int
	// Subjects arrive sorted by name, so the strict comparison keeps the
	// lexicographically smaller name on ties.
	for i := range subjects {
		subjects[i].Color = dto.SubjectColor(subjects[i].SubjectName)
		weighted += subjects[i].AveragePercent * float64(subjects[i].ResultCount)
		count += subjects[i].ResultCount
		if stats.BestSubject == "" || subjects[i].AveragePercent > bestAvg {
			stats.BestSubject = subjects[i].SubjectName
			bestAvg = subjects[i].AveragePercent
		}
	}
	if count > 0 {
		stats.AveragePercent = weighted / float64(count)
	}
	return stats, nil
}

func (s *ExamService) fetch(ctx context.Context, id string) (*models.ExamRecord, error) {
	record, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load exam")
	}
	return record, nil
}

func (s *ExamService) loadScoped(ctx context.Context, scope models.Scope, id string) (*models.ExamRecord, error) {
	record, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "exam not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load exam")
	}
	if scope.Role == models.RoleTeacher {
		group, err := s.groups.FindByID(ctx, record.GroupID)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load group")
		}
		if group.TeacherID != scope.TeacherID {
			return nil, appErrors.Clone(appErrors.ErrForbidden, "cannot access another teacher's exam")
		}
	}
	return record, nil
}
