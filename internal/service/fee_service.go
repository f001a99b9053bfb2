package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/Azizbek961/crm-edu-crm/internal/models"
	appErrors "github.com/Azizbek961/crm-edu-crm/pkg/errors"
)

type feeRepository interface {
	List(ctx context.Context, filter models.FeeFilter) ([]models.FeeRecord, int, error)
	FindByID(ctx context.Context, id string) (*models.FeeRecord, error)
	Create(ctx context.Context, fee *models.Fee) error
	UpdateStatus(ctx context.Context, id string, status models.FeeStatus, paidDate *time.Time) error
	Delete(ctx context.Context, id string) error
	Summary(ctx context.Context, studentIDs []string) (*models.FeeSummary, error)
	MarkOverdue(ctx context.Context, now time.Time) (int64, error)
}

type feeStudentRepository interface {
	ChildrenOfParent(ctx context.Context, parentID string) ([]string, error)
}

// CreateFeeRequest payload for recording a payment obligation.
type CreateFeeRequest struct {
	StudentID string  `json:"student_id" validate:"required,uuid4"`
	Amount    float64 `json:"amount" validate:"required,gt=0"`
	DueDate   string  `json:"due_date" validate:"required"`
}

// UpdateFeeStatusRequest payload for moving a fee between statuses.
type UpdateFeeStatusRequest struct {
	Status models.FeeStatus `json:"status" validate:"required,oneof=paid pending overdue"`
}

// FeeService handles fee workflows.
type FeeService struct {
	repo      feeRepository
	students  feeStudentRepository
	validator *validator.Validate
	logger    *zap.Logger
}

// NewFeeService creates an instance of FeeService.
func NewFeeService(repo feeRepository, students feeStudentRepository, validate *validator.Validate, logger *zap.Logger) *FeeService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &FeeService{repo: repo, students: students, validator: validate, logger: logger}
}

// List returns paginated fees with read-side status bucketing. Students
// see their own rows; parents see their children's.
func (s *FeeService) List(ctx context.Context, scope models.Scope, filter models.FeeFilter) ([]models.FeeRecord, *models.Pagination, error) {
	if err := s.applyScope(ctx, scope, &filter); err != nil {
		return nil, nil, err
	}
	rows, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list fees")
	}
	now := time.Now().UTC()
	for i := range rows {
		rows[i].Status = rows[i].EffectiveStatus(now)
	}
	return rows, paginationFor(filter.Page, filter.PageSize, total), nil
}

// Get returns a single fee with its effective status.
func (s *FeeService) Get(ctx context.Context, scope models.Scope, id string) (*models.FeeRecord, error) {
	record, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "fee not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load fee")
	}
	if err := s.checkRowAccess(ctx, scope, record.StudentID); err != nil {
		return nil, err
	}
	record.Status = record.EffectiveStatus(time.Now().UTC())
	return record, nil
}

// Create records a new fee, pending by default.
func (s *FeeService) Create(ctx context.Context, req CreateFeeRequest) (*models.FeeRecord, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid create fee payload")
	}
	dueDate, err := time.Parse("2006-01-02", req.DueDate)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "due_date must be formatted as YYYY-MM-DD")
	}
	fee := &models.Fee{
		StudentID: req.StudentID,
		Amount:    req.Amount,
		DueDate:   dueDate,
		Status:    models.FeeStatusPending,
	}
	if err := s.repo.Create(ctx, fee); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create fee")
	}
	record, err := s.repo.FindByID(ctx, fee.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load fee")
	}
	return record, nil
}

// UpdateStatus moves a fee between statuses. Marking paid stamps the
// paid date; any other status clears it.
func (s *FeeService) UpdateStatus(ctx context.Context, id string, req UpdateFeeStatusRequest) (*models.FeeRecord, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid update fee status payload")
	}
	var paidDate *time.Time
	if req.Status == models.FeeStatusPaid {
		now := time.Now().UTC()
		paidDate = &now
	}
	if err := s.repo.UpdateStatus(ctx, id, req.Status, paidDate); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "fee not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update fee status")
	}
	record, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load fee")
	}
	return record, nil
}

// Delete removes a fee.
func (s *FeeService) Delete(ctx context.Context, id string) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "fee not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete fee")
	}
	return nil
}

// Summary aggregates fee amounts and counts by effective status within
// the caller's scope.
func (s *FeeService) Summary(ctx context.Context, scope models.Scope) (*models.FeeSummary, error) {
	var studentIDs []string
	switch scope.Role {
	case models.RoleStudent:
		studentIDs = []string{scope.StudentID}
	case models.RoleParent:
		children, err := s.students.ChildrenOfParent(ctx, scope.ParentID)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load children")
		}
		if len(children) == 0 {
			return &models.FeeSummary{}, nil
		}
		studentIDs = children
	}
	summary, err := s.repo.Summary(ctx, studentIDs)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load fee summary")
	}
	return summary, nil
}

// SweepOverdue promotes pending fees past their due date to overdue.
// Runs from the background queue.
func (s *FeeService) SweepOverdue(ctx context.Context) error {
	affected, err := s.repo.MarkOverdue(ctx, time.Now().UTC())
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to sweep overdue fees")
	}
	if affected > 0 {
		s.logger.Sugar().Infow("marked fees overdue", "count", affected)
	}
	return nil
}

func (s *FeeService) applyScope(ctx context.Context, scope models.Scope, filter *models.FeeFilter) error {
	switch scope.Role {
	case models.RoleStudent:
		if filter.StudentID != "" && filter.StudentID != scope.StudentID {
			return appErrors.Clone(appErrors.ErrForbidden, "cannot access another student's fees")
		}
		filter.StudentID = scope.StudentID
	case models.RoleParent:
		children, err := s.students.ChildrenOfParent(ctx, scope.ParentID)
		if err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load children")
		}
		if filter.StudentID != "" {
			if !containsString(children, filter.StudentID) {
				return appErrors.Clone(appErrors.ErrForbidden, "cannot access fees of a foreign student")
			}
			return nil
		}
		if len(children) == 0 {
			// No linked children, match nothing.
			filter.StudentID = scope.ParentID
			return nil
		}
		filter.StudentIDs = children
	}
	return nil
}

func (s *FeeService) checkRowAccess(ctx context.Context, scope models.Scope, studentID string) error {
	switch scope.Role {
	case models.RoleStudent:
		if studentID != scope.StudentID {
			return appErrors.Clone(appErrors.ErrForbidden, "cannot access another student's fees")
		}
	case models.RoleParent:
		children, err := s.students.ChildrenOfParent(ctx, scope.ParentID)
		if err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load children")
		}
		if !containsString(children, studentID) {
			return appErrors.Clone(appErrors.ErrForbidden, "cannot access fees of a foreign student")
		}
	}
	return nil
}
