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

type homeworkRepository interface {
	List(ctx context.Context, filter models.HomeworkFilter) ([]models.HomeworkRecord, int, error)
	FindByID(ctx context.Context, id string) (*models.HomeworkRecord, error)
	Create(ctx context.Context, hw *models.Homework) error
	Update(ctx context.Context, hw *models.Homework) error
	Delete(ctx context.Context, id string) error
	Counts(ctx context.Context, filter models.HomeworkFilter) (*models.HomeworkCounts, error)
}

type homeworkGroupRepository interface {
	FindByID(ctx context.Context, id string) (*models.GroupRecord, error)
	GroupsOfStudent(ctx context.Context, studentID string) ([]string, error)
}

type homeworkStudentRepository interface {
	ChildrenOfParent(ctx context.Context, parentID string) ([]string, error)
}

// CreateHomeworkRequest payload for assigning homework to a group.
type CreateHomeworkRequest struct {
	Title       string `json:"title" validate:"required"`
	SubjectID   string `json:"subject_id" validate:"required,uuid4"`
	AssignedTo  string `json:"assigned_to" validate:"required,uuid4"`
	DueDate     string `json:"due_date" validate:"required"`
	Description string `json:"description"`
}

// UpdateHomeworkRequest payload for editing an assignment.
type UpdateHomeworkRequest struct {
	Title       string `json:"title" validate:"required"`
	SubjectID   string `json:"subject_id" validate:"required,uuid4"`
	AssignedTo  string `json:"assigned_to" validate:"required,uuid4"`
	DueDate     string `json:"due_date" validate:"required"`
	Description string `json:"description"`
}

// HomeworkList bundles the page with derived status counts.
type HomeworkList struct {
	Items  []models.HomeworkRecord `json:"items"`
	Counts models.HomeworkCounts   `json:"counts"`
}

// HomeworkService handles homework workflows.
type HomeworkService struct {
	repo      homeworkRepository
	groups    homeworkGroupRepository
	students  homeworkStudentRepository
	validator *validator.Validate
	logger    *zap.Logger
}

// NewHomeworkService creates an instance of HomeworkService.
func NewHomeworkService(repo homeworkRepository, groups homeworkGroupRepository, students homeworkStudentRepository, validate *validator.Validate, logger *zap.Logger) *HomeworkService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &HomeworkService{repo: repo, groups: groups, students: students, validator: validate, logger: logger}
}

// List returns paginated assignments with derived statuses and counts.
// Teachers see their own assignments; students see assignments of
// their groups, parents those of their children's groups.
func (s *HomeworkService) List(ctx context.Context, scope models.Scope, filter models.HomeworkFilter) (*HomeworkList, *models.Pagination, error) {
	switch scope.Role {
	case models.RoleTeacher:
		filter.TeacherID = scope.TeacherID
	case models.RoleStudent, models.RoleParent:
		groupIDs, err := s.visibleGroups(ctx, scope)
		if err != nil {
			return nil, nil, err
		}
		if len(groupIDs) == 0 {
			return &HomeworkList{Items: []models.HomeworkRecord{}}, paginationFor(filter.Page, filter.PageSize, 0), nil
		}
		if filter.GroupID != "" && !containsString(groupIDs, filter.GroupID) {
			return nil, nil, appErrors.Clone(appErrors.ErrForbidden, "cannot access homework of a foreign group")
		}
		if filter.GroupID == "" {
			filter.GroupIDs = groupIDs
		}
	}

	items, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list homework")
	}
	for i := range items {
		items[i].Status = deriveHomeworkStatus(items[i].DueDate, time.Now().UTC())
	}

	counts, err := s.repo.Counts(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count homework")
	}

	return &HomeworkList{Items: items, Counts: *counts}, paginationFor(filter.Page, filter.PageSize, total), nil
}

// Get returns a single assignment with its derived status.
func (s *HomeworkService) Get(ctx context.Context, scope models.Scope, id string) (*models.HomeworkRecord, error) {
	record, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "homework not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load homework")
	}
	if scope.Role == models.RoleTeacher && record.AssignedBy != scope.TeacherID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "cannot access another teacher's homework")
	}
	if scope.Role == models.RoleParent {
		groupIDs, err := s.visibleGroups(ctx, scope)
		if err != nil {
			return nil, err
		}
		if !containsString(groupIDs, record.AssignedTo) {
			return nil, appErrors.Clone(appErrors.ErrForbidden, "cannot access homework of a foreign group")
		}
	}
	record.Status = deriveHomeworkStatus(record.DueDate, time.Now().UTC())
	return record, nil
}

// visibleGroups resolves the group ids a student or parent scope may
// read: the student's own groups, or the union over a parent's
// children.
func (s *HomeworkService) visibleGroups(ctx context.Context, scope models.Scope) ([]string, error) {
	if scope.Role == models.RoleStudent {
		groupIDs, err := s.groups.GroupsOfStudent(ctx, scope.StudentID)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student groups")
		}
		return groupIDs, nil
	}
	children, err := s.students.ChildrenOfParent(ctx, scope.ParentID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load children")
	}
	seen := make(map[string]bool)
	groupIDs := make([]string, 0)
	for _, child := range children {
		ids, err := s.groups.GroupsOfStudent(ctx, child)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student groups")
		}
		for _, id := range ids {
			if !seen[id] {
				seen[id] = true
				groupIDs = append(groupIDs, id)
			}
		}
	}
	return groupIDs, nil
}

// Create assigns homework. Teachers may only assign to their own groups.
func (s *HomeworkService) Create(ctx context.Context, scope models.Scope, req CreateHomeworkRequest) (*models.HomeworkRecord, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid create homework payload")
	}

	dueDate, err := time.Parse("2006-01-02", req.DueDate)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "due_date must be formatted as YYYY-MM-DD")
	}

	group, err := s.groups.FindByID(ctx, req.AssignedTo)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "group not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load group")
	}

	assignedBy := group.TeacherID
	if scope.Role == models.RoleTeacher {
		if group.TeacherID != scope.TeacherID {
			return nil, appErrors.Clone(appErrors.ErrForbidden, "cannot assign homework to another teacher's group")
		}
		assignedBy = scope.TeacherID
	}

	hw := &models.Homework{
		Title:       req.Title,
		SubjectID:   req.SubjectID,
		AssignedBy:  assignedBy,
		AssignedTo:  req.AssignedTo,
		DueDate:     dueDate,
		Description: req.Description,
	}
	if err := s.repo.Create(ctx, hw); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create homework")
	}
	return s.Get(ctx, scope, hw.ID)
}

// Update edits an assignment. Teachers may only edit their own.
func (s *HomeworkService) Update(ctx context.Context, scope models.Scope, id string, req UpdateHomeworkRequest) (*models.HomeworkRecord, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid update homework payload")
	}

	record, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "homework not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load homework")
	}
	if scope.Role == models.RoleTeacher && record.AssignedBy != scope.TeacherID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "cannot edit another teacher's homework")
	}

	dueDate, err := time.Parse("2006-01-02", req.DueDate)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "due_date must be formatted as YYYY-MM-DD")
	}
	if req.AssignedTo != record.AssignedTo {
		group, err := s.groups.FindByID(ctx, req.AssignedTo)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil, appErrors.Clone(appErrors.ErrNotFound, "group not found")
			}
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load group")
		}
		if scope.Role == models.RoleTeacher && group.TeacherID != scope.TeacherID {
			return nil, appErrors.Clone(appErrors.ErrForbidden, "cannot move homework to another teacher's group")
		}
	}

	hw := record.Homework
	hw.Title = req.Title
	hw.SubjectID = req.SubjectID
	hw.AssignedTo = req.AssignedTo
	hw.DueDate = dueDate
	hw.Description = req.Description
	if err := s.repo.Update(ctx, &hw); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update homework")
	}
	return s.Get(ctx, scope, id)
}

// Delete removes an assignment. Teachers may only delete their own.
func (s *HomeworkService) Delete(ctx context.Context, scope models.Scope, id string) error {
	record, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "homework not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load homework")
	}
	if scope.Role == models.RoleTeacher && record.AssignedBy != scope.TeacherID {
		return appErrors.Clone(appErrors.ErrForbidden, "cannot delete another teacher's homework")
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete homework")
	}
	return nil
}

func deriveHomeworkStatus(dueDate, now time.Time) models.HomeworkStatus {
	today := now.Truncate(24 * time.Hour)
	due := dueDate.Truncate(24 * time.Hour)
	switch {
	case due.Before(today):
		return models.HomeworkStatusOverdue
	case due.After(today.AddDate(0, 0, 7)):
		return models.HomeworkStatusUpcoming
	default:
		return models.HomeworkStatusActive
	}
}

func containsString(values []string, target string) bool {
	for _, v := range values {
		if v == target {
			return true
		}
	}
	return false
}
