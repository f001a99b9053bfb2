package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/Azizbek961/crm-edu-crm/internal/models"
	appErrors "github.com/Azizbek961/crm-edu-crm/pkg/errors"
)

type studentRepository interface {
	List(ctx context.Context, filter models.StudentFilter) ([]models.StudentDetail, int, error)
	FindByID(ctx context.Context, id string) (*models.StudentDetail, error)
	CreateWithUser(ctx context.Context, user *models.User, student *models.Student) error
	Update(ctx context.Context, student *models.Student) error
	Groups(ctx context.Context, studentID string) ([]models.GroupRecord, error)
	ChildrenOfParent(ctx context.Context, parentID string) ([]string, error)
	Stats(ctx context.Context) (*models.StudentStats, error)
}

type studentUserRepository interface {
	FindByID(ctx context.Context, id string) (*models.User, error)
	FindByUsername(ctx context.Context, username string) (*models.User, error)
	Update(ctx context.Context, user *models.User) error
	Delete(ctx context.Context, id string) error
}

// CreateStudentRequest payload for creating a student with their account.
type CreateStudentRequest struct {
	Username       string `json:"username" validate:"required,min=3"`
	Email          string `json:"email" validate:"required,email"`
	Password       string `json:"password" validate:"required,min=6"`
	FirstName      string `json:"first_name" validate:"required"`
	LastName       string `json:"last_name" validate:"required"`
	Phone          string `json:"phone"`
	Address        string `json:"address"`
	EnrollmentDate string `json:"enrollment_date"`
	BirthDate      string `json:"birth_date"`
}

// UpdateStudentRequest payload for updating a student profile.
type UpdateStudentRequest struct {
	Email          string `json:"email" validate:"required,email"`
	FirstName      string `json:"first_name" validate:"required"`
	LastName       string `json:"last_name" validate:"required"`
	Phone          string `json:"phone"`
	Address        string `json:"address"`
	EnrollmentDate string `json:"enrollment_date"`
	BirthDate      string `json:"birth_date"`
	Active         *bool  `json:"active"`
}

// StudentService handles student management workflows.
type StudentService struct {
	repo      studentRepository
	users     studentUserRepository
	validator *validator.Validate
	logger    *zap.Logger
}

// NewStudentService creates an instance of StudentService.
func NewStudentService(repo studentRepository, users studentUserRepository, validate *validator.Validate, logger *zap.Logger) *StudentService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &StudentService{repo: repo, users: users, validator: validate, logger: logger}
}

// List returns paginated students.
func (s *StudentService) List(ctx context.Context, filter models.StudentFilter) ([]models.StudentDetail, *models.Pagination, error) {
	students, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list students")
	}
	return students, paginationFor(filter.Page, filter.PageSize, total), nil
}

// Get returns a student by ID. Students may only read their own
// profile, parents the profiles of their children.
func (s *StudentService) Get(ctx context.Context, scope models.Scope, id string) (*models.StudentDetail, error) {
	if err := s.checkRowAccess(ctx, scope, id); err != nil {
		return nil, err
	}
	student, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}
	return student, nil
}

// Groups returns the groups a student belongs to, honouring scope.
func (s *StudentService) Groups(ctx context.Context, scope models.Scope, id string) ([]models.GroupRecord, error) {
	if err := s.checkRowAccess(ctx, scope, id); err != nil {
		return nil, err
	}
	groups, err := s.repo.Groups(ctx, id)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student groups")
	}
	return groups, nil
}

func (s *StudentService) checkRowAccess(ctx context.Context, scope models.Scope, studentID string) error {
	switch scope.Role {
	case models.RoleStudent:
		if scope.StudentID != studentID {
			return appErrors.Clone(appErrors.ErrForbidden, "cannot access another student's profile")
		}
	case models.RoleParent:
		children, err := s.repo.ChildrenOfParent(ctx, scope.ParentID)
		if err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load children")
		}
		if !containsString(children, studentID) {
			return appErrors.Clone(appErrors.ErrForbidden, "cannot access a foreign student's profile")
		}
	}
	return nil
}

// Stats returns enrollment counts.
func (s *StudentService) Stats(ctx context.Context) (*models.StudentStats, error) {
	stats, err := s.repo.Stats(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student stats")
	}
	return stats, nil
}

// Create provisions the account and the student profile in one
// transaction.
func (s *StudentService) Create(ctx context.Context, req CreateStudentRequest) (*models.StudentDetail, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid create student payload")
	}

	if _, err := s.users.FindByUsername(ctx, req.Username); err == nil {
		return nil, appErrors.Clone(appErrors.ErrConflict, "username already exists")
	} else if !errors.Is(err, sql.ErrNoRows) {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check username uniqueness")
	}

	passwordHash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to hash password")
	}

	enrollmentDate, err := parseOptionalDate(req.EnrollmentDate)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "enrollment_date must be formatted as YYYY-MM-DD")
	}
	birthDate, err := parseOptionalDate(req.BirthDate)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "birth_date must be formatted as YYYY-MM-DD")
	}

	user := &models.User{
		Username:     strings.ToLower(req.Username),
		Email:        strings.ToLower(req.Email),
		FirstName:    req.FirstName,
		LastName:     req.LastName,
		Role:         models.RoleStudent,
		Phone:        req.Phone,
		Address:      req.Address,
		Active:       true,
		PasswordHash: string(passwordHash),
	}
	student := &models.Student{BirthDate: birthDate}
	if enrollmentDate != nil {
		student.EnrollmentDate = *enrollmentDate
	}

	if err := s.repo.CreateWithUser(ctx, user, student); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create student")
	}

	return s.repo.FindByID(ctx, student.ID)
}

// Update modifies the student profile and account columns.
func (s *StudentService) Update(ctx context.Context, id string, req UpdateStudentRequest) (*models.StudentDetail, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid update student payload")
	}

	detail, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}

	user, err := s.users.FindByID(ctx, detail.UserID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student account")
	}
	user.Email = strings.ToLower(req.Email)
	user.FirstName = req.FirstName
	user.LastName = req.LastName
	user.Phone = req.Phone
	user.Address = req.Address
	if req.Active != nil {
		user.Active = *req.Active
	}
	if err := s.users.Update(ctx, user); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update student account")
	}

	enrollmentDate, err := parseOptionalDate(req.EnrollmentDate)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "enrollment_date must be formatted as YYYY-MM-DD")
	}
	birthDate, err := parseOptionalDate(req.BirthDate)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "birth_date must be formatted as YYYY-MM-DD")
	}

	student := detail.Student
	if enrollmentDate != nil {
		student.EnrollmentDate = *enrollmentDate
	}
	if birthDate != nil {
		student.BirthDate = birthDate
	}
	if err := s.repo.Update(ctx, &student); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update student")
	}

	return s.repo.FindByID(ctx, id)
}

// Delete deactivates the student account.
func (s *StudentService) Delete(ctx context.Context, id string) error {
	detail, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}
	if err := s.users.Delete(ctx, detail.UserID); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to deactivate student")
	}
	return nil
}
