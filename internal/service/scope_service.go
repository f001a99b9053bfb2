package service

import (
	"context"
	"database/sql"
	"errors"

	"github.com/Azizbek961/crm-edu-crm/internal/models"
	appErrors "github.com/Azizbek961/crm-edu-crm/pkg/errors"
)

type scopeTeacherRepository interface {
	FindByUserID(ctx context.Context, userID string) (*models.Teacher, error)
}

type scopeStudentRepository interface {
	FindByUserID(ctx context.Context, userID string) (*models.Student, error)
	ParentByUserID(ctx context.Context, userID string) (*models.Parent, error)
}

// ScopeService resolves JWT claims into a data access scope by looking
// up the role profile behind the account.
type ScopeService struct {
	teachers scopeTeacherRepository
	students scopeStudentRepository
}

// NewScopeService creates an instance of ScopeService.
func NewScopeService(teachers scopeTeacherRepository, students scopeStudentRepository) *ScopeService {
	return &ScopeService{teachers: teachers, students: students}
}

// Resolve builds the scope for the authenticated user. Accounts whose
// role profile is missing are rejected.
func (s *ScopeService) Resolve(ctx context.Context, claims *models.JWTClaims) (models.Scope, error) {
	scope := models.Scope{Role: claims.Role, UserID: claims.UserID}
	switch claims.Role {
	case models.RoleTeacher:
		teacher, err := s.teachers.FindByUserID(ctx, claims.UserID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return scope, appErrors.Clone(appErrors.ErrForbidden, "teacher profile not found")
			}
			return scope, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to resolve teacher profile")
		}
		scope.TeacherID = teacher.ID
	case models.RoleStudent:
		student, err := s.students.FindByUserID(ctx, claims.UserID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return scope, appErrors.Clone(appErrors.ErrForbidden, "student profile not found")
			}
			return scope, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to resolve student profile")
		}
		scope.StudentID = student.ID
	case models.RoleParent:
		parent, err := s.students.ParentByUserID(ctx, claims.UserID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return scope, appErrors.Clone(appErrors.ErrForbidden, "parent profile not found")
			}
			return scope, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to resolve parent profile")
		}
		scope.ParentID = parent.ID
	}
	return scope, nil
}
