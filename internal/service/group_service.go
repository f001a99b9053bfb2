package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/Azizbek961/crm-edu-crm/internal/models"
	appErrors "github.com/Azizbek961/crm-edu-crm/pkg/errors"
)

type groupRepository interface {
	List(ctx context.Context, filter models.GroupFilter) ([]models.GroupRecord, int, error)
	FindByID(ctx context.Context, id string) (*models.GroupRecord, error)
	Create(ctx context.Context, group *models.Group) error
	Update(ctx context.Context, group *models.Group) error
	Delete(ctx context.Context, id string) error
	Members(ctx context.Context, groupID string) ([]models.GroupMemberRecord, error)
	AddMember(ctx context.Context, membership *models.GroupMembership) error
	RemoveMember(ctx context.Context, groupID, studentID string) error
	AvailableStudents(ctx context.Context, groupID string) ([]models.StudentDetail, error)
	MemberAttendance(ctx context.Context, groupID string) ([]models.GroupMemberAttendance, error)
}

// CreateGroupRequest payload for creating a group.
type CreateGroupRequest struct {
	Name      string          `json:"name" validate:"required"`
	SubjectID string          `json:"subject_id" validate:"required,uuid4"`
	TeacherID string          `json:"teacher_id" validate:"required,uuid4"`
	Schedule  json.RawMessage `json:"schedule"`
	Status    string          `json:"status" validate:"omitempty,oneof=active inactive completed hold"`
}

// UpdateGroupRequest payload for updating a group.
type UpdateGroupRequest struct {
	Name      string          `json:"name" validate:"required"`
	SubjectID string          `json:"subject_id" validate:"required,uuid4"`
	TeacherID string          `json:"teacher_id" validate:"required,uuid4"`
	Schedule  json.RawMessage `json:"schedule"`
	Status    string          `json:"status" validate:"required,oneof=active inactive completed hold"`
}

// GroupMemberView pairs a member row with their attendance rate.
type GroupMemberView struct {
	models.GroupMemberRecord
	AttendanceRate float64 `json:"attendance_rate"`
}

// GroupDetail is the full group view with members and their rates.
type GroupDetail struct {
	models.GroupRecord
	Members []GroupMemberView `json:"members"`
}

// GroupService handles group management workflows.
type GroupService struct {
	repo      groupRepository
	validator *validator.Validate
	logger    *zap.Logger
}

// NewGroupService creates an instance of GroupService.
func NewGroupService(repo groupRepository, validate *validator.Validate, logger *zap.Logger) *GroupService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &GroupService{repo: repo, validator: validate, logger: logger}
}

// List returns paginated groups. Teacher scopes are pinned to their own
// groups.
func (s *GroupService) List(ctx context.Context, scope models.Scope, filter models.GroupFilter) ([]models.GroupRecord, *models.Pagination, error) {
	if scope.Role == models.RoleTeacher {
		filter.TeacherID = scope.TeacherID
	}
	groups, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list groups")
	}
	return groups, paginationFor(filter.Page, filter.PageSize, total), nil
}

// Get returns a group by ID, honouring the teacher scope.
func (s *GroupService) Get(ctx context.Context, scope models.Scope, id string) (*models.GroupRecord, error) {
	group, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "group not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load group")
	}
	if scope.Role == models.RoleTeacher && group.TeacherID != scope.TeacherID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "cannot access another teacher's group")
	}
	return group, nil
}

// Detail returns the group with its members and per-member attendance
// rates. Late marks count as half a presence.
func (s *GroupService) Detail(ctx context.Context, scope models.Scope, id string) (*GroupDetail, error) {
	group, err := s.Get(ctx, scope, id)
	if err != nil {
		return nil, err
	}

	members, err := s.repo.Members(ctx, id)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load group members")
	}
	attendance, err := s.repo.MemberAttendance(ctx, id)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load member attendance")
	}
	rates := make(map[string]float64, len(attendance))
	for _, row := range attendance {
		rates[row.StudentID] = row.Rate
	}

	detail := &GroupDetail{GroupRecord: *group, Members: make([]GroupMemberView, 0, len(members))}
	for _, member := range members {
		detail.Members = append(detail.Members, GroupMemberView{
			GroupMemberRecord: member,
			AttendanceRate:    rates[member.StudentID],
		})
	}
	return detail, nil
}

// Create adds a new group.
func (s *GroupService) Create(ctx context.Context, req CreateGroupRequest) (*models.GroupRecord, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid create group payload")
	}

	group := &models.Group{
		Name:      req.Name,
		SubjectID: req.SubjectID,
		TeacherID: req.TeacherID,
		Schedule:  req.Schedule,
		Status:    models.GroupStatus(req.Status),
	}
	if err := s.repo.Create(ctx, group); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create group")
	}
	return s.repo.FindByID(ctx, group.ID)
}

// Update modifies a group.
func (s *GroupService) Update(ctx context.Context, id string, req UpdateGroupRequest) (*models.GroupRecord, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid update group payload")
	}

	record, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "group not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load group")
	}

	group := record.Group
	group.Name = req.Name
	group.SubjectID = req.SubjectID
	group.TeacherID = req.TeacherID
	group.Schedule = req.Schedule
	group.Status = models.GroupStatus(req.Status)
	if err := s.repo.Update(ctx, &group); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update group")
	}
	return s.repo.FindByID(ctx, id)
}

// Delete removes a group.
func (s *GroupService) Delete(ctx context.Context, id string) error {
	if _, err := s.repo.FindByID(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "group not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load group")
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete group")
	}
	return nil
}

// AddStudent enrolls a student into the group.
func (s *GroupService) AddStudent(ctx context.Context, groupID, studentID string) (*models.GroupMembership, error) {
	if _, err := s.repo.FindByID(ctx, groupID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "group not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load group")
	}

	membership := &models.GroupMembership{StudentID: studentID, GroupID: groupID}
	if err := s.repo.AddMember(ctx, membership); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrConflict, "student is already a member of this group")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to add student to group")
	}
	return membership, nil
}

// RemoveStudent removes a student from the group.
func (s *GroupService) RemoveStudent(ctx context.Context, groupID, studentID string) error {
	if err := s.repo.RemoveMember(ctx, groupID, studentID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "membership not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to remove student from group")
	}
	return nil
}

// AvailableStudents lists active students not yet in the group.
func (s *GroupService) AvailableStudents(ctx context.Context, groupID string) ([]models.StudentDetail, error) {
	if _, err := s.repo.FindByID(ctx, groupID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "group not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load group")
	}
	students, err := s.repo.AvailableStudents(ctx, groupID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load available students")
	}
	return students, nil
}
