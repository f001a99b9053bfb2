package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/Azizbek961/crm-edu-crm/internal/models"
)

const groupSelectColumns = `g.id, g.name, g.subject_id, g.teacher_id, g.schedule, g.status, g.created_at, g.updated_at,
	sub.name AS subject_name, sub.code AS subject_code,
	tu.first_name || ' ' || tu.last_name AS teacher_name,
	(SELECT COUNT(*) FROM group_memberships m WHERE m.group_id = g.id) AS student_count`

const groupJoins = `FROM groups g
JOIN subjects sub ON sub.id = g.subject_id
JOIN teachers t ON t.id = g.teacher_id
JOIN users tu ON tu.id = t.user_id`

// GroupRepository handles persistence for study groups and memberships.
type GroupRepository struct {
	db *sqlx.DB
}

// NewGroupRepository constructs the repository.
func NewGroupRepository(db *sqlx.DB) *GroupRepository {
	return &GroupRepository{db: db}
}

// FindByID returns a group with joined display columns.
func (r *GroupRepository) FindByID(ctx context.Context, id string) (*models.GroupRecord, error) {
	query := fmt.Sprintf(`SELECT %s %s WHERE g.id = $1 LIMIT 1`, groupSelectColumns, groupJoins)
	var record models.GroupRecord
	if err := r.db.GetContext(ctx, &record, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find group by id: %w", err)
	}
	return &record, nil
}

// List returns groups matching the provided filter.
func (r *GroupRepository) List(ctx context.Context, filter models.GroupFilter) ([]models.GroupRecord, int, error) {
	where := []string{"1=1"}
	args := []interface{}{}
	if filter.Status != nil && filter.Status.Valid() {
		where = append(where, fmt.Sprintf("g.status = $%d", len(args)+1))
		args = append(args, *filter.Status)
	}
	if filter.SubjectID != "" {
		where = append(where, fmt.Sprintf("g.subject_id = $%d", len(args)+1))
		args = append(args, filter.SubjectID)
	}
	if filter.TeacherID != "" {
		where = append(where, fmt.Sprintf("g.teacher_id = $%d", len(args)+1))
		args = append(args, filter.TeacherID)
	}
	if filter.Search != "" {
		where = append(where, fmt.Sprintf("LOWER(g.name) LIKE $%d", len(args)+1))
		args = append(args, "%"+strings.ToLower(filter.Search)+"%")
	}
	whereClause := strings.Join(where, " AND ")

	sortBy := filter.SortBy
	allowedSort := map[string]string{
		"name":       "g.name",
		"status":     "g.status",
		"created_at": "g.created_at",
		"subject":    "sub.name",
	}
	sortColumn, ok := allowedSort[sortBy]
	if !ok {
		sortColumn = "g.name"
	}
	order := strings.ToUpper(filter.SortOrder)
	if order != "ASC" && order != "DESC" {
		order = "ASC"
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 20
	}
	offset := (page - 1) * size

	query := fmt.Sprintf(`SELECT %s %s WHERE %s ORDER BY %s %s LIMIT %d OFFSET %d`,
		groupSelectColumns, groupJoins, whereClause, sortColumn, order, size, offset)

	var rows []models.GroupRecord
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list groups: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s WHERE %s", groupJoins, whereClause)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count groups: %w", err)
	}
	return rows, total, nil
}

// Create inserts a new group.
func (r *GroupRepository) Create(ctx context.Context, group *models.Group) error {
	if group.ID == "" {
		group.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	group.CreatedAt = now
	group.UpdatedAt = now
	if group.Status == "" {
		group.Status = models.GroupStatusActive
	}
	const query = `INSERT INTO groups (id, name, subject_id, teacher_id, schedule, status, created_at, updated_at) VALUES (:id, :name, :subject_id, :teacher_id, :schedule, :status, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, group); err != nil {
		return fmt.Errorf("create group: %w", err)
	}
	return nil
}

// Update updates mutable fields of a group.
func (r *GroupRepository) Update(ctx context.Context, group *models.Group) error {
	group.UpdatedAt = time.Now().UTC()
	const query = `UPDATE groups SET name = :name, subject_id = :subject_id, teacher_id = :teacher_id, schedule = :schedule, status = :status, updated_at = :updated_at WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, group); err != nil {
		return fmt.Errorf("update group: %w", err)
	}
	return nil
}

// Delete removes a group.
func (r *GroupRepository) Delete(ctx context.Context, id string) error {
	const query = `DELETE FROM groups WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id); err != nil {
		return fmt.Errorf("delete group: %w", err)
	}
	return nil
}

// Members returns the membership rows of a group with student metadata.
func (r *GroupRepository) Members(ctx context.Context, groupID string) ([]models.GroupMemberRecord, error) {
	const query = `SELECT gm.id, gm.student_id, gm.group_id, gm.joined_date,
		u.first_name || ' ' || u.last_name AS student_name, u.username, u.email, u.phone
	FROM group_memberships gm
	JOIN students s ON s.id = gm.student_id
	JOIN users u ON u.id = s.user_id
	WHERE gm.group_id = $1
	ORDER BY u.last_name ASC, u.first_name ASC`
	var rows []models.GroupMemberRecord
	if err := r.db.SelectContext(ctx, &rows, query, groupID); err != nil {
		return nil, fmt.Errorf("group members: %w", err)
	}
	return rows, nil
}

// AddMember enrolls a student into a group. Returns sql.ErrNoRows when
// the membership already exists.
func (r *GroupRepository) AddMember(ctx context.Context, membership *models.GroupMembership) error {
	if membership.ID == "" {
		membership.ID = uuid.NewString()
	}
	if membership.JoinedDate.IsZero() {
		membership.JoinedDate = time.Now().UTC()
	}
	const query = `INSERT INTO group_memberships (id, student_id, group_id, joined_date)
VALUES ($1, $2, $3, $4)
ON CONFLICT (student_id, group_id) DO NOTHING
RETURNING id`
	var insertedID string
	if err := r.db.QueryRowxContext(ctx, query, membership.ID, membership.StudentID, membership.GroupID, membership.JoinedDate).Scan(&insertedID); err != nil {
		if err == sql.ErrNoRows {
			return err
		}
		return fmt.Errorf("add group member: %w", err)
	}
	return nil
}

// RemoveMember removes a student from a group.
func (r *GroupRepository) RemoveMember(ctx context.Context, groupID, studentID string) error {
	const query = `DELETE FROM group_memberships WHERE group_id = $1 AND student_id = $2`
	res, err := r.db.ExecContext(ctx, query, groupID, studentID)
	if err != nil {
		return fmt.Errorf("remove group member: %w", err)
	}
	if affected, err := res.RowsAffected(); err == nil && affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// IsMember reports whether the student belongs to the group.
func (r *GroupRepository) IsMember(ctx context.Context, groupID, studentID string) (bool, error) {
	const query = `SELECT EXISTS (SELECT 1 FROM group_memberships WHERE group_id = $1 AND student_id = $2)`
	var exists bool
	if err := r.db.GetContext(ctx, &exists, query, groupID, studentID); err != nil {
		return false, fmt.Errorf("check group membership: %w", err)
	}
	return exists, nil
}

// AvailableStudents returns active students not yet enrolled in the group.
func (r *GroupRepository) AvailableStudents(ctx context.Context, groupID string) ([]models.StudentDetail, error) {
	const query = `SELECT s.id, s.user_id, s.enrollment_date, s.birth_date, s.created_at, s.updated_at,
		u.username, u.email, u.first_name, u.last_name, u.phone, u.active
	FROM students s
	JOIN users u ON u.id = s.user_id
	WHERE u.active
	  AND NOT EXISTS (SELECT 1 FROM group_memberships gm WHERE gm.student_id = s.id AND gm.group_id = $1)
	ORDER BY u.last_name ASC, u.first_name ASC`
	var rows []models.StudentDetail
	if err := r.db.SelectContext(ctx, &rows, query, groupID); err != nil {
		return nil, fmt.Errorf("available students: %w", err)
	}
	return rows, nil
}

// MemberAttendance aggregates per-member attendance counts for a group.
func (r *GroupRepository) MemberAttendance(ctx context.Context, groupID string) ([]models.GroupMemberAttendance, error) {
	const query = `SELECT gm.student_id,
		COUNT(a.id) FILTER (WHERE a.status = 'present') AS present_count,
		COUNT(a.id) FILTER (WHERE a.status = 'late') AS late_count,
		COUNT(a.id) AS total_count
	FROM group_memberships gm
	LEFT JOIN attendance a ON a.student_id = gm.student_id AND a.group_id = gm.group_id
	WHERE gm.group_id = $1
	GROUP BY gm.student_id`
	var rows []models.GroupMemberAttendance
	if err := r.db.SelectContext(ctx, &rows, query, groupID); err != nil {
		return nil, fmt.Errorf("group member attendance: %w", err)
	}
	for i := range rows {
		if rows[i].TotalCount > 0 {
			weighted := float64(rows[i].PresentCount) + float64(rows[i].LateCount)*0.5
			rows[i].Rate = weighted / float64(rows[i].TotalCount) * 100
		}
	}
	return rows, nil
}

// GroupsOfStudent returns the group ids a student belongs to.
func (r *GroupRepository) GroupsOfStudent(ctx context.Context, studentID string) ([]string, error) {
	const query = `SELECT group_id FROM group_memberships WHERE student_id = $1`
	var ids []string
	if err := r.db.SelectContext(ctx, &ids, query, studentID); err != nil {
		return nil, fmt.Errorf("groups of student: %w", err)
	}
	return ids, nil
}

// CountByStatus returns the number of groups in the given status.
func (r *GroupRepository) CountByStatus(ctx context.Context, status models.GroupStatus) (int, error) {
	const query = `SELECT COUNT(*) FROM groups WHERE status = $1`
	var total int
	if err := r.db.GetContext(ctx, &total, query, status); err != nil {
		return 0, fmt.Errorf("count groups by status: %w", err)
	}
	return total, nil
}
