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

// StudentRepository handles persistence for student profiles.
type StudentRepository struct {
	db *sqlx.DB
}

// NewStudentRepository constructs the repository.
func NewStudentRepository(db *sqlx.DB) *StudentRepository {
	return &StudentRepository{db: db}
}

// CreateWithUser inserts the account and the student profile in one
// transaction.
func (r *StudentRepository) CreateWithUser(ctx context.Context, user *models.User, student *models.Student) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin create student: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			tx.Rollback()
		}
	}()

	prepareUser(user)
	const userQuery = `INSERT INTO users (id, username, email, password_hash, first_name, last_name, role, phone, address, active, created_at, updated_at) VALUES (:id, :username, :email, :password_hash, :first_name, :last_name, :role, :phone, :address, :active, :created_at, :updated_at)`
	if _, err := tx.NamedExecContext(ctx, userQuery, user); err != nil {
		return fmt.Errorf("create student user: %w", err)
	}

	if student.ID == "" {
		student.ID = uuid.NewString()
	}
	student.UserID = user.ID
	now := time.Now().UTC()
	if student.EnrollmentDate.IsZero() {
		student.EnrollmentDate = now
	}
	student.CreatedAt = now
	student.UpdatedAt = now
	const profileQuery = `INSERT INTO students (id, user_id, enrollment_date, birth_date, created_at, updated_at) VALUES (:id, :user_id, :enrollment_date, :birth_date, :created_at, :updated_at)`
	if _, err := tx.NamedExecContext(ctx, profileQuery, student); err != nil {
		return fmt.Errorf("create student profile: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit create student: %w", err)
	}
	committed = true
	return nil
}

// FindByID returns a student profile with joined account columns.
func (r *StudentRepository) FindByID(ctx context.Context, id string) (*models.StudentDetail, error) {
	const query = `SELECT s.id, s.user_id, s.enrollment_date, s.birth_date, s.created_at, s.updated_at,
		u.username, u.email, u.first_name, u.last_name, u.phone, u.active
	FROM students s
	JOIN users u ON u.id = s.user_id
	WHERE s.id = $1 LIMIT 1`
	var detail models.StudentDetail
	if err := r.db.GetContext(ctx, &detail, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find student by id: %w", err)
	}
	return &detail, nil
}

// FindByUserID returns the student profile attached to a user account.
func (r *StudentRepository) FindByUserID(ctx context.Context, userID string) (*models.Student, error) {
	const query = `SELECT id, user_id, enrollment_date, birth_date, created_at, updated_at FROM students WHERE user_id = $1 LIMIT 1`
	var student models.Student
	if err := r.db.GetContext(ctx, &student, query, userID); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find student by user id: %w", err)
	}
	return &student, nil
}

// List returns student profiles matching the provided filter.
func (r *StudentRepository) List(ctx context.Context, filter models.StudentFilter) ([]models.StudentDetail, int, error) {
	base := `FROM students s
JOIN users u ON u.id = s.user_id`
	where := []string{"1=1"}
	args := []interface{}{}
	if filter.GroupID != "" {
		where = append(where, fmt.Sprintf("EXISTS (SELECT 1 FROM group_memberships gm WHERE gm.student_id = s.id AND gm.group_id = $%d)", len(args)+1))
		args = append(args, filter.GroupID)
	}
	if filter.Active != nil {
		where = append(where, fmt.Sprintf("u.active = $%d", len(args)+1))
		args = append(args, *filter.Active)
	}
	if filter.Search != "" {
		where = append(where, fmt.Sprintf("(LOWER(u.first_name) LIKE $%d OR LOWER(u.last_name) LIKE $%d OR LOWER(u.email) LIKE $%d OR LOWER(u.username) LIKE $%d)", len(args)+1, len(args)+1, len(args)+1, len(args)+1))
		args = append(args, "%"+strings.ToLower(filter.Search)+"%")
	}
	whereClause := strings.Join(where, " AND ")

	sortBy := filter.SortBy
	allowedSort := map[string]string{
		"first_name":      "u.first_name",
		"last_name":       "u.last_name",
		"enrollment_date": "s.enrollment_date",
		"created_at":      "s.created_at",
	}
	sortColumn, ok := allowedSort[sortBy]
	if !ok {
		sortColumn = "u.last_name"
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

	query := fmt.Sprintf(`SELECT s.id, s.user_id, s.enrollment_date, s.birth_date, s.created_at, s.updated_at,
		u.username, u.email, u.first_name, u.last_name, u.phone, u.active
	%s WHERE %s
	ORDER BY %s %s
	LIMIT %d OFFSET %d`, base, whereClause, sortColumn, order, size, offset)

	var rows []models.StudentDetail
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list students: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s WHERE %s", base, whereClause)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count students: %w", err)
	}
	return rows, total, nil
}

// Update updates the student profile row.
func (r *StudentRepository) Update(ctx context.Context, student *models.Student) error {
	student.UpdatedAt = time.Now().UTC()
	const query = `UPDATE students SET enrollment_date = :enrollment_date, birth_date = :birth_date, updated_at = :updated_at WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, student); err != nil {
		return fmt.Errorf("update student: %w", err)
	}
	return nil
}

// Groups returns the groups a student belongs to.
func (r *StudentRepository) Groups(ctx context.Context, studentID string) ([]models.GroupRecord, error) {
	const query = `SELECT g.id, g.name, g.subject_id, g.teacher_id, g.schedule, g.status, g.created_at, g.updated_at,
		sub.name AS subject_name, sub.code AS subject_code,
		tu.first_name || ' ' || tu.last_name AS teacher_name,
		(SELECT COUNT(*) FROM group_memberships m WHERE m.group_id = g.id) AS student_count
	FROM groups g
	JOIN group_memberships gm ON gm.group_id = g.id
	JOIN subjects sub ON sub.id = g.subject_id
	JOIN teachers t ON t.id = g.teacher_id
	JOIN users tu ON tu.id = t.user_id
	WHERE gm.student_id = $1
	ORDER BY g.name ASC`
	var groups []models.GroupRecord
	if err := r.db.SelectContext(ctx, &groups, query, studentID); err != nil {
		return nil, fmt.Errorf("student groups: %w", err)
	}
	return groups, nil
}

// Stats returns enrollment counts.
func (r *StudentRepository) Stats(ctx context.Context) (*models.StudentStats, error) {
	const query = `SELECT
		COUNT(*) AS total,
		COUNT(*) FILTER (WHERE u.active) AS active,
		COUNT(*) FILTER (WHERE date_trunc('month', s.enrollment_date) = date_trunc('month', NOW())) AS new_this_month
	FROM students s
	JOIN users u ON u.id = s.user_id`
	var stats models.StudentStats
	if err := r.db.GetContext(ctx, &stats, query); err != nil {
		return nil, fmt.Errorf("student stats: %w", err)
	}
	return &stats, nil
}

// CreateParentWithUser inserts the account and the parent profile in one
// transaction, linking the given children.
func (r *StudentRepository) CreateParentWithUser(ctx context.Context, user *models.User, parent *models.Parent, studentIDs []string) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin create parent: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			tx.Rollback()
		}
	}()

	prepareUser(user)
	const userQuery = `INSERT INTO users (id, username, email, password_hash, first_name, last_name, role, phone, address, active, created_at, updated_at) VALUES (:id, :username, :email, :password_hash, :first_name, :last_name, :role, :phone, :address, :active, :created_at, :updated_at)`
	if _, err := tx.NamedExecContext(ctx, userQuery, user); err != nil {
		return fmt.Errorf("create parent user: %w", err)
	}

	if parent.ID == "" {
		parent.ID = uuid.NewString()
	}
	parent.UserID = user.ID
	now := time.Now().UTC()
	parent.CreatedAt = now
	parent.UpdatedAt = now
	const profileQuery = `INSERT INTO parents (id, user_id, created_at, updated_at) VALUES (:id, :user_id, :created_at, :updated_at)`
	if _, err := tx.NamedExecContext(ctx, profileQuery, parent); err != nil {
		return fmt.Errorf("create parent profile: %w", err)
	}

	const linkQuery = `INSERT INTO parent_students (parent_id, student_id) VALUES ($1, $2) ON CONFLICT DO NOTHING`
	for _, studentID := range studentIDs {
		if _, err := tx.ExecContext(ctx, linkQuery, parent.ID, studentID); err != nil {
			return fmt.Errorf("link parent student: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit create parent: %w", err)
	}
	committed = true
	return nil
}

// ParentByUserID returns the parent profile attached to a user account.
func (r *StudentRepository) ParentByUserID(ctx context.Context, userID string) (*models.Parent, error) {
	const query = `SELECT id, user_id, created_at, updated_at FROM parents WHERE user_id = $1 LIMIT 1`
	var parent models.Parent
	if err := r.db.GetContext(ctx, &parent, query, userID); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find parent by user id: %w", err)
	}
	return &parent, nil
}

// ChildrenOfParent returns the student ids linked to a parent.
func (r *StudentRepository) ChildrenOfParent(ctx context.Context, parentID string) ([]string, error) {
	const query = `SELECT student_id FROM parent_students WHERE parent_id = $1`
	var ids []string
	if err := r.db.SelectContext(ctx, &ids, query, parentID); err != nil {
		return nil, fmt.Errorf("children of parent: %w", err)
	}
	return ids, nil
}
