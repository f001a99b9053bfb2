package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/Azizbek961/crm-edu-crm/internal/models"
)

// HomeworkRepository handles persistence for homework assignments.
type HomeworkRepository struct {
	db *sqlx.DB
}

// NewHomeworkRepository constructs the repository.
func NewHomeworkRepository(db *sqlx.DB) *HomeworkRepository {
	return &HomeworkRepository{db: db}
}

// FindByID returns a homework row with joined display columns.
func (r *HomeworkRepository) FindByID(ctx context.Context, id string) (*models.HomeworkRecord, error) {
	const query = `SELECT h.id, h.title, h.subject_id, h.assigned_by, h.assigned_to, h.due_date, h.description, h.created_at, h.updated_at,
		sub.name AS subject_name, g.name AS group_name,
		tu.first_name || ' ' || tu.last_name AS teacher_name
	FROM homework h
	JOIN subjects sub ON sub.id = h.subject_id
	JOIN groups g ON g.id = h.assigned_to
	JOIN teachers t ON t.id = h.assigned_by
	JOIN users tu ON tu.id = t.user_id
	WHERE h.id = $1 LIMIT 1`
	var record models.HomeworkRecord
	if err := r.db.GetContext(ctx, &record, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find homework by id: %w", err)
	}
	return &record, nil
}

// List returns homework rows matching the provided filter. The derived
// status filter compares due_date against today: overdue when past,
// upcoming when more than a week out, active otherwise.
func (r *HomeworkRepository) List(ctx context.Context, filter models.HomeworkFilter) ([]models.HomeworkRecord, int, error) {
	base := `FROM homework h
JOIN subjects sub ON sub.id = h.subject_id
JOIN groups g ON g.id = h.assigned_to
JOIN teachers t ON t.id = h.assigned_by
JOIN users tu ON tu.id = t.user_id`
	where := []string{"1=1"}
	args := []interface{}{}
	if filter.SubjectID != "" {
		where = append(where, fmt.Sprintf("h.subject_id = $%d", len(args)+1))
		args = append(args, filter.SubjectID)
	}
	if filter.GroupID != "" {
		where = append(where, fmt.Sprintf("h.assigned_to = $%d", len(args)+1))
		args = append(args, filter.GroupID)
	}
	if len(filter.GroupIDs) > 0 {
		where = append(where, fmt.Sprintf("h.assigned_to = ANY($%d)", len(args)+1))
		args = append(args, pq.Array(filter.GroupIDs))
	}
	if filter.TeacherID != "" {
		where = append(where, fmt.Sprintf("h.assigned_by = $%d", len(args)+1))
		args = append(args, filter.TeacherID)
	}
	switch filter.Status {
	case models.HomeworkStatusOverdue:
		where = append(where, "h.due_date < CURRENT_DATE")
	case models.HomeworkStatusUpcoming:
		where = append(where, "h.due_date > CURRENT_DATE + INTERVAL '7 days'")
	case models.HomeworkStatusActive:
		where = append(where, "h.due_date >= CURRENT_DATE AND h.due_date <= CURRENT_DATE + INTERVAL '7 days'")
	}
	if filter.Search != "" {
		where = append(where, fmt.Sprintf("(LOWER(h.title) LIKE $%d OR LOWER(h.description) LIKE $%d)", len(args)+1, len(args)+1))
		args = append(args, "%"+strings.ToLower(filter.Search)+"%")
	}
	whereClause := strings.Join(where, " AND ")

	sortBy := filter.SortBy
	allowedSort := map[string]string{
		"due_date":   "h.due_date",
		"title":      "h.title",
		"subject":    "sub.name",
		"created_at": "h.created_at",
	}
	sortColumn, ok := allowedSort[sortBy]
	if !ok {
		sortColumn = "h.due_date"
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

	query := fmt.Sprintf(`SELECT h.id, h.title, h.subject_id, h.assigned_by, h.assigned_to, h.due_date, h.description, h.created_at, h.updated_at,
		sub.name AS subject_name, g.name AS group_name,
		tu.first_name || ' ' || tu.last_name AS teacher_name
	%s WHERE %s
	ORDER BY %s %s
	LIMIT %d OFFSET %d`, base, whereClause, sortColumn, order, size, offset)

	var rows []models.HomeworkRecord
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list homework: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s WHERE %s", base, whereClause)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count homework: %w", err)
	}
	return rows, total, nil
}

// Create inserts a new homework row.
func (r *HomeworkRepository) Create(ctx context.Context, hw *models.Homework) error {
	if hw.ID == "" {
		hw.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	hw.CreatedAt = now
	hw.UpdatedAt = now
	const query = `INSERT INTO homework (id, title, subject_id, assigned_by, assigned_to, due_date, description, created_at, updated_at) VALUES (:id, :title, :subject_id, :assigned_by, :assigned_to, :due_date, :description, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, hw); err != nil {
		return fmt.Errorf("create homework: %w", err)
	}
	return nil
}

// Update updates mutable fields of a homework row.
func (r *HomeworkRepository) Update(ctx context.Context, hw *models.Homework) error {
	hw.UpdatedAt = time.Now().UTC()
	const query = `UPDATE homework SET title = :title, subject_id = :subject_id, assigned_to = :assigned_to, due_date = :due_date, description = :description, updated_at = :updated_at WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, hw); err != nil {
		return fmt.Errorf("update homework: %w", err)
	}
	return nil
}

// Delete removes a homework row.
func (r *HomeworkRepository) Delete(ctx context.Context, id string) error {
	const query = `DELETE FROM homework WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id); err != nil {
		return fmt.Errorf("delete homework: %w", err)
	}
	return nil
}

// Counts summarises assignments by derived status within the filter scope.
func (r *HomeworkRepository) Counts(ctx context.Context, filter models.HomeworkFilter) (*models.HomeworkCounts, error) {
	where := []string{"1=1"}
	args := []interface{}{}
	if filter.TeacherID != "" {
		where = append(where, fmt.Sprintf("h.assigned_by = $%d", len(args)+1))
		args = append(args, filter.TeacherID)
	}
	if filter.GroupID != "" {
		where = append(where, fmt.Sprintf("h.assigned_to = $%d", len(args)+1))
		args = append(args, filter.GroupID)
	}
	if len(filter.GroupIDs) > 0 {
		where = append(where, fmt.Sprintf("h.assigned_to = ANY($%d)", len(args)+1))
		args = append(args, pq.Array(filter.GroupIDs))
	}
	if filter.SubjectID != "" {
		where = append(where, fmt.Sprintf("h.subject_id = $%d", len(args)+1))
		args = append(args, filter.SubjectID)
	}

	query := fmt.Sprintf(`SELECT
		COUNT(*) FILTER (WHERE h.due_date >= CURRENT_DATE AND h.due_date <= CURRENT_DATE + INTERVAL '7 days') AS active,
		COUNT(*) FILTER (WHERE h.due_date < CURRENT_DATE) AS overdue,
		COUNT(*) FILTER (WHERE h.due_date > CURRENT_DATE + INTERVAL '7 days') AS upcoming,
		COUNT(*) AS total
	FROM homework h WHERE %s`, strings.Join(where, " AND "))

	row := struct {
		Active   int `db:"active"`
		Overdue  int `db:"overdue"`
		Upcoming int `db:"upcoming"`
		Total    int `db:"total"`
	}{}
	if err := r.db.GetContext(ctx, &row, query, args...); err != nil {
		return nil, fmt.Errorf("homework counts: %w", err)
	}
	return &models.HomeworkCounts{Active: row.Active, Overdue: row.Overdue, Upcoming: row.Upcoming, Total: row.Total}, nil
}

// CountsForGroups summarises assignments across the provided group ids,
// used by the student dashboard.
func (r *HomeworkRepository) CountsForGroups(ctx context.Context, groupIDs []string) (*models.HomeworkCounts, error) {
	if len(groupIDs) == 0 {
		return &models.HomeworkCounts{}, nil
	}
	query, args, err := sqlx.In(`SELECT
		COUNT(*) FILTER (WHERE due_date >= CURRENT_DATE AND due_date <= CURRENT_DATE + INTERVAL '7 days') AS active,
		COUNT(*) FILTER (WHERE due_date < CURRENT_DATE) AS overdue,
		COUNT(*) FILTER (WHERE due_date > CURRENT_DATE + INTERVAL '7 days') AS upcoming,
		COUNT(*) AS total
	FROM homework WHERE assigned_to IN (?)`, groupIDs)
	if err != nil {
		return nil, fmt.Errorf("build homework group counts: %w", err)
	}
	query = r.db.Rebind(query)

	row := struct {
		Active   int `db:"active"`
		Overdue  int `db:"overdue"`
		Upcoming int `db:"upcoming"`
		Total    int `db:"total"`
	}{}
	if err := r.db.GetContext(ctx, &row, query, args...); err != nil {
		return nil, fmt.Errorf("homework group counts: %w", err)
	}
	return &models.HomeworkCounts{Active: row.Active, Overdue: row.Overdue, Upcoming: row.Upcoming, Total: row.Total}, nil
}
