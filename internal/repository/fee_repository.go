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

// FeeRepository handles persistence for student fees.
type FeeRepository struct {
	db *sqlx.DB
}

// NewFeeRepository constructs the repository.
func NewFeeRepository(db *sqlx.DB) *FeeRepository {
	return &FeeRepository{db: db}
}

// FindByID returns a fee with joined student columns.
func (r *FeeRepository) FindByID(ctx context.Context, id string) (*models.FeeRecord, error) {
	const query = `SELECT f.id, f.student_id, f.amount, f.due_date, f.paid_date, f.status, f.created_at, f.updated_at,
		u.first_name || ' ' || u.last_name AS student_name, u.username
	FROM fees f
	JOIN students s ON s.id = f.student_id
	JOIN users u ON u.id = s.user_id
	WHERE f.id = $1 LIMIT 1`
	var record models.FeeRecord
	if err := r.db.GetContext(ctx, &record, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find fee by id: %w", err)
	}
	return &record, nil
}

// List returns fees matching the provided filter. Filtering on overdue
// also matches pending rows whose due date has passed.
func (r *FeeRepository) List(ctx context.Context, filter models.FeeFilter) ([]models.FeeRecord, int, error) {
	base := `FROM fees f
JOIN students s ON s.id = f.student_id
JOIN users u ON u.id = s.user_id`
	where := []string{"1=1"}
	args := []interface{}{}
	if filter.Status != nil && filter.Status.Valid() {
		switch *filter.Status {
		case models.FeeStatusOverdue:
			where = append(where, "(f.status = 'overdue' OR (f.status = 'pending' AND f.due_date < CURRENT_DATE))")
		case models.FeeStatusPending:
			where = append(where, "f.status = 'pending' AND f.due_date >= CURRENT_DATE")
		default:
			where = append(where, fmt.Sprintf("f.status = $%d", len(args)+1))
			args = append(args, *filter.Status)
		}
	}
	if filter.StudentID != "" {
		where = append(where, fmt.Sprintf("f.student_id = $%d", len(args)+1))
		args = append(args, filter.StudentID)
	}
	if len(filter.StudentIDs) > 0 {
		where = append(where, fmt.Sprintf("f.student_id = ANY($%d)", len(args)+1))
		args = append(args, pq.Array(filter.StudentIDs))
	}
	if filter.Search != "" {
		where = append(where, fmt.Sprintf("(LOWER(u.first_name) LIKE $%d OR LOWER(u.last_name) LIKE $%d)", len(args)+1, len(args)+1))
		args = append(args, "%"+strings.ToLower(filter.Search)+"%")
	}
	if filter.DueFrom != nil {
		where = append(where, fmt.Sprintf("f.due_date >= $%d", len(args)+1))
		args = append(args, *filter.DueFrom)
	}
	if filter.DueTo != nil {
		where = append(where, fmt.Sprintf("f.due_date <= $%d", len(args)+1))
		args = append(args, *filter.DueTo)
	}
	whereClause := strings.Join(where, " AND ")

	sortBy := filter.SortBy
	allowedSort := map[string]string{
		"due_date":   "f.due_date",
		"amount":     "f.amount",
		"status":     "f.status",
		"created_at": "f.created_at",
		"student":    "u.last_name",
	}
	sortColumn, ok := allowedSort[sortBy]
	if !ok {
		sortColumn = "f.due_date"
	}
	order := strings.ToUpper(filter.SortOrder)
	if order != "ASC" && order != "DESC" {
		order = "DESC"
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

	query := fmt.Sprintf(`SELECT f.id, f.student_id, f.amount, f.due_date, f.paid_date, f.status, f.created_at, f.updated_at,
		u.first_name || ' ' || u.last_name AS student_name, u.username
	%s WHERE %s
	ORDER BY %s %s
	LIMIT %d OFFSET %d`, base, whereClause, sortColumn, order, size, offset)

	var rows []models.FeeRecord
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list fees: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s WHERE %s", base, whereClause)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count fees: %w", err)
	}
	return rows, total, nil
}

// Create inserts a new fee.
func (r *FeeRepository) Create(ctx context.Context, fee *models.Fee) error {
	if fee.ID == "" {
		fee.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	fee.CreatedAt = now
	fee.UpdatedAt = now
	if fee.Status == "" {
		fee.Status = models.FeeStatusPending
	}
	const query = `INSERT INTO fees (id, student_id, amount, due_date, paid_date, status, created_at, updated_at) VALUES (:id, :student_id, :amount, :due_date, :paid_date, :status, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, fee); err != nil {
		return fmt.Errorf("create fee: %w", err)
	}
	return nil
}

// UpdateStatus transitions the fee status, stamping paid_date when paid.
func (r *FeeRepository) UpdateStatus(ctx context.Context, id string, status models.FeeStatus, paidDate *time.Time) error {
	const query = `UPDATE fees SET status = $2, paid_date = $3, updated_at = $4 WHERE id = $1`
	res, err := r.db.ExecContext(ctx, query, id, status, paidDate, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("update fee status: %w", err)
	}
	if affected, err := res.RowsAffected(); err == nil && affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// Delete removes a fee.
func (r *FeeRepository) Delete(ctx context.Context, id string) error {
	const query = `DELETE FROM fees WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id); err != nil {
		return fmt.Errorf("delete fee: %w", err)
	}
	return nil
}

// Summary aggregates fee amounts and counts by effective status.
func (r *FeeRepository) Summary(ctx context.Context, studentIDs []string) (*models.FeeSummary, error) {
	query := `SELECT
		COALESCE(SUM(amount) FILTER (WHERE status = 'paid'), 0) AS total_collected,
		COALESCE(SUM(amount) FILTER (WHERE status = 'pending' AND due_date >= CURRENT_DATE), 0) AS total_pending,
		COALESCE(SUM(amount) FILTER (WHERE status = 'overdue' OR (status = 'pending' AND due_date < CURRENT_DATE)), 0) AS total_overdue,
		COUNT(*) FILTER (WHERE status = 'paid') AS paid_count,
		COUNT(*) FILTER (WHERE status = 'pending' AND due_date >= CURRENT_DATE) AS pending_count,
		COUNT(*) FILTER (WHERE status = 'overdue' OR (status = 'pending' AND due_date < CURRENT_DATE)) AS overdue_count
	FROM fees`
	var args []interface{}
	if studentIDs != nil {
		if len(studentIDs) == 0 {
			return &models.FeeSummary{}, nil
		}
		inQuery, inArgs, err := sqlx.In(query+` WHERE student_id IN (?)`, studentIDs)
		if err != nil {
			return nil, fmt.Errorf("build fee summary: %w", err)
		}
		query = r.db.Rebind(inQuery)
		args = inArgs
	}

	var summary models.FeeSummary
	if err := r.db.GetContext(ctx, &summary, query, args...); err != nil {
		return nil, fmt.Errorf("fee summary: %w", err)
	}
	return &summary, nil
}

// RevenueSince sums fee amounts paid on or after the given date.
func (r *FeeRepository) RevenueSince(ctx context.Context, since time.Time) (float64, error) {
	const query = `SELECT COALESCE(SUM(amount), 0) FROM fees WHERE status = 'paid' AND paid_date >= $1`
	var total float64
	if err := r.db.GetContext(ctx, &total, query, since); err != nil {
		return 0, fmt.Errorf("revenue since: %w", err)
	}
	return total, nil
}

// RevenueBetween sums fee amounts paid within the half-open interval.
func (r *FeeRepository) RevenueBetween(ctx context.Context, from, to time.Time) (float64, error) {
	const query = `SELECT COALESCE(SUM(amount), 0) FROM fees WHERE status = 'paid' AND paid_date >= $1 AND paid_date < $2`
	var total float64
	if err := r.db.GetContext(ctx, &total, query, from, to); err != nil {
		return 0, fmt.Errorf("revenue between: %w", err)
	}
	return total, nil
}

// MarkOverdue promotes pending fees past their due date to overdue and
// returns the number of rows affected.
func (r *FeeRepository) MarkOverdue(ctx context.Context, now time.Time) (int64, error) {
	const query = `UPDATE fees SET status = 'overdue', updated_at = $1 WHERE status = 'pending' AND due_date < $2`
	res, err := r.db.ExecContext(ctx, query, now, now)
	if err != nil {
		return 0, fmt.Errorf("mark fees overdue: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("mark fees overdue rows: %w", err)
	}
	return affected, nil
}
