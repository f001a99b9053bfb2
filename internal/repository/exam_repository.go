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

// ExamRepository handles persistence for exams and their results.
type ExamRepository struct {
	db *sqlx.DB
}

// NewExamRepository constructs the repository.
func NewExamRepository(db *sqlx.DB) *ExamRepository {
	return &ExamRepository{db: db}
}

// FindByID returns an exam with joined display columns.
func (r *ExamRepository) FindByID(ctx context.Context, id string) (*models.ExamRecord, error) {
	const query = `SELECT e.id, e.name, e.subject_id, e.group_id, e.date, e.max_score, e.created_at, e.updated_at,
		sub.name AS subject_name, g.name AS group_name,
		(SELECT COUNT(*) FROM results res WHERE res.exam_id = e.id) AS result_count,
		(SELECT AVG(res.score) FROM results res WHERE res.exam_id = e.id) AS average_score
	FROM exams e
	JOIN subjects sub ON sub.id = e.subject_id
	JOIN groups g ON g.id = e.group_id
	WHERE e.id = $1 LIMIT 1`
	var record models.ExamRecord
	if err := r.db.GetContext(ctx, &record, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find exam by id: %w", err)
	}
	return &record, nil
}

// List returns exams matching the provided filter.
func (r *ExamRepository) List(ctx context.Context, filter models.ExamFilter) ([]models.ExamRecord, int, error) {
	base := `FROM exams e
JOIN subjects sub ON sub.id = e.subject_id
JOIN groups g ON g.id = e.group_id`
	where := []string{"1=1"}
	args := []interface{}{}
	if filter.SubjectID != "" {
		where = append(where, fmt.Sprintf("e.subject_id = $%d", len(args)+1))
		args = append(args, filter.SubjectID)
	}
	if filter.GroupID != "" {
		where = append(where, fmt.Sprintf("e.group_id = $%d", len(args)+1))
		args = append(args, filter.GroupID)
	}
	if filter.TeacherID != "" {
		where = append(where, fmt.Sprintf("g.teacher_id = $%d", len(args)+1))
		args = append(args, filter.TeacherID)
	}
	if filter.Date != nil {
		where = append(where, fmt.Sprintf("e.date = $%d", len(args)+1))
		args = append(args, *filter.Date)
	}
	if filter.DateFrom != nil {
		where = append(where, fmt.Sprintf("e.date >= $%d", len(args)+1))
		args = append(args, *filter.DateFrom)
	}
	if filter.DateTo != nil {
		where = append(where, fmt.Sprintf("e.date <= $%d", len(args)+1))
		args = append(args, *filter.DateTo)
	}
	if filter.Search != "" {
		where = append(where, fmt.Sprintf("(LOWER(e.name) LIKE $%d OR LOWER(sub.name) LIKE $%d)", len(args)+1, len(args)+1))
		args = append(args, "%"+strings.ToLower(filter.Search)+"%")
	}
	whereClause := strings.Join(where, " AND ")

	sortBy := filter.SortBy
	allowedSort := map[string]string{
		"date":       "e.date",
		"name":       "e.name",
		"subject":    "sub.name",
		"created_at": "e.created_at",
	}
	sortColumn, ok := allowedSort[sortBy]
	if !ok {
		sortColumn = "e.date"
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

	query := fmt.Sprintf(`SELECT e.id, e.name, e.subject_id, e.group_id, e.date, e.max_score, e.created_at, e.updated_at,
		sub.name AS subject_name, g.name AS group_name,
		(SELECT COUNT(*) FROM results res WHERE res.exam_id = e.id) AS result_count,
		(SELECT AVG(res.score) FROM results res WHERE res.exam_id = e.id) AS average_score
	%s WHERE %s
	ORDER BY %s %s
	LIMIT %d OFFSET %d`, base, whereClause, sortColumn, order, size, offset)

	var rows []models.ExamRecord
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list exams: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s WHERE %s", base, whereClause)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count exams: %w", err)
	}
	return rows, total, nil
}

// Create inserts a new exam.
func (r *ExamRepository) Create(ctx context.Context, exam *models.Exam) error {
	if exam.ID == "" {
		exam.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	exam.CreatedAt = now
	exam.UpdatedAt = now
	const query = `INSERT INTO exams (id, name, subject_id, group_id, date, max_score, created_at, updated_at) VALUES (:id, :name, :subject_id, :group_id, :date, :max_score, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, exam); err != nil {
		return fmt.Errorf("create exam: %w", err)
	}
	return nil
}

// Update updates mutable fields of an exam.
func (r *ExamRepository) Update(ctx context.Context, exam *models.Exam) error {
	exam.UpdatedAt = time.Now().UTC()
	const query = `UPDATE exams SET name = :name, subject_id = :subject_id, group_id = :group_id, date = :date, max_score = :max_score, updated_at = :updated_at WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, exam); err != nil {
		return fmt.Errorf("update exam: %w", err)
	}
	return nil
}

// Delete removes an exam together with its results.
func (r *ExamRepository) Delete(ctx context.Context, id string) error {
	const query = `DELETE FROM exams WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id); err != nil {
		return fmt.Errorf("delete exam: %w", err)
	}
	return nil
}

// Roster merges the group members of an exam with their result, if any.
func (r *ExamRepository) Roster(ctx context.Context, examID string) ([]models.ExamRosterRow, error) {
	const query = `SELECT gm.student_id,
		u.first_name || ' ' || u.last_name AS student_name,
		res.id AS result_id, res.score, res.remarks
	FROM exams e
	JOIN group_memberships gm ON gm.group_id = e.group_id
	JOIN students s ON s.id = gm.student_id
	JOIN users u ON u.id = s.user_id
	LEFT JOIN results res ON res.exam_id = e.id AND res.student_id = gm.student_id
	WHERE e.id = $1
	ORDER BY u.last_name ASC, u.first_name ASC`
	var rows []models.ExamRosterRow
	if err := r.db.SelectContext(ctx, &rows, query, examID); err != nil {
		return nil, fmt.Errorf("exam roster: %w", err)
	}
	return rows, nil
}

// UpsertResult inserts or updates the result for its exam/student key.
func (r *ExamRepository) UpsertResult(ctx context.Context, result *models.Result) (*models.Result, error) {
	now := time.Now().UTC()
	if result.ID == "" {
		result.ID = uuid.NewString()
	}
	if result.CreatedAt.IsZero() {
		result.CreatedAt = now
	}
	result.UpdatedAt = now
	const query = `INSERT INTO results (id, exam_id, student_id, score, remarks, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7)
ON CONFLICT (exam_id, student_id)
DO UPDATE SET score = EXCLUDED.score, remarks = EXCLUDED.remarks, updated_at = EXCLUDED.updated_at
RETURNING id, exam_id, student_id, score, remarks, created_at, updated_at`
	var stored models.Result
	if err := r.db.GetContext(ctx, &stored, query, result.ID, result.ExamID, result.StudentID, result.Score, result.Remarks, result.CreatedAt, result.UpdatedAt); err != nil {
		return nil, fmt.Errorf("upsert result: %w", err)
	}
	return &stored, nil
}

// DeleteResult removes a single result row.
func (r *ExamRepository) DeleteResult(ctx context.Context, examID, studentID string) error {
	const query = `DELETE FROM results WHERE exam_id = $1 AND student_id = $2`
	if _, err := r.db.ExecContext(ctx, query, examID, studentID); err != nil {
		return fmt.Errorf("delete result: %w", err)
	}
	return nil
}

// ListResults returns result rows matching the provided filter.
func (r *ExamRepository) ListResults(ctx context.Context, filter models.ResultFilter) ([]models.ResultRecord, int, error) {
	base := `FROM results res
JOIN exams e ON e.id = res.exam_id
JOIN subjects sub ON sub.id = e.subject_id
JOIN groups g ON g.id = e.group_id
JOIN students s ON s.id = res.student_id
JOIN users u ON u.id = s.user_id`
	where := []string{"1=1"}
	args := []interface{}{}
	if filter.SubjectID != "" {
		where = append(where, fmt.Sprintf("e.subject_id = $%d", len(args)+1))
		args = append(args, filter.SubjectID)
	}
	if filter.GroupID != "" {
		where = append(where, fmt.Sprintf("e.group_id = $%d", len(args)+1))
		args = append(args, filter.GroupID)
	}
	if filter.ExamID != "" {
		where = append(where, fmt.Sprintf("res.exam_id = $%d", len(args)+1))
		args = append(args, filter.ExamID)
	}
	if filter.StudentID != "" {
		where = append(where, fmt.Sprintf("res.student_id = $%d", len(args)+1))
		args = append(args, filter.StudentID)
	}
	if len(filter.StudentIDs) > 0 {
		where = append(where, fmt.Sprintf("res.student_id = ANY($%d)", len(args)+1))
		args = append(args, pq.Array(filter.StudentIDs))
	}
	if filter.DateFrom != nil {
		where = append(where, fmt.Sprintf("e.date >= $%d", len(args)+1))
		args = append(args, *filter.DateFrom)
	}
	if filter.DateTo != nil {
		where = append(where, fmt.Sprintf("e.date <= $%d", len(args)+1))
		args = append(args, *filter.DateTo)
	}
	if filter.Passed != nil {
		if *filter.Passed {
			where = append(where, "e.max_score > 0 AND res.score / e.max_score * 100 >= 50")
		} else {
			where = append(where, "(e.max_score = 0 OR res.score / e.max_score * 100 < 50)")
		}
	}
	whereClause := strings.Join(where, " AND ")

	sortBy := filter.SortBy
	allowedSort := map[string]string{
		"date":    "e.date",
		"score":   "res.score",
		"exam":    "e.name",
		"subject": "sub.name",
		"student": "u.last_name",
	}
	sortColumn, ok := allowedSort[sortBy]
	if !ok {
		sortColumn = "e.date"
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

	query := fmt.Sprintf(`SELECT res.id, res.exam_id, res.student_id, res.score, res.remarks, res.created_at, res.updated_at,
		u.first_name || ' ' || u.last_name AS student_name,
		e.name AS exam_name, e.date AS exam_date, e.max_score,
		e.subject_id, sub.name AS subject_name,
		e.group_id, g.name AS group_name
	%s WHERE %s
	ORDER BY %s %s
	LIMIT %d OFFSET %d`, base, whereClause, sortColumn, order, size, offset)

	var rows []models.ResultRecord
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list results: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s WHERE %s", base, whereClause)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count results: %w", err)
	}
	return rows, total, nil
}

// SubjectPerformance aggregates average percentages per subject for a
// student. Exams with a zero max score contribute zero.
func (r *ExamRepository) SubjectPerformance(ctx context.Context, studentID string) ([]models.SubjectPerformance, error) {
	const query = `SELECT e.subject_id, sub.name AS subject_name,
		COUNT(*) AS result_count,
		AVG(CASE WHEN e.max_score > 0 THEN res.score / e.max_score * 100 ELSE 0 END) AS average_percent
	FROM results res
	JOIN exams e ON e.id = res.exam_id
	JOIN subjects sub ON sub.id = e.subject_id
	WHERE res.student_id = $1
	GROUP BY e.subject_id, sub.name
	ORDER BY sub.name ASC`
	var rows []models.SubjectPerformance
	if err := r.db.SelectContext(ctx, &rows, query, studentID); err != nil {
		return nil, fmt.Errorf("subject performance: %w", err)
	}
	return rows, nil
}

// PassFailCounts returns passed and failed result counts for a student
// at the 50 percent threshold.
func (r *ExamRepository) PassFailCounts(ctx context.Context, studentID string) (passed, failed int, err error) {
	const query = `SELECT
		COUNT(*) FILTER (WHERE e.max_score > 0 AND res.score / e.max_score * 100 >= 50) AS passed,
		COUNT(*) FILTER (WHERE e.max_score = 0 OR res.score / e.max_score * 100 < 50) AS failed
	FROM results res
	JOIN exams e ON e.id = res.exam_id
	WHERE res.student_id = $1`
	row := struct {
		Passed int `db:"passed"`
		Failed int `db:"failed"`
	}{}
	if err := r.db.GetContext(ctx, &row, query, studentID); err != nil {
		return 0, 0, fmt.Errorf("pass fail counts: %w", err)
	}
	return row.Passed, row.Failed, nil
}

// AveragePercent returns the mean result percentage within an optional
// teacher scope. Exams with a zero max score contribute zero.
func (r *ExamRepository) AveragePercent(ctx context.Context, teacherID, studentID string) (float64, error) {
	where := []string{"1=1"}
	args := []interface{}{}
	if teacherID != "" {
		where = append(where, fmt.Sprintf("g.teacher_id = $%d", len(args)+1))
		args = append(args, teacherID)
	}
	if studentID != "" {
		where = append(where, fmt.Sprintf("res.student_id = $%d", len(args)+1))
		args = append(args, studentID)
	}
	query := fmt.Sprintf(`SELECT COALESCE(AVG(CASE WHEN e.max_score > 0 THEN res.score / e.max_score * 100 ELSE 0 END), 0)
	FROM results res
	JOIN exams e ON e.id = res.exam_id
	JOIN groups g ON g.id = e.group_id
	WHERE %s`, strings.Join(where, " AND "))

	var avg float64
	if err := r.db.GetContext(ctx, &avg, query, args...); err != nil {
		return 0, fmt.Errorf("average percent: %w", err)
	}
	return avg, nil
}

// CountUpcoming returns the number of exams dated today or later within
// an optional group scope.
func (r *ExamRepository) CountUpcoming(ctx context.Context, groupIDs []string) (int, error) {
	if groupIDs == nil {
		const query = `SELECT COUNT(*) FROM exams WHERE date >= CURRENT_DATE`
		var total int
		if err := r.db.GetContext(ctx, &total, query); err != nil {
			return 0, fmt.Errorf("count upcoming exams: %w", err)
		}
		return total, nil
	}
	if len(groupIDs) == 0 {
		return 0, nil
	}
	query, args, err := sqlx.In(`SELECT COUNT(*) FROM exams WHERE date >= CURRENT_DATE AND group_id IN (?)`, groupIDs)
	if err != nil {
		return 0, fmt.Errorf("build upcoming exams count: %w", err)
	}
	query = r.db.Rebind(query)
	var total int
	if err := r.db.GetContext(ctx, &total, query, args...); err != nil {
		return 0, fmt.Errorf("count upcoming exams: %w", err)
	}
	return total, nil
}
