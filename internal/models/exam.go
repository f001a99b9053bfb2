package models

import "time"

// Exam represents a scheduled assessment for a group.
type Exam struct {
	ID        string    `db:"id" json:"id"`
	Name      string    `db:"name" json:"name"`
	SubjectID string    `db:"subject_id" json:"subject_id"`
	GroupID   string    `db:"group_id" json:"group_id"`
	Date      time.Time `db:"date" json:"date"`
	MaxScore  float64   `db:"max_score" json:"max_score"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// ExamRecord extends the row with display metadata.
type ExamRecord struct {
	Exam
	SubjectName  string   `db:"subject_name" json:"subject_name"`
	GroupName    string   `db:"group_name" json:"group_name"`
	ResultCount  int      `db:"result_count" json:"result_count"`
	AverageScore *float64 `db:"average_score" json:"average_score,omitempty"`
}

// ExamFilter defines query filters.
type ExamFilter struct {
	SubjectID string
	GroupID   string
	TeacherID string
	Date      *time.Time
	DateFrom  *time.Time
	DateTo    *time.Time
	Search    string
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}

// Result represents a student's score on an exam, unique per
// exam/student.
type Result struct {
	ID        string    `db:"id" json:"id"`
	ExamID    string    `db:"exam_id" json:"exam_id"`
	StudentID string    `db:"student_id" json:"student_id"`
	Score     float64   `db:"score" json:"score"`
	Remarks   *string   `db:"remarks" json:"remarks,omitempty"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// Percentage returns score/max as a percentage, zero when max is zero.
func (r Result) Percentage(maxScore float64) float64 {
	if maxScore == 0 {
		return 0
	}
	return r.Score / maxScore * 100
}

// ResultRecord extends the row with exam and student metadata.
type ResultRecord struct {
	Result
	StudentName string    `db:"student_name" json:"student_name"`
	ExamName    string    `db:"exam_name" json:"exam_name"`
	ExamDate    time.Time `db:"exam_date" json:"exam_date"`
	MaxScore    float64   `db:"max_score" json:"max_score"`
	SubjectID   string    `db:"subject_id" json:"subject_id"`
	SubjectName string    `db:"subject_name" json:"subject_name"`
	GroupID     string    `db:"group_id" json:"group_id"`
	GroupName   string    `db:"group_name" json:"group_name"`
}

// ResultFilter defines query filters.
type ResultFilter struct {
	SubjectID  string
	GroupID    string
	ExamID     string
	StudentID  string
	StudentIDs []string
	DateFrom   *time.Time
	DateTo     *time.Time
	Passed     *bool
	Page       int
	PageSize   int
	SortBy     string
	SortOrder  string
}

// ExamRosterRow merges a group member with their result, if any.
type ExamRosterRow struct {
	StudentID   string   `db:"student_id" json:"student_id"`
	StudentName string   `db:"student_name" json:"student_name"`
	ResultID    *string  `db:"result_id" json:"result_id,omitempty"`
	Score       *float64 `db:"score" json:"score,omitempty"`
	Remarks     *string  `db:"remarks" json:"remarks,omitempty"`
}

// SubjectPerformance aggregates result percentages for one subject.
type SubjectPerformance struct {
	SubjectID      string  `db:"subject_id" json:"subject_id"`
	SubjectName    string  `db:"subject_name" json:"subject_name"`
	ResultCount    int     `db:"result_count" json:"result_count"`
	AveragePercent float64 `db:"average_percent" json:"average_percent"`
	Color          string  `json:"color"`
}
