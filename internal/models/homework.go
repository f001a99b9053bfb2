package models

import "time"

// HomeworkStatus is derived from the due date, never stored.
type HomeworkStatus string

const (
	HomeworkStatusActive   HomeworkStatus = "active"
	HomeworkStatusOverdue  HomeworkStatus = "overdue"
	HomeworkStatusUpcoming HomeworkStatus = "upcoming"
)

// Homework represents an assignment given to a group.
type Homework struct {
	ID          string    `db:"id" json:"id"`
	Title       string    `db:"title" json:"title"`
	SubjectID   string    `db:"subject_id" json:"subject_id"`
	AssignedBy  string    `db:"assigned_by" json:"assigned_by"`
	AssignedTo  string    `db:"assigned_to" json:"assigned_to"`
	DueDate     time.Time `db:"due_date" json:"due_date"`
	Description string    `db:"description" json:"description"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time `db:"updated_at" json:"updated_at"`
}

// HomeworkRecord extends the row with display metadata and derived status.
type HomeworkRecord struct {
	Homework
	SubjectName string         `db:"subject_name" json:"subject_name"`
	GroupName   string         `db:"group_name" json:"group_name"`
	TeacherName string         `db:"teacher_name" json:"teacher_name"`
	Status      HomeworkStatus `json:"status"`
}

// HomeworkFilter defines query filters.
type HomeworkFilter struct {
	SubjectID string
	GroupID   string
	GroupIDs  []string
	TeacherID string
	Status    HomeworkStatus
	Search    string
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}

// HomeworkCounts summarises assignments by derived status.
type HomeworkCounts struct {
	Active   int `json:"active"`
	Overdue  int `json:"overdue"`
	Upcoming int `json:"upcoming"`
	Total    int `json:"total"`
}
