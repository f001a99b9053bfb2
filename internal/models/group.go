package models

import (
	"encoding/json"
	"time"
)

// GroupStatus represents the lifecycle state of a study group.
type GroupStatus string

const (
	GroupStatusActive    GroupStatus = "active"
	GroupStatusInactive  GroupStatus = "inactive"
	GroupStatusCompleted GroupStatus = "completed"
	GroupStatusHold      GroupStatus = "hold"
)

// Valid returns true when the status is a supported value.
func (s GroupStatus) Valid() bool {
	switch s {
	case GroupStatusActive, GroupStatusInactive, GroupStatusCompleted, GroupStatusHold:
		return true
	default:
		return false
	}
}

// Group represents a study group attached to a subject and a teacher.
type Group struct {
	ID        string          `db:"id" json:"id"`
	Name      string          `db:"name" json:"name"`
	SubjectID string          `db:"subject_id" json:"subject_id"`
	TeacherID string          `db:"teacher_id" json:"teacher_id"`
	Schedule  json.RawMessage `db:"schedule" json:"schedule,omitempty"`
	Status    GroupStatus     `db:"status" json:"status"`
	CreatedAt time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt time.Time       `db:"updated_at" json:"updated_at"`
}

// GroupRecord extends the group row with joined display columns.
type GroupRecord struct {
	Group
	SubjectName  string `db:"subject_name" json:"subject_name"`
	SubjectCode  string `db:"subject_code" json:"subject_code"`
	TeacherName  string `db:"teacher_name" json:"teacher_name"`
	StudentCount int    `db:"student_count" json:"student_count"`
}

// GroupFilter encapsulates allowed search parameters for listing groups.
type GroupFilter struct {
	Status    *GroupStatus
	SubjectID string
	TeacherID string
	Search    string
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}

// GroupMembership links a student to a group.
type GroupMembership struct {
	ID         string    `db:"id" json:"id"`
	StudentID  string    `db:"student_id" json:"student_id"`
	GroupID    string    `db:"group_id" json:"group_id"`
	JoinedDate time.Time `db:"joined_date" json:"joined_date"`
}

// GroupMemberRecord extends a membership with student display columns.
type GroupMemberRecord struct {
	GroupMembership
	StudentName string `db:"student_name" json:"student_name"`
	Username    string `db:"username" json:"username"`
	Email       string `db:"email" json:"email"`
	Phone       string `db:"phone" json:"phone"`
}

// GroupMemberAttendance aggregates per-member attendance inside a group.
// Late marks count as half a presence.
type GroupMemberAttendance struct {
	StudentID    string  `db:"student_id" json:"student_id"`
	PresentCount int     `db:"present_count" json:"present_count"`
	LateCount    int     `db:"late_count" json:"late_count"`
	TotalCount   int     `db:"total_count" json:"total_count"`
	Rate         float64 `json:"rate"`
}
