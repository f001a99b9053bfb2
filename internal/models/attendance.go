package models

import "time"

// AttendanceStatus represents the status for attendance records.
type AttendanceStatus string

const (
	AttendanceStatusPresent AttendanceStatus = "present"
	AttendanceStatusAbsent  AttendanceStatus = "absent"
	AttendanceStatusLate    AttendanceStatus = "late"
	AttendanceStatusExcused AttendanceStatus = "excused"
)

// Valid returns true when the status is a supported value.
func (s AttendanceStatus) Valid() bool {
	switch s {
	case AttendanceStatusPresent, AttendanceStatusAbsent, AttendanceStatusLate, AttendanceStatusExcused:
		return true
	default:
		return false
	}
}

// Attendance represents a single attendance row, unique per
// student/group/date.
type Attendance struct {
	ID         string           `db:"id" json:"id"`
	StudentID  string           `db:"student_id" json:"student_id"`
	GroupID    string           `db:"group_id" json:"group_id"`
	Date       time.Time        `db:"date" json:"date"`
	Status     AttendanceStatus `db:"status" json:"status"`
	RecordedBy string           `db:"recorded_by" json:"recorded_by"`
	Notes      *string          `db:"notes" json:"notes,omitempty"`
	CreatedAt  time.Time        `db:"created_at" json:"created_at"`
	UpdatedAt  time.Time        `db:"updated_at" json:"updated_at"`
}

// AttendanceRecord extends the row with display metadata.
type AttendanceRecord struct {
	Attendance
	StudentName    string `db:"student_name" json:"student_name"`
	GroupName      string `db:"group_name" json:"group_name"`
	SubjectName    string `db:"subject_name" json:"subject_name"`
	RecordedByName string `db:"recorded_by_name" json:"recorded_by_name"`
}

// AttendanceFilter defines query filters.
type AttendanceFilter struct {
	GroupID    string
	StudentID  string
	StudentIDs []string
	TeacherID  string
	Status     *AttendanceStatus
	Date       *time.Time
	DateFrom   *time.Time
	DateTo     *time.Time
	Page       int
	PageSize   int
	SortBy     string
	SortOrder  string
}

// AttendanceStatusCounts summarises records by status.
type AttendanceStatusCounts struct {
	Present int `db:"present" json:"present"`
	Absent  int `db:"absent" json:"absent"`
	Late    int `db:"late" json:"late"`
	Excused int `db:"excused" json:"excused"`
	Total   int `db:"total" json:"total"`
}

// Rate returns present/total as a percentage, zero when empty.
func (c AttendanceStatusCounts) Rate() float64 {
	if c.Total == 0 {
		return 0
	}
	return float64(c.Present) / float64(c.Total) * 100
}

// MonthlyAttendanceBucket holds one month of the attendance trend.
type MonthlyAttendanceBucket struct {
	Label   string  `json:"label"`
	Present int     `json:"present"`
	Total   int     `json:"total"`
	Rate    float64 `json:"rate"`
}

// AttendanceBulkError captures a single failed row in a bulk save.
type AttendanceBulkError struct {
	StudentID string `json:"student_id"`
	Reason    string `json:"reason"`
}
