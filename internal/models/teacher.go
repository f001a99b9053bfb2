package models

import "time"

// Teacher represents a teaching staff profile linked to a user account.
type Teacher struct {
	ID             string     `db:"id" json:"id"`
	UserID         string     `db:"user_id" json:"user_id"`
	HireDate       *time.Time `db:"hire_date" json:"hire_date,omitempty"`
	Qualifications string     `db:"qualifications" json:"qualifications"`
	CreatedAt      time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time  `db:"updated_at" json:"updated_at"`
}

// TeacherDetail joins the profile with account columns and taught subjects.
type TeacherDetail struct {
	Teacher
	Username  string    `db:"username" json:"username"`
	Email     string    `db:"email" json:"email"`
	FirstName string    `db:"first_name" json:"first_name"`
	LastName  string    `db:"last_name" json:"last_name"`
	Phone     string    `db:"phone" json:"phone"`
	Active    bool      `db:"active" json:"active"`
	Subjects  []Subject `json:"subjects"`
}

// TeacherFilter encapsulates allowed search parameters for listing teachers.
type TeacherFilter struct {
	SubjectID string
	Active    *bool
	Search    string
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}
