package models

import "time"

// Student represents a learner profile linked to a user account.
type Student struct {
	ID             string     `db:"id" json:"id"`
	UserID         string     `db:"user_id" json:"user_id"`
	EnrollmentDate time.Time  `db:"enrollment_date" json:"enrollment_date"`
	BirthDate      *time.Time `db:"birth_date" json:"birth_date,omitempty"`
	CreatedAt      time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time  `db:"updated_at" json:"updated_at"`
}

// StudentDetail joins the profile with its account columns.
type StudentDetail struct {
	Student
	Username  string `db:"username" json:"username"`
	Email     string `db:"email" json:"email"`
	FirstName string `db:"first_name" json:"first_name"`
	LastName  string `db:"last_name" json:"last_name"`
	Phone     string `db:"phone" json:"phone"`
	Active    bool   `db:"active" json:"active"`
}

// StudentFilter encapsulates allowed search parameters for listing students.
type StudentFilter struct {
	GroupID   string
	Active    *bool
	Search    string
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}

// StudentStats aggregates enrollment counts.
type StudentStats struct {
	Total        int `db:"total" json:"total"`
	Active       int `db:"active" json:"active"`
	NewThisMonth int `db:"new_this_month" json:"new_this_month"`
}

// Parent represents a guardian profile linked to a user account.
type Parent struct {
	ID        string    `db:"id" json:"id"`
	UserID    string    `db:"user_id" json:"user_id"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// ParentStudent links a parent profile to one of their children.
type ParentStudent struct {
	ParentID  string `db:"parent_id" json:"parent_id"`
	StudentID string `db:"student_id" json:"student_id"`
}
