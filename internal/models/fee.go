package models

import "time"

// FeeStatus represents the payment state of a fee.
type FeeStatus string

const (
	FeeStatusPaid    FeeStatus = "paid"
	FeeStatusPending FeeStatus = "pending"
	FeeStatusOverdue FeeStatus = "overdue"
)

// Valid returns true when the status is a supported value.
func (s FeeStatus) Valid() bool {
	switch s {
	case FeeStatusPaid, FeeStatusPending, FeeStatusOverdue:
		return true
	default:
		return false
	}
}

// Fee represents a payment obligation for a student.
type Fee struct {
	ID        string     `db:"id" json:"id"`
	StudentID string     `db:"student_id" json:"student_id"`
	Amount    float64    `db:"amount" json:"amount"`
	DueDate   time.Time  `db:"due_date" json:"due_date"`
	PaidDate  *time.Time `db:"paid_date" json:"paid_date,omitempty"`
	Status    FeeStatus  `db:"status" json:"status"`
	CreatedAt time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt time.Time  `db:"updated_at" json:"updated_at"`
}

// EffectiveStatus buckets a pending fee past its due date as overdue
// without mutating the stored row.
func (f Fee) EffectiveStatus(now time.Time) FeeStatus {
	if f.Status == FeeStatusPending && f.DueDate.Before(now.Truncate(24*time.Hour)) {
		return FeeStatusOverdue
	}
	return f.Status
}

// FeeRecord extends the row with student display columns.
type FeeRecord struct {
	Fee
	StudentName string `db:"student_name" json:"student_name"`
	Username    string `db:"username" json:"username"`
}

// FeeFilter defines query filters.
type FeeFilter struct {
	Status     *FeeStatus
	StudentID  string
	StudentIDs []string
	Search     string
	DueFrom    *time.Time
	DueTo      *time.Time
	Page       int
	PageSize   int
	SortBy     string
	SortOrder  string
}

// FeeSummary aggregates fee amounts and counts by status.
type FeeSummary struct {
	TotalCollected float64 `db:"total_collected" json:"total_collected"`
	TotalPending   float64 `db:"total_pending" json:"total_pending"`
	TotalOverdue   float64 `db:"total_overdue" json:"total_overdue"`
	PaidCount      int     `db:"paid_count" json:"paid_count"`
	PendingCount   int     `db:"pending_count" json:"pending_count"`
	OverdueCount   int     `db:"overdue_count" json:"overdue_count"`
}

// PaymentLink represents a generated payment page for a pending fee.
type PaymentLink struct {
	FeeID       string    `json:"fee_id"`
	OrderID     string    `json:"order_id"`
	Token       string    `json:"token"`
	RedirectURL string    `json:"redirect_url"`
	Amount      float64   `json:"amount"`
	CreatedAt   time.Time `json:"created_at"`
}
