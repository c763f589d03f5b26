package result

import "time"

// Lifecycle states derived from the approval and review fields. There
// is no terminal state; a record can cycle between these indefinitely.
const (
	StateOpen     = "OPEN"
	StateApproved = "APPROVED"
	StateInReview = "IN_REVIEW"
)

// Period identifies one monthly reporting cycle.
type Period struct {
	Year  int `json:"year"`
	Month int `json:"month"`
}

func (p Period) Valid() bool {
	return p.Year >= 2000 && p.Year <= 2200 && p.Month >= 1 && p.Month <= 12
}

// Result is one row per (employee, kpi, year, month).
type Result struct {
	ID                int64      `json:"id"`
	EmployeeID        int64      `json:"employeeId"`
	KpiID             int64      `json:"kpiId"`
	Year              int        `json:"year"`
	Month             int        `json:"month"`
	Value             *string    `json:"value"`
	Grade             string     `json:"grade"`
	Score             *float64   `json:"score"`
	Reason            string     `json:"reason,omitempty"`
	Comment           string     `json:"comment"`
	Approved          bool       `json:"approved"`
	ApprovedBy        *int64     `json:"approvedBy,omitempty"`
	ApprovedAt        *time.Time `json:"approvedAt,omitempty"`
	ReviewRequestedBy *int64     `json:"reviewRequestedBy,omitempty"`
	ReviewRequestedAt *time.Time `json:"reviewRequestedAt,omitempty"`
	ReviewReason      *string    `json:"reviewReason,omitempty"`
	CreatedAt         time.Time  `json:"createdAt"`
	UpdatedAt         time.Time  `json:"updatedAt"`
}

// State reports where the record sits in the approval lifecycle.
func (r *Result) State() string {
	if r == nil {
		return StateOpen
	}
	if r.Approved {
		return StateApproved
	}
	if r.ReviewRequestedAt != nil {
		return StateInReview
	}
	return StateOpen
}
