package directory

import "time"

type Branch struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"createdAt"`
}

type Department struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	BranchID  int64     `json:"branchId,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

// Employee occupies at most one position; the hierarchy is resolved at
// the position level, so there is no manager pointer here.
type Employee struct {
	ID         int64     `json:"id"`
	Name       string    `json:"name"`
	Email      string    `json:"email,omitempty"`
	UserID     int64     `json:"userId,omitempty"`
	PositionID int64     `json:"positionId,omitempty"`
	CreatedAt  time.Time `json:"createdAt"`
}
