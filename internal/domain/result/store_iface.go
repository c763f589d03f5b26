package result

import (
	"context"
	"time"
)

// Key identifies one result record.
type Key struct {
	EmployeeID int64
	KpiID      int64
	Period     Period
}

// UnlockSet describes whose approvals the writer may override. The
// store evaluates it inside the conditional write so the lock check and
// the mutation are one atomic statement.
type UnlockSet struct {
	All         bool
	ApproverIDs []int64
}

type StoreAPI interface {
	Get(ctx context.Context, key Key) (*Result, error)
	ListForEmployee(ctx context.Context, employeeID int64, period Period) ([]Result, error)

	// CaptureValue upserts value, grade, score and reason; comment is
	// updated only when non-nil. Returns ErrLocked when the row is
	// approved and the unlock set does not cover the approver.
	CaptureValue(ctx context.Context, key Key, value, grade string, score *float64, reason string, comment *string, unlock UnlockSet) (*Result, error)

	// CaptureComment updates only the comment, leaving any existing
	// value and grade untouched.
	CaptureComment(ctx context.Context, key Key, comment string, unlock UnlockSet) (*Result, error)

	// Approve locks the record, creating it first if absent, and clears
	// pending review fields.
	Approve(ctx context.Context, key Key, approverID int64, now time.Time) (*Result, error)

	// SendToReview reopens the record with a reason, clearing approval.
	SendToReview(ctx context.Context, key Key, requesterID int64, reason string, now time.Time) (*Result, error)

	// EmployeesInPositions lists employee ids holding any of the given
	// positions.
	EmployeesInPositions(ctx context.Context, positionIDs []int64) ([]int64, error)
}
