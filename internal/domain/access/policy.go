package access

import (
	"context"

	"kpitrack/internal/domain/auth"
	"kpitrack/internal/domain/org"
)

// Requester identifies the actor behind a request. EmployeeID and
// PositionID are zero when the user has no employee record.
type Requester struct {
	EmployeeID int64
	UserID     int64
	Role       string
	PositionID int64
}

// PositionResolver maps an employee to their position id (0 when the
// employee holds no position). The persistence layer supplies it.
type PositionResolver interface {
	PositionOfEmployee(ctx context.Context, employeeID int64) (int64, error)
}

// Policy evaluates hierarchy-based access against one org snapshot.
// Build a new Policy per request; snapshots are never reused across
// requests.
type Policy struct {
	Snap    *org.Snapshot
	Resolve PositionResolver
}

func New(snap *org.Snapshot, resolve PositionResolver) *Policy {
	return &Policy{Snap: snap, Resolve: resolve}
}

// CanAccessEmployeeTree reports whether the requester may act on the
// target employee's results: self, elevated role, or the target's
// position sits anywhere under the requester's position.
func (p *Policy) CanAccessEmployeeTree(ctx context.Context, requester Requester, targetEmployeeID int64) (bool, error) {
	if auth.IsElevated(requester.Role) {
		return true, nil
	}
	if requester.EmployeeID != 0 && requester.EmployeeID == targetEmployeeID {
		return true, nil
	}
	if requester.PositionID == 0 {
		return false, nil
	}
	targetPosition, err := p.Resolve.PositionOfEmployee(ctx, targetEmployeeID)
	if err != nil {
		return false, err
	}
	if targetPosition == 0 {
		return false, nil
	}
	return p.Snap.IsSubordinate(requester.PositionID, targetPosition), nil
}

// IsDirectBoss reports whether the requester's position is exactly one
// level above the target employee's position.
func (p *Policy) IsDirectBoss(ctx context.Context, requester Requester, targetEmployeeID int64) (bool, error) {
	if auth.IsElevated(requester.Role) {
		return true, nil
	}
	if requester.PositionID == 0 {
		return false, nil
	}
	targetPosition, err := p.Resolve.PositionOfEmployee(ctx, targetEmployeeID)
	if err != nil {
		return false, err
	}
	position, ok := p.Snap.Position(targetPosition)
	if !ok {
		return false, nil
	}
	return position.ReportsTo == requester.PositionID, nil
}

// HasNoDirectBoss reports whether the employee's position is a root of
// the hierarchy, meaning the employee self-approves.
func (p *Policy) HasNoDirectBoss(ctx context.Context, employeeID int64) (bool, error) {
	positionID, err := p.Resolve.PositionOfEmployee(ctx, employeeID)
	if err != nil {
		return false, err
	}
	position, ok := p.Snap.Position(positionID)
	if !ok {
		return false, nil
	}
	return position.ReportsTo == 0, nil
}
