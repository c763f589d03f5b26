package access

import (
	"context"
	"testing"

	"kpitrack/internal/domain/auth"
	"kpitrack/internal/domain/org"
)

type fakeResolver map[int64]int64

func (f fakeResolver) PositionOfEmployee(_ context.Context, employeeID int64) (int64, error) {
	return f[employeeID], nil
}

// Positions: director(1) <- manager(2) <- cashier(3); employees 10, 20,
// 30 hold them in order.
func testPolicy() *Policy {
	snap := org.BuildSnapshot([]org.Position{
		{ID: 1, Name: "Director"},
		{ID: 2, Name: "Branch Manager", ReportsTo: 1},
		{ID: 3, Name: "Cashier", ReportsTo: 2},
	})
	return New(snap, fakeResolver{10: 1, 20: 2, 30: 3})
}

func TestCanAccessEmployeeTree(t *testing.T) {
	policy := testPolicy()
	ctx := context.Background()

	director := Requester{EmployeeID: 10, Role: auth.RoleUser, PositionID: 1}
	cashier := Requester{EmployeeID: 30, Role: auth.RoleUser, PositionID: 3}

	if ok, err := policy.CanAccessEmployeeTree(ctx, director, 30); err != nil || !ok {
		t.Fatalf("expected director to reach cashier, got %v %v", ok, err)
	}
	if ok, _ := policy.CanAccessEmployeeTree(ctx, cashier, 10); ok {
		t.Fatal("cashier must not reach director")
	}
	if ok, _ := policy.CanAccessEmployeeTree(ctx, cashier, 30); !ok {
		t.Fatal("self access must pass")
	}
}

func TestElevatedRoleBypassesEverything(t *testing.T) {
	policy := testPolicy()
	ctx := context.Background()
	admin := Requester{EmployeeID: 0, Role: auth.RoleAdmin, PositionID: 0}

	if ok, _ := policy.CanAccessEmployeeTree(ctx, admin, 30); !ok {
		t.Fatal("admin must pass tree check")
	}
	if ok, _ := policy.IsDirectBoss(ctx, admin, 30); !ok {
		t.Fatal("admin must pass direct-boss check")
	}
}

func TestIsDirectBossOneLevelOnly(t *testing.T) {
	policy := testPolicy()
	ctx := context.Background()

	manager := Requester{EmployeeID: 20, Role: auth.RoleUser, PositionID: 2}
	director := Requester{EmployeeID: 10, Role: auth.RoleUser, PositionID: 1}

	if ok, _ := policy.IsDirectBoss(ctx, manager, 30); !ok {
		t.Fatal("manager is the cashier's direct boss")
	}
	if ok, _ := policy.IsDirectBoss(ctx, director, 30); ok {
		t.Fatal("director is two levels up, not a direct boss")
	}
}

func TestHasNoDirectBoss(t *testing.T) {
	policy := testPolicy()
	ctx := context.Background()

	if ok, _ := policy.HasNoDirectBoss(ctx, 10); !ok {
		t.Fatal("root position holder has no direct boss")
	}
	if ok, _ := policy.HasNoDirectBoss(ctx, 30); ok {
		t.Fatal("cashier has a direct boss")
	}
	if ok, _ := policy.HasNoDirectBoss(ctx, 99); ok {
		t.Fatal("unknown employee must not report as root")
	}
}

func TestRequesterWithoutPosition(t *testing.T) {
	policy := testPolicy()
	ctx := context.Background()
	floating := Requester{EmployeeID: 40, Role: auth.RoleUser, PositionID: 0}

	if ok, _ := policy.CanAccessEmployeeTree(ctx, floating, 30); ok {
		t.Fatal("positionless requester must not reach others")
	}
	if ok, _ := policy.CanAccessEmployeeTree(ctx, floating, 40); !ok {
		t.Fatal("positionless requester still reaches self")
	}
}
