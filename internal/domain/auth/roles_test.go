package auth

import "testing"

func TestClassifyRole(t *testing.T) {
	if !IsElevated(RoleAdmin) {
		t.Fatal("expected admin to be elevated")
	}
	if !IsElevated(RoleManager) {
		t.Fatal("expected manager to be elevated")
	}
	if IsElevated(RoleUser) {
		t.Fatal("did not expect user to be elevated")
	}
	if IsElevated("") || IsElevated("intern") {
		t.Fatal("unknown roles must classify as standard")
	}
}

func TestRolePermissionsCoverResultOperations(t *testing.T) {
	for _, role := range []string{RoleUser, RoleManager, RoleAdmin} {
		perms := RolePermissions[role]
		if !contains(perms, PermResultsCapture) {
			t.Fatalf("role %s missing capture permission", role)
		}
	}
	if contains(RolePermissions[RoleUser], PermResultsReview) {
		t.Fatal("standard users must not hold the review permission")
	}
}

func contains(values []string, want string) bool {
	for _, v := range values {
		if v == want {
			return true
		}
	}
	return false
}
