package auth

const (
	RoleAdmin   = "admin"
	RoleManager = "manager"
	RoleUser    = "user"
)

// RoleClass collapses the role set into the two classes the access
// checks actually distinguish. Elevated roles bypass hierarchy-based
// checks everywhere.
type RoleClass int

const (
	RoleStandard RoleClass = iota
	RoleElevated
)

func ClassifyRole(role string) RoleClass {
	switch role {
	case RoleAdmin, RoleManager:
		return RoleElevated
	default:
		return RoleStandard
	}
}

func IsElevated(role string) bool {
	return ClassifyRole(role) == RoleElevated
}

func ValidRole(role string) bool {
	switch role {
	case RoleAdmin, RoleManager, RoleUser:
		return true
	}
	return false
}
