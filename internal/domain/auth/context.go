package auth

// UserContext is the authenticated identity carried on the request
// context by the transport layer.
type UserContext struct {
	UserID    int64
	RoleID    int64
	RoleName  string
	SessionID string
}
