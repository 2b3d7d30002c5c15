package auth

import "errors"

// Role is the authorisation tier carried in an operator token.
type Role string

const (
	// RoleViewer may subscribe to the event stream.
	RoleViewer Role = "viewer"

	// RoleOperator may additionally probe and remove devices.
	RoleOperator Role = "operator"
)

// ValidRoles is the set of roles a token may carry.
var ValidRoles = []Role{RoleViewer, RoleOperator}

// IsValidRole returns true if r is one of ValidRoles.
func IsValidRole(r Role) bool {
	for _, v := range ValidRoles {
		if r == v {
			return true
		}
	}
	return false
}

// ParseRole converts a string to a Role, rejecting unknown values.
func ParseRole(s string) (Role, error) {
	r := Role(s)
	if !IsValidRole(r) {
		return "", ErrInvalidRole
	}
	return r, nil
}

// Sentinel errors for authentication.
var (
	ErrTokenInvalid = errors.New("auth: invalid token")
	ErrInvalidRole  = errors.New("auth: invalid role")
	ErrForbidden    = errors.New("auth: insufficient permissions")
)
