package auth

import "strings"

// Role is an RBAC role carried in JWT claims.
type Role string

const (
	RoleAdmin    Role = "admin"
	RoleOperator Role = "operator"
	RoleViewer   Role = "viewer"
)

// NormalizeRole maps a raw claim value to a known role.
func NormalizeRole(raw string) (Role, bool) {
	switch Role(strings.ToLower(strings.TrimSpace(raw))) {
	case RoleAdmin:
		return RoleAdmin, true
	case RoleOperator:
		return RoleOperator, true
	case RoleViewer:
		return RoleViewer, true
	}
	return "", false
}

// Allows reports whether the held role satisfies the required role.
// Admin covers operator, operator covers viewer.
func (r Role) Allows(required Role) bool {
	rank := func(role Role) int {
		switch role {
		case RoleAdmin:
			return 3
		case RoleOperator:
			return 2
		case RoleViewer:
			return 1
		}
		return 0
	}
	return rank(r) >= rank(required) && rank(required) > 0
}
