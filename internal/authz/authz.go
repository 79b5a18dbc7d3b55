package authz

import "github.com/Skotchmaster/blog_guard/internal/models"

// Permits reports whether a caller holding role held may act where required
// is needed. Every role satisfies User; Author needs Author or Admin; Admin
// needs Admin. Out-of-range roles are denied.
func Permits(held, required models.Role) bool {
	if !held.Valid() {
		return false
	}
	switch required {
	case models.RoleUser:
		return true
	case models.RoleAuthor:
		return held == models.RoleAuthor || held == models.RoleAdmin
	case models.RoleAdmin:
		return held == models.RoleAdmin
	default:
		return false
	}
}
