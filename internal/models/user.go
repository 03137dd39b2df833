package models

// UserRole represents the available roles for the RBAC system.
type UserRole string

const (
	RoleSuperAdmin UserRole = "SUPERADMIN"
	RoleAdmin      UserRole = "ADMIN"
	RoleModerator  UserRole = "MODERATOR"
	RoleStudent    UserRole = "STUDENT"
)

// IsStaff reports whether the role manages jobs and applications for a college.
func (r UserRole) IsStaff() bool {
	switch r {
	case RoleSuperAdmin, RoleAdmin, RoleModerator:
		return true
	}
	return false
}

// Pagination contains pagination metadata returned in list responses.
type Pagination struct {
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	TotalCount int `json:"total_count"`
}

// Normalize clamps page parameters to sane bounds.
func Normalize(page, size int) (int, int) {
	if page <= 0 {
		page = 1
	}
	if size <= 0 {
		size = 20
	}
	if size > 100 {
		size = 100
	}
	return page, size
}
