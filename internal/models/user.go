package models

import "time"

// UserRole represents the available roles for the RBAC system.
type UserRole string

const (
	RoleAdmin   UserRole = "ADMIN"
	RolePlanner UserRole = "PLANNER"
	RoleViewer  UserRole = "VIEWER"
)

// Valid reports whether the role is one of the known three.
func (r UserRole) Valid() bool {
	switch r {
	case RoleAdmin, RolePlanner, RoleViewer:
		return true
	}
	return false
}

// User represents an application account stored in the snapshot.
type User struct {
	ID           string     `json:"id"`
	Email        string     `json:"email"`
	PasswordHash string     `json:"password_hash"`
	FullName     string     `json:"full_name"`
	Role         UserRole   `json:"role"`
	Active       bool       `json:"active"`
	LastLogin    *time.Time `json:"last_login,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// Pagination contains pagination metadata returned in list responses.
type Pagination struct {
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	TotalCount int `json:"total_count"`
}
