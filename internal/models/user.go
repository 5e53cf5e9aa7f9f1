package models

import "time"

// UserRole represents the available roles for the RBAC system.
type UserRole string

const (
	RoleHR       UserRole = "hr"
	RoleEmployee UserRole = "employee"
)

// Valid reports whether the role is one the system knows.
func (r UserRole) Valid() bool {
	return r == RoleHR || r == RoleEmployee
}

// User is a login account. Every employee owns exactly one.
type User struct {
	ID           string     `db:"id" json:"id"`
	Email        string     `db:"email" json:"email"`
	PasswordHash string     `db:"password_hash" json:"-"`
	Role         UserRole   `db:"role" json:"role"`
	Active       bool       `db:"active" json:"active"`
	LastLogin    *time.Time `db:"last_login" json:"last_login,omitempty"`
	CreatedAt    time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time  `db:"updated_at" json:"updated_at"`
}

// Pagination contains pagination metadata returned in list responses.
type Pagination struct {
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	TotalCount int `json:"total_count"`
}

// NewPagination normalises page bounds the same way repositories do.
func NewPagination(page, size, total int) *Pagination {
	if page < 1 {
		page = 1
	}
	if size <= 0 || size > 100 {
		size = 20
	}
	return &Pagination{Page: page, PageSize: size, TotalCount: total}
}
