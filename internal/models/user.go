package models

import (
	"strings"
	"time"

	"github.com/lib/pq"
)

// UserRole is the single role attribute carried by every principal.
type UserRole string

const (
	RoleAdministrator UserRole = "administrator"
	RoleTeacher       UserRole = "teacher"
	RoleStudent       UserRole = "student"
	// RoleNone marks a principal whose role could not be resolved.
	RoleNone UserRole = "none"
)

// Roles lists the assignable roles.
var Roles = []UserRole{RoleAdministrator, RoleTeacher, RoleStudent}

// User represents an application user stored in the users table.
type User struct {
	ID           string     `db:"id" json:"id"`
	Email        string     `db:"email" json:"email"`
	PasswordHash string     `db:"password_hash" json:"-"`
	FirstName    string     `db:"first_name" json:"first_name"`
	LastName     string     `db:"last_name" json:"last_name"`
	Role         UserRole   `db:"role" json:"role"`
	Active       bool       `db:"active" json:"active"`
	LastLogin    *time.Time `db:"last_login" json:"last_login,omitempty"`
	CreatedAt    time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time  `db:"updated_at" json:"updated_at"`
}

// FullName joins first and last name.
func (u User) FullName() string {
	return strings.TrimSpace(u.FirstName + " " + u.LastName)
}

// Profile holds the role specific data owned by exactly one user.
type Profile struct {
	ID           string         `db:"id" json:"id"`
	UserID       string         `db:"user_id" json:"user_id"`
	Code         *string        `db:"code" json:"code,omitempty"`
	Phone        *string        `db:"phone" json:"phone,omitempty"`
	RFC          *string        `db:"rfc" json:"rfc,omitempty"`
	CURP         *string        `db:"curp" json:"curp,omitempty"`
	BirthDate    *time.Time     `db:"birth_date" json:"birth_date,omitempty"`
	Age          *int           `db:"age" json:"age,omitempty"`
	Occupation   *string        `db:"occupation" json:"occupation,omitempty"`
	Cubicle      *string        `db:"cubicle" json:"cubicle,omitempty"`
	ResearchArea *string        `db:"research_area" json:"research_area,omitempty"`
	Subjects     pq.StringArray `db:"subjects" json:"subjects"`
	CreatedAt    time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time      `db:"updated_at" json:"updated_at"`
}

// UserWithProfile couples a principal with its profile.
type UserWithProfile struct {
	User    User     `json:"user"`
	Profile *Profile `json:"profile,omitempty"`
}

// UserFilter captures filtering criteria for listing users.
type UserFilter struct {
	Role     *UserRole
	Search   string
	Page     int
	PageSize int
}

// UserTotals counts active principals per role.
type UserTotals struct {
	Administrators int `db:"administrators" json:"administrators"`
	Teachers       int `db:"teachers" json:"teachers"`
	Students       int `db:"students" json:"students"`
}

// Pagination contains pagination metadata returned in list responses.
type Pagination struct {
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	TotalCount int `json:"total_count"`
}
