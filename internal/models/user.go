package models

import "time"

// UserRole represents the roles known to the timetable office.
type UserRole string

const (
	RoleAdmin      UserRole = "ADMIN"
	RoleDispatcher UserRole = "DISPATCHER"
	RoleTeacher    UserRole = "TEACHER"
)

// CanManageSchedules reports whether the role may own generated schedules.
func (r UserRole) CanManageSchedules() bool {
	return r == RoleAdmin || r == RoleDispatcher
}

// User represents an application user stored in the users table.
type User struct {
	ID        string    `db:"id" json:"id"`
	FullName  string    `db:"full_name" json:"full_name"`
	Role      UserRole  `db:"role" json:"role"`
	Active    bool      `db:"active" json:"active"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

