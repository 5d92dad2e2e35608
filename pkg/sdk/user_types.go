package sdk

import (
	"strings"

	"github.com/google/uuid"
)

// Role is a user's role as stored by the backend.
type Role string

const (
	RolePhysician Role = "physician"
	RoleStaff     Role = "staff"
	RoleAdmin     Role = "admin"
)

// Roles lists every valid role in display order.
var Roles = []Role{RolePhysician, RoleStaff, RoleAdmin}

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RolePhysician, RoleStaff, RoleAdmin:
		return true
	}
	return false
}

// Label returns the title-cased role name.
func (r Role) Label() string {
	switch r {
	case RolePhysician:
		return "Physician"
	case RoleStaff:
		return "Staff"
	case RoleAdmin:
		return "Admin"
	}
	return ""
}

// ParseRole normalizes a role name. The backend stores roles lower-cased.
func ParseRole(s string) (Role, error) {
	r := Role(strings.ToLower(strings.TrimSpace(s)))
	if !r.Valid() {
		return "", invalidArgument("unknown role %q (expected physician, staff or admin)", s)
	}
	return r, nil
}

// User is a backend user account. The same shape is returned by /auth/me and /users.
type User struct {
	ID        uuid.UUID  `json:"userID"`
	FirstName string     `json:"firstName"`
	LastName  string     `json:"lastName"`
	Email     string     `json:"email"`
	Role      Role       `json:"role"`
	LastLogin *Timestamp `json:"lastLogin,omitempty"`
}

// FullName joins the first and last name.
func (u User) FullName() string {
	return strings.TrimSpace(u.FirstName + " " + u.LastName)
}

// UserInput is the payload for creating a user.
type UserInput struct {
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Email     string `json:"email"`
	Role      Role   `json:"role"`
	Password  string `json:"password,omitempty"`
}

// UserForm is the editable subset of a user, used as a diff snapshot.
type UserForm struct {
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Email     string `json:"email"`
	Role      Role   `json:"role"`
}

// UserFormFrom snapshots the editable fields of u.
func UserFormFrom(u User) UserForm {
	return UserForm{
		FirstName: u.FirstName,
		LastName:  u.LastName,
		Email:     u.Email,
		Role:      u.Role,
	}
}
