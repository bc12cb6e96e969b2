package entity

import (
	"fmt"
	"strings"
)

// Role is the coarse authorization group a user belongs to
type Role string

const (
	RoleAdmin      Role = "ADMIN"
	RoleManager    Role = "MANAGER"
	RoleCaseworker Role = "CASEWORKER"
	RoleClerk      Role = "CLERK"
)

// roleAliases maps older role names onto the canonical set
var roleAliases = map[string]Role{
	"CHAIR": RoleManager,
	"USER":  RoleCaseworker,
}

// Permission is a single capability checked once per action
type Permission string

const (
	PermCreateCase   Permission = "case:create"
	PermAssignCase   Permission = "case:assign"
	PermReviewCase   Permission = "case:review"
	PermWorkCase     Permission = "case:work"
	PermViewAllCases Permission = "case:view_all"
	PermManageUsers  Permission = "user:manage"
)

var rolePermissions = map[Role]map[Permission]bool{
	RoleAdmin: {
		PermCreateCase:   true,
		PermAssignCase:   true,
		PermReviewCase:   true,
		PermViewAllCases: true,
		PermManageUsers:  true,
	},
	RoleManager: {
		PermCreateCase:   true,
		PermAssignCase:   true,
		PermReviewCase:   true,
		PermViewAllCases: true,
	},
	RoleClerk: {
		PermCreateCase:   true,
		PermViewAllCases: true,
	},
	RoleCaseworker: {
		PermWorkCase: true,
	},
}

// IsValid returns true if the role is one of the canonical roles
func (r Role) IsValid() bool {
	_, ok := rolePermissions[r]
	return ok
}

// Can reports whether the role carries the permission
func (r Role) Can(p Permission) bool {
	return rolePermissions[r][p]
}

// Permissions returns the capability set of the role
func (r Role) Permissions() []Permission {
	perms := make([]Permission, 0, len(rolePermissions[r]))
	for p := range rolePermissions[r] {
		perms = append(perms, p)
	}
	return perms
}

// ParseRole accepts canonical names and their aliases (CHAIR, USER)
func ParseRole(raw string) (Role, error) {
	name := strings.ToUpper(strings.TrimSpace(raw))
	if alias, ok := roleAliases[name]; ok {
		return alias, nil
	}
	r := Role(name)
	if !r.IsValid() {
		return "", fmt.Errorf("invalid role: %s", raw)
	}
	return r, nil
}

// User is the read-only identity view the engine consumes
type User struct {
	ID          string `json:"id" yaml:"id"`
	DisplayName string `json:"display_name" yaml:"display_name"`
	Email       string `json:"email,omitempty" yaml:"email"`
	Role        Role   `json:"role" yaml:"role"`
	Active      bool   `json:"active" yaml:"active"`
}

// Can reports whether the user is active and their role carries the permission
func (u *User) Can(p Permission) bool {
	return u != nil && u.Active && u.Role.Can(p)
}
