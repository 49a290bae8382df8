package domain

import "fmt"

type Role string

const (
	RoleUser       Role = "user"
	RoleAdmin      Role = "admin"
	RoleSuperadmin Role = "superadmin"
)

// Roles lists every role, lowest privilege first.
var Roles = []Role{RoleUser, RoleAdmin, RoleSuperadmin}

func ParseRole(s string) (Role, error) {
	switch r := Role(s); r {
	case RoleUser, RoleAdmin, RoleSuperadmin:
		return r, nil
	case "":
		return RoleUser, nil
	}
	return "", invalid("role", fmt.Sprintf("unknown role %q", s))
}

func (r Role) Valid() bool {
	switch r {
	case RoleUser, RoleAdmin, RoleSuperadmin:
		return true
	}
	return false
}

// Elevated is true for admin and superadmin.
func (r Role) Elevated() bool {
	return r == RoleAdmin || r == RoleSuperadmin
}
