package enums

import "fmt"

// UserRole is carried in access tokens.
type UserRole string

const (
	UserRoleDriver UserRole = "driver"
	UserRoleAdmin  UserRole = "admin"
)

// IsValid reports whether the value is known.
func (r UserRole) IsValid() bool {
	return r == UserRoleDriver || r == UserRoleAdmin
}

// ParseUserRole converts raw input into a UserRole.
func ParseUserRole(value string) (UserRole, error) {
	role := UserRole(value)
	if !role.IsValid() {
		return "", fmt.Errorf("invalid user role %q", value)
	}
	return role, nil
}
