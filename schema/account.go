package schema

import (
	"fmt"
	"time"
)

const (
	ProfileCollection = "profile"
)

// UserRole gates what a principal may do. It is a closed set; anything
// else is rejected at the boundary by ParseUserRole.
type UserRole string

const (
	RoleCitizen UserRole = "citizen"
	RoleOfficer UserRole = "officer"
	RoleAdmin   UserRole = "admin"
)

// ParseUserRole validates a role string coming from the outside.
func ParseUserRole(s string) (UserRole, error) {
	switch UserRole(s) {
	case RoleCitizen, RoleOfficer, RoleAdmin:
		return UserRole(s), nil
	}
	return "", fmt.Errorf("unknown user role: %q", s)
}

// UserProfile - registration data of a principal
type UserProfile struct {
	Principal string    `json:"principal" bson:"principal"`
	Name      string    `json:"name" bson:"name"`
	Mobile    string    `json:"mobile" bson:"mobile"`
	Role      UserRole  `json:"role" bson:"role"`
	CreatedAt time.Time `json:"created_at" bson:"created_at"`
}
