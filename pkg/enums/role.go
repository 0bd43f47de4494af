package enums

import (
	"fmt"
	"strings"
)

// Role is the application-level permissions role stored on a user profile.
type Role string

const (
	RoleSuperAdmin Role = "Super Admin"
	RoleAdmin      Role = "Admin"
	RoleBasicUser  Role = "Basic User"
)

var validRoles = []Role{
	RoleSuperAdmin,
	RoleAdmin,
	RoleBasicUser,
}

var capabilitiesByRole = map[Role][]Capability{
	RoleBasicUser:  {CapabilityView, CapabilityCreate},
	RoleAdmin:      {CapabilityView, CapabilityCreate, CapabilityApprove},
	RoleSuperAdmin: {CapabilityView, CapabilityCreate, CapabilityApprove, CapabilityAdminister},
}

// String implements fmt.Stringer.
func (r Role) String() string {
	return string(r)
}

// IsValid reports whether the value is a known Role.
func (r Role) IsValid() bool {
	for _, candidate := range validRoles {
		if candidate == r {
			return true
		}
	}
	return false
}

// IsAdmin reports whether the role sees every user's data.
func (r Role) IsAdmin() bool {
	return r == RoleAdmin || r == RoleSuperAdmin
}

// Can reports whether the role grants the capability.
func (r Role) Can(c Capability) bool {
	for _, granted := range capabilitiesByRole[r] {
		if granted == c {
			return true
		}
	}
	return false
}

// ParseRole converts raw input into a Role. Matching ignores case and
// surrounding whitespace since roles are often typed by hand into the sheet.
func ParseRole(value string) (Role, error) {
	clean := strings.TrimSpace(value)
	for _, candidate := range validRoles {
		if strings.EqualFold(string(candidate), clean) {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid role %q", value)
}

// Capabilities lists what the role grants, in ascending order of privilege.
func (r Role) Capabilities() []Capability {
	granted := capabilitiesByRole[r]
	out := make([]Capability, len(granted))
	copy(out, granted)
	return out
}
