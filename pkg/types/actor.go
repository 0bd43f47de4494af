package types

import (
	"strings"

	"github.com/angelmondragon/miyf-books/pkg/enums"
)

// Actor is the resolved caller of a request.
type Actor struct {
	UID   string     `json:"uid"`
	Email string     `json:"email"`
	Name  string     `json:"name"`
	Role  enums.Role `json:"role"`
}

func (a Actor) Can(c enums.Capability) bool {
	return a.Role.Can(c)
}

// DisplayName prefers the profile name and falls back to the email.
func (a Actor) DisplayName() string {
	if name := strings.TrimSpace(a.Name); name != "" {
		return name
	}
	return a.Email
}

// Owns reports whether the actor authored a row stamped with createdBy.
func (a Actor) Owns(createdBy string) bool {
	return a.Email != "" && strings.EqualFold(strings.TrimSpace(createdBy), a.Email)
}
