package users

import (
	"strings"

	"github.com/angelmondragon/miyf-books/pkg/enums"
	"github.com/angelmondragon/miyf-books/pkg/types"
)

// Profile is one row of the users sheet.
type Profile struct {
	UID       string           `json:"uid"`
	Email     string           `json:"email"`
	Name      string           `json:"name"`
	Role      enums.Role       `json:"role"`
	Status    enums.UserStatus `json:"status"`
	CreatedAt string           `json:"createdAt"`
}

// Identity is the verified bearer identity handed over by the auth middleware.
type Identity struct {
	UID   string
	Email string
	Name  string
}

// Actor converts the profile into the request caller, filling gaps from the
// token identity.
func (p Profile) Actor(id Identity) types.Actor {
	actor := types.Actor{UID: p.UID, Email: p.Email, Name: p.Name, Role: p.Role}
	if actor.Email == "" {
		actor.Email = normalizeEmail(id.Email)
	}
	if actor.Name == "" {
		actor.Name = strings.TrimSpace(id.Name)
	}
	return actor
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
