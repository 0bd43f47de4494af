package auth

import "github.com/golang-jwt/jwt/v5"

// IdentityPayload captures the data available when minting a JWT.
type IdentityPayload struct {
	UID   string
	Email string
	Name  string
	JTI   string
}

// IdentityClaims is the bearer token shape. The subject carries the user id;
// roles are looked up server side and never trusted from the token.
type IdentityClaims struct {
	Email string `json:"email"`
	Name  string `json:"name,omitempty"`
	jwt.RegisteredClaims
}

// UID returns the token subject.
func (c IdentityClaims) UID() string {
	return c.Subject
}
