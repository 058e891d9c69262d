package models

import (
	"encoding/json"
	"strings"
)

// Identity is the authenticated user as returned by the auth endpoints.
type Identity struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name,omitempty"`
	Role  string `json:"role,omitempty"`
}

// Valid reports whether the identity carries anything that identifies a user.
func (i Identity) Valid() bool {
	return strings.TrimSpace(i.ID) != "" || strings.TrimSpace(i.Email) != ""
}

// Session pairs an identity with its bearer credential. Either both are
// present or neither is.
type Session struct {
	Identity *Identity `json:"user,omitempty"`
	Token    string    `json:"-"`
}

// Authenticated reports whether the session holds a usable credential.
func (s Session) Authenticated() bool {
	return s.Identity != nil && s.Token != ""
}

// Credentials is the login/register request body.
type Credentials struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=6"`
	Name     string `json:"name,omitempty"`
}

// AuthResponse is returned by /auth/login and /auth/register.
type AuthResponse struct {
	User  Identity `json:"user"`
	Token string   `json:"token"`
}

// UnmarshalJSON accepts numeric user ids as well as strings.
func (i *Identity) UnmarshalJSON(b []byte) error {
	type plain Identity
	var raw struct {
		plain
		ID json.RawMessage `json:"id"`
	}
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	*i = Identity(raw.plain)
	i.ID = rawID(raw.ID)
	return nil
}
