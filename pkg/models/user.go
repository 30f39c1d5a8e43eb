package models

import (
	"slices"
	"strings"
)

// Role names granted to accounts.
const (
	RoleAdmin = "admin"
	RoleUser  = "user"
)

// User is an account record as persisted in the store.
type User struct {
	ID               string   `json:"id"`
	DisplayName      string   `json:"displayName"`
	Email            string   `json:"email"`
	CredentialSecret string   `json:"credentialSecret"` // bcrypt hash; never returned by the API.
	LoginName        string   `json:"loginName"`
	AvatarRef        string   `json:"avatarRef"`
	Roles            []string `json:"roles"`
}

// Profile is the public view of a User returned to clients.
type Profile struct {
	ID          string   `json:"id"`
	DisplayName string   `json:"displayName"`
	Email       string   `json:"email"`
	LoginName   string   `json:"loginName"`
	AvatarRef   string   `json:"avatarRef"`
	Roles       []string `json:"roles"`
}

// Profile strips the credential from u.
func (u User) Profile() Profile {
	return Profile{
		ID:          u.ID,
		DisplayName: u.DisplayName,
		Email:       u.Email,
		LoginName:   u.LoginName,
		AvatarRef:   u.AvatarRef,
		Roles:       RoleSet(u.Roles...),
	}
}

// HasRole reports whether u holds role.
func (u User) HasRole(role string) bool {
	return slices.Contains(u.Roles, role)
}

// RoleSet returns roles sorted and de-duplicated, with blanks removed.
func RoleSet(roles ...string) []string {
	out := make([]string, 0, len(roles))
	for _, r := range roles {
		if r = strings.TrimSpace(r); r != "" {
			out = append(out, r)
		}
	}
	slices.Sort(out)
	return slices.Compact(out)
}
