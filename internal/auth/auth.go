// Package auth maps API keys to roles and roles to permissions.
package auth

import (
	"crypto/subtle"
	"fmt"
	"sort"

	"github.com/xtxerr/vigil/config"
	"github.com/xtxerr/vigil/internal/errors"
)

// Role is a caller role.
type Role string

const (
	RoleAdmin Role = "admin"
	RoleUser  Role = "user"
)

// Permission names an action a role may perform.
type Permission string

const (
	PermRead                    Permission = "read"
	PermViewInvalidationReasons Permission = "view_invalidation_reasons"
)

// permissions is the static role table.
var permissions = map[Role][]Permission{
	RoleAdmin: {PermRead, PermViewInvalidationReasons},
	RoleUser:  {PermRead},
}

// ParseRole parses a role name.
func ParseRole(s string) (Role, error) {
	r := Role(s)
	if _, ok := permissions[r]; !ok {
		return "", errors.NewValidation("role", fmt.Sprintf("unknown role %q", s))
	}
	return r, nil
}

// Permissions returns the permissions granted to r.
func (r Role) Permissions() []Permission {
	return append([]Permission(nil), permissions[r]...)
}

// Has reports whether r holds p.
func (r Role) Has(p Permission) bool {
	for _, held := range permissions[r] {
		if held == p {
			return true
		}
	}
	return false
}

// DefaultKeys returns the development key table.
func DefaultKeys() map[string]string {
	return map[string]string{
		config.DefaultAdminAPIKey: string(RoleAdmin),
		config.DefaultUserAPIKey:  string(RoleUser),
	}
}

// Authenticator resolves API keys to roles.
type Authenticator struct {
	keys []keyEntry
}

type keyEntry struct {
	key  []byte
	role Role
}

// NewAuthenticator builds an Authenticator from a key → role table.
func NewAuthenticator(keys map[string]string) (*Authenticator, error) {
	v := errors.NewValidationErrors()
	a := &Authenticator{}

	names := make([]string, 0, len(keys))
	for k := range keys {
		names = append(names, k)
	}
	sort.Strings(names)

	for _, k := range names {
		if k == "" {
			v.AddField("auth.keys", "empty key")
			continue
		}
		role, err := ParseRole(keys[k])
		if err != nil {
			v.Add(err)
			continue
		}
		a.keys = append(a.keys, keyEntry{key: []byte(k), role: role})
	}
	if len(a.keys) == 0 && !v.HasErrors() {
		v.AddMissing("auth.keys")
	}
	if err := v.Err(); err != nil {
		return nil, err
	}
	return a, nil
}

// Authenticate returns the role for key. An unknown or empty key fails
// with ErrNotAuthenticated. Every entry is compared in constant time.
func (a *Authenticator) Authenticate(key string) (Role, error) {
	var found Role
	if key != "" {
		given := []byte(key)
		for _, e := range a.keys {
			if subtle.ConstantTimeCompare(given, e.key) == 1 {
				found = e.role
			}
		}
	}
	if found == "" {
		return "", fmt.Errorf("invalid API key: %w", errors.ErrNotAuthenticated)
	}
	return found, nil
}

// Authorize fails with ErrNotAuthorized unless role holds p.
func Authorize(role Role, p Permission) error {
	if !role.Has(p) {
		return fmt.Errorf("role %s lacks %s: %w", role, p, errors.ErrNotAuthorized)
	}
	return nil
}
