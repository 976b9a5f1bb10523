package auth

import (
	"testing"

	"github.com/xtxerr/vigil/internal/errors"
)

func TestAuthenticate(t *testing.T) {
	a, err := NewAuthenticator(DefaultKeys())
	if err != nil {
		t.Fatalf("NewAuthenticator: %v", err)
	}

	tests := []struct {
		key     string
		want    Role
		wantErr error
	}{
		{"admin_api_key", RoleAdmin, nil},
		{"user_api_key", RoleUser, nil},
		{"nope", "", errors.ErrNotAuthenticated},
		{"", "", errors.ErrNotAuthenticated},
		{"admin_api_ke", "", errors.ErrNotAuthenticated},
	}

	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			got, err := a.Authenticate(tt.key)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("expected %v, got %v", tt.wantErr, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Authenticate: %v", err)
			}
			if got != tt.want {
				t.Errorf("role = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestAuthorize(t *testing.T) {
	tests := []struct {
		role Role
		perm Permission
		ok   bool
	}{
		{RoleAdmin, PermRead, true},
		{RoleAdmin, PermViewInvalidationReasons, true},
		{RoleUser, PermRead, true},
		{RoleUser, PermViewInvalidationReasons, false},
		{Role("guest"), PermRead, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.role)+"/"+string(tt.perm), func(t *testing.T) {
			err := Authorize(tt.role, tt.perm)
			if tt.ok && err != nil {
				t.Errorf("unexpected error: %v", err)
			}
			if !tt.ok && !errors.Is(err, errors.ErrNotAuthorized) {
				t.Errorf("expected ErrNotAuthorized, got %v", err)
			}
		})
	}
}

func TestNewAuthenticator_Invalid(t *testing.T) {
	tests := []struct {
		name string
		keys map[string]string
		want error
	}{
		{"empty table", map[string]string{}, errors.ErrMissingField},
		{"unknown role", map[string]string{"k": "root"}, errors.ErrInvalidConfig},
		{"empty key", map[string]string{"": "admin"}, errors.ErrInvalidConfig},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewAuthenticator(tt.keys)
			if !errors.Is(err, tt.want) {
				t.Errorf("expected %v, got %v", tt.want, err)
			}
		})
	}
}

func TestRolePermissions(t *testing.T) {
	perms := RoleAdmin.Permissions()
	if len(perms) != 2 {
		t.Fatalf("admin should hold 2 permissions, got %v", perms)
	}
	perms[0] = "mutated"
	if !RoleAdmin.Has(PermRead) {
		t.Error("Permissions() must return a copy")
	}
}
