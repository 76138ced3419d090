package auth

import (
	"errors"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Identity is the signed-in account as reported by the auth service.
type Identity struct {
	UserID       string    `json:"user_id" yaml:"user_id"`
	Email        string    `json:"email" yaml:"email"`
	AccessToken  string    `json:"-" yaml:"access_token"`
	RefreshToken string    `json:"-" yaml:"refresh_token,omitempty"`
	ExpiresAt    time.Time `json:"expires_at,omitempty" yaml:"expires_at,omitempty"`
}

func (i *Identity) Expired(now time.Time) bool {
	return !i.ExpiresAt.IsZero() && now.After(i.ExpiresAt)
}

func SaveIdentity(path string, id *Identity) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return err
	}
	b, err := yaml.Marshal(id)
	if err != nil {
		return err
	}
	return os.WriteFile(path, b, 0o600)
}

// LoadIdentity returns nil, nil when no identity has been saved.
func LoadIdentity(path string) (*Identity, error) {
	b, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var id Identity
	if err := yaml.Unmarshal(b, &id); err != nil {
		return nil, err
	}
	if id.UserID == "" {
		return nil, nil
	}
	return &id, nil
}

func ClearIdentity(path string) error {
	err := os.Remove(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return err
}
