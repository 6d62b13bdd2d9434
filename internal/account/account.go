// Package account holds the signed-in identity the client screens share. It
// is passed to each screen explicitly.
package account

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"gopkg.in/yaml.v3"

	"onetalk/internal/models"
)

type Account struct {
	mu      sync.RWMutex
	token   string
	profile *models.Profile
}

// SignedIn populates the account after identity resolution.
func (a *Account) SignedIn(token string, p models.Profile) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.token = token
	a.profile = &p
}

// UpdateProfile replaces the cached profile, keeping the token.
func (a *Account) UpdateProfile(p models.Profile) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.token != "" {
		a.profile = &p
	}
}

func (a *Account) SignOut() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.token = ""
	a.profile = nil
}

func (a *Account) Authenticated() bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.token != "" && a.profile != nil
}

func (a *Account) Token() string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.token
}

// Profile returns a copy of the cached profile, or the zero value when signed out.
func (a *Account) Profile() models.Profile {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.profile == nil {
		return models.Profile{}
	}
	return *a.profile
}

// File is what gets persisted between runs. The profile is refetched on start.
type File struct {
	Server string `yaml:"server"`
	Token  string `yaml:"token,omitempty"`
}

// Load reads path. A missing file is not an error.
func Load(path string) (File, error) {
	var f File
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return f, nil
	}
	if err != nil {
		return f, err
	}
	if err := yaml.Unmarshal(data, &f); err != nil {
		return f, fmt.Errorf("parse %s: %w", path, err)
	}
	return f, nil
}

// Save writes f to path with owner-only permissions, since it carries a token.
func Save(path string, f File) error {
	data, err := yaml.Marshal(f)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}

// Clear drops the stored token but keeps the server address.
func Clear(path string) error {
	f, err := Load(path)
	if err != nil {
		return err
	}
	f.Token = ""
	return Save(path, f)
}

// DefaultPath is the config file location under the user's config directory.
func DefaultPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		dir = "."
	}
	return filepath.Join(dir, "onetalk", "account.yaml")
}
