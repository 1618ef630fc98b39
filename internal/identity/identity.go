// Package identity persists the client token that the server uses to tell
// installations apart.
package identity

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/bytedance/sonic"
	"github.com/google/uuid"
)

const (
	appDir   = "invitelink"
	fileName = "config.json"
)

// Identity is the content of the identity file.
type Identity struct {
	UUID string `json:"uuid"`
}

// Generate returns a fresh random identity.
func Generate() Identity {
	return Identity{UUID: uuid.NewString()}
}

// DefaultPath returns the identity file location under the user config directory.
func DefaultPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("locate config directory: %w", err)
	}
	return filepath.Join(dir, appDir, fileName), nil
}

// LoadOrCreate reads the identity at path. When the file does not exist a new
// identity is produced by gen and written there.
func LoadOrCreate(path string, gen func() Identity) (*Identity, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return create(path, gen)
	}
	if err != nil {
		return nil, fmt.Errorf("read identity: %w", err)
	}

	var id Identity
	if err := sonic.Unmarshal(data, &id); err != nil {
		return nil, fmt.Errorf("parse identity %s: %w", path, err)
	}
	if _, err := uuid.Parse(id.UUID); err != nil {
		return nil, fmt.Errorf("identity %s: invalid uuid %q: %w", path, id.UUID, err)
	}
	return &id, nil
}

func create(path string, gen func() Identity) (*Identity, error) {
	if gen == nil {
		gen = Generate
	}
	id := gen()

	data, err := sonic.Marshal(id)
	if err != nil {
		return nil, fmt.Errorf("encode identity: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("create identity directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return nil, fmt.Errorf("write identity: %w", err)
	}
	return &id, nil
}
