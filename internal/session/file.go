package session

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/stageboard/stageboard/internal/models"
)

// File persists the user as JSON at a fixed path.
type File struct {
	path string
}

// NewFile returns a session stored at path.
func NewFile(path string) *File {
	return &File{path: path}
}

// Path returns the session file location.
func (f *File) Path() string { return f.path }

func (f *File) Get() (*models.User, error) {
	data, err := os.ReadFile(f.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("session: read %s: %w", f.path, err)
	}
	var u models.User
	if err := json.Unmarshal(data, &u); err != nil {
		return nil, fmt.Errorf("session: decode %s: %w", f.path, err)
	}
	return &u, nil
}

func (f *File) Set(u *models.User) error {
	if u == nil {
		return f.Clear()
	}
	data, err := json.MarshalIndent(u, "", "  ")
	if err != nil {
		return fmt.Errorf("session: encode: %w", err)
	}
	if dir := filepath.Dir(f.path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("session: create dir: %w", err)
		}
	}
	if err := os.WriteFile(f.path, data, 0600); err != nil {
		return fmt.Errorf("session: write %s: %w", f.path, err)
	}
	return nil
}

func (f *File) Clear() error {
	if err := os.Remove(f.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("session: remove %s: %w", f.path, err)
	}
	return nil
}
