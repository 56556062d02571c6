package credentials

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
)

const (
	filePerms = 0o600
	dirPerms  = 0o700
)

type fsAuth struct {
	Tokens Record `json:"tokens"`
}

// FSStore keeps the credential record in a JSON file.
type FSStore struct {
	Path string

	mu sync.Mutex
}

func NewFSStore(path string) *FSStore {
	return &FSStore{Path: path}
}

func (f *FSStore) Read(_ context.Context) (*Record, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	b, err := os.ReadFile(f.Path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read credentials file: %w", err)
	}

	var a fsAuth
	if err := json.Unmarshal(b, &a); err != nil {
		return nil, fmt.Errorf("failed to parse credentials file: %w", err)
	}
	if a.Tokens.AccessToken == "" {
		return nil, nil
	}

	rec := a.Tokens
	return &rec, nil
}

// Write replaces the credentials file atomically (temp file + rename) with
// owner-only permissions, creating the parent directory when needed.
func (f *FSStore) Write(_ context.Context, rec Record) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	data, err := json.MarshalIndent(fsAuth{Tokens: rec}, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal credentials: %w", err)
	}

	if err := EnsureParentDir(f.Path); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(filepath.Dir(f.Path), ".credentials-*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmp.Name()

	success := false
	defer func() {
		if !success {
			_ = os.Remove(tmpPath)
		}
	}()

	if err := os.Chmod(tmpPath, filePerms); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to set credentials file permissions: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write credentials file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to sync credentials file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close credentials file: %w", err)
	}
	if err := os.Rename(tmpPath, f.Path); err != nil {
		return fmt.Errorf("failed to replace credentials file: %w", err)
	}

	success = true
	return nil
}

// Clear removes the credentials file. A missing file is not an error.
func (f *FSStore) Clear(_ context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := os.Remove(f.Path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to remove credentials file: %w", err)
	}
	return nil
}
