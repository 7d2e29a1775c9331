// Package storage persists visitor profiles between runs, either on the
// local filesystem or in an S3-compatible archive.
package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/trafficsim/backend/internal/domain/traffic"
)

// stateFileName is the snapshot file kept inside each profile directory
const stateFileName = "state.json"

// Ensure FileProfileStore implements traffic.ProfileStore
var _ traffic.ProfileStore = (*FileProfileStore)(nil)

// FileProfileStore keeps visitor profiles on the local filesystem, one
// directory per profile with the storage snapshot at
// <dir>/<profile_id>/state.json. It is the default backend.
type FileProfileStore struct {
	dir string
}

// NewFileProfileStore creates a filesystem-backed profile store rooted
// at dir. The directory is created on first save, not here, so a
// read-only deployment can still list an empty store.
func NewFileProfileStore(dir string) (*FileProfileStore, error) {
	if dir == "" {
		return nil, errors.New("profile directory is required")
	}
	return &FileProfileStore{dir: dir}, nil
}

// List returns the ids of every stored profile. A missing root
// directory means no profiles have been saved yet.
func (s *FileProfileStore) List(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("listing profiles: %w", err)
	}
	ids := make([]string, 0, len(entries))
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		if _, err := os.Stat(filepath.Join(s.dir, entry.Name(), stateFileName)); err != nil {
			continue
		}
		ids = append(ids, entry.Name())
	}
	return ids, nil
}

// Load reads the stored snapshot for the given profile id.
func (s *FileProfileStore) Load(ctx context.Context, id string) (*traffic.Profile, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := validateProfileID(id); err != nil {
		return nil, err
	}
	state, err := os.ReadFile(filepath.Join(s.dir, id, stateFileName))
	if err != nil {
		return nil, fmt.Errorf("loading profile %s: %w", id, err)
	}
	return &traffic.Profile{ID: id, StorageState: state}, nil
}

// Save writes the profile snapshot, replacing any previous state for
// the same id. The write goes through a temp file and a rename so a
// crash never leaves a truncated snapshot behind.
func (s *FileProfileStore) Save(ctx context.Context, profile *traffic.Profile) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if profile == nil {
		return errors.New("profile is required")
	}
	if err := validateProfileID(profile.ID); err != nil {
		return err
	}
	profileDir := filepath.Join(s.dir, profile.ID)
	if err := os.MkdirAll(profileDir, 0o755); err != nil {
		return fmt.Errorf("creating profile directory: %w", err)
	}
	tmp, err := os.CreateTemp(profileDir, stateFileName+".*")
	if err != nil {
		return fmt.Errorf("saving profile %s: %w", profile.ID, err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(profile.StorageState); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("saving profile %s: %w", profile.ID, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("saving profile %s: %w", profile.ID, err)
	}
	if err := os.Rename(tmpName, filepath.Join(profileDir, stateFileName)); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("saving profile %s: %w", profile.ID, err)
	}
	return nil
}

// Dir returns the store's root directory
func (s *FileProfileStore) Dir() string {
	return s.dir
}

// validateProfileID rejects ids that would escape the store root when
// used as a path or key segment.
func validateProfileID(id string) error {
	if id == "" {
		return errors.New("profile id is required")
	}
	if id == "." || id == ".." ||
		strings.ContainsAny(id, `/\`) || strings.ContainsRune(id, os.PathSeparator) {
		return fmt.Errorf("invalid profile id %q", id)
	}
	return nil
}
