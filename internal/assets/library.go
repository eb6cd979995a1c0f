// Package assets abstracts the device photo library. Records never hold
// image URLs for local photos, only opaque asset references resolved here.
package assets

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/oaktrail/treetrack/internal/common"
)

// Library resolves and manages source photo assets.
type Library interface {
	// Add stores photo bytes and returns a new opaque asset reference.
	Add(ctx context.Context, data []byte) (string, error)

	// Load resolves an asset reference to the photo bytes.
	Load(ctx context.Context, ref string) ([]byte, error)

	// Delete removes the given assets in bulk. Missing assets are not an
	// error; the cleanup step may run twice after a crash.
	Delete(ctx context.Context, refs []string) error
}

// DirLibrary keeps assets as files in a single directory, standing in for a
// phone's media library.
type DirLibrary struct {
	dir string
}

// NewDirLibrary creates the directory if needed and returns a library over it.
func NewDirLibrary(dir string) (*DirLibrary, error) {
	if err := os.MkdirAll(dir, 0o770); err != nil {
		return nil, fmt.Errorf("failed to create asset dir %s: %w", dir, err)
	}
	return &DirLibrary{dir: dir}, nil
}

func (l *DirLibrary) Add(ctx context.Context, data []byte) (string, error) {
	ref := uuid.NewString()
	if err := os.WriteFile(l.path(ref), data, 0o660); err != nil {
		return "", fmt.Errorf("failed to store asset: %w", err)
	}
	return ref, nil
}

func (l *DirLibrary) Load(ctx context.Context, ref string) ([]byte, error) {
	data, err := os.ReadFile(l.path(ref))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("failed to load asset %s: %w", ref, err)
	}
	return data, nil
}

func (l *DirLibrary) Delete(ctx context.Context, refs []string) error {
	for _, ref := range refs {
		if err := os.Remove(l.path(ref)); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("failed to delete asset %s: %w", ref, err)
		}
	}
	return nil
}

func (l *DirLibrary) path(ref string) string {
	// refs are uuids we issued; Base guards against traversal anyway
	return filepath.Join(l.dir, filepath.Base(ref))
}
