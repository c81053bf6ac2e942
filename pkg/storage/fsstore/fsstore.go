// Package fsstore is a filesystem-backed storage.Context. Writes are made
// atomic per path via write-to-temp-then-rename, matching the commit
// discipline the manifest service relies on.
package fsstore

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/reelforge/reelforge/pkg/storage"
)

// Store is a filesystem-rooted storage.Context. All paths passed to its
// methods are relative and are resolved under Root via storage.SafeJoin.
type Store struct {
	Root string
}

// New returns a Store rooted at root, creating root if it does not exist.
func New(root string) (*Store, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("fsstore: creating root %s: %w", root, err)
	}
	return &Store{Root: root}, nil
}

var _ storage.Context = (*Store)(nil)

func (s *Store) resolve(p string) (string, error) {
	return storage.SafeJoin(s.Root, p)
}

func (s *Store) Write(_ context.Context, p string, data []byte, _ storage.WriteOptions) error {
	full, err := s.resolve(p)
	if err != nil {
		return err
	}
	if existing, err := os.ReadFile(full); err == nil && bytes.Equal(existing, data) {
		return nil // idempotent: identical content already present
	}
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return fmt.Errorf("fsstore: creating parent dir for %s: %w", p, err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(full), ".tmp-*")
	if err != nil {
		return fmt.Errorf("fsstore: creating temp file for %s: %w", p, err)
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("fsstore: writing temp file for %s: %w", p, err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("fsstore: syncing temp file for %s: %w", p, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("fsstore: closing temp file for %s: %w", p, err)
	}
	if err := os.Rename(tmpPath, full); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("fsstore: renaming temp file into place for %s: %w", p, err)
	}
	return nil
}

func (s *Store) ReadToString(ctx context.Context, p string) (string, error) {
	b, err := s.ReadToBytes(ctx, p)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func (s *Store) ReadToBytes(_ context.Context, p string) ([]byte, error) {
	full, err := s.resolve(p)
	if err != nil {
		return nil, err
	}
	b, err := os.ReadFile(full)
	if err != nil {
		return nil, fmt.Errorf("fsstore: reading %s: %w", p, err)
	}
	return b, nil
}

func (s *Store) CreateDirectory(_ context.Context, p string) error {
	full, err := s.resolve(p)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(full, 0o755); err != nil {
		return fmt.Errorf("fsstore: creating directory %s: %w", p, err)
	}
	return nil
}

func (s *Store) Exists(_ context.Context, p string) (bool, error) {
	full, err := s.resolve(p)
	if err != nil {
		return false, err
	}
	_, err = os.Stat(full)
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, fmt.Errorf("fsstore: stat %s: %w", p, err)
}

func (s *Store) List(_ context.Context, prefix string) ([]string, error) {
	full, err := s.resolve(prefix)
	if err != nil {
		return nil, err
	}
	var out []string
	err = filepath.Walk(full, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			if os.IsNotExist(err) {
				return nil
			}
			return err
		}
		if info.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(s.Root, path)
		if err != nil {
			return err
		}
		out = append(out, filepath.ToSlash(rel))
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("fsstore: listing %s: %w", prefix, err)
	}
	sort.Strings(out)
	return out, nil
}
