// Package memstore is an in-memory storage.Context, used in tests and for
// ephemeral runs that never need to survive process exit.
package memstore

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/reelforge/reelforge/pkg/storage"
)

// Store is a thread-safe in-memory storage.Context.
type Store struct {
	mu   sync.RWMutex
	data map[string][]byte
	dirs map[string]struct{}
}

// New returns an empty Store.
func New() *Store {
	return &Store{
		data: make(map[string][]byte),
		dirs: make(map[string]struct{}),
	}
}

var _ storage.Context = (*Store)(nil)

func (s *Store) Write(_ context.Context, path string, data []byte, _ storage.WriteOptions) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.data[path]; ok {
		if string(existing) == string(data) {
			return nil // idempotent: identical content already present
		}
	}
	cp := append([]byte(nil), data...)
	s.data[path] = cp
	return nil
}

func (s *Store) ReadToString(_ context.Context, path string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, ok := s.data[path]
	if !ok {
		return "", fmt.Errorf("memstore: no such path %q", path)
	}
	return string(b), nil
}

func (s *Store) ReadToBytes(_ context.Context, path string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, ok := s.data[path]
	if !ok {
		return nil, fmt.Errorf("memstore: no such path %q", path)
	}
	return append([]byte(nil), b...), nil
}

func (s *Store) CreateDirectory(_ context.Context, path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dirs[path] = struct{}{}
	return nil
}

func (s *Store) Exists(_ context.Context, path string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if _, ok := s.data[path]; ok {
		return true, nil
	}
	_, ok := s.dirs[path]
	return ok, nil
}

func (s *Store) List(_ context.Context, prefix string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []string
	for p := range s.data {
		if strings.HasPrefix(p, prefix) {
			out = append(out, p)
		}
	}
	sort.Strings(out)
	return out, nil
}
