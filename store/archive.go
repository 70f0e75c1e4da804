package store

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
)

// Archive keeps account exports taken before a purge, keyed by the purge
// protocol id. An empty path keeps everything in memory.
type Archive struct {
	mu       sync.RWMutex
	path     string
	inMemory map[string][]byte
}

// NewArchive creates an archive rooted at path.
func NewArchive(path string) (*Archive, error) {
	if path != "" {
		if err := os.MkdirAll(path, 0755); err != nil {
			return nil, fmt.Errorf("failed to create archive directory: %v", err)
		}
	}
	return &Archive{
		path:     path,
		inMemory: make(map[string][]byte),
	}, nil
}

func (a *Archive) file(key string) (string, error) {
	if key == "" || strings.ContainsAny(key, `/\`) || key == "." || key == ".." {
		return "", fmt.Errorf("%w: archive key %q", ErrInvalidInput, key)
	}
	return filepath.Join(a.path, key+".json"), nil
}

// Set stores an export under key.
func (a *Archive) Set(key string, val []byte) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.path == "" {
		if key == "" {
			return fmt.Errorf("%w: empty archive key", ErrInvalidInput)
		}
		a.inMemory[key] = append([]byte(nil), val...)
		return nil
	}

	path, err := a.file(key)
	if err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, val, 0600); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

// Get returns the export stored under key, or ErrNotFound.
func (a *Archive) Get(key string) ([]byte, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()

	if a.path == "" {
		val, ok := a.inMemory[key]
		if !ok {
			return nil, ErrNotFound
		}
		return val, nil
	}

	path, err := a.file(key)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, ErrNotFound
	}
	return data, err
}

// Delete removes an export. Missing keys are not an error.
func (a *Archive) Delete(key string) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.path == "" {
		delete(a.inMemory, key)
		return nil
	}

	path, err := a.file(key)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// Keys returns the stored protocol ids in sorted order.
func (a *Archive) Keys() []string {
	a.mu.RLock()
	defer a.mu.RUnlock()

	var keys []string
	if a.path == "" {
		for k := range a.inMemory {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		return keys
	}

	files, err := os.ReadDir(a.path)
	if err != nil {
		return keys
	}
	for _, f := range files {
		if f.IsDir() || !strings.HasSuffix(f.Name(), ".json") {
			continue
		}
		keys = append(keys, strings.TrimSuffix(f.Name(), ".json"))
	}
	sort.Strings(keys)
	return keys
}
