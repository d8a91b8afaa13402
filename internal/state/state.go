package state

import (
	"encoding/json"
	"errors"
	"os"
	"sync"
)

// Fixed keys for locally persisted values. They survive process restarts
// on the same client.
const (
	KeyProfessorID = "professorId"
	KeyTheme       = "dashboard-theme"
)

// File is a small persisted string map backed by a JSON file.
type File struct {
	mu     sync.Mutex
	path   string
	values map[string]string
}

// Open loads the state file, creating an empty store when the file does
// not exist yet. A corrupt file is treated as empty rather than fatal.
func Open(path string) (*File, error) {
	f := &File{path: path, values: make(map[string]string)}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return f, nil
		}
		return nil, err
	}
	if err := json.Unmarshal(data, &f.values); err != nil {
		f.values = make(map[string]string)
	}
	return f, nil
}

// Get returns the stored value, or "" when absent.
func (f *File) Get(key string) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.values[key]
}

// Set stores and persists a value.
func (f *File) Set(key, value string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.values[key] = value
	return f.flush()
}

// Delete removes and persists a key. Deleting an absent key is a no-op.
func (f *File) Delete(key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.values[key]; !ok {
		return nil
	}
	delete(f.values, key)
	return f.flush()
}

func (f *File) flush() error {
	data, err := json.MarshalIndent(f.values, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(f.path, data, 0o600)
}
