package scale

import (
	"fmt"
	"os"
	"sync"

	"gopkg.in/yaml.v3"
)

// Store is a durable key-value mapping for calibration parameters. A value
// written must be observable after a restart; absent keys resolve to the
// caller-supplied default.
type Store interface {
	LoadFloat(key string, def float64) (float64, error)
	LoadInt(key string, def int64) (int64, error)
	SaveFloat(key string, v float64) error
	SaveInt(key string, v int64) error
}

// FileStore persists keys to a single YAML file, standing in for the NVS
// flash namespace on the original hardware.
type FileStore struct {
	path string
	mu   sync.Mutex
}

// NewFileStore creates a store backed by the given file. The file is
// created on first save.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

func (s *FileStore) read() (map[string]string, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]string{}, nil
		}
		return nil, fmt.Errorf("failed to read store file: %w", err)
	}
	kv := map[string]string{}
	if err := yaml.Unmarshal(data, &kv); err != nil {
		return nil, fmt.Errorf("failed to parse store file: %w", err)
	}
	return kv, nil
}

func (s *FileStore) write(kv map[string]string) error {
	data, err := yaml.Marshal(kv)
	if err != nil {
		return fmt.Errorf("failed to marshal store: %w", err)
	}
	if err := os.WriteFile(s.path, data, 0644); err != nil {
		return fmt.Errorf("failed to write store file: %w", err)
	}
	return nil
}

// LoadFloat returns the stored float for key, or def if absent.
func (s *FileStore) LoadFloat(key string, def float64) (float64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	kv, err := s.read()
	if err != nil {
		return def, err
	}
	raw, ok := kv[key]
	if !ok {
		return def, nil
	}
	var v float64
	if err := yaml.Unmarshal([]byte(raw), &v); err != nil {
		return def, fmt.Errorf("bad stored value for %q: %w", key, err)
	}
	return v, nil
}

// LoadInt returns the stored integer for key, or def if absent.
func (s *FileStore) LoadInt(key string, def int64) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	kv, err := s.read()
	if err != nil {
		return def, err
	}
	raw, ok := kv[key]
	if !ok {
		return def, nil
	}
	var v int64
	if err := yaml.Unmarshal([]byte(raw), &v); err != nil {
		return def, fmt.Errorf("bad stored value for %q: %w", key, err)
	}
	return v, nil
}

// SaveFloat writes a float value for key.
func (s *FileStore) SaveFloat(key string, v float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	kv, err := s.read()
	if err != nil {
		return err
	}
	kv[key] = fmt.Sprintf("%.10g", v)
	return s.write(kv)
}

// SaveInt writes an integer value for key.
func (s *FileStore) SaveInt(key string, v int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	kv, err := s.read()
	if err != nil {
		return err
	}
	kv[key] = fmt.Sprintf("%d", v)
	return s.write(kv)
}

// MemStore is an in-memory Store for tests and simulated runs.
type MemStore struct {
	mu     sync.Mutex
	floats map[string]float64
	ints   map[string]int64

	// FailSaves makes every save return an error, for exercising the
	// persistence-failure path.
	FailSaves bool
}

// NewMemStore creates an empty in-memory store.
func NewMemStore() *MemStore {
	return &MemStore{
		floats: map[string]float64{},
		ints:   map[string]int64{},
	}
}

// LoadFloat returns the stored float for key, or def if absent.
func (s *MemStore) LoadFloat(key string, def float64) (float64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if v, ok := s.floats[key]; ok {
		return v, nil
	}
	return def, nil
}

// LoadInt returns the stored integer for key, or def if absent.
func (s *MemStore) LoadInt(key string, def int64) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if v, ok := s.ints[key]; ok {
		return v, nil
	}
	return def, nil
}

// SaveFloat writes a float value for key.
func (s *MemStore) SaveFloat(key string, v float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailSaves {
		return fmt.Errorf("store unavailable")
	}
	s.floats[key] = v
	return nil
}

// SaveInt writes an integer value for key.
func (s *MemStore) SaveInt(key string, v int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailSaves {
		return fmt.Errorf("store unavailable")
	}
	s.ints[key] = v
	return nil
}

var (
	_ Store = (*FileStore)(nil)
	_ Store = (*MemStore)(nil)
)
