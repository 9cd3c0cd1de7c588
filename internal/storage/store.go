// Package storage persists editor maps with gdata.
package storage

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/quasilyte/gdata/v2"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/Faultbox/mapeditor/pkg/formats"
)

// Store errors.
var (
	ErrMapNotFound    = errors.New("map not found")
	ErrInvalidMapName = errors.New("invalid map name")
)

const (
	mapsObject = "maps"
	indexProp  = "index"
	mapPrefix  = "map_"
)

// Backend is the key/value storage used by MapStore. *gdata.Manager implements it.
type Backend interface {
	ObjectPropExists(objectKey, propKey string) bool
	LoadObjectProp(objectKey, propKey string) ([]byte, error)
	SaveObjectProp(objectKey, propKey string, data []byte) error
	DeleteObjectProp(objectKey, propKey string) error
}

// MapStore saves maps as YAML documents, one property per map, and keeps a
// sorted index of map names.
type MapStore struct {
	mu      sync.Mutex
	backend Backend
	log     *zap.Logger
}

// Open opens the gdata store of appName.
func Open(appName string, log *zap.Logger) (*MapStore, error) {
	m, err := gdata.Open(gdata.Config{AppName: appName})
	if err != nil {
		return nil, fmt.Errorf("opening map store %s: %w", appName, err)
	}
	return New(m, log), nil
}

// New creates a store on top of backend.
func New(backend Backend, log *zap.Logger) *MapStore {
	if log == nil {
		log = zap.NewNop()
	}
	return &MapStore{backend: backend, log: log}
}

// ValidateName checks that name can be used as a map key.
// Names are limited to letters, digits, '-', '_' and '.'.
func ValidateName(name string) error {
	if name == "" || name == "." || name == ".." {
		return fmt.Errorf("%w: %q", ErrInvalidMapName, name)
	}
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		case r == '-', r == '_', r == '.':
		default:
			return fmt.Errorf("%w: %q", ErrInvalidMapName, name)
		}
	}
	return nil
}

// Save writes m under m.Name, replacing any previous version.
func (s *MapStore) Save(m *formats.Map) error {
	if err := ValidateName(m.Name); err != nil {
		return err
	}
	if err := m.Validate(); err != nil {
		return err
	}

	data, err := m.Marshal()
	if err != nil {
		return fmt.Errorf("encoding map %s: %w", m.Name, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.backend.SaveObjectProp(mapsObject, mapPrefix+m.Name, data); err != nil {
		return fmt.Errorf("saving map %s: %w", m.Name, err)
	}

	names, err := s.index()
	if err != nil {
		return err
	}
	i := sort.SearchStrings(names, m.Name)
	if i == len(names) || names[i] != m.Name {
		names = append(names, "")
		copy(names[i+1:], names[i:])
		names[i] = m.Name
		if err := s.saveIndex(names); err != nil {
			return err
		}
	}

	s.log.Info("map saved", zap.String("map", m.Name), zap.Int("objects", m.ObjectCount()))
	return nil
}

// Load reads the map called name.
func (s *MapStore) Load(name string) (*formats.Map, error) {
	if err := ValidateName(name); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.backend.ObjectPropExists(mapsObject, mapPrefix+name) {
		return nil, fmt.Errorf("%w: %s", ErrMapNotFound, name)
	}
	data, err := s.backend.LoadObjectProp(mapsObject, mapPrefix+name)
	if err != nil {
		return nil, fmt.Errorf("loading map %s: %w", name, err)
	}

	m, err := formats.ParseMap(data)
	if err != nil {
		return nil, fmt.Errorf("decoding map %s: %w", name, err)
	}
	if m.Name == "" {
		m.Name = name
	}
	return m, nil
}

// Exists reports whether a map called name is stored.
func (s *MapStore) Exists(name string) bool {
	if ValidateName(name) != nil {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.backend.ObjectPropExists(mapsObject, mapPrefix+name)
}

// List returns the stored map names in sorted order.
func (s *MapStore) List() ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.index()
}

// Delete removes the map called name.
func (s *MapStore) Delete(name string) error {
	if err := ValidateName(name); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.backend.ObjectPropExists(mapsObject, mapPrefix+name) {
		return fmt.Errorf("%w: %s", ErrMapNotFound, name)
	}
	if err := s.backend.DeleteObjectProp(mapsObject, mapPrefix+name); err != nil {
		return fmt.Errorf("deleting map %s: %w", name, err)
	}

	names, err := s.index()
	if err != nil {
		return err
	}
	if i := sort.SearchStrings(names, name); i < len(names) && names[i] == name {
		names = append(names[:i], names[i+1:]...)
		if err := s.saveIndex(names); err != nil {
			return err
		}
	}

	s.log.Info("map deleted", zap.String("map", name))
	return nil
}

func (s *MapStore) index() ([]string, error) {
	if !s.backend.ObjectPropExists(mapsObject, indexProp) {
		return nil, nil
	}
	data, err := s.backend.LoadObjectProp(mapsObject, indexProp)
	if err != nil {
		return nil, fmt.Errorf("loading map index: %w", err)
	}
	var names []string
	if err := yaml.Unmarshal(data, &names); err != nil {
		return nil, fmt.Errorf("decoding map index: %w", err)
	}
	sort.Strings(names)
	return names, nil
}

func (s *MapStore) saveIndex(names []string) error {
	data, err := yaml.Marshal(names)
	if err != nil {
		return fmt.Errorf("encoding map index: %w", err)
	}
	if err := s.backend.SaveObjectProp(mapsObject, indexProp, data); err != nil {
		return fmt.Errorf("saving map index: %w", err)
	}
	return nil
}
