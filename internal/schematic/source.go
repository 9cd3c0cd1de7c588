package schematic

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/Faultbox/mapeditor/pkg/formats"
)

// ErrUnknownSchematic is returned when no definition exists for a name.
var ErrUnknownSchematic = errors.New("unknown schematic")

// Source resolves schematic definitions by name.
type Source interface {
	Schematic(name string) (*formats.Schematic, error)
}

// StaticSource serves definitions from memory.
type StaticSource map[string]*formats.Schematic

// Schematic implements Source.
func (s StaticSource) Schematic(name string) (*formats.Schematic, error) {
	def, ok := s[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownSchematic, name)
	}
	return def, nil
}

// DirSource loads definitions from a schematics directory. A schematic
// named X lives in X/X.json or X.json. Parsed definitions are cached.
// Not safe for concurrent use.
type DirSource struct {
	dir   string
	log   *zap.Logger
	cache map[string]*formats.Schematic
}

// NewDirSource creates a source reading from dir.
func NewDirSource(dir string, log *zap.Logger) *DirSource {
	if log == nil {
		log = zap.NewNop()
	}
	return &DirSource{
		dir:   dir,
		log:   log,
		cache: make(map[string]*formats.Schematic),
	}
}

// Schematic implements Source. Records that fail to parse are logged and skipped.
func (s *DirSource) Schematic(name string) (*formats.Schematic, error) {
	if def, ok := s.cache[name]; ok {
		return def, nil
	}

	path, err := s.find(name)
	if err != nil {
		return nil, err
	}
	def, err := formats.LoadSchematic(path)
	if err != nil {
		return nil, err
	}
	if err := def.Validate(); err != nil {
		return nil, err
	}
	for _, skipped := range def.Skipped {
		s.log.Warn("skipping schematic record", zap.String("schematic", name), zap.Error(skipped))
	}

	s.cache[name] = def
	return def, nil
}

// Invalidate drops every cached definition.
func (s *DirSource) Invalidate() {
	s.cache = make(map[string]*formats.Schematic)
}

// Names lists the schematics available in the directory.
func (s *DirSource) Names() ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("reading schematics dir: %w", err)
	}

	var names []string
	for _, e := range entries {
		switch {
		case e.IsDir():
			if _, err := os.Stat(filepath.Join(s.dir, e.Name(), e.Name()+".json")); err == nil {
				names = append(names, e.Name())
			}
		case strings.EqualFold(filepath.Ext(e.Name()), ".json"):
			names = append(names, strings.TrimSuffix(e.Name(), filepath.Ext(e.Name())))
		}
	}
	sort.Strings(names)
	return names, nil
}

func (s *DirSource) find(name string) (string, error) {
	if name == "" || strings.ContainsAny(name, `/\`) || name == "." || name == ".." {
		return "", fmt.Errorf("%w: invalid name %q", ErrUnknownSchematic, name)
	}
	for _, p := range []string{
		filepath.Join(s.dir, name, name+".json"),
		filepath.Join(s.dir, name+".json"),
	} {
		if _, err := os.Stat(p); err == nil {
			return p, nil
		}
	}
	return "", fmt.Errorf("%w: %s", ErrUnknownSchematic, name)
}
