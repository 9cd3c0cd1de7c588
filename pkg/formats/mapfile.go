package formats

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/Faultbox/mapeditor/pkg/math"
)

// Placement is the persisted pose of a placed object.
type Placement struct {
	Position math.Vec3 `yaml:"position"`
	Rotation math.Vec3 `yaml:"rotation"` // Euler degrees
	Scale    math.Vec3 `yaml:"scale"`
}

// Transform converts the placement to a world transform.
func (p Placement) Transform() math.Transform {
	return math.NewTransform(p.Position, p.Rotation, p.Scale)
}

// PrimitivePlacement is a standalone primitive on a map.
type PrimitivePlacement struct {
	Placement          `yaml:",inline"`
	PrimitiveType      PrimitiveType      `yaml:"primitive_type"`
	Color              string             `yaml:"color"`
	AnimationFrames    []AnimationFrame   `yaml:"animation_frames,omitempty"`
	AnimationEndAction AnimationEndAction `yaml:"animation_end_action,omitempty"`
}

// LightSourcePlacement is a standalone light on a map.
type LightSourcePlacement struct {
	Position  math.Vec3 `yaml:"position"`
	Color     string    `yaml:"color"`
	Intensity float32   `yaml:"intensity"`
	Range     float32   `yaml:"range"`
	Shadows   bool      `yaml:"shadows"`
}

// ShootingTargetPlacement is a shooting target on a map.
type ShootingTargetPlacement struct {
	Placement  `yaml:",inline"`
	TargetType ShootingTargetType `yaml:"target_type"`
}

// SchematicPlacement places a schematic by name.
type SchematicPlacement struct {
	Placement     `yaml:",inline"`
	SchematicName string `yaml:"schematic_name"`
}

// Map is a saved set of placed objects.
type Map struct {
	Name            string                    `yaml:"name"`
	Primitives      []PrimitivePlacement      `yaml:"primitives,omitempty"`
	LightSources    []LightSourcePlacement    `yaml:"light_sources,omitempty"`
	ShootingTargets []ShootingTargetPlacement `yaml:"shooting_targets,omitempty"`
	Schematics      []SchematicPlacement      `yaml:"schematics,omitempty"`
}

// ObjectCount returns the number of placed objects.
func (m *Map) ObjectCount() int {
	return len(m.Primitives) + len(m.LightSources) + len(m.ShootingTargets) + len(m.Schematics)
}

// Validate checks animation tracks and schematic references.
func (m *Map) Validate() error {
	for i, p := range m.Primitives {
		if err := ValidateFrames(p.AnimationFrames); err != nil {
			return fmt.Errorf("map %s primitive %d: %w", m.Name, i, err)
		}
	}
	for i, s := range m.Schematics {
		if s.SchematicName == "" {
			return fmt.Errorf("map %s schematic %d: missing schematic name", m.Name, i)
		}
	}
	return nil
}

// ParseMap parses a map from YAML. Missing scales default to one.
func ParseMap(data []byte) (*Map, error) {
	var m Map
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, err
	}
	m.normalize()
	return &m, nil
}

// LoadMap reads and parses a map file.
func LoadMap(path string) (*Map, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return ParseMap(data)
}

// Marshal encodes the map as YAML.
func (m *Map) Marshal() ([]byte, error) {
	return yaml.Marshal(m)
}

func (m *Map) normalize() {
	for i := range m.Primitives {
		defaultScale(&m.Primitives[i].Scale)
	}
	for i := range m.ShootingTargets {
		defaultScale(&m.ShootingTargets[i].Scale)
	}
	for i := range m.Schematics {
		defaultScale(&m.Schematics[i].Scale)
	}
}

func defaultScale(s *math.Vec3) {
	if *s == (math.Vec3{}) {
		*s = math.Vec3One()
	}
}
