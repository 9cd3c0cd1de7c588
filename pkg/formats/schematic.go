package formats

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/buger/jsonparser"

	"github.com/Faultbox/mapeditor/pkg/math"
)

// Schematic format errors.
var (
	ErrInvalidSchematic = errors.New("invalid schematic: expected a JSON object")
	ErrMalformedRecord  = errors.New("malformed schematic record")
)

// PrimitiveRecord is a primitive block inside a schematic.
type PrimitiveRecord struct {
	Name               string
	PrimitiveType      PrimitiveType
	Color              string
	Position           math.Vec3 // Relative to the schematic origin
	Rotation           math.Vec3 // Euler degrees, relative to the schematic
	Scale              math.Vec3
	AnimationFrames    []AnimationFrame
	AnimationEndAction AnimationEndAction
}

// LightSourceRecord is a light inside a schematic. Lights carry no rotation or scale.
type LightSourceRecord struct {
	Name      string
	Color     string
	Intensity float32
	Range     float32
	Shadows   bool
	Position  math.Vec3
}

// ItemRecord is an item pickup anchor inside a schematic.
// Item is kept as written; it is resolved when the block is built.
type ItemRecord struct {
	Name     string
	Item     string
	Position math.Vec3
	Rotation math.Vec3
	Scale    math.Vec3
}

// WorkstationRecord is a workstation inside a schematic.
type WorkstationRecord struct {
	Name     string
	Position math.Vec3
	Rotation math.Vec3
	Scale    math.Vec3
}

// Schematic is a parsed compound object description.
type Schematic struct {
	Name                  string
	Primitives            []PrimitiveRecord
	LightSources          []LightSourceRecord
	Items                 []ItemRecord
	WorkStations          []WorkstationRecord
	ParentAnimationFrames []AnimationFrame
	AnimationEndAction    AnimationEndAction

	// Skipped holds one error per record that could not be parsed.
	Skipped []error
}

// BlockCount returns the number of sub-object records.
func (s *Schematic) BlockCount() int {
	return len(s.Primitives) + len(s.LightSources) + len(s.Items) + len(s.WorkStations)
}

// Validate checks every animation track in the schematic.
func (s *Schematic) Validate() error {
	if err := ValidateFrames(s.ParentAnimationFrames); err != nil {
		return fmt.Errorf("schematic %s parent animation: %w", s.Name, err)
	}
	for i, p := range s.Primitives {
		if err := ValidateFrames(p.AnimationFrames); err != nil {
			return fmt.Errorf("schematic %s primitive %d: %w", s.Name, i, err)
		}
	}
	return nil
}

// LoadSchematic reads and parses a schematic file. The schematic is named after the file.
func LoadSchematic(path string) (*Schematic, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	return ParseSchematic(name, data)
}

// ParseSchematic parses a schematic from JSON.
// Records that cannot be parsed are dropped and reported in Skipped.
func ParseSchematic(name string, data []byte) (*Schematic, error) {
	_, dataType, _, err := jsonparser.Get(data)
	if err != nil || dataType != jsonparser.Object {
		return nil, ErrInvalidSchematic
	}

	s := &Schematic{Name: name}

	each(data, "Primitives", s, func(value []byte) error {
		rec, err := parsePrimitive(value)
		if err == nil {
			s.Primitives = append(s.Primitives, rec)
		}
		return err
	})
	each(data, "LightSources", s, func(value []byte) error {
		rec, err := parseLightSource(value)
		if err == nil {
			s.LightSources = append(s.LightSources, rec)
		}
		return err
	})
	each(data, "Items", s, func(value []byte) error {
		rec, err := parseItem(value)
		if err == nil {
			s.Items = append(s.Items, rec)
		}
		return err
	})
	each(data, "WorkStations", s, func(value []byte) error {
		rec, err := parseWorkstation(value)
		if err == nil {
			s.WorkStations = append(s.WorkStations, rec)
		}
		return err
	})

	s.ParentAnimationFrames, err = parseFrames(data, "ParentAnimationFrames")
	if err != nil {
		return nil, fmt.Errorf("schematic %s: %w", name, err)
	}

	if action, err := jsonparser.GetString(data, "AnimationEndAction"); err == nil {
		if s.AnimationEndAction, err = ParseEndAction(action); err != nil {
			return nil, fmt.Errorf("schematic %s: %w", name, err)
		}
	}

	return s, nil
}

// each walks an array of records under key, collecting per-record failures.
// A key that is not an array, or an array that cannot be read to the end, is
// reported as one more skipped entry. A missing or null key is empty.
func each(data []byte, key string, s *Schematic, fn func(value []byte) error) {
	index := 0
	_, err := jsonparser.ArrayEach(data, func(value []byte, dataType jsonparser.ValueType, _ int, _ error) {
		defer func() { index++ }()
		if dataType != jsonparser.Object {
			s.Skipped = append(s.Skipped, fmt.Errorf("%w: %s[%d] is %s", ErrMalformedRecord, key, index, dataType))
			return
		}
		if err := fn(value); err != nil {
			s.Skipped = append(s.Skipped, fmt.Errorf("%w: %s[%d]: %v", ErrMalformedRecord, key, index, err))
		}
	}, key)

	if err == nil || errors.Is(err, jsonparser.KeyPathNotFoundError) {
		return
	}
	if _, dataType, _, getErr := jsonparser.Get(data, key); getErr == nil && dataType == jsonparser.Null {
		return
	}
	s.Skipped = append(s.Skipped, fmt.Errorf("%w: %s: %v", ErrMalformedRecord, key, err))
}

func parsePrimitive(data []byte) (PrimitiveRecord, error) {
	rec := PrimitiveRecord{Name: optString(data, "Name"), Color: optString(data, "Color")}
	if rec.Color == "" {
		rec.Color = "white"
	}

	var err error
	if value, dataType, _, getErr := jsonparser.Get(data, "PrimitiveType"); getErr == nil {
		if dataType != jsonparser.String && dataType != jsonparser.Number {
			return rec, fmt.Errorf("PrimitiveType: unexpected %s", dataType)
		}
		if rec.PrimitiveType, err = ParsePrimitiveType(string(value)); err != nil {
			return rec, err
		}
	}
	if rec.Position, err = optVec3(data, math.Vec3{}, "Position"); err != nil {
		return rec, err
	}
	if rec.Rotation, err = optVec3(data, math.Vec3{}, "Rotation"); err != nil {
		return rec, err
	}
	if rec.Scale, err = optVec3(data, math.Vec3One(), "Scale"); err != nil {
		return rec, err
	}
	if rec.AnimationFrames, err = parseFrames(data, "AnimationFrames"); err != nil {
		return rec, err
	}
	if action, getErr := jsonparser.GetString(data, "AnimationEndAction"); getErr == nil {
		if rec.AnimationEndAction, err = ParseEndAction(action); err != nil {
			return rec, err
		}
	}
	return rec, nil
}

func parseLightSource(data []byte) (LightSourceRecord, error) {
	rec := LightSourceRecord{
		Name:      optString(data, "Name"),
		Color:     optString(data, "Color"),
		Intensity: 1,
		Range:     1,
	}
	if rec.Color == "" {
		rec.Color = "white"
	}

	var err error
	if rec.Intensity, err = optFloat(data, rec.Intensity, "Intensity"); err != nil {
		return rec, err
	}
	if rec.Range, err = optFloat(data, rec.Range, "Range"); err != nil {
		return rec, err
	}
	if shadows, getErr := jsonparser.GetBoolean(data, "Shadows"); getErr == nil {
		rec.Shadows = shadows
	}
	rec.Position, err = optVec3(data, math.Vec3{}, "Position")
	return rec, err
}

func parseItem(data []byte) (ItemRecord, error) {
	rec := ItemRecord{Name: optString(data, "Name")}

	item, err := jsonparser.GetString(data, "Item")
	if err != nil {
		return rec, fmt.Errorf("Item: %w", err)
	}
	rec.Item = item

	if rec.Position, err = optVec3(data, math.Vec3{}, "Position"); err != nil {
		return rec, err
	}
	if rec.Rotation, err = optVec3(data, math.Vec3{}, "Rotation"); err != nil {
		return rec, err
	}
	rec.Scale, err = optVec3(data, math.Vec3One(), "Scale")
	return rec, err
}

func parseWorkstation(data []byte) (WorkstationRecord, error) {
	rec := WorkstationRecord{Name: optString(data, "Name")}

	var err error
	if rec.Position, err = optVec3(data, math.Vec3{}, "Position"); err != nil {
		return rec, err
	}
	if rec.Rotation, err = optVec3(data, math.Vec3{}, "Rotation"); err != nil {
		return rec, err
	}
	rec.Scale, err = optVec3(data, math.Vec3One(), "Scale")
	return rec, err
}

func parseFrames(data []byte, key string) ([]AnimationFrame, error) {
	var frames []AnimationFrame
	var firstErr error

	_, err := jsonparser.ArrayEach(data, func(value []byte, dataType jsonparser.ValueType, _ int, _ error) {
		if firstErr != nil {
			return
		}
		if dataType != jsonparser.Object {
			firstErr = fmt.Errorf("%s[%d]: unexpected %s", key, len(frames), dataType)
			return
		}
		frame, err := parseFrame(value)
		if err != nil {
			firstErr = fmt.Errorf("%s[%d]: %w", key, len(frames), err)
			return
		}
		frames = append(frames, frame)
	}, key)

	if firstErr != nil {
		return nil, firstErr
	}
	if err != nil && !errors.Is(err, jsonparser.KeyPathNotFoundError) {
		return nil, fmt.Errorf("%s: %w", key, err)
	}
	return frames, nil
}

func parseFrame(data []byte) (AnimationFrame, error) {
	f := AnimationFrame{PositionRate: 1, RotationRate: 1}

	var err error
	if f.PositionAdded, err = optVec3(data, math.Vec3{}, "PositionAdded"); err != nil {
		return f, err
	}
	if f.RotationAdded, err = optVec3(data, math.Vec3{}, "RotationAdded"); err != nil {
		return f, err
	}
	if f.PositionRate, err = optFloat(data, f.PositionRate, "PositionRate"); err != nil {
		return f, err
	}
	if f.RotationRate, err = optFloat(data, f.RotationRate, "RotationRate"); err != nil {
		return f, err
	}
	if f.Delay, err = optFloat(data, 0, "Delay"); err != nil {
		return f, err
	}
	f.FrameLength, err = optFloat(data, 0, "FrameLength")
	return f, err
}

func optString(data []byte, key string) string {
	s, _ := jsonparser.GetString(data, key)
	return s
}

func optFloat(data []byte, def float32, keys ...string) (float32, error) {
	f, err := jsonparser.GetFloat(data, keys...)
	if errors.Is(err, jsonparser.KeyPathNotFoundError) {
		return def, nil
	}
	if err != nil {
		return def, fmt.Errorf("%s: %w", strings.Join(keys, "."), err)
	}
	return float32(f), nil
}

// optVec3 reads an {"x","y","z"} object. Missing components are zero.
func optVec3(data []byte, def math.Vec3, key string) (math.Vec3, error) {
	value, dataType, _, err := jsonparser.Get(data, key)
	if errors.Is(err, jsonparser.KeyPathNotFoundError) {
		return def, nil
	}
	if err != nil {
		return def, fmt.Errorf("%s: %w", key, err)
	}
	if dataType != jsonparser.Object {
		return def, fmt.Errorf("%s: expected object, got %s", key, dataType)
	}

	var v math.Vec3
	if v.X, err = optFloat(value, 0, "x"); err != nil {
		return def, fmt.Errorf("%s.%w", key, err)
	}
	if v.Y, err = optFloat(value, 0, "y"); err != nil {
		return def, fmt.Errorf("%s.%w", key, err)
	}
	if v.Z, err = optFloat(value, 0, "z"); err != nil {
		return def, fmt.Errorf("%s.%w", key, err)
	}
	return v, nil
}
