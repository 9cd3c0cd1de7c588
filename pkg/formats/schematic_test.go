package formats

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	m "github.com/Faultbox/mapeditor/pkg/math"
)

const testSchematic = `{
  "Primitives": [
    {
      "Name": "Floor",
      "PrimitiveType": "Cube",
      "Color": "#FF0000",
      "Position": {"x": 1, "y": 0, "z": 2},
      "Rotation": {"x": 0, "y": 90, "z": 0},
      "Scale": {"x": 4, "y": 0.1, "z": 4}
    },
    {
      "Name": "Door",
      "PrimitiveType": 3,
      "AnimationFrames": [
        {"PositionAdded": {"x": 0, "y": 2, "z": 0}, "PositionRate": 4, "RotationRate": 1, "Delay": -1, "FrameLength": 0.05}
      ],
      "AnimationEndAction": "Loop"
    },
    {
      "PrimitiveType": "Teapot"
    },
    "not an object"
  ],
  "LightSources": [
    {"Color": "yellow", "Intensity": 2, "Range": 10, "Shadows": true, "Position": {"x": 0, "y": 3, "z": 0}}
  ],
  "Items": [
    {"Item": "KeycardO5", "Position": {"x": 0, "y": 1, "z": 0}},
    {"Position": {"x": 0, "y": 1, "z": 0}}
  ],
  "WorkStations": [
    {"Position": {"x": -2, "y": 0, "z": 0}, "Rotation": {"y": 180}}
  ],
  "ParentAnimationFrames": [
    {"PositionAdded": {"z": 10}, "PositionRate": 2, "RotationRate": 1, "Delay": 0, "FrameLength": 0.1}
  ],
  "AnimationEndAction": "Destroy"
}`

func TestParseSchematic(t *testing.T) {
	s, err := ParseSchematic("Elevator", []byte(testSchematic))
	if err != nil {
		t.Fatalf("ParseSchematic failed: %v", err)
	}

	if s.Name != "Elevator" {
		t.Errorf("expected name Elevator, got %s", s.Name)
	}
	if len(s.Primitives) != 2 {
		t.Fatalf("expected 2 primitives, got %d", len(s.Primitives))
	}

	floor := s.Primitives[0]
	if floor.PrimitiveType != PrimitiveCube {
		t.Errorf("expected Cube, got %v", floor.PrimitiveType)
	}
	if floor.Color != "#FF0000" {
		t.Errorf("expected color #FF0000, got %s", floor.Color)
	}
	if floor.Position != (m.Vec3{X: 1, Z: 2}) {
		t.Errorf("unexpected position %v", floor.Position)
	}
	if floor.Scale != (m.Vec3{X: 4, Y: 0.1, Z: 4}) {
		t.Errorf("unexpected scale %v", floor.Scale)
	}

	door := s.Primitives[1]
	if door.PrimitiveType != PrimitiveCube {
		t.Errorf("numeric primitive type should parse, got %v", door.PrimitiveType)
	}
	if door.Scale != m.Vec3One() {
		t.Errorf("missing scale should default to one, got %v", door.Scale)
	}
	if door.Color != "white" {
		t.Errorf("missing color should default to white, got %s", door.Color)
	}
	if len(door.AnimationFrames) != 1 || !door.AnimationFrames[0].IsManual() {
		t.Errorf("expected one manual frame, got %+v", door.AnimationFrames)
	}
	if door.AnimationEndAction != EndActionLoop {
		t.Errorf("expected Loop, got %v", door.AnimationEndAction)
	}

	if len(s.LightSources) != 1 || !s.LightSources[0].Shadows || s.LightSources[0].Range != 10 {
		t.Errorf("unexpected light sources %+v", s.LightSources)
	}
	if len(s.Items) != 1 || s.Items[0].Item != "KeycardO5" {
		t.Errorf("unexpected items %+v", s.Items)
	}
	if len(s.WorkStations) != 1 || s.WorkStations[0].Rotation.Y != 180 {
		t.Errorf("unexpected workstations %+v", s.WorkStations)
	}

	if len(s.ParentAnimationFrames) != 1 || s.ParentAnimationFrames[0].PositionRate != 2 {
		t.Errorf("unexpected parent frames %+v", s.ParentAnimationFrames)
	}
	if s.AnimationEndAction != EndActionDestroy {
		t.Errorf("expected Destroy, got %v", s.AnimationEndAction)
	}

	// Teapot, the string entry and the item without a kind are dropped.
	if len(s.Skipped) != 3 {
		t.Errorf("expected 3 skipped records, got %d: %v", len(s.Skipped), s.Skipped)
	}
	for _, err := range s.Skipped {
		if !errors.Is(err, ErrMalformedRecord) {
			t.Errorf("skipped error should wrap ErrMalformedRecord: %v", err)
		}
	}

	if got := s.BlockCount(); got != 5 {
		t.Errorf("expected 5 blocks, got %d", got)
	}
	if err := s.Validate(); err != nil {
		t.Errorf("Validate() = %v", err)
	}
}

func TestParseSchematic_Invalid(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"empty", ""},
		{"array", "[]"},
		{"string", `"schematic"`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseSchematic("x", []byte(tt.data))
			if !errors.Is(err, ErrInvalidSchematic) {
				t.Errorf("expected ErrInvalidSchematic, got %v", err)
			}
		})
	}
}

func TestParseSchematic_BadParentFrames(t *testing.T) {
	data := `{"ParentAnimationFrames": [{"PositionRate": "fast"}]}`
	if _, err := ParseSchematic("x", []byte(data)); err == nil {
		t.Error("expected error for non-numeric rate")
	}

	data = `{"AnimationEndAction": "Explode"}`
	if _, err := ParseSchematic("x", []byte(data)); !errors.Is(err, ErrUnknownEndAction) {
		t.Errorf("expected ErrUnknownEndAction, got %v", err)
	}
}

func TestParseSchematic_NonArrayRecords(t *testing.T) {
	data := `{"Primitives": 5, "Items": {"Item": "KeycardO5"}, "LightSources": null, "WorkStations": []}`
	s, err := ParseSchematic("x", []byte(data))
	if err != nil {
		t.Fatalf("ParseSchematic failed: %v", err)
	}
	if len(s.Skipped) != 2 {
		t.Fatalf("expected 2 skipped entries, got %d: %v", len(s.Skipped), s.Skipped)
	}
	for i, key := range []string{"Primitives", "Items"} {
		if !errors.Is(s.Skipped[i], ErrMalformedRecord) {
			t.Errorf("skipped %d = %v, want ErrMalformedRecord", i, s.Skipped[i])
		}
		if !strings.Contains(s.Skipped[i].Error(), key) {
			t.Errorf("skipped %d = %v, want it to name %s", i, s.Skipped[i], key)
		}
	}
	if s.BlockCount() != 0 {
		t.Errorf("expected no blocks, got %d", s.BlockCount())
	}
}

func TestSchematic_ValidateZeroRate(t *testing.T) {
	data := `{"Primitives": [{"AnimationFrames": [{"PositionRate": 0}]}]}`
	s, err := ParseSchematic("Broken", []byte(data))
	if err != nil {
		t.Fatalf("ParseSchematic failed: %v", err)
	}
	if err := s.Validate(); !errors.Is(err, ErrZeroPositionRate) {
		t.Errorf("expected ErrZeroPositionRate, got %v", err)
	}
}

func TestLoadSchematic(t *testing.T) {
	path := filepath.Join(t.TempDir(), "Elevator.json")
	if err := os.WriteFile(path, []byte(testSchematic), 0644); err != nil {
		t.Fatalf("failed to write schematic: %v", err)
	}

	s, err := LoadSchematic(path)
	if err != nil {
		t.Fatalf("LoadSchematic failed: %v", err)
	}
	if s.Name != "Elevator" {
		t.Errorf("schematic should be named after the file, got %s", s.Name)
	}

	if _, err := LoadSchematic(filepath.Join(t.TempDir(), "missing.json")); err == nil {
		t.Error("expected error for missing file")
	}
}
