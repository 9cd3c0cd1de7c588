package schematic

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

const towerJSON = `{
	"Primitives": [
		{"PrimitiveType": "Cube", "Position": {"x": 0, "y": 1, "z": 0}},
		{"PrimitiveType": "Sphere", "Position": {"x": 0, "y": 2, "z": 0}},
		"broken"
	]
}`

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
}

func TestDirSource(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "Tower", "Tower.json"), towerJSON)
	writeFile(t, filepath.Join(dir, "Flat.json"), `{}`)
	writeFile(t, filepath.Join(dir, "notes.txt"), "ignored")

	src := NewDirSource(dir, nil)

	def, err := src.Schematic("Tower")
	if err != nil {
		t.Fatalf("Schematic(Tower): %v", err)
	}
	if def.Name != "Tower" || len(def.Primitives) != 2 {
		t.Errorf("Tower = %s with %d primitives", def.Name, len(def.Primitives))
	}
	if len(def.Skipped) != 1 {
		t.Errorf("Skipped = %d, want 1", len(def.Skipped))
	}

	again, _ := src.Schematic("Tower")
	if again != def {
		t.Error("definition not cached")
	}
	src.Invalidate()
	if reloaded, _ := src.Schematic("Tower"); reloaded == def {
		t.Error("Invalidate kept the cached definition")
	}

	if _, err := src.Schematic("Flat"); err != nil {
		t.Errorf("Schematic(Flat): %v", err)
	}

	for _, name := range []string{"Missing", "../Tower", ""} {
		if _, err := src.Schematic(name); !errors.Is(err, ErrUnknownSchematic) {
			t.Errorf("Schematic(%q) error = %v, want ErrUnknownSchematic", name, err)
		}
	}

	names, err := src.Names()
	if err != nil {
		t.Fatalf("Names: %v", err)
	}
	if len(names) != 2 || names[0] != "Flat" || names[1] != "Tower" {
		t.Errorf("Names() = %v", names)
	}
}

func TestStaticSource(t *testing.T) {
	src := StaticSource{"Cubes": cubes(1)}
	if _, err := src.Schematic("Cubes"); err != nil {
		t.Errorf("Schematic(Cubes): %v", err)
	}
	if _, err := src.Schematic("Other"); !errors.Is(err, ErrUnknownSchematic) {
		t.Errorf("Schematic(Other) error = %v", err)
	}
}
