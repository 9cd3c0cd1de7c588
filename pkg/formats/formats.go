// Package formats provides parsers for map editor files: schematic descriptions
// (JSON) and saved maps (YAML).
package formats

// Note: schematic JSON is implemented in schematic.go
// Note: map YAML is implemented in mapfile.go
// Note: the animation frame model is in animation.go
