package formats

import (
	"errors"
	"fmt"
	"strings"

	"github.com/Faultbox/mapeditor/pkg/math"
)

// Animation frame validation errors.
var (
	ErrZeroPositionRate    = errors.New("animation frame position rate is zero")
	ErrZeroRotationRate    = errors.New("animation frame rotation rate is zero")
	ErrNegativeFrameLength = errors.New("animation frame length is negative")
	ErrNonFiniteFrame      = errors.New("animation frame has non-finite values")
	ErrUnknownEndAction    = errors.New("unknown animation end action")
)

// ManualDelay is the delay sentinel for frames that wait for a single-step signal.
const ManualDelay float32 = -1

// AnimationFrame is one phase of a keyframe animation.
type AnimationFrame struct {
	PositionAdded math.Vec3 `yaml:"position_added"` // Total displacement over the frame
	PositionRate  float32   `yaml:"position_rate"`  // Number of steps the displacement is split into
	RotationAdded math.Vec3 `yaml:"rotation_added"` // Total Euler rotation in degrees
	RotationRate  float32   `yaml:"rotation_rate"`  // Number of steps the rotation is split into
	Delay         float32   `yaml:"delay"`          // Seconds before the frame starts; negative waits for a signal
	FrameLength   float32   `yaml:"frame_length"`   // Seconds between steps
}

// IsManual reports whether the frame waits for an external single-step signal.
func (f AnimationFrame) IsManual() bool {
	return f.Delay < 0
}

// Validate checks the frame can be played. Rates are divisors and must not be zero.
func (f AnimationFrame) Validate() error {
	if !f.PositionAdded.IsFinite() || !f.RotationAdded.IsFinite() ||
		!finite(f.PositionRate) || !finite(f.RotationRate) || !finite(f.Delay) || !finite(f.FrameLength) {
		return ErrNonFiniteFrame
	}
	if f.PositionRate == 0 {
		return ErrZeroPositionRate
	}
	if f.RotationRate == 0 {
		return ErrZeroRotationRate
	}
	if f.FrameLength < 0 {
		return ErrNegativeFrameLength
	}
	return nil
}

// ValidateFrames validates every frame and reports the first failing index.
func ValidateFrames(frames []AnimationFrame) error {
	for i, f := range frames {
		if err := f.Validate(); err != nil {
			return fmt.Errorf("frame %d: %w", i, err)
		}
	}
	return nil
}

// AnimationEndAction is what happens after the last frame has played.
type AnimationEndAction uint8

const (
	EndActionNone AnimationEndAction = iota
	EndActionDestroy
	EndActionLoop
)

// String returns the action name as written in schematic files.
func (a AnimationEndAction) String() string {
	switch a {
	case EndActionNone:
		return "None"
	case EndActionDestroy:
		return "Destroy"
	case EndActionLoop:
		return "Loop"
	default:
		return fmt.Sprintf("Unknown(%d)", a)
	}
}

// ParseEndAction parses an action name, ignoring case. An empty name is None.
func ParseEndAction(name string) (AnimationEndAction, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "none":
		return EndActionNone, nil
	case "destroy":
		return EndActionDestroy, nil
	case "loop":
		return EndActionLoop, nil
	default:
		return EndActionNone, fmt.Errorf("%w: %q", ErrUnknownEndAction, name)
	}
}

// MarshalText implements encoding.TextMarshaler.
func (a AnimationEndAction) MarshalText() ([]byte, error) {
	return []byte(a.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (a *AnimationEndAction) UnmarshalText(text []byte) error {
	parsed, err := ParseEndAction(string(text))
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}

func finite(f float32) bool {
	return math.Vec3{X: f}.IsFinite()
}
