package objects

import (
	"strconv"

	"github.com/Faultbox/mapeditor/internal/node"
	"github.com/Faultbox/mapeditor/pkg/formats"
	"github.com/Faultbox/mapeditor/pkg/math"
)

// LightSource is a point light. It has no rotation and its scale is always one.
type LightSource struct {
	Base

	Color     string
	Intensity float32
	Range     float32
	Shadows   bool
}

// NewLightSource creates an unspawned light.
func NewLightSource(env *Env, p formats.LightSourcePlacement) *LightSource {
	t := math.Transform{Position: p.Position, Rotation: math.QuatIdentity(), Scale: math.Vec3One()}
	return &LightSource{
		Base:      NewBase(env, node.KindLightSource, "LightSource", t),
		Color:     p.Color,
		Intensity: p.Intensity,
		Range:     p.Range,
		Shadows:   p.Shadows,
	}
}

// UpdateObject implements Object.
func (l *LightSource) UpdateObject() error {
	l.SetRotation(math.QuatIdentity())
	l.SetScale(math.Vec3One())
	l.SetProperty(node.PropColor, l.Color)
	l.SetProperty(node.PropIntensity, formatFloat(l.Intensity))
	l.SetProperty(node.PropRange, formatFloat(l.Range))
	l.SetProperty(node.PropShadows, strconv.FormatBool(l.Shadows))
	return l.Base.UpdateObject()
}

// Pose returns the light position with identity rotation and unit scale.
func (l *LightSource) Pose() formats.Placement {
	return formats.Placement{Position: l.Position(), Scale: math.Vec3One()}
}

// SetPose moves the light. Rotation and scale are ignored.
func (l *LightSource) SetPose(pl formats.Placement) {
	l.SetPosition(pl.Position)
}

// Placement returns the configuration to persist.
func (l *LightSource) Placement() formats.LightSourcePlacement {
	return formats.LightSourcePlacement{
		Position:  l.Position(),
		Color:     l.Color,
		Intensity: l.Intensity,
		Range:     l.Range,
		Shadows:   l.Shadows,
	}
}

func formatFloat(f float32) string {
	return strconv.FormatFloat(float64(f), 'g', -1, 32)
}
