package objects

import (
	"go.uber.org/zap"

	"github.com/Faultbox/mapeditor/internal/animation"
	"github.com/Faultbox/mapeditor/internal/node"
	"github.com/Faultbox/mapeditor/pkg/formats"
)

// Primitive is a standalone placed primitive. Shape and color are
// replicated properties and change in place; a scale change respawns it.
type Primitive struct {
	Base

	Type      formats.PrimitiveType
	Color     string
	Frames    []formats.AnimationFrame
	EndAction formats.AnimationEndAction

	placement formats.PrimitivePlacement
	player    *animation.Player
}

// NewPrimitive creates an unspawned primitive from its placement.
func NewPrimitive(env *Env, p formats.PrimitivePlacement) *Primitive {
	return &Primitive{
		Base:      NewBase(env, node.KindPrimitive, "CustomPrimitive", p.Transform()),
		Type:      p.PrimitiveType,
		Color:     p.Color,
		Frames:    p.AnimationFrames,
		EndAction: p.AnimationEndAction,
		placement: p,
	}
}

// UpdateObject implements Object.
func (p *Primitive) UpdateObject() error {
	p.SetProperty(node.PropPrimitiveType, p.Type.String())
	p.SetProperty(node.PropColor, p.Color)
	return p.Base.UpdateObject()
}

// Play starts the primitive's animation track. It does nothing when the
// track is empty or already playing.
func (p *Primitive) Play() {
	if p.player != nil && p.player.Active() {
		return
	}
	env := p.Env()
	p.player = animation.Play(env.Scheduler, p.Frames, p, animation.Options{
		EndAction: p.EndAction,
		Space:     animation.Local,
		Tolerance: env.Tolerance,
		OnStep: func() {
			if err := p.Base.UpdateObject(); err != nil {
				env.Logger().Warn("primitive animation step failed", zap.Uint32("object", uint32(p.ID())), zap.Error(err))
			}
		},
		OnDestroy: func() {
			if err := p.Destroy(); err != nil {
				env.Logger().Warn("destroying animated primitive", zap.Error(err))
			}
			env.Objects.Remove(p.ID())
		},
	}, p.Alive)
}

// Animating reports whether the animation track is playing.
func (p *Primitive) Animating() bool {
	return p.player != nil && p.player.Active()
}

// PlayOneFrame releases the next frame waiting for a signal.
func (p *Primitive) PlayOneFrame() {
	if p.player != nil {
		p.player.PlayOneFrame()
	}
}

// Pose returns the configured pose.
func (p *Primitive) Pose() formats.Placement {
	return p.placement.Placement
}

// SetPose moves the primitive to pl and makes it the pose to persist.
// The change reaches the host on the next UpdateObject.
func (p *Primitive) SetPose(pl formats.Placement) {
	p.placement.Placement = pl
	p.SetTransform(pl.Transform())
}

// Placement returns the configuration to persist.
func (p *Primitive) Placement() formats.PrimitivePlacement {
	pl := p.placement
	pl.PrimitiveType = p.Type
	pl.Color = p.Color
	pl.AnimationFrames = p.Frames
	pl.AnimationEndAction = p.EndAction
	return pl
}
