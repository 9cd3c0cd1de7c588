// Package schematic builds composite objects from schematic definitions and
// keeps their attached blocks in sync with the composite's pose.
package schematic

import (
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/Faultbox/mapeditor/internal/animation"
	"github.com/Faultbox/mapeditor/internal/node"
	"github.com/Faultbox/mapeditor/internal/objects"
	"github.com/Faultbox/mapeditor/pkg/formats"
	"github.com/Faultbox/mapeditor/pkg/math"
)

// BlockNamePrefix prefixes the node name of every attached block.
const BlockNamePrefix = "CustomSchematicBlock-"

// requiresRespawning reports whether a block with this name must be rebuilt
// on every update. Doors and workstations cannot change in place.
func requiresRespawning(name string) bool {
	return strings.Contains(name, "Door") || strings.Contains(name, "Workstation")
}

// blockSpec is everything needed to create a block again.
type blockSpec struct {
	kind      node.Kind
	name      string
	original  math.Transform
	props     node.Properties
	frames    []formats.AnimationFrame
	endAction formats.AnimationEndAction
}

// ChangeEvent describes a detected block change.
type ChangeEvent struct {
	Index              int
	Name               string
	Kind               node.Kind
	RequiresRespawning bool
	// Rebuilt is set when the block was replaced rather than updated in place.
	Rebuilt bool
	Old     node.Handle
	New     node.Handle
}

// Block is one child of a composite, tracked with its pose relative to the
// composite origin.
type Block struct {
	objects.Base

	// Original is the pose relative to the composite, captured at build time.
	Original           math.Transform
	RequiresRespawning bool

	spec     blockSpec
	registry *Registry
	slot     int
	player   *animation.Player
}

func newBlock(env *objects.Env, spec blockSpec) *Block {
	b := &Block{
		Base:               objects.NewBase(env, spec.kind, spec.name, spec.original),
		Original:           spec.original,
		RequiresRespawning: requiresRespawning(spec.name),
		spec:               spec,
		slot:               -1,
	}
	for k, v := range spec.props {
		b.SetProperty(k, v)
	}
	return b
}

// Slot returns the block's index in its registry.
func (b *Block) Slot() int {
	return b.slot
}

// IsPrimitive reports whether the block is a primitive.
// Primitive state is fully replicated, so primitives never need a rebuild.
func (b *Block) IsPrimitive() bool {
	return b.spec.kind == node.KindPrimitive
}

// Animating reports whether the block's own animation is playing.
func (b *Block) Animating() bool {
	return b.player != nil && b.player.Active()
}

// PlayOneFrame releases the next manual frame of the block's animation.
func (b *Block) PlayOneFrame() {
	if b.player != nil {
		b.player.PlayOneFrame()
	}
}

// UpdateObject implements objects.Object. The first call spawns the block
// and starts its animation. Later calls re-apply primitives in place and
// rebuild other blocks whose scale changed or that always need a respawn.
func (b *Block) UpdateObject() error {
	if !b.Alive() {
		return objects.ErrDestroyed
	}

	if !b.Spawned() {
		if err := b.Spawn(); err != nil {
			return err
		}
		if b.IsPrimitive() {
			b.play()
		}
		return nil
	}

	changed := b.ScaleChanged() || b.RequiresRespawning
	if !changed {
		return b.Apply()
	}

	if b.IsPrimitive() {
		old := b.Handle()
		if err := b.Apply(); err != nil {
			return err
		}
		b.notify(ChangeEvent{Old: old, New: b.Handle()})
		return nil
	}
	return b.rebuild()
}

// Destroy implements objects.Object. Destroying twice is a no-op.
func (b *Block) Destroy() error {
	if b.player != nil {
		b.player.Stop()
	}
	return b.Base.Destroy()
}

// rebuild replaces the block with a fresh one in the same registry slot.
// The old block survives if the replacement cannot be spawned.
func (b *Block) rebuild() error {
	nb := newBlock(b.Env(), b.spec)
	nb.SetTransform(b.Transform())
	if err := nb.Spawn(); err != nil {
		return err
	}

	old := b.Handle()
	if b.registry != nil {
		b.registry.replace(b.slot, nb)
	}
	if err := b.Destroy(); err != nil {
		b.Env().Logger().Warn("destroying rebuilt block", zap.String("block", b.Name()), zap.Error(err))
	}
	nb.notify(ChangeEvent{Rebuilt: true, Old: old, New: nb.Handle()})
	return nil
}

func (b *Block) notify(ev ChangeEvent) {
	if b.registry == nil {
		return
	}
	ev.Index = b.slot
	ev.Name = b.Name()
	ev.Kind = b.Kind()
	ev.RequiresRespawning = b.RequiresRespawning
	b.registry.changed(ev)
}

func (b *Block) play() {
	env := b.Env()
	b.player = animation.Play(env.Scheduler, b.spec.frames, b, animation.Options{
		EndAction: b.spec.endAction,
		Space:     animation.Local,
		Tolerance: env.Tolerance,
		OnStep: func() {
			if err := b.Apply(); err != nil {
				env.Logger().Warn("block animation step failed", zap.String("block", b.Name()), zap.Error(err))
			}
		},
		OnDestroy: func() {
			if err := b.Destroy(); err != nil {
				env.Logger().Warn("destroying animated block", zap.String("block", b.Name()), zap.Error(err))
			}
		},
	}, b.Alive)
}

func formatFloat(f float32) string {
	return strconv.FormatFloat(float64(f), 'g', -1, 32)
}
