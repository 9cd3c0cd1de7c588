package schematic

import (
	"errors"
	"fmt"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/Faultbox/mapeditor/internal/animation"
	"github.com/Faultbox/mapeditor/internal/node"
	"github.com/Faultbox/mapeditor/internal/objects"
	"github.com/Faultbox/mapeditor/internal/scheduler"
	"github.com/Faultbox/mapeditor/pkg/formats"
	"github.com/Faultbox/mapeditor/pkg/math"
)

// NamePrefix prefixes the node name of every composite.
const NamePrefix = "CustomSchematic-"

// SynchronousUpdate as block spawn delay updates every block in one pass.
const SynchronousUpdate = -1

// ErrNoSource is returned when a rename needs a definition but no source is set.
var ErrNoSource = errors.New("no schematic source")

// State is the lifecycle state of a composite.
type State uint8

const (
	StateBuilding State = iota
	StateIdle
	StateAnimating
	StateDestroyed
)

func (s State) String() string {
	switch s {
	case StateBuilding:
		return "Building"
	case StateIdle:
		return "Idle"
	case StateAnimating:
		return "Animating"
	case StateDestroyed:
		return "Destroyed"
	}
	return fmt.Sprintf("State(%d)", s)
}

// Hooks observe and steer a composite's lifecycle. Every hook is optional.
type Hooks struct {
	// AnimationStarting may veto the parent animation by returning false.
	AnimationStarting func(c *Controller) bool
	// AnimationEnding may replace the end action of the parent animation.
	AnimationEnding func(c *Controller, action formats.AnimationEndAction) formats.AnimationEndAction
	// BlockChanged is called for every detected block change.
	BlockChanged func(c *Controller, ev ChangeEvent)
}

// Options configure how composites are built and updated.
type Options struct {
	// BlockSpawnDelay is the time between block updates in seconds.
	// Zero updates one block per tick, SynchronousUpdate updates all at once.
	BlockSpawnDelay float64
	Hooks           Hooks
	// Source resolves definitions when a composite is renamed.
	Source Source
}

// Controller is a placed composite: a root node plus its attached blocks.
type Controller struct {
	objects.Base

	// SchematicName is the configured definition. Changing it and calling
	// UpdateObject rebuilds the composite from the new definition.
	SchematicName string

	def       *formats.Schematic
	placement formats.SchematicPlacement
	opts      Options
	blocks    *Registry
	state     State
	original  math.Transform
	endAction formats.AnimationEndAction
	player    *animation.Player
	update    scheduler.TaskID
}

// Build spawns a composite for def at placement. A host failure tears down
// everything built so far and is returned. Records that cannot be built,
// such as unknown item kinds, are logged and skipped.
func Build(env *objects.Env, placement formats.SchematicPlacement, def *formats.Schematic, opts Options) (*Controller, error) {
	if err := def.Validate(); err != nil {
		return nil, err
	}

	c := &Controller{
		Base:          objects.NewBase(env, node.KindEmpty, NamePrefix+def.Name, placement.Transform()),
		SchematicName: def.Name,
		def:           def,
		placement:     placement,
		opts:          opts,
		state:         StateBuilding,
		endAction:     def.AnimationEndAction,
	}
	c.placement.SchematicName = def.Name
	c.original = c.Transform()
	c.blocks = NewRegistry(c.blockChanged)

	if err := c.Spawn(); err != nil {
		return nil, fmt.Errorf("build schematic %s: %w", def.Name, err)
	}
	if err := c.buildBlocks(); err != nil {
		err = multierr.Append(err, c.blocks.DetachAll())
		err = multierr.Append(err, c.Base.Destroy())
		return nil, fmt.Errorf("build schematic %s: %w", def.Name, err)
	}

	c.state = StateIdle
	c.updateBlocks()
	c.play()
	return c, nil
}

func (c *Controller) buildBlocks() error {
	log := c.log()
	var specs []blockSpec

	for _, p := range c.def.Primitives {
		specs = append(specs, blockSpec{
			kind:     node.KindPrimitive,
			name:     BlockNamePrefix + "Primitive" + p.PrimitiveType.String(),
			original: math.NewTransform(p.Position, p.Rotation, p.Scale),
			props: node.Properties{
				node.PropPrimitiveType: p.PrimitiveType.String(),
				node.PropColor:         p.Color,
			},
			frames:    p.AnimationFrames,
			endAction: p.AnimationEndAction,
		})
	}

	for _, l := range c.def.LightSources {
		specs = append(specs, blockSpec{
			kind:     node.KindLightSource,
			name:     BlockNamePrefix + "LightSource",
			original: math.Transform{Position: l.Position, Rotation: math.QuatIdentity(), Scale: math.Vec3One()},
			props: node.Properties{
				node.PropColor:     l.Color,
				node.PropIntensity: formatFloat(l.Intensity),
				node.PropRange:     formatFloat(l.Range),
				node.PropShadows:   fmt.Sprint(l.Shadows),
			},
		})
	}

	for _, it := range c.def.Items {
		item, err := formats.ParseItemType(it.Item)
		if err != nil {
			log.Warn("skipping schematic item", zap.String("schematic", c.def.Name), zap.Error(err))
			continue
		}
		specs = append(specs, blockSpec{
			kind:     node.KindItem,
			name:     BlockNamePrefix + "Item" + string(item),
			original: math.NewTransform(it.Position, it.Rotation, it.Scale),
			props: node.Properties{
				node.PropItemType:  string(item),
				node.PropLocked:    "true",
				node.PropKinematic: "true",
			},
		})
	}

	for _, w := range c.def.WorkStations {
		specs = append(specs, blockSpec{
			kind:     node.KindWorkstation,
			name:     BlockNamePrefix + "Workstation",
			original: math.NewTransform(w.Position, w.Rotation, w.Scale),
			props: node.Properties{
				node.PropLocked:    "true",
				node.PropKinematic: "true",
			},
		})
	}

	parent := c.Transform()
	for _, spec := range specs {
		b := newBlock(c.Env(), spec)
		b.SetTransform(parent.Child(spec.original))
		if err := b.Instantiate(); err != nil {
			return err
		}
		c.blocks.Attach(b)
	}
	return nil
}

// Definition returns the loaded definition.
func (c *Controller) Definition() *formats.Schematic {
	return c.def
}

// Blocks returns the attached-block registry.
func (c *Controller) Blocks() *Registry {
	return c.blocks
}

// State returns the lifecycle state.
func (c *Controller) State() State {
	return c.state
}

// Animating reports whether the parent animation is playing.
func (c *Controller) Animating() bool {
	return c.player != nil && c.player.Active()
}

// Pose returns the configured pose of the root.
func (c *Controller) Pose() formats.Placement {
	return c.placement.Placement
}

// SetPose moves the root to pl and makes it the pose to persist. Blocks
// follow on the next UpdateObject.
func (c *Controller) SetPose(pl formats.Placement) {
	c.placement.Placement = pl
	c.SetTransform(pl.Transform())
}

// Placement returns the configuration to persist.
func (c *Controller) Placement() formats.SchematicPlacement {
	p := c.placement
	p.SchematicName = c.SchematicName
	return p
}

// UpdateObject implements objects.Object. A renamed composite is rebuilt
// from the new definition and replaces this one in the object registry; if
// that fails the name reverts. Otherwise the current pose becomes the
// original pose, the root node is updated in place and the blocks are
// updated.
func (c *Controller) UpdateObject() error {
	if !c.Alive() {
		return objects.ErrDestroyed
	}

	if c.SchematicName != c.def.Name {
		err := c.rebuild()
		if err == nil {
			return nil
		}
		c.log().Warn("rebuilding schematic failed, keeping current definition",
			zap.String("schematic", c.def.Name),
			zap.String("requested", c.SchematicName),
			zap.Error(err))
		c.SchematicName = c.def.Name
	}

	c.original = c.Transform()
	if !c.Spawned() {
		if err := c.Spawn(); err != nil {
			return err
		}
	} else if err := c.Apply(); err != nil {
		return err
	}
	c.updateBlocks()
	return nil
}

// PlayOneFrame releases the next manual frame of every block and of the parent track.
func (c *Controller) PlayOneFrame() {
	for _, b := range c.blocks.Blocks() {
		b.PlayOneFrame()
	}
	if c.player != nil {
		c.player.PlayOneFrame()
	}
}

// Destroy implements objects.Object. Blocks are destroyed before the root.
// Destroying twice is a no-op.
func (c *Controller) Destroy() error {
	if !c.Alive() {
		return nil
	}
	c.state = StateDestroyed
	if c.update != 0 {
		c.Env().Scheduler.Kill(c.update)
	}
	if c.player != nil {
		c.player.Stop()
	}

	err := c.blocks.DetachAll()
	return multierr.Append(err, c.Base.Destroy())
}

// updateBlocks runs the change propagation of every block, staggered by
// BlockSpawnDelay. A pass still in flight is replaced.
func (c *Controller) updateBlocks() {
	sched := c.Env().Scheduler
	if c.update != 0 {
		sched.Kill(c.update)
		c.update = 0
	}

	if c.opts.BlockSpawnDelay < 0 {
		if err := c.blocks.RecomputeAll(c.Transform()); err != nil {
			c.log().Warn("updating schematic blocks", zap.String("schematic", c.def.Name), zap.Error(err))
		}
		return
	}

	i := 0
	c.update = sched.Run(scheduler.TaskFunc(func() scheduler.Wait {
		if i >= c.blocks.Len() {
			return scheduler.Done()
		}
		if err := c.blocks.Update(i, c.Transform()); err != nil {
			c.log().Warn("updating schematic block", zap.String("schematic", c.def.Name), zap.Int("block", i), zap.Error(err))
		}
		i++
		if i >= c.blocks.Len() {
			return scheduler.Done()
		}
		if c.opts.BlockSpawnDelay == 0 {
			return scheduler.NextTick()
		}
		return scheduler.Seconds(c.opts.BlockSpawnDelay)
	}), c.Alive)
}

// moveBlocks pushes the root pose and recomputes every block in one pass.
func (c *Controller) moveBlocks() {
	if err := c.Apply(); err != nil {
		c.log().Warn("moving schematic", zap.String("schematic", c.def.Name), zap.Error(err))
	}
	if err := c.blocks.RecomputeAll(c.Transform()); err != nil {
		c.log().Warn("moving schematic blocks", zap.String("schematic", c.def.Name), zap.Error(err))
	}
}

func (c *Controller) play() {
	frames := c.def.ParentAnimationFrames
	if len(frames) == 0 {
		return
	}
	if h := c.opts.Hooks.AnimationStarting; h != nil && !h(c) {
		return
	}

	env := c.Env()
	c.state = StateAnimating
	c.player = animation.Play(env.Scheduler, frames, c, animation.Options{
		EndAction: c.endAction,
		Space:     animation.World,
		Tolerance: env.Tolerance,
		OnStep:    c.moveBlocks,
		OnEnding: func(action formats.AnimationEndAction) formats.AnimationEndAction {
			if h := c.opts.Hooks.AnimationEnding; h != nil {
				action = h(c, action)
			}
			c.endAction = action
			return action
		},
		OnLoop: func() {
			c.SetPosition(c.original.Position)
			c.SetRotation(c.original.Rotation)
			c.moveBlocks()
		},
		OnDestroy: func() {
			if err := c.Destroy(); err != nil {
				c.log().Warn("destroying animated schematic", zap.String("schematic", c.def.Name), zap.Error(err))
			}
			if env.Objects != nil {
				env.Objects.Remove(c.ID())
			}
		},
		OnFinish: func() {
			if c.state == StateAnimating {
				c.state = StateIdle
			}
		},
	}, c.Alive)
}

// rebuild builds the composite from the definition named by SchematicName
// at the current pose and swaps it into this composite's registry slot.
func (c *Controller) rebuild() error {
	if c.opts.Source == nil {
		return ErrNoSource
	}
	def, err := c.opts.Source.Schematic(c.SchematicName)
	if err != nil {
		return err
	}

	placement := c.placement
	placement.SchematicName = def.Name
	replacement, err := Build(c.Env(), placement, def, c.opts)
	if err != nil {
		return err
	}
	replacement.SetTransform(c.Transform())
	if err := replacement.UpdateObject(); err != nil {
		_ = replacement.Destroy()
		return err
	}

	if objs := c.Env().Objects; objs != nil {
		if err := objs.Replace(c.ID(), replacement); err != nil {
			_ = replacement.Destroy()
			return err
		}
	}
	if err := c.Destroy(); err != nil {
		c.log().Warn("destroying replaced schematic", zap.String("schematic", c.def.Name), zap.Error(err))
	}
	return nil
}

func (c *Controller) blockChanged(ev ChangeEvent) {
	c.log().Debug("schematic block changed",
		zap.String("schematic", c.def.Name),
		zap.Int("block", ev.Index),
		zap.Bool("rebuilt", ev.Rebuilt))
	if h := c.opts.Hooks.BlockChanged; h != nil {
		h(c, ev)
	}
}

func (c *Controller) log() *zap.Logger {
	return c.Env().Logger()
}
