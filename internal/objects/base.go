package objects

import (
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/Faultbox/mapeditor/internal/node"
	"github.com/Faultbox/mapeditor/internal/scheduler"
	"github.com/Faultbox/mapeditor/pkg/math"
)

// scaleEpsilon is the per-axis difference below which two scales are equal.
const scaleEpsilon = 1e-5

// Env is what objects need from the editor.
type Env struct {
	Factory   node.Factory
	Scheduler *scheduler.Scheduler
	Objects   *Registry
	Log       *zap.Logger

	// Tolerance overrides the animation arrival tolerance when positive.
	Tolerance float32
}

// Logger returns the environment logger, or a no-op logger.
func (e *Env) Logger() *zap.Logger {
	if e.Log == nil {
		return zap.NewNop()
	}
	return e.Log
}

// Base implements the default change-propagation behavior. Concrete
// objects embed it and set their properties before calling UpdateObject.
type Base struct {
	env       *Env
	id        ID
	kind      node.Kind
	name      string
	handle    node.Handle
	transform math.Transform
	props     node.Properties
	prevScale math.Vec3
	spawned   bool
	destroyed bool

	// RespawnRequired forces every update to rebuild the node.
	RespawnRequired bool
}

// NewBase creates an unspawned object.
func NewBase(env *Env, kind node.Kind, name string, t math.Transform) Base {
	return Base{
		env:       env,
		kind:      kind,
		name:      name,
		transform: t,
		props:     node.Properties{node.PropName: name},
	}
}

func (b *Base) bind(id ID) { b.id = id }

// ID implements Object.
func (b *Base) ID() ID { return b.id }

// Kind implements Object.
func (b *Base) Kind() node.Kind { return b.kind }

// Name implements Object.
func (b *Base) Name() string { return b.name }

// SetName renames the object. The change is applied on the next update.
func (b *Base) SetName(name string) {
	b.name = name
	b.props[node.PropName] = name
}

// Env returns the environment the object was created in.
func (b *Base) Env() *Env { return b.env }

// Handle returns the current host node, zero when not spawned.
func (b *Base) Handle() node.Handle { return b.handle }

// Spawned reports whether the object has a spawned node.
func (b *Base) Spawned() bool { return b.spawned }

// Alive implements Object.
func (b *Base) Alive() bool { return !b.destroyed }

// Transform implements Object.
func (b *Base) Transform() math.Transform { return b.transform }

// SetTransform sets the pose applied on the next update.
func (b *Base) SetTransform(t math.Transform) { b.transform = t }

func (b *Base) Position() math.Vec3     { return b.transform.Position }
func (b *Base) SetPosition(p math.Vec3) { b.transform.Position = p }
func (b *Base) Rotation() math.Quat     { return b.transform.Rotation }
func (b *Base) SetRotation(q math.Quat) { b.transform.Rotation = q }
func (b *Base) Scale() math.Vec3        { return b.transform.Scale }
func (b *Base) SetScale(s math.Vec3)    { b.transform.Scale = s }

// Property returns a replicated property.
func (b *Base) Property(key string) string { return b.props[key] }

// SetProperty sets a replicated property applied on the next update.
func (b *Base) SetProperty(key, value string) { b.props[key] = value }

// Instantiate creates the host node without spawning it.
// It does nothing when the node already exists.
func (b *Base) Instantiate() error {
	if b.destroyed {
		return ErrDestroyed
	}
	if b.handle != 0 {
		return nil
	}
	h, err := b.env.Factory.Instantiate(b.kind, b.transform.Position, b.transform.Rotation)
	if err != nil {
		return fmt.Errorf("instantiate %s %q: %w", b.kind, b.name, err)
	}
	b.handle = h
	return nil
}

// Spawn applies the current configuration to the node and spawns it,
// instantiating the node first if needed.
func (b *Base) Spawn() error {
	if b.destroyed {
		return ErrDestroyed
	}
	if b.spawned {
		return fmt.Errorf("spawn %q: %w", b.name, node.ErrAlreadySpawned)
	}
	if err := b.Instantiate(); err != nil {
		return err
	}

	f := b.env.Factory
	if err := b.Apply(); err != nil {
		_ = f.Destroy(b.handle)
		b.handle = 0
		return err
	}
	if err := f.Spawn(b.handle); err != nil {
		_ = f.Destroy(b.handle)
		b.handle = 0
		return fmt.Errorf("spawn %q: %w", b.name, err)
	}

	b.spawned = true
	return nil
}

// Respawn destroys the node and creates a fresh one from the current configuration.
func (b *Base) Respawn() error {
	if b.handle != 0 {
		old := b.handle
		b.spawned = false
		b.handle = 0
		if err := b.env.Factory.Destroy(old); err != nil && !errors.Is(err, node.ErrUnknownNode) {
			return fmt.Errorf("respawn %q: %w", b.name, err)
		}
	}
	return b.Spawn()
}

// UpdateObject implements the default change propagation: the pose and
// properties are pushed in place unless the scale changed or the object
// always needs a respawn.
func (b *Base) UpdateObject() error {
	if b.destroyed {
		return ErrDestroyed
	}
	if !b.spawned {
		return b.Spawn()
	}
	if b.RespawnRequired || b.ScaleChanged() {
		return b.Respawn()
	}
	return b.Apply()
}

// ScaleChanged reports whether the scale differs from the last applied one.
func (b *Base) ScaleChanged() bool {
	return !b.transform.Scale.ApproxEqual(b.prevScale, scaleEpsilon)
}

// Destroy implements Object. Destroying twice is a no-op.
func (b *Base) Destroy() error {
	if b.destroyed {
		return nil
	}
	b.destroyed = true
	if b.handle == 0 {
		return nil
	}
	h := b.handle
	b.spawned = false
	b.handle = 0
	if err := b.env.Factory.Destroy(h); err != nil {
		return fmt.Errorf("destroy %q: %w", b.name, err)
	}
	return nil
}

// Apply pushes the pose and properties to the node in place.
func (b *Base) Apply() error {
	f := b.env.Factory
	if err := f.SetTransform(b.handle, b.transform); err != nil {
		return err
	}
	if ps, ok := f.(node.PropertySetter); ok {
		if err := ps.SetProperties(b.handle, b.props); err != nil {
			return err
		}
	}
	b.prevScale = b.transform.Scale
	return nil
}
