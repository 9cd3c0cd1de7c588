// Package editor spawns maps into the scene and drives their objects from
// the server tick.
//
// An Editor is not safe for concurrent use. It is owned by the goroutine
// that calls Tick; other goroutines reach it through Submit.
package editor

import (
	"errors"
	"fmt"
	"sync"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/Faultbox/mapeditor/internal/node"
	"github.com/Faultbox/mapeditor/internal/objects"
	"github.com/Faultbox/mapeditor/internal/scheduler"
	"github.com/Faultbox/mapeditor/internal/schematic"
	"github.com/Faultbox/mapeditor/pkg/formats"
)

// Editor errors.
var (
	ErrNoMapLoaded = errors.New("no map loaded")
	ErrNoStore     = errors.New("no map store")
	ErrNotAnimated = errors.New("object has no animation")
)

// MapStore loads and saves maps by name.
type MapStore interface {
	Load(name string) (*formats.Map, error)
	Save(m *formats.Map) error
}

// Config configures an Editor.
type Config struct {
	Factory node.Factory
	Store   MapStore
	Source  schematic.Source

	// BlockSpawnDelay is passed to every schematic, see schematic.Options.
	BlockSpawnDelay float64
	// AnimationTolerance overrides the animation arrival tolerance when positive.
	AnimationTolerance float32
	Hooks              schematic.Hooks
	Log                *zap.Logger
}

type command struct {
	fn   func(e *Editor) error
	done chan error
}

// Editor owns the placed objects of the loaded map.
type Editor struct {
	cfg     Config
	log     *zap.Logger
	sched   *scheduler.Scheduler
	objects *objects.Registry
	env     *objects.Env
	mapName string

	mu       sync.Mutex
	commands []command
}

// New creates an editor with no map loaded.
func New(cfg Config) *Editor {
	log := cfg.Log
	if log == nil {
		log = zap.NewNop()
	}

	e := &Editor{
		cfg:     cfg,
		log:     log,
		sched:   scheduler.New(),
		objects: objects.NewRegistry(),
	}
	e.env = &objects.Env{
		Factory:   cfg.Factory,
		Scheduler: e.sched,
		Objects:   e.objects,
		Log:       log,
		Tolerance: cfg.AnimationTolerance,
	}
	return e
}

// Scheduler returns the scheduler the editor's animations run on.
func (e *Editor) Scheduler() *scheduler.Scheduler {
	return e.sched
}

// MapName returns the name of the loaded map, or "" when none is loaded.
func (e *Editor) MapName() string {
	return e.mapName
}

// Objects returns the placed objects in placement order.
func (e *Editor) Objects() []objects.Object {
	return e.objects.All()
}

// Object returns a placed object by ID.
func (e *Editor) Object(id objects.ID) (objects.Object, bool) {
	return e.objects.Get(id)
}

// LoadMap replaces the current objects with the map called name from the store.
func (e *Editor) LoadMap(name string) error {
	if e.cfg.Store == nil {
		return ErrNoStore
	}
	m, err := e.cfg.Store.Load(name)
	if err != nil {
		return err
	}
	return e.Spawn(m)
}

// Spawn replaces the current objects with the placements of m.
// Placements that fail are logged and skipped; their errors are combined
// into the returned error while the rest of the map stays loaded.
func (e *Editor) Spawn(m *formats.Map) error {
	if err := m.Validate(); err != nil {
		return err
	}
	if err := e.Clear(); err != nil {
		e.log.Warn("clearing previous map", zap.Error(err))
	}
	e.mapName = m.Name

	var errs error
	for i, p := range m.Primitives {
		if err := e.spawnPrimitive(p); err != nil {
			errs = multierr.Append(errs, e.skip("primitive", i, err))
		}
	}
	for i, p := range m.LightSources {
		if err := e.spawn(objects.NewLightSource(e.env, p)); err != nil {
			errs = multierr.Append(errs, e.skip("light source", i, err))
		}
	}
	for i, p := range m.ShootingTargets {
		if err := e.spawn(objects.NewShootingTarget(e.env, p)); err != nil {
			errs = multierr.Append(errs, e.skip("shooting target", i, err))
		}
	}
	for i, p := range m.Schematics {
		if err := e.spawnSchematic(p); err != nil {
			errs = multierr.Append(errs, e.skip("schematic", i, err))
		}
	}

	e.log.Info("map loaded",
		zap.String("map", m.Name),
		zap.Int("objects", e.objects.Len()),
		zap.Int("failed", len(multierr.Errors(errs))))
	return errs
}

// Reload drops cached schematic definitions and spawns the loaded map again
// from the store.
func (e *Editor) Reload() error {
	if e.mapName == "" {
		return ErrNoMapLoaded
	}
	if inv, ok := e.cfg.Source.(interface{ Invalidate() }); ok {
		inv.Invalidate()
	}
	return e.LoadMap(e.mapName)
}

// Snapshot returns the placements of the live objects as a map.
func (e *Editor) Snapshot(name string) *formats.Map {
	m := &formats.Map{Name: name}
	for _, obj := range e.objects.All() {
		switch o := obj.(type) {
		case *objects.Primitive:
			m.Primitives = append(m.Primitives, o.Placement())
		case *objects.LightSource:
			m.LightSources = append(m.LightSources, o.Placement())
		case *objects.ShootingTarget:
			m.ShootingTargets = append(m.ShootingTargets, o.Placement())
		case *schematic.Controller:
			m.Schematics = append(m.Schematics, o.Placement())
		}
	}
	return m
}

// SaveMap writes the live objects to the store as name. An empty name
// saves over the loaded map.
func (e *Editor) SaveMap(name string) error {
	if e.cfg.Store == nil {
		return ErrNoStore
	}
	if name == "" {
		name = e.mapName
	}
	if name == "" {
		return ErrNoMapLoaded
	}
	if err := e.cfg.Store.Save(e.Snapshot(name)); err != nil {
		return err
	}
	e.mapName = name
	return nil
}

// PlayOneFrame releases the next manual frame of an object's animations.
func (e *Editor) PlayOneFrame(id objects.ID) error {
	obj, ok := e.objects.Get(id)
	if !ok {
		return fmt.Errorf("object %d: %w", id, objects.ErrUnknownObject)
	}
	p, ok := obj.(interface{ PlayOneFrame() })
	if !ok {
		return fmt.Errorf("object %d (%s): %w", id, obj.Name(), ErrNotAnimated)
	}
	p.PlayOneFrame()
	return nil
}

// Clear destroys every placed object.
func (e *Editor) Clear() error {
	var errs error
	for _, obj := range e.objects.Clear() {
		errs = multierr.Append(errs, obj.Destroy())
	}
	e.mapName = ""
	return errs
}

// Submit queues fn to run on the next Tick. It is safe for concurrent use.
// The returned channel receives fn's result.
func (e *Editor) Submit(fn func(e *Editor) error) <-chan error {
	done := make(chan error, 1)
	e.mu.Lock()
	e.commands = append(e.commands, command{fn: fn, done: done})
	e.mu.Unlock()
	return done
}

// Tick runs queued commands and then advances the scheduler by dt seconds.
func (e *Editor) Tick(dt float64) {
	e.mu.Lock()
	cmds := e.commands
	e.commands = nil
	e.mu.Unlock()

	for _, cmd := range cmds {
		cmd.done <- cmd.fn(e)
	}
	e.sched.Tick(dt)
}

// Close destroys every object and fails any command still queued.
func (e *Editor) Close() error {
	e.mu.Lock()
	cmds := e.commands
	e.commands = nil
	e.mu.Unlock()

	for _, cmd := range cmds {
		cmd.done <- errors.New("editor closed")
	}
	return e.Clear()
}

func (e *Editor) spawn(obj objects.Object) error {
	e.objects.Add(obj)
	if err := obj.UpdateObject(); err != nil {
		e.objects.Remove(obj.ID())
		return multierr.Append(err, obj.Destroy())
	}
	return nil
}

func (e *Editor) spawnPrimitive(p formats.PrimitivePlacement) error {
	prim := objects.NewPrimitive(e.env, p)
	if err := e.spawn(prim); err != nil {
		return err
	}
	prim.Play()
	return nil
}

func (e *Editor) spawnSchematic(p formats.SchematicPlacement) error {
	if e.cfg.Source == nil {
		return schematic.ErrNoSource
	}
	def, err := e.cfg.Source.Schematic(p.SchematicName)
	if err != nil {
		return err
	}
	c, err := schematic.Build(e.env, p, def, schematic.Options{
		BlockSpawnDelay: e.cfg.BlockSpawnDelay,
		Hooks:           e.cfg.Hooks,
		Source:          e.cfg.Source,
	})
	if err != nil {
		return err
	}
	e.objects.Add(c)
	return nil
}

func (e *Editor) skip(what string, i int, err error) error {
	e.log.Warn("skipping placement", zap.String("type", what), zap.Int("index", i), zap.Error(err))
	return fmt.Errorf("%s %d: %w", what, i, err)
}
