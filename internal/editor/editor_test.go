package editor

import (
	"encoding/json"
	stdmath "math"
	"net/http"
	"strings"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/Faultbox/mapeditor/internal/node"
	"github.com/Faultbox/mapeditor/internal/objects"
	"github.com/Faultbox/mapeditor/internal/schematic"
	"github.com/Faultbox/mapeditor/internal/storage"
	"github.com/Faultbox/mapeditor/pkg/formats"
	"github.com/Faultbox/mapeditor/pkg/math"
)

func placement(pos math.Vec3) formats.Placement {
	return formats.Placement{Position: pos, Scale: math.Vec3One()}
}

func testDefinitions() schematic.StaticSource {
	return schematic.StaticSource{
		"Gate": {
			Name: "Gate",
			Primitives: []formats.PrimitiveRecord{
				{PrimitiveType: formats.PrimitiveCube, Color: "white", Scale: math.Vec3One()},
				{PrimitiveType: formats.PrimitiveCube, Color: "white", Position: math.Vec3{X: 2}, Scale: math.Vec3One()},
			},
			LightSources: []formats.LightSourceRecord{{Color: "white", Intensity: 1, Range: 5}},
		},
		"Bars": {
			Name: "Bars",
			Primitives: []formats.PrimitiveRecord{
				{PrimitiveType: formats.PrimitiveCube, Color: "grey", Scale: math.Vec3One()},
			},
		},
	}
}

func testMap() *formats.Map {
	return &formats.Map{
		Name: "lobby",
		Primitives: []formats.PrimitivePlacement{{
			Placement:     placement(math.Vec3{X: 1}),
			PrimitiveType: formats.PrimitiveSphere,
			Color:         "red",
		}},
		LightSources: []formats.LightSourcePlacement{
			{Position: math.Vec3{Y: 3}, Color: "white", Intensity: 1, Range: 10},
		},
		ShootingTargets: []formats.ShootingTargetPlacement{
			{Placement: placement(math.Vec3{Z: 5}), TargetType: formats.TargetBinary},
		},
		Schematics: []formats.SchematicPlacement{
			{Placement: placement(math.Vec3{X: 20}), SchematicName: "Gate"},
		},
	}
}

type testEditor struct {
	*Editor
	scene *node.Scene
	store *storage.MapStore
}

func newTestEditor(t *testing.T) *testEditor {
	t.Helper()

	scene := node.NewScene()
	store := storage.New(storage.NewMemoryBackend(), nil)
	e := New(Config{
		Factory:         scene,
		Store:           store,
		Source:          testDefinitions(),
		BlockSpawnDelay: schematic.SynchronousUpdate,
	})
	return &testEditor{Editor: e, scene: scene, store: store}
}

func TestSpawnMap(t *testing.T) {
	e := newTestEditor(t)

	require.NoError(t, e.Spawn(testMap()))
	require.Equal(t, "lobby", e.MapName())

	objs := e.Objects()
	require.Len(t, objs, 4)
	require.IsType(t, &objects.Primitive{}, objs[0])
	require.IsType(t, &objects.LightSource{}, objs[1])
	require.IsType(t, &objects.ShootingTarget{}, objs[2])
	require.IsType(t, &schematic.Controller{}, objs[3])

	// primitive + light + target + schematic root and three blocks
	require.Equal(t, 7, e.scene.Len())
	require.Equal(t, 1, e.scene.CountByKind(node.KindShootingTargetBinary))

	gate := objs[3].(*schematic.Controller)
	require.Equal(t, 3, gate.Blocks().Len())
	require.Equal(t, float32(22), gate.Blocks().At(1).Position().X)
}

func TestSpawnSkipsFailedPlacements(t *testing.T) {
	e := newTestEditor(t)

	m := testMap()
	m.Schematics = append(m.Schematics, formats.SchematicPlacement{
		Placement:     placement(math.Vec3{}),
		SchematicName: "Missing",
	})
	e.scene.Refuse(node.KindLightSource)

	err := e.Spawn(m)
	require.Error(t, err)
	require.ErrorIs(t, err, schematic.ErrUnknownSchematic)
	require.ErrorIs(t, err, node.ErrRefused)

	// The light, the gate holding a light block and the missing schematic
	// are skipped. The rest stays.
	require.Len(t, e.Objects(), 2)
	require.Equal(t, 2, e.scene.Len())
	require.Equal(t, 0, e.scene.CountByKind(node.KindLightSource))
}

func TestSpawnReplacesPreviousMap(t *testing.T) {
	e := newTestEditor(t)

	require.NoError(t, e.Spawn(testMap()))

	small := &formats.Map{
		Name: "small",
		LightSources: []formats.LightSourcePlacement{
			{Color: "blue", Intensity: 1, Range: 1},
		},
	}
	require.NoError(t, e.Spawn(small))
	require.Equal(t, "small", e.MapName())
	require.Len(t, e.Objects(), 1)
	require.Equal(t, 1, e.scene.Len())
}

func TestSpawnRejectsInvalidMap(t *testing.T) {
	e := newTestEditor(t)
	require.NoError(t, e.Spawn(testMap()))

	m := testMap()
	m.Primitives[0].AnimationFrames = []formats.AnimationFrame{{RotationRate: 1}}
	require.ErrorIs(t, e.Spawn(m), formats.ErrZeroPositionRate)

	// The loaded map is untouched
	require.Len(t, e.Objects(), 4)
}

func TestLoadMap(t *testing.T) {
	e := newTestEditor(t)
	require.NoError(t, e.store.Save(testMap()))

	require.NoError(t, e.LoadMap("lobby"))
	require.Len(t, e.Objects(), 4)

	require.ErrorIs(t, e.LoadMap("nowhere"), storage.ErrMapNotFound)
	require.Len(t, e.Objects(), 4)
}

func TestSaveMap(t *testing.T) {
	e := newTestEditor(t)

	require.ErrorIs(t, e.SaveMap(""), ErrNoMapLoaded)

	require.NoError(t, e.Spawn(testMap()))
	require.NoError(t, e.SaveMap("copy"))
	require.Equal(t, "copy", e.MapName())

	saved, err := e.store.Load("copy")
	require.NoError(t, err)
	require.Equal(t, 4, saved.ObjectCount())
	require.Equal(t, formats.PrimitiveSphere, saved.Primitives[0].PrimitiveType)
	require.Equal(t, formats.TargetBinary, saved.ShootingTargets[0].TargetType)
	require.Equal(t, "Gate", saved.Schematics[0].SchematicName)
	require.Equal(t, float32(20), saved.Schematics[0].Position.X)
}

type countingSource struct {
	schematic.StaticSource
	invalidated int
}

func (s *countingSource) Invalidate() { s.invalidated++ }

func TestReload(t *testing.T) {
	scene := node.NewScene()
	store := storage.New(storage.NewMemoryBackend(), nil)
	source := &countingSource{StaticSource: testDefinitions()}
	e := New(Config{Factory: scene, Store: store, Source: source, BlockSpawnDelay: schematic.SynchronousUpdate})

	require.ErrorIs(t, e.Reload(), ErrNoMapLoaded)

	require.NoError(t, store.Save(testMap()))
	require.NoError(t, e.LoadMap("lobby"))

	m := testMap()
	m.LightSources = nil
	require.NoError(t, store.Save(m))

	require.NoError(t, e.Reload())
	require.Equal(t, 1, source.invalidated)
	require.Len(t, e.Objects(), 3)
}

func TestPrimitiveAnimation(t *testing.T) {
	e := newTestEditor(t)

	m := &formats.Map{
		Name: "anim",
		Primitives: []formats.PrimitivePlacement{{
			Placement:     placement(math.Vec3{}),
			PrimitiveType: formats.PrimitiveCube,
			AnimationFrames: []formats.AnimationFrame{
				{PositionAdded: math.Vec3{Y: 10}, PositionRate: 2, RotationRate: 1},
			},
		}},
	}
	require.NoError(t, e.Spawn(m))
	prim := e.Objects()[0].(*objects.Primitive)
	require.True(t, prim.Animating())

	e.Tick(0.02)
	require.Equal(t, float32(5), prim.Position().Y)
	e.Tick(0.02)
	require.Equal(t, float32(10), prim.Position().Y)

	n, ok := e.scene.Get(prim.Handle())
	require.True(t, ok)
	require.Equal(t, float32(10), n.Transform.Position.Y)

	e.Tick(0.02)
	require.False(t, prim.Animating())
}

func TestAnimationDestroyRemovesObject(t *testing.T) {
	e := newTestEditor(t)

	m := &formats.Map{
		Name: "vanish",
		Primitives: []formats.PrimitivePlacement{{
			Placement:          placement(math.Vec3{}),
			AnimationFrames:    []formats.AnimationFrame{{PositionAdded: math.Vec3{X: 1}, PositionRate: 1, RotationRate: 1}},
			AnimationEndAction: formats.EndActionDestroy,
		}},
	}
	require.NoError(t, e.Spawn(m))
	require.Len(t, e.Objects(), 1)

	e.Tick(0.02)
	require.Empty(t, e.Objects())
	require.Equal(t, 0, e.scene.Len())
}

func TestPlayOneFrame(t *testing.T) {
	e := newTestEditor(t)

	m := &formats.Map{
		Name: "manual",
		Primitives: []formats.PrimitivePlacement{{
			Placement: placement(math.Vec3{}),
			AnimationFrames: []formats.AnimationFrame{
				{PositionAdded: math.Vec3{X: 1}, PositionRate: 1, RotationRate: 1, Delay: formats.ManualDelay},
			},
		}},
		LightSources: []formats.LightSourcePlacement{{Color: "white", Intensity: 1, Range: 1}},
	}
	require.NoError(t, e.Spawn(m))
	objs := e.Objects()
	prim := objs[0].(*objects.Primitive)

	e.Tick(0.02)
	e.Tick(0.02)
	require.Equal(t, float32(0), prim.Position().X)

	require.NoError(t, e.PlayOneFrame(prim.ID()))
	e.Tick(0.02)
	require.Equal(t, float32(1), prim.Position().X)

	require.ErrorIs(t, e.PlayOneFrame(objs[1].ID()), ErrNotAnimated)
	require.ErrorIs(t, e.PlayOneFrame(999), objects.ErrUnknownObject)
}

func TestUpdateObjectScale(t *testing.T) {
	e := newTestEditor(t)
	require.NoError(t, e.Spawn(testMap()))

	gate := e.Objects()[3].(*schematic.Controller)
	root := gate.Handle()
	block := gate.Blocks().At(1).Handle()
	destroyed := e.scene.Stats().Destroyed

	scale := math.Vec3{X: 2, Y: 2, Z: 2}
	require.NoError(t, e.UpdateObject(gate.ID(), Change{Scale: &scale}))

	obj, ok := e.Object(gate.ID())
	require.True(t, ok)
	require.Same(t, gate, obj)
	require.Equal(t, root, gate.Handle())
	require.Equal(t, block, gate.Blocks().At(1).Handle())
	require.Equal(t, float32(24), gate.Blocks().At(1).Position().X)
	require.Equal(t, destroyed, e.scene.Stats().Destroyed)
	require.Equal(t, scale, e.Snapshot("lobby").Schematics[0].Scale)
}

func TestUpdateObjectRename(t *testing.T) {
	e := newTestEditor(t)
	require.NoError(t, e.Spawn(testMap()))

	gate := e.Objects()[3]
	name := "Bars"
	require.NoError(t, e.UpdateObject(gate.ID(), Change{SchematicName: &name}))

	objs := e.Objects()
	require.Len(t, objs, 4)
	bars, ok := objs[3].(*schematic.Controller)
	require.True(t, ok)
	require.NotSame(t, gate, bars)
	require.Equal(t, gate.ID(), bars.ID())
	require.Equal(t, 1, bars.Blocks().Len())
	require.False(t, gate.Alive())
	require.Equal(t, "Bars", e.Snapshot("lobby").Schematics[0].SchematicName)
}

func TestUpdateObjectTargetType(t *testing.T) {
	e := newTestEditor(t)
	require.NoError(t, e.Spawn(testMap()))

	target := e.Objects()[2]
	classD := formats.TargetClassD
	require.NoError(t, e.UpdateObject(target.ID(), Change{TargetType: &classD}))

	replaced := e.Objects()[2].(*objects.ShootingTarget)
	require.Equal(t, target.ID(), replaced.ID())
	require.Equal(t, formats.TargetClassD, replaced.TargetType)
	require.Equal(t, 0, e.scene.CountByKind(node.KindShootingTargetBinary))
	require.Equal(t, 1, e.scene.CountByKind(node.KindShootingTargetClassD))
}

func TestUpdateObjectPose(t *testing.T) {
	e := newTestEditor(t)
	require.NoError(t, e.Spawn(testMap()))

	prim := e.Objects()[0]
	pos := math.Vec3{X: 7, Y: 1}
	color := "blue"
	require.NoError(t, e.UpdateObject(prim.ID(), Change{Position: &pos, Color: &color}))

	n, ok := e.scene.Get(prim.(*objects.Primitive).Handle())
	require.True(t, ok)
	require.Equal(t, pos, n.Transform.Position)
	require.Equal(t, "blue", n.Properties[node.PropColor])

	saved := e.Snapshot("lobby").Primitives[0]
	require.Equal(t, pos, saved.Position)
	require.Equal(t, "blue", saved.Color)
}

func TestUpdateObjectErrors(t *testing.T) {
	e := newTestEditor(t)
	require.NoError(t, e.Spawn(testMap()))
	objs := e.Objects()

	name := "Bars"
	require.ErrorIs(t, e.UpdateObject(objs[0].ID(), Change{SchematicName: &name}), ErrUnsupportedChange)

	classD := formats.TargetClassD
	require.ErrorIs(t, e.UpdateObject(objs[3].ID(), Change{TargetType: &classD}), ErrUnsupportedChange)

	bad := math.Vec3{X: float32(stdmath.Inf(1))}
	require.ErrorIs(t, e.UpdateObject(objs[0].ID(), Change{Position: &bad}), ErrInvalidChange)
	require.Equal(t, float32(1), objs[0].Transform().Position.X)

	require.ErrorIs(t, e.UpdateObject(999, Change{}), objects.ErrUnknownObject)
}

func TestClear(t *testing.T) {
	e := newTestEditor(t)
	require.NoError(t, e.Spawn(testMap()))

	require.NoError(t, e.Clear())
	require.Empty(t, e.Objects())
	require.Equal(t, 0, e.scene.Len())
	require.Equal(t, "", e.MapName())
}

func TestSubmit(t *testing.T) {
	e := newTestEditor(t)
	require.NoError(t, e.store.Save(testMap()))

	done := e.Submit(func(e *Editor) error { return e.LoadMap("lobby") })
	select {
	case <-done:
		t.Fatal("command ran before Tick")
	default:
	}

	e.Tick(0.02)
	require.NoError(t, <-done)
	require.Len(t, e.Objects(), 4)

	pending := e.Submit(func(e *Editor) error { return nil })
	require.NoError(t, e.Close())
	require.Error(t, <-pending)
	require.Equal(t, 0, e.scene.Len())
}

func startTicking(t *testing.T, e *Editor) {
	t.Helper()

	var stop atomic.Bool
	finished := make(chan struct{})
	go func() {
		defer close(finished)
		for !stop.Load() {
			e.Tick(0.001)
			time.Sleep(time.Millisecond)
		}
	}()
	t.Cleanup(func() {
		stop.Store(true)
		<-finished
	})
}

func TestHTTPHandler(t *testing.T) {
	e := newTestEditor(t)
	require.NoError(t, e.store.Save(testMap()))
	startTicking(t, e.Editor)

	srv := httptest.NewServer(NewHTTPHandler(e.Editor))
	t.Cleanup(srv.Close)

	resp, err := http.Post(srv.URL+"/map/load?name=lobby", "", nil)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var info mapInfo
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&info))
	require.Equal(t, "lobby", info.Name)
	require.Len(t, info.Objects, 4)
	require.Equal(t, "Primitive", info.Objects[0].Kind)

	get, err := http.Get(srv.URL + "/map")
	require.NoError(t, err)
	get.Body.Close()
	require.Equal(t, http.StatusOK, get.StatusCode)

	missing, err := http.Post(srv.URL+"/map/load?name=nowhere", "", nil)
	require.NoError(t, err)
	missing.Body.Close()
	require.Equal(t, http.StatusNotFound, missing.StatusCode)

	light := info.Objects[1].ID
	frame, err := http.Post(srv.URL+"/objects/"+jsonID(light)+"/frame", "", nil)
	require.NoError(t, err)
	frame.Body.Close()
	require.Equal(t, http.StatusConflict, frame.StatusCode)

	bad, err := http.Post(srv.URL+"/objects/abc/frame", "", nil)
	require.NoError(t, err)
	bad.Body.Close()
	require.Equal(t, http.StatusBadRequest, bad.StatusCode)
}

func postChange(t *testing.T, url string, id objects.ID, body string) (*http.Response, mapInfo) {
	t.Helper()
	resp, err := http.Post(url+"/objects/"+jsonID(id), "application/json", strings.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()

	var info mapInfo
	if resp.StatusCode == http.StatusOK {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&info))
	}
	return resp, info
}

func TestHTTPUpdateObject(t *testing.T) {
	e := newTestEditor(t)
	require.NoError(t, e.store.Save(testMap()))
	startTicking(t, e.Editor)

	srv := httptest.NewServer(NewHTTPHandler(e.Editor))
	t.Cleanup(srv.Close)

	resp, err := http.Post(srv.URL+"/map/load?name=lobby", "", nil)
	require.NoError(t, err)
	var info mapInfo
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&info))
	resp.Body.Close()
	gate := info.Objects[3]

	// A scale change updates the composite in place.
	destroyed := e.scene.Stats().Destroyed
	resp, info = postChange(t, srv.URL, gate.ID, `{"scale": {"X": 2, "Y": 2, "Z": 2}}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, gate.ID, info.Objects[3].ID)
	require.Equal(t, math.Vec3{X: 2, Y: 2, Z: 2}, info.Objects[3].Scale)
	require.Equal(t, destroyed, e.scene.Stats().Destroyed)

	// A rename rebuilds it in the same slot under the same ID.
	resp, info = postChange(t, srv.URL, gate.ID, `{"schematic": "Bars"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Len(t, info.Objects, 4)
	require.Equal(t, gate.ID, info.Objects[3].ID)
	require.Equal(t, schematic.NamePrefix+"Bars", info.Objects[3].Name)
	require.Equal(t, math.Vec3{X: 2, Y: 2, Z: 2}, info.Objects[3].Scale)

	resp, _ = postChange(t, srv.URL, info.Objects[0].ID, `{"target_type": "ClassD"}`)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = postChange(t, srv.URL, gate.ID, `{"colour": "red"}`)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = postChange(t, srv.URL, 999, `{}`)
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func jsonID(id objects.ID) string {
	data, _ := json.Marshal(id)
	return string(data)
}

