package node

import (
	"fmt"
	"sort"
	"sync"

	"github.com/Faultbox/mapeditor/pkg/math"
)

// Node is the host-side state of one scene node.
type Node struct {
	Handle     Handle
	Kind       Kind
	Transform  math.Transform
	Properties Properties
	Spawned    bool
}

// Listener observes scene changes. Callbacks run with the scene locked,
// so a listener must not call back into the scene.
type Listener interface {
	NodeSpawned(n Node)
	NodeTransformed(h Handle, t math.Transform)
	NodePropertiesChanged(h Handle, props Properties)
	NodeDestroyed(h Handle)
}

// Stats counts scene operations.
type Stats struct {
	Instantiated int
	Spawned      int
	Destroyed    int
	Transforms   int
}

// Scene is an in-memory node arena implementing Factory and PropertySetter.
// Spawned nodes are broadcast to listeners.
type Scene struct {
	mu        sync.RWMutex
	nodes     map[Handle]*Node
	next      Handle
	listeners []Listener
	refused   map[Kind]bool
	stats     Stats
}

// NewScene creates an empty scene.
func NewScene() *Scene {
	return &Scene{
		nodes:   make(map[Handle]*Node),
		refused: make(map[Kind]bool),
	}
}

// AddListener registers l for every later change.
func (s *Scene) AddListener(l Listener) {
	s.mu.Lock()
	s.listeners = append(s.listeners, l)
	s.mu.Unlock()
}

// Refuse makes Instantiate fail for kind until Allow is called.
func (s *Scene) Refuse(kind Kind) {
	s.mu.Lock()
	s.refused[kind] = true
	s.mu.Unlock()
}

// Allow undoes Refuse.
func (s *Scene) Allow(kind Kind) {
	s.mu.Lock()
	delete(s.refused, kind)
	s.mu.Unlock()
}

// Instantiate implements Factory.
func (s *Scene) Instantiate(kind Kind, position math.Vec3, rotation math.Quat) (Handle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.refused[kind] {
		return 0, fmt.Errorf("%w: %s", ErrRefused, kind)
	}

	s.next++
	h := s.next
	s.nodes[h] = &Node{
		Handle: h,
		Kind:   kind,
		Transform: math.Transform{
			Position: position,
			Rotation: rotation,
			Scale:    math.Vec3One(),
		},
	}
	s.stats.Instantiated++
	return h, nil
}

// Destroy implements Factory.
func (s *Scene) Destroy(h Handle) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	n, ok := s.nodes[h]
	if !ok {
		return fmt.Errorf("destroy %d: %w", h, ErrUnknownNode)
	}
	delete(s.nodes, h)
	s.stats.Destroyed++

	if n.Spawned {
		for _, l := range s.listeners {
			l.NodeDestroyed(h)
		}
	}
	return nil
}

// SetTransform implements Factory.
func (s *Scene) SetTransform(h Handle, t math.Transform) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	n, ok := s.nodes[h]
	if !ok {
		return fmt.Errorf("set transform %d: %w", h, ErrUnknownNode)
	}
	n.Transform = t
	s.stats.Transforms++

	if n.Spawned {
		for _, l := range s.listeners {
			l.NodeTransformed(h, t)
		}
	}
	return nil
}

// SetProperties implements PropertySetter.
func (s *Scene) SetProperties(h Handle, props Properties) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	n, ok := s.nodes[h]
	if !ok {
		return fmt.Errorf("set properties %d: %w", h, ErrUnknownNode)
	}
	n.Properties = props.Clone()

	if n.Spawned {
		for _, l := range s.listeners {
			l.NodePropertiesChanged(h, n.Properties.Clone())
		}
	}
	return nil
}

// Spawn implements Factory.
func (s *Scene) Spawn(h Handle) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	n, ok := s.nodes[h]
	if !ok {
		return fmt.Errorf("spawn %d: %w", h, ErrUnknownNode)
	}
	if n.Spawned {
		return fmt.Errorf("spawn %d: %w", h, ErrAlreadySpawned)
	}
	n.Spawned = true
	s.stats.Spawned++

	for _, l := range s.listeners {
		l.NodeSpawned(n.copy())
	}
	return nil
}

// Get returns a copy of a node.
func (s *Scene) Get(h Handle) (Node, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	n, ok := s.nodes[h]
	if !ok {
		return Node{}, false
	}
	return n.copy(), true
}

// Len returns the number of live nodes.
func (s *Scene) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.nodes)
}

// Stats returns the operation counters.
func (s *Scene) Stats() Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.stats
}

// Snapshot calls fn with the spawned nodes ordered by handle.
// No change is published while fn runs, so a subscriber attached to an
// existing listener inside fn sees exactly the changes that follow the
// snapshot. fn must not call back into the scene.
func (s *Scene) Snapshot(fn func(nodes []Node)) {
	s.mu.Lock()
	defer s.mu.Unlock()

	nodes := make([]Node, 0, len(s.nodes))
	for _, n := range s.nodes {
		if n.Spawned {
			nodes = append(nodes, n.copy())
		}
	}
	sort.Slice(nodes, func(i, j int) bool { return nodes[i].Handle < nodes[j].Handle })
	fn(nodes)
}

// CountByKind returns the number of live nodes of a kind.
func (s *Scene) CountByKind(kind Kind) int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	count := 0
	for _, n := range s.nodes {
		if n.Kind == kind {
			count++
		}
	}
	return count
}

func (n *Node) copy() Node {
	c := *n
	c.Properties = n.Properties.Clone()
	return c
}
