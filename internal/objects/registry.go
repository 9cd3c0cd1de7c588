// Package objects holds the live placed objects of the editor and the
// change-propagation contract every object implements.
package objects

import (
	"errors"
	"fmt"

	"github.com/Faultbox/mapeditor/internal/node"
	"github.com/Faultbox/mapeditor/pkg/math"
)

// Object errors.
var (
	ErrUnknownObject = errors.New("unknown object")
	ErrDestroyed     = errors.New("object destroyed")
)

// ID identifies a placed object for its whole life, across respawns and rebuilds.
type ID uint32

// Object is a placed editor object.
type Object interface {
	ID() ID
	Kind() node.Kind
	Name() string
	Transform() math.Transform
	// UpdateObject pushes the current configuration to the host, respawning
	// or rebuilding the object when the change cannot be applied in place.
	UpdateObject() error
	// Destroy removes the object and everything it owns from the host.
	Destroy() error
	Alive() bool

	bind(id ID)
}

// Registry is the ordered set of placed objects.
// Replacing an object keeps its ID and position in the order.
type Registry struct {
	objects []Object
	index   map[ID]int
	next    ID
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{index: make(map[ID]int)}
}

// Add appends obj and assigns it a new ID.
func (r *Registry) Add(obj Object) ID {
	r.next++
	id := r.next
	obj.bind(id)
	r.index[id] = len(r.objects)
	r.objects = append(r.objects, obj)
	return id
}

// Get returns an object by ID.
func (r *Registry) Get(id ID) (Object, bool) {
	i, ok := r.index[id]
	if !ok {
		return nil, false
	}
	return r.objects[i], true
}

// IndexOf returns the position of an object, or -1.
func (r *Registry) IndexOf(id ID) int {
	i, ok := r.index[id]
	if !ok {
		return -1
	}
	return i
}

// Replace puts obj in the slot of id. obj takes over the ID.
func (r *Registry) Replace(id ID, obj Object) error {
	i, ok := r.index[id]
	if !ok {
		return fmt.Errorf("replace %d: %w", id, ErrUnknownObject)
	}
	obj.bind(id)
	r.objects[i] = obj
	return nil
}

// Remove drops an object without destroying it. It reports whether the object was present.
func (r *Registry) Remove(id ID) bool {
	i, ok := r.index[id]
	if !ok {
		return false
	}
	copy(r.objects[i:], r.objects[i+1:])
	r.objects[len(r.objects)-1] = nil
	r.objects = r.objects[:len(r.objects)-1]
	delete(r.index, id)
	for j := i; j < len(r.objects); j++ {
		r.index[r.objects[j].ID()] = j
	}
	return true
}

// All returns the objects in placement order.
func (r *Registry) All() []Object {
	result := make([]Object, len(r.objects))
	copy(result, r.objects)
	return result
}

// Len returns the number of objects.
func (r *Registry) Len() int {
	return len(r.objects)
}

// Clear removes every object and returns them in placement order.
func (r *Registry) Clear() []Object {
	removed := r.objects
	r.objects = nil
	r.index = make(map[ID]int)
	return removed
}
