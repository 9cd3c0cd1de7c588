// Package node defines what the editor needs from the host engine:
// creating, moving, spawning and destroying networked scene nodes.
package node

import (
	"errors"
	"fmt"

	"github.com/Faultbox/mapeditor/pkg/math"
)

// Node errors.
var (
	ErrUnknownNode    = errors.New("unknown node")
	ErrAlreadySpawned = errors.New("node already spawned")
	ErrRefused        = errors.New("host refused to instantiate node")
)

// Handle identifies a node owned by the host. Zero is never a valid handle.
type Handle uint32

// Kind is the prefab a node is instantiated from.
type Kind uint8

const (
	KindEmpty Kind = iota // Bare anchor, used as schematic root
	KindPrimitive
	KindLightSource
	KindItem
	KindWorkstation
	KindShootingTargetSport
	KindShootingTargetClassD
	KindShootingTargetBinary
)

var kindNames = []string{
	"Empty",
	"Primitive",
	"LightSource",
	"Item",
	"Workstation",
	"ShootingTargetSport",
	"ShootingTargetClassD",
	"ShootingTargetBinary",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("Kind(%d)", k)
}

// Properties are replicated key/value attributes of a node
// (shape, color, light intensity, lock flags).
type Properties map[string]string

// Clone returns a copy of p.
func (p Properties) Clone() Properties {
	if p == nil {
		return nil
	}
	c := make(Properties, len(p))
	for k, v := range p {
		c[k] = v
	}
	return c
}

// Property keys understood by clients.
const (
	PropName          = "name"
	PropPrimitiveType = "primitive_type"
	PropColor         = "color"
	PropIntensity     = "intensity"
	PropRange         = "range"
	PropShadows       = "shadows"
	PropItemType      = "item_type"
	PropLocked        = "locked"
	PropKinematic     = "kinematic"
)

// Factory is the host capability used to manage nodes.
type Factory interface {
	// Instantiate creates an unspawned node.
	Instantiate(kind Kind, position math.Vec3, rotation math.Quat) (Handle, error)
	// Destroy removes a node. Destroying an unknown handle is an error.
	Destroy(h Handle) error
	// SetTransform updates the pose of a node.
	SetTransform(h Handle, t math.Transform) error
	// Spawn makes a node visible to clients. It must be called exactly once per node.
	Spawn(h Handle) error
}

// PropertySetter is implemented by factories that replicate node properties.
type PropertySetter interface {
	SetProperties(h Handle, props Properties) error
}
