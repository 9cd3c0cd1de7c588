package editor

import (
	"errors"
	"fmt"

	"github.com/Faultbox/mapeditor/internal/objects"
	"github.com/Faultbox/mapeditor/internal/schematic"
	"github.com/Faultbox/mapeditor/pkg/formats"
	"github.com/Faultbox/mapeditor/pkg/math"
)

// Change errors.
var (
	ErrUnsupportedChange = errors.New("change does not apply to this object")
	ErrInvalidChange     = errors.New("invalid change")
)

// Change edits the configuration of a placed object. Nil fields are left
// as they are.
type Change struct {
	Position *math.Vec3 `json:"position,omitempty"`
	Rotation *math.Vec3 `json:"rotation,omitempty"` // Euler degrees
	Scale    *math.Vec3 `json:"scale,omitempty"`

	Color         *string                     `json:"color,omitempty"`
	PrimitiveType *formats.PrimitiveType      `json:"primitive_type,omitempty"`
	TargetType    *formats.ShootingTargetType `json:"target_type,omitempty"`
	SchematicName *string                     `json:"schematic,omitempty"`
}

type poser interface {
	Pose() formats.Placement
	SetPose(formats.Placement)
}

// UpdateObject applies ch to the object and runs its change propagation.
// A new schematic name or target type replaces the object in its slot, so
// the ID stays valid. Nothing is changed when ch does not fit the object.
func (e *Editor) UpdateObject(id objects.ID, ch Change) error {
	obj, ok := e.objects.Get(id)
	if !ok {
		return fmt.Errorf("object %d: %w", id, objects.ErrUnknownObject)
	}
	if err := ch.apply(obj); err != nil {
		return fmt.Errorf("object %d (%s): %w", id, obj.Name(), err)
	}
	return obj.UpdateObject()
}

func (ch Change) apply(obj objects.Object) error {
	prim, _ := obj.(*objects.Primitive)
	light, _ := obj.(*objects.LightSource)
	target, _ := obj.(*objects.ShootingTarget)
	comp, _ := obj.(*schematic.Controller)
	p, _ := obj.(poser)
	moved := ch.Position != nil || ch.Rotation != nil || ch.Scale != nil

	switch {
	case ch.SchematicName != nil && comp == nil,
		ch.TargetType != nil && target == nil,
		ch.PrimitiveType != nil && prim == nil,
		ch.Color != nil && prim == nil && light == nil,
		moved && p == nil:
		return ErrUnsupportedChange
	}
	for _, v := range []*math.Vec3{ch.Position, ch.Rotation, ch.Scale} {
		if v != nil && !v.IsFinite() {
			return fmt.Errorf("%w: non-finite vector %v", ErrInvalidChange, *v)
		}
	}

	if moved {
		pose := p.Pose()
		if ch.Position != nil {
			pose.Position = *ch.Position
		}
		if ch.Rotation != nil {
			pose.Rotation = *ch.Rotation
		}
		if ch.Scale != nil {
			pose.Scale = *ch.Scale
		}
		p.SetPose(pose)
	}

	if ch.Color != nil {
		if prim != nil {
			prim.Color = *ch.Color
		} else {
			light.Color = *ch.Color
		}
	}
	if ch.PrimitiveType != nil {
		prim.Type = *ch.PrimitiveType
	}
	if ch.TargetType != nil {
		target.TargetType = *ch.TargetType
	}
	if ch.SchematicName != nil {
		comp.SchematicName = *ch.SchematicName
	}
	return nil
}
