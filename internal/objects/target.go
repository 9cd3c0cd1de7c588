package objects

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/Faultbox/mapeditor/internal/node"
	"github.com/Faultbox/mapeditor/pkg/formats"
)

// TargetKind returns the prefab for a shooting target type.
func TargetKind(t formats.ShootingTargetType) node.Kind {
	switch t {
	case formats.TargetClassD:
		return node.KindShootingTargetClassD
	case formats.TargetBinary:
		return node.KindShootingTargetBinary
	default:
		return node.KindShootingTargetSport
	}
}

// ShootingTarget is a placed shooting target. Each target type is a
// different prefab, so changing the type replaces the whole object.
type ShootingTarget struct {
	Base

	TargetType formats.ShootingTargetType

	placement formats.ShootingTargetPlacement
}

// NewShootingTarget creates an unspawned shooting target.
func NewShootingTarget(env *Env, p formats.ShootingTargetPlacement) *ShootingTarget {
	return &ShootingTarget{
		Base:       NewBase(env, TargetKind(p.TargetType), "ShootingTarget"+p.TargetType.String(), p.Transform()),
		TargetType: p.TargetType,
		placement:  p,
	}
}

// UpdateObject implements Object. A type change spawns a replacement
// object in the same registry slot and destroys this one. If the
// replacement cannot be spawned the type reverts.
func (s *ShootingTarget) UpdateObject() error {
	if s.TargetType == s.placement.TargetType {
		return s.Base.UpdateObject()
	}

	env := s.Env()
	p := s.placement
	p.TargetType = s.TargetType
	replacement := NewShootingTarget(env, p)
	replacement.SetTransform(s.Transform())

	if err := replacement.UpdateObject(); err != nil {
		s.TargetType = s.placement.TargetType
		return fmt.Errorf("replace shooting target with %s: %w", p.TargetType, err)
	}
	if err := env.Objects.Replace(s.ID(), replacement); err != nil {
		_ = replacement.Destroy()
		s.TargetType = s.placement.TargetType
		return err
	}
	if err := s.Destroy(); err != nil {
		env.Logger().Warn("destroying replaced shooting target", zap.Error(err))
	}
	return nil
}

// Pose returns the configured pose.
func (s *ShootingTarget) Pose() formats.Placement {
	return s.placement.Placement
}

// SetPose moves the target to pl and makes it the pose to persist.
func (s *ShootingTarget) SetPose(pl formats.Placement) {
	s.placement.Placement = pl
	s.SetTransform(pl.Transform())
}

// Placement returns the configuration to persist.
func (s *ShootingTarget) Placement() formats.ShootingTargetPlacement {
	p := s.placement
	p.TargetType = s.TargetType
	return p
}
