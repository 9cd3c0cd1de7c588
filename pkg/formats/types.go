package formats

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Object type errors.
var (
	ErrUnknownPrimitiveType = errors.New("unknown primitive type")
	ErrUnknownItemType      = errors.New("unknown item type")
	ErrUnknownTargetType    = errors.New("unknown shooting target type")
)

// PrimitiveType is the shape of a primitive object.
// Values match the host engine's primitive enum.
type PrimitiveType uint8

const (
	PrimitiveSphere PrimitiveType = iota
	PrimitiveCapsule
	PrimitiveCylinder
	PrimitiveCube
	PrimitivePlane
	PrimitiveQuad
)

var primitiveNames = []string{"Sphere", "Capsule", "Cylinder", "Cube", "Plane", "Quad"}

// String returns the primitive name.
func (p PrimitiveType) String() string {
	if int(p) < len(primitiveNames) {
		return primitiveNames[p]
	}
	return fmt.Sprintf("Unknown(%d)", p)
}

// ParsePrimitiveType parses a primitive name or its numeric value.
func ParsePrimitiveType(s string) (PrimitiveType, error) {
	s = strings.TrimSpace(s)
	for i, name := range primitiveNames {
		if strings.EqualFold(name, s) {
			return PrimitiveType(i), nil
		}
	}
	if n, err := strconv.Atoi(s); err == nil && n >= 0 && n < len(primitiveNames) {
		return PrimitiveType(n), nil
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownPrimitiveType, s)
}

// MarshalText implements encoding.TextMarshaler.
func (p PrimitiveType) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (p *PrimitiveType) UnmarshalText(text []byte) error {
	parsed, err := ParsePrimitiveType(string(text))
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}

// ShootingTargetType is the model of a shooting target.
type ShootingTargetType uint8

const (
	TargetSport ShootingTargetType = iota
	TargetClassD
	TargetBinary
)

var targetNames = []string{"Sport", "ClassD", "Binary"}

// String returns the target name.
func (t ShootingTargetType) String() string {
	if int(t) < len(targetNames) {
		return targetNames[t]
	}
	return fmt.Sprintf("Unknown(%d)", t)
}

// MarshalText implements encoding.TextMarshaler.
func (t ShootingTargetType) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (t *ShootingTargetType) UnmarshalText(text []byte) error {
	s := strings.TrimSpace(string(text))
	for i, name := range targetNames {
		if strings.EqualFold(name, s) {
			*t = ShootingTargetType(i)
			return nil
		}
	}
	return fmt.Errorf("%w: %q", ErrUnknownTargetType, s)
}

// ItemType is a host item kind that can be placed as a pickup.
type ItemType string

// Known item kinds.
var itemTypes = []ItemType{
	"KeycardJanitor", "KeycardScientist", "KeycardResearchCoordinator",
	"KeycardZoneManager", "KeycardGuard", "KeycardNTFOfficer",
	"KeycardContainmentEngineer", "KeycardNTFLieutenant", "KeycardNTFCommander",
	"KeycardFacilityManager", "KeycardChaosInsurgency", "KeycardO5",
	"Radio", "Medkit", "Flashlight", "MicroHID", "Adrenaline", "Painkillers", "Coin",
	"SCP500", "SCP207", "SCP018", "SCP268", "SCP330", "SCP2176", "SCP244a", "SCP244b",
	"GrenadeHE", "GrenadeFlash", "ArmorLight", "ArmorCombat", "ArmorHeavy",
	"GunCOM15", "GunCOM18", "GunE11SR", "GunCrossvec", "GunFSP9", "GunLogicer",
	"GunRevolver", "GunAK", "GunShotgun",
	"Ammo12gauge", "Ammo556x45", "Ammo44cal", "Ammo762x39", "Ammo9x19",
}

// ParseItemType resolves an item name, ignoring case.
func ParseItemType(name string) (ItemType, error) {
	name = strings.TrimSpace(name)
	for _, it := range itemTypes {
		if strings.EqualFold(string(it), name) {
			return it, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownItemType, name)
}

// IsWeapon reports whether the item is a firearm.
func (i ItemType) IsWeapon() bool {
	return strings.HasPrefix(string(i), "Gun") || i == "MicroHID"
}
