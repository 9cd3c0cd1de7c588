package math

// Transform is a position, rotation and scale in world space.
type Transform struct {
	Position Vec3
	Rotation Quat
	Scale    Vec3
}

// IdentityTransform returns a transform at the origin with no rotation and unit scale.
func IdentityTransform() Transform {
	return Transform{Rotation: QuatIdentity(), Scale: Vec3One()}
}

// NewTransform builds a transform from a position, Euler rotation in degrees and scale.
func NewTransform(position, eulerDegrees, scale Vec3) Transform {
	return Transform{
		Position: position,
		Rotation: QuatFromEuler(eulerDegrees),
		Scale:    scale,
	}
}

// TransformPoint converts a point from local space to world space.
func (t Transform) TransformPoint(local Vec3) Vec3 {
	return t.Position.Add(t.Rotation.Rotate(local.Mul(t.Scale)))
}

// Child returns the world transform of a child placed at local inside t.
// Scale is combined componentwise and does not skew under rotation.
func (t Transform) Child(local Transform) Transform {
	return Transform{
		Position: t.TransformPoint(local.Position),
		Rotation: t.Rotation.Mul(local.Rotation),
		Scale:    t.Scale.Mul(local.Scale),
	}
}
