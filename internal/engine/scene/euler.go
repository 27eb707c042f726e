package scene

import (
	"github.com/chewxy/math32"
	"github.com/go-gl/mathgl/mgl32"
)

// Euler angles in radians, applied in X, Y, Z order (intrinsic), the
// convention the decal records store.

// QuatFromEuler converts XYZ-order Euler angles to a unit quaternion.
func QuatFromEuler(e mgl32.Vec3) mgl32.Quat {
	c1, s1 := math32.Cos(e[0]/2), math32.Sin(e[0]/2)
	c2, s2 := math32.Cos(e[1]/2), math32.Sin(e[1]/2)
	c3, s3 := math32.Cos(e[2]/2), math32.Sin(e[2]/2)

	return mgl32.Quat{
		W: c1*c2*c3 - s1*s2*s3,
		V: mgl32.Vec3{
			s1*c2*c3 + c1*s2*s3,
			c1*s2*c3 - s1*c2*s3,
			c1*c2*s3 + s1*s2*c3,
		},
	}
}

// EulerFromQuat converts a quaternion to XYZ-order Euler angles.
// Near gimbal lock (|pitch| ~ 90deg) the Z angle is fixed to zero.
func EulerFromQuat(q mgl32.Quat) mgl32.Vec3 {
	q = q.Normalize()
	x, y, z, w := q.V[0], q.V[1], q.V[2], q.W

	m11 := 1 - 2*(y*y+z*z)
	m12 := 2 * (x*y - w*z)
	m13 := 2 * (x*z + w*y)
	m22 := 1 - 2*(x*x+z*z)
	m23 := 2 * (y*z - w*x)
	m32 := 2 * (y*z + w*x)
	m33 := 1 - 2*(x*x+y*y)

	ey := math32.Asin(mgl32.Clamp(m13, -1, 1))
	if math32.Abs(m13) < 0.9999999 {
		return mgl32.Vec3{math32.Atan2(-m23, m33), ey, math32.Atan2(-m12, m11)}
	}
	return mgl32.Vec3{math32.Atan2(m32, m22), ey, 0}
}

// ForwardAxis is the canonical decal projection axis in local space.
var ForwardAxis = mgl32.Vec3{0, 0, 1}

// OrientToNormal returns the Euler rotation that turns ForwardAxis onto normal.
// normal must be unit length.
func OrientToNormal(normal mgl32.Vec3) mgl32.Vec3 {
	return EulerFromQuat(mgl32.QuatBetweenVectors(ForwardAxis, normal))
}
