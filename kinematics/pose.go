package kinematics

import (
	"math"

	"github.com/golang/geo/r3"
	commonpb "go.viam.com/api/common/v1"
	"go.viam.com/rdk/spatialmath"
)

// Rotation is a row-major 3x3 rotation matrix.
type Rotation [3][3]float64

// Identity returns the identity rotation.
func Identity() Rotation {
	return Rotation{{1, 0, 0}, {0, 1, 0}, {0, 0, 1}}
}

// RotX rotates about the x axis.
func RotX(a float64) Rotation {
	c, s := math.Cos(a), math.Sin(a)
	return Rotation{{1, 0, 0}, {0, c, -s}, {0, s, c}}
}

// RotY rotates about the y axis.
func RotY(a float64) Rotation {
	c, s := math.Cos(a), math.Sin(a)
	return Rotation{{c, 0, s}, {0, 1, 0}, {-s, 0, c}}
}

// RotZ rotates about the z axis.
func RotZ(a float64) Rotation {
	c, s := math.Cos(a), math.Sin(a)
	return Rotation{{c, -s, 0}, {s, c, 0}, {0, 0, 1}}
}

// RPY builds a rotation from fixed-axis roll, pitch, yaw (URDF convention: Rz(yaw)*Ry(pitch)*Rx(roll)).
func RPY(roll, pitch, yaw float64) Rotation {
	return RotZ(yaw).Mul(RotY(pitch)).Mul(RotX(roll))
}

// AxisAngle rotates by angle about axis (Rodrigues). A zero axis yields the identity.
func AxisAngle(axis r3.Vector, angle float64) Rotation {
	n := axis.Norm()
	if n == 0 {
		return Identity()
	}
	k := axis.Mul(1 / n)
	c, s := math.Cos(angle), math.Sin(angle)
	t := 1 - c
	return Rotation{
		{t*k.X*k.X + c, t*k.X*k.Y - s*k.Z, t*k.X*k.Z + s*k.Y},
		{t*k.X*k.Y + s*k.Z, t*k.Y*k.Y + c, t*k.Y*k.Z - s*k.X},
		{t*k.X*k.Z - s*k.Y, t*k.Y*k.Z + s*k.X, t*k.Z*k.Z + c},
	}
}

// Mul returns r*o.
func (r Rotation) Mul(o Rotation) Rotation {
	var out Rotation
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			out[i][j] = r[i][0]*o[0][j] + r[i][1]*o[1][j] + r[i][2]*o[2][j]
		}
	}
	return out
}

// Transpose is the inverse for an orthonormal matrix.
func (r Rotation) Transpose() Rotation {
	var out Rotation
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			out[i][j] = r[j][i]
		}
	}
	return out
}

// Apply rotates v.
func (r Rotation) Apply(v r3.Vector) r3.Vector {
	return r3.Vector{
		X: r[0][0]*v.X + r[0][1]*v.Y + r[0][2]*v.Z,
		Y: r[1][0]*v.X + r[1][1]*v.Y + r[1][2]*v.Z,
		Z: r[2][0]*v.X + r[2][1]*v.Y + r[2][2]*v.Z,
	}
}

// Column returns column i as a vector.
func (r Rotation) Column(i int) r3.Vector {
	return r3.Vector{X: r[0][i], Y: r[1][i], Z: r[2][i]}
}

// Orthonormalize re-projects the matrix onto SO(3) with Gram-Schmidt on its columns.
func (r Rotation) Orthonormalize() Rotation {
	x := r.Column(0).Normalize()
	y := r.Column(1)
	y = y.Sub(x.Mul(x.Dot(y))).Normalize()
	z := x.Cross(y)
	return Rotation{
		{x.X, y.X, z.X},
		{x.Y, y.Y, z.Y},
		{x.Z, y.Z, z.Z},
	}
}

// EulerZYX returns the roll, pitch, yaw that RPY would need to rebuild r.
func (r Rotation) EulerZYX() (roll, pitch, yaw float64) {
	sp := -r[2][0]
	if sp > 1 {
		sp = 1
	} else if sp < -1 {
		sp = -1
	}
	pitch = math.Asin(sp)
	if math.Abs(sp) > 1-1e-9 {
		// gimbal lock: fold yaw into roll
		return math.Atan2(-r[1][2], r[1][1]), pitch, 0
	}
	return math.Atan2(r[2][1], r[2][2]), pitch, math.Atan2(r[1][0], r[0][0])
}

// rotationVector is the log map of r: axis scaled by angle.
func rotationVector(r Rotation) r3.Vector {
	cos := (r[0][0] + r[1][1] + r[2][2] - 1) / 2
	if cos > 1 {
		cos = 1
	} else if cos < -1 {
		cos = -1
	}
	angle := math.Acos(cos)
	v := r3.Vector{X: r[2][1] - r[1][2], Y: r[0][2] - r[2][0], Z: r[1][0] - r[0][1]}
	if angle < 1e-9 {
		return v.Mul(0.5)
	}
	s := math.Sin(angle)
	if s > 1e-6 || angle < math.Pi/2 {
		return v.Mul(angle / (2 * s))
	}

	// angle near pi: recover the axis from the symmetric part
	axis := r3.Vector{
		X: math.Sqrt(math.Max((r[0][0]+1)/2, 0)),
		Y: math.Sqrt(math.Max((r[1][1]+1)/2, 0)),
		Z: math.Sqrt(math.Max((r[2][2]+1)/2, 0)),
	}
	switch {
	case axis.X >= axis.Y && axis.X >= axis.Z:
		axis.Y = math.Copysign(axis.Y, r[0][1]+r[1][0])
		axis.Z = math.Copysign(axis.Z, r[0][2]+r[2][0])
	case axis.Y >= axis.Z:
		axis.X = math.Copysign(axis.X, r[0][1]+r[1][0])
		axis.Z = math.Copysign(axis.Z, r[1][2]+r[2][1])
	default:
		axis.X = math.Copysign(axis.X, r[0][2]+r[2][0])
		axis.Y = math.Copysign(axis.Y, r[1][2]+r[2][1])
	}
	return axis.Normalize().Mul(angle)
}

// Pose is a rigid transform in metres, expressed in the parent (usually base) frame.
type Pose struct {
	Position r3.Vector
	Rotation Rotation
}

// IdentityPose is the zero transform.
func IdentityPose() Pose {
	return Pose{Rotation: Identity()}
}

// NewPose builds a pose from a position and fixed-axis roll, pitch, yaw.
func NewPose(position r3.Vector, roll, pitch, yaw float64) Pose {
	return Pose{Position: position, Rotation: RPY(roll, pitch, yaw)}
}

// Compose returns p*o, i.e. o expressed in p's parent frame.
func (p Pose) Compose(o Pose) Pose {
	return Pose{
		Position: p.Position.Add(p.Rotation.Apply(o.Position)),
		Rotation: p.Rotation.Mul(o.Rotation),
	}
}

// Inverse returns the inverse transform.
func (p Pose) Inverse() Pose {
	rt := p.Rotation.Transpose()
	return Pose{Position: rt.Apply(p.Position).Mul(-1), Rotation: rt}
}

// Orthonormalized returns p with its rotation re-projected onto SO(3).
func (p Pose) Orthonormalized() Pose {
	return Pose{Position: p.Position, Rotation: p.Rotation.Orthonormalize()}
}

// EulerZYX returns roll, pitch, yaw of the orientation in radians.
func (p Pose) EulerZYX() (float64, float64, float64) {
	return p.Rotation.EulerZYX()
}

// Spatial converts to an rdk pose. rdk works in millimetres and its rotation matrix stores
// the transpose of Rotation.
func (p Pose) Spatial() spatialmath.Pose {
	r := p.Rotation
	rm, err := spatialmath.NewRotationMatrix([]float64{
		r[0][0], r[1][0], r[2][0],
		r[0][1], r[1][1], r[2][1],
		r[0][2], r[1][2], r[2][2],
	})
	if err != nil {
		return spatialmath.NewPoseFromPoint(p.Position.Mul(1000))
	}
	return spatialmath.NewPose(p.Position.Mul(1000), rm)
}

// FromSpatial converts an rdk pose in millimetres.
func FromSpatial(sp spatialmath.Pose) Pose {
	rm := sp.Orientation().RotationMatrix()
	var r Rotation
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			r[i][j] = rm.At(j, i)
		}
	}
	return Pose{Position: sp.Point().Mul(0.001), Rotation: r}
}

// Proto converts to the api wire pose.
func (p Pose) Proto() *commonpb.Pose {
	return spatialmath.PoseToProtobuf(p.Spatial())
}
