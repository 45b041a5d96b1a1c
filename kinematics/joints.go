package kinematics

import (
	"math"

	"go.viam.com/rdk/utils"
)

// JointVector holds one angle (radians) or displacement (metres) per active joint, in link order.
type JointVector []float64

// Wrap maps an angle into (-pi, pi].
func Wrap(a float64) float64 {
	a = math.Mod(a+math.Pi, 2*math.Pi)
	if a <= 0 {
		a += 2 * math.Pi
	}
	return a - math.Pi
}

// Clone returns an independent copy.
func (v JointVector) Clone() JointVector {
	if v == nil {
		return nil
	}
	out := make(JointVector, len(v))
	copy(out, v)
	return out
}

// Wrapped returns a copy with every component wrapped into (-pi, pi].
func (v JointVector) Wrapped() JointVector {
	out := make(JointVector, len(v))
	for i, a := range v {
		out[i] = Wrap(a)
	}
	return out
}

// Degrees converts the vector to degrees.
func (v JointVector) Degrees() []float64 {
	out := make([]float64, len(v))
	for i, a := range v {
		out[i] = utils.RadToDeg(a)
	}
	return out
}

// FromDegrees builds a vector from degree values.
func FromDegrees(deg []float64) JointVector {
	out := make(JointVector, len(deg))
	for i, d := range deg {
		out[i] = utils.DegToRad(d)
	}
	return out
}

// Distance is the redundancy score: the sum of wrapped absolute differences to prev.
// Vectors of different lengths are infinitely far apart.
func (v JointVector) Distance(prev JointVector) float64 {
	if len(v) != len(prev) {
		return math.Inf(1)
	}
	var sum float64
	for i := range v {
		sum += math.Abs(Wrap(v[i] - prev[i]))
	}
	return sum
}

// MaxDelta returns the largest wrapped per-joint change from prev and the index it occurs at.
func (v JointVector) MaxDelta(prev JointVector) (float64, int) {
	maxDelta, at := 0.0, -1
	for i := range v {
		if i >= len(prev) {
			break
		}
		if d := math.Abs(Wrap(v[i] - prev[i])); d > maxDelta {
			maxDelta, at = d, i
		}
	}
	return maxDelta, at
}

// Norm is the Euclidean length of the plain (unwrapped) vector.
func (v JointVector) Norm() float64 {
	var sum float64
	for _, a := range v {
		sum += a * a
	}
	return math.Sqrt(sum)
}

// AlternateSeed negates the listed components of prev. Out-of-range indices are ignored.
func AlternateSeed(prev JointVector, flip []int) JointVector {
	seed := prev.Clone()
	for _, i := range flip {
		if i >= 0 && i < len(seed) {
			seed[i] = -seed[i]
		}
	}
	return seed
}
