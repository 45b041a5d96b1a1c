package kinematics

import (
	"math"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

// OrientationMode selects which parts of the target pose the solver matches.
type OrientationMode int

const (
	// OrientationAll matches position and orientation.
	OrientationAll OrientationMode = iota
	// OrientationNone matches position only.
	OrientationNone
)

// SolverParams tunes the damped least squares solver.
type SolverParams struct {
	MaxIterations        int
	PositionTolerance    float64 // metres
	OrientationTolerance float64 // radians
	Damping              float64
	MaxIterationStep     float64 // radians (or metres) per iteration, whole-vector norm
}

// DefaultSolverParams converge in well under a millisecond for a six joint arm.
func DefaultSolverParams() SolverParams {
	return SolverParams{
		MaxIterations:        100,
		PositionTolerance:    1e-5,
		OrientationTolerance: 1e-4,
		Damping:              0.01,
		MaxIterationStep:     0.2,
	}
}

// SolveChain finds a full-length joint vector whose flange pose matches target, starting from
// seed. Only active links are varied; inactive entries keep their seed values. Results are
// clamped to the joint limits and revolute joints are wrapped into (-pi, pi].
func SolveChain(c *Chain, target Pose, mode OrientationMode, seed []float64, p SolverParams) ([]float64, error) {
	if len(seed) != c.count {
		return nil, errors.Wrapf(ErrJointCount, "seed has %d values for %d links", len(seed), c.count)
	}
	q := append([]float64(nil), seed...)
	if c.active == 0 {
		return q, nil
	}
	c.clampFull(q)

	rows := 6
	if mode == OrientationNone {
		rows = 3
	}
	n := c.active
	jac := mat.NewDense(rows, n, nil)
	jjt := mat.NewDense(rows, rows, nil)
	errVec := mat.NewVecDense(rows, nil)
	var x, dq mat.VecDense

	var posErr, rotErr float64
	for iter := 0; iter <= p.MaxIterations; iter++ {
		flange, frames := c.forwardFrames(q)
		ep := target.Position.Sub(flange.Position)
		eo := rotationVector(target.Rotation.Mul(flange.Rotation.Transpose()))
		posErr, rotErr = ep.Norm(), eo.Norm()
		if posErr <= p.PositionTolerance && (mode == OrientationNone || rotErr <= p.OrientationTolerance) {
			c.wrapFull(q)
			return q, nil
		}
		if iter == p.MaxIterations {
			break
		}

		for col, f := range frames {
			var lin, ang r3.Vector
			switch f.typ {
			case Prismatic:
				lin = f.axis
			default:
				lin = f.axis.Cross(flange.Position.Sub(f.origin))
				ang = f.axis
			}
			jac.Set(0, col, lin.X)
			jac.Set(1, col, lin.Y)
			jac.Set(2, col, lin.Z)
			if rows == 6 {
				jac.Set(3, col, ang.X)
				jac.Set(4, col, ang.Y)
				jac.Set(5, col, ang.Z)
			}
		}
		errVec.SetVec(0, ep.X)
		errVec.SetVec(1, ep.Y)
		errVec.SetVec(2, ep.Z)
		if rows == 6 {
			errVec.SetVec(3, eo.X)
			errVec.SetVec(4, eo.Y)
			errVec.SetVec(5, eo.Z)
		}

		// dq = J^T (J J^T + lambda^2 I)^-1 e
		jjt.Mul(jac, jac.T())
		for i := 0; i < rows; i++ {
			jjt.Set(i, i, jjt.At(i, i)+p.Damping*p.Damping)
		}
		if err := x.SolveVec(jjt, errVec); err != nil {
			return nil, errors.Wrapf(ErrNoConvergence, "singular damped system: %v", err)
		}
		dq.MulVec(jac.T(), &x)

		scale := 1.0
		if norm := mat.Norm(&dq, 2); p.MaxIterationStep > 0 && norm > p.MaxIterationStep {
			scale = p.MaxIterationStep / norm
		}
		col := 0
		for i := 0; i < c.count; i++ {
			if c.mask[i] {
				q[i] += scale * dq.AtVec(col)
				col++
			}
		}
		c.clampFull(q)
	}
	return nil, errors.Wrapf(ErrNoConvergence, "after %d iterations: position error %.6f m, orientation error %.6f rad",
		p.MaxIterations, posErr, rotErr)
}

// clampFull wraps revolute joints and clamps every active joint to its limits, in place.
func (c *Chain) clampFull(q []float64) {
	for i := 0; i < c.count; i++ {
		if !c.mask[i] {
			continue
		}
		l := c.links[i]
		if l.Type == Revolute {
			q[i] = Wrap(q[i])
		}
		q[i] = math.Max(l.Limit.Min, math.Min(l.Limit.Max, q[i]))
	}
}

func (c *Chain) wrapFull(q []float64) {
	for i := 0; i < c.count; i++ {
		if c.mask[i] && c.links[i].Type == Revolute {
			q[i] = Wrap(q[i])
		}
	}
}
