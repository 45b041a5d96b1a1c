package parol6

import (
	"context"
	"strings"
	"time"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"go.viam.com/rdk/utils"

	"parol6/kinematics"
	"parol6/link"
)

// Axis is a Cartesian jog axis in the base frame (linear) or tool frame (rotational).
type Axis int

const (
	AxisX Axis = iota
	AxisY
	AxisZ
	AxisRX
	AxisRY
	AxisRZ
)

var axisNames = []string{"x", "y", "z", "rx", "ry", "rz"}

func (a Axis) String() string {
	if a < AxisX || a > AxisRZ {
		return "unknown"
	}
	return axisNames[a]
}

// Linear reports whether the axis translates the TCP.
func (a Axis) Linear() bool { return a <= AxisZ }

func (a Axis) unit() r3.Vector {
	switch a {
	case AxisX, AxisRX:
		return r3.Vector{X: 1}
	case AxisY, AxisRY:
		return r3.Vector{Y: 1}
	default:
		return r3.Vector{Z: 1}
	}
}

// ParseAxis accepts x, y, z, rx, ry, rz in any case.
func ParseAxis(s string) (Axis, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for i, name := range axisNames {
		if s == name {
			return Axis(i), nil
		}
	}
	return 0, errors.Errorf("unknown axis %q", s)
}

// Direction is +1 or -1.
type Direction int

const (
	Plus  Direction = 1
	Minus Direction = -1
)

// ParseDirection accepts plus/+ and minus/-.
func ParseDirection(s string) (Direction, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "plus", "+", "pos", "positive":
		return Plus, nil
	case "minus", "-", "neg", "negative":
		return Minus, nil
	}
	return 0, errors.Errorf("unknown direction %q", s)
}

type jogSession struct {
	id      uint64
	axis    Axis
	dir     Direction
	rejects int
}

type jointJogSession struct {
	id    uint64
	joint int
	dir   Direction
}

// StartJog begins a Cartesian jog that runs until StopJog or until the target leaves reach.
func (c *Controller) StartJog(axis Axis, dir Direction) error {
	if axis < AxisX || axis > AxisRZ {
		return errors.Errorf("unknown axis %d", axis)
	}
	if dir != Plus && dir != Minus {
		return errors.Errorf("direction must be +1 or -1, got %d", dir)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.beginLocked(ModeJogging); err != nil {
		return err
	}
	c.jog = jogSession{id: c.jog.id + 1, axis: axis, dir: dir}
	c.logger.Debugf("Jog %s%s started", signString(dir), axis)
	return nil
}

// StartJointJog begins jogging one joint, 0-based, by the configured degree step per tick.
func (c *Controller) StartJointJog(joint int, dir Direction) error {
	if joint < 0 || joint >= c.engine.NumJoints() {
		return errors.Wrapf(kinematics.ErrJointCount, "joint %d out of range for %d joints", joint+1, c.engine.NumJoints())
	}
	if dir != Plus && dir != Minus {
		return errors.Errorf("direction must be +1 or -1, got %d", dir)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.beginLocked(ModeJointJogging); err != nil {
		return err
	}
	c.jointJog = jointJogSession{id: c.jointJog.id + 1, joint: joint, dir: dir}
	c.logger.Debugf("Joint jog J%d%s started", joint+1, signString(dir))
	return nil
}

// StopJog ends a Cartesian or joint jog. It is a no-op otherwise.
func (c *Controller) StopJog() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.mode == ModeJogging || c.mode == ModeJointJogging {
		c.endMotionLocked()
	}
}

func signString(d Direction) string {
	if d < 0 {
		return "-"
	}
	return "+"
}

func (c *Controller) jogTick(ctx context.Context, now time.Time) {
	c.mu.RLock()
	session := c.jog
	commanded := c.commanded.Clone()
	c.mu.RUnlock()

	current, err := c.engine.Forward(commanded)
	if err != nil {
		c.rejectJog(session, err, now)
		return
	}
	target := c.jogTarget(current, session.axis, session.dir, c.speedScale())

	candidate, pose, err := c.solveStep(commanded, target)
	if err != nil {
		c.rejectJog(session, err, now)
		return
	}
	if err := c.transmit(ctx, link.FormatJointStream(candidate.Degrees())); err != nil {
		c.linkFailed(err, now)
		return
	}
	c.mu.Lock()
	if c.mode == ModeJogging && c.jog.id == session.id {
		c.jog.rejects = 0
	}
	c.mu.Unlock()
	c.commit(candidate, pose, now)
}

// jogTarget applies one jog step to the current TCP pose. Linear steps move along the base
// axis and are bounded by the workspace; rotational steps rotate about the tool axis.
func (c *Controller) jogTarget(current kinematics.Pose, axis Axis, dir Direction, scale float64) kinematics.Pose {
	target := current
	if axis.Linear() {
		step := c.cfg.Jog.MaxLinearStepMM * scale * float64(dir) / 1000
		target.Position = c.clampWorkspace(current.Position, current.Position.Add(axis.unit().Mul(step)))
		return target
	}
	angle := c.cfg.Jog.MaxAngularStepRad * scale * float64(dir)
	target.Rotation = current.Rotation.Mul(kinematics.AxisAngle(axis.unit(), angle))
	return target.Orthonormalized()
}

// clampWorkspace bounds each coordinate of target, in metres, against the workspace box in mm.
func (c *Controller) clampWorkspace(current, target r3.Vector) r3.Vector {
	ws := c.cfg.Workspace
	return r3.Vector{
		X: clampAxis(current.X*1000, target.X*1000, ws.X.Min, ws.X.Max) / 1000,
		Y: clampAxis(current.Y*1000, target.Y*1000, ws.Y.Min, ws.Y.Max) / 1000,
		Z: clampAxis(current.Z*1000, target.Z*1000, ws.Z.Min, ws.Z.Max) / 1000,
	}
}

// clampAxis is direction aware: from inside the range the target is clamped to the bound;
// from outside, moving further out holds the current coordinate and moving back is allowed.
func clampAxis(current, target, lo, hi float64) float64 {
	if target >= lo && target <= hi {
		return target
	}
	if current >= lo && current <= hi {
		if target < lo {
			return lo
		}
		return hi
	}
	if outside(target, lo, hi) > outside(current, lo, hi) {
		return current
	}
	return target
}

func outside(v, lo, hi float64) float64 {
	switch {
	case v < lo:
		return lo - v
	case v > hi:
		return v - hi
	default:
		return 0
	}
}

// solveStep runs continuous IK seeded with commanded and validates the answer: its forward
// kinematics must land within tolerance of the target, it must respect joint limits and no
// joint may move further than the per-tick rate limit.
func (c *Controller) solveStep(commanded kinematics.JointVector, target kinematics.Pose) (kinematics.JointVector, kinematics.Pose, error) {
	candidate, err := c.engine.Inverse(target, kinematics.OrientationAll, commanded)
	if err != nil {
		return nil, kinematics.Pose{}, err
	}
	got, err := c.engine.Forward(candidate)
	if err != nil {
		return nil, kinematics.Pose{}, err
	}
	if miss := got.Position.Sub(target.Position).Norm() * 1000; miss > c.cfg.Jog.ValidationToleranceMM {
		return nil, kinematics.Pose{}, errors.Wrapf(ErrValidation, "forward check misses target by %.3f mm", miss)
	}
	if i := c.engine.Chain().WithinLimits(candidate); i >= 0 {
		return nil, kinematics.Pose{}, errors.Wrapf(kinematics.ErrJointLimit, "joint %d at %.4f rad", i+1, candidate[i])
	}
	if delta, i := candidate.MaxDelta(commanded); delta > c.cfg.Jog.MaxJointStepRad {
		return nil, kinematics.Pose{}, errors.Wrapf(ErrRateLimit, "joint %d would move %.4f rad", i+1, delta)
	}
	return candidate.Wrapped(), got, nil
}

// rejectJog counts a failed tick and ends the session once too many fail in a row.
func (c *Controller) rejectJog(session jogSession, err error, now time.Time) {
	c.mu.Lock()
	if c.mode != ModeJogging || c.jog.id != session.id {
		c.mu.Unlock()
		return
	}
	c.jog.rejects++
	rejects := c.jog.rejects
	outOfReach := rejects >= c.cfg.Jog.MaxConsecutiveRejects
	if outOfReach {
		c.endMotionLocked()
	}
	joints := c.commanded.Clone()
	c.mu.Unlock()

	c.logger.Debugf("Jog %s%s tick rejected (%d in a row): %v", signString(session.dir), session.axis, rejects, err)
	c.publish(Event{Kind: EventRejected, Joints: joints, Err: err, Time: now})
	if outOfReach {
		c.logger.Infof("Jog %s%s stopped: target out of reach", signString(session.dir), session.axis)
		c.publish(Event{Kind: EventOutOfReach, Joints: joints, Err: err, Time: now})
	}
}

// jointJogTick moves one joint by the scaled degree step, stopping at its limit.
func (c *Controller) jointJogTick(ctx context.Context, now time.Time) {
	c.mu.RLock()
	session := c.jointJog
	commanded := c.commanded.Clone()
	c.mu.RUnlock()

	step := utils.DegToRad(c.cfg.Jog.JointStepDeg*c.speedScale()) * float64(session.dir)
	limit := c.engine.Chain().Limits()[session.joint]
	next := commanded.Clone()
	next[session.joint] = clampFloat(commanded[session.joint]+step, limit.Min, limit.Max)
	next = next.Wrapped()

	if delta, _ := next.MaxDelta(commanded); delta < 1e-12 {
		c.mu.Lock()
		if c.mode == ModeJointJogging && c.jointJog.id == session.id {
			c.endMotionLocked()
		}
		c.mu.Unlock()
		err := errors.Wrapf(kinematics.ErrJointLimit, "joint %d", session.joint+1)
		c.logger.Infof("Joint jog J%d%s stopped at its limit", session.joint+1, signString(session.dir))
		c.publish(Event{Kind: EventOutOfReach, Joints: commanded, Err: err, Time: now})
		return
	}

	deg := next.Degrees()
	if err := c.transmit(ctx, link.FormatJoint(session.joint+1, deg[session.joint])); err != nil {
		c.linkFailed(err, now)
		return
	}
	pose, _ := c.engine.Forward(next)
	c.commit(next, pose, now)
}

func clampFloat(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
