package parol6

import (
	"time"

	"github.com/pkg/errors"
	"go.viam.com/rdk/utils"

	"parol6/kinematics"
	"parol6/link"
)

// SyncToFeedback records measured joint angles in degrees. The idle loop adopts them once the
// post-motion cooldown has passed and they differ enough from the commanded joints.
func (c *Controller) SyncToFeedback(deg []float64) error {
	if len(deg) != c.engine.NumJoints() {
		return errors.Wrapf(kinematics.ErrJointCount, "feedback has %d values for %d joints", len(deg), c.engine.NumJoints())
	}
	measured := kinematics.FromDegrees(deg).Wrapped()
	c.mu.Lock()
	c.measured = measured
	c.measuredAt = c.now()
	c.mu.Unlock()
	return nil
}

func (c *Controller) syncTick(now time.Time) {
	c.mu.Lock()
	if c.mode != ModeIdle || c.measured == nil || now.Sub(c.lastMotionEnd) < c.cfg.SyncCooldown() {
		c.mu.Unlock()
		return
	}
	// feedback taken before the last motion ended no longer describes the arm
	if c.measuredAt.Before(c.lastMotionEnd) {
		c.measured = nil
		c.mu.Unlock()
		return
	}
	delta, _ := c.measured.MaxDelta(c.commanded)
	if delta <= utils.DegToRad(c.cfg.Sync.ThresholdDeg) {
		c.mu.Unlock()
		return
	}
	c.commanded = c.measured.Clone()
	joints := c.commanded.Clone()
	c.mu.Unlock()

	pose, _ := c.engine.Forward(joints)
	c.logger.Debugf("Adopted measured joints %.2f deg (off by %.3f deg)", joints.Degrees(), utils.RadToDeg(delta))
	c.publish(Event{Kind: EventSynced, Joints: joints, Pose: pose, Time: now})
}

// HandleLine is the link's telemetry callback. Joint feedback feeds position sync, gripper
// echoes and pressure readings feed the gripper, and every line is published.
func (c *Controller) HandleLine(line string) {
	t := link.Classify(line)
	switch t.Kind {
	case link.KindJointFeedback:
		if err := c.SyncToFeedback(t.Joints); err != nil {
			c.logger.Debugf("Ignoring joint feedback %q: %v", line, err)
		}
	case link.KindPeripheral, link.KindPressure:
		c.grip.Observe(t)
	case link.KindAlarm:
		c.logger.Warnf("Controller alarm %s: %s", t.Code, t.Message)
	case link.KindUnknown:
		c.logger.Debugf("Unrecognised line %q", line)
	case link.KindAck:
	}
	c.publish(Event{Kind: EventTelemetry, Telemetry: &t})
}
