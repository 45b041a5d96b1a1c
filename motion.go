package parol6

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/pkg/errors"

	"parol6/kinematics"
	"parol6/link"
)

// StallError ends an animated move that stopped making progress.
type StallError struct {
	Last  kinematics.JointVector
	Ticks int
}

func (e *StallError) Error() string {
	return fmt.Sprintf("move stalled for %d ticks at %.2f deg", e.Ticks, e.Last.Degrees())
}

type animation struct {
	target       kinematics.JointVector
	lastDistance float64
	stallTicks   int
	done         chan struct{}
	err          error
}

// MoveToPreset starts an animated straight-line joint-space move to deg.
func (c *Controller) MoveToPreset(deg []float64) error {
	if len(deg) != c.engine.NumJoints() {
		return errors.Wrapf(kinematics.ErrJointCount, "preset has %d values for %d joints", len(deg), c.engine.NumJoints())
	}
	target := kinematics.FromDegrees(deg).Wrapped()

	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.beginLocked(ModeAnimating); err != nil {
		return err
	}
	c.anim = &animation{
		target:       target,
		lastDistance: math.Inf(1),
		done:         make(chan struct{}),
	}
	c.lastMove = c.anim
	c.logger.Debugf("Animated move to %.2f deg started", target.Degrees())
	return nil
}

// MoveToNamedPreset starts an animated move to a configured preset.
func (c *Controller) MoveToNamedPreset(name string) error {
	deg, ok := c.cfg.Presets[name]
	if !ok {
		return errors.Wrapf(ErrUnknownPreset, "%q", name)
	}
	return c.MoveToPreset(deg)
}

// WaitMove blocks until the most recent animated move ends and returns its error, if any.
func (c *Controller) WaitMove(ctx context.Context) error {
	c.mu.RLock()
	anim := c.lastMove
	c.mu.RUnlock()
	if anim == nil {
		return nil
	}
	select {
	case <-anim.done:
		c.mu.RLock()
		defer c.mu.RUnlock()
		return anim.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// animateTick advances the commanded vector toward the target by at most the scaled step,
// clamped to joint limits, and snaps onto the target once within the snap radius.
func (c *Controller) animateTick(ctx context.Context, now time.Time) {
	c.mu.RLock()
	anim := c.anim
	commanded := c.commanded.Clone()
	c.mu.RUnlock()
	if anim == nil {
		return
	}

	remaining := make(kinematics.JointVector, len(commanded))
	for i := range commanded {
		remaining[i] = anim.target[i] - commanded[i]
	}
	distance := remaining.Norm()

	finished := distance <= c.cfg.Animation.SnapRad
	next := anim.target.Clone()
	if !finished {
		step := math.Min(c.cfg.Animation.MaxStepRad*c.speedScale(), distance)
		limits := c.engine.Chain().Limits()
		for i := range next {
			next[i] = clampFloat(commanded[i]+remaining[i]*step/distance, limits[i].Min, limits[i].Max)
		}
	}

	if err := c.transmit(ctx, link.FormatJointStream(next.Degrees())); err != nil {
		c.linkFailed(err, now)
		return
	}
	pose, _ := c.engine.Forward(next)
	c.commit(next, pose, now)

	if finished {
		c.mu.Lock()
		if c.anim == anim {
			c.finishAnimationLocked(nil)
		}
		c.mu.Unlock()
		c.logger.Debug("Animated move finished")
		c.publish(Event{Kind: EventMoveDone, Joints: next, Pose: pose, Time: now})
		return
	}

	c.mu.Lock()
	if c.anim != anim {
		c.mu.Unlock()
		return
	}
	if distance < anim.lastDistance-1e-9 {
		anim.stallTicks = 0
	} else {
		anim.stallTicks++
	}
	anim.lastDistance = distance
	var stall *StallError
	if anim.stallTicks >= c.cfg.Animation.MaxStallTicks {
		stall = &StallError{Last: next.Clone(), Ticks: anim.stallTicks}
		c.finishAnimationLocked(stall)
	}
	c.mu.Unlock()

	if stall != nil {
		c.logger.Warnf("Animated move aborted: %v", stall)
		c.publish(Event{Kind: EventStalled, Joints: next, Pose: pose, Err: stall, Time: now})
	}
}

// finishAnimationLocked ends the move, records err and releases waiters.
func (c *Controller) finishAnimationLocked(err error) {
	if c.anim != nil {
		c.anim.err = err
		close(c.anim.done)
		c.anim = nil
	}
	c.endMotionLocked()
}
