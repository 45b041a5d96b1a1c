// Package parol6 drives a PAROL6 desktop arm: Cartesian and joint jogging, animated preset moves
// and position sync over the controller's ASCII serial link.
package parol6

import (
	"context"
	"math"
	"sync"
	"time"

	"github.com/pkg/errors"
	"go.viam.com/rdk/logging"
	goutils "go.viam.com/utils"

	"parol6/kinematics"
	"parol6/link"
)

var (
	// ErrBusy is returned when a motion is requested while another is running.
	ErrBusy = errors.New("motion already in progress")
	// ErrHoming is returned when a motion is requested while the arm is homing.
	ErrHoming = errors.New("homing in progress")
	// ErrNotReady is returned when the arm cannot move: no chain or no link.
	ErrNotReady = errors.New("robot not ready")
	// ErrValidation rejects an IK solution whose forward kinematics misses the target.
	ErrValidation = errors.New("solution failed forward validation")
	// ErrRateLimit rejects an IK solution that moves a joint too far in one tick.
	ErrRateLimit = errors.New("joint step exceeds rate limit")
	// ErrUnknownPreset is returned for preset names missing from the configuration.
	ErrUnknownPreset = errors.New("unknown preset")
)

// Mode is what the control loop is doing.
type Mode int

const (
	ModeIdle Mode = iota
	ModeJogging
	ModeJointJogging
	ModeAnimating
	ModeHoming
)

func (m Mode) String() string {
	switch m {
	case ModeIdle:
		return "idle"
	case ModeJogging:
		return "jogging"
	case ModeJointJogging:
		return "joint_jogging"
	case ModeAnimating:
		return "animating"
	case ModeHoming:
		return "homing"
	default:
		return "unknown"
	}
}

// Transmitter carries wire commands to the arm. *link.Link satisfies it.
type Transmitter interface {
	Send(ctx context.Context, msg string, waitAck bool) error
	IsConnected() bool
}

// Option customises a controller.
type Option func(*Controller)

// WithTransmitter sets the link. Without one the controller runs offline: commanded joints
// advance but nothing is sent.
func WithTransmitter(tx Transmitter) Option {
	return func(c *Controller) {
		c.tx = tx
	}
}

// WithEventSink sets the observer.
func WithEventSink(sink EventSink) Option {
	return func(c *Controller) {
		c.sink = sink
	}
}

// WithEngine replaces the engine that would otherwise be built from the config.
func WithEngine(engine *kinematics.Engine) Option {
	return func(c *Controller) {
		c.engine = engine
	}
}

// Controller owns the commanded joint vector and the single control loop that moves it.
type Controller struct {
	cfg    Config
	logger logging.Logger
	engine *kinematics.Engine
	tx     Transmitter
	sink   EventSink
	grip   *Gripper
	now    func() time.Time

	workers *goutils.StoppableWorkers
	tickMu  sync.Mutex

	mu            sync.RWMutex
	mode          Mode
	commanded     kinematics.JointVector
	speed         float64
	jog           jogSession
	jointJog      jointJogSession
	anim          *animation
	lastMove      *animation
	measured      kinematics.JointVector
	measuredAt    time.Time
	lastMotionEnd time.Time
}

// NewController builds a controller from cfg. A chain description that fails to load leaves the
// controller on the mock chain, logged and published as EventChainFallback.
func NewController(cfg *Config, logger logging.Logger, opts ...Option) (*Controller, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	c := &Controller{
		cfg:    *cfg,
		logger: logger,
		sink:   nopSink{},
		now:    time.Now,
		speed:  ClampSpeed(cfg.Speed),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.sink == nil {
		c.sink = nopSink{}
	}

	if c.engine == nil {
		engine, err := cfg.Engine()
		if engine == nil {
			return nil, errors.Wrap(err, "failed to build kinematics")
		}
		c.engine = engine
		if err != nil {
			logger.Warnf("Failed to load chain description %q: %v, running on the mock chain", cfg.Description, err)
			c.publish(Event{Kind: EventChainFallback, Err: err})
		}
	}
	c.commanded = make(kinematics.JointVector, c.engine.NumJoints())
	c.grip = NewGripper(c.tx, cfg.Gripper, logger.Sublogger("gripper"))
	logger.Infof("Controller ready: chain %s with %d joints, tool %s, speed %.0f%%",
		c.engine.Chain().Name(), c.engine.NumJoints(), c.engine.Tools().Active().Name, c.speed)
	return c, nil
}

// Start runs the control loop until Close.
func (c *Controller) Start() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.workers != nil {
		return
	}
	c.lastMotionEnd = c.now()
	c.workers = goutils.NewBackgroundStoppableWorkers(c.run)
}

// Close stops the loop and any motion.
func (c *Controller) Close() error {
	c.Stop()
	c.mu.Lock()
	workers := c.workers
	c.workers = nil
	c.mu.Unlock()
	if workers != nil {
		workers.Stop()
	}
	return nil
}

func (c *Controller) run(ctx context.Context) {
	ticker := time.NewTicker(c.cfg.TickPeriod())
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			c.tick(ctx, now)
		}
	}
}

// tick runs at most one step of whatever the current mode asks for.
func (c *Controller) tick(ctx context.Context, now time.Time) {
	c.tickMu.Lock()
	defer c.tickMu.Unlock()

	c.mu.RLock()
	mode := c.mode
	c.mu.RUnlock()

	switch mode {
	case ModeJogging:
		c.jogTick(ctx, now)
	case ModeJointJogging:
		c.jointJogTick(ctx, now)
	case ModeAnimating:
		c.animateTick(ctx, now)
	case ModeIdle:
		c.syncTick(now)
	case ModeHoming:
	}
}

// Engine returns the kinematics engine.
func (c *Controller) Engine() *kinematics.Engine { return c.engine }

// Gripper returns the end effector.
func (c *Controller) Gripper() *Gripper { return c.grip }

// Config returns a copy of the configuration.
func (c *Controller) Config() Config { return c.cfg }

// Mode returns the current mode.
func (c *Controller) Mode() Mode {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.mode
}

// CommandedJoints is a snapshot of the last transmitted joint vector.
func (c *Controller) CommandedJoints() kinematics.JointVector {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.commanded.Clone()
}

// TCPPose is the tool centre point for the commanded joints under the active tool.
func (c *Controller) TCPPose() (kinematics.Pose, error) {
	return c.engine.Forward(c.CommandedJoints())
}

// Speed returns the operator speed percentage.
func (c *Controller) Speed() float64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.speed
}

// SetSpeed clamps p to [MinSpeed, MaxSpeed] and returns the value applied.
func (c *Controller) SetSpeed(p float64) float64 {
	p = ClampSpeed(p)
	c.mu.Lock()
	c.speed = p
	c.mu.Unlock()
	return p
}

// speedScale is (speed/100)^exponent.
func (c *Controller) speedScale() float64 {
	return math.Pow(c.Speed()/100, c.cfg.SpeedExponent)
}

// SetTool activates a registered tool. Stored joints are unchanged; the TCP moves.
func (c *Controller) SetTool(name string) error {
	if err := c.engine.Tools().SetActive(name); err != nil {
		return err
	}
	joints := c.CommandedJoints()
	pose, _ := c.engine.Forward(joints)
	c.logger.Infof("Active tool is now %s", name)
	c.publish(Event{Kind: EventToolChanged, Joints: joints, Pose: pose, Message: name})
	return nil
}

// Stop ends any jog or animated move.
func (c *Controller) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	switch c.mode {
	case ModeJogging, ModeJointJogging:
		c.endMotionLocked()
	case ModeAnimating:
		c.finishAnimationLocked(errors.New("move stopped"))
	}
}

// Home sends HOME and waits for the acknowledgment. On success the commanded joints become zero.
func (c *Controller) Home(ctx context.Context) error {
	c.mu.Lock()
	if err := c.beginLocked(ModeHoming); err != nil {
		c.mu.Unlock()
		return err
	}
	c.mu.Unlock()

	var err error
	if c.tx != nil {
		err = c.tx.Send(ctx, link.HomeToken, true)
	}

	c.mu.Lock()
	c.mode = ModeIdle
	c.lastMotionEnd = c.now()
	if err == nil {
		c.commanded = make(kinematics.JointVector, len(c.commanded))
		c.measured = nil
	}
	joints := c.commanded.Clone()
	c.mu.Unlock()

	if err != nil {
		c.publish(Event{Kind: EventLinkError, Err: err})
		return errors.Wrap(err, "homing failed")
	}
	pose, _ := c.engine.Forward(joints)
	c.logger.Info("Homing acknowledged")
	c.publish(Event{Kind: EventHomed, Joints: joints, Pose: pose})
	return nil
}

// beginLocked moves from Idle into mode, or explains why it cannot.
func (c *Controller) beginLocked(mode Mode) error {
	switch c.mode {
	case ModeIdle:
	case ModeHoming:
		return ErrHoming
	default:
		return errors.Wrapf(ErrBusy, "controller is %s", c.mode)
	}
	if c.engine.NumJoints() == 0 {
		return errors.Wrap(ErrNotReady, "no kinematic chain loaded")
	}
	if c.tx != nil && !c.tx.IsConnected() {
		return errors.Wrap(ErrNotReady, "link is disconnected")
	}
	c.mode = mode
	c.measured = nil
	return nil
}

func (c *Controller) endMotionLocked() {
	c.mode = ModeIdle
	c.lastMotionEnd = c.now()
}

// transmit streams a joint vector. Offline controllers send nothing.
func (c *Controller) transmit(ctx context.Context, msg string) error {
	if c.tx == nil {
		return nil
	}
	return c.tx.Send(ctx, msg, false)
}

// commit stores a transmitted vector and tells observers.
func (c *Controller) commit(q kinematics.JointVector, pose kinematics.Pose, now time.Time) {
	c.mu.Lock()
	c.commanded = q.Clone()
	c.mu.Unlock()
	c.publish(Event{Kind: EventJointsUpdated, Joints: q.Clone(), Pose: pose, Time: now})
}

// linkFailed ends the running motion after a transmit error.
func (c *Controller) linkFailed(err error, now time.Time) {
	c.logger.Warnf("Transmit failed, stopping %s: %v", c.Mode(), err)
	c.mu.Lock()
	if c.mode == ModeAnimating {
		c.finishAnimationLocked(err)
	} else if c.mode != ModeIdle {
		c.endMotionLocked()
	}
	c.mu.Unlock()
	c.publish(Event{Kind: EventLinkError, Err: err, Time: now})
}

func (c *Controller) publish(e Event) {
	if e.Time.IsZero() {
		e.Time = c.now()
	}
	c.sink.Publish(e)
}
