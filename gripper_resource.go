package parol6

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"go.viam.com/rdk/components/arm"
	"go.viam.com/rdk/components/gripper"
	"go.viam.com/rdk/logging"
	"go.viam.com/rdk/referenceframe"
	"go.viam.com/rdk/resource"
	"go.viam.com/rdk/spatialmath"
)

var errUnimplemented = errors.New("unimplemented")

// Gripper kinds: which end effector Open and Grab drive.
const (
	GripperElectric  = "electric"
	GripperVacuum    = "vacuum"
	GripperPneumatic = "pneumatic"
)

// gripperActions maps a kind to its open and grab actions and the state key reporting a grip.
var gripperActions = map[string]struct{ open, grab, holding string }{
	GripperElectric:  {"open", "close", "electric_closed"},
	GripperVacuum:    {"vacuum_off", "vacuum_on", "vacuum"},
	GripperPneumatic: {"pneumatic_off", "pneumatic_on", "pneumatic"},
}

// parol6Gripper drives the end effector through its arm's "gripper" command, so it works
// the same with a local arm or a remote one.
type parol6Gripper struct {
	resource.AlwaysRebuild

	name       resource.Name
	logger     logging.Logger
	arm        arm.Arm
	kind       string
	geometries []spatialmath.Geometry

	mu       sync.Mutex
	isMoving atomic.Bool
}

func newGripperResource(ctx context.Context, deps resource.Dependencies, conf resource.Config, logger logging.Logger) (gripper.Gripper, error) {
	cfg, err := resource.NativeConfig[*GripperResourceConfig](conf)
	if err != nil {
		return nil, err
	}
	a, err := arm.FromDependencies(deps, cfg.Arm)
	if err != nil {
		return nil, errors.Wrapf(err, "gripper needs arm %q", cfg.Arm)
	}
	return newGripperFromArm(conf.ResourceName(), a, cfg.Kind, logger)
}

func newGripperFromArm(name resource.Name, a arm.Arm, kind string, logger logging.Logger) (*parol6Gripper, error) {
	if kind == "" {
		kind = GripperElectric
	}
	if _, ok := gripperActions[kind]; !ok {
		return nil, errors.Errorf("unknown gripper kind %q", kind)
	}
	size := r3.Vector{X: 60, Y: 40, Z: 80}
	body, err := spatialmath.NewBox(spatialmath.NewPoseFromPoint(r3.Vector{Z: size.Z / 2}), size, "gripper")
	if err != nil {
		return nil, err
	}
	return &parol6Gripper{
		name:       name,
		logger:     logger,
		arm:        a,
		kind:       kind,
		geometries: []spatialmath.Geometry{body},
	}, nil
}

func (g *parol6Gripper) Name() resource.Name {
	return g.name
}

func (g *parol6Gripper) action(ctx context.Context, action string) (map[string]interface{}, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.isMoving.Store(true)
	defer g.isMoving.Store(false)
	return g.arm.DoCommand(ctx, map[string]interface{}{"command": "gripper", "action": action})
}

func (g *parol6Gripper) Open(ctx context.Context, extra map[string]interface{}) error {
	_, err := g.action(ctx, gripperActions[g.kind].open)
	return err
}

// Grab reports whether the gripper holds something once the grab command is acknowledged.
func (g *parol6Gripper) Grab(ctx context.Context, extra map[string]interface{}) (bool, error) {
	state, err := g.action(ctx, gripperActions[g.kind].grab)
	if err != nil {
		return false, err
	}
	return g.holding(state), nil
}

func (g *parol6Gripper) IsHoldingSomething(ctx context.Context, extra map[string]interface{}) (gripper.HoldingStatus, error) {
	state, err := g.action(ctx, "state")
	if err != nil {
		return gripper.HoldingStatus{}, err
	}
	return gripper.HoldingStatus{IsHoldingSomething: g.holding(state), Meta: state}, nil
}

func (g *parol6Gripper) holding(state map[string]interface{}) bool {
	held, _ := state[gripperActions[g.kind].holding].(bool)
	return held
}

func (g *parol6Gripper) Stop(ctx context.Context, extra map[string]interface{}) error {
	g.isMoving.Store(false)
	return nil
}

func (g *parol6Gripper) IsMoving(ctx context.Context) (bool, error) {
	return g.isMoving.Load(), nil
}

func (g *parol6Gripper) Geometries(ctx context.Context, extra map[string]interface{}) ([]spatialmath.Geometry, error) {
	return g.geometries, nil
}

// DoCommand passes {"action": ...} through to the arm's gripper command.
func (g *parol6Gripper) DoCommand(ctx context.Context, cmd map[string]interface{}) (map[string]interface{}, error) {
	action, _ := cmd["action"].(string)
	return g.action(ctx, action)
}

func (g *parol6Gripper) Close(ctx context.Context) error {
	return nil
}

func (g *parol6Gripper) CurrentInputs(ctx context.Context) ([]referenceframe.Input, error) {
	return nil, errUnimplemented
}

func (g *parol6Gripper) GoToInputs(ctx context.Context, inputs ...[]referenceframe.Input) error {
	return errUnimplemented
}

func (g *parol6Gripper) Kinematics(ctx context.Context) (referenceframe.Model, error) {
	return nil, errUnimplemented
}
