package parol6

import (
	"context"
	"sync"

	"github.com/pkg/errors"
	commonpb "go.viam.com/api/common/v1"
	"go.viam.com/rdk/components/arm"
	"go.viam.com/rdk/logging"
	"go.viam.com/rdk/referenceframe"
	"go.viam.com/rdk/resource"
	"go.viam.com/rdk/spatialmath"

	"parol6/kinematics"
)

// parol6Arm exposes a Controller as an arm component.
type parol6Arm struct {
	resource.AlwaysRebuild

	name       resource.Name
	logger     logging.Logger
	controller *Controller
	release    func()
	closeOnce  sync.Once
}

func newArm(ctx context.Context, deps resource.Dependencies, rawConf resource.Config, logger logging.Logger) (arm.Arm, error) {
	conf, err := resource.NativeConfig[*ArmConfig](rawConf)
	if err != nil {
		return nil, err
	}
	return newArmOnRegistry(rawConf.ResourceName(), conf.Config, linkRegistry(logger), logger)
}

// newArmOnRegistry opens the configured port through registry and starts a controller on it.
func newArmOnRegistry(name resource.Name, cfg Config, registry *LinkRegistry, logger logging.Logger) (*parol6Arm, error) {
	if err := cfg.Validate(""); err != nil {
		return nil, err
	}
	if cfg.Port == "" {
		port, err := FirstPort(logger)
		if err != nil {
			return nil, errors.Wrap(err, "no port configured")
		}
		cfg.Port = port
	}

	l, err := registry.Acquire(cfg.Port, cfg.Baudrate, cfg.AckTimeout())
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open %s", cfg.Port)
	}
	controller, err := NewController(&cfg, logger.Sublogger("controller"), WithTransmitter(l))
	if err != nil {
		registry.Release(cfg.Port)
		return nil, err
	}
	l.SetHandler(controller.HandleLine)
	controller.Start()

	logger.Infof("PAROL6 arm initialized on port %s", cfg.Port)
	return newArmFromController(name, controller, logger, func() {
		l.SetHandler(nil)
		registry.Release(cfg.Port)
	}), nil
}

// newArmFromController wraps a running controller. release runs once the controller is closed.
func newArmFromController(name resource.Name, controller *Controller, logger logging.Logger, release func()) *parol6Arm {
	if release == nil {
		release = func() {}
	}
	return &parol6Arm{name: name, logger: logger, controller: controller, release: release}
}

func (a *parol6Arm) Name() resource.Name {
	return a.name
}

func (a *parol6Arm) EndPosition(ctx context.Context, extra map[string]interface{}) (spatialmath.Pose, error) {
	pose, err := a.controller.TCPPose()
	if err != nil {
		return nil, err
	}
	return pose.Spatial(), nil
}

// MoveToPosition solves the target with the controller's own solver and animates to it.
func (a *parol6Arm) MoveToPosition(ctx context.Context, pose spatialmath.Pose, extra map[string]interface{}) error {
	q, err := a.controller.Engine().Inverse(kinematics.FromSpatial(pose), kinematics.OrientationAll, a.controller.CommandedJoints())
	if err != nil {
		return errors.Wrap(err, "target is out of reach")
	}
	return a.moveTo(ctx, q, extra)
}

func (a *parol6Arm) MoveToJointPositions(ctx context.Context, positions []referenceframe.Input, extra map[string]interface{}) error {
	return a.moveTo(ctx, kinematics.JointVector(positions), extra)
}

func (a *parol6Arm) moveTo(ctx context.Context, q kinematics.JointVector, extra map[string]interface{}) error {
	if speed, ok := extra["speed"].(float64); ok {
		a.controller.SetSpeed(speed)
	}
	if err := a.controller.MoveToPreset(q.Degrees()); err != nil {
		return err
	}
	if err := a.controller.WaitMove(ctx); err != nil {
		if ctx.Err() != nil {
			a.controller.Stop()
		}
		return err
	}
	return nil
}

func (a *parol6Arm) MoveThroughJointPositions(
	ctx context.Context,
	positions [][]referenceframe.Input,
	options *arm.MoveOptions,
	extra map[string]interface{},
) error {
	for _, p := range positions {
		if err := a.MoveToJointPositions(ctx, p, extra); err != nil {
			return err
		}
	}
	return nil
}

// JointPositions reports the commanded joints in radians.
func (a *parol6Arm) JointPositions(ctx context.Context, extra map[string]interface{}) ([]referenceframe.Input, error) {
	return []referenceframe.Input(a.controller.CommandedJoints()), nil
}

func (a *parol6Arm) Stop(ctx context.Context, extra map[string]interface{}) error {
	a.controller.Stop()
	return nil
}

func (a *parol6Arm) IsMoving(ctx context.Context) (bool, error) {
	return a.controller.Mode() != ModeIdle, nil
}

func (a *parol6Arm) Kinematics(ctx context.Context) (referenceframe.Model, error) {
	model := a.controller.Engine().Chain().Model()
	if model == nil {
		return nil, errors.Errorf("chain %q has no kinematic model", a.controller.Engine().Chain().Name())
	}
	return model, nil
}

func (a *parol6Arm) CurrentInputs(ctx context.Context) ([]referenceframe.Input, error) {
	return a.JointPositions(ctx, nil)
}

func (a *parol6Arm) GoToInputs(ctx context.Context, inputSteps ...[]referenceframe.Input) error {
	return a.MoveThroughJointPositions(ctx, inputSteps, nil, nil)
}

func (a *parol6Arm) Geometries(ctx context.Context, extra map[string]interface{}) ([]spatialmath.Geometry, error) {
	model, err := a.Kinematics(ctx)
	if err != nil {
		return nil, err
	}
	inputs, err := a.CurrentInputs(ctx)
	if err != nil {
		return nil, err
	}
	gif, err := model.Geometries(inputs)
	if err != nil {
		return nil, err
	}
	return gif.Geometries(), nil
}

func (a *parol6Arm) Get3DModels(ctx context.Context, extra map[string]interface{}) (map[string]*commonpb.Mesh, error) {
	return map[string]*commonpb.Mesh{}, nil
}

// DoCommand accepts the console command set.
func (a *parol6Arm) DoCommand(ctx context.Context, cmd map[string]interface{}) (map[string]interface{}, error) {
	return a.controller.DoCommand(ctx, cmd)
}

func (a *parol6Arm) Close(context.Context) error {
	var err error
	a.closeOnce.Do(func() {
		a.logger.Info("Closing PAROL6 arm")
		err = a.controller.Close()
		a.release()
	})
	return err
}
