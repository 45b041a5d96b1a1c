package parol6

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.viam.com/rdk/components/arm"
	"go.viam.com/rdk/components/gripper"
	"go.viam.com/rdk/logging"
	"go.viam.com/rdk/referenceframe"
	"go.viam.com/rdk/resource"
	"go.viam.com/rdk/spatialmath"

	"parol6/kinematics"
)

func newTestArm(t *testing.T) (*parol6Arm, *testRig) {
	t.Helper()
	rig := newTestRig(t, nil)
	released := false
	a := newArmFromController(arm.Named("parol6"), rig.c, logging.NewTestLogger(t), func() { released = true })
	t.Cleanup(func() {
		require.NoError(t, a.Close(context.Background()))
		assert.True(t, released)
	})
	return a, rig
}

// runMove starts move in the background and drives the controller's ticks until it returns.
func runMove(t *testing.T, rig *testRig, move func() error) error {
	t.Helper()
	result := make(chan error, 1)
	go func() { result <- move() }()
	require.Eventually(t, func() bool {
		select {
		case err := <-result:
			result <- err
			return true
		default:
		}
		return rig.c.Mode() == ModeAnimating
	}, time.Second, time.Millisecond)
	rig.stepUntilIdle(500)
	select {
	case err := <-result:
		return err
	case <-time.After(time.Second):
		t.Fatal("move did not return")
		return nil
	}
}

func TestArmReportsControllerState(t *testing.T) {
	ctx := context.Background()
	a, rig := newTestArm(t)
	rig.setJoints(t, 10, -20, 30, 0, 15, 5)

	assert.Equal(t, arm.Named("parol6"), a.Name())
	inputs, err := a.JointPositions(ctx, nil)
	require.NoError(t, err)
	assert.InDeltaSlice(t, []float64(kinematics.FromDegrees([]float64{10, -20, 30, 0, 15, 5})), inputs, 1e-12)

	tcp, err := rig.c.TCPPose()
	require.NoError(t, err)
	end, err := a.EndPosition(ctx, nil)
	require.NoError(t, err)
	assert.True(t, spatialmath.PoseAlmostEqualEps(tcp.Spatial(), end, 1e-9))
	assert.InDelta(t, tcp.Position.X*1000, end.Point().X, 1e-9)

	model, err := a.Kinematics(ctx)
	require.NoError(t, err)
	assert.Len(t, model.DoF(), 6)
	fromModel, err := referenceframe.ComputeOOBPosition(model, inputs)
	require.NoError(t, err)
	assert.True(t, spatialmath.PoseAlmostEqualEps(end, fromModel, 1e-6), "model %v, controller %v", fromModel, end)

	geoms, err := a.Geometries(ctx, nil)
	require.NoError(t, err)
	assert.Empty(t, geoms)
	meshes, err := a.Get3DModels(ctx, nil)
	require.NoError(t, err)
	assert.Empty(t, meshes)
}

func TestArmMoveToJointPositions(t *testing.T) {
	ctx := context.Background()
	a, rig := newTestArm(t)

	target := kinematics.FromDegrees([]float64{10, 0, 0, 0, 0, 0})
	err := runMove(t, rig, func() error {
		return a.MoveToJointPositions(ctx, []referenceframe.Input(target), map[string]interface{}{"speed": 100.0})
	})
	require.NoError(t, err)
	assert.Equal(t, 100.0, rig.c.Speed())
	assert.InDeltaSlice(t, []float64{10, 0, 0, 0, 0, 0}, rig.c.CommandedJoints().Degrees(), 1e-9)

	moving, err := a.IsMoving(ctx)
	require.NoError(t, err)
	assert.False(t, moving)

	assert.ErrorIs(t, a.MoveToJointPositions(ctx, []referenceframe.Input{0, 0}, nil), kinematics.ErrJointCount)
}

func TestArmMoveToPosition(t *testing.T) {
	ctx := context.Background()
	a, rig := newTestArm(t)
	rig.setJoints(t, 0, -60, 150, 0, 30, 0)

	want, err := rig.c.Engine().Forward(kinematics.FromDegrees([]float64{5, -55, 145, 0, 35, 0}))
	require.NoError(t, err)
	err = runMove(t, rig, func() error { return a.MoveToPosition(ctx, want.Spatial(), nil) })
	require.NoError(t, err)

	got, err := a.EndPosition(ctx, nil)
	require.NoError(t, err)
	assert.True(t, spatialmath.PoseAlmostCoincidentEps(want.Spatial(), got, 1), "want %v, got %v", want.Spatial(), got)
}

func TestArmMoveCanceledStops(t *testing.T) {
	a, rig := newTestArm(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := a.MoveToJointPositions(ctx, []referenceframe.Input{1, 0, 0, 0, 0, 0}, nil)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, ModeIdle, rig.c.Mode())
	assert.Empty(t, rig.tx.messages())
}

func TestArmCommandsAndStop(t *testing.T) {
	ctx := context.Background()
	a, _ := newTestArm(t)

	_, err := a.DoCommand(ctx, map[string]interface{}{"command": "start_joint_jog", "joint": 1.0, "direction": "+"})
	require.NoError(t, err)
	moving, err := a.IsMoving(ctx)
	require.NoError(t, err)
	assert.True(t, moving)

	require.NoError(t, a.Stop(ctx, nil))
	moving, err = a.IsMoving(ctx)
	require.NoError(t, err)
	assert.False(t, moving)

	out, err := a.DoCommand(ctx, map[string]interface{}{"command": "status"})
	require.NoError(t, err)
	assert.Equal(t, "idle", out["mode"])
}

func TestArmOnRegistry(t *testing.T) {
	opener := &countingOpener{}
	registry := NewLinkRegistry(opener.open, logging.NewTestLogger(t))
	cfg := DefaultConfig()
	cfg.Port = "/dev/ttyACM0"

	a, err := newArmOnRegistry(arm.Named("parol6"), *cfg, registry, logging.NewTestLogger(t))
	require.NoError(t, err)
	assert.EqualValues(t, 1, opener.opens.Load())
	refs, open, _ := registry.Status(cfg.Port)
	assert.EqualValues(t, 1, refs)
	assert.True(t, open)

	require.NoError(t, a.Close(context.Background()))
	require.NoError(t, a.Close(context.Background()))
	assert.Empty(t, registry.Ports())

	opener.fail = assert.AnError
	_, err = newArmOnRegistry(arm.Named("parol6"), *cfg, registry, logging.NewTestLogger(t))
	assert.ErrorIs(t, err, assert.AnError)
}

func TestGripperResource(t *testing.T) {
	ctx := context.Background()
	a, rig := newTestArm(t)

	g, err := newGripperFromArm(gripper.Named("grip"), a, GripperVacuum, logging.NewTestLogger(t))
	require.NoError(t, err)

	held, err := g.Grab(ctx, nil)
	require.NoError(t, err)
	assert.True(t, held)
	status, err := g.IsHoldingSomething(ctx, nil)
	require.NoError(t, err)
	assert.True(t, status.IsHoldingSomething)
	assert.Equal(t, true, status.Meta["vacuum"])

	require.NoError(t, g.Open(ctx, nil))
	status, err = g.IsHoldingSomething(ctx, nil)
	require.NoError(t, err)
	assert.False(t, status.IsHoldingSomething)
	assert.Len(t, rig.tx.messages(), 2)

	geoms, err := g.Geometries(ctx, nil)
	require.NoError(t, err)
	assert.Len(t, geoms, 1)
	_, err = g.Kinematics(ctx)
	assert.ErrorIs(t, err, errUnimplemented)

	_, err = newGripperFromArm(gripper.Named("grip"), a, "magnet", logging.NewTestLogger(t))
	assert.ErrorContains(t, err, "unknown gripper kind")
}

func TestResourceConfigValidate(t *testing.T) {
	armCfg := &ArmConfig{}
	deps, _, err := armCfg.Validate("components.0")
	require.NoError(t, err)
	assert.Empty(t, deps)
	assert.Equal(t, DefaultConfig().Baudrate, armCfg.Baudrate)

	gripCfg := &GripperResourceConfig{}
	_, _, err = gripCfg.Validate("components.1")
	assert.ErrorContains(t, err, "arm")

	gripCfg = &GripperResourceConfig{Arm: "parol6", Kind: "magnet"}
	_, _, err = gripCfg.Validate("components.1")
	assert.ErrorContains(t, err, "magnet")

	gripCfg = &GripperResourceConfig{Arm: "parol6", Kind: GripperPneumatic}
	deps, _, err = gripCfg.Validate("components.1")
	require.NoError(t, err)
	assert.Equal(t, []string{"parol6"}, deps)

	_, err = resource.NativeConfig[*GripperResourceConfig](resource.Config{ConvertedAttributes: gripCfg})
	require.NoError(t, err)
}
