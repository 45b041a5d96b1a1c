package parol6

import (
	"math"
	"strings"
	"testing"

	"github.com/golang/geo/r3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"parol6/kinematics"
)

func TestParseAxisAndDirection(t *testing.T) {
	for i, name := range []string{"x", "Y", " z ", "rx", "RY", "rz"} {
		axis, err := ParseAxis(name)
		require.NoError(t, err)
		assert.Equal(t, Axis(i), axis)
	}
	_, err := ParseAxis("w")
	assert.ErrorContains(t, err, "unknown axis")

	dir, err := ParseDirection("+")
	require.NoError(t, err)
	assert.Equal(t, Plus, dir)
	dir, err = ParseDirection("minus")
	require.NoError(t, err)
	assert.Equal(t, Minus, dir)
	_, err = ParseDirection("up")
	assert.Error(t, err)

	assert.True(t, AxisZ.Linear())
	assert.False(t, AxisRX.Linear())
	assert.Equal(t, "ry", AxisRY.String())
}

func TestClampAxis(t *testing.T) {
	tests := []struct {
		name            string
		current, target float64
		want            float64
	}{
		{"inside", 0, 10, 10},
		{"crosses max", 95, 105, 100},
		{"crosses min", -95, -105, -100},
		{"outside moving further out", 120, 125, 120},
		{"outside moving back", 120, 115, 115},
		{"below moving back", -130, -120, -120},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, clampAxis(tt.current, tt.target, -100, 100))
		})
	}
}

func TestJogTarget(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Workspace.X = Range{Min: -216, Max: 500}
	rig := newTestRig(t, cfg)
	current, err := rig.c.TCPPose()
	require.NoError(t, err)

	t.Run("linear step scales with speed", func(t *testing.T) {
		target := rig.c.jogTarget(current, AxisZ, Plus, 0.25)
		assert.InDelta(t, 0.0005, target.Position.Z-current.Position.Z, 1e-12)
		assert.Equal(t, current.Rotation, target.Rotation)
	})

	t.Run("linear step stops at the workspace bound", func(t *testing.T) {
		target := rig.c.jogTarget(current, AxisX, Minus, 1)
		assert.InDelta(t, -0.216, target.Position.X, 1e-12)
	})

	t.Run("rotation is about the tool axis", func(t *testing.T) {
		target := rig.c.jogTarget(current, AxisRZ, Plus, 1)
		assert.Equal(t, current.Position, target.Position)
		want := current.Rotation.Mul(kinematics.AxisAngle(r3.Vector{Z: 1}, 0.02))
		for i := 0; i < 3; i++ {
			assert.InDelta(t, 0, want.Column(i).Sub(target.Rotation.Column(i)).Norm(), 1e-9)
		}
		// the tool z axis is the rotation axis so it does not move
		assert.InDelta(t, 0, current.Rotation.Column(2).Sub(target.Rotation.Column(2)).Norm(), 1e-9)
	})
}

func TestCartesianJogLinear(t *testing.T) {
	for _, tt := range []struct {
		name  string
		start []float64
	}{
		{"bent wrist", []float64{10, -20, 160, 5, 40, 30}},
		{"zero pose", []float64{0, 0, 0, 0, 0, 0}},
	} {
		t.Run(tt.name, func(t *testing.T) {
			rig := newTestRig(t, nil)
			rig.c.SetSpeed(50)
			rig.setJoints(t, tt.start...)
			start, err := rig.c.TCPPose()
			require.NoError(t, err)

			require.NoError(t, rig.c.StartJog(AxisX, Plus))
			prev := start
			for i := 0; i < 10; i++ {
				rig.step(1)
				pose, err := rig.c.TCPPose()
				require.NoError(t, err)
				dx := (pose.Position.X - prev.Position.X) * 1000
				assert.Greater(t, dx, 0.0, "tick %d", i)
				// 2 mm at (50/100)^2
				assert.LessOrEqual(t, dx, 0.52, "tick %d", i)
				prev = pose
			}
			rig.c.StopJog()
			assert.Equal(t, ModeIdle, rig.c.Mode())

			end, err := rig.c.TCPPose()
			require.NoError(t, err)
			assert.InDelta(t, 5.0, (end.Position.X-start.Position.X)*1000, 0.2)
			assert.InDelta(t, start.Position.Y, end.Position.Y, 2e-4)
			assert.InDelta(t, start.Position.Z, end.Position.Z, 2e-4)

			msgs := rig.tx.messages()
			require.Len(t, msgs, 10)
			for _, m := range msgs {
				assert.True(t, strings.HasPrefix(m, "J_"), m)
				assert.Len(t, strings.Split(strings.TrimPrefix(m, "J_"), ","), 6)
			}
			assert.Equal(t, 10, countKind(rig.events(), EventJointsUpdated))
		})
	}
}

func TestCartesianJogRotationHoldsPosition(t *testing.T) {
	rig := newTestRig(t, nil)
	rig.setJoints(t, 10, -20, 160, 5, 40, 30)
	rig.c.SetSpeed(100)
	start, err := rig.c.TCPPose()
	require.NoError(t, err)

	require.NoError(t, rig.c.StartJog(AxisRZ, Minus))
	rig.step(5)
	rig.c.StopJog()

	end, err := rig.c.TCPPose()
	require.NoError(t, err)
	assert.InDelta(t, 0, end.Position.Sub(start.Position).Norm(), 1e-3)
	want := start.Rotation.Mul(kinematics.AxisAngle(r3.Vector{Z: 1}, -0.1))
	for i := 0; i < 3; i++ {
		assert.InDelta(t, 0, want.Column(i).Sub(end.Rotation.Column(i)).Norm(), 1e-2)
	}
}

// fixedSolver ignores the target and answers with the seed nudged by offset.
func fixedSolver(offset kinematics.JointVector) kinematics.SolveFunc {
	return func(c *kinematics.Chain, _ kinematics.Pose, _ kinematics.OrientationMode, seed []float64) ([]float64, error) {
		out := append([]float64(nil), seed...)
		active := 0
		for i, on := range c.Mask() {
			if on {
				out[i] += offset[active]
				active++
			}
		}
		return out, nil
	}
}

func TestCartesianJogRejections(t *testing.T) {
	tests := []struct {
		name      string
		offset    kinematics.JointVector
		tolerance float64
		want      error
	}{
		{"forward check misses", kinematics.JointVector{0, 0.05, 0, 0, 0, 0}, 0, ErrValidation},
		{"joint limit", kinematics.JointVector{0, 0, 0, 0, 2.0, 0}, 1e6, kinematics.ErrJointLimit},
		{"rate limit", kinematics.JointVector{0.5, 0, 0, 0, 0, 0}, 1e6, ErrRateLimit},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			if tt.tolerance > 0 {
				cfg.Jog.ValidationToleranceMM = tt.tolerance
			}
			chain, err := kinematics.DefaultChain(nil)
			require.NoError(t, err)
			tools, err := cfg.ToolRegistry()
			require.NoError(t, err)
			engine := kinematics.NewEngine(chain, tools, cfg.SolverParams(), kinematics.WithSolver(fixedSolver(tt.offset)))
			rig := newTestRig(t, cfg, WithEngine(engine))

			require.NoError(t, rig.c.StartJog(AxisY, Plus))
			ticks := rig.stepUntilIdle(50)
			assert.Equal(t, cfg.Jog.MaxConsecutiveRejects, ticks)
			assert.Empty(t, rig.tx.messages())
			assert.Equal(t, make(kinematics.JointVector, 6), rig.c.CommandedJoints())

			events := rig.events()
			assert.Equal(t, cfg.Jog.MaxConsecutiveRejects, countKind(events, EventRejected))
			require.Equal(t, 1, countKind(events, EventOutOfReach))
			last := events[len(events)-1]
			assert.Equal(t, EventOutOfReach, last.Kind)
			assert.ErrorIs(t, last.Err, tt.want)
		})
	}
}

func TestCartesianJogRejectCounterResets(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Jog.MaxConsecutiveRejects = 3
	chain, err := kinematics.DefaultChain(nil)
	require.NoError(t, err)
	tools, err := cfg.ToolRegistry()
	require.NoError(t, err)

	good := true
	solve := func(c *kinematics.Chain, target kinematics.Pose, mode kinematics.OrientationMode, seed []float64) ([]float64, error) {
		if good {
			return append([]float64(nil), seed...), nil
		}
		return fixedSolver(kinematics.JointVector{0, 0.05, 0, 0, 0, 0})(c, target, mode, seed)
	}
	engine := kinematics.NewEngine(chain, tools, cfg.SolverParams(), kinematics.WithSolver(solve))
	rig := newTestRig(t, cfg, WithEngine(engine))

	require.NoError(t, rig.c.StartJog(AxisZ, Minus))
	for i := 0; i < 4; i++ {
		good = false
		rig.step(2)
		good = true
		// an unchanged seed lands 0.5 mm from the target, inside the 1 mm check
		rig.step(1)
	}
	assert.Equal(t, ModeJogging, rig.c.Mode())
	assert.Equal(t, 0, rig.c.jog.rejects)
	assert.Equal(t, 0, countKind(rig.events(), EventOutOfReach))
}

func TestJointJog(t *testing.T) {
	rig := newTestRig(t, nil)
	rig.c.SetSpeed(100)

	require.NoError(t, rig.c.StartJointJog(0, Plus))
	rig.step(3)
	rig.c.StopJog()
	assert.Equal(t, []string{"J1_2.00", "J1_4.00", "J1_6.00"}, rig.tx.messages())
	assert.InDelta(t, 6, rig.c.CommandedJoints().Degrees()[0], 1e-9)

	rig.c.SetSpeed(50)
	require.NoError(t, rig.c.StartJointJog(2, Minus))
	rig.step(1)
	rig.c.StopJog()
	assert.Equal(t, "J3_-0.50", rig.tx.messages()[3])
}

func TestJointJogStopsAtLimit(t *testing.T) {
	rig := newTestRig(t, nil)
	rig.c.SetSpeed(100)
	rig.setJoints(t, 0, 0, 0, 0, 89, 0)

	require.NoError(t, rig.c.StartJointJog(4, Plus))
	ticks := rig.stepUntilIdle(10)
	assert.Equal(t, 2, ticks)
	assert.Equal(t, []string{"J5_90.00"}, rig.tx.messages())
	assert.InDelta(t, math.Pi/2, rig.c.CommandedJoints()[4], 1e-9)

	events := rig.events()
	require.Equal(t, 1, countKind(events, EventOutOfReach))
	assert.ErrorIs(t, events[len(events)-1].Err, kinematics.ErrJointLimit)
}

func TestJointJogOutOfRange(t *testing.T) {
	rig := newTestRig(t, nil)
	assert.ErrorIs(t, rig.c.StartJointJog(6, Plus), kinematics.ErrJointCount)
	assert.ErrorIs(t, rig.c.StartJointJog(-1, Plus), kinematics.ErrJointCount)
	assert.Error(t, rig.c.StartJointJog(0, Direction(0)))
}

func TestJogTransmitFailureStops(t *testing.T) {
	rig := newTestRig(t, nil)
	require.NoError(t, rig.c.StartJointJog(1, Plus))
	rig.tx.failAll(assert.AnError)

	rig.step(1)
	assert.Equal(t, ModeIdle, rig.c.Mode())
	assert.Equal(t, make(kinematics.JointVector, 6), rig.c.CommandedJoints())
	events := rig.events()
	require.Equal(t, 1, countKind(events, EventLinkError))
	assert.ErrorIs(t, events[len(events)-1].Err, assert.AnError)
}
