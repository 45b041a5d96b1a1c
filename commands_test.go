package parol6

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"parol6/link"
)

func TestDoCommandStatus(t *testing.T) {
	rig := newTestRig(t, nil)
	out, err := rig.c.DoCommand(context.Background(), map[string]interface{}{"command": "status"})
	require.NoError(t, err)

	assert.Equal(t, "idle", out["mode"])
	assert.Equal(t, 50.0, out["speed"])
	assert.Equal(t, true, out["connected"])
	assert.Equal(t, "flange", out["tool"])
	assert.Equal(t, "parol6", out["chain"])
	assert.Equal(t, []string{PresetHome, PresetSafety, PresetStandby}, out["presets"])

	tcp, ok := out["tcp"].(map[string]interface{})
	require.True(t, ok)
	assert.InDelta(t, -215.73, tcp["x_mm"], 0.01)
	assert.InDelta(t, 334.0, tcp["z_mm"], 0.01)

	pose, ok := out["pose"].(map[string]interface{})
	require.True(t, ok)
	assert.InDelta(t, -215.73, pose["x"], 0.01)
	assert.InDelta(t, 334.0, pose["z"], 0.01)
	// the flange points along +x at the zero pose
	assert.InDelta(t, 1, pose["o_x"], 1e-9)
	assert.InDelta(t, 0, pose["o_z"], 1e-9)
}

func TestDoCommandMotion(t *testing.T) {
	ctx := context.Background()
	rig := newTestRig(t, nil)
	c := rig.c

	out, err := c.DoCommand(ctx, map[string]interface{}{"command": "set_speed", "speed": 100.0})
	require.NoError(t, err)
	assert.Equal(t, 100.0, out["speed"])

	_, err = c.DoCommand(ctx, map[string]interface{}{"command": "start_joint_jog", "joint": 2.0, "direction": "+"})
	require.NoError(t, err)
	assert.Equal(t, ModeJointJogging, c.Mode())
	rig.step(1)
	_, err = c.DoCommand(ctx, map[string]interface{}{"command": "stop_jog"})
	require.NoError(t, err)
	assert.Equal(t, []string{"J2_2.00"}, rig.tx.messages())

	_, err = c.DoCommand(ctx, map[string]interface{}{"command": "start_jog", "axis": "rz", "direction": "minus"})
	require.NoError(t, err)
	assert.Equal(t, ModeJogging, c.Mode())
	_, err = c.DoCommand(ctx, map[string]interface{}{"command": "stop"})
	require.NoError(t, err)

	_, err = c.DoCommand(ctx, map[string]interface{}{
		"command":    "move_to_preset",
		"joints_deg": []interface{}{1.0, 0.0, 0.0, 0.0, 0.0, 0.0},
	})
	require.NoError(t, err)
	rig.stepUntilIdle(20)
	_, err = c.DoCommand(ctx, map[string]interface{}{"command": "wait_move"})
	require.NoError(t, err)
	assert.InDelta(t, 1, c.CommandedJoints().Degrees()[0], 1e-9)

	_, err = c.DoCommand(ctx, map[string]interface{}{"command": "move_to_preset", "preset": "nowhere"})
	assert.ErrorIs(t, err, ErrUnknownPreset)

	_, err = c.DoCommand(ctx, map[string]interface{}{"command": "home"})
	require.NoError(t, err)
	assert.Equal(t, link.HomeToken, rig.tx.messages()[len(rig.tx.messages())-1])
}

func TestDoCommandArguments(t *testing.T) {
	ctx := context.Background()
	rig := newTestRig(t, nil)
	c := rig.c

	for _, cmd := range []map[string]interface{}{
		{"command": "start_jog", "axis": "w", "direction": "+"},
		{"command": "start_jog", "axis": "x"},
		{"command": "start_joint_jog", "joint": "one", "direction": "+"},
		{"command": "set_speed", "speed": "fast"},
		{"command": "set_tool"},
		{"command": "move_to_preset"},
		{"command": "sync", "joints_deg": []interface{}{1.0, "x"}},
		{"command": "dance"},
	} {
		_, err := c.DoCommand(ctx, cmd)
		assert.Error(t, err, "%v", cmd)
	}
	assert.Equal(t, ModeIdle, c.Mode())
	assert.Empty(t, rig.tx.messages())
}

func TestDoCommandGripperAndMotors(t *testing.T) {
	ctx := context.Background()
	rig := newTestRig(t, nil)

	out, err := rig.c.DoCommand(ctx, map[string]interface{}{"command": "gripper", "action": "vacuum_on"})
	require.NoError(t, err)
	assert.Equal(t, true, out["vacuum"])

	_, err = rig.c.DoCommand(ctx, map[string]interface{}{"command": "push_motor_settings"})
	require.NoError(t, err)
	assert.Len(t, rig.tx.messages(), 25)

	_, err = rig.c.DoCommand(ctx, map[string]interface{}{"command": "sync", "joints_deg": []float64{0, 3, 0, 0, 0, 0}})
	require.NoError(t, err)
	rig.step(1)
	assert.InDelta(t, 3, rig.c.CommandedJoints().Degrees()[1], 1e-9)
}

func TestDoCommandFailureReturnsNoResult(t *testing.T) {
	ctx := context.Background()
	rig := newTestRig(t, nil)

	for _, cmd := range []map[string]interface{}{
		{"command": "start_joint_jog", "joint": 9.0, "direction": "+"},
		{"command": "move_to_preset", "preset": "nowhere"},
		{"command": "move_to_preset", "joints_deg": []interface{}{0.0, 0.0}},
		{"command": "set_tool", "name": "nowhere"},
		{"command": "sync", "joints_deg": []interface{}{0.0}},
	} {
		out, err := rig.c.DoCommand(ctx, cmd)
		assert.Error(t, err, "%v", cmd)
		assert.Nil(t, out, "%v", cmd)
	}

	out, err := rig.c.DoCommand(ctx, map[string]interface{}{"command": "stop_jog"})
	require.NoError(t, err)
	assert.Equal(t, true, out["success"])
}
