package parol6

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"parol6/kinematics"
	"parol6/link"
)

func TestSyncAdoptsFeedbackWhenIdle(t *testing.T) {
	rig := newTestRig(t, nil)

	require.NoError(t, rig.c.SyncToFeedback([]float64{1, 0, 0, 0, 0, 0}))
	rig.step(1)
	assert.InDeltaSlice(t, []float64{1, 0, 0, 0, 0, 0}, rig.c.CommandedJoints().Degrees(), 1e-9)

	events := rig.events()
	require.Equal(t, 1, countKind(events, EventSynced))
	assert.Empty(t, rig.tx.messages())
}

func TestSyncIgnoresSmallDifferences(t *testing.T) {
	rig := newTestRig(t, nil)

	require.NoError(t, rig.c.SyncToFeedback([]float64{0.2, -0.3, 0, 0, 0.4, 0}))
	rig.step(3)
	assert.Equal(t, make(kinematics.JointVector, 6), rig.c.CommandedJoints())
	assert.Equal(t, 0, countKind(rig.events(), EventSynced))
}

func TestSyncWaitsForCooldown(t *testing.T) {
	rig := newTestRig(t, nil)

	require.NoError(t, rig.c.StartJointJog(0, Plus))
	rig.step(1)
	rig.c.StopJog()
	stoppedAt := rig.now
	commanded := rig.c.CommandedJoints()

	require.NoError(t, rig.c.SyncToFeedback([]float64{20, 0, 0, 0, 0, 0}))
	for rig.now.Sub(stoppedAt) < time.Second-rig.c.cfg.TickPeriod() {
		rig.step(1)
		assert.Equal(t, commanded, rig.c.CommandedJoints())
	}
	rig.step(2)
	assert.InDelta(t, 20, rig.c.CommandedJoints().Degrees()[0], 1e-9)
}

func TestSyncNotDuringMotion(t *testing.T) {
	rig := newTestRig(t, nil)
	require.NoError(t, rig.c.StartJointJog(3, Minus))
	require.NoError(t, rig.c.SyncToFeedback([]float64{0, 0, 0, 30, 0, 0}))

	rig.c.syncTick(rig.now.Add(time.Hour))
	assert.Equal(t, make(kinematics.JointVector, 6), rig.c.CommandedJoints())
}

func TestSyncRejectsWrongLength(t *testing.T) {
	rig := newTestRig(t, nil)
	assert.ErrorIs(t, rig.c.SyncToFeedback([]float64{1, 2}), kinematics.ErrJointCount)
}

func TestHandleLine(t *testing.T) {
	rig := newTestRig(t, nil)
	c := rig.c

	c.HandleLine("JP_5,0,0,0,0,0")
	rig.step(1)
	assert.InDelta(t, 5, c.CommandedJoints().Degrees()[0], 1e-9)

	c.HandleLine("JP_1,2")
	c.HandleLine(link.VacuumOn)
	c.HandleLine("P:42.5")
	c.HandleLine("ERR_7 overcurrent")
	c.HandleLine("hello")

	state := c.Gripper().State()
	assert.True(t, state.Vacuum)
	assert.True(t, state.HasPressure)
	assert.Equal(t, 42.5, state.Pressure)

	var kinds []link.Kind
	for _, e := range rig.events() {
		if e.Kind == EventTelemetry {
			kinds = append(kinds, e.Telemetry.Kind)
		}
	}
	assert.Equal(t, []link.Kind{
		link.KindJointFeedback,
		link.KindJointFeedback,
		link.KindPeripheral,
		link.KindPressure,
		link.KindAlarm,
		link.KindUnknown,
	}, kinds)
}

func TestSyncDropsFeedbackOlderThanMotion(t *testing.T) {
	rig := newTestRig(t, nil)
	rig.c.SetSpeed(100)

	require.NoError(t, rig.c.SyncToFeedback([]float64{0, 0, 0, 0, 0, 0}))
	require.NoError(t, rig.c.StartJointJog(0, Plus))
	rig.step(5)
	rig.c.StopJog()
	require.InDelta(t, 10, rig.c.CommandedJoints().Degrees()[0], 1e-9)

	rig.step(15)
	assert.InDelta(t, 10, rig.c.CommandedJoints().Degrees()[0], 1e-9)
	assert.Equal(t, 0, countKind(rig.events(), EventSynced))
}

func TestSyncDropsFeedbackTakenDuringMotion(t *testing.T) {
	rig := newTestRig(t, nil)
	rig.c.SetSpeed(100)

	require.NoError(t, rig.c.StartJointJog(0, Plus))
	rig.step(2)
	require.NoError(t, rig.c.SyncToFeedback([]float64{1, 0, 0, 0, 0, 0}))
	rig.step(3)
	rig.c.StopJog()

	rig.step(15)
	assert.InDelta(t, 10, rig.c.CommandedJoints().Degrees()[0], 1e-9)

	// a fresh reading after the stop is still adopted
	require.NoError(t, rig.c.SyncToFeedback([]float64{12, 0, 0, 0, 0, 0}))
	rig.step(1)
	assert.InDelta(t, 12, rig.c.CommandedJoints().Degrees()[0], 1e-9)
}
