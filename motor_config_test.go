package parol6

import (
	"context"
	"strings"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/multierr"
	"go.viam.com/rdk/logging"
)

func TestMotorCommands(t *testing.T) {
	cmds, err := MotorCommands(DefaultMotorSettings())
	require.NoError(t, err)
	require.Len(t, cmds, 24)
	assert.Equal(t, "OT,ramp,J1,1500,2500,10000,100000,1400", cmds[0])
	assert.Equal(t, "OT,current,J1,11,11,6", cmds[1])
	assert.Equal(t, "OT,homing,J1,300000,5000,0", cmds[2])
	assert.Equal(t, "OT,stall,J1,0,11", cmds[3])
	assert.Equal(t, "OT,stall,J6,0,5", cmds[23])

	cmds, err = MotorCommands([]MotorSettings{{}, {Current: []int{3}}})
	require.NoError(t, err)
	assert.Equal(t, []string{"OT,current,J2,3"}, cmds)
}

func TestConfigureMotors(t *testing.T) {
	logger := logging.NewTestLogger(t)
	motors := []MotorSettings{
		{Ramp: []int{1}, Current: []int{2}},
		{Ramp: []int{3}, Current: []int{4}},
	}

	t.Run("all acknowledged", func(t *testing.T) {
		tx := &fakeTx{}
		require.NoError(t, ConfigureMotors(context.Background(), tx, motors, logger))
		assert.Len(t, tx.sent, 4)
		for _, s := range tx.sent {
			assert.True(t, s.waitAck)
		}
	})

	t.Run("failures are collected", func(t *testing.T) {
		tx := &fakeTx{fail: func(msg string) error {
			if strings.HasPrefix(msg, "OT,current") {
				return errors.New("no ack")
			}
			return nil
		}}
		err := ConfigureMotors(context.Background(), tx, motors, logger)
		require.Error(t, err)
		assert.Len(t, multierr.Errors(err), 2)
		assert.Equal(t, []string{"OT,ramp,J1,1", "OT,ramp,J2,3"}, tx.messages())
	})

	t.Run("cancelled", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		tx := &fakeTx{}
		assert.ErrorIs(t, ConfigureMotors(ctx, tx, motors, logger), context.Canceled)
		assert.Empty(t, tx.sent)
	})

	t.Run("offline", func(t *testing.T) {
		assert.ErrorIs(t, ConfigureMotors(context.Background(), nil, motors, logger), ErrNotReady)
	})
}
