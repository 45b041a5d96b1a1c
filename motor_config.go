package parol6

import (
	"context"

	"github.com/pkg/errors"
	"go.uber.org/multierr"
	"go.viam.com/rdk/logging"

	"parol6/link"
)

// MotorCommands builds the OT commands for motors 1..n in option order ramp, current, homing,
// stall. Empty option groups are skipped.
func MotorCommands(motors []MotorSettings) ([]string, error) {
	var cmds []string
	for i, m := range motors {
		for _, opt := range []struct {
			option link.MotorOption
			values []int
		}{
			{link.OptionRamp, m.Ramp},
			{link.OptionCurrent, m.Current},
			{link.OptionHoming, m.Homing},
			{link.OptionStall, m.Stall},
		} {
			if len(opt.values) == 0 {
				continue
			}
			cmd, err := link.FormatMotorOption(opt.option, i+1, opt.values)
			if err != nil {
				return nil, err
			}
			cmds = append(cmds, cmd)
		}
	}
	return cmds, nil
}

// ConfigureMotors pushes every motor setting with acknowledgment. A failed setting does not stop
// the rest; all failures are returned together.
func ConfigureMotors(ctx context.Context, tx Transmitter, motors []MotorSettings, logger logging.Logger) error {
	if tx == nil {
		return errors.Wrap(ErrNotReady, "no link to configure motors over")
	}
	cmds, err := MotorCommands(motors)
	if err != nil {
		return err
	}

	logger.Debugf("Pushing %d motor settings to %d motors", len(cmds), len(motors))
	var errs error
	for _, cmd := range cmds {
		if ctx.Err() != nil {
			return multierr.Append(errs, ctx.Err())
		}
		if err := tx.Send(ctx, cmd, true); err != nil {
			logger.Debugf("Failed to apply %s: %v", cmd, err)
			errs = multierr.Append(errs, errors.Wrapf(err, "motor setting %s", cmd))
		}
	}
	if errs == nil {
		logger.Infof("Motor settings applied (%d commands)", len(cmds))
	}
	return errs
}
