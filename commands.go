package parol6

import (
	"context"

	"github.com/pkg/errors"
	"go.viam.com/rdk/utils"
)

// DoCommand is the console command surface. cmd["command"] selects the operation; numbers
// arrive as float64 the way encoding/json decodes them.
func (c *Controller) DoCommand(ctx context.Context, cmd map[string]interface{}) (map[string]interface{}, error) {
	switch cmd["command"] {
	case "start_jog":
		axis, err := ParseAxis(stringArg(cmd, "axis"))
		if err != nil {
			return nil, err
		}
		dir, err := ParseDirection(stringArg(cmd, "direction"))
		if err != nil {
			return nil, err
		}
		return done(c.StartJog(axis, dir))

	case "stop_jog":
		c.StopJog()
		return ok(), nil

	case "stop":
		c.Stop()
		return ok(), nil

	case "start_joint_jog":
		joint, isNum := cmd["joint"].(float64)
		if !isNum {
			return nil, errors.New("start_joint_jog requires a 1-based 'joint' number")
		}
		dir, err := ParseDirection(stringArg(cmd, "direction"))
		if err != nil {
			return nil, err
		}
		return done(c.StartJointJog(int(joint)-1, dir))

	case "move_to_preset":
		if name := stringArg(cmd, "preset"); name != "" {
			return done(c.MoveToNamedPreset(name))
		}
		deg, err := floatsArg(cmd, "joints_deg")
		if err != nil {
			return nil, errors.Wrap(err, "move_to_preset requires 'preset' or 'joints_deg'")
		}
		return done(c.MoveToPreset(deg))

	case "wait_move":
		return done(c.WaitMove(ctx))

	case "set_tool":
		name := stringArg(cmd, "name")
		if name == "" {
			return nil, errors.New("set_tool requires 'name'")
		}
		return done(c.SetTool(name))

	case "set_speed":
		speed, isNum := cmd["speed"].(float64)
		if !isNum {
			return nil, errors.New("set_speed requires a numeric 'speed'")
		}
		return map[string]interface{}{"speed": c.SetSpeed(speed)}, nil

	case "home":
		return done(c.Home(ctx))

	case "sync":
		deg, err := floatsArg(cmd, "joints_deg")
		if err != nil {
			return nil, err
		}
		return done(c.SyncToFeedback(deg))

	case "status":
		return c.status()

	case "gripper":
		return c.grip.DoCommand(ctx, cmd)

	case "push_motor_settings":
		if err := ConfigureMotors(ctx, c.tx, c.cfg.Motors, c.logger); err != nil {
			return nil, err
		}
		return ok(), nil

	default:
		return nil, errors.Errorf("unknown command %v", cmd["command"])
	}
}

func ok() map[string]interface{} {
	return map[string]interface{}{"success": true}
}

func done(err error) (map[string]interface{}, error) {
	if err != nil {
		return nil, err
	}
	return ok(), nil
}

func (c *Controller) status() (map[string]interface{}, error) {
	joints := c.CommandedJoints()
	pose, err := c.engine.Forward(joints)
	if err != nil {
		return nil, err
	}
	rx, ry, rz := pose.EulerZYX()
	wire := pose.Proto()
	connected := false
	if c.tx != nil {
		connected = c.tx.IsConnected()
	}
	return map[string]interface{}{
		"mode":       c.Mode().String(),
		"speed":      c.Speed(),
		"joints_deg": joints.Degrees(),
		"tcp": map[string]interface{}{
			"x_mm":   pose.Position.X * 1000,
			"y_mm":   pose.Position.Y * 1000,
			"z_mm":   pose.Position.Z * 1000,
			"rx_deg": utils.RadToDeg(rx),
			"ry_deg": utils.RadToDeg(ry),
			"rz_deg": utils.RadToDeg(rz),
		},
		// orientation vector form, as reported by the arm's EndPosition
		"pose": map[string]interface{}{
			"x":     wire.GetX(),
			"y":     wire.GetY(),
			"z":     wire.GetZ(),
			"o_x":   wire.GetOX(),
			"o_y":   wire.GetOY(),
			"o_z":   wire.GetOZ(),
			"theta": wire.GetTheta(),
		},
		"tool":      c.engine.Tools().Active().Name,
		"tools":     c.engine.Tools().Names(),
		"presets":   c.cfg.PresetNames(),
		"chain":     c.engine.Chain().Name(),
		"connected": connected,
		"gripper":   c.grip.State(),
	}, nil
}

func stringArg(cmd map[string]interface{}, key string) string {
	s, _ := cmd[key].(string)
	return s
}

func floatsArg(cmd map[string]interface{}, key string) ([]float64, error) {
	switch v := cmd[key].(type) {
	case []float64:
		return v, nil
	case []interface{}:
		out := make([]float64, len(v))
		for i, x := range v {
			f, isNum := x.(float64)
			if !isNum {
				return nil, errors.Errorf("%s[%d] is not a number", key, i)
			}
			out[i] = f
		}
		return out, nil
	default:
		return nil, errors.Errorf("%s must be a list of numbers", key)
	}
}
