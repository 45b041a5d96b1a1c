package main

import (
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

var (
	errQuit  = errors.New("quit")
	errHelp  = errors.New("help")
	errEmpty = errors.New("empty line")
)

const helpText = `commands:
  jog <x|y|z|rx|ry|rz> <+|->   start a Cartesian jog
  jjog <joint 1-6> <+|->       start a joint jog
  stop                         stop jogging or the current move
  preset <name>                move to a named preset
  move <deg> <deg> ...         move to a joint vector in degrees
  wait                         wait for the current move
  speed <percent>              set speed, 10 to 100
  tool <name>                  select the active tool
  home                         home the arm
  sync <deg> <deg> ...         record measured joint angles
  grip <action>                vacuum_on, vacuum_off, pneumatic_on, pneumatic_off, open, close, configure
  motors                       push motor settings
  status                       print state
  quit
`

// parseCommand turns a console line into a controller command.
func parseCommand(line string) (map[string]interface{}, error) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return nil, errEmpty
	}
	verb, args := strings.ToLower(fields[0]), fields[1:]

	want := func(n int) error {
		if len(args) != n {
			return errors.Errorf("%s takes %d argument(s), got %d", verb, n, len(args))
		}
		return nil
	}

	switch verb {
	case "quit", "exit", "q":
		return nil, errQuit
	case "help", "?":
		return nil, errHelp
	case "jog":
		if err := want(2); err != nil {
			return nil, err
		}
		return map[string]interface{}{"command": "start_jog", "axis": args[0], "direction": args[1]}, nil
	case "jjog":
		if err := want(2); err != nil {
			return nil, err
		}
		joint, err := strconv.Atoi(args[0])
		if err != nil {
			return nil, errors.Wrap(err, "joint must be a number")
		}
		return map[string]interface{}{"command": "start_joint_jog", "joint": float64(joint), "direction": args[1]}, nil
	case "stop":
		return map[string]interface{}{"command": "stop"}, nil
	case "preset":
		if err := want(1); err != nil {
			return nil, err
		}
		return map[string]interface{}{"command": "move_to_preset", "preset": args[0]}, nil
	case "move", "sync":
		if len(args) == 0 {
			return nil, errors.Errorf("%s needs joint angles in degrees", verb)
		}
		deg, err := parseFloats(args)
		if err != nil {
			return nil, err
		}
		command := "move_to_preset"
		if verb == "sync" {
			command = "sync"
		}
		return map[string]interface{}{"command": command, "joints_deg": deg}, nil
	case "wait":
		return map[string]interface{}{"command": "wait_move"}, nil
	case "speed":
		if err := want(1); err != nil {
			return nil, err
		}
		speed, err := strconv.ParseFloat(strings.TrimSuffix(args[0], "%"), 64)
		if err != nil {
			return nil, errors.Wrap(err, "speed must be a number")
		}
		return map[string]interface{}{"command": "set_speed", "speed": speed}, nil
	case "tool":
		if err := want(1); err != nil {
			return nil, err
		}
		return map[string]interface{}{"command": "set_tool", "name": args[0]}, nil
	case "home":
		return map[string]interface{}{"command": "home"}, nil
	case "grip":
		if err := want(1); err != nil {
			return nil, err
		}
		return map[string]interface{}{"command": "gripper", "action": strings.ToLower(args[0])}, nil
	case "motors":
		return map[string]interface{}{"command": "push_motor_settings"}, nil
	case "status":
		return map[string]interface{}{"command": "status"}, nil
	}
	return nil, errors.Errorf("unknown command %q, type help", verb)
}

func parseFloats(args []string) ([]float64, error) {
	out := make([]float64, len(args))
	for i, a := range args {
		v, err := strconv.ParseFloat(strings.TrimSuffix(a, ","), 64)
		if err != nil {
			return nil, errors.Wrapf(err, "value %d", i+1)
		}
		out[i] = v
	}
	return out, nil
}
