// Package main is a toolbox for PAROL6 bring-up: port discovery, raw link access, kinematics
// checks and config generation.
package main

import (
	"os"

	"github.com/urfave/cli/v2"
	"go.viam.com/rdk/logging"
)

const (
	flagConfig      = "config"
	flagPort        = "port"
	flagBaud        = "baud"
	flagAck         = "ack"
	flagDuration    = "duration"
	flagAll         = "all"
	flagDescription = "description"
	flagTool        = "tool"
	flagPush        = "push"
	flagDebug       = "debug"
)

var logger = logging.NewLogger("parol6-cli")

func main() {
	if err := newApp().Run(os.Args); err != nil {
		logger.Fatal(err)
	}
}

func newApp() *cli.App {
	portFlags := []cli.Flag{
		&cli.StringFlag{Name: flagPort, Usage: "serial port, first candidate when empty"},
		&cli.IntFlag{Name: flagBaud, Value: 9600, Usage: "baud rate"},
	}

	return &cli.App{
		Name:  "parol6-cli",
		Usage: "bring-up tools for the PAROL6 arm",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: flagConfig, Usage: "JSON config file"},
			&cli.BoolFlag{Name: flagDebug, Usage: "debug logging"},
		},
		Before: func(c *cli.Context) error {
			if c.Bool(flagDebug) {
				logger.SetLevel(logging.DEBUG)
			}
			return nil
		},
		Commands: []*cli.Command{
			{
				Name:  "ports",
				Usage: "list serial ports",
				Flags: []cli.Flag{
					&cli.BoolFlag{Name: flagAll, Usage: "include ports that do not look like a USB serial bridge"},
				},
				Action: PortsAction,
			},
			{
				Name:      "send",
				Usage:     "send one raw command line",
				ArgsUsage: "<command>",
				Flags: append([]cli.Flag{
					&cli.BoolFlag{Name: flagAck, Usage: "wait for OK"},
				}, portFlags...),
				Action: SendAction,
			},
			{
				Name:  "monitor",
				Usage: "print classified telemetry lines",
				Flags: append([]cli.Flag{
					&cli.DurationFlag{Name: flagDuration, Usage: "stop after this long, zero runs until interrupted"},
				}, portFlags...),
				Action: MonitorAction,
			},
			{
				Name:  "chain",
				Usage: "print the kinematic chain",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: flagDescription, Usage: "URDF or DH JSON file, built-in table when empty"},
				},
				Action: ChainAction,
			},
			{
				Name:      "fk",
				Usage:     "forward kinematics for joint angles in degrees",
				ArgsUsage: "<j1> ... <j6>",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: flagTool, Usage: "tool to evaluate, every tool when empty"},
				},
				Action: FKAction,
			},
			{
				Name:      "ik",
				Usage:     "inverse kinematics for a TCP pose in mm and roll/pitch/yaw degrees",
				ArgsUsage: "<x> <y> <z> <roll> <pitch> <yaw>",
				Action:    IKAction,
			},
			{
				Name:  "motors",
				Usage: "print the motor settings commands",
				Flags: append([]cli.Flag{
					&cli.BoolFlag{Name: flagPush, Usage: "send them to the controller"},
				}, portFlags...),
				Action: MotorsAction,
			},
			{
				Name:      "init-config",
				Usage:     "write the default configuration",
				ArgsUsage: "<path>",
				Action:    InitConfigAction,
			},
		},
	}
}
