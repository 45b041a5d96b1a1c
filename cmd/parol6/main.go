// Package main is an interactive console for a PAROL6 arm. Commands are read from stdin one
// per line; type "help" for the list.
package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/pkg/errors"
	"go.uber.org/multierr"
	"go.viam.com/rdk/logging"
	"go.viam.com/utils"

	"parol6"
	"parol6/link"
)

var logger = logging.NewLogger("parol6")

func main() {
	utils.ContextualMain(mainWithArgs, logger)
}

// Arguments for the command.
type Arguments struct {
	Config         string `flag:"config,usage=JSON config file"`
	Port           string `flag:"port,usage=serial port, overrides the config"`
	Offline        bool   `flag:"offline,usage=run without a serial link"`
	ConfigureMotor bool   `flag:"configure-motors,usage=push motor and gripper settings on start"`
	Debug          bool   `flag:"debug,usage=debug logging"`
}

func mainWithArgs(ctx context.Context, args []string, logger logging.Logger) (err error) {
	var argsParsed Arguments
	if err := utils.ParseFlags(args, &argsParsed); err != nil {
		return err
	}
	if argsParsed.Debug {
		logger.SetLevel(logging.DEBUG)
	}

	cfg, _ := parol6.LoadConfig(argsParsed.Config, logger)
	if argsParsed.Port != "" {
		cfg.Port = argsParsed.Port
	}

	opts := []parol6.Option{parol6.WithEventSink(parol6.SinkFunc(func(e parol6.Event) {
		logEvent(logger, e)
	}))}

	var l *link.Link
	if !argsParsed.Offline {
		if cfg.Port == "" {
			if cfg.Port, err = parol6.FirstPort(logger); err != nil {
				return errors.Wrap(err, "no port configured, pass -port or -offline")
			}
		}
		registry := parol6.NewLinkRegistry(nil, logger.Sublogger("registry"))
		if l, err = registry.Acquire(cfg.Port, cfg.Baudrate, cfg.AckTimeout()); err != nil {
			return errors.Wrapf(err, "failed to open %s", cfg.Port)
		}
		defer registry.Release(cfg.Port)
		opts = append(opts, parol6.WithTransmitter(l))
	}

	controller, err := parol6.NewController(cfg, logger.Sublogger("controller"), opts...)
	if err != nil {
		return err
	}
	if l != nil {
		l.SetHandler(controller.HandleLine)
		defer l.SetHandler(nil)
	}
	controller.Start()
	return runConsole(ctx, controller, l != nil && argsParsed.ConfigureMotor, os.Stdin, os.Stdout)
}

func runConsole(ctx context.Context, c *parol6.Controller, configure bool, in io.Reader, out io.Writer) (err error) {
	ctx, cancel := context.WithCancel(ctx)
	defer func() {
		cancel()
		err = multierr.Combine(err, c.Close())
	}()

	if configure {
		for _, cmd := range []map[string]interface{}{
			{"command": "push_motor_settings"},
			{"command": "gripper", "action": "configure"},
		} {
			if _, err := c.DoCommand(ctx, cmd); err != nil {
				logger.Warnf("Startup %v failed: %v", cmd["command"], err)
			}
		}
	}

	lines := make(chan string)
	utils.PanicCapturingGo(func() {
		defer close(lines)
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
	})

	fmt.Fprintln(out, "PAROL6 console ready, type help for commands")
	for {
		select {
		case <-ctx.Done():
			return nil
		case line, ok := <-lines:
			if !ok {
				return nil
			}
			if quit := handleLine(ctx, c, line, out); quit {
				return nil
			}
		}
	}
}

func handleLine(ctx context.Context, c *parol6.Controller, line string, out io.Writer) bool {
	cmd, err := parseCommand(line)
	switch {
	case errors.Is(err, errQuit):
		return true
	case errors.Is(err, errHelp):
		fmt.Fprint(out, helpText)
		return false
	case errors.Is(err, errEmpty):
		return false
	case err != nil:
		fmt.Fprintf(out, "error: %v\n", err)
		return false
	}

	result, err := c.DoCommand(ctx, cmd)
	if err != nil {
		fmt.Fprintf(out, "error: %v\n", err)
		return false
	}
	if cmd["command"] == "status" {
		data, _ := json.MarshalIndent(result, "", "  ")
		fmt.Fprintln(out, string(data))
		return false
	}
	if speed, ok := result["speed"]; ok {
		fmt.Fprintf(out, "speed %.0f%%\n", speed)
	}
	return false
}

func logEvent(logger logging.Logger, e parol6.Event) {
	switch e.Kind {
	case parol6.EventOutOfReach, parol6.EventStalled, parol6.EventLinkError, parol6.EventChainFallback:
		logger.Warnf("%s: %v", e.Kind, e.Err)
	case parol6.EventMoveDone, parol6.EventHomed, parol6.EventToolChanged:
		logger.Infof("%s %s", e.Kind, e.Message)
	case parol6.EventSynced:
		logger.Infof("synced to %.2f deg", e.Joints.Degrees())
	case parol6.EventRejected:
		logger.Debugf("jog step rejected: %v", e.Err)
	case parol6.EventTelemetry:
		if e.Telemetry != nil {
			logger.Debugf("rx %s: %s", e.Telemetry.Kind, e.Telemetry.Raw)
		}
	case parol6.EventJointsUpdated:
	}
}
