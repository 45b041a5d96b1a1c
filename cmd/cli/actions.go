package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"time"

	"github.com/golang/geo/r3"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/pkg/errors"
	"github.com/urfave/cli/v2"
	"go.viam.com/rdk/utils"

	"parol6"
	"parol6/kinematics"
	"parol6/link"
)

func loadConfig(c *cli.Context) *parol6.Config {
	cfg, _ := parol6.LoadConfig(c.String(flagConfig), logger)
	return cfg
}

// PortsAction lists serial ports.
func PortsAction(c *cli.Context) error {
	var (
		ports []parol6.PortInfo
		err   error
	)
	if c.Bool(flagAll) {
		ports, err = parol6.ListPorts()
	} else {
		ports, err = parol6.DiscoverPorts(logger)
	}
	if err != nil {
		return err
	}
	if len(ports) == 0 {
		fmt.Fprintln(c.App.Writer, "no serial ports found")
		return nil
	}

	t := table.NewWriter()
	t.AppendHeader(table.Row{"Port", "Name", "USB", "VID:PID", "Serial"})
	for _, p := range ports {
		id := ""
		if p.IsUSB {
			id = p.VID + ":" + p.PID
		}
		t.AppendRow(table.Row{p.Name, p.Suffix, p.IsUSB, id, p.SerialNumber})
	}
	fmt.Fprintln(c.App.Writer, t.Render())
	return nil
}

// withLink opens the port named by the flags, or the config, or the first candidate.
func withLink(c *cli.Context, fn func(ctx context.Context, l *link.Link, cfg *parol6.Config) error) error {
	cfg := loadConfig(c)
	port := c.String(flagPort)
	if port == "" {
		port = cfg.Port
	}
	if port == "" {
		var err error
		if port, err = parol6.FirstPort(logger); err != nil {
			return err
		}
	}
	baud := cfg.Baudrate
	if c.IsSet(flagBaud) {
		baud = c.Int(flagBaud)
	}

	registry := parol6.NewLinkRegistry(nil, logger)
	l, err := registry.Acquire(port, baud, cfg.AckTimeout())
	if err != nil {
		return err
	}
	defer registry.Release(port)

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt)
	defer stop()
	return fn(ctx, l, cfg)
}

// SendAction writes one command line.
func SendAction(c *cli.Context) error {
	if c.NArg() == 0 {
		return errors.New("send needs a command")
	}
	msg := c.Args().First()
	return withLink(c, func(ctx context.Context, l *link.Link, _ *parol6.Config) error {
		l.SetHandler(func(line string) {
			fmt.Fprintf(c.App.Writer, "< %s\n", line)
		})
		start := time.Now()
		if err := l.Send(ctx, msg, c.Bool(flagAck)); err != nil {
			return err
		}
		if c.Bool(flagAck) {
			fmt.Fprintf(c.App.Writer, "acknowledged in %s\n", time.Since(start).Round(time.Millisecond))
		}
		return nil
	})
}

// MonitorAction prints every telemetry line until interrupted.
func MonitorAction(c *cli.Context) error {
	return withLink(c, func(ctx context.Context, l *link.Link, _ *parol6.Config) error {
		l.SetHandler(func(line string) {
			tele := link.Classify(line)
			switch tele.Kind {
			case link.KindJointFeedback:
				fmt.Fprintf(c.App.Writer, "%-14s %.2f\n", tele.Kind, tele.Joints)
			case link.KindAlarm:
				fmt.Fprintf(c.App.Writer, "%-14s %s %s\n", tele.Kind, tele.Code, tele.Message)
			case link.KindPressure:
				fmt.Fprintf(c.App.Writer, "%-14s %.1f kPa\n", tele.Kind, tele.Pressure)
			default:
				fmt.Fprintf(c.App.Writer, "%-14s %s\n", tele.Kind, tele.Raw)
			}
		})
		if d := c.Duration(flagDuration); d > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, d)
			defer cancel()
		}
		<-ctx.Done()
		return nil
	})
}

// ChainAction prints the link table of the configured or given description.
func ChainAction(c *cli.Context) error {
	cfg := loadConfig(c)
	path := cfg.Description
	if c.IsSet(flagDescription) {
		path = c.String(flagDescription)
	}
	chain, err := kinematics.LoadChain(path, cfg.ActiveMask, cfg.FlipJoints)
	if err != nil {
		return err
	}
	fmt.Fprintln(c.App.Writer, chain.String())
	return nil
}

func parseArgs(c *cli.Context, n int) ([]float64, error) {
	if c.NArg() != n {
		return nil, errors.Errorf("expected %d values, got %d", n, c.NArg())
	}
	out := make([]float64, n)
	for i, a := range c.Args().Slice() {
		v, err := strconv.ParseFloat(a, 64)
		if err != nil {
			return nil, errors.Wrapf(err, "argument %d", i+1)
		}
		out[i] = v
	}
	return out, nil
}

func poseRow(name string, p kinematics.Pose) table.Row {
	roll, pitch, yaw := p.EulerZYX()
	ov := p.Spatial().Orientation().OrientationVectorDegrees()
	return table.Row{
		name,
		fmt.Sprintf("%.2f", p.Position.X*1000),
		fmt.Sprintf("%.2f", p.Position.Y*1000),
		fmt.Sprintf("%.2f", p.Position.Z*1000),
		fmt.Sprintf("%.2f %.2f %.2f", utils.RadToDeg(roll), utils.RadToDeg(pitch), utils.RadToDeg(yaw)),
		fmt.Sprintf("(%.3f %.3f %.3f) %.2f", ov.OX, ov.OY, ov.OZ, ov.Theta),
	}
}

var poseHeader = table.Row{"Tool", "X (mm)", "Y (mm)", "Z (mm)", "RPY (deg)", "Orientation vector"}

// FKAction prints the TCP pose of every tool, or one, for the given joints.
func FKAction(c *cli.Context) error {
	cfg := loadConfig(c)
	engine, err := cfg.Engine()
	if err != nil {
		return err
	}
	deg, err := parseArgs(c, engine.NumJoints())
	if err != nil {
		return err
	}
	q := kinematics.FromDegrees(deg)
	if i := engine.Chain().WithinLimits(q); i >= 0 {
		logger.Warnf("joint %d is outside its limits", i+1)
	}

	names := engine.Tools().Names()
	if c.IsSet(flagTool) {
		names = []string{c.String(flagTool)}
	}
	t := table.NewWriter()
	t.AppendHeader(poseHeader)
	for _, name := range names {
		if err := engine.Tools().SetActive(name); err != nil {
			return err
		}
		pose, err := engine.Forward(q)
		if err != nil {
			return err
		}
		t.AppendRow(poseRow(name, pose))
	}
	fmt.Fprintln(c.App.Writer, t.Render())
	return nil
}

// IKAction solves a TCP pose from the standby preset and prints the joints.
func IKAction(c *cli.Context) error {
	cfg := loadConfig(c)
	engine, err := cfg.Engine()
	if err != nil {
		return err
	}
	v, err := parseArgs(c, 6)
	if err != nil {
		return err
	}
	target := kinematics.NewPose(
		r3.Vector{X: v[0] / 1000, Y: v[1] / 1000, Z: v[2] / 1000},
		utils.DegToRad(v[3]), utils.DegToRad(v[4]), utils.DegToRad(v[5]),
	)
	seed := kinematics.FromDegrees(cfg.Presets[parol6.PresetStandby])
	q, err := engine.Inverse(target, kinematics.OrientationAll, seed)
	if err != nil {
		return err
	}
	got, err := engine.Forward(q)
	if err != nil {
		return err
	}

	t := table.NewWriter()
	t.AppendHeader(table.Row{"Joint", "Degrees"})
	for i, d := range q.Degrees() {
		t.AppendRow(table.Row{fmt.Sprintf("J%d", i+1), fmt.Sprintf("%.3f", d)})
	}
	t.AppendFooter(table.Row{"error (mm)", fmt.Sprintf("%.4f", got.Position.Sub(target.Position).Norm()*1000)})
	fmt.Fprintln(c.App.Writer, t.Render())
	return nil
}

// MotorsAction prints the motor settings commands and optionally pushes them.
func MotorsAction(c *cli.Context) error {
	cfg := loadConfig(c)
	cmds, err := parol6.MotorCommands(cfg.Motors)
	if err != nil {
		return err
	}
	for _, cmd := range cmds {
		fmt.Fprintln(c.App.Writer, cmd)
	}
	if !c.Bool(flagPush) {
		return nil
	}
	return withLink(c, func(ctx context.Context, l *link.Link, cfg *parol6.Config) error {
		return parol6.ConfigureMotors(ctx, l, cfg.Motors, logger)
	})
}

// InitConfigAction writes the default configuration to a file.
func InitConfigAction(c *cli.Context) error {
	path := c.Args().First()
	if path == "" {
		return errors.New("init-config needs a path")
	}
	if _, err := os.Stat(path); err == nil {
		return errors.Errorf("%s already exists", path)
	}
	if err := parol6.SaveConfig(path, parol6.DefaultConfig()); err != nil {
		return err
	}
	fmt.Fprintf(c.App.Writer, "wrote %s\n", path)
	return nil
}
