package parol6

import (
	"context"
	"sync"

	"github.com/pkg/errors"
	"go.viam.com/rdk/logging"

	"parol6/link"
)

// GripperState is the last known end effector state.
type GripperState struct {
	Vacuum         bool    `json:"vacuum"`
	Pneumatic      bool    `json:"pneumatic"`
	ElectricClosed bool    `json:"electric_closed"`
	Pressure       float64 `json:"pressure_kpa"`
	HasPressure    bool    `json:"has_pressure"`
}

// Gripper drives the pneumatic and electric grippers. Every command waits for the
// controller's acknowledgment; state changes only once the command is acknowledged or echoed.
type Gripper struct {
	tx     Transmitter
	cfg    GripperConfig
	logger logging.Logger

	// one command at a time
	cmdMu sync.Mutex

	mu    sync.RWMutex
	state GripperState
}

// NewGripper creates a gripper on tx. A nil tx tracks state without sending.
func NewGripper(tx Transmitter, cfg GripperConfig, logger logging.Logger) *Gripper {
	return &Gripper{tx: tx, cfg: cfg, logger: logger}
}

// State returns a snapshot.
func (g *Gripper) State() GripperState {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.state
}

// SetVacuum switches the suction pump.
func (g *Gripper) SetVacuum(ctx context.Context, on bool) error {
	return g.send(ctx, pick(on, link.VacuumOn, link.VacuumOff))
}

// SetPneumatic switches the pneumatic gripper.
func (g *Gripper) SetPneumatic(ctx context.Context, on bool) error {
	return g.send(ctx, pick(on, link.VGripOn, link.VGripOff))
}

// SetElectric closes or opens the electric gripper, which is driven through the valve output.
func (g *Gripper) SetElectric(ctx context.Context, closed bool) error {
	return g.send(ctx, pick(closed, link.ValveOn, link.ValveOff))
}

// Configure pushes the configured gripper option values.
func (g *Gripper) Configure(ctx context.Context) error {
	for _, opt := range []struct {
		kind   link.GripperKind
		values []int
	}{
		{link.VacuumGripper, g.cfg.Vacuum},
		{link.ServoGripper, g.cfg.Servo},
	} {
		if len(opt.values) == 0 {
			continue
		}
		cmd, err := link.FormatGripperOption(opt.kind, opt.values)
		if err != nil {
			return err
		}
		if err := g.transmit(ctx, cmd); err != nil {
			return errors.Wrapf(err, "failed to configure %s gripper", opt.kind)
		}
	}
	return nil
}

func pick(cond bool, yes, no string) string {
	if cond {
		return yes
	}
	return no
}

func (g *Gripper) send(ctx context.Context, token string) error {
	if err := g.transmit(ctx, token); err != nil {
		return errors.Wrapf(err, "gripper command %s", token)
	}
	g.apply(token)
	g.logger.Debugf("Gripper %s acknowledged", token)
	return nil
}

func (g *Gripper) transmit(ctx context.Context, cmd string) error {
	if g.tx == nil {
		return nil
	}
	g.cmdMu.Lock()
	defer g.cmdMu.Unlock()
	return g.tx.Send(ctx, cmd, true)
}

func (g *Gripper) apply(token string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	switch token {
	case link.VacuumOn:
		g.state.Vacuum = true
	case link.VacuumOff:
		g.state.Vacuum = false
	case link.VGripOn:
		g.state.Pneumatic = true
	case link.VGripOff:
		g.state.Pneumatic = false
	case link.ValveOn:
		g.state.ElectricClosed = true
	case link.ValveOff:
		g.state.ElectricClosed = false
	}
}

// Observe updates state from peripheral echoes and pressure readings.
func (g *Gripper) Observe(t link.Telemetry) {
	switch t.Kind {
	case link.KindPeripheral:
		g.apply(t.Peripheral)
	case link.KindPressure:
		g.mu.Lock()
		g.state.Pressure, g.state.HasPressure = t.Pressure, true
		g.mu.Unlock()
	}
}

// DoCommand handles {"action": "vacuum_on" | "vacuum_off" | "pneumatic_on" | "pneumatic_off" |
// "close" | "open" | "configure" | "state"}.
func (g *Gripper) DoCommand(ctx context.Context, cmd map[string]interface{}) (map[string]interface{}, error) {
	action, _ := cmd["action"].(string)
	var err error
	switch action {
	case "vacuum_on":
		err = g.SetVacuum(ctx, true)
	case "vacuum_off":
		err = g.SetVacuum(ctx, false)
	case "pneumatic_on":
		err = g.SetPneumatic(ctx, true)
	case "pneumatic_off":
		err = g.SetPneumatic(ctx, false)
	case "close":
		err = g.SetElectric(ctx, true)
	case "open":
		err = g.SetElectric(ctx, false)
	case "configure":
		err = g.Configure(ctx)
	case "state", "":
	default:
		return nil, errors.Errorf("unknown gripper action %q", action)
	}
	if err != nil {
		return nil, err
	}
	s := g.State()
	out := map[string]interface{}{
		"vacuum":          s.Vacuum,
		"pneumatic":       s.Pneumatic,
		"electric_closed": s.ElectricClosed,
	}
	if s.HasPressure {
		out["pressure_kpa"] = s.Pressure
	}
	return out, nil
}
