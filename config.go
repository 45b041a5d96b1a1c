package parol6

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"go.viam.com/rdk/logging"
	"go.viam.com/rdk/utils"
	goutils "go.viam.com/utils"

	"parol6/kinematics"
	"parol6/link"
)

const (
	defaultTickPeriodMs  = 100
	defaultAckTimeoutMs  = 1000
	defaultSpeed         = 50.0
	defaultSpeedExponent = 2.0

	// MinSpeed and MaxSpeed bound the operator speed percentage.
	MinSpeed = 10.0
	MaxSpeed = 100.0
)

// Preset names known to the console.
const (
	PresetHome    = "home"
	PresetStandby = "standby"
	PresetSafety  = "safety"
)

// Config is the PAROL6 controller configuration, stored as JSON.
type Config struct {
	Port         string `json:"port,omitempty"`
	Baudrate     int    `json:"baudrate,omitempty"`
	AckTimeoutMs int    `json:"ack_timeout_ms,omitempty"`
	TickPeriodMs int    `json:"tick_period_ms,omitempty"`

	// Speed is the initial operator speed in percent.
	Speed         float64 `json:"speed,omitempty"`
	SpeedExponent float64 `json:"speed_exponent,omitempty"`

	// Description is a URDF or DH JSON file; empty selects the built-in PAROL6 table.
	Description string `json:"description,omitempty"`
	ActiveMask  []bool `json:"active_mask,omitempty"`
	FlipJoints  []int  `json:"flip_joints,omitempty"`

	Jog       JogConfig       `json:"jog"`
	Animation AnimationConfig `json:"animation"`
	Sync      SyncConfig      `json:"sync"`
	Workspace WorkspaceConfig `json:"workspace"`
	IK        IKConfig        `json:"ik"`

	Tools      []ToolConfig `json:"tools,omitempty"`
	ActiveTool string       `json:"active_tool,omitempty"`

	// Presets are joint vectors in degrees.
	Presets map[string][]float64 `json:"presets,omitempty"`

	Motors  []MotorSettings `json:"motors,omitempty"`
	Gripper GripperConfig   `json:"gripper"`
}

// JogConfig bounds a single jog tick.
type JogConfig struct {
	MaxLinearStepMM       float64 `json:"max_linear_step_mm,omitempty"`
	MaxAngularStepRad     float64 `json:"max_angular_step_rad,omitempty"`
	JointStepDeg          float64 `json:"joint_step_deg,omitempty"`
	ValidationToleranceMM float64 `json:"validation_tolerance_mm,omitempty"`
	MaxJointStepRad       float64 `json:"max_joint_step_rad,omitempty"`
	MaxConsecutiveRejects int     `json:"max_consecutive_rejects,omitempty"`
}

// AnimationConfig shapes point-to-point preset moves.
type AnimationConfig struct {
	MaxStepRad    float64 `json:"max_step_rad,omitempty"`
	SnapRad       float64 `json:"snap_rad,omitempty"`
	MaxStallTicks int     `json:"max_stall_ticks,omitempty"`
}

// SyncConfig controls adoption of measured joint positions.
type SyncConfig struct {
	CooldownMs   int     `json:"cooldown_ms,omitempty"`
	ThresholdDeg float64 `json:"threshold_deg,omitempty"`
}

// Range is a closed interval in millimetres.
type Range struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
}

func (r Range) isZero() bool { return r.Min == 0 && r.Max == 0 }

// WorkspaceConfig is the axis-aligned box the TCP may be jogged in, in millimetres.
type WorkspaceConfig struct {
	X Range `json:"x"`
	Y Range `json:"y"`
	Z Range `json:"z"`
}

// IKConfig mirrors kinematics.SolverParams.
type IKConfig struct {
	MaxIterations        int     `json:"max_iterations,omitempty"`
	PositionTolerance    float64 `json:"position_tolerance_m,omitempty"`
	OrientationTolerance float64 `json:"orientation_tolerance_rad,omitempty"`
	Damping              float64 `json:"damping,omitempty"`
	MaxIterationStep     float64 `json:"max_iteration_step_rad,omitempty"`
}

// ToolConfig is a tool offset in millimetres and roll/pitch/yaw degrees.
type ToolConfig struct {
	Name          string     `json:"name"`
	TranslationMM [3]float64 `json:"translation_mm"`
	RPYDeg        [3]float64 `json:"rpy_deg"`
}

// MotorSettings are the firmware option values for one motor, sent as OT commands.
type MotorSettings struct {
	Ramp    []int `json:"ramp,omitempty"`
	Current []int `json:"current,omitempty"`
	Homing  []int `json:"homing,omitempty"`
	Stall   []int `json:"stall,omitempty"`
}

// GripperConfig holds the gripper option values sent as OT,VGrip and OT,SGrip.
type GripperConfig struct {
	Vacuum []int `json:"vacuum,omitempty"`
	Servo  []int `json:"servo,omitempty"`
}

// DefaultPresets are the standard PAROL6 poses in degrees.
func DefaultPresets() map[string][]float64 {
	return map[string][]float64{
		PresetHome:    {0, 0, 0, 0, 0, 0},
		PresetStandby: {0, -90, 180, 0, 0, 180},
		PresetSafety:  {0, -135, 180, 0, 0, 180},
	}
}

// DefaultMotorSettings is the factory settings table for motors 1 to 6.
func DefaultMotorSettings() []MotorSettings {
	return []MotorSettings{
		{Ramp: []int{1500, 2500, 10000, 100000, 1400}, Current: []int{11, 11, 6}, Homing: []int{300000, 5000, 0}, Stall: []int{0, 11}},
		{Ramp: []int{1500, 2500, 20000, 200000, 1400}, Current: []int{12, 12, 6}, Homing: []int{200000, 10000, 0}, Stall: []int{0, 12}},
		{Ramp: []int{1500, 2500, 20000, 200000, 1400}, Current: []int{9, 9, 6}, Homing: []int{200000, 10000, 0}, Stall: []int{0, 9}},
		{Ramp: []int{1500, 2500, 10000, 100000, 1400}, Current: []int{9, 9, 6}, Homing: []int{300000, 5000, 0}, Stall: []int{0, 9}},
		{Ramp: []int{1500, 2500, 10000, 100000, 1400}, Current: []int{9, 9, 6}, Homing: []int{200000, 10000, 0}, Stall: []int{0, 9}},
		{Ramp: []int{1500, 2500, 20000, 200000, 1400}, Current: []int{5, 5, 6}, Homing: []int{200000, 10000, 0}, Stall: []int{0, 5}},
	}
}

// DefaultConfig returns a validated configuration with every default filled in.
func DefaultConfig() *Config {
	cfg := &Config{}
	// defaults always validate
	_ = cfg.Validate("")
	return cfg
}

// Validate fills defaults and checks ranges.
func (cfg *Config) Validate(path string) error {
	if cfg.Baudrate == 0 {
		cfg.Baudrate = link.DefaultBaudrate
	}
	if cfg.AckTimeoutMs == 0 {
		cfg.AckTimeoutMs = defaultAckTimeoutMs
	}
	if cfg.TickPeriodMs == 0 {
		cfg.TickPeriodMs = defaultTickPeriodMs
	}
	if cfg.Speed == 0 {
		cfg.Speed = defaultSpeed
	}
	cfg.Speed = ClampSpeed(cfg.Speed)
	if cfg.SpeedExponent == 0 {
		cfg.SpeedExponent = defaultSpeedExponent
	}
	if cfg.Baudrate < 0 || cfg.AckTimeoutMs < 0 || cfg.TickPeriodMs < 0 {
		return goutils.NewConfigValidationError(path, errors.New("baudrate, ack_timeout_ms and tick_period_ms must be positive"))
	}
	if cfg.SpeedExponent < 0 {
		return goutils.NewConfigValidationError(path, errors.Errorf("speed_exponent must be positive, got %.2f", cfg.SpeedExponent))
	}

	jog := &cfg.Jog
	setDefault(&jog.MaxLinearStepMM, 2.0)
	setDefault(&jog.MaxAngularStepRad, 0.02)
	setDefault(&jog.JointStepDeg, 2.0)
	setDefault(&jog.ValidationToleranceMM, 1.0)
	setDefault(&jog.MaxJointStepRad, 0.1)
	if jog.MaxConsecutiveRejects == 0 {
		jog.MaxConsecutiveRejects = 10
	}

	anim := &cfg.Animation
	setDefault(&anim.MaxStepRad, 0.05)
	setDefault(&anim.SnapRad, 1e-3)
	if anim.MaxStallTicks == 0 {
		anim.MaxStallTicks = 20
	}

	if cfg.Sync.CooldownMs == 0 {
		cfg.Sync.CooldownMs = 1000
	}
	setDefault(&cfg.Sync.ThresholdDeg, 0.5)

	ws := &cfg.Workspace
	if ws.X.isZero() {
		ws.X = Range{Min: -500, Max: 500}
	}
	if ws.Y.isZero() {
		ws.Y = Range{Min: -500, Max: 500}
	}
	if ws.Z.isZero() {
		ws.Z = Range{Min: 0, Max: 600}
	}
	for name, r := range map[string]Range{"x": ws.X, "y": ws.Y, "z": ws.Z} {
		if r.Min >= r.Max {
			return goutils.NewConfigValidationError(path, errors.Errorf("workspace.%s min %.1f must be below max %.1f", name, r.Min, r.Max))
		}
	}

	def := kinematics.DefaultSolverParams()
	ik := &cfg.IK
	if ik.MaxIterations == 0 {
		ik.MaxIterations = def.MaxIterations
	}
	setDefault(&ik.PositionTolerance, def.PositionTolerance)
	setDefault(&ik.OrientationTolerance, def.OrientationTolerance)
	setDefault(&ik.Damping, def.Damping)
	setDefault(&ik.MaxIterationStep, def.MaxIterationStep)

	seen := make(map[string]bool, len(cfg.Tools))
	for _, t := range cfg.Tools {
		if t.Name == "" {
			return goutils.NewConfigValidationFieldRequiredError(path, "tools.name")
		}
		if seen[t.Name] {
			return goutils.NewConfigValidationError(path, errors.Errorf("tool %q is defined twice", t.Name))
		}
		seen[t.Name] = true
	}
	if cfg.ActiveTool != "" && !seen[cfg.ActiveTool] && !(len(cfg.Tools) == 0 && cfg.ActiveTool == kinematics.FlangeTool) {
		return goutils.NewConfigValidationError(path, errors.Errorf("active_tool %q is not among the configured tools", cfg.ActiveTool))
	}

	if cfg.Presets == nil {
		cfg.Presets = DefaultPresets()
	}
	for name, preset := range DefaultPresets() {
		if _, ok := cfg.Presets[name]; !ok {
			cfg.Presets[name] = preset
		}
	}
	if len(cfg.Motors) == 0 {
		cfg.Motors = DefaultMotorSettings()
	}
	if cfg.Gripper.Vacuum == nil {
		cfg.Gripper.Vacuum = []int{50, 10}
	}
	if cfg.Gripper.Servo == nil {
		cfg.Gripper.Servo = []int{0, 50, 80}
	}
	return nil
}

func setDefault(v *float64, def float64) {
	if *v == 0 {
		*v = def
	}
}

// ClampSpeed bounds an operator speed percentage to [MinSpeed, MaxSpeed].
func ClampSpeed(p float64) float64 {
	if p < MinSpeed {
		return MinSpeed
	}
	if p > MaxSpeed {
		return MaxSpeed
	}
	return p
}

// TickPeriod is the control loop period.
func (cfg *Config) TickPeriod() time.Duration {
	return time.Duration(cfg.TickPeriodMs) * time.Millisecond
}

// AckTimeout bounds acknowledged sends.
func (cfg *Config) AckTimeout() time.Duration {
	return time.Duration(cfg.AckTimeoutMs) * time.Millisecond
}

// SyncCooldown is the quiet time after motion before feedback is adopted.
func (cfg *Config) SyncCooldown() time.Duration {
	return time.Duration(cfg.Sync.CooldownMs) * time.Millisecond
}

// SolverParams converts the ik block.
func (cfg *Config) SolverParams() kinematics.SolverParams {
	return kinematics.SolverParams{
		MaxIterations:        cfg.IK.MaxIterations,
		PositionTolerance:    cfg.IK.PositionTolerance,
		OrientationTolerance: cfg.IK.OrientationTolerance,
		Damping:              cfg.IK.Damping,
		MaxIterationStep:     cfg.IK.MaxIterationStep,
	}
}

// ToolRegistry builds the tool registry and activates the configured tool.
func (cfg *Config) ToolRegistry() (*kinematics.ToolRegistry, error) {
	tools := make([]kinematics.Tool, 0, len(cfg.Tools))
	for _, t := range cfg.Tools {
		tools = append(tools, kinematics.Tool{
			Name: t.Name,
			Translation: r3.Vector{
				X: t.TranslationMM[0] / 1000,
				Y: t.TranslationMM[1] / 1000,
				Z: t.TranslationMM[2] / 1000,
			},
			Rotation: kinematics.RPY(utils.DegToRad(t.RPYDeg[0]), utils.DegToRad(t.RPYDeg[1]), utils.DegToRad(t.RPYDeg[2])),
		})
	}
	reg, err := kinematics.NewToolRegistry(tools...)
	if err != nil {
		return nil, err
	}
	if cfg.ActiveTool != "" {
		if err := reg.SetActive(cfg.ActiveTool); err != nil {
			return nil, err
		}
	}
	return reg, nil
}

// Engine loads the chain description and builds the kinematics engine. The engine is never
// nil: when the description cannot be loaded it runs on the mock chain and the load error is
// returned alongside it.
func (cfg *Config) Engine(opts ...kinematics.EngineOption) (*kinematics.Engine, error) {
	tools, err := cfg.ToolRegistry()
	if err != nil {
		return nil, err
	}
	chain, loadErr := kinematics.LoadChain(cfg.Description, cfg.ActiveMask, cfg.FlipJoints)
	return kinematics.NewEngine(chain, tools, cfg.SolverParams(), opts...), loadErr
}

// PresetNames lists the configured presets in order.
func (cfg *Config) PresetNames() []string {
	names := make([]string, 0, len(cfg.Presets))
	for name := range cfg.Presets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// LoadConfig reads and validates a config file, falling back to defaults when the file is
// missing or invalid. The second result reports whether the file was used.
// Relative paths resolve against PAROL6_DATA, or the working directory when unset.
func LoadConfig(path string, logger logging.Logger) (*Config, bool) {
	if path == "" {
		logger.Debug("No config file specified, using default configuration")
		return DefaultConfig(), false
	}
	if !filepath.IsAbs(path) {
		if dataDir := os.Getenv("PAROL6_DATA"); dataDir != "" {
			path = filepath.Join(dataDir, path)
		}
	}

	cfg, err := ReadConfig(path)
	if err != nil {
		logger.Warnf("Failed to load config from %s: %v, using default configuration", path, err)
		return DefaultConfig(), false
	}
	logger.Infof("Loaded config from %s", path)
	return cfg, true
}

// ReadConfig reads and validates a config file.
func ReadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read config file")
	}
	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, errors.Wrap(err, "failed to parse config JSON")
	}
	if err := cfg.Validate(path); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// SaveConfig writes cfg as indented JSON.
func SaveConfig(path string, cfg *Config) error {
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return errors.Wrap(err, "failed to marshal config")
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return errors.Wrap(err, "failed to write config file")
	}
	return nil
}
