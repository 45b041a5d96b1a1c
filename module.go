package parol6

import (
	"sync"

	"github.com/pkg/errors"
	"go.viam.com/rdk/components/arm"
	"go.viam.com/rdk/components/gripper"
	"go.viam.com/rdk/logging"
	"go.viam.com/rdk/resource"
)

var (
	// ArmModel drives the PAROL6 arm over its serial link.
	ArmModel = resource.NewModel("devrel", "arm", "parol6")
	// GripperModel exposes the end effector of a configured ArmModel arm.
	GripperModel = resource.NewModel("devrel", "parol6", "gripper")

	// one link per serial port, shared by every arm resource in the process
	sharedLinks     *LinkRegistry
	sharedLinksOnce sync.Once
)

func init() {
	resource.RegisterComponent(arm.API, ArmModel,
		resource.Registration[arm.Arm, *ArmConfig]{
			Constructor: newArm,
		},
	)
	resource.RegisterComponent(gripper.API, GripperModel,
		resource.Registration[gripper.Gripper, *GripperResourceConfig]{
			Constructor: newGripperResource,
		},
	)
}

func linkRegistry(logger logging.Logger) *LinkRegistry {
	sharedLinksOnce.Do(func() {
		sharedLinks = NewLinkRegistry(nil, logger.Sublogger("links"))
	})
	return sharedLinks
}

// ArmConfig is the arm resource's attributes, the controller configuration inline.
type ArmConfig struct {
	Config
}

// Validate ensures all parts of the config are valid.
func (cfg *ArmConfig) Validate(path string) ([]string, []string, error) {
	if err := cfg.Config.Validate(path); err != nil {
		return nil, nil, err
	}
	return nil, nil, nil
}

// GripperResourceConfig names the arm whose end effector the gripper drives and which
// effector that is.
type GripperResourceConfig struct {
	Arm string `json:"arm"`
	// Kind is "electric" (default), "vacuum" or "pneumatic".
	Kind string `json:"kind,omitempty"`
}

// Validate ensures all parts of the config are valid.
func (cfg *GripperResourceConfig) Validate(path string) ([]string, []string, error) {
	if cfg.Arm == "" {
		return nil, nil, resource.NewConfigValidationFieldRequiredError(path, "arm")
	}
	if _, ok := gripperActions[cfg.Kind]; cfg.Kind != "" && !ok {
		return nil, nil, resource.NewConfigValidationError(path, errors.Errorf("unknown gripper kind %q", cfg.Kind))
	}
	return []string{cfg.Arm}, nil, nil
}
