package link

import (
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// Wire tokens understood by the PAROL6 firmware.
const (
	AckToken  = "OK"
	HomeToken = "HOME"

	VacuumOn  = "VAC_ON"
	VacuumOff = "VAC_OFF"
	ValveOn   = "VALVEON"
	ValveOff  = "VALVEOFF"
	VGripOn   = "VGripON"
	VGripOff  = "VGripOFF"
)

// MotorOption names the firmware's per-motor settings groups.
type MotorOption string

const (
	OptionRamp    MotorOption = "ramp"
	OptionCurrent MotorOption = "current"
	OptionHoming  MotorOption = "homing"
	OptionStall   MotorOption = "stall"
)

// GripperKind selects the gripper target of an OT command.
type GripperKind string

const (
	VacuumGripper GripperKind = "VGrip"
	ServoGripper  GripperKind = "SGrip"
)

func formatDeg(deg float64) string {
	return strconv.FormatFloat(deg, 'f', 2, 64)
}

// FormatJoint encodes a single joint target, index 1-based: J3_-12.50.
func FormatJoint(index int, deg float64) string {
	return "J" + strconv.Itoa(index) + "_" + formatDeg(deg)
}

// FormatJointStream encodes a full joint vector: J_0.00,-90.00,...
func FormatJointStream(deg []float64) string {
	parts := make([]string, len(deg))
	for i, d := range deg {
		parts[i] = formatDeg(d)
	}
	return "J_" + strings.Join(parts, ",")
}

// FormatMotorOption encodes a motor settings command: OT,current,J2,12,12,6.
func FormatMotorOption(option MotorOption, motor int, values []int) (string, error) {
	switch option {
	case OptionRamp, OptionCurrent, OptionHoming, OptionStall:
	default:
		return "", errors.Errorf("unknown motor option %q", option)
	}
	if motor < 1 {
		return "", errors.Errorf("motor number must be 1-based, got %d", motor)
	}
	if len(values) == 0 {
		return "", errors.Errorf("no values for %s on motor %d", option, motor)
	}
	parts := []string{"OT", string(option), "J" + strconv.Itoa(motor)}
	for _, v := range values {
		parts = append(parts, strconv.Itoa(v))
	}
	return strings.Join(parts, ","), nil
}

// FormatGripperOption encodes a gripper settings command: OT,VGrip,40,60.
func FormatGripperOption(kind GripperKind, values []int) (string, error) {
	if kind != VacuumGripper && kind != ServoGripper {
		return "", errors.Errorf("unknown gripper kind %q", kind)
	}
	parts := []string{"OT", string(kind)}
	for _, v := range values {
		parts = append(parts, strconv.Itoa(v))
	}
	return strings.Join(parts, ","), nil
}
