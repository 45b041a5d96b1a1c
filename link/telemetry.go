package link

import (
	"math"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// Kind classifies an inbound line.
type Kind int

const (
	KindUnknown Kind = iota
	KindAck
	KindJointFeedback
	KindAlarm
	KindPeripheral
	KindPressure
)

func (k Kind) String() string {
	switch k {
	case KindAck:
		return "ack"
	case KindJointFeedback:
		return "joint_feedback"
	case KindAlarm:
		return "alarm"
	case KindPeripheral:
		return "peripheral"
	case KindPressure:
		return "pressure"
	default:
		return "unknown"
	}
}

const (
	jointFeedbackPrefix = "JP_"
	errorPrefix         = "ERR_"
	alarmPrefix         = "ALARM_"
	pressurePrefix      = "P:"
)

// Telemetry is one classified inbound line. Only the fields for its Kind are set.
type Telemetry struct {
	Kind Kind
	Raw  string

	// Joints holds measured joint angles in degrees.
	Joints []float64

	Code    string
	Message string

	// Pressure is in kPa.
	Pressure float64

	Peripheral string
}

var peripheralTokens = map[string]bool{
	VacuumOn:  true,
	VacuumOff: true,
	ValveOn:   true,
	ValveOff:  true,
	VGripOn:   true,
	VGripOff:  true,
}

// Classify sorts a cleaned line into a telemetry kind. It never fails; anything it cannot
// parse is KindUnknown.
func Classify(line string) Telemetry {
	t := Telemetry{Kind: KindUnknown, Raw: line}
	switch {
	case line == AckToken:
		t.Kind = KindAck
	case strings.HasPrefix(line, jointFeedbackPrefix):
		joints, err := ParseJointFeedback(line)
		if err != nil {
			return t
		}
		t.Kind, t.Joints = KindJointFeedback, joints
	case strings.HasPrefix(line, errorPrefix):
		t.Kind = KindAlarm
		t.Code, t.Message = splitAlarm(strings.TrimPrefix(line, errorPrefix))
	case strings.HasPrefix(line, alarmPrefix):
		t.Kind = KindAlarm
		t.Code, t.Message = splitAlarm(strings.TrimPrefix(line, alarmPrefix))
	case peripheralTokens[line]:
		t.Kind, t.Peripheral = KindPeripheral, line
	default:
		if p, err := ParsePressure(line); err == nil {
			t.Kind, t.Pressure = KindPressure, p
		}
	}
	return t
}

func splitAlarm(rest string) (string, string) {
	code, msg, _ := strings.Cut(rest, " ")
	return code, strings.TrimSpace(msg)
}

// ParseJointFeedback decodes JP_a1,...,an into degrees.
func ParseJointFeedback(line string) ([]float64, error) {
	body, ok := strings.CutPrefix(line, jointFeedbackPrefix)
	if !ok {
		return nil, errors.Errorf("joint feedback must start with %s: %q", jointFeedbackPrefix, line)
	}
	if body == "" {
		return nil, errors.Errorf("joint feedback has no values: %q", line)
	}
	fields := strings.Split(body, ",")
	out := make([]float64, len(fields))
	for i, f := range fields {
		v, err := parseFinite(f)
		if err != nil {
			return nil, errors.Wrapf(err, "joint %d of %q", i+1, line)
		}
		out[i] = v
	}
	return out, nil
}

// ParsePressure decodes a bare float or P:<float> pressure reading.
func ParsePressure(line string) (float64, error) {
	return parseFinite(strings.TrimPrefix(line, pressurePrefix))
}

func parseFinite(s string) (float64, error) {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0, errors.Wrapf(err, "invalid number %q", s)
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, errors.Errorf("non-finite number %q", s)
	}
	return v, nil
}
