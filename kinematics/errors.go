package kinematics

import "github.com/pkg/errors"

var (
	// ErrNoConvergence means the solver hit its iteration cap before meeting tolerance.
	ErrNoConvergence = errors.New("inverse kinematics did not converge")
	// ErrJointCount means a vector length does not match the chain.
	ErrJointCount = errors.New("joint count mismatch")
	// ErrJointLimit means a joint value lies outside its limits.
	ErrJointLimit = errors.New("joint limit exceeded")
	// ErrUnknownTool means no tool is registered under the requested name.
	ErrUnknownTool = errors.New("unknown tool")
)
