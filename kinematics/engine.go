package kinematics

import (
	"github.com/pkg/errors"
	"go.uber.org/multierr"
)

// SolveFunc solves a flange target for a full-length seed, returning a full-length vector.
type SolveFunc func(c *Chain, target Pose, mode OrientationMode, seed []float64) ([]float64, error)

// EngineOption customises an engine.
type EngineOption func(*Engine)

// WithSolver replaces the damped least squares solver.
func WithSolver(solve SolveFunc) EngineOption {
	return func(e *Engine) {
		e.solve = solve
	}
}

// Engine maps between active joint vectors and TCP poses for one chain and tool registry.
type Engine struct {
	chain *Chain
	tools *ToolRegistry
	solve SolveFunc
}

// NewEngine builds an engine. A nil chain is replaced with the mock chain.
func NewEngine(chain *Chain, tools *ToolRegistry, params SolverParams, opts ...EngineOption) *Engine {
	if chain == nil {
		chain = MockChain()
	}
	if tools == nil {
		tools, _ = NewToolRegistry()
	}
	e := &Engine{
		chain: chain,
		tools: tools,
		solve: func(c *Chain, target Pose, mode OrientationMode, seed []float64) ([]float64, error) {
			return SolveChain(c, target, mode, seed, params)
		},
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Chain returns the chain.
func (e *Engine) Chain() *Chain { return e.chain }

// Tools returns the tool registry.
func (e *Engine) Tools() *ToolRegistry { return e.tools }

// NumJoints is the active joint count.
func (e *Engine) NumJoints() int { return e.chain.NumActive() }

// Flange is the forward chain: the flange pose for an active vector.
func (e *Engine) Flange(q JointVector) (Pose, error) {
	full, err := e.chain.Expand(q)
	if err != nil {
		return Pose{}, err
	}
	return e.chain.Forward(full)
}

// Forward is the TCP pose for an active vector under the active tool.
func (e *Engine) Forward(q JointVector) (Pose, error) {
	flange, err := e.Flange(q)
	if err != nil {
		return Pose{}, err
	}
	return e.tools.Active().Apply(flange), nil
}

// SolveFlange solves a flange target seeded with an active vector, expanding the seed to the
// full link count for the solver and compressing its answer back.
func (e *Engine) SolveFlange(target Pose, mode OrientationMode, seed JointVector) (JointVector, error) {
	full, err := e.chain.Expand(seed)
	if err != nil {
		return nil, err
	}
	sol, err := e.solve(e.chain, target, mode, full)
	if err != nil {
		return nil, err
	}
	return e.chain.Compress(sol)
}

// Inverse solves a TCP target with redundancy resolution. It solves once from prev and once
// from prev with the chain's flip joints negated, and returns whichever solution has the
// smaller wrapped distance to prev. Ties go to the solution seeded with prev.
func (e *Engine) Inverse(target Pose, mode OrientationMode, prev JointVector) (JointVector, error) {
	if len(prev) != e.chain.NumActive() {
		return nil, errors.Wrapf(ErrJointCount, "got %d values for %d active joints", len(prev), e.chain.NumActive())
	}
	flangeTarget := e.tools.Active().FlangeTarget(target)

	a, errA := e.SolveFlange(flangeTarget, mode, prev)
	b, errB := e.SolveFlange(flangeTarget, mode, AlternateSeed(prev, e.chain.FlipJoints()))
	return Resolve(prev, a, errA, b, errB)
}

// Resolve picks between two candidate solutions for the same target.
func Resolve(prev, a JointVector, errA error, b JointVector, errB error) (JointVector, error) {
	switch {
	case errA != nil && errB != nil:
		return nil, errors.Wrap(multierr.Combine(errA, errB), "no candidate solution")
	case errA != nil:
		return b.Wrapped(), nil
	case errB != nil:
		return a.Wrapped(), nil
	}
	if b.Distance(prev) < a.Distance(prev) {
		return b.Wrapped(), nil
	}
	return a.Wrapped(), nil
}
