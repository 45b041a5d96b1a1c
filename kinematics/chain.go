package kinematics

import (
	"fmt"
	"math"

	"github.com/golang/geo/r3"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/pkg/errors"
	"go.viam.com/rdk/referenceframe"
	"go.viam.com/rdk/utils"
)

// MaxLinks is the largest chain a description may declare.
const MaxLinks = 12

// JointType describes how a link moves relative to its parent.
type JointType int

const (
	Fixed JointType = iota
	Revolute
	Prismatic
)

func (t JointType) String() string {
	switch t {
	case Revolute:
		return "revolute"
	case Prismatic:
		return "prismatic"
	default:
		return "fixed"
	}
}

// Link is one element of a serial chain: a fixed origin transform followed by the joint motion.
type Link struct {
	Name   string
	Type   JointType
	Origin Pose
	Axis   r3.Vector
	Limit  referenceframe.Limit
}

// DHParam is one row of a standard Denavit-Hartenberg table.
type DHParam struct {
	Name   string  `json:"name,omitempty"`
	D      float64 `json:"d"`
	A      float64 `json:"a"`
	Alpha  float64 `json:"alpha"`
	Offset float64 `json:"offset"`
}

// Chain is an immutable serial chain with an active-joint mask.
type Chain struct {
	name   string
	links  [MaxLinks]Link
	mask   [MaxLinks]bool
	count  int
	active int
	dh      []DHParam
	dhModel referenceframe.Model
	model   referenceframe.Model
	flip    []int
}

// ChainOption customises a chain at construction.
type ChainOption func(*Chain)

// WithDH attaches a DH table used as an independent forward check.
func WithDH(params []DHParam) ChainOption {
	return func(c *Chain) {
		c.dh = append([]DHParam(nil), params...)
	}
}

// WithFlipJoints sets the active indices negated to build the alternate IK seed.
func WithFlipJoints(flip []int) ChainOption {
	return func(c *Chain) {
		c.flip = append([]int(nil), flip...)
	}
}

// NewChain validates links and mask and builds a chain. A nil mask marks every movable link active.
func NewChain(name string, links []Link, mask []bool, opts ...ChainOption) (*Chain, error) {
	if len(links) > MaxLinks {
		return nil, errors.Errorf("chain %q has %d links, at most %d supported", name, len(links), MaxLinks)
	}
	if mask != nil && len(mask) != len(links) {
		return nil, errors.Wrapf(ErrJointCount, "mask has %d entries for %d links", len(mask), len(links))
	}

	c := &Chain{name: name, count: len(links)}
	for i, l := range links {
		if l.Type != Fixed {
			if l.Axis.Norm() == 0 {
				return nil, errors.Errorf("link %q has a zero joint axis", l.Name)
			}
			l.Axis = l.Axis.Normalize()
			if l.Limit.Min > l.Limit.Max {
				return nil, errors.Errorf("link %q has min limit %.4f above max %.4f", l.Name, l.Limit.Min, l.Limit.Max)
			}
		}
		active := l.Type != Fixed
		if mask != nil {
			if mask[i] && l.Type == Fixed {
				return nil, errors.Errorf("link %q is fixed but marked active", l.Name)
			}
			active = mask[i]
		}
		c.links[i] = l
		c.mask[i] = active
		if active {
			c.active++
		}
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.dh != nil {
		if len(c.dh) != c.active {
			return nil, errors.Wrapf(ErrJointCount, "DH table has %d rows for %d active joints", len(c.dh), c.active)
		}
		model, err := dhModel(name, c.dh)
		if err != nil {
			return nil, errors.Wrap(err, "invalid DH table")
		}
		c.dhModel = model
	}
	for _, i := range c.flip {
		if i < 0 || i >= c.active {
			return nil, errors.Errorf("flip joint index %d out of range for %d active joints", i, c.active)
		}
	}
	if c.count > 0 {
		model, err := svaModel(name, c.links[:c.count], c.mask[:c.count])
		if err != nil {
			return nil, errors.Wrapf(err, "chain %q has no valid kinematic model", name)
		}
		c.model = model
	}
	return c, nil
}

// MockChain is the zero-joint stand-in used when no description can be loaded.
// Its forward kinematics is the identity and its inverse is the empty vector.
func MockChain() *Chain {
	return &Chain{name: "mock"}
}

// Name returns the chain name.
func (c *Chain) Name() string { return c.name }

// IsMock reports whether this is the degenerate fallback chain.
func (c *Chain) IsMock() bool { return c.count == 0 }

// NumLinks is the full link count.
func (c *Chain) NumLinks() int { return c.count }

// NumActive is the JointVector length for this chain.
func (c *Chain) NumActive() int { return c.active }

// Mask returns a copy of the active mask.
func (c *Chain) Mask() []bool {
	return append([]bool(nil), c.mask[:c.count]...)
}

// Links returns a copy of the links.
func (c *Chain) Links() []Link {
	return append([]Link(nil), c.links[:c.count]...)
}

// FlipJoints returns the alternate-seed indices.
func (c *Chain) FlipJoints() []int {
	return append([]int(nil), c.flip...)
}

// DH returns the DH table, nil when the chain has none.
func (c *Chain) DH() []DHParam {
	return append([]DHParam(nil), c.dh...)
}

// Limits returns the limits of the active joints in order.
func (c *Chain) Limits() []referenceframe.Limit {
	limits := make([]referenceframe.Limit, 0, c.active)
	for i := 0; i < c.count; i++ {
		if c.mask[i] {
			limits = append(limits, c.links[i].Limit)
		}
	}
	return limits
}

// Expand maps an active vector onto the full link count, inactive entries zero.
func (c *Chain) Expand(active JointVector) ([]float64, error) {
	if len(active) != c.active {
		return nil, errors.Wrapf(ErrJointCount, "got %d values for %d active joints", len(active), c.active)
	}
	full := make([]float64, c.count)
	j := 0
	for i := 0; i < c.count; i++ {
		if c.mask[i] {
			full[i] = active[j]
			j++
		}
	}
	return full, nil
}

// Compress is the inverse of Expand.
func (c *Chain) Compress(full []float64) (JointVector, error) {
	if len(full) != c.count {
		return nil, errors.Wrapf(ErrJointCount, "got %d values for %d links", len(full), c.count)
	}
	active := make(JointVector, 0, c.active)
	for i := 0; i < c.count; i++ {
		if c.mask[i] {
			active = append(active, full[i])
		}
	}
	return active, nil
}

// WithinLimits reports the first active joint outside its limits, or -1.
func (c *Chain) WithinLimits(active JointVector) int {
	j := 0
	for i := 0; i < c.count; i++ {
		if !c.mask[i] {
			continue
		}
		if j >= len(active) {
			return j
		}
		l := c.links[i].Limit
		if active[j] < l.Min-1e-9 || active[j] > l.Max+1e-9 {
			return j
		}
		j++
	}
	return -1
}

// jointFrame is a joint's world origin and axis for the geometric Jacobian.
type jointFrame struct {
	origin r3.Vector
	axis   r3.Vector
	typ    JointType
}

// Forward computes the flange pose for a full-length vector.
func (c *Chain) Forward(full []float64) (Pose, error) {
	if len(full) != c.count {
		return Pose{}, errors.Wrapf(ErrJointCount, "got %d values for %d links", len(full), c.count)
	}
	pose, _ := c.forwardFrames(full)
	return pose, nil
}

func (c *Chain) forwardFrames(full []float64) (Pose, []jointFrame) {
	frames := make([]jointFrame, 0, c.active)
	t := IdentityPose()
	for i := 0; i < c.count; i++ {
		l := &c.links[i]
		t = t.Compose(l.Origin)
		if c.mask[i] {
			frames = append(frames, jointFrame{origin: t.Position, axis: t.Rotation.Apply(l.Axis), typ: l.Type})
		}
		switch l.Type {
		case Revolute:
			if full[i] != 0 {
				t.Rotation = t.Rotation.Mul(AxisAngle(l.Axis, full[i]))
			}
		case Prismatic:
			t.Position = t.Position.Add(t.Rotation.Apply(l.Axis.Mul(full[i])))
		case Fixed:
		}
	}
	return t, frames
}

// DHForward evaluates the chain's DH table through the rdk model built from it, independent of
// the link model.
func (c *Chain) DHForward(active JointVector) (Pose, error) {
	if c.dhModel == nil {
		return Pose{}, errors.New("chain has no DH table")
	}
	if len(active) != len(c.dh) {
		return Pose{}, errors.Wrapf(ErrJointCount, "got %d values for %d DH rows", len(active), len(c.dh))
	}
	inputs := make([]referenceframe.Input, len(active))
	for i, q := range active {
		inputs[i] = q + c.dh[i].Offset
	}
	pose, err := referenceframe.ComputeOOBPosition(c.dhModel, inputs)
	if err != nil {
		return Pose{}, errors.Wrap(err, "DH forward kinematics failed")
	}
	return FromSpatial(pose), nil
}

// Model is the rdk kinematic model of the links, nil for the mock chain. Its inputs are the
// active joints in radians (metres for prismatic joints, which rdk takes in millimetres).
func (c *Chain) Model() referenceframe.Model { return c.model }

// String renders the link table.
func (c *Chain) String() string {
	t := table.NewWriter()
	t.SetTitle(fmt.Sprintf("%s (%d links, %d active)", c.name, c.count, c.active))
	t.AppendHeader(table.Row{"#", "Link", "Type", "Active", "Origin (m)", "Axis", "Min (deg)", "Max (deg)"})
	for i := 0; i < c.count; i++ {
		l := c.links[i]
		lo, hi := "-", "-"
		if l.Type == Revolute {
			lo = fmt.Sprintf("%.2f", utils.RadToDeg(l.Limit.Min))
			hi = fmt.Sprintf("%.2f", utils.RadToDeg(l.Limit.Max))
		} else if l.Type == Prismatic {
			lo = fmt.Sprintf("%.4f m", l.Limit.Min)
			hi = fmt.Sprintf("%.4f m", l.Limit.Max)
		}
		t.AppendRow(table.Row{
			i, l.Name, l.Type, c.mask[i],
			fmt.Sprintf("%.4f %.4f %.4f", l.Origin.Position.X, l.Origin.Position.Y, l.Origin.Position.Z),
			fmt.Sprintf("%.0f %.0f %.0f", l.Axis.X, l.Axis.Y, l.Axis.Z),
			lo, hi,
		})
	}
	return t.Render()
}

// continuousLimit is used for joints declared without bounds.
var continuousLimit = referenceframe.Limit{Min: -math.Pi, Max: math.Pi}
