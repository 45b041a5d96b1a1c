package kinematics

import (
	"github.com/pkg/errors"
	"go.viam.com/rdk/referenceframe"
	"go.viam.com/rdk/spatialmath"
	"go.viam.com/rdk/utils"
)

// svaModel builds an rdk model of the links: every link contributes a static frame for its
// origin and, when active, a joint frame after it. Inactive movable links stay at zero.
// Lengths are converted to millimetres.
func svaModel(name string, links []Link, mask []bool) (referenceframe.Model, error) {
	cfg := &referenceframe.ModelConfigJSON{Name: name, KinParamType: "SVA"}
	parent := referenceframe.World
	for i, l := range links {
		orientation, err := spatialmath.NewOrientationConfig(Pose{Rotation: l.Origin.Rotation}.Spatial().Orientation().AxisAngles())
		if err != nil {
			return nil, errors.Wrapf(err, "link %q", l.Name)
		}
		cfg.Links = append(cfg.Links, referenceframe.LinkConfig{
			ID:          l.Name,
			Translation: l.Origin.Position.Mul(1000),
			Orientation: orientation,
			Parent:      parent,
		})
		parent = l.Name
		if !mask[i] {
			continue
		}

		joint := referenceframe.JointConfig{
			ID:     l.Name + "_joint",
			Parent: parent,
			Axis:   spatialmath.AxisConfig(l.Axis),
		}
		switch l.Type {
		case Revolute:
			joint.Type = referenceframe.RevoluteJoint
			joint.Min, joint.Max = utils.RadToDeg(l.Limit.Min), utils.RadToDeg(l.Limit.Max)
		case Prismatic:
			joint.Type = referenceframe.PrismaticJoint
			joint.Min, joint.Max = l.Limit.Min*1000, l.Limit.Max*1000
		case Fixed:
			return nil, errors.Errorf("link %q is fixed but marked active", l.Name)
		}
		cfg.Joints = append(cfg.Joints, joint)
		parent = joint.ID
	}
	return cfg.ParseConfig(name)
}

// ModelForward evaluates the chain's rdk model for active joints. Limits are not enforced.
func (c *Chain) ModelForward(active JointVector) (Pose, error) {
	if c.model == nil {
		return IdentityPose(), nil
	}
	if len(active) != c.active {
		return Pose{}, errors.Wrapf(ErrJointCount, "got %d values for %d active joints", len(active), c.active)
	}
	inputs := make([]referenceframe.Input, 0, len(active))
	for i := 0; i < c.count; i++ {
		if !c.mask[i] {
			continue
		}
		v := active[len(inputs)]
		if c.links[i].Type == Prismatic {
			v *= 1000
		}
		inputs = append(inputs, v)
	}
	pose, err := referenceframe.ComputeOOBPosition(c.model, inputs)
	if err != nil {
		return Pose{}, errors.Wrap(err, "model forward kinematics failed")
	}
	return FromSpatial(pose), nil
}
