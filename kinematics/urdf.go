package kinematics

import (
	"encoding/xml"
	"strconv"
	"strings"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"go.viam.com/rdk/referenceframe"
)

type urdfRobot struct {
	XMLName xml.Name    `xml:"robot"`
	Name    string      `xml:"name,attr"`
	Links   []urdfLink  `xml:"link"`
	Joints  []urdfJoint `xml:"joint"`
}

type urdfLink struct {
	Name string `xml:"name,attr"`
}

type urdfJoint struct {
	Name   string      `xml:"name,attr"`
	Type   string      `xml:"type,attr"`
	Parent urdfRef     `xml:"parent"`
	Child  urdfRef     `xml:"child"`
	Origin *urdfOrigin `xml:"origin"`
	Axis   *urdfAxis   `xml:"axis"`
	Limit  *urdfLimit  `xml:"limit"`
}

type urdfRef struct {
	Link string `xml:"link,attr"`
}

type urdfOrigin struct {
	XYZ string `xml:"xyz,attr"`
	RPY string `xml:"rpy,attr"`
}

type urdfAxis struct {
	XYZ string `xml:"xyz,attr"`
}

type urdfLimit struct {
	Lower float64 `xml:"lower,attr"`
	Upper float64 `xml:"upper,attr"`
}

// ParseURDF reads a serial URDF into a chain. The chain starts with a fixed base link at the
// root, followed by one link per joint in parent-to-child order, so a six-joint arm yields
// seven links with the mask [false, true, true, true, true, true, true].
func ParseURDF(data []byte, mask []bool, opts ...ChainOption) (*Chain, error) {
	var robot urdfRobot
	if err := xml.Unmarshal(data, &robot); err != nil {
		return nil, errors.Wrap(err, "failed to parse URDF")
	}
	if len(robot.Joints) == 0 {
		return nil, errors.Errorf("URDF %q declares no joints", robot.Name)
	}

	byParent := make(map[string]*urdfJoint, len(robot.Joints))
	isChild := make(map[string]bool, len(robot.Joints))
	for i := range robot.Joints {
		j := &robot.Joints[i]
		if _, dup := byParent[j.Parent.Link]; dup {
			return nil, errors.Errorf("URDF link %q has more than one child joint; only serial chains are supported", j.Parent.Link)
		}
		byParent[j.Parent.Link] = j
		isChild[j.Child.Link] = true
	}

	root := ""
	for i := range robot.Joints {
		if p := robot.Joints[i].Parent.Link; !isChild[p] {
			if root != "" && root != p {
				return nil, errors.Errorf("URDF has more than one root link (%q, %q)", root, p)
			}
			root = p
		}
	}
	if root == "" {
		return nil, errors.New("URDF joints form a cycle")
	}

	links := []Link{{Name: root, Type: Fixed, Origin: IdentityPose()}}
	for j, ok := byParent[root]; ok; j, ok = byParent[j.Child.Link] {
		l, err := j.toLink()
		if err != nil {
			return nil, err
		}
		links = append(links, l)
		if len(links) > MaxLinks {
			return nil, errors.Errorf("URDF chain longer than %d links", MaxLinks)
		}
	}
	if len(links)-1 != len(robot.Joints) {
		return nil, errors.Errorf("URDF has %d joints but only %d are reachable from %q", len(robot.Joints), len(links)-1, root)
	}

	name := robot.Name
	if name == "" {
		name = "urdf"
	}
	return NewChain(name, links, mask, opts...)
}

func (j *urdfJoint) toLink() (Link, error) {
	l := Link{Name: j.Name, Origin: IdentityPose(), Axis: r3.Vector{X: 1}}
	switch j.Type {
	case "fixed":
		l.Type = Fixed
	case "revolute":
		l.Type = Revolute
	case "continuous":
		l.Type = Revolute
		l.Limit = continuousLimit
	case "prismatic":
		l.Type = Prismatic
	default:
		return Link{}, errors.Errorf("joint %q has unsupported type %q", j.Name, j.Type)
	}

	if j.Origin != nil {
		xyz, err := parseTriple(j.Origin.XYZ)
		if err != nil {
			return Link{}, errors.Wrapf(err, "joint %q origin xyz", j.Name)
		}
		rpy, err := parseTriple(j.Origin.RPY)
		if err != nil {
			return Link{}, errors.Wrapf(err, "joint %q origin rpy", j.Name)
		}
		l.Origin = NewPose(r3.Vector{X: xyz[0], Y: xyz[1], Z: xyz[2]}, rpy[0], rpy[1], rpy[2])
	}
	if j.Axis != nil {
		axis, err := parseTriple(j.Axis.XYZ)
		if err != nil {
			return Link{}, errors.Wrapf(err, "joint %q axis", j.Name)
		}
		l.Axis = r3.Vector{X: axis[0], Y: axis[1], Z: axis[2]}
	}
	if j.Type != "continuous" && j.Type != "fixed" {
		if j.Limit == nil {
			return Link{}, errors.Errorf("joint %q has no limit", j.Name)
		}
		l.Limit = referenceframe.Limit{Min: j.Limit.Lower, Max: j.Limit.Upper}
	}
	return l, nil
}

// parseTriple reads "x y z"; an empty string is the zero triple.
func parseTriple(s string) ([3]float64, error) {
	var out [3]float64
	fields := strings.Fields(s)
	if len(fields) == 0 {
		return out, nil
	}
	if len(fields) != 3 {
		return out, errors.Errorf("expected 3 values, got %q", s)
	}
	for i, f := range fields {
		v, err := strconv.ParseFloat(f, 64)
		if err != nil {
			return out, errors.Wrapf(err, "bad value %q", f)
		}
		out[i] = v
	}
	return out, nil
}
