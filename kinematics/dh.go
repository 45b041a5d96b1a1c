package kinematics

import (
	"encoding/json"
	"strconv"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"go.viam.com/rdk/referenceframe"
	"go.viam.com/rdk/utils"
)

// dhTransform is Tz(d) * Tx(a) * Rx(alpha).
func dhTransform(p DHParam) Pose {
	return Pose{Position: r3.Vector{X: p.A, Z: p.D}, Rotation: RotX(p.Alpha)}
}

func (p DHParam) linkName(i int) string {
	if p.Name != "" {
		return p.Name
	}
	return "J" + strconv.Itoa(i+1)
}

// dhModel builds the rdk model of a DH table. rdk has no per-row angle offset, so the model's
// inputs are the DH angles and its limits are left open.
func dhModel(name string, params []DHParam) (referenceframe.Model, error) {
	rows := make([]referenceframe.DHParamConfig, len(params))
	parent := referenceframe.World
	for i, p := range params {
		rows[i] = referenceframe.DHParamConfig{
			ID:     p.linkName(i),
			Parent: parent,
			A:      p.A * 1000,
			D:      p.D * 1000,
			Alpha:  utils.RadToDeg(p.Alpha),
			Min:    -360,
			Max:    360,
		}
		parent = rows[i].ID
	}
	cfg := &referenceframe.ModelConfigJSON{Name: name, KinParamType: "DH", DHParams: rows}
	return cfg.ParseConfig(name)
}

// ChainFromDH builds a link model whose forward kinematics equals the DH table's.
// Each revolute link carries the previous row's transform and its own offset in its origin;
// a trailing fixed flange link carries the last row's transform.
func ChainFromDH(name string, params []DHParam, limits []referenceframe.Limit, mask []bool, opts ...ChainOption) (*Chain, error) {
	if len(params) == 0 {
		return nil, errors.New("DH table is empty")
	}
	if len(params)+1 > MaxLinks {
		return nil, errors.Errorf("DH table has %d rows, at most %d supported", len(params), MaxLinks-1)
	}
	if limits != nil && len(limits) != len(params) {
		return nil, errors.Wrapf(ErrJointCount, "%d limits for %d DH rows", len(limits), len(params))
	}

	links := make([]Link, 0, len(params)+1)
	for i, p := range params {
		origin := Pose{Rotation: RotZ(p.Offset)}
		if i > 0 {
			origin = dhTransform(params[i-1]).Compose(origin)
		}
		limit := continuousLimit
		if limits != nil {
			limit = limits[i]
		}
		links = append(links, Link{
			Name:   p.linkName(i),
			Type:   Revolute,
			Origin: origin,
			Axis:   r3.Vector{Z: 1},
			Limit:  limit,
		})
	}
	links = append(links, Link{
		Name:   "flange",
		Type:   Fixed,
		Origin: dhTransform(params[len(params)-1]),
	})

	opts = append([]ChainOption{WithDH(params)}, opts...)
	return NewChain(name, links, mask, opts...)
}

// dhExtensions holds the fields a DH description carries beyond rdk's model format.
type dhExtensions struct {
	DHParams []struct {
		ThetaOffset float64 `json:"theta_offset"`
	} `json:"dhParams"`
	FlipJoints []int `json:"flip_joints,omitempty"`
}

// ParseDHDescription decodes a DH description in rdk's kinematics JSON format
// ("kinematic_param_type": "DH", lengths in mm, angles in degrees). Rows must be listed base
// first, each naming the previous one as parent. Each row may add "theta_offset" in degrees and
// the description may add "flip_joints".
func ParseDHDescription(data []byte, mask []bool) (*Chain, error) {
	cfg := &referenceframe.ModelConfigJSON{
		OriginalFile: &referenceframe.ModelFile{Bytes: data, Extension: "json"},
	}
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, errors.Wrap(err, "failed to parse DH description")
	}
	var ext dhExtensions
	if err := json.Unmarshal(data, &ext); err != nil {
		return nil, errors.Wrap(err, "failed to parse DH description")
	}
	if cfg.KinParamType != "DH" {
		return nil, errors.Errorf("kinematic_param_type is %q, want DH", cfg.KinParamType)
	}
	if cfg.Name == "" {
		cfg.Name = "dh"
	}

	params := make([]DHParam, len(cfg.DHParams))
	limits := make([]referenceframe.Limit, len(cfg.DHParams))
	parent := referenceframe.World
	for i, row := range cfg.DHParams {
		if row.Parent != parent {
			return nil, errors.Errorf("DH row %q has parent %q, want %q", row.ID, row.Parent, parent)
		}
		parent = row.ID
		params[i] = DHParam{
			Name:   row.ID,
			D:      row.D / 1000,
			A:      row.A / 1000,
			Alpha:  utils.DegToRad(row.Alpha),
			Offset: utils.DegToRad(ext.DHParams[i].ThetaOffset),
		}
		limits[i] = referenceframe.Limit{Min: utils.DegToRad(row.Min), Max: utils.DegToRad(row.Max)}
		if row.Min == 0 && row.Max == 0 {
			limits[i] = continuousLimit
		}
	}
	return ChainFromDH(cfg.Name, params, limits, mask, WithFlipJoints(ext.FlipJoints))
}
