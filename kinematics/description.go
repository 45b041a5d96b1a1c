package kinematics

import (
	_ "embed"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
)

//go:embed data/parol6.json
var parol6Description []byte

// DefaultChain is the PAROL6 arm from its built-in DH table.
// Flip joints are the base (J1), elbow (J3) and wrist (J5).
func DefaultChain(mask []bool) (*Chain, error) {
	return ParseDHDescription(parol6Description, mask)
}

// LoadChain loads a chain description from path: ".urdf" files are parsed as URDF and ".json"
// files as DH descriptions; an empty path selects the built-in PAROL6 table. flip overrides the
// description's alternate-seed indices when non-nil.
//
// It never returns a nil chain. On any failure the mock chain is returned together with the
// error so callers can keep running in a no-op state and report the condition.
func LoadChain(path string, mask []bool, flip []int) (*Chain, error) {
	chain, err := loadChain(path, mask, flip)
	if err != nil {
		return MockChain(), err
	}
	return chain, nil
}

func loadChain(path string, mask []bool, flip []int) (*Chain, error) {
	var (
		chain *Chain
		err   error
	)
	if path == "" {
		chain, err = DefaultChain(mask)
	} else {
		var data []byte
		data, err = os.ReadFile(path)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to read chain description %s", path)
		}
		switch strings.ToLower(filepath.Ext(path)) {
		case ".urdf", ".xml":
			chain, err = ParseURDF(data, mask)
		case ".json":
			chain, err = ParseDHDescription(data, mask)
		default:
			return nil, errors.Errorf("unsupported chain description %s", path)
		}
	}
	if err != nil || flip == nil {
		return chain, err
	}
	return NewChain(chain.Name(), chain.Links(), chain.Mask(), WithDH(chain.DH()), WithFlipJoints(flip))
}
