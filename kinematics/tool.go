package kinematics

import (
	"sort"
	"sync"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
)

// FlangeTool is the identity tool registered when no tools are configured.
const FlangeTool = "flange"

// Tool is a fixed offset from the flange to the tool centre point, in the flange frame.
type Tool struct {
	Name        string
	Translation r3.Vector
	Rotation    Rotation
}

// Transform is the flange-to-TCP pose.
func (t Tool) Transform() Pose {
	return Pose{Position: t.Translation, Rotation: t.Rotation}
}

// Apply maps a flange pose to the TCP: P_tcp = P_f + R_f*t, R_tcp = R_f*R_tool.
func (t Tool) Apply(flange Pose) Pose {
	return flange.Compose(t.Transform())
}

// FlangeTarget maps a desired TCP pose back to the flange pose that realises it.
// The tool rotation is undone first and only then is the rotated offset subtracted;
// reversing the two steps gives a wrong flange position whenever the tool rotates.
func (t Tool) FlangeTarget(tcp Pose) Pose {
	// step 1: R_f = R_tcp * R_tool^-1
	rf := tcp.Rotation.Mul(t.Rotation.Transpose())
	// step 2: P_f = P_tcp - R_f * t
	pf := tcp.Position.Sub(rf.Apply(t.Translation))
	return Pose{Position: pf, Rotation: rf}
}

// ToolRegistry holds the named tools and which one is active. Entries are only added at
// construction and never removed.
type ToolRegistry struct {
	mu     sync.RWMutex
	tools  map[string]Tool
	active string
}

// NewToolRegistry registers tools and activates the first. With no tools it registers the
// identity flange tool.
func NewToolRegistry(tools ...Tool) (*ToolRegistry, error) {
	if len(tools) == 0 {
		tools = []Tool{{Name: FlangeTool, Rotation: Identity()}}
	}
	r := &ToolRegistry{tools: make(map[string]Tool, len(tools))}
	for _, t := range tools {
		if t.Name == "" {
			return nil, errors.New("tool name must not be empty")
		}
		if _, dup := r.tools[t.Name]; dup {
			return nil, errors.Errorf("tool %q registered twice", t.Name)
		}
		if t.Rotation == (Rotation{}) {
			t.Rotation = Identity()
		}
		r.tools[t.Name] = t
	}
	r.active = tools[0].Name
	return r, nil
}

// SetActive switches the active tool.
func (r *ToolRegistry) SetActive(name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.tools[name]; !ok {
		return errors.Wrapf(ErrUnknownTool, "%q", name)
	}
	r.active = name
	return nil
}

// Active returns the active tool.
func (r *ToolRegistry) Active() Tool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.tools[r.active]
}

// Get looks a tool up by name.
func (r *ToolRegistry) Get(name string) (Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tools[name]
	return t, ok
}

// Names lists the registered tools, sorted.
func (r *ToolRegistry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.tools))
	for n := range r.tools {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
