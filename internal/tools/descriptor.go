// Package tools holds the tool registry the analysts bind to the model
// and the dispatcher that answers tool calls with tool messages.
package tools

import (
	"context"
	"fmt"
	"sort"

	"github.com/cloudwego/eino/schema"
)

// ArgSpec describes one tool argument for validation and for export to
// the model schema.
type ArgSpec struct {
	Name        string
	Type        schema.DataType
	Required    bool
	Description string
	// Ticker marks symbol-shaped args that must pass the market
	// classifier before the handler runs.
	Ticker bool
}

// Handler runs a tool; its return value becomes the tool message body.
type Handler func(ctx context.Context, args map[string]any) (string, error)

// ToolDescriptor is one registered tool.
type ToolDescriptor struct {
	Name        string
	Description string
	Args        []ArgSpec
	// SideEffectFree tools may be dispatched concurrently in a batch.
	SideEffectFree bool
	Handler        Handler
}

// Info exports the descriptor in the model's tool schema.
func (d *ToolDescriptor) Info() *schema.ToolInfo {
	params := make(map[string]*schema.ParameterInfo, len(d.Args))
	for _, arg := range d.Args {
		params[arg.Name] = &schema.ParameterInfo{
			Type:     arg.Type,
			Desc:     arg.Description,
			Required: arg.Required,
		}
	}
	return &schema.ToolInfo{
		Name:        d.Name,
		Desc:        d.Description,
		ParamsOneOf: schema.NewParamsOneOfByParams(params),
	}
}

// Registry maps tool names to descriptors and role tags to toolsets.
type Registry struct {
	tools    map[string]*ToolDescriptor
	toolsets map[string][]string
	primary  map[string]string
}

func NewRegistry() *Registry {
	return &Registry{
		tools:    make(map[string]*ToolDescriptor),
		toolsets: make(map[string][]string),
		primary:  make(map[string]string),
	}
}

// Register adds a descriptor; re-registering a name replaces it.
func (r *Registry) Register(d *ToolDescriptor) {
	r.tools[d.Name] = d
}

// Lookup returns the descriptor for a tool name.
func (r *Registry) Lookup(name string) (*ToolDescriptor, bool) {
	d, ok := r.tools[name]
	return d, ok
}

// BindRole declares a role's toolset. The first name is the role's
// primary tool, used for forced invocation when the model skips tool
// calls on its first turn.
func (r *Registry) BindRole(role string, names ...string) error {
	for _, name := range names {
		if _, ok := r.tools[name]; !ok {
			return fmt.Errorf("toolset for %s references unregistered tool %s", role, name)
		}
	}
	r.toolsets[role] = names
	if len(names) > 0 {
		r.primary[role] = names[0]
	}
	return nil
}

// Toolset returns the descriptors bound to a role.
func (r *Registry) Toolset(role string) []*ToolDescriptor {
	names := r.toolsets[role]
	out := make([]*ToolDescriptor, 0, len(names))
	for _, name := range names {
		if d, ok := r.tools[name]; ok {
			out = append(out, d)
		}
	}
	return out
}

// ToolInfos exports a role's toolset in model schema form.
func (r *Registry) ToolInfos(role string) []*schema.ToolInfo {
	set := r.Toolset(role)
	out := make([]*schema.ToolInfo, 0, len(set))
	for _, d := range set {
		out = append(out, d.Info())
	}
	return out
}

// PrimaryTool returns the role's designated tool for forced invocation.
func (r *Registry) PrimaryTool(role string) (*ToolDescriptor, bool) {
	name, ok := r.primary[role]
	if !ok {
		return nil, false
	}
	return r.Lookup(name)
}

// Names lists every registered tool, sorted.
func (r *Registry) Names() []string {
	out := make([]string, 0, len(r.tools))
	for name := range r.tools {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}
