// Package registry computes the invocable tool set from built-in tools and
// the enabled descriptors of a store. Nothing is cached across calls; every
// listing and resolution reads the store's current snapshot.
package registry

import (
	"fmt"

	"github.com/harun/apibridge/pkg/descriptor"
	"github.com/rs/zerolog/log"
	"github.com/xeipuuv/gojsonschema"
)

// Source provides the enabled descriptors. *store.Store satisfies it.
type Source interface {
	Enabled() []*descriptor.Descriptor
}

// AdminGate hides mutating built-in tools when Disabled is set. It is applied
// at both listing and resolution, so a hidden tool looks exactly like one
// that does not exist.
type AdminGate struct {
	Disabled bool
}

// Allows reports whether b is visible under the gate.
func (g AdminGate) Allows(b Builtin) bool {
	return !g.Disabled || !b.Mutating
}

// Annotations are optional hints clients may show next to a tool.
type Annotations struct {
	ReadOnlyHint    bool `json:"readOnlyHint"`
	DestructiveHint bool `json:"destructiveHint"`
}

// Tool is the listing form of an invocable tool.
type Tool struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description"`
	InputSchema map[string]interface{} `json:"inputSchema"`
	Annotations *Annotations           `json:"annotations,omitempty"`
}

// Resolved is the target of an invocation: exactly one of Builtin or
// Descriptor is set.
type Resolved struct {
	Builtin    *Builtin
	Descriptor *descriptor.Descriptor
}

// Name returns the tool name of the resolution.
func (r Resolved) Name() string {
	if r.Builtin != nil {
		return r.Builtin.Name
	}
	return r.Descriptor.Name
}

// InputSchema returns the schema invocation arguments must satisfy.
func (r Resolved) InputSchema() map[string]interface{} {
	if r.Builtin != nil {
		return r.Builtin.InputSchema
	}
	return r.Descriptor.InputSchema()
}

// Registry merges built-ins and descriptors into one tool namespace.
type Registry struct {
	source   Source
	gate     AdminGate
	builtins []Builtin
	schemas  map[string]*gojsonschema.Schema
}

// New creates a Registry reading descriptors from source. Built-in schemas
// are compiled once here; a broken built-in schema is a programming error.
func New(source Source, gate AdminGate) *Registry {
	r := &Registry{
		source:   source,
		gate:     gate,
		builtins: Builtins(),
		schemas:  make(map[string]*gojsonschema.Schema),
	}
	for _, b := range r.builtins {
		schema, err := compile(b.InputSchema)
		if err != nil {
			panic(fmt.Sprintf("builtin %s: invalid input schema: %v", b.Name, err))
		}
		r.schemas[b.Name] = schema
	}

	log.Info().
		Bool("admin_disabled", gate.Disabled).
		Int("builtins", len(r.visibleBuiltins())).
		Msg("Tool registry initialized")
	return r
}

// Gate returns the admin gate the registry was built with.
func (r *Registry) Gate() AdminGate {
	return r.gate
}

func (r *Registry) visibleBuiltins() []Builtin {
	visible := make([]Builtin, 0, len(r.builtins))
	for _, b := range r.builtins {
		if r.gate.Allows(b) {
			visible = append(visible, b)
		}
	}
	return visible
}

func (r *Registry) builtin(name string) (*Builtin, bool) {
	for i := range r.builtins {
		if r.builtins[i].Name == name {
			return &r.builtins[i], true
		}
	}
	return nil, false
}

// List returns visible built-ins followed by every enabled descriptor.
func (r *Registry) List() []Tool {
	visible := r.visibleBuiltins()
	enabled := r.source.Enabled()

	tools := make([]Tool, 0, len(visible)+len(enabled))
	for _, b := range visible {
		tools = append(tools, Tool{
			Name:        b.Name,
			Description: b.Description,
			InputSchema: b.InputSchema,
			Annotations: &Annotations{
				ReadOnlyHint:    !b.Mutating,
				DestructiveHint: b.Name == DeleteAPI || b.Name == DeleteVariable,
			},
		})
	}
	for _, d := range enabled {
		tools = append(tools, Tool{
			Name:        d.Name,
			Description: d.Description,
			InputSchema: d.InputSchema(),
		})
	}
	return tools
}

// Resolve maps a tool name to its target. Gated built-ins, disabled and
// unknown descriptors all fail with the same ToolNotFound error.
func (r *Registry) Resolve(name string) (Resolved, error) {
	if b, ok := r.builtin(name); ok {
		if !r.gate.Allows(*b) {
			return Resolved{}, notFound(name)
		}
		return Resolved{Builtin: b}, nil
	}

	for _, d := range r.source.Enabled() {
		if d.Name == name {
			return Resolved{Descriptor: d}, nil
		}
	}
	return Resolved{}, notFound(name)
}

// Validate checks args against the resolved tool's input schema.
func (r *Registry) Validate(res Resolved, args map[string]interface{}) error {
	if res.Builtin != nil {
		return validate(res.Builtin.Name, r.schemas[res.Builtin.Name], args)
	}
	return ValidateArguments(res.Descriptor, args)
}

// ValidateArguments checks args against the input schema derived from d.
func ValidateArguments(d *descriptor.Descriptor, args map[string]interface{}) error {
	schema, err := compile(d.InputSchema())
	if err != nil {
		return InvalidArgs(d.Name, fmt.Sprintf("input schema does not compile: %v", err))
	}
	return validate(d.Name, schema, args)
}

func compile(schemaMap map[string]interface{}) (*gojsonschema.Schema, error) {
	return gojsonschema.NewSchema(gojsonschema.NewGoLoader(schemaMap))
}

func validate(tool string, schema *gojsonschema.Schema, args map[string]interface{}) error {
	if schema == nil {
		return nil
	}
	if args == nil {
		args = map[string]interface{}{}
	}

	result, err := schema.Validate(gojsonschema.NewGoLoader(args))
	if err != nil {
		return InvalidArgs(tool, err.Error())
	}
	if result.Valid() {
		return nil
	}

	fields := []string{}
	messages := []string{}
	for _, re := range result.Errors() {
		fields = append(fields, errorField(re))
		messages = append(messages, re.String())
	}

	log.Debug().Str("tool", tool).Strs("fields", fields).Msg("Argument validation failed")
	return &ProtocolError{Kind: InvalidArguments, Tool: tool, Fields: fields, Msg: fmt.Sprintf("%v", messages)}
}

// errorField names the argument a validation error is about. Required and
// additional-property errors are reported against the root, so the property
// name lives in the details.
func errorField(re gojsonschema.ResultError) string {
	if prop, ok := re.Details()["property"].(string); ok && prop != "" {
		if re.Field() == gojsonschema.STRING_ROOT_SCHEMA_PROPERTY {
			return prop
		}
		return re.Field() + "." + prop
	}
	return re.Field()
}
