package domain

// CapabilityKind is the closed set of request tags the router understands.
type CapabilityKind string

const (
	// KindEffect asks for an external side effect (search, calendar, registration).
	KindEffect CapabilityKind = "effect"
	// KindDelegate hands control to a sub-context through an entry adapter.
	KindDelegate CapabilityKind = "delegate"
	// KindComplete signals the current sub-context finished its task.
	KindComplete CapabilityKind = "complete"
	// KindEscalate signals the current sub-context gives control back without finishing.
	KindEscalate CapabilityKind = "escalate"
)

// Capability is a named, allow-listed action a decision node may request.
type Capability struct {
	Name        string         `json:"name" yaml:"name" mapstructure:"name"`
	Kind        CapabilityKind `json:"kind" yaml:"kind" mapstructure:"kind"`
	Description string         `json:"description" yaml:"description" mapstructure:"description"`

	// Parameters is a JSON Schema object describing the request arguments.
	Parameters map[string]any `json:"parameters,omitempty" yaml:"parameters,omitempty" mapstructure:"parameters"`
}

// IsExit reports whether requesting the capability leaves the current context.
func (c Capability) IsExit() bool {
	return c.Kind == KindComplete || c.Kind == KindEscalate
}
