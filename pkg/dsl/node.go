package dsl

import "github.com/aretw0/concierge/pkg/domain"

// NodeBuilder provides a fluent API for configuring a node.
type NodeBuilder struct {
	node    domain.Node
	builder *Builder
}

// Describe sets a human readable description.
func (n *NodeBuilder) Describe(text string) *NodeBuilder {
	n.node.Description = text
	return n
}

// Instructions sets the decision prompt (text/template).
func (n *NodeBuilder) Instructions(tmpl string) *NodeBuilder {
	n.node.Instructions = tmpl
	return n
}

// Handoff sets the entry adapter message (text/template).
func (n *NodeBuilder) Handoff(tmpl string) *NodeBuilder {
	n.node.Handoff = tmpl
	return n
}

// Home makes this decision node the home of its context.
func (n *NodeBuilder) Home() *NodeBuilder {
	n.builder.homes[n.node.Context] = n.node.Name
	return n
}

// Parallel allows several requests per decision output.
func (n *NodeBuilder) Parallel() *NodeBuilder {
	n.node.Parallel = true
	return n
}

// Gated marks the node as requiring approval.
func (n *NodeBuilder) Gated() *NodeBuilder {
	n.node.Gated = true
	return n
}

// Can allow-lists a capability and points it at the successor that handles it.
func (n *NodeBuilder) Can(kind domain.CapabilityKind, name, description string, params map[string]any, target string) *NodeBuilder {
	n.node.Capabilities = append(n.node.Capabilities, domain.Capability{
		Name:        name,
		Kind:        kind,
		Description: description,
		Parameters:  params,
	})
	n.node.Edges[name] = target
	return n
}

// Effect allow-lists an effect capability.
func (n *NodeBuilder) Effect(name, description string, params map[string]any, target string) *NodeBuilder {
	return n.Can(domain.KindEffect, name, description, params, target)
}

// Delegate allow-lists a delegation capability.
func (n *NodeBuilder) Delegate(name, description string, params map[string]any, target string) *NodeBuilder {
	return n.Can(domain.KindDelegate, name, description, params, target)
}

// Complete allow-lists a completion signal.
func (n *NodeBuilder) Complete(name, description string, params map[string]any, target string) *NodeBuilder {
	return n.Can(domain.KindComplete, name, description, params, target)
}

// Escalate allow-lists an escalation signal.
func (n *NodeBuilder) Escalate(name, description string, params map[string]any, target string) *NodeBuilder {
	return n.Can(domain.KindEscalate, name, description, params, target)
}

// Build returns a copy of the underlying domain.Node.
func (n *NodeBuilder) Build() domain.Node {
	out := n.node
	out.Capabilities = append([]domain.Capability(nil), n.node.Capabilities...)
	out.Edges = make(map[string]string, len(n.node.Edges))
	for k, v := range n.node.Edges {
		out.Edges[k] = v
	}
	return out
}

// Object builds a JSON Schema object with the given string properties.
// Properties listed in required are marked as required.
func Object(props map[string]string, required ...string) map[string]any {
	properties := make(map[string]any, len(props))
	for name, desc := range props {
		properties[name] = map[string]any{"type": "string", "description": desc}
	}
	schema := map[string]any{
		"type":       "object",
		"properties": properties,
	}
	if len(required) > 0 {
		schema["required"] = required
	}
	return schema
}
