package domain

import (
	"errors"
	"fmt"
	"sort"
)

const (
	// Start is the distinguished state a run begins in.
	Start = "__start__"
	// End is the terminal marker of the current context.
	End = "__end__"
)

// NodeKind tags the variants of Node.
type NodeKind string

const (
	NodeDecision NodeKind = "decision"
	NodeEffect   NodeKind = "effect"
	NodeEntry    NodeKind = "entry"
	NodeExit     NodeKind = "exit"
)

// Node is a unit of execution in the orchestration graph.
type Node struct {
	Name        string   `json:"name" yaml:"name"`
	Kind        NodeKind `json:"kind" yaml:"kind"`
	Description string   `json:"description,omitempty" yaml:"description,omitempty"`

	// Context is the context a decision node serves, or the context an entry adapter pushes.
	Context string `json:"context,omitempty" yaml:"context,omitempty"`

	// Instructions is the decision node prompt (text/template).
	Instructions string       `json:"instructions,omitempty" yaml:"instructions,omitempty"`
	Capabilities []Capability `json:"capabilities,omitempty" yaml:"capabilities,omitempty"`

	// Edges maps a capability name to the successor node handling it.
	Edges map[string]string `json:"edges,omitempty" yaml:"edges,omitempty"`

	// Parallel allows a decision node to emit several requests in one output.
	Parallel bool `json:"parallel,omitempty" yaml:"parallel,omitempty"`

	// Handoff is the synthetic message an entry adapter injects (text/template).
	Handoff string `json:"handoff,omitempty" yaml:"handoff,omitempty"`

	// Gated nodes require human approval before they run.
	Gated bool `json:"gated,omitempty" yaml:"gated,omitempty"`
}

// Capability looks up an allow-listed capability by name.
func (n *Node) Capability(name string) (Capability, bool) {
	for _, c := range n.Capabilities {
		if c.Name == name {
			return c, true
		}
	}
	return Capability{}, false
}

// Graph is the immutable definition of an orchestration graph.
type Graph struct {
	// Root is the top-level context a run starts in.
	Root string `json:"root" yaml:"root"`
	// Homes maps each context to the decision node authoritative for it.
	Homes map[string]string `json:"homes" yaml:"homes"`
	Nodes map[string]*Node  `json:"nodes" yaml:"nodes"`
}

// Node returns the node with the given name.
func (g *Graph) Node(name string) (*Node, bool) {
	n, ok := g.Nodes[name]
	return n, ok
}

// Home returns the decision node serving a context.
func (g *Graph) Home(context string) (string, bool) {
	h, ok := g.Homes[context]
	return h, ok
}

// Names returns the node names in lexical order.
func (g *Graph) Names() []string {
	names := make([]string, 0, len(g.Nodes))
	for name := range g.Nodes {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// GraphError reports a configuration problem found while validating a graph.
type GraphError struct {
	Node   string
	Reason string
}

func (e *GraphError) Error() string {
	if e.Node == "" {
		return fmt.Sprintf("invalid graph: %s", e.Reason)
	}
	return fmt.Sprintf("invalid graph: node %q: %s", e.Node, e.Reason)
}

// Validate checks the structural rules the router and engine rely on.
func (g *Graph) Validate() error {
	var errs []error
	fail := func(node, format string, args ...any) {
		errs = append(errs, &GraphError{Node: node, Reason: fmt.Sprintf(format, args...)})
	}

	if g.Root == "" {
		fail("", "root context is not set")
	}
	for ctxName, home := range g.Homes {
		n, ok := g.Nodes[home]
		if !ok {
			fail(home, "home of context %q does not exist", ctxName)
			continue
		}
		if n.Kind != NodeDecision {
			fail(home, "home of context %q must be a decision node", ctxName)
		}
	}
	if _, ok := g.Homes[g.Root]; g.Root != "" && !ok {
		fail("", "root context %q has no home node", g.Root)
	}

	for _, name := range g.Names() {
		n := g.Nodes[name]
		if n.Name != name {
			fail(name, "registered under a different name (%q)", n.Name)
		}
		switch n.Kind {
		case NodeDecision:
			if _, ok := g.Homes[n.Context]; !ok {
				fail(name, "context %q has no home node", n.Context)
			}
			g.validateDecision(n, fail)
		case NodeEntry:
			if _, ok := g.Homes[n.Context]; !ok {
				fail(name, "pushes context %q which has no home node", n.Context)
			}
		case NodeEffect, NodeExit:
		default:
			fail(name, "unknown node kind %q", n.Kind)
		}
	}
	return errors.Join(errs...)
}

func (g *Graph) validateDecision(n *Node, fail func(node, format string, args ...any)) {
	seen := make(map[string]bool, len(n.Capabilities))
	successor := ""
	for _, c := range n.Capabilities {
		if seen[c.Name] {
			fail(n.Name, "duplicate capability %q", c.Name)
		}
		seen[c.Name] = true

		target, ok := n.Edges[c.Name]
		if !ok {
			fail(n.Name, "capability %q has no edge", c.Name)
			continue
		}
		succ, ok := g.Nodes[target]
		if !ok {
			fail(n.Name, "capability %q points to unknown node %q", c.Name, target)
			continue
		}

		var want NodeKind
		switch c.Kind {
		case KindEffect:
			want = NodeEffect
		case KindDelegate:
			want = NodeEntry
		case KindComplete, KindEscalate:
			want = NodeExit
		default:
			fail(n.Name, "capability %q has unknown kind %q", c.Name, c.Kind)
			continue
		}
		if succ.Kind != want {
			fail(n.Name, "capability %q (%s) must point to a %s node, got %s", c.Name, c.Kind, want, succ.Kind)
		}
		if succ.Gated && n.Parallel {
			fail(n.Name, "feeds gated node %q and must not allow parallel requests", target)
		}
		// Parallel requests are only routable when they share one successor.
		if n.Parallel && !c.IsExit() {
			if successor != "" && successor != target {
				fail(n.Name, "allows parallel requests but reaches both %q and %q", successor, target)
			}
			successor = target
		}
	}
	for capName := range n.Edges {
		if !seen[capName] {
			fail(n.Name, "edge for capability %q which is not allow-listed", capName)
		}
	}
}
