package dsl

import (
	"fmt"

	"github.com/aretw0/concierge/pkg/domain"
)

// Builder manages the graph construction.
type Builder struct {
	root  string
	order []string
	nodes map[string]*NodeBuilder
	homes map[string]string
	err   error
}

// New creates a new graph builder whose runs start in the root context.
func New(root string) *Builder {
	return &Builder{
		root:  root,
		nodes: make(map[string]*NodeBuilder),
		homes: make(map[string]string),
	}
}

func (b *Builder) add(name string, kind domain.NodeKind) *NodeBuilder {
	if nb, ok := b.nodes[name]; ok {
		if nb.node.Kind != kind && b.err == nil {
			b.err = fmt.Errorf("node %q declared as %s and %s", name, nb.node.Kind, kind)
		}
		return nb
	}
	nb := &NodeBuilder{
		node:    domain.Node{Name: name, Kind: kind, Edges: map[string]string{}},
		builder: b,
	}
	b.nodes[name] = nb
	b.order = append(b.order, name)
	return nb
}

// Decision declares a decision node serving a context.
// The first decision node declared for a context becomes its home.
func (b *Builder) Decision(name, context string) *NodeBuilder {
	nb := b.add(name, domain.NodeDecision)
	nb.node.Context = context
	if _, ok := b.homes[context]; !ok {
		b.homes[context] = name
	}
	return nb
}

// Effect declares an effect node.
func (b *Builder) Effect(name string) *NodeBuilder {
	return b.add(name, domain.NodeEffect)
}

// Entry declares an entry adapter pushing context.
func (b *Builder) Entry(name, context string) *NodeBuilder {
	nb := b.add(name, domain.NodeEntry)
	nb.node.Context = context
	return nb
}

// Exit declares an exit adapter.
func (b *Builder) Exit(name string) *NodeBuilder {
	return b.add(name, domain.NodeExit)
}

// Build assembles and validates the graph.
func (b *Builder) Build() (*domain.Graph, error) {
	if b.err != nil {
		return nil, b.err
	}
	g := &domain.Graph{
		Root:  b.root,
		Homes: make(map[string]string, len(b.homes)),
		Nodes: make(map[string]*domain.Node, len(b.nodes)),
	}
	for ctx, home := range b.homes {
		g.Homes[ctx] = home
	}
	for _, name := range b.order {
		n := b.nodes[name].Build()
		g.Nodes[name] = &n
	}
	if err := g.Validate(); err != nil {
		return nil, err
	}
	return g, nil
}
