package graph_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/aretw0/concierge/internal/presentation/graph"
	"github.com/aretw0/concierge/internal/testutils"
	"github.com/aretw0/concierge/pkg/domain"
)

func TestGenerateMermaid(t *testing.T) {
	out := graph.GenerateMermaid(testutils.Graph(), nil)

	for _, want := range []string{
		"graph TD\n",
		"__start__((\"start\"))",
		"__start__ --> primary",
		"tools[[\"tools\"]]",
		"enter_registration[/\"enter_registration\"/]",
		"back_to_primary[\\\"back_to_primary\"\\]",
		"web_register[[\"web_register <br/> 🔒 approval\"]]",
		"subgraph ctx_primary[\"primary\"]",
		"subgraph ctx_registration[\"registration\"]",
		"primary -- \"search_events\" --> tools",
		"tools -.-> primary",
		"primary -- \"to_registration\" --> enter_registration",
		"enter_registration -.-> registration",
		"registration -- \"complete_registration\" --> back_to_primary",
	} {
		assert.Contains(t, out, want)
	}
	assert.NotContains(t, out, "classDef")
}

func TestGenerateMermaid_Deterministic(t *testing.T) {
	g := testutils.Graph()
	assert.Equal(t, graph.GenerateMermaid(g, nil), graph.GenerateMermaid(g, nil))
}

func TestGenerateMermaid_Overlay(t *testing.T) {
	overlay := &graph.GraphOverlay{
		VisitedNodes: []string{"primary", "enter_registration", "primary"},
		CurrentNode:  "web_register",
	}
	out := graph.GenerateMermaid(testutils.Graph(), overlay)

	assert.Contains(t, out, "classDef visited")
	assert.Equal(t, 1, strings.Count(out, "class primary visited;"))
	assert.Contains(t, out, "class enter_registration visited;")
	assert.Contains(t, out, "class web_register current;")
}

func TestOverlayFor(t *testing.T) {
	s := &domain.TaskState{Status: domain.StatusPending, PendingNode: "web_register", NextNode: "registration"}
	assert.Equal(t, "web_register", graph.OverlayFor(s, nil).CurrentNode)

	s.Status = domain.StatusActive
	assert.Equal(t, "registration", graph.OverlayFor(s, nil).CurrentNode)
}

func TestGenerateMermaid_Sanitization(t *testing.T) {
	g := &domain.Graph{
		Root:  "main",
		Homes: map[string]string{"main": "main.home"},
		Nodes: map[string]*domain.Node{
			"main.home": {Name: "main.home", Kind: domain.NodeDecision, Context: "main"},
			"tool-call": {Name: "tool-call", Kind: domain.NodeEffect},
		},
	}
	out := graph.GenerateMermaid(g, nil)
	assert.Contains(t, out, "main_home[\"main.home\"]")
	assert.Contains(t, out, "tool_call[[\"tool-call\"]]")
	assert.Contains(t, out, "__start__ --> main_home")
}
