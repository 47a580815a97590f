package graph

import (
	"fmt"
	"sort"
	"strings"

	"github.com/aretw0/concierge/pkg/domain"
)

// GraphOverlay contains dynamic state data to visualize on the graph.
type GraphOverlay struct {
	VisitedNodes []string
	CurrentNode  string
}

// OverlayFor highlights the node a run is parked on.
func OverlayFor(state *domain.TaskState, visited []string) *GraphOverlay {
	current := state.NextNode
	if state.Status == domain.StatusPending {
		current = state.PendingNode
	}
	return &GraphOverlay{VisitedNodes: visited, CurrentNode: current}
}

// GenerateMermaid produces a Mermaid flowchart syntax string from a graph.
// It applies semantic styling:
// - Decision: [Rectangle], grouped in a subgraph per context
// - Effect: [[Subroutine]]
// - Entry: [/Parallelogram/]
// - Exit: [\Parallelogram\]
// Edges are labelled with the capability that selects them. Effect nodes
// route back to the decision that requested them, entry adapters to the home
// of the context they push.
func GenerateMermaid(g *domain.Graph, overlay *GraphOverlay) string {
	var sb strings.Builder
	sb.WriteString("graph TD\n")

	startID := sanitizeMermaidID(domain.Start)
	sb.WriteString(fmt.Sprintf("    %s((\"start\"))\n", startID))

	byContext := map[string][]string{}
	for _, name := range g.Names() {
		n := g.Nodes[name]
		if n.Kind == domain.NodeDecision {
			byContext[n.Context] = append(byContext[n.Context], name)
			continue
		}
		sb.WriteString(nodeLine(n))
	}

	contexts := make([]string, 0, len(byContext))
	for c := range byContext {
		contexts = append(contexts, c)
	}
	sort.Strings(contexts)
	for _, c := range contexts {
		sb.WriteString(fmt.Sprintf("    subgraph %s[\"%s\"]\n", sanitizeMermaidID("ctx_"+c), c))
		for _, name := range byContext[c] {
			sb.WriteString("    " + nodeLine(g.Nodes[name]))
		}
		sb.WriteString("    end\n")
	}

	if home, ok := g.Home(g.Root); ok {
		sb.WriteString(fmt.Sprintf("    %s --> %s\n", startID, sanitizeMermaidID(home)))
	}

	for _, name := range g.Names() {
		n := g.Nodes[name]
		safeID := sanitizeMermaidID(name)
		switch n.Kind {
		case domain.NodeDecision:
			caps := make([]string, 0, len(n.Edges))
			for c := range n.Edges {
				caps = append(caps, c)
			}
			sort.Strings(caps)
			for _, c := range caps {
				target := n.Edges[c]
				sb.WriteString(fmt.Sprintf("    %s -- \"%s\" --> %s\n", safeID, escapeLabel(c), sanitizeMermaidID(target)))
				if t, ok := g.Node(target); ok && t.Kind == domain.NodeEffect {
					sb.WriteString(fmt.Sprintf("    %s -.-> %s\n", sanitizeMermaidID(target), safeID))
				}
			}
		case domain.NodeEntry:
			if home, ok := g.Home(n.Context); ok {
				sb.WriteString(fmt.Sprintf("    %s -.-> %s\n", safeID, sanitizeMermaidID(home)))
			}
		}
	}

	// Apply Overlay Styles
	if overlay != nil {
		sb.WriteString("\n    %% Overlay Styles\n")
		// Force black text (color:#000) for high-contrast on light backgrounds, regardless of theme (Light/Dark)
		sb.WriteString("    classDef visited fill:#e1f5fe,stroke:#01579b,stroke-width:2px,color:#000;\n")
		sb.WriteString("    classDef current fill:#ffeb3b,stroke:#fbc02d,stroke-width:4px,color:#000;\n")

		visitedSet := make(map[string]bool)
		for _, id := range overlay.VisitedNodes {
			safeID := sanitizeMermaidID(id)
			if !visitedSet[safeID] && safeID != "" {
				visitedSet[safeID] = true
				sb.WriteString(fmt.Sprintf("    class %s visited;\n", safeID))
			}
		}

		if overlay.CurrentNode != "" && overlay.CurrentNode != domain.End {
			sb.WriteString(fmt.Sprintf("    class %s current;\n", sanitizeMermaidID(overlay.CurrentNode)))
		}
	}

	return sb.String()
}

func nodeLine(n *domain.Node) string {
	opener, closer := "[", "]"
	switch n.Kind {
	case domain.NodeEffect:
		opener, closer = "[[", "]]"
	case domain.NodeEntry:
		opener, closer = "[/", "/]"
	case domain.NodeExit:
		opener, closer = "[\\", "\\]"
	}
	label := n.Name
	if n.Gated {
		label += " <br/> 🔒 approval"
	}
	return fmt.Sprintf("    %s%s\"%s\"%s\n", sanitizeMermaidID(n.Name), opener, label, closer)
}

func escapeLabel(s string) string {
	return strings.ReplaceAll(s, "\"", "'")
}

func sanitizeMermaidID(id string) string {
	s := strings.ReplaceAll(id, ".", "_")
	s = strings.ReplaceAll(s, "-", "_")
	s = strings.ReplaceAll(s, "/", "_")
	s = strings.ReplaceAll(s, "\\", "_")
	return s
}
