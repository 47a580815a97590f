// Package validator checks an agent graph before it is served.
package validator

import (
	"fmt"
	"strings"

	"github.com/aretw0/concierge/pkg/domain"
)

// ValidateGraph checks the structure of g and crawls it from the home of the
// root context, reporting nodes no run can ever reach.
func ValidateGraph(g *domain.Graph) error {
	if err := g.Validate(); err != nil {
		return err
	}

	start, ok := g.Home(g.Root)
	if !ok {
		return fmt.Errorf("root context '%s' has no home node", g.Root)
	}

	visited := make(map[string]bool, len(g.Nodes))
	queue := []string{start}
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]

		if visited[current] {
			continue
		}
		visited[current] = true

		n, _ := g.Node(current)
		switch n.Kind {
		case domain.NodeDecision:
			for _, target := range n.Edges {
				if !visited[target] {
					queue = append(queue, target)
				}
			}
		case domain.NodeEntry:
			if home, ok := g.Home(n.Context); ok {
				queue = append(queue, home)
			}
		}
	}

	var errors []string
	for _, name := range g.Names() {
		if !visited[name] {
			errors = append(errors, fmt.Sprintf("Unreachable node: '%s'", name))
		}
	}
	if len(errors) > 0 {
		return fmt.Errorf("found %d errors:\n- %s", len(errors), strings.Join(errors, "\n- "))
	}
	return nil
}
