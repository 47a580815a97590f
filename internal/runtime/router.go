package runtime

import (
	"github.com/aretw0/concierge/pkg/domain"
)

// Route maps the requests of a decision node to the next node.
// It is a pure function of its arguments:
//
//   - no requests: domain.End
//   - any completion or escalation request: the exit adapter it points to
//   - requests all handled by one successor: that successor, once
//   - anything else: *RouteMismatchError
func Route(g *domain.Graph, nodeName string, requests []domain.Request) (string, error) {
	node, ok := g.Node(nodeName)
	if !ok {
		return "", &UnknownNodeError{Node: nodeName}
	}
	mismatch := func(reason string) error {
		return &RouteMismatchError{Node: nodeName, Requests: requests, Reason: reason}
	}

	if len(requests) == 0 {
		return domain.End, nil
	}

	// Exit requests win over everything else in the same output.
	for _, r := range requests {
		c, ok := node.Capability(r.Capability)
		if !ok {
			return "", mismatch("capability '" + r.Capability + "' is not allow-listed")
		}
		if c.IsExit() {
			target, ok := node.Edges[c.Name]
			if !ok {
				return "", mismatch("no exit adapter for '" + c.Name + "'")
			}
			return target, nil
		}
	}

	next := ""
	for _, r := range requests {
		c, _ := node.Capability(r.Capability)
		switch c.Kind {
		case domain.KindEffect, domain.KindDelegate:
			target, ok := node.Edges[c.Name]
			if !ok {
				return "", mismatch("no edge for '" + c.Name + "'")
			}
			if next != "" && target != next {
				return "", mismatch("requests span successors '" + next + "' and '" + target + "'")
			}
			next = target
		default:
			return "", mismatch("unknown capability kind '" + string(c.Kind) + "'")
		}
	}
	return next, nil
}
