package runtime

import (
	"context"
	"fmt"

	"github.com/aretw0/concierge/pkg/domain"
	"github.com/google/uuid"
)

// decide runs a decision node: assemble the input, call the model (re-prompting
// once on empty output), check the allow-list, record the output and route.
func (e *Engine) decide(ctx context.Context, node *domain.Node, state *domain.TaskState) error {
	instructions, err := e.templates.render(node.Name, e.promptData(node, state, nil))
	if err != nil {
		return err
	}

	input := domain.DecisionInput{
		RunID:        state.RunID,
		Node:         node.Name,
		Instructions: instructions,
		History:      Visible(state),
		Capabilities: node.Capabilities,
		Parallel:     node.Parallel,
	}

	out, err := e.decider.Decide(ctx, input)
	if err != nil {
		return fmt.Errorf("decision node '%s': %w", node.Name, err)
	}
	if out.Empty() {
		e.logger.Warn("empty decision output, re-prompting", "run_id", state.RunID, "node", node.Name)
		input.Directive = RepromptDirective
		out, err = e.decider.Decide(ctx, input)
		if err != nil {
			return fmt.Errorf("decision node '%s': %w", node.Name, err)
		}
		if out.Empty() {
			return fmt.Errorf("node '%s': %w", node.Name, domain.ErrEmptyOutput)
		}
	}

	requests, err := e.checkRequests(node, out.Requests)
	if err != nil {
		return err
	}
	next, err := Route(e.graph, node.Name, requests)
	if err != nil {
		return err
	}
	requests = e.collapse(node, state.RunID, requests)

	state.Append(domain.Message{
		Role:      domain.RoleAssistant,
		Content:   out.Text,
		Requests:  requests,
		CreatedAt: e.now().UTC(),
	})

	state.LastDecision = node.Name
	state.Requests = requests
	if next == domain.End {
		return e.end(state, out.Text)
	}
	state.NextNode = next
	return nil
}

// checkRequests enforces the allow-list and assigns missing IDs.
func (e *Engine) checkRequests(node *domain.Node, requests []domain.Request) ([]domain.Request, error) {
	if len(requests) == 0 {
		return nil, nil
	}
	out := make([]domain.Request, 0, len(requests))
	for _, r := range requests {
		if _, ok := node.Capability(r.Capability); !ok {
			return nil, &CapabilityError{Node: node.Name, Capability: r.Capability}
		}
		if r.ID == "" {
			r.ID = "call_" + uuid.NewString()
		}
		out = append(out, r)
	}
	return out, nil
}

// collapse keeps a single request for nodes that do not allow parallel
// requests. It runs after routing succeeded, so the kept request is the exit
// request that won or the first of several requests sharing one successor.
func (e *Engine) collapse(node *domain.Node, runID string, requests []domain.Request) []domain.Request {
	if node.Parallel || len(requests) < 2 {
		return requests
	}
	keep := requests[0]
	for _, r := range requests {
		if c, _ := node.Capability(r.Capability); c.IsExit() {
			keep = r
			break
		}
	}
	e.logger.Warn("dropping extra requests from non-parallel node",
		"run_id", runID, "node", node.Name, "kept", keep.Capability, "dropped", len(requests)-1)
	return []domain.Request{keep}
}
