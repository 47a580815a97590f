package runtime

import (
	"fmt"

	"github.com/aretw0/concierge/pkg/domain"
)

// enter is the entry adapter: it answers the delegation request in the parent
// frame with a hand-off message and pushes the delegated context.
func (e *Engine) enter(node *domain.Node, state *domain.TaskState) error {
	if len(state.Requests) == 0 {
		return fmt.Errorf("entry adapter '%s' reached without a delegation request", node.Name)
	}
	parent, _ := state.Top()
	req := state.Requests[0]

	text, err := e.templates.render(node.Name, e.handoffData(node, state, req.Args))
	if err != nil {
		return err
	}

	state.Append(domain.Message{
		Role:       domain.RoleTool,
		ToolCallID: req.ID,
		Content:    text,
		Frame:      parent.ID,
		Synthetic:  true,
		CreatedAt:  e.now().UTC(),
	})
	for _, extra := range state.Requests[1:] {
		state.Append(domain.Message{
			Role:       domain.RoleTool,
			ToolCallID: extra.ID,
			Content:    "Ignored: only one delegation can run at a time.",
			Frame:      parent.ID,
			Synthetic:  true,
			CreatedAt:  e.now().UTC(),
		})
	}

	state.Push(node.Context)
	state.Requests = nil
	state.NextNode, _ = e.graph.Home(node.Context)
	return nil
}

// handoffData renders hand-offs as seen from the delegated context.
func (e *Engine) handoffData(node *domain.Node, state *domain.TaskState, args map[string]any) promptData {
	d := e.promptData(node, state, args)
	d.Context = node.Context
	return d
}

// exit is the exit adapter: it closes the current frame and announces the
// return to the parent context.
func (e *Engine) exit(node *domain.Node, state *domain.TaskState) error {
	kind := domain.KindComplete
	reason := ""
	if decider, ok := e.graph.Node(state.LastDecision); ok {
		for _, r := range state.Requests {
			c, ok := decider.Capability(r.Capability)
			if ok && c.IsExit() {
				kind = c.Kind
				reason = argString(r.Args, "reason")
				break
			}
		}
	}
	return e.leave(state, kind, reason)
}

// end handles the END marker: a sub-context returns implicitly to its parent
// carrying the final text; the root context completes the run.
func (e *Engine) end(state *domain.TaskState, text string) error {
	if len(state.ActiveContext) > 1 {
		return e.leave(state, "", text)
	}
	state.Pop()
	state.Requests = nil
	state.Status = domain.StatusCompleted
	state.FinalText = text
	state.NextNode = domain.End
	return nil
}

func (e *Engine) leave(state *domain.TaskState, kind domain.CapabilityKind, reason string) error {
	child, ok := state.Pop()
	if !ok {
		return fmt.Errorf("exit adapter reached with an empty context stack")
	}
	state.Requests = nil

	parent, ok := state.Top()
	if !ok {
		state.Status = domain.StatusCompleted
		state.FinalText = reason
		state.NextNode = domain.End
		return nil
	}

	state.Append(domain.Message{
		Role:      domain.RoleSystem,
		Content:   exitText(parent.Name, child.Name, kind, reason),
		Frame:     parent.ID,
		Synthetic: true,
		CreatedAt: e.now().UTC(),
	})
	state.NextNode, _ = e.graph.Home(parent.Name)
	return nil
}

func argString(args map[string]any, key string) string {
	if v, ok := args[key]; ok && v != nil {
		return fmt.Sprint(v)
	}
	return ""
}
