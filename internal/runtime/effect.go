package runtime

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aretw0/concierge/pkg/domain"
)

// invokeEffects serves every pending request routed to an effect node, in order,
// then hands control back to the decision node that issued them.
func (e *Engine) invokeEffects(ctx context.Context, node *domain.Node, state *domain.TaskState) error {
	for _, req := range state.Requests {
		if err := e.serve(ctx, node, state, req); err != nil {
			return err
		}
	}
	state.Requests = nil
	state.NextNode = state.LastDecision
	return nil
}

// serve invokes one effect, retrying once when the request asks for it.
// The same capability failing twice in a row with the same cause is fatal.
func (e *Engine) serve(ctx context.Context, node *domain.Node, state *domain.TaskState, req domain.Request) error {
	effect, ok := e.effects.Lookup(req.Capability)
	if !ok {
		return fmt.Errorf("node '%s': no effect registered for capability '%s'", node.Name, req.Capability)
	}

	attempts := 1
	if req.Retry {
		attempts = 2
	}

	for attempt := 1; ; attempt++ {
		e.emitEffectCall(ctx, state.RunID, node.Name, req)
		start := time.Now()
		res, err := effect.Invoke(ctx, req)
		took := time.Since(start)
		if err != nil {
			if errors.Is(err, domain.ErrServiceUnavailable) || ctx.Err() != nil {
				e.emitEffectReturn(ctx, state.RunID, node.Name, req, err.Error(), true, took)
				return fmt.Errorf("effect '%s': %w", req.Capability, err)
			}
			res.Err = err.Error()
		}
		e.emitEffectReturn(ctx, state.RunID, node.Name, req, res.Payload, res.Err != "", took)

		for _, obs := range res.Observations {
			applied, err := state.Apply(obs)
			if err != nil {
				return fmt.Errorf("effect '%s': %w", req.Capability, err)
			}
			if !applied {
				e.logger.Debug("observation dropped for unknown entity", "run_id", state.RunID, "key", obs.Key, "source", obs.Source)
			}
		}

		if res.Err == "" {
			state.LastFailure = nil
			content, err := payloadText(res.Payload)
			if err != nil {
				return err
			}
			state.Append(domain.Message{
				Role:       domain.RoleTool,
				ToolCallID: req.ID,
				Content:    content,
				CreatedAt:  e.now().UTC(),
			})
			return nil
		}

		if last := state.LastFailure; last != nil && last.Capability == req.Capability && last.Cause == res.Err {
			return &RepeatedFailureError{Node: node.Name, Capability: req.Capability, Cause: res.Err}
		}
		state.LastFailure = &domain.Failure{Capability: req.Capability, Cause: res.Err}

		if attempt < attempts {
			e.logger.Info("retrying effect", "run_id", state.RunID, "capability", req.Capability, "cause", res.Err)
			continue
		}

		e.logger.Info("effect failed", "run_id", state.RunID, "capability", req.Capability, "cause", res.Err)
		state.Append(domain.Message{
			Role:       domain.RoleTool,
			ToolCallID: req.ID,
			Content:    errorText(res.Err),
			IsError:    true,
			CreatedAt:  e.now().UTC(),
		})
		return nil
	}
}
