package runtime

import (
	"context"
	"time"

	"github.com/aretw0/concierge/pkg/domain"
)

func (e *Engine) base(t domain.EventType, runID string) domain.EventBase {
	return domain.EventBase{Timestamp: e.now(), Type: t, RunID: runID}
}

func (e *Engine) nodeEvent(t domain.EventType, node *domain.Node, state *domain.TaskState) *domain.NodeEvent {
	ev := &domain.NodeEvent{EventBase: e.base(t, state.RunID), Node: node.Name, Kind: node.Kind}
	if top, ok := state.Top(); ok {
		ev.Context = top.Name
	}
	return ev
}

func (e *Engine) emitNodeEnter(ctx context.Context, node *domain.Node, state *domain.TaskState) {
	if e.hooks.OnNodeEnter != nil {
		e.hooks.OnNodeEnter(ctx, e.nodeEvent(domain.EventNodeEnter, node, state))
	}
}

func (e *Engine) emitNodeLeave(ctx context.Context, node *domain.Node, state *domain.TaskState) {
	if e.hooks.OnNodeLeave != nil {
		e.hooks.OnNodeLeave(ctx, e.nodeEvent(domain.EventNodeLeave, node, state))
	}
}

func (e *Engine) emitPause(ctx context.Context, node *domain.Node, state *domain.TaskState) {
	if e.hooks.OnPause != nil {
		e.hooks.OnPause(ctx, e.nodeEvent(domain.EventPause, node, state))
	}
}

func (e *Engine) emitEffectCall(ctx context.Context, runID, node string, req domain.Request) {
	if e.hooks.OnEffectCall != nil {
		e.hooks.OnEffectCall(ctx, &domain.EffectEvent{
			EventBase:  e.base(domain.EventEffectCall, runID),
			Node:       node,
			Capability: req.Capability,
			Args:       req.Args,
		})
	}
}

func (e *Engine) emitEffectReturn(ctx context.Context, runID, node string, req domain.Request, output any, isError bool, took time.Duration) {
	if e.hooks.OnEffectReturn != nil {
		e.hooks.OnEffectReturn(ctx, &domain.EffectEvent{
			EventBase:  e.base(domain.EventEffectReturn, runID),
			Node:       node,
			Capability: req.Capability,
			Args:       req.Args,
			Output:     output,
			IsError:    isError,
			Duration:   took,
		})
	}
}

func (e *Engine) emitCheckpoint(ctx context.Context, prev, next *domain.TaskState) {
	if e.hooks.OnCheckpoint != nil {
		e.hooks.OnCheckpoint(ctx, &domain.CheckpointEvent{
			EventBase: e.base(domain.EventCheckpoint, next.RunID),
			Diff:      domain.Diff(prev, next),
		})
	}
}

func (e *Engine) emitRunEnd(ctx context.Context, state *domain.TaskState) {
	if e.hooks.OnRunEnd != nil {
		e.hooks.OnRunEnd(ctx, &domain.RunEvent{
			EventBase: e.base(domain.EventRunEnd, state.RunID),
			Outcome:   domain.OutcomeOf(state),
		})
	}
}
