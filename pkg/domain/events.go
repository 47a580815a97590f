package domain

import (
	"context"
	"time"
)

// EventType defines the category of the event.
type EventType string

const (
	EventNodeEnter    EventType = "node_enter"
	EventNodeLeave    EventType = "node_leave"
	EventEffectCall   EventType = "effect_call"
	EventEffectReturn EventType = "effect_return"
	EventPause        EventType = "pause"
	EventCheckpoint   EventType = "checkpoint"
	EventRunEnd       EventType = "run_end"
)

// EventBase contains common fields for all events.
type EventBase struct {
	Timestamp time.Time `json:"timestamp"`
	Type      EventType `json:"type"`
	RunID     string    `json:"run_id"`
}

// NodeEvent represents entry or exit from a node.
type NodeEvent struct {
	EventBase
	Node    string   `json:"node"`
	Kind    NodeKind `json:"kind"`
	Context string   `json:"context"`
}

// EffectEvent represents one effect invocation.
type EffectEvent struct {
	EventBase
	Node       string        `json:"node"`
	Capability string        `json:"capability"`
	Args       any           `json:"args,omitempty"`
	Output     any           `json:"output,omitempty"`
	IsError    bool          `json:"is_error,omitempty"`
	Duration   time.Duration `json:"duration,omitempty"`
}

// CheckpointEvent is emitted after a state has been persisted.
type CheckpointEvent struct {
	EventBase
	Diff *StateDiff `json:"diff"`
}

// RunEvent is emitted when Start, Resume or Continue returns.
type RunEvent struct {
	EventBase
	Outcome Outcome `json:"outcome"`
}

// LifecycleHooks defines callbacks for engine observability.
type LifecycleHooks struct {
	OnNodeEnter    func(context.Context, *NodeEvent)
	OnNodeLeave    func(context.Context, *NodeEvent)
	OnEffectCall   func(context.Context, *EffectEvent)
	OnEffectReturn func(context.Context, *EffectEvent)
	OnPause        func(context.Context, *NodeEvent)
	OnCheckpoint   func(context.Context, *CheckpointEvent)
	OnRunEnd       func(context.Context, *RunEvent)
}

// Merge combines two hook sets; both callbacks run when both are set.
func (h LifecycleHooks) Merge(other LifecycleHooks) LifecycleHooks {
	return LifecycleHooks{
		OnNodeEnter:    chain(h.OnNodeEnter, other.OnNodeEnter),
		OnNodeLeave:    chain(h.OnNodeLeave, other.OnNodeLeave),
		OnEffectCall:   chain(h.OnEffectCall, other.OnEffectCall),
		OnEffectReturn: chain(h.OnEffectReturn, other.OnEffectReturn),
		OnPause:        chain(h.OnPause, other.OnPause),
		OnCheckpoint:   chain(h.OnCheckpoint, other.OnCheckpoint),
		OnRunEnd:       chain(h.OnRunEnd, other.OnRunEnd),
	}
}

func chain[T any](a, b func(context.Context, T)) func(context.Context, T) {
	if a == nil {
		return b
	}
	if b == nil {
		return a
	}
	return func(ctx context.Context, ev T) {
		a(ctx, ev)
		b(ctx, ev)
	}
}
