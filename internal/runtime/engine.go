package runtime

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/aretw0/concierge/internal/logging"
	"github.com/aretw0/concierge/pkg/domain"
	"github.com/aretw0/concierge/pkg/ports"
)

// EffectResolver finds the effect serving a capability.
type EffectResolver interface {
	Lookup(capability string) (ports.Effect, bool)
}

// Engine is the core state machine runner.
// It drives one run at a time per call; callers serialize calls for the same run.
type Engine struct {
	graph     *domain.Graph
	decider   ports.Decider
	effects   EffectResolver
	store     ports.StateStore
	templates templates

	hooks    domain.LifecycleHooks
	logger   *slog.Logger
	maxSteps int
	gates    bool
	now      func() time.Time
}

// EngineOption configures the Engine.
type EngineOption func(*Engine)

// WithLifecycleHooks registers observability hooks.
func WithLifecycleHooks(hooks domain.LifecycleHooks) EngineOption {
	return func(e *Engine) {
		e.hooks = hooks
	}
}

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) EngineOption {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithMaxSteps bounds the number of node executions of a run (0 disables the bound).
func WithMaxSteps(n int) EngineOption {
	return func(e *Engine) {
		e.maxSteps = n
	}
}

// WithGates enables or disables approval gates. With gates disabled, gated
// nodes run immediately.
func WithGates(enabled bool) EngineOption {
	return func(e *Engine) {
		e.gates = enabled
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) EngineOption {
	return func(e *Engine) {
		e.now = now
	}
}

// NewEngine validates the graph and creates an engine.
func NewEngine(graph *domain.Graph, decider ports.Decider, effects EffectResolver, store ports.StateStore, opts ...EngineOption) (*Engine, error) {
	if err := graph.Validate(); err != nil {
		return nil, err
	}
	tmpls, err := parseTemplates(graph)
	if err != nil {
		return nil, err
	}

	e := &Engine{
		graph:     graph,
		decider:   decider,
		effects:   effects,
		store:     store,
		templates: tmpls,
		logger:    logging.NewNop(),
		maxSteps:  200,
		gates:     true,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// Graph returns the graph the engine runs.
func (e *Engine) Graph() *domain.Graph {
	return e.graph
}

// NewRun builds the initial state of a run: the user request is the first
// message and the root context's home node runs first.
func (e *Engine) NewRun(runID, request string, profile map[string]string) *domain.TaskState {
	state := domain.NewTaskState(runID, e.graph.Root, profile)
	state.CreatedAt = e.now().UTC()
	state.Append(domain.Message{Role: domain.RoleUser, Content: request, CreatedAt: e.now().UTC()})
	state.NextNode, _ = e.graph.Home(e.graph.Root)
	return state
}

// Run drives a run until it completes, fails or pauses at a gate.
// Fatal run errors are recorded in the returned state (StatusFailed); the error
// return is reserved for persistence failures and context cancellation.
func (e *Engine) Run(ctx context.Context, state *domain.TaskState) (*domain.TaskState, error) {
	if state.Terminal() {
		return state, domain.ErrRunFinished
	}
	if state.Status == domain.StatusPending {
		return state, nil
	}
	return e.run(ctx, state, false)
}

// Resume answers a pending gate.
// Approval runs the gated node as if no pause occurred. Denial injects one
// synthetic tool result and re-enters the decision node that made the request.
// Approving an active run (e.g. one interrupted by cancellation) continues it.
func (e *Engine) Resume(ctx context.Context, state *domain.TaskState, approval domain.Approval) (*domain.TaskState, error) {
	if state.Terminal() {
		return state, domain.ErrRunFinished
	}
	if state.Status != domain.StatusPending {
		if approval.Approved && state.Status == domain.StatusActive {
			return e.run(ctx, state, false)
		}
		return state, domain.ErrNotPending
	}

	next := state.Clone()
	next.Status = domain.StatusActive
	next.PendingNode = ""

	if approval.Approved {
		e.logger.Info("gate approved", "run_id", state.RunID, "node", state.PendingNode)
		return e.run(ctx, next, true)
	}

	e.logger.Info("gate denied", "run_id", state.RunID, "node", state.PendingNode, "reason", approval.Reason)
	if len(next.Requests) > 0 {
		next.Append(domain.Message{
			Role:       domain.RoleTool,
			ToolCallID: next.Requests[0].ID,
			Content:    denialText(approval.Reason),
			Synthetic:  true,
			CreatedAt:  e.now().UTC(),
		})
	}
	next.Requests = nil
	next.NextNode = next.LastDecision
	if err := e.checkpoint(ctx, state, next); err != nil {
		return state, err
	}
	return e.run(ctx, next, false)
}

// Continue appends a follow-up user message to a completed run and drives it again
// from the root context.
func (e *Engine) Continue(ctx context.Context, state *domain.TaskState, message string) (*domain.TaskState, error) {
	if state.Status != domain.StatusCompleted {
		return state, fmt.Errorf("%w: status is %s", domain.ErrNotCompleted, state.Status)
	}

	next := state.Clone()
	next.ReopenRoot(e.graph.Root)
	next.Status = domain.StatusActive
	next.FinalText = ""
	next.LastFailure = nil
	next.Append(domain.Message{Role: domain.RoleUser, Content: message, CreatedAt: e.now().UTC()})
	next.NextNode, _ = e.graph.Home(e.graph.Root)
	if err := e.checkpoint(ctx, state, next); err != nil {
		return state, err
	}
	return e.run(ctx, next, false)
}

func (e *Engine) run(ctx context.Context, state *domain.TaskState, approved bool) (*domain.TaskState, error) {
	out, err := e.loop(ctx, state, approved)
	if out != nil && out.Status != domain.StatusActive {
		e.emitRunEnd(ctx, out)
	}
	return out, err
}

func (e *Engine) loop(ctx context.Context, state *domain.TaskState, approved bool) (*domain.TaskState, error) {
	for state.Status == domain.StatusActive {
		if err := ctx.Err(); err != nil {
			return state, err
		}
		if e.maxSteps > 0 && state.Steps >= e.maxSteps {
			return e.fail(ctx, state, fmt.Errorf("%w (%d)", domain.ErrStepLimit, e.maxSteps))
		}

		node, ok := e.graph.Node(state.NextNode)
		if !ok {
			return e.fail(ctx, state, &UnknownNodeError{Node: state.NextNode})
		}

		// Halt before gated nodes. Nothing is appended so an approved resume
		// produces the same history as a run that never paused.
		if node.Gated && e.gates && !approved {
			paused := state.Clone()
			paused.Status = domain.StatusPending
			paused.PendingNode = node.Name
			e.emitPause(ctx, node, paused)
			e.logger.Info("awaiting approval", "run_id", state.RunID, "node", node.Name)
			if err := e.checkpoint(ctx, state, paused); err != nil {
				return state, err
			}
			return paused, nil
		}
		approved = false

		next := state.Clone()
		next.Steps++
		e.emitNodeEnter(ctx, node, next)
		e.logger.Debug("executing node", "run_id", state.RunID, "node", node.Name, "kind", node.Kind)

		if err := e.execute(ctx, node, next); err != nil {
			if ctx.Err() != nil {
				return state, err
			}
			return e.fail(ctx, state, err)
		}
		e.emitNodeLeave(ctx, node, next)

		if err := e.checkpoint(ctx, state, next); err != nil {
			return state, err
		}
		state = next
	}
	return state, nil
}

func (e *Engine) execute(ctx context.Context, node *domain.Node, state *domain.TaskState) error {
	switch node.Kind {
	case domain.NodeDecision:
		return e.decide(ctx, node, state)
	case domain.NodeEffect:
		return e.invokeEffects(ctx, node, state)
	case domain.NodeEntry:
		return e.enter(node, state)
	case domain.NodeExit:
		return e.exit(node, state)
	}
	return fmt.Errorf("node '%s' has unknown kind '%s'", node.Name, node.Kind)
}

// fail stamps the last good checkpoint as failed and persists it.
func (e *Engine) fail(ctx context.Context, last *domain.TaskState, cause error) (*domain.TaskState, error) {
	e.logger.Error("run failed", "run_id", last.RunID, "node", last.NextNode, "err", cause)

	failed := last.Clone()
	failed.Status = domain.StatusFailed
	failed.PendingNode = ""
	failed.FailureReason = cause.Error()
	if err := e.checkpoint(context.WithoutCancel(ctx), last, failed); err != nil {
		return last, errors.Join(cause, err)
	}
	return failed, nil
}

func (e *Engine) checkpoint(ctx context.Context, prev, next *domain.TaskState) error {
	next.UpdatedAt = e.now().UTC()
	if err := e.store.Save(ctx, next.RunID, next); err != nil {
		return fmt.Errorf("failed to checkpoint run %s: %w", next.RunID, err)
	}
	e.emitCheckpoint(ctx, prev, next)
	return nil
}
