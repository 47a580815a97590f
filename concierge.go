package concierge

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/aretw0/concierge/internal/logging"
	"github.com/aretw0/concierge/internal/runtime"
	"github.com/aretw0/concierge/pkg/domain"
	"github.com/aretw0/concierge/pkg/ports"
	"github.com/aretw0/concierge/pkg/session"
)

// Engine is the high-level entry point for the concierge library.
// It wraps the internal runtime with run identity, locking and persistence.
type Engine struct {
	runtime  *runtime.Engine
	sessions *session.Manager
	profile  ports.ProfileSource

	runtimeOpts []runtime.EngineOption
	sessionOpts []session.Option
	hooks       domain.LifecycleHooks
	logger      *slog.Logger
	newID       func() string
}

// Option defines a functional option for configuring the Engine.
type Option func(*Engine)

// WithLifecycleHooks registers observability hooks. Repeated calls merge.
func WithLifecycleHooks(hooks domain.LifecycleHooks) Option {
	return func(e *Engine) {
		e.hooks = e.hooks.Merge(hooks)
	}
}

// WithLogger sets a custom structured logger for the engine.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

// WithProfileSource sets where the user profile is read from when a run starts.
func WithProfileSource(src ports.ProfileSource) Option {
	return func(e *Engine) {
		e.profile = src
	}
}

// WithMaxSteps bounds node executions per run (0 disables the bound).
func WithMaxSteps(n int) Option {
	return func(e *Engine) {
		e.runtimeOpts = append(e.runtimeOpts, runtime.WithMaxSteps(n))
	}
}

// WithGates enables or disables pausing before gated nodes (default enabled).
func WithGates(enabled bool) Option {
	return func(e *Engine) {
		e.runtimeOpts = append(e.runtimeOpts, runtime.WithGates(enabled))
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		e.runtimeOpts = append(e.runtimeOpts, runtime.WithClock(now))
	}
}

// WithLocker serializes operations on the same run across processes.
func WithLocker(locker ports.RunLocker, ttl time.Duration) Option {
	return func(e *Engine) {
		e.sessionOpts = append(e.sessionOpts, session.WithLocker(locker))
		if ttl > 0 {
			e.sessionOpts = append(e.sessionOpts, session.WithLockTTL(ttl))
		}
	}
}

// WithIDGenerator overrides the run ID generator (default: UUIDv4).
func WithIDGenerator(fn func() string) Option {
	return func(e *Engine) {
		e.newID = fn
	}
}

// New initializes an Engine over a graph.
func New(graph *domain.Graph, decider ports.Decider, effects runtime.EffectResolver, store ports.StateStore, opts ...Option) (*Engine, error) {
	eng := &Engine{
		logger: logging.NewNop(),
		newID:  uuid.NewString,
	}
	for _, opt := range opts {
		opt(eng)
	}

	runtimeOpts := []runtime.EngineOption{
		runtime.WithLifecycleHooks(eng.hooks),
		runtime.WithLogger(eng.logger),
	}
	runtimeOpts = append(runtimeOpts, eng.runtimeOpts...)

	rt, err := runtime.NewEngine(graph, decider, effects, store, runtimeOpts...)
	if err != nil {
		return nil, err
	}
	eng.runtime = rt

	sessionOpts := append([]session.Option{session.WithLogger(eng.logger)}, eng.sessionOpts...)
	eng.sessions = session.NewManager(store, sessionOpts...)
	return eng, nil
}

// Graph returns the graph the engine runs.
func (e *Engine) Graph() *domain.Graph {
	return e.runtime.Graph()
}

// Start creates a run for the user request and drives it until it completes,
// fails or pauses at a gate.
func (e *Engine) Start(ctx context.Context, request string) (domain.Outcome, error) {
	return e.StartWithID(ctx, e.newID(), request)
}

// StartWithID is Start with a caller-chosen run ID.
// It fails with domain.ErrRunExists if the ID is taken.
func (e *Engine) StartWithID(ctx context.Context, runID, request string) (domain.Outcome, error) {
	if runID == "" {
		return domain.Outcome{}, errors.New("run ID is required")
	}
	var out *domain.TaskState
	err := e.sessions.WithLock(ctx, runID, func(ctx context.Context) error {
		store := e.sessions.Store()
		if _, err := store.Load(ctx, runID); err == nil {
			return fmt.Errorf("%w: %s", domain.ErrRunExists, runID)
		} else if !errors.Is(err, domain.ErrRunNotFound) {
			return fmt.Errorf("failed to check run existence: %w", err)
		}

		profile, err := e.loadProfile(ctx)
		if err != nil {
			return err
		}
		state := e.runtime.NewRun(runID, request, profile)
		if err := store.Save(ctx, runID, state); err != nil {
			return fmt.Errorf("failed to initialize run: %w", err)
		}
		e.logger.Info("run started", "run_id", runID)

		out, err = e.runtime.Run(ctx, state)
		return err
	})
	return outcome(runID, out, err)
}

// Resume answers the gate a pending run is waiting on.
func (e *Engine) Resume(ctx context.Context, runID string, approval domain.Approval) (domain.Outcome, error) {
	return e.drive(ctx, runID, func(ctx context.Context, state *domain.TaskState) (*domain.TaskState, error) {
		return e.runtime.Resume(ctx, state, approval)
	})
}

// Continue adds a follow-up user message to a completed run.
func (e *Engine) Continue(ctx context.Context, runID, message string) (domain.Outcome, error) {
	return e.drive(ctx, runID, func(ctx context.Context, state *domain.TaskState) (*domain.TaskState, error) {
		return e.runtime.Continue(ctx, state, message)
	})
}

// Run drives an active run again, e.g. after the process was interrupted.
func (e *Engine) Run(ctx context.Context, runID string) (domain.Outcome, error) {
	return e.drive(ctx, runID, e.runtime.Run)
}

func (e *Engine) drive(ctx context.Context, runID string, step func(context.Context, *domain.TaskState) (*domain.TaskState, error)) (domain.Outcome, error) {
	var out *domain.TaskState
	err := e.sessions.WithLock(ctx, runID, func(ctx context.Context) error {
		state, err := e.sessions.Store().Load(ctx, runID)
		if err != nil {
			return err
		}
		out, err = step(ctx, state)
		return err
	})
	return outcome(runID, out, err)
}

func outcome(runID string, state *domain.TaskState, err error) (domain.Outcome, error) {
	if state == nil {
		return domain.Outcome{RunID: runID}, err
	}
	return domain.OutcomeOf(state), err
}

func (e *Engine) loadProfile(ctx context.Context) (map[string]string, error) {
	if e.profile == nil {
		return map[string]string{}, nil
	}
	p, err := e.profile.Profile(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load user profile: %w", err)
	}
	return p, nil
}

// Inspect returns the persisted state of a run.
func (e *Engine) Inspect(ctx context.Context, runID string) (*domain.TaskState, error) {
	return e.sessions.Load(ctx, runID)
}

// Transcript returns the messages visible from the run's current context.
func (e *Engine) Transcript(ctx context.Context, runID string) ([]domain.Message, error) {
	state, err := e.Inspect(ctx, runID)
	if err != nil {
		return nil, err
	}
	return runtime.Visible(state), nil
}

// List returns the IDs of the stored runs.
func (e *Engine) List(ctx context.Context) ([]string, error) {
	return e.sessions.List(ctx)
}

// Delete removes a run.
func (e *Engine) Delete(ctx context.Context, runID string) error {
	return e.sessions.Delete(ctx, runID)
}
