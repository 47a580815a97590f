package runner

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/aretw0/concierge/internal/logging"
	"github.com/aretw0/concierge/pkg/domain"
)

// Runner handles the execution loop of a run using provided IO.
// It uses an IOHandler strategy to abstract the interaction mode (Text vs JSON).
type Runner struct {
	// Handler is the strategy for IO.
	Handler IOHandler

	// Policy answers gates. If nil, the handler is asked.
	Policy ApprovalPolicy

	// Logger is used for internal debug logging.
	Logger *slog.Logger

	// Conversation keeps reading follow-up messages after each completed turn.
	Conversation bool
}

// Option defines a functional option for configuring the Runner.
type Option func(*Runner)

// WithInputHandler configures a custom IOHandler.
func WithInputHandler(handler IOHandler) Option {
	return func(r *Runner) {
		r.Handler = handler
	}
}

// WithApprovalPolicy configures how gates are answered.
func WithApprovalPolicy(policy ApprovalPolicy) Option {
	return func(r *Runner) {
		r.Policy = policy
	}
}

// WithLogger configures the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Runner) {
		r.Logger = logger
	}
}

// WithConversation enables follow-up turns.
func WithConversation(enabled bool) Option {
	return func(r *Runner) {
		r.Conversation = enabled
	}
}

// NewRunner creates a new Runner. Without a handler it uses a TextHandler on
// stdin and stdout.
func NewRunner(opts ...Option) *Runner {
	r := &Runner{Logger: logging.NewNop()}
	for _, opt := range opts {
		opt(r)
	}
	if r.Handler == nil {
		r.Handler = NewTextHandler(nil, nil)
	}
	if r.Policy == nil {
		r.Policy = InteractiveApproval(r.Handler)
	}
	return r
}

// Run starts a run for the request and drives it.
func (r *Runner) Run(ctx context.Context, d Driver, request string) (domain.Outcome, error) {
	request, err := SanitizeRequest(request)
	if err != nil {
		return domain.Outcome{}, err
	}
	out, err := d.Start(ctx, request)
	if err != nil {
		return out, err
	}
	return r.Drive(ctx, d, out)
}

// Drive continues from an outcome already obtained, e.g. a pending run loaded
// from the store, until the run stops needing the user.
func (r *Runner) Drive(ctx context.Context, d Driver, out domain.Outcome) (domain.Outcome, error) {
	for {
		if err := ctx.Err(); err != nil {
			return out, err
		}
		if err := r.Handler.Output(ctx, out); err != nil {
			return out, fmt.Errorf("output error: %w", err)
		}

		var err error
		switch out.Kind {
		case domain.OutcomePending:
			out, err = r.resume(ctx, d, out)
		case domain.OutcomeCompleted:
			if !r.Conversation {
				return out, nil
			}
			msg, err := r.nextMessage(ctx)
			if errors.Is(err, io.EOF) {
				return out, nil
			}
			if err != nil {
				return out, fmt.Errorf("input error: %w", err)
			}
			r.Logger.Debug("follow-up", "run_id", out.RunID)
			out, err = d.Continue(ctx, out.RunID, msg)
			if err != nil {
				return out, err
			}
			continue
		default:
			return out, nil
		}
		if err != nil {
			return out, err
		}
	}
}

// nextMessage skips blank lines.
func (r *Runner) nextMessage(ctx context.Context) (string, error) {
	for {
		msg, err := r.Handler.Input(ctx)
		if err != nil {
			return "", err
		}
		if msg != "" {
			return msg, nil
		}
	}
}

func (r *Runner) resume(ctx context.Context, d Driver, out domain.Outcome) (domain.Outcome, error) {
	approval, err := r.Policy(ctx, out)
	if err != nil {
		return out, fmt.Errorf("approval error: %w", err)
	}
	r.Logger.Info("gate answered", "run_id", out.RunID, "node", out.Node, "approved", approval.Approved)
	if !approval.Approved {
		_ = r.Handler.SystemOutput(ctx, "Request denied.")
	}
	return d.Resume(ctx, out.RunID, approval)
}
