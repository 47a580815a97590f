package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/aretw0/concierge"
	"github.com/aretw0/concierge/internal/config"
	"github.com/aretw0/concierge/internal/presentation/tui"
	"github.com/aretw0/concierge/pkg/domain"
	"github.com/aretw0/concierge/pkg/runner"
)

// RunOptions contains all the configuration for the run, resume and continue commands.
type RunOptions struct {
	ConfigPath string
	Debug      bool

	// RunID names the run. Start generates one when empty.
	RunID   string
	Request string

	JSON         bool
	Conversation bool

	// AutoApprove answers every gate with yes; Headless answers no.
	AutoApprove bool
	Headless    bool

	// Approve and Deny answer the pending gate of resume without prompting.
	Approve bool
	Deny    string

	In  io.Reader
	Out io.Writer

	// BuildOptions are forwarded to Build.
	BuildOptions []BuildOption
}

func (o *RunOptions) streams() (io.Reader, io.Writer) {
	in, out := o.In, o.Out
	if in == nil {
		in = os.Stdin
	}
	if out == nil {
		out = os.Stdout
	}
	return in, out
}

func (o *RunOptions) interactive() bool {
	if o.JSON || o.Headless || o.In != nil {
		return false
	}
	return isTerminal(os.Stdin) && isTerminal(os.Stdout)
}

// LoadConfig reads the configuration, forcing debug logs when asked.
func LoadConfig(path string, debug bool) (config.Config, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return cfg, err
	}
	if debug {
		cfg.LogLevel = "debug"
	}
	return cfg, nil
}

func openStack(opts RunOptions) (*Stack, error) {
	cfg, err := LoadConfig(opts.ConfigPath, opts.Debug)
	if err != nil {
		return nil, err
	}
	return Build(cfg, opts.BuildOptions...)
}

func newRunner(opts RunOptions, stack *Stack) *runner.Runner {
	in, out := opts.streams()

	var handler runner.IOHandler
	if opts.JSON {
		handler = runner.NewJSONHandler(in, out)
	} else {
		var textOpts []runner.TextHandlerOption
		if opts.interactive() {
			textOpts = append(textOpts, runner.WithTextHandlerRenderer(tui.NewRenderer()))
		}
		handler = runner.NewTextHandler(in, out, textOpts...)
	}

	runnerOpts := []runner.Option{
		runner.WithInputHandler(handler),
		runner.WithLogger(stack.Logger),
		runner.WithConversation(opts.Conversation),
	}
	switch {
	case opts.AutoApprove:
		runnerOpts = append(runnerOpts, runner.WithApprovalPolicy(runner.AutoApprove()))
	case opts.Headless:
		runnerOpts = append(runnerOpts, runner.WithApprovalPolicy(runner.AutoDeny("no one is available to approve")))
	}
	return runner.NewRunner(runnerOpts...)
}

// namedDriver starts runs under a caller-chosen id.
type namedDriver struct {
	*concierge.Engine
	runID string
}

func (d namedDriver) Start(ctx context.Context, request string) (domain.Outcome, error) {
	if d.runID == "" {
		return d.Engine.Start(ctx, request)
	}
	return d.Engine.StartWithID(ctx, d.runID, request)
}

// Execute handles the 'run' command: it starts a run for the request (read
// from the input when empty) and drives it until it completes or fails.
func Execute(opts RunOptions) error {
	stack, err := openStack(opts)
	if err != nil {
		return err
	}
	defer stack.Close()

	_, out := opts.streams()
	if opts.interactive() {
		tui.PrintBanner(out)
	}

	sigCtx := NewSignalContext(context.Background())
	defer sigCtx.Cancel()

	r := newRunner(opts, stack)
	request := opts.Request
	if request == "" {
		request, err = r.Handler.Input(sigCtx)
		if err != nil {
			return handleExecutionError(err)
		}
	}

	driver := namedDriver{Engine: stack.Engine, runID: opts.RunID}
	final, runErr := r.Run(sigCtx, driver, request)
	return finish(sigCtx, out, opts, final, runErr)
}

// Resume answers the pending gate of a run and keeps driving it.
func Resume(opts RunOptions) error {
	if opts.Approve && opts.Deny != "" {
		return errors.New("--approve and --deny cannot be used together")
	}
	stack, err := openStack(opts)
	if err != nil {
		return err
	}
	defer stack.Close()
	_, out := opts.streams()

	sigCtx := NewSignalContext(context.Background())
	defer sigCtx.Cancel()

	var current domain.Outcome
	switch {
	case opts.Approve:
		current, err = stack.Engine.Resume(sigCtx, opts.RunID, domain.Approve())
	case opts.Deny != "":
		current, err = stack.Engine.Resume(sigCtx, opts.RunID, domain.Deny(opts.Deny))
	default:
		var state *domain.TaskState
		state, err = stack.Engine.Inspect(sigCtx, opts.RunID)
		if err == nil {
			current = domain.OutcomeOf(state)
		}
	}
	if err != nil {
		return err
	}

	final, runErr := newRunner(opts, stack).Drive(sigCtx, stack.Engine, current)
	return finish(sigCtx, out, opts, final, runErr)
}

// Continue appends a user message to a finished run and drives the new turn.
func Continue(opts RunOptions) error {
	stack, err := openStack(opts)
	if err != nil {
		return err
	}
	defer stack.Close()
	_, out := opts.streams()

	sigCtx := NewSignalContext(context.Background())
	defer sigCtx.Cancel()

	r := newRunner(opts, stack)
	message := opts.Request
	if message == "" {
		message, err = r.Handler.Input(sigCtx)
		if err != nil {
			return handleExecutionError(err)
		}
	}
	message, err = runner.SanitizeRequest(message)
	if err != nil {
		return err
	}

	current, err := stack.Engine.Continue(sigCtx, opts.RunID, message)
	if err != nil {
		return err
	}
	final, runErr := r.Drive(sigCtx, stack.Engine, current)
	return finish(sigCtx, out, opts, final, runErr)
}

func finish(sigCtx *SignalContext, out io.Writer, opts RunOptions, final domain.Outcome, runErr error) error {
	// If context was canceled (signal received), ensure runErr reflects it if it doesn't already
	if sigCtx.Err() != nil && runErr == nil {
		runErr = sigCtx.Err()
	}
	logCompletion(out, final.RunID, runErr, opts.JSON, sigCtx.Signal())
	if runErr == nil && final.Kind == domain.OutcomeFailed {
		return fmt.Errorf("run %s failed: %s", final.RunID, final.Reason)
	}
	return handleExecutionError(runErr)
}
