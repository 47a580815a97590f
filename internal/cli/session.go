package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/aretw0/concierge/internal/agents"
	"github.com/aretw0/concierge/internal/presentation/graph"
	"github.com/aretw0/concierge/pkg/domain"
)

// SessionOptions configures the session management commands.
type SessionOptions struct {
	ConfigPath string
	Out        io.Writer

	// Transcript prints the visible messages instead of the raw state.
	Transcript bool

	BuildOptions []BuildOption
}

func (o SessionOptions) open() (*Stack, error) {
	return openStack(RunOptions{ConfigPath: o.ConfigPath, BuildOptions: o.BuildOptions})
}

// ListRuns prints every stored run with its status.
func ListRuns(ctx context.Context, opts SessionOptions) error {
	stack, err := opts.open()
	if err != nil {
		return err
	}
	defer stack.Close()

	ids, err := stack.Engine.List(ctx)
	if err != nil {
		return fmt.Errorf("error listing runs: %w", err)
	}
	if len(ids) == 0 {
		fmt.Fprintln(opts.Out, "No runs found.")
		return nil
	}

	fmt.Fprintln(opts.Out, "Runs:")
	for _, id := range ids {
		state, err := stack.Engine.Inspect(ctx, id)
		if err != nil {
			fmt.Fprintf(opts.Out, "- %s (unreadable: %v)\n", id, err)
			continue
		}
		fmt.Fprintf(opts.Out, "- %s %s\n", id, domain.OutcomeOf(state))
	}
	return nil
}

// InspectRun prints the state of a run as indented JSON.
func InspectRun(ctx context.Context, opts SessionOptions, runID string) error {
	stack, err := opts.open()
	if err != nil {
		return err
	}
	defer stack.Close()

	var v any
	if opts.Transcript {
		v, err = stack.Engine.Transcript(ctx, runID)
	} else {
		v, err = stack.Engine.Inspect(ctx, runID)
	}
	if err != nil {
		return fmt.Errorf("error loading run '%s': %w", runID, err)
	}

	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("error marshaling state: %w", err)
	}
	fmt.Fprintln(opts.Out, string(data))
	return nil
}

// RemoveRuns deletes runs, reporting every failure.
func RemoveRuns(ctx context.Context, opts SessionOptions, runIDs []string) error {
	stack, err := opts.open()
	if err != nil {
		return err
	}
	defer stack.Close()

	var errs []error
	for _, id := range runIDs {
		if err := stack.Engine.Delete(ctx, id); err != nil {
			errs = append(errs, fmt.Errorf("error removing '%s': %w", id, err))
			continue
		}
		fmt.Fprintf(opts.Out, "Removed run '%s'\n", id)
	}
	return errors.Join(errs...)
}

// PrintGraph writes the Mermaid diagram of the concierge graph, highlighting
// where runID is parked when given.
func PrintGraph(ctx context.Context, opts SessionOptions, runID string) error {
	if runID == "" {
		g, err := agents.Graph()
		if err != nil {
			return err
		}
		fmt.Fprint(opts.Out, graph.GenerateMermaid(g, nil))
		return nil
	}

	stack, err := opts.open()
	if err != nil {
		return err
	}
	defer stack.Close()

	state, err := stack.Engine.Inspect(ctx, runID)
	if err != nil {
		return fmt.Errorf("error loading run '%s': %w", runID, err)
	}
	fmt.Fprint(opts.Out, graph.GenerateMermaid(stack.Engine.Graph(), graph.OverlayFor(state, nil)))
	return nil
}
