package runner

import (
	"context"

	"github.com/aretw0/concierge/pkg/domain"
)

// Driver is the run API the runner drives. *concierge.Engine implements it.
type Driver interface {
	Start(ctx context.Context, request string) (domain.Outcome, error)
	Resume(ctx context.Context, runID string, approval domain.Approval) (domain.Outcome, error)
	Continue(ctx context.Context, runID, message string) (domain.Outcome, error)
}

// IOHandler defines the strategy for interacting with the user.
// This allows switching between Text (CLI/TUI) and JSON (Structured) modes.
type IOHandler interface {
	// Output presents an outcome: the final answer, the pending gate or the failure.
	Output(ctx context.Context, out domain.Outcome) error

	// Input reads a message from the user. io.EOF ends the conversation.
	Input(ctx context.Context) (string, error)

	// Approve asks the user to answer a pending gate.
	Approve(ctx context.Context, out domain.Outcome) (domain.Approval, error)

	// SystemOutput presents a meta-message to the user (e.g. status updates).
	// This is distinct from content rendering.
	SystemOutput(ctx context.Context, msg string) error
}
