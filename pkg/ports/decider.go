package ports

import (
	"context"

	"github.com/aretw0/concierge/pkg/domain"
)

// Decider is the language-model call behind decision nodes.
// Implementations must only return requests naming capabilities from input.Capabilities
// and must not emit more than one request when input.Parallel is false.
type Decider interface {
	Decide(ctx context.Context, input domain.DecisionInput) (domain.DecisionOutput, error)
}

// DeciderFunc adapts a function to the Decider interface.
type DeciderFunc func(ctx context.Context, input domain.DecisionInput) (domain.DecisionOutput, error)

// Decide calls f.
func (f DeciderFunc) Decide(ctx context.Context, input domain.DecisionInput) (domain.DecisionOutput, error) {
	return f(ctx, input)
}
