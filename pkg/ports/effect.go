package ports

import (
	"context"

	"github.com/aretw0/concierge/pkg/domain"
)

// Effect performs exactly one external operation for a request.
//
// Recoverable failures (bad arguments, a 404, a refused form) are reported through
// EffectResult.Err or a plain error. Errors wrapping domain.ErrServiceUnavailable
// abort the run.
type Effect interface {
	Invoke(ctx context.Context, req domain.Request) (domain.EffectResult, error)
}

// EffectFunc adapts a function to the Effect interface.
type EffectFunc func(ctx context.Context, req domain.Request) (domain.EffectResult, error)

// Invoke calls f.
func (f EffectFunc) Invoke(ctx context.Context, req domain.Request) (domain.EffectResult, error) {
	return f(ctx, req)
}

// ProfileSource loads the user profile used to fill forms.
type ProfileSource interface {
	Profile(ctx context.Context) (map[string]string, error)
}
