package observability

import (
	"context"
	"log/slog"

	"github.com/aretw0/concierge/pkg/domain"
)

// AuditHooks logs every lifecycle event. Effect arguments are omitted because
// they may carry profile data.
func AuditHooks(logger *slog.Logger) domain.LifecycleHooks {
	return domain.LifecycleHooks{
		OnNodeEnter: func(ctx context.Context, e *domain.NodeEvent) {
			logger.DebugContext(ctx, "node_enter", "run_id", e.RunID, "node", e.Node, "kind", e.Kind, "context", e.Context)
		},
		OnNodeLeave: func(ctx context.Context, e *domain.NodeEvent) {
			logger.DebugContext(ctx, "node_leave", "run_id", e.RunID, "node", e.Node)
		},
		OnEffectCall: func(ctx context.Context, e *domain.EffectEvent) {
			logger.InfoContext(ctx, "effect_call", "run_id", e.RunID, "node", e.Node, "capability", e.Capability)
		},
		OnEffectReturn: func(ctx context.Context, e *domain.EffectEvent) {
			level := slog.LevelInfo
			if e.IsError {
				level = slog.LevelWarn
			}
			logger.Log(ctx, level, "effect_return",
				"run_id", e.RunID,
				"capability", e.Capability,
				"is_error", e.IsError,
				"duration", e.Duration,
			)
		},
		OnPause: func(ctx context.Context, e *domain.NodeEvent) {
			logger.InfoContext(ctx, "run_paused", "run_id", e.RunID, "node", e.Node)
		},
		OnRunEnd: func(ctx context.Context, e *domain.RunEvent) {
			logger.InfoContext(ctx, "run_end", "run_id", e.RunID, "outcome", e.Outcome.String())
		},
	}
}
