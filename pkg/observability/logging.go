package observability

import (
	"context"
	"log/slog"

	"github.com/aretw0/charter/pkg/domain"
)

// LoggingHooks writes one structured record per lifecycle event.
// Denied decisions and failed actions log at Warn, everything else at Info.
func LoggingHooks(logger *slog.Logger) domain.LifecycleHooks {
	return domain.LifecycleHooks{
		OnStateEnter: func(ctx context.Context, e *domain.StateEvent) {
			logger.InfoContext(ctx, "state_enter", "session_id", e.SessionID, "state", e.State, "role", e.Role)
		},
		OnStateLeave: func(ctx context.Context, e *domain.StateEvent) {
			logger.InfoContext(ctx, "state_leave", "session_id", e.SessionID, "state", e.State)
		},
		OnActionCall: func(ctx context.Context, e *domain.ActionEvent) {
			logger.InfoContext(ctx, "action_call",
				"session_id", e.SessionID,
				"state", e.State,
				"action", e.Action,
				"participant", e.Participant,
				"role", e.Role,
			)
		},
		OnActionReturn: func(ctx context.Context, e *domain.ActionEvent) {
			level := slog.LevelInfo
			if e.Outcome != domain.OutcomeSuccess {
				level = slog.LevelWarn
			}
			logger.Log(ctx, level, "action_return",
				"session_id", e.SessionID,
				"action", e.Action,
				"outcome", e.Outcome,
				"duration", e.Duration,
				"timed_out", e.TimedOut,
			)
		},
		OnDecision: func(ctx context.Context, e *domain.DecisionEvent) {
			if e.Decision.Allowed {
				logger.InfoContext(ctx, "decision",
					"session_id", e.SessionID,
					"participant", e.Decision.Participant,
					"action", e.Decision.Action,
					"allowed", true,
					"reason", e.Decision.Reason,
				)
				return
			}
			logger.WarnContext(ctx, "decision",
				"session_id", e.SessionID,
				"participant", e.Decision.Participant,
				"action", e.Decision.Action,
				"allowed", false,
				"explain", e.Decision.Explain(),
			)
		},
		OnSessionEnd: func(ctx context.Context, e *domain.SessionEvent) {
			logger.InfoContext(ctx, "session_end", "session_id", e.SessionID, "status", e.Status, "reason", e.Reason)
		},
	}
}
