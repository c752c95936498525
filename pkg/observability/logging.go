package observability

import (
	"context"
	"log/slog"

	"github.com/aretw0/chainlens/pkg/domain"
)

// LogHooks returns hooks that log every call at debug and every record at
// info.
func LogHooks(logger *slog.Logger) domain.Hooks {
	return domain.Hooks{
		OnCall: func(ctx context.Context, c *domain.CallRecord) {
			top := c.Top()
			logger.DebugContext(ctx, "call",
				"path", top.Path.String(),
				"method", top.Method.String(),
				"depth", len(c.Stack),
				"duration", c.Perf.Duration(),
				"error", c.Error,
			)
		},
		OnRecord: func(ctx context.Context, r *domain.Record) {
			logger.InfoContext(ctx, "record",
				"record_id", r.RecordID,
				"app_id", r.AppID,
				"calls", len(r.Calls),
				"duration", r.Perf.Duration(),
				"error", r.MainError,
			)
		},
	}
}
