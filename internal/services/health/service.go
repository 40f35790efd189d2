package health

import (
	"context"
	"database/sql"
	"time"
)

// Service reports process liveness and database reachability.
type Service struct {
	DB      *sql.DB
	Version string
}

// Report returns the health payload served at /api/v1/health.
func (s *Service) Report(ctx context.Context) map[string]any {
	out := map[string]any{
		"ok":      true,
		"version": s.Version,
		"time":    time.Now().UTC().Format(time.RFC3339),
	}
	if s.DB != nil {
		pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		defer cancel()
		if err := s.DB.PingContext(pingCtx); err != nil {
			out["db"] = "unreachable"
		} else {
			out["db"] = "ok"
		}
	} else {
		out["db"] = "memory"
	}
	return out
}
