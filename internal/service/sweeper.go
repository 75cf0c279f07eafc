package service

import (
	"context"
	"time"

	"github.com/Skotchmaster/tictactoe/pkg/logging"
)

// RunSweeper calls Sweep every interval until ctx is done. Failures are
// logged and retried on the next tick.
func (s *AuthService) RunSweeper(ctx context.Context, interval time.Duration) {
	l := logging.FromContext(ctx).With("svc", "auth.sweeper")
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			refresh, revoked, err := s.Sweep(ctx)
			if err != nil {
				l.Warn("sweep_failed", "error", err)
				continue
			}
			if refresh > 0 || revoked > 0 {
				l.Info("sweep_completed", "refresh", refresh, "revoked", revoked)
			}
		}
	}
}
