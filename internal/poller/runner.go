// internal/poller/runner.go
package poller

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Run polls once immediately, then once per interval until the context is
// cancelled. With zero gateways it logs once and returns instead of spinning
// against no work.
func (s *Scheduler) Run(ctx context.Context) {
	if len(s.gateways) == 0 {
		s.logger.Warn("no gateways configured")
		return
	}

	s.logger.Info("poller started",
		zap.Duration("interval", s.cfg.Interval),
		zap.Int("gateways", len(s.gateways)))

	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()

	s.PollCycle(ctx)

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("poller stopped")
			return
		case <-ticker.C:
			s.PollCycle(ctx)
		}
	}
}
