package application

import (
	"context"
	"log/slog"
	"time"
)

// Sweeper periodically forces the release of reservations past their
// deadline. It is the liveness backstop for lost cancel and
// payment-failed signals: no reservation holds stock past its TTL
// indefinitely.
type Sweeper struct {
	log      *slog.Logger
	engine   *Engine
	interval time.Duration
}

func NewSweeper(log *slog.Logger, engine *Engine, interval time.Duration) *Sweeper {
	if interval <= 0 {
		interval = time.Minute
	}
	return &Sweeper{log: log, engine: engine, interval: interval}
}

func (s *Sweeper) Run(ctx context.Context) error {
	t := time.NewTicker(s.interval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			s.log.Info("sweeper stopping")
			return nil
		case <-t.C:
			released, err := s.engine.CleanupExpired(ctx)
			if err != nil {
				s.log.Error("expiry sweep failed", "err", err)
				continue
			}
			if released > 0 {
				s.log.Info("expired reservations released", "count", released)
			}
		}
	}
}
