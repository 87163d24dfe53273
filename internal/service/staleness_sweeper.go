package service

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// StaleSweeper corre SweepStale cada interval, independiente del trafico.
type StaleSweeper struct {
	service    *OnboardingService
	interval   time.Duration
	staleAfter time.Duration
	logger     *zap.Logger
	now        func() time.Time
}

func NewStaleSweeper(svc *OnboardingService, interval, staleAfter time.Duration, logger *zap.Logger) *StaleSweeper {
	if logger == nil {
		logger = zap.NewNop()
	}
	if interval <= 0 {
		interval = time.Hour
	}
	if staleAfter <= 0 {
		staleAfter = 24 * time.Hour
	}
	return &StaleSweeper{
		service:    svc,
		interval:   interval,
		staleAfter: staleAfter,
		logger:     logger,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// Run bloquea hasta que ctx se cancela.
func (s *StaleSweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.SweepOnce(ctx)
		}
	}
}

func (s *StaleSweeper) SweepOnce(ctx context.Context) int {
	cutoff := s.now().Add(-s.staleAfter)
	n, err := s.service.SweepStale(ctx, cutoff)
	if err != nil {
		s.logger.Warn("stale sweep finished with errors", zap.Int("reset", n), zap.Error(err))
		return n
	}
	if n > 0 {
		s.logger.Info("stale registrations reset", zap.Int("reset", n), zap.Time("cutoff", cutoff))
	}
	return n
}
