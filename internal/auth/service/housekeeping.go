package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/aussiebroadwan/authify/internal/auth/store"
	"github.com/aussiebroadwan/authify/pkg/jwtx"
)

// HousekeepingService periodically removes records that can no longer be
// used: expired refresh and verification tokens, used or expired reset
// tokens, and retired signing keys past their grace period. Nothing relies
// on it for correctness; expired tokens are rejected on use regardless.
type HousekeepingService struct {
	Store      store.Store
	KeyManager *jwtx.KeyManager // optional; reloaded after each sweep
	Logger     *slog.Logger
	Interval   time.Duration

	// Now is overridable in tests.
	Now func() time.Time

	stopCh chan struct{}
	doneCh chan struct{}
}

// NewHousekeepingService creates a new housekeeping service with the given interval.
// If interval is 0 or negative, defaults to 1 hour.
func NewHousekeepingService(st store.Store, km *jwtx.KeyManager, logger *slog.Logger, interval time.Duration) *HousekeepingService {
	if interval <= 0 {
		interval = time.Hour
	}

	return &HousekeepingService{
		Store:      st,
		KeyManager: km,
		Logger:     logger,
		Interval:   interval,
		stopCh:     make(chan struct{}),
		doneCh:     make(chan struct{}),
	}
}

// Start begins the background worker. Call Stop to shut it down.
func (s *HousekeepingService) Start() {
	go s.run()
	s.Logger.Info("housekeeping service started", slog.Duration("interval", s.Interval))
}

// Stop blocks until the worker has finished any in-progress sweep.
func (s *HousekeepingService) Stop() {
	close(s.stopCh)
	<-s.doneCh
	s.Logger.Info("housekeeping service stopped")
}

func (s *HousekeepingService) run() {
	defer close(s.doneCh)

	ticker := time.NewTicker(s.Interval)
	defer ticker.Stop()

	s.Sweep(context.Background())

	for {
		select {
		case <-ticker.C:
			s.Sweep(context.Background())
		case <-s.stopCh:
			return
		}
	}
}

// SweepResult counts what a sweep removed.
type SweepResult struct {
	RefreshTokens      int64
	ResetTokens        int64
	VerificationTokens int64
	SigningKeys        int64
}

// Sweep runs one cleanup pass. Each step is independent; a failing step is
// logged and the rest still run.
func (s *HousekeepingService) Sweep(ctx context.Context) SweepResult {
	now := time.Now().UTC()
	if s.Now != nil {
		now = s.Now().UTC()
	}

	var res SweepResult
	steps := []struct {
		name string
		n    *int64
		fn   func(context.Context, time.Time) (int64, error)
	}{
		{"refresh_tokens", &res.RefreshTokens, s.Store.RefreshTokens().DeleteExpiredRefreshTokens},
		{"reset_tokens", &res.ResetTokens, s.Store.ResetTokens().DeleteStaleResetTokens},
		{"verification_tokens", &res.VerificationTokens, s.Store.VerificationTokens().DeleteExpiredVerificationTokens},
		{"signing_keys", &res.SigningKeys, s.Store.SigningKeys().DeleteExpiredSigningKeys},
	}

	for _, step := range steps {
		n, err := step.fn(ctx, now)
		if err != nil {
			s.Logger.Error("housekeeping step failed", slog.String("step", step.name), slog.Any("error", err))
			continue
		}
		*step.n = n
	}

	if s.KeyManager != nil {
		if err := s.KeyManager.Reload(ctx); err != nil {
			s.Logger.Error("signing key reload failed", slog.Any("error", err))
		}
	}

	s.Logger.Info("housekeeping sweep completed",
		slog.Int64("refresh_tokens", res.RefreshTokens),
		slog.Int64("reset_tokens", res.ResetTokens),
		slog.Int64("verification_tokens", res.VerificationTokens),
		slog.Int64("signing_keys", res.SigningKeys),
	)
	return res
}
