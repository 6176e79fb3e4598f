package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/aussiebroadwan/authify/pkg/jwtx"
	"github.com/aussiebroadwan/authify/pkg/slogx"
	"go.opentelemetry.io/otel/attribute"
)

// KeyRotationService replaces the JWT signing keys at runtime.
//
// In ephemeral mode the new keys live in memory only and retired keys verify
// until restart. In persistent mode new keys are sealed and stored first,
// then the old ones are retired in the store, where they stay verifiable for
// a grace period before housekeeping removes them. Other instances pick the
// new keys up on their next reload.
type KeyRotationService struct {
	KeyManager *jwtx.KeyManager
}

// Rotate swaps every signing key for a fresh one.
func (s *KeyRotationService) Rotate(ctx context.Context) (*jwtx.RotateResult, error) {
	ctx, span := startSpan(ctx, "RotateKeys")
	res, err := s.KeyManager.Rotate(ctx)
	if err == nil {
		span.SetAttributes(
			attribute.StringSlice("auth.keys.active", res.Active),
			attribute.StringSlice("auth.keys.retired", res.Retired),
		)
	}
	endSpan(span, err)
	if err != nil {
		return nil, fmt.Errorf("rotate signing keys: %w", err)
	}

	slogx.FromContext(ctx).Info("signing keys rotated",
		slog.Any("active", res.Active),
		slog.Any("retired", res.Retired),
	)
	return res, nil
}
