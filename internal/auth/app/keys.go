package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/aussiebroadwan/authify/internal/auth/store"
	"github.com/aussiebroadwan/authify/pkg/cryptox"
	"github.com/aussiebroadwan/authify/pkg/jwtx"
)

// InitAuthKeys creates the KeyManager for the configured storage mode.
//
// Storage modes:
//   - "ephemeral": keys are generated on startup and held only in memory.
//     Every access token becomes invalid when the service restarts, and
//     instances can't verify each other's tokens.
//   - "persistent": keys are sealed with the master key and stored in the
//     database. Tokens survive restarts and every instance sharing the
//     database verifies every other instance's tokens.
//
// Supported algorithms: EdDSA, ES256
func InitAuthKeys(ctx context.Context, cfg Config, db store.Store, logger *slog.Logger) (*jwtx.KeyManager, error) {
	opts := jwtx.KeyManagerOptions{
		Algorithm: cfg.Algorithm,
		Issuer:    cfg.Issuer,
		NumKeys:   cfg.NumKeys,
	}

	switch cfg.KeyStorageMode {
	case KeyStoragePersistent:
		sealer, err := cryptox.LoadSealer(cfg.MasterKeyFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load master key: %w", err)
		}
		opts.Store = store.NewKeyStoreAdapter(db)
		opts.Sealer = sealer

		logger.Info("initializing persistent key manager",
			"algorithm", cfg.Algorithm,
			"num_keys", cfg.NumKeys,
			"master_key_file", cfg.MasterKeyFile,
		)

		km, err := jwtx.NewPersistentKeyManager(ctx, opts)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize persistent key manager: %w", err)
		}
		logger.Info("persistent key mode enabled - tokens will survive restarts")
		return km, nil

	default:
		logger.Info("initializing ephemeral key manager",
			"algorithm", cfg.Algorithm,
			"num_keys", cfg.NumKeys,
		)

		km, err := jwtx.NewEphemeralKeyManager(opts)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize ephemeral key manager: %w", err)
		}
		logger.Warn("all existing tokens are now invalid due to key rotation on startup")
		return km, nil
	}
}
