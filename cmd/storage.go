package cmd

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/teemow/mailcal/internal/config"
	"github.com/teemow/mailcal/internal/oauthstate"
	"github.com/teemow/mailcal/internal/postgres"
	"github.com/teemow/mailcal/internal/registry"
	"github.com/teemow/mailcal/internal/tokenstore"
)

// storage holds the stores selected by the configuration.
type storage struct {
	tokens tokenstore.Store
	states oauthstate.Store
	// locker is nil unless tokens live in redis.
	locker  tokenstore.Locker
	servers registry.Store
	checks  map[string]tokenstore.Pinger
	closers []func() error
}

// Close releases the connections opened by openStorage.
func (s *storage) Close() error {
	var errs []error
	for i := len(s.closers) - 1; i >= 0; i-- {
		errs = append(errs, s.closers[i]())
	}
	return errors.Join(errs...)
}

// openStorage builds the token, state and registry stores. The registry
// uses postgres whenever a database URL is configured, so redis tokens can
// be combined with a durable registry.
func openStorage(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*storage, error) {
	sealer, err := newSealer(cfg.Storage.EncryptionKey)
	if err != nil {
		return nil, err
	}
	if !sealer.Enabled() && cfg.Storage.Type != config.StorageMemory {
		logger.Warn("token encryption at rest is disabled; set TOKEN_ENCRYPTION_KEY for production",
			slog.String("storage", cfg.Storage.Type))
	}

	st := &storage{checks: make(map[string]tokenstore.Pinger)}

	var db *sql.DB
	if cfg.Storage.DatabaseURL != "" {
		db, err = postgres.Open(ctx, cfg.Storage.DatabaseURL)
		if err != nil {
			return nil, err
		}
		st.closers = append(st.closers, db.Close)
	}

	switch cfg.Storage.Type {
	case config.StorageMemory:
		st.tokens = tokenstore.NewMemoryStore(sealer)
		st.states = oauthstate.NewMemoryStore(ctx, cfg.Storage.StateTTL, logger)

	case config.StorageRedis:
		opts := tokenstore.RedisOptions{
			Addr:      cfg.Storage.Redis.Addr,
			Password:  cfg.Storage.Redis.Password,
			DB:        cfg.Storage.Redis.DB,
			KeyPrefix: cfg.Storage.Redis.KeyPrefix,
			TTL:       cfg.Storage.Redis.TTL,
		}
		client, err := tokenstore.NewRedisClient(ctx, opts)
		if err != nil {
			_ = st.Close()
			return nil, err
		}
		st.closers = append(st.closers, client.Close)

		tokens := tokenstore.NewRedisStore(client, opts, sealer)
		st.tokens = tokens
		st.locker = tokenstore.NewRedisLocker(client, cfg.Storage.Redis.LockTTL, 0)
		st.states = oauthstate.NewRedisStore(client, cfg.Storage.StateTTL)
		st.checks["redis"] = tokens

	case config.StoragePostgres:
		tokens := tokenstore.NewPostgresStore(db, sealer)
		if err := tokens.Migrate(ctx); err != nil {
			_ = st.Close()
			return nil, err
		}
		st.tokens = tokens
		st.states = oauthstate.NewMemoryStore(ctx, cfg.Storage.StateTTL, logger)

	default:
		_ = st.Close()
		return nil, fmt.Errorf("unsupported storage type %q", cfg.Storage.Type)
	}

	if db != nil {
		servers := registry.NewPostgresStore(db)
		if err := servers.Migrate(ctx); err != nil {
			_ = st.Close()
			return nil, err
		}
		st.servers = servers
		st.checks["postgres"] = servers
	} else {
		st.servers = registry.NewMemoryStore()
	}

	logger.Info("storage configured",
		slog.String("tokens", cfg.Storage.Type),
		slog.Bool("encrypted", sealer.Enabled()),
		slog.Bool("durable_registry", db != nil))
	return st, nil
}

func newSealer(encodedKey string) (*tokenstore.Sealer, error) {
	if encodedKey == "" {
		return tokenstore.NewSealer(nil)
	}
	key, err := tokenstore.KeyFromBase64(encodedKey)
	if err != nil {
		return nil, fmt.Errorf("invalid token encryption key: %w", err)
	}
	return tokenstore.NewSealer(key)
}
