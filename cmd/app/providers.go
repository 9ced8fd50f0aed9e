package main

import (
	"context"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/yanqian/ai-helloworld/internal/bootstrap"
	"github.com/yanqian/ai-helloworld/internal/domain/auth"
	"github.com/yanqian/ai-helloworld/internal/domain/convo"
	"github.com/yanqian/ai-helloworld/internal/domain/ingest"
	"github.com/yanqian/ai-helloworld/internal/domain/ratelimit"
	"github.com/yanqian/ai-helloworld/internal/domain/tenantstate"
	"github.com/yanqian/ai-helloworld/internal/infra/config"
	objectstore "github.com/yanqian/ai-helloworld/internal/infra/objectstore/minio"
	"github.com/yanqian/ai-helloworld/internal/infra/pdftext"
	"github.com/yanqian/ai-helloworld/internal/infra/relstore/postgres"
	"github.com/yanqian/ai-helloworld/internal/infra/relstore/sqlite"
	"github.com/yanqian/ai-helloworld/internal/infra/sqlpool"
	httpiface "github.com/yanqian/ai-helloworld/internal/interface/http"
	apperrors "github.com/yanqian/ai-helloworld/pkg/errors"
	"github.com/yanqian/ai-helloworld/pkg/metrics"
	"github.com/yanqian/ai-helloworld/pkg/secretcrypto"
)

func provideAuthConfig(cfg *config.Config) auth.Config {
	return auth.Config{
		Secret:          cfg.Auth.JWTSecret,
		TokenTTL:        cfg.Auth.AccessTokenTTL,
		RefreshTokenTTL: cfg.Auth.RefreshTokenTTL,
		Production:      cfg.Auth.Production,
	}
}

func provideSecretBox(cfg *config.Config) (*secretcrypto.Box, error) {
	return secretcrypto.New(cfg.Auth.MasterEncryptionKey)
}

func provideMetrics() *metrics.Registry {
	return metrics.New()
}

func providePDFExtractor() ingest.PDFExtractor {
	return pdftext.New()
}

func provideObjectStore(cfg *config.Config) (ingest.ObjectStore, error) {
	return objectstore.New(
		cfg.Storage.Endpoint,
		cfg.Storage.AccessKey,
		cfg.Storage.SecretKey,
		cfg.Storage.Bucket,
		cfg.Storage.Region,
		cfg.Storage.UseSSL,
	)
}

func provideTenantState() *tenantstate.Store {
	return tenantstate.New()
}

func provideRateLimiter() *ratelimit.Limiter {
	return ratelimit.New()
}

func provideValidator(repo convo.Repository) *convo.Validator {
	return convo.NewValidator(repo, 30)
}

// provideRepository opens the configured relational backend and returns its
// convo.Repository, a bootstrap.PoolStats for metrics sampling (nil on the
// Postgres path), and a cleanup closure for wire's teardown convention.
func provideRepository(cfg *config.Config, logger *slog.Logger) (convo.Repository, bootstrap.PoolStats, func(), error) {
	if cfg.Database.IsPostgres() {
		poolConfig, err := pgxpool.ParseConfig(cfg.Database.URL)
		if err != nil {
			return nil, nil, nil, apperrors.Wrap(apperrors.CodeInternal, "parse postgres dsn", err)
		}
		if cfg.Database.PoolSize > 0 {
			poolConfig.MaxConns = int32(cfg.Database.PoolSize)
		}
		pool, err := pgxpool.NewWithConfig(context.Background(), poolConfig)
		if err != nil {
			return nil, nil, nil, apperrors.Wrap(apperrors.CodeInternal, "open postgres pool", err)
		}
		ctx, cancel := context.WithTimeout(context.Background(), cfg.Database.PoolTimeout)
		defer cancel()
		if err := pool.Ping(ctx); err != nil {
			pool.Close()
			return nil, nil, nil, apperrors.Wrap(apperrors.CodeInternal, "ping postgres", err)
		}
		store, err := postgres.Open(context.Background(), pool)
		if err != nil {
			pool.Close()
			return nil, nil, nil, err
		}
		logger.Info("postgres repository enabled")
		return store, nil, func() { pool.Close() }, nil
	}

	pool, err := sqlpool.Open(context.Background(), cfg.Database.SQLitePath, cfg.Database.PoolSize)
	if err != nil {
		return nil, nil, nil, err
	}
	store, err := sqlite.Open(context.Background(), pool)
	if err != nil {
		pool.CloseAll()
		return nil, nil, nil, err
	}
	logger.Info("sqlite repository enabled", "path", cfg.Database.SQLitePath)
	return store, pool, func() { pool.CloseAll() }, nil
}

func provideTenantResources(cfg *config.Config, state *tenantstate.Store, repo convo.Repository, validator *convo.Validator, limiter *ratelimit.Limiter, pdf ingest.PDFExtractor, objects ingest.ObjectStore, secrets *secretcrypto.Box) *httpiface.TenantResources {
	return httpiface.NewTenantResources(state, repo, validator, limiter, cfg.Database.VectorStoreDir, cfg.Database.UploadTempDir, pdf, objects, secrets)
}
