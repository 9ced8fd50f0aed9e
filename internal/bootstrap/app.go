package bootstrap

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/yanqian/ai-helloworld/internal/infra/config"
	"github.com/yanqian/ai-helloworld/pkg/metrics"
)

// PoolStats reports a connection pool's current occupancy. Satisfied by
// *sqlpool.Pool; nil when the relational backend is Postgres, whose
// *pgxpool.Pool does not satisfy this interface, so no pool gauges are
// published on that path.
type PoolStats interface {
	InUse() int
	Available() int
}

// App encapsulates the HTTP server lifecycle.
type App struct {
	cfg     *config.Config
	logger  *slog.Logger
	server  *http.Server
	pool    PoolStats
	metrics *metrics.Registry
}

// NewApp is used by Wire to build the runnable app.
func NewApp(cfg *config.Config, logger *slog.Logger, server *http.Server, pool PoolStats, reg *metrics.Registry) *App {
	return &App{cfg: cfg, logger: logger.With("component", "bootstrap"), server: server, pool: pool, metrics: reg}
}

// Run starts the HTTP server and blocks until shutdown.
func (a *App) Run(ctx context.Context) error {
	errCh := make(chan error, 1)

	go func() {
		a.logger.Info("http server starting", "address", a.cfg.HTTP.Address)
		if err := a.server.ListenAndServe(); err != nil {
			errCh <- err
		}
	}()

	go a.samplePoolMetrics(ctx)

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		a.logger.Info("shutdown signal received")
		if err := a.server.Shutdown(shutdownCtx); err != nil {
			return err
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

// samplePoolMetrics periodically publishes the relational pool's
// in-use/available connection counts until ctx is canceled.
func (a *App) samplePoolMetrics(ctx context.Context) {
	if a.pool == nil || a.metrics == nil {
		return
	}
	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			a.metrics.PoolInUse.Set(float64(a.pool.InUse()))
			a.metrics.PoolAvailable.Set(float64(a.pool.Available()))
		}
	}
}
