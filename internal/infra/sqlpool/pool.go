// Package sqlpool implements a bounded, blocking pool of SQL connections
// with per-connection PRAGMA tuning, returning a ready-to-use,
// already-configured client from a single narrow constructor.
package sqlpool

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	apperrors "github.com/yanqian/ai-helloworld/pkg/errors"
)

// AcquireTimeout bounds how long Acquire blocks before failing with
// PoolExhausted.
const AcquireTimeout = 5 * time.Second

// Pool is a fixed-size, channel-backed semaphore over *sql.Conn drawn from a
// single *sql.DB. It never grows past Size connections.
type Pool struct {
	db     *sql.DB
	tokens chan *sql.Conn
	size   int
}

// Open creates the backing *sql.DB, pre-warms size connections with the
// tuning PRAGMAs, and returns a ready Pool. Fatal at process start on
// failure, per the propagation policy.
func Open(ctx context.Context, dsn string, size int) (*Pool, error) {
	if size <= 0 {
		size = 10
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeInternal, "open sqlite database", err)
	}
	db.SetMaxOpenConns(size)
	db.SetMaxIdleConns(size)

	p := &Pool{db: db, tokens: make(chan *sql.Conn, size), size: size}
	for i := 0; i < size; i++ {
		conn, err := db.Conn(ctx)
		if err != nil {
			p.CloseAll()
			return nil, apperrors.Wrap(apperrors.CodeInternal, "prewarm sqlite connection", err)
		}
		if err := tune(ctx, conn); err != nil {
			p.CloseAll()
			return nil, apperrors.Wrap(apperrors.CodeInternal, "tune sqlite connection", err)
		}
		p.tokens <- conn
	}
	return p, nil
}

func tune(ctx context.Context, conn *sql.Conn) error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA cache_size=-65536", // 64MB, negative means KiB
		"PRAGMA temp_store=MEMORY",
		"PRAGMA foreign_keys=ON",
	}
	for _, stmt := range pragmas {
		if _, err := conn.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("%s: %w", stmt, err)
		}
	}
	return nil
}

// Acquire blocks up to AcquireTimeout for a free connection.
func (p *Pool) Acquire(ctx context.Context) (*sql.Conn, error) {
	timeoutCtx, cancel := context.WithTimeout(ctx, AcquireTimeout)
	defer cancel()

	select {
	case conn := <-p.tokens:
		return conn, nil
	case <-timeoutCtx.Done():
		return nil, apperrors.Wrap(apperrors.CodePoolExhausted, "connection pool exhausted", nil)
	}
}

// Release returns conn to the pool without touching any transaction still
// open on it (WithConn commits or rolls back before releasing). If the pool
// is already full the connection is closed instead.
func (p *Pool) Release(conn *sql.Conn) {
	select {
	case p.tokens <- conn:
	default:
		_ = conn.Close()
	}
}

// InUse reports the number of connections currently checked out, for metrics.
func (p *Pool) InUse() int {
	return p.size - len(p.tokens)
}

// Available reports the number of connections currently idle in the pool.
func (p *Pool) Available() int {
	return len(p.tokens)
}

// CloseAll drains and closes every connection.
func (p *Pool) CloseAll() {
	close(p.tokens)
	for conn := range p.tokens {
		_ = conn.Close()
	}
	_ = p.db.Close()
}

// DB exposes the underlying *sql.DB for callers (e.g. migrations) that need
// unpooled, ad-hoc access. Request-path code must go through Acquire/WithConn.
func (p *Pool) DB() *sql.DB { return p.db }

// WithConn acquires a connection, runs fn inside a transaction, commits on
// success, rolls back on error, and always releases — the scoped acquisition
// primitive the pool relies on.
func (p *Pool) WithConn(ctx context.Context, fn func(ctx context.Context, tx *sql.Tx) error) error {
	conn, err := p.Acquire(ctx)
	if err != nil {
		return err
	}
	defer p.Release(conn)

	tx, err := conn.BeginTx(ctx, nil)
	if err != nil {
		return apperrors.Wrap(apperrors.CodeInternal, "begin transaction", err)
	}
	if err := fn(ctx, tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return apperrors.Wrap(apperrors.CodeInternal, "commit transaction", err)
	}
	return nil
}
