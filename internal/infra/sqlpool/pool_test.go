package sqlpool

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"
)

func openTestPool(t *testing.T, size int) *Pool {
	t.Helper()
	dsn := filepath.Join(t.TempDir(), "pool.db")
	p, err := Open(context.Background(), dsn, size)
	if err != nil {
		t.Fatalf("open pool: %v", err)
	}
	t.Cleanup(p.CloseAll)
	return p
}

func TestAcquireReleaseRoundTrips(t *testing.T) {
	p := openTestPool(t, 2)
	conn, err := p.Acquire(context.Background())
	if err != nil {
		t.Fatalf("acquire: %v", err)
	}
	if p.InUse() != 1 {
		t.Fatalf("expected 1 in use, got %d", p.InUse())
	}
	p.Release(conn)
	if p.InUse() != 0 {
		t.Fatalf("expected 0 in use after release, got %d", p.InUse())
	}
}

func TestAcquireExhaustedTimesOut(t *testing.T) {
	p := openTestPool(t, 1)
	conn, err := p.Acquire(context.Background())
	if err != nil {
		t.Fatalf("acquire: %v", err)
	}
	defer p.Release(conn)

	start := time.Now()
	_, err = p.Acquire(context.Background())
	if err == nil {
		t.Fatalf("expected pool exhausted error")
	}
	if elapsed := time.Since(start); elapsed > AcquireTimeout+time.Second {
		t.Fatalf("acquire blocked too long: %v", elapsed)
	}
}

func TestWithConnCommitsOnSuccess(t *testing.T) {
	p := openTestPool(t, 1)
	ctx := context.Background()

	err := p.WithConn(ctx, func(ctx context.Context, tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, "CREATE TABLE t (id INTEGER PRIMARY KEY)")
		return err
	})
	if err != nil {
		t.Fatalf("with conn: %v", err)
	}

	row := p.DB().QueryRowContext(ctx, "SELECT count(*) FROM sqlite_master WHERE name='t'")
	var count int
	if err := row.Scan(&count); err != nil {
		t.Fatalf("scan: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected table t to exist")
	}
}

func TestWithConnRollsBackOnError(t *testing.T) {
	p := openTestPool(t, 1)
	ctx := context.Background()

	_ = p.WithConn(ctx, func(ctx context.Context, tx *sql.Tx) error {
		_, _ = tx.ExecContext(ctx, "CREATE TABLE t2 (id INTEGER PRIMARY KEY)")
		return sql.ErrTxDone
	})

	row := p.DB().QueryRowContext(ctx, "SELECT count(*) FROM sqlite_master WHERE name='t2'")
	var count int
	if err := row.Scan(&count); err != nil {
		t.Fatalf("scan: %v", err)
	}
	if count != 0 {
		t.Fatalf("expected table t2 to be rolled back")
	}
}
