// Package sqlite is the default persistence backend for the semantic
// cache, storing entries in the tenant's relational pool so cache
// contents survive a restart even without an external key-value server.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/binary"
	"encoding/json"
	"math"
	"time"

	"github.com/yanqian/ai-helloworld/internal/domain/semcache"
	"github.com/yanqian/ai-helloworld/internal/infra/sqlpool"
	apperrors "github.com/yanqian/ai-helloworld/pkg/errors"
)

const schema = `
CREATE TABLE IF NOT EXISTS semantic_cache_entries (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	question_text TEXT NOT NULL,
	answer TEXT NOT NULL,
	embedding BLOB NOT NULL,
	metadata TEXT NOT NULL,
	created_at DATETIME NOT NULL,
	ttl_seconds INTEGER NOT NULL
);
`

// Backend implements semcache.Backend over a sqlpool-managed SQLite database.
type Backend struct {
	pool *sqlpool.Pool
}

// Open applies the schema and returns a ready Backend.
func Open(ctx context.Context, pool *sqlpool.Pool) (*Backend, error) {
	b := &Backend{pool: pool}
	if err := pool.WithConn(ctx, func(ctx context.Context, tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, schema)
		return err
	}); err != nil {
		return nil, apperrors.Wrap(apperrors.CodeInternal, "apply semantic cache schema", err)
	}
	return b, nil
}

func (b *Backend) Name() string { return "sqlite" }

func (b *Backend) Load(ctx context.Context) ([]semcache.Entry, error) {
	var out []semcache.Entry
	err := b.pool.WithConn(ctx, func(ctx context.Context, tx *sql.Tx) error {
		rows, err := tx.QueryContext(ctx, "SELECT question_text, answer, embedding, metadata, created_at, ttl_seconds FROM semantic_cache_entries")
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			var (
				e           semcache.Entry
				blob        []byte
				metaJSON    string
				ttlSeconds  int64
			)
			if err := rows.Scan(&e.QuestionText, &e.Answer, &blob, &metaJSON, &e.CreatedAt, &ttlSeconds); err != nil {
				return err
			}
			e.QuestionEmbedding = unpackEmbedding(blob)
			e.TTL = time.Duration(ttlSeconds) * time.Second
			if metaJSON != "" {
				_ = json.Unmarshal([]byte(metaJSON), &e.Metadata)
			}
			out = append(out, e)
		}
		return rows.Err()
	})
	return out, err
}

func (b *Backend) Save(ctx context.Context, e semcache.Entry) error {
	metaJSON, err := json.Marshal(e.Metadata)
	if err != nil {
		return err
	}
	return b.pool.WithConn(ctx, func(ctx context.Context, tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO semantic_cache_entries (question_text, answer, embedding, metadata, created_at, ttl_seconds)
			VALUES (?, ?, ?, ?, ?, ?)
		`, e.QuestionText, e.Answer, packEmbedding(e.QuestionEmbedding), string(metaJSON), e.CreatedAt, int64(e.TTL/time.Second))
		return err
	})
}

func (b *Backend) DeleteAll(ctx context.Context) error {
	return b.pool.WithConn(ctx, func(ctx context.Context, tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, "DELETE FROM semantic_cache_entries")
		return err
	})
}

func packEmbedding(vec []float32) []byte {
	out := make([]byte, 4*len(vec))
	for i, v := range vec {
		binary.LittleEndian.PutUint32(out[i*4:], math.Float32bits(v))
	}
	return out
}

func unpackEmbedding(blob []byte) []float32 {
	n := len(blob) / 4
	out := make([]float32, n)
	for i := 0; i < n; i++ {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(blob[i*4:]))
	}
	return out
}

var _ semcache.Backend = (*Backend)(nil)
