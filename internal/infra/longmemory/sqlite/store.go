// Package sqlite implements longmemory.Store over a per-user SQLite file, reusing
// the vector store's little-endian float32 packing for the embedding column.
// Grounded on internal/infra/vectorindex/sqlitevec/store.go's
// blob-packing idiom and the shared sqlpool connection management.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/binary"
	"math"

	"github.com/yanqian/ai-helloworld/internal/domain/longmemory"
	"github.com/yanqian/ai-helloworld/internal/infra/sqlpool"
	apperrors "github.com/yanqian/ai-helloworld/pkg/errors"
)

const schema = `
CREATE TABLE IF NOT EXISTS long_term_memories (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	user_id INTEGER NOT NULL,
	conversation_id INTEGER NOT NULL,
	question TEXT NOT NULL,
	answer TEXT NOT NULL,
	embedding BLOB NOT NULL,
	importance REAL NOT NULL,
	created_at DATETIME NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_long_term_memories_user_created ON long_term_memories(user_id, created_at DESC);
`

const poolSize = 4

// Store is the sqlite-backed longmemory.Store.
type Store struct {
	pool *sqlpool.Pool
}

// Open opens (creating if needed) the store at dsn and applies its schema.
func Open(ctx context.Context, dsn string) (*Store, error) {
	pool, err := sqlpool.Open(ctx, dsn, poolSize)
	if err != nil {
		return nil, err
	}
	s := &Store{pool: pool}
	if err := s.pool.WithConn(ctx, func(ctx context.Context, tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, schema)
		return err
	}); err != nil {
		pool.CloseAll()
		return nil, apperrors.Wrap(apperrors.CodeInternal, "apply long-term memory schema", err)
	}
	return s, nil
}

// Save inserts a memory row.
func (s *Store) Save(ctx context.Context, m longmemory.Memory) error {
	return s.pool.WithConn(ctx, func(ctx context.Context, tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO long_term_memories (user_id, conversation_id, question, answer, embedding, importance, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?)
		`, m.UserID, m.ConversationID, m.Question, m.Answer, packEmbedding(m.Embedding), m.Importance, m.CreatedAt)
		if err != nil {
			return apperrors.Wrap(apperrors.CodeInternal, "insert long-term memory", err)
		}
		return nil
	})
}

// Candidates returns up to longmemory.CandidateCap most-recent memories for
// userID, newest first.
func (s *Store) Candidates(ctx context.Context, userID int64) ([]longmemory.Memory, error) {
	var out []longmemory.Memory
	err := s.pool.WithConn(ctx, func(ctx context.Context, tx *sql.Tx) error {
		rows, err := tx.QueryContext(ctx, `
			SELECT id, user_id, conversation_id, question, answer, embedding, importance, created_at
			FROM long_term_memories
			WHERE user_id = ?
			ORDER BY created_at DESC
			LIMIT ?
		`, userID, longmemory.CandidateCap)
		if err != nil {
			return apperrors.Wrap(apperrors.CodeInternal, "scan long-term memories", err)
		}
		defer rows.Close()
		for rows.Next() {
			var m longmemory.Memory
			var blob []byte
			if err := rows.Scan(&m.ID, &m.UserID, &m.ConversationID, &m.Question, &m.Answer, &blob, &m.Importance, &m.CreatedAt); err != nil {
				return apperrors.Wrap(apperrors.CodeInternal, "scan long-term memory row", err)
			}
			m.Embedding = unpackEmbedding(blob)
			out = append(out, m)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Close releases the backing pool.
func (s *Store) Close() error {
	s.pool.CloseAll()
	return nil
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

var _ longmemory.Store = (*Store)(nil)
