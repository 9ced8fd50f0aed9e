// Package postgres implements longmemory.Store over Postgres with pgvector:
// inserts plus a newest-first per-user candidate scan over a
// cross-conversation memory table. Rows are never updated or pruned.
package postgres

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	pgvector "github.com/pgvector/pgvector-go"

	"github.com/yanqian/ai-helloworld/internal/domain/longmemory"
	apperrors "github.com/yanqian/ai-helloworld/pkg/errors"
)

const schema = `
CREATE TABLE IF NOT EXISTS long_term_memories (
	id BIGSERIAL PRIMARY KEY,
	user_id BIGINT NOT NULL,
	conversation_id BIGINT NOT NULL,
	question TEXT NOT NULL,
	answer TEXT NOT NULL,
	embedding vector NOT NULL,
	importance DOUBLE PRECISION NOT NULL,
	created_at TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_long_term_memories_user_created ON long_term_memories(user_id, created_at DESC);
`

// Store is the Postgres-backed longmemory.Store.
type Store struct {
	pool *pgxpool.Pool
}

// Open applies the schema against pool and returns a ready Store.
func Open(ctx context.Context, pool *pgxpool.Pool) (*Store, error) {
	if _, err := pool.Exec(ctx, schema); err != nil {
		return nil, apperrors.Wrap(apperrors.CodeInternal, "apply long-term memory schema", err)
	}
	return &Store{pool: pool}, nil
}

// Save inserts a memory row.
func (s *Store) Save(ctx context.Context, m longmemory.Memory) error {
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now()
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO long_term_memories (user_id, conversation_id, question, answer, embedding, importance, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, m.UserID, m.ConversationID, m.Question, m.Answer, pgvector.NewVector(m.Embedding), m.Importance, m.CreatedAt)
	if err != nil {
		return apperrors.Wrap(apperrors.CodeInternal, "insert long-term memory", err)
	}
	return nil
}

// Candidates returns up to longmemory.CandidateCap most-recent memories for
// userID, newest first.
func (s *Store) Candidates(ctx context.Context, userID int64) ([]longmemory.Memory, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, user_id, conversation_id, question, answer, embedding, importance, created_at
		FROM long_term_memories
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`, userID, longmemory.CandidateCap)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeInternal, "scan long-term memories", err)
	}
	defer rows.Close()

	var out []longmemory.Memory
	for rows.Next() {
		var m longmemory.Memory
		var vec pgvector.Vector
		if err := rows.Scan(&m.ID, &m.UserID, &m.ConversationID, &m.Question, &m.Answer, &vec, &m.Importance, &m.CreatedAt); err != nil {
			return nil, apperrors.Wrap(apperrors.CodeInternal, "scan long-term memory row", err)
		}
		m.Embedding = vec.Slice()
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.Wrap(apperrors.CodeInternal, "iterate long-term memories", err)
	}
	return out, nil
}

var _ longmemory.Store = (*Store)(nil)
