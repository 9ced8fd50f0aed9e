// Package sqlitevec implements the "one SQLite file per tenant" vector
// store: schema, little-endian float32 packing, batched transactional
// ingest, and an in-Go vectorized scan with partial top-k selection — never
// pushing similarity computation into SQL. Grounded on the other_examples
// corpus's sqlite-vec client (a pure-Go modernc.org/sqlite-backed vector
// cache with its own connection pool, mutex-guarded caches, and
// singleflight-guarded computation), adapted here to a strict
// per-tenant-file, no-ANN-index design.
package sqlitevec

import (
	"context"
	"database/sql"
	"encoding/binary"
	"math"

	"github.com/yanqian/ai-helloworld/internal/domain/vectorindex"
	"github.com/yanqian/ai-helloworld/internal/infra/sqlpool"
	apperrors "github.com/yanqian/ai-helloworld/pkg/errors"
)

const schema = `
CREATE TABLE IF NOT EXISTS documents (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	filename TEXT NOT NULL,
	file_hash TEXT NOT NULL UNIQUE
);
CREATE TABLE IF NOT EXISTS chunks (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	document_id INTEGER NOT NULL REFERENCES documents(id),
	conversation_id INTEGER,
	chunk_text TEXT NOT NULL,
	chunk_index INTEGER NOT NULL,
	embedding BLOB NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_chunks_document ON chunks(document_id);
CREATE INDEX IF NOT EXISTS idx_chunks_conversation ON chunks(conversation_id);
CREATE INDEX IF NOT EXISTS idx_chunks_document_conversation ON chunks(document_id, conversation_id);
`

// Store is a per-tenant vector index backed by its own SQLite file.
type Store struct {
	pool *sqlpool.Pool
}

// poolSize is intentionally small: a tenant's vector store sees far less
// concurrent traffic than the shared relational pool.
const poolSize = 4

// Open opens (creating if needed) the tenant's vector store file at dsn and
// applies the schema.
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
		return nil, apperrors.Wrap(apperrors.CodeInternal, "apply vector store schema", err)
	}
	return s, nil
}

// AddDocument upserts the document row (keyed by file_hash) and bulk-inserts
// chunks bound to conversationID inside a single transaction.
func (s *Store) AddDocument(ctx context.Context, filename, fileHash string, chunks []vectorindex.ChunkInput, conversationID int64) error {
	return s.pool.WithConn(ctx, func(ctx context.Context, tx *sql.Tx) error {
		docID, err := upsertDocument(ctx, tx, filename, fileHash)
		if err != nil {
			return err
		}
		return insertChunks(ctx, tx, docID, conversationID, chunks)
	})
}

// upsertDocument inserts or refreshes the document row keyed by file_hash
// and returns its id. Shared by Store and TwoLevel, which both keep the
// same documents table.
func upsertDocument(ctx context.Context, tx *sql.Tx, filename, fileHash string) (int64, error) {
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO documents (filename, file_hash) VALUES (?, ?)
		ON CONFLICT(file_hash) DO UPDATE SET filename = excluded.filename
	`, filename, fileHash); err != nil {
		return 0, apperrors.Wrap(apperrors.CodeIngest, "upsert document", err)
	}
	// LastInsertId is not updated by the ON CONFLICT update path, so the id
	// is always read back by file_hash.
	var docID int64
	row := tx.QueryRowContext(ctx, "SELECT id FROM documents WHERE file_hash = ?", fileHash)
	if err := row.Scan(&docID); err != nil {
		return 0, apperrors.Wrap(apperrors.CodeIngest, "resolve document id", err)
	}
	return docID, nil
}

// insertChunks bulk-inserts chunks for docID bound to conversationID.
func insertChunks(ctx context.Context, tx *sql.Tx, docID, conversationID int64, chunks []vectorindex.ChunkInput) error {
	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO chunks (document_id, conversation_id, chunk_text, chunk_index, embedding)
		VALUES (?, ?, ?, ?, ?)
	`)
	if err != nil {
		return apperrors.Wrap(apperrors.CodeIngest, "prepare chunk insert", err)
	}
	defer stmt.Close()

	for i, c := range chunks {
		if _, err := stmt.ExecContext(ctx, docID, conversationID, c.Text, i, packEmbedding(c.Embedding)); err != nil {
			return apperrors.Wrap(apperrors.CodeIngest, "insert chunk", err)
		}
	}
	return nil
}

// Search: a nil conversationID returns no results;
// otherwise it loads up to clamp(topK*50,100,500) chunks scoped to
// conversationID and selects the top-k by cosine similarity via partial
// selection.
func (s *Store) Search(ctx context.Context, queryEmbedding []float32, topK int, conversationID *int64) ([]vectorindex.SearchResult, error) {
	if conversationID == nil {
		return nil, nil
	}
	if topK <= 0 {
		topK = 5
	}
	limit := vectorindex.ClampScanWindow(topK)

	var candidates []vectorindex.Candidate
	err := s.pool.WithConn(ctx, func(ctx context.Context, tx *sql.Tx) error {
		rows, err := tx.QueryContext(ctx, `
			SELECT id, chunk_text, embedding FROM chunks
			WHERE conversation_id = ?
			ORDER BY id ASC
			LIMIT ?
		`, *conversationID, limit)
		if err != nil {
			return apperrors.Wrap(apperrors.CodeInternal, "scan chunks", err)
		}
		defer rows.Close()

		for rows.Next() {
			var id int64
			var text string
			var blob []byte
			if err := rows.Scan(&id, &text, &blob); err != nil {
				return apperrors.Wrap(apperrors.CodeInternal, "scan chunk row", err)
			}
			candidates = append(candidates, vectorindex.Candidate{
				ChunkID:   id,
				ChunkText: text,
				Embedding: unpackEmbedding(blob),
			})
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}

	return vectorindex.TopK(candidates, queryEmbedding, topK), nil
}

// Close releases the tenant's pool.
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

var _ vectorindex.Index = (*Store)(nil)
