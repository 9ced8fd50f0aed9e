package sqlitevec

import (
	"context"
	"database/sql"
	"sort"
	"strconv"
	"strings"

	"github.com/yanqian/ai-helloworld/internal/domain/vectorindex"
	"github.com/yanqian/ai-helloworld/internal/infra/sqlpool"
	apperrors "github.com/yanqian/ai-helloworld/pkg/errors"
)

const twoLevelSchema = schema + `
CREATE TABLE IF NOT EXISTS document_summaries (
	document_id INTEGER PRIMARY KEY REFERENCES documents(id),
	summary_text TEXT NOT NULL,
	summary_embedding BLOB NOT NULL,
	chunk_count INTEGER NOT NULL
);
`

// docFilterThreshold and maxDocuments are the document-prefilter defaults.
const (
	docFilterThreshold = 0.6
	maxDocuments       = 3
	summaryPreviewRunes = 400
)

// TwoLevel is the document-summary-prefiltered variant of Store: a
// Search first narrows to a handful of documents by summary similarity,
// then restricts the chunk scan (the same vectorindex.TopK partial
// selection Store uses) to just those documents. Intended for tenants whose
// corpus has grown past ~1000 chunks, per vectorindex.Select.
type TwoLevel struct {
	pool *sqlpool.Pool
}

// OpenTwoLevel opens (creating if needed) the tenant's vector store file at
// dsn with the document_summaries table alongside Store's schema.
func OpenTwoLevel(ctx context.Context, dsn string) (*TwoLevel, error) {
	pool, err := sqlpool.Open(ctx, dsn, poolSize)
	if err != nil {
		return nil, err
	}
	s := &TwoLevel{pool: pool}
	if err := s.pool.WithConn(ctx, func(ctx context.Context, tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, twoLevelSchema)
		return err
	}); err != nil {
		pool.CloseAll()
		return nil, apperrors.Wrap(apperrors.CodeInternal, "apply two-level vector store schema", err)
	}
	return s, nil
}

// AddDocument inserts the document and its chunks exactly as Store does,
// then derives and upserts a document summary: a truncated concatenation of
// the chunk texts, and the mean-pooled chunk embedding as its vector.
func (s *TwoLevel) AddDocument(ctx context.Context, filename, fileHash string, chunks []vectorindex.ChunkInput, conversationID int64) error {
	return s.pool.WithConn(ctx, func(ctx context.Context, tx *sql.Tx) error {
		docID, err := upsertDocument(ctx, tx, filename, fileHash)
		if err != nil {
			return err
		}
		if err := insertChunks(ctx, tx, docID, conversationID, chunks); err != nil {
			return err
		}
		summaryText, summaryEmbedding := summarize(chunks)
		_, err = tx.ExecContext(ctx, `
			INSERT INTO document_summaries (document_id, summary_text, summary_embedding, chunk_count)
			VALUES (?, ?, ?, ?)
			ON CONFLICT(document_id) DO UPDATE SET
				summary_text = excluded.summary_text,
				summary_embedding = excluded.summary_embedding,
				chunk_count = excluded.chunk_count
		`, docID, summaryText, packEmbedding(summaryEmbedding), len(chunks))
		if err != nil {
			return apperrors.Wrap(apperrors.CodeIngest, "upsert document summary", err)
		}
		return nil
	})
}

// Search runs a two-stage funnel: score every document summary,
// keep those at or above docFilterThreshold capped at maxDocuments, then
// scan only those documents' chunks for the final top-k.
func (s *TwoLevel) Search(ctx context.Context, queryEmbedding []float32, topK int, conversationID *int64) ([]vectorindex.SearchResult, error) {
	if conversationID == nil {
		return nil, nil
	}
	if topK <= 0 {
		topK = 5
	}

	selected, err := s.selectDocuments(ctx, queryEmbedding)
	if err != nil {
		return nil, err
	}
	if len(selected) == 0 {
		return nil, nil
	}

	var candidates []vectorindex.Candidate
	err = s.pool.WithConn(ctx, func(ctx context.Context, tx *sql.Tx) error {
		placeholders := strings.TrimSuffix(strings.Repeat("?,", len(selected)), ",")
		args := make([]any, 0, len(selected)+1)
		for _, id := range selected {
			args = append(args, id)
		}
		args = append(args, *conversationID)

		limit := vectorindex.ClampScanWindow(topK)
		rows, err := tx.QueryContext(ctx, `
			SELECT id, chunk_text, embedding FROM chunks
			WHERE document_id IN (`+placeholders+`) AND conversation_id = ?
			ORDER BY id ASC
			LIMIT `+strconv.Itoa(limit), args...)
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
			candidates = append(candidates, vectorindex.Candidate{ChunkID: id, ChunkText: text, Embedding: unpackEmbedding(blob)})
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}
	return vectorindex.TopK(candidates, queryEmbedding, topK), nil
}

// Close releases the tenant's pool.
func (s *TwoLevel) Close() error {
	s.pool.CloseAll()
	return nil
}

type scoredDoc struct {
	id         int64
	similarity float32
}

func (s *TwoLevel) selectDocuments(ctx context.Context, queryEmbedding []float32) ([]int64, error) {
	var scored []scoredDoc
	err := s.pool.WithConn(ctx, func(ctx context.Context, tx *sql.Tx) error {
		rows, err := tx.QueryContext(ctx, `SELECT document_id, summary_embedding FROM document_summaries`)
		if err != nil {
			return apperrors.Wrap(apperrors.CodeInternal, "scan document summaries", err)
		}
		defer rows.Close()
		for rows.Next() {
			var id int64
			var blob []byte
			if err := rows.Scan(&id, &blob); err != nil {
				return apperrors.Wrap(apperrors.CodeInternal, "scan summary row", err)
			}
			sim := vectorindex.Cosine(unpackEmbedding(blob), queryEmbedding)
			if sim >= docFilterThreshold {
				scored = append(scored, scoredDoc{id: id, similarity: sim})
			}
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(scored, func(i, j int) bool { return scored[i].similarity > scored[j].similarity })
	if len(scored) > maxDocuments {
		scored = scored[:maxDocuments]
	}
	ids := make([]int64, len(scored))
	for i, d := range scored {
		ids[i] = d.id
	}
	return ids, nil
}

// summarize builds a preview summary and a mean-pooled embedding from a
// freshly-ingested chunk set.
func summarize(chunks []vectorindex.ChunkInput) (string, []float32) {
	var b strings.Builder
	runes := 0
	for _, c := range chunks {
		if runes >= summaryPreviewRunes {
			break
		}
		if b.Len() > 0 {
			b.WriteString(" ")
			runes++
		}
		b.WriteString(c.Text)
		runes += len([]rune(c.Text))
	}
	text := b.String()
	if r := []rune(text); len(r) > summaryPreviewRunes {
		text = string(r[:summaryPreviewRunes])
	}

	if len(chunks) == 0 {
		return text, nil
	}
	dim := len(chunks[0].Embedding)
	mean := make([]float32, dim)
	for _, c := range chunks {
		for i := 0; i < dim && i < len(c.Embedding); i++ {
			mean[i] += c.Embedding[i]
		}
	}
	n := float32(len(chunks))
	for i := range mean {
		mean[i] /= n
	}
	return text, mean
}

var _ vectorindex.Index = (*TwoLevel)(nil)
