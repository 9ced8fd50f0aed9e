// Package vectorindex defines the vector-store abstraction: one
// Index interface with Flat (per-tenant SQLite, linear scan + partial
// top-k) and TwoLevel (document-summary prefilter) implementations,
// behind a shared strategy interface.
package vectorindex

import "context"

// ChunkInput is a chunk ready for ingestion: its text and its embedding.
type ChunkInput struct {
	Text      string
	Embedding []float32
}

// SearchResult is a single retrieved chunk with its similarity score.
type SearchResult struct {
	ChunkID    int64
	ChunkText  string
	Similarity float32
}

// Index is the storage/search abstraction every tenant's vector store
// implements. conversationID is a pointer because a nil value must yield an
// empty result set on Search rather than searching every conversation.
type Index interface {
	// AddDocument upserts filename's document row (keyed by content hash)
	// and bulk-inserts chunks bound to conversationID in one transaction.
	AddDocument(ctx context.Context, filename string, fileHash string, chunks []ChunkInput, conversationID int64) error
	// Search returns up to topK chunks scoped to conversationID, ranked by
	// descending cosine similarity. A nil conversationID returns nil, nil.
	Search(ctx context.Context, queryEmbedding []float32, topK int, conversationID *int64) ([]SearchResult, error)
	// Close releases the tenant's underlying storage.
	Close() error
}

// Select picks Flat or TwoLevel based on per-tenant corpus size (TwoLevel
// once a tenant's corpus exceeds roughly 1000 chunks).
func Select(chunkCount int, flat, twoLevel Index) Index {
	if chunkCount > 1000 && twoLevel != nil {
		return twoLevel
	}
	return flat
}
