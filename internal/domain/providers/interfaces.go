// Package providers defines the narrow interfaces standing in for the
// external collaborators deliberately left out of this package: the
// embedding, LLM, reranker, and web-search providers. Modeling them as
// interfaces (rather than storing opaque client objects, as the source's
// per-user config map does) removes the need to deep-copy them and keeps
// tenant config trivially mockable.
package providers

import "context"

// Embedder turns text into vectors. Implementations batch internally.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// ChatMessage is a single turn in an LLM conversation.
type ChatMessage struct {
	Role    string
	Content string
}

// LLM answers a chat completion request.
type LLM interface {
	Chat(ctx context.Context, messages []ChatMessage) (string, error)
}

// RerankResult pairs a chunk index (into the slice passed to Rerank) with its
// reranked score.
type RerankResult struct {
	Index int
	Score float32
}

// Reranker reorders candidate passages by relevance to query.
type Reranker interface {
	Rerank(ctx context.Context, query string, passages []string) ([]RerankResult, error)
}

// WebResult is a single web-search hit.
type WebResult struct {
	Title   string
	Snippet string
	URL     string
}

// WebSearcher performs a web search and returns up to limit results.
type WebSearcher interface {
	Search(ctx context.Context, query string, limit int) ([]WebResult, error)
}
