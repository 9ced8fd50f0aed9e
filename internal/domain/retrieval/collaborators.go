// Package retrieval implements the end-to-end chat-answer pipeline
// wiring the rate limiter, session validator, embedder, semantic cache,
// vector index, reranker, web search, and LLM behind one Answer call.
// Grounded on an uploadask.Service.Ask-style flow — same narrow,
// interface-typed collaborators, same "service holds everything it needs,
// callers hold nothing" shape — generalized from a single-store QA session
// to a per-conversation retrieval pipeline with semantic-cache fronting.
package retrieval

import (
	"context"
	"time"

	"github.com/yanqian/ai-helloworld/internal/domain/convo"
	"github.com/yanqian/ai-helloworld/internal/domain/providers"
	"github.com/yanqian/ai-helloworld/internal/domain/ratelimit"
	"github.com/yanqian/ai-helloworld/internal/domain/semcache"
	"github.com/yanqian/ai-helloworld/internal/domain/vectorindex"
)

// RateLimiter is the slice of ratelimit.Limiter the pipeline depends on.
type RateLimiter interface {
	Check(userID int64, op ratelimit.Operation, cost int) error
}

// SessionValidator is the slice of convo.Validator the pipeline depends on.
type SessionValidator interface {
	ValidateAccess(ctx context.Context, conversationID, userID int64, requireActive bool) (bool, string)
}

// Embedder embeds free-form text into vectors.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// SemanticCache is the slice of semcache.Cache the pipeline depends on.
type SemanticCache interface {
	Get(ctx context.Context, queryEmbedding []float32, queryText string) (semcache.Result, bool)
	Set(ctx context.Context, queryEmbedding []float32, queryText, answer string, metadata map[string]any)
}

// VectorSearcher is the slice of vectorindex.Index the pipeline depends on.
type VectorSearcher interface {
	Search(ctx context.Context, queryEmbedding []float32, topK int, conversationID *int64) ([]vectorindex.SearchResult, error)
}

// DocumentCounter tells the pipeline whether the conversation has any
// ingested documents at all.
type DocumentCounter interface {
	CountUserDocuments(ctx context.Context, conversationID int64) (int, error)
}

// Messages is the slice of convo.Repository the pipeline depends on for
// persisting the chat turn.
type Messages interface {
	AppendMessage(ctx context.Context, m convo.Message) (convo.Message, error)
	RenameConversation(ctx context.Context, id int64, title string) error
	GetConversationByID(ctx context.Context, id int64) (convo.Conversation, bool, error)
}

// ConversationsCacheInvalidator drops the cached conversations list for a
// user after a mutation.
type ConversationsCacheInvalidator interface {
	InvalidateUserConversations(userID int64)
}

// Pipeline wires every collaborator. All fields are required except
// Reranker and WebSearcher, which are optional collaborators.
type Pipeline struct {
	RateLimiter    RateLimiter
	Validator      SessionValidator
	Embedder       Embedder
	SemanticCache  SemanticCache
	VectorIndex    VectorSearcher
	DocumentCounts DocumentCounter
	Reranker       providers.Reranker // optional
	WebSearcher    providers.WebSearcher // optional
	LLM            providers.LLM
	Messages       Messages
	Cache          ConversationsCacheInvalidator
	Retry          RetryDoer
	Now            func() time.Time
}

// RetryDoer is the slice of llm.RetryPolicy the pipeline depends on.
type RetryDoer interface {
	Do(ctx context.Context, fn func(ctx context.Context) error) error
}
