// Package openai adapts the llm/openai client into a providers.Embedder,
// batching requests under a conservative token budget, generalized from
// internal/infra/uploadask/embedder/chatgpt.go.
package openai

import (
	"context"
	"strings"
	"unicode/utf8"

	"github.com/yanqian/ai-helloworld/internal/infra/llm/openai"
)

// Embedder calls an OpenAI-compatible embeddings API.
type Embedder struct {
	client *openai.Client
	model  string
}

// New constructs an Embedder backed by client.
func New(client *openai.Client, model string) *Embedder {
	return &Embedder{client: client, model: strings.TrimSpace(model)}
}

const maxBatchTokens = 200_000 // stay well below provider per-request caps

// Embed requests embeddings for texts, batching under the token budget.
func (e *Embedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	var (
		out         [][]float32
		batch       []string
		batchTokens int
	)

	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		resp, err := e.client.CreateEmbedding(ctx, openai.EmbeddingRequest{Model: e.model, Input: batch})
		if err != nil {
			return err
		}
		for _, item := range resp.Data {
			vec := make([]float32, len(item.Embedding))
			copy(vec, item.Embedding)
			out = append(out, vec)
		}
		batch = batch[:0]
		batchTokens = 0
		return nil
	}

	for _, text := range texts {
		tokens := estimateTokens(text)
		if batchTokens+tokens > maxBatchTokens && len(batch) > 0 {
			if err := flush(); err != nil {
				return nil, err
			}
		}
		batch = append(batch, text)
		batchTokens += tokens
	}
	if err := flush(); err != nil {
		return nil, err
	}
	return out, nil
}

// estimateTokens provides a rough, upper-biased token count without a
// tokenizer dependency, matching a simple character-count heuristic.
func estimateTokens(text string) int {
	if text == "" {
		return 0
	}
	runes := utf8.RuneCountInString(text)
	words := len(strings.Fields(text))
	byRunes := (runes + 1) / 2
	if byRunes < words {
		return words
	}
	return byRunes
}
