package retrieval

import (
	"context"
	"sort"

	"github.com/yanqian/ai-helloworld/internal/domain/providers"
	"github.com/yanqian/ai-helloworld/internal/domain/vectorindex"
)

// rerankAndTrim passes the top vector hits through the optional reranker
// and keeps the best rerankedTopK, or just the top rerankedTopK by cosine
// score when no reranker is configured. Reranker failures
// fall back to the cosine ordering rather than failing the whole turn.
func rerankAndTrim(ctx context.Context, reranker providers.Reranker, query string, results []vectorindex.SearchResult) []string {
	if len(results) == 0 {
		return nil
	}
	if reranker == nil {
		return topTexts(results, rerankedTopK)
	}

	passages := make([]string, len(results))
	for i, r := range results {
		passages[i] = r.ChunkText
	}
	ranked, err := reranker.Rerank(ctx, query, passages)
	if err != nil || len(ranked) == 0 {
		return topTexts(results, rerankedTopK)
	}

	sort.Slice(ranked, func(i, j int) bool { return ranked[i].Score > ranked[j].Score })
	limit := rerankedTopK
	if limit > len(ranked) {
		limit = len(ranked)
	}
	out := make([]string, 0, limit)
	for _, r := range ranked[:limit] {
		if r.Index < 0 || r.Index >= len(results) {
			continue
		}
		out = append(out, results[r.Index].ChunkText)
	}
	return out
}

func topTexts(results []vectorindex.SearchResult, limit int) []string {
	if limit > len(results) {
		limit = len(results)
	}
	out := make([]string, limit)
	for i := 0; i < limit; i++ {
		out[i] = results[i].ChunkText
	}
	return out
}
