// Package embedding implements fingerprint-keyed LRU caching in front of
// a batched remote embedder, with singleflight collapsing concurrent
// identical fingerprint computations (the "at-most-one build" invariant
// applied to embedding work, not just the semantic cache): a batched remote
// embedder call paired with an LRU and a singleflight.Group guarding the
// same kind of expensive, idempotent remote computation.
package embedding

import (
	"context"
	"crypto/sha256"
	"encoding/hex"

	"golang.org/x/sync/singleflight"

	"github.com/yanqian/ai-helloworld/internal/domain/providers"
	apperrors "github.com/yanqian/ai-helloworld/pkg/errors"
)

// CacheCapacity is the LRU capacity for cached embeddings.
const CacheCapacity = 200

// Service is the embedder-plus-cache façade.
type Service struct {
	remote   providers.Embedder
	fallback providers.Embedder // direct HTTP POST fallback, may be nil
	cache    *lru
	group    singleflight.Group
}

// New constructs a Service. fallback may be nil if no fallback endpoint is
// configured.
func New(remote, fallback providers.Embedder) *Service {
	return &Service{remote: remote, fallback: fallback, cache: newLRU(CacheCapacity)}
}

func fingerprint(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}

// Embed returns vectors for texts in input order, consulting the cache first
// and batching cache misses into a single remote call (falling back on
// remote failure).
func (s *Service) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	out := make([][]float32, len(texts))
	missIdx := make([]int, 0, len(texts))
	missTexts := make([]string, 0, len(texts))
	fps := make([]string, len(texts))

	for i, text := range texts {
		fp := fingerprint(text)
		fps[i] = fp
		if vec, ok := s.cache.get(fp); ok {
			out[i] = vec
			continue
		}
		missIdx = append(missIdx, i)
		missTexts = append(missTexts, text)
	}

	if len(missTexts) == 0 {
		return out, nil
	}

	key := fingerprint(joinForKey(missTexts))
	resultAny, err, _ := s.group.Do(key, func() (any, error) {
		return s.embedRemote(ctx, missTexts)
	})
	if err != nil {
		return nil, err
	}
	vectors := resultAny.([][]float32)
	if len(vectors) != len(missTexts) {
		return nil, apperrors.Wrap(apperrors.CodeProvider, "embedding result count mismatch", nil)
	}
	for j, idx := range missIdx {
		out[idx] = vectors[j]
		s.cache.put(fps[idx], vectors[j])
	}
	return out, nil
}

func (s *Service) embedRemote(ctx context.Context, texts []string) ([][]float32, error) {
	vectors, err := s.remote.Embed(ctx, texts)
	if err == nil {
		return vectors, nil
	}
	if s.fallback == nil {
		return nil, apperrors.Wrap(apperrors.CodeProvider, "embed request failed", err)
	}
	vectors, fallbackErr := s.fallback.Embed(ctx, texts)
	if fallbackErr != nil {
		return nil, apperrors.Wrap(apperrors.CodeProvider, "embed request and fallback both failed", fallbackErr)
	}
	return vectors, nil
}

func joinForKey(texts []string) string {
	out := make([]byte, 0, 64)
	for _, t := range texts {
		out = append(out, t...)
		out = append(out, 0)
	}
	return string(out)
}

var _ providers.Embedder = (*Service)(nil)
