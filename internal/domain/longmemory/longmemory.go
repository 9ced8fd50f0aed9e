// Package longmemory implements a per-user, cross-conversation QA store
// recalled by similarity·importance rather than recency alone: an
// upsert-by-identity-then-score-by-distance shape rescoped from
// per-session memories to per-user, cross-conversation recall.
package longmemory

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/yanqian/ai-helloworld/internal/domain/vectorindex"
)

// Defaults for Recall.
const (
	DefaultTopK       = 3
	DefaultMinSim     = 0.7
	CandidateCap      = 500
)

// Memory is a single remembered question/answer pair.
type Memory struct {
	ID             int64
	UserID         int64
	ConversationID int64
	Question       string
	Answer         string
	Embedding      []float32
	Importance     float64
	CreatedAt      time.Time
}

// Recalled pairs a Memory with its recall score (similarity·importance).
type Recalled struct {
	Memory
	Similarity float32
	Score      float64
}

// Store is the persistence contract.
type Store interface {
	// Save upserts a memory.
	Save(ctx context.Context, m Memory) error
	// Candidates returns up to CandidateCap most-recent memories for a
	// user, newest first.
	Candidates(ctx context.Context, userID int64) ([]Memory, error)
}

// Recall runs the ranked-recall algorithm: load the user's most-recent
// candidates, score every one at or above minSim by similarity·importance,
// excluding the current conversation so a session never "remembers" its
// own still-open turns, and return the top topK.
func Recall(ctx context.Context, store Store, userID int64, queryEmbedding []float32, topK int, minSim float64, excludeConversation int64) ([]Recalled, error) {
	if topK <= 0 {
		topK = DefaultTopK
	}
	if minSim <= 0 {
		minSim = DefaultMinSim
	}

	candidates, err := store.Candidates(ctx, userID)
	if err != nil {
		return nil, err
	}

	scored := make([]Recalled, 0, len(candidates))
	for _, m := range candidates {
		if m.ConversationID == excludeConversation {
			continue
		}
		sim := vectorindex.Cosine(m.Embedding, queryEmbedding)
		if float64(sim) < minSim {
			continue
		}
		scored = append(scored, Recalled{Memory: m, Similarity: sim, Score: float64(sim) * m.Importance})
	}

	return topByScore(scored, topK), nil
}

func topByScore(scored []Recalled, topK int) []Recalled {
	sort.Slice(scored, func(i, j int) bool { return scored[i].Score > scored[j].Score })
	if len(scored) > topK {
		scored = scored[:topK]
	}
	return scored
}

// Importance heuristics: answer length, topic keywords, and an
// optional explicit feedback signal combine into a score in [0.1, 1.0].
const (
	minImportance = 0.1
	maxImportance = 1.0
)

var importantKeywords = []string{
	"remember", "important", "always", "never", "prefer", "my name is",
}

// Importance scores a completed Q/A turn. feedback is an optional explicit
// user signal in [-1, 1] (thumbs down/up); pass 0 when none was given.
func Importance(question, answer string, feedback float64) float64 {
	score := minImportance

	length := len(answer)
	switch {
	case length > 500:
		score += 0.3
	case length > 150:
		score += 0.15
	}

	lower := strings.ToLower(question + " " + answer)
	for _, kw := range importantKeywords {
		if strings.Contains(lower, kw) {
			score += 0.2
			break
		}
	}

	if feedback > 0 {
		score += 0.3 * feedback
	} else if feedback < 0 {
		score += 0.2 * feedback // explicit negative feedback pulls importance down
	}

	if score > maxImportance {
		score = maxImportance
	}
	if score < minImportance {
		score = minImportance
	}
	return score
}
