package longmemory

import (
	"context"
	"testing"
)

type fakeStore struct {
	memories []Memory
}

func (s *fakeStore) Save(ctx context.Context, m Memory) error {
	s.memories = append(s.memories, m)
	return nil
}

func (s *fakeStore) Candidates(ctx context.Context, userID int64) ([]Memory, error) {
	out := make([]Memory, 0, len(s.memories))
	for _, m := range s.memories {
		if m.UserID == userID {
			out = append(out, m)
		}
	}
	return out, nil
}

func TestRecallExcludesCurrentConversation(t *testing.T) {
	store := &fakeStore{memories: []Memory{
		{UserID: 1, ConversationID: 5, Embedding: []float32{1, 0}, Importance: 1.0},
		{UserID: 1, ConversationID: 9, Embedding: []float32{1, 0}, Importance: 1.0},
	}}
	results, err := Recall(context.Background(), store, 1, []float32{1, 0}, 3, 0.5, 5)
	if err != nil {
		t.Fatalf("recall: %v", err)
	}
	if len(results) != 1 || results[0].ConversationID != 9 {
		t.Fatalf("expected only conversation 9's memory, got %#v", results)
	}
}

func TestRecallFiltersBelowMinSimilarity(t *testing.T) {
	store := &fakeStore{memories: []Memory{
		{UserID: 1, ConversationID: 9, Embedding: []float32{0, 1}, Importance: 1.0},
	}}
	results, err := Recall(context.Background(), store, 1, []float32{1, 0}, 3, 0.5, 0)
	if err != nil {
		t.Fatalf("recall: %v", err)
	}
	if len(results) != 0 {
		t.Fatalf("expected no results below similarity threshold, got %#v", results)
	}
}

func TestRecallRanksBySimilarityTimesImportance(t *testing.T) {
	store := &fakeStore{memories: []Memory{
		{ID: 1, UserID: 1, ConversationID: 9, Embedding: []float32{1, 0}, Importance: 0.2},
		{ID: 2, UserID: 1, ConversationID: 9, Embedding: []float32{1, 0}, Importance: 0.9},
	}}
	results, err := Recall(context.Background(), store, 1, []float32{1, 0}, 3, 0.5, 0)
	if err != nil {
		t.Fatalf("recall: %v", err)
	}
	if len(results) != 2 || results[0].ID != 2 {
		t.Fatalf("expected memory 2 ranked first by importance, got %#v", results)
	}
}

func TestRecallCapsAtTopK(t *testing.T) {
	store := &fakeStore{}
	for i := 0; i < 10; i++ {
		store.memories = append(store.memories, Memory{UserID: 1, ConversationID: int64(100 + i), Embedding: []float32{1, 0}, Importance: 1.0})
	}
	results, err := Recall(context.Background(), store, 1, []float32{1, 0}, 3, 0.5, 0)
	if err != nil {
		t.Fatalf("recall: %v", err)
	}
	if len(results) != 3 {
		t.Fatalf("expected results capped at top_k=3, got %d", len(results))
	}
}

func TestImportanceRangeAndKeywordBoost(t *testing.T) {
	base := Importance("what's the weather", "it's sunny", 0)
	if base < minImportance || base > maxImportance {
		t.Fatalf("importance out of range: %v", base)
	}
	boosted := Importance("remember this", "I will always prefer concise answers", 0)
	if boosted <= base {
		t.Fatalf("expected keyword-boosted importance %v to exceed base %v", boosted, base)
	}
}

func TestImportanceClampsToMax(t *testing.T) {
	longAnswer := make([]byte, 1000)
	for i := range longAnswer {
		longAnswer[i] = 'a'
	}
	score := Importance("remember my preference", string(longAnswer), 1.0)
	if score > maxImportance {
		t.Fatalf("importance exceeded max: %v", score)
	}
}
