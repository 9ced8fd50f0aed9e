package vectorindex

import (
	"container/heap"
	"math"
)

// epsilon avoids divide-by-zero in cosine similarity.
const epsilon = 1e-8

// Candidate is a scored chunk awaiting top-k selection.
type Candidate struct {
	ChunkID    int64
	ChunkText  string
	Embedding  []float32
}

// Cosine computes the cosine similarity between a and b in float32
// arithmetic, computing `M·q / (‖M_row‖·‖q‖ + ε)`.
func Cosine(a, b []float32) float32 {
	var dot, normA, normB float32
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	for i := 0; i < n; i++ {
		dot += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}
	return dot / (sqrt32(normA)*sqrt32(normB) + epsilon)
}

func sqrt32(v float32) float32 {
	if v <= 0 {
		return 0
	}
	return float32(math.Sqrt(float64(v)))
}

// scored pairs a candidate with its similarity for heap ordering.
type scored struct {
	Candidate
	similarity float32
}

// minHeap keeps the current top-k with the worst score at the root, so a new
// candidate only needs one comparison against the root to decide eviction —
// an "argpartition" shape, without a full sort.
type minHeap []scored

func (h minHeap) Len() int { return len(h) }
func (h minHeap) Less(i, j int) bool {
	if h[i].similarity != h[j].similarity {
		return h[i].similarity < h[j].similarity
	}
	// Tie-break: lower chunk id wins, so the heap root (removed first when
	// full) is the higher id among ties.
	return h[i].ChunkID > h[j].ChunkID
}
func (h minHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }
func (h *minHeap) Push(x any)        { *h = append(*h, x.(scored)) }
func (h *minHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}

// TopK selects the k candidates with the highest similarity to query via
// partial selection (a bounded min-heap), sorting only the final k rather
// than the full candidate set.
func TopK(candidates []Candidate, query []float32, k int) []SearchResult {
	if k <= 0 {
		return nil
	}
	h := make(minHeap, 0, k)
	heap.Init(&h)
	for _, c := range candidates {
		sim := Cosine(c.Embedding, query)
		if h.Len() < k {
			heap.Push(&h, scored{Candidate: c, similarity: sim})
			continue
		}
		if sim > h[0].similarity || (sim == h[0].similarity && c.ChunkID < h[0].ChunkID) {
			heap.Pop(&h)
			heap.Push(&h, scored{Candidate: c, similarity: sim})
		}
	}

	out := make([]SearchResult, h.Len())
	for i := len(out) - 1; i >= 0; i-- {
		item := heap.Pop(&h).(scored)
		out[i] = SearchResult{ChunkID: item.ChunkID, ChunkText: item.ChunkText, Similarity: item.similarity}
	}
	return out
}

// ClampScanWindow computes `clamp(top_k*50, 100, 500)`.
func ClampScanWindow(topK int) int {
	limit := topK * 50
	if limit < 100 {
		limit = 100
	}
	if limit > 500 {
		limit = 500
	}
	return limit
}
