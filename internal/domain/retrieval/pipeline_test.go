package retrieval

import (
	"context"
	"testing"

	"github.com/yanqian/ai-helloworld/internal/domain/convo"
	"github.com/yanqian/ai-helloworld/internal/domain/providers"
	"github.com/yanqian/ai-helloworld/internal/domain/ratelimit"
	"github.com/yanqian/ai-helloworld/internal/domain/semcache"
	"github.com/yanqian/ai-helloworld/internal/domain/vectorindex"
)

type stubLimiter struct{ err error }

func (s stubLimiter) Check(userID int64, op ratelimit.Operation, cost int) error { return s.err }

type stubValidator struct {
	ok  bool
	msg string
}

func (s stubValidator) ValidateAccess(ctx context.Context, conversationID, userID int64, requireActive bool) (bool, string) {
	return s.ok, s.msg
}

type stubEmbedder struct{ vec []float32 }

func (s stubEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = s.vec
	}
	return out, nil
}

type stubSemCache struct {
	hit    semcache.Result
	hasHit bool
	setCalled bool
}

func (s *stubSemCache) Get(ctx context.Context, queryEmbedding []float32, queryText string) (semcache.Result, bool) {
	return s.hit, s.hasHit
}
func (s *stubSemCache) Set(ctx context.Context, queryEmbedding []float32, queryText, answer string, metadata map[string]any) {
	s.setCalled = true
}

type stubVectorIndex struct {
	results []vectorindex.SearchResult
}

func (s stubVectorIndex) Search(ctx context.Context, queryEmbedding []float32, topK int, conversationID *int64) ([]vectorindex.SearchResult, error) {
	return s.results, nil
}

type stubDocCounter struct{ n int }

func (s stubDocCounter) CountUserDocuments(ctx context.Context, conversationID int64) (int, error) {
	return s.n, nil
}

type stubLLM struct{ reply string }

func (s stubLLM) Chat(ctx context.Context, messages []providers.ChatMessage) (string, error) {
	return s.reply, nil
}

type stubMessages struct {
	appended []convo.Message
	conv     convo.Conversation
	renamed  string
}

func (s *stubMessages) AppendMessage(ctx context.Context, m convo.Message) (convo.Message, error) {
	s.appended = append(s.appended, m)
	return m, nil
}
func (s *stubMessages) RenameConversation(ctx context.Context, id int64, title string) error {
	s.renamed = title
	return nil
}
func (s *stubMessages) GetConversationByID(ctx context.Context, id int64) (convo.Conversation, bool, error) {
	return s.conv, true, nil
}

type noopRetry struct{}

func (noopRetry) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

func basePipeline() (*Pipeline, *stubSemCache, *stubMessages) {
	semCache := &stubSemCache{}
	msgs := &stubMessages{}
	p := &Pipeline{
		RateLimiter:    stubLimiter{},
		Validator:      stubValidator{ok: true},
		Embedder:       stubEmbedder{vec: []float32{1, 0}},
		SemanticCache:  semCache,
		VectorIndex:    stubVectorIndex{},
		DocumentCounts: stubDocCounter{n: 0},
		LLM:            stubLLM{reply: "the answer"},
		Messages:       msgs,
		Retry:          noopRetry{},
	}
	return p, semCache, msgs
}

func TestAnswerReturnsCacheHit(t *testing.T) {
	p, semCache, _ := basePipeline()
	semCache.hasHit = true
	semCache.hit = semcache.Result{Answer: "cached answer"}

	result, err := p.Answer(context.Background(), 1, 1, "what is go")
	if err != nil {
		t.Fatalf("answer: %v", err)
	}
	if !result.UsedCache || result.Answer != "cached answer" {
		t.Fatalf("got %#v", result)
	}
}

func TestAnswerRejectsEmptyQuery(t *testing.T) {
	p, _, _ := basePipeline()
	_, err := p.Answer(context.Background(), 1, 1, "   ")
	if err == nil {
		t.Fatalf("expected validation error")
	}
}

func TestAnswerFailsOnRateLimit(t *testing.T) {
	p, _, _ := basePipeline()
	p.RateLimiter = stubLimiter{err: errRateLimited{}}
	_, err := p.Answer(context.Background(), 1, 1, "hi")
	if err == nil {
		t.Fatalf("expected rate limit error")
	}
}

type errRateLimited struct{}

func (errRateLimited) Error() string { return "rate limited" }

func TestAnswerFailsOnInvalidSession(t *testing.T) {
	p, _, _ := basePipeline()
	p.Validator = stubValidator{ok: false, msg: "expired"}
	_, err := p.Answer(context.Background(), 1, 1, "hi")
	if err == nil {
		t.Fatalf("expected session error")
	}
}

func TestAnswerPersistsTwoMessagesAndPopulatesCache(t *testing.T) {
	p, semCache, msgs := basePipeline()
	result, err := p.Answer(context.Background(), 1, 1, "hi")
	if err != nil {
		t.Fatalf("answer: %v", err)
	}
	if result.Answer != "the answer" {
		t.Fatalf("got answer %q", result.Answer)
	}
	if len(msgs.appended) != 2 {
		t.Fatalf("expected 2 persisted messages, got %d", len(msgs.appended))
	}
	if msgs.appended[0].Role != convo.RoleUser || msgs.appended[1].Role != convo.RoleAssistant {
		t.Fatalf("unexpected roles %#v", msgs.appended)
	}
	if !semCache.setCalled {
		t.Fatalf("expected semantic cache to be populated")
	}
}

func TestAnswerUsesVectorResultsWhenDocumentsExist(t *testing.T) {
	p, _, _ := basePipeline()
	p.DocumentCounts = stubDocCounter{n: 1}
	p.VectorIndex = stubVectorIndex{results: []vectorindex.SearchResult{
		{ChunkID: 1, ChunkText: "relevant chunk", Similarity: 0.9},
	}}
	result, err := p.Answer(context.Background(), 1, 1, "hi")
	if err != nil {
		t.Fatalf("answer: %v", err)
	}
	if len(result.Sources) != 1 || result.Sources[0] != "relevant chunk" {
		t.Fatalf("got sources %#v", result.Sources)
	}
}

func TestAnswerGeneratesTitleOnFirstTurn(t *testing.T) {
	p, _, msgs := basePipeline()
	msgs.conv = convo.Conversation{ID: 1, Title: ""}
	p.LLM = stubLLM{reply: "TITLE: Go Basics"}
	result, err := p.Answer(context.Background(), 1, 1, "hi")
	if err != nil {
		t.Fatalf("answer: %v", err)
	}
	if result.Title != "Go Basics" {
		t.Fatalf("got title %q", result.Title)
	}
	if msgs.renamed != "Go Basics" {
		t.Fatalf("expected rename to be called, got %q", msgs.renamed)
	}
}
