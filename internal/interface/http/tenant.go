package http

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"

	"github.com/yanqian/ai-helloworld/internal/domain/chunking"
	"github.com/yanqian/ai-helloworld/internal/domain/convo"
	"github.com/yanqian/ai-helloworld/internal/domain/ingest"
	"github.com/yanqian/ai-helloworld/internal/domain/providers"
	"github.com/yanqian/ai-helloworld/internal/domain/ratelimit"
	"github.com/yanqian/ai-helloworld/internal/domain/retrieval"
	"github.com/yanqian/ai-helloworld/internal/domain/semcache"
	"github.com/yanqian/ai-helloworld/internal/domain/tenantstate"
	"github.com/yanqian/ai-helloworld/internal/domain/vectorindex"
	"github.com/yanqian/ai-helloworld/internal/infra/embedding/directhttp"
	"github.com/yanqian/ai-helloworld/internal/infra/llm"
	llmopenai "github.com/yanqian/ai-helloworld/internal/infra/llm/openai"
	"github.com/yanqian/ai-helloworld/internal/infra/vectorindex/sqlitevec"
	apperrors "github.com/yanqian/ai-helloworld/pkg/errors"
	"github.com/yanqian/ai-helloworld/pkg/secretcrypto"
)

const (
	defaultChatModel      = "gpt-4o-mini"
	defaultEmbeddingModel = "text-embedding-3-small"
)

// chatLLM adapts llmopenai.Client to providers.LLM.
type chatLLM struct {
	client *llmopenai.Client
	model  string
}

func (c *chatLLM) Chat(ctx context.Context, messages []providers.ChatMessage) (string, error) {
	req := llmopenai.ChatCompletionRequest{Model: c.model}
	for _, m := range messages {
		req.Messages = append(req.Messages, llmopenai.Message{Role: m.Role, Content: m.Content})
	}
	resp, err := c.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", apperrors.Provider(apperrors.ProviderGeneric, "empty chat completion response", nil)
	}
	return resp.Choices[0].Message.Content, nil
}

// TenantResources lazily builds and caches the per-user
// wiring: one vector store file per tenant, one
// semantic cache, and the ingest/retrieval pipelines that share them.
// Grounded on bootstrap.App holding its long-lived
// singletons for the lifetime of the process; generalized here from one
// process-wide instance to one per authenticated user.
type TenantResources struct {
	mu        sync.Mutex
	byUser    map[int64]*tenant
	state     *tenantstate.Store
	repo      convo.Repository
	validator *convo.Validator
	limiter   *ratelimit.Limiter
	vectorDir string
	pdf       ingest.PDFExtractor
	objects   ingest.ObjectStore
	tempDir   string
	chunker   *chunking.Chunker
	secrets   *secretcrypto.Box
}

type tenant struct {
	vectorIndex vectorindex.Index
	semCache    *semcache.Cache
	ingest      *ingest.Pipeline
	retrieval   *retrieval.Pipeline
}

func NewTenantResources(state *tenantstate.Store, repo convo.Repository, validator *convo.Validator, limiter *ratelimit.Limiter, vectorDir, tempDir string, pdf ingest.PDFExtractor, objects ingest.ObjectStore, secrets *secretcrypto.Box) *TenantResources {
	return &TenantResources{
		byUser:    make(map[int64]*tenant),
		state:     state,
		repo:      repo,
		validator: validator,
		limiter:   limiter,
		vectorDir: vectorDir,
		tempDir:   tempDir,
		pdf:       pdf,
		objects:   objects,
		chunker:   chunking.New(),
		secrets:   secrets,
	}
}

// errConfigMissing reports that the user has not saved provider credentials.
var errConfigMissing = apperrors.Wrap(apperrors.CodeConfigMissing, "provider configuration not set; call POST /config first", nil)

func (t *TenantResources) forUser(ctx context.Context, userID int64, username string) (*tenant, error) {
	cfg := t.state.GetConfig(userID)
	if cfg == nil {
		return nil, errConfigMissing
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if existing, ok := t.byUser[userID]; ok {
		return existing, nil
	}

	dsn := filepath.Join(t.vectorDir, fmt.Sprintf("vector_store_%s.db", username))
	index, err := sqlitevec.Open(ctx, dsn)
	if err != nil {
		return nil, err
	}

	apiKey, err := t.secrets.Decrypt(cfg.APIKey)
	if err != nil {
		return nil, apperrors.Provider(apperrors.ProviderBadKey, "invalid stored provider credentials", err)
	}

	embedder := cfg.Embedder
	if embedder == nil {
		embedder = directhttp.New(apiKey, cfg.BaseURL, defaultEmbeddingModel)
	}
	chatClient, err := llmopenai.NewClient(apiKey, cfg.BaseURL)
	if err != nil {
		return nil, apperrors.Provider(apperrors.ProviderBadKey, "invalid LLM credentials", err)
	}
	chatModel := &chatLLM{client: chatClient, model: defaultChatModel}

	var model providers.LLM = chatModel
	if cfg.LLM != nil {
		model = cfg.LLM
	}

	sc := semcache.New(0, 0, 0, nil)
	retry := llm.DefaultRetryPolicy()

	tn := &tenant{
		vectorIndex: index,
		semCache:    sc,
		ingest: &ingest.Pipeline{
			RateLimiter: t.limiter,
			Validator:   t.validator,
			Chunker:     t.chunker,
			Embedder:    embedder,
			VectorIndex: index,
			Documents:   t.repo,
			Sessions:    t.state,
			PDF:         t.pdf,
			Objects:     t.objects,
			TempDir:     t.tempDir,
		},
		retrieval: &retrieval.Pipeline{
			RateLimiter:    t.limiter,
			Validator:      t.validator,
			Embedder:       embedder,
			SemanticCache:  sc,
			VectorIndex:    index,
			DocumentCounts: t.repo,
			Reranker:       cfg.Reranker,
			LLM:            model,
			Messages:       t.repo,
			Retry:          retry,
		},
	}
	t.byUser[userID] = tn
	return tn, nil
}
