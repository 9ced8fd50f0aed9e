// Package directhttp is the plain embedding path: a direct POST to
// "<base>/v1/embeddings" with no client-library retry/shaping logic. It fits
// embedding.Service's fallback slot, and the per-tenant HTTP wiring uses it
// as the sole embedder whenever the user config supplies none.
// Modeled on fbrzx-airplane-chat's plain net/http provider-adapter style
// (context-bounded timeout, manual JSON marshal/unmarshal, no SDK).
package directhttp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	apperrors "github.com/yanqian/ai-helloworld/pkg/errors"
)

// Embedder posts directly to baseURL + "/v1/embeddings".
type Embedder struct {
	apiKey     string
	baseURL    string
	model      string
	httpClient *http.Client
}

// New constructs the fallback embedder.
func New(apiKey, baseURL, model string) *Embedder {
	return &Embedder{
		apiKey:     apiKey,
		baseURL:    strings.TrimRight(baseURL, "/"),
		model:      model,
		httpClient: &http.Client{Timeout: 60 * time.Second},
	}
}

type request struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type response struct {
	Data []struct {
		Embedding []float32 `json:"embedding"`
	} `json:"data"`
}

// Embed posts the whole batch in a single request with no internal batching.
func (e *Embedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	payload, err := json.Marshal(request{Model: e.model, Input: texts})
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeProvider, "encode direct embedding request", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, e.baseURL+"/v1/embeddings", bytes.NewReader(payload))
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeProvider, "build direct embedding request", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+e.apiKey)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := e.httpClient.Do(httpReq)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeProvider, "direct embedding request failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
		return nil, apperrors.Wrap(apperrors.CodeProvider, fmt.Sprintf("direct embedding request status=%d body=%s", resp.StatusCode, string(body)), nil)
	}

	var out response
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, apperrors.Wrap(apperrors.CodeProvider, "decode direct embedding response", err)
	}
	vectors := make([][]float32, len(out.Data))
	for i, item := range out.Data {
		vectors[i] = item.Embedding
	}
	return vectors, nil
}
