// Package valkey is the optional external-key-value-server backend for the
// semantic cache, grounded on a Valkey-backed store shape.
package valkey

import (
	"context"
	"encoding/json"
	"time"

	"github.com/valkey-io/valkey-go"

	"github.com/yanqian/ai-helloworld/internal/domain/semcache"
)

// wireEntry is the JSON-serialized form stored per key.
type wireEntry struct {
	QuestionText string         `json:"questionText"`
	Answer       string         `json:"answer"`
	Embedding    []float32      `json:"embedding"`
	Metadata     map[string]any `json:"metadata"`
	CreatedAt    time.Time      `json:"createdAt"`
	TTLSeconds   int64          `json:"ttlSeconds"`
}

// Backend implements semcache.Backend over a Valkey-compatible client.
type Backend struct {
	client valkey.Client
	prefix string
}

// New constructs a Backend. prefix namespaces keys; defaults to "semcache".
func New(client valkey.Client, prefix string) *Backend {
	if prefix == "" {
		prefix = "semcache"
	}
	return &Backend{client: client, prefix: prefix}
}

func (b *Backend) Name() string { return "valkey" }

func (b *Backend) key(id string) string { return b.prefix + ":entry:" + id }

func (b *Backend) setKey() string { return b.prefix + ":ids" }

func (b *Backend) Save(ctx context.Context, e semcache.Entry) error {
	payload, err := json.Marshal(wireEntry{
		QuestionText: e.QuestionText,
		Answer:       e.Answer,
		Embedding:    e.QuestionEmbedding,
		Metadata:     e.Metadata,
		CreatedAt:    e.CreatedAt,
		TTLSeconds:   int64(e.TTL / time.Second),
	})
	if err != nil {
		return err
	}
	id := e.CreatedAt.Format(time.RFC3339Nano)
	builder := b.client.B().Set().Key(b.key(id)).Value(string(payload))
	var cmd valkey.Completed
	if e.TTL > 0 {
		cmd = builder.Ex(e.TTL).Build()
	} else {
		cmd = builder.Build()
	}
	if err := b.client.Do(ctx, cmd).Error(); err != nil {
		return err
	}
	return b.client.Do(ctx, b.client.B().Sadd().Key(b.setKey()).Member(id).Build()).Error()
}

func (b *Backend) Load(ctx context.Context) ([]semcache.Entry, error) {
	idsResp := b.client.Do(ctx, b.client.B().Smembers().Key(b.setKey()).Build())
	ids, err := idsResp.AsStrSlice()
	if err != nil {
		if valkey.IsValkeyNil(err) {
			return nil, nil
		}
		return nil, err
	}

	var out []semcache.Entry
	for _, id := range ids {
		resp := b.client.Do(ctx, b.client.B().Get().Key(b.key(id)).Build())
		payload, err := resp.ToString()
		if err != nil {
			if valkey.IsValkeyNil(err) {
				continue
			}
			return nil, err
		}
		var w wireEntry
		if err := json.Unmarshal([]byte(payload), &w); err != nil {
			continue
		}
		out = append(out, semcache.Entry{
			QuestionText:      w.QuestionText,
			Answer:            w.Answer,
			QuestionEmbedding: w.Embedding,
			Metadata:          w.Metadata,
			CreatedAt:         w.CreatedAt,
			TTL:               time.Duration(w.TTLSeconds) * time.Second,
		})
	}
	return out, nil
}

func (b *Backend) DeleteAll(ctx context.Context) error {
	idsResp := b.client.Do(ctx, b.client.B().Smembers().Key(b.setKey()).Build())
	ids, err := idsResp.AsStrSlice()
	if err != nil && !valkey.IsValkeyNil(err) {
		return err
	}
	for _, id := range ids {
		_ = b.client.Do(ctx, b.client.B().Del().Key(b.key(id)).Build()).Error()
	}
	return b.client.Do(ctx, b.client.B().Del().Key(b.setKey()).Build()).Error()
}

var _ semcache.Backend = (*Backend)(nil)
