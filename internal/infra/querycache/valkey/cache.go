// Package valkey is the external-key-value-server implementation of the
// query-result cache, selected when a Valkey-compatible server is
// configured, following the same connection/command style as the other
// valkey-backed stores in this module.
package valkey

import (
	"context"
	"encoding/json"
	"path"
	"sync/atomic"
	"time"

	"github.com/valkey-io/valkey-go"

	"github.com/yanqian/ai-helloworld/internal/domain/querycache"
)

// Cache implements querycache.QueryCache over a Valkey-compatible client.
// Keys are namespaced under prefix so multiple tenants/services can share a
// server; SCAN is used for ClearPattern since Valkey has no native glob
// delete.
type Cache struct {
	cli    valkey.Client
	prefix string

	hits   int64
	misses int64
}

// New constructs a Cache. prefix namespaces every key; defaults to "qc".
func New(cli valkey.Client, prefix string) *Cache {
	if prefix == "" {
		prefix = "qc"
	}
	return &Cache{cli: cli, prefix: prefix}
}

func (c *Cache) wireKey(key string) string { return c.prefix + ":" + key }

func (c *Cache) Get(key string) (any, bool) {
	ctx := context.Background()
	resp := c.cli.Do(ctx, c.cli.B().Get().Key(c.wireKey(key)).Build())
	payload, err := resp.ToString()
	if err != nil {
		atomic.AddInt64(&c.misses, 1)
		return nil, false
	}
	var value any
	if err := json.Unmarshal([]byte(payload), &value); err != nil {
		atomic.AddInt64(&c.misses, 1)
		return nil, false
	}
	atomic.AddInt64(&c.hits, 1)
	return value, true
}

func (c *Cache) Set(key string, value any, ttl time.Duration) {
	if value == nil {
		return
	}
	payload, err := json.Marshal(value)
	if err != nil {
		return
	}
	ctx := context.Background()
	builder := c.cli.B().Set().Key(c.wireKey(key)).Value(string(payload))
	var cmd valkey.Completed
	if ttl > 0 {
		cmd = builder.Ex(ttl).Build()
	} else {
		cmd = builder.Build()
	}
	_ = c.cli.Do(ctx, cmd).Error()
}

func (c *Cache) Delete(key string) {
	ctx := context.Background()
	_ = c.cli.Do(ctx, c.cli.B().Del().Key(c.wireKey(key)).Build()).Error()
}

// ClearPattern scans all keys under prefix and deletes the ones whose
// unprefixed suffix matches pattern.
func (c *Cache) ClearPattern(pattern string) int {
	ctx := context.Background()
	var cursor uint64
	deleted := 0
	for {
		resp := c.cli.Do(ctx, c.cli.B().Scan().Cursor(cursor).Match(c.wireKey("*")).Build())
		entry, err := resp.AsScanEntry()
		if err != nil {
			return deleted
		}
		for _, k := range entry.Elements {
			suffix := k[len(c.prefix)+1:]
			if matched, _ := path.Match(pattern, suffix); matched {
				_ = c.cli.Do(ctx, c.cli.B().Del().Key(k).Build()).Error()
				deleted++
			}
		}
		cursor = entry.Cursor
		if cursor == 0 {
			break
		}
	}
	return deleted
}

func (c *Cache) Stats() querycache.Stats {
	return querycache.Stats{
		Hits:    atomic.LoadInt64(&c.hits),
		Misses:  atomic.LoadInt64(&c.misses),
		Backend: "valkey",
	}
}

var _ querycache.QueryCache = (*Cache)(nil)
