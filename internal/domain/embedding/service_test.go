package embedding

import (
	"context"
	"errors"
	"testing"

	"github.com/yanqian/ai-helloworld/internal/domain/providers"
)

type fakeEmbedder struct {
	calls int
	err   error
	vec   func(string) []float32
}

func (f *fakeEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	out := make([][]float32, len(texts))
	for i, t := range texts {
		if f.vec != nil {
			out[i] = f.vec(t)
		} else {
			out[i] = []float32{1, 2, 3}
		}
	}
	return out, nil
}

var _ providers.Embedder = (*fakeEmbedder)(nil)

func TestEmbedCachesByFingerprint(t *testing.T) {
	remote := &fakeEmbedder{}
	svc := New(remote, nil)

	_, err := svc.Embed(context.Background(), []string{"hello"})
	if err != nil {
		t.Fatalf("embed: %v", err)
	}
	_, err = svc.Embed(context.Background(), []string{"hello"})
	if err != nil {
		t.Fatalf("embed: %v", err)
	}
	if remote.calls != 1 {
		t.Fatalf("expected cache hit to avoid second remote call, got %d calls", remote.calls)
	}
}

func TestEmbedFallsBackOnRemoteFailure(t *testing.T) {
	remote := &fakeEmbedder{err: errors.New("boom")}
	fallback := &fakeEmbedder{}
	svc := New(remote, fallback)

	out, err := svc.Embed(context.Background(), []string{"x"})
	if err != nil {
		t.Fatalf("embed: %v", err)
	}
	if fallback.calls != 1 {
		t.Fatalf("expected fallback to be used")
	}
	if len(out) != 1 {
		t.Fatalf("expected one vector")
	}
}

func TestEmbedFailsWhenBothPathsFail(t *testing.T) {
	remote := &fakeEmbedder{err: errors.New("boom")}
	fallback := &fakeEmbedder{err: errors.New("also boom")}
	svc := New(remote, fallback)

	if _, err := svc.Embed(context.Background(), []string{"x"}); err == nil {
		t.Fatalf("expected error when both paths fail")
	}
}
