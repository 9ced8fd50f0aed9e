package ingest

import (
	"context"
	"errors"
	"os"
	"testing"

	"github.com/yanqian/ai-helloworld/internal/domain/chunking"
	"github.com/yanqian/ai-helloworld/internal/domain/convo"
	"github.com/yanqian/ai-helloworld/internal/domain/ratelimit"
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

type stubEmbedder struct{ calls [][]string }

func (s *stubEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	s.calls = append(s.calls, append([]string{}, texts...))
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{1, 0}
	}
	return out, nil
}

type stubIndex struct {
	addedChunks         []vectorindex.ChunkInput
	addedConversationID int64
}

func (s *stubIndex) AddDocument(ctx context.Context, filename, fileHash string, chunks []vectorindex.ChunkInput, conversationID int64) error {
	s.addedChunks = chunks
	s.addedConversationID = conversationID
	return nil
}
func (s *stubIndex) Search(ctx context.Context, queryEmbedding []float32, topK int, conversationID *int64) ([]vectorindex.SearchResult, error) {
	return nil, nil
}
func (s *stubIndex) Close() error { return nil }

type stubDocuments struct {
	created convo.UserDocument
}

func (s *stubDocuments) CreateUserDocument(ctx context.Context, d convo.UserDocument) (convo.UserDocument, error) {
	d.ID = 1
	s.created = d
	return d, nil
}

type stubSessions struct {
	flagged map[int64]bool
}

func (s *stubSessions) SetDocumentsLoaded(userID int64, loaded bool) {
	if s.flagged == nil {
		s.flagged = map[int64]bool{}
	}
	s.flagged[userID] = loaded
}

type stubPDF struct {
	text string
	err  error
}

func (s stubPDF) ExtractText(path string) (string, error) { return s.text, s.err }

type stubObjectStore struct {
	stored map[string][]byte
	err    error
}

func (s *stubObjectStore) Put(ctx context.Context, filename string, content []byte, contentType string) (string, error) {
	if s.err != nil {
		return "", s.err
	}
	if s.stored == nil {
		s.stored = map[string][]byte{}
	}
	key := "stored/" + filename
	s.stored[key] = append([]byte{}, content...)
	return key, nil
}

func basePipeline(t *testing.T) (*Pipeline, *stubIndex, *stubDocuments, *stubSessions) {
	t.Helper()
	index := &stubIndex{}
	docs := &stubDocuments{}
	sessions := &stubSessions{}
	p := &Pipeline{
		RateLimiter: stubLimiter{},
		Validator:   stubValidator{ok: true},
		Chunker:     chunking.New(),
		Embedder:    &stubEmbedder{},
		VectorIndex: index,
		Documents:   docs,
		Sessions:    sessions,
		PDF:         stubPDF{text: longText()},
		Objects:     &stubObjectStore{},
		TempDir:     t.TempDir(),
	}
	return p, index, docs, sessions
}

func longText() string {
	s := ""
	for i := 0; i < 20; i++ {
		s += "This is sentence number filler content used to build a paragraph that is long enough to chunk. "
	}
	return s
}

func TestIngestRejectsNonPDF(t *testing.T) {
	p, _, _, _ := basePipeline(t)
	_, err := p.Ingest(context.Background(), Request{UserID: 1, ConversationID: 1, Filename: "notes.txt", Content: []byte("hi")})
	if err == nil {
		t.Fatalf("expected rejection of non-pdf upload")
	}
}

func TestIngestRequiresConversationID(t *testing.T) {
	p, _, _, _ := basePipeline(t)
	_, err := p.Ingest(context.Background(), Request{UserID: 1, Filename: "doc.pdf", Content: []byte("hi")})
	if err == nil {
		t.Fatalf("expected validation error for missing conversation id")
	}
}

func TestIngestFailsOnRateLimit(t *testing.T) {
	p, _, _, _ := basePipeline(t)
	p.RateLimiter = stubLimiter{err: errors.New("too many requests")}
	_, err := p.Ingest(context.Background(), Request{UserID: 1, ConversationID: 1, Filename: "doc.pdf", Content: []byte("hi")})
	if err == nil {
		t.Fatalf("expected rate limit error")
	}
}

func TestIngestFailsOnInvalidSession(t *testing.T) {
	p, _, _, _ := basePipeline(t)
	p.Validator = stubValidator{ok: false, msg: "expired"}
	_, err := p.Ingest(context.Background(), Request{UserID: 1, ConversationID: 1, Filename: "doc.pdf", Content: []byte("hi")})
	if err == nil {
		t.Fatalf("expected session validation error")
	}
}

func TestIngestFailsWhenExtractionYieldsNoText(t *testing.T) {
	p, _, _, _ := basePipeline(t)
	p.PDF = stubPDF{text: "   "}
	_, err := p.Ingest(context.Background(), Request{UserID: 1, ConversationID: 1, Filename: "doc.pdf", Content: []byte("hi")})
	if err == nil {
		t.Fatalf("expected ingest error for empty extraction")
	}
}

func TestIngestSucceeds(t *testing.T) {
	p, index, docs, sessions := basePipeline(t)
	result, err := p.Ingest(context.Background(), Request{UserID: 7, ConversationID: 3, Filename: "doc.pdf", Content: []byte("pdf bytes")})
	if err != nil {
		t.Fatalf("ingest: %v", err)
	}
	if result.ChunkCount == 0 {
		t.Fatalf("expected at least one chunk")
	}
	if index.addedConversationID != 3 {
		t.Fatalf("expected chunks bound to conversation 3, got %d", index.addedConversationID)
	}
	if len(index.addedChunks) != result.ChunkCount {
		t.Fatalf("index saw %d chunks, result reported %d", len(index.addedChunks), result.ChunkCount)
	}
	if docs.created.ConversationID != 3 || docs.created.UserID != 7 {
		t.Fatalf("unexpected document record %#v", docs.created)
	}
	if !sessions.flagged[7] {
		t.Fatalf("expected documents_loaded flag set for user 7")
	}
}

func TestIngestPersistsDocumentBytesAfterTempFileRemoval(t *testing.T) {
	p, _, docs, _ := basePipeline(t)
	objects := &stubObjectStore{}
	p.Objects = objects

	content := []byte("pdf bytes for durability check")
	result, err := p.Ingest(context.Background(), Request{UserID: 7, ConversationID: 3, Filename: "doc.pdf", Content: content})
	if err != nil {
		t.Fatalf("ingest: %v", err)
	}

	// The temp file used for extraction must be gone by the time Ingest
	// returns, success or not.
	tempEntries, err := os.ReadDir(p.TempDir)
	if err != nil {
		t.Fatalf("read temp dir: %v", err)
	}
	if len(tempEntries) != 0 {
		t.Fatalf("expected temp dir empty after successful ingest, found %v", tempEntries)
	}

	// The persisted FilePath must point at the object store, not the
	// now-deleted temp path, and the bytes must actually be there.
	if result.Document.FilePath == "" {
		t.Fatalf("expected a non-empty stored file path")
	}
	stored, ok := objects.stored[result.Document.FilePath]
	if !ok {
		t.Fatalf("expected object store to hold a blob under %q, has %v", result.Document.FilePath, objects.stored)
	}
	if string(stored) != string(content) {
		t.Fatalf("stored content mismatch: got %q, want %q", stored, content)
	}
	if docs.created.FilePath != result.Document.FilePath {
		t.Fatalf("document record FilePath %q does not match result %q", docs.created.FilePath, result.Document.FilePath)
	}
}

func TestIngestCleansUpTempFileOnFailure(t *testing.T) {
	p, _, _, _ := basePipeline(t)
	p.PDF = stubPDF{err: errors.New("corrupt pdf")}
	_, err := p.Ingest(context.Background(), Request{UserID: 1, ConversationID: 1, Filename: "doc.pdf", Content: []byte("hi")})
	if err == nil {
		t.Fatalf("expected extraction failure to propagate")
	}
	tempEntries, err := os.ReadDir(p.TempDir)
	if err != nil {
		t.Fatalf("read temp dir: %v", err)
	}
	if len(tempEntries) != 0 {
		t.Fatalf("expected temp dir empty after failed ingest, found %v", tempEntries)
	}
}
