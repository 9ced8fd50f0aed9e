// Package ingest implements the upload-to-searchable-chunks pipeline
// bound to a single conversation. Grounded on an
// uploadask.Service.Upload/ProcessDocument pair (internal/domain/uploadask/service.go)
// — persist-then-process shape, fail-the-document-not-the-caller status
// transitions — collapsed into one synchronous call since this flow has no
// queue/worker step of its own, and re-scoped from a user-wide document to
// one that must always carry a conversation_id.
package ingest

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"os"
	"path/filepath"
	"strings"

	"github.com/yanqian/ai-helloworld/internal/domain/chunking"
	"github.com/yanqian/ai-helloworld/internal/domain/convo"
	"github.com/yanqian/ai-helloworld/internal/domain/ratelimit"
	"github.com/yanqian/ai-helloworld/internal/domain/vectorindex"
	apperrors "github.com/yanqian/ai-helloworld/pkg/errors"
)

// embedBatchSize is the batch size for step 5's batched embedding calls.
const embedBatchSize = 100

// RateLimiter is the slice of ratelimit.Limiter the pipeline depends on.
type RateLimiter interface {
	Check(userID int64, op ratelimit.Operation, cost int) error
}

// SessionValidator is the slice of convo.Validator the pipeline depends on.
type SessionValidator interface {
	ValidateAccess(ctx context.Context, conversationID, userID int64, requireActive bool) (bool, string)
}

// Embedder embeds free-form text into vectors.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// Documents is the slice of convo.Repository the pipeline depends on for
// recording the relational UserDocument row.
type Documents interface {
	CreateUserDocument(ctx context.Context, d convo.UserDocument) (convo.UserDocument, error)
}

// SessionFlags is the slice of tenantstate.Store the pipeline depends on for
// step 8's documents_loaded flag.
type SessionFlags interface {
	SetDocumentsLoaded(userID int64, loaded bool)
}

// PDFExtractor pulls plain text out of a PDF file on disk. Left as a narrow
// interface with no bundled implementation: the concrete PDF library is an
// external collaborator, same boundary the providers package draws around
// embedding/LLM/reranker/web-search.
type PDFExtractor interface {
	ExtractText(path string) (string, error)
}

// ObjectStore persists uploaded document bytes somewhere durable, keyed by
// filename, and returns the key the bytes were stored under. Left as a
// narrow interface for the same reason PDFExtractor is: the concrete object
// store is an external collaborator the providers package wires in.
type ObjectStore interface {
	Put(ctx context.Context, filename string, content []byte, contentType string) (string, error)
}

// Request is a single upload bound to an existing conversation.
type Request struct {
	UserID         int64
	ConversationID int64
	Filename       string
	Content        []byte
}

// Result reports what got ingested.
type Result struct {
	Document   convo.UserDocument
	ChunkCount int
}

// Pipeline wires every collaborator.
type Pipeline struct {
	RateLimiter RateLimiter
	Validator   SessionValidator
	Chunker     *chunking.Chunker
	Embedder    Embedder
	VectorIndex vectorindex.Index
	Documents   Documents
	Sessions    SessionFlags
	PDF         PDFExtractor
	Objects     ObjectStore
	TempDir     string // defaults to os.TempDir() when empty
}

// Ingest runs an 8-step flow. The upload is staged to a local temp file for
// extraction only; the temp file is always removed before Ingest returns,
// success or failure, since step 7 persists the document's bytes to durable
// object storage, not the temp path, before recording FilePath.
func (p *Pipeline) Ingest(ctx context.Context, req Request) (Result, error) {
	// 1. Rate-limit check.
	if err := p.RateLimiter.Check(req.UserID, ratelimit.OpUpload, 1); err != nil {
		return Result{}, err
	}

	// 2. conversation_id is mandatory; validate active ownership.
	if req.ConversationID == 0 {
		return Result{}, apperrors.Wrap(apperrors.CodeValidation, "conversation_id is required", nil)
	}
	if ok, msg := p.Validator.ValidateAccess(ctx, req.ConversationID, req.UserID, true); !ok {
		return Result{}, apperrors.Wrap(apperrors.CodeExpiredSession, msg, nil)
	}

	// 3. Persist to a temp file; reject non-PDF up front.
	filename := strings.TrimSpace(req.Filename)
	if !strings.EqualFold(filepath.Ext(filename), ".pdf") {
		return Result{}, apperrors.Wrap(apperrors.CodeValidation, "only PDF uploads are supported", nil)
	}
	tempPath, err := p.writeTempFile(filename, req.Content)
	if err != nil {
		return Result{}, apperrors.Wrap(apperrors.CodeIngest, "failed to stage upload", err)
	}
	defer os.Remove(tempPath)

	result, err := p.process(ctx, req, filename, tempPath)
	if err != nil {
		return Result{}, apperrors.Wrap(apperrors.CodeIngest, err.Error(), err)
	}
	return result, nil
}

func (p *Pipeline) process(ctx context.Context, req Request, filename, tempPath string) (Result, error) {
	// 4. Extract text.
	text, err := p.PDF.ExtractText(tempPath)
	if err != nil {
		return Result{}, err
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return Result{}, apperrors.Wrap(apperrors.CodeIngest, "no extractable text in upload", nil)
	}

	// 5. Chunk, then embed in batches of embedBatchSize.
	chunks := p.Chunker.Chunk(text, chunking.StrategyAuto, chunking.Recommend(text))
	if len(chunks) == 0 {
		return Result{}, apperrors.Wrap(apperrors.CodeIngest, "document produced no chunks", nil)
	}
	inputs := make([]vectorindex.ChunkInput, 0, len(chunks))
	for start := 0; start < len(chunks); start += embedBatchSize {
		end := start + embedBatchSize
		if end > len(chunks) {
			end = len(chunks)
		}
		batch := chunks[start:end]
		texts := make([]string, len(batch))
		for i, c := range batch {
			texts[i] = c.Content
		}
		vectors, err := p.Embedder.Embed(ctx, texts)
		if err != nil {
			return Result{}, err
		}
		for i, c := range batch {
			inputs = append(inputs, vectorindex.ChunkInput{Text: c.Content, Embedding: vectors[i]})
		}
	}

	// 6. Insert chunks + document record, scoped to the conversation.
	fileHash := contentHash(req.Content)
	if err := p.VectorIndex.AddDocument(ctx, filename, fileHash, inputs, req.ConversationID); err != nil {
		return Result{}, err
	}

	// 7. Copy the upload to durable object storage, then record the
	// relational UserDocument row against that key (never the temp path,
	// which is removed once Ingest returns).
	storedPath, err := p.Objects.Put(ctx, filename, req.Content, "application/pdf")
	if err != nil {
		return Result{}, err
	}
	doc, err := p.Documents.CreateUserDocument(ctx, convo.UserDocument{
		UserID:         req.UserID,
		ConversationID: req.ConversationID,
		Filename:       filename,
		FilePath:       storedPath,
	})
	if err != nil {
		return Result{}, err
	}

	// 8. Flag the session as having loaded documents.
	p.Sessions.SetDocumentsLoaded(req.UserID, true)

	return Result{Document: doc, ChunkCount: len(inputs)}, nil
}

func (p *Pipeline) writeTempFile(filename string, content []byte) (string, error) {
	dir := p.TempDir
	if dir == "" {
		dir = os.TempDir()
	}
	f, err := os.CreateTemp(dir, "ingest-*-"+sanitizeFilename(filename))
	if err != nil {
		return "", err
	}
	defer f.Close()
	if _, err := f.Write(content); err != nil {
		os.Remove(f.Name())
		return "", err
	}
	return f.Name(), nil
}

func sanitizeFilename(name string) string {
	name = filepath.Base(name)
	var b strings.Builder
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '.', r == '-', r == '_':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	return b.String()
}

func contentHash(content []byte) string {
	sum := sha256.Sum256(content)
	return hex.EncodeToString(sum[:])
}
