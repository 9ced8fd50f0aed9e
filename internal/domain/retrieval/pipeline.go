package retrieval

import (
	"context"
	"strings"

	"github.com/yanqian/ai-helloworld/internal/domain/convo"
	"github.com/yanqian/ai-helloworld/internal/domain/providers"
	"github.com/yanqian/ai-helloworld/internal/domain/ratelimit"
	apperrors "github.com/yanqian/ai-helloworld/pkg/errors"
)

// answerSystemPrompt forbids the LLM from enumerating its context blocks,
// so it reads naturally in a chat transcript.
const answerSystemPrompt = "Answer the user's question using the provided context. Do not mention, number, or refer to the context blocks themselves; just answer naturally. If the context does not contain the answer, say so."

const (
	vectorTopK       = 10
	rerankedTopK     = 5
	maxWebResults    = 3
)

// AnswerResult is the response of a single chat turn.
type AnswerResult struct {
	Answer          string
	Sources         []string
	UsedWebSearch   bool
	UsedCache       bool
	Title           string
	FollowUps       []string
}

// Answer runs the end-to-end flow for a chat message in
// conversation c by user u.
func (p *Pipeline) Answer(ctx context.Context, userID, conversationID int64, query string) (AnswerResult, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return AnswerResult{}, apperrors.Wrap(apperrors.CodeValidation, "query cannot be empty", nil)
	}

	// 1. Rate-limit check.
	if err := p.RateLimiter.Check(userID, ratelimit.OpChat, 1); err != nil {
		return AnswerResult{}, err
	}

	// 2. Validate conversation is active and owned by the caller.
	if ok, msg := p.Validator.ValidateAccess(ctx, conversationID, userID, true); !ok {
		return AnswerResult{}, apperrors.Wrap(apperrors.CodeExpiredSession, msg, nil)
	}

	// 3. Embed the query.
	embeddings, err := p.Embedder.Embed(ctx, []string{query})
	if err != nil {
		return AnswerResult{}, err
	}
	queryEmbedding := embeddings[0]

	// 4. Semantic cache lookup.
	if result, hit := p.SemanticCache.Get(ctx, queryEmbedding, query); hit {
		return AnswerResult{Answer: result.Answer, UsedCache: true}, nil
	}

	// 5. Vector search, scoped to documents this conversation actually has.
	var chunks []string
	docCount, err := p.DocumentCounts.CountUserDocuments(ctx, conversationID)
	if err != nil {
		return AnswerResult{}, err
	}
	if docCount > 0 {
		results, err := p.VectorIndex.Search(ctx, queryEmbedding, vectorTopK, &conversationID)
		if err != nil {
			return AnswerResult{}, err
		}
		chunks = rerankAndTrim(ctx, p.Reranker, query, results)
	}

	// 6-7. Web-search augmentation when the query looks time-sensitive or
	// nothing was retrieved.
	var webBlocks []string
	usedWeb := false
	if needsWebSearch(query, len(chunks)) && p.WebSearcher != nil {
		webResults, err := p.WebSearcher.Search(ctx, query, maxWebResults)
		if err == nil && len(webResults) > 0 {
			usedWeb = true
			for _, r := range webResults {
				webBlocks = append(webBlocks, r.Title+": "+r.Snippet)
			}
		}
	}

	// 8. Assemble context and call the LLM.
	contextBlock := mergeContext(webBlocks, chunks)
	var answer string
	err = p.Retry.Do(ctx, func(ctx context.Context) error {
		resp, callErr := p.LLM.Chat(ctx, buildMessages(contextBlock, query))
		if callErr != nil {
			return callErr
		}
		answer = strings.TrimSpace(resp)
		return nil
	})
	if err != nil {
		return AnswerResult{}, err
	}

	// 9. Persist messages and invalidate the conversations-list cache.
	if _, err := p.Messages.AppendMessage(ctx, convo.Message{ConversationID: conversationID, Role: convo.RoleUser, Content: query}); err != nil {
		return AnswerResult{}, err
	}
	if _, err := p.Messages.AppendMessage(ctx, convo.Message{ConversationID: conversationID, Role: convo.RoleAssistant, Content: answer}); err != nil {
		return AnswerResult{}, err
	}
	if p.Cache != nil {
		p.Cache.InvalidateUserConversations(userID)
	}

	// 10. Populate the semantic cache.
	p.SemanticCache.Set(ctx, queryEmbedding, query, answer, nil)

	result := AnswerResult{Answer: answer, Sources: chunks, UsedWebSearch: usedWeb}

	// 11. Title (first turn only) and follow-up suggestions.
	if conv, found, err := p.Messages.GetConversationByID(ctx, conversationID); err == nil && found && conv.Title == "" {
		result.Title = generateTitle(ctx, p.LLM, p.Retry, query, answer)
		if result.Title != "" {
			_ = p.Messages.RenameConversation(ctx, conversationID, result.Title)
		}
	}
	result.FollowUps = generateFollowUps(ctx, p.LLM, p.Retry, query, answer)

	return result, nil
}

func mergeContext(webBlocks, chunks []string) string {
	var all []string
	all = append(all, webBlocks...)
	all = append(all, chunks...)
	return strings.Join(all, "\n\n")
}

func buildMessages(contextBlock, query string) []providers.ChatMessage {
	userContent := query
	if contextBlock != "" {
		userContent = "Context:\n" + contextBlock + "\n\nQuestion: " + query
	}
	return []providers.ChatMessage{
		{Role: "system", Content: answerSystemPrompt},
		{Role: "user", Content: userContent},
	}
}
