package retrieval

import (
	"context"
	"strings"

	"github.com/yanqian/ai-helloworld/internal/domain/providers"
)

// titlePrompt and suggestionPrompt are the two extra LLM calls made after
// the answer itself, generating a conversation title and follow-up
// suggestions. Generalized from a summarizer.parseStructuredResponse-style
// marker-parsing idiom (SUMMARY:/KEYWORDS:) to TITLE: and SUGGESTIONS:.
const (
	titleSystemPrompt = "Generate a concise conversation title, 6 words or fewer. Respond with exactly one line: TITLE: <title>. No other commentary."
	suggestSystemPrompt = "Given the latest question and answer, propose 3 short natural follow-up questions a user might ask next. Respond with exactly: SUGGESTIONS: <q1> | <q2> | <q3>. No other commentary."
)

// generateTitle asks the LLM for a short title for the conversation's first
// turn. Errors are swallowed: title generation is a nice-to-have, not a
// precondition for answering (this step runs after the answer is
// already persisted).
func generateTitle(ctx context.Context, llm providers.LLM, retry RetryDoer, query, answer string) string {
	var content string
	err := retry.Do(ctx, func(ctx context.Context) error {
		resp, err := llm.Chat(ctx, []providers.ChatMessage{
			{Role: "system", Content: titleSystemPrompt},
			{Role: "user", Content: "Question: " + query + "\nAnswer: " + answer},
		})
		if err != nil {
			return err
		}
		content = resp
		return nil
	})
	if err != nil {
		return ""
	}
	return parseMarkerLine(content, "TITLE:")
}

// generateFollowUps asks the LLM for up to 3 follow-up question
// suggestions. Errors are swallowed for the same reason as generateTitle.
func generateFollowUps(ctx context.Context, llm providers.LLM, retry RetryDoer, query, answer string) []string {
	var content string
	err := retry.Do(ctx, func(ctx context.Context) error {
		resp, err := llm.Chat(ctx, []providers.ChatMessage{
			{Role: "system", Content: suggestSystemPrompt},
			{Role: "user", Content: "Question: " + query + "\nAnswer: " + answer},
		})
		if err != nil {
			return err
		}
		content = resp
		return nil
	})
	if err != nil {
		return nil
	}
	line := parseMarkerLine(content, "SUGGESTIONS:")
	if line == "" {
		return nil
	}
	parts := strings.Split(line, "|")
	out := make([]string, 0, 3)
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		out = append(out, p)
		if len(out) == 3 {
			break
		}
	}
	return out
}

// parseMarkerLine extracts the text following marker on the line it
// appears on, case-insensitively.
func parseMarkerLine(content, marker string) string {
	content = strings.TrimSpace(content)
	lower := strings.ToLower(content)
	idx := strings.Index(lower, strings.ToLower(marker))
	if idx == -1 {
		return strings.TrimSpace(content)
	}
	rest := content[idx+len(marker):]
	if nl := strings.IndexByte(rest, '\n'); nl != -1 {
		rest = rest[:nl]
	}
	return strings.TrimSpace(rest)
}
