// Package sanitize strips secrets and provider-identifying text from
// messages before they reach an HTTP client.
package sanitize

import "regexp"

var (
	urlPattern     = regexp.MustCompile(`https?://\S+`)
	bearerPattern  = regexp.MustCompile(`(?i)bearer\s+[a-z0-9._\-]+`)
	apiKeyPattern  = regexp.MustCompile(`\bsk-[a-zA-Z0-9]{8,}\b`)
	providerBrands = []string{"OpenAI", "ChatGPT", "Anthropic", "Claude", "DeepSeek", "Moonshot", "Azure"}
)

const fallback = "An internal error occurred"

// Message removes URLs, bearer tokens, API-key-shaped substrings, and
// provider brand mentions from raw. If sanitization would empty the
// message, Message returns the generic fallback instead.
func Message(raw string) string {
	out := urlPattern.ReplaceAllString(raw, "")
	out = bearerPattern.ReplaceAllString(out, "")
	out = apiKeyPattern.ReplaceAllString(out, "")
	for _, brand := range providerBrands {
		out = replaceCaseInsensitive(out, brand, "")
	}
	out = collapseSpaces(out)
	if out == "" {
		return fallback
	}
	return out
}

func replaceCaseInsensitive(s, old, new string) string {
	re := regexp.MustCompile(`(?i)` + regexp.QuoteMeta(old))
	return re.ReplaceAllString(s, new)
}

var spacePattern = regexp.MustCompile(`\s+`)

func collapseSpaces(s string) string {
	s = spacePattern.ReplaceAllString(s, " ")
	return trim(s)
}

func trim(s string) string {
	start, end := 0, len(s)
	for start < end && s[start] == ' ' {
		start++
	}
	for end > start && s[end-1] == ' ' {
		end--
	}
	return s[start:end]
}
