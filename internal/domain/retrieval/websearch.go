package retrieval

import "strings"

// realtimeKeywords triggers a web-search augmentation; kept
// lowercase for case-insensitive matching. Includes Chinese equivalents
// alongside the English list.
var realtimeKeywords = []string{
	"today", "now", "weather", "latest", "current", "breaking",
	"今天", "现在", "天气", "最新", "最近",
}

// needsWebSearch reports whether query matches a real-time keyword or the
// retrieved chunk set came back empty.
func needsWebSearch(query string, chunkCount int) bool {
	if chunkCount == 0 {
		return true
	}
	lower := strings.ToLower(query)
	for _, kw := range realtimeKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}
