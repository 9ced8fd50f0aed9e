package sanitize

import "testing"

func TestMessageStripsSecrets(t *testing.T) {
	cases := []string{
		"upstream failed: sk-abcdefgh12345678",
		"auth header Bearer eyJhbGciOiJIUzI1NiJ9.abc.def rejected",
		"see https://api.openai.com/v1/chat for details",
		"OpenAI request failed",
	}
	for _, raw := range cases {
		out := Message(raw)
		if containsAny(out, "sk-abcdefgh12345678", "Bearer eyJhbGciOiJIUzI1NiJ9.abc.def", "https://api.openai.com/v1/chat", "OpenAI") {
			t.Fatalf("sanitized message leaked secret: %q -> %q", raw, out)
		}
	}
}

func TestMessageFallsBackWhenEmptied(t *testing.T) {
	out := Message("https://example.com/sk-aaaaaaaaaaaaaaaa")
	if out != fallback {
		t.Fatalf("expected fallback, got %q", out)
	}
}

func containsAny(haystack string, needles ...string) bool {
	for _, n := range needles {
		if indexOf(haystack, n) >= 0 {
			return true
		}
	}
	return false
}

func indexOf(s, sub string) int {
	for i := 0; i+len(sub) <= len(s); i++ {
		if s[i:i+len(sub)] == sub {
			return i
		}
	}
	return -1
}
