package http

import "time"

// configRequest is the POST /config body: a user's provider API settings.
type configRequest struct {
	APIKey          string `json:"apiKey"`
	BaseURL         string `json:"baseUrl"`
	RerankerKey     string `json:"rerankerKey"`
	RerankerBaseURL string `json:"rerankerBaseUrl"`
}

// configView is the GET /config response with secrets redacted.
type configView struct {
	APIKey          string `json:"apiKey"`
	BaseURL         string `json:"baseUrl"`
	RerankerKey     string `json:"rerankerKey"`
	RerankerBaseURL string `json:"rerankerBaseUrl"`
	Configured      bool   `json:"configured"`
}

// chatMessageRequest is the POST /chat/message body.
type chatMessageRequest struct {
	Content        string `json:"content"`
	ConversationID *int64 `json:"conversationId"`
	SystemPrompt   string `json:"systemPrompt"`
}

// chatMessageResponse is the POST /chat/message response.
type chatMessageResponse struct {
	Success            bool     `json:"success"`
	Response           string   `json:"response"`
	ConversationID     int64    `json:"conversationId"`
	SuggestedQuestions []string `json:"suggestedQuestions"`
}

// conversationView is one entry of GET /chat/conversations.
type conversationView struct {
	ID           int64     `json:"id"`
	Title        string    `json:"title"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
	MessageCount int       `json:"messageCount"`
}

// renameConversationRequest is the PATCH /chat/conversations/{id} body.
type renameConversationRequest struct {
	Title string `json:"title"`
}

// successResponse is the generic {success} envelope several endpoints use.
type successResponse struct {
	Success bool `json:"success"`
}
