// Package convo holds the relational core of a tenant's account: users,
// conversations, messages, and the documents bound to them, plus the
// conversation-lifecycle checks every ingest/search call must pass through.
// Grounded on an internal/domain/uploadask-style entity set, reshaped
// from UUID-keyed documents to the plain auto-increment integer ids that
// back a relational user/conversation/message graph.
package convo

import "time"

// User owns conversations and documents. Never deleted implicitly.
type User struct {
	ID             int64
	Username       string
	Email          string
	HashedPassword string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Conversation is owned by exactly one user and cascade-deletes with it.
// UpdatedAt is refreshed on every message append and title edit; it is the
// basis for inactivity expiry.
type Conversation struct {
	ID        int64
	UserID    int64
	Title     string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// MessageRole is the speaker of a Message.
type MessageRole string

const (
	RoleUser      MessageRole = "user"
	RoleAssistant MessageRole = "assistant"
)

// Message is append-only and cascade-deletes with its conversation. Ordered
// by CreatedAt ascending within a conversation.
type Message struct {
	ID             int64
	ConversationID int64
	Role           MessageRole
	Content        string
	CreatedAt      time.Time
}

// UserDocument is the relational record of an uploaded file. ConversationID
// is mandatory at creation and cascade-deletes with the conversation or
// user; the chunk content itself lives in the per-tenant vector store.
type UserDocument struct {
	ID             int64
	UserID         int64
	ConversationID int64
	Filename       string
	FilePath       string // durable object-store key, not a local filesystem path
	UploadedAt     time.Time
}
