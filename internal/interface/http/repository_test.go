package http

import (
	"context"
	"io"
	"log/slog"

	"github.com/yanqian/ai-helloworld/internal/domain/convo"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// memoryRepo is a bare-bones convo.Repository double for handler/router
// tests; only the operations exercised by those tests are functional.
type memoryRepo struct {
	conversations map[int64]convo.Conversation
}

func (r *memoryRepo) CreateUser(ctx context.Context, u convo.User) (convo.User, error) {
	return convo.User{}, nil
}
func (r *memoryRepo) GetUserByID(ctx context.Context, id int64) (convo.User, bool, error) {
	return convo.User{}, false, nil
}
func (r *memoryRepo) GetUserByUsername(ctx context.Context, username string) (convo.User, bool, error) {
	return convo.User{}, false, nil
}
func (r *memoryRepo) GetUserByEmail(ctx context.Context, email string) (convo.User, bool, error) {
	return convo.User{}, false, nil
}
func (r *memoryRepo) UpdatePassword(ctx context.Context, userID int64, hashedPassword string) error {
	return nil
}

func (r *memoryRepo) CreateConversation(ctx context.Context, c convo.Conversation) (convo.Conversation, error) {
	return convo.Conversation{}, nil
}
func (r *memoryRepo) GetConversationByID(ctx context.Context, id int64) (convo.Conversation, bool, error) {
	c, ok := r.conversations[id]
	return c, ok, nil
}
func (r *memoryRepo) ListUserConversations(ctx context.Context, userID int64) ([]convo.Conversation, error) {
	var out []convo.Conversation
	for _, c := range r.conversations {
		if c.UserID == userID {
			out = append(out, c)
		}
	}
	return out, nil
}
func (r *memoryRepo) RenameConversation(ctx context.Context, id int64, title string) error {
	return nil
}
func (r *memoryRepo) TouchConversation(ctx context.Context, id int64) error {
	return nil
}
func (r *memoryRepo) DeleteConversation(ctx context.Context, id int64) error {
	delete(r.conversations, id)
	return nil
}

func (r *memoryRepo) AppendMessage(ctx context.Context, m convo.Message) (convo.Message, error) {
	return convo.Message{}, nil
}
func (r *memoryRepo) ListMessages(ctx context.Context, conversationID int64) ([]convo.Message, error) {
	return nil, nil
}
func (r *memoryRepo) CountMessages(ctx context.Context, conversationID int64) (int, error) {
	return 0, nil
}

func (r *memoryRepo) CreateUserDocument(ctx context.Context, d convo.UserDocument) (convo.UserDocument, error) {
	return convo.UserDocument{}, nil
}
func (r *memoryRepo) CountUserDocuments(ctx context.Context, conversationID int64) (int, error) {
	return 0, nil
}

var _ convo.Repository = (*memoryRepo)(nil)
