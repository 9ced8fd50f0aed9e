package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/yanqian/ai-helloworld/internal/domain/convo"
	"github.com/yanqian/ai-helloworld/internal/infra/sqlpool"
	apperrors "github.com/yanqian/ai-helloworld/pkg/errors"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	ctx := context.Background()
	pool, err := sqlpool.Open(ctx, filepath.Join(t.TempDir(), "rel.db"), 4)
	if err != nil {
		t.Fatalf("open pool: %v", err)
	}
	t.Cleanup(pool.CloseAll)
	s, err := Open(ctx, pool)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	return s
}

func TestCreateUserDuplicateUsername(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	if _, err := s.CreateUser(ctx, convo.User{Username: "ada", Email: "ada@example.com", HashedPassword: "x"}); err != nil {
		t.Fatalf("create user: %v", err)
	}
	_, err := s.CreateUser(ctx, convo.User{Username: "ada", Email: "other@example.com", HashedPassword: "x"})
	if err == nil {
		t.Fatalf("expected duplicate username error")
	}
	if !apperrors.IsCode(err, apperrors.CodeUsernameTaken) {
		t.Fatalf("expected CodeUsernameTaken, got %v", err)
	}
}

func TestConversationLifecycle(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	u, err := s.CreateUser(ctx, convo.User{Username: "bob", Email: "bob@example.com", HashedPassword: "x"})
	if err != nil {
		t.Fatalf("create user: %v", err)
	}

	c, err := s.CreateConversation(ctx, convo.Conversation{UserID: u.ID, Title: "first"})
	if err != nil {
		t.Fatalf("create conversation: %v", err)
	}

	if _, err := s.AppendMessage(ctx, convo.Message{ConversationID: c.ID, Role: convo.RoleUser, Content: "hi"}); err != nil {
		t.Fatalf("append message: %v", err)
	}

	reloaded, found, err := s.GetConversationByID(ctx, c.ID)
	if err != nil || !found {
		t.Fatalf("get conversation: found=%v err=%v", found, err)
	}
	if !reloaded.UpdatedAt.After(c.CreatedAt.Add(-time.Millisecond)) {
		t.Fatalf("expected updated_at to be bumped by append")
	}

	count, err := s.CountMessages(ctx, c.ID)
	if err != nil || count != 1 {
		t.Fatalf("count messages: %d, %v", count, err)
	}

	if err := s.DeleteConversation(ctx, c.ID); err != nil {
		t.Fatalf("delete conversation: %v", err)
	}
	if _, found, _ := s.GetConversationByID(ctx, c.ID); found {
		t.Fatalf("expected conversation to be gone")
	}
}
