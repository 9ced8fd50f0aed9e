package convo

import (
	"context"
	"testing"
	"time"
)

type fakeRepo struct {
	convs      map[int64]Conversation
	msgCounts  map[int64]int
	docCounts  map[int64]int
	byUser     map[int64][]int64
	deleted    map[int64]bool
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		convs:     map[int64]Conversation{},
		msgCounts: map[int64]int{},
		docCounts: map[int64]int{},
		byUser:    map[int64][]int64{},
		deleted:   map[int64]bool{},
	}
}

func (f *fakeRepo) add(c Conversation) {
	f.convs[c.ID] = c
	f.byUser[c.UserID] = append(f.byUser[c.UserID], c.ID)
}

func (f *fakeRepo) CreateUser(ctx context.Context, u User) (User, error) { return u, nil }
func (f *fakeRepo) GetUserByID(ctx context.Context, id int64) (User, bool, error) {
	return User{}, false, nil
}
func (f *fakeRepo) GetUserByUsername(ctx context.Context, username string) (User, bool, error) {
	return User{}, false, nil
}
func (f *fakeRepo) GetUserByEmail(ctx context.Context, email string) (User, bool, error) {
	return User{}, false, nil
}
func (f *fakeRepo) CreateConversation(ctx context.Context, c Conversation) (Conversation, error) {
	f.add(c)
	return c, nil
}
func (f *fakeRepo) GetConversationByID(ctx context.Context, id int64) (Conversation, bool, error) {
	if f.deleted[id] {
		return Conversation{}, false, nil
	}
	c, ok := f.convs[id]
	return c, ok, nil
}
func (f *fakeRepo) ListUserConversations(ctx context.Context, userID int64) ([]Conversation, error) {
	var out []Conversation
	for _, id := range f.byUser[userID] {
		if f.deleted[id] {
			continue
		}
		out = append(out, f.convs[id])
	}
	return out, nil
}
func (f *fakeRepo) RenameConversation(ctx context.Context, id int64, title string) error { return nil }
func (f *fakeRepo) TouchConversation(ctx context.Context, id int64) error                { return nil }
func (f *fakeRepo) DeleteConversation(ctx context.Context, id int64) error {
	f.deleted[id] = true
	return nil
}
func (f *fakeRepo) AppendMessage(ctx context.Context, m Message) (Message, error) { return m, nil }
func (f *fakeRepo) ListMessages(ctx context.Context, conversationID int64) ([]Message, error) {
	return nil, nil
}
func (f *fakeRepo) CountMessages(ctx context.Context, conversationID int64) (int, error) {
	return f.msgCounts[conversationID], nil
}
func (f *fakeRepo) CreateUserDocument(ctx context.Context, d UserDocument) (UserDocument, error) {
	return d, nil
}
func (f *fakeRepo) CountUserDocuments(ctx context.Context, conversationID int64) (int, error) {
	return f.docCounts[conversationID], nil
}

var _ Repository = (*fakeRepo)(nil)

func TestValidateAccessNotFound(t *testing.T) {
	v := NewValidator(newFakeRepo(), 30)
	ok, msg := v.ValidateAccess(context.Background(), 1, 1, true)
	if ok || msg != "not found or access denied" {
		t.Fatalf("got (%v, %q)", ok, msg)
	}
}

func TestValidateAccessDeniedForOtherUser(t *testing.T) {
	repo := newFakeRepo()
	repo.add(Conversation{ID: 1, UserID: 2, UpdatedAt: time.Now()})
	v := NewValidator(repo, 30)
	ok, msg := v.ValidateAccess(context.Background(), 1, 1, true)
	if ok || msg != "access denied" {
		t.Fatalf("got (%v, %q)", ok, msg)
	}
}

func TestValidateAccessExpired(t *testing.T) {
	repo := newFakeRepo()
	repo.add(Conversation{ID: 1, UserID: 1, UpdatedAt: time.Now().Add(-31 * 24 * time.Hour)})
	v := NewValidator(repo, 30)
	ok, msg := v.ValidateAccess(context.Background(), 1, 1, true)
	if ok {
		t.Fatalf("expected expiry failure, got ok")
	}
	if msg == "" {
		t.Fatalf("expected an expiry message")
	}
}

func TestValidateAccessAllowsInactiveWhenNotRequired(t *testing.T) {
	repo := newFakeRepo()
	repo.add(Conversation{ID: 1, UserID: 1, UpdatedAt: time.Now().Add(-365 * 24 * time.Hour)})
	v := NewValidator(repo, 30)
	ok, _ := v.ValidateAccess(context.Background(), 1, 1, false)
	if !ok {
		t.Fatalf("expected access without activity check")
	}
}

func TestHealthClassifiesExpiring(t *testing.T) {
	repo := newFakeRepo()
	repo.add(Conversation{ID: 1, UserID: 1, UpdatedAt: time.Now().Add(-25 * 24 * time.Hour)})
	v := NewValidator(repo, 30)
	report, err := v.Health(context.Background(), 1, 1)
	if err != nil {
		t.Fatalf("health: %v", err)
	}
	if report.HealthStatus != HealthExpiring {
		t.Fatalf("expected expiring, got %s (age %.1f)", report.HealthStatus, report.AgeDays)
	}
}

func TestHealthInvalidForWrongOwner(t *testing.T) {
	repo := newFakeRepo()
	repo.add(Conversation{ID: 1, UserID: 2, UpdatedAt: time.Now()})
	v := NewValidator(repo, 30)
	report, err := v.Health(context.Background(), 1, 1)
	if err != nil {
		t.Fatalf("health: %v", err)
	}
	if report.HealthStatus != HealthInvalid || report.OwnedByUser {
		t.Fatalf("got %#v", report)
	}
}

func TestCleanupExpiredDeletesOnlyExpired(t *testing.T) {
	repo := newFakeRepo()
	repo.add(Conversation{ID: 1, UserID: 1, UpdatedAt: time.Now()})
	repo.add(Conversation{ID: 2, UserID: 1, UpdatedAt: time.Now().Add(-60 * 24 * time.Hour)})
	v := NewValidator(repo, 30)

	summary, err := v.CleanupExpired(context.Background(), 1)
	if err != nil {
		t.Fatalf("cleanup: %v", err)
	}
	if summary.Total != 2 || summary.ExpiredCount != 1 || summary.DeletedCount != 1 {
		t.Fatalf("got %#v", summary)
	}
	if len(summary.DeletedIDs) != 1 || summary.DeletedIDs[0] != 2 {
		t.Fatalf("got deleted ids %#v", summary.DeletedIDs)
	}
	if _, found, _ := repo.GetConversationByID(context.Background(), 1); !found {
		t.Fatalf("conversation 1 should remain")
	}
	if _, found, _ := repo.GetConversationByID(context.Background(), 2); found {
		t.Fatalf("conversation 2 should be deleted")
	}
}
