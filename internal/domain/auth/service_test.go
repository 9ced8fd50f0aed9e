package auth

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/yanqian/ai-helloworld/internal/domain/convo"
	"github.com/yanqian/ai-helloworld/internal/domain/tenantstate"
	apperrors "github.com/yanqian/ai-helloworld/pkg/errors"
)

func newTestService(repo *memoryRepo) Service {
	return NewService(Config{
		Secret:   "test-secret",
		TokenTTL: time.Hour,
	}, repo, tenantstate.New(), newTestLogger())
}

func TestService_RegisterRequiresValidCode(t *testing.T) {
	svc := newTestService(newMemoryRepo())

	err := svc.Register(context.Background(), RegisterRequest{
		Username:          "alice",
		Email:             "alice@example.com",
		Password:          "password1",
		VerificationCode: "000000",
	})
	require.Error(t, err)
	require.True(t, apperrors.IsCode(err, apperrors.CodeValidation))
}

func TestService_SendCodeRegisterLoginAndMe(t *testing.T) {
	repo := newMemoryRepo()
	codes := tenantstate.New()
	svc := NewService(Config{Secret: "test-secret", TokenTTL: time.Hour}, repo, codes, newTestLogger())

	sendResp, err := svc.SendCode(context.Background(), SendCodeRequest{Email: "alice@example.com"})
	require.NoError(t, err)
	require.True(t, sendResp.Success)
	require.NotEmpty(t, sendResp.DevCode)

	err = svc.Register(context.Background(), RegisterRequest{
		Username:          "alice",
		Email:             "alice@example.com",
		Password:          "password1",
		VerificationCode: sendResp.DevCode,
	})
	require.NoError(t, err)

	resp, err := svc.Login(context.Background(), LoginRequest{Username: "alice", Password: "password1"})
	require.NoError(t, err)
	require.NotEmpty(t, resp.AccessToken)
	require.Equal(t, "bearer", resp.TokenType)

	claims, err := svc.ValidateToken(context.Background(), resp.AccessToken)
	require.NoError(t, err)
	require.Equal(t, "alice", claims.Username)
	require.WithinDuration(t, time.Now().Add(time.Hour), claims.ExpiresAt, time.Minute)

	view, err := svc.Profile(context.Background(), claims.UserID)
	require.NoError(t, err)
	require.Equal(t, "alice", view.Username)
	require.Equal(t, "alice", view.Nickname)
}

func TestService_DuplicateEmailOnSendCode(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo)

	_, err := repo.CreateUser(context.Background(), convo.User{Username: "bob", Email: "bob@example.com", HashedPassword: "x"})
	require.NoError(t, err)

	_, err = svc.SendCode(context.Background(), SendCodeRequest{Email: "bob@example.com"})
	require.Error(t, err)
	require.True(t, apperrors.IsCode(err, apperrors.CodeEmailTaken))
}

func TestService_LoginRejectsWrongPassword(t *testing.T) {
	repo := newMemoryRepo()
	codes := tenantstate.New()
	svc := NewService(Config{Secret: "test-secret", TokenTTL: time.Hour}, repo, codes, newTestLogger())

	codes.SetVerificationCode("carol@example.com", "123456")
	err := svc.Register(context.Background(), RegisterRequest{
		Username: "carol", Email: "carol@example.com", Password: "password1", VerificationCode: "123456",
	})
	require.NoError(t, err)

	_, err = svc.Login(context.Background(), LoginRequest{Username: "carol", Password: "wrong-password"})
	require.Error(t, err)
	require.True(t, apperrors.IsCode(err, apperrors.CodeAuth))
}

func TestService_ResetPassword(t *testing.T) {
	repo := newMemoryRepo()
	codes := tenantstate.New()
	svc := NewService(Config{Secret: "test-secret", TokenTTL: time.Hour}, repo, codes, newTestLogger())

	codes.SetVerificationCode("dan@example.com", "654321")
	require.NoError(t, svc.Register(context.Background(), RegisterRequest{
		Username: "dan", Email: "dan@example.com", Password: "oldpassword", VerificationCode: "654321",
	}))

	codes.SetVerificationCode("dan@example.com", "111111")
	require.NoError(t, svc.ResetPassword(context.Background(), ResetPasswordRequest{
		Email: "dan@example.com", VerificationCode: "111111", NewPassword: "newpassword",
	}))

	_, err := svc.Login(context.Background(), LoginRequest{Username: "dan", Password: "oldpassword"})
	require.Error(t, err)

	resp, err := svc.Login(context.Background(), LoginRequest{Username: "dan", Password: "newpassword"})
	require.NoError(t, err)
	require.NotEmpty(t, resp.AccessToken)
}

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// memoryRepo is a minimal in-memory convo.Repository covering only what
// auth.Service exercises; the conversation/message/document methods panic
// if called since nothing under test reaches them.
type memoryRepo struct {
	users map[int64]convo.User
	seq   int64
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{users: make(map[int64]convo.User)}
}

func (m *memoryRepo) CreateUser(_ context.Context, u convo.User) (convo.User, error) {
	for _, existing := range m.users {
		if existing.Username == u.Username {
			return convo.User{}, apperrors.Wrap(apperrors.CodeUsernameTaken, "username already taken", nil)
		}
		if existing.Email == u.Email {
			return convo.User{}, apperrors.Wrap(apperrors.CodeEmailTaken, "email already registered", nil)
		}
	}
	m.seq++
	u.ID = m.seq
	u.CreatedAt = time.Now()
	u.UpdatedAt = u.CreatedAt
	m.users[u.ID] = u
	return u, nil
}

func (m *memoryRepo) GetUserByID(_ context.Context, id int64) (convo.User, bool, error) {
	u, ok := m.users[id]
	return u, ok, nil
}

func (m *memoryRepo) GetUserByUsername(_ context.Context, username string) (convo.User, bool, error) {
	for _, u := range m.users {
		if u.Username == username {
			return u, true, nil
		}
	}
	return convo.User{}, false, nil
}

func (m *memoryRepo) GetUserByEmail(_ context.Context, email string) (convo.User, bool, error) {
	for _, u := range m.users {
		if u.Email == email {
			return u, true, nil
		}
	}
	return convo.User{}, false, nil
}

func (m *memoryRepo) UpdatePassword(_ context.Context, userID int64, hashedPassword string) error {
	u, ok := m.users[userID]
	if !ok {
		return apperrors.Wrap(apperrors.CodeNotFound, "user not found", nil)
	}
	u.HashedPassword = hashedPassword
	m.users[userID] = u
	return nil
}

func (m *memoryRepo) CreateConversation(context.Context, convo.Conversation) (convo.Conversation, error) {
	panic("not used by auth tests")
}
func (m *memoryRepo) GetConversationByID(context.Context, int64) (convo.Conversation, bool, error) {
	panic("not used by auth tests")
}
func (m *memoryRepo) ListUserConversations(context.Context, int64) ([]convo.Conversation, error) {
	panic("not used by auth tests")
}
func (m *memoryRepo) RenameConversation(context.Context, int64, string) error {
	panic("not used by auth tests")
}
func (m *memoryRepo) TouchConversation(context.Context, int64) error {
	panic("not used by auth tests")
}
func (m *memoryRepo) DeleteConversation(context.Context, int64) error {
	panic("not used by auth tests")
}
func (m *memoryRepo) AppendMessage(context.Context, convo.Message) (convo.Message, error) {
	panic("not used by auth tests")
}
func (m *memoryRepo) ListMessages(context.Context, int64) ([]convo.Message, error) {
	panic("not used by auth tests")
}
func (m *memoryRepo) CountMessages(context.Context, int64) (int, error) {
	panic("not used by auth tests")
}
func (m *memoryRepo) CreateUserDocument(context.Context, convo.UserDocument) (convo.UserDocument, error) {
	panic("not used by auth tests")
}
func (m *memoryRepo) CountUserDocuments(context.Context, int64) (int, error) {
	panic("not used by auth tests")
}

var _ convo.Repository = (*memoryRepo)(nil)
