package http

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/yanqian/ai-helloworld/internal/domain/auth"
	"github.com/yanqian/ai-helloworld/internal/domain/convo"
	apperrors "github.com/yanqian/ai-helloworld/pkg/errors"
	"github.com/yanqian/ai-helloworld/pkg/secretcrypto"
)

// stubAuth is a minimal auth.Service double for router-level tests.
type stubAuth struct {
	sendCodeFn func(ctx context.Context, req auth.SendCodeRequest) (auth.SendCodeResponse, error)
	registerFn func(ctx context.Context, req auth.RegisterRequest) error
	loginFn    func(ctx context.Context, req auth.LoginRequest) (auth.LoginResponse, error)
	resetFn    func(ctx context.Context, req auth.ResetPasswordRequest) error
	validateFn func(ctx context.Context, token string) (auth.Claims, error)
	profileFn  func(ctx context.Context, userID int64) (auth.UserView, error)
}

func (s *stubAuth) SendCode(ctx context.Context, req auth.SendCodeRequest) (auth.SendCodeResponse, error) {
	return s.sendCodeFn(ctx, req)
}
func (s *stubAuth) Register(ctx context.Context, req auth.RegisterRequest) error {
	return s.registerFn(ctx, req)
}
func (s *stubAuth) Login(ctx context.Context, req auth.LoginRequest) (auth.LoginResponse, error) {
	return s.loginFn(ctx, req)
}
func (s *stubAuth) ResetPassword(ctx context.Context, req auth.ResetPasswordRequest) error {
	return s.resetFn(ctx, req)
}
func (s *stubAuth) ValidateToken(ctx context.Context, token string) (auth.Claims, error) {
	return s.validateFn(ctx, token)
}
func (s *stubAuth) Profile(ctx context.Context, userID int64) (auth.UserView, error) {
	return s.profileFn(ctx, userID)
}

var _ auth.Service = (*stubAuth)(nil)

// newTestRouter assembles just the routes exercised by these tests, without
// the full config-driven NewRouter wiring (no retry/CORS/rate-limit layers).
func newTestRouter(t *testing.T, authSvc auth.Service, repo convo.Repository) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	validator := convo.NewValidator(repo, 0)
	secrets, _ := secretcrypto.New("")
	handler := NewHandler(authSvc, nil, repo, validator, nil, nil, secrets, nil, testLogger())

	r := gin.New()
	r.Use(errorHandlingMiddleware(handler.logger))
	api := r.Group("/api/v1")
	authRoutes := api.Group("/auth")
	authRoutes.POST("/send-code", handler.SendCode)
	authRoutes.POST("/register", handler.Register)
	authRoutes.POST("/login", handler.Login)
	authRoutes.POST("/reset-password", handler.ResetPassword)

	protected := api.Group("/")
	protected.Use(authMiddleware(authSvc))
	protected.GET("/auth/me", handler.Profile)
	protected.GET("/chat/conversations", handler.ListConversations)
	protected.DELETE("/chat/conversations/:id", handler.DeleteConversation)
	return r
}

func doRequest(r *gin.Engine, method, path, body string, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func TestRouter_SendCodeSuccess(t *testing.T) {
	svc := &stubAuth{
		sendCodeFn: func(ctx context.Context, req auth.SendCodeRequest) (auth.SendCodeResponse, error) {
			require.Equal(t, "person@example.com", req.Email)
			return auth.SendCodeResponse{Success: true, Message: "verification code sent", DevCode: "123456"}, nil
		},
	}
	rec := doRequest(newTestRouter(t, svc, &memoryRepo{}), http.MethodPost, "/api/v1/auth/send-code", `{"email":"person@example.com"}`, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var got auth.SendCodeResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	require.True(t, got.Success)
	require.Equal(t, "123456", got.DevCode)
}

func TestRouter_SendCodeDuplicateEmail(t *testing.T) {
	svc := &stubAuth{
		sendCodeFn: func(ctx context.Context, req auth.SendCodeRequest) (auth.SendCodeResponse, error) {
			return auth.SendCodeResponse{}, apperrors.Wrap(apperrors.CodeEmailTaken, "email already registered", nil)
		},
	}
	rec := doRequest(newTestRouter(t, svc, &memoryRepo{}), http.MethodPost, "/api/v1/auth/send-code", `{"email":"taken@example.com"}`, nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.NotEmpty(t, body["detail"])
}

func TestRouter_LoginSuccess(t *testing.T) {
	svc := &stubAuth{
		loginFn: func(ctx context.Context, req auth.LoginRequest) (auth.LoginResponse, error) {
			require.Equal(t, "alice", req.Username)
			return auth.LoginResponse{AccessToken: "signed.jwt.token", TokenType: "bearer"}, nil
		},
	}
	rec := doRequest(newTestRouter(t, svc, &memoryRepo{}), http.MethodPost, "/api/v1/auth/login", `{"username":"alice","password":"hunter22"}`, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var got auth.LoginResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	require.Equal(t, "signed.jwt.token", got.AccessToken)
}

func TestRouter_LoginWrongPassword(t *testing.T) {
	svc := &stubAuth{
		loginFn: func(ctx context.Context, req auth.LoginRequest) (auth.LoginResponse, error) {
			return auth.LoginResponse{}, apperrors.Wrap(apperrors.CodeAuth, "invalid username or password", nil)
		},
	}
	rec := doRequest(newTestRouter(t, svc, &memoryRepo{}), http.MethodPost, "/api/v1/auth/login", `{"username":"alice","password":"wrong"}`, nil)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRouter_ProfileRequiresToken(t *testing.T) {
	svc := &stubAuth{}
	rec := doRequest(newTestRouter(t, svc, &memoryRepo{}), http.MethodGet, "/api/v1/auth/me", "", nil)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRouter_ProfileSuccess(t *testing.T) {
	svc := &stubAuth{
		validateFn: func(ctx context.Context, token string) (auth.Claims, error) {
			require.Equal(t, "a-valid-token", token)
			return auth.Claims{UserID: 7, Username: "alice"}, nil
		},
		profileFn: func(ctx context.Context, userID int64) (auth.UserView, error) {
			require.Equal(t, int64(7), userID)
			return auth.UserView{ID: 7, Username: "alice", Nickname: "alice"}, nil
		},
	}
	rec := doRequest(newTestRouter(t, svc, &memoryRepo{}), http.MethodGet, "/api/v1/auth/me", "", map[string]string{"Authorization": "Bearer a-valid-token"})
	require.Equal(t, http.StatusOK, rec.Code)

	var got auth.UserView
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	require.Equal(t, "alice", got.Nickname)
}

func TestRouter_ListConversationsEmpty(t *testing.T) {
	svc := &stubAuth{
		validateFn: func(ctx context.Context, token string) (auth.Claims, error) {
			return auth.Claims{UserID: 1, Username: "alice"}, nil
		},
	}
	rec := doRequest(newTestRouter(t, svc, &memoryRepo{}), http.MethodGet, "/api/v1/chat/conversations", "", map[string]string{"Authorization": "Bearer t"})
	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `[]`, rec.Body.String())
}

func TestRouter_DeleteConversationNotOwned(t *testing.T) {
	repo := &memoryRepo{conversations: map[int64]convo.Conversation{5: {ID: 5, UserID: 99}}}
	svc := &stubAuth{
		validateFn: func(ctx context.Context, token string) (auth.Claims, error) {
			return auth.Claims{UserID: 1, Username: "alice"}, nil
		},
	}
	rec := doRequest(newTestRouter(t, svc, repo), http.MethodDelete, "/api/v1/chat/conversations/5", "", map[string]string{"Authorization": "Bearer t"})
	require.Equal(t, http.StatusNotFound, rec.Code)
}
