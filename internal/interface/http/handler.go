package http

import (
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/yanqian/ai-helloworld/internal/domain/auth"
	"github.com/yanqian/ai-helloworld/internal/domain/convo"
	"github.com/yanqian/ai-helloworld/internal/domain/ingest"
	"github.com/yanqian/ai-helloworld/internal/domain/ratelimit"
	"github.com/yanqian/ai-helloworld/internal/domain/tenantstate"
	apperrors "github.com/yanqian/ai-helloworld/pkg/errors"
	"github.com/yanqian/ai-helloworld/pkg/metrics"
	"github.com/yanqian/ai-helloworld/pkg/secretcrypto"
)

// Handler wires the HTTP transport to the RAG core's domain services.
type Handler struct {
	authSvc   auth.Service
	state     *tenantstate.Store
	repo      convo.Repository
	validator *convo.Validator
	limiter   *ratelimit.Limiter
	resources *TenantResources
	secrets   *secretcrypto.Box
	metrics   *metrics.Registry
	logger    *slog.Logger
}

// NewHandler constructs the root HTTP handler.
func NewHandler(authSvc auth.Service, state *tenantstate.Store, repo convo.Repository, validator *convo.Validator, limiter *ratelimit.Limiter, resources *TenantResources, secrets *secretcrypto.Box, reg *metrics.Registry, logger *slog.Logger) *Handler {
	return &Handler{
		authSvc:   authSvc,
		state:     state,
		repo:      repo,
		validator: validator,
		limiter:   limiter,
		resources: resources,
		secrets:   secrets,
		metrics:   reg,
		logger:    logger.With("component", "http.handler"),
	}
}

// --- auth ---

func (h *Handler) SendCode(c *gin.Context) {
	var req auth.SendCodeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, NewHTTPError(http.StatusBadRequest, errMessage(err), err))
		return
	}
	resp, err := h.authSvc.SendCode(c.Request.Context(), req)
	if err != nil {
		abortWithError(c, asHTTPError(err))
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *Handler) Register(c *gin.Context) {
	var req auth.RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, NewHTTPError(http.StatusBadRequest, errMessage(err), err))
		return
	}
	if err := h.authSvc.Register(c.Request.Context(), req); err != nil {
		abortWithError(c, asHTTPError(err))
		return
	}
	c.JSON(http.StatusOK, successResponse{Success: true})
}

func (h *Handler) Login(c *gin.Context) {
	var req auth.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, NewHTTPError(http.StatusBadRequest, errMessage(err), err))
		return
	}
	resp, err := h.authSvc.Login(c.Request.Context(), req)
	if err != nil {
		abortWithError(c, asHTTPError(err))
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *Handler) ResetPassword(c *gin.Context) {
	var req auth.ResetPasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, NewHTTPError(http.StatusBadRequest, errMessage(err), err))
		return
	}
	if err := h.authSvc.ResetPassword(c.Request.Context(), req); err != nil {
		abortWithError(c, asHTTPError(err))
		return
	}
	c.JSON(http.StatusOK, successResponse{Success: true})
}

func (h *Handler) Profile(c *gin.Context) {
	claims, ok := getClaims(c)
	if !ok {
		abortWithError(c, NewHTTPError(http.StatusUnauthorized, "missing token", nil))
		return
	}
	view, err := h.authSvc.Profile(c.Request.Context(), claims.UserID)
	if err != nil {
		abortWithError(c, asHTTPError(err))
		return
	}
	c.JSON(http.StatusOK, view)
}

// --- config ---

func (h *Handler) SetConfig(c *gin.Context) {
	claims, _ := getClaims(c)
	var req configRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, NewHTTPError(http.StatusBadRequest, errMessage(err), err))
		return
	}
	if strings.TrimSpace(req.APIKey) == "" {
		abortWithError(c, asHTTPError(apperrors.Wrap(apperrors.CodeValidation, "apiKey is required", nil)))
		return
	}
	if err := h.limiter.Check(claims.UserID, ratelimit.OpConfigUpdate, 1); err != nil {
		abortWithError(c, asHTTPError(err))
		return
	}
	encAPIKey, err := h.secrets.Encrypt(req.APIKey)
	if err != nil {
		abortWithError(c, asHTTPError(apperrors.Wrap(apperrors.CodeInternal, "failed to store provider credentials", err)))
		return
	}
	encRerankerKey, err := h.secrets.Encrypt(req.RerankerKey)
	if err != nil {
		abortWithError(c, asHTTPError(apperrors.Wrap(apperrors.CodeInternal, "failed to store provider credentials", err)))
		return
	}
	h.state.SetConfig(claims.UserID, &tenantstate.UserConfig{
		APIKey:          encAPIKey,
		BaseURL:         req.BaseURL,
		RerankerKey:     encRerankerKey,
		RerankerBaseURL: req.RerankerBaseURL,
	})
	c.JSON(http.StatusOK, successResponse{Success: true})
}

func (h *Handler) GetConfig(c *gin.Context) {
	claims, _ := getClaims(c)
	cfg := h.state.GetConfig(claims.UserID)
	if cfg == nil {
		c.JSON(http.StatusOK, configView{Configured: false})
		return
	}
	c.JSON(http.StatusOK, configView{
		APIKey:          redactSecret(cfg.APIKey),
		BaseURL:         cfg.BaseURL,
		RerankerKey:     redactSecret(cfg.RerankerKey),
		RerankerBaseURL: cfg.RerankerBaseURL,
		Configured:      true,
	})
}

func (h *Handler) TestConfig(c *gin.Context) {
	claims, _ := getClaims(c)
	cfg := h.state.GetConfig(claims.UserID)
	if cfg == nil {
		abortWithError(c, asHTTPError(apperrors.Wrap(apperrors.CodeConfigMissing, "provider configuration not set", nil)))
		return
	}
	tn, err := h.resources.forUser(c.Request.Context(), claims.UserID, claims.Username)
	if err != nil {
		abortWithError(c, asHTTPError(err))
		return
	}
	if _, err := tn.ingest.Embedder.Embed(c.Request.Context(), []string{"connectivity check"}); err != nil {
		abortWithError(c, asHTTPError(apperrors.Provider(apperrors.ProviderBadKey, "embedding provider check failed", err)))
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

func redactSecret(s string) string {
	if s == "" {
		return ""
	}
	return "***"
}

// --- documents ---

func (h *Handler) UploadDocument(c *gin.Context) {
	claims, _ := getClaims(c)
	conversationIDStr := c.Query("conversation_id")
	conversationID, err := strconv.ParseInt(conversationIDStr, 10, 64)
	if err != nil || conversationID == 0 {
		abortWithError(c, asHTTPError(apperrors.Wrap(apperrors.CodeValidation, "conversation_id is required", nil)))
		return
	}

	fileHeader, err := c.FormFile("file")
	if err != nil {
		abortWithError(c, asHTTPError(apperrors.Wrap(apperrors.CodeValidation, "file is required", err)))
		return
	}
	file, err := fileHeader.Open()
	if err != nil {
		abortWithError(c, asHTTPError(apperrors.Wrap(apperrors.CodeIngest, "failed to open uploaded file", err)))
		return
	}
	defer file.Close()
	content, err := io.ReadAll(file)
	if err != nil {
		abortWithError(c, asHTTPError(apperrors.Wrap(apperrors.CodeIngest, "failed to read uploaded file", err)))
		return
	}

	tn, err := h.resources.forUser(c.Request.Context(), claims.UserID, claims.Username)
	if err != nil {
		abortWithError(c, asHTTPError(err))
		return
	}

	result, err := tn.ingest.Ingest(c.Request.Context(), ingest.Request{
		UserID:         claims.UserID,
		ConversationID: conversationID,
		Filename:       fileHeader.Filename,
		Content:        content,
	})
	if err != nil {
		abortWithError(c, asHTTPError(err))
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success":         true,
		"filename":        result.Document.Filename,
		"conversation_id": conversationID,
	})
}

func (h *Handler) DocumentStatus(c *gin.Context) {
	claims, _ := getClaims(c)
	sess := h.state.EnsureSession(claims.UserID)
	c.JSON(http.StatusOK, gin.H{"documents_loaded": sess.DocumentsLoaded})
}

func (h *Handler) ClearDocuments(c *gin.Context) {
	claims, _ := getClaims(c)
	h.state.SetDocumentsLoaded(claims.UserID, false)
	c.JSON(http.StatusOK, successResponse{Success: true})
}

// --- chat ---

func (h *Handler) ChatMessage(c *gin.Context) {
	claims, _ := getClaims(c)
	var req chatMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, NewHTTPError(http.StatusBadRequest, errMessage(err), err))
		return
	}
	if strings.TrimSpace(req.Content) == "" {
		abortWithError(c, asHTTPError(apperrors.Wrap(apperrors.CodeValidation, "content cannot be empty", nil)))
		return
	}

	conversationID, err := h.resolveConversation(c, claims.UserID, req.ConversationID)
	if err != nil {
		abortWithError(c, asHTTPError(err))
		return
	}

	tn, err := h.resources.forUser(c.Request.Context(), claims.UserID, claims.Username)
	if err != nil {
		abortWithError(c, asHTTPError(err))
		return
	}

	result, err := tn.retrieval.Answer(c.Request.Context(), claims.UserID, conversationID, req.Content)
	if err != nil {
		abortWithError(c, asHTTPError(err))
		return
	}
	if h.metrics != nil {
		if result.UsedCache {
			h.metrics.CacheHits.WithLabelValues("semantic").Inc()
		} else {
			h.metrics.CacheMisses.WithLabelValues("semantic").Inc()
		}
	}

	c.JSON(http.StatusOK, chatMessageResponse{
		Success:            true,
		Response:           result.Answer,
		ConversationID:     conversationID,
		SuggestedQuestions: result.FollowUps,
	})
}

// resolveConversation returns the requested conversation id, creating a
// fresh one for the caller when none was supplied.
func (h *Handler) resolveConversation(c *gin.Context, userID int64, requested *int64) (int64, error) {
	if requested != nil && *requested != 0 {
		return *requested, nil
	}
	conv, err := h.repo.CreateConversation(c.Request.Context(), convo.Conversation{UserID: userID, Title: ""})
	if err != nil {
		return 0, err
	}
	return conv.ID, nil
}

func (h *Handler) ListConversations(c *gin.Context) {
	claims, _ := getClaims(c)
	convs, err := h.repo.ListUserConversations(c.Request.Context(), claims.UserID)
	if err != nil {
		abortWithError(c, asHTTPError(err))
		return
	}
	views := make([]conversationView, 0, len(convs))
	for _, conv := range convs {
		count, err := h.repo.CountMessages(c.Request.Context(), conv.ID)
		if err != nil {
			abortWithError(c, asHTTPError(err))
			return
		}
		views = append(views, conversationView{
			ID:           conv.ID,
			Title:        conv.Title,
			CreatedAt:    conv.CreatedAt,
			UpdatedAt:    conv.UpdatedAt,
			MessageCount: count,
		})
	}
	c.JSON(http.StatusOK, views)
}

func (h *Handler) DeleteConversation(c *gin.Context) {
	claims, _ := getClaims(c)
	id, err := conversationIDParam(c)
	if err != nil {
		abortWithError(c, asHTTPError(err))
		return
	}
	if ok, msg := h.validator.ValidateAccess(c.Request.Context(), id, claims.UserID, false); !ok {
		abortWithError(c, NewHTTPError(http.StatusNotFound, msg, nil))
		return
	}
	if err := h.repo.DeleteConversation(c.Request.Context(), id); err != nil {
		abortWithError(c, asHTTPError(err))
		return
	}
	c.JSON(http.StatusOK, successResponse{Success: true})
}

func (h *Handler) RenameConversation(c *gin.Context) {
	claims, _ := getClaims(c)
	id, err := conversationIDParam(c)
	if err != nil {
		abortWithError(c, asHTTPError(err))
		return
	}
	var req renameConversationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, NewHTTPError(http.StatusBadRequest, errMessage(err), err))
		return
	}
	if ok, msg := h.validator.ValidateAccess(c.Request.Context(), id, claims.UserID, false); !ok {
		abortWithError(c, NewHTTPError(http.StatusNotFound, msg, nil))
		return
	}
	if err := h.repo.RenameConversation(c.Request.Context(), id, req.Title); err != nil {
		abortWithError(c, asHTTPError(err))
		return
	}
	c.JSON(http.StatusOK, successResponse{Success: true})
}

func (h *Handler) ConversationHealth(c *gin.Context) {
	claims, _ := getClaims(c)
	id, err := conversationIDParam(c)
	if err != nil {
		abortWithError(c, asHTTPError(err))
		return
	}
	report, err := h.validator.Health(c.Request.Context(), id, claims.UserID)
	if err != nil {
		abortWithError(c, asHTTPError(err))
		return
	}
	c.JSON(http.StatusOK, gin.H{"health": report})
}

func (h *Handler) CleanupExpiredConversations(c *gin.Context) {
	claims, _ := getClaims(c)
	summary, err := h.validator.CleanupExpired(c.Request.Context(), claims.UserID)
	if err != nil {
		abortWithError(c, asHTTPError(err))
		return
	}
	c.JSON(http.StatusOK, summary)
}

func (h *Handler) RateLimitQuota(c *gin.Context) {
	claims, _ := getClaims(c)
	ops := []ratelimit.Operation{ratelimit.OpChat, ratelimit.OpUpload, ratelimit.OpVoice, ratelimit.OpSearch, ratelimit.OpConfigUpdate}
	quotas := make(map[ratelimit.Operation]ratelimit.Quota, len(ops))
	for _, op := range ops {
		quotas[op] = h.limiter.Quota(claims.UserID, op)
	}
	c.JSON(http.StatusOK, quotas)
}

func conversationIDParam(c *gin.Context) (int64, error) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return 0, apperrors.Wrap(apperrors.CodeValidation, "invalid conversation id", err)
	}
	return id, nil
}

func errMessage(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
