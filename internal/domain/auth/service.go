package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"net/mail"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/yanqian/ai-helloworld/internal/domain/convo"
	"github.com/yanqian/ai-helloworld/internal/domain/tenantstate"
	apperrors "github.com/yanqian/ai-helloworld/pkg/errors"
)

// Service exposes the username/verification-code authentication workflows
// named at the HTTP boundary.
type Service interface {
	SendCode(ctx context.Context, req SendCodeRequest) (SendCodeResponse, error)
	Register(ctx context.Context, req RegisterRequest) error
	Login(ctx context.Context, req LoginRequest) (LoginResponse, error)
	ResetPassword(ctx context.Context, req ResetPasswordRequest) error
	ValidateToken(ctx context.Context, token string) (Claims, error)
	Profile(ctx context.Context, userID int64) (UserView, error)
}

type service struct {
	cfg    Config
	repo   convo.Repository
	codes  *tenantstate.Store
	hasher *passwordHasher
	logger *slog.Logger
}

const tokenTypeAccess = "access"

// NewService constructs a Service instance. codes is the shared tenant-state store
// whose verification-code map backs send-code/register/reset-password.
func NewService(cfg Config, repo convo.Repository, codes *tenantstate.Store, logger *slog.Logger) Service {
	return &service{
		cfg:    cfg,
		repo:   repo,
		codes:  codes,
		hasher: newPasswordHasher(),
		logger: logger.With("component", "auth.service"),
	}
}

func (s *service) SendCode(ctx context.Context, req SendCodeRequest) (SendCodeResponse, error) {
	email, err := normalizeEmail(req.Email)
	if err != nil {
		return SendCodeResponse{}, apperrors.Wrap(apperrors.CodeValidation, "invalid email address", err)
	}
	if _, found, err := s.repo.GetUserByEmail(ctx, email); err != nil {
		return SendCodeResponse{}, apperrors.Wrap(apperrors.CodeInternal, "failed to check email", err)
	} else if found {
		return SendCodeResponse{}, apperrors.Wrap(apperrors.CodeEmailTaken, "email already registered", nil)
	}

	code := generateCode()
	s.codes.SetVerificationCode(email, code)

	resp := SendCodeResponse{Success: true, Message: "verification code sent"}
	if !s.cfg.Production {
		resp.DevCode = code
	}
	return resp, nil
}

func (s *service) Register(ctx context.Context, req RegisterRequest) error {
	username := strings.TrimSpace(req.Username)
	if username == "" {
		return apperrors.Wrap(apperrors.CodeValidation, "username cannot be empty", nil)
	}
	email, err := normalizeEmail(req.Email)
	if err != nil {
		return apperrors.Wrap(apperrors.CodeValidation, "invalid email address", err)
	}
	if err := validatePassword(req.Password); err != nil {
		return apperrors.Wrap(apperrors.CodeValidation, err.Error(), nil)
	}
	if !s.codes.VerifyCode(email, req.VerificationCode) {
		return apperrors.Wrap(apperrors.CodeValidation, "invalid or expired verification code", nil)
	}

	hashed, err := s.hasher.Hash(ctx, req.Password)
	if err != nil {
		return apperrors.Wrap(apperrors.CodeInternal, "failed to hash password", err)
	}

	_, err = s.repo.CreateUser(ctx, convo.User{
		Username:       username,
		Email:          email,
		HashedPassword: string(hashed),
	})
	if err != nil {
		return err
	}
	return nil
}

func (s *service) Login(ctx context.Context, req LoginRequest) (LoginResponse, error) {
	username := strings.TrimSpace(req.Username)
	if username == "" || req.Password == "" {
		return LoginResponse{}, apperrors.Wrap(apperrors.CodeValidation, "username and password are required", nil)
	}
	user, found, err := s.repo.GetUserByUsername(ctx, username)
	if err != nil {
		return LoginResponse{}, apperrors.Wrap(apperrors.CodeInternal, "failed to fetch user", err)
	}
	if !found {
		return LoginResponse{}, apperrors.Wrap(apperrors.CodeAuth, "invalid username or password", nil)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.HashedPassword), []byte(req.Password)); err != nil {
		return LoginResponse{}, apperrors.Wrap(apperrors.CodeAuth, "invalid username or password", nil)
	}

	access, err := s.generateToken(user, s.cfg.TokenTTL)
	if err != nil {
		return LoginResponse{}, err
	}
	return LoginResponse{AccessToken: access, TokenType: "bearer"}, nil
}

func (s *service) ResetPassword(ctx context.Context, req ResetPasswordRequest) error {
	email, err := normalizeEmail(req.Email)
	if err != nil {
		return apperrors.Wrap(apperrors.CodeValidation, "invalid email address", err)
	}
	if err := validatePassword(req.NewPassword); err != nil {
		return apperrors.Wrap(apperrors.CodeValidation, err.Error(), nil)
	}
	if !s.codes.VerifyCode(email, req.VerificationCode) {
		return apperrors.Wrap(apperrors.CodeValidation, "invalid or expired verification code", nil)
	}
	user, found, err := s.repo.GetUserByEmail(ctx, email)
	if err != nil {
		return apperrors.Wrap(apperrors.CodeInternal, "failed to fetch user", err)
	}
	if !found {
		return apperrors.Wrap(apperrors.CodeValidation, "no account registered for that email", nil)
	}
	hashed, err := s.hasher.Hash(ctx, req.NewPassword)
	if err != nil {
		return apperrors.Wrap(apperrors.CodeInternal, "failed to hash password", err)
	}
	return s.repo.UpdatePassword(ctx, user.ID, string(hashed))
}

func (s *service) ValidateToken(ctx context.Context, token string) (Claims, error) {
	if strings.TrimSpace(token) == "" {
		return Claims{}, apperrors.Wrap(apperrors.CodeAuth, "token missing", nil)
	}
	claims, err := s.parseToken(token)
	if err != nil {
		return Claims{}, err
	}
	if claims.TokenType != tokenTypeAccess {
		return Claims{}, apperrors.Wrap(apperrors.CodeAuth, "token type mismatch", nil)
	}
	return claims, nil
}

func (s *service) Profile(ctx context.Context, userID int64) (UserView, error) {
	user, found, err := s.repo.GetUserByID(ctx, userID)
	if err != nil {
		return UserView{}, apperrors.Wrap(apperrors.CodeInternal, "failed to load profile", err)
	}
	if !found {
		return UserView{}, apperrors.Wrap(apperrors.CodeNotFound, "user not found", nil)
	}
	return toView(user), nil
}

func (s *service) generateToken(user convo.User, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := tokenClaims{
		UserID:    user.ID,
		Username:  user.Username,
		TokenType: tokenTypeAccess,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatInt(user.ID, 10),
			ID:        newTokenID(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(s.cfg.Secret))
	if err != nil {
		return "", apperrors.Wrap(apperrors.CodeInternal, "failed to sign token", err)
	}
	return signed, nil
}

func (s *service) parseToken(token string) (Claims, error) {
	parsed, err := jwt.ParseWithClaims(token, &tokenClaims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %s", t.Method.Alg())
		}
		return []byte(s.cfg.Secret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return Claims{}, apperrors.Wrap(apperrors.CodeAuth, "token validation failed", err)
	}
	claims, ok := parsed.Claims.(*tokenClaims)
	if !ok || !parsed.Valid {
		return Claims{}, apperrors.Wrap(apperrors.CodeAuth, "token invalid", nil)
	}
	if claims.ExpiresAt == nil || claims.ExpiresAt.Time.Before(time.Now()) {
		return Claims{}, apperrors.Wrap(apperrors.CodeAuth, "token expired", nil)
	}
	return Claims{
		UserID:    claims.UserID,
		Username:  claims.Username,
		TokenType: claims.TokenType,
		ExpiresAt: claims.ExpiresAt.Time,
	}, nil
}

func toView(user convo.User) UserView {
	return UserView{
		ID:       user.ID,
		Username: user.Username,
		Nickname: user.Username,
	}
}

func normalizeEmail(raw string) (string, error) {
	email := strings.TrimSpace(strings.ToLower(raw))
	if email == "" {
		return "", errors.New("email cannot be empty")
	}
	if _, err := mail.ParseAddress(email); err != nil {
		return "", err
	}
	return email, nil
}

func validatePassword(password string) error {
	if len(password) < 8 {
		return fmt.Errorf("password must be at least 8 characters")
	}
	return nil
}

func generateCode() string {
	buf := make([]byte, 3)
	if _, err := rand.Read(buf); err != nil {
		return "000000"
	}
	n := int(buf[0])<<16 | int(buf[1])<<8 | int(buf[2])
	return fmt.Sprintf("%06d", n%1000000)
}

type tokenClaims struct {
	jwt.RegisteredClaims
	UserID    int64  `json:"userId"`
	Username  string `json:"username"`
	TokenType string `json:"type"`
}

func newTokenID() string {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return strconv.FormatInt(time.Now().UnixNano(), 10)
	}
	return hex.EncodeToString(buf)
}
