// Package errors defines the tagged error kinds surfaced across the RAG core.
package errors

import "errors"

// Error codes. HTTP handlers map these to status codes; see interface/http/http_error.go.
const (
	CodeValidation     = "validation_error"
	CodeAuth           = "auth_error"
	CodeAccessDenied   = "access_denied"
	CodeExpiredSession = "expired_session"
	CodeRateLimited    = "rate_limited"
	CodePoolExhausted  = "pool_exhausted"
	CodeProvider       = "provider_error"
	CodeIngest         = "ingest_error"
	CodeConfigMissing  = "config_missing"
	CodeNotFound       = "not_found"
	CodeUsernameTaken  = "username_taken"
	CodeEmailTaken     = "email_taken"
	CodeInternal       = "internal"
)

// ProviderKind classifies a ProviderError's underlying cause so the retry
// loop and the user-facing message can branch on it without sniffing
// error strings.
type ProviderKind string

const (
	ProviderRateLimited    ProviderKind = "rate_limit_upstream"
	ProviderTimeout        ProviderKind = "timeout"
	ProviderBadKey         ProviderKind = "bad_key"
	ProviderQuotaExceeded  ProviderKind = "quota_exceeded"
	ProviderGeneric        ProviderKind = "generic"
)

// AppError encodes domain specific error details.
type AppError struct {
	Code     string
	Message  string
	Err      error
	Provider ProviderKind // only meaningful when Code == CodeProvider
	RetryAfterS int       // only meaningful when Code == CodeRateLimited
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// Wrap produces a new AppError instance.
func Wrap(code, message string, err error) error {
	if err == nil {
		return &AppError{Code: code, Message: message}
	}
	return &AppError{Code: code, Message: message, Err: err}
}

// RateLimited builds a RateLimited AppError carrying the retry-after hint.
func RateLimited(retryAfterS int) error {
	return &AppError{Code: CodeRateLimited, Message: "rate limit exceeded", RetryAfterS: retryAfterS}
}

// Provider builds a ProviderError tagged with its classified kind.
func Provider(kind ProviderKind, message string, err error) error {
	return &AppError{Code: CodeProvider, Message: message, Err: err, Provider: kind}
}

// IsCode helps handler differentiate failures.
func IsCode(err error, code string) bool {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code == code
	}
	return false
}

// As extracts the *AppError from err, if any.
func As(err error) (*AppError, bool) {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}
