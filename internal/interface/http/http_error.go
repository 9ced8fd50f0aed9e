package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	apperrors "github.com/yanqian/ai-helloworld/pkg/errors"
	"github.com/yanqian/ai-helloworld/pkg/sanitize"
)

// HTTPError captures the metadata required to serialize a {detail: string}
// response.
type HTTPError struct {
	Status int
	Detail string
	Err    error
}

// Error implements the error interface.
func (e *HTTPError) Error() string {
	if e == nil {
		return ""
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return e.Detail
}

// NewHTTPError is a helper to build an HTTPError instance.
func NewHTTPError(status int, detail string, err error) *HTTPError {
	return &HTTPError{Status: status, Detail: detail, Err: err}
}

// asHTTPError maps a domain error to an HTTPError using an error-kind
// table. Unrecognized errors become a sanitized 500.
func asHTTPError(err error) *HTTPError {
	if err == nil {
		return nil
	}
	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		return httpErr
	}

	appErr, ok := apperrors.As(err)
	if !ok {
		return &HTTPError{Status: http.StatusInternalServerError, Detail: sanitize.Message(err.Error()), Err: err}
	}

	status := http.StatusInternalServerError
	switch appErr.Code {
	case apperrors.CodeValidation, apperrors.CodeExpiredSession, apperrors.CodeAccessDenied, apperrors.CodeConfigMissing, apperrors.CodeUsernameTaken, apperrors.CodeEmailTaken:
		status = http.StatusBadRequest
	case apperrors.CodeAuth:
		status = http.StatusUnauthorized
	case apperrors.CodeNotFound:
		status = http.StatusNotFound
	case apperrors.CodeRateLimited:
		status = http.StatusTooManyRequests
	case apperrors.CodePoolExhausted, apperrors.CodeProvider, apperrors.CodeIngest, apperrors.CodeInternal:
		status = http.StatusInternalServerError
	}
	return &HTTPError{Status: status, Detail: sanitize.Message(appErr.Message), Err: err}
}

func abortWithError(c *gin.Context, err *HTTPError) {
	if err == nil {
		return
	}
	_ = c.Error(err)
	c.Abort()
}
