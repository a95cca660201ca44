package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Idosegev23/finhealer/internal/common"
)

// APIError is the error body of every failed request.
type APIError struct {
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

// genericMessages replace the error text of server-side failures.
var genericMessages = map[int]string{
	http.StatusInternalServerError: "internal error",
	http.StatusBadGateway:          "upstream service unavailable",
}

type errorEnvelope struct {
	Error APIError `json:"error"`
}

// statusOf maps the error taxonomy to an HTTP status and a stable code.
func statusOf(err error) (int, string) {
	switch {
	case errors.Is(err, common.ErrValidation), errors.Is(err, common.ErrNoTransactions):
		return http.StatusBadRequest, "validation"
	case errors.Is(err, common.ErrUnauthorized):
		return http.StatusUnauthorized, "unauthorized"
	case errors.Is(err, common.ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, common.ErrDuplicateEntry):
		return http.StatusConflict, "duplicate"
	case errors.Is(err, common.ErrInvalidTransition):
		return http.StatusConflict, "invalid_transition"
	case errors.Is(err, common.ErrUpstream):
		return http.StatusBadGateway, "upstream"
	default:
		return http.StatusInternalServerError, "internal"
	}
}

func (s *Server) respondError(c *gin.Context, err error) {
	status, code := statusOf(err)
	msg := err.Error()
	if status >= 500 {
		// Causes stay in the log.
		s.logger.Error("Request failed", "path", c.FullPath(), "error", err)
		msg = genericMessages[status]
		if msg == "" {
			msg = http.StatusText(status)
		}
	}
	c.AbortWithStatusJSON(status, errorEnvelope{Error: APIError{Message: msg, Code: code}})
}

func (s *Server) badRequest(c *gin.Context, err error) {
	c.AbortWithStatusJSON(http.StatusBadRequest, errorEnvelope{Error: APIError{Message: err.Error(), Code: "validation"}})
}
