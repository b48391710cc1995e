package middleware

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	apperrors "github.com/jwalitptl/barber-api/pkg/errors"
)

// ErrorResponse represents a standardized error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    int    `json:"code"`
	TraceID string `json:"trace_id,omitempty"`
}

// ErrorHandler renders the last error a handler attached with c.Error.
// Only *errors.AppError messages reach the client; anything else becomes a generic 500.
func ErrorHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		// Only handle errors if they exist
		if len(c.Errors) == 0 {
			return
		}

		traceID := c.GetString(ContextRequestID)
		status := statusOf(c.Errors.Last().Err)

		for _, e := range c.Errors {
			level := zerolog.WarnLevel
			if statusOf(e.Err) >= http.StatusInternalServerError {
				level = zerolog.ErrorLevel
			}
			log.WithLevel(level).
				Err(e.Err).
				Str("request_id", traceID).
				Str("path", c.Request.URL.Path).
				Str("method", c.Request.Method).
				Str("client_ip", c.ClientIP()).
				Msg("Request error")
		}

		if c.Writer.Written() {
			return
		}
		c.JSON(status, responseFor(c, c.Errors.Last().Err))
	}
}

// AbortWithError stops the chain and writes err the same way ErrorHandler would.
func AbortWithError(c *gin.Context, err error) {
	_ = c.Error(err)
	c.AbortWithStatusJSON(statusOf(err), responseFor(c, err))
}

func statusOf(err error) int {
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		return appErr.StatusCode()
	}
	return http.StatusInternalServerError
}

func responseFor(c *gin.Context, err error) ErrorResponse {
	message := apperrors.InternalMessage
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		message = appErr.Message
	}
	return ErrorResponse{
		Error:   message,
		Code:    statusOf(err),
		TraceID: c.GetString(ContextRequestID),
	}
}
