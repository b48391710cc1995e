package middleware

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	apperrors "github.com/jwalitptl/barber-api/pkg/errors"
)

// SizeLimit caps request bodies at maxBytes.
func SizeLimit(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.ContentLength > maxBytes {
			AbortWithError(c, apperrors.PayloadTooLarge(
				fmt.Errorf("content length %d exceeds %d", c.Request.ContentLength, maxBytes),
			))
			return
		}
		// bodies sent without a length are cut off while reading; handlers
		// report the *http.MaxBytesError with BodyError
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		c.Next()
	}
}

// BodyError maps a failed body read to 413 when the size limit cut it off.
// ok is false for any other error.
func BodyError(err error) (appErr *apperrors.AppError, ok bool) {
	var tooLarge *http.MaxBytesError
	if !errors.As(err, &tooLarge) {
		return nil, false
	}
	return apperrors.PayloadTooLarge(err), true
}
