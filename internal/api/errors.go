package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/pashuvlogs/home-app/internal/domain"
	"github.com/pashuvlogs/home-app/internal/middleware"
)

// statusFor maps a domain error code to its HTTP status.
func statusFor(code string) int {
	switch code {
	case domain.CodeValidation:
		return http.StatusBadRequest
	case domain.CodeAuthorization:
		return http.StatusForbidden
	case domain.CodeStateConflict:
		return http.StatusConflict
	case domain.CodeNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// respondError writes err as an APIError. Untyped errors are logged and
// reported with a generic message.
func (s *Server) respondError(c *gin.Context, err error) {
	code := domain.CodeOf(err)
	status := statusFor(code)
	requestID := c.GetString(middleware.CorrelationIDKey)

	if status == http.StatusInternalServerError {
		s.logger.WithFields(logrus.Fields{
			"correlation_id": requestID,
			"method":         c.Request.Method,
			"path":           c.FullPath(),
			"error":          err,
		}).Error("Request failed")
		c.JSON(status, domain.NewAPIError(domain.CodeInternal, "Internal server error", "", requestID))
		return
	}

	body := domain.NewAPIError(code, err.Error(), "", requestID)
	var verr *domain.ValidationError
	if errors.As(err, &verr) {
		body.Message = "Validation failed"
		body.Problems = verr.Problems
	}
	c.JSON(status, body)
}

// badRequest reports a malformed request body or parameter.
func (s *Server) badRequest(c *gin.Context, field, message string) {
	s.respondError(c, domain.NewValidationError(field, message))
}
