package server

import (
	"errors"
	"net/http"

	"github.com/MarcoPoloResearchLab/clipshare/internal/apperr"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type errorResponse struct {
	Error   apperr.Kind `json:"error"`
	Code    string      `json:"code"`
	Message string      `json:"message"`
}

func statusFor(kind apperr.Kind) int {
	switch kind {
	case apperr.KindUnauthenticated:
		return http.StatusUnauthorized
	case apperr.KindUnauthorized:
		return http.StatusForbidden
	case apperr.KindNotFound:
		return http.StatusNotFound
	case apperr.KindValidation, apperr.KindInvalidOperation:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// writeError aborts the request with the status and body matching err's kind.
// Unclassified errors are logged and answered with a generic 500.
func (h *httpHandler) writeError(c *gin.Context, err error) {
	var appErr *apperr.Error
	if !errors.As(err, &appErr) {
		h.logger.Error("unclassified request failure", zap.String("route", c.FullPath()), zap.Error(err))
		c.AbortWithStatusJSON(http.StatusInternalServerError, errorResponse{
			Error:   apperr.KindInternal,
			Code:    "server.internal",
			Message: "internal error",
		})
		return
	}
	status := statusFor(appErr.Kind())
	if status >= http.StatusInternalServerError {
		h.logger.Error("request failed", zap.String("route", c.FullPath()), zap.String("code", appErr.Code()), zap.Error(err))
	}
	c.AbortWithStatusJSON(status, errorResponse{
		Error:   appErr.Kind(),
		Code:    appErr.Code(),
		Message: appErr.Message(),
	})
}

func (h *httpHandler) badRequest(c *gin.Context, operation, reason, message string) {
	h.writeError(c, apperr.New(apperr.KindValidation, operation, reason, message, nil))
}
