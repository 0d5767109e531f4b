package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"key2pay-backend/internal/domain"
	"key2pay-backend/internal/usecase"
)

func (s *Server) abort(c *gin.Context, status int, code, msg string) {
	c.AbortWithStatusJSON(status, gin.H{
		"error": gin.H{
			"code":      code,
			"message":   msg,
			"requestId": c.GetString(requestIDKey),
		},
	})
}

// fail maps a service error onto the API error envelope.
func (s *Server) fail(c *gin.Context, err error) {
	var (
		notFound   usecase.ErrNotFound
		conflict   usecase.ErrConflict
		badRequest usecase.ErrBadRequest
		unauth     usecase.ErrUnauthorized
		rejected   *usecase.ErrPaymentRejected
	)
	switch {
	case errors.As(err, &notFound), errors.Is(err, domain.ErrOrderNotFound):
		s.abort(c, http.StatusNotFound, "NotFound", err.Error())
	case errors.As(err, &conflict):
		s.abort(c, http.StatusConflict, "Conflict", err.Error())
	case errors.As(err, &badRequest):
		s.abort(c, http.StatusBadRequest, "BadRequest", err.Error())
	case errors.As(err, &unauth):
		s.abort(c, http.StatusUnauthorized, "Unauthorized", err.Error())
	case errors.As(err, &rejected):
		s.abort(c, http.StatusPaymentRequired, "PaymentRejected", rejected.Message)
	default:
		s.log.Error("request failed", zap.String("path", c.FullPath()), zap.Error(err))
		s.abort(c, http.StatusInternalServerError, "ServerError", "internal error")
	}
}

// webhookStatus picks the status that tells the processor whether to retry.
func webhookStatus(err error) int {
	var notFound usecase.ErrNotFound
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, usecase.ErrMalformedPayload), errors.Is(err, usecase.ErrMalformedTrackID):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrOrderNotFound), errors.As(err, &notFound):
		return http.StatusNotFound
	case errors.Is(err, usecase.ErrTokenMismatch):
		return http.StatusForbidden
	}
	return http.StatusInternalServerError
}
