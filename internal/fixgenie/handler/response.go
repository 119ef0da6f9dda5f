// Package handler exposes the HTTP API of the FixGenie service.
package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/kart-io/fixgenie/internal/pkg/errkind"
)

// SuccessResponse is the uniform success envelope.
type SuccessResponse struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// ErrorResponse is the uniform error envelope.
type ErrorResponse struct {
	Code          int    `json:"code"`
	Message       string `json:"message"`
	Kind          string `json:"kind,omitempty"`
	CorrelationID string `json:"correlation_id,omitempty"`
}

// statusFor maps error kinds to HTTP status codes.
func statusFor(kind errkind.Kind) int {
	switch kind {
	case errkind.KindInput:
		return http.StatusBadRequest
	case errkind.KindSchema:
		return http.StatusUnprocessableEntity
	case errkind.KindRateLimited:
		return http.StatusTooManyRequests
	case errkind.KindTransientRemote, errkind.KindEmbeddingUnavailable, errkind.KindTotalSubsystem:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func respondOK(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, SuccessResponse{
		Code:    http.StatusOK,
		Message: "success",
		Data:    data,
	})
}

func respondError(c *gin.Context, err error) {
	kind := errkind.KindOf(err)
	status := statusFor(kind)
	c.JSON(status, ErrorResponse{
		Code:          status,
		Message:       err.Error(),
		Kind:          string(kind),
		CorrelationID: errkind.CorrelationID(err),
	})
}
