// Package handler provides HTTP handlers for API endpoints.
package handler

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"goodies-platform/internal/middleware"
	"goodies-platform/internal/payments"
	"goodies-platform/internal/services"
	"goodies-platform/internal/transport/httpdto"
	"goodies-platform/pkg/logger"
)

// MaxWebhookBodyBytes bounds a single delivery. Stripe and PayPal events
// are far below it.
const MaxWebhookBodyBytes int64 = 1 << 20

type WebhookProcessor interface {
	Process(ctx context.Context, provider string, header http.Header, body []byte) (services.Result, error)
}

// WebhookHandler receives provider deliveries on POST /webhooks/:provider.
type WebhookHandler struct {
	service WebhookProcessor
	log     *logger.Logger
}

func NewWebhookHandler(service WebhookProcessor, log *logger.Logger) *WebhookHandler {
	return &WebhookHandler{service: service, log: log}
}

// Receive hands the unparsed body to the pipeline. Signature checks need
// the exact bytes, so nothing may bind or rewrite it first.
func (h *WebhookHandler) Receive(c *gin.Context) {
	body, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, MaxWebhookBodyBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			c.JSON(http.StatusRequestEntityTooLarge, httpdto.NewErrorResponse("payload too large", middleware.ErrorCode(http.StatusRequestEntityTooLarge)))
			return
		}
		c.JSON(http.StatusBadRequest, httpdto.NewErrorResponse("unreadable body", middleware.ErrorCode(http.StatusBadRequest)))
		return
	}

	res, err := h.service.Process(c.Request.Context(), c.Param("provider"), c.Request.Header, body)
	if err != nil {
		status := services.HTTPStatus(err)
		if status >= http.StatusInternalServerError {
			h.log.Error(c.Request.Context(), "webhook not acknowledged", zap.Int("status", status), zap.Error(err))
		}
		c.JSON(status, httpdto.NewErrorResponse(webhookErrorMessage(err), middleware.ErrorCode(status)))
		return
	}

	c.JSON(http.StatusOK, httpdto.WebhookAck{
		Received: true,
		Status:   string(res.Status),
		EventID:  res.EventID,
	})
}

// webhookErrorMessage keeps library detail out of provider-facing bodies.
func webhookErrorMessage(err error) string {
	switch {
	case errors.Is(err, payments.ErrUnknownProvider):
		return "unknown provider"
	case errors.Is(err, payments.ErrInvalidSignature):
		return "invalid signature"
	case errors.Is(err, payments.ErrMalformedPayload):
		return "malformed payload"
	case errors.Is(err, payments.ErrVerificationUnavailable):
		return "verification unavailable"
	default:
		return "internal error"
	}
}
