package server

import (
	"errors"
	"io"
	"net/http"

	paymentdomain "github.com/edusocial/edusocial/internal/payment/domain"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const maxWebhookBodyBytes = 1 << 20

func (s *Server) handlePaymentWebhook(c *gin.Context) {
	provider := c.Param("provider")

	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBodyBytes))
	if err != nil {
		AbortWithError(c, paymentdomain.ErrInvalidPayload)
		return
	}

	err = s.paymentSvc.HandleWebhook(c.Request.Context(), provider, body, c.Request.Header)
	switch {
	case err == nil:
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	case errors.Is(err, paymentdomain.ErrEventAlreadyProcessed),
		errors.Is(err, paymentdomain.ErrEventIgnored):
		// Providers retry until they see 2xx; both cases are settled.
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	default:
		s.log.Warn("webhook processing failed",
			zap.String("provider", provider),
			zap.Error(err),
		)
		AbortWithError(c, err)
	}
}
