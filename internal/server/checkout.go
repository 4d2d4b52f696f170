package server

import (
	"net/http"
	"strings"

	"github.com/bwmarrin/snowflake"
	checkoutdomain "github.com/edusocial/edusocial/internal/checkout/domain"
	"github.com/gin-gonic/gin"
)

type checkoutRequest struct {
	PlanID   string `json:"plan_id"`
	Quantity int    `json:"quantity"`
	Currency string `json:"currency"`
}

func (s *Server) startCheckout(c *gin.Context) {
	var req checkoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, newValidationError("request", "invalid_request", "invalid request"))
		return
	}

	planID, err := snowflake.ParseString(strings.TrimSpace(req.PlanID))
	if err != nil {
		AbortWithError(c, newValidationError("plan_id", "invalid_plan_id", "invalid value"))
		return
	}

	result, err := s.checkoutSvc.Start(c.Request.Context(), checkoutdomain.CheckoutRequest{
		BusinessAccountID: accountID(c),
		PlanID:            planID,
		Quantity:          req.Quantity,
		Currency:          req.Currency,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}
