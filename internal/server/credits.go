package server

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
)

func (s *Server) getCreditBalance(c *gin.Context) {
	balance, err := s.creditSvc.Balance(c.Request.Context(), accountID(c))
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"business_account_id": balance.BusinessAccountID.String(),
		"total_credits":       balance.TotalCredits,
		"used_credits":        balance.UsedCredits,
		"available_credits":   balance.Available(),
	})
}

func (s *Server) listCreditTransactions(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))

	transactions, err := s.creditSvc.Transactions(c.Request.Context(), accountID(c), limit)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"transactions": transactions})
}

type debitRequest struct {
	Amount int64  `json:"amount"`
	Reason string `json:"reason"`
}

func (s *Server) debitCredits(c *gin.Context) {
	var req debitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, newValidationError("request", "invalid_request", "invalid request"))
		return
	}

	balance, err := s.creditSvc.Debit(c.Request.Context(), accountID(c), req.Amount, req.Reason)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"total_credits":     balance.TotalCredits,
		"used_credits":      balance.UsedCredits,
		"available_credits": balance.Available(),
	})
}
