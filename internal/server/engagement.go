package server

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/bwmarrin/snowflake"
	engagementdomain "github.com/edusocial/edusocial/internal/engagement/domain"
	"github.com/gin-gonic/gin"
)

type engagementRequest struct {
	Type     string `json:"type"`
	TargetID string `json:"target_id"`
}

func (s *Server) recordEngagement(c *gin.Context) {
	var req engagementRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, newValidationError("request", "invalid_request", "invalid request"))
		return
	}

	targetID, err := snowflake.ParseString(strings.TrimSpace(req.TargetID))
	if err != nil {
		AbortWithError(c, engagementdomain.ErrInvalidTarget)
		return
	}

	err = s.engagementSvc.Record(
		c.Request.Context(),
		engagementdomain.EventType(strings.ToLower(strings.TrimSpace(req.Type))),
		targetID,
		accountID(c),
	)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"status": "buffered"})
}

func (s *Server) listTrending(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "10"))

	counters, err := s.engagementSvc.Trending(c.Request.Context(), limit)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"trending": counters})
}
