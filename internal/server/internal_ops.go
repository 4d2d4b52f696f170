package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// triggerFlush lets an external scheduler drive the periodic work instead
// of the built-in ticker.
func (s *Server) triggerFlush(c *gin.Context) {
	ctx := c.Request.Context()

	flushed, err := s.engagementSvc.Flush(ctx, 0)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	dispatched, err := s.moderationSvc.Dispatch(ctx, 0)
	if err != nil {
		s.log.Warn("moderation dispatch failed during manual flush", zap.Error(err))
	}

	c.JSON(http.StatusOK, gin.H{
		"flushed":    flushed,
		"dispatched": dispatched,
	})
}
