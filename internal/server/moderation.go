package server

import (
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"github.com/bwmarrin/snowflake"
	moderationdomain "github.com/edusocial/edusocial/internal/moderation/domain"
	"github.com/gin-gonic/gin"
)

type enqueueModerationRequest struct {
	PostID   string `json:"post_id"`
	MediaURL string `json:"media_url"`
}

func (s *Server) enqueueModeration(c *gin.Context) {
	var req enqueueModerationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, newValidationError("request", "invalid_request", "invalid request"))
		return
	}

	postID, err := snowflake.ParseString(strings.TrimSpace(req.PostID))
	if err != nil {
		AbortWithError(c, moderationdomain.ErrInvalidPost)
		return
	}

	job, err := s.moderationSvc.Enqueue(c.Request.Context(), postID, req.MediaURL, accountID(c))
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, gin.H{
		"job_id": job.ID.String(),
		"status": job.Status,
	})
}

type moderationCallbackRequest struct {
	JobID   string          `json:"job_id"`
	Verdict string          `json:"verdict"`
	Details json.RawMessage `json:"details"`
}

func (s *Server) handleModerationCallback(c *gin.Context) {
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBodyBytes))
	if err != nil {
		AbortWithError(c, moderationdomain.ErrInvalidSignature)
		return
	}

	// Signature check before any parsing or state change.
	signature := c.GetHeader("X-Moderation-Signature")
	if err := s.moderationSvc.VerifyCallback(body, signature); err != nil {
		AbortWithError(c, err)
		return
	}

	var req moderationCallbackRequest
	if err := json.Unmarshal(body, &req); err != nil {
		AbortWithError(c, newValidationError("request", "invalid_request", "invalid request"))
		return
	}
	jobID, err := snowflake.ParseString(strings.TrimSpace(req.JobID))
	if err != nil {
		AbortWithError(c, moderationdomain.ErrNotFound)
		return
	}

	job, err := s.moderationSvc.Resolve(c.Request.Context(), jobID, moderationdomain.Verdict(req.Verdict), req.Details)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"job_id": job.ID.String(),
		"status": job.Status,
	})
}
