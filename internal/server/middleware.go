package server

import (
	"crypto/subtle"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
)

const accountIDKey = "business_account_id"

// requireAccount resolves the authenticated business account from the
// identity header set by the edge gateway.
func (s *Server) requireAccount() gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := strings.TrimSpace(c.GetHeader("X-Account-ID"))
		if raw == "" {
			AbortWithError(c, ErrUnauthorized)
			return
		}
		accountID, err := snowflake.ParseString(raw)
		if err != nil || accountID == 0 {
			AbortWithError(c, ErrUnauthorized)
			return
		}
		c.Set(accountIDKey, accountID)
		c.Next()
	}
}

func accountID(c *gin.Context) snowflake.ID {
	value, ok := c.Get(accountIDKey)
	if !ok {
		return 0
	}
	id, _ := value.(snowflake.ID)
	return id
}

// requireSchedulerSecret guards the internal trigger endpoints.
func (s *Server) requireSchedulerSecret() gin.HandlerFunc {
	return func(c *gin.Context) {
		secret := strings.TrimSpace(c.GetHeader("X-Scheduler-Secret"))
		if s.cfg.SchedulerSecret == "" || secret == "" {
			AbortWithError(c, ErrUnauthorized)
			return
		}
		if subtle.ConstantTimeCompare([]byte(secret), []byte(s.cfg.SchedulerSecret)) != 1 {
			AbortWithError(c, ErrUnauthorized)
			return
		}
		c.Next()
	}
}
