package server

import (
	"crypto/subtle"
	"strings"

	"github.com/gin-gonic/gin"
)

// CronAuthRequired gates the scheduled-job endpoints with the shared cron
// secret. A missing or wrong token is rejected before any driver runs.
func (s *Server) CronAuthRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		secret := s.cfg.CronSecret
		if secret == "" {
			AbortWithError(c, ErrUnauthorized)
			return
		}

		header := c.GetHeader("Authorization")
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok {
			AbortWithError(c, ErrUnauthorized)
			return
		}
		if subtle.ConstantTimeCompare([]byte(token), []byte(secret)) != 1 {
			AbortWithError(c, ErrUnauthorized)
			return
		}
		c.Next()
	}
}
