package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/lgltools/platform/internal/period"
	"go.uber.org/zap"
)

// RunUsageBilling settles the previous completed month by default. An
// explicit ?period=YYYY-MM reruns an older period, which is safe because
// billed events never aggregate again.
func (s *Server) RunUsageBilling(c *gin.Context) {
	ym := period.Previous(s.clock.Now())
	if raw := c.Query("period"); raw != "" {
		parsed, err := period.Parse(raw)
		if err != nil {
			AbortWithError(c, err)
			return
		}
		ym = parsed
	}

	result, err := s.billingRunner.Run(c.Request.Context(), ym)
	s.metrics.CronRun("usage-billing", err)
	if err != nil {
		s.log.Error("usage billing run failed", zap.Error(err))
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

func (s *Server) RunTrialCheck(c *gin.Context) {
	result, err := s.sweeper.Run(c.Request.Context(), s.clock.Now())
	s.metrics.CronRun("trial-check", err)
	if err != nil {
		s.log.Error("trial check run failed", zap.Error(err))
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}
