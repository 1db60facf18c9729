package server

import (
	"net/http"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/lgltools/platform/internal/period"
	"github.com/shopspring/decimal"

	usagedomain "github.com/lgltools/platform/internal/usage/domain"
)

type recordUsageRequest struct {
	WorkspaceID string                 `json:"workspace_id" binding:"required"`
	UserID      string                 `json:"user_id"`
	ToolSlug    string                 `json:"tool_slug" binding:"required"`
	EventType   string                 `json:"event_type"`
	Quantity    decimal.Decimal        `json:"quantity"`
	Metadata    map[string]interface{} `json:"metadata"`
}

func (s *Server) RecordUsage(c *gin.Context) {
	var req recordUsageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}
	workspaceID, err := snowflake.ParseString(req.WorkspaceID)
	if err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	event, err := s.usageSvc.Record(c.Request.Context(), usagedomain.RecordRequest{
		WorkspaceID: workspaceID,
		UserID:      req.UserID,
		ToolSlug:    req.ToolSlug,
		EventType:   req.EventType,
		Quantity:    req.Quantity,
		Metadata:    req.Metadata,
	})
	if err != nil {
		s.metrics.UsageRejected(err.Error())
		AbortWithError(c, err)
		return
	}

	s.metrics.UsageRecorded()
	c.JSON(http.StatusCreated, event)
}

type usageAggregatesResponse struct {
	BillingPeriod string                       `json:"billing_period"`
	Aggregates    []usagedomain.UsageAggregate `json:"aggregates"`
	TotalCost     decimal.Decimal              `json:"total_cost"`
}

func (s *Server) ListUsageAggregates(c *gin.Context) {
	ym := period.Previous(s.clock.Now())
	if raw := c.Query("period"); raw != "" {
		parsed, err := period.Parse(raw)
		if err != nil {
			AbortWithError(c, err)
			return
		}
		ym = parsed
	}

	var workspaceID snowflake.ID
	if raw := c.Query("workspace_id"); raw != "" {
		parsed, err := snowflake.ParseString(raw)
		if err != nil {
			AbortWithError(c, ErrInvalidRequest)
			return
		}
		workspaceID = parsed
	}

	aggregates, err := s.usageSvc.Aggregate(c.Request.Context(), ym, workspaceID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	total := decimal.Zero
	for _, agg := range aggregates {
		total = total.Add(agg.TotalCost)
	}
	c.JSON(http.StatusOK, usageAggregatesResponse{
		BillingPeriod: ym.String(),
		Aggregates:    aggregates,
		TotalCost:     total,
	})
}
