package server

import (
	"net/http"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/lgltools/platform/internal/settlement"

	chargedomain "github.com/lgltools/platform/internal/charge/domain"
	workspacedomain "github.com/lgltools/platform/internal/workspace/domain"
)

func (s *Server) ListCharges(c *gin.Context) {
	var req chargedomain.ListRequest
	if raw := c.Query("billing_client_id"); raw != "" {
		parsed, err := snowflake.ParseString(raw)
		if err != nil {
			AbortWithError(c, ErrInvalidRequest)
			return
		}
		req.BillingClientID = parsed
	}
	if raw := c.Query("status"); raw != "" {
		req.Status = chargedomain.ChargeStatus(raw)
	}

	charges, err := s.chargeSvc.List(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"charges": charges})
}

type createChargeRequest struct {
	BillingClientID string `json:"billing_client_id" binding:"required"`
	CreatedBy       string `json:"created_by"`
	Description     string `json:"description"`
	Amount          int64  `json:"amount"`
	Currency        string `json:"currency"`
	ScheduledFor    string `json:"scheduled_for"`
}

func (s *Server) CreateCharge(c *gin.Context) {
	var req createChargeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}
	clientID, err := snowflake.ParseString(req.BillingClientID)
	if err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	var scheduledFor time.Time
	if req.ScheduledFor != "" {
		scheduledFor, err = time.Parse(time.RFC3339, req.ScheduledFor)
		if err != nil {
			AbortWithError(c, ErrInvalidRequest)
			return
		}
	}

	charge, err := s.chargeSvc.Create(c.Request.Context(), chargedomain.CreateRequest{
		BillingClientID: clientID,
		CreatedBy:       req.CreatedBy,
		Description:     req.Description,
		Amount:          req.Amount,
		Currency:        req.Currency,
		ScheduledFor:    scheduledFor,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, charge)
}

type triggerChargeRequest struct {
	CollectionMethod string `json:"collection_method"`
	DaysUntilDue     int    `json:"days_until_due"`
}

// TriggerCharge dispatches one charge immediately. The optional body lets an
// operator pick the send-invoice path instead of the client's default
// auto-charge policy.
func (s *Server) TriggerCharge(c *gin.Context) {
	chargeID, err := snowflake.ParseString(c.Param("chargeId"))
	if err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	var req triggerChargeRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			AbortWithError(c, ErrInvalidRequest)
			return
		}
	}

	charge, err := s.chargeSvc.GetByID(c.Request.Context(), chargeID)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	client, err := s.workspaceSvc.GetBillingClient(c.Request.Context(), charge.BillingClientID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	policy := settlement.PolicyForClient(client)
	if req.CollectionMethod == string(workspacedomain.CollectionSendInvoice) {
		policy.CollectionMethod = workspacedomain.CollectionSendInvoice
		if req.DaysUntilDue > 0 {
			policy.DaysUntilDue = req.DaysUntilDue
		}
	}

	result, err := s.dispatcher.Dispatch(c.Request.Context(), chargeID, policy)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	s.metrics.SettlementOutcome(string(result.Outcome))

	updated, err := s.chargeSvc.GetByID(c.Request.Context(), chargeID)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"outcome":        result.Outcome,
		"charge":         updated,
		"failure_reason": result.FailureReason,
	})
}

func (s *Server) CancelCharge(c *gin.Context) {
	chargeID, err := snowflake.ParseString(c.Param("chargeId"))
	if err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	charge, err := s.chargeSvc.Cancel(c.Request.Context(), chargeID)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, charge)
}
