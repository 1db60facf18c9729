package server

import (
	"encoding/json"
	"net/http"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"

	tooldomain "github.com/lgltools/platform/internal/tool/domain"
	workspacedomain "github.com/lgltools/platform/internal/workspace/domain"
)

func (s *Server) ListTools(c *gin.Context) {
	tools, err := s.toolSvc.List(c.Request.Context())
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"tools": tools})
}

type createToolRequest struct {
	Slug          string          `json:"slug"`
	Name          string          `json:"name" binding:"required"`
	ToolType      string          `json:"tool_type"`
	BillingConfig json.RawMessage `json:"billing_config"`
	Enabled       *bool           `json:"enabled"`
}

func (s *Server) CreateTool(c *gin.Context) {
	var req createToolRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	tool, err := s.toolSvc.Create(c.Request.Context(), tooldomain.CreateRequest{
		Slug:          req.Slug,
		Name:          req.Name,
		ToolType:      req.ToolType,
		BillingConfig: req.BillingConfig,
		Enabled:       req.Enabled,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, tool)
}

type createWorkspaceRequest struct {
	Name             string  `json:"name" binding:"required"`
	Type             string  `json:"type"`
	CollectionMethod string  `json:"collection_method"`
	DaysUntilDue     int     `json:"days_until_due"`
	BillingClientID  *string `json:"billing_client_id"`
	ContactEmail     *string `json:"contact_email"`
}

func (s *Server) CreateWorkspace(c *gin.Context) {
	var req createWorkspaceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	domainReq := workspacedomain.CreateWorkspaceRequest{
		Name:             req.Name,
		Type:             workspacedomain.WorkspaceType(req.Type),
		CollectionMethod: workspacedomain.CollectionMethod(req.CollectionMethod),
		DaysUntilDue:     req.DaysUntilDue,
		ContactEmail:     req.ContactEmail,
	}
	if req.BillingClientID != nil {
		clientID, err := snowflake.ParseString(*req.BillingClientID)
		if err != nil {
			AbortWithError(c, ErrInvalidRequest)
			return
		}
		domainReq.BillingClientID = &clientID
	}

	workspace, err := s.workspaceSvc.Create(c.Request.Context(), domainReq)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, workspace)
}

type assignToolRequest struct {
	ToolSlug        string          `json:"tool_slug" binding:"required"`
	PricingOverride json.RawMessage `json:"pricing_override"`
	Enabled         *bool           `json:"enabled"`
}

func (s *Server) AssignTool(c *gin.Context) {
	workspaceID, err := snowflake.ParseString(c.Param("workspaceId"))
	if err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}
	var req assignToolRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	if _, err := s.workspaceSvc.GetByID(c.Request.Context(), workspaceID); err != nil {
		AbortWithError(c, err)
		return
	}
	tool, err := s.toolSvc.GetBySlug(c.Request.Context(), req.ToolSlug)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	link, err := s.toolSvc.Assign(c.Request.Context(), tooldomain.AssignRequest{
		WorkspaceID:     workspaceID,
		ToolID:          tool.ID,
		PricingOverride: req.PricingOverride,
		Enabled:         req.Enabled,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, link)
}

type createBillingClientRequest struct {
	Name   string  `json:"name" binding:"required"`
	UserID *string `json:"user_id"`
	Notes  *string `json:"notes"`
}

func (s *Server) CreateBillingClient(c *gin.Context) {
	var req createBillingClientRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	client, err := s.workspaceSvc.CreateBillingClient(c.Request.Context(), workspacedomain.CreateBillingClientRequest{
		Name:   req.Name,
		UserID: req.UserID,
		Notes:  req.Notes,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, client)
}
