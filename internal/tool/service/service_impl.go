package service

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gosimple/slug"
	"github.com/lgltools/platform/pkg/db"

	tooldomain "github.com/lgltools/platform/internal/tool/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	GenID *snowflake.Node
	Repo  tooldomain.Repository
}

type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	repo  tooldomain.Repository
	genID *snowflake.Node
}

func New(p Params) tooldomain.Service {
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("tool.service"),
		repo:  p.Repo,
		genID: p.GenID,
	}
}

func (s *Service) Create(ctx context.Context, req tooldomain.CreateRequest) (*tooldomain.Tool, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, tooldomain.ErrInvalidName
	}

	toolSlug := strings.TrimSpace(req.Slug)
	if toolSlug == "" {
		toolSlug = name
	}
	toolSlug = slug.Make(toolSlug)
	if toolSlug == "" {
		return nil, tooldomain.ErrInvalidSlug
	}

	enabled := true
	if req.Enabled != nil {
		enabled = *req.Enabled
	}

	now := time.Now().UTC()
	tool := &tooldomain.Tool{
		ID:        s.genID.Generate(),
		Slug:      toolSlug,
		Name:      name,
		ToolType:  strings.TrimSpace(req.ToolType),
		IsEnabled: enabled,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if len(req.BillingConfig) > 0 {
		tool.BillingConfig = datatypes.JSON(req.BillingConfig)
	}

	if err := s.repo.Insert(ctx, s.db, tool); err != nil {
		if db.IsDuplicateKeyErr(err) {
			return nil, tooldomain.ErrDuplicate
		}
		return nil, err
	}

	return tool, nil
}

func (s *Service) List(ctx context.Context) ([]tooldomain.Tool, error) {
	return s.repo.List(ctx, s.db)
}

func (s *Service) GetBySlug(ctx context.Context, toolSlug string) (*tooldomain.Tool, error) {
	toolSlug = strings.TrimSpace(toolSlug)
	if toolSlug == "" {
		return nil, tooldomain.ErrInvalidSlug
	}
	tool, err := s.repo.FindBySlug(ctx, s.db, toolSlug)
	if err != nil {
		return nil, err
	}
	if tool == nil {
		return nil, tooldomain.ErrNotFound
	}
	return tool, nil
}

func (s *Service) GetByID(ctx context.Context, id snowflake.ID) (*tooldomain.Tool, error) {
	tool, err := s.repo.FindByID(ctx, s.db, id)
	if err != nil {
		return nil, err
	}
	if tool == nil {
		return nil, tooldomain.ErrNotFound
	}
	return tool, nil
}

func (s *Service) GetWorkspaceLink(ctx context.Context, workspaceID, toolID snowflake.ID) (*tooldomain.WorkspaceTool, error) {
	return s.repo.FindLink(ctx, s.db, workspaceID, toolID)
}

func (s *Service) Assign(ctx context.Context, req tooldomain.AssignRequest) (*tooldomain.WorkspaceTool, error) {
	enabled := true
	if req.Enabled != nil {
		enabled = *req.Enabled
	}

	link := &tooldomain.WorkspaceTool{
		ID:          s.genID.Generate(),
		WorkspaceID: req.WorkspaceID,
		ToolID:      req.ToolID,
		IsEnabled:   enabled,
		CreatedAt:   time.Now().UTC(),
	}
	if len(req.PricingOverride) > 0 {
		link.PricingOverride = datatypes.JSON(req.PricingOverride)
	}

	if err := s.repo.InsertLink(ctx, s.db, link); err != nil {
		return nil, err
	}
	return link, nil
}
