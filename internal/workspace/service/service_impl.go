package service

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	workspacedomain "github.com/lgltools/platform/internal/workspace/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	GenID *snowflake.Node
	Repo  workspacedomain.Repository
}

type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	repo  workspacedomain.Repository
	genID *snowflake.Node
}

func New(p Params) workspacedomain.Service {
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("workspace.service"),
		repo:  p.Repo,
		genID: p.GenID,
	}
}

func (s *Service) GetByID(ctx context.Context, id snowflake.ID) (*workspacedomain.Workspace, error) {
	workspace, err := s.repo.FindByID(ctx, s.db, id)
	if err != nil {
		return nil, err
	}
	if workspace == nil {
		return nil, workspacedomain.ErrNotFound
	}
	return workspace, nil
}

func (s *Service) GetBillingClient(ctx context.Context, id snowflake.ID) (*workspacedomain.BillingClient, error) {
	client, err := s.repo.FindClientByID(ctx, s.db, id)
	if err != nil {
		return nil, err
	}
	if client == nil {
		return nil, workspacedomain.ErrClientNotFound
	}
	return client, nil
}

func (s *Service) Create(ctx context.Context, req workspacedomain.CreateWorkspaceRequest) (*workspacedomain.Workspace, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, workspacedomain.ErrInvalidName
	}

	workspaceType := req.Type
	switch workspaceType {
	case "":
		workspaceType = workspacedomain.WorkspaceTypeSelfServe
	case workspacedomain.WorkspaceTypeSelfServe, workspacedomain.WorkspaceTypeManaged:
	default:
		return nil, workspacedomain.ErrInvalidType
	}

	collection := req.CollectionMethod
	if collection == "" {
		collection = workspacedomain.CollectionChargeAutomatically
	}

	daysUntilDue := req.DaysUntilDue
	if daysUntilDue <= 0 {
		daysUntilDue = 30
	}

	now := time.Now().UTC()
	workspace := &workspacedomain.Workspace{
		ID:               s.genID.Generate(),
		Name:             name,
		Type:             workspaceType,
		BillingClientID:  req.BillingClientID,
		Status:           workspacedomain.WorkspaceStatusActive,
		CollectionMethod: collection,
		DaysUntilDue:     daysUntilDue,
		ContactEmail:     req.ContactEmail,
		CreatedAt:        now,
		UpdatedAt:        now,
	}

	if err := s.repo.Insert(ctx, s.db, workspace); err != nil {
		return nil, err
	}
	return workspace, nil
}

func (s *Service) CreateBillingClient(ctx context.Context, req workspacedomain.CreateBillingClientRequest) (*workspacedomain.BillingClient, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, workspacedomain.ErrInvalidName
	}

	now := time.Now().UTC()
	client := &workspacedomain.BillingClient{
		ID:        s.genID.Generate(),
		UserID:    req.UserID,
		Name:      name,
		Notes:     req.Notes,
		Status:    workspacedomain.BillingClientStatusPendingSetup,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := s.repo.InsertClient(ctx, s.db, client); err != nil {
		return nil, err
	}
	return client, nil
}
