package service

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	chargedomain "github.com/lgltools/platform/internal/charge/domain"
	"github.com/lgltools/platform/internal/clock"
	workspacedomain "github.com/lgltools/platform/internal/workspace/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB         *gorm.DB
	Log        *zap.Logger
	GenID      *snowflake.Node
	Clock      clock.Clock
	Repo       chargedomain.Repository
	Workspaces workspacedomain.Service
}

type Service struct {
	db         *gorm.DB
	log        *zap.Logger
	genID      *snowflake.Node
	clock      clock.Clock
	repo       chargedomain.Repository
	workspaces workspacedomain.Service
}

func New(p Params) chargedomain.Service {
	return &Service{
		db:         p.DB,
		log:        p.Log.Named("charge.service"),
		genID:      p.GenID,
		clock:      p.Clock,
		repo:       p.Repo,
		workspaces: p.Workspaces,
	}
}

func (s *Service) Create(ctx context.Context, req chargedomain.CreateRequest) (*chargedomain.ScheduledCharge, error) {
	if req.Amount <= 0 {
		return nil, chargedomain.ErrInvalidAmount
	}
	description := strings.TrimSpace(req.Description)
	if description == "" {
		return nil, chargedomain.ErrInvalidDescription
	}
	if _, err := s.workspaces.GetBillingClient(ctx, req.BillingClientID); err != nil {
		return nil, err
	}

	currency := strings.ToLower(strings.TrimSpace(req.Currency))
	if currency == "" {
		currency = "usd"
	}

	now := s.clock.Now()
	scheduledFor := req.ScheduledFor
	if scheduledFor.IsZero() {
		scheduledFor = now
	}

	charge := &chargedomain.ScheduledCharge{
		ID:              s.genID.Generate(),
		BillingClientID: req.BillingClientID,
		CreatedBy:       strings.TrimSpace(req.CreatedBy),
		Description:     description,
		Amount:          req.Amount,
		Currency:        currency,
		Status:          chargedomain.StatusPending,
		ScheduledFor:    scheduledFor.UTC(),
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if err := s.repo.Insert(ctx, s.db, charge); err != nil {
		return nil, err
	}

	s.log.Info("scheduled charge created",
		zap.Int64("charge_id", int64(charge.ID)),
		zap.Int64("billing_client_id", int64(charge.BillingClientID)),
		zap.Int64("amount", charge.Amount),
		zap.String("currency", charge.Currency),
	)
	return charge, nil
}

func (s *Service) List(ctx context.Context, req chargedomain.ListRequest) ([]chargedomain.ScheduledCharge, error) {
	return s.repo.List(ctx, s.db, req)
}

func (s *Service) GetByID(ctx context.Context, id snowflake.ID) (*chargedomain.ScheduledCharge, error) {
	charge, err := s.repo.FindByID(ctx, s.db, id)
	if err != nil {
		return nil, err
	}
	if charge == nil {
		return nil, chargedomain.ErrNotFound
	}
	return charge, nil
}

// Begin claims the charge with a pending->processing conditional update. The
// zero-rows path is the whole concurrency story: a second trigger on the
// same charge loses the update race and gets ErrNotPending.
func (s *Service) Begin(ctx context.Context, id snowflake.ID) (*chargedomain.ScheduledCharge, error) {
	affected, err := s.repo.TransitionStatus(ctx, s.db, id, chargedomain.StatusPending, chargedomain.StatusProcessing, s.clock.Now())
	if err != nil {
		return nil, err
	}
	if affected == 0 {
		charge, err := s.repo.FindByID(ctx, s.db, id)
		if err != nil {
			return nil, err
		}
		if charge == nil {
			return nil, chargedomain.ErrNotFound
		}
		return nil, chargedomain.ErrNotPending
	}
	return s.GetByID(ctx, id)
}

func (s *Service) Cancel(ctx context.Context, id snowflake.ID) (*chargedomain.ScheduledCharge, error) {
	affected, err := s.repo.TransitionStatus(ctx, s.db, id, chargedomain.StatusPending, chargedomain.StatusCanceled, s.clock.Now())
	if err != nil {
		return nil, err
	}
	if affected == 0 {
		charge, err := s.repo.FindByID(ctx, s.db, id)
		if err != nil {
			return nil, err
		}
		if charge == nil {
			return nil, chargedomain.ErrNotFound
		}
		return nil, chargedomain.ErrNotPending
	}
	s.log.Info("scheduled charge canceled", zap.Int64("charge_id", int64(id)))
	return s.GetByID(ctx, id)
}

func (s *Service) MarkSucceeded(ctx context.Context, id snowflake.ID, result chargedomain.SucceededResult, at time.Time) error {
	affected, err := s.repo.FinalizeSucceeded(ctx, s.db, id, result, at)
	if err != nil {
		return err
	}
	if affected == 0 {
		return chargedomain.ErrNotProcessing
	}
	s.log.Info("scheduled charge succeeded",
		zap.Int64("charge_id", int64(id)),
		zap.String("stripe_invoice_id", result.InvoiceID),
	)
	return nil
}

func (s *Service) MarkFailed(ctx context.Context, id snowflake.ID, reason string, at time.Time) error {
	affected, err := s.repo.FinalizeFailed(ctx, s.db, id, reason, at)
	if err != nil {
		return err
	}
	if affected == 0 {
		return chargedomain.ErrNotProcessing
	}
	s.log.Warn("scheduled charge failed",
		zap.Int64("charge_id", int64(id)),
		zap.String("reason", reason),
	)
	return nil
}

func (s *Service) ListDue(ctx context.Context, asOf time.Time, limit int) ([]chargedomain.ScheduledCharge, error) {
	if limit <= 0 {
		limit = 100
	}
	return s.repo.FindDue(ctx, s.db, asOf, limit)
}
