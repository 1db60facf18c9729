package service

import (
	"context"
	"strings"
	"time"

	profiledomain "github.com/lgltools/platform/internal/profile/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB   *gorm.DB
	Log  *zap.Logger
	Repo profiledomain.Repository
}

type Service struct {
	db   *gorm.DB
	log  *zap.Logger
	repo profiledomain.Repository
}

func New(p Params) profiledomain.Service {
	return &Service{
		db:   p.DB,
		log:  p.Log.Named("profile.service"),
		repo: p.Repo,
	}
}

func (s *Service) Create(ctx context.Context, req profiledomain.CreateRequest) (*profiledomain.Profile, error) {
	email := strings.TrimSpace(req.Email)
	if email == "" || !strings.Contains(email, "@") {
		return nil, profiledomain.ErrInvalidEmail
	}

	now := time.Now().UTC()
	profile := &profiledomain.Profile{
		ID:          strings.TrimSpace(req.ID),
		Email:       email,
		FullName:    strings.TrimSpace(req.FullName),
		Status:      profiledomain.StatusTrialing,
		TrialEndsAt: req.TrialEndsAt,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.repo.Insert(ctx, s.db, profile); err != nil {
		return nil, err
	}
	return profile, nil
}

func (s *Service) GetByID(ctx context.Context, id string) (*profiledomain.Profile, error) {
	profile, err := s.repo.FindByID(ctx, s.db, id)
	if err != nil {
		return nil, err
	}
	if profile == nil {
		return nil, profiledomain.ErrNotFound
	}
	return profile, nil
}

func (s *Service) ListTrialEndingBetween(ctx context.Context, from, to time.Time) ([]profiledomain.Profile, error) {
	return s.repo.FindTrialEndingBetween(ctx, s.db, from, to)
}

func (s *Service) ListTrialExpired(ctx context.Context, asOf time.Time) ([]profiledomain.Profile, error) {
	return s.repo.FindTrialExpired(ctx, s.db, asOf)
}

func (s *Service) ExpireTrial(ctx context.Context, id string, at time.Time) (bool, error) {
	affected, err := s.repo.UpdateStatusIfTrialing(ctx, s.db, id, profiledomain.StatusExpiredTrial, at)
	if err != nil {
		return false, err
	}
	if affected == 0 {
		return false, nil
	}
	s.log.Info("trial expired", zap.String("profile_id", id))
	return true, nil
}
