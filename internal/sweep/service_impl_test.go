package sweep

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/lgltools/platform/internal/config"
	profilerepo "github.com/lgltools/platform/internal/profile/repository"
	profileservice "github.com/lgltools/platform/internal/profile/service"
	"github.com/lgltools/platform/internal/settlement"
	"go.uber.org/zap"
	"gorm.io/gorm"

	chargedomain "github.com/lgltools/platform/internal/charge/domain"
	profiledomain "github.com/lgltools/platform/internal/profile/domain"
	workspacedomain "github.com/lgltools/platform/internal/workspace/domain"
)

type chargeStub struct {
	due []chargedomain.ScheduledCharge
}

func (s *chargeStub) Create(ctx context.Context, req chargedomain.CreateRequest) (*chargedomain.ScheduledCharge, error) {
	return nil, nil
}

func (s *chargeStub) List(ctx context.Context, req chargedomain.ListRequest) ([]chargedomain.ScheduledCharge, error) {
	return nil, nil
}

func (s *chargeStub) GetByID(ctx context.Context, id snowflake.ID) (*chargedomain.ScheduledCharge, error) {
	return nil, chargedomain.ErrNotFound
}

func (s *chargeStub) Begin(ctx context.Context, id snowflake.ID) (*chargedomain.ScheduledCharge, error) {
	return nil, chargedomain.ErrNotFound
}

func (s *chargeStub) Cancel(ctx context.Context, id snowflake.ID) (*chargedomain.ScheduledCharge, error) {
	return nil, chargedomain.ErrNotFound
}

func (s *chargeStub) MarkSucceeded(ctx context.Context, id snowflake.ID, result chargedomain.SucceededResult, at time.Time) error {
	return nil
}

func (s *chargeStub) MarkFailed(ctx context.Context, id snowflake.ID, reason string, at time.Time) error {
	return nil
}

func (s *chargeStub) ListDue(ctx context.Context, asOf time.Time, limit int) ([]chargedomain.ScheduledCharge, error) {
	return s.due, nil
}

type workspaceStub struct {
	clients map[snowflake.ID]*workspacedomain.BillingClient
}

func (s *workspaceStub) GetByID(ctx context.Context, id snowflake.ID) (*workspacedomain.Workspace, error) {
	return nil, workspacedomain.ErrNotFound
}

func (s *workspaceStub) GetBillingClient(ctx context.Context, id snowflake.ID) (*workspacedomain.BillingClient, error) {
	client, ok := s.clients[id]
	if !ok {
		return nil, workspacedomain.ErrClientNotFound
	}
	return client, nil
}

func (s *workspaceStub) Create(ctx context.Context, req workspacedomain.CreateWorkspaceRequest) (*workspacedomain.Workspace, error) {
	return nil, nil
}

func (s *workspaceStub) CreateBillingClient(ctx context.Context, req workspacedomain.CreateBillingClientRequest) (*workspacedomain.BillingClient, error) {
	return nil, nil
}

type dispatcherStub struct {
	calls   []settlement.Policy
	outcome settlement.Outcome
	reason  string
}

func (s *dispatcherStub) Dispatch(ctx context.Context, chargeID snowflake.ID, policy settlement.Policy) (settlement.Result, error) {
	s.calls = append(s.calls, policy)
	return settlement.Result{Outcome: s.outcome, FailureReason: s.reason}, nil
}

type emailRecorder struct {
	sent    []sentEmail
	failAll bool
}

type sentEmail struct {
	to       string
	template string
	data     map[string]interface{}
}

func (r *emailRecorder) Send(ctx context.Context, to []string, subject string, htmlBody string) error {
	if r.failAll {
		return errors.New("smtp down")
	}
	return nil
}

func (r *emailRecorder) SendTemplate(ctx context.Context, to []string, templateName string, data map[string]interface{}) error {
	if r.failAll {
		return errors.New("smtp down")
	}
	r.sent = append(r.sent, sentEmail{to: to[0], template: templateName, data: data})
	return nil
}

func setupProfiles(t *testing.T) (profiledomain.Service, *gorm.DB) {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared&_loc=auto", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("db handle: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetMaxIdleConns(1)

	if err := db.Exec(`CREATE TABLE profiles (
		id TEXT PRIMARY KEY,
		email TEXT NOT NULL,
		full_name TEXT,
		status TEXT NOT NULL DEFAULT 'trialing',
		trial_ends_at DATETIME,
		stripe_customer_id TEXT,
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL
	)`).Error; err != nil {
		t.Fatalf("create profiles: %v", err)
	}

	svc := profileservice.New(profileservice.Params{
		DB:   db,
		Log:  zap.NewNop(),
		Repo: profilerepo.Provide(),
	})
	return svc, db
}

func newSweeper(profiles profiledomain.Service, charges chargedomain.Service, workspaces workspacedomain.Service, dispatcher settlement.Service, mailer *emailRecorder) Service {
	return New(Params{
		Log:        zap.NewNop(),
		Settings:   config.NewStaticBillingSettings(config.DefaultBillingSettings()),
		Profiles:   profiles,
		Charges:    charges,
		Workspaces: workspaces,
		Dispatcher: dispatcher,
		Email:      mailer,
	})
}

func seedTrialProfile(t *testing.T, profiles profiledomain.Service, id, email string, endsAt time.Time) {
	t.Helper()
	_, err := profiles.Create(context.Background(), profiledomain.CreateRequest{
		ID:          id,
		Email:       email,
		FullName:    "User " + id,
		TrialEndsAt: &endsAt,
	})
	if err != nil {
		t.Fatalf("seed profile %s: %v", id, err)
	}
}

func TestSweepSendsTrialNoticeInsideWindow(t *testing.T) {
	profiles, _ := setupProfiles(t)
	now := time.Date(2025, time.June, 10, 8, 0, 0, 0, time.UTC)

	seedTrialProfile(t, profiles, "u-in", "in@example.com", now.Add(72*time.Hour))
	seedTrialProfile(t, profiles, "u-soon", "soon@example.com", now.Add(24*time.Hour))
	seedTrialProfile(t, profiles, "u-far", "far@example.com", now.Add(120*time.Hour))

	mailer := &emailRecorder{}
	sweeper := newSweeper(profiles, &chargeStub{}, &workspaceStub{}, &dispatcherStub{outcome: settlement.OutcomePaid}, mailer)

	result, err := sweeper.Run(context.Background(), now)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if result.TrialNoticesSent != 1 {
		t.Fatalf("expected 1 notice, got %d", result.TrialNoticesSent)
	}
	if len(mailer.sent) != 1 || mailer.sent[0].to != "in@example.com" || mailer.sent[0].template != "trial_ending" {
		t.Fatalf("wrong notice: %+v", mailer.sent)
	}
}

func TestSweepExpiresTrialsAndSurvivesEmailFailure(t *testing.T) {
	profiles, _ := setupProfiles(t)
	now := time.Date(2025, time.June, 10, 8, 0, 0, 0, time.UTC)

	seedTrialProfile(t, profiles, "u-over", "over@example.com", now.Add(-24*time.Hour))
	seedTrialProfile(t, profiles, "u-live", "live@example.com", now.Add(240*time.Hour))

	mailer := &emailRecorder{failAll: true}
	sweeper := newSweeper(profiles, &chargeStub{}, &workspaceStub{}, &dispatcherStub{outcome: settlement.OutcomePaid}, mailer)

	result, err := sweeper.Run(context.Background(), now)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if result.TrialsExpired != 1 {
		t.Fatalf("expected 1 expiry, got %d", result.TrialsExpired)
	}

	// Email failed but the state change must stick.
	expired, err := profiles.GetByID(context.Background(), "u-over")
	if err != nil {
		t.Fatalf("get expired: %v", err)
	}
	if expired.Status != profiledomain.StatusExpiredTrial {
		t.Fatalf("expected expired_trial, got %s", expired.Status)
	}
	live, _ := profiles.GetByID(context.Background(), "u-live")
	if live.Status != profiledomain.StatusTrialing {
		t.Fatalf("live trial must be untouched, got %s", live.Status)
	}

	// Second run finds nothing to expire.
	again, err := sweeper.Run(context.Background(), now)
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	if again.TrialsExpired != 0 {
		t.Fatalf("expiry must be one-shot, got %d", again.TrialsExpired)
	}
}

func dueCharge(id, clientID snowflake.ID) chargedomain.ScheduledCharge {
	return chargedomain.ScheduledCharge{
		ID:              id,
		BillingClientID: clientID,
		CreatedBy:       "admin-1",
		Description:     "setup",
		Amount:          5000,
		Currency:        "usd",
		Status:          chargedomain.StatusPending,
	}
}

func activeClient(id snowflake.ID, userID string, customer, paymentMethod string) *workspacedomain.BillingClient {
	client := &workspacedomain.BillingClient{
		ID:     id,
		Name:   "Client",
		Status: workspacedomain.BillingClientStatusActive,
	}
	if userID != "" {
		client.UserID = &userID
	}
	if customer != "" {
		client.StripeCustomerID = &customer
	}
	if paymentMethod != "" {
		client.StripePaymentMethodID = &paymentMethod
	}
	return client
}

func TestSweepDispatchesDueCharges(t *testing.T) {
	profiles, _ := setupProfiles(t)
	clientID := snowflake.ID(100)
	charges := &chargeStub{due: []chargedomain.ScheduledCharge{dueCharge(snowflake.ID(1), clientID)}}
	workspaces := &workspaceStub{clients: map[snowflake.ID]*workspacedomain.BillingClient{
		clientID: activeClient(clientID, "", "cus_1", "pm_1"),
	}}
	dispatcher := &dispatcherStub{outcome: settlement.OutcomePaid}
	sweeper := newSweeper(profiles, charges, workspaces, dispatcher, &emailRecorder{})

	result, err := sweeper.Run(context.Background(), time.Now())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if result.ChargesPaid != 1 {
		t.Fatalf("expected 1 paid, got %+v", result)
	}
	if len(dispatcher.calls) != 1 {
		t.Fatalf("expected 1 dispatch, got %d", len(dispatcher.calls))
	}
	if dispatcher.calls[0].CustomerID != "cus_1" || dispatcher.calls[0].PaymentMethodID != "pm_1" {
		t.Fatalf("policy not derived from client: %+v", dispatcher.calls[0])
	}
}

func TestSweepSkipsInactiveClient(t *testing.T) {
	profiles, _ := setupProfiles(t)
	clientID := snowflake.ID(100)
	charges := &chargeStub{due: []chargedomain.ScheduledCharge{dueCharge(snowflake.ID(1), clientID)}}
	paused := activeClient(clientID, "", "cus_1", "pm_1")
	paused.Status = workspacedomain.BillingClientStatusPaused
	workspaces := &workspaceStub{clients: map[snowflake.ID]*workspacedomain.BillingClient{clientID: paused}}
	dispatcher := &dispatcherStub{outcome: settlement.OutcomePaid}
	sweeper := newSweeper(profiles, charges, workspaces, dispatcher, &emailRecorder{})

	result, err := sweeper.Run(context.Background(), time.Now())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if result.ChargesSkipped != 1 || len(dispatcher.calls) != 0 {
		t.Fatalf("paused client must be skipped without dispatch: %+v", result)
	}
}

func TestSweepCountsDeferralAsSkip(t *testing.T) {
	profiles, _ := setupProfiles(t)
	clientID := snowflake.ID(100)
	charges := &chargeStub{due: []chargedomain.ScheduledCharge{dueCharge(snowflake.ID(1), clientID)}}
	workspaces := &workspaceStub{clients: map[snowflake.ID]*workspacedomain.BillingClient{
		clientID: activeClient(clientID, "", "cus_1", ""),
	}}
	dispatcher := &dispatcherStub{outcome: settlement.OutcomeDeferredNoPaymentMethod}
	sweeper := newSweeper(profiles, charges, workspaces, dispatcher, &emailRecorder{})

	result, err := sweeper.Run(context.Background(), time.Now())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if result.ChargesSkipped != 1 || result.ChargesPaid != 0 || result.ChargesFailed != 0 {
		t.Fatalf("deferral must count as skip: %+v", result)
	}
}

func TestSweepEmailsChargeFailure(t *testing.T) {
	profiles, _ := setupProfiles(t)
	endsAt := time.Now().Add(240 * time.Hour)
	seedTrialProfile(t, profiles, "payer-1", "payer@example.com", endsAt)

	clientID := snowflake.ID(100)
	charges := &chargeStub{due: []chargedomain.ScheduledCharge{dueCharge(snowflake.ID(1), clientID)}}
	workspaces := &workspaceStub{clients: map[snowflake.ID]*workspacedomain.BillingClient{
		clientID: activeClient(clientID, "payer-1", "cus_1", "pm_1"),
	}}
	dispatcher := &dispatcherStub{outcome: settlement.OutcomeFailed, reason: "card_declined"}
	mailer := &emailRecorder{}
	sweeper := newSweeper(profiles, charges, workspaces, dispatcher, mailer)

	result, err := sweeper.Run(context.Background(), time.Now())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if result.ChargesFailed != 1 {
		t.Fatalf("expected 1 failure, got %+v", result)
	}
	if len(mailer.sent) != 1 || mailer.sent[0].template != "charge_failed" || mailer.sent[0].to != "payer@example.com" {
		t.Fatalf("failure email wrong: %+v", mailer.sent)
	}
	if mailer.sent[0].data["failure_reason"] != "card_declined" {
		t.Fatalf("reason not passed: %+v", mailer.sent[0].data)
	}
}
