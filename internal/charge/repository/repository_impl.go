package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	chargedomain "github.com/lgltools/platform/internal/charge/domain"
	"gorm.io/gorm"
)

const chargeColumns = `id, billing_client_id, created_by, description, amount, currency, status,
	scheduled_for, stripe_invoice_id, stripe_payment_intent_id, invoice_url, invoice_pdf,
	failure_reason, processed_at, created_at, updated_at`

type repo struct{}

func Provide() chargedomain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, charge *chargedomain.ScheduledCharge) error {
	return db.WithContext(ctx).Create(charge).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*chargedomain.ScheduledCharge, error) {
	var charge chargedomain.ScheduledCharge
	err := db.WithContext(ctx).Raw(
		`SELECT `+chargeColumns+` FROM scheduled_charges WHERE id = ?`,
		id,
	).Scan(&charge).Error
	if err != nil {
		return nil, err
	}
	if charge.ID == 0 {
		return nil, nil
	}
	return &charge, nil
}

func (r *repo) List(ctx context.Context, db *gorm.DB, req chargedomain.ListRequest) ([]chargedomain.ScheduledCharge, error) {
	query := `SELECT ` + chargeColumns + ` FROM scheduled_charges WHERE 1=1`
	var args []interface{}
	if req.BillingClientID != 0 {
		query += ` AND billing_client_id = ?`
		args = append(args, req.BillingClientID)
	}
	if req.Status != "" {
		query += ` AND status = ?`
		args = append(args, req.Status)
	}
	query += ` ORDER BY created_at DESC`

	var charges []chargedomain.ScheduledCharge
	err := db.WithContext(ctx).Raw(query, args...).Scan(&charges).Error
	if err != nil {
		return nil, err
	}
	return charges, nil
}

func (r *repo) FindDue(ctx context.Context, db *gorm.DB, asOf time.Time, limit int) ([]chargedomain.ScheduledCharge, error) {
	var charges []chargedomain.ScheduledCharge
	err := db.WithContext(ctx).Raw(
		`SELECT `+chargeColumns+` FROM scheduled_charges
		 WHERE status = ? AND scheduled_for <= ?
		 ORDER BY scheduled_for ASC
		 LIMIT ?`,
		chargedomain.StatusPending,
		asOf,
		limit,
	).Scan(&charges).Error
	if err != nil {
		return nil, err
	}
	return charges, nil
}

func (r *repo) TransitionStatus(ctx context.Context, db *gorm.DB, id snowflake.ID, from, to chargedomain.ChargeStatus, at time.Time) (int64, error) {
	res := db.WithContext(ctx).Exec(
		`UPDATE scheduled_charges SET status = ?, updated_at = ?
		 WHERE id = ? AND status = ?`,
		to,
		at,
		id,
		from,
	)
	if res.Error != nil {
		return 0, res.Error
	}
	return res.RowsAffected, nil
}

func (r *repo) FinalizeSucceeded(ctx context.Context, db *gorm.DB, id snowflake.ID, result chargedomain.SucceededResult, at time.Time) (int64, error) {
	res := db.WithContext(ctx).Exec(
		`UPDATE scheduled_charges
		 SET status = ?, stripe_invoice_id = ?, stripe_payment_intent_id = NULLIF(?, ''),
		     invoice_url = ?, invoice_pdf = ?, processed_at = ?, updated_at = ?
		 WHERE id = ? AND status = ?`,
		chargedomain.StatusSucceeded,
		result.InvoiceID,
		result.PaymentIntentID,
		result.InvoiceURL,
		result.InvoicePDF,
		at,
		at,
		id,
		chargedomain.StatusProcessing,
	)
	if res.Error != nil {
		return 0, res.Error
	}
	return res.RowsAffected, nil
}

func (r *repo) FinalizeFailed(ctx context.Context, db *gorm.DB, id snowflake.ID, reason string, at time.Time) (int64, error) {
	res := db.WithContext(ctx).Exec(
		`UPDATE scheduled_charges
		 SET status = ?, failure_reason = ?, processed_at = ?, updated_at = ?
		 WHERE id = ? AND status = ?`,
		chargedomain.StatusFailed,
		reason,
		at,
		at,
		id,
		chargedomain.StatusProcessing,
	)
	if res.Error != nil {
		return 0, res.Error
	}
	return res.RowsAffected, nil
}
