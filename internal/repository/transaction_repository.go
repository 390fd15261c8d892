package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/densematrix-labs/ai-voiceover-saas/internal/models"
)

type TransactionRepository struct {
	db *sql.DB
}

func NewTransactionRepository(db *sql.DB) *TransactionRepository {
	return &TransactionRepository{db: db}
}

func (r *TransactionRepository) Create(ctx context.Context, tx *models.PaymentTransaction) error {
	const query = `
INSERT INTO payment_transactions (checkout_id, device_id, product_sku, amount_cents, currency, status, credits_granted)
VALUES (?, ?, ?, ?, ?, ?, ?)`
	res, err := r.db.ExecContext(ctx, query, tx.CheckoutID, tx.DeviceID, tx.ProductSKU, tx.AmountCents, tx.Currency, tx.Status, tx.CreditsGranted)
	if err != nil {
		return fmt.Errorf("insert transaction: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("last insert id: %w", err)
	}
	tx.ID = id
	return nil
}

func (r *TransactionRepository) FindByCheckoutID(ctx context.Context, checkoutID string) (*models.PaymentTransaction, error) {
	const query = `
SELECT id, checkout_id, device_id, product_sku, amount_cents, currency, status, credits_granted, created_at, completed_at
FROM payment_transactions WHERE checkout_id = ? LIMIT 1`
	row := r.db.QueryRowContext(ctx, query, checkoutID)
	var t models.PaymentTransaction
	var completedAt sql.NullTime
	if err := row.Scan(&t.ID, &t.CheckoutID, &t.DeviceID, &t.ProductSKU, &t.AmountCents, &t.Currency, &t.Status, &t.CreditsGranted, &t.CreatedAt, &completedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("scan transaction: %w", err)
	}
	if completedAt.Valid {
		t.CompletedAt = &completedAt.Time
	}
	return &t, nil
}

// Complete transitions the transaction pending -> completed and reports whether
// this call performed the transition. Redelivered webhooks lose the conditional
// update and see false.
func (r *TransactionRepository) Complete(ctx context.Context, checkoutID string) (bool, error) {
	const query = `
UPDATE payment_transactions SET status = ?, completed_at = NOW()
WHERE checkout_id = ? AND status = ?`
	res, err := r.db.ExecContext(ctx, query, models.StatusCompleted, checkoutID, models.StatusPending)
	if err != nil {
		return false, fmt.Errorf("complete transaction: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("transaction rows affected: %w", err)
	}
	return affected > 0, nil
}
