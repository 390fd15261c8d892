package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/densematrix-labs/ai-voiceover-saas/internal/models"
)

type CreditRepository struct {
	db *sql.DB
}

func NewCreditRepository(db *sql.DB) *CreditRepository {
	return &CreditRepository{db: db}
}

func (r *CreditRepository) FindAccount(ctx context.Context, deviceID string) (*models.CreditAccount, error) {
	const query = `
SELECT id, device_id, total_granted, total_used, created_at, updated_at
FROM credit_accounts WHERE device_id = ?`
	row := r.db.QueryRowContext(ctx, query, deviceID)
	var a models.CreditAccount
	if err := row.Scan(&a.ID, &a.DeviceID, &a.TotalGranted, &a.TotalUsed, &a.CreatedAt, &a.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("scan credit account: %w", err)
	}
	return &a, nil
}

// Grant adds credits to the device account, creating the row on first grant.
// The single-statement upsert keeps concurrent grants for the same device
// from losing updates.
func (r *CreditRepository) Grant(ctx context.Context, deviceID string, credits int) error {
	const query = `
INSERT INTO credit_accounts (device_id, total_granted, total_used)
VALUES (?, ?, 0)
ON DUPLICATE KEY UPDATE total_granted = total_granted + VALUES(total_granted)`
	if _, err := r.db.ExecContext(ctx, query, deviceID, credits); err != nil {
		return fmt.Errorf("grant credits: %w", err)
	}
	return nil
}

// Debit consumes one credit and reports whether the balance covered it. The
// guard on total_used keeps concurrent debits from driving the account past
// total_granted; a request that loses the race gets applied=false.
func (r *CreditRepository) Debit(ctx context.Context, deviceID string) (bool, error) {
	const query = `
UPDATE credit_accounts SET total_used = total_used + 1
WHERE device_id = ? AND total_used < total_granted`
	res, err := r.db.ExecContext(ctx, query, deviceID)
	if err != nil {
		return false, fmt.Errorf("debit credit: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("debit rows affected: %w", err)
	}
	return affected > 0, nil
}

// Remaining reports the current balance without side effects. A device with no
// account row has zero remaining.
func (r *CreditRepository) Remaining(ctx context.Context, deviceID string) (int, error) {
	account, err := r.FindAccount(ctx, deviceID)
	if err != nil {
		return 0, err
	}
	if account == nil {
		return 0, nil
	}
	return account.Remaining(), nil
}

// ConsumeTrial burns the device's one-time free trial and reports whether this
// call was the one that consumed it. The insert marks the trial consumed for
// never-seen devices; the conditional update covers rows created unconsumed.
// Only one concurrent caller can win either statement.
func (r *CreditRepository) ConsumeTrial(ctx context.Context, deviceID string) (bool, error) {
	const insert = `
INSERT INTO free_trials (device_id, consumed) VALUES (?, 1)
ON DUPLICATE KEY UPDATE consumed = consumed`
	res, err := r.db.ExecContext(ctx, insert, deviceID)
	if err != nil {
		return false, fmt.Errorf("insert free trial: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("trial rows affected: %w", err)
	}
	if affected == 1 {
		return true, nil
	}

	const update = `UPDATE free_trials SET consumed = 1 WHERE device_id = ? AND consumed = 0`
	res, err = r.db.ExecContext(ctx, update, deviceID)
	if err != nil {
		return false, fmt.Errorf("consume free trial: %w", err)
	}
	affected, err = res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("trial rows affected: %w", err)
	}
	return affected > 0, nil
}

func (r *CreditRepository) FindTrial(ctx context.Context, deviceID string) (*models.FreeTrial, error) {
	const query = `SELECT id, device_id, consumed, created_at FROM free_trials WHERE device_id = ?`
	row := r.db.QueryRowContext(ctx, query, deviceID)
	var t models.FreeTrial
	var consumed int
	if err := row.Scan(&t.ID, &t.DeviceID, &consumed, &t.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("scan free trial: %w", err)
	}
	t.Consumed = consumed != 0
	return &t, nil
}
