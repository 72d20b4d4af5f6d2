package ledger

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/enquira/backend/internal/models"
)

type Repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func (r *Repository) GetBalance(ctx context.Context, accountID uuid.UUID) (int, error) {
	var balance int
	err := r.pool.QueryRow(ctx, `
		SELECT credit_balance FROM accounts WHERE id = $1
	`, accountID).Scan(&balance)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, models.ErrNotFound
	}
	return balance, err
}

// Debit runs in its own transaction. It:
// a) Decrements the account balance (the rank decision is already durable,
//    so the debit is unconditional; the balance was checked at submission)
// b) Inserts a bid_charge entry keyed by (bid_id, entry_type)
// The unique index on (bid_id, entry_type) makes retries return the entry
// written by the first attempt instead of double-charging.
func (r *Repository) Debit(ctx context.Context, accountID, bidID uuid.UUID, amount int, reason string) (uuid.UUID, error) {
	if existing, ok, err := r.findCharge(ctx, bidID); err != nil {
		return uuid.Nil, err
	} else if ok {
		return existing, nil
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return uuid.Nil, err
	}
	defer tx.Rollback(ctx)

	var newBalance int
	err = tx.QueryRow(ctx, `
		UPDATE accounts SET credit_balance = credit_balance - $1, updated_at = now()
		WHERE id = $2
		RETURNING credit_balance
	`, amount, accountID).Scan(&newBalance)
	if errors.Is(err, pgx.ErrNoRows) {
		return uuid.Nil, models.ErrNotFound
	}
	if err != nil {
		return uuid.Nil, err
	}

	entryID := uuid.New()
	tag, err := tx.Exec(ctx, `
		INSERT INTO wallet_ledger (id, account_id, bid_id, entry_type, amount, balance_after, reason)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (bid_id, entry_type) WHERE bid_id IS NOT NULL DO NOTHING
	`, entryID, accountID, bidID, models.WalletEntryBidCharge, amount, newBalance, reason)
	if err != nil {
		return uuid.Nil, err
	}
	if tag.RowsAffected() == 0 {
		// A concurrent retry won the race; drop our balance update and
		// return its entry.
		_ = tx.Rollback(ctx)
		existing, ok, err := r.findCharge(ctx, bidID)
		if err != nil {
			return uuid.Nil, err
		}
		if !ok {
			return uuid.Nil, models.ErrConcurrencyConflict
		}
		return existing, nil
	}
	if err := tx.Commit(ctx); err != nil {
		return uuid.Nil, err
	}
	return entryID, nil
}

func (r *Repository) findCharge(ctx context.Context, bidID uuid.UUID) (uuid.UUID, bool, error) {
	var id uuid.UUID
	err := r.pool.QueryRow(ctx, `
		SELECT id FROM wallet_ledger WHERE bid_id = $1 AND entry_type = $2
	`, bidID, models.WalletEntryBidCharge).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return uuid.Nil, false, nil
	}
	if err != nil {
		return uuid.Nil, false, err
	}
	return id, true, nil
}

func (r *Repository) ListByAccountID(ctx context.Context, accountID uuid.UUID) ([]models.WalletEntry, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, account_id, bid_id, entry_type, amount, balance_after, reason, created_at
		FROM wallet_ledger WHERE account_id = $1 ORDER BY created_at DESC
	`, accountID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []models.WalletEntry
	for rows.Next() {
		var e models.WalletEntry
		if err := rows.Scan(&e.ID, &e.AccountID, &e.BidID, &e.EntryType, &e.Amount, &e.BalanceAfter, &e.Reason, &e.CreatedAt); err != nil {
			return nil, err
		}
		list = append(list, e)
	}
	return list, rows.Err()
}
