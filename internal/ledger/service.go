// Package ledger is the wallet collaborator: it holds bidder credit
// balances and performs the settlement debits. The bid engine never moves
// credits anywhere else.
package ledger

import (
	"context"

	"github.com/google/uuid"

	"github.com/enquira/backend/internal/models"
)

type Service interface {
	// GetBalance returns the bidder's current credit balance. Submission
	// uses it as an advisory check only; nothing is reserved.
	GetBalance(ctx context.Context, accountID uuid.UUID) (int, error)
	// Debit charges creditsUsed for a CHARGED bid and returns the ledger
	// transaction id. Idempotent per bid: a retry returns the id of the
	// entry the first attempt wrote.
	Debit(ctx context.Context, accountID, bidID uuid.UUID, amount int, reason string) (uuid.UUID, error)
	// ListEntries returns the account's ledger history, newest first.
	ListEntries(ctx context.Context, accountID uuid.UUID) ([]models.WalletEntry, error)
}

type service struct {
	repo *Repository
}

func NewService(repo *Repository) Service {
	return &service{repo: repo}
}

var _ Service = (*service)(nil)

func (s *service) GetBalance(ctx context.Context, accountID uuid.UUID) (int, error) {
	return s.repo.GetBalance(ctx, accountID)
}

func (s *service) Debit(ctx context.Context, accountID, bidID uuid.UUID, amount int, reason string) (uuid.UUID, error) {
	return s.repo.Debit(ctx, accountID, bidID, amount, reason)
}

func (s *service) ListEntries(ctx context.Context, accountID uuid.UUID) ([]models.WalletEntry, error) {
	return s.repo.ListByAccountID(ctx, accountID)
}
