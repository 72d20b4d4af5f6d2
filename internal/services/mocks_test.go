package services

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/enquira/backend/internal/models"
	"github.com/enquira/backend/internal/settlement"
)

// ---------------------------------------------------------------------------
// In-memory mocks for the bid/auction stores and the wallet ledger.
// These let us test the real service logic without a database; the store
// reproduces the CAS semantics of the SQL layer (partial unique index,
// guarded status update, one-time closure claim).
// ---------------------------------------------------------------------------

// --- noopTx satisfies pgx.Tx for test use; only Commit/Rollback are called. ---

type noopTx struct{}

func (noopTx) Begin(context.Context) (pgx.Tx, error) { return noopTx{}, nil }
func (noopTx) Commit(context.Context) error          { return nil }
func (noopTx) Rollback(context.Context) error        { return nil }
func (noopTx) Exec(context.Context, string, ...any) (pgconn.CommandTag, error) {
	return pgconn.NewCommandTag(""), nil
}
func (noopTx) Query(context.Context, string, ...any) (pgx.Rows, error) { return nil, nil }
func (noopTx) QueryRow(context.Context, string, ...any) pgx.Row        { return nil }
func (noopTx) CopyFrom(context.Context, pgx.Identifier, []string, pgx.CopyFromSource) (int64, error) {
	return 0, nil
}
func (noopTx) SendBatch(context.Context, *pgx.Batch) pgx.BatchResults { return nil }
func (noopTx) LargeObjects() pgx.LargeObjects                         { return pgx.LargeObjects{} }
func (noopTx) Prepare(context.Context, string, string) (*pgconn.StatementDescription, error) {
	return nil, nil
}
func (noopTx) Conn() *pgx.Conn { return nil }

// --- memStore: bids + auctions + interactions ---

type memStore struct {
	mu       sync.Mutex
	clock    time.Time
	bids     map[uuid.UUID]*models.Bid
	auctions map[uuid.UUID]*models.EnquiryAuction
	events   []*models.Interaction
}

func newMemStore() *memStore {
	return &memStore{
		clock:    time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
		bids:     make(map[uuid.UUID]*models.Bid),
		auctions: make(map[uuid.UUID]*models.EnquiryAuction),
	}
}

// tick advances the store clock so submission times are strictly increasing.
func (m *memStore) tick() time.Time {
	m.clock = m.clock.Add(time.Second)
	return m.clock
}

func (m *memStore) Begin(context.Context) (pgx.Tx, error) { return noopTx{}, nil }

func (m *memStore) InsertActive(_ context.Context, b *models.Bid) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	// The SQL insert is guarded by the auction row: no row lands once
	// closed_at is set.
	a, ok := m.auctions[b.EnquiryID]
	if !ok || a.ClosedAt != nil {
		return models.ErrAuctionClosed
	}
	for _, existing := range m.bids {
		if existing.EnquiryID == b.EnquiryID && existing.BidderID == b.BidderID &&
			existing.Status == models.BidStatusActive {
			return models.ErrDuplicateBid
		}
	}
	b.Status = models.BidStatusActive
	b.SubmittedAt = m.tick()
	cp := *b
	m.bids[b.ID] = &cp
	return nil
}

func (m *memStore) GetActive(_ context.Context, _ pgx.Tx, enquiryID, bidderID uuid.UUID) (*models.Bid, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, b := range m.bids {
		if b.EnquiryID == enquiryID && b.BidderID == bidderID && b.Status == models.BidStatusActive {
			cp := *b
			return &cp, nil
		}
	}
	return nil, models.ErrNotFound
}

func (m *memStore) ListActive(_ context.Context, enquiryID uuid.UUID) ([]models.Bid, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.activeLocked(enquiryID), nil
}

func (m *memStore) ListActiveForUpdate(_ context.Context, _ pgx.Tx, enquiryID uuid.UUID) ([]models.Bid, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.activeLocked(enquiryID), nil
}

func (m *memStore) activeLocked(enquiryID uuid.UUID) []models.Bid {
	var list []models.Bid
	for _, b := range m.bids {
		if b.EnquiryID == enquiryID && b.Status == models.BidStatusActive {
			list = append(list, *b)
		}
	}
	return list
}

func (m *memStore) Transition(_ context.Context, _ pgx.Tx, bidID uuid.UUID, to, settledBy string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.bids[bidID]
	if !ok || b.Status != models.BidStatusActive {
		return false, nil
	}
	now := m.tick()
	b.Status = to
	b.SettledAt = &now
	b.SettledBy = &settledBy
	return true, nil
}

func (m *memStore) bid(id uuid.UUID) models.Bid {
	m.mu.Lock()
	defer m.mu.Unlock()
	return *m.bids[id]
}

func (m *memStore) statusCounts(enquiryID uuid.UUID) map[string]int {
	m.mu.Lock()
	defer m.mu.Unlock()
	counts := make(map[string]int)
	for _, b := range m.bids {
		if b.EnquiryID == enquiryID {
			counts[b.Status]++
		}
	}
	return counts
}

// --- auction store side of memStore ---

func (m *memStore) addAuction(a *models.EnquiryAuction) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *a
	if cp.CreatedAt.IsZero() {
		cp.CreatedAt = m.clock
	}
	m.auctions[a.EnquiryID] = &cp
}

func (m *memStore) Create(_ context.Context, a *models.EnquiryAuction) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.auctions[a.EnquiryID]; ok {
		return models.ErrConcurrencyConflict
	}
	a.CreatedAt = m.tick()
	cp := *a
	m.auctions[a.EnquiryID] = &cp
	return nil
}

func (m *memStore) GetByEnquiryID(_ context.Context, enquiryID uuid.UUID) (*models.EnquiryAuction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.auctions[enquiryID]
	if !ok {
		return nil, models.ErrNotFound
	}
	cp := *a
	return &cp, nil
}

func (m *memStore) GetForShare(ctx context.Context, _ pgx.Tx, enquiryID uuid.UUID) (*models.EnquiryAuction, error) {
	return m.GetByEnquiryID(ctx, enquiryID)
}

func (m *memStore) ScheduleClose(_ context.Context, enquiryID uuid.UUID, closesAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.auctions[enquiryID]
	if !ok || a.ClosedAt != nil {
		return models.ErrAuctionClosed
	}
	a.ClosesAt = &closesAt
	return nil
}

func (m *memStore) ClaimClosure(_ context.Context, _ pgx.Tx, enquiryID uuid.UUID) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.auctions[enquiryID]
	if !ok || a.ClosedAt != nil {
		return false, nil
	}
	now := m.tick()
	a.ClosedAt = &now
	return true, nil
}

func (m *memStore) RecordInteraction(_ context.Context, _ pgx.Tx, in *models.Interaction) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	in.OccurredAt = m.tick()
	cp := *in
	m.events = append(m.events, &cp)
	return nil
}

func (m *memStore) ListInteractions(_ context.Context, enquiryID uuid.UUID) ([]models.Interaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var list []models.Interaction
	for _, e := range m.events {
		if e.EnquiryID == enquiryID {
			list = append(list, *e)
		}
	}
	return list, nil
}

// --- mockLedger implements ledger.Service ---

type mockLedger struct {
	mu       sync.Mutex
	balances map[uuid.UUID]int
	debits   []mockDebit
}

type mockDebit struct {
	AccountID uuid.UUID
	BidID     uuid.UUID
	Amount    int
}

func newMockLedger() *mockLedger {
	return &mockLedger{balances: make(map[uuid.UUID]int)}
}

func (m *mockLedger) setBalance(id uuid.UUID, balance int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.balances[id] = balance
}

func (m *mockLedger) GetBalance(_ context.Context, accountID uuid.UUID) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	balance, ok := m.balances[accountID]
	if !ok {
		return 0, models.ErrNotFound
	}
	return balance, nil
}

func (m *mockLedger) Debit(_ context.Context, accountID, bidID uuid.UUID, amount int, _ string) (uuid.UUID, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.balances[accountID] -= amount
	m.debits = append(m.debits, mockDebit{AccountID: accountID, BidID: bidID, Amount: amount})
	return uuid.New(), nil
}

func (m *mockLedger) ListEntries(context.Context, uuid.UUID) ([]models.WalletEntry, error) {
	return nil, nil
}

// --- chargeRecorder captures enqueued ChargeBid jobs ---

type chargeRecorder struct {
	mu   sync.Mutex
	args []settlement.ChargeBidArgs
}

func (c *chargeRecorder) insert(_ context.Context, _ pgx.Tx, args settlement.ChargeBidArgs) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.args = append(c.args, args)
	return nil
}

func (c *chargeRecorder) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.args)
}

func (c *chargeRecorder) bidIDs() map[uuid.UUID]bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	ids := make(map[uuid.UUID]bool, len(c.args))
	for _, a := range c.args {
		ids[a.BidID] = true
	}
	return ids
}
