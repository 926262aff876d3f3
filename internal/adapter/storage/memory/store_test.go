package memory

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"loyalty-topup/internal/core/domain"
	"loyalty-topup/internal/core/ports"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	_ ports.DBTransactor                   = (*Store)(nil)
	_ ports.HealthChecker                  = (*Store)(nil)
	_ ports.OrderRepository                = (*OrderRepo)(nil)
	_ ports.WalletRepository               = (*WalletRepo)(nil)
	_ ports.LedgerRepository               = (*LedgerRepo)(nil)
	_ ports.ProcessedTransactionRepository = (*ProcessedTxRepo)(nil)
	_ ports.InconsistencyRepository        = (*InconsistencyRepo)(nil)
	_ ports.WebhookReceiptRepository       = (*WebhookReceiptRepo)(nil)
	_ ports.NotificationLogRepository      = (*NotificationLogRepo)(nil)
)

func pendingOrder(orderID string) *domain.Order {
	now := time.Date(2026, 3, 9, 10, 0, 0, 0, time.UTC)
	return &domain.Order{
		ID:             uuid.New(),
		OrderID:        orderID,
		WalletOwnerID:  "owner-1",
		AmountMinor:    10000,
		Currency:       "THB",
		PointsToCredit: 100,
		Status:         domain.OrderStatusPending,
		ExpiresAt:      now.Add(15 * time.Minute),
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

func TestOrderRepo_CreateAndLookup(t *testing.T) {
	s := NewStore()
	repo := s.Orders()
	ctx := context.Background()

	o := pendingOrder("TOPUP-20260309-AAAAA")
	require.NoError(t, repo.Create(ctx, o))
	assert.ErrorIs(t, repo.Create(ctx, pendingOrder("TOPUP-20260309-AAAAA")), domain.ErrDuplicateOrderID)

	got, err := repo.GetByOrderID(ctx, o.OrderID)
	require.NoError(t, err)
	assert.Equal(t, o.ID, got.ID)

	got.Status = domain.OrderStatusSuccess
	again, _ := repo.GetByID(ctx, o.ID)
	assert.Equal(t, domain.OrderStatusPending, again.Status, "callers get copies")

	missing, err := repo.GetByProviderTransactionID(ctx, "nope")
	assert.NoError(t, err)
	assert.Nil(t, missing)
}

func TestOrderRepo_AttachQR(t *testing.T) {
	s := NewStore()
	repo := s.Orders()
	ctx := context.Background()

	a, b := pendingOrder("A"), pendingOrder("B")
	require.NoError(t, repo.Create(ctx, a))
	require.NoError(t, repo.Create(ctx, b))

	exp := time.Date(2026, 3, 9, 10, 15, 0, 0, time.UTC)
	ok, err := repo.AttachQR(ctx, a.ID, "ptx-1", "qr-data", exp)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = repo.AttachQR(ctx, a.ID, "ptx-2", "qr-data", exp)
	require.NoError(t, err)
	assert.False(t, ok, "already issued")

	_, err = repo.AttachQR(ctx, b.ID, "ptx-1", "qr-data", exp)
	assert.Error(t, err, "provider id is unique")

	got, _ := repo.GetByProviderTransactionID(ctx, "ptx-1")
	require.NotNil(t, got)
	assert.Equal(t, a.ID, got.ID)
	assert.Equal(t, "qr-data", *got.QRPayload)
}

func TestConditionalUpdateStatus_CommitAndRollback(t *testing.T) {
	s := NewStore()
	repo := s.Orders()
	ctx := context.Background()
	o := pendingOrder("A")
	require.NoError(t, repo.Create(ctx, o))
	at := time.Date(2026, 3, 9, 10, 1, 0, 0, time.UTC)

	tx, err := s.Begin(ctx)
	require.NoError(t, err)
	ok, err := repo.ConditionalUpdateStatus(ctx, tx, o.ID, domain.OrderStatusPending, domain.OrderStatusSuccess, &at)
	require.NoError(t, err)
	assert.True(t, ok)
	require.NoError(t, tx.Rollback(ctx))

	got, _ := repo.GetByID(ctx, o.ID)
	assert.Equal(t, domain.OrderStatusPending, got.Status)
	assert.Nil(t, got.CompletedAt)

	tx, _ = s.Begin(ctx)
	ok, _ = repo.ConditionalUpdateStatus(ctx, tx, o.ID, domain.OrderStatusPending, domain.OrderStatusSuccess, &at)
	assert.True(t, ok)
	require.NoError(t, tx.Commit(ctx))

	got, _ = repo.GetByID(ctx, o.ID)
	assert.Equal(t, domain.OrderStatusSuccess, got.Status)
	require.NotNil(t, got.CompletedAt)
	assert.Equal(t, at, *got.CompletedAt)

	tx, _ = s.Begin(ctx)
	ok, err = repo.ConditionalUpdateStatus(ctx, tx, o.ID, domain.OrderStatusPending, domain.OrderStatusFailed, nil)
	assert.NoError(t, err)
	assert.False(t, ok, "terminal orders do not move")
	_, err = repo.ConditionalUpdateStatus(ctx, tx, o.ID, domain.OrderStatusSuccess, domain.OrderStatusFailed, nil)
	assert.Error(t, err)
	require.NoError(t, tx.Rollback(ctx))

	assert.ErrorIs(t, tx.Commit(ctx), pgx.ErrTxClosed)
}

func TestSavepointRollbackKeepsOuterWork(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	o := pendingOrder("A")
	require.NoError(t, s.Orders().Create(ctx, o))

	tx, _ := s.Begin(ctx)
	ok, err := s.Orders().ConditionalUpdateStatus(ctx, tx, o.ID, domain.OrderStatusPending, domain.OrderStatusSuccess, nil)
	require.NoError(t, err)
	require.True(t, ok)

	sp, err := tx.Begin(ctx)
	require.NoError(t, err)
	w, err := s.Wallets().GetOrCreateForUpdate(ctx, sp, "owner-1")
	require.NoError(t, err)
	entry := domain.NewTopupEntry(w, o, time.Now())
	require.NoError(t, s.Ledger().Append(ctx, sp, entry))
	require.NoError(t, sp.Rollback(ctx))

	require.NoError(t, tx.Commit(ctx))

	got, _ := s.Orders().GetByID(ctx, o.ID)
	assert.Equal(t, domain.OrderStatusSuccess, got.Status)
	assert.Empty(t, s.LedgerEntries("owner-1"))
	wallet, _ := s.Wallets().GetOrCreate(ctx, "owner-1")
	assert.Equal(t, int64(0), wallet.Balance)
}

func TestSavepointCommitJoinsOuterRollback(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	o := pendingOrder("A")

	tx, _ := s.Begin(ctx)
	sp, _ := tx.Begin(ctx)
	w, _ := s.Wallets().GetOrCreateForUpdate(ctx, sp, "owner-1")
	entry := domain.NewTopupEntry(w, o, time.Now())
	require.NoError(t, s.Ledger().Append(ctx, sp, entry))
	bal, err := s.Wallets().ApplyDelta(ctx, sp, "owner-1", entry.PointsChange, entry.EntryHash)
	require.NoError(t, err)
	assert.Equal(t, int64(100), bal)
	require.NoError(t, sp.Commit(ctx))
	require.NoError(t, tx.Rollback(ctx))

	assert.Empty(t, s.LedgerEntries("owner-1"))
}

func TestLedgerRepo_TopupOncePerOrder(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	o := pendingOrder("A")

	tx, _ := s.Begin(ctx)
	w, _ := s.Wallets().GetOrCreateForUpdate(ctx, tx, "owner-1")
	require.NoError(t, s.Ledger().Append(ctx, tx, domain.NewTopupEntry(w, o, time.Now())))
	err := s.Ledger().Append(ctx, tx, domain.NewTopupEntry(w, o, time.Now()))
	assert.ErrorIs(t, err, domain.ErrAlreadyCredited)

	exists, err := s.Ledger().ExistsForOrder(ctx, tx, o.ID, domain.LedgerTypeTopup)
	require.NoError(t, err)
	assert.True(t, exists)

	bad := domain.NewTopupEntry(w, o, time.Now())
	bad.BalanceAfter++
	assert.Error(t, s.Ledger().Append(ctx, tx, bad))
	require.NoError(t, tx.Commit(ctx))
}

func TestLedgerRepo_ListByOwnerNewestFirst(t *testing.T) {
	s := NewStore()
	ctx := context.Background()

	tx, _ := s.Begin(ctx)
	for i := 0; i < 3; i++ {
		w, _ := s.Wallets().GetOrCreateForUpdate(ctx, tx, "owner-1")
		e := domain.NewTopupEntry(w, pendingOrder("X"), time.Now())
		require.NoError(t, s.Ledger().Append(ctx, tx, e))
		_, err := s.Wallets().ApplyDelta(ctx, tx, "owner-1", e.PointsChange, e.EntryHash)
		require.NoError(t, err)
	}
	require.NoError(t, tx.Commit(ctx))

	page, total, err := s.Ledger().ListByOwner(ctx, "owner-1", 1, 2)
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)
	require.Len(t, page, 2)
	assert.Equal(t, int64(300), page[0].BalanceAfter)
	assert.Equal(t, int64(200), page[1].BalanceAfter)

	page, _, _ = s.Ledger().ListByOwner(ctx, "owner-1", 2, 2)
	require.Len(t, page, 1)
	assert.Equal(t, int64(100), page[0].BalanceAfter)

	page, _, _ = s.Ledger().ListByOwner(ctx, "owner-1", 3, 2)
	assert.Empty(t, page)

	assert.Equal(t, -1, domain.VerifyChain(s.LedgerEntries("owner-1")))
}

func TestInjectFault(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	boom := errors.New("disk full")
	s.InjectFault(FaultWalletApplyDelta, boom)

	tx, _ := s.Begin(ctx)
	_, _ = s.Wallets().GetOrCreateForUpdate(ctx, tx, "owner-1")
	_, err := s.Wallets().ApplyDelta(ctx, tx, "owner-1", 5, "h")
	assert.ErrorIs(t, err, boom)
	_, err = s.Wallets().ApplyDelta(ctx, tx, "owner-1", 5, "h")
	assert.NoError(t, err, "faults fire once")
	require.NoError(t, tx.Commit(ctx))
}

func TestInconsistencyRepo(t *testing.T) {
	s := NewStore()
	repo := s.Inconsistencies()
	ctx := context.Background()
	base := time.Date(2026, 3, 9, 10, 0, 0, 0, time.UTC)

	first := &domain.LedgerInconsistency{ID: uuid.New(), Status: domain.InconsistencyOpen, CreatedAt: base}
	second := &domain.LedgerInconsistency{ID: uuid.New(), Status: domain.InconsistencyOpen, CreatedAt: base.Add(time.Minute)}

	tx, _ := s.Begin(ctx)
	require.NoError(t, repo.Create(ctx, tx, second))
	require.NoError(t, repo.Create(ctx, tx, first))
	require.NoError(t, tx.Commit(ctx))

	open, err := repo.ListOpen(ctx, 10)
	require.NoError(t, err)
	require.Len(t, open, 2)
	assert.Equal(t, first.ID, open[0].ID)

	tx, _ = s.Begin(ctx)
	ok, err := repo.Resolve(ctx, tx, first.ID, "replayed", base.Add(time.Hour))
	require.NoError(t, err)
	assert.True(t, ok)
	ok, _ = repo.Resolve(ctx, tx, first.ID, "again", base.Add(time.Hour))
	assert.False(t, ok)
	require.NoError(t, tx.Commit(ctx))

	got, _ := repo.GetByID(ctx, first.ID)
	assert.Equal(t, domain.InconsistencyResolved, got.Status)
	assert.Equal(t, "replayed", *got.ResolutionNote)

	open, _ = repo.ListOpen(ctx, 10)
	assert.Len(t, open, 1)
}

func TestForeignTransactionRejected(t *testing.T) {
	a, b := NewStore(), NewStore()
	ctx := context.Background()

	tx, _ := a.Begin(ctx)
	defer tx.Rollback(ctx) //nolint:errcheck
	_, err := b.Wallets().GetOrCreateForUpdate(ctx, tx, "owner-1")
	assert.Error(t, err)
}

func TestTransactionsAreSerialized(t *testing.T) {
	s := NewStore()
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			tx, err := s.Begin(ctx)
			if !assert.NoError(t, err) {
				return
			}
			w, _ := s.Wallets().GetOrCreateForUpdate(ctx, tx, "owner-1")
			e := &domain.LedgerEntry{
				ID: uuid.New(), WalletOwnerID: "owner-1", TransactionType: domain.LedgerTypeAdjustment,
				PointsChange: 1, BalanceBefore: w.Balance, BalanceAfter: w.Balance + 1, CreatedAt: time.Now(),
			}
			assert.NoError(t, s.Ledger().Append(ctx, tx, e))
			_, err = s.Wallets().ApplyDelta(ctx, tx, "owner-1", 1, "")
			assert.NoError(t, err)
			assert.NoError(t, tx.Commit(ctx))
		}()
	}
	wg.Wait()

	w, _ := s.Wallets().GetOrCreate(ctx, "owner-1")
	assert.Equal(t, int64(20), w.Balance)
	assert.Len(t, s.LedgerEntries("owner-1"), 20)
}

func TestAuditAndNotificationLogs(t *testing.T) {
	s := NewStore()
	ctx := context.Background()

	require.NoError(t, s.WebhookReceipts().Create(ctx, &domain.WebhookReceipt{ID: uuid.New(), HTTPStatus: 200}))
	require.NoError(t, s.NotificationLog().Create(ctx, &domain.NotificationDelivery{ID: uuid.New(), Status: domain.DeliveryStatusDelivered}))

	assert.Len(t, s.Receipts(), 1)
	assert.Len(t, s.Deliveries(), 1)
	assert.NoError(t, s.Ping(ctx))
	assert.Equal(t, "memory", s.Name())
}
