package service

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/richardliu001/wallet-ledger/internal/apperr"
	"github.com/richardliu001/wallet-ledger/internal/auth"
	"github.com/richardliu001/wallet-ledger/internal/model"
	"github.com/richardliu001/wallet-ledger/internal/repo"
	"github.com/richardliu001/wallet-ledger/internal/storetest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func TestTransfer(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	a := storetest.SeedWallet(t, env.db, "a@x.io", "4000000000001", 100000)
	b := storetest.SeedWallet(t, env.db, "b@x.io", "4000000000002", 5000)

	res, err := env.wallets.Transfer(ctx, principalFor(a), TransferRequest{WalletNumber: b.WalletNumber, Amount: 30000})
	require.NoError(t, err)
	assert.Equal(t, model.TxCompleted, res.Status)
	assert.Equal(t, int64(70000), res.NewSenderBalance)
	assert.Equal(t, b.WalletNumber, res.RecipientNumber)
	assert.False(t, res.Replayed)

	assert.Equal(t, int64(70000), storetest.Balance(t, env.db, a.ID))
	assert.Equal(t, int64(35000), storetest.Balance(t, env.db, b.ID))

	sent := env.entries(t, a.ID)
	received := env.entries(t, b.ID)
	require.Len(t, sent, 1)
	require.Len(t, received, 1)
	assert.Equal(t, model.TxTransferSent, sent[0].Type)
	assert.Equal(t, int64(-30000), sent[0].Amount)
	assert.Equal(t, b.ID, *sent[0].CounterpartyWalletID)
	assert.Equal(t, model.TxTransferReceived, received[0].Type)
	assert.Equal(t, int64(30000), received[0].Amount)
	assert.Equal(t, a.ID, *received[0].CounterpartyWalletID)
	assert.Equal(t, *sent[0].TransferGroup, *received[0].TransferGroup)
	assert.Equal(t, int64(35000), *received[0].BalanceAfter)

	assert.Equal(t, int64(1), env.count(t, &model.OutboxEvent{}))
}

func TestTransferRejections(t *testing.T) {
	tests := []struct {
		name  string
		to    string
		amt   int64
		perms []auth.Permission
		want  error
		kind  apperr.Kind
	}{
		{name: "below minimum", to: "4000000000002", amt: 50, want: ErrInvalidAmount, kind: apperr.Validation},
		{name: "zero amount", to: "4000000000002", amt: 0, want: ErrInvalidAmount, kind: apperr.Validation},
		{name: "negative amount", to: "4000000000002", amt: -500, want: ErrInvalidAmount, kind: apperr.Validation},
		{name: "missing recipient", to: "", amt: 1000, want: ErrMissingWalletNumber, kind: apperr.Validation},
		{name: "malformed recipient", to: "12345", amt: 1000, want: ErrInvalidWalletNumber, kind: apperr.Validation},
		{name: "non-digit recipient", to: "40000000000a2", amt: 1000, want: ErrInvalidWalletNumber, kind: apperr.Validation},
		{name: "unknown recipient", to: "4999999999999", amt: 1000, want: ErrRecipientNotFound, kind: apperr.NotFound},
		{name: "self transfer", to: "4000000000001", amt: 1000, want: ErrSelfTransfer, kind: apperr.SelfTransfer},
		{name: "insufficient funds", to: "4000000000002", amt: 20000, want: repo.ErrInsufficientFunds, kind: apperr.InsufficientFunds},
		{name: "missing permission", to: "4000000000002", amt: 1000, perms: []auth.Permission{auth.PermRead}, want: auth.ErrForbidden, kind: apperr.Forbidden},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t)
			a := storetest.SeedWallet(t, env.db, "a@x.io", "4000000000001", 10000)
			b := storetest.SeedWallet(t, env.db, "b@x.io", "4000000000002", 5000)

			_, err := env.wallets.Transfer(context.Background(), principalFor(a, tt.perms...),
				TransferRequest{WalletNumber: tt.to, Amount: tt.amt})
			require.ErrorIs(t, err, tt.want)
			assert.Equal(t, tt.kind, apperr.KindOf(err))

			assert.Equal(t, int64(10000), storetest.Balance(t, env.db, a.ID))
			assert.Equal(t, int64(5000), storetest.Balance(t, env.db, b.ID))
			assert.Zero(t, env.count(t, &model.Transaction{}))
			assert.Zero(t, env.count(t, &model.OutboxEvent{}))
		})
	}
}

func TestTransferBelowMinimumMessage(t *testing.T) {
	env := newTestEnv(t)
	a := storetest.SeedWallet(t, env.db, "a@x.io", "4000000000001", 10000)
	b := storetest.SeedWallet(t, env.db, "b@x.io", "4000000000002", 0)

	_, err := env.wallets.Transfer(context.Background(), principalFor(a), TransferRequest{WalletNumber: b.WalletNumber, Amount: 50})
	require.Error(t, err)
	assert.Equal(t, "minimum transfer is ₦1.00", apperr.Message(err))
}

func TestTransferWithoutSenderWallet(t *testing.T) {
	env := newTestEnv(t)
	b := storetest.SeedWallet(t, env.db, "b@x.io", "4000000000002", 0)

	p := auth.Principal{UserID: 9999, Permissions: auth.AllPermissions}
	_, err := env.wallets.Transfer(context.Background(), p, TransferRequest{WalletNumber: b.WalletNumber, Amount: 1000})
	assert.ErrorIs(t, err, ErrSenderNotFound)
}

// failingCreditStore fails every credit, so a transfer breaks after its debit.
type failingCreditStore struct {
	*repo.Repository
}

func (f failingCreditStore) AdjustBalance(ctx context.Context, tx *gorm.DB, walletID uint64, delta int64) (int64, error) {
	if delta > 0 {
		return 0, errors.New("injected credit failure")
	}
	return f.Repository.AdjustBalance(ctx, tx, walletID, delta)
}

func TestTransferFailureAfterDebitLeavesNoTrace(t *testing.T) {
	env := newTestEnvWith(t, func(r *repo.Repository) repo.Store { return failingCreditStore{r} }, nil)
	a := storetest.SeedWallet(t, env.db, "a@x.io", "4000000000001", 10000)
	b := storetest.SeedWallet(t, env.db, "b@x.io", "4000000000002", 5000)

	_, err := env.wallets.Transfer(context.Background(), principalFor(a),
		TransferRequest{WalletNumber: b.WalletNumber, Amount: 3000, IdempotencyKey: "k1"})
	require.Error(t, err)
	assert.Equal(t, apperr.Internal, apperr.KindOf(err))

	assert.Equal(t, int64(10000), storetest.Balance(t, env.db, a.ID))
	assert.Equal(t, int64(5000), storetest.Balance(t, env.db, b.ID))
	assert.Zero(t, env.count(t, &model.Transaction{}))
	assert.Zero(t, env.count(t, &model.IdempotencyRecord{}))
	assert.Zero(t, env.count(t, &model.OutboxEvent{}))
}

func TestTransferIdempotencyKey(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	a := storetest.SeedWallet(t, env.db, "a@x.io", "4000000000001", 10000)
	b := storetest.SeedWallet(t, env.db, "b@x.io", "4000000000002", 0)
	c := storetest.SeedWallet(t, env.db, "c@x.io", "4000000000003", 0)
	req := TransferRequest{WalletNumber: b.WalletNumber, Amount: 2500, IdempotencyKey: "pay-rent"}

	first, err := env.wallets.Transfer(ctx, principalFor(a), req)
	require.NoError(t, err)
	second, err := env.wallets.Transfer(ctx, principalFor(a), req)
	require.NoError(t, err)

	assert.True(t, second.Replayed)
	assert.Equal(t, first.SentEntryID, second.SentEntryID)
	assert.Equal(t, first.NewSenderBalance, second.NewSenderBalance)
	assert.Equal(t, int64(7500), storetest.Balance(t, env.db, a.ID))
	assert.Equal(t, int64(2500), storetest.Balance(t, env.db, b.ID))
	assert.Equal(t, int64(2), env.count(t, &model.Transaction{}))

	_, err = env.wallets.Transfer(ctx, principalFor(a), TransferRequest{WalletNumber: b.WalletNumber, Amount: 1000, IdempotencyKey: "pay-rent"})
	assert.ErrorIs(t, err, ErrIdempotencyMismatch)
	_, err = env.wallets.Transfer(ctx, principalFor(a), TransferRequest{WalletNumber: c.WalletNumber, Amount: 2500, IdempotencyKey: "pay-rent"})
	assert.ErrorIs(t, err, ErrIdempotencyMismatch)

	// keys are scoped per sender
	_, err = env.wallets.Transfer(ctx, principalFor(b), TransferRequest{WalletNumber: c.WalletNumber, Amount: 500, IdempotencyKey: "pay-rent"})
	require.NoError(t, err)
	assert.Equal(t, int64(500), storetest.Balance(t, env.db, c.ID))
}

func TestConcurrentTransfersConserveMoney(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	a := storetest.SeedWallet(t, env.db, "a@x.io", "4000000000001", 10000)
	b := storetest.SeedWallet(t, env.db, "b@x.io", "4000000000002", 10000)

	const n = 20
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		completed int
	)
	for i := 0; i < n; i++ {
		from, to, amt := a, b, int64(1500)
		if i%2 == 1 {
			from, to, amt = b, a, 700
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := env.wallets.Transfer(ctx, principalFor(from), TransferRequest{WalletNumber: to.WalletNumber, Amount: amt})
			if err != nil {
				assert.ErrorIs(t, err, repo.ErrInsufficientFunds)
				return
			}
			mu.Lock()
			completed++
			mu.Unlock()
		}()
	}
	wg.Wait()

	balA := storetest.Balance(t, env.db, a.ID)
	balB := storetest.Balance(t, env.db, b.ID)
	assert.Equal(t, int64(20000), balA+balB)
	assert.GreaterOrEqual(t, balA, int64(0))
	assert.GreaterOrEqual(t, balB, int64(0))
	assert.Equal(t, int64(2*completed), env.count(t, &model.Transaction{}))

	// every balance equals its opening amount plus its ledger
	for _, w := range []*model.Wallet{a, b} {
		sum := int64(10000)
		for _, e := range env.entries(t, w.ID) {
			sum += e.Amount
		}
		assert.Equal(t, storetest.Balance(t, env.db, w.ID), sum)
	}
}

func TestGetBalanceAndTransactions(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	a := storetest.SeedWallet(t, env.db, "a@x.io", "4000000000001", 10000)
	b := storetest.SeedWallet(t, env.db, "b@x.io", "4000000000002", 0)

	for _, amt := range []int64{1000, 2000, 3000} {
		_, err := env.wallets.Transfer(ctx, principalFor(a), TransferRequest{WalletNumber: b.WalletNumber, Amount: amt})
		require.NoError(t, err)
	}

	bal, err := env.wallets.GetBalance(ctx, principalFor(a, auth.PermRead))
	require.NoError(t, err)
	assert.Equal(t, int64(4000), bal.Balance)
	assert.Equal(t, a.WalletNumber, bal.WalletNumber)

	txs, err := env.wallets.ListTransactions(ctx, principalFor(b, auth.PermRead), 2)
	require.NoError(t, err)
	require.Len(t, txs, 2)
	assert.Equal(t, int64(3000), txs[0].Amount)
	assert.Equal(t, int64(2000), txs[1].Amount)

	_, err = env.wallets.GetBalance(ctx, principalFor(a, auth.PermDeposit))
	assert.ErrorIs(t, err, auth.ErrForbidden)
	_, err = env.wallets.ListTransactions(ctx, principalFor(a, auth.PermTransfer), 0)
	assert.ErrorIs(t, err, auth.ErrForbidden)
}

func TestTransferLongIdempotencyKeyFitsReference(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	a := storetest.SeedWallet(t, env.db, "a@x.io", "4000000000001", 10000)
	b := storetest.SeedWallet(t, env.db, "b@x.io", "4000000000002", 0)
	key := strings.Repeat("k", 512)

	res, err := env.wallets.Transfer(ctx, principalFor(a), TransferRequest{WalletNumber: b.WalletNumber, Amount: 1000, IdempotencyKey: key})
	require.NoError(t, err)

	sent := env.entries(t, a.ID)
	require.Len(t, sent, 1)
	require.NotNil(t, sent[0].Reference)
	assert.LessOrEqual(t, len(*sent[0].Reference), model.ReferenceSize)
	assert.Equal(t, transferClaimRef(a.ID, key), *sent[0].Reference)
	assert.NotEqual(t, transferClaimRef(a.ID, key), transferClaimRef(a.ID, key+"x"))

	again, err := env.wallets.Transfer(ctx, principalFor(a), TransferRequest{WalletNumber: b.WalletNumber, Amount: 1000, IdempotencyKey: key})
	require.NoError(t, err)
	assert.True(t, again.Replayed)
	assert.Equal(t, res.SentEntryID, again.SentEntryID)
}
