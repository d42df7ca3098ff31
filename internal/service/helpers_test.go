package service

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/go-redis/redis/v8"
	"github.com/richardliu001/wallet-ledger/internal/auth"
	"github.com/richardliu001/wallet-ledger/internal/model"
	"github.com/richardliu001/wallet-ledger/internal/paystack"
	"github.com/richardliu001/wallet-ledger/internal/repo"
	"github.com/richardliu001/wallet-ledger/internal/storetest"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const testSecret = "sk_test_secret"

// permGate grants exactly what the principal carries.
type permGate struct{}

func (permGate) Authorize(p auth.Principal, perm auth.Permission) error {
	if p.Has(perm) {
		return nil
	}
	return auth.ErrForbidden
}

type fakeProcessor struct {
	mu          sync.Mutex
	initErr     error
	verify      *paystack.VerifyResult
	verifyCalls int
	initialized []paystack.InitializeRequest
}

func (f *fakeProcessor) Initialize(_ context.Context, req paystack.InitializeRequest) (*paystack.InitializeResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.initErr != nil {
		return nil, f.initErr
	}
	f.initialized = append(f.initialized, req)
	return &paystack.InitializeResult{AuthorizationURL: "https://checkout.test/" + req.Reference, Reference: req.Reference}, nil
}

func (f *fakeProcessor) Verify(_ context.Context, reference string) (*paystack.VerifyResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.verifyCalls++
	if f.verify == nil {
		return nil, errors.New("processor down")
	}
	res := *f.verify
	res.Reference = reference
	return &res, nil
}

type testEnv struct {
	db        *gorm.DB
	repo      *repo.Repository
	wallets   *WalletService
	deposits  *DepositService
	processor *fakeProcessor
}

func newTestEnv(t *testing.T) *testEnv {
	return newTestEnvWith(t, nil, nil)
}

// newTestEnvWith lets a test swap the store the engines see and the redis client.
func newTestEnvWith(t *testing.T, wrap func(*repo.Repository) repo.Store, rdb *redis.Client) *testEnv {
	db := storetest.Open(t)
	log := zap.NewNop().Sugar()
	r := repo.NewRepository(db, rdb, nil, log)
	var store repo.Store = r
	if wrap != nil {
		store = wrap(r)
	}
	proc := &fakeProcessor{}
	return &testEnv{
		db:        db,
		repo:      r,
		processor: proc,
		wallets:   NewWalletService(store, permGate{}, 100, log),
		deposits: NewDepositService(store, permGate{}, proc, DepositConfig{
			SigningSecret: testSecret, MinAmount: 100,
		}, log),
	}
}

func principalFor(w *model.Wallet, perms ...auth.Permission) auth.Principal {
	if len(perms) == 0 {
		perms = auth.AllPermissions
	}
	return auth.Principal{UserID: w.UserID, WalletID: w.ID, Email: "owner@x.io", Permissions: perms}
}

func (e *testEnv) entries(t *testing.T, walletID uint64) []model.Transaction {
	t.Helper()
	txs, err := e.repo.ListTransactions(context.Background(), e.db, walletID, 0)
	require.NoError(t, err)
	return txs
}

func (e *testEnv) count(t *testing.T, m interface{}) int64 {
	t.Helper()
	var n int64
	require.NoError(t, e.db.Model(m).Count(&n).Error)
	return n
}
