package repo

import (
	"context"
	"database/sql/driver"
	"errors"
	"sort"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/richardliu001/wallet-ledger/internal/apperr"
	"github.com/richardliu001/wallet-ledger/internal/model"
	"github.com/richardliu001/wallet-ledger/internal/walletnumber"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	// ErrInsufficientFunds is returned when wallet balance is not enough.
	ErrInsufficientFunds = apperr.New(apperr.InsufficientFunds, "insufficient funds")
	ErrWalletNotFound    = apperr.New(apperr.NotFound, "wallet not found")
	ErrWalletExists      = apperr.New(apperr.Conflict, "user already has a wallet")
	ErrUserNotFound      = apperr.New(apperr.NotFound, "user not found")
	ErrUserExists        = apperr.New(apperr.Conflict, "user already exists")
	ErrTxNotFound        = apperr.New(apperr.NotFound, "transaction not found")
	// ErrTxNotPending guards the pending -> completed/failed transition.
	ErrTxNotPending     = apperr.New(apperr.Conflict, "transaction is not pending")
	ErrStoreUnavailable = apperr.New(apperr.StoreUnavailable, "store unavailable, retry later")

	errWalletNumbersExhausted = errors.New("could not allocate a unique wallet number")
)

const maxWalletNumberAttempts = 5

// TxFunc is the body of an atomic unit. Every store call inside it must use
// the given ctx and tx.
type TxFunc func(ctx context.Context, tx *gorm.DB) error

// Store is the ledger store contract consumed by the engines.
type Store interface {
	DB(ctx context.Context) *gorm.DB
	WithinTx(ctx context.Context, fn TxFunc) error

	CreateUser(ctx context.Context, tx *gorm.DB, u *model.User) error
	GetUser(ctx context.Context, tx *gorm.DB, userID uint64) (*model.User, error)
	CreateWallet(ctx context.Context, tx *gorm.DB, userID uint64) (*model.Wallet, error)
	GetWalletByUser(ctx context.Context, tx *gorm.DB, userID uint64) (*model.Wallet, error)
	GetWalletByNumber(ctx context.Context, tx *gorm.DB, number string) (*model.Wallet, error)
	GetWalletForUpdate(ctx context.Context, tx *gorm.DB, walletID uint64) (*model.Wallet, error)
	LockWalletsOrdered(ctx context.Context, tx *gorm.DB, walletIDs ...uint64) (map[uint64]*model.Wallet, error)
	AdjustBalance(ctx context.Context, tx *gorm.DB, walletID uint64, delta int64) (int64, error)

	AppendTransaction(ctx context.Context, tx *gorm.DB, t *model.Transaction) (uint64, error)
	ListTransactions(ctx context.Context, tx *gorm.DB, walletID uint64, limit int) ([]model.Transaction, error)
	FindTransactionByReference(ctx context.Context, tx *gorm.DB, reference string) (*model.Transaction, error)
	CompleteTransaction(ctx context.Context, tx *gorm.DB, id uint64, amount, balanceAfter int64) error
	FailTransaction(ctx context.Context, tx *gorm.DB, id uint64) error

	TryClaim(ctx context.Context, tx *gorm.DB, reference string) (ClaimResult, error)

	CreateOutboxEvent(ctx context.Context, tx *gorm.DB, evt *model.OutboxEvent) error
	PollOutbox(ctx context.Context, limit int) ([]model.OutboxEvent, error)
	MarkOutboxProcessed(ctx context.Context, id uint64) error
	PublishEvent(ctx context.Context, evt model.OutboxEvent) error

	CacheDepositStatus(ctx context.Context, reference, payload string, ttl time.Duration) error
	GetCachedDepositStatus(ctx context.Context, reference string) (string, error)
}

// Repository implements Store on gorm, with Redis for the processor status
// cache and Kafka for the outbox relay.
type Repository struct {
	db        *gorm.DB
	rdb       *redis.Client
	writer    *kafka.Writer
	log       *zap.SugaredLogger
	txTimeout time.Duration
	numbers   func() (string, error)
}

// Option tunes a Repository.
type Option func(*Repository)

// WithTxTimeout bounds every WithinTx call.
func WithTxTimeout(d time.Duration) Option {
	return func(r *Repository) { r.txTimeout = d }
}

// WithWalletNumbers replaces the wallet number generator.
func WithWalletNumbers(gen func() (string, error)) Option {
	return func(r *Repository) { r.numbers = gen }
}

// NewRepository constructs repo. rdb and w may be nil where the caller never
// touches the cache or the relay.
func NewRepository(db *gorm.DB, rdb *redis.Client, w *kafka.Writer, logger *zap.SugaredLogger, opts ...Option) *Repository {
	r := &Repository{db: db, rdb: rdb, writer: w, log: logger, numbers: walletnumber.Generate}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// DB returns underlying *gorm.DB
func (r *Repository) DB(ctx context.Context) *gorm.DB { return r.db.WithContext(ctx) }

// WithinTx runs fn as one atomic, isolated unit: it commits when fn returns
// nil and rolls back on every other exit, panics included.
func (r *Repository) WithinTx(ctx context.Context, fn TxFunc) error {
	if r.txTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.txTimeout)
		defer cancel()
	}
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(ctx, tx)
	})
	return classify(ctx, err)
}

// classify maps transient store failures to ErrStoreUnavailable and leaves
// already classified errors untouched.
func classify(ctx context.Context, err error) error {
	if err == nil {
		return nil
	}
	var ae *apperr.Error
	if errors.As(err, &ae) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) ||
		errors.Is(err, driver.ErrBadConn) {
		return apperr.Wrap(apperr.StoreUnavailable, ErrStoreUnavailable.Msg, err)
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "40001", "40P01", "55P03", "57014":
			return apperr.Wrap(apperr.StoreUnavailable, ErrStoreUnavailable.Msg, err)
		}
	}
	if ctx.Err() != nil {
		return apperr.Wrap(apperr.StoreUnavailable, ErrStoreUnavailable.Msg, err)
	}
	return err
}

// CreateUser inserts a user; the email must be unused.
func (r *Repository) CreateUser(ctx context.Context, tx *gorm.DB, u *model.User) error {
	err := tx.WithContext(ctx).Create(u).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return ErrUserExists
	}
	return err
}

func (r *Repository) GetUser(ctx context.Context, tx *gorm.DB, userID uint64) (*model.User, error) {
	var u model.User
	if err := tx.WithContext(ctx).Where("id = ?", userID).First(&u).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return &u, nil
}

// CreateWallet opens the zero-balance wallet of userID. Each number candidate
// is inserted under its own savepoint so a collision does not poison tx.
func (r *Repository) CreateWallet(ctx context.Context, tx *gorm.DB, userID uint64) (*model.Wallet, error) {
	if _, err := r.GetWalletByUser(ctx, tx, userID); err == nil {
		return nil, ErrWalletExists
	} else if !errors.Is(err, ErrWalletNotFound) {
		return nil, err
	}
	for attempt := 1; attempt <= maxWalletNumberAttempts; attempt++ {
		number, err := r.numbers()
		if err != nil {
			return nil, err
		}
		w := &model.Wallet{UserID: userID, WalletNumber: number}
		err = tx.WithContext(ctx).Transaction(func(sp *gorm.DB) error {
			return sp.Create(w).Error
		})
		if err == nil {
			return w, nil
		}
		if !errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, err
		}
		r.log.Warnw("wallet number collision", "user_id", userID, "attempt", attempt)
	}
	return nil, errWalletNumbersExhausted
}

func (r *Repository) GetWalletByUser(ctx context.Context, tx *gorm.DB, userID uint64) (*model.Wallet, error) {
	return r.findWallet(tx.WithContext(ctx).Where("user_id = ?", userID))
}

func (r *Repository) GetWalletByNumber(ctx context.Context, tx *gorm.DB, number string) (*model.Wallet, error) {
	return r.findWallet(tx.WithContext(ctx).Where("wallet_number = ?", number))
}

// GetWalletForUpdate locks wallet row.
func (r *Repository) GetWalletForUpdate(ctx context.Context, tx *gorm.DB, walletID uint64) (*model.Wallet, error) {
	return r.findWallet(tx.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", walletID))
}

func (r *Repository) findWallet(q *gorm.DB) (*model.Wallet, error) {
	var w model.Wallet
	if err := q.First(&w).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrWalletNotFound
		}
		return nil, err
	}
	return &w, nil
}

// LockWalletsOrdered locks the given wallets in ascending id order, so two
// units locking the same pair can never deadlock.
func (r *Repository) LockWalletsOrdered(ctx context.Context, tx *gorm.DB, walletIDs ...uint64) (map[uint64]*model.Wallet, error) {
	ids := append([]uint64(nil), walletIDs...)
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	locked := make(map[uint64]*model.Wallet, len(ids))
	for _, id := range ids {
		if _, ok := locked[id]; ok {
			continue
		}
		w, err := r.GetWalletForUpdate(ctx, tx, id)
		if err != nil {
			return nil, err
		}
		locked[id] = w
	}
	return locked, nil
}

// AdjustBalance applies delta and returns the new balance. The update is
// conditional, so a debit that would go negative touches nothing.
func (r *Repository) AdjustBalance(ctx context.Context, tx *gorm.DB, walletID uint64, delta int64) (int64, error) {
	res := tx.WithContext(ctx).
		Model(&model.Wallet{}).
		Where("id = ? AND balance + ? >= 0", walletID, delta).
		Updates(map[string]interface{}{
			"balance":    gorm.Expr("balance + ?", delta),
			"version":    gorm.Expr("version + 1"),
			"updated_at": time.Now(),
		})
	if res.Error != nil {
		return 0, res.Error
	}
	if res.RowsAffected == 0 {
		var n int64
		if err := tx.WithContext(ctx).Model(&model.Wallet{}).Where("id = ?", walletID).Count(&n).Error; err != nil {
			return 0, err
		}
		if n == 0 {
			return 0, ErrWalletNotFound
		}
		return 0, ErrInsufficientFunds
	}
	var w model.Wallet
	if err := tx.WithContext(ctx).Select("balance").Where("id = ?", walletID).First(&w).Error; err != nil {
		return 0, err
	}
	return w.Balance, nil
}

// AppendTransaction inserts a ledger entry and returns its id.
func (r *Repository) AppendTransaction(ctx context.Context, tx *gorm.DB, t *model.Transaction) (uint64, error) {
	if err := tx.WithContext(ctx).Create(t).Error; err != nil {
		return 0, err
	}
	return t.ID, nil
}

// ListTransactions returns the wallet's entries newest first. limit <= 0
// returns all of them.
func (r *Repository) ListTransactions(ctx context.Context, tx *gorm.DB, walletID uint64, limit int) ([]model.Transaction, error) {
	q := tx.WithContext(ctx).
		Where("wallet_id = ?", walletID).
		Order("created_at desc").
		Order("id desc")
	if limit > 0 {
		q = q.Limit(limit)
	}
	var txs []model.Transaction
	err := q.Find(&txs).Error
	return txs, err
}

func (r *Repository) FindTransactionByReference(ctx context.Context, tx *gorm.DB, reference string) (*model.Transaction, error) {
	var t model.Transaction
	if err := tx.WithContext(ctx).Where("reference = ?", reference).First(&t).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrTxNotFound
		}
		return nil, err
	}
	return &t, nil
}

// CompleteTransaction moves a pending entry to completed, recording the
// settled amount and the balance it produced.
func (r *Repository) CompleteTransaction(ctx context.Context, tx *gorm.DB, id uint64, amount, balanceAfter int64) error {
	return r.finishPending(ctx, tx, id, map[string]interface{}{
		"status":        model.TxCompleted,
		"amount":        amount,
		"balance_after": balanceAfter,
		"updated_at":    time.Now(),
	})
}

// FailTransaction moves a pending entry to failed.
func (r *Repository) FailTransaction(ctx context.Context, tx *gorm.DB, id uint64) error {
	return r.finishPending(ctx, tx, id, map[string]interface{}{
		"status":     model.TxFailed,
		"updated_at": time.Now(),
	})
}

func (r *Repository) finishPending(ctx context.Context, tx *gorm.DB, id uint64, fields map[string]interface{}) error {
	res := tx.WithContext(ctx).
		Model(&model.Transaction{}).
		Where("id = ? AND status = ?", id, model.TxPending).
		Updates(fields)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrTxNotPending
	}
	return nil
}
