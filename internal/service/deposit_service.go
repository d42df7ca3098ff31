package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/richardliu001/wallet-ledger/internal/apperr"
	"github.com/richardliu001/wallet-ledger/internal/auth"
	"github.com/richardliu001/wallet-ledger/internal/metrics"
	"github.com/richardliu001/wallet-ledger/internal/model"
	"github.com/richardliu001/wallet-ledger/internal/money"
	"github.com/richardliu001/wallet-ledger/internal/paystack"
	"github.com/richardliu001/wallet-ledger/internal/repo"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var (
	ErrInvalidSignature   = apperr.New(apperr.SignatureMismatch, "invalid signature")
	ErrMalformedEvent     = apperr.New(apperr.Validation, "malformed event")
	ErrUnknownTransaction = apperr.New(apperr.Conflict, "unknown or already settled transaction")
	ErrInitFailed         = apperr.New(apperr.Upstream, "deposit initialization failed")
	ErrVerifyFailed       = apperr.New(apperr.Upstream, "deposit verification failed")

	errAlreadyProcessed = apperr.New(apperr.DuplicateEvent, "event already processed")
)

// Processor is the external payment processor.
type Processor interface {
	Initialize(ctx context.Context, req paystack.InitializeRequest) (*paystack.InitializeResult, error)
	Verify(ctx context.Context, reference string) (*paystack.VerifyResult, error)
}

// DepositConfig holds the knobs of the deposit flow. Amounts are in kobo.
type DepositConfig struct {
	SigningSecret  string
	CallbackURL    string
	MinAmount      int64
	StatusCacheTTL time.Duration
}

// DepositService initializes deposits and settles them from processor webhooks.
type DepositService struct {
	repo      repo.Store
	gate      auth.Authorizer
	processor Processor
	cfg       DepositConfig
	log       *zap.SugaredLogger
}

func NewDepositService(r repo.Store, gate auth.Authorizer, proc Processor, cfg DepositConfig, logger *zap.SugaredLogger) *DepositService {
	return &DepositService{repo: r, gate: gate, processor: proc, cfg: cfg, log: logger}
}

type DepositInit struct {
	Reference        string
	EntryID          uint64
	AuthorizationURL string
}

// InitializeDeposit records a pending deposit and starts the checkout with
// the processor. It never touches the balance. If the processor refuses, the
// entry is marked failed so no later event can settle it.
func (s *DepositService) InitializeDeposit(ctx context.Context, p auth.Principal, amount int64) (*DepositInit, error) {
	if err := s.gate.Authorize(p, auth.PermDeposit); err != nil {
		return nil, err
	}
	if amount < s.cfg.MinAmount {
		return nil, apperr.Wrap(apperr.Validation,
			fmt.Sprintf("minimum deposit is ₦%s", money.FormatMajor(s.cfg.MinAmount)), ErrInvalidAmount)
	}
	w, err := s.repo.GetWalletByUser(ctx, s.repo.DB(ctx), p.UserID)
	if err != nil {
		return nil, err
	}
	email := p.Email
	if email == "" {
		u, err := s.repo.GetUser(ctx, s.repo.DB(ctx), p.UserID)
		if err != nil {
			return nil, err
		}
		email = u.Email
	}

	ref := uuid.NewString()
	entry := &model.Transaction{
		WalletID: w.ID, Type: model.TxDeposit, Amount: amount,
		Status: model.TxPending, Reference: &ref,
	}
	err = s.repo.WithinTx(ctx, func(ctx context.Context, tx *gorm.DB) error {
		_, err := s.repo.AppendTransaction(ctx, tx, entry)
		return err
	})
	if err != nil {
		return nil, err
	}

	res, err := s.processor.Initialize(ctx, paystack.InitializeRequest{
		Email: email, Amount: amount, Reference: ref, CallbackURL: s.cfg.CallbackURL,
	})
	if err != nil {
		s.log.Errorw("deposit initialization failed", "reference", ref, "err", err)
		failErr := s.repo.WithinTx(ctx, func(ctx context.Context, tx *gorm.DB) error {
			return s.repo.FailTransaction(ctx, tx, entry.ID)
		})
		if failErr != nil {
			s.log.Errorw("mark deposit failed", "reference", ref, "err", failErr)
		}
		return nil, apperr.Wrap(apperr.Upstream, ErrInitFailed.Msg, err)
	}

	s.log.Infow("deposit initialized", "reference", ref, "wallet_id", w.ID, "amount", amount)
	return &DepositInit{Reference: ref, EntryID: entry.ID, AuthorizationURL: res.AuthorizationURL}, nil
}

type SettlementResult string

const (
	Settled SettlementResult = "settled"
	Ignored SettlementResult = "ignored"
)

// Reasons attached to an Ignored settlement.
const (
	ReasonUnhandledEvent   = "unhandled_event"
	ReasonAlreadyProcessed = "already_processed"
)

// Settlement is the outcome of an accepted webhook delivery. Rejections are
// returned as errors instead.
type Settlement struct {
	Result    SettlementResult
	Reason    string
	Reference string
	WalletID  uint64
	Amount    int64
	Balance   int64
}

// SettleDeposit applies a processor webhook. The signature is checked over
// the exact raw bytes before anything else. The idempotency claim, the
// credit and the pending -> completed transition commit as one unit, so a
// reference credits its wallet at most once however often it is delivered.
func (s *DepositService) SettleDeposit(ctx context.Context, raw []byte, signature string) (*Settlement, error) {
	st, err := s.settle(ctx, raw, signature)
	switch {
	case err != nil:
		metrics.Settlements.WithLabelValues(string(apperr.KindOf(err))).Inc()
	case st.Reason == ReasonAlreadyProcessed:
		metrics.Settlements.WithLabelValues("duplicate").Inc()
	default:
		metrics.Settlements.WithLabelValues(string(st.Result)).Inc()
	}
	return st, err
}

func (s *DepositService) settle(ctx context.Context, raw []byte, signature string) (*Settlement, error) {
	if !paystack.VerifySignature(s.cfg.SigningSecret, raw, signature) {
		s.log.Warnw("webhook signature mismatch", "bytes", len(raw))
		return nil, ErrInvalidSignature
	}
	evt, err := paystack.ParseEvent(raw)
	if err != nil {
		return nil, apperr.Wrap(apperr.Validation, ErrMalformedEvent.Msg, err)
	}
	if evt.Event != paystack.EventChargeSuccess {
		s.log.Infow("webhook event ignored", "event", evt.Event)
		return &Settlement{Result: Ignored, Reason: ReasonUnhandledEvent, Reference: evt.Data.Reference}, nil
	}
	ref, amount := evt.Data.Reference, evt.Data.Amount
	if ref == "" || amount <= 0 {
		return nil, ErrMalformedEvent
	}
	if evt.Data.Currency != "" && evt.Data.Currency != paystack.Currency {
		s.log.Warnw("charge in unexpected currency, crediting as kobo",
			"reference", ref, "currency", evt.Data.Currency, "amount", amount)
	}

	st := &Settlement{Result: Settled, Reference: ref, Amount: amount}
	err = s.repo.WithinTx(ctx, func(ctx context.Context, tx *gorm.DB) error {
		claim, err := s.repo.TryClaim(ctx, tx, ref)
		if err != nil {
			return err
		}
		if claim == repo.AlreadyClaimed {
			return errAlreadyProcessed
		}

		entry, err := s.repo.FindTransactionByReference(ctx, tx, ref)
		if err != nil {
			if errors.Is(err, repo.ErrTxNotFound) {
				return ErrUnknownTransaction
			}
			return err
		}
		if entry.Type != model.TxDeposit || entry.Status != model.TxPending {
			return ErrUnknownTransaction
		}
		if entry.Amount != amount {
			s.log.Warnw("settled amount differs from initialized amount",
				"reference", ref, "initialized", entry.Amount, "confirmed", amount)
		}

		bal, err := s.repo.AdjustBalance(ctx, tx, entry.WalletID, amount)
		if err != nil {
			return err
		}
		if err := s.repo.CompleteTransaction(ctx, tx, entry.ID, amount, bal); err != nil {
			if errors.Is(err, repo.ErrTxNotPending) {
				return ErrUnknownTransaction
			}
			return err
		}

		out, err := newOutboxEvent(entry.WalletID, model.EventDepositSettled, map[string]interface{}{
			"reference": ref,
			"wallet_id": entry.WalletID,
			"amount":    amount,
		})
		if err != nil {
			return err
		}
		if err := s.repo.CreateOutboxEvent(ctx, tx, out); err != nil {
			return err
		}
		st.WalletID, st.Balance = entry.WalletID, bal
		return nil
	})
	switch {
	case errors.Is(err, errAlreadyProcessed):
		s.log.Infow("webhook already processed", "reference", ref)
		return &Settlement{Result: Ignored, Reason: ReasonAlreadyProcessed, Reference: ref}, nil
	case errors.Is(err, ErrUnknownTransaction):
		s.log.Warnw("webhook for unknown or settled transaction", "reference", ref)
		return nil, err
	case err != nil:
		s.log.Errorw("settle deposit", "reference", ref, "err", err)
		return nil, err
	}
	s.log.Infow("deposit settled", "reference", ref, "wallet_id", st.WalletID, "amount", amount)
	return st, nil
}

// DepositStatus is the processor's answer for one of the caller's deposits.
type DepositStatus struct {
	Reference string `json:"reference"`
	Status    string `json:"status"`
	Amount    int64  `json:"amount"`
}

// CheckDepositStatus asks the processor about reference. It is read-only:
// only the webhook path credits wallets, so there is a single credit source.
func (s *DepositService) CheckDepositStatus(ctx context.Context, p auth.Principal, reference string) (*DepositStatus, error) {
	if err := s.gate.Authorize(p, auth.PermDeposit); err != nil {
		return nil, err
	}
	w, err := s.repo.GetWalletByUser(ctx, s.repo.DB(ctx), p.UserID)
	if err != nil {
		return nil, err
	}
	entry, err := s.repo.FindTransactionByReference(ctx, s.repo.DB(ctx), reference)
	if err != nil {
		return nil, err
	}
	if entry.WalletID != w.ID || entry.Type != model.TxDeposit {
		return nil, repo.ErrTxNotFound
	}

	if cached, err := s.repo.GetCachedDepositStatus(ctx, reference); err == nil {
		var ds DepositStatus
		if json.Unmarshal([]byte(cached), &ds) == nil {
			return &ds, nil
		}
	}

	res, err := s.processor.Verify(ctx, reference)
	if err != nil {
		s.log.Warnw("deposit verification failed", "reference", reference, "err", err)
		return nil, apperr.Wrap(apperr.Upstream, ErrVerifyFailed.Msg, err)
	}
	ds := &DepositStatus{Reference: reference, Status: res.Status, Amount: res.Amount}
	if body, err := json.Marshal(ds); err == nil {
		if err := s.repo.CacheDepositStatus(ctx, reference, string(body), s.cfg.StatusCacheTTL); err != nil {
			s.log.Warn(err)
		}
	}
	return ds, nil
}
