package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/richardliu001/wallet-ledger/internal/apperr"
	"github.com/richardliu001/wallet-ledger/internal/auth"
	"github.com/richardliu001/wallet-ledger/internal/metrics"
	"github.com/richardliu001/wallet-ledger/internal/model"
	"github.com/richardliu001/wallet-ledger/internal/money"
	"github.com/richardliu001/wallet-ledger/internal/repo"
	"github.com/richardliu001/wallet-ledger/internal/walletnumber"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var (
	// ErrInvalidAmount means the amount is missing, non-positive or below the minimum.
	ErrInvalidAmount       = apperr.New(apperr.Validation, "invalid amount")
	ErrMissingWalletNumber = apperr.New(apperr.Validation, "wallet_number is required")
	ErrInvalidWalletNumber = apperr.New(apperr.Validation, "wallet_number must be 13 digits starting with 4")
	ErrSenderNotFound      = apperr.New(apperr.NotFound, "sender wallet not found")
	ErrRecipientNotFound   = apperr.New(apperr.NotFound, "recipient wallet not found")
	ErrSelfTransfer        = apperr.New(apperr.SelfTransfer, "cannot transfer to your own wallet")
	// ErrIdempotencyMismatch means a transfer key was reused for a different request.
	ErrIdempotencyMismatch = apperr.New(apperr.Conflict, "idempotency key reused with a different request")
)

// WalletService is the transfer engine and the read side of the ledger.
type WalletService struct {
	repo        repo.Store
	gate        auth.Authorizer
	log         *zap.SugaredLogger
	minTransfer int64
}

// NewWalletService returns WalletService. minTransfer is in kobo.
func NewWalletService(r repo.Store, gate auth.Authorizer, minTransfer int64, logger *zap.SugaredLogger) *WalletService {
	return &WalletService{repo: r, gate: gate, log: logger, minTransfer: minTransfer}
}

// TransferRequest moves Amount kobo from the caller to WalletNumber.
// IdempotencyKey is optional at this layer; a repeat with the same key
// replays the first outcome instead of moving money twice.
type TransferRequest struct {
	WalletNumber   string
	Amount         int64
	IdempotencyKey string
}

type TransferResult struct {
	Status           model.TransactionStatus
	Amount           int64
	RecipientNumber  string
	NewSenderBalance int64
	SentEntryID      uint64
	ReceivedEntryID  uint64
	Replayed         bool
}

// Transfer moves money between wallets as one atomic unit: both balances
// and both ledger entries commit together or not at all.
func (s *WalletService) Transfer(ctx context.Context, p auth.Principal, req TransferRequest) (*TransferResult, error) {
	res, err := s.transfer(ctx, p, req)
	switch {
	case err != nil:
		metrics.Transfers.WithLabelValues(string(apperr.KindOf(err))).Inc()
		if apperr.KindOf(err) == apperr.Internal {
			s.log.Errorw("transfer failed", "user_id", p.UserID, "err", err)
		}
	case res.Replayed:
		metrics.Transfers.WithLabelValues("replayed").Inc()
	default:
		metrics.Transfers.WithLabelValues("completed").Inc()
	}
	return res, err
}

func (s *WalletService) transfer(ctx context.Context, p auth.Principal, req TransferRequest) (*TransferResult, error) {
	if err := s.gate.Authorize(p, auth.PermTransfer); err != nil {
		return nil, err
	}
	if req.WalletNumber == "" {
		return nil, ErrMissingWalletNumber
	}
	if !walletnumber.Valid(req.WalletNumber) {
		return nil, ErrInvalidWalletNumber
	}
	if req.Amount < s.minTransfer {
		return nil, apperr.Wrap(apperr.Validation,
			fmt.Sprintf("minimum transfer is ₦%s", money.FormatMajor(s.minTransfer)), ErrInvalidAmount)
	}

	sender, err := s.repo.GetWalletByUser(ctx, s.repo.DB(ctx), p.UserID)
	if err != nil {
		if errors.Is(err, repo.ErrWalletNotFound) {
			return nil, ErrSenderNotFound
		}
		return nil, err
	}
	recipient, err := s.repo.GetWalletByNumber(ctx, s.repo.DB(ctx), req.WalletNumber)
	if err != nil {
		if errors.Is(err, repo.ErrWalletNotFound) {
			return nil, ErrRecipientNotFound
		}
		return nil, err
	}
	if sender.ID == recipient.ID {
		return nil, ErrSelfTransfer
	}

	var result *TransferResult
	err = s.repo.WithinTx(ctx, func(ctx context.Context, tx *gorm.DB) error {
		var claimRef *string
		if req.IdempotencyKey != "" {
			ref := transferClaimRef(sender.ID, req.IdempotencyKey)
			claim, err := s.repo.TryClaim(ctx, tx, ref)
			if err != nil {
				return err
			}
			if claim == repo.AlreadyClaimed {
				result, err = s.replayTransfer(ctx, tx, ref, recipient, req)
				return err
			}
			claimRef = &ref
		}

		// re-read under lock; the balance seen before the unit may be stale
		locked, err := s.repo.LockWalletsOrdered(ctx, tx, sender.ID, recipient.ID)
		if err != nil {
			return err
		}
		if locked[sender.ID].Balance < req.Amount {
			return repo.ErrInsufficientFunds
		}

		senderBal, err := s.repo.AdjustBalance(ctx, tx, sender.ID, -req.Amount)
		if err != nil {
			return err
		}
		recipientBal, err := s.repo.AdjustBalance(ctx, tx, recipient.ID, req.Amount)
		if err != nil {
			return err
		}

		group := uuid.NewString()
		sent := &model.Transaction{
			WalletID: sender.ID, Type: model.TxTransferSent, Amount: -req.Amount,
			Status: model.TxCompleted, Reference: claimRef, CounterpartyWalletID: &recipient.ID,
			TransferGroup: &group, BalanceAfter: &senderBal,
		}
		received := &model.Transaction{
			WalletID: recipient.ID, Type: model.TxTransferReceived, Amount: req.Amount,
			Status: model.TxCompleted, CounterpartyWalletID: &sender.ID,
			TransferGroup: &group, BalanceAfter: &recipientBal,
		}
		if _, err := s.repo.AppendTransaction(ctx, tx, sent); err != nil {
			return err
		}
		if _, err := s.repo.AppendTransaction(ctx, tx, received); err != nil {
			return err
		}

		evt, err := newOutboxEvent(sender.ID, model.EventTransferCompleted, map[string]interface{}{
			"transfer_group": group,
			"from_wallet_id": sender.ID,
			"to_wallet_id":   recipient.ID,
			"amount":         req.Amount,
		})
		if err != nil {
			return err
		}
		if err := s.repo.CreateOutboxEvent(ctx, tx, evt); err != nil {
			return err
		}

		result = &TransferResult{
			Status:           model.TxCompleted,
			Amount:           req.Amount,
			RecipientNumber:  recipient.WalletNumber,
			NewSenderBalance: senderBal,
			SentEntryID:      sent.ID,
			ReceivedEntryID:  received.ID,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if !result.Replayed {
		s.log.Infow("transfer completed",
			"from_wallet_id", sender.ID, "to_wallet_id", recipient.ID, "amount", req.Amount)
	}
	return result, nil
}

// replayTransfer answers a repeated idempotency key with the first outcome.
func (s *WalletService) replayTransfer(ctx context.Context, tx *gorm.DB, ref string, recipient *model.Wallet, req TransferRequest) (*TransferResult, error) {
	sent, err := s.repo.FindTransactionByReference(ctx, tx, ref)
	if err != nil {
		if errors.Is(err, repo.ErrTxNotFound) {
			return nil, fmt.Errorf("claimed transfer %q has no ledger entry", ref)
		}
		return nil, err
	}
	if sent.AbsAmount() != req.Amount || sent.CounterpartyWalletID == nil || *sent.CounterpartyWalletID != recipient.ID {
		return nil, ErrIdempotencyMismatch
	}
	res := &TransferResult{
		Status:          sent.Status,
		Amount:          sent.AbsAmount(),
		RecipientNumber: recipient.WalletNumber,
		SentEntryID:     sent.ID,
		Replayed:        true,
	}
	if sent.BalanceAfter != nil {
		res.NewSenderBalance = *sent.BalanceAfter
	}
	return res, nil
}

// transferClaimRef digests the client key so the reference has a fixed
// length whatever the key is.
func transferClaimRef(senderWalletID uint64, key string) string {
	sum := sha256.Sum256([]byte(key))
	return fmt.Sprintf("transfer:%d:%s", senderWalletID, hex.EncodeToString(sum[:]))
}

// Balance is the caller's wallet as seen by the read endpoints.
type Balance struct {
	WalletNumber string
	Balance      int64
}

// GetBalance returns current wallet balance, read from the store.
func (s *WalletService) GetBalance(ctx context.Context, p auth.Principal) (*Balance, error) {
	if err := s.gate.Authorize(p, auth.PermRead); err != nil {
		return nil, err
	}
	w, err := s.repo.GetWalletByUser(ctx, s.repo.DB(ctx), p.UserID)
	if err != nil {
		return nil, err
	}
	return &Balance{WalletNumber: w.WalletNumber, Balance: w.Balance}, nil
}

// ListTransactions fetches the caller's entries, newest first.
func (s *WalletService) ListTransactions(ctx context.Context, p auth.Principal, limit int) ([]model.Transaction, error) {
	if err := s.gate.Authorize(p, auth.PermRead); err != nil {
		return nil, err
	}
	w, err := s.repo.GetWalletByUser(ctx, s.repo.DB(ctx), p.UserID)
	if err != nil {
		return nil, err
	}
	return s.repo.ListTransactions(ctx, s.repo.DB(ctx), w.ID, limit)
}
