package http

import (
	"time"

	"github.com/richardliu001/wallet-ledger/internal/model"
	"github.com/richardliu001/wallet-ledger/internal/money"
)

// transactionView is how a ledger entry is shown to its owner: both transfer
// legs read as "transfer" with a direction, amounts are absolute and
// completed entries read as "success".
type transactionView struct {
	ID            uint64    `json:"id"`
	Type          string    `json:"type"`
	Direction     string    `json:"direction"`
	Amount        int64     `json:"amount"`
	AmountDisplay string    `json:"amount_display"`
	Status        string    `json:"status"`
	Reference     string    `json:"reference,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}

func presentTransaction(t model.Transaction) transactionView {
	v := transactionView{
		ID:            t.ID,
		Type:          string(t.Type),
		Direction:     "credit",
		Amount:        t.AbsAmount(),
		AmountDisplay: money.FormatMajor(t.AbsAmount()),
		Status:        string(t.Status),
		CreatedAt:     t.CreatedAt,
	}
	switch t.Type {
	case model.TxTransferSent:
		v.Type, v.Direction = "transfer", "debit"
	case model.TxTransferReceived:
		v.Type = "transfer"
	}
	if t.Status == model.TxCompleted {
		v.Status = "success"
	}
	if t.Reference != nil && t.Type == model.TxDeposit {
		v.Reference = *t.Reference
	}
	return v
}

func presentTransactions(txs []model.Transaction) []transactionView {
	out := make([]transactionView, 0, len(txs))
	for _, t := range txs {
		out = append(out, presentTransaction(t))
	}
	return out
}
