package model

import "time"

type TransactionType string

const (
	TxDeposit          TransactionType = "deposit"
	TxTransferSent     TransactionType = "transfer_sent"
	TxTransferReceived TransactionType = "transfer_received"
)

type TransactionStatus string

const (
	TxPending   TransactionStatus = "pending"
	TxCompleted TransactionStatus = "completed"
	TxFailed    TransactionStatus = "failed"
)

// ReferenceSize is the width of the reference column.
const ReferenceSize = 128

// Transaction is one ledger entry. Amount is signed: negative for
// transfer_sent, positive otherwise.
type Transaction struct {
	ID                   uint64            `gorm:"primaryKey"`
	WalletID             uint64            `gorm:"not null;index:idx_tx_wallet_created,priority:1"`
	Type                 TransactionType   `gorm:"size:32;not null"`
	Amount               int64             `gorm:"not null"`
	Status               TransactionStatus `gorm:"size:16;not null"`
	Reference            *string           `gorm:"size:128;uniqueIndex"`
	CounterpartyWalletID *uint64           `gorm:"index"`
	TransferGroup        *string           `gorm:"size:64;index"`
	BalanceAfter         *int64            `gorm:"column:balance_after"`
	CreatedAt            time.Time         `gorm:"autoCreateTime;index:idx_tx_wallet_created,priority:2,sort:desc"`
	UpdatedAt            time.Time         `gorm:"autoUpdateTime"`
}

func (Transaction) TableName() string { return "wallet_transaction" }

// AbsAmount is the unsigned amount.
func (t Transaction) AbsAmount() int64 {
	if t.Amount < 0 {
		return -t.Amount
	}
	return t.Amount
}
