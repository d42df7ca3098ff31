package http

import (
	"testing"

	"github.com/richardliu001/wallet-ledger/internal/model"
	"github.com/stretchr/testify/assert"
)

func TestPresentTransaction(t *testing.T) {
	ref := "r1"
	tests := []struct {
		in        model.Transaction
		typ, dir  string
		status    string
		amount    int64
		reference string
	}{
		{in: model.Transaction{Type: model.TxTransferSent, Amount: -3000, Status: model.TxCompleted}, typ: "transfer", dir: "debit", status: "success", amount: 3000},
		{in: model.Transaction{Type: model.TxTransferReceived, Amount: 3000, Status: model.TxCompleted}, typ: "transfer", dir: "credit", status: "success", amount: 3000},
		{in: model.Transaction{Type: model.TxDeposit, Amount: 5000, Status: model.TxPending, Reference: &ref}, typ: "deposit", dir: "credit", status: "pending", amount: 5000, reference: "r1"},
		{in: model.Transaction{Type: model.TxDeposit, Amount: 5000, Status: model.TxFailed, Reference: &ref}, typ: "deposit", dir: "credit", status: "failed", amount: 5000, reference: "r1"},
	}
	for _, tt := range tests {
		v := presentTransaction(tt.in)
		assert.Equal(t, tt.typ, v.Type)
		assert.Equal(t, tt.dir, v.Direction)
		assert.Equal(t, tt.status, v.Status)
		assert.Equal(t, tt.amount, v.Amount)
		assert.Equal(t, tt.reference, v.Reference)
	}
}
