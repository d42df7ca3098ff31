package service

import (
	"encoding/json"

	"github.com/richardliu001/wallet-ledger/internal/model"
)

func newOutboxEvent(walletID uint64, eventType string, payload map[string]interface{}) (*model.OutboxEvent, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return &model.OutboxEvent{
		Aggregate:   "Wallet",
		AggregateID: walletID,
		EventType:   eventType,
		Payload:     string(body),
	}, nil
}
