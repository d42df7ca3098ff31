package paystack

import (
	"encoding/json"
	"fmt"
)

// EventChargeSuccess is the only event that settles a deposit.
const EventChargeSuccess = "charge.success"

// Currency is the only currency wallets hold.
const Currency = "NGN"

// Event is the webhook envelope.
type Event struct {
	Event string    `json:"event"`
	Data  EventData `json:"data"`
}

// EventData holds the charge. Amount is in kobo.
type EventData struct {
	Reference string `json:"reference"`
	Amount    int64  `json:"amount"`
	Status    string `json:"status"`
	Currency  string `json:"currency"`
}

// ParseEvent decodes a webhook body.
func ParseEvent(body []byte) (*Event, error) {
	var evt Event
	if err := json.Unmarshal(body, &evt); err != nil {
		return nil, fmt.Errorf("decode webhook event: %w", err)
	}
	if evt.Event == "" {
		return nil, fmt.Errorf("decode webhook event: missing event type")
	}
	return &evt, nil
}
