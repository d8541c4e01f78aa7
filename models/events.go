package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Event types written to the outbox.
const (
	EventPaymentSettled = "payment.settled"
	EventPaymentFailed  = "payment.failed"
	EventPayoutReleased = "payout.released"
)

// PaymentSettledEvent is emitted once per payment that reaches paid.
type PaymentSettledEvent struct {
	EventType          string          `json:"event_type"`
	PaymentID          string          `json:"payment_id"`
	EntityType         EntityType      `json:"entity_type"`
	EntityID           string          `json:"entity_id"`
	UserID             string          `json:"user_id"`
	GatewayTxnID       string          `json:"gateway_txn_id"`
	Amount             decimal.Decimal `json:"amount"`
	ReceivedAmount     decimal.Decimal `json:"received_amount"`
	RegistrationNumber string          `json:"registration_number,omitempty"`
	Timestamp          time.Time       `json:"timestamp"`
}

// PaymentFailedEvent is emitted when the gateway reports a failed or cancelled payment.
type PaymentFailedEvent struct {
	EventType    string     `json:"event_type"`
	PaymentID    string     `json:"payment_id"`
	EntityType   EntityType `json:"entity_type"`
	EntityID     string     `json:"entity_id"`
	GatewayTxnID string     `json:"gateway_txn_id"`
	Reason       string     `json:"reason"`
	Timestamp    time.Time  `json:"timestamp"`
}

// PayoutReleasedEvent is emitted for every payout record created.
type PayoutReleasedEvent struct {
	EventType         string          `json:"event_type"`
	PayoutID          string          `json:"payout_id"`
	WorkshopID        string          `json:"workshop_id"`
	CreatorID         string          `json:"creator_id"`
	ReleaseType       string          `json:"release_type"`
	ReleasedBy        string          `json:"released_by"`
	TotalRevenue      decimal.Decimal `json:"total_revenue"`
	TotalFees         decimal.Decimal `json:"total_fees"`
	NetAmount         decimal.Decimal `json:"net_amount"`
	TotalTransactions int             `json:"total_transactions"`
	SupersedesPayout  string          `json:"supersedes_payout,omitempty"`
	Timestamp         time.Time       `json:"timestamp"`
}
