// Package giftcards tracks prepaid balances. Debits are serialized through a
// row lock so concurrent redemptions can never overdraw a card.
package giftcards

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Gift card statuses.
const (
	StatusActive   = "active"
	StatusEmpty    = "empty"
	StatusCanceled = "canceled"
)

// GiftCard is a balance-bearing record redeemable at checkout.
type GiftCard struct {
	ID             uuid.UUID       `json:"id"`
	Code           string          `json:"code"`
	Amount         decimal.Decimal `json:"amount"`
	Remaining      decimal.Decimal `json:"remaining"`
	Status         string          `json:"status"`
	BuyerEmail     string          `json:"buyer_email"`
	RecipientEmail string          `json:"recipient_email"`
	CreatedAt      time.Time       `json:"created_at"`
}

// Redemption is one append-only ledger entry against a card.
type Redemption struct {
	ID            uuid.UUID       `json:"id"`
	GiftCardID    uuid.UUID       `json:"gift_card_id"`
	Amount        decimal.Decimal `json:"amount"`
	AppointmentID *uuid.UUID      `json:"appointment_id,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
}
