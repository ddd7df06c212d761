package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Transaction is one immutable ledger entry. Both sides carry full
// before/after balance snapshots so account balances can be reconstructed
// from the ledger alone if the live rows are ever found inconsistent.
type Transaction struct {
	ID uuid.UUID `json:"id" db:"id"`

	SenderBalanceBefore   decimal.Decimal `json:"sender_balance_before" db:"sender_balance_before"`
	SenderBalanceAfter    decimal.Decimal `json:"sender_balance_after" db:"sender_balance_after"`
	ReceiverBalanceBefore decimal.Decimal `json:"receiver_balance_before" db:"receiver_balance_before"`
	ReceiverBalanceAfter  decimal.Decimal `json:"receiver_balance_after" db:"receiver_balance_after"`

	TransferAmount decimal.Decimal `json:"transfer_amount" db:"transfer_amount"`
	TransferFee    decimal.Decimal `json:"transfer_fee" db:"transfer_fee"`
	Currency       string          `json:"currency" db:"currency"`

	SenderID   uuid.UUID `json:"sender_id" db:"sender_id"`
	ReceiverID uuid.UUID `json:"receiver_id" db:"receiver_id"`

	PaymentLinkID *uuid.UUID `json:"payment_link_id,omitempty" db:"payment_link_id"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
}
