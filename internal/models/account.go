package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// AccountStatus values are persisted as integers, so the order is fixed.
type AccountStatus int

const (
	AccountActive   AccountStatus = 1
	AccountDisabled AccountStatus = 2
	AccountPending  AccountStatus = 3
)

type AccountType int

const (
	AccountTypeCurrent AccountType = iota
	AccountTypeSavings
	AccountTypeEmployee
	AccountTypeMerchant
)

// ParseAccountType maps the API-facing name onto its stored value.
func ParseAccountType(s string) (AccountType, bool) {
	switch s {
	case "Current":
		return AccountTypeCurrent, true
	case "Savings":
		return AccountTypeSavings, true
	case "Employee":
		return AccountTypeEmployee, true
	case "Merchant":
		return AccountTypeMerchant, true
	}
	return 0, false
}

func (t AccountType) String() string {
	switch t {
	case AccountTypeCurrent:
		return "Current"
	case AccountTypeSavings:
		return "Savings"
	case AccountTypeEmployee:
		return "Employee"
	case AccountTypeMerchant:
		return "Merchant"
	}
	return "Unknown"
}

// BankAccount is a ledger participant. Balances and limits are fixed-point
// decimals; LastTransferReceiverID/LastTransferTime back the double-spend
// guard and are only written on the sender side of a successful transfer.
type BankAccount struct {
	ID          uuid.UUID     `json:"id" db:"id"`
	IBAN        string        `json:"iban" db:"iban"`
	OwnerUserID string        `json:"owner_user_id" db:"owner_user_id"`
	Status      AccountStatus `json:"status" db:"status"`
	Type        AccountType   `json:"type" db:"type"`

	Balance         decimal.Decimal `json:"balance" db:"balance"`
	BalanceCurrency string          `json:"balance_currency" db:"balance_currency"`
	TransferFee     decimal.Decimal `json:"transfer_fee" db:"transfer_fee"`

	MinBalance  decimal.Decimal `json:"min_balance" db:"min_balance"`
	MaxBalance  decimal.Decimal `json:"max_balance" db:"max_balance"`
	MaxTransfer decimal.Decimal `json:"max_transfer" db:"max_transfer"`
	MinTransfer decimal.Decimal `json:"min_transfer" db:"min_transfer"`

	LastTransferReceiverID *uuid.UUID `json:"last_transfer_receiver_id,omitempty" db:"last_transfer_receiver_id"`
	LastTransferTime       *time.Time `json:"last_transfer_time,omitempty" db:"last_transfer_time"`

	IsPrimary       bool       `json:"is_primary" db:"is_primary"`
	ParentAccountID *uuid.UUID `json:"parent_account_id,omitempty" db:"parent_account_id"`

	CreatedAt time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt time.Time  `json:"updated_at" db:"updated_at"`
	DeletedAt *time.Time `json:"deleted_at,omitempty" db:"deleted_at"`
}
