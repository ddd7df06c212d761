package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// PayrollProfile links an employee account to a monthly salary. NextRunAt is
// advanced by the payroll runner after each successful deposit; a failed
// deposit leaves it untouched so the employee is retried next cycle.
type PayrollProfile struct {
	ID            uuid.UUID       `json:"id" db:"id"`
	BankAccountID uuid.UUID       `json:"bank_account_id" db:"bank_account_id"`
	MonthlySalary decimal.Decimal `json:"monthly_salary" db:"monthly_salary"`
	PayDayOfMonth int             `json:"pay_day_of_month" db:"pay_day_of_month"`
	NextRunAt     time.Time       `json:"next_run_at" db:"next_run_at"`
	IsActive      bool            `json:"is_active" db:"is_active"`
}

// TreasuryFloat is the institution's own funds. It is a single row and is not
// a ledger-tracked account; funding flows debit it outside the ledger's
// atomic unit and compensate on failure.
type TreasuryFloat struct {
	ID        uuid.UUID       `json:"id" db:"id"`
	Balance   decimal.Decimal `json:"balance" db:"balance"`
	Currency  string          `json:"currency" db:"currency"`
	CreatedAt time.Time       `json:"created_at" db:"created_at"`
}
