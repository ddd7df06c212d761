package services

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTreasuryService_FundAccount(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	service := NewTreasuryService(db, NewLedgerService(db))
	ctx := context.Background()

	floatID := uuid.New()
	treasuryAccID := uuid.New()
	destID := uuid.New()

	expectFloat := func(balance string) {
		mock.ExpectQuery("SELECT id, balance, currency, created_at FROM treasury_accounts").
			WillReturnRows(sqlmock.NewRows([]string{"id", "balance", "currency", "created_at"}).
				AddRow(floatID.String(), balance, "IQD", time.Now()))
	}

	t.Run("rejects non-positive amount", func(t *testing.T) {
		_, err := service.FundAccount(ctx, testReceiverIban, decimal.Zero)
		assert.ErrorIs(t, err, ErrInvalidFundingAmount)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("rejects when the float cannot cover it", func(t *testing.T) {
		expectFloat("50")

		_, err := service.FundAccount(ctx, testReceiverIban, decimal.NewFromInt(100))
		assert.ErrorIs(t, err, ErrInsufficientTreasury)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("rejects unknown destination before debiting the float", func(t *testing.T) {
		expectFloat("100000")
		mock.ExpectQuery("SELECT EXISTS").
			WithArgs(testReceiverIban).
			WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))

		_, err := service.FundAccount(ctx, testReceiverIban, decimal.NewFromInt(100))
		assert.ErrorIs(t, err, ErrFundingDestinationMissing)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("funds through the ledger deposit", func(t *testing.T) {
		expectFloat("100000")
		mock.ExpectQuery("SELECT EXISTS").
			WithArgs(testReceiverIban).
			WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))
		mock.ExpectExec("UPDATE treasury_accounts SET balance").
			WillReturnResult(sqlmock.NewResult(0, 1))

		mock.ExpectBegin()
		mock.ExpectQuery("SELECT id, balance, balance_currency, transfer_fee").
			WithArgs(TreasuryIban, 1).
			WillReturnRows(sqlmock.NewRows(accountColumns).
				AddRow(treasuryAccID.String(), "1000000", "IQD", "0", "-1000000000", "1000000000", "1000000000", "0", nil, nil))
		mock.ExpectQuery("SELECT id, balance, balance_currency, transfer_fee").
			WithArgs(testReceiverIban, 1).
			WillReturnRows(sqlmock.NewRows(accountColumns).
				AddRow(destID.String(), "0", "IQD", "0", "0", "1000000", "100000", "1", nil, nil))
		mock.ExpectExec("INSERT INTO transactions").WillReturnResult(sqlmock.NewResult(1, 1))
		mock.ExpectExec("UPDATE bank_accounts").WillReturnResult(sqlmock.NewResult(1, 1))
		mock.ExpectExec("UPDATE bank_accounts").WillReturnResult(sqlmock.NewResult(1, 1))
		mock.ExpectCommit()

		entry, err := service.FundAccount(ctx, testReceiverIban, decimal.NewFromInt(100))
		require.NoError(t, err)
		assert.Equal(t, destID, entry.ReceiverID)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("compensates the float when the deposit is rejected", func(t *testing.T) {
		expectFloat("100000")
		mock.ExpectQuery("SELECT EXISTS").
			WithArgs(testReceiverIban).
			WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

		// Debit the float.
		mock.ExpectExec("UPDATE treasury_accounts SET balance").
			WillReturnResult(sqlmock.NewResult(0, 1))

		// The deposit itself hits a max-balance rejection.
		mock.ExpectBegin()
		mock.ExpectQuery("SELECT id, balance, balance_currency, transfer_fee").
			WithArgs(TreasuryIban, 1).
			WillReturnRows(sqlmock.NewRows(accountColumns).
				AddRow(treasuryAccID.String(), "1000000", "IQD", "0", "-1000000000", "1000000000", "1000000000", "0", nil, nil))
		mock.ExpectQuery("SELECT id, balance, balance_currency, transfer_fee").
			WithArgs(testReceiverIban, 1).
			WillReturnRows(sqlmock.NewRows(accountColumns).
				AddRow(destID.String(), "990", "IQD", "0", "0", "1000", "100000", "1", nil, nil))
		mock.ExpectRollback()

		// Compensation credits the float back.
		mock.ExpectExec("UPDATE treasury_accounts SET balance").
			WillReturnResult(sqlmock.NewResult(0, 1))

		_, err := service.FundAccount(ctx, testReceiverIban, decimal.NewFromInt(100))
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrExceededReceiverMaxBalance)
		assert.Contains(t, err.Error(), "failed to fund account")
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}
