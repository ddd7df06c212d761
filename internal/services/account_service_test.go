package services

import (
	"context"
	"database/sql/driver"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/securebank/backend/internal/models"
)

var fullAccountColumns = []string{
	"id", "iban", "owner_user_id", "status", "type",
	"balance", "balance_currency", "transfer_fee",
	"min_balance", "max_balance", "max_transfer", "min_transfer",
	"last_transfer_receiver_id", "last_transfer_time",
	"is_primary", "parent_account_id", "created_at", "updated_at", "deleted_at",
}

func fullAccountRow(id uuid.UUID, iban, owner string, isPrimary bool) []driverValue {
	now := time.Now()
	return []driverValue{
		id.String(), iban, owner, 1, 0,
		"0", "IQD", "0",
		"0", "1000000000", "10000000", "1",
		nil, nil,
		isPrimary, nil, now, now, nil,
	}
}

type driverValue = driver.Value

func TestAccountService_CreateAccount(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	service := NewAccountService(db, NewIbanService(), "IQD")
	ctx := context.Background()

	t.Run("opens an active primary account", func(t *testing.T) {
		mock.ExpectExec("INSERT INTO bank_accounts").
			WillReturnResult(sqlmock.NewResult(1, 1))

		acc, err := service.CreateAccount(ctx, "user-1", models.AccountTypeCurrent)
		require.NoError(t, err)

		assert.Equal(t, models.AccountActive, acc.Status)
		assert.True(t, acc.IsPrimary)
		assert.True(t, acc.Balance.IsZero())
		assert.Equal(t, "IQD", acc.BalanceCurrency)
		assert.True(t, NewIbanService().Validate(acc.IBAN))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("regenerates the IBAN on a unique index collision", func(t *testing.T) {
		mock.ExpectExec("INSERT INTO bank_accounts").
			WillReturnError(&pq.Error{Code: "23505"})
		mock.ExpectExec("INSERT INTO bank_accounts").
			WillReturnResult(sqlmock.NewResult(1, 1))

		acc, err := service.CreateAccount(ctx, "user-1", models.AccountTypeCurrent)
		require.NoError(t, err)
		assert.True(t, NewIbanService().Validate(acc.IBAN))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("hard insert failure is not retried", func(t *testing.T) {
		mock.ExpectExec("INSERT INTO bank_accounts").
			WillReturnError(&pq.Error{Code: "23503"})

		_, err := service.CreateAccount(ctx, "user-1", models.AccountTypeCurrent)
		require.Error(t, err)
		assert.NotErrorIs(t, err, ErrIbanExhausted)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestAccountService_CreateSubAccount(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	service := NewAccountService(db, NewIbanService(), "IQD")
	ctx := context.Background()

	parentID := uuid.New()

	t.Run("inherits parent limits and currency", func(t *testing.T) {
		mock.ExpectQuery("SELECT id, iban, owner_user_id").
			WithArgs(parentID, "user-1").
			WillReturnRows(sqlmock.NewRows(fullAccountColumns).
				AddRow(fullAccountRow(parentID, testSenderIban, "user-1", true)...))
		mock.ExpectExec("INSERT INTO bank_accounts").
			WillReturnResult(sqlmock.NewResult(1, 1))

		acc, err := service.CreateSubAccount(ctx, "user-1", parentID, models.AccountTypeSavings)
		require.NoError(t, err)

		assert.False(t, acc.IsPrimary)
		require.NotNil(t, acc.ParentAccountID)
		assert.Equal(t, parentID, *acc.ParentAccountID)
		assert.Equal(t, "IQD", acc.BalanceCurrency)
		assert.NotEqual(t, testSenderIban, acc.IBAN)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("sub-account cannot parent another sub-account", func(t *testing.T) {
		mock.ExpectQuery("SELECT id, iban, owner_user_id").
			WithArgs(parentID, "user-1").
			WillReturnRows(sqlmock.NewRows(fullAccountColumns).
				AddRow(fullAccountRow(parentID, testSenderIban, "user-1", false)...))

		_, err := service.CreateSubAccount(ctx, "user-1", parentID, models.AccountTypeSavings)
		assert.ErrorIs(t, err, ErrAccountNotFound)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("parent owned by someone else", func(t *testing.T) {
		mock.ExpectQuery("SELECT id, iban, owner_user_id").
			WithArgs(parentID, "user-2").
			WillReturnRows(sqlmock.NewRows(fullAccountColumns))

		_, err := service.CreateSubAccount(ctx, "user-2", parentID, models.AccountTypeSavings)
		assert.ErrorIs(t, err, ErrAccountNotFound)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestAccountService_CloseAccount(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	service := NewAccountService(db, NewIbanService(), "IQD")
	ctx := context.Background()

	accountID := uuid.New()

	t.Run("soft deletes and disables", func(t *testing.T) {
		mock.ExpectExec("UPDATE bank_accounts").
			WithArgs(int(models.AccountDisabled), accountID, "user-1").
			WillReturnResult(sqlmock.NewResult(0, 1))

		err := service.CloseAccount(ctx, accountID, "user-1")
		assert.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("already closed or not owned", func(t *testing.T) {
		mock.ExpectExec("UPDATE bank_accounts").
			WithArgs(int(models.AccountDisabled), accountID, "user-1").
			WillReturnResult(sqlmock.NewResult(0, 0))

		err := service.CloseAccount(ctx, accountID, "user-1")
		assert.ErrorIs(t, err, ErrAccountNotFound)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}
