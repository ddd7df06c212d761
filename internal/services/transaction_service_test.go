package services

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var transactionColumns = []string{
	"id",
	"sender_balance_before", "sender_balance_after",
	"receiver_balance_before", "receiver_balance_after",
	"transfer_amount", "transfer_fee", "currency",
	"sender_id", "receiver_id", "payment_link_id", "created_at",
}

func TestTransactionService_Get(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	service := NewTransactionService(db)
	ctx := context.Background()

	txID := uuid.New()
	senderID := uuid.New()
	receiverID := uuid.New()

	t.Run("found", func(t *testing.T) {
		mock.ExpectQuery("SELECT id,").
			WithArgs(txID).
			WillReturnRows(sqlmock.NewRows(transactionColumns).
				AddRow(txID.String(), "1000", "900", "500", "600", "100", "0", "IQD",
					senderID.String(), receiverID.String(), nil, time.Now()))

		entry, err := service.Get(ctx, txID)
		require.NoError(t, err)
		assert.Equal(t, txID, entry.ID)
		assert.Equal(t, senderID, entry.SenderID)
		assert.Nil(t, entry.PaymentLinkID)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("not found", func(t *testing.T) {
		mock.ExpectQuery("SELECT id,").
			WithArgs(txID).
			WillReturnRows(sqlmock.NewRows(transactionColumns))

		_, err := service.Get(ctx, txID)
		assert.ErrorIs(t, err, ErrTransactionNotFound)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestTransactionService_ListForAccount(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	service := NewTransactionService(db)
	ctx := context.Background()

	accountID := uuid.New()
	otherID := uuid.New()

	t.Run("returns entries from both sides of the ledger", func(t *testing.T) {
		mock.ExpectQuery("SELECT id,").
			WithArgs(accountID, 50).
			WillReturnRows(sqlmock.NewRows(transactionColumns).
				AddRow(uuid.New().String(), "1000", "900", "500", "600", "100", "0", "IQD",
					accountID.String(), otherID.String(), nil, time.Now()).
				AddRow(uuid.New().String(), "700", "650", "900", "950", "50", "0", "IQD",
					otherID.String(), accountID.String(), nil, time.Now()))

		entries, err := service.ListForAccount(ctx, accountID, 0)
		require.NoError(t, err)
		require.Len(t, entries, 2)
		assert.Equal(t, accountID, entries[0].SenderID)
		assert.Equal(t, accountID, entries[1].ReceiverID)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("clamps an oversized limit", func(t *testing.T) {
		mock.ExpectQuery("SELECT id,").
			WithArgs(accountID, 50).
			WillReturnRows(sqlmock.NewRows(transactionColumns))

		_, err := service.ListForAccount(ctx, accountID, 10_000)
		assert.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}
