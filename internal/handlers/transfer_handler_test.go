package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/securebank/backend/internal/middleware"
	"github.com/securebank/backend/internal/services"
)

const (
	senderIban   = "IQ88BABI123456789012345"
	receiverIban = "IQ94BABI000000000000001"
)

var accountColumns = []string{
	"id", "iban", "owner_user_id", "status", "type",
	"balance", "balance_currency", "transfer_fee",
	"min_balance", "max_balance", "max_transfer", "min_transfer",
	"last_transfer_receiver_id", "last_transfer_time",
	"is_primary", "parent_account_id", "created_at", "updated_at", "deleted_at",
}

var engineColumns = []string{
	"id", "balance", "balance_currency", "transfer_fee",
	"min_balance", "max_balance", "max_transfer", "min_transfer",
	"last_transfer_receiver_id", "last_transfer_time",
}

func newTransferHandler(t *testing.T) (*TransferHandler, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	ledger := services.NewLedgerService(db)
	accounts := services.NewAccountService(db, services.NewIbanService(), "IQD")
	return NewTransferHandler(ledger, accounts), mock
}

func authedRequest(method, target, body string) *http.Request {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	ctx := context.WithValue(req.Context(), middleware.UserIDKey, "user-1")
	return req.WithContext(ctx)
}

func expectOwnedAccount(mock sqlmock.Sqlmock, id uuid.UUID, iban string) {
	now := time.Now()
	mock.ExpectQuery("SELECT id, iban, owner_user_id").
		WithArgs(iban, "user-1").
		WillReturnRows(sqlmock.NewRows(accountColumns).
			AddRow(id.String(), iban, "user-1", 1, 0,
				"1000", "IQD", "0",
				"0", "1000000", "100000", "1",
				nil, nil, true, nil, now, now, nil))
}

func TestTransferHandler_Transfer(t *testing.T) {
	t.Run("successful transfer returns the ledger entry", func(t *testing.T) {
		handler, mock := newTransferHandler(t)
		senderID, receiverID := uuid.New(), uuid.New()

		expectOwnedAccount(mock, senderID, senderIban)

		mock.ExpectBegin()
		mock.ExpectQuery("SELECT id, balance, balance_currency, transfer_fee").
			WithArgs(senderIban, 1).
			WillReturnRows(sqlmock.NewRows(engineColumns).
				AddRow(senderID.String(), "1000", "IQD", "0", "0", "1000000", "100000", "1", nil, nil))
		mock.ExpectQuery("SELECT id, balance, balance_currency, transfer_fee").
			WithArgs(receiverIban, 1).
			WillReturnRows(sqlmock.NewRows(engineColumns).
				AddRow(receiverID.String(), "500", "IQD", "0", "0", "1000000", "100000", "1", nil, nil))
		mock.ExpectExec("INSERT INTO transactions").WillReturnResult(sqlmock.NewResult(1, 1))
		mock.ExpectExec("UPDATE bank_accounts").WillReturnResult(sqlmock.NewResult(1, 1))
		mock.ExpectExec("UPDATE bank_accounts").WillReturnResult(sqlmock.NewResult(1, 1))
		mock.ExpectCommit()

		req := authedRequest(http.MethodPost, "/api/v1/transfers",
			`{"fromIban":"`+senderIban+`","toIban":"`+receiverIban+`","amount":"100"}`)
		rec := httptest.NewRecorder()
		handler.Transfer(rec, req)

		assert.Equal(t, http.StatusCreated, rec.Code)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("same sender and receiver is rejected before the engine", func(t *testing.T) {
		handler, mock := newTransferHandler(t)

		req := authedRequest(http.MethodPost, "/api/v1/transfers",
			`{"fromIban":"`+senderIban+`","toIban":"`+senderIban+`","amount":"100"}`)
		rec := httptest.NewRecorder()
		handler.Transfer(rec, req)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("sender IBAN owned by someone else", func(t *testing.T) {
		handler, mock := newTransferHandler(t)

		mock.ExpectQuery("SELECT id, iban, owner_user_id").
			WithArgs(senderIban, "user-1").
			WillReturnRows(sqlmock.NewRows(accountColumns))

		req := authedRequest(http.MethodPost, "/api/v1/transfers",
			`{"fromIban":"`+senderIban+`","toIban":"`+receiverIban+`","amount":"100"}`)
		rec := httptest.NewRecorder()
		handler.Transfer(rec, req)

		assert.Equal(t, http.StatusForbidden, rec.Code)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("policy rejection surfaces as a conflict with its code", func(t *testing.T) {
		handler, mock := newTransferHandler(t)
		senderID, receiverID := uuid.New(), uuid.New()
		lastTime := time.Now().UTC().Add(-time.Minute)

		expectOwnedAccount(mock, senderID, senderIban)

		mock.ExpectBegin()
		mock.ExpectQuery("SELECT id, balance, balance_currency, transfer_fee").
			WithArgs(senderIban, 1).
			WillReturnRows(sqlmock.NewRows(engineColumns).
				AddRow(senderID.String(), "1000", "IQD", "0", "0", "1000000", "100000", "1", receiverID.String(), lastTime))
		mock.ExpectQuery("SELECT id, balance, balance_currency, transfer_fee").
			WithArgs(receiverIban, 1).
			WillReturnRows(sqlmock.NewRows(engineColumns).
				AddRow(receiverID.String(), "500", "IQD", "0", "0", "1000000", "100000", "1", nil, nil))
		mock.ExpectRollback()

		req := authedRequest(http.MethodPost, "/api/v1/transfers",
			`{"fromIban":"`+senderIban+`","toIban":"`+receiverIban+`","amount":"100"}`)
		rec := httptest.NewRecorder()
		handler.Transfer(rec, req)

		assert.Equal(t, http.StatusConflict, rec.Code)

		var resp services.ErrorResponse
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
		assert.Equal(t, "DOUBLE_SPENDING_DETECTED", resp.Code)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("unauthenticated request", func(t *testing.T) {
		handler, _ := newTransferHandler(t)

		req := httptest.NewRequest(http.MethodPost, "/api/v1/transfers", strings.NewReader(`{}`))
		rec := httptest.NewRecorder()
		handler.Transfer(rec, req)

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("unparseable amount", func(t *testing.T) {
		handler, _ := newTransferHandler(t)

		req := authedRequest(http.MethodPost, "/api/v1/transfers",
			`{"fromIban":"`+senderIban+`","toIban":"`+receiverIban+`","amount":"ten"}`)
		rec := httptest.NewRecorder()
		handler.Transfer(rec, req)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}
