package services

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"

	"github.com/securebank/backend/internal/models"
)

var ErrTransactionNotFound = errors.New("transaction not found")

// TransactionService reads the ledger. The ledger is append-only; nothing
// here mutates it.
type TransactionService struct {
	db *sql.DB
}

func NewTransactionService(db *sql.DB) *TransactionService {
	return &TransactionService{db: db}
}

const selectTransaction = `
	SELECT id,
	       sender_balance_before, sender_balance_after,
	       receiver_balance_before, receiver_balance_after,
	       transfer_amount, transfer_fee, currency,
	       sender_id, receiver_id, payment_link_id, created_at
	FROM transactions`

// Get returns one ledger entry by id.
func (s *TransactionService) Get(ctx context.Context, id uuid.UUID) (*models.Transaction, error) {
	row := s.db.QueryRowContext(ctx, selectTransaction+` WHERE id = $1`, id)
	entry, err := scanTransaction(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrTransactionNotFound
		}
		return nil, err
	}
	return entry, nil
}

// ListForAccount returns the account's ledger history, newest first, where it
// appears on either side of a transfer.
func (s *TransactionService) ListForAccount(ctx context.Context, accountID uuid.UUID, limit int) ([]*models.Transaction, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}

	rows, err := s.db.QueryContext(ctx, selectTransaction+`
		WHERE sender_id = $1 OR receiver_id = $1
		ORDER BY created_at DESC
		LIMIT $2`, accountID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []*models.Transaction
	for rows.Next() {
		entry, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

// ListForPaymentLink returns settlements against one payment link.
func (s *TransactionService) ListForPaymentLink(ctx context.Context, linkID uuid.UUID) ([]*models.Transaction, error) {
	rows, err := s.db.QueryContext(ctx, selectTransaction+`
		WHERE payment_link_id = $1
		ORDER BY created_at DESC`, linkID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []*models.Transaction
	for rows.Next() {
		entry, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

func scanTransaction(r rowScanner) (*models.Transaction, error) {
	var entry models.Transaction
	err := r.Scan(
		&entry.ID,
		&entry.SenderBalanceBefore, &entry.SenderBalanceAfter,
		&entry.ReceiverBalanceBefore, &entry.ReceiverBalanceAfter,
		&entry.TransferAmount, &entry.TransferFee, &entry.Currency,
		&entry.SenderID, &entry.ReceiverID, &entry.PaymentLinkID, &entry.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &entry, nil
}
