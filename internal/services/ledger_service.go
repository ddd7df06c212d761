package services

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/securebank/backend/internal/models"
)

// TreasuryIban is the reserved counterparty for deposits and withdrawals.
// The treasury bank account row carries this IBAN with wide-open limits.
const TreasuryIban = "IQ39BABI701008888816342"

// doubleSpendWindow is how long a sender is blocked from repeating a transfer
// to the same receiver. Keyed on the sender/receiver pair, not the amount.
const doubleSpendWindow = 5 * time.Minute

// LedgerService is the single choke-point for every balance mutation. Each
// operation runs its read-validate-write sequence in one serializable
// database transaction; a serialization conflict surfaces as ErrRetryAgain
// and is never retried internally.
type LedgerService struct {
	db           *sql.DB
	treasuryIban string
}

func NewLedgerService(db *sql.DB) *LedgerService {
	return &LedgerService{
		db:           db,
		treasuryIban: TreasuryIban,
	}
}

// transferAccount is the slice of a bank account row the engine needs.
type transferAccount struct {
	ID                     uuid.UUID
	Balance                decimal.Decimal
	BalanceCurrency        string
	TransferFee            decimal.Decimal
	MinBalance             decimal.Decimal
	MaxBalance             decimal.Decimal
	MaxTransfer            decimal.Decimal
	MinTransfer            decimal.Decimal
	LastTransferReceiverID *uuid.UUID
	LastTransferTime       *time.Time
}

const selectAccountForTransfer = `
	SELECT id, balance, balance_currency, transfer_fee,
	       min_balance, max_balance, max_transfer, min_transfer,
	       last_transfer_receiver_id, last_transfer_time
	FROM bank_accounts
	WHERE iban = $1 AND status = $2`

// Transfer moves amount from the sender IBAN to the receiver IBAN. It returns
// the committed ledger entry, or a *TransferError with no state change.
func (s *LedgerService) Transfer(ctx context.Context, fromIban, toIban string, amount decimal.Decimal, currency string) (*models.Transaction, error) {
	return s.execute(ctx, fromIban, toIban, amount, nil, currency)
}

// Deposit is a transfer from the treasury counterparty.
func (s *LedgerService) Deposit(ctx context.Context, toIban string, amount decimal.Decimal, currency string) (*models.Transaction, error) {
	return s.execute(ctx, s.treasuryIban, toIban, amount, nil, currency)
}

// Withdraw is a transfer to the treasury counterparty.
func (s *LedgerService) Withdraw(ctx context.Context, fromIban string, amount decimal.Decimal, currency string) (*models.Transaction, error) {
	return s.execute(ctx, fromIban, s.treasuryIban, amount, nil, currency)
}

// PayPaymentLink settles a payment link: a transfer with the extra checks
// that the link exists (and is not soft-deleted) and that the resolved
// receiver is the link's merchant account.
func (s *LedgerService) PayPaymentLink(ctx context.Context, fromIban, toIban string, amount decimal.Decimal, paymentLinkID uuid.UUID, currency string) (*models.Transaction, error) {
	return s.execute(ctx, fromIban, toIban, amount, &paymentLinkID, currency)
}

func (s *LedgerService) execute(ctx context.Context, fromIban, toIban string, amount decimal.Decimal, paymentLinkID *uuid.UUID, currency string) (*models.Transaction, error) {
	if amount.Sign() <= 0 {
		return nil, ErrInvalidAmount
	}

	// Single source of truth for time, reused by every write below.
	now := time.Now().UTC()

	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return nil, translateStoreErr(err)
	}
	defer tx.Rollback()

	sender, err := s.loadAccount(tx, fromIban)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrSenderUnauthorized
		}
		return nil, translateStoreErr(err)
	}

	receiver, err := s.loadAccount(tx, toIban)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrReceiverUnauthorized
		}
		return nil, translateStoreErr(err)
	}

	if sender.BalanceCurrency != receiver.BalanceCurrency {
		return nil, ErrCurrencyConversionRequired
	}

	if paymentLinkID != nil {
		var merchantID uuid.UUID
		err = tx.QueryRow(
			`SELECT merchant_id FROM payment_links WHERE id = $1 AND deleted_at IS NULL`,
			*paymentLinkID,
		).Scan(&merchantID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil, ErrPaymentLinkNotFound
			}
			return nil, translateStoreErr(err)
		}
		if receiver.ID != merchantID {
			return nil, ErrReceiverUnauthorized
		}
	}

	if amount.GreaterThan(sender.MaxTransfer) {
		return nil, ErrMaxTransferExceeded
	}
	if amount.LessThan(sender.MinTransfer) {
		return nil, ErrTransferAmountTooLow
	}

	if sender.LastTransferReceiverID != nil && sender.LastTransferTime != nil {
		timeout := sender.LastTransferTime.Add(doubleSpendWindow)
		if *sender.LastTransferReceiverID == receiver.ID && now.Before(timeout) {
			return nil, ErrDoubleSpendingDetected
		}
	}

	senderAfter := sender.Balance.Sub(amount)
	fee := amount.Mul(receiver.TransferFee)
	receiverAfter := receiver.Balance.Add(amount).Sub(fee)

	if senderAfter.LessThan(sender.MinBalance) {
		return nil, ErrSenderInsufficientFunds
	}
	if receiverAfter.GreaterThan(receiver.MaxBalance) {
		return nil, ErrExceededReceiverMaxBalance
	}

	entry := &models.Transaction{
		ID:                    uuid.New(),
		SenderBalanceBefore:   sender.Balance,
		SenderBalanceAfter:    senderAfter,
		ReceiverBalanceBefore: receiver.Balance,
		ReceiverBalanceAfter:  receiverAfter,
		TransferAmount:        amount,
		TransferFee:           fee,
		Currency:              currency,
		SenderID:              sender.ID,
		ReceiverID:            receiver.ID,
		PaymentLinkID:         paymentLinkID,
		CreatedAt:             now,
	}

	_, err = tx.Exec(`
		INSERT INTO transactions
			(id,
			 sender_balance_before, receiver_balance_before,
			 sender_balance_after, receiver_balance_after,
			 transfer_amount, transfer_fee,
			 sender_id, receiver_id,
			 payment_link_id, currency, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		entry.ID,
		entry.SenderBalanceBefore, entry.ReceiverBalanceBefore,
		entry.SenderBalanceAfter, entry.ReceiverBalanceAfter,
		entry.TransferAmount, entry.TransferFee,
		entry.SenderID, entry.ReceiverID,
		nullUUID(paymentLinkID), entry.Currency, now)
	if err != nil {
		return nil, translateStoreErr(err)
	}

	_, err = tx.Exec(`
		UPDATE bank_accounts
		SET balance = $1, last_transfer_receiver_id = $2, last_transfer_time = $3, updated_at = $3
		WHERE iban = $4`,
		senderAfter, receiver.ID, now, fromIban)
	if err != nil {
		return nil, translateStoreErr(err)
	}

	_, err = tx.Exec(`
		UPDATE bank_accounts
		SET balance = $1, updated_at = $2
		WHERE iban = $3`,
		receiverAfter, now, toIban)
	if err != nil {
		return nil, translateStoreErr(err)
	}

	if err := tx.Commit(); err != nil {
		return nil, translateStoreErr(err)
	}

	return entry, nil
}

func (s *LedgerService) loadAccount(tx *sql.Tx, iban string) (*transferAccount, error) {
	var acc transferAccount
	err := tx.QueryRow(selectAccountForTransfer, iban, models.AccountActive).Scan(
		&acc.ID, &acc.Balance, &acc.BalanceCurrency, &acc.TransferFee,
		&acc.MinBalance, &acc.MaxBalance, &acc.MaxTransfer, &acc.MinTransfer,
		&acc.LastTransferReceiverID, &acc.LastTransferTime,
	)
	if err != nil {
		return nil, err
	}
	return &acc, nil
}

// translateStoreErr maps serialization conflicts to the retryable transfer
// error; anything else is a hard store failure and passes through.
func translateStoreErr(err error) error {
	if isSerializationFailure(err) {
		return ErrRetryAgain
	}
	return err
}

func nullUUID(id *uuid.UUID) interface{} {
	if id == nil {
		return nil
	}
	return *id
}
