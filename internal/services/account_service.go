package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/securebank/backend/internal/models"
)

var (
	ErrAccountNotFound = errors.New("account not found")
	ErrIbanExhausted   = errors.New("unable to generate unique IBAN after maximum attempts")
)

// maxIbanAttempts bounds how many fresh candidates an insert will try when
// the iban unique index keeps reporting collisions.
const maxIbanAttempts = 100

// Default limits for newly opened primary accounts. Sub-accounts inherit
// their parent's limits instead.
var (
	defaultMinBalance  = decimal.Zero
	defaultMaxBalance  = decimal.NewFromInt(1_000_000_000)
	defaultMaxTransfer = decimal.NewFromInt(10_000_000)
	defaultMinTransfer = decimal.NewFromInt(1)
)

// AccountService owns account lifecycle: opening primary and sub-accounts,
// lookups and soft closure. Balance mutations stay with the ledger engine.
type AccountService struct {
	db       *sql.DB
	iban     *IbanService
	currency string
}

func NewAccountService(db *sql.DB, iban *IbanService, currency string) *AccountService {
	return &AccountService{db: db, iban: iban, currency: currency}
}

const insertAccount = `
	INSERT INTO bank_accounts
		(id, iban, owner_user_id, status, type,
		 balance, balance_currency, transfer_fee,
		 min_balance, max_balance, max_transfer, min_transfer,
		 is_primary, parent_account_id, created_at, updated_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, NOW(), NOW())`

// CreateAccount opens a primary account for the user. The account starts
// Active with default limits and a zero balance; funding happens through the
// treasury compensator, not here.
func (s *AccountService) CreateAccount(ctx context.Context, ownerUserID string, accType models.AccountType) (*models.BankAccount, error) {
	acc := &models.BankAccount{
		ID:              uuid.New(),
		OwnerUserID:     ownerUserID,
		Status:          models.AccountActive,
		Type:            accType,
		Balance:         decimal.Zero,
		BalanceCurrency: s.currency,
		TransferFee:     decimal.Zero,
		MinBalance:      defaultMinBalance,
		MaxBalance:      defaultMaxBalance,
		MaxTransfer:     defaultMaxTransfer,
		MinTransfer:     defaultMinTransfer,
		IsPrimary:       true,
	}

	if err := s.insertWithFreshIban(ctx, acc); err != nil {
		return nil, err
	}
	return acc, nil
}

// CreateSubAccount opens a sub-account under the user's primary account.
// Currency, fee and limits are inherited from the parent at creation time;
// after that the sub-account is an independent ledger participant.
func (s *AccountService) CreateSubAccount(ctx context.Context, ownerUserID string, parentAccountID uuid.UUID, accType models.AccountType) (*models.BankAccount, error) {
	parent, err := s.ownedAccount(ctx, parentAccountID, ownerUserID)
	if err != nil {
		return nil, err
	}
	if !parent.IsPrimary {
		return nil, ErrAccountNotFound
	}

	acc := &models.BankAccount{
		ID:              uuid.New(),
		OwnerUserID:     ownerUserID,
		Status:          models.AccountActive,
		Type:            accType,
		Balance:         decimal.Zero,
		BalanceCurrency: parent.BalanceCurrency,
		TransferFee:     parent.TransferFee,
		MinBalance:      parent.MinBalance,
		MaxBalance:      parent.MaxBalance,
		MaxTransfer:     parent.MaxTransfer,
		MinTransfer:     parent.MinTransfer,
		IsPrimary:       false,
		ParentAccountID: &parent.ID,
	}

	if err := s.insertWithFreshIban(ctx, acc); err != nil {
		return nil, err
	}
	return acc, nil
}

// insertWithFreshIban inserts the account, regenerating the IBAN whenever
// the unique index reports a collision. The index is authoritative; there is
// no pre-check.
func (s *AccountService) insertWithFreshIban(ctx context.Context, acc *models.BankAccount) error {
	for attempt := 0; attempt < maxIbanAttempts; attempt++ {
		iban, err := s.iban.Generate()
		if err != nil {
			return err
		}
		acc.IBAN = iban

		_, err = s.db.ExecContext(ctx, insertAccount,
			acc.ID, acc.IBAN, acc.OwnerUserID, acc.Status, acc.Type,
			acc.Balance, acc.BalanceCurrency, acc.TransferFee,
			acc.MinBalance, acc.MaxBalance, acc.MaxTransfer, acc.MinTransfer,
			acc.IsPrimary, nullUUID(acc.ParentAccountID))
		if err == nil {
			return nil
		}
		if isUniqueViolation(err) {
			logrus.WithField("attempt", attempt+1).Warn("IBAN collision on insert, regenerating")
			continue
		}
		return fmt.Errorf("inserting account: %w", err)
	}
	return ErrIbanExhausted
}

const selectAccount = `
	SELECT id, iban, owner_user_id, status, type,
	       balance, balance_currency, transfer_fee,
	       min_balance, max_balance, max_transfer, min_transfer,
	       last_transfer_receiver_id, last_transfer_time,
	       is_primary, parent_account_id, created_at, updated_at, deleted_at
	FROM bank_accounts`

// GetAccount returns the user's account by id, excluding soft-deleted rows.
func (s *AccountService) GetAccount(ctx context.Context, id uuid.UUID, ownerUserID string) (*models.BankAccount, error) {
	return s.ownedAccount(ctx, id, ownerUserID)
}

// GetUserAccounts lists the user's live accounts, primary first.
func (s *AccountService) GetUserAccounts(ctx context.Context, ownerUserID string) ([]*models.BankAccount, error) {
	rows, err := s.db.QueryContext(ctx,
		selectAccount+` WHERE owner_user_id = $1 AND deleted_at IS NULL
		ORDER BY is_primary DESC, created_at ASC`, ownerUserID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var accounts []*models.BankAccount
	for rows.Next() {
		acc, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		accounts = append(accounts, acc)
	}
	return accounts, rows.Err()
}

// CloseAccount soft-deletes the account and disables it. The row stays
// resolvable for historical ledger entries; nothing is ever hard-deleted.
func (s *AccountService) CloseAccount(ctx context.Context, id uuid.UUID, ownerUserID string) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE bank_accounts
		SET status = $1, deleted_at = NOW(), updated_at = NOW()
		WHERE id = $2 AND owner_user_id = $3 AND deleted_at IS NULL`,
		models.AccountDisabled, id, ownerUserID)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrAccountNotFound
	}
	return nil
}

// GetAccountByIban returns the user's live account holding the given IBAN.
// Used by the transport layer to check that a sender IBAN belongs to the
// caller before it ever reaches the ledger engine.
func (s *AccountService) GetAccountByIban(ctx context.Context, iban, ownerUserID string) (*models.BankAccount, error) {
	row := s.db.QueryRowContext(ctx,
		selectAccount+` WHERE iban = $1 AND owner_user_id = $2 AND deleted_at IS NULL`,
		iban, ownerUserID)
	acc, err := scanAccount(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrAccountNotFound
		}
		return nil, err
	}
	return acc, nil
}

func (s *AccountService) ownedAccount(ctx context.Context, id uuid.UUID, ownerUserID string) (*models.BankAccount, error) {
	row := s.db.QueryRowContext(ctx,
		selectAccount+` WHERE id = $1 AND owner_user_id = $2 AND deleted_at IS NULL`,
		id, ownerUserID)
	acc, err := scanAccount(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrAccountNotFound
		}
		return nil, err
	}
	return acc, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanAccount(r rowScanner) (*models.BankAccount, error) {
	var acc models.BankAccount
	err := r.Scan(
		&acc.ID, &acc.IBAN, &acc.OwnerUserID, &acc.Status, &acc.Type,
		&acc.Balance, &acc.BalanceCurrency, &acc.TransferFee,
		&acc.MinBalance, &acc.MaxBalance, &acc.MaxTransfer, &acc.MinTransfer,
		&acc.LastTransferReceiverID, &acc.LastTransferTime,
		&acc.IsPrimary, &acc.ParentAccountID, &acc.CreatedAt, &acc.UpdatedAt, &acc.DeletedAt,
	)
	if err != nil {
		return nil, err
	}
	return &acc, nil
}
