package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	qrcode "github.com/skip2/go-qrcode"

	"github.com/securebank/backend/internal/models"
)

var (
	ErrPaymentLinkMissing   = errors.New("payment link not found")
	ErrNotPaymentLinkOwner  = errors.New("payment link not owned by user")
	ErrMerchantAccountOwner = errors.New("merchant account not found or not owned by user")
)

// CreatePaymentLinkInput carries the merchant's collection request.
type CreatePaymentLinkInput struct {
	MerchantIban       string
	Amount             decimal.Decimal
	Currency           string
	ProductName        string
	ProductDescription *string
	ProductImageURL    *string
}

// UpdatePaymentLinkInput updates only the provided fields.
type UpdatePaymentLinkInput struct {
	Amount             *decimal.Decimal
	Currency           *string
	ProductName        *string
	ProductDescription *string
	ProductImageURL    *string
}

// PaymentLinkService manages merchant payment links and settles them through
// the ledger engine. Links are soft-deleted only; settled transactions keep
// referencing them.
type PaymentLinkService struct {
	db      *sql.DB
	ledger  *LedgerService
	baseURL string
}

func NewPaymentLinkService(db *sql.DB, ledger *LedgerService, baseURL string) *PaymentLinkService {
	return &PaymentLinkService{db: db, ledger: ledger, baseURL: baseURL}
}

// Create registers a payment link against a merchant account the user owns.
func (s *PaymentLinkService) Create(ctx context.Context, userID string, in CreatePaymentLinkInput) (*models.PaymentLink, error) {
	if in.Amount.Sign() <= 0 {
		return nil, ErrInvalidAmount
	}

	var merchantID uuid.UUID
	err := s.db.QueryRowContext(ctx,
		`SELECT id FROM bank_accounts WHERE iban = $1 AND owner_user_id = $2 AND deleted_at IS NULL`,
		in.MerchantIban, userID).Scan(&merchantID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrMerchantAccountOwner
		}
		return nil, err
	}

	link := &models.PaymentLink{
		ID:                 uuid.New(),
		MerchantID:         merchantID,
		Amount:             in.Amount,
		Currency:           in.Currency,
		ProductName:        in.ProductName,
		ProductDescription: in.ProductDescription,
		ProductImageURL:    in.ProductImageURL,
	}

	err = s.db.QueryRowContext(ctx, `
		INSERT INTO payment_links
			(id, merchant_id, amount, currency, product_name, product_description, product_image_url, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NOW(), NOW())
		RETURNING created_at, updated_at`,
		link.ID, link.MerchantID, link.Amount, link.Currency,
		link.ProductName, link.ProductDescription, link.ProductImageURL,
	).Scan(&link.CreatedAt, &link.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return link, nil
}

const selectPaymentLink = `
	SELECT id, merchant_id, amount, currency,
	       product_name, product_description, product_image_url,
	       created_at, updated_at, deleted_at
	FROM payment_links`

// Get returns a live payment link by id.
func (s *PaymentLinkService) Get(ctx context.Context, linkID uuid.UUID) (*models.PaymentLink, error) {
	row := s.db.QueryRowContext(ctx, selectPaymentLink+` WHERE id = $1 AND deleted_at IS NULL`, linkID)
	link, err := scanPaymentLink(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrPaymentLinkMissing
		}
		return nil, err
	}
	return link, nil
}

// ListForUser returns all live links on accounts the user owns, newest first.
func (s *PaymentLinkService) ListForUser(ctx context.Context, userID string) ([]*models.PaymentLink, error) {
	rows, err := s.db.QueryContext(ctx, selectPaymentLink+`
		WHERE merchant_id IN (SELECT id FROM bank_accounts WHERE owner_user_id = $1 AND deleted_at IS NULL)
		  AND deleted_at IS NULL
		ORDER BY created_at DESC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var links []*models.PaymentLink
	for rows.Next() {
		link, err := scanPaymentLink(rows)
		if err != nil {
			return nil, err
		}
		links = append(links, link)
	}
	return links, rows.Err()
}

// Update modifies the provided fields on a link the user owns.
func (s *PaymentLinkService) Update(ctx context.Context, userID string, linkID uuid.UUID, in UpdatePaymentLinkInput) (*models.PaymentLink, error) {
	link, err := s.ownedLink(ctx, userID, linkID)
	if err != nil {
		return nil, err
	}

	if in.Amount != nil {
		if in.Amount.Sign() <= 0 {
			return nil, ErrInvalidAmount
		}
		link.Amount = *in.Amount
	}
	if in.Currency != nil {
		link.Currency = *in.Currency
	}
	if in.ProductName != nil {
		link.ProductName = *in.ProductName
	}
	if in.ProductDescription != nil {
		link.ProductDescription = in.ProductDescription
	}
	if in.ProductImageURL != nil {
		link.ProductImageURL = in.ProductImageURL
	}

	err = s.db.QueryRowContext(ctx, `
		UPDATE payment_links
		SET amount = $1, currency = $2, product_name = $3,
		    product_description = $4, product_image_url = $5, updated_at = NOW()
		WHERE id = $6
		RETURNING updated_at`,
		link.Amount, link.Currency, link.ProductName,
		link.ProductDescription, link.ProductImageURL, link.ID,
	).Scan(&link.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return link, nil
}

// Delete soft-deletes a link the user owns.
func (s *PaymentLinkService) Delete(ctx context.Context, userID string, linkID uuid.UUID) error {
	if _, err := s.ownedLink(ctx, userID, linkID); err != nil {
		return err
	}
	_, err := s.db.ExecContext(ctx,
		`UPDATE payment_links SET deleted_at = NOW(), updated_at = NOW() WHERE id = $1`, linkID)
	return err
}

// Pay settles the link from the sender's account. The amount and currency
// come from the link itself; the engine re-validates the link and merchant
// inside its own transaction.
func (s *PaymentLinkService) Pay(ctx context.Context, senderIban string, linkID uuid.UUID) (*models.Transaction, error) {
	var merchantIban string
	var amount decimal.Decimal
	var currency string
	err := s.db.QueryRowContext(ctx, `
		SELECT a.iban, p.amount, p.currency
		FROM payment_links p
		JOIN bank_accounts a ON a.id = p.merchant_id
		WHERE p.id = $1 AND p.deleted_at IS NULL`, linkID,
	).Scan(&merchantIban, &amount, &currency)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrPaymentLinkNotFound
		}
		return nil, err
	}

	return s.ledger.PayPaymentLink(ctx, senderIban, merchantIban, amount, linkID, currency)
}

// QRCodePNG renders the link's checkout URL as a QR code image.
func (s *PaymentLinkService) QRCodePNG(ctx context.Context, linkID uuid.UUID, size int) ([]byte, error) {
	link, err := s.Get(ctx, linkID)
	if err != nil {
		return nil, err
	}
	if size <= 0 {
		size = 256
	}
	url := fmt.Sprintf("%s/%s", s.baseURL, link.ID)
	return qrcode.Encode(url, qrcode.Medium, size)
}

func (s *PaymentLinkService) ownedLink(ctx context.Context, userID string, linkID uuid.UUID) (*models.PaymentLink, error) {
	link, err := s.Get(ctx, linkID)
	if err != nil {
		return nil, err
	}

	var ownerID string
	err = s.db.QueryRowContext(ctx,
		`SELECT owner_user_id FROM bank_accounts WHERE id = $1`, link.MerchantID,
	).Scan(&ownerID)
	if err != nil {
		return nil, err
	}
	if ownerID != userID {
		return nil, ErrNotPaymentLinkOwner
	}
	return link, nil
}

func scanPaymentLink(r rowScanner) (*models.PaymentLink, error) {
	var link models.PaymentLink
	err := r.Scan(
		&link.ID, &link.MerchantID, &link.Amount, &link.Currency,
		&link.ProductName, &link.ProductDescription, &link.ProductImageURL,
		&link.CreatedAt, &link.UpdatedAt, &link.DeletedAt,
	)
	if err != nil {
		return nil, err
	}
	return &link, nil
}
