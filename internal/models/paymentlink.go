package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// PaymentLink is a merchant collection request. Soft-deleted, never removed,
// because settled transactions keep referencing it.
type PaymentLink struct {
	ID         uuid.UUID       `json:"id" db:"id"`
	MerchantID uuid.UUID       `json:"merchant_id" db:"merchant_id"`
	Amount     decimal.Decimal `json:"amount" db:"amount"`
	Currency   string          `json:"currency" db:"currency"`

	ProductName        string  `json:"product_name" db:"product_name"`
	ProductDescription *string `json:"product_description,omitempty" db:"product_description"`
	ProductImageURL    *string `json:"product_image_url,omitempty" db:"product_image_url"`

	CreatedAt time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt time.Time  `json:"updated_at" db:"updated_at"`
	DeletedAt *time.Time `json:"deleted_at,omitempty" db:"deleted_at"`
}
