package handlers

import (
	"errors"
	"net/http"

	"github.com/shopspring/decimal"

	"github.com/securebank/backend/internal/middleware"
	"github.com/securebank/backend/internal/services"
)

// TreasuryHandler exposes the institution float and account funding. The
// routes sit behind the same bearer auth as everything else; operator
// authorization is expected at the gateway.
type TreasuryHandler struct {
	treasury  *services.TreasuryService
	validator *services.ValidationHelper
}

func NewTreasuryHandler(treasury *services.TreasuryService) *TreasuryHandler {
	return &TreasuryHandler{
		treasury:  treasury,
		validator: services.NewValidationHelper(),
	}
}

// Balance returns the current treasury float.
func (h *TreasuryHandler) Balance(w http.ResponseWriter, r *http.Request) {
	if middleware.UserID(r.Context()) == "" {
		services.SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
		return
	}

	float, err := h.treasury.Balance(r.Context())
	if err != nil {
		services.SendErrorResponse(w, "Internal server error", http.StatusInternalServerError, nil)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "treasury": float})
}

type fundAccountRequest struct {
	Iban   string `json:"iban" validate:"required,iban_shape"`
	Amount string `json:"amount" validate:"required"`
}

// FundAccount moves funds from the treasury float into a customer account.
func (h *TreasuryHandler) FundAccount(w http.ResponseWriter, r *http.Request) {
	if middleware.UserID(r.Context()) == "" {
		services.SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
		return
	}

	var req fundAccountRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := h.validator.ValidateStruct(&req); err != nil {
		services.SendErrorResponse(w, "Validation failed", http.StatusBadRequest, err)
		return
	}

	amount, err := decimal.NewFromString(req.Amount)
	if err != nil {
		services.SendErrorResponse(w, "Invalid amount", http.StatusBadRequest, nil)
		return
	}

	entry, err := h.treasury.FundAccount(r.Context(), req.Iban, amount)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrInvalidFundingAmount):
			services.SendErrorResponse(w, err.Error(), http.StatusBadRequest, nil)
		case errors.Is(err, services.ErrInsufficientTreasury):
			services.SendErrorResponse(w, err.Error(), http.StatusConflict, nil)
		case errors.Is(err, services.ErrFundingDestinationMissing):
			services.SendErrorResponse(w, err.Error(), http.StatusNotFound, nil)
		default:
			sendLedgerError(w, err)
		}
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"success": true, "transaction": entry})
}
