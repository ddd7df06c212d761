package handlers

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strconv"

	"github.com/shopspring/decimal"

	"github.com/securebank/backend/internal/middleware"
	"github.com/securebank/backend/internal/models"
	"github.com/securebank/backend/internal/services"
)

// TransferHandler exposes the money movement primitives. Every endpoint
// checks that the debited IBAN belongs to the caller before touching the
// ledger engine.
type TransferHandler struct {
	ledger    *services.LedgerService
	accounts  *services.AccountService
	validator *services.ValidationHelper
}

func NewTransferHandler(ledger *services.LedgerService, accounts *services.AccountService) *TransferHandler {
	return &TransferHandler{
		ledger:    ledger,
		accounts:  accounts,
		validator: services.NewValidationHelper(),
	}
}

type transferRequest struct {
	FromIban string `json:"fromIban" validate:"required,iban_shape"`
	ToIban   string `json:"toIban" validate:"required,iban_shape"`
	Amount   string `json:"amount" validate:"required"`
}

// Transfer moves funds between two accounts.
func (h *TransferHandler) Transfer(w http.ResponseWriter, r *http.Request) {
	userID := middleware.UserID(r.Context())
	if userID == "" {
		services.SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
		return
	}

	var req transferRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := h.validator.ValidateStruct(&req); err != nil {
		services.SendErrorResponse(w, "Validation failed", http.StatusBadRequest, err)
		return
	}
	if req.FromIban == req.ToIban {
		services.SendErrorResponse(w, "Sender and receiver must differ", http.StatusBadRequest, nil)
		return
	}

	amount, err := decimal.NewFromString(req.Amount)
	if err != nil {
		services.SendErrorResponse(w, "Invalid amount", http.StatusBadRequest, nil)
		return
	}

	sender, err := h.accounts.GetAccountByIban(r.Context(), req.FromIban, userID)
	if err != nil {
		services.SendErrorResponse(w, "Sender account not found", http.StatusForbidden, nil)
		return
	}

	entry, err := h.ledger.Transfer(r.Context(), req.FromIban, req.ToIban, amount, sender.BalanceCurrency)
	if err != nil {
		sendLedgerError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{"success": true, "transaction": entry})
}

type selfAmountRequest struct {
	Iban   string `json:"iban" validate:"required,iban_shape"`
	Amount string `json:"amount" validate:"required"`
}

// Deposit credits the caller's account from the treasury counterparty.
func (h *TransferHandler) Deposit(w http.ResponseWriter, r *http.Request) {
	h.selfOperation(w, r, h.ledger.Deposit)
}

// Withdraw debits the caller's account toward the treasury counterparty.
func (h *TransferHandler) Withdraw(w http.ResponseWriter, r *http.Request) {
	h.selfOperation(w, r, h.ledger.Withdraw)
}

type ledgerOp func(ctx context.Context, iban string, amount decimal.Decimal, currency string) (*models.Transaction, error)

func (h *TransferHandler) selfOperation(w http.ResponseWriter, r *http.Request, op ledgerOp) {
	userID := middleware.UserID(r.Context())
	if userID == "" {
		services.SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
		return
	}

	var req selfAmountRequest
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

	acc, err := h.accounts.GetAccountByIban(r.Context(), req.Iban, userID)
	if err != nil {
		services.SendErrorResponse(w, "Account not found", http.StatusForbidden, nil)
		return
	}

	entry, err := op(r.Context(), req.Iban, amount, acc.BalanceCurrency)
	if err != nil {
		sendLedgerError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{"success": true, "transaction": entry})
}

// sendLedgerError maps typed ledger rejections onto HTTP; anything else is an
// internal failure.
func sendLedgerError(w http.ResponseWriter, err error) {
	if terr, ok := services.AsTransferError(err); ok {
		services.SendTransferError(w, terr)
		return
	}
	services.SendErrorResponse(w, "Internal server error", http.StatusInternalServerError, nil)
}

// decodeJSON reads a single bounded JSON object into dst, writing the error
// response itself on failure.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, 1_048_576)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	if err := dec.Decode(dst); err != nil {
		services.SendErrorResponse(w, "Invalid request body", http.StatusBadRequest, nil)
		return false
	}
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		services.SendErrorResponse(w, "Request body must only contain a single JSON object", http.StatusBadRequest, nil)
		return false
	}
	return true
}

// queryInt parses an optional integer query parameter, returning 0 when
// absent or malformed.
func queryInt(r *http.Request, key string) int {
	n, err := strconv.Atoi(r.URL.Query().Get(key))
	if err != nil {
		return 0
	}
	return n
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}
