package handlers

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/securebank/backend/internal/middleware"
	"github.com/securebank/backend/internal/models"
	"github.com/securebank/backend/internal/services"
)

// AccountHandler exposes account lifecycle and ledger history.
type AccountHandler struct {
	accounts     *services.AccountService
	transactions *services.TransactionService
	treasury     *services.TreasuryService
	funding      services.FundingPolicy
	validator    *services.ValidationHelper
}

func NewAccountHandler(
	accounts *services.AccountService,
	transactions *services.TransactionService,
	treasury *services.TreasuryService,
	funding services.FundingPolicy,
) *AccountHandler {
	return &AccountHandler{
		accounts:     accounts,
		transactions: transactions,
		treasury:     treasury,
		funding:      funding,
		validator:    services.NewValidationHelper(),
	}
}

type createAccountRequest struct {
	Type            string  `json:"type" validate:"required,oneof=Current Savings Employee Merchant"`
	ParentAccountID *string `json:"parentAccountId,omitempty"`
}

// CreateAccount opens a primary or sub-account for the caller. New primary
// accounts receive the configured welcome funding from the treasury float.
func (h *AccountHandler) CreateAccount(w http.ResponseWriter, r *http.Request) {
	userID := middleware.UserID(r.Context())
	if userID == "" {
		services.SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
		return
	}

	var req createAccountRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := h.validator.ValidateStruct(&req); err != nil {
		services.SendErrorResponse(w, "Validation failed", http.StatusBadRequest, err)
		return
	}

	accType, ok := models.ParseAccountType(req.Type)
	if !ok {
		services.SendErrorResponse(w, "Invalid account type", http.StatusBadRequest, nil)
		return
	}

	var acc *models.BankAccount
	var err error
	if req.ParentAccountID != nil {
		parentID, parseErr := uuid.Parse(*req.ParentAccountID)
		if parseErr != nil {
			services.SendErrorResponse(w, "Invalid parent account id", http.StatusBadRequest, nil)
			return
		}
		acc, err = h.accounts.CreateSubAccount(r.Context(), userID, parentID, accType)
	} else {
		acc, err = h.accounts.CreateAccount(r.Context(), userID, accType)
	}
	if err != nil {
		if errors.Is(err, services.ErrAccountNotFound) {
			services.SendErrorResponse(w, "Parent account not found", http.StatusNotFound, nil)
			return
		}
		services.SendErrorResponse(w, "Internal server error", http.StatusInternalServerError, nil)
		return
	}

	if h.funding.Enabled {
		// Welcome funding failure leaves the account created but unfunded.
		if _, ferr := h.treasury.FundAccount(r.Context(), acc.IBAN, h.funding.Amount); ferr == nil {
			acc.Balance = acc.Balance.Add(h.funding.Amount)
		}
	}

	writeJSON(w, http.StatusCreated, map[string]any{"success": true, "account": acc})
}

// ListAccounts returns all of the caller's live accounts.
func (h *AccountHandler) ListAccounts(w http.ResponseWriter, r *http.Request) {
	userID := middleware.UserID(r.Context())
	if userID == "" {
		services.SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
		return
	}

	accounts, err := h.accounts.GetUserAccounts(r.Context(), userID)
	if err != nil {
		services.SendErrorResponse(w, "Internal server error", http.StatusInternalServerError, nil)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "accounts": accounts})
}

// GetAccount returns one of the caller's accounts by id.
func (h *AccountHandler) GetAccount(w http.ResponseWriter, r *http.Request) {
	userID := middleware.UserID(r.Context())
	accountID, ok := pathUUID(w, r, "accountID")
	if !ok {
		return
	}

	acc, err := h.accounts.GetAccount(r.Context(), accountID, userID)
	if err != nil {
		if errors.Is(err, services.ErrAccountNotFound) {
			services.SendErrorResponse(w, "Account not found", http.StatusNotFound, nil)
			return
		}
		services.SendErrorResponse(w, "Internal server error", http.StatusInternalServerError, nil)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "account": acc})
}

// CloseAccount soft-deletes one of the caller's accounts.
func (h *AccountHandler) CloseAccount(w http.ResponseWriter, r *http.Request) {
	userID := middleware.UserID(r.Context())
	accountID, ok := pathUUID(w, r, "accountID")
	if !ok {
		return
	}

	if err := h.accounts.CloseAccount(r.Context(), accountID, userID); err != nil {
		if errors.Is(err, services.ErrAccountNotFound) {
			services.SendErrorResponse(w, "Account not found", http.StatusNotFound, nil)
			return
		}
		services.SendErrorResponse(w, "Internal server error", http.StatusInternalServerError, nil)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

// ListTransactions returns the account's ledger history. Ownership is
// verified before touching the ledger.
func (h *AccountHandler) ListTransactions(w http.ResponseWriter, r *http.Request) {
	userID := middleware.UserID(r.Context())
	accountID, ok := pathUUID(w, r, "accountID")
	if !ok {
		return
	}

	if _, err := h.accounts.GetAccount(r.Context(), accountID, userID); err != nil {
		services.SendErrorResponse(w, "Account not found", http.StatusNotFound, nil)
		return
	}

	entries, err := h.transactions.ListForAccount(r.Context(), accountID, queryInt(r, "limit"))
	if err != nil {
		services.SendErrorResponse(w, "Internal server error", http.StatusInternalServerError, nil)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "transactions": entries})
}

func pathUUID(w http.ResponseWriter, r *http.Request, param string) (uuid.UUID, bool) {
	return parseUUID(w, chi.URLParam(r, param), param)
}

func parseUUID(w http.ResponseWriter, raw, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(raw)
	if err != nil {
		services.SendErrorResponse(w, "Invalid "+name, http.StatusBadRequest, nil)
		return uuid.Nil, false
	}
	return id, true
}
