package handlers

import (
	"errors"
	"net/http"

	"github.com/shopspring/decimal"

	"github.com/securebank/backend/internal/middleware"
	"github.com/securebank/backend/internal/services"
)

// PaymentLinkHandler exposes merchant payment link management, settlement
// and QR rendering.
type PaymentLinkHandler struct {
	links     *services.PaymentLinkService
	accounts  *services.AccountService
	validator *services.ValidationHelper
}

func NewPaymentLinkHandler(links *services.PaymentLinkService, accounts *services.AccountService) *PaymentLinkHandler {
	return &PaymentLinkHandler{
		links:     links,
		accounts:  accounts,
		validator: services.NewValidationHelper(),
	}
}

type createLinkRequest struct {
	MerchantIban       string  `json:"merchantIban" validate:"required,iban_shape"`
	Amount             string  `json:"amount" validate:"required"`
	Currency           string  `json:"currency" validate:"required,len=3"`
	ProductName        string  `json:"productName" validate:"required,max=120"`
	ProductDescription *string `json:"productDescription,omitempty"`
	ProductImageURL    *string `json:"productImageUrl,omitempty" validate:"omitempty,url"`
}

// Create registers a payment link on one of the caller's accounts.
func (h *PaymentLinkHandler) Create(w http.ResponseWriter, r *http.Request) {
	userID := middleware.UserID(r.Context())
	if userID == "" {
		services.SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
		return
	}

	var req createLinkRequest
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

	link, err := h.links.Create(r.Context(), userID, services.CreatePaymentLinkInput{
		MerchantIban:       req.MerchantIban,
		Amount:             amount,
		Currency:           req.Currency,
		ProductName:        req.ProductName,
		ProductDescription: req.ProductDescription,
		ProductImageURL:    req.ProductImageURL,
	})
	if err != nil {
		h.sendLinkError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"success": true, "paymentLink": link})
}

// Get returns a payment link by id. Checkout pages need this without
// ownership, so any authenticated user may read a live link.
func (h *PaymentLinkHandler) Get(w http.ResponseWriter, r *http.Request) {
	linkID, ok := pathUUID(w, r, "linkID")
	if !ok {
		return
	}

	link, err := h.links.Get(r.Context(), linkID)
	if err != nil {
		h.sendLinkError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "paymentLink": link})
}

// List returns the caller's live payment links.
func (h *PaymentLinkHandler) List(w http.ResponseWriter, r *http.Request) {
	userID := middleware.UserID(r.Context())
	if userID == "" {
		services.SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
		return
	}

	links, err := h.links.ListForUser(r.Context(), userID)
	if err != nil {
		services.SendErrorResponse(w, "Internal server error", http.StatusInternalServerError, nil)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "paymentLinks": links})
}

type updateLinkRequest struct {
	Amount             *string `json:"amount,omitempty"`
	Currency           *string `json:"currency,omitempty" validate:"omitempty,len=3"`
	ProductName        *string `json:"productName,omitempty" validate:"omitempty,max=120"`
	ProductDescription *string `json:"productDescription,omitempty"`
	ProductImageURL    *string `json:"productImageUrl,omitempty" validate:"omitempty,url"`
}

// Update modifies a payment link the caller owns.
func (h *PaymentLinkHandler) Update(w http.ResponseWriter, r *http.Request) {
	userID := middleware.UserID(r.Context())
	linkID, ok := pathUUID(w, r, "linkID")
	if !ok {
		return
	}

	var req updateLinkRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := h.validator.ValidateStruct(&req); err != nil {
		services.SendErrorResponse(w, "Validation failed", http.StatusBadRequest, err)
		return
	}

	in := services.UpdatePaymentLinkInput{
		Currency:           req.Currency,
		ProductName:        req.ProductName,
		ProductDescription: req.ProductDescription,
		ProductImageURL:    req.ProductImageURL,
	}
	if req.Amount != nil {
		amount, err := decimal.NewFromString(*req.Amount)
		if err != nil {
			services.SendErrorResponse(w, "Invalid amount", http.StatusBadRequest, nil)
			return
		}
		in.Amount = &amount
	}

	link, err := h.links.Update(r.Context(), userID, linkID, in)
	if err != nil {
		h.sendLinkError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "paymentLink": link})
}

// Delete soft-deletes a payment link the caller owns.
func (h *PaymentLinkHandler) Delete(w http.ResponseWriter, r *http.Request) {
	userID := middleware.UserID(r.Context())
	linkID, ok := pathUUID(w, r, "linkID")
	if !ok {
		return
	}

	if err := h.links.Delete(r.Context(), userID, linkID); err != nil {
		h.sendLinkError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

type payLinkRequest struct {
	FromIban string `json:"fromIban" validate:"required,iban_shape"`
}

// Pay settles a payment link from one of the caller's accounts.
func (h *PaymentLinkHandler) Pay(w http.ResponseWriter, r *http.Request) {
	userID := middleware.UserID(r.Context())
	linkID, ok := pathUUID(w, r, "linkID")
	if !ok {
		return
	}

	var req payLinkRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := h.validator.ValidateStruct(&req); err != nil {
		services.SendErrorResponse(w, "Validation failed", http.StatusBadRequest, err)
		return
	}

	if _, err := h.accounts.GetAccountByIban(r.Context(), req.FromIban, userID); err != nil {
		services.SendErrorResponse(w, "Sender account not found", http.StatusForbidden, nil)
		return
	}

	entry, err := h.links.Pay(r.Context(), req.FromIban, linkID)
	if err != nil {
		sendLedgerError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"success": true, "transaction": entry})
}

// QRCode renders the link's checkout URL as a PNG.
func (h *PaymentLinkHandler) QRCode(w http.ResponseWriter, r *http.Request) {
	linkID, ok := pathUUID(w, r, "linkID")
	if !ok {
		return
	}

	png, err := h.links.QRCodePNG(r.Context(), linkID, queryInt(r, "size"))
	if err != nil {
		h.sendLinkError(w, err)
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.WriteHeader(http.StatusOK)
	w.Write(png)
}

func (h *PaymentLinkHandler) sendLinkError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, services.ErrPaymentLinkMissing):
		services.SendErrorResponse(w, "Payment link not found", http.StatusNotFound, nil)
	case errors.Is(err, services.ErrNotPaymentLinkOwner):
		services.SendErrorResponse(w, "Payment link not owned by user", http.StatusForbidden, nil)
	case errors.Is(err, services.ErrMerchantAccountOwner):
		services.SendErrorResponse(w, "Merchant account not found", http.StatusForbidden, nil)
	default:
		sendLedgerError(w, err)
	}
}
