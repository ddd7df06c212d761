package handlers

import (
	"errors"
	"net/http"

	"github.com/shopspring/decimal"

	"github.com/securebank/backend/internal/middleware"
	"github.com/securebank/backend/internal/services"
)

// PayrollHandler exposes salary profile assignment and an on-demand payroll
// pass alongside the background scheduler.
type PayrollHandler struct {
	payroll   *services.PayrollService
	validator *services.ValidationHelper
}

func NewPayrollHandler(payroll *services.PayrollService) *PayrollHandler {
	return &PayrollHandler{
		payroll:   payroll,
		validator: services.NewValidationHelper(),
	}
}

type assignPayrollRequest struct {
	AccountID     string `json:"accountId" validate:"required,uuid4"`
	MonthlySalary string `json:"monthlySalary" validate:"required"`
	PayDayOfMonth int    `json:"payDayOfMonth" validate:"required,min=1,max=28"`
}

// Assign creates a salary profile for an employee account.
func (h *PayrollHandler) Assign(w http.ResponseWriter, r *http.Request) {
	if middleware.UserID(r.Context()) == "" {
		services.SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
		return
	}

	var req assignPayrollRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := h.validator.ValidateStruct(&req); err != nil {
		services.SendErrorResponse(w, "Validation failed", http.StatusBadRequest, err)
		return
	}

	accountID, ok := parseUUID(w, req.AccountID, "accountId")
	if !ok {
		return
	}
	salary, err := decimal.NewFromString(req.MonthlySalary)
	if err != nil || salary.Sign() <= 0 {
		services.SendErrorResponse(w, "Invalid monthly salary", http.StatusBadRequest, nil)
		return
	}

	profile, err := h.payroll.AssignPayroll(r.Context(), accountID, salary, req.PayDayOfMonth)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrAccountNotFound):
			services.SendErrorResponse(w, "Account not found", http.StatusNotFound, nil)
		case errors.Is(err, services.ErrNotEmployeeAccount), errors.Is(err, services.ErrInvalidPayDay):
			services.SendErrorResponse(w, err.Error(), http.StatusBadRequest, nil)
		case errors.Is(err, services.ErrPayrollAlreadyAssigned):
			services.SendErrorResponse(w, err.Error(), http.StatusConflict, nil)
		default:
			services.SendErrorResponse(w, "Internal server error", http.StatusInternalServerError, nil)
		}
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"success": true, "profile": profile})
}

// List returns all payroll profiles.
func (h *PayrollHandler) List(w http.ResponseWriter, r *http.Request) {
	if middleware.UserID(r.Context()) == "" {
		services.SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
		return
	}

	profiles, err := h.payroll.Profiles(r.Context())
	if err != nil {
		services.SendErrorResponse(w, "Internal server error", http.StatusInternalServerError, nil)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "profiles": profiles})
}

// RunOnce triggers a single payroll pass immediately.
func (h *PayrollHandler) RunOnce(w http.ResponseWriter, r *http.Request) {
	if middleware.UserID(r.Context()) == "" {
		services.SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
		return
	}

	if err := h.payroll.RunOnce(r.Context()); err != nil {
		services.SendErrorResponse(w, "Internal server error", http.StatusInternalServerError, nil)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}
