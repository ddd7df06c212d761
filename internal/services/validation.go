package services

import (
	"encoding/json"
	"fmt"
	"net/http"
	"regexp"

	"github.com/go-playground/validator/v10"
)

// ibanShape checks the syntactic shape only. Check digit verification is
// handled separately by IbanService.Validate.
var ibanShape = regexp.MustCompile(`^[A-Z]{2}[0-9]{2}[A-Z0-9]{1,30}$`)

// ErrorResponse represents error response structure
type ErrorResponse struct {
	Error   string            `json:"error"`             // Error message
	Code    string            `json:"code,omitempty"`    // Machine readable code
	Details map[string]string `json:"details,omitempty"` // Validation details
}

// ValidationHelper provides shared validation functionality
type ValidationHelper struct {
	validator *validator.Validate
}

// NewValidationHelper creates a new validation helper with the custom
// iban_shape tag registered.
func NewValidationHelper() *ValidationHelper {
	v := validator.New()
	v.RegisterValidation("iban_shape", func(fl validator.FieldLevel) bool {
		return ibanShape.MatchString(fl.Field().String())
	})
	return &ValidationHelper{validator: v}
}

// ValidateStruct validates a struct and returns validation errors
func (vh *ValidationHelper) ValidateStruct(s any) error {
	return vh.validator.Struct(s)
}

// SendErrorResponse sends a JSON error response
func SendErrorResponse(w http.ResponseWriter, message string, statusCode int, validationErr error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	errorResp := ErrorResponse{Error: message}
	if validationErr != nil {
		if fieldErrs, ok := validationErr.(validator.ValidationErrors); ok {
			errorResp.Details = make(map[string]string)
			for _, err := range fieldErrs {
				errorResp.Details[err.Field()] = fmt.Sprintf("Field Validation Failed on '%s' tag", err.Tag())
			}
		}
	}

	json.NewEncoder(w).Encode(errorResp)
}

// SendTransferError maps a typed transfer failure onto its HTTP status and
// writes the JSON body.
func SendTransferError(w http.ResponseWriter, terr *TransferError) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(transferErrStatus(terr.Code))
	json.NewEncoder(w).Encode(ErrorResponse{Error: terr.Error(), Code: string(terr.Code)})
}

func transferErrStatus(code TransferErrCode) int {
	switch code {
	case CodeInvalidAmount:
		return http.StatusBadRequest
	case CodeSenderUnauthorized, CodeReceiverUnauthorized:
		return http.StatusForbidden
	case CodePaymentLinkNotFound:
		return http.StatusNotFound
	default:
		// Policy rejections and serialization retries are conflicts with
		// current account state.
		return http.StatusConflict
	}
}
