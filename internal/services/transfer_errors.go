package services

import (
	"errors"

	"github.com/lib/pq"
)

// TransferErrCode identifies why the ledger engine rejected an operation.
type TransferErrCode string

const (
	CodeInvalidAmount              TransferErrCode = "INVALID_AMOUNT"
	CodeSenderUnauthorized         TransferErrCode = "SENDER_UNAUTHORIZED"
	CodeReceiverUnauthorized       TransferErrCode = "RECEIVER_UNAUTHORIZED"
	CodeCurrencyConversionRequired TransferErrCode = "CURRENCY_CONVERSION_REQUIRED"
	CodeMaxTransferExceeded        TransferErrCode = "MAX_TRANSFER_EXCEEDED"
	CodeTransferAmountTooLow       TransferErrCode = "TRANSFER_AMOUNT_TOO_LOW"
	CodeDoubleSpendingDetected     TransferErrCode = "DOUBLE_SPENDING_DETECTED"
	CodeSenderInsufficientFunds    TransferErrCode = "SENDER_INSUFFICIENT_FUNDS"
	CodeExceededReceiverMaxBalance TransferErrCode = "EXCEEDED_RECEIVER_MAX_BALANCE"
	CodePaymentLinkNotFound        TransferErrCode = "PAYMENT_LINK_NOT_FOUND"
	CodeRetryAgain                 TransferErrCode = "RETRY_AGAIN"
)

// TransferError is a business-rule rejection from the ledger engine. The
// whole atomic unit has been rolled back by the time one is returned; only
// CodeRetryAgain is safe for callers to retry automatically.
type TransferError struct {
	Code TransferErrCode
}

func (e *TransferError) Error() string {
	return "transfer rejected: " + string(e.Code)
}

// Is matches any TransferError with the same code, so errors.Is works on
// wrapped values.
func (e *TransferError) Is(target error) bool {
	var te *TransferError
	if !errors.As(target, &te) {
		return false
	}
	return te.Code == e.Code
}

var (
	ErrInvalidAmount              = &TransferError{CodeInvalidAmount}
	ErrSenderUnauthorized         = &TransferError{CodeSenderUnauthorized}
	ErrReceiverUnauthorized       = &TransferError{CodeReceiverUnauthorized}
	ErrCurrencyConversionRequired = &TransferError{CodeCurrencyConversionRequired}
	ErrMaxTransferExceeded        = &TransferError{CodeMaxTransferExceeded}
	ErrTransferAmountTooLow       = &TransferError{CodeTransferAmountTooLow}
	ErrDoubleSpendingDetected     = &TransferError{CodeDoubleSpendingDetected}
	ErrSenderInsufficientFunds    = &TransferError{CodeSenderInsufficientFunds}
	ErrExceededReceiverMaxBalance = &TransferError{CodeExceededReceiverMaxBalance}
	ErrPaymentLinkNotFound        = &TransferError{CodePaymentLinkNotFound}
	ErrRetryAgain                 = &TransferError{CodeRetryAgain}
)

// AsTransferError extracts a typed rejection from an error chain.
func AsTransferError(err error) (*TransferError, bool) {
	var te *TransferError
	if errors.As(err, &te) {
		return te, true
	}
	return nil, false
}

const (
	pqSerializationFailure = "40001"
	pqDeadlockDetected     = "40P01"
	pqUniqueViolation      = "23505"
)

// isSerializationFailure reports whether Postgres aborted the transaction due
// to a write-write or serialization conflict. Such failures had no effect and
// map to ErrRetryAgain.
func isSerializationFailure(err error) bool {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) {
		return false
	}
	return string(pqErr.Code) == pqSerializationFailure || string(pqErr.Code) == pqDeadlockDetected
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) {
		return false
	}
	return string(pqErr.Code) == pqUniqueViolation
}
