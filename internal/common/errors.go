package common

import (
	"errors"
	"net/http"
)

// Error codes returned in the "code" field of error responses.
const (
	CodeInvalidQuantity     = "INVALID_QUANTITY"
	CodeInvalidInput        = "INVALID_INPUT"
	CodeMethodNotAllowed    = "METHOD_NOT_ALLOWED"
	CodePaymentGateway      = "PAYMENT_GATEWAY_ERROR"
	CodeWebhookVerification = "WEBHOOK_VERIFICATION_FAILED"
	CodeInternal            = "INTERNAL"
)

// AppError represents an error with an attached code and HTTP status.
type AppError struct {
	Code       string
	Message    string
	HTTPStatus int
	Err        error
	Details    any
}

// Error implements the error interface.
func (e *AppError) Error() string {
	if e == nil {
		return ""
	}
	if e.Message != "" {
		return e.Message
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return e.Code
}

// Unwrap allows errors.Is/As to inspect the underlying error.
func (e *AppError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// NewAppError constructs an AppError.
func NewAppError(code, message string, status int, err error) *AppError {
	return &AppError{Code: code, Message: message, HTTPStatus: status, Err: err}
}

// IsAppError checks whether the error is an AppError.
func IsAppError(err error) bool {
	var target *AppError
	return errors.As(err, &target)
}

// InvalidQuantity reports a quantity that is not an integer >= 1.
func InvalidQuantity() *AppError {
	return NewAppError(CodeInvalidQuantity, "Invalid quantity. Must be an integer >= 1.", http.StatusBadRequest, nil)
}

// InvalidInput reports a malformed or missing request parameter.
func InvalidInput(message string) *AppError {
	return NewAppError(CodeInvalidInput, message, http.StatusBadRequest, nil)
}

// PaymentGatewayError wraps a provider failure; message is passed through verbatim.
func PaymentGatewayError(message string, err error) *AppError {
	if message == "" {
		message = "Server error"
	}
	return NewAppError(CodePaymentGateway, message, http.StatusInternalServerError, err)
}

// WebhookVerificationError reports a bad signature or an unparseable webhook body.
func WebhookVerificationError(message string, err error) *AppError {
	if message == "" {
		message = "Webhook error"
	}
	return NewAppError(CodeWebhookVerification, message, http.StatusBadRequest, err)
}
