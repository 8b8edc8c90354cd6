package domain

import (
	"errors"
	"fmt"
)

// ErrorCode represents a machine-readable error code
type ErrorCode string

const (
	// Authentication & Authorization Errors (AUTH_*)
	ErrorCodeAuthMissing ErrorCode = "AUTH_MISSING"
	ErrorCodeAuthInvalid ErrorCode = "AUTH_INVALID"
	ErrorCodeForbidden   ErrorCode = "FORBIDDEN"

	// Pricing Errors
	ErrorCodePricingNotConfigured ErrorCode = "PRICING_NOT_CONFIGURED"

	// Reconciliation Errors
	ErrorCodeInvalidSignature    ErrorCode = "INVALID_SIGNATURE"
	ErrorCodeMetadataTampering   ErrorCode = "METADATA_TAMPERING"
	ErrorCodePaymentNotSucceeded ErrorCode = "PAYMENT_NOT_SUCCEEDED"
	ErrorCodeRecordNotFound      ErrorCode = "RECORD_NOT_FOUND"

	// Validation Errors (VALIDATION_*)
	ErrorCodeValidationFailed ErrorCode = "VALIDATION_FAILED"

	// Payment Gateway Errors (GATEWAY_*)
	ErrorCodeGatewayError ErrorCode = "GATEWAY_ERROR"

	// Internal Errors (INTERNAL_*)
	ErrorCodeInternalError ErrorCode = "INTERNAL_ERROR"
	ErrorCodeDatabaseError ErrorCode = "INTERNAL_DATABASE_ERROR"
)

// DomainError represents a structured domain error with error code and context
type DomainError struct {
	Err     error
	Details map[string]interface{}
	Code    ErrorCode
	Message string
}

// Error implements the error interface
func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying error for errors.Is/As support
func (e *DomainError) Unwrap() error {
	return e.Err
}

// Is matches any DomainError carrying the same code, so errors.Is works
// against the sentinel values below even when a fresh instance was built.
func (e *DomainError) Is(target error) bool {
	var t *DomainError
	if errors.As(target, &t) {
		return t.Code == e.Code
	}
	return false
}

// WithDetail adds a detail field to the error
func (e *DomainError) WithDetail(key string, value interface{}) *DomainError {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// NewDomainError creates a new domain error
func NewDomainError(code ErrorCode, message string) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
		Details: make(map[string]interface{}),
	}
}

// WrapError wraps an existing error with a domain error code
func WrapError(code ErrorCode, message string, err error) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
		Details: make(map[string]interface{}),
		Err:     err,
	}
}

// IsDomainError checks if an error is a DomainError with the given code
func IsDomainError(err error, code ErrorCode) bool {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Code == code
	}
	return false
}

// GetErrorCode extracts the error code from an error, returns empty string if not a DomainError
func GetErrorCode(err error) ErrorCode {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Code
	}
	return ""
}

// IsAuthError checks if an error is authentication/authorization related
func IsAuthError(err error) bool {
	code := GetErrorCode(err)
	return code == ErrorCodeAuthMissing ||
		code == ErrorCodeAuthInvalid ||
		code == ErrorCodeForbidden
}

// IsSecurityEvent reports errors that must be logged as security-relevant
func IsSecurityEvent(err error) bool {
	code := GetErrorCode(err)
	return code == ErrorCodeInvalidSignature || code == ErrorCodeMetadataTampering
}

// Sentinel errors. Compare with errors.Is; never mutate them with WithDetail.
var (
	ErrAuthMissing = NewDomainError(ErrorCodeAuthMissing, "authentication required")
	ErrAuthInvalid = NewDomainError(ErrorCodeAuthInvalid, "invalid authentication")
	ErrForbidden   = NewDomainError(ErrorCodeForbidden, "actor is not allowed to perform this operation")

	ErrPricingNotConfigured = NewDomainError(ErrorCodePricingNotConfigured, "no price configured for slot type")

	ErrInvalidSignature    = NewDomainError(ErrorCodeInvalidSignature, "webhook signature verification failed")
	ErrMetadataTampering   = NewDomainError(ErrorCodeMetadataTampering, "gateway metadata does not match payment record")
	ErrPaymentNotSucceeded = NewDomainError(ErrorCodePaymentNotSucceeded, "payment has not succeeded at the gateway")
	ErrRecordNotFound      = NewDomainError(ErrorCodeRecordNotFound, "record not found")

	ErrValidationFailed = NewDomainError(ErrorCodeValidationFailed, "validation failed")

	ErrGatewayError = NewDomainError(ErrorCodeGatewayError, "payment gateway error")

	ErrInternalError = NewDomainError(ErrorCodeInternalError, "internal server error")
	ErrDatabaseError = NewDomainError(ErrorCodeDatabaseError, "database error")
)
