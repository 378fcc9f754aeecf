// Package domainerrors provides coded domain errors shared across modules.
//
// Services create these; transport layers translate codes to HTTP statuses.
// Stores and infrastructure return pkg/platform/sentinel errors instead and
// services wrap them here with the appropriate code.
package domainerrors

import (
	"errors"
	"fmt"
	"net/http"
)

// Code classifies a domain error for transport mapping and branching.
type Code string

const (
	CodeInternal           Code = "internal_error"
	CodeValidation         Code = "validation_error"
	CodeBadRequest         Code = "bad_request"
	CodeNotFound           Code = "not_found"
	CodeConflict           Code = "conflict"
	CodeUnauthorized       Code = "unauthorized"
	CodeForbidden          Code = "forbidden"
	CodeTimeout            Code = "timeout"
	CodeInvalidInput       Code = "invalid_input"
	CodeInvariantViolation Code = "invariant_violation"
	CodeUnavailable        Code = "unavailable"
	CodeRateLimited        Code = "rate_limited"

	// Marketplace-specific codes. Each maps to one failure kind of the
	// ledger state machine so callers can branch without string matching.
	CodeAlreadyInitialized    Code = "already_initialized"
	CodeInvalidPrice          Code = "invalid_price"
	CodeInvalidSupply         Code = "invalid_supply"
	CodeInvalidPercentage     Code = "invalid_reward_percentage"
	CodeInvalidAmount         Code = "invalid_amount"
	CodeItemTransferFailed    Code = "item_transfer_failed"
	CodeInsufficientFunds     Code = "insufficient_funds"
	CodeInsufficientShares    Code = "insufficient_shares"
	CodeInsufficientLiquidity Code = "insufficient_liquidity"
	CodeListingNotActive      Code = "listing_not_active"
	CodeListingNotSold        Code = "listing_not_sold"
	CodeNoSharesHeld          Code = "no_shares_held"
	CodeAlreadySettled        Code = "already_settled"
	CodeArithmeticOverflow    Code = "arithmetic_overflow"
)

// Error is a domain error with a stable code and a human-readable message.
type Error struct {
	Code    Code
	Message string
	cause   error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.cause }

// New creates a domain error with the given code and message.
func New(code Code, message string) error {
	return &Error{Code: code, Message: message}
}

// Wrap annotates err with a code and message while preserving the chain.
func Wrap(err error, code Code, message string) error {
	if err == nil {
		return nil
	}
	return &Error{Code: code, Message: message, cause: err}
}

// HasCode reports whether any error in the chain carries the given code.
func HasCode(err error, code Code) bool {
	var de *Error
	for errors.As(err, &de) {
		if de.Code == code {
			return true
		}
		err = de.cause
		de = nil
	}
	return false
}

// Is is shorthand for HasCode; reads naturally at call sites.
func Is(err error, code Code) bool { return HasCode(err, code) }

// CodeOf returns the outermost code in the chain, or CodeInternal.
func CodeOf(err error) Code {
	var de *Error
	if errors.As(err, &de) {
		return de.Code
	}
	return CodeInternal
}

// MessageOf returns the outermost message, or the raw error text.
func MessageOf(err error) string {
	var de *Error
	if errors.As(err, &de) {
		return de.Message
	}
	if err != nil {
		return err.Error()
	}
	return ""
}

// ToHTTPStatus maps a code to its HTTP response status.
func ToHTTPStatus(code Code) int {
	switch code {
	case CodeValidation, CodeBadRequest, CodeInvalidInput, CodeInvalidPrice,
		CodeInvalidSupply, CodeInvalidPercentage, CodeInvalidAmount:
		return http.StatusBadRequest
	case CodeNotFound:
		return http.StatusNotFound
	case CodeUnauthorized:
		return http.StatusUnauthorized
	case CodeForbidden:
		return http.StatusForbidden
	case CodeTimeout:
		return http.StatusGatewayTimeout
	case CodeUnavailable:
		return http.StatusServiceUnavailable
	case CodeRateLimited:
		return http.StatusTooManyRequests
	case CodeConflict, CodeAlreadyInitialized, CodeListingNotActive,
		CodeListingNotSold, CodeAlreadySettled, CodeInvariantViolation:
		return http.StatusConflict
	case CodeInsufficientFunds, CodeInsufficientShares,
		CodeInsufficientLiquidity, CodeNoSharesHeld:
		return http.StatusUnprocessableEntity
	case CodeItemTransferFailed:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
