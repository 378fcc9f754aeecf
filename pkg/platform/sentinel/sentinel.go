package sentinel

import "errors"

// Sentinel errors for infrastructure facts. Stores and the token ledger return
// these (optionally wrapped) so services can translate them into domain errors.
//
// These represent factual states about resources, not validation failures:
// - ErrNotFound: record or account does not exist in the store/ledger
// - ErrConflict: record already exists where creation was attempted
// - ErrInsufficientBalance: a debit or transfer exceeds the held amount
// - ErrInvalidState: record in wrong state for requested operation
// - ErrOverflow: fixed-point arithmetic exceeded the 64-bit range
// - ErrUnavailable: backing service temporarily unavailable
//
// For validation errors (bad input, out-of-range parameters), use
// pkg/domain-errors directly.
var (
	ErrNotFound            = errors.New("not found")
	ErrConflict            = errors.New("conflict")
	ErrInsufficientBalance = errors.New("insufficient balance")
	ErrInvalidState        = errors.New("invalid state")
	ErrOverflow            = errors.New("arithmetic overflow")
	ErrUnavailable         = errors.New("unavailable")
)
