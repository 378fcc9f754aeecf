// Package domain holds the typed identifiers shared across modules.
//
// Identifiers are domain primitives: construct them via the Parse functions at
// trust boundaries so validity is enforced once; direct casting bypasses
// validation and is reserved for internal wiring.
package domain

import (
	"github.com/google/uuid"

	dErrors "fracmarket/pkg/domain-errors"
)

// AccountID identifies a participant or marketplace-controlled account on the
// token ledger. Values are opaque: caller identities arrive from the auth
// layer, marketplace-internal accounts come from pkg/derive.
type AccountID string

func (a AccountID) String() string { return string(a) }
func (a AccountID) IsNil() bool    { return a == "" }

// ParseAccountID constructs an AccountID from external input.
func ParseAccountID(s string) (AccountID, error) {
	if s == "" {
		return "", dErrors.New(dErrors.CodeInvalidInput, "account id cannot be empty")
	}
	if len(s) > 128 {
		return "", dErrors.New(dErrors.CodeInvalidInput, "account id too long")
	}
	return AccountID(s), nil
}

// AssetID identifies a unique (supply-of-one) item on the token ledger.
type AssetID string

func (a AssetID) String() string { return string(a) }
func (a AssetID) IsNil() bool    { return a == "" }

// ParseAssetID constructs an AssetID from external input.
func ParseAssetID(s string) (AssetID, error) {
	if s == "" {
		return "", dErrors.New(dErrors.CodeInvalidInput, "asset id cannot be empty")
	}
	if len(s) > 128 {
		return "", dErrors.New(dErrors.CodeInvalidInput, "asset id too long")
	}
	return AssetID(s), nil
}

// ShareClassID identifies the fungible share class minted for one listing.
type ShareClassID string

func (s ShareClassID) String() string { return string(s) }
func (s ShareClassID) IsNil() bool    { return s == "" }

// ListingID identifies a listing record.
type ListingID uuid.UUID

func (l ListingID) String() string { return uuid.UUID(l).String() }
func (l ListingID) IsNil() bool    { return uuid.UUID(l) == uuid.Nil }

// MarshalText renders the canonical UUID form so JSON and map keys carry a
// string instead of a byte array.
func (l ListingID) MarshalText() ([]byte, error) {
	return []byte(l.String()), nil
}

// UnmarshalText parses the canonical UUID form.
func (l *ListingID) UnmarshalText(b []byte) error {
	parsed, err := uuid.Parse(string(b))
	if err != nil {
		return dErrors.New(dErrors.CodeInvalidInput, "listing id must be a valid UUID")
	}
	*l = ListingID(parsed)
	return nil
}

// NewListingID returns a fresh random listing identifier.
func NewListingID() ListingID { return ListingID(uuid.New()) }

// ParseListingID constructs a ListingID from external input.
func ParseListingID(s string) (ListingID, error) {
	if s == "" {
		return ListingID{}, dErrors.New(dErrors.CodeInvalidInput, "listing id cannot be empty")
	}
	id, err := uuid.Parse(s)
	if err != nil {
		return ListingID{}, dErrors.New(dErrors.CodeInvalidInput, "listing id must be a valid UUID")
	}
	if id == uuid.Nil {
		return ListingID{}, dErrors.New(dErrors.CodeInvalidInput, "listing id cannot be the nil UUID")
	}
	return ListingID(id), nil
}
