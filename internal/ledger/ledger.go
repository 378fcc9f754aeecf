// Package ledger defines the token ledger capability the marketplace core
// depends on.
//
// The ledger owns no marketplace logic: it moves unique assets, fungible share
// classes, and native currency between accounts, and reports balances. The
// marketplace trusts it for all value movement and treats its refusals as
// resource facts (sentinel errors), translating them into domain errors at the
// service layer.
package ledger

import (
	"context"

	id "fracmarket/pkg/domain"
)

// TokenLedger is the boundary contract with the external token system.
//
// Implementations must apply each call atomically: a failed transfer leaves
// both accounts untouched. Calls return pkg/platform/sentinel errors:
// ErrNotFound for unknown accounts/classes/assets, ErrInsufficientBalance for
// short debits and transfers, ErrConflict for duplicate mints.
type TokenLedger interface {
	// TransferUniqueAsset moves a supply-of-one asset between accounts.
	TransferUniqueAsset(ctx context.Context, from, to id.AccountID, item id.AssetID) error

	// MintFungible creates a share class and mints its entire fixed supply to
	// initialHolder. A class can be minted exactly once.
	MintFungible(ctx context.Context, class id.ShareClassID, totalSupply uint64, initialHolder id.AccountID) error

	// TransferFungible moves amount units of class between accounts.
	TransferFungible(ctx context.Context, class id.ShareClassID, from, to id.AccountID, amount uint64) error

	// BurnFungible destroys amount units held by holder, reducing the class
	// supply permanently.
	BurnFungible(ctx context.Context, class id.ShareClassID, holder id.AccountID, amount uint64) error

	// CreditNative adds native currency to an account, creating it if needed.
	CreditNative(ctx context.Context, account id.AccountID, amount uint64) error

	// DebitNative removes native currency from an account.
	DebitNative(ctx context.Context, account id.AccountID, amount uint64) error

	// NativeBalance reports an account's native currency balance. Unknown
	// accounts report zero.
	NativeBalance(ctx context.Context, account id.AccountID) (uint64, error)

	// FungibleBalance reports holder's balance in class.
	FungibleBalance(ctx context.Context, class id.ShareClassID, holder id.AccountID) (uint64, error)

	// UniqueAssetHolder reports the current holder of a unique asset.
	UniqueAssetHolder(ctx context.Context, item id.AssetID) (id.AccountID, error)
}
