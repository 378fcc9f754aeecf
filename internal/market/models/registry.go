package models

import (
	"time"

	id "fracmarket/pkg/domain"
	dErrors "fracmarket/pkg/domain-errors"
)

// Registry is the marketplace-wide singleton record.
//
// Invariants:
//   - Exactly one Registry exists per marketplace deployment address
//   - Authority and Treasury are immutable after creation
//   - EscrowBalance is never negative (enforced by uint64 plus guarded debits)
type Registry struct {
	Marketplace   id.AccountID `json:"marketplace"`
	Authority     id.AccountID `json:"authority"`
	Treasury      id.AccountID `json:"treasury"`
	EscrowBalance uint64       `json:"escrow_balance"`
	CreatedAt     time.Time    `json:"created_at"`
}

// NewRegistry validates identities and constructs the singleton record with a
// zero escrow balance.
func NewRegistry(marketplace, authority, treasury id.AccountID, now time.Time) (*Registry, error) {
	if marketplace.IsNil() {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "marketplace address cannot be empty")
	}
	if authority.IsNil() {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "authority cannot be empty")
	}
	if treasury.IsNil() {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "treasury cannot be empty")
	}
	return &Registry{
		Marketplace: marketplace,
		Authority:   authority,
		Treasury:    treasury,
		CreatedAt:   now,
	}, nil
}

// CanReleaseEscrow checks that a payout would not drive the escrow negative.
func (r *Registry) CanReleaseEscrow(amount uint64) error {
	if r.EscrowBalance < amount {
		return dErrors.New(dErrors.CodeInsufficientLiquidity, "marketplace escrow cannot cover payout")
	}
	return nil
}

// ApplyEscrowCredit records settlement funds entering marketplace custody.
func (r *Registry) ApplyEscrowCredit(amount uint64) {
	r.EscrowBalance += amount
}

// ApplyEscrowDebit records settlement funds leaving marketplace custody.
// Call CanReleaseEscrow first.
func (r *Registry) ApplyEscrowDebit(amount uint64) {
	r.EscrowBalance -= amount
}
