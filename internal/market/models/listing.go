package models

import (
	"time"

	id "fracmarket/pkg/domain"
	dErrors "fracmarket/pkg/domain-errors"
)

// ListingState tracks where a listing sits in its lifecycle.
type ListingState string

const (
	// ListingStateListed: item custodied, shares tradable on the curve.
	ListingStateListed ListingState = "listed"
	// ListingStateSold: item bought out, proceeds earmarked, redemptions open.
	ListingStateSold ListingState = "sold"
	// ListingStateSettled: every share redeemed; terminal.
	ListingStateSettled ListingState = "settled"
)

// listingTransitions is the single source of truth for legal state moves.
// The lifecycle is strictly forward: listed → sold → settled.
var listingTransitions = map[ListingState]ListingState{
	ListingStateListed: ListingStateSold,
	ListingStateSold:   ListingStateSettled,
}

// CanTransitionTo reports whether the move is a legal forward transition.
func (s ListingState) CanTransitionTo(next ListingState) bool {
	return listingTransitions[s] == next
}

func (s ListingState) String() string { return string(s) }

// Listing is the aggregate root for one custodied item's fractional sale.
//
// Invariants (hold after every operation):
//   - CurrentPrice > 0
//   - SharesOutstanding <= ShareSupply
//   - State only ever moves listed → sold → settled
//   - Shares trade only while listed; redemptions only while sold
//   - ProceedsRemaining <= SaleProceeds, both zero before the sold transition
//
// SharesOutstanding counts shares not yet redeemed. It starts at ShareSupply,
// is invariant across fraction trades (shares move between accounts, supply
// does not change), and decreases only when redemptions burn shares.
type Listing struct {
	ID            id.ListingID    `json:"id"`
	Owner         id.AccountID    `json:"owner"`
	ItemRef       id.AssetID      `json:"item_ref"`
	ShareRef      id.ShareClassID `json:"share_ref"`
	EscrowAccount id.AccountID    `json:"escrow_account"`
	ShareTreasury id.AccountID    `json:"share_treasury"`
	CommunityPool id.AccountID    `json:"community_pool"`

	InitialPrice              uint64 `json:"initial_price"`
	CurrentPrice              uint64 `json:"current_price"`
	ShareSupply               uint64 `json:"share_supply"`
	SharesOutstanding         uint64 `json:"shares_outstanding"`
	CommunityRewardPercentage uint8  `json:"community_reward_percentage"`

	// SaleProceeds is the buyout payment earmarked at the sold transition;
	// ProceedsRemaining is what redemptions have not yet paid out.
	SaleProceeds      uint64 `json:"sale_proceeds"`
	ProceedsRemaining uint64 `json:"proceeds_remaining"`

	State     ListingState `json:"state"`
	CreatedAt time.Time    `json:"created_at"`
	UpdatedAt time.Time    `json:"updated_at"`
}

// ListingParams are the caller-supplied listing parameters, validated before
// any state is read.
type ListingParams struct {
	InitialPrice              uint64
	ShareSupply               uint64
	CommunityRewardPercentage uint8
}

// Validate enforces parameter invariants: price and supply positive, reward
// percentage within [0,100].
func (p ListingParams) Validate() error {
	if p.InitialPrice == 0 {
		return dErrors.New(dErrors.CodeInvalidPrice, "initial price must be positive")
	}
	if p.ShareSupply == 0 {
		return dErrors.New(dErrors.CodeInvalidSupply, "share supply must be positive")
	}
	if p.CommunityRewardPercentage > 100 {
		return dErrors.New(dErrors.CodeInvalidPercentage, "community reward percentage must be at most 100")
	}
	return nil
}

// NewListing constructs a listed aggregate with the full supply outstanding
// and the price at its reference point.
func NewListing(listingID id.ListingID, owner id.AccountID, item id.AssetID, params ListingParams, now time.Time) (*Listing, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	if owner.IsNil() {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "owner cannot be empty")
	}
	if item.IsNil() {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "item ref cannot be empty")
	}
	return &Listing{
		ID:                        listingID,
		Owner:                     owner,
		ItemRef:                   item,
		InitialPrice:              params.InitialPrice,
		CurrentPrice:              params.InitialPrice,
		ShareSupply:               params.ShareSupply,
		SharesOutstanding:         params.ShareSupply,
		CommunityRewardPercentage: params.CommunityRewardPercentage,
		State:                     ListingStateListed,
		CreatedAt:                 now,
		UpdatedAt:                 now,
	}, nil
}

// IsListed reports whether fraction trades are currently allowed.
func (l *Listing) IsListed() bool { return l.State == ListingStateListed }

// CanTrade checks that fraction buys and sells are legal in the current state.
func (l *Listing) CanTrade() error {
	if l.State != ListingStateListed {
		return dErrors.New(dErrors.CodeListingNotActive, "listing is no longer active")
	}
	return nil
}

// ApplyPrice persists a pricing engine output. The engine is the only source
// of price mutations.
func (l *Listing) ApplyPrice(newPrice uint64, now time.Time) {
	l.CurrentPrice = newPrice
	l.UpdatedAt = now
}

// CanSell checks the buyout transition precondition.
func (l *Listing) CanSell() error {
	if !l.State.CanTransitionTo(ListingStateSold) {
		return dErrors.New(dErrors.CodeListingNotActive, "listing is no longer active")
	}
	return nil
}

// ApplySale records the buyout: ownership moves to the buyer, proceeds are
// earmarked for redemption, and the state advances to sold.
// Call CanSell first.
func (l *Listing) ApplySale(buyer id.AccountID, proceeds uint64, now time.Time) {
	l.Owner = buyer
	l.SaleProceeds = proceeds
	l.ProceedsRemaining = proceeds
	l.State = ListingStateSold
	l.UpdatedAt = now
}

// CanRedeem checks the redemption preconditions for the current state.
func (l *Listing) CanRedeem() error {
	switch l.State {
	case ListingStateSold:
		return nil
	case ListingStateSettled:
		return dErrors.New(dErrors.CodeAlreadySettled, "all shares have been redeemed")
	default:
		return dErrors.New(dErrors.CodeListingNotSold, "item has not been sold yet")
	}
}

// ApplyRedemption burns shares from the outstanding count, draws down the
// earmarked proceeds, and settles the listing when the last share is redeemed.
// Call CanRedeem first; shares and payout must already be validated against
// the holder balance and ProceedsRemaining.
func (l *Listing) ApplyRedemption(shares, payout uint64, now time.Time) {
	l.SharesOutstanding -= shares
	l.ProceedsRemaining -= payout
	l.UpdatedAt = now
	if l.SharesOutstanding == 0 {
		l.State = ListingStateSettled
	}
}
