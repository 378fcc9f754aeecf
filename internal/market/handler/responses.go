package handler

import (
	"time"

	"fracmarket/internal/market/models"
	"fracmarket/internal/market/pricing"
	"fracmarket/internal/market/service"
)

// ListingResponse is the HTTP representation of a listing.
type ListingResponse struct {
	ID                        string    `json:"id"`
	Owner                     string    `json:"owner"`
	ItemRef                   string    `json:"item_ref"`
	ShareRef                  string    `json:"share_ref"`
	State                     string    `json:"state"`
	InitialPrice              uint64    `json:"initial_price"`
	CurrentPrice              uint64    `json:"current_price"`
	ShareSupply               uint64    `json:"share_supply"`
	SharesOutstanding         uint64    `json:"shares_outstanding"`
	CommunityRewardPercentage uint8     `json:"community_reward_percentage"`
	SaleProceeds              uint64    `json:"sale_proceeds,omitempty"`
	ProceedsRemaining         uint64    `json:"proceeds_remaining,omitempty"`
	CreatedAt                 time.Time `json:"created_at"`
	UpdatedAt                 time.Time `json:"updated_at"`
}

// FromListing converts a domain listing to its HTTP representation.
func FromListing(l *models.Listing) *ListingResponse {
	return &ListingResponse{
		ID:                        l.ID.String(),
		Owner:                     l.Owner.String(),
		ItemRef:                   l.ItemRef.String(),
		ShareRef:                  l.ShareRef.String(),
		State:                     l.State.String(),
		InitialPrice:              l.InitialPrice,
		CurrentPrice:              l.CurrentPrice,
		ShareSupply:               l.ShareSupply,
		SharesOutstanding:         l.SharesOutstanding,
		CommunityRewardPercentage: l.CommunityRewardPercentage,
		SaleProceeds:              l.SaleProceeds,
		ProceedsRemaining:         l.ProceedsRemaining,
		CreatedAt:                 l.CreatedAt,
		UpdatedAt:                 l.UpdatedAt,
	}
}

// RegistryResponse is the HTTP representation of the marketplace registry.
type RegistryResponse struct {
	Marketplace   string    `json:"marketplace"`
	Authority     string    `json:"authority"`
	Treasury      string    `json:"treasury"`
	EscrowBalance uint64    `json:"escrow_balance"`
	CreatedAt     time.Time `json:"created_at"`
}

func FromRegistry(r *models.Registry) *RegistryResponse {
	return &RegistryResponse{
		Marketplace:   r.Marketplace.String(),
		Authority:     r.Authority.String(),
		Treasury:      r.Treasury.String(),
		EscrowBalance: r.EscrowBalance,
		CreatedAt:     r.CreatedAt,
	}
}

// QuoteResponse is the HTTP response for quote endpoints.
type QuoteResponse struct {
	Amount   uint64 `json:"amount"`
	Total    uint64 `json:"total"`
	NewPrice uint64 `json:"new_price"`
}

func FromQuote(amount uint64, q pricing.Quote) *QuoteResponse {
	return &QuoteResponse{Amount: amount, Total: q.Total, NewPrice: q.NewPrice}
}

// TradeResponse is the HTTP response for committed fraction trades.
type TradeResponse struct {
	Listing  *ListingResponse `json:"listing"`
	Shares   uint64           `json:"shares"`
	Total    uint64           `json:"total"`
	Fee      uint64           `json:"fee"`
	NewPrice uint64           `json:"new_price"`
}

func FromTrade(result *service.TradeResult) *TradeResponse {
	return &TradeResponse{
		Listing:  FromListing(result.Listing),
		Shares:   result.Shares,
		Total:    result.Total,
		Fee:      result.Fee,
		NewPrice: result.NewPrice,
	}
}

// BuyoutResponse is the HTTP response for a whole-item buyout.
type BuyoutResponse struct {
	Listing      *ListingResponse `json:"listing"`
	Price        uint64           `json:"price"`
	UnsoldShares uint64           `json:"unsold_shares"`
	PriorOwner   string           `json:"prior_owner"`
}

func FromBuyout(result *service.BuyoutResult) *BuyoutResponse {
	return &BuyoutResponse{
		Listing:      FromListing(result.Listing),
		Price:        result.Price,
		UnsoldShares: result.UnsoldShares,
		PriorOwner:   result.PriorOwner.String(),
	}
}

// RedemptionResponse is the HTTP response for a redemption.
type RedemptionResponse struct {
	Listing *ListingResponse `json:"listing"`
	Shares  uint64           `json:"shares"`
	Payout  uint64           `json:"payout"`
	Settled bool             `json:"settled"`
}

func FromRedemption(result *service.RedemptionResult) *RedemptionResponse {
	return &RedemptionResponse{
		Listing: FromListing(result.Listing),
		Shares:  result.Shares,
		Payout:  result.Payout,
		Settled: result.Settled,
	}
}
