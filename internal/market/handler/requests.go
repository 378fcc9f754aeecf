package handler

import (
	"strings"

	"fracmarket/internal/market/models"
	id "fracmarket/pkg/domain"
	dErrors "fracmarket/pkg/domain-errors"
)

// InitializeRequest is the HTTP request body for POST /marketplace/initialize.
type InitializeRequest struct {
	Treasury string `json:"treasury"`

	parsedTreasury id.AccountID
}

func (r *InitializeRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	r.Treasury = strings.TrimSpace(r.Treasury)
	if r.Treasury == "" {
		return dErrors.New(dErrors.CodeValidation, "treasury is required")
	}
	treasury, err := id.ParseAccountID(r.Treasury)
	if err != nil {
		return err
	}
	r.parsedTreasury = treasury
	return nil
}

func (r *InitializeRequest) ParsedTreasury() id.AccountID { return r.parsedTreasury }

// CreateListingRequest is the HTTP request body for POST /listings.
type CreateListingRequest struct {
	ItemRef                   string `json:"item_ref"`
	InitialPrice              uint64 `json:"initial_price"`
	ShareSupply               uint64 `json:"share_supply"`
	CommunityRewardPercentage uint8  `json:"community_reward_percentage"`

	parsedItem id.AssetID
}

func (r *CreateListingRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	r.ItemRef = strings.TrimSpace(r.ItemRef)
	if r.ItemRef == "" {
		return dErrors.New(dErrors.CodeValidation, "item_ref is required")
	}
	item, err := id.ParseAssetID(r.ItemRef)
	if err != nil {
		return err
	}
	r.parsedItem = item

	// Full parameter validation happens in the domain model; reject the
	// obviously malformed values here for a clean 400.
	return r.Params().Validate()
}

func (r *CreateListingRequest) ParsedItem() id.AssetID { return r.parsedItem }

func (r *CreateListingRequest) Params() models.ListingParams {
	return models.ListingParams{
		InitialPrice:              r.InitialPrice,
		ShareSupply:               r.ShareSupply,
		CommunityRewardPercentage: r.CommunityRewardPercentage,
	}
}

// TradeRequest is the HTTP request body for buy-shares and sell-shares.
type TradeRequest struct {
	Amount uint64 `json:"amount"`
}

func (r *TradeRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	if r.Amount == 0 {
		return dErrors.New(dErrors.CodeInvalidAmount, "amount must be positive")
	}
	return nil
}

// FundEscrowRequest is the HTTP request body for POST /marketplace/escrow/fund.
type FundEscrowRequest struct {
	Amount uint64 `json:"amount"`
}

func (r *FundEscrowRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	if r.Amount == 0 {
		return dErrors.New(dErrors.CodeInvalidAmount, "amount must be positive")
	}
	return nil
}
