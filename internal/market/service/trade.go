package service

import (
	"context"
	"errors"
	"time"

	"fracmarket/internal/events"
	"fracmarket/internal/market/models"
	"fracmarket/internal/market/pricing"
	"fracmarket/pkg/derive"
	id "fracmarket/pkg/domain"
	dErrors "fracmarket/pkg/domain-errors"
	"fracmarket/pkg/platform/sentinel"
	"fracmarket/pkg/requestcontext"
)

// TradeResult reports a committed fraction trade.
type TradeResult struct {
	Listing *models.Listing
	// Shares moved by the trade.
	Shares uint64
	// Total native funds moved: cost on a buy, gross proceeds on a sell.
	Total uint64
	// Fee retained by the marketplace treasury.
	Fee uint64
	// NewPrice after the trade committed.
	NewPrice uint64
}

// BuyFraction purchases amount shares from the listing's share treasury at
// the current curve price. The cost splits into marketplace fee, community
// reward, and the owner's remainder.
func (s *Service) BuyFraction(ctx context.Context, buyer id.AccountID, listingID id.ListingID, amount uint64) (*TradeResult, error) {
	start := time.Now()

	result, err := s.buyFraction(ctx, buyer, listingID, amount)
	if err != nil {
		s.metrics.RecordTrade("buy", "error")
		return nil, err
	}

	s.cache.Set(ctx, result.Listing)
	s.publish(ctx, events.Event{
		Type:        events.EventPriceUpdated,
		Marketplace: s.cfg.Marketplace,
		ListingID:   listingID,
		ItemRef:     result.Listing.ItemRef,
		Actor:       buyer,
		Amount:      result.Shares,
		Price:       result.NewPrice,
		Value:       result.Total,
	})
	s.metrics.RecordTrade("buy", "ok")
	s.metrics.RecordVolume("buy", result.Shares, result.Total)
	s.metrics.ObserveTradeLatency("buy", time.Since(start))

	s.logger.InfoContext(ctx, "fraction buy",
		"listing_id", listingID.String(),
		"buyer", buyer.String(),
		"shares", result.Shares,
		"cost", result.Total,
		"new_price", result.NewPrice,
	)
	return result, nil
}

func (s *Service) buyFraction(ctx context.Context, buyer id.AccountID, listingID id.ListingID, amount uint64) (*TradeResult, error) {
	if buyer.IsNil() {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "buyer cannot be empty")
	}
	if amount == 0 {
		return nil, dErrors.New(dErrors.CodeInvalidAmount, "amount must be positive")
	}

	var result *TradeResult
	err := s.tx.RunInTx(ctx, []string{listingID.String()}, func(ctx context.Context) error {
		registry, err := s.registry(ctx)
		if err != nil {
			return err
		}
		listing, err := s.loadListing(ctx, listingID)
		if err != nil {
			return err
		}
		if err := listing.CanTrade(); err != nil {
			return err
		}

		available, err := s.ledger.FungibleBalance(ctx, listing.ShareRef, listing.ShareTreasury)
		if err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to read treasury balance")
		}
		if available < amount {
			return dErrors.New(dErrors.CodeInsufficientLiquidity, "share treasury holds too few shares")
		}

		quote, err := pricing.QuoteBuy(listing, amount)
		if err != nil {
			return err
		}
		fee, community, ownerCut, err := s.splitCost(quote.Total, listing.CommunityRewardPercentage)
		if err != nil {
			return err
		}

		if err := s.ledger.DebitNative(ctx, buyer, quote.Total); err != nil {
			if errors.Is(err, sentinel.ErrInsufficientBalance) {
				return dErrors.New(dErrors.CodeInsufficientFunds, "buyer cannot cover the cost")
			}
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to debit buyer")
		}

		undo := []func() error{func() error { return s.ledger.CreditNative(ctx, buyer, quote.Total) }}
		fail := func(err error, msg string) error {
			s.unwind(ctx, "buyFraction", undo)
			return dErrors.Wrap(err, dErrors.CodeInternal, msg)
		}

		if err := s.ledger.CreditNative(ctx, registry.Treasury, fee); err != nil {
			return fail(err, "failed to credit treasury fee")
		}
		undo = append(undo, func() error { return s.ledger.DebitNative(ctx, registry.Treasury, fee) })

		if err := s.ledger.CreditNative(ctx, listing.CommunityPool, community); err != nil {
			return fail(err, "failed to credit community pool")
		}
		undo = append(undo, func() error { return s.ledger.DebitNative(ctx, listing.CommunityPool, community) })

		if err := s.ledger.CreditNative(ctx, listing.Owner, ownerCut); err != nil {
			return fail(err, "failed to credit owner")
		}
		undo = append(undo, func() error { return s.ledger.DebitNative(ctx, listing.Owner, ownerCut) })

		if err := s.ledger.TransferFungible(ctx, listing.ShareRef, listing.ShareTreasury, buyer, amount); err != nil {
			return fail(err, "failed to transfer shares")
		}
		undo = append(undo, func() error {
			return s.ledger.TransferFungible(ctx, listing.ShareRef, buyer, listing.ShareTreasury, amount)
		})

		listing.ApplyPrice(quote.NewPrice, requestcontext.Now(ctx))
		if err := s.listings.Update(ctx, listing); err != nil {
			return fail(err, "failed to persist listing")
		}

		result = &TradeResult{
			Listing:  listing,
			Shares:   amount,
			Total:    quote.Total,
			Fee:      fee,
			NewPrice: quote.NewPrice,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// SellFraction sells amount shares back to the share treasury at the current
// curve price. Proceeds minus the marketplace fee are paid out of the
// settlement escrow.
func (s *Service) SellFraction(ctx context.Context, seller id.AccountID, listingID id.ListingID, amount uint64) (*TradeResult, error) {
	start := time.Now()

	result, err := s.sellFraction(ctx, seller, listingID, amount)
	if err != nil {
		s.metrics.RecordTrade("sell", "error")
		return nil, err
	}

	s.cache.Set(ctx, result.Listing)
	s.publish(ctx, events.Event{
		Type:        events.EventPriceUpdated,
		Marketplace: s.cfg.Marketplace,
		ListingID:   listingID,
		ItemRef:     result.Listing.ItemRef,
		Actor:       seller,
		Amount:      result.Shares,
		Price:       result.NewPrice,
		Value:       result.Total,
	})
	s.metrics.RecordTrade("sell", "ok")
	s.metrics.RecordVolume("sell", result.Shares, result.Total)
	s.metrics.ObserveTradeLatency("sell", time.Since(start))

	s.logger.InfoContext(ctx, "fraction sell",
		"listing_id", listingID.String(),
		"seller", seller.String(),
		"shares", result.Shares,
		"proceeds", result.Total,
		"new_price", result.NewPrice,
	)
	return result, nil
}

func (s *Service) sellFraction(ctx context.Context, seller id.AccountID, listingID id.ListingID, amount uint64) (*TradeResult, error) {
	if seller.IsNil() {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "seller cannot be empty")
	}
	if amount == 0 {
		return nil, dErrors.New(dErrors.CodeInvalidAmount, "amount must be positive")
	}

	var result *TradeResult
	err := s.tx.RunInTx(ctx, []string{listingID.String(), s.cfg.Marketplace.String()}, func(ctx context.Context) error {
		registry, err := s.registry(ctx)
		if err != nil {
			return err
		}
		listing, err := s.loadListing(ctx, listingID)
		if err != nil {
			return err
		}
		if err := listing.CanTrade(); err != nil {
			return err
		}

		held, err := s.ledger.FungibleBalance(ctx, listing.ShareRef, seller)
		if err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to read seller balance")
		}
		if held < amount {
			return dErrors.New(dErrors.CodeInsufficientShares, "seller holds too few shares")
		}

		quote, err := pricing.QuoteSell(listing, amount)
		if err != nil {
			return err
		}
		fee, err := pricing.ProRata(quote.Total, s.cfg.FeeBps, 10_000)
		if err != nil {
			return err
		}
		payout := quote.Total - fee

		if err := registry.CanReleaseEscrow(quote.Total); err != nil {
			return err
		}
		settlement := derive.SettlementEscrow(s.cfg.Marketplace)

		if err := s.ledger.TransferFungible(ctx, listing.ShareRef, seller, listing.ShareTreasury, amount); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to return shares to treasury")
		}

		undo := []func() error{func() error {
			return s.ledger.TransferFungible(ctx, listing.ShareRef, listing.ShareTreasury, seller, amount)
		}}
		fail := func(err error, msg string) error {
			s.unwind(ctx, "sellFraction", undo)
			return dErrors.Wrap(err, dErrors.CodeInternal, msg)
		}

		if err := s.ledger.DebitNative(ctx, settlement, quote.Total); err != nil {
			return fail(err, "escrow balance out of sync with settlement account")
		}
		undo = append(undo, func() error { return s.ledger.CreditNative(ctx, settlement, quote.Total) })

		if err := s.ledger.CreditNative(ctx, seller, payout); err != nil {
			return fail(err, "failed to pay seller")
		}
		undo = append(undo, func() error { return s.ledger.DebitNative(ctx, seller, payout) })

		if err := s.ledger.CreditNative(ctx, registry.Treasury, fee); err != nil {
			return fail(err, "failed to credit treasury fee")
		}
		undo = append(undo, func() error { return s.ledger.DebitNative(ctx, registry.Treasury, fee) })

		registry.ApplyEscrowDebit(quote.Total)
		if err := s.registries.Update(ctx, registry); err != nil {
			return fail(err, "failed to persist registry")
		}

		listing.ApplyPrice(quote.NewPrice, requestcontext.Now(ctx))
		if err := s.listings.Update(ctx, listing); err != nil {
			return fail(err, "failed to persist listing")
		}

		result = &TradeResult{
			Listing:  listing,
			Shares:   amount,
			Total:    quote.Total,
			Fee:      fee,
			NewPrice: quote.NewPrice,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// BuyoutResult reports a committed whole-item buyout.
type BuyoutResult struct {
	Listing *models.Listing
	// Price paid into the settlement escrow.
	Price uint64
	// UnsoldShares returned to the prior owner.
	UnsoldShares uint64
	PriorOwner   id.AccountID
}

// BuyNft buys the whole item at the buyout price. The payment funds the
// settlement escrow for redemptions, the item leaves custody to the buyer,
// and any unsold treasury shares return to the prior owner as a redeemable
// holding.
func (s *Service) BuyNft(ctx context.Context, buyer id.AccountID, listingID id.ListingID) (*BuyoutResult, error) {
	start := time.Now()

	if buyer.IsNil() {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "buyer cannot be empty")
	}

	var result *BuyoutResult
	err := s.tx.RunInTx(ctx, []string{listingID.String(), s.cfg.Marketplace.String()}, func(ctx context.Context) error {
		registry, err := s.registry(ctx)
		if err != nil {
			return err
		}
		listing, err := s.loadListing(ctx, listingID)
		if err != nil {
			return err
		}
		if err := listing.CanSell(); err != nil {
			return err
		}

		price, err := pricing.BuyoutPrice(listing)
		if err != nil {
			return err
		}
		settlement := derive.SettlementEscrow(s.cfg.Marketplace)

		if err := s.ledger.DebitNative(ctx, buyer, price); err != nil {
			if errors.Is(err, sentinel.ErrInsufficientBalance) {
				return dErrors.New(dErrors.CodeInsufficientFunds, "buyer cannot cover the buyout price")
			}
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to debit buyer")
		}

		undo := []func() error{func() error { return s.ledger.CreditNative(ctx, buyer, price) }}
		fail := func(err error, code dErrors.Code, msg string) error {
			s.unwind(ctx, "buyNft", undo)
			return dErrors.Wrap(err, code, msg)
		}

		if err := s.ledger.CreditNative(ctx, settlement, price); err != nil {
			return fail(err, dErrors.CodeInternal, "failed to fund settlement escrow")
		}
		undo = append(undo, func() error { return s.ledger.DebitNative(ctx, settlement, price) })

		if err := s.ledger.TransferUniqueAsset(ctx, listing.EscrowAccount, buyer, listing.ItemRef); err != nil {
			return fail(err, dErrors.CodeItemTransferFailed, "failed to release item to buyer")
		}
		undo = append(undo, func() error {
			return s.ledger.TransferUniqueAsset(ctx, buyer, listing.EscrowAccount, listing.ItemRef)
		})

		priorOwner := listing.Owner
		unsold, err := s.ledger.FungibleBalance(ctx, listing.ShareRef, listing.ShareTreasury)
		if err != nil {
			return fail(err, dErrors.CodeInternal, "failed to read treasury balance")
		}
		if unsold > 0 {
			if err := s.ledger.TransferFungible(ctx, listing.ShareRef, listing.ShareTreasury, priorOwner, unsold); err != nil {
				return fail(err, dErrors.CodeInternal, "failed to return unsold shares")
			}
			undo = append(undo, func() error {
				return s.ledger.TransferFungible(ctx, listing.ShareRef, priorOwner, listing.ShareTreasury, unsold)
			})
		}

		listing.ApplySale(buyer, price, requestcontext.Now(ctx))
		registry.ApplyEscrowCredit(price)

		if err := s.registries.Update(ctx, registry); err != nil {
			return fail(err, dErrors.CodeInternal, "failed to persist registry")
		}
		if err := s.listings.Update(ctx, listing); err != nil {
			return fail(err, dErrors.CodeInternal, "failed to persist listing")
		}

		result = &BuyoutResult{
			Listing:      listing,
			Price:        price,
			UnsoldShares: unsold,
			PriorOwner:   priorOwner,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.cache.Set(ctx, result.Listing)
	s.publish(ctx, events.Event{
		Type:        events.EventNFTSold,
		Marketplace: s.cfg.Marketplace,
		ListingID:   listingID,
		ItemRef:     result.Listing.ItemRef,
		Actor:       buyer,
		Price:       result.Listing.CurrentPrice,
		Value:       result.Price,
	})
	s.metrics.IncrementTransition(models.ListingStateSold.String())
	s.metrics.ObserveTradeLatency("buyout", time.Since(start))

	s.logger.InfoContext(ctx, "item bought out",
		"listing_id", listingID.String(),
		"buyer", buyer.String(),
		"price", result.Price,
		"unsold_shares", result.UnsoldShares,
	)
	return result, nil
}

// FundEscrow moves native funds from the caller into the settlement escrow,
// providing sell-side liquidity before any buyout has funded it.
func (s *Service) FundEscrow(ctx context.Context, from id.AccountID, amount uint64) (*models.Registry, error) {
	if from.IsNil() {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "funding account cannot be empty")
	}
	if amount == 0 {
		return nil, dErrors.New(dErrors.CodeInvalidAmount, "amount must be positive")
	}

	var registry *models.Registry
	err := s.tx.RunInTx(ctx, []string{s.cfg.Marketplace.String()}, func(ctx context.Context) error {
		var err error
		registry, err = s.registry(ctx)
		if err != nil {
			return err
		}

		if err := s.ledger.DebitNative(ctx, from, amount); err != nil {
			if errors.Is(err, sentinel.ErrInsufficientBalance) {
				return dErrors.New(dErrors.CodeInsufficientFunds, "funding account cannot cover the amount")
			}
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to debit funding account")
		}
		if err := s.ledger.CreditNative(ctx, derive.SettlementEscrow(s.cfg.Marketplace), amount); err != nil {
			s.compensate(ctx, "fundEscrow", func() error { return s.ledger.CreditNative(ctx, from, amount) })
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to credit settlement escrow")
		}

		registry.ApplyEscrowCredit(amount)
		if err := s.registries.Update(ctx, registry); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to persist registry")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "settlement escrow funded",
		"from", from.String(),
		"amount", amount,
		"escrow_balance", registry.EscrowBalance,
	)
	return registry, nil
}

// splitCost divides a buy cost into marketplace fee, community reward, and
// the owner's remainder. The split is exact: the three parts always sum to
// the total.
func (s *Service) splitCost(total uint64, communityPct uint8) (fee, community, owner uint64, err error) {
	fee, err = pricing.ProRata(total, s.cfg.FeeBps, 10_000)
	if err != nil {
		return 0, 0, 0, err
	}
	community, err = pricing.ProRata(total-fee, uint64(communityPct), 100)
	if err != nil {
		return 0, 0, 0, err
	}
	return fee, community, total - fee - community, nil
}

// unwind runs compensating ledger moves in reverse order after a
// mid-sequence failure.
func (s *Service) unwind(ctx context.Context, operation string, undo []func() error) {
	for i := len(undo) - 1; i >= 0; i-- {
		s.compensate(ctx, operation, undo[i])
	}
}
