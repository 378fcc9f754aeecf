package service

import (
	"context"
	"time"

	"fracmarket/internal/events"
	"fracmarket/internal/market/models"
	"fracmarket/internal/market/pricing"
	"fracmarket/pkg/derive"
	id "fracmarket/pkg/domain"
	dErrors "fracmarket/pkg/domain-errors"
	"fracmarket/pkg/requestcontext"
)

// RedemptionResult reports a committed redemption.
type RedemptionResult struct {
	Listing *models.Listing
	// Shares burned.
	Shares uint64
	// Payout drawn from the settlement escrow.
	Payout uint64
	// Settled reports whether this redemption retired the last outstanding
	// share.
	Settled bool
}

// RedeemFractions burns the holder's entire share balance against the
// earmarked sale proceeds. The payout is the holder's proportional claim,
// floored; the rounding remainder stays with the marketplace.
func (s *Service) RedeemFractions(ctx context.Context, holder id.AccountID, listingID id.ListingID) (*RedemptionResult, error) {
	start := time.Now()

	if holder.IsNil() {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "holder cannot be empty")
	}

	var result *RedemptionResult
	err := s.tx.RunInTx(ctx, []string{listingID.String(), s.cfg.Marketplace.String()}, func(ctx context.Context) error {
		registry, err := s.registry(ctx)
		if err != nil {
			return err
		}
		listing, err := s.loadListing(ctx, listingID)
		if err != nil {
			return err
		}
		if err := listing.CanRedeem(); err != nil {
			return err
		}

		held, err := s.ledger.FungibleBalance(ctx, listing.ShareRef, holder)
		if err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to read holder balance")
		}
		if held == 0 {
			return dErrors.New(dErrors.CodeNoSharesHeld, "holder has no shares to redeem")
		}

		payout, err := pricing.RedemptionPayout(listing.SaleProceeds, held, listing.ShareSupply)
		if err != nil {
			return err
		}
		if err := registry.CanReleaseEscrow(payout); err != nil {
			return err
		}
		settlement := derive.SettlementEscrow(s.cfg.Marketplace)

		// Native moves first: a burn cannot be compensated, so it commits
		// last, once nothing after it can fail.
		if err := s.ledger.DebitNative(ctx, settlement, payout); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "escrow balance out of sync with settlement account")
		}

		undo := []func() error{func() error { return s.ledger.CreditNative(ctx, settlement, payout) }}
		fail := func(err error, msg string) error {
			s.unwind(ctx, "redeemFractions", undo)
			return dErrors.Wrap(err, dErrors.CodeInternal, msg)
		}

		if err := s.ledger.CreditNative(ctx, holder, payout); err != nil {
			return fail(err, "failed to pay holder")
		}
		undo = append(undo, func() error { return s.ledger.DebitNative(ctx, holder, payout) })

		if err := s.ledger.BurnFungible(ctx, listing.ShareRef, holder, held); err != nil {
			return fail(err, "failed to burn shares")
		}

		listing.ApplyRedemption(held, payout, requestcontext.Now(ctx))
		registry.ApplyEscrowDebit(payout)

		if err := s.registries.Update(ctx, registry); err != nil {
			return fail(err, "failed to persist registry")
		}
		if err := s.listings.Update(ctx, listing); err != nil {
			return fail(err, "failed to persist listing")
		}

		result = &RedemptionResult{
			Listing: listing,
			Shares:  held,
			Payout:  payout,
			Settled: listing.State == models.ListingStateSettled,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.cache.Set(ctx, result.Listing)
	s.publish(ctx, events.Event{
		Type:        events.EventFractionsRedeemed,
		Marketplace: s.cfg.Marketplace,
		ListingID:   listingID,
		ItemRef:     result.Listing.ItemRef,
		Actor:       holder,
		Amount:      result.Shares,
		Value:       result.Payout,
	})
	s.metrics.RecordRedemption(result.Payout)
	s.metrics.ObserveTradeLatency("redeem", time.Since(start))
	if result.Settled {
		s.metrics.IncrementTransition(models.ListingStateSettled.String())
	}

	s.logger.InfoContext(ctx, "fractions redeemed",
		"listing_id", listingID.String(),
		"holder", holder.String(),
		"shares", result.Shares,
		"payout", result.Payout,
		"settled", result.Settled,
	)
	return result, nil
}
