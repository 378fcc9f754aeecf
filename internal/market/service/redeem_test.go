package service

import (
	"fracmarket/internal/events"
	"fracmarket/internal/market/models"
	"fracmarket/pkg/derive"
	dErrors "fracmarket/pkg/domain-errors"
)

func (s *ServiceSuite) TestRedeemFractions_RequiresSoldListing() {
	s.initMarketplace()
	listing := s.listItem("alice", "asset-1")
	s.fund("bob", 200_000_000)

	_, err := s.service.BuyFraction(s.ctx, "bob", listing.ID, 10)
	s.Require().NoError(err)

	_, err = s.service.RedeemFractions(s.ctx, "bob", listing.ID)
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeListingNotSold))

	s.Run("no mutation", func() {
		s.Equal(uint64(10), s.shareBalance(listing.ShareRef, "bob"))
		got, err := s.service.GetListing(s.ctx, listing.ID)
		s.Require().NoError(err)
		s.Equal(uint64(1_000), got.SharesOutstanding)
	})
}

func (s *ServiceSuite) TestRedeemFractions_NoSharesHeld() {
	s.initMarketplace()
	listing := s.listItem("alice", "asset-1")
	s.fund("carol", 1_200_000_000)

	_, err := s.service.BuyNft(s.ctx, "carol", listing.ID)
	s.Require().NoError(err)

	_, err = s.service.RedeemFractions(s.ctx, "bob", listing.ID)
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeNoSharesHeld))
}

// TestFullLifecycle drives one listing from creation through fraction trades,
// buyout, and redemption down to settlement, checking conservation at the end.
func (s *ServiceSuite) TestFullLifecycle() {
	s.initMarketplace()
	listing := s.listItem("alice", "asset-1")
	s.fund("bob", 200_000_000)
	s.fund("lp", 50_000_000)
	s.fund("carol", 1_200_000_000)

	_, err := s.service.BuyFraction(s.ctx, "bob", listing.ID, 100)
	s.Require().NoError(err)
	_, err = s.service.FundEscrow(s.ctx, "lp", 50_000_000)
	s.Require().NoError(err)
	_, err = s.service.SellFraction(s.ctx, "bob", listing.ID, 40)
	s.Require().NoError(err)

	// Price after buy 100 then sell 40: 1_000_000 + 60 * 1_000
	got, err := s.service.GetListing(s.ctx, listing.ID)
	s.Require().NoError(err)
	s.Equal(uint64(1_060_000), got.CurrentPrice)

	buyout, err := s.service.BuyNft(s.ctx, "carol", listing.ID)
	s.Require().NoError(err)
	// 1_060_000 * 1_000 * 105 / 100
	s.Equal(uint64(1_113_000_000), buyout.Price)
	s.Equal(uint64(940), buyout.UnsoldShares)

	s.Run("bob redeems his 60 shares", func() {
		bobBefore := s.nativeBalance("bob")

		result, err := s.service.RedeemFractions(s.ctx, "bob", listing.ID)
		s.Require().NoError(err)
		s.Equal(uint64(60), result.Shares)
		// 1_113_000_000 * 60 / 1_000
		s.Equal(uint64(66_780_000), result.Payout)
		s.False(result.Settled)

		s.Equal(bobBefore+66_780_000, s.nativeBalance("bob"))
		s.Zero(s.shareBalance(listing.ShareRef, "bob"))
	})

	s.Run("second redemption by the same holder is rejected", func() {
		_, err := s.service.RedeemFractions(s.ctx, "bob", listing.ID)
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeNoSharesHeld))
	})

	s.Run("alice redeems the returned unsold shares and settles the listing", func() {
		result, err := s.service.RedeemFractions(s.ctx, "alice", listing.ID)
		s.Require().NoError(err)
		s.Equal(uint64(940), result.Shares)
		// 1_113_000_000 * 940 / 1_000
		s.Equal(uint64(1_046_220_000), result.Payout)
		s.True(result.Settled)

		got, err := s.service.GetListing(s.ctx, listing.ID)
		s.Require().NoError(err)
		s.Equal(models.ListingStateSettled, got.State)
		s.Zero(got.SharesOutstanding)
		s.Zero(got.ProceedsRemaining)
	})

	s.Run("redemption after settlement is rejected", func() {
		_, err := s.service.RedeemFractions(s.ctx, "carol", listing.ID)
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeAlreadySettled))
	})

	s.Run("conservation: payouts drained exactly the earmarked proceeds", func() {
		registry, err := s.service.registries.Get(s.ctx, testMarketplace)
		s.Require().NoError(err)
		// Seeded 50_000_000, sell drew 43_220_000, buyout added
		// 1_113_000_000, redemptions drew it back out in full.
		s.Equal(uint64(6_780_000), registry.EscrowBalance)
		s.Equal(uint64(6_780_000), s.nativeBalance(derive.SettlementEscrow(testMarketplace)))
	})

	s.Run("redeemed event stream", func() {
		published := s.recorder.ByListing(listing.ID)
		var redeemed int
		for _, e := range published {
			if e.Type == events.EventFractionsRedeemed {
				redeemed++
			}
		}
		s.Equal(2, redeemed)
	})

	s.Run("settled item can be listed again", func() {
		second, err := s.service.ListNft(s.ctx, "carol", "asset-1", models.ListingParams{
			InitialPrice:              2_000_000,
			ShareSupply:               500,
			CommunityRewardPercentage: 10,
		})
		s.Require().NoError(err)
		s.Equal(models.ListingStateListed, second.State)
	})
}
