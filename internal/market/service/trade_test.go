package service

import (
	"fmt"
	"sync"

	"fracmarket/internal/events"
	"fracmarket/internal/market/models"
	"fracmarket/pkg/derive"
	id "fracmarket/pkg/domain"
	dErrors "fracmarket/pkg/domain-errors"
)

// Reference listing: initial price 1_000_000, supply 1_000, community 5%,
// fee 100 bps. Step = 1_000.

func (s *ServiceSuite) TestBuyFraction() {
	s.initMarketplace()
	listing := s.listItem("alice", "asset-1")
	s.fund("bob", 200_000_000)

	result, err := s.service.BuyFraction(s.ctx, "bob", listing.ID, 100)
	s.Require().NoError(err)

	// cost = 100 * 1_000_000 + 1_000 * (1 + ... + 100) = 105_050_000
	s.Equal(uint64(105_050_000), result.Total)
	s.Equal(uint64(1_100_000), result.NewPrice)
	// fee = 1% of cost
	s.Equal(uint64(1_050_500), result.Fee)

	s.Run("cost splits into fee, community reward, and owner remainder", func() {
		s.Equal(uint64(94_950_000), s.nativeBalance("bob"))
		s.Equal(uint64(1_050_500), s.nativeBalance(testTreasury))
		// 5% of (cost - fee)
		s.Equal(uint64(5_199_975), s.nativeBalance(listing.CommunityPool))
		s.Equal(uint64(98_799_525), s.nativeBalance("alice"))
	})

	s.Run("shares moved from treasury to buyer", func() {
		s.Equal(uint64(100), s.shareBalance(listing.ShareRef, "bob"))
		s.Equal(uint64(900), s.shareBalance(listing.ShareRef, listing.ShareTreasury))
	})

	s.Run("price persisted and outstanding untouched", func() {
		got, err := s.service.GetListing(s.ctx, listing.ID)
		s.Require().NoError(err)
		s.Equal(uint64(1_100_000), got.CurrentPrice)
		s.Equal(uint64(1_000), got.SharesOutstanding)
	})

	s.Run("price update event published", func() {
		published := s.recorder.ByListing(listing.ID)
		s.Require().Len(published, 2)
		s.Equal(events.EventPriceUpdated, published[1].Type)
		s.Equal(uint64(100), published[1].Amount)
		s.Equal(uint64(1_100_000), published[1].Price)
	})
}

func (s *ServiceSuite) TestBuyFraction_Validation() {
	s.initMarketplace()
	listing := s.listItem("alice", "asset-1")

	s.Run("zero amount", func() {
		_, err := s.service.BuyFraction(s.ctx, "bob", listing.ID, 0)
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidAmount))
	})

	s.Run("empty buyer", func() {
		_, err := s.service.BuyFraction(s.ctx, "", listing.ID, 1)
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	s.Run("unknown listing", func() {
		_, err := s.service.BuyFraction(s.ctx, "bob", id.NewListingID(), 1)
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})
}

func (s *ServiceSuite) TestBuyFraction_InsufficientFunds() {
	s.initMarketplace()
	listing := s.listItem("alice", "asset-1")
	s.fund("bob", 1_000) // far below a single unit

	_, err := s.service.BuyFraction(s.ctx, "bob", listing.ID, 1)
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeInsufficientFunds))

	s.Run("no mutation", func() {
		s.Equal(uint64(1_000), s.nativeBalance("bob"))
		s.Zero(s.shareBalance(listing.ShareRef, "bob"))
		got, err := s.service.GetListing(s.ctx, listing.ID)
		s.Require().NoError(err)
		s.Equal(uint64(1_000_000), got.CurrentPrice)
	})
}

func (s *ServiceSuite) TestBuyFraction_TreasuryShort() {
	s.initMarketplace()
	listing := s.listItem("alice", "asset-1")
	s.fund("bob", 10_000_000_000)

	_, err := s.service.BuyFraction(s.ctx, "bob", listing.ID, 1_001)
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeInsufficientLiquidity))
	s.Equal(uint64(10_000_000_000), s.nativeBalance("bob"))
}

func (s *ServiceSuite) TestSellFraction() {
	s.initMarketplace()
	listing := s.listItem("alice", "asset-1")
	s.fund("bob", 200_000_000)
	s.fund("lp", 50_000_000)

	_, err := s.service.BuyFraction(s.ctx, "bob", listing.ID, 100)
	s.Require().NoError(err)
	_, err = s.service.FundEscrow(s.ctx, "lp", 50_000_000)
	s.Require().NoError(err)

	result, err := s.service.SellFraction(s.ctx, "bob", listing.ID, 40)
	s.Require().NoError(err)

	// proceeds walking down from 1_100_000: 40 * 1_100_000 - 1_000 * (0 + ... + 39)
	s.Equal(uint64(43_220_000), result.Total)
	s.Equal(uint64(1_060_000), result.NewPrice)
	s.Equal(uint64(432_200), result.Fee)

	s.Run("seller paid proceeds minus fee from escrow", func() {
		// 94_950_000 after the buy, plus 43_220_000 - 432_200
		s.Equal(uint64(137_737_800), s.nativeBalance("bob"))
		s.Equal(uint64(60), s.shareBalance(listing.ShareRef, "bob"))
		s.Equal(uint64(940), s.shareBalance(listing.ShareRef, listing.ShareTreasury))
	})

	s.Run("escrow drained by the gross proceeds", func() {
		registry, err := s.service.registries.Get(s.ctx, testMarketplace)
		s.Require().NoError(err)
		s.Equal(uint64(6_780_000), registry.EscrowBalance)
		s.Equal(uint64(6_780_000), s.nativeBalance(derive.SettlementEscrow(testMarketplace)))
	})

	s.Run("fee accrued to treasury on both sides", func() {
		// 1_050_500 from the buy plus 432_200 from the sell
		s.Equal(uint64(1_482_700), s.nativeBalance(testTreasury))
	})
}

func (s *ServiceSuite) TestSellFraction_InsufficientShares() {
	s.initMarketplace()
	listing := s.listItem("alice", "asset-1")

	_, err := s.service.SellFraction(s.ctx, "bob", listing.ID, 1)
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeInsufficientShares))
}

func (s *ServiceSuite) TestSellFraction_EscrowShort() {
	s.initMarketplace()
	listing := s.listItem("alice", "asset-1")
	s.fund("bob", 200_000_000)

	_, err := s.service.BuyFraction(s.ctx, "bob", listing.ID, 10)
	s.Require().NoError(err)

	// No escrow funding: the sell has nothing to pay from.
	_, err = s.service.SellFraction(s.ctx, "bob", listing.ID, 10)
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeInsufficientLiquidity))

	s.Run("no mutation", func() {
		s.Equal(uint64(10), s.shareBalance(listing.ShareRef, "bob"))
		got, err := s.service.GetListing(s.ctx, listing.ID)
		s.Require().NoError(err)
		s.Equal(uint64(1_010_000), got.CurrentPrice)
	})
}

func (s *ServiceSuite) TestBuyNft() {
	s.initMarketplace()
	listing := s.listItem("alice", "asset-1")
	s.fund("bob", 200_000_000)
	s.fund("carol", 1_200_000_000)

	_, err := s.service.BuyFraction(s.ctx, "bob", listing.ID, 100)
	s.Require().NoError(err)

	result, err := s.service.BuyNft(s.ctx, "carol", listing.ID)
	s.Require().NoError(err)

	// 1_100_000 * 1_000 * 105 / 100
	s.Equal(uint64(1_155_000_000), result.Price)
	s.Equal(uint64(900), result.UnsoldShares)
	s.Equal(id.AccountID("alice"), result.PriorOwner)

	s.Run("item released to the buyer", func() {
		holder, err := s.tokens.UniqueAssetHolder(s.ctx, "asset-1")
		s.Require().NoError(err)
		s.Equal(id.AccountID("carol"), holder)
	})

	s.Run("unsold shares returned to the prior owner", func() {
		s.Equal(uint64(900), s.shareBalance(listing.ShareRef, "alice"))
		s.Zero(s.shareBalance(listing.ShareRef, listing.ShareTreasury))
	})

	s.Run("proceeds earmarked and escrow funded", func() {
		got, err := s.service.GetListing(s.ctx, listing.ID)
		s.Require().NoError(err)
		s.Equal(models.ListingStateSold, got.State)
		s.Equal(id.AccountID("carol"), got.Owner)
		s.Equal(uint64(1_155_000_000), got.SaleProceeds)
		s.Equal(uint64(1_155_000_000), got.ProceedsRemaining)

		registry, err := s.service.registries.Get(s.ctx, testMarketplace)
		s.Require().NoError(err)
		s.Equal(uint64(1_155_000_000), registry.EscrowBalance)
	})

	s.Run("sold event published", func() {
		published := s.recorder.ByListing(listing.ID)
		s.Equal(events.EventNFTSold, published[len(published)-1].Type)
		s.Equal(uint64(1_155_000_000), published[len(published)-1].Value)
	})

	s.Run("further trades rejected", func() {
		_, err := s.service.BuyFraction(s.ctx, "bob", listing.ID, 1)
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeListingNotActive))

		_, err = s.service.BuyNft(s.ctx, "carol", listing.ID)
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeListingNotActive))
	})
}

func (s *ServiceSuite) TestBuyNft_InsufficientFunds() {
	s.initMarketplace()
	listing := s.listItem("alice", "asset-1")
	s.fund("carol", 1_000)

	_, err := s.service.BuyNft(s.ctx, "carol", listing.ID)
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeInsufficientFunds))

	s.Run("no mutation", func() {
		got, err := s.service.GetListing(s.ctx, listing.ID)
		s.Require().NoError(err)
		s.Equal(models.ListingStateListed, got.State)
		holder, err := s.tokens.UniqueAssetHolder(s.ctx, "asset-1")
		s.Require().NoError(err)
		s.Equal(listing.EscrowAccount, holder)
	})
}

func (s *ServiceSuite) TestFundEscrow_Validation() {
	s.initMarketplace()

	_, err := s.service.FundEscrow(s.ctx, "lp", 0)
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeInvalidAmount))

	_, err = s.service.FundEscrow(s.ctx, "lp", 1_000)
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeInsufficientFunds))
}

// Buyouts and redemptions on distinct listings share one registry record. Run
// them in parallel and check the escrow mirror never loses an update against
// the settlement account.
func (s *ServiceSuite) TestConcurrentBuyouts_EscrowMirrorConsistent() {
	s.initMarketplace()

	// buyout at the initial price: 1_000_000 * 1_000 * 105 / 100
	const buyoutPrice = uint64(1_050_000_000)
	const n = 16

	listings := make([]*models.Listing, n)
	for i := 0; i < n; i++ {
		owner := id.AccountID(fmt.Sprintf("owner-%d", i))
		listings[i] = s.listItem(owner, id.AssetID(fmt.Sprintf("asset-%d", i)))
		s.fund(id.AccountID(fmt.Sprintf("buyer-%d", i)), buyoutPrice)
	}

	var wg sync.WaitGroup
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			buyer := id.AccountID(fmt.Sprintf("buyer-%d", i))
			_, err := s.service.BuyNft(s.ctx, buyer, listings[i].ID)
			errs <- err
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		s.Require().NoError(err)
	}

	s.Run("escrow mirror matches settlement funds after parallel buyouts", func() {
		registry, err := s.service.registries.Get(s.ctx, testMarketplace)
		s.Require().NoError(err)
		s.Equal(buyoutPrice*n, registry.EscrowBalance)
		s.Equal(registry.EscrowBalance, s.nativeBalance(derive.SettlementEscrow(testMarketplace)))
	})

	// Each prior owner got the full share supply back. Redeem them all in
	// parallel; every debit must land on the shared record exactly once.
	done := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			owner := id.AccountID(fmt.Sprintf("owner-%d", i))
			_, err := s.service.RedeemFractions(s.ctx, owner, listings[i].ID)
			done <- err
		}(i)
	}
	wg.Wait()
	close(done)
	for err := range done {
		s.Require().NoError(err)
	}

	s.Run("parallel redemptions drain the escrow to zero", func() {
		registry, err := s.service.registries.Get(s.ctx, testMarketplace)
		s.Require().NoError(err)
		s.Zero(registry.EscrowBalance)
		s.Zero(s.nativeBalance(derive.SettlementEscrow(testMarketplace)))
		for i := 0; i < n; i++ {
			s.Equal(buyoutPrice, s.nativeBalance(id.AccountID(fmt.Sprintf("owner-%d", i))))
		}
	})
}
