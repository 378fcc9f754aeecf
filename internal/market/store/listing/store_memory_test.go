package listing

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"fracmarket/internal/market/models"
	id "fracmarket/pkg/domain"
	"fracmarket/pkg/platform/sentinel"
)

type ListingStoreSuite struct {
	suite.Suite
	store *InMemory
	ctx   context.Context
}

func (s *ListingStoreSuite) SetupTest() {
	s.store = NewInMemory()
	s.ctx = context.Background()
}

func TestListingStoreSuite(t *testing.T) {
	suite.Run(t, new(ListingStoreSuite))
}

func (s *ListingStoreSuite) newListing(item id.AssetID) *models.Listing {
	l, err := models.NewListing(id.NewListingID(), "alice", item, models.ListingParams{
		InitialPrice:              1_000_000,
		ShareSupply:               1000,
		CommunityRewardPercentage: 5,
	}, time.Now())
	s.Require().NoError(err)
	return l
}

func (s *ListingStoreSuite) TestCreationAndLookups() {
	s.Run("creates and finds by ID", func() {
		l := s.newListing("item-1")
		s.Require().NoError(s.store.Create(s.ctx, l))

		found, err := s.store.FindByID(s.ctx, l.ID)
		s.Require().NoError(err)
		s.Equal(l.ItemRef, found.ItemRef)
	})

	s.Run("finds by item identifier", func() {
		l := s.newListing("item-2")
		s.Require().NoError(s.store.Create(s.ctx, l))

		found, err := s.store.FindByItem(s.ctx, "item-2")
		s.Require().NoError(err)
		s.Equal(l.ID, found.ID)
	})

	s.Run("returns ErrNotFound for unknown listing", func() {
		_, err := s.store.FindByID(s.ctx, id.NewListingID())
		s.Require().ErrorIs(err, sentinel.ErrNotFound)

		_, err = s.store.FindByItem(s.ctx, "missing")
		s.Require().ErrorIs(err, sentinel.ErrNotFound)
	})

	s.Run("rejects a second live listing of the same item", func() {
		first := s.newListing("item-3")
		s.Require().NoError(s.store.Create(s.ctx, first))

		err := s.store.Create(s.ctx, s.newListing("item-3"))
		s.Require().ErrorIs(err, sentinel.ErrConflict)
	})

	s.Run("allows relisting once the previous listing settled", func() {
		first := s.newListing("item-4")
		s.Require().NoError(s.store.Create(s.ctx, first))

		first.ApplySale("bob", 100, time.Now())
		first.ApplyRedemption(first.ShareSupply, 100, time.Now())
		s.Require().NoError(s.store.Update(s.ctx, first))

		s.Require().NoError(s.store.Create(s.ctx, s.newListing("item-4")))
	})
}

func (s *ListingStoreSuite) TestUpdates() {
	s.Run("persists price and state changes", func() {
		l := s.newListing("item-5")
		s.Require().NoError(s.store.Create(s.ctx, l))

		l.ApplyPrice(1_100_000, time.Now())
		s.Require().NoError(s.store.Update(s.ctx, l))

		found, err := s.store.FindByID(s.ctx, l.ID)
		s.Require().NoError(err)
		s.Equal(uint64(1_100_000), found.CurrentPrice)
	})

	s.Run("returns ErrNotFound for unknown listing", func() {
		err := s.store.Update(s.ctx, s.newListing("item-6"))
		s.Require().ErrorIs(err, sentinel.ErrNotFound)
	})

	s.Run("stored state is isolated from caller mutation", func() {
		l := s.newListing("item-7")
		s.Require().NoError(s.store.Create(s.ctx, l))

		l.CurrentPrice = 42 // caller-side mutation, never committed

		found, err := s.store.FindByID(s.ctx, l.ID)
		s.Require().NoError(err)
		s.Equal(uint64(1_000_000), found.CurrentPrice)
	})
}
