package registry

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"fracmarket/internal/market/models"
	id "fracmarket/pkg/domain"
	"fracmarket/pkg/platform/sentinel"
)

type InMemorySuite struct {
	suite.Suite
	ctx   context.Context
	store *InMemory
}

func TestInMemorySuite(t *testing.T) {
	suite.Run(t, new(InMemorySuite))
}

func (s *InMemorySuite) SetupTest() {
	s.ctx = context.Background()
	s.store = NewInMemory()
}

func (s *InMemorySuite) newRegistry(marketplace id.AccountID) *models.Registry {
	r, err := models.NewRegistry(marketplace, "authority-1", "treasury-1", time.Now().UTC())
	s.Require().NoError(err)
	return r
}

func (s *InMemorySuite) TestCreateAndGet() {
	r := s.newRegistry("mkt-main")
	s.Require().NoError(s.store.Create(s.ctx, r))

	got, err := s.store.Get(s.ctx, "mkt-main")
	s.Require().NoError(err)
	s.Equal(r.Authority, got.Authority)
	s.Equal(r.Treasury, got.Treasury)
	s.Zero(got.EscrowBalance)
}

func (s *InMemorySuite) TestCreateConflictsOnSecondInitialization() {
	s.Require().NoError(s.store.Create(s.ctx, s.newRegistry("mkt-main")))

	err := s.store.Create(s.ctx, s.newRegistry("mkt-main"))
	s.Require().ErrorIs(err, sentinel.ErrConflict)
}

func (s *InMemorySuite) TestGetUnknownMarketplace() {
	_, err := s.store.Get(s.ctx, "mkt-missing")
	s.Require().ErrorIs(err, sentinel.ErrNotFound)
}

func (s *InMemorySuite) TestUpdatePersistsEscrowBalance() {
	r := s.newRegistry("mkt-main")
	s.Require().NoError(s.store.Create(s.ctx, r))

	r.ApplyEscrowCredit(1_050_000)
	s.Require().NoError(s.store.Update(s.ctx, r))

	got, err := s.store.Get(s.ctx, "mkt-main")
	s.Require().NoError(err)
	s.Equal(uint64(1_050_000), got.EscrowBalance)
}

func (s *InMemorySuite) TestUpdateUnknownMarketplace() {
	r := s.newRegistry("mkt-other")
	s.Require().ErrorIs(s.store.Update(s.ctx, r), sentinel.ErrNotFound)
}

func (s *InMemorySuite) TestGetReturnsCopy() {
	s.Require().NoError(s.store.Create(s.ctx, s.newRegistry("mkt-main")))

	got, err := s.store.Get(s.ctx, "mkt-main")
	s.Require().NoError(err)
	got.ApplyEscrowCredit(42)

	again, err := s.store.Get(s.ctx, "mkt-main")
	s.Require().NoError(err)
	s.Zero(again.EscrowBalance)
}
