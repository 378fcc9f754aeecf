package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"fracmarket/internal/events"
	"fracmarket/internal/ledger"
	"fracmarket/internal/market/cache"
	"fracmarket/internal/market/metrics"
	"fracmarket/internal/market/models"
	"fracmarket/internal/market/pricing"
	"fracmarket/pkg/derive"
	id "fracmarket/pkg/domain"
	dErrors "fracmarket/pkg/domain-errors"
	"fracmarket/pkg/platform/sentinel"
	"fracmarket/pkg/requestcontext"
)

type RegistryStore interface {
	Create(ctx context.Context, r *models.Registry) error
	Get(ctx context.Context, marketplace id.AccountID) (*models.Registry, error)
	Update(ctx context.Context, r *models.Registry) error
}

type ListingStore interface {
	Create(ctx context.Context, l *models.Listing) error
	FindByID(ctx context.Context, listingID id.ListingID) (*models.Listing, error)
	FindByItem(ctx context.Context, item id.AssetID) (*models.Listing, error)
	Update(ctx context.Context, l *models.Listing) error
	List(ctx context.Context) ([]*models.Listing, error)
}

// Config carries the deployment-level parameters of one marketplace.
type Config struct {
	// Marketplace is the deployment address registries and derived accounts
	// key on.
	Marketplace id.AccountID
	// FeeBps is the marketplace fee on fraction trades, in basis points.
	FeeBps uint64
}

// Service orchestrates listings, trades, buyouts, and redemptions. Domain
// rules live in models and pricing; the service sequences stores, the token
// ledger, and event publication inside per-listing transactions.
type Service struct {
	registries RegistryStore
	listings   ListingStore
	ledger     ledger.TokenLedger
	tx         TxRunner
	cfg        Config

	publisher events.Publisher
	metrics   *metrics.Metrics
	cache     *cache.ListingCache
	logger    *slog.Logger
}

type Option func(s *Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithPublisher(publisher events.Publisher) Option {
	return func(s *Service) {
		s.publisher = publisher
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

func WithCache(c *cache.ListingCache) Option {
	return func(s *Service) {
		s.cache = c
	}
}

// New constructs a Service.
func New(registries RegistryStore, listings ListingStore, tokens ledger.TokenLedger, tx TxRunner, cfg Config, opts ...Option) *Service {
	s := &Service{
		registries: registries,
		listings:   listings,
		ledger:     tokens,
		tx:         tx,
		cfg:        cfg,
		publisher:  events.NewRecorder(),
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// InitializeMarketplace creates the singleton registry record. Re-invocation
// fails with AlreadyInitialized and leaves the existing registry unchanged.
func (s *Service) InitializeMarketplace(ctx context.Context, authority, treasury id.AccountID) (*models.Registry, error) {
	registry, err := models.NewRegistry(s.cfg.Marketplace, authority, treasury, requestcontext.Now(ctx))
	if err != nil {
		return nil, err
	}

	if err := s.registries.Create(ctx, registry); err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			return nil, dErrors.New(dErrors.CodeAlreadyInitialized, "marketplace is already initialized")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to create registry")
	}

	s.logger.InfoContext(ctx, "marketplace initialized",
		"marketplace", s.cfg.Marketplace.String(),
		"authority", authority.String(),
		"treasury", treasury.String(),
	)
	return registry, nil
}

// ListNft takes an item into marketplace custody, mints its share class into
// the listing's share treasury, and opens fraction trading at the initial
// price.
func (s *Service) ListNft(ctx context.Context, owner id.AccountID, item id.AssetID, params models.ListingParams) (*models.Listing, error) {
	start := time.Now()

	if _, err := s.registry(ctx); err != nil {
		return nil, err
	}

	listing, err := models.NewListing(id.NewListingID(), owner, item, params, requestcontext.Now(ctx))
	if err != nil {
		return nil, err
	}
	listing.ShareRef = id.ShareClassID("shares:" + listing.ID.String())
	listing.EscrowAccount = derive.ItemEscrow(s.cfg.Marketplace, item)
	listing.ShareTreasury = derive.ShareTreasury(s.cfg.Marketplace, listing.ID)
	listing.CommunityPool = derive.CommunityPool(s.cfg.Marketplace, listing.ID)

	err = s.tx.RunInTx(ctx, []string{listing.ID.String()}, func(ctx context.Context) error {
		if existing, err := s.listings.FindByItem(ctx, item); err == nil && existing.State != models.ListingStateSettled {
			return dErrors.New(dErrors.CodeConflict, "item is already listed")
		} else if err != nil && !errors.Is(err, sentinel.ErrNotFound) {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to check existing listing")
		}

		holder, err := s.ledger.UniqueAssetHolder(ctx, item)
		if err != nil {
			if errors.Is(err, sentinel.ErrNotFound) {
				return dErrors.New(dErrors.CodeNotFound, "item does not exist on the ledger")
			}
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to resolve item holder")
		}
		if holder != owner {
			return dErrors.New(dErrors.CodeForbidden, "caller does not hold the item")
		}

		if err := s.ledger.TransferUniqueAsset(ctx, owner, listing.EscrowAccount, item); err != nil {
			return dErrors.Wrap(err, dErrors.CodeItemTransferFailed, "failed to move item into escrow")
		}
		if err := s.ledger.MintFungible(ctx, listing.ShareRef, listing.ShareSupply, listing.ShareTreasury); err != nil {
			s.compensate(ctx, "listNft", func() error {
				return s.ledger.TransferUniqueAsset(ctx, listing.EscrowAccount, owner, item)
			})
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to mint share class")
		}

		if err := s.listings.Create(ctx, listing); err != nil {
			s.compensate(ctx, "listNft", func() error {
				if err := s.ledger.BurnFungible(ctx, listing.ShareRef, listing.ShareTreasury, listing.ShareSupply); err != nil {
					return err
				}
				return s.ledger.TransferUniqueAsset(ctx, listing.EscrowAccount, owner, item)
			})
			if errors.Is(err, sentinel.ErrConflict) {
				return dErrors.New(dErrors.CodeConflict, "item is already listed")
			}
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to persist listing")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.cache.Set(ctx, listing)
	s.publish(ctx, events.Event{
		Type:        events.EventNFTListed,
		Marketplace: s.cfg.Marketplace,
		ListingID:   listing.ID,
		ItemRef:     item,
		Actor:       owner,
		Amount:      listing.ShareSupply,
		Price:       listing.InitialPrice,
	})
	s.metrics.IncrementTransition(models.ListingStateListed.String())
	s.metrics.ObserveTradeLatency("list", time.Since(start))

	s.logger.InfoContext(ctx, "item listed",
		"listing_id", listing.ID.String(),
		"item", item.String(),
		"owner", owner.String(),
		"initial_price", listing.InitialPrice,
		"share_supply", listing.ShareSupply,
	)
	return listing, nil
}

// GetListing returns a listing by ID, preferring a cached snapshot.
func (s *Service) GetListing(ctx context.Context, listingID id.ListingID) (*models.Listing, error) {
	if listing, ok := s.cache.Get(ctx, listingID); ok {
		return listing, nil
	}
	listing, err := s.loadListing(ctx, listingID)
	if err != nil {
		return nil, err
	}
	s.cache.Set(ctx, listing)
	return listing, nil
}

// GetListingByItem returns the latest listing custodying the given item.
func (s *Service) GetListingByItem(ctx context.Context, item id.AssetID) (*models.Listing, error) {
	listing, err := s.listings.FindByItem(ctx, item)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "listing not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load listing")
	}
	return listing, nil
}

// ListListings returns all listings, newest first.
func (s *Service) ListListings(ctx context.Context) ([]*models.Listing, error) {
	listings, err := s.listings.List(ctx)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list listings")
	}
	return listings, nil
}

// QuoteBuy prices a fraction purchase without committing anything.
func (s *Service) QuoteBuy(ctx context.Context, listingID id.ListingID, amount uint64) (pricing.Quote, error) {
	listing, err := s.loadListing(ctx, listingID)
	if err != nil {
		return pricing.Quote{}, err
	}
	if err := listing.CanTrade(); err != nil {
		return pricing.Quote{}, err
	}
	return pricing.QuoteBuy(listing, amount)
}

// QuoteSell prices a fraction sale without committing anything.
func (s *Service) QuoteSell(ctx context.Context, listingID id.ListingID, amount uint64) (pricing.Quote, error) {
	listing, err := s.loadListing(ctx, listingID)
	if err != nil {
		return pricing.Quote{}, err
	}
	if err := listing.CanTrade(); err != nil {
		return pricing.Quote{}, err
	}
	return pricing.QuoteSell(listing, amount)
}

func (s *Service) loadListing(ctx context.Context, listingID id.ListingID) (*models.Listing, error) {
	listing, err := s.listings.FindByID(ctx, listingID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "listing not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load listing")
	}
	return listing, nil
}

func (s *Service) registry(ctx context.Context) (*models.Registry, error) {
	registry, err := s.registries.Get(ctx, s.cfg.Marketplace)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeConflict, "marketplace is not initialized")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load registry")
	}
	return registry, nil
}

// publish emits an event after a committed transition. Publication failures
// are logged, never surfaced: the state change already happened.
func (s *Service) publish(ctx context.Context, event events.Event) {
	if s.publisher == nil {
		return
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = requestcontext.Now(ctx)
	}
	if err := s.publisher.Publish(ctx, event); err != nil {
		s.logger.WarnContext(ctx, "event publish failed",
			"event_type", string(event.Type),
			"listing_id", event.ListingID.String(),
			"error", err,
		)
	}
}

// compensate undoes earlier ledger moves after a mid-sequence failure. An
// undo failure leaves the ledger inconsistent and is logged at error level.
func (s *Service) compensate(ctx context.Context, operation string, undo func() error) {
	if err := undo(); err != nil {
		s.logger.ErrorContext(ctx, "compensation failed, ledger may be inconsistent",
			"operation", operation,
			"error", err,
		)
	}
}
