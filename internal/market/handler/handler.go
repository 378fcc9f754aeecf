package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"fracmarket/internal/market/models"
	"fracmarket/internal/market/pricing"
	"fracmarket/internal/market/service"
	id "fracmarket/pkg/domain"
	dErrors "fracmarket/pkg/domain-errors"
	"fracmarket/pkg/platform/httputil"
	"fracmarket/pkg/requestcontext"
)

// Service defines the marketplace operations the handler exposes.
type Service interface {
	InitializeMarketplace(ctx context.Context, authority, treasury id.AccountID) (*models.Registry, error)
	FundEscrow(ctx context.Context, from id.AccountID, amount uint64) (*models.Registry, error)
	ListNft(ctx context.Context, owner id.AccountID, item id.AssetID, params models.ListingParams) (*models.Listing, error)
	GetListing(ctx context.Context, listingID id.ListingID) (*models.Listing, error)
	GetListingByItem(ctx context.Context, item id.AssetID) (*models.Listing, error)
	ListListings(ctx context.Context) ([]*models.Listing, error)
	QuoteBuy(ctx context.Context, listingID id.ListingID, amount uint64) (pricing.Quote, error)
	QuoteSell(ctx context.Context, listingID id.ListingID, amount uint64) (pricing.Quote, error)
	BuyFraction(ctx context.Context, buyer id.AccountID, listingID id.ListingID, amount uint64) (*service.TradeResult, error)
	SellFraction(ctx context.Context, seller id.AccountID, listingID id.ListingID, amount uint64) (*service.TradeResult, error)
	BuyNft(ctx context.Context, buyer id.AccountID, listingID id.ListingID) (*service.BuyoutResult, error)
	RedeemFractions(ctx context.Context, holder id.AccountID, listingID id.ListingID) (*service.RedemptionResult, error)
}

// Handler wires marketplace endpoints to the market service.
type Handler struct {
	service Service
	logger  *slog.Logger
}

// New constructs a market handler with its dependencies.
func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// Register mounts marketplace endpoints on the router.
func (h *Handler) Register(r chi.Router) {
	r.Post("/marketplace/initialize", h.HandleInitialize)
	r.Post("/marketplace/escrow/fund", h.HandleFundEscrow)

	r.Post("/listings", h.HandleCreateListing)
	r.Get("/listings", h.HandleListListings)
	r.Get("/listings/{listingID}", h.HandleGetListing)
	r.Get("/listings/{listingID}/quotes/buy", h.HandleQuoteBuy)
	r.Get("/listings/{listingID}/quotes/sell", h.HandleQuoteSell)
	r.Post("/listings/{listingID}/buy-shares", h.HandleBuyShares)
	r.Post("/listings/{listingID}/sell-shares", h.HandleSellShares)
	r.Post("/listings/{listingID}/buy", h.HandleBuyNft)
	r.Post("/listings/{listingID}/redeem", h.HandleRedeem)
}

// HandleInitialize handles POST /marketplace/initialize. The authenticated
// caller becomes the marketplace authority.
func (h *Handler) HandleInitialize(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	caller, ok := h.requireCaller(w, ctx)
	if !ok {
		return
	}
	req, ok := httputil.DecodeAndPrepare[InitializeRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	registry, err := h.service.InitializeMarketplace(ctx, caller, req.ParsedTreasury())
	if err != nil {
		h.logger.WarnContext(ctx, "marketplace initialization failed",
			"request_id", requestID,
			"caller", caller.String(),
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, FromRegistry(registry))
}

// HandleFundEscrow handles POST /marketplace/escrow/fund.
func (h *Handler) HandleFundEscrow(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	caller, ok := h.requireCaller(w, ctx)
	if !ok {
		return
	}
	req, ok := httputil.DecodeAndPrepare[FundEscrowRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	registry, err := h.service.FundEscrow(ctx, caller, req.Amount)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, FromRegistry(registry))
}

// HandleCreateListing handles POST /listings. The authenticated caller must
// hold the item being listed.
func (h *Handler) HandleCreateListing(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	start := time.Now()

	caller, ok := h.requireCaller(w, ctx)
	if !ok {
		return
	}
	req, ok := httputil.DecodeAndPrepare[CreateListingRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	listing, err := h.service.ListNft(ctx, caller, req.ParsedItem(), req.Params())
	if err != nil {
		h.logger.WarnContext(ctx, "listing creation failed",
			"request_id", requestID,
			"caller", caller.String(),
			"item", req.ItemRef,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	h.logger.InfoContext(ctx, "listing created",
		"request_id", requestID,
		"listing_id", listing.ID.String(),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	httputil.WriteJSON(w, http.StatusCreated, FromListing(listing))
}

// HandleListListings handles GET /listings. An item query parameter narrows
// the result to the listing currently custodying that item.
func (h *Handler) HandleListListings(w http.ResponseWriter, r *http.Request) {
	if itemRef := r.URL.Query().Get("item"); itemRef != "" {
		item, err := id.ParseAssetID(itemRef)
		if err != nil {
			httputil.WriteError(w, err)
			return
		}
		listing, err := h.service.GetListingByItem(r.Context(), item)
		if err != nil {
			httputil.WriteError(w, err)
			return
		}
		httputil.WriteJSON(w, http.StatusOK, FromListing(listing))
		return
	}

	listings, err := h.service.ListListings(r.Context())
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	out := make([]*ListingResponse, 0, len(listings))
	for _, l := range listings {
		out = append(out, FromListing(l))
	}
	httputil.WriteJSON(w, http.StatusOK, out)
}

// HandleGetListing handles GET /listings/{listingID}.
func (h *Handler) HandleGetListing(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	listingID, ok := h.listingID(w, r)
	if !ok {
		return
	}
	listing, err := h.service.GetListing(ctx, listingID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, FromListing(listing))
}

// HandleQuoteBuy handles GET /listings/{listingID}/quotes/buy?amount=N.
func (h *Handler) HandleQuoteBuy(w http.ResponseWriter, r *http.Request) {
	h.handleQuote(w, r, h.service.QuoteBuy)
}

// HandleQuoteSell handles GET /listings/{listingID}/quotes/sell?amount=N.
func (h *Handler) HandleQuoteSell(w http.ResponseWriter, r *http.Request) {
	h.handleQuote(w, r, h.service.QuoteSell)
}

func (h *Handler) handleQuote(w http.ResponseWriter, r *http.Request, quote func(context.Context, id.ListingID, uint64) (pricing.Quote, error)) {
	ctx := r.Context()
	listingID, ok := h.listingID(w, r)
	if !ok {
		return
	}
	amount, err := strconv.ParseUint(r.URL.Query().Get("amount"), 10, 64)
	if err != nil || amount == 0 {
		httputil.WriteError(w, dErrors.New(dErrors.CodeInvalidAmount, "amount must be a positive integer"))
		return
	}
	q, err := quote(ctx, listingID, amount)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, FromQuote(amount, q))
}

// HandleBuyShares handles POST /listings/{listingID}/buy-shares.
func (h *Handler) HandleBuyShares(w http.ResponseWriter, r *http.Request) {
	h.handleTrade(w, r, h.service.BuyFraction)
}

// HandleSellShares handles POST /listings/{listingID}/sell-shares.
func (h *Handler) HandleSellShares(w http.ResponseWriter, r *http.Request) {
	h.handleTrade(w, r, h.service.SellFraction)
}

func (h *Handler) handleTrade(w http.ResponseWriter, r *http.Request, trade func(context.Context, id.AccountID, id.ListingID, uint64) (*service.TradeResult, error)) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	caller, ok := h.requireCaller(w, ctx)
	if !ok {
		return
	}
	listingID, ok := h.listingID(w, r)
	if !ok {
		return
	}
	req, ok := httputil.DecodeAndPrepare[TradeRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	result, err := trade(ctx, caller, listingID, req.Amount)
	if err != nil {
		h.logger.WarnContext(ctx, "trade failed",
			"request_id", requestID,
			"listing_id", listingID.String(),
			"caller", caller.String(),
			"amount", req.Amount,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, FromTrade(result))
}

// HandleBuyNft handles POST /listings/{listingID}/buy.
func (h *Handler) HandleBuyNft(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	caller, ok := h.requireCaller(w, ctx)
	if !ok {
		return
	}
	listingID, ok := h.listingID(w, r)
	if !ok {
		return
	}

	result, err := h.service.BuyNft(ctx, caller, listingID)
	if err != nil {
		h.logger.WarnContext(ctx, "buyout failed",
			"request_id", requestID,
			"listing_id", listingID.String(),
			"caller", caller.String(),
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, FromBuyout(result))
}

// HandleRedeem handles POST /listings/{listingID}/redeem.
func (h *Handler) HandleRedeem(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	caller, ok := h.requireCaller(w, ctx)
	if !ok {
		return
	}
	listingID, ok := h.listingID(w, r)
	if !ok {
		return
	}

	result, err := h.service.RedeemFractions(ctx, caller, listingID)
	if err != nil {
		h.logger.WarnContext(ctx, "redemption failed",
			"request_id", requestID,
			"listing_id", listingID.String(),
			"caller", caller.String(),
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, FromRedemption(result))
}

func (h *Handler) requireCaller(w http.ResponseWriter, ctx context.Context) (id.AccountID, bool) {
	caller := requestcontext.Caller(ctx)
	if caller.IsNil() {
		httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "authentication required"))
		return "", false
	}
	return caller, true
}

func (h *Handler) listingID(w http.ResponseWriter, r *http.Request) (id.ListingID, bool) {
	listingID, err := id.ParseListingID(chi.URLParam(r, "listingID"))
	if err != nil {
		httputil.WriteError(w, err)
		return id.ListingID{}, false
	}
	return listingID, true
}
