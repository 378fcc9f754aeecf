package listing

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"fracmarket/internal/market/models"
	id "fracmarket/pkg/domain"
	"fracmarket/pkg/platform/sentinel"
	txcontext "fracmarket/pkg/platform/tx"
)

// Schema is the listings table DDL, applied by deploy tooling and the
// integration tests.
const Schema = `
CREATE TABLE IF NOT EXISTS listings (
    id                          UUID PRIMARY KEY,
    owner_account               TEXT NOT NULL,
    item_ref                    TEXT NOT NULL,
    share_ref                   TEXT NOT NULL,
    escrow_account              TEXT NOT NULL,
    share_treasury              TEXT NOT NULL,
    community_pool              TEXT NOT NULL,
    initial_price               BIGINT NOT NULL CHECK (initial_price > 0),
    current_price               BIGINT NOT NULL CHECK (current_price > 0),
    share_supply                BIGINT NOT NULL CHECK (share_supply > 0),
    shares_outstanding          BIGINT NOT NULL CHECK (shares_outstanding >= 0),
    community_reward_percentage SMALLINT NOT NULL CHECK (community_reward_percentage BETWEEN 0 AND 100),
    sale_proceeds               BIGINT NOT NULL DEFAULT 0,
    proceeds_remaining          BIGINT NOT NULL DEFAULT 0,
    state                       TEXT NOT NULL,
    created_at                  TIMESTAMPTZ NOT NULL,
    updated_at                  TIMESTAMPTZ NOT NULL
);
CREATE UNIQUE INDEX IF NOT EXISTS listings_live_item
    ON listings (item_ref) WHERE state <> 'settled';
`

// Postgres persists listings in PostgreSQL. Reads inside a transaction (via
// pkg/platform/tx) take row locks so read-validate-mutate sequences commit
// atomically, matching the in-memory store's transaction-lock contract.
type Postgres struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

type dbQuerier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *Postgres) querier(ctx context.Context) dbQuerier {
	if tx, ok := txcontext.From(ctx); ok {
		return tx
	}
	return s.db
}

const listingColumns = `id, owner_account, item_ref, share_ref, escrow_account, share_treasury,
	community_pool, initial_price, current_price, share_supply, shares_outstanding,
	community_reward_percentage, sale_proceeds, proceeds_remaining, state, created_at, updated_at`

func (s *Postgres) Create(ctx context.Context, l *models.Listing) error {
	query := `INSERT INTO listings (` + listingColumns + `)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17)`
	_, err := s.querier(ctx).ExecContext(ctx, query,
		uuid.UUID(l.ID), l.Owner.String(), l.ItemRef.String(), l.ShareRef.String(),
		l.EscrowAccount.String(), l.ShareTreasury.String(), l.CommunityPool.String(),
		int64(l.InitialPrice), int64(l.CurrentPrice), int64(l.ShareSupply),
		int64(l.SharesOutstanding), int16(l.CommunityRewardPercentage),
		int64(l.SaleProceeds), int64(l.ProceedsRemaining), l.State.String(),
		l.CreatedAt, l.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("insert listing: %w", err)
	}
	return nil
}

func (s *Postgres) FindByID(ctx context.Context, listingID id.ListingID) (*models.Listing, error) {
	query := `SELECT ` + listingColumns + ` FROM listings WHERE id = $1` + s.lockClause(ctx)
	return s.scanListing(s.querier(ctx).QueryRowContext(ctx, query, uuid.UUID(listingID)))
}

func (s *Postgres) FindByItem(ctx context.Context, item id.AssetID) (*models.Listing, error) {
	query := `SELECT ` + listingColumns + ` FROM listings
		WHERE item_ref = $1 ORDER BY created_at DESC LIMIT 1` + s.lockClause(ctx)
	return s.scanListing(s.querier(ctx).QueryRowContext(ctx, query, item.String()))
}

func (s *Postgres) Update(ctx context.Context, l *models.Listing) error {
	query := `UPDATE listings SET
		owner_account = $2, current_price = $3, shares_outstanding = $4,
		sale_proceeds = $5, proceeds_remaining = $6, state = $7, updated_at = $8
		WHERE id = $1`
	res, err := s.querier(ctx).ExecContext(ctx, query,
		uuid.UUID(l.ID), l.Owner.String(), int64(l.CurrentPrice), int64(l.SharesOutstanding),
		int64(l.SaleProceeds), int64(l.ProceedsRemaining), l.State.String(), l.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("update listing: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update listing: %w", err)
	}
	if rows == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

func (s *Postgres) List(ctx context.Context) ([]*models.Listing, error) {
	query := `SELECT ` + listingColumns + ` FROM listings ORDER BY created_at DESC`
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list listings: %w", err)
	}
	defer rows.Close()

	var out []*models.Listing
	for rows.Next() {
		l, err := scanListingRow(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

// lockClause adds FOR UPDATE when running inside a transaction so concurrent
// transitions on the same listing serialize at the row.
func (s *Postgres) lockClause(ctx context.Context) string {
	if _, ok := txcontext.From(ctx); ok {
		return " FOR UPDATE"
	}
	return ""
}

type rowScanner interface {
	Scan(dest ...any) error
}

func (s *Postgres) scanListing(row *sql.Row) (*models.Listing, error) {
	l, err := scanListingRow(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	return l, err
}

func scanListingRow(row rowScanner) (*models.Listing, error) {
	var (
		l          models.Listing
		listingID  uuid.UUID
		owner      string
		itemRef    string
		shareRef   string
		escrow     string
		treasury   string
		community  string
		initial    int64
		current    int64
		supply     int64
		outstanding int64
		percentage int16
		proceeds   int64
		remaining  int64
		state      string
	)
	err := row.Scan(&listingID, &owner, &itemRef, &shareRef, &escrow, &treasury,
		&community, &initial, &current, &supply, &outstanding, &percentage,
		&proceeds, &remaining, &state, &l.CreatedAt, &l.UpdatedAt)
	if err != nil {
		return nil, err
	}
	l.ID = id.ListingID(listingID)
	l.Owner = id.AccountID(owner)
	l.ItemRef = id.AssetID(itemRef)
	l.ShareRef = id.ShareClassID(shareRef)
	l.EscrowAccount = id.AccountID(escrow)
	l.ShareTreasury = id.AccountID(treasury)
	l.CommunityPool = id.AccountID(community)
	l.InitialPrice = uint64(initial)
	l.CurrentPrice = uint64(current)
	l.ShareSupply = uint64(supply)
	l.SharesOutstanding = uint64(outstanding)
	l.CommunityRewardPercentage = uint8(percentage)
	l.SaleProceeds = uint64(proceeds)
	l.ProceedsRemaining = uint64(remaining)
	l.State = models.ListingState(state)
	return &l, nil
}

func isUniqueViolation(err error) bool {
	// lib/pq unique_violation SQLSTATE
	type sqlStater interface{ SQLState() string }
	var st sqlStater
	if errors.As(err, &st) {
		return st.SQLState() == "23505"
	}
	return false
}
