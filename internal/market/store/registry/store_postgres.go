package registry

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"fracmarket/internal/market/models"
	id "fracmarket/pkg/domain"
	"fracmarket/pkg/platform/sentinel"
	txcontext "fracmarket/pkg/platform/tx"
)

const Schema = `
CREATE TABLE IF NOT EXISTS marketplace_registry (
    marketplace    TEXT PRIMARY KEY,
    authority      TEXT NOT NULL,
    treasury       TEXT NOT NULL,
    escrow_balance BIGINT NOT NULL DEFAULT 0 CHECK (escrow_balance >= 0),
    created_at     TIMESTAMPTZ NOT NULL
);
`

// Postgres persists the marketplace registry singleton.
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

func (s *Postgres) Create(ctx context.Context, r *models.Registry) error {
	query := `INSERT INTO marketplace_registry (marketplace, authority, treasury, escrow_balance, created_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (marketplace) DO NOTHING`
	res, err := s.querier(ctx).ExecContext(ctx, query,
		r.Marketplace.String(), r.Authority.String(), r.Treasury.String(),
		int64(r.EscrowBalance), r.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert registry: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("insert registry: %w", err)
	}
	if rows == 0 {
		return sentinel.ErrConflict
	}
	return nil
}

func (s *Postgres) Get(ctx context.Context, marketplace id.AccountID) (*models.Registry, error) {
	query := `SELECT marketplace, authority, treasury, escrow_balance, created_at
		FROM marketplace_registry WHERE marketplace = $1`
	if _, ok := txcontext.From(ctx); ok {
		query += " FOR UPDATE"
	}

	var (
		r       models.Registry
		mkt     string
		auth    string
		tre     string
		balance int64
	)
	err := s.querier(ctx).QueryRowContext(ctx, query, marketplace.String()).
		Scan(&mkt, &auth, &tre, &balance, &r.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get registry: %w", err)
	}
	r.Marketplace = id.AccountID(mkt)
	r.Authority = id.AccountID(auth)
	r.Treasury = id.AccountID(tre)
	r.EscrowBalance = uint64(balance)
	return &r, nil
}

func (s *Postgres) Update(ctx context.Context, r *models.Registry) error {
	query := `UPDATE marketplace_registry SET escrow_balance = $2 WHERE marketplace = $1`
	res, err := s.querier(ctx).ExecContext(ctx, query, r.Marketplace.String(), int64(r.EscrowBalance))
	if err != nil {
		return fmt.Errorf("update registry: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update registry: %w", err)
	}
	if rows == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}
