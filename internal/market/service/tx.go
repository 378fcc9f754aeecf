package service

import (
	"context"
	"database/sql"
	"sort"
	"sync"
	"time"

	dErrors "fracmarket/pkg/domain-errors"
	txcontext "fracmarket/pkg/platform/tx"
)

// TxRunner provides the transactional boundary for market mutations. The
// callback runs with the record locks for every key held, so a read inside it
// cannot be stale by commit time. Operations touching the marketplace registry
// pass its key alongside the listing's; operations on disjoint key sets do not
// contend.
type TxRunner interface {
	RunInTx(ctx context.Context, keys []string, fn func(ctx context.Context) error) error
}

// shardedTx backs the in-memory stores with sharded mutexes. Keys are
// distributed across N shards by hash, so distinct listings rarely share a
// lock while every escrow mutation serializes on the marketplace key's shard.
const numTxShards = 128

// defaultTxTimeout is the maximum duration for a market transaction.
const defaultTxTimeout = 5 * time.Second

type shardedTx struct {
	shards  [numTxShards]sync.Mutex
	timeout time.Duration
}

// NewShardedTx returns a TxRunner for in-memory stores.
func NewShardedTx() TxRunner {
	return &shardedTx{}
}

func (t *shardedTx) RunInTx(ctx context.Context, keys []string, fn func(ctx context.Context) error) error {
	if err := ctx.Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "transaction aborted: context cancelled")
	}

	timeout := t.timeout
	if timeout == 0 {
		timeout = defaultTxTimeout
	}
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	// Lock every shard the keys map to, in ascending order so transactions
	// holding overlapping key sets cannot deadlock.
	shards := make([]int, 0, len(keys))
	for _, key := range keys {
		shards = append(shards, int(hashTxKey(key)%numTxShards))
	}
	sort.Ints(shards)
	locked := make([]int, 0, len(shards))
	for _, shard := range shards {
		if len(locked) > 0 && locked[len(locked)-1] == shard {
			continue
		}
		t.shards[shard].Lock()
		locked = append(locked, shard)
	}
	defer func() {
		for i := len(locked) - 1; i >= 0; i-- {
			t.shards[locked[i]].Unlock()
		}
	}()

	// Check again after acquiring the locks
	if err := ctx.Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "transaction aborted: context cancelled")
	}

	return fn(ctx)
}

// hashTxKey uses FNV-1a for better hash distribution than simple multiply-add.
func hashTxKey(s string) uint32 {
	const (
		fnvOffset = 2166136261
		fnvPrime  = 16777619
	)
	h := uint32(fnvOffset)
	for i := 0; i < len(s); i++ {
		h ^= uint32(s[i])
		h *= fnvPrime
	}
	return h
}

// sqlTx backs the Postgres stores with real database transactions. Row locks
// (SELECT ... FOR UPDATE inside the tx) replace the shard mutexes.
type sqlTx struct {
	db      *sql.DB
	timeout time.Duration
}

// NewSQLTx returns a TxRunner that wraps the callback in a database
// transaction carried through the context.
func NewSQLTx(db *sql.DB) TxRunner {
	return &sqlTx{db: db}
}

func (t *sqlTx) RunInTx(ctx context.Context, _ []string, fn func(ctx context.Context) error) error {
	if err := ctx.Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "transaction aborted: context cancelled")
	}

	timeout := t.timeout
	if timeout == 0 {
		timeout = defaultTxTimeout
	}
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	tx, err := t.db.BeginTx(ctx, nil)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to begin transaction")
	}

	if err := fn(txcontext.WithTx(ctx, tx)); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to commit transaction")
	}
	return nil
}
