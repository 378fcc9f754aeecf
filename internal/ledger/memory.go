package ledger

import (
	"context"
	"math"
	"sync"

	id "fracmarket/pkg/domain"
	"fracmarket/pkg/platform/sentinel"
)

// InMemory is a process-local TokenLedger. It favors clarity over performance
// and is the implementation used by tests and single-node deployments.
//
// Invariant: for every share class, the sum of holder balances equals the
// minted supply minus burns. Native credits and debits conserve value across
// accounts by construction.
type InMemory struct {
	mu      sync.RWMutex
	native  map[id.AccountID]uint64
	classes map[id.ShareClassID]*shareClass
	assets  map[id.AssetID]id.AccountID
}

type shareClass struct {
	supply   uint64
	balances map[id.AccountID]uint64
}

func NewInMemory() *InMemory {
	return &InMemory{
		native:  make(map[id.AccountID]uint64),
		classes: make(map[id.ShareClassID]*shareClass),
		assets:  make(map[id.AssetID]id.AccountID),
	}
}

// RegisterUniqueAsset places a unique asset under holder's custody. Assets
// enter the ledger exactly once; this is the fixture counterpart of an
// upstream NFT mint.
func (l *InMemory) RegisterUniqueAsset(item id.AssetID, holder id.AccountID) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.assets[item]; ok {
		return sentinel.ErrConflict
	}
	l.assets[item] = holder
	return nil
}

func (l *InMemory) TransferUniqueAsset(_ context.Context, from, to id.AccountID, item id.AssetID) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	holder, ok := l.assets[item]
	if !ok {
		return sentinel.ErrNotFound
	}
	if holder != from {
		return sentinel.ErrInsufficientBalance
	}
	l.assets[item] = to
	return nil
}

func (l *InMemory) MintFungible(_ context.Context, class id.ShareClassID, totalSupply uint64, initialHolder id.AccountID) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.classes[class]; ok {
		return sentinel.ErrConflict
	}
	l.classes[class] = &shareClass{
		supply:   totalSupply,
		balances: map[id.AccountID]uint64{initialHolder: totalSupply},
	}
	return nil
}

func (l *InMemory) TransferFungible(_ context.Context, class id.ShareClassID, from, to id.AccountID, amount uint64) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	c, ok := l.classes[class]
	if !ok {
		return sentinel.ErrNotFound
	}
	if c.balances[from] < amount {
		return sentinel.ErrInsufficientBalance
	}
	c.balances[from] -= amount
	c.balances[to] += amount
	return nil
}

func (l *InMemory) BurnFungible(_ context.Context, class id.ShareClassID, holder id.AccountID, amount uint64) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	c, ok := l.classes[class]
	if !ok {
		return sentinel.ErrNotFound
	}
	if c.balances[holder] < amount {
		return sentinel.ErrInsufficientBalance
	}
	c.balances[holder] -= amount
	c.supply -= amount
	return nil
}

func (l *InMemory) CreditNative(_ context.Context, account id.AccountID, amount uint64) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.native[account] > math.MaxUint64-amount {
		return sentinel.ErrOverflow
	}
	l.native[account] += amount
	return nil
}

func (l *InMemory) DebitNative(_ context.Context, account id.AccountID, amount uint64) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.native[account] < amount {
		return sentinel.ErrInsufficientBalance
	}
	l.native[account] -= amount
	return nil
}

func (l *InMemory) NativeBalance(_ context.Context, account id.AccountID) (uint64, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.native[account], nil
}

func (l *InMemory) FungibleBalance(_ context.Context, class id.ShareClassID, holder id.AccountID) (uint64, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	c, ok := l.classes[class]
	if !ok {
		return 0, sentinel.ErrNotFound
	}
	return c.balances[holder], nil
}

func (l *InMemory) UniqueAssetHolder(_ context.Context, item id.AssetID) (id.AccountID, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	holder, ok := l.assets[item]
	if !ok {
		return "", sentinel.ErrNotFound
	}
	return holder, nil
}

// FungibleSupply reports the remaining (minted minus burned) supply of class.
func (l *InMemory) FungibleSupply(_ context.Context, class id.ShareClassID) (uint64, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	c, ok := l.classes[class]
	if !ok {
		return 0, sentinel.ErrNotFound
	}
	return c.supply, nil
}
