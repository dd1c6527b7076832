// Package memory provides an in-memory implementation of the store
// repositories. It backs unit tests and the local dev mode; the transaction
// handles it hands out are inert.
package memory

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/nadscan/tradeledger/internal/domain/model"
)

// noopDriver gives BeginTx a real *sql.Tx to satisfy the repository
// signatures; commit and rollback are no-ops because every mutation below
// applies immediately.
type noopDriver struct{}
type noopConn struct{}
type noopTx struct{}

func (noopDriver) Open(string) (driver.Conn, error)  { return noopConn{}, nil }
func (noopConn) Prepare(string) (driver.Stmt, error) { return nil, errors.New("not implemented") }
func (noopConn) Close() error                        { return nil }
func (noopConn) Begin() (driver.Tx, error)           { return noopTx{}, nil }
func (noopTx) Commit() error                         { return nil }
func (noopTx) Rollback() error                       { return nil }

func init() {
	sql.Register("tradeledger_memory", noopDriver{})
}

type tradeKey struct {
	txHash string
	token  string
}

type holdingKey struct {
	wallet string
	token  string
}

type transferKey struct {
	txHash   string
	logIndex int
}

// Store holds every entity in maps keyed by the same natural keys the
// Postgres schema enforces with UNIQUE constraints. Per-entity repositories
// are views over the shared state.
type Store struct {
	mu        sync.Mutex
	db        *sql.DB
	wallets   map[string]model.Wallet
	tokens    map[string]model.Token
	trades    map[tradeKey]model.Trade
	transfers map[transferKey]model.Transfer
	holdings  map[holdingKey]model.TokenHolding
	tokenSeq  []string // insertion order for ListPooled
}

func New() *Store {
	db, _ := sql.Open("tradeledger_memory", "")
	return &Store{
		db:        db,
		wallets:   make(map[string]model.Wallet),
		tokens:    make(map[string]model.Token),
		trades:    make(map[tradeKey]model.Trade),
		transfers: make(map[transferKey]model.Transfer),
		holdings:  make(map[holdingKey]model.TokenHolding),
	}
}

func (s *Store) BeginTx(ctx context.Context, opts *sql.TxOptions) (*sql.Tx, error) {
	return s.db.BeginTx(ctx, opts)
}

func (s *Store) Wallets() *WalletRepo     { return &WalletRepo{s: s} }
func (s *Store) Tokens() *TokenRepo       { return &TokenRepo{s: s} }
func (s *Store) Trades() *TradeRepo       { return &TradeRepo{s: s} }
func (s *Store) Transfers() *TransferRepo { return &TransferRepo{s: s} }
func (s *Store) Holdings() *HoldingRepo   { return &HoldingRepo{s: s} }

type WalletRepo struct{ s *Store }

func (r *WalletRepo) GetOrCreateTx(_ context.Context, _ *sql.Tx, address string) (*model.Wallet, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if w, ok := r.s.wallets[address]; ok {
		return &w, nil
	}
	w := model.Wallet{ID: uuid.New(), Address: address, CreatedAt: time.Now()}
	r.s.wallets[address] = w
	return &w, nil
}

func (r *WalletRepo) FindByAddress(_ context.Context, address string) (*model.Wallet, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if w, ok := r.s.wallets[address]; ok {
		return &w, nil
	}
	return nil, nil
}

type TokenRepo struct{ s *Store }

func (r *TokenRepo) UpsertTx(_ context.Context, _ *sql.Tx, t *model.Token) (*model.Token, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if existing, ok := r.s.tokens[t.Address]; ok {
		// First creation wins; repeated upserts keep the original row.
		return &existing, nil
	}
	stored := *t
	stored.ID = uuid.New()
	stored.CreatedAt = time.Now()
	stored.UpdatedAt = stored.CreatedAt
	r.s.tokens[t.Address] = stored
	r.s.tokenSeq = append(r.s.tokenSeq, t.Address)
	return &stored, nil
}

func (r *TokenRepo) FindByAddressTx(_ context.Context, _ *sql.Tx, address string) (*model.Token, error) {
	return r.find(address), nil
}

func (r *TokenRepo) FindByAddress(_ context.Context, address string) (*model.Token, error) {
	return r.find(address), nil
}

func (r *TokenRepo) find(address string) *model.Token {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if t, ok := r.s.tokens[address]; ok {
		return &t
	}
	return nil
}

func (r *TokenRepo) ListPooled(_ context.Context) ([]model.Token, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []model.Token
	for _, addr := range r.s.tokenSeq {
		t := r.s.tokens[addr]
		if t.PoolAddress != nil {
			out = append(out, t)
		}
	}
	return out, nil
}

func (r *TokenRepo) ListAll(_ context.Context) ([]model.Token, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := make([]model.Token, 0, len(r.s.tokenSeq))
	for _, addr := range r.s.tokenSeq {
		out = append(out, r.s.tokens[addr])
	}
	return out, nil
}

type TradeRepo struct{ s *Store }

func (r *TradeRepo) UpsertTx(_ context.Context, _ *sql.Tx, t *model.Trade) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	key := tradeKey{txHash: t.TxHash, token: t.TokenAddress}
	stored := *t
	if prev, ok := r.s.trades[key]; ok {
		stored.ID = prev.ID
		stored.CreatedAt = prev.CreatedAt
	} else {
		stored.ID = uuid.New()
		stored.CreatedAt = time.Now()
	}
	r.s.trades[key] = stored
	return nil
}

func (r *TradeRepo) InsertIgnoreTx(_ context.Context, _ *sql.Tx, t *model.Trade) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	key := tradeKey{txHash: t.TxHash, token: t.TokenAddress}
	if _, ok := r.s.trades[key]; ok {
		return nil
	}
	stored := *t
	stored.ID = uuid.New()
	stored.CreatedAt = time.Now()
	r.s.trades[key] = stored
	return nil
}

func (r *TradeRepo) ExistsForTxTokenTx(_ context.Context, _ *sql.Tx, txHash, tokenAddress string) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	_, ok := r.s.trades[tradeKey{txHash: txHash, token: tokenAddress}]
	return ok, nil
}

func (r *TradeRepo) ListByToken(_ context.Context, tokenAddress string) ([]model.Trade, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []model.Trade
	for _, t := range r.s.trades {
		if t.TokenAddress == tokenAddress {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].BlockNumber != out[j].BlockNumber {
			return out[i].BlockNumber < out[j].BlockNumber
		}
		return out[i].LogIndex < out[j].LogIndex
	})
	return out, nil
}

type TransferRepo struct{ s *Store }

func (r *TransferRepo) UpsertTx(_ context.Context, _ *sql.Tx, t *model.Transfer) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	key := transferKey{txHash: t.TxHash, logIndex: t.LogIndex}
	if _, ok := r.s.transfers[key]; ok {
		return false, nil
	}
	stored := *t
	stored.ID = uuid.New()
	stored.CreatedAt = time.Now()
	r.s.transfers[key] = stored
	return true, nil
}

func (r *TransferRepo) ListByToken(_ context.Context, tokenAddress string) ([]model.Transfer, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []model.Transfer
	for _, t := range r.s.transfers {
		if t.TokenAddress == tokenAddress {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].BlockNumber != out[j].BlockNumber {
			return out[i].BlockNumber < out[j].BlockNumber
		}
		return out[i].LogIndex < out[j].LogIndex
	})
	return out, nil
}

type HoldingRepo struct{ s *Store }

func (r *HoldingRepo) FindForUpdateTx(_ context.Context, _ *sql.Tx, walletAddress, tokenAddress string) (*model.TokenHolding, error) {
	return r.find(walletAddress, tokenAddress), nil
}

func (r *HoldingRepo) Find(_ context.Context, walletAddress, tokenAddress string) (*model.TokenHolding, error) {
	return r.find(walletAddress, tokenAddress), nil
}

func (r *HoldingRepo) find(walletAddress, tokenAddress string) *model.TokenHolding {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if h, ok := r.s.holdings[holdingKey{wallet: walletAddress, token: tokenAddress}]; ok {
		return &h
	}
	return nil
}

func (r *HoldingRepo) InsertTx(_ context.Context, _ *sql.Tx, h *model.TokenHolding) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	stored := *h
	stored.ID = uuid.New()
	stored.CreatedAt = time.Now()
	r.s.holdings[holdingKey{wallet: h.WalletAddress, token: h.TokenAddress}] = stored
	return nil
}

func (r *HoldingRepo) UpdateTx(_ context.Context, _ *sql.Tx, h *model.TokenHolding) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.holdings[holdingKey{wallet: h.WalletAddress, token: h.TokenAddress}] = *h
	return nil
}

func (r *HoldingRepo) ListByToken(_ context.Context, tokenAddress string) ([]model.TokenHolding, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []model.TokenHolding
	for _, h := range r.s.holdings {
		if h.TokenAddress == tokenAddress {
			out = append(out, h)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].WalletAddress < out[j].WalletAddress
	})
	return out, nil
}

// --- test helpers ---

// TradeCount returns the number of stored trades.
func (s *Store) TradeCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.trades)
}

// HoldingCount returns the number of stored holdings.
func (s *Store) HoldingCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.holdings)
}

// WalletCount returns the number of stored wallets.
func (s *Store) WalletCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.wallets)
}
