package ledger

import (
	"errors"
	"sync"

	"go.uber.org/zap"
)

var (
	ErrInsufficientBalance   = errors.New("insufficient balance")
	ErrInsufficientAllowance = errors.New("insufficient allowance")
	ErrUnauthorized          = errors.New("caller is not an authorized minter")
	ErrInvalidAmount         = errors.New("amount must be positive")
)

// Authorizer gates minting.
type Authorizer interface {
	Allowed(identity string) bool
}

// Ledger is the fungible reward-currency balance store. Balances never go
// negative and supply only grows through authorized mints on top of the
// genesis allocation.
type Ledger struct {
	mu          sync.RWMutex
	balances    map[string]uint64
	allowances  map[string]map[string]uint64
	totalSupply uint64

	authorizer Authorizer
	logger     *zap.Logger
}

// NewLedger creates a ledger with the genesis supply allocated to the given
// identity.
func NewLedger(genesisHolder string, genesisSupply uint64, authorizer Authorizer, logger *zap.Logger) *Ledger {
	l := &Ledger{
		balances:   make(map[string]uint64),
		allowances: make(map[string]map[string]uint64),
		authorizer: authorizer,
		logger:     logger,
	}
	if genesisSupply > 0 {
		l.balances[genesisHolder] = genesisSupply
		l.totalSupply = genesisSupply
	}
	return l
}

// Mint creates new currency for an identity. Privileged: the caller must be
// on the minter allow-list.
func (l *Ledger) Mint(caller, to string, amount uint64) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.authorizer.Allowed(caller) {
		return ErrUnauthorized
	}
	if amount == 0 {
		return ErrInvalidAmount
	}

	l.balances[to] += amount
	l.totalSupply += amount

	l.logger.Debug("currency minted",
		zap.String("to", to),
		zap.Uint64("amount", amount),
		zap.Uint64("total_supply", l.totalSupply),
	)
	return nil
}

// Transfer moves amount from one identity to another atomically.
func (l *Ledger) Transfer(from, to string, amount uint64) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.transferLocked(from, to, amount)
}

// Approve sets the amount a spender may move out of the owner's balance.
// Overwrites any previous allowance for that spender.
func (l *Ledger) Approve(owner, spender string, amount uint64) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.allowances[owner] == nil {
		l.allowances[owner] = make(map[string]uint64)
	}
	l.allowances[owner][spender] = amount
}

// TransferFrom moves amount from one identity to another on the strength of
// a prior approval, decrementing the allowance.
func (l *Ledger) TransferFrom(spender, from, to string, amount uint64) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	allowed := l.allowances[from][spender]
	if allowed < amount {
		return ErrInsufficientAllowance
	}
	if err := l.transferLocked(from, to, amount); err != nil {
		return err
	}
	l.allowances[from][spender] = allowed - amount
	return nil
}

func (l *Ledger) transferLocked(from, to string, amount uint64) error {
	if amount == 0 {
		return ErrInvalidAmount
	}
	if l.balances[from] < amount {
		return ErrInsufficientBalance
	}
	l.balances[from] -= amount
	l.balances[to] += amount
	return nil
}

// BalanceOf returns an identity's balance.
func (l *Ledger) BalanceOf(identity string) uint64 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.balances[identity]
}

// Allowance returns what a spender may still move from an owner's balance.
func (l *Ledger) Allowance(owner, spender string) uint64 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.allowances[owner][spender]
}

// TotalSupply returns the total amount of currency in existence.
func (l *Ledger) TotalSupply() uint64 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.totalSupply
}
