package market

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/battlearena/arena-server-go/internal/creature"
	"github.com/battlearena/arena-server-go/internal/ledger"
	"go.uber.org/zap"
)

var (
	ErrInvalidPrice    = errors.New("price must be positive")
	ErrListingNotFound = errors.New("listing not found")
	ErrListingInactive = errors.New("listing is not active")
	ErrNotSeller       = errors.New("caller is not the seller")
	ErrAlreadyListed   = errors.New("creature already has an active listing")
	ErrOwnListing      = errors.New("cannot purchase your own listing")
	ErrNotApproved     = errors.New("escrow is not approved to transfer the creature")
)

// Listing is an active offer to exchange a creature for currency.
type Listing struct {
	ID      uint64
	Seller  string
	TokenID uint64
	Price   uint64
	Active  bool
}

// Registry is the slice of the creature registry the escrow needs.
type Registry interface {
	Get(tokenID uint64) (creature.Creature, error)
	OwnerOf(tokenID uint64) (string, error)
	Approved(tokenID uint64) (string, error)
	Transfer(caller string, tokenID uint64, from, to string) error
	Count(owner string) int
}

// Ledger is the slice of the reward ledger the escrow needs.
type Ledger interface {
	BalanceOf(identity string) uint64
	Allowance(owner, spender string) uint64
	TransferFrom(spender, from, to string, amount uint64) error
}

// Escrow brokers creature-for-currency exchanges. It owns listings but never
// holds creatures or currency itself: sellers approve it as a transfer
// operator in the registry, buyers approve a spending allowance in the
// ledger, and purchase moves both in one atomic unit.
type Escrow struct {
	mu       sync.Mutex
	listings map[uint64]*Listing
	// byToken tracks the active listing per creature: at most one at a time.
	byToken map[uint64]uint64
	nextID  uint64

	identity string
	registry Registry
	ledger   Ledger
	logger   *zap.Logger
}

// NewEscrow creates an escrow acting under the given operator identity.
func NewEscrow(identity string, registry Registry, ledger Ledger, logger *zap.Logger) *Escrow {
	return &Escrow{
		listings: make(map[uint64]*Listing),
		byToken:  make(map[uint64]uint64),
		identity: identity,
		registry: registry,
		ledger:   ledger,
		logger:   logger,
	}
}

// Identity returns the operator identity sellers must approve in the
// registry and buyers in the ledger.
func (e *Escrow) Identity() string {
	return e.identity
}

// List creates an active listing for an owned, awake creature.
func (e *Escrow) List(seller string, tokenID, price uint64) (uint64, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if price == 0 {
		return 0, ErrInvalidPrice
	}
	owner, err := e.registry.OwnerOf(tokenID)
	if err != nil {
		return 0, err
	}
	if owner != seller {
		return 0, creature.ErrNotOwner
	}
	c, err := e.registry.Get(tokenID)
	if err != nil {
		return 0, err
	}
	if c.Resting {
		return 0, creature.ErrIsResting
	}
	if id, ok := e.byToken[tokenID]; ok && e.listings[id].Active {
		return 0, ErrAlreadyListed
	}

	e.nextID++
	listing := &Listing{
		ID:      e.nextID,
		Seller:  seller,
		TokenID: tokenID,
		Price:   price,
		Active:  true,
	}
	e.listings[listing.ID] = listing
	e.byToken[tokenID] = listing.ID

	e.logger.Info("creature listed",
		zap.Uint64("listing_id", listing.ID),
		zap.Uint64("token_id", tokenID),
		zap.String("seller", seller),
		zap.Uint64("price", price),
	)
	return listing.ID, nil
}

// Purchase atomically exchanges the listed creature for the asking price.
// Every precondition is re-verified against current state before anything
// moves; a failure at any point leaves balances, ownership and the listing
// untouched.
func (e *Escrow) Purchase(buyer string, listingID uint64) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	listing, ok := e.listings[listingID]
	if !ok {
		return ErrListingNotFound
	}
	if !listing.Active {
		return ErrListingInactive
	}
	if buyer == listing.Seller {
		return ErrOwnListing
	}

	// The creature may have been burned or moved since listing; such a
	// listing is implicitly dead even while still flagged active.
	owner, err := e.registry.OwnerOf(listing.TokenID)
	if err != nil || owner != listing.Seller {
		listing.Active = false
		delete(e.byToken, listing.TokenID)
		return ErrListingInactive
	}

	approved, err := e.registry.Approved(listing.TokenID)
	if err != nil {
		return err
	}
	if approved != e.identity {
		return ErrNotApproved
	}
	if e.registry.Count(buyer) >= creature.MaxPerOwner {
		return creature.ErrCapacityExceeded
	}
	if e.ledger.BalanceOf(buyer) < listing.Price {
		return fmt.Errorf("buyer %s: %w", buyer, ledger.ErrInsufficientBalance)
	}
	if e.ledger.Allowance(buyer, e.identity) < listing.Price {
		return fmt.Errorf("buyer %s: %w", buyer, ledger.ErrInsufficientAllowance)
	}

	// Preconditions all hold under the serialized commit ordering, so the
	// two transfers below form one atomic unit.
	if err := e.ledger.TransferFrom(e.identity, buyer, listing.Seller, listing.Price); err != nil {
		return fmt.Errorf("currency transfer: %w", err)
	}
	if err := e.registry.Transfer(e.identity, listing.TokenID, listing.Seller, buyer); err != nil {
		return fmt.Errorf("creature transfer: %w", err)
	}
	listing.Active = false
	delete(e.byToken, listing.TokenID)

	e.logger.Info("listing purchased",
		zap.Uint64("listing_id", listingID),
		zap.Uint64("token_id", listing.TokenID),
		zap.String("seller", listing.Seller),
		zap.String("buyer", buyer),
		zap.Uint64("price", listing.Price),
	)
	return nil
}

// Cancel deactivates a listing without moving assets.
func (e *Escrow) Cancel(seller string, listingID uint64) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	listing, ok := e.listings[listingID]
	if !ok {
		return ErrListingNotFound
	}
	if listing.Seller != seller {
		return ErrNotSeller
	}
	if !listing.Active {
		return ErrListingInactive
	}

	listing.Active = false
	delete(e.byToken, listing.TokenID)

	e.logger.Info("listing cancelled",
		zap.Uint64("listing_id", listingID),
		zap.String("seller", seller),
	)
	return nil
}

// Get returns a listing by id.
func (e *Escrow) Get(listingID uint64) (Listing, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	listing, ok := e.listings[listingID]
	if !ok {
		return Listing{}, ErrListingNotFound
	}
	return *listing, nil
}

// ActiveListings returns all active listings ordered by listing id.
func (e *Escrow) ActiveListings() []Listing {
	e.mu.Lock()
	defer e.mu.Unlock()

	var out []Listing
	for _, l := range e.listings {
		if l.Active {
			out = append(out, *l)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
