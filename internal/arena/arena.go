package arena

import (
	"context"
	"errors"
	"sync"

	"github.com/battlearena/arena-server-go/internal/auth"
	"github.com/battlearena/arena-server-go/internal/battle"
	"github.com/battlearena/arena-server-go/internal/creature"
	"github.com/battlearena/arena-server-go/internal/events"
	"github.com/battlearena/arena-server-go/internal/leaderboard"
	"github.com/battlearena/arena-server-go/internal/ledger"
	"github.com/battlearena/arena-server-go/internal/market"
	"go.uber.org/zap"
)

// System identities for the privileged components. Both are granted on the
// allow-list at boot.
const (
	BattleIdentity = "sys:battle-resolver"
	EscrowIdentity = "sys:market-escrow"
)

// ErrStarterClaimed is returned when an identity that already holds
// creatures requests a starter mint.
var ErrStarterClaimed = errors.New("starter already claimed")

// Persister receives committed state for durable storage. Persistence is
// best-effort: the in-memory state stays authoritative and persistence
// failures are logged, never propagated into the operation result.
type Persister interface {
	AppendEvent(ctx context.Context, ev events.Event) error
	UpsertStats(ctx context.Context, st battle.Stats) error
}

// Arena is the single entry point for every game operation. One mutex gives
// committed operations a total order: no two operations interleave, and a
// cross-component sequence (battle, purchase) either commits fully or fails
// with no observable side effect.
type Arena struct {
	mu sync.Mutex

	authorizer *auth.Authorizer
	registry   *creature.Registry
	ledger     *ledger.Ledger
	resolver   *battle.Resolver
	escrow     *market.Escrow
	board      *leaderboard.Leaderboard
	log        *events.Log

	persister Persister
	logger    *zap.Logger
}

// New assembles the arena over its components. persister may be nil for a
// purely in-memory engine.
func New(
	authorizer *auth.Authorizer,
	registry *creature.Registry,
	ldg *ledger.Ledger,
	resolver *battle.Resolver,
	escrow *market.Escrow,
	board *leaderboard.Leaderboard,
	log *events.Log,
	persister Persister,
	logger *zap.Logger,
) *Arena {
	return &Arena{
		authorizer: authorizer,
		registry:   registry,
		ledger:     ldg,
		resolver:   resolver,
		escrow:     escrow,
		board:      board,
		log:        log,
		persister:  persister,
		logger:     logger,
	}
}

// --- creatures ---

// MintStarter mints one of the whitelisted starter species for a caller who
// holds no creatures yet.
func (a *Arena) MintStarter(ctx context.Context, caller string, speciesID uint64) (uint64, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.registry.Count(caller) > 0 {
		return 0, ErrStarterClaimed
	}
	tokenID, err := a.registry.MintStarter(caller, speciesID)
	if err != nil {
		return 0, err
	}
	a.commit(ctx, events.Event{
		Type:     events.TypeCreatureMinted,
		Identity: caller,
		TokenID:  tokenID,
	})
	return tokenID, nil
}

// MintCreature mints a creature of any species for the caller, subject to
// the holding cap.
func (a *Arena) MintCreature(ctx context.Context, caller string, speciesID uint64) (uint64, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	tokenID, err := a.registry.Mint(caller, speciesID)
	if err != nil {
		return 0, err
	}
	a.commit(ctx, events.Event{
		Type:     events.TypeCreatureMinted,
		Identity: caller,
		TokenID:  tokenID,
	})
	return tokenID, nil
}

// TransferCreature moves an owned creature to another identity.
func (a *Arena) TransferCreature(ctx context.Context, caller string, tokenID uint64, to string) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if err := a.registry.Transfer(caller, tokenID, caller, to); err != nil {
		return err
	}
	a.commit(ctx, events.Event{
		Type:     events.TypeOwnershipChanged,
		Identity: to,
		Counter:  caller,
		TokenID:  tokenID,
	})
	return nil
}

// Train spends stamina for experience.
func (a *Arena) Train(ctx context.Context, caller string, tokenID uint64) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.registry.Train(caller, tokenID)
}

// Rest puts a creature to sleep.
func (a *Arena) Rest(ctx context.Context, caller string, tokenID uint64) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.registry.Rest(caller, tokenID)
}

// Wake ends a rest.
func (a *Arena) Wake(ctx context.Context, caller string, tokenID uint64) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.registry.Wake(caller, tokenID)
}

// RemoveCreature burns an owned creature.
func (a *Arena) RemoveCreature(ctx context.Context, caller string, tokenID uint64) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if err := a.registry.Remove(caller, tokenID); err != nil {
		return err
	}
	a.commit(ctx, events.Event{
		Type:     events.TypeCreatureRemoved,
		Identity: caller,
		TokenID:  tokenID,
	})
	return nil
}

// ApproveCreature authorizes an operator (typically the escrow) to transfer
// the token on the owner's behalf.
func (a *Arena) ApproveCreature(ctx context.Context, caller string, tokenID uint64, operator string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.registry.Approve(caller, tokenID, operator)
}

// GetCreature returns the current state of a token.
func (a *Arena) GetCreature(tokenID uint64) (creature.Creature, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.registry.Get(tokenID)
}

// CreaturesByOwner returns the token ids an identity currently owns.
func (a *Arena) CreaturesByOwner(owner string) []uint64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.registry.ListByOwner(owner)
}

// TokensEverHeld returns every token an identity has held, derived from the
// event log and cross-checked nowhere else.
func (a *Arena) TokensEverHeld(owner string) []uint64 {
	return a.log.TokensEverHeld(owner)
}

// --- battles ---

// Battle resolves one battle between the caller's attacker and a defender
// owned by someone else.
func (a *Arena) Battle(ctx context.Context, caller string, attackerToken, defenderToken uint64) (battle.Outcome, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	out, err := a.resolver.Resolve(caller, attackerToken, defenderToken)
	if err != nil {
		return battle.Outcome{}, err
	}

	a.commit(ctx, events.Event{
		Type:     events.TypeBattleResolved,
		Identity: out.Winner,
		Counter:  out.Loser,
		TokenID:  out.WinnerToken,
	})
	a.commit(ctx, events.Event{
		Type:     events.TypeRewardMinted,
		Identity: out.Winner,
		Amount:   out.Reward,
	})
	if a.persister != nil {
		for _, id := range []string{out.Winner, out.Loser} {
			if err := a.persister.UpsertStats(ctx, a.resolver.Stats().Get(id)); err != nil {
				a.logger.Warn("failed to persist battle stats",
					zap.String("identity", id), zap.Error(err))
			}
		}
	}
	return out, nil
}

// StatsOf returns the battle aggregate for an identity.
func (a *Arena) StatsOf(identity string) battle.Stats {
	return a.resolver.Stats().Get(identity)
}

// --- currency ---

// MintCurrency mints reward currency. Privileged.
func (a *Arena) MintCurrency(ctx context.Context, caller, to string, amount uint64) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if err := a.ledger.Mint(caller, to, amount); err != nil {
		return err
	}
	a.commit(ctx, events.Event{
		Type:     events.TypeRewardMinted,
		Identity: to,
		Amount:   amount,
	})
	return nil
}

// TransferCurrency moves currency between identities.
func (a *Arena) TransferCurrency(ctx context.Context, caller, to string, amount uint64) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.ledger.Transfer(caller, to, amount)
}

// ApproveCurrency sets a spending allowance.
func (a *Arena) ApproveCurrency(ctx context.Context, caller, spender string, amount uint64) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.ledger.Approve(caller, spender, amount)
}

// Balance returns an identity's currency balance.
func (a *Arena) Balance(identity string) uint64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.ledger.BalanceOf(identity)
}

// TotalSupply returns the total currency in existence.
func (a *Arena) TotalSupply() uint64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.ledger.TotalSupply()
}

// GrantMinter adds an identity to the privileged allow-list. Admin only.
func (a *Arena) GrantMinter(ctx context.Context, caller, identity string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.authorizer.Grant(caller, identity)
}

// --- marketplace ---

// ListCreature creates a listing for an owned creature.
func (a *Arena) ListCreature(ctx context.Context, caller string, tokenID, price uint64) (uint64, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	listingID, err := a.escrow.List(caller, tokenID, price)
	if err != nil {
		return 0, err
	}
	a.commit(ctx, events.Event{
		Type:     events.TypeListingCreated,
		Identity: caller,
		TokenID:  tokenID,
		Amount:   price,
	})
	return listingID, nil
}

// PurchaseListing buys a listed creature, moving currency and ownership as
// one atomic unit.
func (a *Arena) PurchaseListing(ctx context.Context, caller string, listingID uint64) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	listing, err := a.escrow.Get(listingID)
	if err != nil {
		return err
	}
	if err := a.escrow.Purchase(caller, listingID); err != nil {
		return err
	}
	a.commit(ctx, events.Event{
		Type:     events.TypeOwnershipChanged,
		Identity: caller,
		Counter:  listing.Seller,
		TokenID:  listing.TokenID,
		Amount:   listing.Price,
	})
	a.commit(ctx, events.Event{
		Type:     events.TypeListingClosed,
		Identity: caller,
		TokenID:  listing.TokenID,
	})
	return nil
}

// CancelListing deactivates a listing without moving assets.
func (a *Arena) CancelListing(ctx context.Context, caller string, listingID uint64) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	listing, err := a.escrow.Get(listingID)
	if err != nil {
		return err
	}
	if err := a.escrow.Cancel(caller, listingID); err != nil {
		return err
	}
	a.commit(ctx, events.Event{
		Type:     events.TypeListingClosed,
		Identity: caller,
		TokenID:  listing.TokenID,
	})
	return nil
}

// ActiveListings returns all active listings.
func (a *Arena) ActiveListings() []market.Listing {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.escrow.ActiveListings()
}

// GetListing returns a listing by id.
func (a *Arena) GetListing(listingID uint64) (market.Listing, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.escrow.Get(listingID)
}

// EscrowIdentity returns the operator identity of the marketplace escrow.
func (a *Arena) EscrowIdentity() string {
	return a.escrow.Identity()
}

// --- leaderboard ---

// TopBattlers returns up to n identities ranked by win count.
func (a *Arena) TopBattlers(n int) []leaderboard.Entry {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.board.TopBattlers(n)
}

// --- events ---

// Subscribe registers a channel receiving future committed events.
func (a *Arena) Subscribe() events.Subscriber {
	return a.log.Subscribe()
}

// Unsubscribe removes a subscriber.
func (a *Arena) Unsubscribe(sub events.Subscriber) {
	a.log.Unsubscribe(sub)
}

// commit appends a committed event to the log and persists it best-effort.
func (a *Arena) commit(ctx context.Context, ev events.Event) {
	recorded := a.log.Append(ev)
	if a.persister == nil {
		return
	}
	if err := a.persister.AppendEvent(ctx, recorded); err != nil {
		a.logger.Warn("failed to persist event",
			zap.String("event_id", recorded.ID),
			zap.String("type", string(recorded.Type)),
			zap.Error(err),
		)
	}
}
