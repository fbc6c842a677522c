package battle

import (
	"crypto/sha256"
	"encoding/binary"
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/battlearena/arena-server-go/internal/creature"
	"go.uber.org/zap"
)

// ErrSelfBattle is returned when both creatures resolve to the same owner.
var ErrSelfBattle = errors.New("cannot battle your own creature")

// SeedFunc supplies the pseudo-randomness for one battle. It must be a pure
// function of its inputs so a resolved battle can be replayed; the seed
// source stands in for transaction/block context.
type SeedFunc func(attackerToken, defenderToken uint64) uint64

// NonceSeed returns a SeedFunc that folds a monotonically increasing nonce
// into the hash, so successive battles between the same pair differ while
// each individual resolution stays reproducible from its recorded nonce.
func NonceSeed() SeedFunc {
	var nonce uint64
	return func(attackerToken, defenderToken uint64) uint64 {
		n := atomic.AddUint64(&nonce, 1)
		return hashSeed(attackerToken, defenderToken, n)
	}
}

// FixedSeed returns a SeedFunc that always produces the given value.
func FixedSeed(v uint64) SeedFunc {
	return func(uint64, uint64) uint64 { return v }
}

func hashSeed(a, d, n uint64) uint64 {
	var buf [24]byte
	binary.LittleEndian.PutUint64(buf[0:], a)
	binary.LittleEndian.PutUint64(buf[8:], d)
	binary.LittleEndian.PutUint64(buf[16:], n)
	sum := sha256.Sum256(buf[:])
	return binary.LittleEndian.Uint64(sum[:8])
}

// Registry is the slice of the creature registry the resolver needs.
type Registry interface {
	Get(tokenID uint64) (creature.Creature, error)
	OwnerOf(tokenID uint64) (string, error)
	ApplyBattleOutcome(caller string, tokenID uint64, expDelta uint64, hpDelta, staminaDelta int) error
}

// Minter is the slice of the reward ledger the resolver needs.
type Minter interface {
	Mint(caller, to string, amount uint64) error
}

// ResolverConfig holds the reward and cost constants.
type ResolverConfig struct {
	Reward           uint64
	StaminaCost      int
	WinnerExperience uint64
	LoserExperience  uint64
}

// DefaultConfig mirrors the live constants: 10 currency to the winner,
// 10 stamina from both sides, 100/25 experience split.
func DefaultConfig() ResolverConfig {
	return ResolverConfig{
		Reward:           10,
		StaminaCost:      10,
		WinnerExperience: 100,
		LoserExperience:  25,
	}
}

// Outcome describes a resolved battle.
type Outcome struct {
	AttackerToken uint64
	DefenderToken uint64
	WinnerToken   uint64
	LoserToken    uint64
	Winner        string
	Loser         string
	AttackerScore int
	DefenderScore int
	Damage        int
	Reward        uint64
	Seed          uint64
}

// Resolver computes battle outcomes and distributes rewards. Each battle is
// a single atomic step: validation happens before any mutation, so a failure
// leaves no partial stat or currency change.
type Resolver struct {
	identity string
	cfg      ResolverConfig
	registry Registry
	minter   Minter
	stats    *StatsStore
	seed     SeedFunc
	logger   *zap.Logger
}

// NewResolver creates a resolver acting under the given privileged identity.
// That identity must be granted on the allow-list for stat writes and
// currency mints to succeed.
func NewResolver(identity string, cfg ResolverConfig, registry Registry, minter Minter, stats *StatsStore, seed SeedFunc, logger *zap.Logger) *Resolver {
	if seed == nil {
		seed = NonceSeed()
	}
	return &Resolver{
		identity: identity,
		cfg:      cfg,
		registry: registry,
		minter:   minter,
		stats:    stats,
		seed:     seed,
		logger:   logger,
	}
}

// Stats exposes the aggregate store fed by resolved battles.
func (r *Resolver) Stats() *StatsStore {
	return r.stats
}

// Resolve runs one battle between the caller's attacker token and a defender
// token owned by someone else.
func (r *Resolver) Resolve(caller string, attackerToken, defenderToken uint64) (Outcome, error) {
	attackerOwner, err := r.registry.OwnerOf(attackerToken)
	if err != nil {
		return Outcome{}, fmt.Errorf("attacker: %w", err)
	}
	defenderOwner, err := r.registry.OwnerOf(defenderToken)
	if err != nil {
		return Outcome{}, fmt.Errorf("defender: %w", err)
	}
	if attackerOwner != caller {
		return Outcome{}, creature.ErrNotOwner
	}
	if attackerOwner == defenderOwner {
		return Outcome{}, ErrSelfBattle
	}

	attacker, err := r.registry.Get(attackerToken)
	if err != nil {
		return Outcome{}, fmt.Errorf("attacker: %w", err)
	}
	defender, err := r.registry.Get(defenderToken)
	if err != nil {
		return Outcome{}, fmt.Errorf("defender: %w", err)
	}
	if attacker.Resting || defender.Resting {
		return Outcome{}, creature.ErrIsResting
	}
	if attacker.Stamina < r.cfg.StaminaCost || defender.Stamina < r.cfg.StaminaCost {
		return Outcome{}, creature.ErrInsufficientStamina
	}

	seed := r.seed(attackerToken, defenderToken)
	attackerScore := effectivePower(attacker, defender, seed, 0)
	defenderScore := effectivePower(defender, attacker, seed, 1)

	attackerWins := attackerScore > defenderScore
	if attackerScore == defenderScore {
		// Speed breaks ties; the attacker wins a dead heat.
		attackerWins = attacker.Speed >= defender.Speed
	}

	out := Outcome{
		AttackerToken: attackerToken,
		DefenderToken: defenderToken,
		AttackerScore: attackerScore,
		DefenderScore: defenderScore,
		Reward:        r.cfg.Reward,
		Seed:          seed,
	}
	var winner, loser creature.Creature
	if attackerWins {
		out.WinnerToken, out.LoserToken = attackerToken, defenderToken
		out.Winner, out.Loser = attackerOwner, defenderOwner
		winner, loser = attacker, defender
	} else {
		out.WinnerToken, out.LoserToken = defenderToken, attackerToken
		out.Winner, out.Loser = defenderOwner, attackerOwner
		winner, loser = defender, attacker
	}
	out.Damage = damage(winner, loser)

	// All validation has passed; the mutations below cannot fail under the
	// arena's serialized commit ordering.
	if err := r.registry.ApplyBattleOutcome(r.identity, out.WinnerToken, r.cfg.WinnerExperience, 0, -r.cfg.StaminaCost); err != nil {
		return Outcome{}, fmt.Errorf("apply winner outcome: %w", err)
	}
	if err := r.registry.ApplyBattleOutcome(r.identity, out.LoserToken, r.cfg.LoserExperience, -out.Damage, -r.cfg.StaminaCost); err != nil {
		return Outcome{}, fmt.Errorf("apply loser outcome: %w", err)
	}
	if err := r.minter.Mint(r.identity, out.Winner, r.cfg.Reward); err != nil {
		return Outcome{}, fmt.Errorf("mint reward: %w", err)
	}
	r.stats.Record(out.Winner, out.Loser)

	r.logger.Info("battle resolved",
		zap.Uint64("attacker_token", attackerToken),
		zap.Uint64("defender_token", defenderToken),
		zap.Uint64("winner_token", out.WinnerToken),
		zap.String("winner", out.Winner),
		zap.Int("attacker_score", attackerScore),
		zap.Int("defender_score", defenderScore),
	)
	return out, nil
}

// effectivePower scores one side. Strictly increasing in own attack and
// speed, decreasing in the opponent's defense; the faster side gets a small
// first-strike bonus, and the seed adds a bounded jitter per side.
func effectivePower(own, opp creature.Creature, seed uint64, side byte) int {
	score := own.Attack*3 - opp.Defense*2 + own.Speed + own.Stamina/10
	if own.Speed > opp.Speed {
		score += 2
	}
	score += int(sideJitter(seed, side))
	return score
}

// sideJitter derives a 0..9 bonus for one side from the battle seed.
func sideJitter(seed uint64, side byte) uint64 {
	var buf [9]byte
	binary.LittleEndian.PutUint64(buf[0:], seed)
	buf[8] = side
	sum := sha256.Sum256(buf[:])
	return binary.LittleEndian.Uint64(sum[:8]) % 10
}

// damage the loser takes, floored at 1 so every battle leaves a mark but
// never drives health negative (the registry clamps at zero).
func damage(winner, loser creature.Creature) int {
	d := winner.Attack - loser.Defense/2
	if d < 1 {
		d = 1
	}
	return d
}
