package creature

import (
	"errors"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"
)

const (
	// MaxStamina is the upper bound of the stamina gauge.
	MaxStamina = 100
	// MaxPerOwner caps simultaneous holdings, enforced at mint and
	// transfer time.
	MaxPerOwner = 3
	// MinTrainStamina is the stamina floor below which training fails.
	MinTrainStamina = 10
)

var (
	ErrNotFound            = errors.New("creature not found")
	ErrNotOwner            = errors.New("caller does not own creature")
	ErrCapacityExceeded    = errors.New("maximum 3 creatures per owner")
	ErrInsufficientStamina = errors.New("insufficient stamina")
	ErrIsResting           = errors.New("creature is resting")
	ErrNotResting          = errors.New("creature is not resting")
	ErrStaminaFull         = errors.New("stamina already at maximum")
	ErrNotStarter          = errors.New("species is not a starter")
	ErrUnauthorized        = errors.New("caller not authorized for stat mutation")
)

// Creature is the externally visible state of a single token.
type Creature struct {
	TokenID    uint64
	SpeciesID  uint64
	Name       string
	Level      int
	Experience uint64
	HP         int
	MaxHP      int
	Attack     int
	Defense    int
	Speed      int
	Stamina    int
	Resting    bool
}

// record is the stored form; rest bookkeeping never leaves the registry.
type record struct {
	Creature
	restStart     time.Time
	staminaAtRest int
}

// Authorizer gates privileged stat mutation.
type Authorizer interface {
	Allowed(identity string) bool
}

// RegistryConfig holds the tunable training and rest constants.
type RegistryConfig struct {
	TrainExperience   uint64
	TrainStaminaCost  int
	RestRegenInterval time.Duration
	RestRegenAmount   int
	StarterSpecies    []uint64
}

// Per-level stat growth applied on level-up.
const (
	levelUpAttack  = 5
	levelUpDefense = 5
	levelUpSpeed   = 3
	levelUpMaxHP   = 10
)

// Registry owns creature records, the current-ownership index, and per-token
// operator approvals. It is the sole mutator of creature state; stat writes
// from outside the normal train/rest flow go through ApplyBattleOutcome and
// are gated by the authorizer.
type Registry struct {
	mu        sync.Mutex
	creatures map[uint64]*record
	ownerOf   map[uint64]string
	approved  map[uint64]string
	nextToken uint64
	starters  map[uint64]struct{}

	cfg        RegistryConfig
	authorizer Authorizer
	now        func() time.Time
	logger     *zap.Logger
}

// NewRegistry creates an empty registry. The clock is injected so rest
// regeneration is testable with a fixed time source.
func NewRegistry(cfg RegistryConfig, authorizer Authorizer, now func() time.Time, logger *zap.Logger) *Registry {
	if now == nil {
		now = time.Now
	}
	starters := make(map[uint64]struct{}, len(cfg.StarterSpecies))
	for _, id := range cfg.StarterSpecies {
		starters[id] = struct{}{}
	}
	return &Registry{
		creatures:  make(map[uint64]*record),
		ownerOf:    make(map[uint64]string),
		approved:   make(map[uint64]string),
		starters:   starters,
		cfg:        cfg,
		authorizer: authorizer,
		now:        now,
		logger:     logger,
	}
}

// Mint creates a creature of the given species for owner and returns the
// fresh token id.
func (r *Registry) Mint(owner string, speciesID uint64) (uint64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.mintLocked(owner, speciesID)
}

// MintStarter is Mint restricted to the starter species whitelist. The
// once-per-identity rule is policy of the surrounding flow, not enforced
// here.
func (r *Registry) MintStarter(owner string, speciesID uint64) (uint64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.starters[speciesID]; !ok {
		return 0, ErrNotStarter
	}
	return r.mintLocked(owner, speciesID)
}

func (r *Registry) mintLocked(owner string, speciesID uint64) (uint64, error) {
	if r.countLocked(owner) >= MaxPerOwner {
		return 0, ErrCapacityExceeded
	}

	sp := SpeciesFor(speciesID)
	r.nextToken++
	tokenID := r.nextToken

	r.creatures[tokenID] = &record{Creature: Creature{
		TokenID:    tokenID,
		SpeciesID:  speciesID,
		Name:       sp.Name,
		Level:      1,
		Experience: 0,
		HP:         sp.Base.MaxHP,
		MaxHP:      sp.Base.MaxHP,
		Attack:     sp.Base.Attack,
		Defense:    sp.Base.Defense,
		Speed:      sp.Base.Speed,
		Stamina:    MaxStamina,
		Resting:    false,
	}}
	r.ownerOf[tokenID] = owner

	r.logger.Info("creature minted",
		zap.Uint64("token_id", tokenID),
		zap.Uint64("species_id", speciesID),
		zap.String("owner", owner),
	)
	return tokenID, nil
}

// Transfer reassigns ownership. The caller must be the current owner or the
// approved operator for the token; the receiver must have capacity. Any
// operator approval is cleared on transfer.
func (r *Registry) Transfer(caller string, tokenID uint64, from, to string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	owner, ok := r.ownerOf[tokenID]
	if !ok {
		return ErrNotFound
	}
	if owner != from {
		return ErrNotOwner
	}
	if caller != from && r.approved[tokenID] != caller {
		return ErrNotOwner
	}
	if r.countLocked(to) >= MaxPerOwner {
		return ErrCapacityExceeded
	}

	r.ownerOf[tokenID] = to
	delete(r.approved, tokenID)

	r.logger.Info("creature transferred",
		zap.Uint64("token_id", tokenID),
		zap.String("from", from),
		zap.String("to", to),
	)
	return nil
}

// Approve records an operator allowed to transfer the token on the owner's
// behalf. An empty operator clears the approval.
func (r *Registry) Approve(caller string, tokenID uint64, operator string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	owner, ok := r.ownerOf[tokenID]
	if !ok {
		return ErrNotFound
	}
	if owner != caller {
		return ErrNotOwner
	}
	if operator == "" {
		delete(r.approved, tokenID)
		return nil
	}
	r.approved[tokenID] = operator
	return nil
}

// Approved returns the operator approved for a token, if any.
func (r *Registry) Approved(tokenID uint64) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.ownerOf[tokenID]; !ok {
		return "", ErrNotFound
	}
	return r.approved[tokenID], nil
}

// Train adds the configured experience to an owned creature and burns
// stamina, re-evaluating level-up.
func (r *Registry) Train(caller string, tokenID uint64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, err := r.ownedLocked(caller, tokenID)
	if err != nil {
		return err
	}
	if rec.Resting {
		return ErrIsResting
	}
	if rec.Stamina < MinTrainStamina {
		return ErrInsufficientStamina
	}

	rec.Stamina -= r.cfg.TrainStaminaCost
	if rec.Stamina < 0 {
		rec.Stamina = 0
	}
	rec.Experience += r.cfg.TrainExperience
	leveled := r.applyLevelUps(rec)

	r.logger.Debug("creature trained",
		zap.Uint64("token_id", tokenID),
		zap.Uint64("experience", rec.Experience),
		zap.Int("level", rec.Level),
		zap.Bool("leveled_up", leveled),
	)
	return nil
}

// Rest puts a creature to sleep so stamina regenerates. Fails if already
// resting or already at full stamina.
func (r *Registry) Rest(caller string, tokenID uint64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, err := r.ownedLocked(caller, tokenID)
	if err != nil {
		return err
	}
	if rec.Resting {
		return ErrIsResting
	}
	if rec.Stamina >= MaxStamina {
		return ErrStaminaFull
	}

	rec.Resting = true
	rec.restStart = r.now()
	rec.staminaAtRest = rec.Stamina
	return nil
}

// Wake settles regenerated stamina and clears the resting flag.
func (r *Registry) Wake(caller string, tokenID uint64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, err := r.ownedLocked(caller, tokenID)
	if err != nil {
		return err
	}
	if !rec.Resting {
		return ErrNotResting
	}

	r.settleLocked(rec)
	rec.Resting = false
	rec.restStart = time.Time{}
	return nil
}

// ApplyBattleOutcome applies experience, health and stamina deltas on behalf
// of the battle resolver. Privileged: the caller must be on the allow-list.
// Health never drops below zero and stamina stays within bounds.
func (r *Registry) ApplyBattleOutcome(caller string, tokenID uint64, expDelta uint64, hpDelta, staminaDelta int) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.authorizer.Allowed(caller) {
		return ErrUnauthorized
	}
	rec, ok := r.creatures[tokenID]
	if !ok {
		return ErrNotFound
	}

	rec.Experience += expDelta
	rec.HP += hpDelta
	if rec.HP < 0 {
		rec.HP = 0
	}
	if rec.HP > rec.MaxHP {
		rec.HP = rec.MaxHP
	}
	rec.Stamina += staminaDelta
	if rec.Stamina < 0 {
		rec.Stamina = 0
	}
	if rec.Stamina > MaxStamina {
		rec.Stamina = MaxStamina
	}
	r.applyLevelUps(rec)
	return nil
}

// Remove burns a token irreversibly.
func (r *Registry) Remove(caller string, tokenID uint64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, err := r.ownedLocked(caller, tokenID); err != nil {
		return err
	}

	delete(r.creatures, tokenID)
	delete(r.ownerOf, tokenID)
	delete(r.approved, tokenID)

	r.logger.Info("creature removed",
		zap.Uint64("token_id", tokenID),
		zap.String("owner", caller),
	)
	return nil
}

// Get returns the current state of a token, settling any rest regeneration
// accrued since the last interaction.
func (r *Registry) Get(tokenID uint64) (Creature, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.creatures[tokenID]
	if !ok {
		return Creature{}, ErrNotFound
	}
	r.settleLocked(rec)
	return rec.Creature, nil
}

// OwnerOf returns the current owner of a token.
func (r *Registry) OwnerOf(tokenID uint64) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	owner, ok := r.ownerOf[tokenID]
	if !ok {
		return "", ErrNotFound
	}
	return owner, nil
}

// ListByOwner returns the token ids currently owned by an identity in
// ascending order.
func (r *Registry) ListByOwner(owner string) []uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []uint64
	for tokenID, o := range r.ownerOf {
		if o == owner {
			out = append(out, tokenID)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Count returns how many creatures an identity currently owns.
func (r *Registry) Count(owner string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.countLocked(owner)
}

func (r *Registry) countLocked(owner string) int {
	n := 0
	for _, o := range r.ownerOf {
		if o == owner {
			n++
		}
	}
	return n
}

func (r *Registry) ownedLocked(caller string, tokenID uint64) (*record, error) {
	rec, ok := r.creatures[tokenID]
	if !ok {
		return nil, ErrNotFound
	}
	if r.ownerOf[tokenID] != caller {
		return nil, ErrNotOwner
	}
	r.settleLocked(rec)
	return rec, nil
}

// settleLocked materializes stamina regenerated since rest began. Lazy: no
// background timers, regeneration is recomputed from the clock on each
// interaction.
func (r *Registry) settleLocked(rec *record) {
	if !rec.Resting {
		return
	}
	elapsed := r.now().Sub(rec.restStart)
	if elapsed < 0 {
		return
	}
	steps := int(elapsed / r.cfg.RestRegenInterval)
	stamina := rec.staminaAtRest + steps*r.cfg.RestRegenAmount
	if stamina > MaxStamina {
		stamina = MaxStamina
	}
	rec.Stamina = stamina
}

// applyLevelUps advances level while cumulative experience crosses the next
// threshold. The threshold to leave level L is 50*L*(L+1) total experience
// (100 for level 1 -> 2). Experience is never reduced.
func (r *Registry) applyLevelUps(rec *record) bool {
	leveled := false
	for rec.Experience >= cumulativeThreshold(rec.Level) {
		rec.Level++
		rec.Attack += levelUpAttack
		rec.Defense += levelUpDefense
		rec.Speed += levelUpSpeed
		rec.MaxHP += levelUpMaxHP
		leveled = true
	}
	return leveled
}

func cumulativeThreshold(level int) uint64 {
	l := uint64(level)
	return 50 * l * (l + 1)
}
