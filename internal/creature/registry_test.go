package creature_test

import (
	"errors"
	"testing"
	"time"

	"github.com/battlearena/arena-server-go/internal/creature"
	"go.uber.org/zap/zaptest"
)

type allowAll struct{}

func (allowAll) Allowed(string) bool { return true }

type denyAll struct{}

func (denyAll) Allowed(string) bool { return false }

type fakeClock struct {
	t time.Time
}

func (c *fakeClock) Now() time.Time {
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.t = c.t.Add(d)
}

func defaultConfig() creature.RegistryConfig {
	return creature.RegistryConfig{
		TrainExperience:   50,
		TrainStaminaCost:  10,
		RestRegenInterval: time.Minute,
		RestRegenAmount:   5,
		StarterSpecies:    []uint64{1, 4, 7, 25},
	}
}

func newTestRegistry(t *testing.T) (*creature.Registry, *fakeClock) {
	t.Helper()
	clk := &fakeClock{t: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)}
	reg := creature.NewRegistry(defaultConfig(), allowAll{}, clk.Now, zaptest.NewLogger(t))
	return reg, clk
}

func TestMintAssignsBaseStats(t *testing.T) {
	reg, _ := newTestRegistry(t)

	tokenID, err := reg.Mint("alice", 1)
	if err != nil {
		t.Fatalf("mint failed: %v", err)
	}
	if tokenID != 1 {
		t.Fatalf("expected first token id 1, got %d", tokenID)
	}

	c, err := reg.Get(tokenID)
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if c.Level != 1 || c.Experience != 0 {
		t.Fatalf("expected fresh creature at level 1 with 0 exp, got level %d exp %d", c.Level, c.Experience)
	}
	if c.Stamina != creature.MaxStamina {
		t.Fatalf("expected full stamina, got %d", c.Stamina)
	}
	if c.Resting {
		t.Fatalf("fresh creature must not be resting")
	}
	if c.HP != c.MaxHP || c.MaxHP <= 0 {
		t.Fatalf("expected full health, got %d/%d", c.HP, c.MaxHP)
	}
}

func TestMintEnforcesOwnerCap(t *testing.T) {
	reg, _ := newTestRegistry(t)

	for i := 0; i < creature.MaxPerOwner; i++ {
		if _, err := reg.Mint("alice", uint64(i+1)); err != nil {
			t.Fatalf("mint %d failed: %v", i, err)
		}
	}
	if _, err := reg.Mint("alice", 9); !errors.Is(err, creature.ErrCapacityExceeded) {
		t.Fatalf("expected ErrCapacityExceeded, got %v", err)
	}

	// Removing one frees a slot; the cap is re-checked at the next mint.
	tokens := reg.ListByOwner("alice")
	if err := reg.Remove("alice", tokens[0]); err != nil {
		t.Fatalf("remove failed: %v", err)
	}
	if _, err := reg.Mint("alice", 9); err != nil {
		t.Fatalf("mint after remove failed: %v", err)
	}
}

func TestMintStarterWhitelist(t *testing.T) {
	reg, _ := newTestRegistry(t)

	if _, err := reg.MintStarter("alice", 2); !errors.Is(err, creature.ErrNotStarter) {
		t.Fatalf("expected ErrNotStarter for species 2, got %v", err)
	}
	for _, id := range []uint64{1, 4, 7, 25} {
		if _, err := reg.MintStarter("starter-owner-"+string(rune('a'+id)), id); err != nil {
			t.Fatalf("starter mint of species %d failed: %v", id, err)
		}
	}
}

func TestTransferOwnershipAndCap(t *testing.T) {
	reg, _ := newTestRegistry(t)

	tokenID, _ := reg.Mint("alice", 1)

	if err := reg.Transfer("bob", tokenID, "bob", "carol"); !errors.Is(err, creature.ErrNotOwner) {
		t.Fatalf("expected ErrNotOwner for wrong from, got %v", err)
	}
	if err := reg.Transfer("bob", tokenID, "alice", "bob"); !errors.Is(err, creature.ErrNotOwner) {
		t.Fatalf("expected ErrNotOwner for unapproved caller, got %v", err)
	}

	for i := 0; i < creature.MaxPerOwner; i++ {
		reg.Mint("bob", uint64(i+2))
	}
	if err := reg.Transfer("alice", tokenID, "alice", "bob"); !errors.Is(err, creature.ErrCapacityExceeded) {
		t.Fatalf("expected ErrCapacityExceeded for full receiver, got %v", err)
	}

	if err := reg.Transfer("alice", tokenID, "alice", "carol"); err != nil {
		t.Fatalf("transfer failed: %v", err)
	}
	owner, _ := reg.OwnerOf(tokenID)
	if owner != "carol" {
		t.Fatalf("expected carol to own token, got %s", owner)
	}
}

func TestApprovedOperatorTransferClearsApproval(t *testing.T) {
	reg, _ := newTestRegistry(t)

	tokenID, _ := reg.Mint("alice", 1)
	if err := reg.Approve("bob", tokenID, "escrow"); !errors.Is(err, creature.ErrNotOwner) {
		t.Fatalf("expected ErrNotOwner approving someone else's token, got %v", err)
	}
	if err := reg.Approve("alice", tokenID, "escrow"); err != nil {
		t.Fatalf("approve failed: %v", err)
	}
	if op, _ := reg.Approved(tokenID); op != "escrow" {
		t.Fatalf("expected escrow approved, got %q", op)
	}

	if err := reg.Transfer("escrow", tokenID, "alice", "bob"); err != nil {
		t.Fatalf("operator transfer failed: %v", err)
	}
	if op, _ := reg.Approved(tokenID); op != "" {
		t.Fatalf("expected approval cleared after transfer, got %q", op)
	}
}

func TestTrainGainsExperienceAndLevels(t *testing.T) {
	reg, _ := newTestRegistry(t)

	tokenID, _ := reg.Mint("alice", 1)
	before, _ := reg.Get(tokenID)

	if err := reg.Train("alice", tokenID); err != nil {
		t.Fatalf("first train failed: %v", err)
	}
	c, _ := reg.Get(tokenID)
	if c.Experience != 50 || c.Stamina != 90 || c.Level != 1 {
		t.Fatalf("after first train: exp %d stamina %d level %d", c.Experience, c.Stamina, c.Level)
	}

	// Second train crosses the 100-exp threshold for level 2.
	if err := reg.Train("alice", tokenID); err != nil {
		t.Fatalf("second train failed: %v", err)
	}
	c, _ = reg.Get(tokenID)
	if c.Level != 2 {
		t.Fatalf("expected level 2 after 100 exp, got %d", c.Level)
	}
	if c.Experience != 100 {
		t.Fatalf("experience must be cumulative, got %d", c.Experience)
	}
	if c.Attack != before.Attack+5 || c.Defense != before.Defense+5 || c.Speed != before.Speed+3 || c.MaxHP != before.MaxHP+10 {
		t.Fatalf("level-up increments not applied: %+v", c)
	}
	if c.HP != before.HP {
		t.Fatalf("current health must not reset on level-up: %d vs %d", c.HP, before.HP)
	}
}

func TestTrainErrors(t *testing.T) {
	reg, _ := newTestRegistry(t)

	tokenID, _ := reg.Mint("alice", 1)
	if err := reg.Train("bob", tokenID); !errors.Is(err, creature.ErrNotOwner) {
		t.Fatalf("expected ErrNotOwner, got %v", err)
	}

	// Burn stamina down to below the training floor.
	for i := 0; i < 10; i++ {
		if err := reg.Train("alice", tokenID); err != nil {
			t.Fatalf("train %d failed: %v", i, err)
		}
	}
	c, _ := reg.Get(tokenID)
	if c.Stamina != 0 {
		t.Fatalf("expected stamina exhausted, got %d", c.Stamina)
	}
	if err := reg.Train("alice", tokenID); !errors.Is(err, creature.ErrInsufficientStamina) {
		t.Fatalf("expected ErrInsufficientStamina, got %v", err)
	}

	if err := reg.Rest("alice", tokenID); err != nil {
		t.Fatalf("rest failed: %v", err)
	}
	if err := reg.Train("alice", tokenID); !errors.Is(err, creature.ErrIsResting) {
		t.Fatalf("expected ErrIsResting, got %v", err)
	}
}

func TestRestWakeRegeneratesLazily(t *testing.T) {
	reg, clk := newTestRegistry(t)

	tokenID, _ := reg.Mint("alice", 1)
	if err := reg.Rest("alice", tokenID); !errors.Is(err, creature.ErrStaminaFull) {
		t.Fatalf("expected ErrStaminaFull at max stamina, got %v", err)
	}

	reg.Train("alice", tokenID)
	reg.Train("alice", tokenID)

	if err := reg.Rest("alice", tokenID); err != nil {
		t.Fatalf("rest failed: %v", err)
	}
	if err := reg.Rest("alice", tokenID); !errors.Is(err, creature.ErrIsResting) {
		t.Fatalf("expected ErrIsResting on double rest, got %v", err)
	}

	// Three regen intervals at 5 stamina each: 80 -> 95.
	clk.Advance(3 * time.Minute)
	c, _ := reg.Get(tokenID)
	if !c.Resting {
		t.Fatalf("creature should still be resting")
	}
	if c.Stamina != 95 {
		t.Fatalf("expected 95 stamina after 3 intervals, got %d", c.Stamina)
	}

	// Regeneration caps at the maximum.
	clk.Advance(time.Hour)
	c, _ = reg.Get(tokenID)
	if c.Stamina != creature.MaxStamina {
		t.Fatalf("expected stamina capped at %d, got %d", creature.MaxStamina, c.Stamina)
	}

	if err := reg.Wake("alice", tokenID); err != nil {
		t.Fatalf("wake failed: %v", err)
	}
	c, _ = reg.Get(tokenID)
	if c.Resting {
		t.Fatalf("creature should be awake")
	}
	if err := reg.Wake("alice", tokenID); !errors.Is(err, creature.ErrNotResting) {
		t.Fatalf("expected ErrNotResting on double wake, got %v", err)
	}
}

func TestRestThenImmediateWakeKeepsStamina(t *testing.T) {
	reg, _ := newTestRegistry(t)

	tokenID, _ := reg.Mint("alice", 1)
	reg.Train("alice", tokenID)

	before, _ := reg.Get(tokenID)
	if err := reg.Rest("alice", tokenID); err != nil {
		t.Fatalf("rest failed: %v", err)
	}
	if err := reg.Wake("alice", tokenID); err != nil {
		t.Fatalf("wake failed: %v", err)
	}
	after, _ := reg.Get(tokenID)
	if after.Resting || after.Stamina != before.Stamina {
		t.Fatalf("rest+wake with no elapsed time must be a no-op: %+v vs %+v", before, after)
	}
}

func TestApplyBattleOutcomeIsPrivileged(t *testing.T) {
	clk := &fakeClock{t: time.Now()}
	reg := creature.NewRegistry(defaultConfig(), denyAll{}, clk.Now, zaptest.NewLogger(t))

	tokenID, _ := reg.Mint("alice", 1)
	if err := reg.ApplyBattleOutcome("anyone", tokenID, 10, 0, -5); !errors.Is(err, creature.ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
	c, _ := reg.Get(tokenID)
	if c.Experience != 0 || c.Stamina != creature.MaxStamina {
		t.Fatalf("denied mutation must not change state: %+v", c)
	}
}

func TestApplyBattleOutcomeClampsBounds(t *testing.T) {
	reg, _ := newTestRegistry(t)

	tokenID, _ := reg.Mint("alice", 1)
	if err := reg.ApplyBattleOutcome("sys", tokenID, 25, -1000, -1000); err != nil {
		t.Fatalf("apply failed: %v", err)
	}
	c, _ := reg.Get(tokenID)
	if c.HP != 0 {
		t.Fatalf("health must clamp at zero, got %d", c.HP)
	}
	if c.Stamina != 0 {
		t.Fatalf("stamina must clamp at zero, got %d", c.Stamina)
	}
	if c.Level < 1 {
		t.Fatalf("level must stay >= 1, got %d", c.Level)
	}
}

func TestRemoveIsIrreversible(t *testing.T) {
	reg, _ := newTestRegistry(t)

	tokenID, _ := reg.Mint("alice", 1)
	if err := reg.Remove("bob", tokenID); !errors.Is(err, creature.ErrNotOwner) {
		t.Fatalf("expected ErrNotOwner, got %v", err)
	}
	if err := reg.Remove("alice", tokenID); err != nil {
		t.Fatalf("remove failed: %v", err)
	}
	if _, err := reg.Get(tokenID); !errors.Is(err, creature.ErrNotFound) {
		t.Fatalf("expected ErrNotFound after remove, got %v", err)
	}
	if got := reg.ListByOwner("alice"); len(got) != 0 {
		t.Fatalf("expected no tokens after remove, got %v", got)
	}
}
