package events_test

import (
	"testing"
	"time"

	"github.com/battlearena/arena-server-go/internal/events"
)

func fixedClock() func() time.Time {
	at := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	return func() time.Time { return at }
}

func TestAppendAssignsSequence(t *testing.T) {
	log := events.NewLog(fixedClock())

	first := log.Append(events.Event{Type: events.TypeCreatureMinted, Identity: "alice", TokenID: 1})
	second := log.Append(events.Event{Type: events.TypeCreatureMinted, Identity: "bob", TokenID: 2})

	if first.Seq != 1 || second.Seq != 2 {
		t.Fatalf("expected monotonic sequence, got %d, %d", first.Seq, second.Seq)
	}
	if first.ID == "" || first.ID == second.ID {
		t.Fatalf("expected distinct event ids")
	}
	if all := log.All(); len(all) != 2 || all[0].Seq != 1 {
		t.Fatalf("unexpected log contents: %+v", all)
	}
}

func TestSubscribeReceivesAppends(t *testing.T) {
	log := events.NewLog(fixedClock())

	sub := log.Subscribe()
	defer log.Unsubscribe(sub)

	appended := log.Append(events.Event{Type: events.TypeBattleResolved, Identity: "alice"})

	select {
	case got := <-sub:
		if got.ID != appended.ID {
			t.Fatalf("expected event %s, got %s", appended.ID, got.ID)
		}
	case <-time.After(time.Second):
		t.Fatalf("expected event on subscription")
	}
}

func TestTokensEverHeld(t *testing.T) {
	log := events.NewLog(fixedClock())

	log.Append(events.Event{Type: events.TypeCreatureMinted, Identity: "alice", TokenID: 1})
	log.Append(events.Event{Type: events.TypeCreatureMinted, Identity: "bob", TokenID: 2})
	log.Append(events.Event{Type: events.TypeOwnershipChanged, Identity: "alice", Counter: "bob", TokenID: 2})
	// Token 1 leaves and comes back; it must not be listed twice.
	log.Append(events.Event{Type: events.TypeOwnershipChanged, Identity: "bob", Counter: "alice", TokenID: 1})
	log.Append(events.Event{Type: events.TypeOwnershipChanged, Identity: "alice", Counter: "bob", TokenID: 1})
	log.Append(events.Event{Type: events.TypeCreatureRemoved, Identity: "alice", TokenID: 2})

	held := log.TokensEverHeld("alice")
	if len(held) != 2 || held[0] != 1 || held[1] != 2 {
		t.Fatalf("expected [1 2], got %v", held)
	}

	if held := log.TokensEverHeld("carol"); len(held) != 0 {
		t.Fatalf("expected no tokens for carol, got %v", held)
	}
}
