package events

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Type identifies the kind of committed operation an event records.
type Type string

const (
	TypeCreatureMinted   Type = "CREATURE_MINTED"
	TypeCreatureRemoved  Type = "CREATURE_REMOVED"
	TypeOwnershipChanged Type = "OWNERSHIP_CHANGED"
	TypeBattleResolved   Type = "BATTLE_RESOLVED"
	TypeListingCreated   Type = "LISTING_CREATED"
	TypeListingClosed    Type = "LISTING_CLOSED"
	TypeRewardMinted     Type = "REWARD_MINTED"
)

// Event is a single committed state transition. Events are append-only and
// never rewritten once recorded.
type Event struct {
	ID       string
	Seq      uint64
	Type     Type
	At       time.Time
	Identity string
	Counter  string
	TokenID  uint64
	Amount   uint64
}

// Subscriber receives every event appended after subscription.
type Subscriber chan Event

// Log is an in-memory append-only event log with fan-out to subscribers.
// Historical-holdings queries derive from it instead of a second mutable
// ownership index.
type Log struct {
	mu      sync.RWMutex
	entries []Event
	seq     uint64
	subs    map[Subscriber]struct{}
	now     func() time.Time
}

// NewLog creates an empty event log using the given clock.
func NewLog(now func() time.Time) *Log {
	if now == nil {
		now = time.Now
	}
	return &Log{
		subs: make(map[Subscriber]struct{}),
		now:  now,
	}
}

// Append records an event, stamping it with a fresh id, sequence number and
// timestamp, and fans it out to subscribers. Slow subscribers are skipped
// rather than blocking the commit path.
func (l *Log) Append(ev Event) Event {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.seq++
	ev.ID = uuid.NewString()
	ev.Seq = l.seq
	ev.At = l.now()
	l.entries = append(l.entries, ev)

	for sub := range l.subs {
		select {
		case sub <- ev:
		default:
		}
	}
	return ev
}

// Subscribe registers a buffered channel receiving future events.
func (l *Log) Subscribe() Subscriber {
	l.mu.Lock()
	defer l.mu.Unlock()
	sub := make(Subscriber, 64)
	l.subs[sub] = struct{}{}
	return sub
}

// Unsubscribe removes and closes a subscriber channel.
func (l *Log) Unsubscribe(sub Subscriber) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.subs[sub]; ok {
		delete(l.subs, sub)
		close(sub)
	}
}

// All returns a copy of every recorded event in append order.
func (l *Log) All() []Event {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]Event, len(l.entries))
	copy(out, l.entries)
	return out
}

// TokensEverHeld returns the distinct token ids an identity has held at any
// point, in first-acquired order, derived from ownership events.
func (l *Log) TokensEverHeld(identity string) []uint64 {
	l.mu.RLock()
	defer l.mu.RUnlock()

	seen := make(map[uint64]struct{})
	var out []uint64
	for _, ev := range l.entries {
		switch ev.Type {
		case TypeCreatureMinted, TypeOwnershipChanged:
			if ev.Identity != identity {
				continue
			}
			if _, ok := seen[ev.TokenID]; ok {
				continue
			}
			seen[ev.TokenID] = struct{}{}
			out = append(out, ev.TokenID)
		}
	}
	return out
}
