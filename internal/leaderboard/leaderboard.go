package leaderboard

import (
	"sort"

	"github.com/battlearena/arena-server-go/internal/battle"
)

// Entry is one leaderboard row.
type Entry struct {
	Identity string
	Wins     int
	Losses   int
	Battles  int
}

// Source yields the battle aggregates the leaderboard ranks.
type Source interface {
	All() []battle.Stats
}

// Leaderboard derives ranked win counts from battle history.
type Leaderboard struct {
	source Source
}

// New creates a leaderboard over the given stats source.
func New(source Source) *Leaderboard {
	return &Leaderboard{source: source}
}

// TopBattlers returns up to n identities ordered by win count descending.
// Ties go to the identity that reached its win count first (lower win
// sequence); identity string order is the final fallback so the ranking is
// fully deterministic.
func (l *Leaderboard) TopBattlers(n int) []Entry {
	stats := l.source.All()

	sort.Slice(stats, func(i, j int) bool {
		a, b := stats[i], stats[j]
		if a.Wins != b.Wins {
			return a.Wins > b.Wins
		}
		if a.LastWinSeq != b.LastWinSeq {
			return a.LastWinSeq < b.LastWinSeq
		}
		return a.Identity < b.Identity
	})

	if n > len(stats) {
		n = len(stats)
	}
	out := make([]Entry, 0, n)
	for _, st := range stats[:n] {
		out = append(out, Entry{
			Identity: st.Identity,
			Wins:     st.Wins,
			Losses:   st.Losses,
			Battles:  st.TotalBattles,
		})
	}
	return out
}
