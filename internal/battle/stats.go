package battle

import "sync"

// Stats is the per-identity battle aggregate.
type Stats struct {
	Identity     string
	TotalBattles int
	Wins         int
	Losses       int
	// LastWinSeq is the global win sequence at this identity's most recent
	// win. Identities that reached a given win count earlier carry a lower
	// sequence, which the leaderboard uses as a deterministic tie-break.
	LastWinSeq uint64
}

// StatsStore accumulates battle aggregates for all identities.
type StatsStore struct {
	mu     sync.RWMutex
	stats  map[string]*Stats
	winSeq uint64
}

// NewStatsStore creates an empty stats store.
func NewStatsStore() *StatsStore {
	return &StatsStore{stats: make(map[string]*Stats)}
}

// Record applies one battle outcome: both participants' battle counters
// advance, the winner gains a win, the loser a loss.
func (s *StatsStore) Record(winner, loser string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	w := s.getLocked(winner)
	l := s.getLocked(loser)

	w.TotalBattles++
	l.TotalBattles++
	w.Wins++
	l.Losses++

	s.winSeq++
	w.LastWinSeq = s.winSeq
}

// Get returns a copy of an identity's aggregate. Unknown identities report
// zeroes.
func (s *StatsStore) Get(identity string) Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if st, ok := s.stats[identity]; ok {
		return *st
	}
	return Stats{Identity: identity}
}

// All returns a copy of every identity's aggregate.
func (s *StatsStore) All() []Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Stats, 0, len(s.stats))
	for _, st := range s.stats {
		out = append(out, *st)
	}
	return out
}

func (s *StatsStore) getLocked(identity string) *Stats {
	st, ok := s.stats[identity]
	if !ok {
		st = &Stats{Identity: identity}
		s.stats[identity] = st
	}
	return st
}
