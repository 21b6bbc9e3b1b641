// Package session provides bounded in-memory conversation history.
//
// History is stored as user/assistant exchange pairs with a fixed bound:
// appending beyond it evicts the oldest pair. Each session also carries a
// turn lock so concurrent queries on the same session serialize their
// read-generate-append cycle; different sessions never contend.
package session

import (
	"slices"
	"sync"

	"github.com/firebase/genkit/go/ai"
	"github.com/google/uuid"
)

// DefaultMaxPairs is the history bound when the caller does not configure one.
const DefaultMaxPairs = 2

// Exchange is one completed user/assistant pair.
type Exchange struct {
	UserText      string
	AssistantText string
}

type state struct {
	turnMu    sync.Mutex
	exchanges []Exchange
}

// Store holds per-session history. Safe for concurrent use.
type Store struct {
	maxPairs int

	mu       sync.RWMutex
	sessions map[string]*state
}

// NewStore creates a Store keeping at most maxPairs exchanges per session.
// Zero disables history entirely; negative values fall back to
// DefaultMaxPairs.
func NewStore(maxPairs int) *Store {
	if maxPairs < 0 {
		maxPairs = DefaultMaxPairs
	}
	return &Store{maxPairs: maxPairs, sessions: make(map[string]*state)}
}

// Create returns a fresh session ID with no history.
func (s *Store) Create() string {
	id := uuid.NewString()
	s.mu.Lock()
	s.sessions[id] = &state{}
	s.mu.Unlock()
	return id
}

func (s *Store) get(id string) *state {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.sessions[id]
	if !ok {
		st = &state{}
		s.sessions[id] = st
	}
	return st
}

// LockTurn serializes query turns on one session. The returned func releases
// the lock; callers hold it across their full read-generate-append cycle.
func (s *Store) LockTurn(id string) (unlock func()) {
	st := s.get(id)
	st.turnMu.Lock()
	return st.turnMu.Unlock
}

// History returns the session's exchanges as generation messages,
// oldest-first. Unknown sessions have empty history.
func (s *Store) History(id string) []*ai.Message {
	st := s.get(id)

	s.mu.RLock()
	exchanges := slices.Clone(st.exchanges)
	s.mu.RUnlock()

	msgs := make([]*ai.Message, 0, 2*len(exchanges))
	for _, e := range exchanges {
		msgs = append(msgs,
			ai.NewUserMessage(ai.NewTextPart(e.UserText)),
			ai.NewModelMessage(ai.NewTextPart(e.AssistantText)),
		)
	}
	return msgs
}

// Append records one completed exchange, evicting the oldest when the bound
// is exceeded.
func (s *Store) Append(id, userText, assistantText string) {
	st := s.get(id)

	s.mu.Lock()
	st.exchanges = append(st.exchanges, Exchange{UserText: userText, AssistantText: assistantText})
	if len(st.exchanges) > s.maxPairs {
		st.exchanges = st.exchanges[len(st.exchanges)-s.maxPairs:]
	}
	s.mu.Unlock()
}

// Clear drops the session's history but keeps the session itself.
func (s *Store) Clear(id string) {
	st := s.get(id)
	s.mu.Lock()
	st.exchanges = nil
	s.mu.Unlock()
}

// Count returns the number of known sessions.
func (s *Store) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}
