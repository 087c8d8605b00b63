// Package session holds per-sender conversation state. Sessions live in
// process memory only; there is no cross-restart persistence.
package session

import (
	"strings"
	"sync"
	"time"
)

type State int

const (
	StateInitial State = iota
	StateAwaitingDepartment
	StateAwaitingCostItem
	StateAwaitingQuote
	StateAwaitingFinanceQ1
	StateAwaitingFinanceQ2
)

func (s State) String() string {
	switch s {
	case StateInitial:
		return "initial"
	case StateAwaitingDepartment:
		return "awaiting_department"
	case StateAwaitingCostItem:
		return "awaiting_cost_item"
	case StateAwaitingQuote:
		return "awaiting_quote"
	case StateAwaitingFinanceQ1:
		return "awaiting_finance_q1"
	case StateAwaitingFinanceQ2:
		return "awaiting_finance_q2"
	default:
		return "unknown"
	}
}

// Session accumulates the slots of one intake conversation. Department is
// set no later than entering AwaitingCostItem; CostItem/Account/Tracking no
// later than entering AwaitingQuote. An Initial session has no slots set.
type Session struct {
	State      State
	Department string
	CostItem   string
	Account    string
	Tracking   string
	FinanceRef string
	Answers    []string
}

// Reset clears all slots and returns the session to Initial.
func (s *Session) Reset() {
	*s = Session{}
}

type entry struct {
	mu         sync.Mutex
	sess       Session
	lastActive time.Time
	// evicted is set under mu when Sweep removes the entry from the map.
	// A locker that raced the sweep sees the tombstone and retries against
	// the current map entry instead of writing to an orphan.
	evicted bool
}

// Store maps sender identity to session state. Transitions for the same
// identity serialize on the entry's own mutex; different identities never
// contend on a shared lock beyond the brief map access.
type Store struct {
	mu      sync.RWMutex
	entries map[string]*entry
	now     func() time.Time
}

func NewStore() *Store {
	return &Store{
		entries: make(map[string]*entry),
		now:     time.Now,
	}
}

func key(identity string) string {
	return strings.ToLower(strings.TrimSpace(identity))
}

func (st *Store) lookup(identity string) *entry {
	k := key(identity)

	st.mu.RLock()
	e, ok := st.entries[k]
	st.mu.RUnlock()
	if ok {
		return e
	}

	st.mu.Lock()
	defer st.mu.Unlock()
	if e, ok := st.entries[k]; ok {
		return e
	}
	e = &entry{lastActive: st.now()}
	st.entries[k] = e
	return e
}

// Get returns a copy of the identity's session, a fresh Initial session when
// the identity is unseen. It never fails.
func (st *Store) Get(identity string) Session {
	st.mu.RLock()
	e, ok := st.entries[key(identity)]
	st.mu.RUnlock()
	if !ok {
		return Session{}
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.evicted {
		return Session{}
	}
	return e.sess
}

// lockEntry returns the identity's live entry with its mutex held. A sweep
// may evict the entry between lookup and lock; the tombstone makes that
// visible, and the locker retries until it holds an entry the map still
// owns.
func (st *Store) lockEntry(identity string) *entry {
	for {
		e := st.lookup(identity)
		e.mu.Lock()
		if !e.evicted {
			return e
		}
		e.mu.Unlock()
	}
}

// Put overwrites the identity's session, last-writer-wins.
func (st *Store) Put(identity string, sess Session) {
	e := st.lockEntry(identity)
	defer e.mu.Unlock()
	e.sess = sess
	e.lastActive = st.now()
}

// WithLock runs fn with exclusive access to the identity's session. This is
// the serialization point for state-machine transitions: at most one
// in-flight transition per identity, with no cross-identity contention.
func (st *Store) WithLock(identity string, fn func(*Session)) {
	e := st.lockEntry(identity)
	defer e.mu.Unlock()
	fn(&e.sess)
	e.lastActive = st.now()
}

// Sweep evicts sessions idle for longer than ttl and returns how many were
// removed. Entries with an in-flight transition are skipped.
func (st *Store) Sweep(ttl time.Duration) int {
	cutoff := st.now().Add(-ttl)

	st.mu.Lock()
	defer st.mu.Unlock()

	evicted := 0
	for k, e := range st.entries {
		if !e.mu.TryLock() {
			continue
		}
		if e.lastActive.Before(cutoff) {
			e.evicted = true
			delete(st.entries, k)
			evicted++
		}
		e.mu.Unlock()
	}
	return evicted
}

// Len reports the number of live sessions.
func (st *Store) Len() int {
	st.mu.RLock()
	defer st.mu.RUnlock()
	return len(st.entries)
}
