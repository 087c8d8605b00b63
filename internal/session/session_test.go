package session

import (
	"sync"
	"testing"
	"time"
)

func TestGet_UnseenIdentityIsFreshInitial(t *testing.T) {
	st := NewStore()

	sess := st.Get("new@club.org")
	if sess.State != StateInitial {
		t.Errorf("state = %v, want initial", sess.State)
	}
	if sess.Department != "" || sess.CostItem != "" || len(sess.Answers) != 0 {
		t.Errorf("fresh session has slots set: %+v", sess)
	}
	// Get must not materialize an entry.
	if st.Len() != 0 {
		t.Errorf("Len = %d after Get, want 0", st.Len())
	}
}

func TestPutGet_CaseInsensitiveKey(t *testing.T) {
	st := NewStore()

	st.Put("User@Club.org", Session{State: StateAwaitingQuote, Department: "Sports"})

	got := st.Get("user@club.org")
	if got.State != StateAwaitingQuote || got.Department != "Sports" {
		t.Errorf("got = %+v", got)
	}
}

func TestWithLock_MutationsVisible(t *testing.T) {
	st := NewStore()

	st.WithLock("a@club.org", func(s *Session) {
		s.State = StateAwaitingCostItem
		s.Department = "Facilities"
	})

	got := st.Get("a@club.org")
	if got.State != StateAwaitingCostItem || got.Department != "Facilities" {
		t.Errorf("got = %+v", got)
	}
}

func TestWithLock_SerializesPerIdentity(t *testing.T) {
	st := NewStore()

	const n = 100
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			st.WithLock("same@club.org", func(s *Session) {
				s.Answers = append(s.Answers, "x")
			})
		}()
	}
	wg.Wait()

	got := st.Get("same@club.org")
	if len(got.Answers) != n {
		t.Errorf("answers = %d, want %d (lost updates)", len(got.Answers), n)
	}
}

func TestReset_ClearsSlots(t *testing.T) {
	s := Session{
		State:      StateAwaitingFinanceQ2,
		Department: "Sports",
		CostItem:   "Match Balls",
		Account:    "7000",
		Tracking:   "T1",
		Answers:    []string{"no"},
	}
	s.Reset()
	if s.State != StateInitial || s.Department != "" || s.CostItem != "" ||
		s.Account != "" || s.Tracking != "" || len(s.Answers) != 0 {
		t.Errorf("after reset: %+v", s)
	}
}

func TestSweep_EvictsIdleOnly(t *testing.T) {
	st := NewStore()
	current := time.Now()
	st.now = func() time.Time { return current }

	st.Put("old@club.org", Session{State: StateAwaitingQuote})

	current = current.Add(2 * time.Hour)
	st.Put("fresh@club.org", Session{State: StateAwaitingCostItem})

	evicted := st.Sweep(time.Hour)
	if evicted != 1 {
		t.Errorf("evicted = %d, want 1", evicted)
	}
	if st.Len() != 1 {
		t.Errorf("Len = %d, want 1", st.Len())
	}
	if got := st.Get("old@club.org"); got.State != StateInitial {
		t.Errorf("evicted session should read as fresh, got %+v", got)
	}
	if got := st.Get("fresh@club.org"); got.State != StateAwaitingCostItem {
		t.Errorf("fresh session lost: %+v", got)
	}
}

// A writer can obtain an entry pointer from the map and then lose the race
// to a sweep before taking the entry lock. The evicted tombstone must make
// that visible so the write lands in the store, not in an orphaned entry.
func TestSweep_ConcurrentWriteIsNotLost(t *testing.T) {
	st := NewStore()
	current := time.Now()
	st.now = func() time.Time { return current }

	st.Put("alice@club.org", Session{State: StateAwaitingQuote, Department: "Sports"})

	// The stale pointer a pre-lock writer would be holding.
	stale := st.lookup("alice@club.org")

	current = current.Add(25 * time.Hour)
	if evicted := st.Sweep(24 * time.Hour); evicted != 1 {
		t.Fatalf("evicted = %d, want 1", evicted)
	}

	stale.mu.Lock()
	tombstoned := stale.evicted
	stale.mu.Unlock()
	if !tombstoned {
		t.Fatal("evicted entry not tombstoned; a late locker would write to an orphan")
	}

	// lockEntry must refuse the stale entry and hand back the live one.
	e := st.lockEntry("alice@club.org")
	if e == stale {
		e.mu.Unlock()
		t.Fatal("locked an entry the sweep already removed")
	}
	e.sess.State = StateAwaitingFinanceQ1
	e.sess.Department = "Facilities"
	e.lastActive = st.now()
	e.mu.Unlock()

	got := st.Get("alice@club.org")
	if got.State != StateAwaitingFinanceQ1 || got.Department != "Facilities" {
		t.Errorf("transition silently lost, store reports %+v", got)
	}

	// The public write path must land in the store as well.
	st.WithLock("alice@club.org", func(s *Session) {
		s.CostItem = "Match Kit"
	})
	if got := st.Get("alice@club.org"); got.CostItem != "Match Kit" {
		t.Errorf("WithLock update lost after eviction: %+v", got)
	}
}

func TestStateString(t *testing.T) {
	tests := []struct {
		state State
		want  string
	}{
		{StateInitial, "initial"},
		{StateAwaitingDepartment, "awaiting_department"},
		{StateAwaitingCostItem, "awaiting_cost_item"},
		{StateAwaitingQuote, "awaiting_quote"},
		{StateAwaitingFinanceQ1, "awaiting_finance_q1"},
		{StateAwaitingFinanceQ2, "awaiting_finance_q2"},
		{State(99), "unknown"},
	}
	for _, tt := range tests {
		if got := tt.state.String(); got != tt.want {
			t.Errorf("State(%d).String() = %q, want %q", tt.state, got, tt.want)
		}
	}
}
