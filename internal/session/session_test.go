package session

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestStore_BoundEviction(t *testing.T) {
	s := NewStore(2)
	id := s.Create()

	s.Append(id, "q1", "a1")
	s.Append(id, "q2", "a2")
	s.Append(id, "q3", "a3")

	msgs := s.History(id)
	if len(msgs) != 4 {
		t.Fatalf("got %d messages, want 4 (2 pairs)", len(msgs))
	}

	// Oldest pair evicted, order preserved.
	if got := msgs[0].Content[0].Text; got != "q2" {
		t.Errorf("first message = %q, want q2", got)
	}
	if got := msgs[3].Content[0].Text; got != "a3" {
		t.Errorf("last message = %q, want a3", got)
	}
}

func TestStore_HistoryRoles(t *testing.T) {
	s := NewStore(2)
	id := s.Create()
	s.Append(id, "question", "answer")

	msgs := s.History(id)
	if len(msgs) != 2 {
		t.Fatalf("got %d messages, want 2", len(msgs))
	}
	if msgs[0].Role != "user" || msgs[1].Role != "model" {
		t.Errorf("roles = %s, %s", msgs[0].Role, msgs[1].Role)
	}
}

func TestStore_UnknownSessionEmpty(t *testing.T) {
	s := NewStore(2)
	if msgs := s.History("never-seen"); len(msgs) != 0 {
		t.Errorf("unknown session has %d messages", len(msgs))
	}
}

func TestStore_SessionsIsolated(t *testing.T) {
	s := NewStore(2)
	a := s.Create()
	b := s.Create()

	s.Append(a, "qa", "aa")
	s.Append(b, "qb", "ab")

	if got := s.History(a)[0].Content[0].Text; got != "qa" {
		t.Errorf("session a first message = %q", got)
	}
	if got := s.History(b)[0].Content[0].Text; got != "qb" {
		t.Errorf("session b first message = %q", got)
	}
}

func TestStore_Clear(t *testing.T) {
	s := NewStore(2)
	id := s.Create()
	s.Append(id, "q", "a")

	s.Clear(id)
	if msgs := s.History(id); len(msgs) != 0 {
		t.Errorf("cleared session has %d messages", len(msgs))
	}
}

func TestStore_ConcurrentAppend(t *testing.T) {
	s := NewStore(3)
	id := s.Create()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			s.Append(id, fmt.Sprintf("q%d", n), fmt.Sprintf("a%d", n))
		}(i)
	}
	wg.Wait()

	if msgs := s.History(id); len(msgs) != 6 {
		t.Errorf("got %d messages after concurrent appends, want 6 (3 pairs)", len(msgs))
	}
}

func TestStore_LockTurnSerializes(t *testing.T) {
	s := NewStore(2)
	id := s.Create()

	unlock := s.LockTurn(id)

	acquired := make(chan struct{})
	go func() {
		u := s.LockTurn(id)
		close(acquired)
		u()
	}()

	time.Sleep(20 * time.Millisecond)
	select {
	case <-acquired:
		t.Fatal("second turn acquired the lock while the first held it")
	default:
	}

	unlock()
	<-acquired
}

func TestStore_DefaultBound(t *testing.T) {
	s := NewStore(-1)
	id := s.Create()
	for i := 0; i < 5; i++ {
		s.Append(id, "q", "a")
	}
	if msgs := s.History(id); len(msgs) != 2*DefaultMaxPairs {
		t.Errorf("got %d messages, want %d", len(msgs), 2*DefaultMaxPairs)
	}
}

func TestStore_ZeroDisablesHistory(t *testing.T) {
	s := NewStore(0)
	id := s.Create()
	for i := 0; i < 3; i++ {
		s.Append(id, "q", "a")
	}
	if msgs := s.History(id); len(msgs) != 0 {
		t.Errorf("history disabled but got %d messages", len(msgs))
	}
}
