package store

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestStore_SetStateNotifiesSubscribers(t *testing.T) {
	s := New(1)

	var seen []int
	unsub := s.Subscribe(func(v int) { seen = append(seen, v) })
	defer unsub()

	s.SetState(func(v int) int { return v + 1 })
	s.SetState(func(v int) int { return v * 10 })

	if got := s.GetState(); got != 20 {
		t.Fatalf("expected state 20, got %d", got)
	}
	if len(seen) != 2 || seen[0] != 2 || seen[1] != 20 {
		t.Fatalf("unexpected notifications: %v", seen)
	}
}

func TestStore_UnsubscribeStopsNotifications(t *testing.T) {
	s := New(0)

	calls := 0
	unsub := s.Subscribe(func(int) { calls++ })

	s.SetState(func(v int) int { return v + 1 })
	unsub()
	s.SetState(func(v int) int { return v + 1 })

	if calls != 1 {
		t.Fatalf("expected 1 notification, got %d", calls)
	}
}

func TestStore_SubscriberSeesCommittedState(t *testing.T) {
	type state struct{ A, B int }
	s := New(state{})

	s.Subscribe(func(st state) {
		if st.A != st.B {
			t.Fatalf("observed half-applied state: %+v", st)
		}
	})

	s.SetState(func(st state) state {
		st.A++
		st.B++
		return st
	})
}

type failKV struct{}

func (failKV) Load(string, any) (bool, error) { return false, nil }
func (failKV) Save(string, any) error         { return errors.New("save failed") }
func (failKV) Delete(string) error            { return nil }

func TestPersist_WriteFailureDoesNotBreakStore(t *testing.T) {
	s := New(5)
	detach := Persist(s, failKV{}, "k", func(v int) int { return v }, zerolog.Nop())
	defer detach()

	s.SetState(func(v int) int { return v + 1 })

	if got := s.GetState(); got != 6 {
		t.Fatalf("expected in-memory state 6, got %d", got)
	}
}

func TestInstrument_LogsTransitions(t *testing.T) {
	var buf bytes.Buffer
	log := zerolog.New(&buf)

	s := New(0)
	detach := Instrument(s, "counter", log)

	s.SetState(func(v int) int { return v + 1 })
	detach()
	s.SetState(func(v int) int { return v + 1 })

	out := buf.String()
	if !strings.Contains(out, `"store":"counter"`) {
		t.Fatalf("expected instrumented transition, got %q", out)
	}
	if strings.Count(out, "state transition") != 1 {
		t.Fatalf("expected exactly one logged transition, got %q", out)
	}
}
