package status

import (
	"testing"

	"github.com/matheus3301/followtrack/internal/bus"
)

func TestInitialState(t *testing.T) {
	m := NewMachine(nil)
	if m.Current() != Idle {
		t.Errorf("initial state = %s, want IDLE", m.Current())
	}
	if m.Serving() {
		t.Error("Serving() = true before any data was loaded")
	}
}

func TestValidTransitions(t *testing.T) {
	tests := []struct {
		from State
		to   State
	}{
		{Idle, Cached},
		{Idle, Syncing},
		{Cached, Syncing},
		{Syncing, Ready},
		{Syncing, Degraded},
		{Syncing, Error},
		{Syncing, Cached},
		{Ready, Syncing},
		{Degraded, Ready},
		{Error, Syncing},
	}
	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			m := NewMachine(nil)
			walkTo(t, m, tt.from)
			if err := m.Transition(tt.to); err != nil {
				t.Errorf("Transition(%s -> %s) error = %v", tt.from, tt.to, err)
			}
			if m.Current() != tt.to {
				t.Errorf("state = %s, want %s", m.Current(), tt.to)
			}
		})
	}
}

func TestInvalidTransition(t *testing.T) {
	m := NewMachine(nil)
	if err := m.Transition(Ready); err == nil {
		t.Error("Transition(IDLE -> READY) should fail")
	}
}

func TestSameStateIsNoop(t *testing.T) {
	b := bus.New()
	ch, unsub := b.Subscribe(bus.StatusChanged, 10)
	defer unsub()

	m := NewMachine(b)
	if err := m.Transition(Idle); err != nil {
		t.Fatalf("Transition(IDLE -> IDLE) error = %v", err)
	}
	select {
	case evt := <-ch:
		t.Errorf("unexpected event: %v", evt)
	default:
	}
}

func TestTransitionEmitsEvent(t *testing.T) {
	b := bus.New()
	ch, unsub := b.Subscribe("status.", 10)
	defer unsub()

	m := NewMachine(b)
	if err := m.Transition(Cached); err != nil {
		t.Fatal(err)
	}

	evt := <-ch
	if evt.Kind != bus.StatusChanged {
		t.Errorf("event kind = %q, want %s", evt.Kind, bus.StatusChanged)
	}
	change, ok := evt.Payload.(StatusChange)
	if !ok {
		t.Fatalf("payload type = %T, want StatusChange", evt.Payload)
	}
	if change.From != Idle || change.To != Cached {
		t.Errorf("change = %v -> %v, want IDLE -> CACHED", change.From, change.To)
	}
}

// TestColdStartLifecycle covers a returning user: cached content renders
// first, then a background sync supersedes it.
func TestColdStartLifecycle(t *testing.T) {
	m := NewMachine(nil)

	steps := []State{Cached, Syncing, Ready}
	for _, s := range steps {
		if err := m.Transition(s); err != nil {
			t.Fatalf("Transition to %s: %v (current: %s)", s, err, m.Current())
		}
	}
	if !m.Serving() {
		t.Error("Serving() = false in READY")
	}
}

// TestCachedCannotSkipSync verifies cached content never becomes READY
// without a successful fetch.
func TestCachedCannotSkipSync(t *testing.T) {
	m := NewMachine(nil)
	_ = m.Transition(Cached)

	if err := m.Transition(Ready); err == nil {
		t.Fatal("Transition(CACHED -> READY) should fail; must go through SYNCING first")
	}
	if m.Current() != Cached {
		t.Errorf("state = %s, want CACHED (should not have changed)", m.Current())
	}
}

// walkTo is a helper that transitions the machine to a target state.
func walkTo(t *testing.T, m *Machine, target State) {
	t.Helper()
	paths := map[State][]State{
		Idle:     {},
		Cached:   {Cached},
		Syncing:  {Syncing},
		Ready:    {Syncing, Ready},
		Degraded: {Syncing, Ready, Syncing, Degraded},
		Error:    {Syncing, Error},
	}
	for _, s := range paths[target] {
		if err := m.Transition(s); err != nil {
			t.Fatalf("walkTo(%s): %v", target, err)
		}
	}
}

func TestServing(t *testing.T) {
	want := map[State]bool{
		Idle:     false,
		Cached:   true,
		Syncing:  false,
		Ready:    true,
		Degraded: true,
		Error:    false,
	}
	for s, serving := range want {
		if got := s.Serving(); got != serving {
			t.Errorf("%s.Serving() = %v, want %v", s, got, serving)
		}
	}

	m := NewMachine(nil)
	if m.Serving() {
		t.Error("new machine should not be serving")
	}
	_ = m.Transition(Cached)
	if !m.Serving() {
		t.Error("CACHED machine should be serving")
	}
}
