package mailbox

import "testing"

func TestWaiterUnbounded(t *testing.T) {
	w := NewWaiter(Unbounded)
	for i := 0; i < 1000; i++ {
		if got := w.Step(0, slotMask(2)); got != NotYet {
			t.Fatalf("poll %d: expected NotYet, got %v", i, got)
		}
	}
	if got := w.Step(slotMask(2), slotMask(2)); got != Ready {
		t.Errorf("expected Ready once the bit is set, got %v", got)
	}
}

func TestWaiterBounded(t *testing.T) {
	testCases := []struct {
		budget uint32
		misses int // unset samples before the timeout is reported
	}{
		{budget: 1, misses: 1},
		{budget: 3, misses: 3},
		{budget: 10, misses: 10},
	}

	for _, tc := range testCases {
		w := NewWaiter(tc.budget)
		polls := 0
		var outcome PollOutcome
		for outcome = NotYet; outcome == NotYet; polls++ {
			outcome = w.Step(0, slotMask(0))
		}
		if outcome != TimedOut {
			t.Errorf("budget %d: expected TimedOut, got %v", tc.budget, outcome)
		}
		if polls != tc.misses {
			t.Errorf("budget %d: timed out after %d polls, expected %d", tc.budget, polls, tc.misses)
		}
	}
}

func TestWaiterStaysTimedOut(t *testing.T) {
	w := NewWaiter(2)
	w.Step(0, slotMask(0))
	if got := w.Step(0, slotMask(0)); got != TimedOut {
		t.Fatalf("expected TimedOut, got %v", got)
	}
	samples := []uint32{0, 0, slotMask(0), 0}
	for i, status := range samples {
		if got := w.Step(status, slotMask(0)); got != TimedOut {
			t.Errorf("step %d after timeout: expected TimedOut, got %v", i, got)
		}
		if w.Remaining() != 0 {
			t.Errorf("step %d after timeout: budget went to %d", i, w.Remaining())
		}
	}
}

func TestWaiterReadyKeepsBudget(t *testing.T) {
	w := NewWaiter(5)
	w.Step(0, slotMask(1))
	if got := w.Step(slotMask(1)|slotMask(3), slotMask(1)); got != Ready {
		t.Fatalf("expected Ready, got %v", got)
	}
	if w.Remaining() != 4 {
		t.Errorf("expected 4 polls of budget left, got %d", w.Remaining())
	}
}

func TestWaiterIgnoresOtherSlots(t *testing.T) {
	w := NewWaiter(2)
	if got := w.Step(slotMask(0)|slotMask(2), slotMask(1)); got != NotYet {
		t.Errorf("expected NotYet for an unrelated bit, got %v", got)
	}
}
