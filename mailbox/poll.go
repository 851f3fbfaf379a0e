package mailbox

// PollOutcome is the result of one status poll
type PollOutcome uint8

const (
	NotYet   PollOutcome = iota // bit not set, keep polling
	Ready                       // bit set, slot may be accessed
	TimedOut                    // budget exhausted, slot untouched
)

func (o PollOutcome) String() string {
	switch o {
	case Ready:
		return "ready"
	case NotYet:
		return "not-yet"
	case TimedOut:
		return "timed-out"
	}
	return "unknown"
}

// Unbounded is the wait budget meaning "poll until the bit is set"
const Unbounded uint32 = 0

// Waiter carries the iteration budget of one slot wait.
// A zero budget never times out.
type Waiter struct {
	bounded   bool
	remaining uint32
}

// NewWaiter creates a waiter for the given budget
func NewWaiter(budget uint32) Waiter {
	return Waiter{bounded: budget != Unbounded, remaining: budget}
}

// Step evaluates one sample of a status register against the slot mask.
// A bounded waiter spends one unit of budget per unset sample.
// Once TimedOut is reported every later Step reports it again.
func (w *Waiter) Step(status, mask uint32) PollOutcome {
	if w.bounded && w.remaining == 0 {
		return TimedOut
	}
	if status&mask != 0 {
		return Ready
	}
	if !w.bounded {
		return NotYet
	}
	w.remaining--
	if w.remaining == 0 {
		return TimedOut
	}
	return NotYet
}

// Remaining returns the unspent budget (meaningless for unbounded waiters)
func (w *Waiter) Remaining() uint32 {
	return w.remaining
}
