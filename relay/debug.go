package relay

// DebugWriter receives one line of debug output
type DebugWriter func(string)

var (
	debugPrintln DebugWriter = func(string) {}
	debugEnabled bool
)

// SetDebugWriter routes debug output to the platform console (UART, semihosting, ...)
func SetDebugWriter(w DebugWriter) {
	if w == nil {
		w = func(string) {}
	}
	debugPrintln = w
}

// SetDebugEnabled turns debug output on or off; it is off by default
func SetDebugEnabled(enabled bool) {
	debugEnabled = enabled
}

// DebugPrintln writes a line when debug output is enabled
func DebugPrintln(s string) {
	if debugEnabled {
		debugPrintln(s)
	}
}

// Event kinds recorded in the post-mortem ring
const (
	EvtSend    = 1
	EvtReceive = 2
	EvtTimeout = 3
	EvtReject  = 4 // refused before touching the mailbox
	EvtLinkErr = 5 // malformed command arguments
)

// Event is one mailbox exchange as seen by the relay
type Event struct {
	Kind   uint8
	Cmd    uint16
	Status uint8
	Words  uint8
	Header uint32
}

// EventRingSize is how many recent exchanges are kept
const EventRingSize = 32

// eventRing keeps the most recent events; it never blocks or allocates
type eventRing struct {
	events [EventRingSize]Event
	head   uint8
	count  uint8
}

func (r *eventRing) record(e Event) {
	r.events[r.head] = e
	r.head = (r.head + 1) % EventRingSize
	if r.count < EventRingSize {
		r.count++
	}
}

// snapshot returns events oldest first
func (r *eventRing) snapshot() []Event {
	out := make([]Event, 0, r.count)
	start := (int(r.head) + EventRingSize - int(r.count)) % EventRingSize
	for i := 0; i < int(r.count); i++ {
		out = append(out, r.events[(start+i)%EventRingSize])
	}
	return out
}
