package mailbox

// Mailbox is the transport bound to one messaging unit instance.
// It keeps no state between calls; every transfer starts at slot 0 and the status
// registers are sampled afresh on every poll.
//
// A Mailbox carries one message at a time. Callers that share it across goroutines
// must serialize every call with their own lock.
type Mailbox struct {
	regs     Registers
	idleFunc func()
}

// New binds a transport to a register block
func New(regs Registers) *Mailbox {
	return &Mailbox{regs: regs}
}

// SetIdleFunc installs a hook run after every unsuccessful status poll.
// Hosts use it to yield; bare-metal targets leave it unset.
func (m *Mailbox) SetIdleFunc(fn func()) {
	m.idleFunc = fn
}

// Init is the lifecycle hook. The messaging unit is configured by boot ROM, so there is
// nothing to do.
func (m *Mailbox) Init() {}

// Send writes a message word by word into the transmit bank.
// It blocks until the enclave has accepted every word.
func (m *Mailbox) Send(words []uint32) error {
	if len(words) == 0 {
		return ErrInvalidArgument
	}
	cur := NewCursor(TxSlotCount)
	for _, w := range words {
		m.waitTx(cur.Next(), w)
	}
	return nil
}
