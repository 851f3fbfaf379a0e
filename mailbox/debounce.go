package mailbox

// ReadRetries bounds how many extra reads absorb the receive status trailing edge.
// RSR can stay asserted briefly after RR has been read; re-sampling until it clears
// yields the final value. Do not remove.
const ReadRetries = 5

// waitTx spins until TR[slot] is free, then writes the word
func (m *Mailbox) waitTx(slot int, word uint32) {
	mask := slotMask(slot)
	w := NewWaiter(Unbounded)
	for w.Step(m.regs.TxStatus(), mask) != Ready {
		m.idle()
	}
	m.regs.WriteTx(slot, word)
}

// waitRx waits for RR[slot] under the waiter's budget and reads it with glitch retry.
// On TimedOut the data register has not been touched.
func (m *Mailbox) waitRx(slot int, w *Waiter) (uint32, PollOutcome) {
	mask := slotMask(slot)
	for {
		switch w.Step(m.regs.RxStatus(), mask) {
		case Ready:
			return m.readRx(slot, mask), Ready
		case TimedOut:
			return 0, TimedOut
		}
		m.idle()
	}
}

// readRx performs the first read and the bounded glitch re-reads, keeping the last value
func (m *Mailbox) readRx(slot int, mask uint32) uint32 {
	word := m.regs.ReadRx(slot)
	for retries := ReadRetries; retries > 0 && m.regs.RxStatus()&mask != 0; retries-- {
		word = m.regs.ReadRx(slot)
	}
	return word
}

func (m *Mailbox) idle() {
	if m.idleFunc != nil {
		m.idleFunc()
	}
}
