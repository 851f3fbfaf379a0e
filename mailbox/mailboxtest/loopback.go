// Package mailboxtest provides register doubles for the mailbox transport.
package mailboxtest

import (
	"sync"

	"s3mu/mailbox"
)

// Loopback mirrors every transmit slot write into receive slot (slot mod RxSlotCount).
//
// Transmit slots are always free. Words queue per receive slot; once a word has been
// read its status bit clears, and the next queued word for that slot becomes visible
// from the second status sample after the read. The first sample after a read is the
// one the glitch retry takes, so a retry never swallows the next word.
type Loopback struct {
	mu    sync.Mutex
	slots [mailbox.RxSlotCount]loopSlot
	sent  []uint32
}

type loopSlot struct {
	words     []uint32
	consumed  bool
	seenClear bool
}

var _ mailbox.Registers = (*Loopback)(nil)

// NewLoopback creates an empty loopback register block
func NewLoopback() *Loopback {
	return &Loopback{}
}

// TxStatus implements mailbox.Registers
func (l *Loopback) TxStatus() uint32 {
	return 1<<mailbox.TxSlotCount - 1
}

// WriteTx implements mailbox.Registers
func (l *Loopback) WriteTx(slot int, word uint32) {
	l.mu.Lock()
	defer l.mu.Unlock()
	s := &l.slots[mailbox.Slot(slot, mailbox.RxSlotCount)]
	s.words = append(s.words, word)
	l.sent = append(l.sent, word)
}

// RxStatus implements mailbox.Registers
func (l *Loopback) RxStatus() uint32 {
	l.mu.Lock()
	defer l.mu.Unlock()
	var mask uint32
	for i := range l.slots {
		s := &l.slots[i]
		if s.consumed {
			if !s.seenClear {
				s.seenClear = true
				continue
			}
			s.words = s.words[1:]
			s.consumed = false
			s.seenClear = false
		}
		if len(s.words) > 0 {
			mask |= 1 << uint(i)
		}
	}
	return mask
}

// ReadRx implements mailbox.Registers
func (l *Loopback) ReadRx(slot int) uint32 {
	l.mu.Lock()
	defer l.mu.Unlock()
	s := &l.slots[slot]
	if len(s.words) == 0 {
		return 0
	}
	s.consumed = true
	s.seenClear = false
	return s.words[0]
}

// Inject queues words as if the enclave had sent them, word i landing in slot i mod RxSlotCount
func (l *Loopback) Inject(words ...uint32) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for i, w := range words {
		s := &l.slots[mailbox.Slot(i, mailbox.RxSlotCount)]
		s.words = append(s.words, w)
	}
}

// Sent returns every word written to the transmit bank so far
func (l *Loopback) Sent() []uint32 {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]uint32, len(l.sent))
	copy(out, l.sent)
	return out
}

// Pending returns the number of words not yet retired from the receive bank
func (l *Loopback) Pending() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	n := 0
	for i := range l.slots {
		n += len(l.slots[i].words)
		if l.slots[i].consumed {
			n--
		}
	}
	return n
}
