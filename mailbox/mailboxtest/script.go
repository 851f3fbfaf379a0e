package mailboxtest

import (
	"sync"

	"s3mu/mailbox"
)

// Word is one scripted receive word.
type Word struct {
	// Values are returned by successive reads of the slot; the last one repeats
	Values []uint32
	// Glitch is how many further reads the status bit stays asserted for after the first
	Glitch int
}

// Value makes a glitch-free scripted word
func Value(v uint32) Word {
	return Word{Values: []uint32{v}}
}

// TxWrite records one transmit slot write
type TxWrite struct {
	Slot int
	Word uint32
}

// Script is a register double driven by per-slot queues of scripted words.
// A slot with an empty queue never reports data.
type Script struct {
	mu sync.Mutex

	rx [mailbox.RxSlotCount]scriptSlot

	txBusy   int
	txPolls  int
	rxPolls  int
	txWrites []TxWrite
}

type scriptSlot struct {
	queue   []Word
	reads   int // reads of the head word
	cleared bool
	total   int // reads of this slot since creation
}

var _ mailbox.Registers = (*Script)(nil)

// NewScript creates a script with every transmit slot free and nothing to receive
func NewScript() *Script {
	return &Script{}
}

// SetTxBusy makes the next n transmit status samples report every slot busy
func (s *Script) SetTxBusy(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.txBusy = n
}

// Queue appends scripted words to one receive slot
func (s *Script) Queue(slot int, words ...Word) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rx[slot].queue = append(s.rx[slot].queue, words...)
}

// QueueMessage spreads words over the receive bank, word i landing in slot i mod RxSlotCount
func (s *Script) QueueMessage(words ...uint32) {
	s.QueueMessageAt(0, words...)
}

// QueueMessageAt is QueueMessage with word 0 landing in slot start
func (s *Script) QueueMessageAt(start int, words ...uint32) {
	for i, w := range words {
		s.Queue(mailbox.Slot(start+i, mailbox.RxSlotCount), Value(w))
	}
}

// TxStatus implements mailbox.Registers
func (s *Script) TxStatus() uint32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.txPolls++
	if s.txBusy > 0 {
		s.txBusy--
		return 0
	}
	return 1<<mailbox.TxSlotCount - 1
}

// WriteTx implements mailbox.Registers
func (s *Script) WriteTx(slot int, word uint32) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.txWrites = append(s.txWrites, TxWrite{Slot: slot, Word: word})
}

// RxStatus implements mailbox.Registers
func (s *Script) RxStatus() uint32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rxPolls++
	var mask uint32
	for i := range s.rx {
		if s.rx[i].asserted() {
			mask |= 1 << uint(i)
		}
	}
	return mask
}

// asserted reports the status bit, retiring a head word once a clear sample has been seen
func (sl *scriptSlot) asserted() bool {
	if len(sl.queue) == 0 {
		return false
	}
	head := sl.queue[0]
	if sl.reads == 0 || sl.reads <= head.Glitch {
		return true
	}
	if !sl.cleared {
		sl.cleared = true
		return false
	}
	sl.queue = sl.queue[1:]
	sl.reads = 0
	sl.cleared = false
	return len(sl.queue) > 0
}

// ReadRx implements mailbox.Registers
func (s *Script) ReadRx(slot int) uint32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	sl := &s.rx[slot]
	sl.total++
	if len(sl.queue) == 0 {
		return 0
	}
	head := sl.queue[0]
	idx := sl.reads
	sl.reads++
	if len(head.Values) == 0 {
		return 0
	}
	if idx >= len(head.Values) {
		idx = len(head.Values) - 1
	}
	return head.Values[idx]
}

// RxPolls returns how many times the receive status register was sampled
func (s *Script) RxPolls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rxPolls
}

// TxPolls returns how many times the transmit status register was sampled
func (s *Script) TxPolls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.txPolls
}

// DataReads returns how many times RR[slot] was read
func (s *Script) DataReads(slot int) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rx[slot].total
}

// TotalDataReads returns the number of receive data register reads over all slots
func (s *Script) TotalDataReads() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.totalLocked()
}

// TxWrites returns the transmit writes in order
func (s *Script) TxWrites() []TxWrite {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]TxWrite, len(s.txWrites))
	copy(out, s.txWrites)
	return out
}

// Touched reports whether any register has been accessed
func (s *Script) Touched() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rxPolls != 0 || s.txPolls != 0 || len(s.txWrites) != 0 || s.totalLocked() != 0
}

func (s *Script) totalLocked() int {
	n := 0
	for i := range s.rx {
		n += s.rx[i].total
	}
	return n
}
