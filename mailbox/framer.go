package mailbox

// Header is the first word of a message.
// Bits 7:0 hold the total word count including the header itself; bits 31:8 are
// carried through untouched.
type Header uint32

const headerSizeMask = 0xFF

// NewHeader builds a header declaring size total words
func NewHeader(size int, opaque uint32) Header {
	return Header(opaque<<8 | uint32(size)&headerSizeMask)
}

// Size returns the declared total word count
func (h Header) Size() int {
	return int(uint32(h) & headerSizeMask)
}

// PayloadSize returns the number of words following the header
func (h Header) PayloadSize() int {
	if h.Size() == 0 {
		return 0
	}
	return h.Size() - 1
}

// Opaque returns bits 31:8 of the header
func (h Header) Opaque() uint32 {
	return uint32(h) >> 8
}

// ReceiveWithHeader reads a header-framed message.
// The header is returned; its payload is stored in buf[:hdr.PayloadSize()].
//
// A header declaring zero words reads nothing further and returns ErrArgumentOutOfRange.
// A payload longer than buf is still drained from the bank so the next transfer starts
// in sync, the overflow words are dropped and ErrArgumentOutOfRange is returned.
func (m *Mailbox) ReceiveWithHeader(buf []uint32) (Header, error) {
	if buf == nil {
		return 0, ErrInvalidArgument
	}
	return m.readMessage(buf)
}

// GetResponse reads a header-framed reply into buf[:size].
// size is the caller's declared capacity and must cover the whole receive bank.
func (m *Mailbox) GetResponse(buf []uint32, size int) (Header, error) {
	if buf == nil {
		return 0, ErrInvalidArgument
	}
	if size < RxSlotCount {
		return 0, ErrArgumentOutOfRange
	}
	if size > len(buf) {
		return 0, ErrInvalidArgument
	}
	return m.readMessage(buf[:size])
}

// ReceiveFixed reads exactly size words into buf without interpreting a header
func (m *Mailbox) ReceiveFixed(buf []uint32, size int) error {
	if err := checkFixed(buf, size); err != nil {
		return err
	}
	return m.readWords(buf[:size], Unbounded)
}

// ReceiveBounded reads exactly size words, giving up on the first word whose wait
// spends the whole budget. On ErrRequestTimeout buf holds only the words read before
// the failing slot. A budget of Unbounded waits forever, like ReceiveFixed.
func (m *Mailbox) ReceiveBounded(buf []uint32, size int, budget uint32) error {
	if err := checkFixed(buf, size); err != nil {
		return err
	}
	return m.readWords(buf[:size], budget)
}

func checkFixed(buf []uint32, size int) error {
	if buf == nil || size < 0 || size > len(buf) {
		return ErrInvalidArgument
	}
	return nil
}

func (m *Mailbox) readMessage(buf []uint32) (Header, error) {
	cur := NewCursor(RxSlotCount)
	w := NewWaiter(Unbounded)

	word, _ := m.waitRx(cur.Next(), &w)
	hdr := Header(word)
	if hdr.Size() == 0 {
		return hdr, ErrArgumentOutOfRange
	}

	var err error
	payload := hdr.PayloadSize()
	if payload > len(buf) {
		err = ErrArgumentOutOfRange
	}
	for i := 0; i < payload; i++ {
		word, _ = m.waitRx(cur.Next(), &w)
		if i < len(buf) {
			buf[i] = word
		}
	}
	return hdr, err
}

// readWords fills buf from slot 0 onwards, each word under a fresh budget
func (m *Mailbox) readWords(buf []uint32, budget uint32) error {
	cur := NewCursor(RxSlotCount)
	for i := range buf {
		w := NewWaiter(budget)
		word, outcome := m.waitRx(cur.Next(), &w)
		if outcome == TimedOut {
			return ErrRequestTimeout
		}
		buf[i] = word
	}
	return nil
}
