package mailbox

// Slot maps logical word position i of a transfer onto a bank of n slots.
func Slot(i, n int) int {
	return i % n
}

// Cursor walks a bank of fixed capacity in round-robin order.
// Every transfer starts a fresh cursor at slot 0.
type Cursor struct {
	pos  int
	size int
}

// NewCursor creates a cursor over a bank of size slots
func NewCursor(size int) Cursor {
	return Cursor{size: size}
}

// Next returns the physical slot for the next word and advances
func (c *Cursor) Next() int {
	slot := Slot(c.pos, c.size)
	c.pos = slot + 1
	return slot
}

// Position returns the slot the next call to Next will return
func (c *Cursor) Position() int {
	return Slot(c.pos, c.size)
}
