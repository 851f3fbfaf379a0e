package protocol

// InputBuffer is a window over received link bytes
type InputBuffer interface {
	// Data returns the unconsumed bytes
	Data() []byte

	// Available returns len(Data())
	Available() int

	// Pop consumes n bytes from the front
	Pop(n int)
}

// OutputBuffer accumulates outgoing frames.
// Positions let the framer patch the length byte after the payload is known.
type OutputBuffer interface {
	Output(data []byte)
	CurPosition() int
	Update(pos int, val byte)
	DataSince(pos int) []byte
}

// SliceInputBuffer is an InputBuffer over a byte slice
type SliceInputBuffer struct {
	data []byte
}

// NewSliceInputBuffer wraps data
func NewSliceInputBuffer(data []byte) *SliceInputBuffer {
	return &SliceInputBuffer{data: data}
}

func (s *SliceInputBuffer) Data() []byte   { return s.data }
func (s *SliceInputBuffer) Available() int { return len(s.data) }

func (s *SliceInputBuffer) Pop(n int) {
	if n > len(s.data) {
		n = len(s.data)
	}
	s.data = s.data[n:]
}

// ScratchOutput is an OutputBuffer backed by a fixed array; writes past the end are dropped
type ScratchOutput struct {
	buf [MessageMax]byte
	pos int
}

// NewScratchOutput creates an empty scratch buffer
func NewScratchOutput() *ScratchOutput {
	return &ScratchOutput{}
}

func (s *ScratchOutput) Output(data []byte) {
	s.pos += copy(s.buf[s.pos:], data)
}

func (s *ScratchOutput) CurPosition() int { return s.pos }

func (s *ScratchOutput) Update(pos int, val byte) {
	if pos >= 0 && pos < s.pos {
		s.buf[pos] = val
	}
}

func (s *ScratchOutput) DataSince(pos int) []byte {
	if pos < 0 || pos > s.pos {
		return nil
	}
	return s.buf[pos:s.pos]
}

// Result returns everything written since the last Reset
func (s *ScratchOutput) Result() []byte { return s.buf[:s.pos] }

// Reset discards the contents
func (s *ScratchOutput) Reset() { s.pos = 0 }

// FifoBuffer is a fixed-capacity byte ring for serial input
type FifoBuffer struct {
	buf   []byte
	head  int // index of the oldest byte
	count int
}

// NewFifoBuffer creates a ring holding up to capacity bytes
func NewFifoBuffer(capacity int) *FifoBuffer {
	return &FifoBuffer{buf: make([]byte, capacity)}
}

// Write appends as much of data as fits and returns the number of bytes stored
func (f *FifoBuffer) Write(data []byte) int {
	n := 0
	for _, b := range data {
		if f.count == len(f.buf) {
			break
		}
		f.buf[(f.head+f.count)%len(f.buf)] = b
		f.count++
		n++
	}
	return n
}

// Read moves up to len(p) bytes out of the ring
func (f *FifoBuffer) Read(p []byte) int {
	n := copy(p, f.Data())
	f.Pop(n)
	return n
}

// Available returns the number of stored bytes
func (f *FifoBuffer) Available() int { return f.count }

// Free returns the remaining capacity
func (f *FifoBuffer) Free() int { return len(f.buf) - f.count }

// Data returns the stored bytes oldest first.
// A wrapped ring is rotated in place so the frame parser always sees
// contiguous input; the slice is valid until the next Write or Pop.
func (f *FifoBuffer) Data() []byte {
	if f.head+f.count > len(f.buf) {
		reverse(f.buf[:f.head])
		reverse(f.buf[f.head:])
		reverse(f.buf)
		f.head = 0
	}
	return f.buf[f.head : f.head+f.count]
}

func reverse(b []byte) {
	for i, j := 0, len(b)-1; i < j; i, j = i+1, j-1 {
		b[i], b[j] = b[j], b[i]
	}
}

// Pop discards n bytes from the front
func (f *FifoBuffer) Pop(n int) {
	if n > f.count {
		n = f.count
	}
	if n <= 0 {
		return
	}
	f.head = (f.head + n) % len(f.buf)
	f.count -= n
}

// IsEmpty reports whether nothing is stored
func (f *FifoBuffer) IsEmpty() bool { return f.count == 0 }

// Reset discards the contents
func (f *FifoBuffer) Reset() {
	f.head = 0
	f.count = 0
}
