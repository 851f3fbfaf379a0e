package protocol

import (
	"errors"
	"fmt"
	"io"
	"sync"
	"time"
)

var (
	ErrTransportClosed = errors.New("protocol: transport closed")
	ErrNak             = errors.New("protocol: frame rejected")
	ErrBusy            = errors.New("protocol: previous command still unacknowledged")
)

// HostTransport is the host end of the link.
// It frames commands, waits for the matching ack and queues responses.
type HostTransport struct {
	port io.ReadWriteCloser

	mu  sync.Mutex // guards seq and the write path
	seq uint8

	// unacked is set when a command timed out waiting for its ack. The board
	// may still run it and advance, so the next command resyncs first.
	unacked bool
	// tolerant ignores one late duplicate of the resync ack
	tolerant bool

	deframer deframer
	input    *FifoBuffer

	ackChan      chan Frame
	responseChan chan Frame

	stopOnce sync.Once
	stopChan chan struct{}
	doneChan chan struct{}
}

// NewHostTransport starts reading frames from port
func NewHostTransport(port io.ReadWriteCloser) *HostTransport {
	t := &HostTransport{
		port:         port,
		seq:          MessageDest,
		input:        NewFifoBuffer(MessageMax),
		ackChan:      make(chan Frame, 1),
		responseChan: make(chan Frame, 16),
		stopChan:     make(chan struct{}),
		doneChan:     make(chan struct{}),
	}
	go t.readLoop()
	return t
}

// SendCommand sends one command and waits for its ack
func (t *HostTransport) SendCommand(cmdID uint16, args func(output OutputBuffer), timeout time.Duration) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.unacked {
		if err := t.resync(timeout); err != nil {
			return err
		}
	}

	scratch := NewScratchOutput()
	EncodeVLQUint(scratch, uint32(cmdID))
	if args != nil {
		args(scratch)
	}
	if err := t.write(scratch.Result()); err != nil {
		return err
	}
	return t.waitForAck(timeout)
}

// resync sends an empty frame at the unacked sequence. The board acks it with
// the sequence after it whether or not it ran the earlier command, and never
// dispatches it twice. Must be called with mu held.
func (t *HostTransport) resync(timeout time.Duration) error {
	t.Drain()
	if err := t.write(nil); err != nil {
		return err
	}
	want := nextSequence(t.seq)
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	for {
		select {
		case ack := <-t.ackChan:
			if ack.Sequence == want {
				t.seq = want
				t.unacked = false
				t.tolerant = true
				return nil
			}
		case <-timer.C:
			return fmt.Errorf("%w: resync timeout after %v", ErrBusy, timeout)
		case <-t.stopChan:
			return ErrTransportClosed
		}
	}
}

// write must be called with mu held
func (t *HostTransport) write(payload []byte) error {
	msg, err := AppendFrame(nil, t.seq, payload)
	if err != nil {
		return err
	}
	n, err := t.port.Write(msg)
	if err != nil {
		return fmt.Errorf("write frame: %w", err)
	}
	if n != len(msg) {
		return fmt.Errorf("incomplete write: %d/%d bytes", n, len(msg))
	}
	return nil
}

// waitForAck must be called with mu held
func (t *HostTransport) waitForAck(timeout time.Duration) error {
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	for {
		select {
		case ack := <-t.ackChan:
			switch {
			case ack.Sequence == nextSequence(t.seq):
				t.seq = ack.Sequence
				t.tolerant = false
				return nil
			case ack.Sequence == t.seq && !t.tolerant:
				return ErrNak
			}
			// stale ack from an earlier exchange
		case <-timer.C:
			t.unacked = true
			t.tolerant = false
			return fmt.Errorf("ack timeout after %v", timeout)
		case <-t.stopChan:
			return ErrTransportClosed
		}
	}
}

// ReceiveResponse returns the response to the last acked command.
// A response frame carries the same sequence as its ack, so late answers to
// earlier commands are dropped.
func (t *HostTransport) ReceiveResponse(timeout time.Duration) (Frame, error) {
	t.mu.Lock()
	want := t.seq
	t.mu.Unlock()

	timer := time.NewTimer(timeout)
	defer timer.Stop()
	for {
		select {
		case resp := <-t.responseChan:
			if resp.Sequence == want {
				return resp, nil
			}
		case <-timer.C:
			return Frame{}, fmt.Errorf("response timeout after %v", timeout)
		case <-t.stopChan:
			return Frame{}, ErrTransportClosed
		}
	}
}

func (t *HostTransport) readLoop() {
	defer close(t.doneChan)

	buf := make([]byte, 256)
	for {
		n, err := t.port.Read(buf)
		if n > 0 {
			t.input.Write(buf[:n])
			t.processFrames()
		}
		if err != nil {
			select {
			case <-t.stopChan:
				return
			default:
			}
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrClosedPipe) {
				return
			}
			time.Sleep(10 * time.Millisecond)
		}
	}
}

func (t *HostTransport) processFrames() {
	data := t.input.Data()
	pos := 0
	for {
		f, n, ok := t.deframer.next(data[pos:])
		pos += n
		if !ok {
			break
		}
		payload := make([]byte, len(f.Payload))
		copy(payload, f.Payload)
		t.dispatch(Frame{Sequence: f.Sequence, Payload: payload})
	}
	t.deframer.resynced = false
	t.input.Pop(pos)
}

func (t *HostTransport) dispatch(f Frame) {
	if len(f.Payload) == 0 {
		select {
		case t.ackChan <- f:
		default:
			// replace an ack nobody collected
			select {
			case <-t.ackChan:
			default:
			}
			t.ackChan <- f
		}
		return
	}
	select {
	case t.responseChan <- f:
	default:
		select {
		case <-t.responseChan:
		default:
		}
		t.responseChan <- f
	}
}

// Drain discards queued acks and responses, typically after a timed out exchange
func (t *HostTransport) Drain() {
	for {
		select {
		case <-t.ackChan:
		case <-t.responseChan:
		default:
			return
		}
	}
}

// Close stops the reader and closes the port
func (t *HostTransport) Close() error {
	var err error
	t.stopOnce.Do(func() {
		close(t.stopChan)
		if t.port != nil {
			err = t.port.Close()
		}
		<-t.doneChan
	})
	return err
}

// Sequence returns the sequence the next command will carry
func (t *HostTransport) Sequence() uint8 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.seq
}
