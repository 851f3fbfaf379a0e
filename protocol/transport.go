package protocol

// CommandHandler handles one decoded command; it consumes its own arguments from args
type CommandHandler func(cmdID uint16, args *[]byte) error

// Transport is the device end of the link.
// It validates frames, acknowledges each one and hands commands to the handler.
// Responses are framed into the output buffer for the platform to flush.
//
// Not safe for concurrent use; the firmware main loop owns it.
type Transport struct {
	deframer
	nextSeq uint8

	output        OutputBuffer
	handler       CommandHandler
	resetCallback func()
	flushCallback func()
}

// NewTransport creates a device transport writing frames to output
func NewTransport(output OutputBuffer, handler CommandHandler) *Transport {
	return &Transport{
		nextSeq: MessageDest,
		output:  output,
		handler: handler,
	}
}

// Receive consumes every complete frame in input
func (t *Transport) Receive(input InputBuffer) {
	data := input.Data()
	pos := 0
	for {
		f, n, ok := t.next(data[pos:])
		pos += n
		if t.resynced {
			t.resynced = false
			t.encodeAck()
		}
		if !ok {
			break
		}
		t.handleFrame(f)
	}
	input.Pop(pos)
}

func (t *Transport) handleFrame(f Frame) {
	if f.Sequence == MessageDest && t.nextSeq != MessageDest {
		// host restarted its sequence
		t.nextSeq = MessageDest
		if t.resetCallback != nil {
			t.resetCallback()
		}
	}
	if f.Sequence == t.nextSeq {
		t.nextSeq = nextSequence(f.Sequence)
		_ = t.dispatch(f.Payload)
	}
	// an ack carrying the old sequence doubles as a nak
	t.encodeAck()
}

// dispatch runs every command packed in one frame
func (t *Transport) dispatch(payload []byte) error {
	defer func() {
		if r := recover(); r != nil {
			t.lost = true
		}
	}()
	for len(payload) > 0 {
		cmdID, err := DecodeVLQUint(&payload)
		if err != nil {
			t.lost = true
			return err
		}
		if t.handler == nil {
			continue
		}
		if err := t.handler(uint16(cmdID), &payload); err != nil {
			return err
		}
	}
	return nil
}

func (t *Transport) encodeAck() {
	var frame [MessageLengthMin]byte
	out, _ := AppendFrame(frame[:0], t.nextSeq, nil)
	t.output.Output(out)
	if t.flushCallback != nil {
		t.flushCallback()
	}
}

// EncodeFrame frames whatever body writes to the output buffer
func (t *Transport) EncodeFrame(body func(output OutputBuffer)) {
	cursor := t.output.CurPosition()
	t.output.Output([]byte{0, t.nextSeq})
	body(t.output)

	n := len(t.output.DataSince(cursor)) + MessageTrailerSize
	t.output.Update(cursor+MessagePositionLen, uint8(n))

	var trailer [MessageTrailerSize]byte
	out := appendCRC16(trailer[:0], CRC16(t.output.DataSince(cursor)))
	t.output.Output(append(out, MessageValueSync))
}

// SendCommand frames one response message
func (t *Transport) SendCommand(cmdID uint16, args func(output OutputBuffer)) {
	t.EncodeFrame(func(output OutputBuffer) {
		EncodeVLQUint(output, uint32(cmdID))
		if args != nil {
			args(output)
		}
	})
}

// Reset returns the transport to its power-on state
func (t *Transport) Reset() {
	t.lost = false
	t.resynced = false
	t.nextSeq = MessageDest
	if t.resetCallback != nil {
		t.resetCallback()
	}
}

// SetResetCallback installs a hook run when the host restarts its sequence
func (t *Transport) SetResetCallback(fn func()) {
	t.resetCallback = fn
}

// SetFlushCallback installs a hook run after every ack so it leaves immediately
func (t *Transport) SetFlushCallback(fn func()) {
	t.flushCallback = fn
}

// NextSequence returns the sequence the transport expects next
func (t *Transport) NextSequence() uint8 {
	return t.nextSeq
}
