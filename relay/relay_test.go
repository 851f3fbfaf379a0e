package relay_test

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"s3mu/mailbox"
	"s3mu/mailbox/mailboxtest"
	"s3mu/protocol"
	"s3mu/relay"
)

type response struct {
	id   uint16
	args []byte
}

// recorder captures response frames instead of framing them
type recorder struct {
	mu        sync.Mutex
	responses []response
}

func (r *recorder) SendCommand(cmdID uint16, args func(output protocol.OutputBuffer)) {
	out := protocol.NewScratchOutput()
	if args != nil {
		args(out)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.responses = append(r.responses, response{id: cmdID, args: append([]byte(nil), out.Result()...)})
}

func (r *recorder) last(t *testing.T) response {
	t.Helper()
	r.mu.Lock()
	defer r.mu.Unlock()
	require.NotEmpty(t, r.responses)
	return r.responses[len(r.responses)-1]
}

func encode(body func(output protocol.OutputBuffer)) []byte {
	out := protocol.NewScratchOutput()
	body(out)
	return append([]byte(nil), out.Result()...)
}

func wordsArgs(words ...uint32) []byte {
	return encode(func(output protocol.OutputBuffer) { protocol.EncodeWords(output, words) })
}

func uintArgs(vals ...uint32) []byte {
	return encode(func(output protocol.OutputBuffer) {
		for _, v := range vals {
			protocol.EncodeVLQUint(output, v)
		}
	})
}

func newRelay(regs mailbox.Registers) (*relay.Relay, *recorder) {
	r := relay.New(mailbox.New(regs))
	rec := &recorder{}
	r.SetResponder(rec)
	return r, rec
}

func call(t *testing.T, r *relay.Relay, cmd uint16, args []byte) {
	t.Helper()
	require.NoError(t, r.Handle(cmd, &args))
	assert.Empty(t, args, "arguments left unconsumed")
}

func status(t *testing.T, resp response) mailbox.Status {
	t.Helper()
	require.Equal(t, protocol.RespStatus, resp.id)
	data := resp.args
	v, err := protocol.DecodeVLQUint(&data)
	require.NoError(t, err)
	return mailbox.Status(v)
}

func words(t *testing.T, resp response) protocol.WordsReply {
	t.Helper()
	require.Equal(t, protocol.RespWords, resp.id)
	data := resp.args
	reply, err := protocol.DecodeWordsReply(&data)
	require.NoError(t, err)
	return reply
}

func TestIdentify(t *testing.T) {
	r, rec := newRelay(mailboxtest.NewScript())
	call(t, r, protocol.CmdIdentify, nil)

	resp := rec.last(t)
	require.Equal(t, protocol.RespIdentify, resp.id)
	data := resp.args
	id, err := protocol.DecodeIdentity(&data)
	require.NoError(t, err)
	assert.Equal(t, protocol.Identity{
		Version:  protocol.Version,
		TxSlots:  mailbox.TxSlotCount,
		RxSlots:  mailbox.RxSlotCount,
		MaxWords: protocol.MaxWords,
	}, id)
}

func TestSendThenGetResponse(t *testing.T) {
	loop := mailboxtest.NewLoopback()
	r, rec := newRelay(loop)

	hdr := mailbox.NewHeader(3, 0xAB12)
	call(t, r, protocol.CmdSend, wordsArgs(uint32(hdr), 7, 9))
	assert.Equal(t, mailbox.StatusSuccess, status(t, rec.last(t)))
	assert.Equal(t, []uint32{uint32(hdr), 7, 9}, loop.Sent())

	call(t, r, protocol.CmdGetResponse, uintArgs(mailbox.RxSlotCount))
	reply := words(t, rec.last(t))
	assert.Equal(t, uint8(mailbox.StatusSuccess), reply.Status)
	assert.Equal(t, uint32(hdr), reply.Header)
	assert.Equal(t, []uint32{7, 9}, reply.Words)

	events := r.Events()
	require.Len(t, events, 2)
	assert.Equal(t, uint8(relay.EvtSend), events[0].Kind)
	assert.Equal(t, uint8(3), events[0].Words)
	assert.Equal(t, uint8(relay.EvtReceive), events[1].Kind)
	assert.Equal(t, uint32(hdr), events[1].Header)
}

func TestSendEmptyIsInvalid(t *testing.T) {
	loop := mailboxtest.NewLoopback()
	r, rec := newRelay(loop)

	call(t, r, protocol.CmdSend, wordsArgs())
	assert.Equal(t, mailbox.StatusInvalidArgument, status(t, rec.last(t)))
	assert.Empty(t, loop.Sent())
}

func TestOversizedRequestsRejected(t *testing.T) {
	tooMany := make([]uint32, protocol.MaxWords+1)

	tests := []struct {
		name  string
		cmd   uint16
		args  []byte
		words bool
	}{
		{"send", protocol.CmdSend, wordsArgs(tooMany...), false},
		{"checksum", protocol.CmdChecksum, wordsArgs(tooMany...), false},
		{"get_response", protocol.CmdGetResponse, uintArgs(protocol.MaxWords + 1), true},
		{"receive_fixed", protocol.CmdReceiveFixed, uintArgs(protocol.MaxWords + 1), true},
		{"wait_for_data", protocol.CmdWaitForData, uintArgs(protocol.MaxWords+1, 10), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			script := mailboxtest.NewScript()
			r, rec := newRelay(script)

			call(t, r, tt.cmd, tt.args)
			if tt.words {
				reply := words(t, rec.last(t))
				assert.Equal(t, uint8(mailbox.StatusOutOfRange), reply.Status)
				assert.Empty(t, reply.Words)
			} else {
				assert.Equal(t, mailbox.StatusOutOfRange, status(t, rec.last(t)))
			}
			assert.False(t, script.Touched())

			events := r.Events()
			require.Len(t, events, 1)
			assert.Equal(t, uint8(relay.EvtReject), events[0].Kind)
		})
	}
}

func TestGetResponseBelowBankSize(t *testing.T) {
	script := mailboxtest.NewScript()
	r, rec := newRelay(script)

	call(t, r, protocol.CmdGetResponse, uintArgs(mailbox.RxSlotCount-1))
	reply := words(t, rec.last(t))
	assert.Equal(t, uint8(mailbox.StatusOutOfRange), reply.Status)
	assert.False(t, script.Touched())
}

func TestGetResponseOverflowReturnsWhatFits(t *testing.T) {
	script := mailboxtest.NewScript()
	hdr := mailbox.NewHeader(7, 0)
	script.QueueMessage(uint32(hdr), 1, 2, 3, 4, 5, 6)
	r, rec := newRelay(script)

	call(t, r, protocol.CmdGetResponse, uintArgs(4))
	reply := words(t, rec.last(t))
	assert.Equal(t, uint8(mailbox.StatusOutOfRange), reply.Status)
	assert.Equal(t, uint32(hdr), reply.Header)
	assert.Equal(t, []uint32{1, 2, 3, 4}, reply.Words)
	assert.Equal(t, 7, script.TotalDataReads())
}

func TestReceiveFixed(t *testing.T) {
	script := mailboxtest.NewScript()
	script.QueueMessage(0xA, 0xB, 0xC, 0xD, 0xE)
	r, rec := newRelay(script)

	call(t, r, protocol.CmdReceiveFixed, uintArgs(5))
	reply := words(t, rec.last(t))
	assert.Equal(t, uint8(mailbox.StatusSuccess), reply.Status)
	assert.Equal(t, []uint32{0xA, 0xB, 0xC, 0xD, 0xE}, reply.Words)
}

func TestWaitForDataTimeout(t *testing.T) {
	script := mailboxtest.NewScript()
	script.Queue(0, mailboxtest.Value(0x55))
	r, rec := newRelay(script)

	call(t, r, protocol.CmdWaitForData, uintArgs(3, 6))
	reply := words(t, rec.last(t))
	assert.Equal(t, uint8(mailbox.StatusTimeout), reply.Status)
	require.Len(t, reply.Words, 3)
	assert.Equal(t, uint32(0x55), reply.Words[0])
	assert.Equal(t, []uint32{0, 0}, reply.Words[1:])

	events := r.Events()
	require.Len(t, events, 1)
	assert.Equal(t, uint8(relay.EvtTimeout), events[0].Kind)
	assert.Equal(t, uint8(mailbox.StatusTimeout), events[0].Status)
}

func TestWaitForDataSuccess(t *testing.T) {
	script := mailboxtest.NewScript()
	script.QueueMessage(1, 2)
	r, rec := newRelay(script)

	call(t, r, protocol.CmdWaitForData, uintArgs(2, 100))
	reply := words(t, rec.last(t))
	assert.Equal(t, uint8(mailbox.StatusSuccess), reply.Status)
	assert.Equal(t, []uint32{1, 2}, reply.Words)
}

func TestChecksum(t *testing.T) {
	r, rec := newRelay(mailboxtest.NewScript())
	call(t, r, protocol.CmdChecksum, wordsArgs(0xF0F0F0F0, 0x0F0F0F0F, 0x12345678))

	resp := rec.last(t)
	require.Equal(t, protocol.RespChecksum, resp.id)
	data := resp.args
	sum, err := protocol.DecodeVLQUint(&data)
	require.NoError(t, err)
	assert.Equal(t, uint32(0xFFFFFFFF^0x12345678), sum)
}

func TestTruncatedArguments(t *testing.T) {
	r, rec := newRelay(mailboxtest.NewScript())

	args := uintArgs(3) // budget missing
	assert.Error(t, r.Handle(protocol.CmdWaitForData, &args))
	reply := words(t, rec.last(t))
	assert.Equal(t, uint8(mailbox.StatusInvalidArgument), reply.Status)
	assert.Empty(t, reply.Words)

	args = []byte{0x80} // unterminated count
	assert.Error(t, r.Handle(protocol.CmdSend, &args))
	assert.Equal(t, mailbox.StatusInvalidArgument, status(t, rec.last(t)))

	events := r.Events()
	require.Len(t, events, 2)
	assert.Equal(t, uint8(relay.EvtLinkErr), events[0].Kind)
	assert.Equal(t, uint8(mailbox.StatusInvalidArgument), events[0].Status)
}

func TestUnknownCommand(t *testing.T) {
	r, _ := newRelay(mailboxtest.NewScript())
	var args []byte
	assert.Error(t, r.Handle(99, &args))
}

func TestWithMailboxSerializes(t *testing.T) {
	loop := mailboxtest.NewLoopback()
	r, _ := newRelay(loop)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(v uint32) {
			defer wg.Done()
			err := r.WithMailbox(func(mb *mailbox.Mailbox) error {
				if err := mb.Send([]uint32{v, v}); err != nil {
					return err
				}
				var buf [2]uint32
				if err := mb.ReceiveFixed(buf[:], 2); err != nil {
					return err
				}
				assert.Equal(t, [2]uint32{v, v}, buf)
				return nil
			})
			assert.NoError(t, err)
		}(uint32(i + 1))
	}
	wg.Wait()
	assert.Len(t, loop.Sent(), 16)
}

func TestThroughTransport(t *testing.T) {
	loop := mailboxtest.NewLoopback()
	r := relay.New(mailbox.New(loop))
	out := protocol.NewScratchOutput()
	tr := protocol.NewTransport(out, r.Handle)
	r.SetResponder(tr)

	payload := encode(func(output protocol.OutputBuffer) {
		protocol.EncodeVLQUint(output, uint32(protocol.CmdChecksum))
		protocol.EncodeWords(output, []uint32{1, 2})
	})
	frame, err := protocol.AppendFrame(nil, protocol.MessageDest, payload)
	require.NoError(t, err)

	tr.Receive(protocol.NewSliceInputBuffer(frame))

	// response frame followed by the ack
	result := out.Result()
	require.NotEmpty(t, result)
	assert.Equal(t, byte(protocol.MessageValueSync), result[len(result)-1])
	assert.Equal(t, uint8(protocol.MessageDest|1), tr.NextSequence())
}
