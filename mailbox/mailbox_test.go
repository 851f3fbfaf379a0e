package mailbox_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"s3mu/mailbox"
	"s3mu/mailbox/mailboxtest"
)

func TestSendReceiveFixedLoopback(t *testing.T) {
	for _, n := range []int{1, 3, mailbox.RxSlotCount, 6, mailbox.TxSlotCount, 13} {
		regs := mailboxtest.NewLoopback()
		mb := mailbox.New(regs)

		words := make([]uint32, n)
		for i := range words {
			words[i] = 0xC0DE0000 | uint32(i)
		}
		require.NoError(t, mb.Send(words))

		buf := make([]uint32, n)
		require.NoError(t, mb.ReceiveFixed(buf, n))
		assert.Equal(t, words, buf, "length %d", n)
		assert.Zero(t, regs.Pending(), "length %d", n)
	}
}

func TestInitBeforeUse(t *testing.T) {
	regs := mailboxtest.NewScript()
	mb := mailbox.New(regs)
	mb.Init()
	assert.False(t, regs.Touched())

	regs.QueueMessage(uint32(mailbox.NewHeader(2, 0)), 0x55)
	buf := make([]uint32, mailbox.RxSlotCount)
	hdr, err := mb.GetResponse(buf, mailbox.RxSlotCount)
	require.NoError(t, err)
	assert.Equal(t, 2, hdr.Size())
	assert.Equal(t, uint32(0x55), buf[0])
}

func TestSendRejectsEmpty(t *testing.T) {
	regs := mailboxtest.NewScript()
	mb := mailbox.New(regs)

	assert.ErrorIs(t, mb.Send(nil), mailbox.ErrInvalidArgument)
	assert.ErrorIs(t, mb.Send([]uint32{}), mailbox.ErrInvalidArgument)
	assert.False(t, regs.Touched())
}

func TestSendCyclesTransmitBank(t *testing.T) {
	regs := mailboxtest.NewScript()
	regs.SetTxBusy(3)
	mb := mailbox.New(regs)

	words := make([]uint32, 10)
	for i := range words {
		words[i] = uint32(100 + i)
	}
	require.NoError(t, mb.Send(words))

	writes := regs.TxWrites()
	require.Len(t, writes, len(words))
	for i, w := range writes {
		assert.Equal(t, i%mailbox.TxSlotCount, w.Slot)
		assert.Equal(t, words[i], w.Word)
	}
	assert.Equal(t, len(words)+3, regs.TxPolls())
}

func TestReceiveWithHeaderWraps(t *testing.T) {
	regs := mailboxtest.NewScript()
	mb := mailbox.New(regs)

	payload := []uint32{0x11, 0x22, 0x33, 0x44, 0x55, 0x66}
	hdr := mailbox.NewHeader(len(payload)+1, 0x17E502)
	regs.QueueMessage(append([]uint32{uint32(hdr)}, payload...)...)

	buf := make([]uint32, len(payload))
	got, err := mb.ReceiveWithHeader(buf)
	require.NoError(t, err)
	assert.Equal(t, 7, got.Size())
	assert.Equal(t, uint32(0x17E502), got.Opaque())
	assert.Equal(t, payload, buf)

	// header in slot 0, payload in 1,2,3,0,1,2
	assert.Equal(t, 2, regs.DataReads(0))
	assert.Equal(t, 2, regs.DataReads(1))
	assert.Equal(t, 2, regs.DataReads(2))
	assert.Equal(t, 1, regs.DataReads(3))
}

func TestReceiveWithHeaderNil(t *testing.T) {
	regs := mailboxtest.NewScript()
	_, err := mailbox.New(regs).ReceiveWithHeader(nil)
	assert.ErrorIs(t, err, mailbox.ErrInvalidArgument)
	assert.False(t, regs.Touched())
}

func TestReceiveWithHeaderOverflowDrains(t *testing.T) {
	regs := mailboxtest.NewScript()
	mb := mailbox.New(regs)

	hdr := mailbox.NewHeader(4, 0)
	regs.QueueMessage(uint32(hdr), 1, 2, 3)

	buf := make([]uint32, 1)
	got, err := mb.ReceiveWithHeader(buf)
	assert.ErrorIs(t, err, mailbox.ErrArgumentOutOfRange)
	assert.Equal(t, 4, got.Size())
	assert.Equal(t, []uint32{1}, buf)
	assert.Equal(t, 4, regs.TotalDataReads())
}

func TestReceiveWithHeaderZeroSize(t *testing.T) {
	regs := mailboxtest.NewScript()
	regs.QueueMessage(uint32(mailbox.NewHeader(0, 0xAB)), 9)

	got, err := mailbox.New(regs).ReceiveWithHeader(make([]uint32, 4))
	assert.ErrorIs(t, err, mailbox.ErrArgumentOutOfRange)
	assert.Equal(t, 0, got.Size())
	assert.Equal(t, 1, regs.TotalDataReads())
}

func TestGetResponse(t *testing.T) {
	regs := mailboxtest.NewScript()
	mb := mailbox.New(regs)

	regs.QueueMessage(uint32(mailbox.NewHeader(3, 0x06)), 0xAAAA, 0xBBBB)
	buf := make([]uint32, mailbox.RxSlotCount)
	hdr, err := mb.GetResponse(buf, len(buf))
	require.NoError(t, err)
	assert.Equal(t, 3, hdr.Size())
	assert.Equal(t, []uint32{0xAAAA, 0xBBBB}, buf[:hdr.PayloadSize()])
}

func TestGetResponseRejectsSmallSize(t *testing.T) {
	regs := mailboxtest.NewScript()
	regs.QueueMessage(uint32(mailbox.NewHeader(2, 0)), 1)
	mb := mailbox.New(regs)

	buf := make([]uint32, mailbox.RxSlotCount)
	for size := 0; size < mailbox.RxSlotCount; size++ {
		_, err := mb.GetResponse(buf, size)
		assert.ErrorIs(t, err, mailbox.ErrArgumentOutOfRange, "size %d", size)
	}
	assert.False(t, regs.Touched())

	_, err := mb.GetResponse(nil, mailbox.RxSlotCount)
	assert.ErrorIs(t, err, mailbox.ErrInvalidArgument)
	_, err = mb.GetResponse(buf, mailbox.RxSlotCount+1)
	assert.ErrorIs(t, err, mailbox.ErrInvalidArgument)
	assert.False(t, regs.Touched())
}

func TestReceiveFixedArguments(t *testing.T) {
	regs := mailboxtest.NewScript()
	mb := mailbox.New(regs)

	assert.ErrorIs(t, mb.ReceiveFixed(nil, 1), mailbox.ErrInvalidArgument)
	assert.ErrorIs(t, mb.ReceiveFixed(make([]uint32, 2), 3), mailbox.ErrInvalidArgument)
	assert.ErrorIs(t, mb.ReceiveFixed(make([]uint32, 2), -1), mailbox.ErrInvalidArgument)
	assert.ErrorIs(t, mb.ReceiveBounded(nil, 1, 10), mailbox.ErrInvalidArgument)
	assert.False(t, regs.Touched())

	assert.NoError(t, mb.ReceiveFixed(make([]uint32, 2), 0))
	assert.False(t, regs.Touched())
}

func TestReceiveBoundedTimeout(t *testing.T) {
	for _, budget := range []uint32{1, 7, 250} {
		regs := mailboxtest.NewScript()
		mb := mailbox.New(regs)

		err := mb.ReceiveBounded(make([]uint32, 2), 2, budget)
		assert.ErrorIs(t, err, mailbox.ErrRequestTimeout)
		assert.Equal(t, int(budget), regs.RxPolls(), "budget %d", budget)
		assert.Zero(t, regs.TotalDataReads(), "budget %d", budget)
	}
}

func TestReceiveBoundedPartial(t *testing.T) {
	regs := mailboxtest.NewScript()
	mb := mailbox.New(regs)
	regs.QueueMessage(0x1, 0x2)

	buf := []uint32{0xFF, 0xFF, 0xFF}
	err := mb.ReceiveBounded(buf, 3, 20)
	assert.ErrorIs(t, err, mailbox.ErrRequestTimeout)
	assert.Equal(t, []uint32{0x1, 0x2}, buf[:2])
	assert.Zero(t, regs.DataReads(2))
}

func TestReceiveBoundedSuccess(t *testing.T) {
	regs := mailboxtest.NewScript()
	mb := mailbox.New(regs)
	words := []uint32{5, 6, 7, 8, 9}
	regs.QueueMessage(words...)

	buf := make([]uint32, len(words))
	require.NoError(t, mb.ReceiveBounded(buf, len(words), 3))
	assert.Equal(t, words, buf)
}

func TestGlitchRetry(t *testing.T) {
	values := []uint32{0xA0, 0xA1, 0xA2, 0xA3, 0xA4, 0xA5, 0xA6, 0xA7, 0xA8}
	for r := 0; r <= 8; r++ {
		regs := mailboxtest.NewScript()
		regs.Queue(0, mailboxtest.Word{Values: values, Glitch: r})
		mb := mailbox.New(regs)

		buf := make([]uint32, 1)
		require.NoError(t, mb.ReceiveFixed(buf, 1))

		reads := r
		if reads > mailbox.ReadRetries {
			reads = mailbox.ReadRetries
		}
		reads++
		assert.Equal(t, reads, regs.DataReads(0), "glitch %d", r)
		assert.Equal(t, values[reads-1], buf[0], "glitch %d", r)
	}
}

func TestGlitchRetryDoesNotSwallowNextWord(t *testing.T) {
	regs := mailboxtest.NewScript()
	regs.Queue(0, mailboxtest.Word{Values: []uint32{0x10, 0x11}, Glitch: 1}, mailboxtest.Value(0x50))
	regs.Queue(1, mailboxtest.Value(0x20))
	regs.Queue(2, mailboxtest.Value(0x30))
	regs.Queue(3, mailboxtest.Value(0x40))
	mb := mailbox.New(regs)

	buf := make([]uint32, 5)
	require.NoError(t, mb.ReceiveFixed(buf, 5))
	assert.Equal(t, []uint32{0x11, 0x20, 0x30, 0x40, 0x50}, buf)
}

func TestIdleFuncRunsOnMisses(t *testing.T) {
	regs := mailboxtest.NewScript()
	mb := mailbox.New(regs)
	idles := 0
	mb.SetIdleFunc(func() { idles++ })

	assert.ErrorIs(t, mb.ReceiveBounded(make([]uint32, 1), 1, 4), mailbox.ErrRequestTimeout)
	assert.Equal(t, 3, idles)
}

func TestStatusRoundTrip(t *testing.T) {
	for _, err := range []error{nil, mailbox.ErrInvalidArgument, mailbox.ErrArgumentOutOfRange, mailbox.ErrRequestTimeout} {
		assert.Equal(t, err, mailbox.StatusOf(err).Err())
	}
	assert.Equal(t, mailbox.StatusFail, mailbox.StatusOf(assert.AnError))
	assert.Error(t, mailbox.StatusFail.Err())
}
