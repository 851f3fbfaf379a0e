// Package sim runs a simulated relay board in process.
//
// The board is the real relay and link code over a mailboxtest.Loopback, so
// anything sent to the enclave comes back as its response. Words the enclave
// originates on its own can be added with Inject.
package sim

import (
	"net"
	"runtime"

	"github.com/golang/glog"

	"s3mu/host/serial"
	"s3mu/mailbox"
	"s3mu/mailbox/mailboxtest"
	"s3mu/protocol"
	"s3mu/relay"
)

// Board is a simulated relay board
type Board struct {
	Loopback *mailboxtest.Loopback
	Relay    *relay.Relay

	conn net.Conn
	done chan struct{}
}

// New starts a board and returns it with the host end of its link.
// A receive with nothing pending spins until Inject supplies words, as the real
// board would.
func New() (*Board, serial.Port) {
	hostEnd, devEnd := net.Pipe()

	loop := mailboxtest.NewLoopback()
	mb := mailbox.New(loop)
	mb.SetIdleFunc(runtime.Gosched)

	b := &Board{
		Loopback: loop,
		Relay:    relay.New(mb),
		conn:     devEnd,
		done:     make(chan struct{}),
	}
	go b.run()
	return b, serial.Wrap(hostEnd)
}

func (b *Board) run() {
	defer close(b.done)

	output := protocol.NewScratchOutput()
	transport := protocol.NewTransport(output, b.Relay.Handle)
	transport.SetResetCallback(func() {
		glog.V(1).Info("sim: host restarted the link")
	})
	b.Relay.SetResponder(transport)

	input := protocol.NewFifoBuffer(protocol.MessageMax)
	buf := make([]byte, 64)
	for {
		n, err := b.conn.Read(buf)
		if err != nil {
			return
		}
		for data := buf[:n]; len(data) > 0; {
			w := input.Write(data)
			data = data[w:]
			transport.Receive(input)
			if input.Free() == 0 {
				// garbage that never frames; start over
				input.Reset()
			}
		}
		if result := output.Result(); len(result) > 0 {
			if _, err := b.conn.Write(result); err != nil {
				return
			}
			output.Reset()
		}
	}
}

// Inject queues words as if the enclave had sent them
func (b *Board) Inject(words ...uint32) {
	b.Loopback.Inject(words...)
}

// Close stops the board
func (b *Board) Close() error {
	err := b.conn.Close()
	<-b.done
	return err
}
