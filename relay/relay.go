// Package relay exposes a mailbox to a host over the framed serial link.
//
// Every handler decodes its arguments, runs one mailbox operation under the
// relay's lock and answers with a single response frame. Requests larger than
// protocol.MaxWords are refused before the mailbox is touched.
package relay

import (
	"sync"

	"s3mu/mailbox"
	"s3mu/protocol"
)

// Responder sends one response frame to the host.
// *protocol.Transport implements it.
type Responder interface {
	SendCommand(cmdID uint16, args func(output protocol.OutputBuffer))
}

// Relay serializes host requests onto one mailbox
type Relay struct {
	mu       sync.Mutex // held for the whole of every mailbox operation
	mb       *mailbox.Mailbox
	out      Responder
	registry *Registry
	events   eventRing
}

// New builds a relay over mb with the standard command set registered
func New(mb *mailbox.Mailbox) *Relay {
	r := &Relay{mb: mb, registry: NewRegistry()}
	r.mustRegister(protocol.CmdIdentify, "identify", "", r.handleIdentify)
	r.mustRegister(protocol.CmdSend, "send", "words=%*u", r.handleSend)
	r.mustRegister(protocol.CmdGetResponse, "get_response", "max=%u", r.handleGetResponse)
	r.mustRegister(protocol.CmdReceiveFixed, "receive_fixed", "count=%u", r.handleReceiveFixed)
	r.mustRegister(protocol.CmdWaitForData, "wait_for_data", "count=%u budget=%u", r.handleWaitForData)
	r.mustRegister(protocol.CmdChecksum, "checksum", "words=%*u", r.handleChecksum)
	return r
}

func (r *Relay) mustRegister(id uint16, name, format string, h Handler) {
	if err := r.registry.Register(id, name, format, h); err != nil {
		panic(err)
	}
}

// SetResponder sets where responses go.
// Responses are dropped until one is set.
func (r *Relay) SetResponder(out Responder) {
	r.out = out
}

// Registry returns the relay's command registry
func (r *Relay) Registry() *Registry {
	return r.registry
}

// Handle dispatches one decoded command; it matches protocol.CommandHandler
func (r *Relay) Handle(cmdID uint16, args *[]byte) error {
	return r.registry.Dispatch(cmdID, args)
}

// WithMailbox runs fn with exclusive use of the mailbox.
// Firmware code that talks to the enclave outside the host link must go through here.
func (r *Relay) WithMailbox(fn func(mb *mailbox.Mailbox) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return fn(r.mb)
}

// Events returns the recent exchange history, oldest first
func (r *Relay) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.events.snapshot()
}

// DumpEvents writes the exchange history to the debug console, oldest first
func (r *Relay) DumpEvents() {
	for _, e := range r.Events() {
		DebugPrintln(eventLine(e))
	}
}

func eventLine(e Event) string {
	return "[EVT] kind=" + itoa(int(e.Kind)) +
		" cmd=" + itoa(int(e.Cmd)) +
		" status=" + mailbox.Status(e.Status).String() +
		" words=" + itoa(int(e.Words)) +
		" header=" + hex32(e.Header)
}

func (r *Relay) respond(cmdID uint16, args func(output protocol.OutputBuffer)) {
	if r.out != nil {
		r.out.SendCommand(cmdID, args)
	}
}

func (r *Relay) respondStatus(status mailbox.Status) {
	r.respond(protocol.RespStatus, func(output protocol.OutputBuffer) {
		protocol.EncodeVLQUint(output, uint32(status))
	})
}

func (r *Relay) respondWords(status mailbox.Status, hdr mailbox.Header, words []uint32) {
	r.respond(protocol.RespWords, func(output protocol.OutputBuffer) {
		protocol.EncodeWordsReply(output, uint8(status), uint32(hdr), words)
	})
}

// reject answers a request that was refused without touching the mailbox
func (r *Relay) reject(cmd uint16, status mailbox.Status, words bool) {
	r.mu.Lock()
	r.events.record(Event{Kind: EvtReject, Cmd: cmd, Status: uint8(status)})
	r.mu.Unlock()

	DebugPrintln("[RELAY] rejected " + itoa(int(cmd)) + ": " + status.String())
	if words {
		r.respondWords(status, 0, nil)
	} else {
		r.respondStatus(status)
	}
}

// linkError answers a request whose arguments did not decode. The rest of the
// frame cannot be trusted, so err is returned to stop its dispatch.
func (r *Relay) linkError(cmd uint16, err error, words bool) error {
	r.mu.Lock()
	r.events.record(Event{Kind: EvtLinkErr, Cmd: cmd, Status: uint8(mailbox.StatusInvalidArgument)})
	r.mu.Unlock()

	DebugPrintln("[RELAY] bad arguments for " + itoa(int(cmd)) + ": " + err.Error())
	if words {
		r.respondWords(mailbox.StatusInvalidArgument, 0, nil)
	} else {
		r.respondStatus(mailbox.StatusInvalidArgument)
	}
	return err
}

func (r *Relay) handleIdentify(args *[]byte) error {
	r.respond(protocol.RespIdentify, func(output protocol.OutputBuffer) {
		protocol.EncodeIdentity(output, protocol.Identity{
			Version:  protocol.Version,
			TxSlots:  mailbox.TxSlotCount,
			RxSlots:  mailbox.RxSlotCount,
			MaxWords: protocol.MaxWords,
		})
	})
	return nil
}

func (r *Relay) handleSend(args *[]byte) error {
	var buf [protocol.MaxWords]uint32
	words, err := protocol.DecodeWords(args, buf[:])
	if err == protocol.ErrTooManyWords {
		// the list cannot be skipped word by word, drop the rest of the frame
		*args = nil
		r.reject(protocol.CmdSend, mailbox.StatusOutOfRange, false)
		return nil
	}
	if err != nil {
		return r.linkError(protocol.CmdSend, err, false)
	}

	r.mu.Lock()
	err = r.mb.Send(words)
	status := mailbox.StatusOf(err)
	r.events.record(Event{Kind: EvtSend, Cmd: protocol.CmdSend, Status: uint8(status), Words: uint8(len(words))})
	r.mu.Unlock()

	r.respondStatus(status)
	return nil
}

func (r *Relay) handleGetResponse(args *[]byte) error {
	size, err := protocol.DecodeVLQUint(args)
	if err != nil {
		return r.linkError(protocol.CmdGetResponse, err, true)
	}
	if size > protocol.MaxWords {
		r.reject(protocol.CmdGetResponse, mailbox.StatusOutOfRange, true)
		return nil
	}

	var buf [protocol.MaxWords]uint32
	r.mu.Lock()
	hdr, err := r.mb.GetResponse(buf[:], int(size))
	status := mailbox.StatusOf(err)
	n := hdr.PayloadSize()
	if n > int(size) {
		n = int(size)
	}
	r.events.record(Event{Kind: EvtReceive, Cmd: protocol.CmdGetResponse, Status: uint8(status), Words: uint8(n), Header: uint32(hdr)})
	r.mu.Unlock()

	r.respondWords(status, hdr, buf[:n])
	return nil
}

func (r *Relay) handleReceiveFixed(args *[]byte) error {
	count, err := protocol.DecodeVLQUint(args)
	if err != nil {
		return r.linkError(protocol.CmdReceiveFixed, err, true)
	}
	if count > protocol.MaxWords {
		r.reject(protocol.CmdReceiveFixed, mailbox.StatusOutOfRange, true)
		return nil
	}

	var buf [protocol.MaxWords]uint32
	r.mu.Lock()
	err = r.mb.ReceiveFixed(buf[:], int(count))
	status := mailbox.StatusOf(err)
	r.events.record(Event{Kind: EvtReceive, Cmd: protocol.CmdReceiveFixed, Status: uint8(status), Words: uint8(count)})
	r.mu.Unlock()

	r.respondWords(status, 0, buf[:count])
	return nil
}

// handleWaitForData answers with all count words even on timeout; words past
// the slot that timed out are zero.
func (r *Relay) handleWaitForData(args *[]byte) error {
	count, err := protocol.DecodeVLQUint(args)
	if err != nil {
		return r.linkError(protocol.CmdWaitForData, err, true)
	}
	budget, err := protocol.DecodeVLQUint(args)
	if err != nil {
		return r.linkError(protocol.CmdWaitForData, err, true)
	}
	if count > protocol.MaxWords {
		r.reject(protocol.CmdWaitForData, mailbox.StatusOutOfRange, true)
		return nil
	}

	var buf [protocol.MaxWords]uint32
	r.mu.Lock()
	err = r.mb.ReceiveBounded(buf[:], int(count), budget)
	status := mailbox.StatusOf(err)
	kind := uint8(EvtReceive)
	if status == mailbox.StatusTimeout {
		kind = EvtTimeout
	}
	r.events.record(Event{Kind: kind, Cmd: protocol.CmdWaitForData, Status: uint8(status), Words: uint8(count)})
	r.mu.Unlock()

	if status == mailbox.StatusTimeout {
		DebugPrintln("[RELAY] wait_for_data timed out, budget " + itoa(int(budget)))
	}
	r.respondWords(status, 0, buf[:count])
	return nil
}

func (r *Relay) handleChecksum(args *[]byte) error {
	var buf [protocol.MaxWords]uint32
	words, err := protocol.DecodeWords(args, buf[:])
	if err == protocol.ErrTooManyWords {
		// the list cannot be skipped word by word, drop the rest of the frame
		*args = nil
		r.reject(protocol.CmdChecksum, mailbox.StatusOutOfRange, false)
		return nil
	}
	if err != nil {
		return r.linkError(protocol.CmdChecksum, err, false)
	}

	sum := mailbox.Checksum(words)
	r.respond(protocol.RespChecksum, func(output protocol.OutputBuffer) {
		protocol.EncodeVLQUint(output, sum)
	})
	return nil
}
