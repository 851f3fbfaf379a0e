//go:build tinygo && mimxrt1189

// Firmware relaying host link commands into the S3MU mailbox.
package main

import (
	"time"

	"s3mu/mailbox"
	"s3mu/protocol"
	"s3mu/relay"
)

const (
	linkBaud  = 115200
	debugBaud = 115200
)

var (
	link  = &UART{Bus: LPUART1}
	debug = &UART{Bus: LPUART2}

	inputBuffer  *protocol.FifoBuffer
	outputBuffer *protocol.ScratchOutput
	transport    *protocol.Transport

	// set with -ldflags "-X main.debugConsole=1"
	debugConsole string

	msgerrors uint32
)

func main() {
	link.Configure(linkBaud)
	if debugConsole != "" {
		debug.Configure(debugBaud)
		relay.SetDebugWriter(func(s string) {
			debug.Write([]byte(s))
			debug.Write([]byte("\r\n"))
		})
		relay.SetDebugEnabled(true)
	}

	mb := mailbox.New(s3muRegisters{mu: S3MU})
	mb.Init()
	r := relay.New(mb)
	relay.DebugPrintln("[BOOT] s3mu relay, commands:")
	relay.DebugPrintln(r.Registry().Dictionary())

	inputBuffer = protocol.NewFifoBuffer(256)
	outputBuffer = protocol.NewScratchOutput()

	transport = protocol.NewTransport(outputBuffer, r.Handle)
	transport.SetResetCallback(func() {
		inputBuffer.Reset()
		outputBuffer.Reset()
		relay.DebugPrintln("[LINK] host reset")
		r.DumpEvents()
	})
	// acks must leave before the next mailbox wait can block the loop
	transport.SetFlushCallback(writeLink)
	r.SetResponder(transport)

	for {
		func() {
			defer func() {
				if rec := recover(); rec != nil {
					msgerrors++
					inputBuffer.Reset()
					outputBuffer.Reset()
				}
			}()

			for link.Buffered() > 0 && inputBuffer.Free() > 0 {
				inputBuffer.Write([]byte{link.ReadByte()})
			}

			if inputBuffer.Available() > 0 {
				transport.Receive(inputBuffer)
				if inputBuffer.Free() == 0 {
					// a full buffer that never framed is noise
					msgerrors++
					inputBuffer.Reset()
				}
			}

			writeLink()
		}()

		time.Sleep(10 * time.Microsecond)
	}
}

// writeLink drains the output buffer to the host
func writeLink() {
	if result := outputBuffer.Result(); len(result) > 0 {
		link.Write(result)
		outputBuffer.Reset()
	}
}
