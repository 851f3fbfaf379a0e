//go:build tinygo && mimxrt1189

package main

// uartClock is the LPUART functional clock left configured by the boot ROM
const uartClock = 24000000

// UART is a polled LPUART; pins and clocks are set up before main runs
type UART struct {
	Bus *LPUART_Type
}

// Configure sets 16x oversampling at the requested rate and enables both directions
func (uart *UART) Configure(baud uint32) {
	uart.Bus.CTRL.ClearBits(LPUART_CTRL_TE | LPUART_CTRL_RE)
	sbr := (uartClock + 8*baud) / (16 * baud)
	uart.Bus.BAUD.Set(15<<LPUART_BAUD_OSR_Pos | sbr&LPUART_BAUD_SBR_Msk)
	uart.Bus.CTRL.SetBits(LPUART_CTRL_TE | LPUART_CTRL_RE)
}

// Buffered reports whether a received byte is waiting
func (uart *UART) Buffered() int {
	stat := uart.Bus.STAT.Get()
	if stat&LPUART_STAT_OR != 0 {
		// overrun is write-one-to-clear; the host will resend
		uart.Bus.STAT.Set(LPUART_STAT_OR)
	}
	if stat&LPUART_STAT_RDRF != 0 {
		return 1
	}
	return 0
}

// ReadByte returns the received byte; call only when Buffered is non-zero
func (uart *UART) ReadByte() byte {
	return byte(uart.Bus.DATA.Get())
}

// Write a slice of data bytes to the UART.
func (uart *UART) Write(data []byte) {
	for _, c := range data {
		for uart.Bus.STAT.Get()&LPUART_STAT_TDRE == 0 {
		}
		uart.Bus.DATA.Set(uint32(c))
	}
}
