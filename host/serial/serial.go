// Package serial opens the UART that links the host to the relay firmware.
package serial

import (
	"io"
)

// Port is a byte stream to the relay firmware.
// The native implementation wraps github.com/tarm/serial; tests and the
// simulator supply in-process ports.
type Port interface {
	io.ReadWriteCloser

	// Flush flushes any buffered data
	Flush() error
}

// Config holds serial port configuration
type Config struct {
	// Device path (e.g., "/dev/ttyACM0", "COM3")
	Device string

	// Baud rate of the debug UART
	Baud int

	// Read timeout in milliseconds (0 = blocking)
	ReadTimeout int
}

// DefaultBaud is the rate the relay firmware configures its console UART at
const DefaultBaud = 115200

// DefaultConfig returns the configuration matching the relay firmware defaults
func DefaultConfig(device string) *Config {
	return &Config{
		Device:      device,
		Baud:        DefaultBaud,
		ReadTimeout: 100,
	}
}

// pipePort adapts an in-process stream to Port
type pipePort struct {
	io.ReadWriteCloser
}

func (pipePort) Flush() error { return nil }

// Wrap turns any byte stream (net.Pipe end, socket) into a Port
func Wrap(rwc io.ReadWriteCloser) Port {
	if p, ok := rwc.(Port); ok {
		return p
	}
	return pipePort{rwc}
}
