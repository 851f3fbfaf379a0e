// Package client talks to the relay firmware from the host.
package client

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/golang/glog"

	"s3mu/host/serial"
	"s3mu/mailbox"
	"s3mu/protocol"
)

// Exchange summarizes one completed request for observers
type Exchange struct {
	Command  string
	Sent     []uint32
	Status   mailbox.Status
	Header   mailbox.Header
	Words    []uint32
	Duration time.Duration
	Err      error
}

// Observer is told about every exchange, successful or not
type Observer func(Exchange)

// Client is one host session with a relay board
type Client struct {
	transport *protocol.HostTransport
	timeout   time.Duration

	mu       sync.Mutex // one request in flight
	observer Observer
}

// Open connects to a board over a serial device
func Open(cfg *serial.Config, timeout time.Duration) (*Client, error) {
	port, err := serial.Open(cfg)
	if err != nil {
		return nil, err
	}
	if err := port.Flush(); err != nil {
		glog.Warningf("flush %s: %v", cfg.Device, err)
	}
	return New(port, timeout), nil
}

// New starts a session over an open port
func New(port serial.Port, timeout time.Duration) *Client {
	return &Client{
		transport: protocol.NewHostTransport(port),
		timeout:   timeout,
	}
}

// SetObserver installs fn to be called after every exchange
func (c *Client) SetObserver(fn Observer) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.observer = fn
}

// Close ends the session and closes the port
func (c *Client) Close() error {
	return c.transport.Close()
}

// request sends one command and returns the arguments of its response
func (c *Client) request(cmd uint16, want uint16, args func(output protocol.OutputBuffer)) ([]byte, error) {
	c.transport.Drain()
	if err := c.transport.SendCommand(cmd, args, c.timeout); err != nil {
		return nil, fmt.Errorf("command %d: %w", cmd, err)
	}
	f, err := c.transport.ReceiveResponse(c.timeout)
	if err != nil {
		return nil, fmt.Errorf("command %d: %w", cmd, err)
	}

	data := f.Payload
	id, err := protocol.DecodeVLQUint(&data)
	if err != nil {
		return nil, fmt.Errorf("command %d: bad response: %w", cmd, err)
	}
	if uint16(id) != want && uint16(id) == protocol.RespStatus {
		// refused before it ran
		v, err := protocol.DecodeVLQUint(&data)
		if err == nil {
			err = mailbox.Status(v).Err()
		}
		if err != nil {
			return nil, fmt.Errorf("command %d: %w", cmd, err)
		}
	}
	if uint16(id) != want {
		return nil, fmt.Errorf("command %d: unexpected response %d", cmd, id)
	}
	return data, nil
}

func (c *Client) observe(ex Exchange, start time.Time) {
	ex.Duration = time.Since(start)
	if ex.Err != nil {
		glog.V(1).Infof("%s: %v", ex.Command, ex.Err)
	} else {
		glog.V(2).Infof("%s: %v header=%#x words=%d in %v", ex.Command, ex.Status, uint32(ex.Header), len(ex.Words), ex.Duration)
	}
	if c.observer != nil {
		c.observer(ex)
	}
}

// Identify asks the relay for its protocol version and bank geometry
func (c *Client) Identify() (protocol.Identity, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	data, err := c.request(protocol.CmdIdentify, protocol.RespIdentify, nil)
	if err != nil {
		return protocol.Identity{}, err
	}
	return protocol.DecodeIdentity(&data)
}

// Send transmits one message to the enclave
func (c *Client) Send(words []uint32) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	start := time.Now()
	ex := Exchange{Command: "send", Sent: words}
	ex.Status, ex.Err = c.send(protocol.CmdSend, words)
	c.observe(ex, start)
	return ex.Err
}

func (c *Client) send(cmd uint16, words []uint32) (mailbox.Status, error) {
	if len(words) > protocol.MaxWords {
		return mailbox.StatusOutOfRange, mailbox.ErrArgumentOutOfRange
	}
	data, err := c.request(cmd, protocol.RespStatus, func(output protocol.OutputBuffer) {
		protocol.EncodeWords(output, words)
	})
	if err != nil {
		return mailbox.StatusFail, err
	}
	v, err := protocol.DecodeVLQUint(&data)
	if err != nil {
		return mailbox.StatusFail, err
	}
	status := mailbox.Status(v)
	return status, status.Err()
}

// GetResponse reads a header-framed reply of at most size words.
// The payload is returned even alongside ErrArgumentOutOfRange when the enclave
// sent more than size words.
func (c *Client) GetResponse(size int) (mailbox.Header, []uint32, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	start := time.Now()
	ex := Exchange{Command: "get_response"}
	var reply protocol.WordsReply
	reply, ex.Err = c.words(protocol.CmdGetResponse, uint32(size))
	ex.fill(reply)
	c.observe(ex, start)
	return ex.Header, ex.Words, ex.Err
}

// ReceiveFixed reads exactly count words; the relay blocks until they arrive
func (c *Client) ReceiveFixed(count int) ([]uint32, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	start := time.Now()
	ex := Exchange{Command: "receive_fixed"}
	var reply protocol.WordsReply
	reply, ex.Err = c.words(protocol.CmdReceiveFixed, uint32(count))
	ex.fill(reply)
	c.observe(ex, start)
	return ex.Words, ex.Err
}

// WaitForData reads exactly count words, each awaited for at most budget polls.
// On mailbox.ErrRequestTimeout the returned words are not to be trusted.
func (c *Client) WaitForData(count int, budget uint32) ([]uint32, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	start := time.Now()
	ex := Exchange{Command: "wait_for_data"}
	var reply protocol.WordsReply
	reply, ex.Err = c.words(protocol.CmdWaitForData, uint32(count), budget)
	ex.fill(reply)
	c.observe(ex, start)
	return ex.Words, ex.Err
}

func (ex *Exchange) fill(reply protocol.WordsReply) {
	ex.Status = mailbox.Status(reply.Status)
	ex.Header = mailbox.Header(reply.Header)
	ex.Words = reply.Words
}

// words runs a RespWords command; link failures come back as StatusFail
func (c *Client) words(cmd uint16, args ...uint32) (protocol.WordsReply, error) {
	failed := protocol.WordsReply{Status: uint8(mailbox.StatusFail)}
	data, err := c.request(cmd, protocol.RespWords, func(output protocol.OutputBuffer) {
		for _, v := range args {
			protocol.EncodeVLQUint(output, v)
		}
	})
	if err != nil {
		return failed, err
	}
	reply, err := protocol.DecodeWordsReply(&data)
	if err != nil {
		return failed, fmt.Errorf("command %d: bad response: %w", cmd, err)
	}
	return reply, mailbox.Status(reply.Status).Err()
}

// Checksum asks the relay to XOR fold words
func (c *Client) Checksum(words []uint32) (uint32, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(words) > protocol.MaxWords {
		return 0, mailbox.ErrArgumentOutOfRange
	}
	data, err := c.request(protocol.CmdChecksum, protocol.RespChecksum, func(output protocol.OutputBuffer) {
		protocol.EncodeWords(output, words)
	})
	if err != nil {
		return 0, err
	}
	return protocol.DecodeVLQUint(&data)
}

// ErrMismatch is returned by Verify when the relay and host checksums differ
var ErrMismatch = errors.New("client: checksum mismatch")

// Verify checks a received message against the relay's checksum of it and
// returns the relay's sum
func (c *Client) Verify(words []uint32) (uint32, error) {
	remote, err := c.Checksum(words)
	if err != nil {
		return 0, err
	}
	if local := mailbox.Checksum(words); local != remote {
		return remote, fmt.Errorf("%w: host %#010x relay %#010x", ErrMismatch, local, remote)
	}
	return remote, nil
}
