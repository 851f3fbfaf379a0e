package main

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/abiosoft/ishell"

	"s3mu/host/client"
	"s3mu/host/config"
	"s3mu/mailbox"
)

const (
	clientKey = "$client"
	configKey = "$config"
)

var errUsage = errors.New("wrong number of arguments")

var commands = []*ishell.Cmd{
	{
		Name: "identify",
		Help: "show relay version and bank sizes",
		Func: func(c *ishell.Context) {
			id, err := clientFrom(c).Identify()
			if err != nil {
				c.Err(err)
				return
			}
			c.Printf("%s tx=%d rx=%d max_words=%d\n", id.Version, id.TxSlots, id.RxSlots, id.MaxWords)
		},
	},
	{
		Name: "send",
		Help: "WORD... send a message (first word is the header)",
		Func: func(c *ishell.Context) {
			words, err := parseWords(c.Args)
			if err != nil {
				c.Err(err)
				return
			}
			if err := clientFrom(c).Send(words); err != nil {
				c.Err(err)
				return
			}
			c.Println("OK")
		},
	},
	{
		Name: "response",
		Help: "[SIZE] read a header-framed reply of at most SIZE words",
		Func: func(c *ishell.Context) {
			size := mailbox.RxSlotCount
			if len(c.Args) > 1 {
				c.Err(errUsage)
				return
			}
			if len(c.Args) == 1 {
				v, err := parseWord(c.Args[0])
				if err != nil {
					c.Err(err)
					return
				}
				size = int(v)
			}
			hdr, words, err := clientFrom(c).GetResponse(size)
			if hdr != 0 || len(words) > 0 {
				c.Printf("header %#010x size=%d: %s\n", uint32(hdr), hdr.Size(), formatWords(words))
			}
			if err != nil {
				c.Err(err)
			}
		},
	},
	{
		Name: "recv",
		Help: "COUNT read exactly COUNT words, blocking on the board",
		Func: func(c *ishell.Context) {
			if len(c.Args) != 1 {
				c.Err(errUsage)
				return
			}
			count, err := parseWord(c.Args[0])
			if err != nil {
				c.Err(err)
				return
			}
			words, err := clientFrom(c).ReceiveFixed(int(count))
			if err != nil {
				c.Err(err)
				return
			}
			c.Println(formatWords(words))
		},
	},
	{
		Name: "wait",
		Help: "COUNT [BUDGET] read COUNT words, each awaited for at most BUDGET polls",
		Func: func(c *ishell.Context) {
			if len(c.Args) < 1 || len(c.Args) > 2 {
				c.Err(errUsage)
				return
			}
			count, err := parseWord(c.Args[0])
			if err != nil {
				c.Err(err)
				return
			}
			budget := configFrom(c).WaitBudget
			if len(c.Args) == 2 {
				if budget, err = parseWord(c.Args[1]); err != nil {
					c.Err(err)
					return
				}
			}
			words, err := clientFrom(c).WaitForData(int(count), budget)
			if errors.Is(err, mailbox.ErrRequestTimeout) {
				c.Err(fmt.Errorf("timed out after %d polls", budget))
				return
			}
			if err != nil {
				c.Err(err)
				return
			}
			c.Println(formatWords(words))
		},
	},
	{
		Name: "checksum",
		Help: "WORD... XOR fold words on the relay and compare with the host",
		Func: func(c *ishell.Context) {
			words, err := parseWords(c.Args)
			if err != nil {
				c.Err(err)
				return
			}
			line, err := checksumReport(clientFrom(c), words)
			if err != nil {
				c.Err(err)
				return
			}
			c.Println(line)
		},
	},
}

// checksumReport verifies words on the relay; a mismatch is reported, not failed
func checksumReport(cl *client.Client, words []uint32) (string, error) {
	sum, err := cl.Verify(words)
	switch {
	case errors.Is(err, client.ErrMismatch):
		return fmt.Sprintf("%#010x (MISMATCH)", sum), nil
	case err != nil:
		return "", err
	}
	return fmt.Sprintf("%#010x (match)", sum), nil
}

func clientFrom(c *ishell.Context) *client.Client {
	return c.Get(clientKey).(*client.Client)
}

func configFrom(c *ishell.Context) *config.StationConfig {
	return c.Get(configKey).(*config.StationConfig)
}

// parseWord accepts decimal, 0x hex, 0o octal and 0b binary
func parseWord(s string) (uint32, error) {
	v, err := strconv.ParseUint(strings.ReplaceAll(s, "_", ""), 0, 32)
	if err != nil {
		return 0, fmt.Errorf("bad word %q", s)
	}
	return uint32(v), nil
}

func parseWords(args []string) ([]uint32, error) {
	if len(args) == 0 {
		return nil, errUsage
	}
	words := make([]uint32, 0, len(args))
	for _, arg := range args {
		v, err := parseWord(arg)
		if err != nil {
			return nil, err
		}
		words = append(words, v)
	}
	return words, nil
}

func formatWords(words []uint32) string {
	parts := make([]string, len(words))
	for i, w := range words {
		parts[i] = fmt.Sprintf("%#010x", w)
	}
	return "[" + strings.Join(parts, " ") + "]"
}
