package chanio

import (
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/abiosoft/ishell"

	"github.com/robotalks/chanmux/pkg/cli/sh"
)

// DefaultReadLength is the read length when not specified.
const DefaultReadLength = 4096

// ParsePayload joins args as text, or decodes them as hex with the
// "hex:" prefix on the first arg.
func ParsePayload(args []string) ([]byte, error) {
	text := strings.Join(args, " ")
	if strings.HasPrefix(text, "hex:") {
		data, err := hex.DecodeString(strings.ReplaceAll(text[4:], " ", ""))
		if err != nil {
			return nil, fmt.Errorf("invalid hex payload: %v", err)
		}
		return data, nil
	}
	return []byte(text), nil
}

// FormatData prints data as quoted text plus hex.
func FormatData(data []byte) string {
	if len(data) == 0 {
		return "(empty)"
	}
	return fmt.Sprintf("%d bytes %q [%s]", len(data), data, hex.EncodeToString(data))
}

var (
	// WriteCmd writes to a channel.
	WriteCmd = ishell.Cmd{
		Name:    "write",
		Aliases: []string{"w"},
		Help:    "CHANNEL TEXT... | CHANNEL hex:HEX...",
		Func: sh.MustBeConnected(func(c *ishell.Context) {
			if len(c.Args) < 2 {
				c.Err(fmt.Errorf("CHANNEL and payload required"))
				return
			}
			ch, err := sh.ParseChannel(c.Args[0])
			if err != nil {
				c.Err(err)
				return
			}
			data, err := ParsePayload(c.Args[1:])
			if err != nil {
				c.Err(err)
				return
			}
			n, err := sh.ShellFrom(c).Client.Write(ch, data)
			if err != nil {
				c.Err(err)
				return
			}
			sh.Print(c, map[string]int{"written": n}, fmt.Sprintf("%d bytes written", n))
		}),
	}

	// ReadCmd reads received data of a channel without blocking.
	ReadCmd = ishell.Cmd{
		Name:    "read",
		Aliases: []string{"r"},
		Help:    "CHANNEL [LENGTH]",
		Func: sh.MustBeConnected(func(c *ishell.Context) {
			if len(c.Args) < 1 {
				c.Err(fmt.Errorf("CHANNEL required"))
				return
			}
			ch, err := sh.ParseChannel(c.Args[0])
			if err != nil {
				c.Err(err)
				return
			}
			length := DefaultReadLength
			if len(c.Args) > 1 {
				if length, err = strconv.Atoi(c.Args[1]); err != nil {
					c.Err(fmt.Errorf("Invalid LENGTH: %v", err))
					return
				}
			}
			data, err := sh.ShellFrom(c).Client.Read(ch, length)
			if err != nil {
				c.Err(err)
				return
			}
			sh.Print(c, map[string][]byte{"data": data}, FormatData(data))
		}),
	}

	// WaitCmd waits for data on a channel.
	WaitCmd = ishell.Cmd{
		Name:    "wait",
		Aliases: []string{"wt"},
		Help:    "CHANNEL [TIMEOUT]",
		Func: sh.MustBeConnected(func(c *ishell.Context) {
			if len(c.Args) < 1 {
				c.Err(fmt.Errorf("CHANNEL required"))
				return
			}
			ch, err := sh.ParseChannel(c.Args[0])
			if err != nil {
				c.Err(err)
				return
			}
			var timeout time.Duration
			if len(c.Args) > 1 {
				if timeout, err = time.ParseDuration(c.Args[1]); err != nil {
					c.Err(fmt.Errorf("Invalid TIMEOUT: %v", err))
					return
				}
			}
			if err := sh.ShellFrom(c).Client.Wait(ch, timeout); err != nil {
				c.Err(err)
				return
			}
			c.Println("OK")
		}),
	}
)

func init() {
	sh.AddCmds(
		&WriteCmd,
		&ReadCmd,
		&WaitCmd,
	)
}
