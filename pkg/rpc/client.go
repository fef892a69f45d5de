package rpc

import (
	"fmt"
	"io"
	"net"
	"net/url"
	"sync"
	"time"

	"golang.org/x/net/websocket"

	"github.com/robotalks/chanmux/pkg/chanmux"
)

// Client talks to a Server. Calls are serialized, so a Client may be
// shared by goroutines, though a blocked Wait holds up the others.
type Client struct {
	rw   PacketReadWriter
	lock sync.Mutex
}

// NewClient creates a Client on rw.
func NewClient(rw PacketReadWriter) *Client {
	return &Client{rw: rw}
}

// Dial connects to tcp://, unix:// or ws:// addresses.
func Dial(addr string) (*Client, error) {
	u, err := url.Parse(addr)
	if err != nil {
		return nil, fmt.Errorf("invalid server address: %v", err)
	}
	switch u.Scheme {
	case "tcp":
		conn, err := net.Dial("tcp", u.Host)
		if err != nil {
			return nil, err
		}
		return NewClient(NewStream(conn)), nil
	case "unix":
		conn, err := net.Dial("unix", u.Path)
		if err != nil {
			return nil, err
		}
		return NewClient(NewStream(conn)), nil
	case "ws", "wss":
		origin := "http://localhost/"
		if u.Scheme == "wss" {
			origin = "https://localhost/"
		}
		conn, err := websocket.Dial(addr, "", origin)
		if err != nil {
			return nil, err
		}
		return NewClient(NewWebsocket(conn)), nil
	default:
		return nil, fmt.Errorf("unknown server address scheme: %q", u.Scheme)
	}
}

// Call sends a request and waits for the reply.
func (c *Client) Call(req *Request) (*Reply, error) {
	c.lock.Lock()
	defer c.lock.Unlock()
	if err := c.rw.WritePacket(req.Encode()); err != nil {
		return nil, err
	}
	pkt, err := c.rw.ReadPacket()
	if err != nil {
		return nil, err
	}
	reply, err := DecodeReply(pkt)
	if err != nil {
		return nil, err
	}
	return reply, reply.Err()
}

// Write sends p on channel ch.
func (c *Client) Write(ch chanmux.ChannelID, p []byte) (int, error) {
	reply, err := c.Call(&Request{Op: OpWrite, Channel: ch, Data: p})
	if err != nil {
		return 0, err
	}
	return reply.Length, nil
}

// Read returns up to length received bytes of channel ch without blocking.
func (c *Client) Read(ch chanmux.ChannelID, length int) ([]byte, error) {
	reply, err := c.Call(&Request{Op: OpRead, Channel: ch, Length: length})
	if err != nil {
		return nil, err
	}
	return reply.Data, nil
}

// Wait blocks until data arrives on channel ch. A zero timeout leaves the
// limit to the server. Expiry returns an error matching ErrTimeout.
func (c *Client) Wait(ch chanmux.ChannelID, timeout time.Duration) error {
	_, err := c.Call(&Request{Op: OpWait, Channel: ch, Timeout: timeout})
	return err
}

// Channels lists the configured channels.
func (c *Client) Channels() ([]chanmux.ChannelID, error) {
	reply, err := c.Call(&Request{Op: OpChannels})
	if err != nil {
		return nil, err
	}
	return reply.Channels, nil
}

// Close closes the connection.
func (c *Client) Close() error {
	if closer, ok := c.rw.(io.Closer); ok {
		return closer.Close()
	}
	return nil
}
