package rpc

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"os"
	"sync"
	"time"

	"github.com/golang/glog"
	"golang.org/x/net/websocket"

	"github.com/robotalks/chanmux/pkg/chanmux"
	fx "github.com/robotalks/chanmux/pkg/framework"
)

// DefaultMaxWait bounds a wait request when Server.MaxWait is not set.
const DefaultMaxWait = time.Minute

// Server serves ChanMux sessions.
type Server struct {
	Mux *chanmux.ChanMux
	// MaxWait bounds a single wait request. A session is blocked while it
	// waits, so a peer leaving mid-wait is only noticed once the wait ends.
	// Values <= 0 use DefaultMaxWait.
	MaxWait time.Duration
}

// NewServer creates a Server.
func NewServer(mux *chanmux.ChanMux) *Server {
	return &Server{Mux: mux, MaxWait: DefaultMaxWait}
}

// ServeConn serves requests on rw in order until rw fails or ctx is done.
// A peer closing the connection is not an error.
func (s *Server) ServeConn(ctx context.Context, rw PacketReadWriter) error {
	session, err := s.Mux.NewSession()
	if err != nil {
		return err
	}
	for {
		pkt, err := rw.ReadPacket()
		if err != nil {
			if errors.Is(err, io.EOF) || ctx.Err() != nil {
				return nil
			}
			return err
		}
		reply := s.handle(ctx, session, pkt)
		if err := rw.WritePacket(reply.Encode()); err != nil {
			return err
		}
	}
}

func (s *Server) handle(ctx context.Context, session *chanmux.Session, pkt []byte) *Reply {
	req, err := DecodeRequest(pkt)
	if err != nil {
		return &Reply{Status: StatusBadRequest, Message: err.Error()}
	}
	glog.V(2).Infof("rpc %s channel %d length %d", req.Op, req.Channel, req.Length)
	var reply *Reply
	switch req.Op {
	case OpWrite:
		reply, err = s.write(session, req)
	case OpRead:
		var n int
		if n, err = session.Read(req.Channel, req.Length); err == nil {
			reply = &Reply{Length: n, Data: session.ReadPort().Buf()[:n]}
		}
	case OpWait:
		err = s.wait(ctx, session, req)
		reply = &Reply{}
	case OpChannels:
		reply = &Reply{Channels: s.Mux.Channels()}
	default:
		err = fmt.Errorf("%w: unknown %s", ErrBadRequest, req.Op)
	}
	if err != nil {
		glog.V(1).Infof("rpc %s channel %d failed: %v", req.Op, req.Channel, err)
		return ErrorReply(err)
	}
	return reply
}

func (s *Server) write(session *chanmux.Session, req *Request) (*Reply, error) {
	port := session.WritePort()
	if len(req.Data) > port.Size() {
		return nil, &chanmux.BoundsError{Length: len(req.Data), Size: port.Size()}
	}
	copy(port.Buf(), req.Data)
	n, err := session.Write(req.Channel, len(req.Data))
	if err != nil {
		return nil, err
	}
	return &Reply{Length: n}, nil
}

func (s *Server) wait(ctx context.Context, session *chanmux.Session, req *Request) error {
	ctx, cancel := context.WithTimeout(ctx, s.waitTimeout(req.Timeout))
	defer cancel()
	return session.Wait(ctx, req.Channel)
}

func (s *Server) waitTimeout(requested time.Duration) time.Duration {
	limit := s.MaxWait
	if limit <= 0 {
		limit = DefaultMaxWait
	}
	if requested <= 0 || requested > limit {
		return limit
	}
	return requested
}

// Serve accepts stream connections until ln fails or ctx is done.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	var wg sync.WaitGroup
	defer wg.Wait()
	return fx.RunWithContextCloser(ctx, ln, func() error {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return err
			}
			wg.Add(1)
			go func() {
				defer wg.Done()
				s.serveStream(ctx, conn)
			}()
		}
	})
}

func (s *Server) serveStream(ctx context.Context, conn net.Conn) {
	peer := conn.RemoteAddr().String()
	glog.V(1).Infof("rpc client %s connected", peer)
	err := fx.RunWithContextCloser(ctx, conn, func() error {
		return s.ServeConn(ctx, NewStream(conn))
	})
	if err != nil && !errors.Is(err, context.Canceled) {
		glog.Warningf("rpc client %s: %v", peer, err)
	}
	glog.V(1).Infof("rpc client %s disconnected", peer)
}

// WebsocketHandler serves sessions over websocket connections.
func (s *Server) WebsocketHandler(ctx context.Context) http.Handler {
	return websocket.Handler(func(conn *websocket.Conn) {
		if err := s.ServeConn(ctx, NewWebsocket(conn)); err != nil {
			glog.Warningf("websocket client %s: %v", conn.Request().RemoteAddr, err)
		}
	})
}

// Listen listens on an address like tcp://host:port or unix:///path.
// A stale unix socket file is removed first.
func Listen(addr string) (net.Listener, error) {
	u, err := url.Parse(addr)
	if err != nil {
		return nil, fmt.Errorf("invalid listen address: %v", err)
	}
	switch u.Scheme {
	case "tcp":
		return net.Listen("tcp", u.Host)
	case "unix":
		if err := os.Remove(u.Path); err != nil && !os.IsNotExist(err) {
			return nil, err
		}
		return net.Listen("unix", u.Path)
	default:
		return nil, fmt.Errorf("unknown listen address scheme: %q", u.Scheme)
	}
}
