// Package rpc exposes ChanMux sessions to remote clients.
//
// Requests and replies are encoded in protobuf wire format and carried by
// a PacketReadWriter, one session per connection.
package rpc

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang/protobuf/proto"

	"github.com/robotalks/chanmux/pkg/chanmux"
)

// Op is the requested operation.
type Op uint64

// Operations.
const (
	OpWrite    Op = 1
	OpRead     Op = 2
	OpWait     Op = 3
	OpChannels Op = 4
)

func (op Op) String() string {
	switch op {
	case OpWrite:
		return "write"
	case OpRead:
		return "read"
	case OpWait:
		return "wait"
	case OpChannels:
		return "channels"
	}
	return fmt.Sprintf("op(%d)", uint64(op))
}

// Request is sent by the client.
//
//	message Request {
//	  uint64 op = 1;
//	  uint32 channel = 2;
//	  uint32 length = 3;
//	  bytes data = 4;
//	  uint64 timeout_ms = 5;
//	}
type Request struct {
	Op      Op
	Channel chanmux.ChannelID
	// Length is the read length. For writes len(Data) is used.
	Length  int
	Data    []byte
	Timeout time.Duration
}

// Reply is sent back by the server.
//
//	message Reply {
//	  uint64 status = 1;
//	  uint32 length = 2;
//	  bytes data = 3;
//	  bytes channels = 4;
//	  string message = 5;
//	}
type Reply struct {
	Status   Status
	Length   int
	Data     []byte
	Channels []chanmux.ChannelID
	Message  string
}

const (
	wireVarint  = 0
	wireFixed64 = 1
	wireBytes   = 2
	wireFixed32 = 5
)

func encodeVarintField(b *proto.Buffer, field int, v uint64) {
	if v != 0 {
		b.EncodeVarint(uint64(field)<<3 | wireVarint)
		b.EncodeVarint(v)
	}
}

func encodeBytesField(b *proto.Buffer, field int, v []byte) {
	if len(v) != 0 {
		b.EncodeVarint(uint64(field)<<3 | wireBytes)
		b.EncodeRawBytes(v)
	}
}

// decodeFields calls fn for each known field and skips the others.
// For bytes fields v is 0 and data holds the content.
func decodeFields(pkt []byte, fn func(field int, v uint64, data []byte) error) error {
	b := proto.NewBuffer(pkt)
	for len(b.Unread()) > 0 {
		key, err := b.DecodeVarint()
		if err != nil {
			return err
		}
		field := int(key >> 3)
		var v uint64
		var data []byte
		switch key & 7 {
		case wireVarint:
			v, err = b.DecodeVarint()
		case wireBytes:
			data, err = b.DecodeRawBytes(true)
		case wireFixed64:
			_, err = b.DecodeFixed64()
			field = 0
		case wireFixed32:
			_, err = b.DecodeFixed32()
			field = 0
		default:
			err = fmt.Errorf("unsupported wire type %d", key&7)
		}
		if err != nil {
			return err
		}
		if field == 0 {
			continue
		}
		if err = fn(field, v, data); err != nil {
			return err
		}
	}
	return nil
}

// Encode encodes the request.
func (r *Request) Encode() []byte {
	b := proto.NewBuffer(nil)
	encodeVarintField(b, 1, uint64(r.Op))
	encodeVarintField(b, 2, uint64(r.Channel))
	encodeVarintField(b, 3, uint64(r.Length))
	encodeBytesField(b, 4, r.Data)
	encodeVarintField(b, 5, uint64(r.Timeout/time.Millisecond))
	return b.Bytes()
}

// DecodeRequest decodes a request.
func DecodeRequest(pkt []byte) (*Request, error) {
	r := &Request{}
	err := decodeFields(pkt, func(field int, v uint64, data []byte) error {
		switch field {
		case 1:
			r.Op = Op(v)
		case 2:
			if v > 0xff {
				return fmt.Errorf("channel %d out of range", v)
			}
			r.Channel = chanmux.ChannelID(v)
		case 3:
			r.Length = int(v)
		case 4:
			r.Data = data
		case 5:
			r.Timeout = time.Duration(v) * time.Millisecond
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return r, nil
}

// Encode encodes the reply.
func (r *Reply) Encode() []byte {
	b := proto.NewBuffer(nil)
	encodeVarintField(b, 1, uint64(r.Status))
	encodeVarintField(b, 2, uint64(r.Length))
	encodeBytesField(b, 3, r.Data)
	if len(r.Channels) > 0 {
		chs := make([]byte, len(r.Channels))
		for n, ch := range r.Channels {
			chs[n] = byte(ch)
		}
		encodeBytesField(b, 4, chs)
	}
	encodeBytesField(b, 5, []byte(r.Message))
	return b.Bytes()
}

// DecodeReply decodes a reply.
func DecodeReply(pkt []byte) (*Reply, error) {
	r := &Reply{}
	err := decodeFields(pkt, func(field int, v uint64, data []byte) error {
		switch field {
		case 1:
			r.Status = Status(v)
		case 2:
			r.Length = int(v)
		case 3:
			r.Data = data
		case 4:
			for _, ch := range data {
				r.Channels = append(r.Channels, chanmux.ChannelID(ch))
			}
		case 5:
			r.Message = string(data)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return r, nil
}

// Status is the result code of a request.
type Status uint64

// Status codes.
const (
	StatusOK Status = iota
	StatusNotReady
	StatusBounds
	StatusInvalidChannel
	StatusTransport
	StatusOverflow
	StatusTimeout
	StatusBadRequest
	StatusInternal
)

var (
	// ErrTimeout indicates a wait expired without data.
	ErrTimeout = errors.New("timeout")
	// ErrBadRequest indicates the server could not understand a request.
	ErrBadRequest = errors.New("bad request")
	// ErrTransport indicates the transport of the multiplexer failed.
	ErrTransport = errors.New("transport failure")
	// ErrInternal indicates any other server failure.
	ErrInternal = errors.New("internal error")
)

var statusErrors = map[Status]error{
	StatusNotReady:       chanmux.ErrNotReady,
	StatusBounds:         chanmux.ErrBounds,
	StatusInvalidChannel: chanmux.ErrInvalidChannel,
	StatusTransport:      ErrTransport,
	StatusOverflow:       chanmux.ErrOverflow,
	StatusTimeout:        ErrTimeout,
	StatusBadRequest:     ErrBadRequest,
	StatusInternal:       ErrInternal,
}

// StatusOf maps an error to the status code.
func StatusOf(err error) Status {
	var tErr *chanmux.TransportError
	switch {
	case err == nil:
		return StatusOK
	case errors.As(err, &tErr):
		return StatusTransport
	case errors.Is(err, context.DeadlineExceeded):
		return StatusTimeout
	}
	for status, target := range statusErrors {
		if errors.Is(err, target) {
			return status
		}
	}
	return StatusInternal
}

// StatusError is the error returned by the server.
type StatusError struct {
	Status  Status
	Message string
}

// Error implements error.
func (e *StatusError) Error() string {
	return e.Message
}

// Unwrap returns the error the status stands for.
func (e *StatusError) Unwrap() error {
	return statusErrors[e.Status]
}

// Err returns the error carried by the reply, nil if succeeded.
func (r *Reply) Err() error {
	if r.Status == StatusOK {
		return nil
	}
	msg := r.Message
	if msg == "" {
		if err := statusErrors[r.Status]; err != nil {
			msg = err.Error()
		} else {
			msg = fmt.Sprintf("status %d", uint64(r.Status))
		}
	}
	return &StatusError{Status: r.Status, Message: msg}
}

// ErrorReply builds the reply of a failed request.
func ErrorReply(err error) *Reply {
	return &Reply{Status: StatusOf(err), Message: err.Error()}
}
