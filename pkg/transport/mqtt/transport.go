// Package mqtt carries the multiplexed byte stream over an MQTT broker and
// announces multiplexer instances.
package mqtt

import (
	"context"
	"fmt"
	"net/url"
	"sync"

	"github.com/golang/glog"

	"github.com/robotalks/chanmux/pkg/dataport"
	"github.com/robotalks/chanmux/pkg/transport"
)

// Link roles. A host publishes on <link>/down and receives <link>/up, a
// device the other way round.
const (
	RoleHost   = "host"
	RoleDevice = "device"
)

// DefaultLink is the link name when the URL does not specify one.
const DefaultLink = "chanmux"

// Transport implements transport.Transport over MQTT.
type Transport struct {
	Queue   *Queue
	RxTopic string
	TxTopic string

	inlet  *dataport.Inlet
	rx     transport.InletWriter
	rxLock sync.Mutex
}

// LinkTopics returns the receive and transmit topics for a role.
func LinkTopics(link, role string) (rx, tx string, err error) {
	up, down := link+"/up", link+"/down"
	switch role {
	case "", RoleHost:
		return up, down, nil
	case RoleDevice:
		return down, up, nil
	default:
		return "", "", fmt.Errorf("unknown mqtt link role: %q", role)
	}
}

// Open creates a Transport from a URL like
// mqtt://host:1883/prefix/?link=name&role=host
func Open(brokerURL string, inletSize int) (*Transport, error) {
	u, err := url.Parse(brokerURL)
	if err != nil {
		return nil, fmt.Errorf("invalid broker URL: %v", err)
	}
	link := u.Query().Get("link")
	if link == "" {
		link = DefaultLink
	}
	rx, tx, err := LinkTopics(link, u.Query().Get("role"))
	if err != nil {
		return nil, err
	}
	opts, topicPrefix, err := ClientOptionsFromURL(brokerURL)
	if err != nil {
		return nil, err
	}
	return New(NewQueue(opts, topicPrefix), rx, tx, transport.NewInlet(inletSize)), nil
}

// New creates a Transport on an existing Queue.
func New(q *Queue, rxTopic, txTopic string, inlet *dataport.Inlet) *Transport {
	return &Transport{
		Queue:   q,
		RxTopic: rxTopic,
		TxTopic: txTopic,
		inlet:   inlet,
		rx:      transport.InletWriter{Inlet: inlet},
	}
}

// Inlet implements transport.Transport.
func (t *Transport) Inlet() *dataport.Inlet {
	return t.inlet
}

// Write implements io.Writer. p is published as one message.
func (t *Transport) Write(p []byte) (int, error) {
	token := t.Queue.Pub(t.TxTopic, p)
	token.Wait()
	if err := token.Error(); err != nil {
		return 0, err
	}
	return len(p), nil
}

// Close implements io.Closer.
func (t *Transport) Close() error {
	return t.Queue.Close()
}

// Name implements Named.
func (t *Transport) Name() string {
	return "mqtt-transport"
}

// Run implements Runnable.
func (t *Transport) Run(ctx context.Context) error {
	sub := t.Queue.Sub(t.RxTopic, t.receive)
	token := t.Queue.Connect()
	token.Wait()
	if err := token.Error(); err != nil {
		sub.Close()
		return err
	}
	glog.Infof("mqtt transport: rx %q, tx %q", t.Queue.TopicPrefix+t.RxTopic, t.Queue.TopicPrefix+t.TxTopic)
	<-ctx.Done()
	sub.Close()
	t.Queue.Close()
	return ctx.Err()
}

func (t *Transport) receive(_ string, payload []byte) {
	t.rxLock.Lock()
	defer t.rxLock.Unlock()
	t.rx.Write(payload)
}
