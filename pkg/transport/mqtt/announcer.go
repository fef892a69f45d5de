package mqtt

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/golang/glog"
)

// Meta describes a running multiplexer instance.
type Meta struct {
	Name      string `json:"name"`
	Channels  []int  `json:"channels"`
	RPC       string `json:"rpc,omitempty"`
	Websocket string `json:"websocket,omitempty"`
}

// MetaTopic returns the topic of retained instance meta.
func MetaTopic(name string) string {
	return name + "/meta"
}

// Announcer publishes retained Meta while running, and clears it on exit.
// The broker clears it too if the connection is lost.
type Announcer struct {
	Queue *Queue
	Meta  Meta

	metaJSON []byte
}

// NewAnnouncer creates an Announcer.
func NewAnnouncer(brokerURL string, meta Meta) (*Announcer, error) {
	metaJSON, err := json.Marshal(&meta)
	if err != nil {
		return nil, err
	}
	opts, topicPrefix, err := ClientOptionsFromURL(brokerURL)
	if err != nil {
		return nil, err
	}
	opts.SetBinaryWill(topicPrefix+MetaTopic(meta.Name), nil, 1, true)
	if opts.ClientID == "" {
		opts.SetClientID("chanmux:" + meta.Name)
	}
	a := &Announcer{
		Queue:    NewQueue(opts, topicPrefix),
		Meta:     meta,
		metaJSON: metaJSON,
	}
	a.Queue.OnConnect = func(*Queue) { a.announce() }
	return a, nil
}

// Name implements Named.
func (a *Announcer) Name() string {
	return "announcer"
}

// Run implements Runnable.
func (a *Announcer) Run(ctx context.Context) error {
	a.Queue.Connect()
	<-ctx.Done()
	a.Queue.PubWith(MetaTopic(a.Meta.Name), nil, 1, true).WaitTimeout(time.Second)
	a.Queue.Close()
	return ctx.Err()
}

func (a *Announcer) announce() {
	glog.V(1).Infof("announce %s", a.metaJSON)
	a.Queue.PubWith(MetaTopic(a.Meta.Name), a.metaJSON, 1, true)
}

// DefaultDiscoverTimeout defines the default timeout value of discovery.
const DefaultDiscoverTimeout = 500 * time.Millisecond

// Discover collects announced instances until timeout.
func Discover(ctx context.Context, brokerURL string, timeout time.Duration) ([]Meta, error) {
	opts, topicPrefix, err := ClientOptionsFromURL(brokerURL)
	if err != nil {
		return nil, err
	}
	q := NewQueue(opts, topicPrefix)
	resCh := make(chan Meta, 16)
	q.Sub("+/meta", discoverHandler(resCh))
	token := q.Connect()
	token.Wait()
	if err := token.Error(); err != nil {
		return nil, err
	}
	defer q.Close()

	if timeout == 0 {
		timeout = DefaultDiscoverTimeout
	}
	expire := time.After(timeout)
	var res []Meta
	for {
		select {
		case meta := <-resCh:
			res = append(res, meta)
		case <-expire:
			return res, nil
		case <-ctx.Done():
			return res, ctx.Err()
		}
	}
}

func discoverHandler(resCh chan<- Meta) Handler {
	return func(topic string, payload []byte) {
		if len(payload) == 0 {
			return
		}
		var meta Meta
		if err := json.Unmarshal(payload, &meta); err != nil {
			glog.Warningf("invalid meta on %q: %v", topic, err)
			return
		}
		if meta.Name == "" {
			meta.Name = strings.TrimSuffix(topic, "/meta")
		}
		select {
		case resCh <- meta:
		case <-time.After(time.Second):
		}
	}
}
