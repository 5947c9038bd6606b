package mqtt

import (
	"context"
	"encoding/json"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/golang/glog"
)

// TopicMeta is the suffix of the retained topic describing a device.
const TopicMeta = "/meta"

// Announcer keeps the metadata of a device retained on the broker while
// the process is connected. The broker clears it through the will when
// the connection is lost.
type Announcer struct {
	Queue  *Queue
	Device string

	meta []byte
}

// NewAnnouncer creates a Queue whose connection announces meta for device.
// Connect the returned Announcer's Queue before use.
func NewAnnouncer(brokerURL, device string, meta interface{}) (*Announcer, error) {
	data, err := json.Marshal(meta)
	if err != nil {
		return nil, err
	}
	opts, topicPrefix, err := ClientOptionsFromURL(brokerURL)
	if err != nil {
		return nil, err
	}
	SetMetaWill(opts, topicPrefix, device)
	if opts.ClientID == "" {
		opts.SetClientID("netapi:" + device)
	}
	a := &Announcer{Queue: NewQueue(opts, topicPrefix), Device: device, meta: data}
	a.Queue.OnConnect = func(*Queue) { a.publish(a.meta) }
	return a, nil
}

// SetMetaWill makes the broker clear the meta topic of device.
func SetMetaWill(opts *paho.ClientOptions, topicPrefix, device string) {
	opts.SetBinaryWill(topicPrefix+device+TopicMeta, nil, 1, true)
}

func (a *Announcer) publish(data []byte) {
	token := a.Queue.PubWith(a.Device+TopicMeta, data, 1, true)
	go func() {
		if token.Wait(); token.Error() != nil {
			glog.Warningf("mqtt: announce %s error: %v", a.Device, token.Error())
		}
	}()
}

// Name implements framework.Named.
func (a *Announcer) Name() string {
	return "mqtt:" + a.Device + TopicMeta
}

// Run implements framework.Runnable. It withdraws the meta and disconnects
// when ctx is done.
func (a *Announcer) Run(ctx context.Context) error {
	<-ctx.Done()
	a.Queue.PubWith(a.Device+TopicMeta, nil, 1, true).Wait()
	a.Queue.Close()
	return ctx.Err()
}
