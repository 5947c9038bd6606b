package mqtt

import (
	"context"
	"io"

	"github.com/golang/glog"
)

// Topic suffixes used by devices.
const (
	TopicRx = "/rx"
	TopicTx = "/tx"
)

// DefaultBacklog is the number of inbound packets buffered before new ones
// are dropped.
const DefaultBacklog = 16

// ReadWriter implements transport.PacketReadWriter.
type ReadWriter struct {
	Queue    *Queue
	SubTopic string
	PubTopic string

	packetCh chan []byte
	done     chan struct{}
}

// NewPacketReadWriter creates the ReadWriter.
func NewPacketReadWriter(q *Queue) *ReadWriter {
	return &ReadWriter{
		Queue:    q,
		packetCh: make(chan []byte, DefaultBacklog),
		done:     make(chan struct{}),
	}
}

// WithTopics specifies the topics.
func (p *ReadWriter) WithTopics(sub, pub string) *ReadWriter {
	p.SubTopic, p.PubTopic = sub, pub
	return p
}

// ForDevice sets topics for the side serving a device:
// SubTopic = device/tx
// PubTopic = device/rx
func (p *ReadWriter) ForDevice(device string) *ReadWriter {
	return p.WithTopics(device+TopicTx, device+TopicRx)
}

// ForClient sets topics for the side using a remote device:
// SubTopic = device/rx
// PubTopic = device/tx
func (p *ReadWriter) ForClient(device string) *ReadWriter {
	return p.WithTopics(device+TopicRx, device+TopicTx)
}

// ReadPacket implements PacketReader. It returns io.EOF once Run is done.
func (p *ReadWriter) ReadPacket() ([]byte, error) {
	select {
	case pkt := <-p.packetCh:
		return pkt, nil
	case <-p.done:
		return nil, io.EOF
	}
}

// WritePacket implements PacketWriter.
func (p *ReadWriter) WritePacket(pkt []byte) error {
	token := p.Queue.Pub(p.PubTopic, pkt)
	token.Wait()
	return token.Error()
}

// Name implements framework.Named.
func (p *ReadWriter) Name() string {
	return "mqtt:" + p.SubTopic
}

// Run implements framework.Runnable.
func (p *ReadWriter) Run(ctx context.Context) error {
	sub := p.Queue.Sub(p.SubTopic, p.handleMsg)
	defer sub.Close()
	defer close(p.done)
	<-ctx.Done()
	return ctx.Err()
}

func (p *ReadWriter) handleMsg(topic string, payload []byte) {
	select {
	case p.packetCh <- payload:
	default:
		glog.Warningf("mqtt: backlog full, packet on %q dropped", topic)
	}
}
