package bridge

import (
	"context"
	"io"
	"sync"

	"github.com/golang/glog"

	"github.com/robotalks/netapi/pkg/errno"
	"github.com/robotalks/netapi/pkg/transport"
	"github.com/robotalks/netapi/pkg/wire"
)

// FrameBacklog is the number of frames a Client buffers for its reader.
const FrameBacklog = 16

// Client is the remote end of a Bridge. Run must be running for Transmit
// to complete.
type Client struct {
	rw     transport.PacketReadWriter
	frames chan *wire.Frame

	lock    sync.Mutex
	seq     uint32
	pending map[uint32]chan wire.Message
	closed  bool

	sendLock sync.Mutex
}

// NewClient creates a Client over rw.
func NewClient(rw transport.PacketReadWriter) *Client {
	return &Client{
		rw:      rw,
		frames:  make(chan *wire.Frame, FrameBacklog),
		pending: make(map[uint32]chan wire.Message),
	}
}

// Frames delivers the frames forwarded by the bridge. It is closed when
// Run returns.
func (c *Client) Frames() <-chan *wire.Frame {
	return c.frames
}

// Transmit sends tx through the remote device and waits for the result.
func (c *Client) Transmit(ctx context.Context, tx *wire.Transmit) (int, error) {
	c.lock.Lock()
	if c.closed {
		c.lock.Unlock()
		return 0, io.ErrClosedPipe
	}
	c.seq++
	if c.seq == 0 {
		c.seq++
	}
	seq, result := c.seq, make(chan wire.Message, 1)
	c.pending[seq] = result
	c.lock.Unlock()
	defer c.forget(seq)

	pkt, err := wire.Encode(tx, seq)
	if err != nil {
		return 0, err
	}
	c.sendLock.Lock()
	err = c.rw.WritePacket(pkt)
	c.sendLock.Unlock()
	if err != nil {
		return 0, err
	}

	select {
	case msg, ok := <-result:
		if !ok {
			return 0, io.EOF
		}
		switch m := msg.(type) {
		case *wire.TransmitAck:
			if m.Result < 0 {
				return 0, errno.FromResult(int(m.Result))
			}
			return int(m.Result), nil
		case *wire.CommandErr:
			return 0, m
		}
		return 0, errno.ENOMSG
	case <-ctx.Done():
		return 0, ctx.Err()
	}
}

func (c *Client) forget(seq uint32) {
	c.lock.Lock()
	delete(c.pending, seq)
	c.lock.Unlock()
}

// Run reads from the transport until it fails. Pending transmits fail
// with io.EOF.
func (c *Client) Run(ctx context.Context) error {
	defer c.close()
	for {
		data, err := c.rw.ReadPacket()
		if err != nil {
			return err
		}
		typed, err := wire.DecodeTyped(data)
		if err != nil {
			glog.Warningf("bridge client: bad packet: %v", err)
			continue
		}
		msg, err := typed.Decode()
		if err != nil {
			glog.Warningf("bridge client: %v", err)
			continue
		}
		if f, ok := msg.(*wire.Frame); ok {
			select {
			case c.frames <- f:
			default:
				glog.Warningf("bridge client: backlog full, frame dropped")
			}
			continue
		}
		c.lock.Lock()
		if result := c.pending[typed.Sequence]; result != nil {
			delete(c.pending, typed.Sequence)
			result <- msg
		}
		c.lock.Unlock()
	}
}

func (c *Client) close() {
	c.lock.Lock()
	defer c.lock.Unlock()
	c.closed = true
	for seq, result := range c.pending {
		close(result)
		delete(c.pending, seq)
	}
	close(c.frames)
}
