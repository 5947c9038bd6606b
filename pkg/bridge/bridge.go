// Package bridge connects a MAC task to a packet transport. Frames the MAC
// task receives are forwarded as wire.Frame events; wire.Transmit commands
// read from the transport are sent through the MAC task.
package bridge

import (
	"context"
	"io"
	"sync"
	"time"

	"github.com/golang/glog"

	"github.com/robotalks/netapi/pkg/arena"
	"github.com/robotalks/netapi/pkg/errno"
	"github.com/robotalks/netapi/pkg/framework"
	"github.com/robotalks/netapi/pkg/netapi"
	"github.com/robotalks/netapi/pkg/pktbuf"
	"github.com/robotalks/netapi/pkg/transport"
	"github.com/robotalks/netapi/pkg/wire"
)

// MailboxSize is the mailbox capacity of a bridge task.
const MailboxSize = 4

// UnregisterTimeout bounds waiting for a MAC task which may have stopped.
const UnregisterTimeout = time.Second

// Bridge is a recipient task. It is a framework.Runnable.
//
// A bridge observes frames: it acknowledges 0 bytes so every bridge of the
// same MAC task gets the whole frame. Set Consume to claim the frame
// instead, leaving nothing to recipients registered after it.
type Bridge struct {
	// Device names the device in forwarded frames.
	Device string
	// Demux is the value registered with the MAC task.
	Demux uint32
	// Consume acknowledges forwarded frames as fully consumed.
	Consume bool

	task  *netapi.Task
	mac   netapi.PID
	arena *arena.Arena
	rw    transport.PacketReadWriter

	sendLock sync.Mutex
}

// New spawns a bridge task in table forwarding between mac and rw.
// Transmit payloads are copied into a.
func New(table *netapi.Table, name string, mac netapi.PID, a *arena.Arena, rw transport.PacketReadWriter) *Bridge {
	return &Bridge{
		Device: name,
		task:   table.Spawn(name, MailboxSize),
		mac:    mac,
		arena:  a,
		rw:     rw,
	}
}

// PID returns the task id.
func (b *Bridge) PID() netapi.PID {
	return b.task.PID()
}

// Name implements framework.Named.
func (b *Bridge) Name() string {
	return b.task.Name()
}

// Run registers with the MAC task and forwards in both directions until
// ctx is done or the transport fails. The registration is withdrawn before
// the task stops answering the MAC task.
func (b *Bridge) Run(ctx context.Context) error {
	defer b.task.Table().Remove(b.PID())
	serveCtx, stopServe := context.WithCancel(context.Background())
	served := make(chan struct{})
	go func() {
		defer close(served)
		b.serve(serveCtx)
	}()
	defer func() {
		stopServe()
		<-served
	}()

	if err := netapi.Register(ctx, b.task, b.mac, b.PID(), b.Demux); err != nil {
		glog.Errorf("bridge %s: register error: %v", b.Name(), err)
		return err
	}
	defer b.unregister()
	glog.Infof("bridge %s: forwarding for mac %d", b.Name(), b.mac)

	if closer, ok := b.rw.(io.Closer); ok {
		return framework.RunWithContextCloser(ctx, closer, func() error { return b.transmitLoop(ctx) })
	}
	return framework.RunWithContext(ctx, func() error { return b.transmitLoop(ctx) })
}

func (b *Bridge) unregister() {
	ctx, cancel := context.WithTimeout(context.Background(), UnregisterTimeout)
	defer cancel()
	if err := netapi.Unregister(ctx, b.task, b.mac, b.PID(), b.Demux); err != nil {
		glog.Warningf("bridge %s: unregister error: %v", b.Name(), err)
	}
}

// serve answers Receive requests of the MAC task.
func (b *Bridge) serve(ctx context.Context) {
	for {
		env, err := b.task.Receive(ctx)
		if err != nil {
			return
		}
		req, ok := env.Msg.(*netapi.DataRequest)
		if !ok || req.Op != netapi.KindReceive {
			env.Ack(-int(errno.ENOTSUP))
			continue
		}
		env.Ack(b.forward(req))
	}
}

func (b *Bridge) forward(req *netapi.DataRequest) int {
	pkt, err := wire.Encode(&wire.Frame{
		Device:  b.Device,
		Src:     req.Src,
		Dest:    req.Dest,
		Payload: req.Data,
	}, 0)
	if err == nil {
		err = b.writePacket(pkt)
	}
	if err != nil {
		glog.Warningf("bridge %s: forward error: %v", b.Name(), err)
		return -int(errno.EIO)
	}
	if b.Consume {
		return len(req.Data)
	}
	return 0
}

func (b *Bridge) writePacket(pkt []byte) error {
	b.sendLock.Lock()
	defer b.sendLock.Unlock()
	return b.rw.WritePacket(pkt)
}

func (b *Bridge) reply(msg wire.Message, seq uint32) error {
	pkt, err := wire.Encode(msg, seq)
	if err != nil {
		return err
	}
	return b.writePacket(pkt)
}

func (b *Bridge) transmitLoop(ctx context.Context) error {
	for {
		data, err := b.rw.ReadPacket()
		if err != nil {
			return err
		}
		typed, err := wire.DecodeTyped(data)
		if err != nil {
			glog.Warningf("bridge %s: bad packet: %v", b.Name(), err)
			continue
		}
		if !typed.IsCommand() {
			continue
		}
		msg, err := typed.Decode()
		if err == nil {
			if tx, ok := msg.(*wire.Transmit); ok {
				err = b.reply(&wire.TransmitAck{Result: int32(b.transmit(ctx, tx))}, typed.Sequence)
			} else {
				err = b.reply(wire.NewCommandErr(wire.ErrNotCommand), typed.Sequence)
			}
		} else {
			err = b.reply(wire.NewCommandErr(err), typed.Sequence)
		}
		if err != nil {
			return err
		}
	}
}

// transmit copies tx into a packet and sends it through the MAC task.
func (b *Bridge) transmit(ctx context.Context, tx *wire.Transmit) int {
	pkt, err := pktbuf.New(b.arena, tx.Payload)
	if err != nil {
		return errno.Result(err)
	}
	defer pkt.Release()
	for i := len(tx.Headers) - 1; i >= 0; i-- {
		if _, err = pkt.AddHeader(tx.Headers[i]); err != nil {
			return errno.Result(err)
		}
	}
	n, err := netapi.Send(ctx, b.task, b.mac, tx.Dest, pkt)
	if err != nil {
		glog.V(2).Infof("bridge %s: transmit error: %v", b.Name(), err)
		return errno.Result(err)
	}
	return n
}
