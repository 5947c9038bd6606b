// Package mac implements the link-layer control task moving frames between
// a device driver and the upper-layer tasks registered with it.
package mac

import (
	"context"

	"github.com/golang/glog"

	"github.com/robotalks/netapi/pkg/errno"
	"github.com/robotalks/netapi/pkg/netapi"
	"github.com/robotalks/netapi/pkg/netdev"
)

// MailboxSize is the mailbox capacity of a MAC task.
const MailboxSize = 16

// Task serves one device. It is a framework.Runnable.
type Task struct {
	task *netapi.Task
	dev  netdev.Driver
	reg  *Registry

	// context of Run, used by the receive fan-out.
	ctx context.Context
}

// New spawns the task in table. Nothing happens until Run.
func New(table *netapi.Table, name string, dev netdev.Driver, reg *Registry) *Task {
	return &Task{
		task: table.Spawn(name, MailboxSize),
		dev:  dev,
		reg:  reg,
		ctx:  context.Background(),
	}
}

// PID returns the task id.
func (t *Task) PID() netapi.PID {
	return t.task.PID()
}

// Name implements framework.Named.
func (t *Task) Name() string {
	return t.task.Name()
}

// Device returns the served device.
func (t *Task) Device() netdev.Driver {
	return t.dev
}

// Registry returns the registry the task writes its entries to.
func (t *Task) Registry() *Registry {
	return t.reg
}

// PostEvent implements netdev.EventPoster.
func (t *Task) PostEvent(value uint32) bool {
	return t.task.Post(&netapi.Event{Value: value})
}

// Run initializes the device and serves the mailbox until ctx is done.
func (t *Task) Run(ctx context.Context) error {
	if src, ok := t.dev.(netdev.EventSource); ok {
		src.BindEvents(t)
	}
	if err := t.dev.Init(); err != nil {
		glog.Errorf("mac %s: device init error: %v", t.Name(), err)
		return err
	}
	if err := t.dev.AddReceiveCallback(t); err != nil {
		return err
	}
	defer t.dev.RemoveReceiveCallback(t)
	t.ctx = ctx
	glog.Infof("mac %s: running as %d", t.Name(), t.PID())
	for {
		env, err := t.task.Receive(ctx)
		if err != nil {
			return err
		}
		t.dispatch(&env)
	}
}

func (t *Task) dispatch(env *netapi.Envelope) {
	switch m := env.Msg.(type) {
	case *netapi.Event:
		t.dev.HandleEvent(m.Value)
	case *netapi.DataRequest:
		if m.Op == netapi.KindSend {
			env.Ack(t.send(m))
		} else {
			env.Ack(-int(errno.ENOTSUP))
		}
	case *netapi.OptionRequest:
		switch m.Op {
		case netapi.KindGetOption:
			env.Ack(t.getOption(netdev.Param(m.Param), m.Data))
		case netapi.KindSetOption:
			env.Ack(errno.Result(t.setOption(netdev.Param(m.Param), m.Data)))
		default:
			env.Ack(-int(errno.ENOTSUP))
		}
	case *netapi.RegRequest:
		switch m.Op {
		case netapi.KindRegister:
			err := t.reg.Register(t.PID(), m.Recipient, m.Demux)
			glog.V(2).Infof("mac %s: register %d demux=%d: %v", t.Name(), m.Recipient, m.Demux, err)
			env.Ack(errno.Result(err))
		case netapi.KindUnregister:
			t.reg.Unregister(t.PID(), m.Recipient, m.Demux)
			env.Ack(0)
		default:
			env.Ack(-int(errno.ENOTSUP))
		}
	case *netapi.RecipientsRequest:
		env.Ack(t.recipients(m.Out))
	default:
		env.Ack(-int(errno.ENOTSUP))
	}
}

func (t *Task) send(m *netapi.DataRequest) int {
	if m.Packet == nil {
		return -int(errno.EINVAL)
	}
	if l := len(m.Dest); l != netdev.MaxShortAddrLen && l != netdev.MaxLongAddrLen {
		return -int(errno.EAFNOSUPPORT)
	}
	size := m.Packet.TotalLen()
	if size > m.Packet.Arena().Capacity() {
		return -int(errno.EMSGSIZE)
	}
	buf := make([]byte, 2)
	if n, err := t.dev.GetOption(netdev.ParamMaxPacketSize, buf); err == nil {
		if max := int(netdev.AsUint16(buf[:n])); max > 0 && size > max {
			return -int(errno.EMSGSIZE)
		}
	}
	m.Packet.Hold()
	defer m.Packet.Release()
	n, err := t.dev.Send(m.Dest, m.Packet.HeaderChain(), m.Packet.Payload())
	if err != nil {
		glog.V(2).Infof("mac %s: send error: %v", t.Name(), err)
		return errno.Result(err)
	}
	return n
}

func (t *Task) getOption(p netdev.Param, out []byte) int {
	if p == netdev.ParamState {
		if len(out) < 1 {
			return -int(errno.EOVERFLOW)
		}
		out[0] = byte(t.dev.State())
		return 1
	}
	n, err := t.dev.GetOption(p, out)
	if err != nil {
		return errno.Result(err)
	}
	return n
}

func (t *Task) setOption(p netdev.Param, in []byte) error {
	if p != netdev.ParamState {
		return t.dev.SetOption(p, in)
	}
	switch {
	case len(in) == 0:
		return errno.EINVAL
	case len(in) > 1:
		return errno.EOVERFLOW
	}
	return t.dev.SetState(netdev.State(in[0]))
}

func (t *Task) recipients(out []netapi.Recipient) int {
	entries := t.reg.Entries(t.PID())
	if len(out) < len(entries) {
		return -int(errno.EOVERFLOW)
	}
	for i, e := range entries {
		out[i] = netapi.Recipient{PID: e.Recipient, Demux: e.Demux}
	}
	return len(entries)
}

// Receive implements netdev.Receiver. The device calls it from the task's
// own context while handling an event.
//
// The payload is offered to each registered recipient in turn, each one
// getting what the previous ones left. Passes repeat until everything is
// consumed or a pass consumes nothing. A recipient failing aborts the
// delivery with ECANCELED.
func (t *Task) Receive(dev netdev.Driver, src, dest, payload []byte) int {
	offset := 0
	for offset < len(payload) {
		progressed := false
		for _, e := range t.reg.Entries(t.PID()) {
			n, err := netapi.Receive(t.ctx, t.task, e.Recipient, src, dest, payload[offset:])
			if err != nil {
				glog.V(2).Infof("mac %s: recipient %d failed: %v", t.Name(), e.Recipient, err)
				return -int(errno.ECANCELED)
			}
			if rest := len(payload) - offset; n > rest {
				n = rest
			}
			if n > 0 {
				offset += n
				progressed = true
			}
			if offset >= len(payload) {
				break
			}
		}
		if !progressed {
			break
		}
	}
	return offset
}
