package sh

import (
	"context"
	"sync"

	"github.com/golang/glog"

	"github.com/robotalks/netapi/pkg/env"
	"github.com/robotalks/netapi/pkg/errno"
	"github.com/robotalks/netapi/pkg/netapi"
)

// Printer is where the monitor prints frames.
type Printer interface {
	Printf(format string, args ...interface{})
}

// Monitor is a recipient task printing received frames.
type Monitor struct {
	task *netapi.Task
	out  Printer

	lock    sync.Mutex
	consume int
	frames  int
}

// ConsumeAll makes the monitor consume whatever it is offered.
const ConsumeAll = -1

// NewMonitor spawns the monitor task.
func NewMonitor(table *netapi.Table, out Printer) *Monitor {
	return &Monitor{
		task:    table.Spawn("monitor", 1),
		out:     out,
		consume: ConsumeAll,
	}
}

// PID returns the task id.
func (m *Monitor) PID() netapi.PID {
	return m.task.PID()
}

// Name implements framework.Named.
func (m *Monitor) Name() string {
	return m.task.Name()
}

// SetConsume sets how many bytes are acknowledged per frame. A negative
// value other than ConsumeAll is returned as an error code.
func (m *Monitor) SetConsume(n int) {
	m.lock.Lock()
	m.consume = n
	m.lock.Unlock()
}

// Frames returns the number of frames printed.
func (m *Monitor) Frames() int {
	m.lock.Lock()
	defer m.lock.Unlock()
	return m.frames
}

// Run implements framework.Runnable.
func (m *Monitor) Run(ctx context.Context) error {
	for {
		e, err := m.task.Receive(ctx)
		if err != nil {
			return err
		}
		req, ok := e.Msg.(*netapi.DataRequest)
		if !ok || req.Op != netapi.KindReceive {
			e.Ack(-int(errno.ENOTSUP))
			continue
		}
		e.Ack(m.receive(req))
	}
}

func (m *Monitor) receive(req *netapi.DataRequest) int {
	m.lock.Lock()
	m.frames++
	n := m.consume
	m.lock.Unlock()
	if n == ConsumeAll || n > len(req.Data) {
		n = len(req.Data)
	}
	m.out.Printf("RX %s > %s [%d] %s => %d\n",
		env.FormatAddress(req.Src), env.FormatAddress(req.Dest), len(req.Data), env.FormatAddress(req.Data), n)
	glog.V(2).Infof("monitor: %d bytes consumed", n)
	return n
}
