// Package serial implements a device driver exchanging frames with a peer
// radio or a simulator over a packet transport.
//
// Each transport packet carries one frame:
//
//	[dlen][dest...][slen][src...][payload...]
//
// where dlen and slen are single bytes.
package serial

import (
	"context"
	"io"
	"sync"

	"github.com/golang/glog"

	"github.com/robotalks/netapi/pkg/errno"
	"github.com/robotalks/netapi/pkg/framework"
	"github.com/robotalks/netapi/pkg/netdev"
	"github.com/robotalks/netapi/pkg/transport"
)

// EventRx signals a frame waiting in the receive queue.
const EventRx uint32 = 1

// Defaults.
const (
	DefaultMaxPacketSize = 127
	MaxRxQueue           = 8
)

// Frame is a decoded transport packet.
type Frame struct {
	Src, Dest, Payload []byte
}

// EncodeFrame builds the transport packet of a frame. The payload is the
// concatenation of headers and payload.
func EncodeFrame(src, dest []byte, headers [][]byte, payload []byte) []byte {
	size := 2 + len(src) + len(dest) + len(payload)
	for _, h := range headers {
		size += len(h)
	}
	pkt := make([]byte, 0, size)
	pkt = append(pkt, byte(len(dest)))
	pkt = append(pkt, dest...)
	pkt = append(pkt, byte(len(src)))
	pkt = append(pkt, src...)
	for _, h := range headers {
		pkt = append(pkt, h...)
	}
	return append(pkt, payload...)
}

// DecodeFrame parses a transport packet. It fails with EINVAL on truncated
// packets or address lengths other than short or long.
func DecodeFrame(pkt []byte) (f Frame, err error) {
	var dest, src []byte
	if dest, pkt, err = splitAddr(pkt); err != nil {
		return
	}
	if src, pkt, err = splitAddr(pkt); err != nil {
		return
	}
	return Frame{Src: src, Dest: dest, Payload: pkt}, nil
}

func splitAddr(pkt []byte) ([]byte, []byte, error) {
	if len(pkt) < 1 {
		return nil, nil, errno.EINVAL
	}
	l := int(pkt[0])
	if l != netdev.MaxShortAddrLen && l != netdev.MaxLongAddrLen || len(pkt) < 1+l {
		return nil, nil, errno.EINVAL
	}
	return pkt[1 : 1+l], pkt[1+l:], nil
}

// Device is the driver. Run must be running for frames to be received.
type Device struct {
	rw        transport.PacketReadWriter
	options   *netdev.OptionStore
	callbacks netdev.Callbacks

	lock    sync.Mutex
	poster  netdev.EventPoster
	state   netdev.State
	rxQueue []Frame
	dropped int
}

// New creates a device over rw with the given addresses.
func New(rw transport.PacketReadWriter, short, long []byte) *Device {
	d := &Device{rw: rw, options: netdev.NewOptionStore()}
	d.options.
		Define(netdev.ParamChannel, 2, netdev.Uint16(11)).
		Define(netdev.ParamAddress, netdev.MaxShortAddrLen, short).
		Define(netdev.ParamAddressLong, netdev.MaxLongAddrLen, long).
		Define(netdev.ParamNID, 2, netdev.Uint16(0xabcd)).
		Define(netdev.ParamMaxPacketSize, 2, netdev.Uint16(DefaultMaxPacketSize)).
		Define(netdev.ParamSrcLen, 2, netdev.Uint16(uint16(len(short))))
	return d
}

// Name implements framework.Named.
func (d *Device) Name() string {
	return "serial"
}

// BindEvents implements netdev.EventSource.
func (d *Device) BindEvents(p netdev.EventPoster) {
	d.lock.Lock()
	d.poster = p
	d.lock.Unlock()
}

// Init implements netdev.Driver.
func (d *Device) Init() error {
	return d.SetState(netdev.StateIdle)
}

// Run reads frames from the transport until ctx is done or the transport
// fails. Frames arriving while the device is off or asleep are dropped.
func (d *Device) Run(ctx context.Context) error {
	read := func() error {
		for {
			pkt, err := d.rw.ReadPacket()
			if err != nil {
				return err
			}
			d.receive(pkt)
		}
	}
	if closer, ok := d.rw.(io.Closer); ok {
		return framework.RunWithContextCloser(ctx, closer, read)
	}
	return framework.RunWithContext(ctx, read)
}

func (d *Device) receive(pkt []byte) {
	f, err := DecodeFrame(pkt)
	if err != nil {
		glog.Warningf("serial: malformed frame of %d bytes dropped", len(pkt))
		return
	}
	d.lock.Lock()
	if d.state == netdev.StateOff || d.state == netdev.StateSleep || len(d.rxQueue) >= MaxRxQueue {
		d.dropped++
		d.lock.Unlock()
		glog.V(2).Infof("serial: frame dropped in state %s", d.State())
		return
	}
	d.rxQueue = append(d.rxQueue, f)
	poster := d.poster
	d.lock.Unlock()
	if poster != nil {
		poster.PostEvent(EventRx)
	}
}

// Dropped returns the number of inbound frames dropped.
func (d *Device) Dropped() int {
	d.lock.Lock()
	defer d.lock.Unlock()
	return d.dropped
}

// Send implements netdev.Driver.
func (d *Device) Send(dest []byte, headers [][]byte, payload []byte) (int, error) {
	switch d.State() {
	case netdev.StateOff, netdev.StateSleep:
		return 0, errno.EIO
	}
	size := len(payload)
	for _, h := range headers {
		size += len(h)
	}
	if size > int(netdev.AsUint16(d.options.Value(netdev.ParamMaxPacketSize))) {
		return 0, errno.EMSGSIZE
	}
	src := d.options.Value(netdev.ParamAddress)
	if len(dest) == netdev.MaxLongAddrLen {
		src = d.options.Value(netdev.ParamAddressLong)
	}
	if err := d.rw.WritePacket(EncodeFrame(src, dest, headers, payload)); err != nil {
		glog.Errorf("serial: write error: %v", err)
		return 0, errno.EIO
	}
	return size, nil
}

// HandleEvent implements netdev.Driver.
func (d *Device) HandleEvent(value uint32) {
	if value != EventRx {
		glog.Warningf("serial: unknown event %d", value)
		return
	}
	d.lock.Lock()
	if len(d.rxQueue) == 0 {
		d.lock.Unlock()
		return
	}
	f := d.rxQueue[0]
	d.rxQueue = d.rxQueue[1:]
	d.lock.Unlock()
	res := d.callbacks.Deliver(d, f.Src, f.Dest, f.Payload)
	glog.V(2).Infof("serial: %d byte frame delivered: %d", len(f.Payload), res)
}

// AddReceiveCallback implements netdev.Driver.
func (d *Device) AddReceiveCallback(r netdev.Receiver) error {
	return d.callbacks.Add(r)
}

// RemoveReceiveCallback implements netdev.Driver.
func (d *Device) RemoveReceiveCallback(r netdev.Receiver) error {
	d.callbacks.Remove(r)
	return nil
}

// GetOption implements netdev.Driver.
func (d *Device) GetOption(p netdev.Param, out []byte) (int, error) {
	return d.options.Get(p, out)
}

// SetOption implements netdev.Driver.
func (d *Device) SetOption(p netdev.Param, in []byte) error {
	return d.options.Set(p, in)
}

// State implements netdev.Driver.
func (d *Device) State() netdev.State {
	d.lock.Lock()
	defer d.lock.Unlock()
	return d.state
}

// SetState implements netdev.Driver.
func (d *Device) SetState(s netdev.State) error {
	if !s.IsValid() {
		return errno.EINVAL
	}
	d.lock.Lock()
	d.state = s
	d.lock.Unlock()
	return nil
}
