// Package loopback implements a device that receives what it sends.
package loopback

import (
	"sync"

	"github.com/golang/glog"

	"github.com/robotalks/netapi/pkg/errno"
	"github.com/robotalks/netapi/pkg/netdev"
)

// EventRx signals a frame waiting in the receive queue.
const EventRx uint32 = 1

// DefaultMaxPacketSize is the initial ParamMaxPacketSize.
const DefaultMaxPacketSize = 127

type frame struct {
	src, dest, payload []byte
}

// Device is the loopback driver.
type Device struct {
	options   *netdev.OptionStore
	callbacks netdev.Callbacks
	poster    netdev.EventPoster

	lock    sync.Mutex
	state   netdev.State
	rxQueue []frame
	last    int
}

// New creates a loopback device with the given addresses.
func New(short, long []byte) *Device {
	d := &Device{options: netdev.NewOptionStore()}
	d.options.
		Define(netdev.ParamChannel, 2, netdev.Uint16(11)).
		Define(netdev.ParamAddress, netdev.MaxShortAddrLen, short).
		Define(netdev.ParamAddressLong, netdev.MaxLongAddrLen, long).
		Define(netdev.ParamNID, 2, netdev.Uint16(0xabcd)).
		Define(netdev.ParamTxPower, 2, netdev.Uint16(0)).
		Define(netdev.ParamMaxPacketSize, 2, netdev.Uint16(DefaultMaxPacketSize)).
		Define(netdev.ParamSrcLen, 2, netdev.Uint16(uint16(len(short)))).
		Define(netdev.ParamProtocol, 2, netdev.Uint16(0))
	return d
}

// BindEvents implements netdev.EventSource.
func (d *Device) BindEvents(p netdev.EventPoster) {
	d.lock.Lock()
	d.poster = p
	d.lock.Unlock()
}

// Init implements netdev.Driver.
func (d *Device) Init() error {
	d.lock.Lock()
	d.state = netdev.StateIdle
	d.lock.Unlock()
	return nil
}

// Send implements netdev.Driver. The frame comes back as received data with
// the device's own address as source.
func (d *Device) Send(dest []byte, headers [][]byte, payload []byte) (int, error) {
	if d.State() == netdev.StateOff {
		return 0, errno.EIO
	}
	size := len(payload)
	for _, h := range headers {
		size += len(h)
	}
	if size > int(netdev.AsUint16(d.options.Value(netdev.ParamMaxPacketSize))) {
		return 0, errno.EMSGSIZE
	}
	data := make([]byte, 0, size)
	for _, h := range headers {
		data = append(data, h...)
	}
	data = append(data, payload...)

	src := d.options.Value(netdev.ParamAddress)
	if len(dest) == netdev.MaxLongAddrLen {
		src = d.options.Value(netdev.ParamAddressLong)
	}
	d.Inject(src, append([]byte(nil), dest...), data)
	return size, nil
}

// Inject queues an inbound frame as if it arrived over the air.
func (d *Device) Inject(src, dest, payload []byte) {
	d.lock.Lock()
	d.rxQueue = append(d.rxQueue, frame{src: src, dest: dest, payload: payload})
	poster := d.poster
	d.lock.Unlock()
	if poster == nil || !poster.PostEvent(EventRx) {
		glog.V(3).Info("loopback: no event sink, frame stays queued")
	}
}

// Pending returns the number of queued inbound frames.
func (d *Device) Pending() int {
	d.lock.Lock()
	defer d.lock.Unlock()
	return len(d.rxQueue)
}

// LastResult returns what the receive callbacks reported for the last
// delivered frame.
func (d *Device) LastResult() int {
	d.lock.Lock()
	defer d.lock.Unlock()
	return d.last
}

// HandleEvent implements netdev.Driver.
func (d *Device) HandleEvent(value uint32) {
	if value != EventRx {
		glog.Warningf("loopback: unknown event %d", value)
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

	res := d.callbacks.Deliver(d, f.src, f.dest, f.payload)
	d.lock.Lock()
	d.last = res
	d.lock.Unlock()
	glog.V(2).Infof("loopback: %d byte frame delivered: %d", len(f.payload), res)
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
