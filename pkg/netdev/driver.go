// Package netdev defines the contract between the MAC task and a network
// device driver.
package netdev

// Capacity limits.
const (
	// MaxCallbacks is the number of receive callback slots per device.
	MaxCallbacks = 4
	// MaxShortAddrLen is the length of a short link-layer address.
	MaxShortAddrLen = 2
	// MaxLongAddrLen is the length of a long link-layer address.
	MaxLongAddrLen = 8
)

// State is the run state of a device.
type State int

// Device states.
const (
	StateOff State = iota
	StateSleep
	StateIdle
	StateRxOnly
	StateTxBurst
)

var stateNames = []string{"off", "sleep", "idle", "rx-only", "tx-burst"}

func (s State) String() string {
	if s >= 0 && int(s) < len(stateNames) {
		return stateNames[s]
	}
	return "unknown"
}

// IsValid tells whether s is a known state.
func (s State) IsValid() bool {
	return s >= StateOff && s <= StateTxBurst
}

// Receiver is notified of inbound frames. It returns the number of payload
// bytes consumed or a negative error code.
type Receiver interface {
	Receive(dev Driver, src, dest, payload []byte) int
}

// ReceiveFunc is the func form of Receiver. Func values are not
// comparable, use a pointer to ReceiveFunc when it must be removed later.
type ReceiveFunc func(dev Driver, src, dest, payload []byte) int

// Receive implements Receiver.
func (f *ReceiveFunc) Receive(dev Driver, src, dest, payload []byte) int {
	return (*f)(dev, src, dest, payload)
}

// Driver is implemented by network device drivers.
type Driver interface {
	// Init brings the device up.
	Init() error
	// Send transmits headers (outermost first) and payload to dest and
	// returns the number of bytes sent.
	Send(dest []byte, headers [][]byte, payload []byte) (int, error)
	// AddReceiveCallback registers r. Adding twice is a no-op.
	AddReceiveCallback(r Receiver) error
	// RemoveReceiveCallback unregisters r. Unknown receivers are ignored.
	RemoveReceiveCallback(r Receiver) error
	// GetOption copies the value of p into out and returns its length.
	GetOption(p Param, out []byte) (int, error)
	// SetOption sets the value of p.
	SetOption(p Param, in []byte) error
	// State returns the run state.
	State() State
	// SetState changes the run state.
	SetState(State) error
	// HandleEvent processes an event posted by the device. It runs in the
	// context of the task serving the device.
	HandleEvent(value uint32)
}

// EventPoster queues a device event without blocking.
type EventPoster interface {
	PostEvent(value uint32) bool
}

// EventSource is implemented by drivers raising events asynchronously.
// The serving task binds itself before Init.
type EventSource interface {
	BindEvents(EventPoster)
}
