package netdev

import (
	"reflect"

	"github.com/robotalks/netapi/pkg/errno"
)

// Callbacks is a fixed table of receive callbacks.
type Callbacks struct {
	slots [MaxCallbacks]Receiver
}

// Add puts r into a free slot. It is idempotent and fails with ENOBUFS
// when all slots are taken. Receivers are matched with ==, so r must be of a
// comparable type, usually a pointer; EINVAL otherwise.
func (c *Callbacks) Add(r Receiver) error {
	if r == nil || !reflect.TypeOf(r).Comparable() {
		return errno.EINVAL
	}
	free := -1
	for i, s := range c.slots {
		if s == r {
			return nil
		}
		if s == nil && free < 0 {
			free = i
		}
	}
	if free < 0 {
		return errno.ENOBUFS
	}
	c.slots[free] = r
	return nil
}

// Remove clears the slot of r if present. Only comparable receivers are
// ever stored, so == never panics here.
func (c *Callbacks) Remove(r Receiver) {
	for i, s := range c.slots {
		if s == r {
			c.slots[i] = nil
		}
	}
}

// Len counts the registered callbacks.
func (c *Callbacks) Len() (n int) {
	for _, s := range c.slots {
		if s != nil {
			n++
		}
	}
	return
}

// Deliver offers a frame to every callback in slot order. It stops at the
// first negative result and returns it, otherwise the largest number of
// bytes any callback consumed.
func (c *Callbacks) Deliver(dev Driver, src, dest, payload []byte) int {
	consumed := 0
	for _, s := range c.slots {
		if s == nil {
			continue
		}
		n := s.Receive(dev, src, dest, payload)
		if n < 0 {
			return n
		}
		if n > consumed {
			consumed = n
		}
	}
	return consumed
}
