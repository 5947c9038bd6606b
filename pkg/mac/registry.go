package mac

import (
	"sync"

	"github.com/robotalks/netapi/pkg/errno"
	"github.com/robotalks/netapi/pkg/netapi"
)

// MaxRegistryEntries is the default registry capacity.
const MaxRegistryEntries = 8

// Entry is one registration: frames received by Owner are offered to
// Recipient. Demux is opaque to the MAC task.
type Entry struct {
	Owner     netapi.PID
	Recipient netapi.PID
	Demux     uint32
}

// IsEmpty tells whether the slot is free.
func (e Entry) IsEmpty() bool {
	return e.Owner == netapi.Undefined
}

// Registry is a fixed table of entries shared by MAC tasks. A MAC task
// only changes the entries it owns. Free slots have an Undefined owner and
// entries are never moved.
type Registry struct {
	// Dedup rejects registering a pair that is already present, making the
	// call a successful no-op. When false, every Register takes a slot and
	// duplicates each receive a copy of every frame.
	Dedup bool

	lock    sync.RWMutex
	entries []Entry
}

var (
	defaultRegistry *Registry
	defaultOnce     sync.Once
)

// DefaultRegistry returns the process-wide registry.
func DefaultRegistry() *Registry {
	defaultOnce.Do(func() {
		defaultRegistry = NewRegistry(MaxRegistryEntries)
	})
	return defaultRegistry
}

// NewRegistry creates a registry of capacity slots.
func NewRegistry(capacity int) *Registry {
	return &Registry{entries: make([]Entry, capacity)}
}

// Capacity returns the number of slots.
func (r *Registry) Capacity() int {
	return len(r.entries)
}

// Register stores an entry in the first free slot. It fails with ENOBUFS
// when the table is full, leaving it unchanged.
func (r *Registry) Register(owner, recipient netapi.PID, demux uint32) error {
	if owner == netapi.Undefined || recipient == netapi.Undefined {
		return errno.EINVAL
	}
	e := Entry{Owner: owner, Recipient: recipient, Demux: demux}
	r.lock.Lock()
	defer r.lock.Unlock()
	free := -1
	for i, slot := range r.entries {
		if r.Dedup && slot == e {
			return nil
		}
		if slot.IsEmpty() && free < 0 {
			free = i
		}
	}
	if free < 0 {
		return errno.ENOBUFS
	}
	r.entries[free] = e
	return nil
}

// Unregister clears the first slot holding the entry, undoing one Register.
// A pair registered twice needs two Unregister calls. Unknown entries are
// ignored.
func (r *Registry) Unregister(owner, recipient netapi.PID, demux uint32) {
	e := Entry{Owner: owner, Recipient: recipient, Demux: demux}
	r.lock.Lock()
	defer r.lock.Unlock()
	for i, slot := range r.entries {
		if slot == e {
			r.entries[i] = Entry{}
			return
		}
	}
}

// Entries returns the entries of owner in slot order.
func (r *Registry) Entries(owner netapi.PID) []Entry {
	r.lock.RLock()
	defer r.lock.RUnlock()
	var entries []Entry
	for _, slot := range r.entries {
		if !slot.IsEmpty() && slot.Owner == owner {
			entries = append(entries, slot)
		}
	}
	return entries
}
