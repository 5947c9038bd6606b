// Package arena provides the shared, fixed-size byte pool that every
// packet chunk is carved from.
package arena

import (
	"sync"
	"unsafe"

	"github.com/golang/glog"

	"github.com/robotalks/netapi/pkg/errno"
)

// DefaultCapacity is the size in bytes of the process-wide arena.
const DefaultCapacity = 6144

// Chunk is a contiguous, reference counted byte range inside an Arena.
// Its offset may change on Realloc, so never keep the slice returned by
// Bytes across a Realloc.
type Chunk struct {
	arena *Arena
	off   int
	size  int
	refs  int
}

type span struct {
	off  int
	size int
}

// Arena is a fixed capacity byte pool with reference counted chunks.
// All operations are serialized by a single lock.
type Arena struct {
	lock   sync.Mutex
	buf    []byte
	free   []span // address ordered, never adjacent
	chunks map[int]*Chunk
}

var (
	defaultArena *Arena
	defaultOnce  sync.Once
)

// Default returns the process-wide arena, created on first use.
func Default() *Arena {
	defaultOnce.Do(func() {
		defaultArena = New(DefaultCapacity)
	})
	return defaultArena
}

// New creates an Arena of capacity bytes.
func New(capacity int) *Arena {
	a := &Arena{
		buf:    make([]byte, capacity),
		chunks: make(map[int]*Chunk),
	}
	if capacity > 0 {
		a.free = []span{{off: 0, size: capacity}}
	}
	return a
}

// Capacity returns the total size of the arena.
func (a *Arena) Capacity() int {
	return len(a.buf)
}

// Free returns the number of unallocated bytes.
func (a *Arena) Free() (n int) {
	a.lock.Lock()
	defer a.lock.Unlock()
	for _, s := range a.free {
		n += s.size
	}
	return
}

// InUse returns the number of live chunks.
func (a *Arena) InUse() int {
	a.lock.Lock()
	defer a.lock.Unlock()
	return len(a.chunks)
}

// Alloc reserves n contiguous bytes. The returned chunk is held once by
// the caller. It fails with ENOMEM instead of waiting for space.
func (a *Arena) Alloc(n int) (*Chunk, error) {
	if n <= 0 {
		return nil, errno.EINVAL
	}
	a.lock.Lock()
	defer a.lock.Unlock()
	off, ok := a.take(n)
	if !ok {
		return nil, errno.ENOMEM
	}
	c := &Chunk{arena: a, off: off, size: n, refs: 1}
	a.chunks[off] = c
	return c, nil
}

// Insert allocates a chunk and copies data into it.
func (a *Arena) Insert(data []byte) (*Chunk, error) {
	c, err := a.Alloc(len(data))
	if err != nil {
		return nil, err
	}
	a.lock.Lock()
	copy(a.buf[c.off:c.off+c.size], data)
	a.lock.Unlock()
	return c, nil
}

// Realloc resizes c to n bytes. It grows or shrinks in place when
// possible, otherwise moves the chunk keeping the first min(old, n) bytes.
// On failure c is left untouched.
func (a *Arena) Realloc(c *Chunk, n int) (*Chunk, error) {
	if n <= 0 {
		return nil, errno.EINVAL
	}
	a.lock.Lock()
	defer a.lock.Unlock()
	if !a.live(c) {
		return nil, errno.EINVAL
	}
	switch {
	case n == c.size:
	case n < c.size:
		a.give(c.off+n, c.size-n)
		c.size = n
	case a.extend(c.off+c.size, n-c.size):
		c.size = n
	default:
		off, ok := a.take(n)
		if !ok {
			return nil, errno.ENOMEM
		}
		copy(a.buf[off:off+c.size], a.buf[c.off:c.off+c.size])
		delete(a.chunks, c.off)
		a.give(c.off, c.size)
		c.off, c.size = off, n
		a.chunks[off] = c
	}
	return c, nil
}

// CopyInto copies src to dst. When dst is not arena memory it is a plain
// copy bounded by len(dst). When dst points into a chunk, the write must fit
// between dst and the end of that chunk, otherwise EOVERFLOW.
func (a *Arena) CopyInto(dst, src []byte) (int, error) {
	off, ok := a.offsetOf(dst)
	if !ok {
		return copy(dst, src), nil
	}
	a.lock.Lock()
	defer a.lock.Unlock()
	c := a.chunkAt(off)
	if c == nil {
		return 0, errno.EINVAL
	}
	if off+len(src) > c.off+c.size {
		return 0, errno.EOVERFLOW
	}
	return copy(a.buf[off:off+len(src)], src), nil
}

// Contains tells whether p starts inside the arena.
func (a *Arena) Contains(p []byte) bool {
	_, ok := a.offsetOf(p)
	return ok
}

// Hold adds a reference to c.
func (a *Arena) Hold(c *Chunk) error {
	a.lock.Lock()
	defer a.lock.Unlock()
	if !a.live(c) {
		return errno.EINVAL
	}
	c.refs++
	return nil
}

// Release drops a reference to c and reclaims it when none remain.
// It reports whether the chunk was reclaimed.
func (a *Arena) Release(c *Chunk) bool {
	a.lock.Lock()
	defer a.lock.Unlock()
	if !a.live(c) {
		glog.Warning("arena: release of a chunk not held")
		return false
	}
	if c.refs--; c.refs > 0 {
		return false
	}
	delete(a.chunks, c.off)
	a.give(c.off, c.size)
	return true
}

func (a *Arena) live(c *Chunk) bool {
	return c != nil && c.arena == a && c.refs > 0 && a.chunks[c.off] == c
}

func (a *Arena) chunkAt(off int) *Chunk {
	for _, c := range a.chunks {
		if off >= c.off && off < c.off+c.size {
			return c
		}
	}
	return nil
}

func (a *Arena) offsetOf(p []byte) (int, bool) {
	if cap(p) == 0 || len(a.buf) == 0 {
		return 0, false
	}
	base := uintptr(unsafe.Pointer(&a.buf[0]))
	ptr := uintptr(unsafe.Pointer(&p[:1][0]))
	if ptr < base || ptr >= base+uintptr(len(a.buf)) {
		return 0, false
	}
	return int(ptr - base), true
}

// take carves n bytes from the first free span large enough.
func (a *Arena) take(n int) (int, bool) {
	for i := range a.free {
		s := &a.free[i]
		if s.size < n {
			continue
		}
		off := s.off
		s.off += n
		if s.size -= n; s.size == 0 {
			a.free = append(a.free[:i], a.free[i+1:]...)
		}
		return off, true
	}
	return 0, false
}

// extend takes n bytes from a free span starting exactly at off.
func (a *Arena) extend(off, n int) bool {
	for i := range a.free {
		s := &a.free[i]
		if s.off != off {
			continue
		}
		if s.size < n {
			return false
		}
		s.off += n
		if s.size -= n; s.size == 0 {
			a.free = append(a.free[:i], a.free[i+1:]...)
		}
		return true
	}
	return false
}

// give returns [off, off+n) to the free list, merging with neighbours.
func (a *Arena) give(off, n int) {
	i := 0
	for i < len(a.free) && a.free[i].off < off {
		i++
	}
	a.free = append(a.free, span{})
	copy(a.free[i+1:], a.free[i:])
	a.free[i] = span{off: off, size: n}
	if i+1 < len(a.free) && a.free[i].off+a.free[i].size == a.free[i+1].off {
		a.free[i].size += a.free[i+1].size
		a.free = append(a.free[:i+1], a.free[i+2:]...)
	}
	if i > 0 && a.free[i-1].off+a.free[i-1].size == a.free[i].off {
		a.free[i-1].size += a.free[i].size
		a.free = append(a.free[:i], a.free[i+1:]...)
	}
}

// Len returns the size of the chunk.
func (c *Chunk) Len() int {
	c.arena.lock.Lock()
	defer c.arena.lock.Unlock()
	return c.size
}

// Bytes returns the chunk's memory. The slice is valid until the chunk is
// reallocated or reclaimed.
func (c *Chunk) Bytes() []byte {
	c.arena.lock.Lock()
	defer c.arena.lock.Unlock()
	return c.arena.buf[c.off : c.off+c.size : c.off+c.size]
}

// Hold is a shortcut of Arena.Hold.
func (c *Chunk) Hold() error {
	return c.arena.Hold(c)
}

// Release is a shortcut of Arena.Release.
func (c *Chunk) Release() bool {
	return c.arena.Release(c)
}
