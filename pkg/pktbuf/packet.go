// Package pktbuf represents a network frame as one payload chunk plus an
// ordered list of header chunks, all carved from an arena.
package pktbuf

import (
	"io"

	"github.com/robotalks/netapi/pkg/arena"
	"github.com/robotalks/netapi/pkg/errno"
)

// HeaderID is a handle to a header inside one Packet.
type HeaderID uint16

type header struct {
	id    HeaderID
	chunk *arena.Chunk
}

// Packet is a payload and a header list. Headers are kept outermost first:
// the most recently added header is at the head.
type Packet struct {
	arena   *arena.Arena
	payload *arena.Chunk
	headers []header
	nextID  HeaderID
}

// Alloc creates a Packet with an n byte zeroed payload.
func Alloc(a *arena.Arena, n int) (*Packet, error) {
	c, err := a.Alloc(n)
	if err != nil {
		return nil, err
	}
	buf := c.Bytes()
	for i := range buf {
		buf[i] = 0
	}
	return &Packet{arena: a, payload: c}, nil
}

// New creates a Packet with a copy of payload.
func New(a *arena.Arena, payload []byte) (*Packet, error) {
	c, err := a.Insert(payload)
	if err != nil {
		return nil, err
	}
	return &Packet{arena: a, payload: c}, nil
}

// Arena returns the arena the packet is allocated from.
func (p *Packet) Arena() *arena.Arena {
	return p.arena
}

// Payload returns the payload bytes.
func (p *Packet) Payload() []byte {
	return p.payload.Bytes()
}

// ResizePayload grows or shrinks the payload keeping its prefix.
func (p *Packet) ResizePayload(n int) error {
	_, err := p.arena.Realloc(p.payload, n)
	return err
}

// AddHeader copies data into a new header at the head of the list.
func (p *Packet) AddHeader(data []byte) (HeaderID, error) {
	c, err := p.arena.Insert(data)
	if err != nil {
		return 0, err
	}
	p.nextID++
	h := header{id: p.nextID, chunk: c}
	p.headers = append(p.headers, header{})
	copy(p.headers[1:], p.headers)
	p.headers[0] = h
	return h.id, nil
}

// RemoveHeader detaches and releases the header id.
func (p *Packet) RemoveHeader(id HeaderID) error {
	for i, h := range p.headers {
		if h.id == id {
			p.headers = append(p.headers[:i], p.headers[i+1:]...)
			h.chunk.Release()
			return nil
		}
	}
	return errno.ENOENT
}

// RemoveFirstHeader detaches the outermost header. It returns false when
// there are no headers.
func (p *Packet) RemoveFirstHeader() bool {
	if len(p.headers) == 0 {
		return false
	}
	p.RemoveHeader(p.headers[0].id)
	return true
}

// Headers lists header handles outermost first.
func (p *Packet) Headers() []HeaderID {
	ids := make([]HeaderID, len(p.headers))
	for i, h := range p.headers {
		ids[i] = h.id
	}
	return ids
}

// Header returns the bytes of header id, nil if unknown.
func (p *Packet) Header(id HeaderID) []byte {
	for _, h := range p.headers {
		if h.id == id {
			return h.chunk.Bytes()
		}
	}
	return nil
}

// HeaderChain returns header bytes outermost first.
func (p *Packet) HeaderChain() [][]byte {
	chain := make([][]byte, len(p.headers))
	for i, h := range p.headers {
		chain[i] = h.chunk.Bytes()
	}
	return chain
}

// TotalHeaderLen sums the lengths of all headers.
func (p *Packet) TotalHeaderLen() (n int) {
	for _, h := range p.headers {
		n += h.chunk.Len()
	}
	return
}

// TotalLen is the length of the wire image.
func (p *Packet) TotalLen() int {
	return p.TotalHeaderLen() + p.payload.Len()
}

// Hold adds a reference to every chunk of the packet.
func (p *Packet) Hold() {
	for _, h := range p.headers {
		h.chunk.Hold()
	}
	p.payload.Hold()
}

// Release drops a reference from every chunk of the packet.
func (p *Packet) Release() {
	for _, h := range p.headers {
		h.chunk.Release()
	}
	p.payload.Release()
}

// Bytes returns the wire image: headers outermost first, then payload.
func (p *Packet) Bytes() []byte {
	b := make([]byte, 0, p.TotalLen())
	for _, h := range p.headers {
		b = append(b, h.chunk.Bytes()...)
	}
	return append(b, p.payload.Bytes()...)
}

// WriteTo writes the wire image.
func (p *Packet) WriteTo(w io.Writer) (n int64, err error) {
	for _, h := range p.headers {
		var n1 int
		n1, err = w.Write(h.chunk.Bytes())
		if n += int64(n1); err != nil {
			return
		}
	}
	n1, err := w.Write(p.payload.Bytes())
	n += int64(n1)
	return
}
