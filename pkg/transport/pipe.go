package transport

import (
	"io"
	"sync"
)

// PipeEnd is one side of an in-process packet pipe.
type PipeEnd struct {
	rx <-chan []byte
	tx chan<- []byte

	done      chan struct{}
	closeOnce *sync.Once
}

// Pipe creates two connected ends. Packets written to one end are read from
// the other in order. Closing either end closes both.
func Pipe(bufSize int) (*PipeEnd, *PipeEnd) {
	ab, ba := make(chan []byte, bufSize), make(chan []byte, bufSize)
	done, once := make(chan struct{}), &sync.Once{}
	return &PipeEnd{rx: ba, tx: ab, done: done, closeOnce: once},
		&PipeEnd{rx: ab, tx: ba, done: done, closeOnce: once}
}

// ReadPacket implements PacketReader.
func (p *PipeEnd) ReadPacket() ([]byte, error) {
	select {
	case pkt := <-p.rx:
		return pkt, nil
	case <-p.done:
		return nil, io.EOF
	}
}

// WritePacket implements PacketWriter. The packet is copied.
func (p *PipeEnd) WritePacket(pkt []byte) error {
	select {
	case <-p.done:
		return io.ErrClosedPipe
	default:
	}
	select {
	case p.tx <- append([]byte(nil), pkt...):
		return nil
	case <-p.done:
		return io.ErrClosedPipe
	}
}

// Close implements io.Closer.
func (p *PipeEnd) Close() error {
	p.closeOnce.Do(func() { close(p.done) })
	return nil
}
