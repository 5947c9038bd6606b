// Package stream carries packets over a byte stream such as a TCP
// connection or a serial port.
package stream

import (
	"encoding/binary"
	"fmt"
	"io"
	"sync"
)

// DefaultMaxPacketSize bounds the length prefix accepted by ReadPacket.
const DefaultMaxPacketSize = 64 * 1024

// ReadWriter implements transport.PacketReadWriter.
// Each packet is prefixed by 4-byte (little-endian) indicate the length.
type ReadWriter struct {
	Stream        io.ReadWriter
	MaxPacketSize int

	writeLock sync.Mutex
}

// New creates a ReadWriter with io.ReadWriter.
func New(s io.ReadWriter) *ReadWriter {
	return &ReadWriter{Stream: s, MaxPacketSize: DefaultMaxPacketSize}
}

// ReadPacket implements PacketReader.
func (p *ReadWriter) ReadPacket() ([]byte, error) {
	var size uint32
	if err := binary.Read(p.Stream, binary.LittleEndian, &size); err != nil {
		return nil, err
	}
	if p.MaxPacketSize > 0 && int(size) > p.MaxPacketSize {
		return nil, fmt.Errorf("packet of %d bytes exceeds limit %d", size, p.MaxPacketSize)
	}
	pkt := make([]byte, size)
	_, err := io.ReadFull(p.Stream, pkt)
	return pkt, err
}

// WritePacket implements PacketWriter. Concurrent writers do not interleave.
func (p *ReadWriter) WritePacket(pkt []byte) error {
	buf := make([]byte, 4+len(pkt))
	binary.LittleEndian.PutUint32(buf, uint32(len(pkt)))
	copy(buf[4:], pkt)
	p.writeLock.Lock()
	defer p.writeLock.Unlock()
	_, err := p.Stream.Write(buf)
	return err
}

// Close closes the underlying stream if it is an io.Closer.
func (p *ReadWriter) Close() error {
	if closer, ok := p.Stream.(io.Closer); ok {
		return closer.Close()
	}
	return nil
}
