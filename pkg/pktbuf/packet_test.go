package pktbuf

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/robotalks/netapi/pkg/arena"
	"github.com/robotalks/netapi/pkg/errno"
)

func requireLenInvariant(t *testing.T, p *Packet) {
	sum := 0
	for _, h := range p.HeaderChain() {
		sum += len(h)
	}
	require.Equal(t, sum, p.TotalHeaderLen())
	require.Equal(t, sum+len(p.Payload()), p.TotalLen())
	require.Len(t, p.Bytes(), p.TotalLen())
}

func TestHeaders(t *testing.T) {
	a := arena.New(128)
	p, err := New(a, []byte("payload"))
	require.NoError(t, err)
	requireLenInvariant(t, p)

	inner, err := p.AddHeader([]byte{0x01, 0x02})
	require.NoError(t, err)
	requireLenInvariant(t, p)
	mid, err := p.AddHeader([]byte{0x03})
	require.NoError(t, err)
	outer, err := p.AddHeader([]byte{0x04, 0x05, 0x06})
	require.NoError(t, err)
	requireLenInvariant(t, p)

	require.Equal(t, []HeaderID{outer, mid, inner}, p.Headers())
	require.Equal(t, append([]byte{4, 5, 6, 3, 1, 2}, "payload"...), p.Bytes())

	require.NoError(t, p.RemoveHeader(mid))
	requireLenInvariant(t, p)
	require.Equal(t, errno.ENOENT, p.RemoveHeader(mid))
	require.Nil(t, p.Header(mid))

	require.True(t, p.RemoveFirstHeader())
	require.Equal(t, []HeaderID{inner}, p.Headers())
	require.Equal(t, []byte{1, 2}, p.Header(inner))
	require.True(t, p.RemoveFirstHeader())
	require.False(t, p.RemoveFirstHeader())
	requireLenInvariant(t, p)
	require.Equal(t, 7, p.TotalLen())
}

func TestAddHeaderExhausted(t *testing.T) {
	a := arena.New(8)
	p, err := Alloc(a, 6)
	require.NoError(t, err)
	_, err = p.AddHeader([]byte{1, 2, 3})
	require.Equal(t, errno.ENOMEM, err)
	require.Empty(t, p.Headers())
	requireLenInvariant(t, p)
}

func TestHoldRelease(t *testing.T) {
	a := arena.New(64)
	p, err := Alloc(a, 10)
	require.NoError(t, err)
	require.Equal(t, make([]byte, 10), p.Payload())
	_, err = p.AddHeader([]byte{1, 2})
	require.NoError(t, err)
	_, err = p.AddHeader([]byte{3, 4})
	require.NoError(t, err)
	require.Equal(t, 50, a.Free())

	p.Hold()
	p.Release()
	require.Equal(t, 50, a.Free())
	p.Release()
	require.Equal(t, 64, a.Free())
	require.Equal(t, 0, a.InUse())
}

func TestResizePayload(t *testing.T) {
	a := arena.New(32)
	p, err := New(a, []byte{1, 2, 3})
	require.NoError(t, err)
	require.NoError(t, p.ResizePayload(5))
	require.Equal(t, []byte{1, 2, 3}, p.Payload()[:3])
	require.Equal(t, 5, p.TotalLen())
	require.NoError(t, p.ResizePayload(1))
	require.Equal(t, []byte{1}, p.Payload())
	require.Equal(t, errno.ENOMEM, p.ResizePayload(64))
	require.Equal(t, []byte{1}, p.Payload())
}

func TestWriteTo(t *testing.T) {
	a := arena.New(32)
	p, err := New(a, []byte{9, 9})
	require.NoError(t, err)
	_, err = p.AddHeader([]byte{1})
	require.NoError(t, err)
	var buf bytes.Buffer
	n, err := p.WriteTo(&buf)
	require.NoError(t, err)
	require.Equal(t, int64(3), n)
	require.Equal(t, []byte{1, 9, 9}, buf.Bytes())
}
