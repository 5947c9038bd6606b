package stream

import (
	"bytes"
	"io"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestReadWriter(t *testing.T) {
	var buf bytes.Buffer
	rw := New(&buf)
	require.NoError(t, rw.WritePacket([]byte{0xaa, 0xbb, 0xcc}))
	require.NoError(t, rw.WritePacket(nil))
	require.Equal(t, []byte{3, 0, 0, 0, 0xaa, 0xbb, 0xcc, 0, 0, 0, 0}, buf.Bytes())

	pkt, err := rw.ReadPacket()
	require.NoError(t, err)
	require.Equal(t, []byte{0xaa, 0xbb, 0xcc}, pkt)
	pkt, err = rw.ReadPacket()
	require.NoError(t, err)
	require.Empty(t, pkt)
	_, err = rw.ReadPacket()
	require.Equal(t, io.EOF, err)
}

func TestReadTruncated(t *testing.T) {
	rw := New(bytes.NewBuffer([]byte{4, 0, 0, 0, 1, 2}))
	_, err := rw.ReadPacket()
	require.Equal(t, io.ErrUnexpectedEOF, err)
}

func TestReadOversized(t *testing.T) {
	rw := New(bytes.NewBuffer([]byte{0, 1, 0, 0}))
	rw.MaxPacketSize = 255
	_, err := rw.ReadPacket()
	require.Error(t, err)
	require.NoError(t, rw.Close())
}
