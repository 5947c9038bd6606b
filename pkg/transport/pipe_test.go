package transport

import (
	"io"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPipe(t *testing.T) {
	a, b := Pipe(2)
	var _ PacketReadWriter = a

	pkt := []byte{1, 2, 3}
	require.NoError(t, a.WritePacket(pkt))
	require.NoError(t, a.WritePacket([]byte{4}))
	pkt[0] = 9

	got, err := b.ReadPacket()
	require.NoError(t, err)
	require.Equal(t, []byte{1, 2, 3}, got)
	got, err = b.ReadPacket()
	require.NoError(t, err)
	require.Equal(t, []byte{4}, got)

	require.NoError(t, b.WritePacket([]byte{5}))
	got, err = a.ReadPacket()
	require.NoError(t, err)
	require.Equal(t, []byte{5}, got)

	require.NoError(t, b.Close())
	_, err = a.ReadPacket()
	require.Equal(t, io.EOF, err)
	require.Equal(t, io.ErrClosedPipe, a.WritePacket(pkt))
	require.NoError(t, a.Close())
}
