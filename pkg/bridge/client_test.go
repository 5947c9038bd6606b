package bridge

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/robotalks/netapi/pkg/arena"
	"github.com/robotalks/netapi/pkg/errno"
	"github.com/robotalks/netapi/pkg/mac"
	"github.com/robotalks/netapi/pkg/netapi"
	"github.com/robotalks/netapi/pkg/netdev/loopback"
	"github.com/robotalks/netapi/pkg/transport"
	"github.com/robotalks/netapi/pkg/wire"
)

func TestClient(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	table := netapi.NewTable()
	dev := loopback.New([]byte{0x12, 0x34}, []byte{1, 2, 3, 4, 5, 6, 7, 8})
	m := mac.New(table, "mac0", dev, mac.NewRegistry(1))
	go m.Run(ctx)

	local, remote := transport.Pipe(4)
	go New(table, "br0", m.PID(), arena.New(256), local).Run(ctx)
	client := NewClient(remote)
	done := make(chan error, 1)
	go func() { done <- client.Run(ctx) }()

	n, err := client.Transmit(ctx, &wire.Transmit{
		Dest:    []byte{1, 2, 3, 4, 5, 6, 7, 8},
		Headers: [][]byte{{0xa0}, {0xb0}},
		Payload: []byte{1, 2},
	})
	require.NoError(t, err)
	require.Equal(t, 4, n)
	f := <-client.Frames()
	require.Equal(t, []byte{1, 2, 3, 4, 5, 6, 7, 8}, f.Src)
	require.Equal(t, []byte{0xa0, 0xb0, 1, 2}, f.Payload)

	_, err = client.Transmit(ctx, &wire.Transmit{Dest: []byte{1, 2}, Payload: make([]byte, 128)})
	require.Equal(t, errno.EMSGSIZE, err)

	require.NoError(t, remote.Close())
	require.Equal(t, io.EOF, <-done)
	_, ok := <-client.Frames()
	require.False(t, ok)
	_, err = client.Transmit(ctx, &wire.Transmit{Dest: []byte{1, 2}, Payload: []byte{1}})
	require.Equal(t, io.ErrClosedPipe, err)
}

func TestClientCanceled(t *testing.T) {
	local, remote := transport.Pipe(1)
	client := NewClient(local)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := client.Transmit(ctx, &wire.Transmit{Payload: []byte{1}})
	require.Equal(t, context.Canceled, err)
	require.Empty(t, client.pending)

	pkt, err := remote.ReadPacket()
	require.NoError(t, err)
	typed, err := wire.DecodeTyped(pkt)
	require.NoError(t, err)
	require.Equal(t, wire.TransmitTypeID, typed.TypeId)
	require.Equal(t, uint32(1), typed.Sequence)
}
