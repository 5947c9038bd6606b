package sh

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/robotalks/netapi/pkg/errno"
	"github.com/robotalks/netapi/pkg/netapi"
)

type lines []string

func (l *lines) Printf(format string, args ...interface{}) {
	*l = append(*l, fmt.Sprintf(format, args...))
}

func TestMonitor(t *testing.T) {
	table := netapi.NewTable()
	var out lines
	m := NewMonitor(table, &out)
	client := table.Spawn("client", 1)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- m.Run(ctx) }()

	n, err := netapi.Receive(ctx, client, m.PID(), []byte{0xaa, 0xbb}, []byte{0xcc, 0xdd}, []byte{1, 2, 3})
	require.NoError(t, err)
	require.Equal(t, 3, n)

	m.SetConsume(2)
	n, err = netapi.Receive(ctx, client, m.PID(), []byte{0xaa, 0xbb}, []byte{0xcc, 0xdd}, []byte{1, 2, 3})
	require.NoError(t, err)
	require.Equal(t, 2, n)

	m.SetConsume(-int(errno.EIO))
	_, err = netapi.Receive(ctx, client, m.PID(), []byte{0xaa, 0xbb}, []byte{0xcc, 0xdd}, []byte{1})
	require.Equal(t, errno.EIO, err)

	_, err = netapi.GetOption(ctx, client, m.PID(), 0, make([]byte, 2))
	require.Equal(t, errno.ENOTSUP, err)

	require.Equal(t, 3, m.Frames())
	require.Equal(t, "RX aa:bb > cc:dd [3] 01:02:03 => 3\n", out[0])
	require.Equal(t, "RX aa:bb > cc:dd [3] 01:02:03 => 2\n", out[1])

	cancel()
	require.Equal(t, context.Canceled, <-done)
}
