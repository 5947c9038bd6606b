package loopback

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/robotalks/netapi/pkg/errno"
	"github.com/robotalks/netapi/pkg/netdev"
)

type eventLog []uint32

func (l *eventLog) PostEvent(value uint32) bool {
	*l = append(*l, value)
	return true
}

type frameLog struct {
	src, dest, payload []byte
	result             int
}

func (l *frameLog) Receive(dev netdev.Driver, src, dest, payload []byte) int {
	l.src, l.dest, l.payload = src, dest, payload
	return l.result
}

var (
	shortAddr = []byte{0x12, 0x34}
	longAddr  = []byte{1, 2, 3, 4, 5, 6, 7, 8}
)

func TestSendLoopsBack(t *testing.T) {
	dev := New(shortAddr, longAddr)
	var events eventLog
	dev.BindEvents(&events)
	require.NoError(t, dev.Init())
	require.Equal(t, netdev.StateIdle, dev.State())
	rx := &frameLog{result: 4}
	require.NoError(t, dev.AddReceiveCallback(rx))

	n, err := dev.Send([]byte{0xcc, 0xdd}, [][]byte{{0xa0}, {0xb0}}, []byte{1, 2})
	require.NoError(t, err)
	require.Equal(t, 4, n)
	require.Equal(t, eventLog{EventRx}, events)
	require.Equal(t, 1, dev.Pending())

	dev.HandleEvent(EventRx)
	require.Equal(t, 0, dev.Pending())
	require.Equal(t, shortAddr, rx.src)
	require.Equal(t, []byte{0xcc, 0xdd}, rx.dest)
	require.Equal(t, []byte{0xa0, 0xb0, 1, 2}, rx.payload)
	require.Equal(t, 4, dev.LastResult())

	_, err = dev.Send(make([]byte, netdev.MaxLongAddrLen), nil, []byte{1})
	require.NoError(t, err)
	dev.HandleEvent(EventRx)
	require.Equal(t, longAddr, rx.src)

	// nothing queued, nothing delivered.
	rx.payload = nil
	dev.HandleEvent(EventRx)
	require.Nil(t, rx.payload)
}

func TestSendErrors(t *testing.T) {
	dev := New(shortAddr, longAddr)
	require.NoError(t, dev.Init())
	require.NoError(t, dev.SetOption(netdev.ParamMaxPacketSize, netdev.Uint16(4)))
	_, err := dev.Send(shortAddr, [][]byte{{1, 2}}, []byte{3, 4, 5})
	require.Equal(t, errno.EMSGSIZE, err)

	require.NoError(t, dev.SetState(netdev.StateOff))
	_, err = dev.Send(shortAddr, nil, []byte{1})
	require.Equal(t, errno.EIO, err)
	require.Equal(t, errno.EINVAL, dev.SetState(netdev.State(42)))
	require.Equal(t, 0, dev.Pending())
}

func TestOptions(t *testing.T) {
	dev := New(shortAddr, longAddr)
	buf := make([]byte, netdev.MaxLongAddrLen)
	n, err := dev.GetOption(netdev.ParamAddressLong, buf)
	require.NoError(t, err)
	require.Equal(t, longAddr, buf[:n])
	require.NoError(t, dev.SetOption(netdev.ParamAddress, []byte{0xbe, 0xef}))
	n, err = dev.GetOption(netdev.ParamAddress, buf)
	require.NoError(t, err)
	require.Equal(t, []byte{0xbe, 0xef}, buf[:n])
	_, err = dev.GetOption(netdev.ParamState, buf)
	require.Equal(t, errno.ENOTSUP, err)
}
