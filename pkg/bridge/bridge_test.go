package bridge

import (
	"context"
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

type peer struct {
	t  *testing.T
	rw transport.PacketReadWriter
}

func (p *peer) send(msg wire.Message, seq uint32) {
	data, err := wire.Encode(msg, seq)
	require.NoError(p.t, err)
	require.NoError(p.t, p.rw.WritePacket(data))
}

func (p *peer) recv() (*wire.Typed, wire.Message) {
	data, err := p.rw.ReadPacket()
	require.NoError(p.t, err)
	typed, err := wire.DecodeTyped(data)
	require.NoError(p.t, err)
	msg, err := typed.Decode()
	require.NoError(p.t, err)
	return typed, msg
}

func TestBridge(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	table := netapi.NewTable()
	reg := mac.NewRegistry(2)
	dev := loopback.New([]byte{0x12, 0x34}, []byte{1, 2, 3, 4, 5, 6, 7, 8})
	m := mac.New(table, "mac0", dev, reg)
	macDone := make(chan error, 1)
	go func() { macDone <- m.Run(ctx) }()

	local, remote := transport.Pipe(4)
	b := New(table, "br0", m.PID(), arena.New(256), local)
	bctx, stop := context.WithCancel(ctx)
	bridgeDone := make(chan error, 1)
	go func() { bridgeDone <- b.Run(bctx) }()
	p := &peer{t: t, rw: remote}

	p.send(&wire.Transmit{
		Dest:    []byte{0xcc, 0xdd},
		Headers: [][]byte{{0x41}},
		Payload: []byte("hi"),
	}, 5)
	var ack *wire.TransmitAck
	var frame *wire.Frame
	for ack == nil || frame == nil {
		typed, msg := p.recv()
		switch v := msg.(type) {
		case *wire.TransmitAck:
			require.Equal(t, uint32(5), typed.Sequence)
			ack = v
		case *wire.Frame:
			frame = v
		default:
			t.Fatalf("unexpected %T", msg)
		}
	}
	require.Equal(t, int32(3), ack.Result)
	require.Equal(t, &wire.Frame{
		Device:  "br0",
		Src:     []byte{0x12, 0x34},
		Dest:    []byte{0xcc, 0xdd},
		Payload: []byte{0x41, 'h', 'i'},
	}, frame)

	p.send(&wire.Transmit{Dest: []byte{0xcc, 0xdd}, Payload: make([]byte, 200)}, 6)
	typed, msg := p.recv()
	require.Equal(t, uint32(6), typed.Sequence)
	require.Equal(t, &wire.TransmitAck{Result: -int32(errno.EMSGSIZE)}, msg)

	p.send(&wire.Transmit{Dest: []byte{0xcc, 0xdd}}, 7)
	_, msg = p.recv()
	require.Equal(t, &wire.TransmitAck{Result: -int32(errno.EINVAL)}, msg)

	data, err := (&wire.Typed{TypeId: wire.GroupLink | 0x7f, Sequence: 8}).Encode()
	require.NoError(t, err)
	require.NoError(t, remote.WritePacket(data))
	typed, msg = p.recv()
	require.Equal(t, uint32(8), typed.Sequence)
	require.IsType(t, &wire.CommandErr{}, msg)

	p.send(&wire.Frame{Payload: []byte{1}}, 0)
	p.send(&wire.CommandErr{Message: "x"}, 9)
	p.send(&wire.Transmit{Dest: []byte{0xcc}, Payload: []byte{1}}, 10)
	typed, msg = p.recv()
	require.Equal(t, uint32(10), typed.Sequence)
	require.Equal(t, &wire.TransmitAck{Result: -int32(errno.EAFNOSUPPORT)}, msg)

	require.Len(t, reg.Entries(m.PID()), 1)
	stop()
	require.Equal(t, context.Canceled, <-bridgeDone)
	require.Empty(t, reg.Entries(m.PID()))
	require.Nil(t, table.Lookup(b.PID()))

	cancel()
	require.Equal(t, context.Canceled, <-macDone)
}

func TestBridgeRegistryFull(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	table := netapi.NewTable()
	dev := loopback.New([]byte{0x12, 0x34}, []byte{1, 2, 3, 4, 5, 6, 7, 8})
	m := mac.New(table, "mac0", dev, mac.NewRegistry(0))
	go m.Run(ctx)

	local, _ := transport.Pipe(1)
	b := New(table, "br0", m.PID(), arena.New(64), local)
	require.Equal(t, errno.ENOBUFS, b.Run(ctx))
}

func waitEntries(t *testing.T, reg *mac.Registry, owner netapi.PID, n int) {
	deadline := time.Now().Add(2 * time.Second)
	for len(reg.Entries(owner)) != n {
		require.True(t, time.Now().Before(deadline), "registry never reached %d entries", n)
		time.Sleep(time.Millisecond)
	}
}

func TestBridgesShareFrames(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	table := netapi.NewTable()
	reg := mac.NewRegistry(4)
	dev := loopback.New([]byte{0x12, 0x34}, []byte{1, 2, 3, 4, 5, 6, 7, 8})
	m := mac.New(table, "mac0", dev, reg)
	go m.Run(ctx)

	a := arena.New(256)
	localA, remoteA := transport.Pipe(4)
	localB, remoteB := transport.Pipe(4)
	go New(table, "br0", m.PID(), a, localA).Run(ctx)
	go New(table, "br1", m.PID(), a, localB).Run(ctx)
	waitEntries(t, reg, m.PID(), 2)

	pa, pb := &peer{t: t, rw: remoteA}, &peer{t: t, rw: remoteB}
	pa.send(&wire.Transmit{Dest: []byte{0xcc, 0xdd}, Payload: []byte("hello")}, 1)

	var frames []*wire.Frame
	for len(frames) == 0 {
		_, msg := pa.recv()
		if f, ok := msg.(*wire.Frame); ok {
			frames = append(frames, f)
		}
	}
	_, msg := pb.recv()
	require.IsType(t, &wire.Frame{}, msg)
	frames = append(frames, msg.(*wire.Frame))
	for _, f := range frames {
		require.Equal(t, []byte("hello"), f.Payload)
		require.Equal(t, []byte{0xcc, 0xdd}, f.Dest)
	}
	require.Equal(t, "br0", frames[0].Device)
	require.Equal(t, "br1", frames[1].Device)
}

func TestForwardConsume(t *testing.T) {
	local, remote := transport.Pipe(4)
	b := New(netapi.NewTable(), "br0", netapi.Undefined, arena.New(64), local)
	req := &netapi.DataRequest{Op: netapi.KindReceive, Src: []byte{1, 2}, Dest: []byte{3, 4}, Data: []byte("abc")}
	require.Equal(t, 0, b.forward(req))
	b.Consume = true
	require.Equal(t, 3, b.forward(req))

	p := &peer{t: t, rw: remote}
	for i := 0; i < 2; i++ {
		_, msg := p.recv()
		require.Equal(t, &wire.Frame{Device: "br0", Src: []byte{1, 2}, Dest: []byte{3, 4}, Payload: []byte("abc")}, msg)
	}

	remote.Close()
	require.Equal(t, -int(errno.EIO), b.forward(req))
}
