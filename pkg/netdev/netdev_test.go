package netdev

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/robotalks/netapi/pkg/errno"
)

type countingReceiver struct {
	result int
	calls  int
}

func (r *countingReceiver) Receive(dev Driver, src, dest, payload []byte) int {
	r.calls++
	return r.result
}

func TestCallbacks(t *testing.T) {
	var cbs Callbacks
	receivers := make([]*countingReceiver, MaxCallbacks+1)
	for i := range receivers {
		receivers[i] = &countingReceiver{result: i}
	}
	for _, r := range receivers[:MaxCallbacks] {
		require.NoError(t, cbs.Add(r))
	}
	require.NoError(t, cbs.Add(receivers[0]))
	require.Equal(t, MaxCallbacks, cbs.Len())
	require.Equal(t, errno.ENOBUFS, cbs.Add(receivers[MaxCallbacks]))

	cbs.Remove(receivers[1])
	cbs.Remove(receivers[1])
	require.Equal(t, MaxCallbacks-1, cbs.Len())
	require.NoError(t, cbs.Add(receivers[MaxCallbacks]))

	require.Equal(t, MaxCallbacks, cbs.Deliver(nil, nil, nil, []byte{1}))
	for i, r := range receivers {
		if i == 1 {
			require.Equal(t, 0, r.calls)
		} else {
			require.Equal(t, 1, r.calls)
		}
	}
}

func TestCallbacksAbort(t *testing.T) {
	var cbs Callbacks
	failing, after := &countingReceiver{result: -5}, &countingReceiver{}
	require.NoError(t, cbs.Add(failing))
	require.NoError(t, cbs.Add(after))
	require.Equal(t, -5, cbs.Deliver(nil, nil, nil, nil))
	require.Equal(t, 0, after.calls)
}

func TestReceiveFunc(t *testing.T) {
	var got []byte
	fn := ReceiveFunc(func(dev Driver, src, dest, payload []byte) int {
		got = payload
		return len(payload)
	})
	var cbs Callbacks
	require.NoError(t, cbs.Add(&fn))
	require.NoError(t, cbs.Add(&fn))
	require.Equal(t, 1, cbs.Len())
	require.Equal(t, 2, cbs.Deliver(nil, nil, nil, []byte{1, 2}))
	require.Equal(t, []byte{1, 2}, got)
	cbs.Remove(&fn)
	require.Equal(t, 0, cbs.Len())
}

type sliceReceiver struct {
	seen []byte
}

func (r sliceReceiver) Receive(dev Driver, src, dest, payload []byte) int {
	return len(payload)
}

func TestCallbacksComparable(t *testing.T) {
	var cbs Callbacks
	require.Equal(t, errno.EINVAL, cbs.Add(nil))
	require.Equal(t, errno.EINVAL, cbs.Add(sliceReceiver{}))
	require.Equal(t, 0, cbs.Len())

	r := &countingReceiver{}
	require.NoError(t, cbs.Add(r))
	require.NotPanics(t, func() { cbs.Remove(sliceReceiver{seen: []byte{1}}) })
	require.Equal(t, 1, cbs.Len())
	require.NoError(t, cbs.Add(&sliceReceiver{}))
	require.Equal(t, 2, cbs.Len())
}

func TestOptionStore(t *testing.T) {
	s := NewOptionStore().
		Define(ParamChannel, 2, Uint16(11)).
		Define(ParamAddressLong, MaxLongAddrLen, []byte{1, 2, 3, 4, 5, 6, 7, 8})

	buf := make([]byte, 2)
	n, err := s.Get(ParamChannel, buf)
	require.NoError(t, err)
	require.Equal(t, 2, n)
	require.Equal(t, uint16(11), AsUint16(buf))

	require.NoError(t, s.Set(ParamChannel, Uint16(26)))
	n, err = s.Get(ParamChannel, buf)
	require.NoError(t, err)
	require.Equal(t, Uint16(26), buf[:n])

	small := []byte{0xee, 0xee, 0xee}
	_, err = s.Get(ParamAddressLong, small)
	require.Equal(t, errno.EOVERFLOW, err)
	require.Equal(t, []byte{0xee, 0xee, 0xee}, small)

	require.Equal(t, errno.EINVAL, s.Set(ParamChannel, nil))
	require.Equal(t, errno.EOVERFLOW, s.Set(ParamChannel, []byte{1, 2, 3}))
	require.Equal(t, errno.ENOTSUP, s.Set(ParamTxPower, []byte{1}))
	_, err = s.Get(ParamTxPower, buf)
	require.Equal(t, errno.ENOTSUP, err)
	require.Equal(t, Uint16(26), s.Value(ParamChannel))
}

func TestParamNames(t *testing.T) {
	for p := ParamChannel; p <= ParamState; p++ {
		parsed, ok := ParseParam(p.String())
		require.True(t, ok)
		require.Equal(t, p, parsed)
	}
	_, ok := ParseParam("bogus")
	require.False(t, ok)
	require.Equal(t, "rx-only", StateRxOnly.String())
	require.False(t, State(9).IsValid())
}
