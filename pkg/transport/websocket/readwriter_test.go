package websocket

import (
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEcho(t *testing.T) {
	srv := httptest.NewServer(Handler(func(rw *ReadWriter) {
		for {
			pkt, err := rw.ReadPacket()
			if err != nil {
				return
			}
			if err = rw.WritePacket(append(pkt, 0xff)); err != nil {
				return
			}
		}
	}))
	defer srv.Close()

	rw, err := Dial("ws" + strings.TrimPrefix(srv.URL, "http"))
	require.NoError(t, err)
	defer rw.Close()
	require.NoError(t, rw.WritePacket([]byte{1, 2}))
	pkt, err := rw.ReadPacket()
	require.NoError(t, err)
	require.Equal(t, []byte{1, 2, 0xff}, pkt)
}
