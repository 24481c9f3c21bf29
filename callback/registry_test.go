package callback

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/ridgewireio/dgrpc/envelope"
	"github.com/ridgewireio/dgrpc/transport"
	"github.com/ridgewireio/dgrpc/wire"
	"github.com/stretchr/testify/require"
)

type fileUpdate struct{ Path string }

func (u *fileUpdate) MarshalWire(w *wire.Writer) { w.WriteString(u.Path) }
func (u *fileUpdate) UnmarshalWire(r *wire.Reader) error {
	s, err := r.ReadString()
	if err != nil {
		return err
	}
	u.Path = s
	return nil
}

func listenUDP(t *testing.T) net.PacketConn {
	t.Helper()
	conn, err := net.ListenPacket("udp", "127.0.0.1:0")
	require.NoError(t, err)
	return conn
}

func TestTriggerNotifiesEachSubscriberOnce(t *testing.T) {
	reg := New(Config{})

	serverConn := listenUDP(t)
	defer serverConn.Close()

	sub1Conn := listenUDP(t)
	defer sub1Conn.Close()
	sub2Conn := listenUDP(t)
	defer sub2Conn.Close()

	reg.Register("x", Subscriber{Addr: sub1Conn.LocalAddr(), Conn: serverConn, Proto: transport.DefaultProto{}, Timeout: time.Second})
	reg.Register("x", Subscriber{Addr: sub2Conn.LocalAddr(), Conn: serverConn, Proto: transport.DefaultProto{}, Timeout: time.Second})
	require.Equal(t, 2, reg.Pending("x"))

	n := reg.Trigger(context.Background(), "x", &fileUpdate{Path: "x"})
	require.Equal(t, 2, n)
	require.Equal(t, 0, reg.Pending("x"))

	for _, conn := range []net.PacketConn{sub1Conn, sub2Conn} {
		conn.SetReadDeadline(time.Now().Add(time.Second))
		buf := make([]byte, 2048)
		n, _, err := conn.ReadFrom(buf)
		require.NoError(t, err)

		env, err := envelope.Decode(buf[:n])
		require.NoError(t, err)
		require.Equal(t, envelope.Payload, env.Kind)

		var got fileUpdate
		require.NoError(t, wire.Unmarshal(env.PayloadBytes, &got))
		require.Equal(t, "x", got.Path)
	}
}

func TestTriggerOnUnregisteredPathNotifiesNobody(t *testing.T) {
	reg := New(Config{})
	n := reg.Trigger(context.Background(), "never-registered", &fileUpdate{Path: "y"})
	require.Equal(t, 0, n)
}

func TestTriggerDrainsEntryAtomically(t *testing.T) {
	reg := New(Config{})
	serverConn := listenUDP(t)
	defer serverConn.Close()
	subConn := listenUDP(t)
	defer subConn.Close()

	reg.Register("x", Subscriber{Addr: subConn.LocalAddr(), Conn: serverConn, Proto: transport.DefaultProto{}, Timeout: time.Second})

	first := reg.Trigger(context.Background(), "x", &fileUpdate{Path: "x"})
	require.Equal(t, 1, first)

	subConn.SetReadDeadline(time.Now().Add(time.Second))
	buf := make([]byte, 2048)
	_, _, err := subConn.ReadFrom(buf)
	require.NoError(t, err)

	second := reg.Trigger(context.Background(), "x", &fileUpdate{Path: "x"})
	require.Equal(t, 0, second, "a fourth client's write triggers zero notifications after the entry is drained")
}
