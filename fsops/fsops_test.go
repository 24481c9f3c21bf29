package fsops

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/ridgewireio/dgrpc/callback"
	"github.com/ridgewireio/dgrpc/dispatch"
	"github.com/ridgewireio/dgrpc/envelope"
	"github.com/ridgewireio/dgrpc/rpc"
	"github.com/ridgewireio/dgrpc/rpcsig"
	"github.com/ridgewireio/dgrpc/transport"
	"github.com/ridgewireio/dgrpc/wire"
	"github.com/stretchr/testify/require"
)

func listenUDP(t *testing.T) *net.UDPConn {
	t.Helper()
	conn, err := net.ListenUDP("udp", &net.UDPAddr{IP: net.ParseIP("127.0.0.1"), Port: 0})
	require.NoError(t, err)
	return conn
}

func startServer(t *testing.T) (addr net.Addr, cb *callback.Registry, stop func()) {
	t.Helper()
	conn := listenUDP(t)
	reg := rpcsig.NewRegistry()
	store := NewStore()
	cbReg := callback.New(callback.Config{})

	Register(reg, store, cbReg, ServerSocket{Conn: conn, Proto: transport.DefaultProto{}, Timeout: 200 * time.Millisecond})

	d, err := dispatch.New(conn, transport.DefaultProto{}, reg, dispatch.Config{Timeout: 200 * time.Millisecond})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		d.Run(ctx)
	}()

	return conn.LocalAddr(), cbReg, func() {
		cancel()
		conn.Close()
		<-done
	}
}

func newClient(t *testing.T, target net.Addr) (*rpc.ContextManager, *net.UDPConn) {
	t.Helper()
	conn := listenUDP(t)
	cm, err := rpc.NewContextManager(context.Background(), conn, target, transport.DefaultProto{}, time.Second, 0, nil)
	require.NoError(t, err)
	return cm, conn
}

func TestReadEmptyFile(t *testing.T) {
	addr, _, stop := startServer(t)
	defer stop()

	cm, conn := newClient(t, addr)
	defer conn.Close()
	defer cm.Close()

	require.NoError(t, CreateFile(context.Background(), cm, ""))

	data, err := ReadBytes(context.Background(), cm, "")
	require.NoError(t, err)
	require.Empty(t, data)
}

func TestReadUnknownPathReturnsHandlerFailed(t *testing.T) {
	addr, _, stop := startServer(t)
	defer stop()

	cm, conn := newClient(t, addr)
	defer conn.Close()
	defer cm.Close()

	_, err := ReadBytes(context.Background(), cm, "missing")
	require.Error(t, err)
	require.Contains(t, err.Error(), "HandlerFailed")
}

func TestCreateWriteDeleteRoundTrip(t *testing.T) {
	addr, _, stop := startServer(t)
	defer stop()

	cm, conn := newClient(t, addr)
	defer conn.Close()
	defer cm.Close()

	require.NoError(t, CreateFile(context.Background(), cm, "f"))
	require.NoError(t, WriteBytes(context.Background(), cm, "f", []byte("hello")))

	data, err := ReadBytes(context.Background(), cm, "f")
	require.NoError(t, err)
	require.Equal(t, []byte("hello"), data)

	require.NoError(t, DeleteFile(context.Background(), cm, "f"))
	_, err = ReadBytes(context.Background(), cm, "f")
	require.Error(t, err)
}

func TestCallbackFanOutOnWrite(t *testing.T) {
	addr, cbReg, stop := startServer(t)
	defer stop()

	cm, conn := newClient(t, addr)
	defer conn.Close()
	defer cm.Close()
	require.NoError(t, CreateFile(context.Background(), cm, "watched"))

	sub1, sub1Conn := newClient(t, addr)
	defer sub1Conn.Close()
	defer sub1.Close()
	sub2, sub2Conn := newClient(t, addr)
	defer sub2Conn.Close()
	defer sub2.Close()

	require.NoError(t, RegisterFileUpdate(context.Background(), sub1, "watched", sub1Conn.LocalAddr().(*net.UDPAddr)))
	require.NoError(t, RegisterFileUpdate(context.Background(), sub2, "watched", sub2Conn.LocalAddr().(*net.UDPAddr)))
	require.Equal(t, 2, cbReg.Pending("watched"))

	require.NoError(t, WriteBytes(context.Background(), cm, "watched", []byte("v1")))

	for _, conn := range []*net.UDPConn{sub1Conn, sub2Conn} {
		conn.SetReadDeadline(time.Now().Add(time.Second))
		buf := make([]byte, 2048)
		n, err := conn.Read(buf)
		require.NoError(t, err)

		env, err := envelope.Decode(buf[:n])
		require.NoError(t, err)
		require.Equal(t, envelope.Payload, env.Kind)

		var update FileUpdate
		require.NoError(t, wire.Unmarshal(env.PayloadBytes, &update))
		require.Equal(t, "watched", update.Path)
		require.Equal(t, UpdateWritten, update.Kind)
	}

	require.Equal(t, 0, cbReg.Pending("watched"), "entry drained after trigger")

	// a second write with no pending registrations notifies nobody
	n := cbReg.Trigger(context.Background(), "watched", &FileUpdate{Path: "watched", Kind: UpdateWritten})
	require.Equal(t, 0, n)
}
