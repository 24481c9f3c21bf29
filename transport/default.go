package transport

import (
	"context"
	"net"
	"time"
)

// DefaultProto implements "maybe" semantics (spec.md §4.3.1): one send,
// one receive, no acknowledgement, no retry. A lost datagram is a lost
// call.
type DefaultProto struct{}

var _ Protocol = DefaultProto{}

// SendBytes writes payload once and returns.
func (DefaultProto) SendBytes(_ context.Context, conn net.PacketConn, target net.Addr, payload []byte, _ time.Duration, _ int) (int, error) {
	if len(payload) > MaxDatagramPayload {
		return 0, ErrPayloadTooLarge
	}
	return conn.WriteTo(payload, target)
}

// RecvBytes reads once, bounded by timeout if nonzero.
func (DefaultProto) RecvBytes(_ context.Context, conn net.PacketConn, timeout time.Duration, _ int) (net.Addr, []byte, error) {
	if timeout > 0 {
		if err := conn.SetReadDeadline(time.Now().Add(timeout)); err != nil {
			return nil, nil, err
		}
		defer conn.SetReadDeadline(time.Time{})
	}
	buf := make([]byte, MaxDatagramPayload)
	n, addr, err := conn.ReadFrom(buf)
	if err != nil {
		return nil, nil, err
	}
	return addr, buf[:n], nil
}
