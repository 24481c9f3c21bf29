// Package transport implements the pluggable transmission protocols that
// carry envelope bytes over UDP (spec.md §4.3): DefaultProto (maybe
// semantics), RequestAckProto (at-least-once), and HandshakeProto
// (at-most-once, fragmenting, port-migrating). Every protocol is adapted
// from the teacher's stream-oriented Protocol/Connection abstraction
// (rdgproto/client.go, rdgproto/server.go) onto net.PacketConn datagrams,
// since a datagram socket has no Accept/Dial lifecycle to reuse as-is.
package transport

import (
	"context"
	"net"
	"time"
)

// Protocol is the uniform contract shared by every transmission protocol
// (spec.md §4.3): two operations, send and receive, parameterized by a
// timeout and a retry budget whose meaning is protocol-specific.
type Protocol interface {
	// SendBytes transmits payload to target and reports how many bytes of
	// payload were accepted for transmission (not wire overhead).
	SendBytes(ctx context.Context, conn net.PacketConn, target net.Addr, payload []byte, timeout time.Duration, retries int) (int, error)

	// RecvBytes blocks until a payload arrives (or the protocol gives up
	// per its own retry semantics) and returns the sender's address
	// alongside the payload.
	RecvBytes(ctx context.Context, conn net.PacketConn, timeout time.Duration, retries int) (net.Addr, []byte, error)
}
