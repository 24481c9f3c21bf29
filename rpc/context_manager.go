// Package rpc implements the client side of an invocation: the context
// manager that owns a socket, a target, a transmission protocol, and a
// timeout/retry budget, and turns a serialized request into a serialized
// response (spec.md §4.4).
package rpc

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/ridgewireio/dgrpc/envelope"
	"github.com/ridgewireio/dgrpc/transport"
	"github.com/sirupsen/logrus"
)

// ContextManager is the client-side handle for invoking remote methods
// over a single protocol/target pair. It is grounded on rdgproto/client.go's
// Client and original_source/.../middleware/context_manager.rs's
// ContextManager: construction performs a Ping handshake, and Invoke
// performs the five-step send/receive/unwrap sequence of spec.md §4.4.
type ContextManager struct {
	conn    net.PacketConn
	target  net.Addr
	proto   transport.Protocol
	timeout time.Duration
	retries int
	log     *logrus.Logger
}

// NewContextManager dials conn to target over proto, performing an
// initial Ping round-trip. A mismatched (or absent) reply fails
// construction.
func NewContextManager(ctx context.Context, conn net.PacketConn, target net.Addr, proto transport.Protocol, timeout time.Duration, retries int, log *logrus.Logger) (*ContextManager, error) {
	if log == nil {
		log = logrus.StandardLogger()
	}
	cm := &ContextManager{conn: conn, target: target, proto: proto, timeout: timeout, retries: retries, log: log}
	if err := cm.ping(ctx); err != nil {
		return nil, err
	}
	return cm, nil
}

func (cm *ContextManager) ping(ctx context.Context) error {
	out := envelope.Encode(envelope.NewPing())
	if _, err := cm.proto.SendBytes(ctx, cm.conn, cm.target, out, cm.timeout, cm.retries); err != nil {
		return fmt.Errorf("rpc: ping send: %w", err)
	}
	_, reply, err := cm.proto.RecvBytes(ctx, cm.conn, cm.timeout, cm.retries)
	if err != nil {
		return fmt.Errorf("rpc: ping recv: %w", err)
	}
	env, err := envelope.Decode(reply)
	if err != nil {
		return fmt.Errorf("rpc: ping decode: %w", err)
	}
	if env.Kind != envelope.Ping {
		return ErrPingMismatch
	}
	cm.log.Debug("rpc: ping round-trip succeeded")
	return nil
}

// Invoke performs the full send/receive/unwrap sequence for an
// already-signature-prefixed request payload, returning the response
// envelope's payload bytes unchanged on success (from the dispatcher these
// start with the method signature; Call strips it) or the server's
// InvokeError on failure.
func (cm *ContextManager) Invoke(ctx context.Context, requestPayload []byte) ([]byte, error) {
	out := envelope.Encode(envelope.NewPayload(requestPayload))
	if _, err := cm.proto.SendBytes(ctx, cm.conn, cm.target, out, cm.timeout, cm.retries); err != nil {
		return nil, fmt.Errorf("rpc: send: %w", err)
	}
	_, reply, err := cm.proto.RecvBytes(ctx, cm.conn, cm.timeout, cm.retries)
	if err != nil {
		return nil, fmt.Errorf("rpc: recv: %w", err)
	}
	env, err := envelope.Decode(reply)
	if err != nil {
		return nil, fmt.Errorf("rpc: decode: %w", err)
	}
	switch env.Kind {
	case envelope.Error:
		return nil, env.Err
	case envelope.Payload:
		return env.PayloadBytes, nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnexpectedEnvelopeKind, env.Kind)
	}
}

// Close releases the underlying socket.
func (cm *ContextManager) Close() error {
	return cm.conn.Close()
}
