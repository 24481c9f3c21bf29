package transport

import (
	"context"
	"net"
	"time"

	"github.com/ridgewireio/dgrpc/envelope"
	"github.com/sirupsen/logrus"
)

// RequestAckProto implements at-least-once semantics (spec.md §4.3.2):
// every outbound datagram is retransmitted up to retries times, each with
// timeout, until the peer returns an envelope.Ack(hash) matching the
// content hash of the sent payload. Because the server re-executes on
// every retransmit it observes as a fresh datagram, this is at-least-once
// rather than exactly-once.
type RequestAckProto struct {
	Log *logrus.Logger
}

var _ Protocol = RequestAckProto{}

func (p RequestAckProto) logger() *logrus.Logger {
	if p.Log != nil {
		return p.Log
	}
	return logrus.StandardLogger()
}

// SendBytes retransmits payload until a matching Ack arrives or the retry
// budget is exhausted.
func (p RequestAckProto) SendBytes(ctx context.Context, conn net.PacketConn, target net.Addr, payload []byte, timeout time.Duration, retries int) (int, error) {
	if len(payload) > MaxDatagramPayload {
		return 0, ErrPayloadTooLarge
	}
	wantHash := envelope.ContentHash(payload)
	buf := make([]byte, MaxDatagramPayload)

	for attempt := 0; attempt <= retries; attempt++ {
		if ctx.Err() != nil {
			return 0, ctx.Err()
		}
		n, err := conn.WriteTo(payload, target)
		if err != nil {
			return 0, err
		}
		if err := conn.SetReadDeadline(time.Now().Add(timeout)); err != nil {
			return 0, err
		}
		deadline := time.Now().Add(timeout)
		for time.Now().Before(deadline) {
			rn, _, err := conn.ReadFrom(buf)
			if err != nil {
				break // timeout or transient read error: fall through to retry
			}
			env, err := envelope.Decode(buf[:rn])
			if err != nil {
				p.logger().WithError(err).Debug("transport: dropping malformed datagram while awaiting ack")
				continue
			}
			if env.Kind == envelope.Ack && env.Hash == wantHash {
				conn.SetReadDeadline(time.Time{})
				return n, nil
			}
			// Not our ack; keep waiting out the remaining timeout window.
		}
	}
	conn.SetReadDeadline(time.Time{})
	return 0, ErrRetriesExhausted
}

// RecvBytes reads one request datagram, acknowledges it, and returns the
// payload to the caller for handling.
func (p RequestAckProto) RecvBytes(_ context.Context, conn net.PacketConn, timeout time.Duration, _ int) (net.Addr, []byte, error) {
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
	payload := buf[:n]
	ack := envelope.Encode(envelope.NewAck(envelope.ContentHash(payload)))
	if _, err := conn.WriteTo(ack, addr); err != nil {
		p.logger().WithError(err).Warn("transport: failed to send ack")
	}
	return addr, payload, nil
}
