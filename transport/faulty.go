package transport

import (
	"context"
	"crypto/rand"
	"math/big"
	"net"
	"time"
)

// Faulty wraps any Protocol and drops every outbound datagram with
// probability 1/DropRate, simulating a lossy link without disturbing the
// wrapped protocol's own state machine (spec.md §4.3, "faulty variant").
// A DropRate of 0 or 1 drops nothing; FaultyDefaultProto, FaultyRequestAckProto
// and FaultyHandshakeProto (below) are convenience constructors.
type Faulty struct {
	Inner    Protocol
	DropRate int
}

var _ Protocol = Faulty{}

// FaultyDefaultProto wraps DefaultProto with a 1/dropRate drop probability.
func FaultyDefaultProto(dropRate int) Faulty { return Faulty{Inner: DefaultProto{}, DropRate: dropRate} }

// FaultyRequestAckProto wraps RequestAckProto with a 1/dropRate drop
// probability.
func FaultyRequestAckProto(dropRate int) Faulty {
	return Faulty{Inner: RequestAckProto{}, DropRate: dropRate}
}

// FaultyHandshakeProto wraps HandshakeProto with a 1/dropRate drop
// probability.
func FaultyHandshakeProto(dropRate int, cfg HandshakeConfig) Faulty {
	return Faulty{Inner: NewHandshakeProto(cfg), DropRate: dropRate}
}

func (f Faulty) shouldDrop() bool {
	if f.DropRate <= 1 {
		return false
	}
	n, err := rand.Int(rand.Reader, big.NewInt(int64(f.DropRate)))
	if err != nil {
		return false
	}
	return n.Sign() == 0
}

// SendBytes delegates to Inner over a connection whose WriteTo silently
// swallows datagrams chosen by shouldDrop.
func (f Faulty) SendBytes(ctx context.Context, conn net.PacketConn, target net.Addr, payload []byte, timeout time.Duration, retries int) (int, error) {
	return f.Inner.SendBytes(ctx, faultyConn{PacketConn: conn, f: f}, target, payload, timeout, retries)
}

// RecvBytes delegates to Inner over the same dropping connection: no
// inbound datagram is dropped, but datagrams Inner writes while receiving
// (RequestAckProto's acks, HandshakeProto's replies and Seq/Complete
// packets) are subject to the same drop probability.
func (f Faulty) RecvBytes(ctx context.Context, conn net.PacketConn, timeout time.Duration, retries int) (net.Addr, []byte, error) {
	return f.Inner.RecvBytes(ctx, faultyConn{PacketConn: conn, f: f}, timeout, retries)
}

// faultyConn wraps a net.PacketConn so that WriteTo reports success
// without actually transmitting, exactly as a dropped UDP datagram would
// look to the sender (UDP gives no delivery confirmation).
type faultyConn struct {
	net.PacketConn
	f Faulty
}

func (c faultyConn) WriteTo(p []byte, addr net.Addr) (int, error) {
	if c.f.shouldDrop() {
		return len(p), nil
	}
	return c.PacketConn.WriteTo(p, addr)
}
