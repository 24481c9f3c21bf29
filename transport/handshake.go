package transport

import (
	"context"
	"net"
	"time"

	"github.com/ridgewireio/dgrpc/envelope"
	"github.com/ridgewireio/dgrpc/fsm"
	"github.com/ridgewireio/dgrpc/wire"
	"github.com/sirupsen/logrus"
)

// Sender-side states and events (spec.md §4.3.3).
const (
	senderSendAddressChange fsm.State = "SendAddressChange"
	senderTransmit          fsm.State = "Transmit"
	senderComplete          fsm.State = "Complete"

	eventPeerSwitch fsm.Event = "PeerSwitch"
	eventSeqReq     fsm.Event = "SeqReq"
	eventComplete   fsm.Event = "Complete"
)

func senderTable() fsm.Table {
	return fsm.NewTable().
		On(senderSendAddressChange, eventPeerSwitch, senderTransmit).
		On(senderTransmit, eventPeerSwitch, senderSendAddressChange).
		On(senderTransmit, eventComplete, senderComplete)
}

// Receiver-side states and events.
const (
	receiverAwaitAddressChange fsm.State = "AwaitAddressChange"
	receiverReceive            fsm.State = "Receive"
	receiverComplete           fsm.State = "Complete"

	eventSenderSwitch fsm.Event = "SenderSwitch"
	eventLastFragment fsm.Event = "LastFragment"
)

func receiverTable() fsm.Table {
	return fsm.NewTable().
		On(receiverAwaitAddressChange, eventSenderSwitch, receiverReceive).
		On(receiverReceive, eventLastFragment, receiverComplete).
		On(receiverReceive, eventSenderSwitch, receiverAwaitAddressChange)
}

// HandshakeConfig customizes a HandshakeProto instance.
type HandshakeConfig struct {
	Log *logrus.Logger
}

// HandshakeProto implements at-most-once semantics for arbitrary-size
// payloads (spec.md §4.3.3): it fragments the payload into
// MaxFragmentSize segments and delivers them over a pair of freshly
// allocated OS sockets so the conversation's original socket stays free.
type HandshakeProto struct {
	log *logrus.Logger
}

var _ Protocol = HandshakeProto{}

// NewHandshakeProto constructs a HandshakeProto from cfg.
func NewHandshakeProto(cfg HandshakeConfig) HandshakeProto {
	log := cfg.Log
	if log == nil {
		log = logrus.StandardLogger()
	}
	return HandshakeProto{log: log}
}

func encodePacket(p *TransmissionPacket) []byte {
	return wire.Pack(wire.Marshal(p))
}

func decodePacket(data []byte) (*TransmissionPacket, error) {
	raw, err := wire.Unpack(data)
	if err != nil {
		return nil, err
	}
	p := &TransmissionPacket{}
	if err := wire.Unmarshal(raw, p); err != nil {
		return nil, err
	}
	return p, nil
}

func writePacket(conn net.PacketConn, addr net.Addr, p *TransmissionPacket) error {
	_, err := conn.WriteTo(encodePacket(p), addr)
	return err
}

func fragment(payload []byte, size int) [][]byte {
	if len(payload) == 0 {
		return [][]byte{{}}
	}
	var out [][]byte
	for i := 0; i < len(payload); i += size {
		end := i + size
		if end > len(payload) {
			end = len(payload)
		}
		out = append(out, payload[i:end])
	}
	return out
}

// SendBytes plays the sender role of the handshake: it migrates to a
// fresh socket, waits for the receiver to do the same, then serves
// fragments on request until the receiver signals Complete.
func (h HandshakeProto) SendBytes(ctx context.Context, conn net.PacketConn, target net.Addr, payload []byte, timeout time.Duration, retries int) (int, error) {
	fragments := fragment(payload, MaxFragmentSize)

	newConn, err := net.ListenPacket("udp", ":0")
	if err != nil {
		return 0, err
	}
	if fc, ok := conn.(faultyConn); ok {
		newConn = faultyConn{PacketConn: newConn, f: fc.f}
	}
	defer newConn.Close()
	myPort := udpPort(newConn.LocalAddr())

	m := fsm.NewMachine(senderTable(), senderSendAddressChange)
	buf := make([]byte, MaxDatagramPayload)
	peerAddr := target
	var peerPort uint16

addressChange:
	for attempt := 0; attempt <= retries && m.Current() == senderSendAddressChange; attempt++ {
		if ctx.Err() != nil {
			return 0, ctx.Err()
		}
		if err := writePacket(conn, peerAddr, switchToAddressPacket(myPort)); err != nil {
			return 0, err
		}
		conn.SetReadDeadline(time.Now().Add(timeout))
		n, addr, err := conn.ReadFrom(buf)
		if err != nil {
			continue
		}
		pkt, err := decodePacket(buf[:n])
		if err != nil {
			h.log.WithError(err).Debug("handshake: dropping malformed reply during address change")
			continue
		}
		if pkt.Kind == SwitchToAddress {
			peerAddr, peerPort = addr, pkt.Port
			m.Ingest(eventPeerSwitch)
		}
	}
	conn.SetReadDeadline(time.Time{})
	if m.Current() != senderTransmit {
		return 0, ErrRetriesExhausted
	}
	h.log.WithField("peer_new_port", peerPort).Debug("handshake: peer migrated, entering Transmit")

	sent := 0
	served := make([]bool, len(fragments))
	consecutiveTimeouts := 0

	for m.Current() == senderTransmit {
		newConn.SetReadDeadline(time.Now().Add(timeout))
		n, from, err := newConn.ReadFrom(buf)
		if err != nil {
			consecutiveTimeouts++
			if consecutiveTimeouts > retries {
				newConn.SetReadDeadline(time.Time{})
				return sent, ErrRetriesExhausted
			}
			continue
		}
		consecutiveTimeouts = 0
		pkt, err := decodePacket(buf[:n])
		if err != nil {
			h.log.WithError(err).Debug("handshake: dropping malformed packet during transmit")
			continue
		}
		switch pkt.Kind {
		case Seq:
			idx := int(pkt.SeqNum)
			if idx < 0 || idx >= len(fragments) {
				continue
			}
			frag := fragments[idx]
			last := idx == len(fragments)-1
			dp := dataPacket(pkt.SeqNum, envelope.ContentHash(frag), frag, last)
			if err := writePacket(newConn, from, dp); err != nil {
				return sent, err
			}
			if !served[idx] {
				served[idx] = true
				sent += len(frag)
			}
		case SwitchToAddress:
			m.Ingest(eventPeerSwitch)
		case Complete:
			m.Ingest(eventComplete)
		}
	}
	newConn.SetReadDeadline(time.Time{})
	if m.Current() == senderSendAddressChange {
		goto addressChange
	}
	return sent, nil
}

// RecvBytes plays the receiver role: it waits for a sender to request an
// address migration, reassembles fragments in strict sequence order, and
// acknowledges completion.
func (h HandshakeProto) RecvBytes(ctx context.Context, conn net.PacketConn, timeout time.Duration, retries int) (net.Addr, []byte, error) {
	buf := make([]byte, MaxDatagramPayload)

	m := fsm.NewMachine(receiverTable(), receiverAwaitAddressChange)
	var senderAddr net.Addr
	var senderPort uint16
	var assembled []byte
	cur := uint32(0)

	// The outer loop restarts the await-address-change phase whenever the
	// Receive phase below regresses on a stray SwitchToAddress (spec.md
	// §4.3.3: "If a stray SwitchToAddress is received, transition back to
	// AwaitAddressChange").
awaitPhase:
	for m.Current() != receiverComplete {
		for m.Current() == receiverAwaitAddressChange {
			if ctx.Err() != nil {
				return nil, nil, ctx.Err()
			}
			conn.SetReadDeadline(time.Time{})
			n, addr, err := conn.ReadFrom(buf)
			if err != nil {
				return nil, nil, err
			}
			pkt, err := decodePacket(buf[:n])
			if err != nil {
				h.log.WithError(err).Debug("handshake: dropping malformed packet while awaiting address change")
				continue
			}
			if pkt.Kind != SwitchToAddress {
				continue
			}
			senderAddr, senderPort = addr, pkt.Port
			m.Ingest(eventSenderSwitch)
		}

		newConn, err := net.ListenPacket("udp", ":0")
		if err != nil {
			return nil, nil, err
		}
		if fc, ok := conn.(faultyConn); ok {
			newConn = faultyConn{PacketConn: newConn, f: fc.f}
		}
		myPort := udpPort(newConn.LocalAddr())
		if err := writePacket(conn, senderAddr, switchToAddressPacket(myPort)); err != nil {
			newConn.Close()
			return nil, nil, err
		}

		senderNewAddr := replaceAddrPort(senderAddr, senderPort)
		consecutiveNoProgress := 0

		regressed := false
		for m.Current() == receiverReceive {
			if err := writePacket(newConn, senderNewAddr, seqPacket(cur)); err != nil {
				newConn.Close()
				return nil, nil, err
			}
			newConn.SetReadDeadline(time.Now().Add(timeout))
			n, from, err := newConn.ReadFrom(buf)
			if err != nil {
				consecutiveNoProgress++
				if consecutiveNoProgress > retries {
					newConn.Close()
					return nil, nil, ErrRetriesExhausted
				}
				continue
			}
			pkt, err := decodePacket(buf[:n])
			if err != nil {
				h.log.WithError(err).Debug("handshake: dropping malformed data packet")
				continue
			}
			switch pkt.Kind {
			case Data:
				if pkt.DataSeq != cur {
					continue // strict in-order delivery: discard and re-request
				}
				if pkt.DataHash != envelope.ContentHash(pkt.DataBuf) {
					continue // next Seq re-request triggers retransmission
				}
				assembled = append(assembled, pkt.DataBuf...)
				cur++
				consecutiveNoProgress = 0
				if pkt.Last {
					m.Ingest(eventLastFragment)
				}
			case SwitchToAddress:
				senderAddr, senderPort = from, pkt.Port
				senderNewAddr = replaceAddrPort(senderAddr, senderPort)
				m.Ingest(eventSenderSwitch)
				regressed = true
			}
		}

		if regressed {
			newConn.Close()
			continue awaitPhase
		}

		newConn.SetReadDeadline(time.Time{})
		for i := 0; i < retries; i++ {
			writePacket(newConn, senderNewAddr, completePacket())
		}
		newConn.Close()
		return senderAddr, assembled, nil
	}
	return senderAddr, assembled, nil
}
