package transport

import (
	"net"

	"github.com/ridgewireio/dgrpc/wire"
)

// PacketKind discriminates the variants of TransmissionPacket, the inner
// type used only by HandshakeProto (spec.md §3, "Transmission packet").
type PacketKind int

const (
	SwitchToAddress PacketKind = iota
	Seq
	Data
	PacketAck
	Complete
)

var packetKindNames = map[PacketKind]string{
	SwitchToAddress: "SwitchToAddress",
	Seq:             "Seq",
	Data:            "Data",
	PacketAck:       "Ack",
	Complete:        "Complete",
}

var packetKindByName = func() map[string]PacketKind {
	m := make(map[string]PacketKind, len(packetKindNames))
	for k, v := range packetKindNames {
		m[v] = k
	}
	return m
}()

func (k PacketKind) String() string {
	if s, ok := packetKindNames[k]; ok {
		return s
	}
	return "Unknown"
}

// TransmissionPacket is HandshakeProto's inner wire type.
type TransmissionPacket struct {
	Kind PacketKind

	// SwitchToAddress
	Port uint16

	// Seq
	SeqNum uint32

	// Data
	DataSeq  uint32
	DataHash uint64
	DataBuf  []byte
	Last     bool

	// Ack
	AckHash uint64
}

func switchToAddressPacket(port uint16) *TransmissionPacket {
	return &TransmissionPacket{Kind: SwitchToAddress, Port: port}
}

func seqPacket(n uint32) *TransmissionPacket {
	return &TransmissionPacket{Kind: Seq, SeqNum: n}
}

func dataPacket(seq uint32, hash uint64, buf []byte, last bool) *TransmissionPacket {
	return &TransmissionPacket{Kind: Data, DataSeq: seq, DataHash: hash, DataBuf: buf, Last: last}
}

func completePacket() *TransmissionPacket {
	return &TransmissionPacket{Kind: Complete}
}

// MarshalWire implements wire.Marshaler.
func (p *TransmissionPacket) MarshalWire(w *wire.Writer) {
	w.BeginEnum(p.Kind.String())
	switch p.Kind {
	case SwitchToAddress:
		w.WriteUint(uint64(p.Port))
	case Seq:
		w.WriteUint(uint64(p.SeqNum))
	case Data:
		w.BeginMap()
		w.WriteMapEntry(func(w *wire.Writer) { w.WriteString("seq") }, func(w *wire.Writer) { w.WriteUint(uint64(p.DataSeq)) })
		w.WriteMapEntry(func(w *wire.Writer) { w.WriteString("hash") }, func(w *wire.Writer) { w.WriteUint(p.DataHash) })
		w.WriteMapEntry(func(w *wire.Writer) { w.WriteString("data") }, func(w *wire.Writer) { w.WriteBytes(p.DataBuf) })
		w.WriteMapEntry(func(w *wire.Writer) { w.WriteString("last") }, func(w *wire.Writer) { w.WriteBool(p.Last) })
		w.EndMap()
	case PacketAck:
		w.WriteUint(p.AckHash)
	case Complete:
		w.WriteUnit()
	}
}

// UnmarshalWire implements wire.Unmarshaler.
func (p *TransmissionPacket) UnmarshalWire(r *wire.Reader) error {
	variant, err := r.BeginEnum()
	if err != nil {
		return err
	}
	kind, ok := packetKindByName[variant]
	if !ok {
		return &wire.Error{Kind: wire.UnexpectedData, Msg: "unknown TransmissionPacket variant " + variant}
	}
	p.Kind = kind
	switch kind {
	case SwitchToAddress:
		v, err := r.ReadUint()
		if err != nil {
			return err
		}
		p.Port = uint16(v)
	case Seq:
		v, err := r.ReadUint()
		if err != nil {
			return err
		}
		p.SeqNum = uint32(v)
	case Data:
		if err := r.BeginMap(); err != nil {
			return err
		}
		for {
			has, err := r.MapHasNext()
			if err != nil {
				return err
			}
			if !has {
				break
			}
			if err := r.BeginMapEntry(); err != nil {
				return err
			}
			key, err := r.ReadString()
			if err != nil {
				return err
			}
			if err := r.MapEntryMid(); err != nil {
				return err
			}
			switch key {
			case "seq":
				v, err := r.ReadUint()
				if err != nil {
					return err
				}
				p.DataSeq = uint32(v)
			case "hash":
				v, err := r.ReadUint()
				if err != nil {
					return err
				}
				p.DataHash = v
			case "data":
				b, err := r.ReadBytes()
				if err != nil {
					return err
				}
				p.DataBuf = b
			case "last":
				b, err := r.ReadBool()
				if err != nil {
					return err
				}
				p.Last = b
			default:
				return &wire.Error{Kind: wire.UnexpectedData, Msg: "unknown Data field " + key}
			}
			if err := r.MapEntryEnd(); err != nil {
				return err
			}
		}
		if err := r.EndMap(); err != nil {
			return err
		}
	case PacketAck:
		v, err := r.ReadUint()
		if err != nil {
			return err
		}
		p.AckHash = v
	case Complete:
		return r.ReadUnit()
	}
	return nil
}

func udpPort(addr net.Addr) uint16 {
	if u, ok := addr.(*net.UDPAddr); ok {
		return uint16(u.Port)
	}
	return 0
}

func replaceAddrPort(addr net.Addr, port uint16) *net.UDPAddr {
	u, ok := addr.(*net.UDPAddr)
	if !ok {
		return &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1), Port: int(port)}
	}
	return &net.UDPAddr{IP: u.IP, Port: int(port), Zone: u.Zone}
}
