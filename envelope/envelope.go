package envelope

import "github.com/ridgewireio/dgrpc/wire"

// Kind discriminates the variants of the envelope tagged union
// (spec.md §3, "Envelope (MiddlewareData)").
type Kind int

const (
	Ping Kind = iota
	Payload
	Callback
	Ack
	Error
)

var kindNames = map[Kind]string{
	Ping:     "Ping",
	Payload:  "Payload",
	Callback: "Callback",
	Ack:      "Ack",
	Error:    "Error",
}

var kindByName = func() map[string]Kind {
	m := make(map[string]Kind, len(kindNames))
	for k, v := range kindNames {
		m[v] = k
	}
	return m
}()

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return "Unknown"
}

// Envelope is the outermost tagged union wrapping every datagram payload.
// Only the field matching Kind is meaningful:
//
//	Ping     -> none
//	Payload  -> PayloadBytes (a serialized typed-call Request or Response)
//	Callback -> PayloadBytes (reserved; spec.md §4.5 treats it as a stray)
//	Ack      -> Hash (64-bit content hash of the acknowledged payload)
//	Error    -> Err
type Envelope struct {
	Kind         Kind
	PayloadBytes []byte
	Hash         uint64
	Err          *InvokeError
}

// NewPing builds a Ping envelope.
func NewPing() *Envelope { return &Envelope{Kind: Ping} }

// NewPayload builds a Payload envelope carrying an already-serialized
// typed-call Request or Response.
func NewPayload(data []byte) *Envelope {
	return &Envelope{Kind: Payload, PayloadBytes: data}
}

// NewCallback builds a Callback envelope.
func NewCallback(data []byte) *Envelope {
	return &Envelope{Kind: Callback, PayloadBytes: data}
}

// NewAck builds an Ack envelope referencing hash.
func NewAck(hash uint64) *Envelope {
	return &Envelope{Kind: Ack, Hash: hash}
}

// NewError builds an Error envelope.
func NewError(err *InvokeError) *Envelope {
	return &Envelope{Kind: Error, Err: err}
}

// MarshalWire serializes the envelope as an enum tagged with its variant
// name, per wire.Writer.BeginEnum's contract.
func (e *Envelope) MarshalWire(w *wire.Writer) {
	w.BeginEnum(e.Kind.String())
	switch e.Kind {
	case Ping:
		w.WriteUnit()
	case Payload, Callback:
		w.WriteBytes(e.PayloadBytes)
	case Ack:
		w.WriteUint(e.Hash)
	case Error:
		e.Err.MarshalWire(w)
	default:
		panic("envelope: unknown Kind")
	}
}

// UnmarshalWire reads an Envelope written by MarshalWire.
func (e *Envelope) UnmarshalWire(r *wire.Reader) error {
	variant, err := r.BeginEnum()
	if err != nil {
		return err
	}
	kind, ok := kindByName[variant]
	if !ok {
		return &wire.Error{Kind: wire.UnexpectedData, Msg: "unknown Envelope variant " + variant}
	}
	e.Kind = kind
	switch kind {
	case Ping:
		return r.ReadUnit()
	case Payload, Callback:
		b, err := r.ReadBytes()
		if err != nil {
			return err
		}
		e.PayloadBytes = b
		return nil
	case Ack:
		h, err := r.ReadUint()
		if err != nil {
			return err
		}
		e.Hash = h
		return nil
	case Error:
		e.Err = &InvokeError{}
		return e.Err.UnmarshalWire(r)
	default:
		return &wire.Error{Kind: wire.MalformedData}
	}
}
