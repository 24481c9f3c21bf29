package envelope

import "github.com/ridgewireio/dgrpc/wire"

// InvokeErrorKind is the closed enumeration of server-side remote errors
// (spec.md §3).
type InvokeErrorKind int

const (
	RemoteConnectionFailed InvokeErrorKind = iota
	DataTransmissionFailed
	HandlerNotFound
	DeserializationFailed
	HandlerFailed
)

var invokeErrorNames = map[InvokeErrorKind]string{
	RemoteConnectionFailed: "RemoteConnectionFailed",
	DataTransmissionFailed: "DataTransmissionFailed",
	HandlerNotFound:        "HandlerNotFound",
	DeserializationFailed:  "DeserializationFailed",
	HandlerFailed:          "HandlerFailed",
}

var invokeErrorByName = func() map[string]InvokeErrorKind {
	m := make(map[string]InvokeErrorKind, len(invokeErrorNames))
	for k, v := range invokeErrorNames {
		m[v] = k
	}
	return m
}()

func (k InvokeErrorKind) String() string {
	if s, ok := invokeErrorNames[k]; ok {
		return s
	}
	return "Unknown"
}

// InvokeError is the error returned to a client when a remote invocation
// fails on the server side. It implements the error interface so callers
// can propagate it through ordinary Go error handling.
type InvokeError struct {
	Kind InvokeErrorKind
	// Detail is an optional human-readable message, not part of the wire
	// contract's discriminant but carried along for logging.
	Detail string
}

func (e *InvokeError) Error() string {
	if e.Detail == "" {
		return "dgrpc: " + e.Kind.String()
	}
	return "dgrpc: " + e.Kind.String() + ": " + e.Detail
}

// MarshalWire writes the InvokeError as an enum with the kind's variant
// name and, when present, a detail string payload.
func (e *InvokeError) MarshalWire(w *wire.Writer) {
	w.BeginEnum(e.Kind.String())
	if e.Detail == "" {
		w.WriteOptionNone()
	} else {
		detail := e.Detail
		w.WriteOptionSome(func(w *wire.Writer) { w.WriteString(detail) })
	}
}

// UnmarshalWire reads an InvokeError written by MarshalWire.
func (e *InvokeError) UnmarshalWire(r *wire.Reader) error {
	variant, err := r.BeginEnum()
	if err != nil {
		return err
	}
	kind, ok := invokeErrorByName[variant]
	if !ok {
		return &wire.Error{Kind: wire.UnexpectedData, Msg: "unknown InvokeError variant " + variant}
	}
	present, err := r.ReadOptionPresent()
	if err != nil {
		return err
	}
	var detail string
	if present {
		detail, err = r.ReadString()
		if err != nil {
			return err
		}
	}
	e.Kind = kind
	e.Detail = detail
	return nil
}
