package envelope

import (
	"hash/fnv"

	"github.com/ridgewireio/dgrpc/wire"
)

// Encode serializes env into the normal-envelope wire form:
// MiddlewareHeader || pack(serialize(env)).
func Encode(env *Envelope) []byte {
	raw := wire.Marshal(env)
	packed := wire.Pack(raw)
	out := make([]byte, 0, len(MiddlewareHeader)+len(packed))
	out = append(out, MiddlewareHeader...)
	return append(out, packed...)
}

// EncodeError serializes invokeErr into the remote-error wire form:
// ErrorHeader || pack(serialize(invokeErr)).
func EncodeError(invokeErr *InvokeError) []byte {
	raw := wire.Marshal(invokeErr)
	packed := wire.Pack(raw)
	out := make([]byte, 0, len(ErrorHeader)+len(packed))
	out = append(out, ErrorHeader...)
	return append(out, packed...)
}

// Decode inspects data's header and returns either a parsed Envelope, or
// when the header is ErrorHeader, an Envelope synthesized with Kind=Error
// so callers have one return type to switch on. A HeaderUnknown datagram
// is malformed (spec.md §3 invariant 1) and returns an error.
func Decode(data []byte) (*Envelope, error) {
	kind, rest := Discriminate(data)
	switch kind {
	case HeaderMiddleware:
		unpacked, err := wire.Unpack(rest)
		if err != nil {
			return nil, err
		}
		env := &Envelope{}
		if err := wire.Unmarshal(unpacked, env); err != nil {
			return nil, err
		}
		return env, nil
	case HeaderError:
		unpacked, err := wire.Unpack(rest)
		if err != nil {
			return nil, err
		}
		invokeErr := &InvokeError{}
		if err := wire.Unmarshal(unpacked, invokeErr); err != nil {
			return nil, err
		}
		return NewError(invokeErr), nil
	default:
		return nil, &wire.Error{Kind: wire.UnexpectedData, Msg: "datagram has neither MiddlewareHeader nor ErrorHeader"}
	}
}

// ContentHash computes the 64-bit content hash referenced by Ack(hash)
// (spec.md §3/§4.3.2). FNV-1a is used for its combination of speed and a
// stdlib implementation that is already part of the teacher's dependency
// surface.
func ContentHash(data []byte) uint64 {
	h := fnv.New64a()
	h.Write(data)
	return h.Sum64()
}
