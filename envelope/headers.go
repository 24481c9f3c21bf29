// Package envelope implements the outermost tagged union carried by every
// datagram payload (spec.md §3/§4.2): a magic byte-string header that lets
// a receiver discriminate a remote error from a normal envelope before it
// even attempts to parse the wire codec, followed by the packed,
// self-describing payload itself.
package envelope

import "bytes"

// MiddlewareHeader prefixes a normal envelope: MiddlewareHeader ||
// pack(serialize(Envelope)).
var MiddlewareHeader = []byte("RDGPv1:MW")

// ErrorHeader prefixes a remote error response: ErrorHeader ||
// pack(serialize(InvokeError)).
var ErrorHeader = []byte("RDGPv1:ER")

// HeaderKind distinguishes which magic header a datagram carries.
type HeaderKind int

const (
	// HeaderUnknown means neither header matched; the datagram is malformed
	// and must be dropped (spec.md §3 invariant 1).
	HeaderUnknown HeaderKind = iota
	HeaderMiddleware
	HeaderError
)

// Discriminate inspects the leading bytes of data and reports which header
// is present, along with the remaining bytes past that header. It never
// parses the payload itself — that is the point of the magic header
// (spec.md §4.2).
func Discriminate(data []byte) (HeaderKind, []byte) {
	if bytes.HasPrefix(data, MiddlewareHeader) {
		return HeaderMiddleware, data[len(MiddlewareHeader):]
	}
	if bytes.HasPrefix(data, ErrorHeader) {
		return HeaderError, data[len(ErrorHeader):]
	}
	return HeaderUnknown, nil
}
