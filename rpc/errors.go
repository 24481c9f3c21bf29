package rpc

import "errors"

// ErrPingMismatch is returned by NewContextManager when the peer's reply
// to the initial Ping round-trip is not itself a Ping (spec.md §4.4:
// "a mismatched reply fails the constructor").
var ErrPingMismatch = errors.New("rpc: ping round-trip returned a mismatched reply")

// ErrUnexpectedEnvelopeKind is returned by Invoke when a response envelope
// is neither Payload nor Error.
var ErrUnexpectedEnvelopeKind = errors.New("rpc: unexpected envelope kind in response")
