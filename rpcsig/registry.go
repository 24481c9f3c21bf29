package rpcsig

import (
	"bytes"
	"sort"
)

// Handler processes the bytes that follow a method signature in a
// request payload and returns the bytes to serialize as the response
// payload.
type Handler func(requestBody []byte) ([]byte, error)

// Registry maps method signatures to handlers and performs the
// signature-strip routing described in spec.md §4.5: a request payload
// is the raw signature bytes immediately followed by the wire-serialized
// request body, with no delimiter between them, which is exactly why
// CheckPrefixFree must hold over every signature registered here.
type Registry struct {
	entries map[Signature]Handler
	// byLengthDesc holds registered signatures sorted longest-first so
	// Lookup's prefix scan always prefers the most specific match.
	byLengthDesc []Signature
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{entries: make(map[Signature]Handler)}
}

// Register adds sig -> handler. It does not itself enforce
// prefix-freeness; call Validate after registering the full handler set.
func (r *Registry) Register(sig Signature, handler Handler) {
	if _, exists := r.entries[sig]; !exists {
		r.byLengthDesc = append(r.byLengthDesc, sig)
		sort.Slice(r.byLengthDesc, func(i, j int) bool {
			return len(r.byLengthDesc[i]) > len(r.byLengthDesc[j])
		})
	}
	r.entries[sig] = handler
}

// Validate checks that every registered signature is prefix-free with
// respect to the others.
func (r *Registry) Validate() error {
	return CheckPrefixFree(r.byLengthDesc)
}

// Lookup scans payload for the registered signature it begins with and
// returns the matching signature, the handler, and the request body
// following it. ok is false when no registered signature is a prefix of
// payload (spec.md §4.5: "Unknown signature -> InvokeError::HandlerNotFound").
func (r *Registry) Lookup(payload []byte) (sig Signature, handler Handler, body []byte, ok bool) {
	for _, candidate := range r.byLengthDesc {
		if bytes.HasPrefix(payload, []byte(candidate)) {
			return candidate, r.entries[candidate], payload[len(candidate):], true
		}
	}
	return "", nil, nil, false
}

// EncodeRequest prepends sig's raw bytes to body, forming the payload a
// client sends for a call to sig.
func EncodeRequest(sig Signature, body []byte) []byte {
	out := make([]byte, 0, len(sig)+len(body))
	out = append(out, []byte(sig)...)
	return append(out, body...)
}
