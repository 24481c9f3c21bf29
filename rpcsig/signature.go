// Package rpcsig implements method signatures, the "<TraitName>::method"
// byte strings used to route every request to its handler (spec.md §3),
// and the prefix-free invariant the server relies on to disambiguate them
// without a length prefix on the wire.
package rpcsig

import (
	"fmt"
	"sort"
	"strings"
)

// Signature is a method signature of the form "TraitName::method_name".
type Signature string

// New builds a Signature from a trait (interface) name and a method name.
func New(trait, method string) Signature {
	return Signature(trait + "::" + method)
}

// String returns the signature's wire representation.
func (s Signature) String() string {
	return string(s)
}

// ErrNotPrefixFree is returned by CheckPrefixFree when two signatures in
// the set violate the prefix-free invariant (spec.md §3 invariant, and
// §8's testable property of the same name).
type ErrNotPrefixFree struct {
	Short, Long Signature
}

func (e *ErrNotPrefixFree) Error() string {
	return fmt.Sprintf("rpcsig: %q is a prefix of %q", e.Short, e.Long)
}

// CheckPrefixFree validates that no signature in sigs is a prefix of
// another, which the server relies on when it strips the leading
// signature bytes off a payload to find the handler (spec.md §3).
func CheckPrefixFree(sigs []Signature) error {
	sorted := make([]Signature, len(sigs))
	copy(sorted, sigs)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	for i := 1; i < len(sorted); i++ {
		if strings.HasPrefix(string(sorted[i]), string(sorted[i-1])) {
			return &ErrNotPrefixFree{Short: sorted[i-1], Long: sorted[i]}
		}
	}
	return nil
}
