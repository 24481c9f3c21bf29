package rpc

import (
	"bytes"
	"context"

	"github.com/ridgewireio/dgrpc/rpcsig"
	"github.com/ridgewireio/dgrpc/wire"
)

// Call is the generic client-stub helper spec.md §9 allows in place of
// per-method generated stubs: it serializes req, prefixes it with sig,
// invokes cm, strips sig from the front of the reply (the dispatcher
// re-prepends it to every response), and deserializes the rest into resp.
// resp must be a non-nil pointer whose pointee implements wire.Unmarshaler.
func Call(ctx context.Context, cm *ContextManager, sig rpcsig.Signature, req wire.Marshaler, resp wire.Unmarshaler) error {
	body := wire.Marshal(req)
	payload := rpcsig.EncodeRequest(sig, body)
	respBytes, err := cm.Invoke(ctx, payload)
	if err != nil {
		return err
	}
	respBytes = bytes.TrimPrefix(respBytes, []byte(sig))
	return wire.Unmarshal(respBytes, resp)
}
