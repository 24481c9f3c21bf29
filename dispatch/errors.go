package dispatch

import "errors"

// ErrDeserialization should be wrapped (via fmt.Errorf("%w: ...", ...))
// and returned by a rpcsig.Handler when it fails to deserialize its
// request body, so the dispatcher can report InvokeError::
// DeserializationFailed instead of the generic HandlerFailed (spec.md
// §4.5).
var ErrDeserialization = errors.New("dispatch: request body deserialization failed")
