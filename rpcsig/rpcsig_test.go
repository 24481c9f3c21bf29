package rpcsig

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCheckPrefixFreeDetectsViolation(t *testing.T) {
	sigs := []Signature{New("FileService", "read"), New("FileService", "read_all")}
	err := CheckPrefixFree(sigs)
	require.Error(t, err)
	var pfErr *ErrNotPrefixFree
	require.ErrorAs(t, err, &pfErr)
}

func TestCheckPrefixFreeAcceptsDisjointSet(t *testing.T) {
	sigs := []Signature{
		New("FileService", "read_bytes"),
		New("FileService", "write_bytes"),
		New("FileService", "delete_file"),
	}
	require.NoError(t, CheckPrefixFree(sigs))
}

func TestRegistryLookupRoutesBySignature(t *testing.T) {
	r := NewRegistry()
	readSig := New("FileService", "read_bytes")
	writeSig := New("FileService", "write_bytes")
	r.Register(readSig, func(body []byte) ([]byte, error) { return append([]byte("read:"), body...), nil })
	r.Register(writeSig, func(body []byte) ([]byte, error) { return append([]byte("write:"), body...), nil })
	require.NoError(t, r.Validate())

	payload := EncodeRequest(writeSig, []byte("hello"))
	sig, handler, body, ok := r.Lookup(payload)
	require.True(t, ok)
	require.Equal(t, writeSig, sig)
	require.Equal(t, []byte("hello"), body)

	resp, err := handler(body)
	require.NoError(t, err)
	require.Equal(t, []byte("write:hello"), resp)
}

func TestRegistryLookupUnknownSignature(t *testing.T) {
	r := NewRegistry()
	r.Register(New("FileService", "read_bytes"), func(body []byte) ([]byte, error) { return body, nil })

	_, _, _, ok := r.Lookup(EncodeRequest(New("FileService", "delete_file"), []byte("x")))
	require.False(t, ok)
}
