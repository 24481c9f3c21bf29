package wire

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
)

type point struct {
	x, y int64
}

func (p *point) MarshalWire(w *Writer) {
	w.BeginMap()
	w.WriteMapEntry(func(w *Writer) { w.WriteString("x") }, func(w *Writer) { w.WriteInt(p.x) })
	w.WriteMapEntry(func(w *Writer) { w.WriteString("y") }, func(w *Writer) { w.WriteInt(p.y) })
	w.EndMap()
}

func (p *point) UnmarshalWire(r *Reader) error {
	if err := r.BeginMap(); err != nil {
		return err
	}
	for {
		has, err := r.MapHasNext()
		if err != nil {
			return err
		}
		if !has {
			break
		}
		if err := r.BeginMapEntry(); err != nil {
			return err
		}
		key, err := r.ReadString()
		if err != nil {
			return err
		}
		if err := r.MapEntryMid(); err != nil {
			return err
		}
		v, err := r.ReadInt()
		if err != nil {
			return err
		}
		if err := r.MapEntryEnd(); err != nil {
			return err
		}
		switch key {
		case "x":
			p.x = v
		case "y":
			p.y = v
		default:
			return errUnexpected("unknown field " + key)
		}
	}
	return r.EndMap()
}

func TestWriterReaderScalarRoundTrip(t *testing.T) {
	w := NewWriter()
	w.WriteBool(true)
	w.WriteInt(-42)
	w.WriteUint(7)
	w.WriteString("hello")
	w.WriteBytes([]byte{1, 2, 3})
	w.WriteUnit()
	w.WriteOptionNone()
	w.WriteOptionSome(func(w *Writer) { w.WriteInt(9) })

	r := NewReader(w.Bytes())

	b, err := r.ReadBool()
	require.NoError(t, err)
	require.True(t, b)

	i, err := r.ReadInt()
	require.NoError(t, err)
	require.Equal(t, int64(-42), i)

	u, err := r.ReadUint()
	require.NoError(t, err)
	require.Equal(t, uint64(7), u)

	s, err := r.ReadString()
	require.NoError(t, err)
	require.Equal(t, "hello", s)

	by, err := r.ReadBytes()
	require.NoError(t, err)
	require.Equal(t, []byte{1, 2, 3}, by)

	require.NoError(t, r.ReadUnit())

	present, err := r.ReadOptionPresent()
	require.NoError(t, err)
	require.False(t, present)

	present, err = r.ReadOptionPresent()
	require.NoError(t, err)
	require.True(t, present)
	i, err = r.ReadInt()
	require.NoError(t, err)
	require.Equal(t, int64(9), i)

	require.Zero(t, r.Remaining())
}

func TestWriterReaderSeqRoundTrip(t *testing.T) {
	w := NewWriter()
	w.BeginSeq()
	for _, v := range []int64{1, 2, 3} {
		w.WriteInt(v)
	}
	w.EndSeq()

	r := NewReader(w.Bytes())
	require.NoError(t, r.BeginSeq())
	var got []int64
	for {
		has, err := r.SeqHasNext()
		require.NoError(t, err)
		if !has {
			break
		}
		v, err := r.ReadInt()
		require.NoError(t, err)
		got = append(got, v)
	}
	require.NoError(t, r.EndSeq())
	require.Equal(t, []int64{1, 2, 3}, got)
}

func TestWriterReaderEnumRoundTrip(t *testing.T) {
	w := NewWriter()
	w.BeginEnum("Ready")
	w.WriteUnit()

	r := NewReader(w.Bytes())
	variant, err := r.BeginEnum()
	require.NoError(t, err)
	require.Equal(t, "Ready", variant)
	require.NoError(t, r.ReadUnit())
}

func TestMarshalerUnmarshalerRoundTrip(t *testing.T) {
	p := &point{x: 10, y: -5}
	data := Marshal(p)

	var got point
	require.NoError(t, Unmarshal(data, &got))
	require.Equal(t, *p, got)
}

func TestReaderPrefixMismatch(t *testing.T) {
	w := NewWriter()
	w.WriteString("oops")
	r := NewReader(w.Bytes())
	_, err := r.ReadInt()
	require.Error(t, err)
	var wireErr *Error
	require.ErrorAs(t, err, &wireErr)
	require.Equal(t, PrefixNotMatched, wireErr.Kind)
}

func TestReaderOutOfBytes(t *testing.T) {
	r := NewReader(nil)
	_, err := r.ReadBool()
	require.Error(t, err)
	var wireErr *Error
	require.ErrorAs(t, err, &wireErr)
	require.Equal(t, OutOfBytes, wireErr.Kind)
}

func TestPackUnpackRoundTrip(t *testing.T) {
	cases := [][]byte{
		{},
		{1, 2, 3},
		bytes.Repeat([]byte{0}, 3),
		bytes.Repeat([]byte{0}, 4),
		bytes.Repeat([]byte{0}, 300),
		bytes.Repeat([]byte{0}, 35), // run length == PackerDelim's own byte value ('#' == 0x23 == 35)
		bytes.Repeat([]byte{0}, 35*2+17),
		{0, 0, 0, 0, 1, 0, 0, 0, 0, 2},
		{PackerDelim, 1, PackerDelim},
		append([]byte{'a', 'b'}, bytes.Repeat([]byte{0}, 10)...),
	}
	for _, c := range cases {
		packed := Pack(c)
		unpacked, err := Unpack(packed)
		require.NoError(t, err)
		require.Equal(t, c, unpacked)
	}
}

func TestPackCompressesLongZeroRuns(t *testing.T) {
	data := bytes.Repeat([]byte{0}, 200)
	packed := Pack(data)
	require.Less(t, len(packed), len(data))
}

func TestUnpackMalformedMarker(t *testing.T) {
	_, err := Unpack([]byte{PackerDelim, 5, 'x'})
	require.Error(t, err)
	var wireErr *Error
	require.ErrorAs(t, err, &wireErr)
	require.Equal(t, MalformedData, wireErr.Kind)
}
