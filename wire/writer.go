package wire

import (
	"bytes"
	"encoding/binary"
)

// Marshaler is implemented by any type that can serialize itself into the
// tagged wire format. Every request/response payload, envelope variant, and
// transmission packet in this module implements it.
type Marshaler interface {
	MarshalWire(w *Writer)
}

// Marshal serializes v into its wire representation.
func Marshal(v Marshaler) []byte {
	w := NewWriter()
	v.MarshalWire(w)
	return w.Bytes()
}

// Writer accumulates a tagged binary stream. The zero value is an empty
// Writer ready for use; NewWriter returns one.
type Writer struct {
	buf bytes.Buffer
}

// NewWriter returns a Writer ready to accept values.
func NewWriter() *Writer {
	return &Writer{}
}

// Bytes returns the bytes written so far. The returned slice is owned by
// the caller; subsequent writes to w do not affect it.
func (w *Writer) Bytes() []byte {
	out := make([]byte, w.buf.Len())
	copy(out, w.buf.Bytes())
	return out
}

func (w *Writer) putLen(n int) {
	var lenBuf [LenSize]byte
	binary.BigEndian.PutUint64(lenBuf[:], uint64(n))
	w.buf.Write(lenBuf[:])
}

// WriteBool writes a boolean: PrefixBool followed by BoolTrue/BoolFalse.
func (w *Writer) WriteBool(v bool) {
	w.buf.WriteByte(PrefixBool)
	if v {
		w.buf.WriteByte(BoolTrue)
	} else {
		w.buf.WriteByte(BoolFalse)
	}
}

// WriteInt writes a signed integer of any width, widened to i64.
func (w *Writer) WriteInt(v int64) {
	w.buf.WriteByte(PrefixNum)
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], uint64(v))
	w.buf.Write(b[:])
}

// WriteUint writes an unsigned integer of any width, widened to u64.
func (w *Writer) WriteUint(v uint64) {
	w.buf.WriteByte(PrefixNum)
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], v)
	w.buf.Write(b[:])
}

// WriteFloat64 is unsupported by this codec; it exists only to document
// that floats are deliberately rejected (spec.md §4.1).
func (w *Writer) WriteFloat64(float64) {
	panic("wire: float serialization is not supported")
}

// WriteRune writes a char as 4 big-endian bytes with no type prefix.
func (w *Writer) WriteRune(r rune) {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], uint32(r))
	w.buf.Write(b[:])
}

// WriteString writes a length-prefixed UTF-8 string.
func (w *Writer) WriteString(s string) {
	w.buf.WriteByte(PrefixStr)
	w.putLen(len(s))
	w.buf.WriteString(s)
}

// WriteBytes writes a length-prefixed raw byte buffer.
func (w *Writer) WriteBytes(b []byte) {
	w.buf.WriteByte(PrefixBytes)
	w.putLen(len(b))
	w.buf.Write(b)
}

// WriteUnit writes the unit value (used for unit structs and empty enum
// variants).
func (w *Writer) WriteUnit() {
	w.buf.WriteByte(PrefixUnit)
}

// WriteOptionNone writes an absent option.
func (w *Writer) WriteOptionNone() {
	w.buf.WriteByte(PrefixOptional)
	w.buf.WriteByte(OptionNone)
}

// WriteOptionSome writes a present option, invoking inner to serialize the
// contained value.
func (w *Writer) WriteOptionSome(inner func(w *Writer)) {
	w.buf.WriteByte(PrefixOptional)
	w.buf.WriteByte(OptionSome)
	inner(w)
}

// BeginSeq opens a variable-length sequence. Follow with zero or more
// element writes, then EndSeq.
func (w *Writer) BeginSeq() {
	w.buf.WriteByte(PrefixSeq)
	w.buf.WriteByte(SeqOpen)
}

// EndSeq closes a sequence opened with BeginSeq.
func (w *Writer) EndSeq() {
	w.buf.WriteByte(SeqClose)
}

// BeginSeqConst opens a fixed-length sequence (tuple).
func (w *Writer) BeginSeqConst() {
	w.buf.WriteByte(PrefixSeqConst)
	w.buf.WriteByte(SeqConstOpen)
}

// EndSeqConst closes a fixed-length sequence opened with BeginSeqConst.
func (w *Writer) EndSeqConst() {
	w.buf.WriteByte(SeqConstClose)
}

// BeginMap opens a map or named-field struct.
func (w *Writer) BeginMap() {
	w.buf.WriteByte(PrefixMap)
	w.buf.WriteByte(MapOpen)
}

// EndMap closes a map opened with BeginMap.
func (w *Writer) EndMap() {
	w.buf.WriteByte(MapClose)
}

// WriteMapEntry writes one `<key-value>` entry. key and value each
// serialize exactly one value via the writer passed to them.
func (w *Writer) WriteMapEntry(key, value func(w *Writer)) {
	w.buf.WriteByte(MapEntryOpen)
	key(w)
	w.buf.WriteByte(MapEntryMid)
	value(w)
	w.buf.WriteByte(MapEntryClose)
}

// BeginEnum writes the enum prefix and the variant name, then leaves the
// caller to serialize the variant's payload (WriteUnit for a unit variant,
// BeginMap/EndMap for a struct variant, or any other value for a
// single-field variant).
func (w *Writer) BeginEnum(variant string) {
	w.buf.WriteByte(PrefixEnum)
	w.WriteString(variant)
}
