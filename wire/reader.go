package wire

import "encoding/binary"

// Unmarshaler is implemented by any type that can deserialize itself from
// the tagged wire format. Deserialization is never schema-free: the caller
// must already know the concrete target type (spec.md §4.1).
type Unmarshaler interface {
	UnmarshalWire(r *Reader) error
}

// Unmarshal deserializes data into v.
func Unmarshal(data []byte, v Unmarshaler) error {
	r := NewReader(data)
	return v.UnmarshalWire(r)
}

// Reader walks a tagged binary stream produced by Writer.
type Reader struct {
	buf []byte
	pos int
}

// NewReader wraps data for reading. data is not copied; the caller must not
// mutate it while the Reader is in use.
func NewReader(data []byte) *Reader {
	return &Reader{buf: data}
}

// Remaining reports how many unread bytes are left.
func (r *Reader) Remaining() int {
	return len(r.buf) - r.pos
}

// Peek returns the next unread byte without consuming it. It returns an
// Error of kind OutOfBytes if the stream is exhausted.
func (r *Reader) Peek() (byte, error) {
	if r.pos >= len(r.buf) {
		return 0, errOutOfBytes()
	}
	return r.buf[r.pos], nil
}

func (r *Reader) readByte() (byte, error) {
	if r.pos >= len(r.buf) {
		return 0, errOutOfBytes()
	}
	b := r.buf[r.pos]
	r.pos++
	return b, nil
}

func (r *Reader) readN(n int) ([]byte, error) {
	if r.pos+n > len(r.buf) {
		return nil, errOutOfBytes()
	}
	out := r.buf[r.pos : r.pos+n]
	r.pos += n
	return out, nil
}

func (r *Reader) expect(prefix byte) error {
	b, err := r.readByte()
	if err != nil {
		return err
	}
	if b != prefix {
		return errPrefix(b)
	}
	return nil
}

func (r *Reader) expectDelim(delim byte) error {
	b, err := r.readByte()
	if err != nil {
		return err
	}
	if b != delim {
		return errDelim(b)
	}
	return nil
}

func (r *Reader) readLen() (int, error) {
	b, err := r.readN(LenSize)
	if err != nil {
		return 0, err
	}
	n := binary.BigEndian.Uint64(b)
	if n > uint64(^uint(0)>>1) {
		return 0, errMalformed()
	}
	return int(n), nil
}

// ReadBool reads a boolean.
func (r *Reader) ReadBool() (bool, error) {
	if err := r.expect(PrefixBool); err != nil {
		return false, err
	}
	b, err := r.readByte()
	if err != nil {
		return false, err
	}
	switch b {
	case BoolTrue:
		return true, nil
	case BoolFalse:
		return false, nil
	default:
		return false, errUnexpected("invalid bool sub-tag")
	}
}

// ReadInt reads a signed integer written by WriteInt.
func (r *Reader) ReadInt() (int64, error) {
	if err := r.expect(PrefixNum); err != nil {
		return 0, err
	}
	b, err := r.readN(8)
	if err != nil {
		return 0, err
	}
	return int64(binary.BigEndian.Uint64(b)), nil
}

// ReadUint reads an unsigned integer written by WriteUint.
func (r *Reader) ReadUint() (uint64, error) {
	if err := r.expect(PrefixNum); err != nil {
		return 0, err
	}
	b, err := r.readN(8)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint64(b), nil
}

// ReadRune reads a 4-byte big-endian char with no type prefix.
func (r *Reader) ReadRune() (rune, error) {
	b, err := r.readN(4)
	if err != nil {
		return 0, err
	}
	return rune(binary.BigEndian.Uint32(b)), nil
}

// ReadString reads a length-prefixed UTF-8 string.
func (r *Reader) ReadString() (string, error) {
	if err := r.expect(PrefixStr); err != nil {
		return "", err
	}
	n, err := r.readLen()
	if err != nil {
		return "", err
	}
	b, err := r.readN(n)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// ReadBytes reads a length-prefixed raw byte buffer.
func (r *Reader) ReadBytes() ([]byte, error) {
	if err := r.expect(PrefixBytes); err != nil {
		return nil, err
	}
	n, err := r.readLen()
	if err != nil {
		return nil, err
	}
	b, err := r.readN(n)
	if err != nil {
		return nil, err
	}
	out := make([]byte, n)
	copy(out, b)
	return out, nil
}

// ReadUnit reads the unit value.
func (r *Reader) ReadUnit() error {
	return r.expect(PrefixUnit)
}

// ReadOptionPresent reads the option prefix and sub-tag, reporting whether
// a value follows. The caller must then deserialize the inner value when
// true is returned.
func (r *Reader) ReadOptionPresent() (bool, error) {
	if err := r.expect(PrefixOptional); err != nil {
		return false, err
	}
	b, err := r.readByte()
	if err != nil {
		return false, err
	}
	switch b {
	case OptionSome:
		return true, nil
	case OptionNone:
		return false, nil
	default:
		return false, errUnexpected("invalid option sub-tag")
	}
}

// BeginSeq reads the sequence prefix and opening delimiter.
func (r *Reader) BeginSeq() error {
	if err := r.expect(PrefixSeq); err != nil {
		return err
	}
	return r.expectDelim(SeqOpen)
}

// SeqHasNext reports whether another element precedes the closing
// delimiter, without consuming anything.
func (r *Reader) SeqHasNext() (bool, error) {
	b, err := r.Peek()
	if err != nil {
		return false, err
	}
	return b != SeqClose, nil
}

// EndSeq consumes the closing delimiter of a sequence.
func (r *Reader) EndSeq() error {
	return r.expectDelim(SeqClose)
}

// BeginSeqConst reads the fixed-sequence prefix and opening delimiter.
func (r *Reader) BeginSeqConst() error {
	if err := r.expect(PrefixSeqConst); err != nil {
		return err
	}
	return r.expectDelim(SeqConstOpen)
}

// EndSeqConst consumes the closing delimiter of a fixed sequence.
func (r *Reader) EndSeqConst() error {
	return r.expectDelim(SeqConstClose)
}

// BeginMap reads the map prefix and opening delimiter.
func (r *Reader) BeginMap() error {
	if err := r.expect(PrefixMap); err != nil {
		return err
	}
	return r.expectDelim(MapOpen)
}

// MapHasNext reports whether another entry precedes the closing delimiter.
func (r *Reader) MapHasNext() (bool, error) {
	b, err := r.Peek()
	if err != nil {
		return false, err
	}
	return b != MapClose, nil
}

// EndMap consumes the closing delimiter of a map.
func (r *Reader) EndMap() error {
	return r.expectDelim(MapClose)
}

// BeginMapEntry consumes the opening `<` of one map entry. Call
// MapEntryMid after reading the key, then MapEntryEnd after the value.
func (r *Reader) BeginMapEntry() error {
	return r.expectDelim(MapEntryOpen)
}

// MapEntryMid consumes the `-` separating a map entry's key and value.
func (r *Reader) MapEntryMid() error {
	return r.expectDelim(MapEntryMid)
}

// MapEntryEnd consumes the closing `>` of one map entry.
func (r *Reader) MapEntryEnd() error {
	return r.expectDelim(MapEntryClose)
}

// BeginEnum reads the enum prefix and returns the variant name.
func (r *Reader) BeginEnum() (string, error) {
	if err := r.expect(PrefixEnum); err != nil {
		return "", err
	}
	return r.ReadString()
}
