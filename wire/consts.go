// Package wire implements the self-describing tagged binary codec used for
// every payload that crosses the network: a single-byte type prefix in
// front of every logical value, 8-byte big-endian lengths for variable-size
// data, and a run-length packer for the zero-heavy byte streams this
// produces.
package wire

// Type prefixes. Every logical value serialized by this package is preceded
// by exactly one of these bytes so that deserialization can assert the type
// it expects to find. Values are part of the wire contract and must never
// change across releases.
const (
	PrefixBool     byte = 'B'
	PrefixNum      byte = 'N'
	PrefixFloat    byte = 'F' // reserved: floats are not supported by this codec
	PrefixStr      byte = 'S'
	PrefixBytes    byte = 'Y'
	PrefixOptional byte = 'O'
	PrefixUnit     byte = 'U'
	PrefixEnum     byte = 'E'
	PrefixSeq      byte = 'Q'
	PrefixSeqConst byte = 'R'
	PrefixMap      byte = 'M'
)

// Collection delimiters.
const (
	SeqOpen       byte = '['
	SeqClose      byte = ']'
	SeqConstOpen  byte = '('
	SeqConstClose byte = ')'
	MapOpen       byte = '{'
	MapClose      byte = '}'
	MapEntryOpen  byte = '<'
	MapEntryMid   byte = '-'
	MapEntryClose byte = '>'
)

// Option and bool sub-tags.
const (
	OptionNone byte = 0x00
	OptionSome byte = 0xFF

	BoolFalse byte = 0x00
	BoolTrue  byte = 0xFF
)

// PackerDelim is the marker byte that brackets a run-length-encoded run of
// zero bytes in the packed transport form: `# N #`.
const PackerDelim byte = '#'

// LenSize is the width, in bytes, of every length field this codec writes
// (string length, byte-buffer length). Sequences and maps carry no element
// count; they are bracketed by delimiters.
const LenSize = 8
