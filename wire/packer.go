package wire

// packerEscapeCount is the reserved count byte that marks a literal
// PackerDelim byte in the input rather than a zero run. Real zero runs
// never use this value (their count is always in [4,255]), so a count
// byte that happens to equal PackerDelim's own byte value (0x23, '#')
// can never be confused with the escape: both cases are decoded purely
// by position (delim, count, delim), never by comparing the count byte
// against PackerDelim.
const packerEscapeCount byte = 0

// Pack compresses runs of 4-255 consecutive zero bytes in data into a
// 3-byte marker: PackerDelim, the run length, PackerDelim. Runs shorter
// than 4 bytes are left as literal zeros, since the marker itself costs 3
// bytes and would not pay for itself. Runs longer than 255 bytes are
// split into consecutive maximal markers. A literal PackerDelim byte in
// the input is escaped as PackerDelim, packerEscapeCount, PackerDelim --
// the same 3-byte shape as a run marker but with a count no real run can
// produce, so Unpack never has to guess which case it's in from the
// count byte's value.
func Pack(data []byte) []byte {
	out := make([]byte, 0, len(data))
	i := 0
	for i < len(data) {
		if data[i] == PackerDelim {
			out = append(out, PackerDelim, packerEscapeCount, PackerDelim)
			i++
			continue
		}
		if data[i] != 0 {
			out = append(out, data[i])
			i++
			continue
		}
		run := 0
		for i+run < len(data) && data[i+run] == 0 && run < 255 {
			run++
		}
		if run < 4 {
			out = append(out, data[i:i+run]...)
		} else {
			out = append(out, PackerDelim, byte(run), PackerDelim)
		}
		i += run
	}
	return out
}

// Unpack reverses Pack. It returns a wire.Error of kind OutOfBytes if a
// run marker is truncated, and of kind MalformedData if its closing
// delimiter is missing.
func Unpack(data []byte) ([]byte, error) {
	out := make([]byte, 0, len(data))
	i := 0
	for i < len(data) {
		if data[i] != PackerDelim {
			out = append(out, data[i])
			i++
			continue
		}
		if i+2 >= len(data) {
			return nil, errOutOfBytes()
		}
		count := data[i+1]
		if data[i+2] != PackerDelim {
			return nil, errMalformed()
		}
		if count == packerEscapeCount {
			out = append(out, PackerDelim)
		} else {
			for n := byte(0); n < count; n++ {
				out = append(out, 0)
			}
		}
		i += 3
	}
	return out, nil
}
