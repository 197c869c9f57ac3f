// Package conv formats bytes for console output without fmt, so the
// firmware build stays small.
package conv

const hexd = "0123456789ABCDEF"

// U8Hex writes two uppercase hex digits without 0x and returns the used slice.
func U8Hex(buf []byte, n uint8) []byte {
	if len(buf) < 2 {
		return buf[:0]
	}
	buf[0] = hexd[n>>4]
	buf[1] = hexd[n&0xF]
	return buf[:2]
}

// U16Hex writes four uppercase hex digits without 0x, zero-padded.
func U16Hex(buf []byte, n uint16) []byte {
	if len(buf) < 4 {
		return buf[:0]
	}
	U8Hex(buf[0:2], uint8(n>>8))
	U8Hex(buf[2:4], uint8(n))
	return buf[:4]
}

// DumpLine appends one hex dump line, "OOOO: HH HH ..", to dst.
func DumpLine(dst []byte, off uint16, data []byte) []byte {
	var b [4]byte
	dst = append(dst, U16Hex(b[:], off)...)
	dst = append(dst, ':')
	for _, v := range data {
		dst = append(dst, ' ')
		dst = append(dst, U8Hex(b[:], v)...)
	}
	return dst
}

// Dump renders data as hex dump lines of width bytes, offsets starting at base.
func Dump(base uint16, data []byte, width int) []string {
	if width <= 0 {
		width = 16
	}
	var lines []string
	for i := 0; i < len(data); i += width {
		end := i + width
		if end > len(data) {
			end = len(data)
		}
		lines = append(lines, string(DumpLine(nil, base+uint16(i), data[i:end])))
	}
	return lines
}
