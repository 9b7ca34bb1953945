// Package libzip implements the FastLZ level 1 codec used by the on-chain
// LibZip library, so compressed payloads decode with flzDecompress.
package libzip

import "fmt"

const (
	hashSize  = 8192
	maxOffset = 8192
	maxLength = 262
	// maxLiteral is the longest literal run behind one control byte
	maxLiteral = 32
)

func u24(b []byte, i int) uint32 {
	return uint32(b[i]) | uint32(b[i+1])<<8 | uint32(b[i+2])<<16
}

func hash(x uint32) int {
	return int(((2654435769 * uint64(x)) >> 19) & (hashSize - 1))
}

func literals(out, src []byte, length, start int) []byte {
	for length >= maxLiteral {
		out = append(out, maxLiteral-1)
		out = append(out, src[start:start+maxLiteral]...)
		start += maxLiteral
		length -= maxLiteral
	}
	if length > 0 {
		out = append(out, byte(length-1))
		out = append(out, src[start:start+length]...)
	}
	return out
}

// Compress returns the FastLZ encoding of data
func Compress(data []byte) []byte {
	out := make([]byte, 0, len(data))
	var ht [hashSize]int
	a, i := 0, 2
	b := len(data) - 4

	for i < b-9 {
		var r, d int
		for {
			s := u24(data, i)
			h := hash(s)
			r = ht[h]
			ht[h] = i
			d = i - r
			c := uint32(0x1000000)
			if d < maxOffset {
				c = u24(data, r)
			}
			if i >= b-9 {
				break
			}
			i++
			if s == c {
				break
			}
		}
		if i >= b-9 {
			break
		}
		i--
		if i > a {
			out = literals(out, data, i-a, a)
		}

		l := 0
		p, q := r+3, i+3
		e := b - q
		for l < e {
			if data[p+l] != data[q+l] {
				l++
				break
			}
			l++
		}
		i += l
		d--

		for l > maxLength {
			out = append(out, byte(224+(d>>8)), 253, byte(d&255))
			l -= maxLength
		}
		if l < 7 {
			out = append(out, byte((l<<5)+(d>>8)), byte(d&255))
		} else {
			out = append(out, byte(224+(d>>8)), byte(l-7), byte(d&255))
		}

		ht[hash(u24(data, i))] = i
		i++
		ht[hash(u24(data, i))] = i
		i++
		a = i
	}
	return literals(out, data, b+4-a, a)
}

// Decompress reverses Compress
func Decompress(data []byte) ([]byte, error) {
	out := make([]byte, 0, 2*len(data))
	for i := 0; i < len(data); {
		ctrl := int(data[i])
		i++
		t := ctrl >> 5
		if t == 0 {
			n := ctrl + 1
			if i+n > len(data) {
				return nil, fmt.Errorf("literal run of %d bytes overflows input at %d", n, i)
			}
			out = append(out, data[i:i+n]...)
			i += n
			continue
		}

		length := t + 2
		if t == 7 {
			if i >= len(data) {
				return nil, fmt.Errorf("truncated match length at %d", i)
			}
			length = int(data[i]) + 9
			i++
		}
		if i >= len(data) {
			return nil, fmt.Errorf("truncated match offset at %d", i)
		}
		ofs := (ctrl&31)<<8 + int(data[i])
		i++

		ref := len(out) - ofs - 1
		if ref < 0 {
			return nil, fmt.Errorf("match offset %d before start of output", ofs)
		}
		for j := 0; j < length; j++ {
			out = append(out, out[ref+j])
		}
	}
	return out, nil
}
