package expand

import (
	"bufio"
	"io"

	"github.com/pkg/errors"
)

const windowSize = 4096

// decodeLZSS implements the LZSS scheme shared by SZDD, SZ and KWAJ method 2.
// The window starts filled with spaces and writing begins start bytes before its
// end. Each control byte is consumed LSB first: a set bit is a literal, a clear
// bit a two-byte match of 12-bit window position and 4-bit length. A negative
// size decodes until the input ends.
func decodeLZSS(r *bufio.Reader, w io.ByteWriter, start int, size int64, minMatch int) error {
	var window [windowSize]byte
	for i := range window {
		window[i] = ' '
	}
	pos := windowSize - start
	var written int64
	done := func() bool { return size >= 0 && written >= size }
	put := func(b byte) error {
		window[pos] = b
		pos = (pos + 1) % windowSize
		written++
		return w.WriteByte(b)
	}
	// input may only end cleanly between items when the size is unknown
	end := func(err error) error {
		if err == io.EOF && size < 0 {
			return nil
		}
		if err == io.EOF {
			return errors.Wrapf(ErrTruncated, "LZSS stream ended at %d of %d bytes", written, size)
		}
		return errors.WithStack(err)
	}

	for !done() {
		control, err := r.ReadByte()
		if err != nil {
			return end(err)
		}
		for bit := uint(0); bit < 8 && !done(); bit++ {
			if control&(1<<bit) != 0 {
				b, err := r.ReadByte()
				if err != nil {
					return end(err)
				}
				if err := put(b); err != nil {
					return errors.WithStack(err)
				}
				continue
			}
			lo, err := r.ReadByte()
			if err != nil {
				return end(err)
			}
			hi, err := r.ReadByte()
			if err != nil {
				return truncated(err, "LZSS match")
			}
			matchPos := int(lo) | int(hi&0xf0)<<4
			matchLen := int(hi&0x0f) + minMatch
			for i := 0; i < matchLen && !done(); i++ {
				b := window[matchPos]
				matchPos = (matchPos + 1) % windowSize
				if err := put(b); err != nil {
					return errors.WithStack(err)
				}
			}
		}
	}
	return nil
}
