package expand

import (
	"io"
	"math/bits"

	"github.com/icza/bitio"
	"github.com/pkg/errors"
)

// KWAJ method 3 (LZ + Huffman) parameters.
const (
	lzhStart   = 17
	lzhMaxBits = 16
	lzhLitRun  = 32
)

// Symbol counts of the five LZH tables, in stream order: match lengths, match
// lengths after a short literal run, literal run lengths, offset tops, literals.
var lzhTableSizes = [5]int{16, 16, 32, 64, 256}

// huffman is a canonical prefix code stored as code counts per length plus the
// symbols sorted by (length, value).
type huffman struct {
	count  [lzhMaxBits + 1]int
	symbol []int
}

func newHuffman(lengths []int) (*huffman, error) {
	h := &huffman{symbol: make([]int, 0, len(lengths))}
	for _, l := range lengths {
		if l < 0 || l > lzhMaxBits {
			return nil, errors.Wrapf(ErrCorrupt, "LZH code length %d", l)
		}
		h.count[l]++
	}
	h.count[0] = 0
	left := 1
	for l := 1; l <= lzhMaxBits; l++ {
		left = left<<1 - h.count[l]
		if left < 0 {
			return nil, errors.Wrap(ErrCorrupt, "LZH code lengths oversubscribed")
		}
	}
	for l := 1; l <= lzhMaxBits; l++ {
		for sym, sl := range lengths {
			if sl == l {
				h.symbol = append(h.symbol, sym)
			}
		}
	}
	return h, nil
}

// decode reads one symbol, most significant code bit first. Input errors are
// returned unwrapped so the caller can tell a clean end of stream apart.
func (h *huffman) decode(br *bitio.Reader) (int, error) {
	code, first, index := 0, 0, 0
	for l := 1; l <= lzhMaxBits; l++ {
		b, err := br.ReadBool()
		if err != nil {
			return 0, err
		}
		if b {
			code |= 1
		}
		count := h.count[l]
		if code-count < first {
			return h.symbol[index+code-first], nil
		}
		index += count
		first = (first + count) << 1
		code <<= 1
	}
	return 0, errors.Wrap(ErrCorrupt, "LZH code not in table")
}

// readLZHLengths reads the code lengths of one table. Type 0 gives every symbol
// log2(n) bits, 1 is a run encoding (same, previous+1, or a new 4-bit value),
// 2 a delta encoding with 2-bit selectors and 3 stores 4 bits per symbol.
func readLZHLengths(br *bitio.Reader, n int, typ uint64) ([]int, error) {
	lens := make([]int, n)
	read := func(nbits uint8) (int, error) {
		v, err := br.ReadBits(nbits)
		return int(v), err
	}
	var err error
	switch typ {
	case 0:
		for i := range lens {
			lens[i] = bits.TrailingZeros(uint(n))
		}
	case 1:
		if lens[0], err = read(4); err != nil {
			return nil, err
		}
		for i := 1; i < n; i++ {
			var sel int
			if sel, err = read(1); err != nil {
				return nil, err
			}
			if sel == 0 {
				lens[i] = lens[i-1]
				continue
			}
			if sel, err = read(1); err != nil {
				return nil, err
			}
			if sel == 0 {
				lens[i] = lens[i-1] + 1
				continue
			}
			if lens[i], err = read(4); err != nil {
				return nil, err
			}
		}
	case 2:
		if lens[0], err = read(4); err != nil {
			return nil, err
		}
		for i := 1; i < n; i++ {
			var sel int
			if sel, err = read(2); err != nil {
				return nil, err
			}
			if sel == 3 {
				if lens[i], err = read(4); err != nil {
					return nil, err
				}
				continue
			}
			lens[i] = lens[i-1] + sel - 1
			if lens[i] < 0 {
				return nil, errors.Wrapf(ErrCorrupt, "LZH code length underflow at symbol %d", i)
			}
		}
	case 3:
		for i := range lens {
			if lens[i], err = read(4); err != nil {
				return nil, err
			}
		}
	default:
		return nil, errors.Wrapf(ErrCorrupt, "LZH table encoding %d", typ)
	}
	return lens, nil
}

// decodeLZH implements KWAJ method 3. The stream opens with five 4-bit table
// encodings and the five tables, then alternates matches and literal runs over a
// 4 KiB space-filled window. There is no end symbol: the stream ends with its
// input or at size when the header records one.
func decodeLZH(r io.Reader, w io.ByteWriter, size int64) error {
	br := bitio.NewReader(r)

	var tables [len(lzhTableSizes)]*huffman
	var types [len(lzhTableSizes)]uint64
	for i := range types {
		t, err := br.ReadBits(4)
		if err != nil {
			return truncated(err, "LZH table encodings")
		}
		types[i] = t
	}
	for i, n := range lzhTableSizes {
		lens, err := readLZHLengths(br, n, types[i])
		if err != nil {
			return truncated(err, "LZH code lengths")
		}
		if tables[i], err = newHuffman(lens); err != nil {
			return err
		}
	}
	matchLens, matchLensAfterRun, runLens, offsetTops, literals := tables[0], tables[1], tables[2], tables[3], tables[4]

	var window [windowSize]byte
	for i := range window {
		window[i] = ' '
	}
	pos := windowSize - lzhStart
	var written int64
	done := func() bool { return size >= 0 && written >= size }
	put := func(b byte) error {
		window[pos] = b
		pos = (pos + 1) % windowSize
		written++
		return w.WriteByte(b)
	}
	// the last byte is zero-padded, so a partial item at the end of input is
	// padding unless the recorded size says more output was due
	end := func(err error) error {
		if err != io.EOF && err != io.ErrUnexpectedEOF {
			return errors.WithStack(err)
		}
		if size >= 0 && written < size {
			return errors.Wrapf(ErrTruncated, "LZH stream ended at %d of %d bytes", written, size)
		}
		return nil
	}

	afterRun := false
	for !done() {
		table := matchLens
		if afterRun {
			table = matchLensAfterRun
		}
		n, err := table.decode(br)
		if err != nil {
			return end(err)
		}
		if n > 0 {
			afterRun = false
			top, err := offsetTops.decode(br)
			if err != nil {
				return end(err)
			}
			bottom, err := br.ReadBits(6)
			if err != nil {
				return end(err)
			}
			src := (pos - (top<<6 | int(bottom)) + windowSize) % windowSize
			for i := 0; i < n+2 && !done(); i++ {
				b := window[src]
				src = (src + 1) % windowSize
				if err := put(b); err != nil {
					return errors.WithStack(err)
				}
			}
			continue
		}

		run, err := runLens.decode(br)
		if err != nil {
			return end(err)
		}
		run++
		afterRun = run != lzhLitRun
		for i := 0; i < run && !done(); i++ {
			lit, err := literals.decode(br)
			if err != nil {
				return end(err)
			}
			if err := put(byte(lit)); err != nil {
				return errors.WithStack(err)
			}
		}
	}
	return nil
}
