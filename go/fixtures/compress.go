// Package fixtures builds small synthetic containers and executables for tests.
package fixtures

import (
	"bytes"
	"encoding/binary"
	"math/bits"

	"github.com/icza/bitio"
	"github.com/klauspost/compress/flate"
)

const lzssWindow = 4096

// LZSS encodes data with the COMPRESS.EXE LZSS scheme. Matches never overlap the
// write position, which keeps the encoder simple and still exercises the
// decoder's window handling.
func LZSS(data []byte, start, minMatch int) []byte {
	var window [lzssWindow]byte
	for i := range window {
		window[i] = ' '
	}
	pos := lzssWindow - start
	maxMatch := 15 + minMatch

	var out bytes.Buffer
	var group []byte
	var control byte
	item := 0
	flush := func() {
		out.WriteByte(control)
		out.Write(group)
		group, control, item = group[:0], 0, 0
	}
	push := func(b byte) {
		window[pos] = b
		pos = (pos + 1) % lzssWindow
	}
	for i := 0; i < len(data); {
		bestPos, bestLen := 0, 0
		for p := 0; p < lzssWindow; p++ {
			dist := (pos - p + lzssWindow) % lzssWindow
			if dist == 0 {
				continue
			}
			n := 0
			for n < maxMatch && n < dist && i+n < len(data) && window[(p+n)%lzssWindow] == data[i+n] {
				n++
			}
			if n > bestLen {
				bestPos, bestLen = p, n
			}
		}
		if bestLen >= minMatch {
			group = append(group, byte(bestPos), byte(bestPos>>4)&0xf0|byte(bestLen-minMatch))
			for n := 0; n < bestLen; n++ {
				push(data[i+n])
			}
			i += bestLen
		} else {
			control |= 1 << uint(item)
			group = append(group, data[i])
			push(data[i])
			i++
		}
		item++
		if item == 8 {
			flush()
		}
	}
	if item > 0 {
		flush()
	}
	return out.Bytes()
}

// SZDD wraps data in an SZDD container.
func SZDD(data []byte, missing byte) []byte {
	var out bytes.Buffer
	out.WriteString("SZDD\x88\xf0\x27\x33")
	out.WriteByte('A')
	out.WriteByte(missing)
	binary.Write(&out, binary.LittleEndian, uint32(len(data)))
	out.Write(LZSS(data, 16, 3))
	return out.Bytes()
}

// SZ wraps data in the QBasic-era "SZ " container.
func SZ(data []byte) []byte {
	var out bytes.Buffer
	out.WriteString("SZ \x88\xf0\x27\x33\xd1")
	binary.Write(&out, binary.LittleEndian, uint32(len(data)))
	out.Write(LZSS(data, 18, 3))
	return out.Bytes()
}

// KWAJOptions selects KWAJ optional headers.
type KWAJOptions struct {
	WithLength bool
	Name, Ext  string
}

// KWAJ wraps data in a KWAJ container compressed with method 0, 1, 2, 3 or 4.
// Method 3 uses fixed-length codes stored with table encoding 0.
func KWAJ(method uint16, data []byte, opts KWAJOptions) []byte {
	var payload []byte
	switch method {
	case 0:
		payload = data
	case 1:
		payload = make([]byte, len(data))
		for i, b := range data {
			payload[i] = b ^ 0xff
		}
	case 2:
		payload = LZSS(data, 18, 3)
	case 3:
		payload = LZH(data, [5]uint8{})
	case 4:
		payload = MSZIP(data)
	default:
		payload = data
	}
	return KWAJRaw(method, payload, len(data), opts)
}

// KWAJRaw wraps an already encoded payload. size is recorded when
// opts.WithLength is set.
func KWAJRaw(method uint16, payload []byte, size int, opts KWAJOptions) []byte {
	var optional bytes.Buffer
	var flags uint16
	if opts.WithLength {
		flags |= 0x01
		binary.Write(&optional, binary.LittleEndian, uint32(size))
	}
	if opts.Name != "" {
		flags |= 0x08
		optional.WriteString(opts.Name)
		optional.WriteByte(0)
	}
	if opts.Ext != "" {
		flags |= 0x10
		optional.WriteString(opts.Ext)
		optional.WriteByte(0)
	}

	var out bytes.Buffer
	out.WriteString("KWAJ\x88\xf0\x27\xd1")
	binary.Write(&out, binary.LittleEndian, method)
	binary.Write(&out, binary.LittleEndian, uint16(14+optional.Len()))
	binary.Write(&out, binary.LittleEndian, flags)
	out.Write(optional.Bytes())
	out.Write(payload)
	return out.Bytes()
}

// MSZIP splits data into 32 KiB blocks. Each is written as a u16 length, "CK"
// and a deflate stream using the previous block as its dictionary; a zero length
// ends the stream.
func MSZIP(data []byte) []byte {
	var out bytes.Buffer
	var dict []byte
	for len(data) > 0 {
		n := len(data)
		if n > 32768 {
			n = 32768
		}
		block := data[:n]
		data = data[n:]
		var deflated bytes.Buffer
		fw, err := flate.NewWriterDict(&deflated, flate.DefaultCompression, dict)
		if err != nil {
			panic(err)
		}
		fw.Write(block)
		fw.Close()
		binary.Write(&out, binary.LittleEndian, uint16(2+deflated.Len()))
		out.WriteString("CK")
		out.Write(deflated.Bytes())
		dict = block
	}
	binary.Write(&out, binary.LittleEndian, uint16(0))
	return out.Bytes()
}

// StoredMSZIPBlock is one MSZIP block holding data in a stored (uncompressed)
// deflate block, so its length field is exactly 2+5+len(data).
func StoredMSZIPBlock(data []byte) []byte {
	var out bytes.Buffer
	binary.Write(&out, binary.LittleEndian, uint16(2+5+len(data)))
	out.WriteString("CK")
	out.WriteByte(0x01)
	binary.Write(&out, binary.LittleEndian, uint16(len(data)))
	binary.Write(&out, binary.LittleEndian, ^uint16(len(data)))
	out.Write(data)
	return out.Bytes()
}

var lzhTableSizes = [5]int{16, 16, 32, 64, 256}

// LZH encodes data as a KWAJ method 3 stream. Every table holds fixed-length
// codes (log2 of its symbol count), written with the given table encodings,
// each 0 to 3. Matches never overlap the write position.
func LZH(data []byte, types [5]uint8) []byte {
	var out bytes.Buffer
	bw := bitio.NewWriter(&out)
	for _, t := range types {
		bw.TryWriteBits(uint64(t), 4)
	}
	for i, n := range lzhTableSizes {
		l := uint64(bits.TrailingZeros(uint(n)))
		switch types[i] {
		case 1:
			bw.TryWriteBits(l, 4)
			for j := 1; j < n; j++ {
				bw.TryWriteBits(0, 1)
			}
		case 2:
			bw.TryWriteBits(l, 4)
			for j := 1; j < n; j++ {
				bw.TryWriteBits(1, 2)
			}
		case 3:
			for j := 0; j < n; j++ {
				bw.TryWriteBits(l, 4)
			}
		}
	}

	var window [lzssWindow]byte
	for i := range window {
		window[i] = ' '
	}
	pos := lzssWindow - 17
	push := func(b byte) {
		window[pos] = b
		pos = (pos + 1) % lzssWindow
	}
	var run []byte
	flushRun := func() {
		for len(run) > 0 {
			k := len(run)
			if k > 32 {
				k = 32
			}
			bw.TryWriteBits(0, 4)
			bw.TryWriteBits(uint64(k-1), 5)
			for _, b := range run[:k] {
				bw.TryWriteBits(uint64(b), 8)
			}
			run = run[k:]
		}
	}
	for i := 0; i < len(data); {
		bestDist, bestLen := 0, 0
		for dist := 1; dist < lzssWindow; dist++ {
			p := (pos - dist + lzssWindow) % lzssWindow
			n := 0
			for n < 17 && n < dist && i+n < len(data) && window[(p+n)%lzssWindow] == data[i+n] {
				n++
			}
			if n > bestLen {
				bestDist, bestLen = dist, n
			}
		}
		if bestLen >= 3 {
			flushRun()
			bw.TryWriteBits(uint64(bestLen-2), 4)
			bw.TryWriteBits(uint64(bestDist>>6), 6)
			bw.TryWriteBits(uint64(bestDist&63), 6)
			for n := 0; n < bestLen; n++ {
				push(data[i+n])
			}
			i += bestLen
			continue
		}
		run = append(run, data[i])
		push(data[i])
		i++
	}
	flushRun()
	if err := bw.Close(); err != nil {
		panic(err)
	}
	if bw.TryError != nil {
		panic(bw.TryError)
	}
	return out.Bytes()
}
