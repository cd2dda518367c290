// Package expand decompresses the single-file formats produced by the
// Microsoft COMPRESS.EXE family: SZDD, the QBasic-era "SZ " variant and KWAJ.
package expand

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"io"

	"github.com/lunixbochs/struc"
	"github.com/pkg/errors"

	"github.com/oldmedia/dllexports/go/models"
)

// Format identifies one of the supported container flavors.
type Format int

const (
	FormatUnknown Format = iota
	FormatSZDD
	FormatSZ
	FormatKWAJ
)

func (f Format) String() string {
	switch f {
	case FormatSZDD:
		return "SZDD"
	case FormatSZ:
		return "SZ"
	case FormatKWAJ:
		return "KWAJ"
	}
	return "unknown"
}

// MagicSize is the length of every supported signature.
const MagicSize = 8

var (
	MagicSZDD = []byte("SZDD\x88\xf0\x27\x33")
	MagicSZ   = []byte("SZ \x88\xf0\x27\x33\xd1")
	MagicKWAJ = []byte("KWAJ\x88\xf0\x27\xd1")
)

var (
	ErrUnknownMagic      = errors.New("unknown compression magic")
	ErrUnsupportedMethod = errors.New("unsupported compression method")
	ErrCorrupt           = errors.New("corrupt compressed data")
	ErrTruncated         = errors.New("truncated compressed data")
)

// Identify matches the signature at the start of p.
func Identify(p []byte) Format {
	switch {
	case bytes.HasPrefix(p, MagicSZDD):
		return FormatSZDD
	case bytes.HasPrefix(p, MagicSZ):
		return FormatSZ
	case bytes.HasPrefix(p, MagicKWAJ):
		return FormatKWAJ
	}
	return FormatUnknown
}

// Header is the metadata preceding the compressed payload.
type Header struct {
	Format Format
	// Method is the KWAJ compression method, or 'A' for SZDD.
	Method int
	// Size is the decompressed length, or -1 when the header does not record it.
	Size int64
	// MissingChar is the last character of the original file name (SZDD only).
	MissingChar byte
	// Name is the original file name recorded by KWAJ, if any.
	Name string
}

// Codec implements the single-file codec contract used by the loader.
type Codec struct{}

func (Codec) Decompress(r io.Reader, w io.Writer) error {
	return Decompress(r, w)
}

// Decompress reads one container, magic included, from r and writes the
// decompressed payload to w.
func Decompress(r io.Reader, w io.Writer) error {
	br := bufio.NewReader(r)
	hdr, err := readHeader(br)
	if err != nil {
		return err
	}
	bw := bufio.NewWriter(w)
	switch hdr.Format {
	case FormatSZDD:
		err = decodeLZSS(br, bw, 16, hdr.Size, 3)
	case FormatSZ:
		err = decodeLZSS(br, bw, 18, hdr.Size, 3)
	case FormatKWAJ:
		err = decodeKWAJ(br, bw, hdr)
	}
	if err != nil {
		return err
	}
	return errors.WithStack(bw.Flush())
}

// ReadHeader parses the container header at the start of r. r is buffered
// internally, so its position afterwards is unspecified.
func ReadHeader(r io.Reader) (*Header, error) {
	return readHeader(bufio.NewReader(r))
}

type szddHeader struct {
	Method      uint8
	MissingChar uint8
	Size        uint32
}

type szHeader struct {
	Size uint32
}

func readHeader(r *bufio.Reader) (*Header, error) {
	magic := make([]byte, MagicSize)
	n, err := models.ReadPartialOrEOF(r, magic)
	if err != nil {
		return nil, errors.Wrap(err, "magic")
	}
	if n < MagicSize {
		return nil, errors.Wrapf(ErrTruncated, "magic: %d of %d bytes", n, MagicSize)
	}
	switch Identify(magic) {
	case FormatSZDD:
		var h szddHeader
		if err := unpack(r, &h); err != nil {
			return nil, truncated(err, "SZDD header")
		}
		if h.Method != 'A' {
			return nil, errors.Wrapf(ErrUnsupportedMethod, "SZDD method %q", h.Method)
		}
		return &Header{Format: FormatSZDD, Method: int(h.Method), Size: int64(h.Size), MissingChar: h.MissingChar}, nil
	case FormatSZ:
		var h szHeader
		if err := unpack(r, &h); err != nil {
			return nil, truncated(err, "SZ header")
		}
		return &Header{Format: FormatSZ, Size: int64(h.Size)}, nil
	case FormatKWAJ:
		return readKWAJHeader(r)
	}
	return nil, errors.Wrapf(ErrUnknownMagic, "% x", magic)
}

func unpack(r io.Reader, i interface{}) error {
	return struc.UnpackWithOrder(r, i, binary.LittleEndian)
}

func truncated(err error, what string) error {
	if err == io.EOF || err == io.ErrUnexpectedEOF {
		return errors.Wrap(ErrTruncated, what)
	}
	return errors.Wrap(err, what)
}
