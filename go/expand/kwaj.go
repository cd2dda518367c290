package expand

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"io"

	"github.com/klauspost/compress/flate"
	"github.com/pkg/errors"

	"github.com/oldmedia/dllexports/go/models"
)

// KWAJ compression methods.
const (
	KWAJNone  = 0
	KWAJXor   = 1
	KWAJSZ    = 2
	KWAJLZH   = 3
	KWAJMSZIP = 4
)

// KWAJ optional header flags.
const (
	kwajHasLength   = 0x01
	kwajHasUnknown  = 0x02
	kwajHasExtra    = 0x04
	kwajHasName     = 0x08
	kwajHasExt      = 0x10
	kwajHasText     = 0x20
	kwajFixedHeader = MagicSize + 6
)

// mszipBlockSize bounds the output of one MSZIP block.
const mszipBlockSize = 32768

type kwajHeader struct {
	Method     uint16
	DataOffset uint16
	Flags      uint16
}

func readKWAJHeader(r *bufio.Reader) (*Header, error) {
	var h kwajHeader
	if err := unpack(r, &h); err != nil {
		return nil, truncated(err, "KWAJ header")
	}
	if h.DataOffset < kwajFixedHeader {
		return nil, errors.Wrapf(ErrCorrupt, "KWAJ data offset %d inside fixed header", h.DataOffset)
	}
	extra := make([]byte, int(h.DataOffset)-kwajFixedHeader)
	if n, err := models.ReadPartialOrEOF(r, extra); err != nil {
		return nil, errors.Wrap(err, "KWAJ optional headers")
	} else if n < len(extra) {
		return nil, errors.Wrapf(ErrTruncated, "KWAJ optional headers: %d of %d bytes", n, len(extra))
	}
	hdr := &Header{Format: FormatKWAJ, Method: int(h.Method), Size: -1}
	if err := parseKWAJOptional(hdr, h.Flags, extra); err != nil {
		return nil, err
	}
	return hdr, nil
}

func parseKWAJOptional(hdr *Header, flags uint16, p []byte) error {
	overrun := func(what string) error {
		return errors.Wrapf(ErrCorrupt, "KWAJ %s overruns data offset", what)
	}
	if flags&kwajHasLength != 0 {
		if len(p) < 4 {
			return overrun("length")
		}
		hdr.Size = int64(binary.LittleEndian.Uint32(p))
		p = p[4:]
	}
	if flags&kwajHasUnknown != 0 {
		if len(p) < 2 {
			return overrun("unknown field")
		}
		p = p[2:]
	}
	if flags&kwajHasExtra != 0 {
		if len(p) < 2 {
			return overrun("extra length")
		}
		n := int(binary.LittleEndian.Uint16(p))
		if len(p) < 2+n {
			return overrun("extra data")
		}
		p = p[2+n:]
	}
	name := func(max int) (string, error) {
		i := bytes.IndexByte(p, 0)
		if i < 0 || i > max {
			return "", overrun("file name")
		}
		s := string(p[:i])
		p = p[i+1:]
		return s, nil
	}
	if flags&kwajHasName != 0 {
		s, err := name(8)
		if err != nil {
			return err
		}
		hdr.Name = s
	}
	if flags&kwajHasExt != 0 {
		s, err := name(3)
		if err != nil {
			return err
		}
		hdr.Name += "." + s
	}
	if flags&kwajHasText != 0 {
		if len(p) < 2 {
			return overrun("text length")
		}
		if n := int(binary.LittleEndian.Uint16(p)); len(p) < 2+n {
			return overrun("text")
		}
	}
	return nil
}

func decodeKWAJ(r *bufio.Reader, w *bufio.Writer, hdr *Header) error {
	switch hdr.Method {
	case KWAJNone:
		_, err := r.WriteTo(w)
		return errors.WithStack(err)
	case KWAJXor:
		for {
			b, err := r.ReadByte()
			if err == io.EOF {
				return nil
			} else if err != nil {
				return errors.WithStack(err)
			}
			if err := w.WriteByte(b ^ 0xff); err != nil {
				return errors.WithStack(err)
			}
		}
	case KWAJSZ:
		return decodeLZSS(r, w, 18, hdr.Size, 3)
	case KWAJLZH:
		return decodeLZH(r, w, hdr.Size)
	case KWAJMSZIP:
		return decodeMSZIP(r, w)
	}
	return errors.Wrapf(ErrUnsupportedMethod, "KWAJ method %d", hdr.Method)
}

// decodeMSZIP inflates a sequence of MSZIP blocks. Each block is a u16 length
// covering the "CK" signature and the deflate data that follows it; a zero length
// or the end of input ends the stream. Each block may refer back into the output
// of the one before it.
func decodeMSZIP(r *bufio.Reader, w io.Writer) error {
	var dict []byte
	var block bytes.Buffer
	for i := 0; ; i++ {
		var size uint16
		if err := binary.Read(r, binary.LittleEndian, &size); err == io.EOF {
			return nil
		} else if err != nil {
			return truncated(err, "MSZIP block length")
		}
		if size == 0 {
			return nil
		}
		if size < 2 {
			return errors.Wrapf(ErrCorrupt, "MSZIP block %d: length %d", i, size)
		}
		raw := make([]byte, size)
		if _, err := io.ReadFull(r, raw); err != nil {
			return truncated(err, "MSZIP block")
		}
		if raw[0] != 'C' || raw[1] != 'K' {
			return errors.Wrapf(ErrCorrupt, "MSZIP block %d: signature % x", i, raw[:2])
		}

		block.Reset()
		fr := flate.NewReaderDict(bytes.NewReader(raw[2:]), dict)
		n, err := io.CopyN(&block, fr, mszipBlockSize+1)
		if err != nil && err != io.EOF {
			return errors.Wrapf(ErrCorrupt, "MSZIP block %d: %v", i, err)
		}
		if n > mszipBlockSize {
			return errors.Wrapf(ErrCorrupt, "MSZIP block %d exceeds %d bytes", i, mszipBlockSize)
		}
		fr.Close()
		if _, err := w.Write(block.Bytes()); err != nil {
			return errors.WithStack(err)
		}
		dict = append(dict[:0], block.Bytes()...)
	}
}
