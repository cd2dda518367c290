package models

import (
	"io"
	"unicode/utf8"

	"github.com/pkg/errors"
)

// ReadPartialOrEOF fills buf from r until it is full or r has nothing left,
// returning how many bytes were filled. A short stream is not an error: callers
// compare the count against what they expected.
func ReadPartialOrEOF(r io.Reader, buf []byte) (int, error) {
	total := 0
	for total < len(buf) {
		n, err := r.Read(buf[total:])
		total += n
		if err == io.EOF {
			break
		} else if err != nil {
			return total, err
		}
		if n == 0 {
			break
		}
	}
	return total, nil
}

// ReadNulTerminatedASCII reads up to (not including) a 0x00 byte.
func ReadNulTerminatedASCII(r io.ByteReader) (string, error) {
	return readNulTerminated(r, -1)
}

// ReadNulTerminatedASCIIMax is ReadNulTerminatedASCII with a cap on the name
// length. A max of zero or less reads without a cap.
func ReadNulTerminatedASCIIMax(r io.ByteReader, max int) (string, error) {
	if max <= 0 {
		return ReadNulTerminatedASCII(r)
	}
	return readNulTerminated(r, max)
}

func readNulTerminated(r io.ByteReader, max int) (string, error) {
	var buf []byte
	for {
		b, err := r.ReadByte()
		if err == io.EOF {
			return "", errors.Wrapf(ErrTruncated, "string ended after %d bytes without terminator", len(buf))
		} else if err != nil {
			return "", errors.WithStack(err)
		}
		if b == 0 {
			break
		}
		if max >= 0 && len(buf) >= max {
			return "", errors.Wrapf(ErrMalformed, "string longer than %d bytes", max)
		}
		buf = append(buf, b)
	}
	if !utf8.Valid(buf) {
		return "", errors.Wrapf(ErrInvalidEncoding, "%q", buf)
	}
	return string(buf), nil
}
