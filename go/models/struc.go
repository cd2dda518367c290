package models

import (
	"bytes"
	"encoding/binary"
	"io"

	"github.com/lunixbochs/struc"
	"github.com/pkg/errors"
)

// UnpackAt decodes the little-endian struct i from r at off.
func UnpackAt(r io.ReaderAt, i interface{}, off int64) (int, error) {
	size, err := struc.Sizeof(i)
	if err != nil {
		return 0, errors.WithStack(err)
	}
	if off < 0 {
		return 0, errors.Wrapf(ErrOffsetOutOfBounds, "negative offset %d", off)
	}
	buf := make([]byte, size)
	n, err := r.ReadAt(buf, off)
	if n < size {
		if err == nil || err == io.EOF {
			return n, errors.Wrapf(ErrTruncated, "%d of %d header bytes at %#x", n, size, off)
		}
		return n, errors.WithStack(err)
	}
	return size, UnpackBytes(buf, i)
}

// UnpackBytes decodes the little-endian struct i from the start of p.
func UnpackBytes(p []byte, i interface{}) error {
	size, err := struc.Sizeof(i)
	if err != nil {
		return errors.WithStack(err)
	}
	if len(p) < size {
		return errors.Wrapf(ErrTruncated, "%d of %d header bytes", len(p), size)
	}
	return errors.WithStack(struc.UnpackWithOrder(bytes.NewReader(p[:size]), i, binary.LittleEndian))
}
