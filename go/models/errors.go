package models

import (
	"fmt"

	"github.com/pkg/errors"
)

var (
	ErrTruncated          = errors.New("truncated")
	ErrInvalidEncoding    = errors.New("invalid string encoding")
	ErrUnrecognizedFormat = errors.New("unrecognized format")
	ErrOffsetOutOfBounds  = errors.New("offset out of bounds")
	ErrDepthExceeded      = errors.New("resolution depth exceeded")
	ErrCodec              = errors.New("codec error")
	ErrNotFound           = errors.New("not found")
	ErrMalformed          = errors.New("malformed header")
	ErrMultiFile          = errors.New("multi-file container")
)

// CodecError carries a failure reported by the decompression codec.
// It matches ErrCodec and unwraps to the codec's own error.
type CodecError struct {
	Err error
}

func (c *CodecError) Error() string {
	return fmt.Sprintf("%s: %s", ErrCodec, c.Err)
}

func (c *CodecError) Unwrap() error {
	return c.Err
}

func (c *CodecError) Is(target error) bool {
	return target == ErrCodec
}
