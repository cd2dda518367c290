package loader

import (
	"bytes"

	"github.com/pkg/errors"

	"github.com/oldmedia/dllexports/go/models"
)

// CompressedFile is a KWAJ, SZDD or SZ container. It keeps its own copy of the
// payload and decompresses it afresh on every Resolve.
type CompressedFile struct {
	Format Format
	data   []byte
	codec  models.Codec
}

func NewCompressedFile(format Format, data []byte, codec models.Codec) *CompressedFile {
	return &CompressedFile{
		Format: format,
		data:   append([]byte(nil), data...),
		codec:  codec,
	}
}

// Resolve returns the decompressed payload without interpreting it. Codec
// failures come back as *models.CodecError.
func (c *CompressedFile) Resolve() ([]byte, error) {
	var out bytes.Buffer
	if err := c.codec.Decompress(bytes.NewReader(c.data), &out); err != nil {
		return nil, errors.WithStack(&models.CodecError{Err: err})
	}
	return out.Bytes(), nil
}
