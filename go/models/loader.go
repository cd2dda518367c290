package models

import "io"

// SingleFileContainer holds exactly one (usually compressed) payload.
// Resolve returns a freshly allocated buffer on every call.
type SingleFileContainer interface {
	Resolve() ([]byte, error)
}

// SymbolExporter is an executable format that exports symbols by name.
// Constructing one never fails; header errors surface from Exports.
type SymbolExporter interface {
	Exports() ([]Symbol, error)
}

// Codec decompresses a single-file container payload, magic included.
type Codec interface {
	Decompress(r io.Reader, w io.Writer) error
}

// CodecFunc adapts a plain function to Codec.
type CodecFunc func(r io.Reader, w io.Writer) error

func (f CodecFunc) Decompress(r io.Reader, w io.Writer) error {
	return f(r, w)
}
