// Package loader classifies legacy Windows media blobs and resolves them down to
// the symbols their executables export.
package loader

import (
	"bytes"

	"github.com/pkg/errors"

	"github.com/oldmedia/dllexports/go/expand"
	"github.com/oldmedia/dllexports/go/image"
	"github.com/oldmedia/dllexports/go/models"
)

type Format int

const (
	FormatUnknown Format = iota
	FormatMZ
	FormatNE
	FormatPE
	FormatKWAJ
	FormatSZDD
	FormatSZ
	FormatISO9660
	FormatHighSierra
)

var formatNames = map[Format]string{
	FormatUnknown:    "unknown",
	FormatMZ:         "MZ",
	FormatNE:         "NE",
	FormatPE:         "PE",
	FormatKWAJ:       "KWAJ",
	FormatSZDD:       "SZDD",
	FormatSZ:         "SZ",
	FormatISO9660:    "ISO9660",
	FormatHighSierra: "High Sierra",
}

func (f Format) String() string {
	if s, ok := formatNames[f]; ok {
		return s
	}
	return "unknown"
}

// Compressed reports whether f is a single-file compressed container.
func (f Format) Compressed() bool {
	return f == FormatKWAJ || f == FormatSZDD || f == FormatSZ
}

var compressedFormats = map[expand.Format]Format{
	expand.FormatKWAJ: FormatKWAJ,
	expand.FormatSZDD: FormatSZDD,
	expand.FormatSZ:   FormatSZ,
}

// Identify classifies data by its signature. Every slice maps to exactly one
// format or fails with models.ErrUnrecognizedFormat.
func Identify(data []byte) (Format, error) {
	if MatchMZ(data) {
		return identifyMZ(data), nil
	}
	if f, ok := compressedFormats[expand.Identify(data)]; ok {
		return f, nil
	}
	if image.MatchISO9660(data) {
		return FormatISO9660, nil
	} else if image.MatchHighSierra(data) {
		return FormatHighSierra, nil
	}
	return FormatUnknown, errors.Wrapf(models.ErrUnrecognizedFormat, "magic % x", getMagic(data, 0, min(len(data), 8)))
}

var (
	peMagic = []byte("PE\x00\x00")
	neMagic = []byte("NE")
)

// identifyMZ looks past the DOS stub. Only stubs whose relocation table sits at
// 0x40 carry an extended header pointer.
func identifyMZ(data []byte) Format {
	if len(data) < mzExtendedSize || le16(data[mzRelocOffset:]) != mzExtendedReloc {
		return FormatMZ
	}
	off := uint64(le32(data[mzLfanewOffset:]))
	if bytes.Equal(getMagic(data, off, len(peMagic)), peMagic) {
		return FormatPE
	} else if bytes.Equal(getMagic(data, off, len(neMagic)), neMagic) {
		return FormatNE
	}
	return FormatMZ
}

// File is a classified blob. Exactly one of Exporter, Container and Image is set.
type File struct {
	Format    Format
	Exporter  models.SymbolExporter
	Container models.SingleFileContainer
	Image     *image.Image
}

// Interpret classifies data and wraps it in the matching parser. Executables
// and containers are parsed lazily; disk images are read immediately.
func Interpret(data []byte, codec models.Codec) (*File, error) {
	format, err := Identify(data)
	if err != nil {
		return nil, err
	}
	f := &File{Format: format}
	switch format {
	case FormatMZ:
		f.Exporter = NewMZExecutable(data)
	case FormatNE:
		f.Exporter = NewNEExecutable(data)
	case FormatPE:
		f.Exporter = NewPEExecutable(data)
	case FormatKWAJ, FormatSZDD, FormatSZ:
		f.Container = NewCompressedFile(format, data, codec)
	case FormatISO9660:
		f.Image, err = image.ReadISO9660(data)
	case FormatHighSierra:
		f.Image, err = image.ReadHighSierra(data)
	}
	if err != nil {
		return nil, err
	}
	return f, nil
}
