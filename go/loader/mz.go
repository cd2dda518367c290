package loader

import (
	"bytes"

	"github.com/pkg/errors"

	"github.com/oldmedia/dllexports/go/models"
)

const (
	mzRelocOffset   = 0x18
	mzLfanewOffset  = 0x3c
	mzExtendedSize  = 0x40
	mzExtendedReloc = 0x40
)

var mzMagic = []byte("MZ")

func MatchMZ(data []byte) bool {
	return bytes.Equal(getMagic(data, 0, len(mzMagic)), mzMagic)
}

// MZHeader is the 28-byte DOS header every executable of the era starts with.
type MZHeader struct {
	Magic            [2]byte
	LastPageBytes    uint16
	Pages            uint16
	Relocations      uint16
	HeaderParagraphs uint16
	MinAlloc         uint16
	MaxAlloc         uint16
	InitialSS        uint16
	InitialSP        uint16
	Checksum         uint16
	InitialIP        uint16
	InitialCS        uint16
	RelocTableOffset uint16
	Overlay          uint16
}

type lfanew struct {
	Offset uint32
}

func readMZHeader(r *bytes.Reader) (*MZHeader, error) {
	var hdr MZHeader
	if _, err := models.UnpackAt(r, &hdr, 0); err != nil {
		return nil, errors.Wrap(err, "MZ header")
	}
	if !bytes.Equal(hdr.Magic[:], mzMagic) {
		return nil, errors.Wrapf(models.ErrMalformed, "MZ magic %q", hdr.Magic[:])
	}
	return &hdr, nil
}

// ReadMZHeader decodes the DOS header at the start of data.
func ReadMZHeader(data []byte) (*MZHeader, error) {
	return readMZHeader(bytes.NewReader(data))
}

// extendedHeaderOffset follows the stub to the NE or PE header.
func extendedHeaderOffset(r *bytes.Reader) (int64, error) {
	hdr, err := readMZHeader(r)
	if err != nil {
		return 0, err
	}
	if hdr.RelocTableOffset != mzExtendedReloc {
		return 0, errors.Wrapf(models.ErrMalformed, "MZ relocation table at %#x, no extended header", hdr.RelocTableOffset)
	}
	var ext lfanew
	if _, err := models.UnpackAt(r, &ext, mzLfanewOffset); err != nil {
		return 0, errors.Wrap(err, "extended header offset")
	}
	return int64(ext.Offset), nil
}

// MZExecutable is a plain DOS program. It has no export table.
type MZExecutable struct {
	data []byte
}

func NewMZExecutable(data []byte) *MZExecutable {
	return &MZExecutable{data: data}
}

func (m *MZExecutable) Exports() ([]models.Symbol, error) {
	if _, err := readMZHeader(bytes.NewReader(m.data)); err != nil {
		return nil, err
	}
	return []models.Symbol{}, nil
}
