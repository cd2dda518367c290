package loader

import (
	"bytes"
	"encoding/binary"

	"github.com/pkg/errors"

	"github.com/oldmedia/dllexports/go/models"
)

// NEHeader is the segmented executable header. Table offsets are relative to
// the start of this header.
type NEHeader struct {
	Magic                  [2]byte
	LinkerVersion          uint8
	LinkerRevision         uint8
	EntryTableOffset       uint16
	EntryTableLength       uint16
	CRC                    uint32
	Flags                  uint16
	AutoDataSegment        uint16
	HeapSize               uint16
	StackSize              uint16
	InitialIP              uint16
	InitialCS              uint16
	InitialSP              uint16
	InitialSS              uint16
	SegmentCount           uint16
	ModuleRefCount         uint16
	NonResidentNamesLength uint16
	SegmentTableOffset     uint16
	ResourceTableOffset    uint16
	ResidentNamesOffset    uint16
	ModuleRefTableOffset   uint16
	ImportedNamesOffset    uint16
	NonResidentNamesOffset uint32
	MovableEntryCount      uint16
	SegmentAlignShift      uint16
	ResourceSegmentCount   uint16
	TargetOS               uint8
	OS2Flags               uint8
	ReturnThunksOffset     uint16
	SegmentRefThunksOffset uint16
	MinCodeSwapArea        uint16
	ExpectedWinVersion     uint16
}

// NEExecutable is a 16-bit segmented executable. Its exports come from the
// resident-name table.
type NEExecutable struct {
	data []byte
	// MaxNameLength caps each resident name.
	MaxNameLength int
}

func NewNEExecutable(data []byte) *NEExecutable {
	return &NEExecutable{data: data, MaxNameLength: models.DefaultMaxNameLength}
}

func (n *NEExecutable) setMaxNameLength(max int) { n.MaxNameLength = max }

// Header decodes the NE header the DOS stub points at.
func (n *NEExecutable) Header() (*NEHeader, error) {
	hdr, _, err := n.header()
	return hdr, err
}

func (n *NEExecutable) header() (*NEHeader, int64, error) {
	r := bytes.NewReader(n.data)
	off, err := extendedHeaderOffset(r)
	if err != nil {
		return nil, 0, err
	}
	var hdr NEHeader
	if _, err := models.UnpackAt(r, &hdr, off); err != nil {
		return nil, 0, errors.Wrap(err, "NE header")
	}
	if !bytes.Equal(hdr.Magic[:], neMagic) {
		return nil, 0, errors.Wrapf(models.ErrMalformed, "NE magic %q", hdr.Magic[:])
	}
	return &hdr, off, nil
}

// Exports walks the resident-name table in on-disk order. The table runs from
// ResidentNamesOffset up to ModuleRefTableOffset; each entry is a NUL-terminated
// name followed by a 16-bit ordinal, and an empty name ends it early.
func (n *NEExecutable) Exports() ([]models.Symbol, error) {
	hdr, off, err := n.header()
	if err != nil {
		return nil, err
	}
	start := off + int64(hdr.ResidentNamesOffset)
	end := off + int64(hdr.ModuleRefTableOffset)
	if end < start {
		return nil, errors.Wrapf(models.ErrMalformed, "resident-name table ends at %#x before it starts at %#x", end, start)
	}
	if end > int64(len(n.data)) {
		return nil, errors.Wrapf(models.ErrOffsetOutOfBounds, "resident-name table ends at %#x past %#x", end, len(n.data))
	}

	table := bytes.NewReader(n.data[start:end])
	syms := []models.Symbol{}
	for table.Len() > 0 {
		entry := end - int64(table.Len())
		if b, _ := table.ReadByte(); b == 0 {
			break
		}
		table.UnreadByte()
		name, err := models.ReadNulTerminatedASCIIMax(table, n.MaxNameLength)
		if errors.Is(err, models.ErrTruncated) {
			return nil, errors.Wrapf(models.ErrMalformed, "resident name at %#x runs past the table", entry)
		} else if err != nil {
			return nil, errors.Wrapf(err, "resident name at %#x", entry)
		}
		var ordinal uint16
		if err := binary.Read(table, binary.LittleEndian, &ordinal); err != nil {
			return nil, errors.Wrapf(models.ErrMalformed, "ordinal of %q runs past the table", name)
		}
		syms = append(syms, models.Symbol{Name: name, Ordinal: uint32(ordinal), HasOrdinal: true})
	}
	return syms, nil
}
