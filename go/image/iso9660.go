package image

import (
	"bytes"
	"encoding/binary"
	"path"

	"github.com/pkg/errors"

	"github.com/oldmedia/dllexports/go/models"
)

const (
	descriptorSector = 16
	descriptorSize   = 2048
	recordHeaderSize = 33
	flagDirectory    = 0x02
)

type isoRecord struct {
	Length        uint8
	ExtAttrLength uint8
	Extent        uint32
	ExtentBE      [4]byte
	Size          uint32
	SizeBE        [4]byte
	Date          [7]byte
	Flags         uint8
	UnitSize      uint8
	Gap           uint8
	VolumeSeq     [4]byte
	NameLength    uint8
}

type hsRecord struct {
	Length        uint8
	ExtAttrLength uint8
	Extent        uint32
	ExtentBE      [4]byte
	Size          uint32
	SizeBE        [4]byte
	Date          [6]byte
	Flags         uint8
	Reserved      uint8
	UnitSize      uint8
	Gap           uint8
	VolumeSeq     [4]byte
	NameLength    uint8
}

type dirRecord struct {
	length     int
	extent     uint32
	size       uint32
	dir        bool
	nameLength int
}

type cdLayout struct {
	name        string
	magicAt     int
	magic       []byte
	blockSizeAt int
	rootAt      int
	record      func(p []byte) (dirRecord, error)
}

var iso9660 = cdLayout{
	name:        "ISO9660",
	magicAt:     1,
	magic:       []byte("CD001"),
	blockSizeAt: 128,
	rootAt:      156,
	record: func(p []byte) (dirRecord, error) {
		var r isoRecord
		if err := models.UnpackBytes(p, &r); err != nil {
			return dirRecord{}, err
		}
		return dirRecord{int(r.Length), r.Extent, r.Size, r.Flags&flagDirectory != 0, int(r.NameLength)}, nil
	},
}

var highSierra = cdLayout{
	name:        "High Sierra",
	magicAt:     9,
	magic:       []byte("CDROM"),
	blockSizeAt: 136,
	rootAt:      180,
	record: func(p []byte) (dirRecord, error) {
		var r hsRecord
		if err := models.UnpackBytes(p, &r); err != nil {
			return dirRecord{}, err
		}
		return dirRecord{int(r.Length), r.Extent, r.Size, r.Flags&flagDirectory != 0, int(r.NameLength)}, nil
	},
}

// MatchISO9660 reports whether data starts with an ISO9660 volume descriptor set.
func MatchISO9660(data []byte) bool { return iso9660.match(data) }

// MatchHighSierra reports whether data starts with a High Sierra volume descriptor set.
func MatchHighSierra(data []byte) bool { return highSierra.match(data) }

// ReadISO9660 builds the directory of an ISO9660 image.
func ReadISO9660(data []byte) (*Image, error) { return iso9660.read(data) }

// ReadHighSierra builds the directory of a High Sierra image, the pre-ISO
// format used by the earliest Windows CD-ROMs.
func ReadHighSierra(data []byte) (*Image, error) { return highSierra.read(data) }

func (l cdLayout) match(data []byte) bool {
	off := descriptorSector*descriptorSize + l.magicAt
	return len(data) >= off+len(l.magic) && bytes.Equal(data[off:off+len(l.magic)], l.magic)
}

type pendingDir struct {
	path   string
	extent uint32
	size   uint32
}

func (l cdLayout) read(data []byte) (*Image, error) {
	if !l.match(data) {
		return nil, errors.Wrapf(models.ErrUnrecognizedFormat, "no %s volume descriptor", l.name)
	}
	pvd := data[descriptorSector*descriptorSize:]
	if len(pvd) < descriptorSize {
		return nil, errors.Wrapf(models.ErrTruncated, "%s volume descriptor", l.name)
	}
	blockSize := uint64(binary.LittleEndian.Uint16(pvd[l.blockSizeAt:]))
	if blockSize == 0 {
		return nil, errors.Wrapf(models.ErrMalformed, "%s logical block size is zero", l.name)
	}
	root, err := l.record(pvd[l.rootAt:])
	if err != nil {
		return nil, err
	}

	var entries []Entry
	visited := map[uint32]bool{}
	stack := []pendingDir{{"/", root.extent, root.size}}
	for len(stack) > 0 {
		d := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if visited[d.extent] {
			continue
		}
		visited[d.extent] = true

		span := FileEntry{uint64(d.extent) * blockSize, uint64(d.size)}
		dir, err := Slice(data, span)
		if err != nil {
			return nil, errors.Wrapf(err, "directory %s", d.path)
		}
		for off := 0; off < len(dir); {
			if dir[off] == 0 {
				// records never straddle a block; the rest of this one is padding
				off = (off/int(blockSize) + 1) * int(blockSize)
				continue
			}
			rec, err := l.record(dir[off:])
			if err != nil {
				return nil, errors.Wrapf(err, "record at %s+%#x", d.path, off)
			}
			if rec.length < recordHeaderSize+rec.nameLength || off+rec.length > len(dir) {
				return nil, errors.Wrapf(models.ErrMalformed, "record at %s+%#x overruns its directory", d.path, off)
			}
			name := dir[off+recordHeaderSize : off+recordHeaderSize+rec.nameLength]
			off += rec.length
			if len(name) == 1 && (name[0] == 0 || name[0] == 1) {
				continue
			}
			p := path.Join(d.path, string(name))
			if rec.dir {
				stack = append(stack, pendingDir{p, rec.extent, rec.size})
				continue
			}
			e := FileEntry{uint64(rec.extent) * blockSize, uint64(rec.size)}
			if _, err := Slice(data, e); err != nil {
				return nil, errors.Wrapf(err, "file %s", p)
			}
			entries = append(entries, Entry{Path: p, FileEntry: e})
		}
	}
	return New(entries)
}
