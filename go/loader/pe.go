package loader

import (
	"bytes"
	"debug/pe"

	"github.com/pkg/errors"

	"github.com/oldmedia/dllexports/go/models"
)

type exportDirectory struct {
	Characteristics uint32
	TimeDateStamp   uint32
	MajorVersion    uint16
	MinorVersion    uint16
	NameRVA         uint32
	OrdinalBase     uint32
	FunctionCount   uint32
	NameCount       uint32
	FunctionsRVA    uint32
	NamesRVA        uint32
	OrdinalsRVA     uint32
}

// PEExecutable is a 32- or 64-bit portable executable.
type PEExecutable struct {
	data []byte
	// MaxNameLength caps export and forwarder names.
	MaxNameLength int
}

func NewPEExecutable(data []byte) *PEExecutable {
	return &PEExecutable{data: data, MaxNameLength: models.DefaultMaxNameLength}
}

func (p *PEExecutable) setMaxNameLength(max int) { p.MaxNameLength = max }

func exportDataDirectory(f *pe.File) (pe.DataDirectory, bool) {
	switch oh := f.OptionalHeader.(type) {
	case *pe.OptionalHeader32:
		if oh.NumberOfRvaAndSizes > pe.IMAGE_DIRECTORY_ENTRY_EXPORT {
			return oh.DataDirectory[pe.IMAGE_DIRECTORY_ENTRY_EXPORT], true
		}
	case *pe.OptionalHeader64:
		if oh.NumberOfRvaAndSizes > pe.IMAGE_DIRECTORY_ENTRY_EXPORT {
			return oh.DataDirectory[pe.IMAGE_DIRECTORY_ENTRY_EXPORT], true
		}
	}
	return pe.DataDirectory{}, false
}

// peImage maps RVAs onto file offsets.
type peImage struct {
	data     []byte
	sections []*pe.Section
	maxName  int
}

func (m *peImage) offset(rva uint32) (int64, error) {
	for _, s := range m.sections {
		size := s.VirtualSize
		if size == 0 {
			size = s.Size
		}
		if rva < s.VirtualAddress || rva-s.VirtualAddress >= size {
			continue
		}
		delta := rva - s.VirtualAddress
		if delta >= s.Size {
			return 0, errors.Wrapf(models.ErrOffsetOutOfBounds, "RVA %#x lies in uninitialized data of %s", rva, s.Name)
		}
		return int64(s.Offset) + int64(delta), nil
	}
	return 0, errors.Wrapf(models.ErrOffsetOutOfBounds, "RVA %#x is not in any section", rva)
}

func (m *peImage) table(rva uint32, count uint32, width int) ([]byte, error) {
	off, err := m.offset(rva)
	if err != nil {
		return nil, err
	}
	size := int64(count) * int64(width)
	if off+size > int64(len(m.data)) {
		return nil, errors.Wrapf(models.ErrTruncated, "table of %d entries at %#x", count, off)
	}
	return m.data[off : off+size], nil
}

func (m *peImage) str(rva uint32) (string, error) {
	off, err := m.offset(rva)
	if err != nil {
		return "", err
	}
	if off >= int64(len(m.data)) {
		return "", errors.Wrapf(models.ErrOffsetOutOfBounds, "string at %#x", off)
	}
	return models.ReadNulTerminatedASCIIMax(bytes.NewReader(m.data[off:]), m.maxName)
}

// Exports lists every named entry of the export directory in name-table order.
// Entries exported only by ordinal are not included.
func (p *PEExecutable) Exports() ([]models.Symbol, error) {
	r := bytes.NewReader(p.data)
	f, err := pe.NewFile(r)
	if err != nil {
		return nil, errors.Wrapf(models.ErrMalformed, "PE headers: %v", err)
	}
	dd, ok := exportDataDirectory(f)
	if !ok || (dd.VirtualAddress == 0 && dd.Size == 0) {
		return []models.Symbol{}, nil
	}
	m := &peImage{data: p.data, sections: f.Sections, maxName: p.MaxNameLength}

	dirOff, err := m.offset(dd.VirtualAddress)
	if err != nil {
		return nil, errors.Wrap(err, "export directory")
	}
	var dir exportDirectory
	if _, err := models.UnpackAt(r, &dir, dirOff); err != nil {
		return nil, errors.Wrap(err, "export directory")
	}
	if dir.NameCount == 0 {
		return []models.Symbol{}, nil
	}
	names, err := m.table(dir.NamesRVA, dir.NameCount, 4)
	if err != nil {
		return nil, errors.Wrap(err, "export name pointers")
	}
	ordinals, err := m.table(dir.OrdinalsRVA, dir.NameCount, 2)
	if err != nil {
		return nil, errors.Wrap(err, "export ordinals")
	}
	functions, err := m.table(dir.FunctionsRVA, dir.FunctionCount, 4)
	if err != nil {
		return nil, errors.Wrap(err, "export addresses")
	}

	syms := make([]models.Symbol, 0, dir.NameCount)
	for i := 0; i < int(dir.NameCount); i++ {
		name, err := m.str(le32(names[4*i:]))
		if err != nil {
			return nil, errors.Wrapf(err, "export name %d", i)
		}
		index := uint32(le16(ordinals[2*i:]))
		if index >= dir.FunctionCount {
			return nil, errors.Wrapf(models.ErrMalformed, "export %q refers to function %d of %d", name, index, dir.FunctionCount)
		}
		sym := models.Symbol{Name: name, Ordinal: dir.OrdinalBase + index, HasOrdinal: true}
		addr := le32(functions[4*index:])
		// addresses inside the export directory are forwarder strings
		if addr >= dd.VirtualAddress && addr-dd.VirtualAddress < dd.Size {
			if sym.Forwarder, err = m.str(addr); err != nil {
				return nil, errors.Wrapf(err, "forwarder of %q", name)
			}
		} else {
			sym.Addr = uint64(addr)
		}
		syms = append(syms, sym)
	}
	return syms, nil
}
