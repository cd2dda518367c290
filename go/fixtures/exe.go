package fixtures

import (
	"bytes"
	"encoding/binary"
)

var le = binary.LittleEndian

// Offsets within the synthetic executables.
const (
	// LfanewOffset holds the offset of the extended header.
	LfanewOffset = 0x3c
	// RelocOffset holds the MZ relocation table offset; 0x40 marks an extended header.
	RelocOffset = 0x18
	// ExtHeaderOffset is where NE and PE headers start.
	ExtHeaderOffset = 0x40
	// NEResidentNamesField and NEModuleRefField are offsets within the NE header.
	NEResidentNamesField = 0x26
	NEModuleRefField     = 0x28
	neHeaderSize         = 0x40
)

func mzHeader(extended bool) []byte {
	h := make([]byte, 0x40)
	copy(h, "MZ")
	le.PutUint16(h[0x02:], 0x90)
	le.PutUint16(h[0x04:], 3)
	le.PutUint16(h[0x08:], 4)
	le.PutUint16(h[0x10:], 0xb8)
	if extended {
		le.PutUint16(h[RelocOffset:], 0x40)
		le.PutUint32(h[LfanewOffset:], ExtHeaderOffset)
	} else {
		le.PutUint16(h[RelocOffset:], 0x1c)
	}
	return h
}

// MZ builds a plain DOS executable.
func MZ() []byte {
	h := mzHeader(false)
	// mov ah, 4ch; int 21h
	return append(h, 0xb4, 0x4c, 0xcd, 0x21)
}

// NEName is one resident-name table entry.
type NEName struct {
	Name    string
	Ordinal uint16
}

// NE builds a 16-bit executable whose resident-name table lists names. The
// first entry is conventionally the module name.
func NE(names []NEName) []byte {
	var table bytes.Buffer
	for _, n := range names {
		table.WriteString(n.Name)
		table.WriteByte(0)
		binary.Write(&table, le, n.Ordinal)
	}
	table.WriteByte(0)

	ne := make([]byte, neHeaderSize)
	copy(ne, "NE")
	ne[2], ne[3] = 5, 10
	tableOff := uint16(neHeaderSize)
	refOff := tableOff + uint16(table.Len())
	le.PutUint16(ne[0x04:], refOff)
	le.PutUint16(ne[0x22:], tableOff)
	le.PutUint16(ne[0x24:], tableOff)
	le.PutUint16(ne[NEResidentNamesField:], tableOff)
	le.PutUint16(ne[NEModuleRefField:], refOff)
	le.PutUint16(ne[0x2a:], refOff)
	ne[0x36] = 2

	out := mzHeader(true)
	out = append(out, ne...)
	out = append(out, table.Bytes()...)
	// module reference and imported name tables, both empty
	return append(out, 0, 0)
}

// PEExport describes one export of a synthetic DLL. Exports with an empty Name
// are reachable by ordinal only. A non-empty Forward makes the export a
// forwarder string such as "KERNEL32.Sleep".
type PEExport struct {
	Name    string
	Forward string
}

const (
	peSectionRVA  = 0x1000
	peSectionFile = 0x200
	peCodeRVA     = 0x2000
	// PEOrdinalBase is the ordinal of the first export.
	PEOrdinalBase = 1
)

// PE builds a 32-bit DLL. With a nil exports slice no export directory is
// recorded at all.
func PE(dllName string, exports []PEExport) []byte {
	var section []byte
	exportSize := 0
	if exports != nil {
		section, exportSize = peExportSection(dllName, exports)
	} else {
		section = []byte{0xc3}
	}
	rawSize := (len(section) + 0x1ff) &^ 0x1ff

	out := mzHeader(true)
	out = append(out, "PE\x00\x00"...)

	coff := make([]byte, 20)
	le.PutUint16(coff[0:], 0x14c)
	le.PutUint16(coff[2:], 1)
	le.PutUint16(coff[16:], 224)
	le.PutUint16(coff[18:], 0x2102)
	out = append(out, coff...)

	opt := make([]byte, 224)
	le.PutUint16(opt[0:], 0x10b)
	le.PutUint32(opt[4:], uint32(rawSize))
	le.PutUint32(opt[16:], peCodeRVA)
	le.PutUint32(opt[28:], 0x10000000)
	le.PutUint32(opt[32:], 0x1000)
	le.PutUint32(opt[36:], 0x200)
	le.PutUint16(opt[40:], 4)
	le.PutUint16(opt[48:], 4)
	le.PutUint32(opt[56:], peCodeRVA+0x1000)
	le.PutUint32(opt[60:], peSectionFile)
	le.PutUint16(opt[68:], 2)
	le.PutUint32(opt[92:], 16)
	if exports != nil {
		le.PutUint32(opt[96:], peSectionRVA)
		le.PutUint32(opt[100:], uint32(exportSize))
	}
	out = append(out, opt...)

	sh := make([]byte, 40)
	copy(sh, ".edata")
	le.PutUint32(sh[8:], uint32(len(section)))
	le.PutUint32(sh[12:], peSectionRVA)
	le.PutUint32(sh[16:], uint32(rawSize))
	le.PutUint32(sh[20:], peSectionFile)
	le.PutUint32(sh[36:], 0x40000040)
	out = append(out, sh...)

	for len(out) < peSectionFile {
		out = append(out, 0)
	}
	out = append(out, section...)
	for len(out) < peSectionFile+rawSize {
		out = append(out, 0)
	}
	return out
}

func peExportSection(dllName string, exports []PEExport) ([]byte, int) {
	var named []int
	for i, e := range exports {
		if e.Name != "" {
			named = append(named, i)
		}
	}
	const dirSize = 40
	addrOff := dirSize
	namePtrOff := addrOff + 4*len(exports)
	ordOff := namePtrOff + 4*len(named)
	strOff := ordOff + 2*len(named)

	var strs bytes.Buffer
	addString := func(s string) uint32 {
		rva := uint32(peSectionRVA + strOff + strs.Len())
		strs.WriteString(s)
		strs.WriteByte(0)
		return rva
	}
	dllRVA := addString(dllName)
	nameRVAs := make([]uint32, len(named))
	for i, idx := range named {
		nameRVAs[i] = addString(exports[idx].Name)
	}
	addrs := make([]uint32, len(exports))
	for i, e := range exports {
		if e.Forward != "" {
			addrs[i] = addString(e.Forward)
		} else {
			addrs[i] = uint32(peCodeRVA + 0x10*i)
		}
	}

	sec := make([]byte, strOff)
	le.PutUint32(sec[12:], dllRVA)
	le.PutUint32(sec[16:], PEOrdinalBase)
	le.PutUint32(sec[20:], uint32(len(exports)))
	le.PutUint32(sec[24:], uint32(len(named)))
	le.PutUint32(sec[28:], uint32(peSectionRVA+addrOff))
	le.PutUint32(sec[32:], uint32(peSectionRVA+namePtrOff))
	le.PutUint32(sec[36:], uint32(peSectionRVA+ordOff))
	for i, a := range addrs {
		le.PutUint32(sec[addrOff+4*i:], a)
	}
	for i, idx := range named {
		le.PutUint32(sec[namePtrOff+4*i:], nameRVAs[i])
		le.PutUint16(sec[ordOff+2*i:], uint16(idx))
	}
	sec = append(sec, strs.Bytes()...)
	return sec, len(sec)
}
