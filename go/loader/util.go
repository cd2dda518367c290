package loader

import (
	"encoding/binary"
)

// getMagic returns n bytes at off, or nil if data is too short.
func getMagic(data []byte, off uint64, n int) []byte {
	if off > uint64(len(data)) || uint64(len(data))-off < uint64(n) {
		return nil
	}
	return data[off : off+uint64(n)]
}

func le16(p []byte) uint16 { return binary.LittleEndian.Uint16(p) }
func le32(p []byte) uint32 { return binary.LittleEndian.Uint32(p) }
