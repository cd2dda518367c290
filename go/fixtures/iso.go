package fixtures

import (
	"path"
	"sort"
	"strings"
)

// SectorSize is the logical block size of every synthetic disc.
const SectorSize = 2048

// CDFile is one file placed on a synthetic disc. Path uses forward slashes and
// may name one or more parent directories.
type CDFile struct {
	Path string
	Data []byte
}

// ISO9660 builds an ISO9660 image holding files.
func ISO9660(files []CDFile) []byte {
	return buildCD(files, false)
}

// HighSierra builds a High Sierra image holding files.
func HighSierra(files []CDFile) []byte {
	return buildCD(files, true)
}

type cdDir struct {
	path    string
	sector  uint32
	dirs    []string
	files   []int
	records []byte
}

func buildCD(files []CDFile, highSierra bool) []byte {
	dirs := map[string]*cdDir{"/": {path: "/"}}
	var ensure func(p string) *cdDir
	ensure = func(p string) *cdDir {
		if d, ok := dirs[p]; ok {
			return d
		}
		d := &cdDir{path: p}
		dirs[p] = d
		parent := ensure(path.Dir(p))
		parent.dirs = append(parent.dirs, p)
		return d
	}
	for i, f := range files {
		p := path.Clean("/" + f.Path)
		d := ensure(path.Dir(p))
		d.files = append(d.files, i)
	}

	// directories take one sector each, breadth first from the root at 18
	order := []string{"/"}
	for i := 0; i < len(order); i++ {
		d := dirs[order[i]]
		sort.Strings(d.dirs)
		d.sector = uint32(18 + i)
		order = append(order, d.dirs...)
	}
	next := uint32(18 + len(order))
	fileSector := make([]uint32, len(files))
	for i, f := range files {
		fileSector[i] = next
		next += uint32((len(f.Data) + SectorSize - 1) / SectorSize)
		if len(f.Data) == 0 {
			next++
		}
	}

	img := make([]byte, int(next)*SectorSize)
	for _, p := range order {
		d := dirs[p]
		parent := dirs[path.Dir(p)]
		buf := img[int(d.sector)*SectorSize : int(d.sector+1)*SectorSize]
		off := 0
		put := func(extent, size uint32, dir bool, name string) {
			off += cdRecord(buf[off:], extent, size, dir, name, highSierra)
		}
		put(d.sector, SectorSize, true, "\x00")
		put(parent.sector, SectorSize, true, "\x01")
		for _, sub := range d.dirs {
			put(dirs[sub].sector, SectorSize, true, strings.ToUpper(path.Base(sub)))
		}
		for _, i := range d.files {
			name := strings.ToUpper(path.Base(path.Clean("/" + files[i].Path)))
			if !highSierra {
				name += ";1"
			}
			put(fileSector[i], uint32(len(files[i].Data)), false, name)
		}
	}
	for i, f := range files {
		copy(img[int(fileSector[i])*SectorSize:], f.Data)
	}

	pvd := img[16*SectorSize : 17*SectorSize]
	term := img[17*SectorSize : 18*SectorSize]
	root := dirs["/"]
	if highSierra {
		bothEndian32(pvd[0:], 16)
		pvd[8] = 1
		copy(pvd[9:], "CDROM")
		pvd[14] = 1
		bothEndian32(pvd[88:], next)
		bothEndian16(pvd[136:], SectorSize)
		cdRecord(pvd[180:], root.sector, SectorSize, true, "\x00", true)
		bothEndian32(term[0:], 17)
		term[8] = 255
		copy(term[9:], "CDROM")
		term[14] = 1
	} else {
		pvd[0] = 1
		copy(pvd[1:], "CD001")
		pvd[6] = 1
		bothEndian32(pvd[80:], next)
		bothEndian16(pvd[128:], SectorSize)
		cdRecord(pvd[156:], root.sector, SectorSize, true, "\x00", false)
		term[0] = 255
		copy(term[1:], "CD001")
		term[6] = 1
	}
	return img
}

// cdRecord writes one directory record into p and returns its length.
func cdRecord(p []byte, extent, size uint32, dir bool, name string, highSierra bool) int {
	n := 33 + len(name)
	if n%2 == 1 {
		n++
	}
	p[0] = byte(n)
	bothEndian32(p[2:], extent)
	bothEndian32(p[10:], size)
	flagsAt := 25
	if highSierra {
		flagsAt = 24
	}
	if dir {
		p[flagsAt] = 2
	}
	bothEndian16(p[28:], 1)
	p[32] = byte(len(name))
	copy(p[33:], name)
	return n
}

func bothEndian32(p []byte, v uint32) {
	le.PutUint32(p, v)
	p[4], p[5], p[6], p[7] = byte(v>>24), byte(v>>16), byte(v>>8), byte(v)
}

func bothEndian16(p []byte, v uint16) {
	le.PutUint16(p, v)
	p[2], p[3] = byte(v>>8), byte(v)
}
