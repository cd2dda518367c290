// Package image models a disk image as a read-only directory of byte spans.
package image

import (
	"math"
	"sort"

	"github.com/pkg/errors"

	"github.com/oldmedia/dllexports/go/models"
)

// FileEntry is the half-open span [Offset, Offset+Size) inside an image.
type FileEntry struct {
	Offset uint64
	Size   uint64
}

// End returns Offset+Size, or false if the sum overflows.
func (e FileEntry) End() (uint64, bool) {
	if e.Size > math.MaxUint64-e.Offset {
		return 0, false
	}
	return e.Offset + e.Size, true
}

// Entry pairs a member path with its span.
type Entry struct {
	Path string
	FileEntry
}

// Image maps normalized member paths to spans. It never holds file content.
type Image struct {
	entries []Entry
	index   map[string]int
}

// New builds an Image from entries. Paths are normalized, and two entries
// normalizing to the same path are an error.
func New(entries []Entry) (*Image, error) {
	img := &Image{
		entries: make([]Entry, 0, len(entries)),
		index:   make(map[string]int, len(entries)),
	}
	for _, e := range entries {
		e.Path = NormalizePath(e.Path)
		if _, ok := img.index[e.Path]; ok {
			return nil, errors.Wrapf(models.ErrMalformed, "duplicate path %s", e.Path)
		}
		img.index[e.Path] = -1
		img.entries = append(img.entries, e)
	}
	sort.Slice(img.entries, func(i, j int) bool {
		return img.entries[i].Path < img.entries[j].Path
	})
	for i, e := range img.entries {
		img.index[e.Path] = i
	}
	return img, nil
}

func (img *Image) Lookup(p string) (FileEntry, error) {
	i, ok := img.index[NormalizePath(p)]
	if !ok {
		return FileEntry{}, errors.Wrapf(models.ErrNotFound, "%s", p)
	}
	return img.entries[i].FileEntry, nil
}

// Index reports the position of p in Entries order.
func (img *Image) Index(p string) (int, bool) {
	i, ok := img.index[NormalizePath(p)]
	return i, ok
}

func (img *Image) Len() int {
	return len(img.entries)
}

// Paths lists member paths in sorted order.
func (img *Image) Paths() []string {
	paths := make([]string, len(img.entries))
	for i, e := range img.entries {
		paths[i] = e.Path
	}
	return paths
}

// Entries returns a copy of the directory in sorted path order.
func (img *Image) Entries() []Entry {
	return append([]Entry(nil), img.entries...)
}

// Slice returns image[e.Offset:e.Offset+e.Size] without copying.
func Slice(image []byte, e FileEntry) ([]byte, error) {
	end, ok := e.End()
	if !ok || end > uint64(len(image)) {
		return nil, errors.Wrapf(models.ErrOffsetOutOfBounds, "span %#x+%#x exceeds image of %#x bytes", e.Offset, e.Size, len(image))
	}
	return image[e.Offset:end:end], nil
}

// Open looks up p and slices it out of image.
func (img *Image) Open(image []byte, p string) ([]byte, error) {
	e, err := img.Lookup(p)
	if err != nil {
		return nil, err
	}
	return Slice(image, e)
}
