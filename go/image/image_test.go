package image

import (
	"math"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oldmedia/dllexports/go/models"
)

func TestSetupScenario(t *testing.T) {
	data := make([]byte, 4096)
	for i := range data {
		data[i] = byte(i)
	}
	img, err := New([]Entry{{Path: "/SETUP.EXE", FileEntry: FileEntry{Offset: 2048, Size: 512}}})
	require.NoError(t, err)

	e, err := img.Lookup("/SETUP.EXE")
	require.NoError(t, err)
	p, err := Slice(data, e)
	require.NoError(t, err)
	assert.Equal(t, data[2048:2560], p)
	assert.Equal(t, &data[2048], &p[0], "slice must alias the image")

	_, err = img.Lookup("/missing")
	assert.True(t, errors.Is(err, models.ErrNotFound), "%+v", err)
}

func TestSliceBounds(t *testing.T) {
	data := make([]byte, 100)
	cases := []struct {
		e  FileEntry
		ok bool
	}{
		{FileEntry{0, 100}, true},
		{FileEntry{100, 0}, true},
		{FileEntry{40, 60}, true},
		{FileEntry{40, 61}, false},
		{FileEntry{101, 0}, false},
		{FileEntry{1, math.MaxUint64}, false},
		{FileEntry{math.MaxUint64, 2}, false},
	}
	for _, c := range cases {
		p, err := Slice(data, c.e)
		if c.ok {
			require.NoError(t, err, "%+v", c.e)
			assert.Equal(t, data[c.e.Offset:c.e.Offset+c.e.Size], p)
		} else {
			assert.True(t, errors.Is(err, models.ErrOffsetOutOfBounds), "%+v: %v", c.e, err)
		}
	}
}

func TestNormalizePath(t *testing.T) {
	for in, want := range map[string]string{
		"SETUP.EXE":             "/SETUP.EXE",
		"/SETUP.EXE;1":          "/SETUP.EXE",
		`SYSTEM\USER.EXE`:       "/SYSTEM/USER.EXE",
		"/SYSTEM//README.":      "/SYSTEM/README",
		"/A/./B/../C.DLL;1":     "/A/C.DLL",
		"":                      "/",
		"/WIN31/SYSTEM/GDI.EX_": "/WIN31/SYSTEM/GDI.EX_",
	} {
		assert.Equal(t, want, NormalizePath(in), in)
	}
}

func TestDirectory(t *testing.T) {
	img, err := New([]Entry{
		{Path: "b.dll", FileEntry: FileEntry{10, 1}},
		{Path: `\A\C.EXE;1`, FileEntry: FileEntry{20, 2}},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, img.Len())
	assert.Equal(t, []string{"/A/C.EXE", "/b.dll"}, img.Paths())
	assert.Equal(t, FileEntry{20, 2}, img.Entries()[0].FileEntry)

	e, err := img.Lookup("A/C.EXE")
	require.NoError(t, err)
	assert.Equal(t, FileEntry{20, 2}, e)

	i, ok := img.Index(`b.dll;1`)
	require.True(t, ok)
	assert.Equal(t, "/b.dll", img.Entries()[i].Path)
	_, ok = img.Index("/missing")
	assert.False(t, ok)

	_, err = New([]Entry{{Path: "/X"}, {Path: "x;1"}, {Path: "X;2"}})
	assert.True(t, errors.Is(err, models.ErrMalformed), "%+v", err)
}

func TestOpen(t *testing.T) {
	data := []byte("0123456789")
	img, err := New([]Entry{{Path: "/A", FileEntry: FileEntry{2, 3}}, {Path: "/B", FileEntry: FileEntry{8, 3}}})
	require.NoError(t, err)
	p, err := img.Open(data, "/A")
	require.NoError(t, err)
	assert.Equal(t, []byte("234"), p)
	_, err = img.Open(data, "/B")
	assert.True(t, errors.Is(err, models.ErrOffsetOutOfBounds))
	_, err = img.Open(data, "/C")
	assert.True(t, errors.Is(err, models.ErrNotFound))
}
