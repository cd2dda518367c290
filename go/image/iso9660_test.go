package image

import (
	"bytes"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oldmedia/dllexports/go/fixtures"
	"github.com/oldmedia/dllexports/go/models"
)

var discFiles = []fixtures.CDFile{
	{Path: "/SETUP.EXE", Data: bytes.Repeat([]byte("S"), 3000)},
	{Path: "/README.TXT", Data: []byte("hello")},
	{Path: "/SYSTEM/USER.EX_", Data: []byte("compressed")},
	{Path: "/SYSTEM/FONTS/VGA.FON", Data: nil},
}

func checkDisc(t *testing.T, data []byte, img *Image) {
	t.Helper()
	assert.Equal(t, []string{"/README.TXT", "/SETUP.EXE", "/SYSTEM/FONTS/VGA.FON", "/SYSTEM/USER.EX_"}, img.Paths())
	for _, f := range discFiles {
		p, err := img.Open(data, f.Path)
		require.NoError(t, err, f.Path)
		assert.Equal(t, len(f.Data), len(p), f.Path)
		if len(f.Data) > 0 {
			assert.Equal(t, f.Data, p, f.Path)
		}
	}
}

func TestReadISO9660(t *testing.T) {
	data := fixtures.ISO9660(discFiles)
	assert.True(t, MatchISO9660(data))
	assert.False(t, MatchHighSierra(data))
	img, err := ReadISO9660(data)
	require.NoError(t, err)
	checkDisc(t, data, img)

	_, err = ReadHighSierra(data)
	assert.True(t, errors.Is(err, models.ErrUnrecognizedFormat))
}

func TestReadHighSierra(t *testing.T) {
	data := fixtures.HighSierra(discFiles)
	assert.True(t, MatchHighSierra(data))
	assert.False(t, MatchISO9660(data))
	img, err := ReadHighSierra(data)
	require.NoError(t, err)
	checkDisc(t, data, img)
}

func TestReadISO9660Truncated(t *testing.T) {
	data := fixtures.ISO9660(discFiles)
	// drop the sectors of the last two files; the directory now points past the end
	_, err := ReadISO9660(data[:len(data)-2*fixtures.SectorSize])
	assert.True(t, errors.Is(err, models.ErrOffsetOutOfBounds), "%+v", err)

	_, err = ReadISO9660(data[:16*fixtures.SectorSize+10])
	assert.True(t, errors.Is(err, models.ErrTruncated), "%+v", err)
}

func TestReadISO9660Loop(t *testing.T) {
	data := fixtures.ISO9660([]fixtures.CDFile{{Path: "/SUB/A.DLL", Data: []byte("x")}})
	// point /SUB back at the root directory
	root := data[18*fixtures.SectorSize:]
	sub := root[34+34:]
	require.Equal(t, "SUB", string(sub[33:36]))
	copy(sub[2:6], root[2:6])
	img, err := ReadISO9660(data)
	require.NoError(t, err)
	assert.Equal(t, 0, img.Len())
}
