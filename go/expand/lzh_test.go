package expand

import (
	"bytes"
	"testing"

	"github.com/icza/bitio"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oldmedia/dllexports/go/fixtures"
)

func TestHuffmanCanonical(t *testing.T) {
	// lengths 2,1,3,3 give codes 10, 0, 110, 111
	h, err := newHuffman([]int{2, 1, 3, 3})
	require.NoError(t, err)

	br := bitio.NewReader(bytes.NewReader([]byte{0x5b, 0x80}))
	var got []int
	for i := 0; i < 4; i++ {
		sym, err := h.decode(br)
		require.NoError(t, err)
		got = append(got, sym)
	}
	assert.Equal(t, []int{1, 0, 2, 3}, got)
}

func TestHuffmanInvalid(t *testing.T) {
	_, err := newHuffman([]int{1, 1, 1})
	assert.True(t, errors.Is(err, ErrCorrupt), "%+v", err)

	_, err = newHuffman([]int{lzhMaxBits + 1, 1})
	assert.True(t, errors.Is(err, ErrCorrupt), "%+v", err)

	// a lone 1-bit code leaves "1" unassigned
	h, err := newHuffman([]int{0, 1})
	require.NoError(t, err)
	_, err = h.decode(bitio.NewReader(bytes.NewReader([]byte{0xff, 0xff, 0xff})))
	assert.True(t, errors.Is(err, ErrCorrupt), "%+v", err)
}

func TestLZHTableEncodings(t *testing.T) {
	data := payloads["repeats"]
	for _, types := range [][5]uint8{
		{0, 0, 0, 0, 0},
		{1, 1, 1, 1, 1},
		{2, 2, 2, 2, 2},
		{3, 3, 3, 3, 3},
		{3, 2, 1, 0, 2},
	} {
		in := fixtures.KWAJRaw(KWAJLZH, fixtures.LZH(data, types), len(data), fixtures.KWAJOptions{WithLength: true})
		assert.Equal(t, data, decompress(t, in), "table encodings %v", types)
	}
}

func TestLZHLongLiteralRuns(t *testing.T) {
	// runs of exactly 32 literals switch back to the primary match table
	data := binaryPayload(32*3 + 5)
	in := fixtures.KWAJ(KWAJLZH, data, fixtures.KWAJOptions{})
	assert.Equal(t, data, decompress(t, in))
}

func TestLZHErrors(t *testing.T) {
	data := []byte("LZH stream for error cases, LZH stream for error cases")
	stream := fixtures.LZH(data, [5]uint8{})
	wrap := func(p []byte) []byte {
		return fixtures.KWAJRaw(KWAJLZH, p, len(data), fixtures.KWAJOptions{WithLength: true})
	}

	badEncoding := append([]byte(nil), stream...)
	badEncoding[0] = 0x70

	// the literal run table stores 32 lengths of 1 bit, which oversubscribes it
	oversub := []byte{0x00, 0x30, 0x01}
	for i := 0; i < 15; i++ {
		oversub = append(oversub, 0x11)
	}
	oversub = append(oversub, 0x10)

	for name, tc := range map[string]struct {
		in   []byte
		want error
	}{
		"table encoding":  {wrap(badEncoding), ErrCorrupt},
		"oversubscribed":  {wrap(oversub), ErrCorrupt},
		"cut tables":      {wrap(stream[:1]), ErrTruncated},
		"cut before size": {wrap(stream[:len(stream)-4]), ErrTruncated},
	} {
		var out bytes.Buffer
		err := Decompress(bytes.NewReader(tc.in), &out)
		assert.True(t, errors.Is(err, tc.want), "%s: %+v", name, err)
	}
}
