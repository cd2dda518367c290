package loader

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oldmedia/dllexports/go/fixtures"
	"github.com/oldmedia/dllexports/go/models"
)

func TestPEExports(t *testing.T) {
	data := fixtures.PE("TEST.DLL", []fixtures.PEExport{
		{Name: "First"},
		{},
		{Name: "Sleep", Forward: "KERNEL32.Sleep"},
		{Name: "Last"},
	})
	syms, err := NewPEExecutable(data).Exports()
	require.NoError(t, err)
	want := []models.Symbol{
		{Name: "First", Ordinal: 1, HasOrdinal: true},
		{Name: "Sleep", Ordinal: 3, HasOrdinal: true, Forwarder: "KERNEL32.Sleep"},
		{Name: "Last", Ordinal: 4, HasOrdinal: true},
	}
	if diff := cmp.Diff(want, syms, cmpopts.IgnoreFields(models.Symbol{}, "Addr")); diff != "" {
		t.Fatalf("exports mismatch (-want +got):\n%s", diff)
	}
	assert.NotZero(t, syms[0].Addr)
	assert.Zero(t, syms[1].Addr)
	assert.NotEqual(t, syms[0].Addr, syms[2].Addr)
}

func TestPENoExports(t *testing.T) {
	syms, err := NewPEExecutable(fixtures.PE("EMPTY.DLL", nil)).Exports()
	require.NoError(t, err)
	assert.Empty(t, syms)

	syms, err = NewPEExecutable(fixtures.PE("ORDINALS.DLL", []fixtures.PEExport{{}, {}})).Exports()
	require.NoError(t, err)
	assert.Empty(t, syms)
}

func TestPEMalformed(t *testing.T) {
	data := fixtures.PE("TEST.DLL", []fixtures.PEExport{{Name: "A"}})

	_, err := NewPEExecutable(data[:fixtures.ExtHeaderOffset+10]).Exports()
	assert.True(t, errors.Is(err, models.ErrMalformed), "%+v", err)

	// move the export directory outside every section
	bad := append([]byte(nil), data...)
	dd := fixtures.ExtHeaderOffset + 4 + 20 + 96
	le32put(bad[dd:], 0x9000)
	_, err = NewPEExecutable(bad).Exports()
	assert.True(t, errors.Is(err, models.ErrOffsetOutOfBounds), "%+v", err)
}
