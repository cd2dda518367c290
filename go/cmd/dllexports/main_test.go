package main

import (
	"bytes"
	"context"
	"os"
	"strings"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oldmedia/dllexports/go/expand"
	"github.com/oldmedia/dllexports/go/fixtures"
)

var userExe = fixtures.NE([]fixtures.NEName{{Name: "USER", Ordinal: 0}, {Name: "MessageBox", Ordinal: 1}})

type result struct {
	code           int
	stdout, stderr string
}

func runCLI(t *testing.T, fs afero.Fs, args ...string) result {
	t.Helper()
	var stdout, stderr bytes.Buffer
	code := run(context.Background(), args, fs, &stdout, &stderr)
	return result{code, stdout.String(), stderr.String()}
}

func newFs(t *testing.T, files map[string][]byte) afero.Fs {
	t.Helper()
	fs := afero.NewMemMapFs()
	require.NoError(t, fs.MkdirAll("/work", 0o755))
	for name, data := range files {
		require.NoError(t, afero.WriteFile(fs, name, data, 0o644))
	}
	// an empty config keeps the user's own config out of the tests
	require.NoError(t, afero.WriteFile(fs, "/work/empty.yaml", nil, 0o644))
	return fs
}

func workFiles(t *testing.T, fs afero.Fs) []string {
	t.Helper()
	infos, err := afero.ReadDir(fs, "/work")
	require.NoError(t, err)
	var names []string
	for _, fi := range infos {
		names = append(names, fi.Name())
	}
	return names
}

func TestExpand(t *testing.T) {
	for name, in := range map[string][]byte{
		"szdd":     fixtures.SZDD(userExe, 'E'),
		"kwaj lzh": fixtures.KWAJ(expand.KWAJLZH, userExe, fixtures.KWAJOptions{WithLength: true}),
	} {
		fs := newFs(t, map[string][]byte{"/work/USER.EX_": in})
		res := runCLI(t, fs, "--config", "/work/empty.yaml", "expand", "/work/USER.EX_", "/work/USER.EXE")
		require.Equal(t, 0, res.code, "%s: %s", name, res.stderr)
		out, err := afero.ReadFile(fs, "/work/USER.EXE")
		require.NoError(t, err, name)
		assert.Equal(t, userExe, out, name)
		assert.Contains(t, res.stderr, "msg=expanded", name)
		assert.ElementsMatch(t, []string{"USER.EX_", "USER.EXE", "empty.yaml"}, workFiles(t, fs), name)
	}
}

func TestExpandFailures(t *testing.T) {
	fs := newFs(t, map[string][]byte{
		"/work/ODD.EX_":   fixtures.KWAJ(7, userExe, fixtures.KWAJOptions{}),
		"/work/PLAIN.EXE": userExe,
	})
	cases := map[string][]string{
		"missing input":  {"expand", "/work/NOPE.EX_", "/work/out"},
		"codec failure":  {"expand", "/work/ODD.EX_", "/work/out"},
		"not compressed": {"expand", "/work/PLAIN.EXE", "/work/out"},
	}
	for name, args := range cases {
		res := runCLI(t, fs, append([]string{"--config", "/work/empty.yaml"}, args...)...)
		assert.Equal(t, 1, res.code, name)
		lines := strings.Split(strings.TrimSpace(res.stderr), "\n")
		assert.Len(t, lines, 1, name)
		assert.True(t, strings.HasPrefix(lines[0], "error: "), "%s: %q", name, res.stderr)
		assert.ElementsMatch(t, []string{"ODD.EX_", "PLAIN.EXE", "empty.yaml"}, workFiles(t, fs), name)
	}
}

func TestExpandUnwritable(t *testing.T) {
	fs := newFs(t, map[string][]byte{"/work/USER.EX_": fixtures.SZDD(userExe, 'E')})
	res := runCLI(t, afero.NewReadOnlyFs(fs), "--config", "/work/empty.yaml", "expand", "/work/USER.EX_", "/work/USER.EXE")
	assert.Equal(t, 1, res.code)
	assert.True(t, strings.HasPrefix(res.stderr, "error: writing output"), res.stderr)
	assert.ElementsMatch(t, []string{"USER.EX_", "empty.yaml"}, workFiles(t, fs))
}

func TestExpandPartialOutput(t *testing.T) {
	data := fixtures.SZDD(bytes.Repeat([]byte("partial"), 100), 0)
	fs := newFs(t, map[string][]byte{"/work/CUT.EX_": data[:len(data)-5]})
	res := runCLI(t, fs, "--config", "/work/empty.yaml", "expand", "/work/CUT.EX_", "/work/CUT.EXE")
	assert.Equal(t, 1, res.code)
	_, err := fs.Stat("/work/CUT.EXE")
	assert.True(t, os.IsNotExist(err))
	assert.ElementsMatch(t, []string{"CUT.EX_", "empty.yaml"}, workFiles(t, fs))
}

func TestInterpret(t *testing.T) {
	gdi := fixtures.PE("GDI32.DLL", []fixtures.PEExport{{Name: "BitBlt"}, {Name: "Sleep", Forward: "KERNEL32.Sleep"}})
	fs := newFs(t, map[string][]byte{
		"/work/USER.EX_": fixtures.SZDD(userExe, 'E'),
		"/work/DISC.ISO": fixtures.ISO9660([]fixtures.CDFile{
			{Path: "/GDI32.DL_", Data: fixtures.SZ(gdi)},
			{Path: "/README.TXT", Data: []byte("text")},
		}),
	})

	res := runCLI(t, fs, "--config", "/work/empty.yaml", "interpret", "/work/USER.EX_")
	require.Equal(t, 0, res.code, res.stderr)
	assert.Equal(t, "/work/USER.EX_: SZDD\nUSER@0\nMessageBox@1\n", res.stdout)

	res = runCLI(t, fs, "--config", "/work/empty.yaml", "interpret", "/work/DISC.ISO")
	require.Equal(t, 0, res.code, res.stderr)
	assert.Contains(t, res.stdout, "/work/DISC.ISO: ISO9660, 2 files\n")
	assert.Contains(t, res.stdout, "/GDI32.DL_: BitBlt@1\n")
	assert.Contains(t, res.stdout, "/GDI32.DL_: Sleep@2 -> KERNEL32.Sleep\n")
	assert.Contains(t, res.stdout, "/README.TXT: ")
}

func TestMaxDepth(t *testing.T) {
	fs := newFs(t, map[string][]byte{
		"/work/USER.EX_":  fixtures.SZDD(userExe, 'E'),
		"/work/deep.yaml": []byte("max_depth: 0\n"),
	})
	res := runCLI(t, fs, "--config", "/work/deep.yaml", "interpret", "/work/USER.EX_")
	assert.Equal(t, 1, res.code)
	assert.Contains(t, res.stderr, "resolution depth exceeded")

	res = runCLI(t, fs, "--config", "/work/deep.yaml", "--max-depth", "1", "interpret", "/work/USER.EX_")
	assert.Equal(t, 0, res.code, res.stderr)

	res = runCLI(t, fs, "--config", "/work/missing.yaml", "interpret", "/work/USER.EX_")
	assert.Equal(t, 1, res.code)
}

func TestList(t *testing.T) {
	fs := newFs(t, map[string][]byte{
		"/work/DISC.ISO": fixtures.ISO9660([]fixtures.CDFile{
			{Path: "/SETUP.EXE", Data: make([]byte, 3000)},
			{Path: "/SYSTEM/USER.EX_", Data: fixtures.SZDD(userExe, 'E')},
		}),
		"/work/USER.EXE": userExe,
	})
	res := runCLI(t, fs, "--config", "/work/empty.yaml", "list", "/work/DISC.ISO")
	require.Equal(t, 0, res.code, res.stderr)
	lines := strings.Split(strings.TrimSpace(res.stdout), "\n")
	require.Len(t, lines, 2)
	assert.True(t, strings.HasSuffix(lines[0], "3.0 kB  /SETUP.EXE"), lines[0])
	assert.True(t, strings.HasSuffix(lines[1], "/SYSTEM/USER.EX_"), lines[1])

	res = runCLI(t, fs, "--config", "/work/empty.yaml", "list", "/work/USER.EXE")
	assert.Equal(t, 1, res.code)
}

func TestHeaders(t *testing.T) {
	fs := newFs(t, map[string][]byte{
		"/work/USER.EXE":  userExe,
		"/work/DOS.EXE":   fixtures.MZ(),
		"/work/GDI32.DLL": fixtures.PE("GDI32.DLL", nil),
	})

	res := runCLI(t, fs, "--config", "/work/empty.yaml", "mz-header", "/work/DOS.EXE")
	require.Equal(t, 0, res.code, res.stderr)
	assert.Contains(t, res.stdout, "loader.MZHeader")
	assert.Contains(t, res.stdout, "RelocTableOffset: (uint16)")

	res = runCLI(t, fs, "--config", "/work/empty.yaml", "ne-header", "/work/USER.EXE")
	require.Equal(t, 0, res.code, res.stderr)
	assert.Contains(t, res.stdout, "loader.NEHeader")
	assert.Contains(t, res.stdout, "ResidentNamesOffset: (uint16) 64,")

	for _, in := range []string{"/work/DOS.EXE", "/work/GDI32.DLL"} {
		res = runCLI(t, fs, "--config", "/work/empty.yaml", "ne-header", in)
		assert.Equal(t, 1, res.code, in)
		assert.True(t, strings.HasPrefix(res.stderr, "error: "+in), res.stderr)
	}
}

func TestUsageErrors(t *testing.T) {
	res := runCLI(t, afero.NewMemMapFs(), "expand", "/only-one-arg")
	assert.Equal(t, 2, res.code)
	assert.Contains(t, res.stderr, "error: ")

	res = runCLI(t, afero.NewMemMapFs(), "bogus")
	assert.Equal(t, 2, res.code)
}

func TestPrintErrorVerbose(t *testing.T) {
	var buf bytes.Buffer
	_, err := loadConfig(afero.NewMemMapFs(), "/nope.yaml")
	require.Error(t, err)
	printError(&buf, err, true)
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	assert.True(t, strings.HasPrefix(lines[0], "error: reading config"))
	assert.Greater(t, len(lines), 1, "expected a stack trace")
	assert.Contains(t, buf.String(), "loadConfig()")
}
