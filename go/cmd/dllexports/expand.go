package main

import (
	"path/filepath"

	"github.com/dustin/go-humanize"
	"github.com/go-kit/log/level"
	"github.com/pkg/errors"
	"github.com/spf13/afero"

	"github.com/oldmedia/dllexports/go/loader"
)

// expandFile decompresses one container layer of in into out. out only appears
// once it is complete.
func expandFile(e *env, in, out string) error {
	data, err := afero.ReadFile(e.fs, in)
	if err != nil {
		return errors.Wrap(err, "reading input")
	}
	payload, err := loader.NewResolver(e.cfg).Expand(data)
	if err != nil {
		return errors.Wrap(err, in)
	}
	if err := writeAtomic(e.fs, out, payload); err != nil {
		return errors.Wrap(err, "writing output")
	}
	level.Info(e.logger).Log("msg", "expanded", "in", in, "out", out, "size", humanize.Bytes(uint64(len(payload))))
	return nil
}

// writeAtomic writes data to a temporary file next to path and renames it into
// place. The temporary file is removed on any failure.
func writeAtomic(fs afero.Fs, path string, data []byte) (err error) {
	tmp, err := afero.TempFile(fs, filepath.Dir(path), "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			fs.Remove(tmp.Name())
		}
	}()
	if _, err = tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err = tmp.Close(); err != nil {
		return err
	}
	return fs.Rename(tmp.Name(), path)
}
