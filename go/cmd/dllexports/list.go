package main

import (
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/pkg/errors"
	"github.com/spf13/afero"

	"github.com/oldmedia/dllexports/go/archive"
	"github.com/oldmedia/dllexports/go/models"
)

func listImage(e *env, in string) error {
	data, err := afero.ReadFile(e.fs, in)
	if err != nil {
		return errors.Wrap(err, "reading input")
	}
	a, err := archive.Open(data, e.cfg)
	if err != nil {
		return errors.Wrap(err, in)
	}
	if a.Count() == 1 && a.Name(0) == "" {
		return errors.Wrapf(models.ErrUnrecognizedFormat, "%s is a %s file, not a disk image", in, a.Format())
	}
	for i := 0; i < a.Count(); i++ {
		fmt.Fprintf(e.stdout, "%10s  %s\n", humanize.Bytes(a.Size(i)), a.Name(i))
	}
	return nil
}
