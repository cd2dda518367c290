package main

import (
	"github.com/davecgh/go-spew/spew"
	"github.com/pkg/errors"
	"github.com/spf13/afero"

	"github.com/oldmedia/dllexports/go/loader"
)

var headerDump = spew.ConfigState{
	Indent:                  "  ",
	DisablePointerAddresses: true,
	DisableCapacities:       true,
	DisableMethods:          true,
}

func dumpMZHeader(e *env, in string) error {
	data, err := afero.ReadFile(e.fs, in)
	if err != nil {
		return errors.Wrap(err, "reading input")
	}
	hdr, err := loader.ReadMZHeader(data)
	if err != nil {
		return errors.Wrap(err, in)
	}
	headerDump.Fdump(e.stdout, *hdr)
	return nil
}

func dumpNEHeader(e *env, in string) error {
	data, err := afero.ReadFile(e.fs, in)
	if err != nil {
		return errors.Wrap(err, "reading input")
	}
	hdr, err := loader.NewNEExecutable(data).Header()
	if err != nil {
		return errors.Wrap(err, in)
	}
	headerDump.Fdump(e.stdout, *hdr)
	return nil
}
