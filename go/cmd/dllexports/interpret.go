package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/pkg/errors"
	"github.com/samber/lo"
	"github.com/spf13/afero"

	"github.com/oldmedia/dllexports/go/archive"
	"github.com/oldmedia/dllexports/go/models"
)

// interpretFile prints the exports of in. Disk images list every member that
// resolves to an executable, prefixed by its path.
func interpretFile(ctx context.Context, e *env, in string) error {
	data, err := afero.ReadFile(e.fs, in)
	if err != nil {
		return errors.Wrap(err, "reading input")
	}
	a, err := archive.Open(data, e.cfg)
	if err != nil {
		return errors.Wrap(err, in)
	}
	results, err := a.ResolveAll(ctx)
	if results == nil {
		return err
	}
	if a.Count() == 1 && a.Name(0) == "" {
		if results[0].Err != nil {
			return errors.Wrap(results[0].Err, in)
		}
		fmt.Fprintf(e.stdout, "%s: %s\n", in, a.Format())
		printSymbols(e, "", results[0].Symbols)
		return nil
	}
	fmt.Fprintf(e.stdout, "%s: %s, %d files\n", in, a.Format(), a.Count())
	for _, r := range results {
		if r.Err != nil {
			fmt.Fprintf(e.stdout, "%s: %v\n", r.Name, r.Err)
			continue
		}
		printSymbols(e, r.Name+": ", r.Symbols)
	}
	return nil
}

func printSymbols(e *env, prefix string, syms []models.Symbol) {
	lines := lo.Map(syms, func(s models.Symbol, _ int) string {
		if s.Forwarder != "" {
			return prefix + s.String() + " -> " + s.Forwarder
		}
		return prefix + s.String()
	})
	if len(lines) > 0 {
		fmt.Fprintln(e.stdout, strings.Join(lines, "\n"))
	}
}
