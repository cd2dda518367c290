package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/mattn/go-isatty"
	"github.com/mgutz/ansi"
	"github.com/pkg/errors"
)

type stackTracer interface {
	StackTrace() errors.StackTrace
}

func colorize(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && (isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd()))
}

// printError writes a single "error:" line, and with verbose also the
// innermost stack trace pkg/errors recorded.
func printError(w io.Writer, err error, verbose bool) {
	prefix := "error:"
	if colorize(w) {
		prefix = ansi.Color(prefix, "red+b")
	}
	fmt.Fprintf(w, "%s %v\n", prefix, err)
	if !verbose {
		return
	}
	var st stackTracer
	for e := err; e != nil; e = errors.Unwrap(e) {
		if s, ok := e.(stackTracer); ok {
			st = s
		}
	}
	if st == nil {
		return
	}
	// parse method name and file:line for each frame
	var frames [][2]string
	width := 0
	for _, f := range st.StackTrace() {
		method := fmt.Sprintf("%n", f)
		fileline := fmt.Sprintf("%s:%d", f, f)
		frames = append(frames, [2]string{fileline, method})
		if len(fileline) > width {
			width = len(fileline)
		}
		if method == "main" {
			break
		}
	}
	for _, f := range frames {
		fmt.Fprintf(w, "  %s%s | %s()\n", f[0], strings.Repeat(" ", width-len(f[0])), f[1])
	}
}
