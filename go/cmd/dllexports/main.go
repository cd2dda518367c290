package main

import (
	"context"
	"io"
	"os"
	"path/filepath"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/spf13/afero"
	"gopkg.in/alecthomas/kingpin.v2"

	"github.com/oldmedia/dllexports/go/models"
)

type options struct {
	verbose  bool
	maxDepth int
	config   string
}

// env is everything a subcommand touches outside the process.
type env struct {
	fs     afero.Fs
	stdout io.Writer
	stderr io.Writer
	logger log.Logger
	cfg    *models.Config
}

func main() {
	os.Exit(run(context.Background(), os.Args[1:], afero.NewOsFs(), os.Stdout, os.Stderr))
}

func run(ctx context.Context, args []string, fs afero.Fs, stdout, stderr io.Writer) int {
	var opts options
	app := kingpin.New(filepath.Base(os.Args[0]), "Recover exported symbols and payloads from legacy Windows media.").UsageWriter(stdout)
	app.ErrorWriter(stderr)
	app.HelpFlag.Short('h')
	app.Flag("verbose", "Enable verbose logging.").Short('v').Default("false").BoolVar(&opts.verbose)
	app.Flag("max-depth", "Maximum number of nested compressed containers to unwrap.").Default("-1").IntVar(&opts.maxDepth)
	app.Flag("config", "YAML config file. Defaults to "+configName+" in the user config directory.").StringVar(&opts.config)

	expandCmd := app.Command("expand", "Decompress a single KWAJ, SZDD or SZ file.")
	expandIn := expandCmd.Arg("input_file", "Compressed input.").Required().String()
	expandOut := expandCmd.Arg("output_file", "Where to write the decompressed payload.").Required().String()

	interpretCmd := app.Command("interpret", "Identify a file and list the symbols it exports.")
	interpretIn := interpretCmd.Arg("input_file", "Executable, compressed file or disk image.").Required().String()

	listCmd := app.Command("list", "List the files inside a disk image.")
	listIn := listCmd.Arg("image_file", "ISO9660 or High Sierra image.").Required().String()

	mzHeaderCmd := app.Command("mz-header", "Dump the DOS header of an executable.")
	mzHeaderIn := mzHeaderCmd.Arg("input_file", "MZ executable.").Required().String()

	neHeaderCmd := app.Command("ne-header", "Dump the NE header of a 16-bit executable.")
	neHeaderIn := neHeaderCmd.Arg("input_file", "NE executable.").Required().String()

	parsedCmd, err := app.Parse(args)
	if err != nil {
		printError(stderr, err, false)
		return 2
	}

	logger := log.NewLogfmtLogger(log.NewSyncWriter(stderr))
	if !opts.verbose {
		logger = level.NewFilter(logger, level.AllowInfo())
	}
	cfg, err := loadConfig(fs, opts.config)
	if err != nil {
		printError(stderr, err, opts.verbose)
		return 1
	}
	cfg.Logger = logger
	cfg.Verbose = cfg.Verbose || opts.verbose
	if opts.maxDepth >= 0 {
		cfg.MaxDepth = opts.maxDepth
	}
	e := &env{fs: fs, stdout: stdout, stderr: stderr, logger: logger, cfg: cfg}

	switch parsedCmd {
	case expandCmd.FullCommand():
		err = expandFile(e, *expandIn, *expandOut)
	case interpretCmd.FullCommand():
		err = interpretFile(ctx, e, *interpretIn)
	case listCmd.FullCommand():
		err = listImage(e, *listIn)
	case mzHeaderCmd.FullCommand():
		err = dumpMZHeader(e, *mzHeaderIn)
	case neHeaderCmd.FullCommand():
		err = dumpNEHeader(e, *neHeaderIn)
	default:
		level.Error(logger).Log("msg", "unknown command", "cmd", parsedCmd)
		return 2
	}
	if err != nil {
		printError(stderr, err, cfg.Verbose)
		return 1
	}
	return 0
}
