package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"

	"github.com/fatih/color"
	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/mattn/go-isatty"
	"github.com/pkg/errors"
	"github.com/prometheus/common/version"
	"gopkg.in/alecthomas/kingpin.v2"

	"github.com/grafana/elfinspect/pkg/inspect"
)

const configFileFlag = "config.file"

var (
	consoleOutput = os.Stderr
	logger        = log.NewLogfmtLogger(consoleOutput)
)

func main() {
	ctx := withOutput(context.Background(), os.Stdout)
	os.Exit(checkError(run(ctx, os.Args[1:])))
}

func run(ctx context.Context, args []string) error {
	cfg := inspect.DefaultConfig()
	if path := configFileArg(args); path != "" {
		if err := inspect.LoadConfig(path, &cfg); err != nil {
			return err
		}
	}

	var verbose bool
	app := kingpin.New(filepath.Base(os.Args[0]), "Inspect the identification, file header, program headers and notes of ELF files.").UsageWriter(output(ctx))
	app.Version(version.Print("elfcli"))
	app.HelpFlag.Short('h')
	app.Flag("verbose", "Enable verbose logging.").Short('v').Default("false").BoolVar(&verbose)
	app.Flag(configFileFlag, "YAML file with default values for the flags below.").String()
	app.Flag("offset", "Byte offset of the ELF object inside each file.").Default(strconv.FormatInt(cfg.Offset, 10)).Int64Var(&cfg.Offset)
	app.Flag("output", "How to output the result: console, json, yaml, table or tree.").Short('o').Default(cfg.Output).StringVar(&cfg.Output)
	app.Flag("concurrency", "Maximum number of files parsed concurrently.").Default(strconv.Itoa(cfg.Concurrency)).IntVar(&cfg.Concurrency)
	app.Flag("cache-size", "Number of parse results kept for files with identical contents.").Default(strconv.Itoa(cfg.CacheSize)).IntVar(&cfg.CacheSize)
	app.Flag("skip-notes", "Do not decode note segments.").Default(strconv.FormatBool(cfg.SkipNotes)).BoolVar(&cfg.SkipNotes)

	views := map[string]inspect.View{}
	files := map[string]*[]string{}
	for _, c := range []struct {
		name, help string
		view       inspect.View
	}{
		{"dump", "Dump everything that was decoded.", inspect.ViewAll},
		{"header", "Show the identification and the file header.", inspect.ViewHeader},
		{"programs", "List the program headers.", inspect.ViewPrograms},
		{"notes", "List the notes of all note segments.", inspect.ViewNotes},
		{"buildid", "Show the GNU or Go build ID.", inspect.ViewBuildID},
	} {
		cmd := app.Command(c.name, c.help)
		views[cmd.FullCommand()] = c.view
		files[cmd.FullCommand()] = cmd.Arg("file", "ELF file path").Required().ExistingFiles()
	}

	parsedCmd, err := app.Parse(args)
	if err != nil {
		return err
	}

	if !verbose {
		logger = level.NewFilter(logger, level.AllowInfo())
	}
	color.NoColor = !isatty.IsTerminal(os.Stdout.Fd())

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	view, ok := views[parsedCmd]
	if !ok {
		return fmt.Errorf("unknown command %q", parsedCmd)
	}
	return inspectFiles(ctx, cfg, *files[parsedCmd], view)
}

func inspectFiles(ctx context.Context, cfg inspect.Config, paths []string, view inspect.View) error {
	format, err := inspect.ParseFormat(cfg.Output)
	if err != nil {
		return err
	}
	s, err := inspect.New(logger, cfg, nil)
	if err != nil {
		return errors.Wrap(err, "invalid configuration")
	}
	results, inspectErr := s.InspectFiles(ctx, paths)
	if err := inspect.Render(output(ctx), results, format, view); err != nil {
		return err
	}
	return inspectErr
}

// configFileArg returns the value of --config.file, if given. It is looked up
// before the flags are parsed so that the file provides the flag defaults.
func configFileArg(args []string) string {
	for i, a := range args {
		if a == "--" {
			break
		}
		name := "--" + configFileFlag
		if a == name && i+1 < len(args) {
			return args[i+1]
		}
		if v, ok := strings.CutPrefix(a, name+"="); ok {
			return v
		}
	}
	return ""
}

type contextKey uint8

const (
	contextKeyOutput contextKey = iota
)

func withOutput(ctx context.Context, w io.Writer) context.Context {
	return context.WithValue(ctx, contextKeyOutput, w)
}

func output(ctx context.Context) io.Writer {
	if w, ok := ctx.Value(contextKeyOutput).(io.Writer); ok {
		return w
	}
	return os.Stdout
}

func checkError(err error) int {
	if err == nil {
		return 0
	}
	fmt.Fprintf(os.Stderr, "error: %v\n", err)
	return 1
}
