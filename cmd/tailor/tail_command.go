package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"strings"

	"github.com/adevaykin/tailor/internal/highlight"
	"github.com/adevaykin/tailor/internal/tailor"
	"github.com/adevaykin/tailor/internal/watcher"
)

// markColor is the foreground used for -mark patterns.
const markColor = "5"

type stringList []string

func (list *stringList) String() string {
	return strings.Join(*list, ",")
}

func (list *stringList) Set(value string) error {
	*list = append(*list, value)
	return nil
}

func parseTailFlags(args []string, deps commandDeps) (*cliOptions, error) {
	fs, options, helpVersion := newFlagSet("tailor", deps.Stderr, deps.LookupEnv)
	fs.BoolVar(&options.NoColor, "no-color", false, "Print lines without severity colors")
	var marks stringList
	fs.Var(&marks, "mark", "Highlight lines matching this regexp (repeatable)")
	fs.Usage = func() {
		fmt.Fprintln(fs.Output(), "Usage: tailor [flags] <file-or-directory>")
		fmt.Fprintln(fs.Output(), "       tailor serve [flags]")
		fmt.Fprintln(fs.Output(), "       tailor status [flags]")
		fs.PrintDefaults()
	}

	if err := parseFlags(fs, options, helpVersion, args); err != nil {
		return nil, err
	}
	options.Marks = marks
	if options.ShowVersion {
		return options, nil
	}
	if fs.NArg() != 1 {
		fs.Usage()
		return nil, errUsage
	}
	options.Path = fs.Arg(0)
	return options, nil
}

func runTail(args []string, deps commandDeps) int {
	options, err := parseTailFlags(args, deps)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		if !errors.Is(err, errUsage) {
			fmt.Fprintln(deps.Stderr, err)
		}
		return 2
	}
	if options.ShowVersion {
		printVersion(deps.Stdout)
		return 0
	}

	settings, err := loadSettings(options, deps.LookupEnv)
	if err != nil {
		fmt.Fprintln(deps.Stderr, err)
		return 1
	}
	logger, closeLog, err := newLogger(settings, deps.Stderr)
	if err != nil {
		fmt.Fprintln(deps.Stderr, err)
		return 1
	}
	defer closeLog()

	highlighter := highlight.New(deps.Stdout, settings.Highlight.Enabled && !options.NoColor)
	for _, pattern := range options.Marks {
		if err := highlighter.AddRule(pattern, markColor, ""); err != nil {
			fmt.Fprintln(deps.Stderr, err)
			return 2
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	signals, stopNotify := deps.Notify()
	defer stopNotify()
	stopWatching := watchShutdownSignals(logger, cancel, signals)
	defer stopWatching()

	tl := tailor.New(tailor.Options{
		Logger:  logger,
		Watcher: watcherOptions(settings, logger),
	})
	coordinator := newShutdownCoordinator(logger)
	coordinator.Add("tailor", func(context.Context) error {
		tl.Close()
		return nil
	})

	sink := make(chan watcher.Message)
	id := tl.Watch(options.Path, sink)
	ended := printMessages(ctx, deps.Stdout, highlighter, sink, tl.Done(id))

	exitCode := 0
	if ended {
		if err := tl.Err(id); err != nil {
			fmt.Fprintf(deps.Stderr, "tailor: %v\n", err)
			exitCode = 1
		}
	}
	if err := coordinator.Run(context.Background()); err != nil {
		exitCode = 1
	}
	return exitCode
}

// printMessages writes messages until ctx is cancelled or the session ends.
// It reports whether the session ended on its own.
func printMessages(ctx context.Context, out io.Writer, highlighter *highlight.Highlighter, messages <-chan watcher.Message, done <-chan struct{}) bool {
	for {
		select {
		case <-ctx.Done():
			return false
		case <-done:
			return true
		case message := <-messages:
			printMessage(out, highlighter, message)
		}
	}
}

func printMessage(out io.Writer, highlighter *highlight.Highlighter, message watcher.Message) {
	switch message.Kind {
	case watcher.MessageNewFile:
		fmt.Fprintf(out, "==> %s <==\n", message.Path)
	case watcher.MessageNewLines:
		for _, line := range message.Lines {
			fmt.Fprintln(out, highlighter.Render(line))
		}
	}
}
