package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/adevaykin/tailor/internal/cli"
	"github.com/adevaykin/tailor/internal/config"
	"github.com/adevaykin/tailor/internal/logging"
	"github.com/adevaykin/tailor/internal/watcher"
)

const configEnvName = config.EnvPrefix + "CONFIG"

var errUsage = errors.New("usage")

type cliOptions struct {
	ConfigPath  string
	Path        string
	NoColor     bool
	Marks       []string
	ShowVersion bool
	// overrides holds settings given explicitly on the command line.
	overrides map[string]any
}

// flagOverride maps a flag name to the settings key it overrides.
var flagOverride = map[string]string{
	"log-level":    config.KeyLogLevel,
	"log-file":     config.KeyLogFile,
	"addr":         config.KeyServeAddr,
	"token":        config.KeyServeToken,
	"replay-lines": config.KeyServeReplayLines,
}

func newFlagSet(name string, stderr io.Writer, lookupEnv func(string) (string, bool)) (*flag.FlagSet, *cliOptions, *cli.HelpVersionFlags) {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(stderr)

	options := &cliOptions{overrides: map[string]any{}}
	defaultConfig := ""
	if lookupEnv != nil {
		if value, ok := lookupEnv(configEnvName); ok {
			defaultConfig = value
		}
	}
	fs.StringVar(&options.ConfigPath, "config", defaultConfig, "Path to a YAML or TOML settings file (env "+configEnvName+")")
	fs.String("log-level", "", "Log level: debug, info, warning, error")
	fs.String("log-file", "", "Append logs to this file instead of stderr")
	helpVersion := cli.AddHelpVersionFlags(fs, "", "")
	return fs, options, helpVersion
}

func parseFlags(fs *flag.FlagSet, options *cliOptions, helpVersion *cli.HelpVersionFlags, args []string) error {
	if err := fs.Parse(args); err != nil {
		return err
	}
	if helpVersion.Help {
		fs.Usage()
		return flag.ErrHelp
	}
	options.ShowVersion = helpVersion.Version
	fs.Visit(func(f *flag.Flag) {
		if key, ok := flagOverride[f.Name]; ok {
			options.overrides[key] = f.Value.String()
		}
	})
	return nil
}

// loadSettings layers the config file, TAILOR_* variables and explicit flags.
func loadSettings(options *cliOptions, lookupEnv func(string) (string, bool)) (config.Settings, error) {
	overrides := config.EnvOverrides(lookupEnv)
	for key, value := range options.overrides {
		overrides[key] = value
	}
	return config.LoadSettings(options.ConfigPath, overrides)
}

func watcherOptions(settings config.Settings, logger *logging.Logger) watcher.Options {
	return watcher.Options{
		Logger:          logger,
		ActiveInterval:  settings.Poll.ActiveInterval,
		StandbyInterval: settings.Poll.StandbyInterval,
		DirInterval:     settings.Poll.DirInterval,
	}
}

// newLogger writes to the configured log file, or to stderr when none is set.
func newLogger(settings config.Settings, stderr io.Writer) (*logging.Logger, func(), error) {
	level, ok := logging.ParseLevel(settings.LogLevel)
	if !ok {
		level = logging.LevelInfo
	}
	output := stderr
	closeOutput := func() {}
	if path := strings.TrimSpace(settings.LogFile); path != "" {
		file, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return nil, nil, fmt.Errorf("open log file: %w", err)
		}
		output = file
		closeOutput = func() { _ = file.Close() }
	}
	logger := logging.NewLoggerWithOutput(logging.NewLogBuffer(logging.DefaultBufferSize), level, output)
	return logger, closeOutput, nil
}

func printVersion(out io.Writer) {
	cli.PrintVersion(out, "tailor")
}
