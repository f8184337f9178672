package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/adevaykin/tailor/internal/api"
	"github.com/adevaykin/tailor/internal/config"
	"github.com/adevaykin/tailor/internal/logging"
	"github.com/adevaykin/tailor/internal/metrics"
	"github.com/adevaykin/tailor/internal/stream"
	"github.com/adevaykin/tailor/internal/tailor"
	"github.com/adevaykin/tailor/internal/version"
)

const httpServerShutdownTimeout = 5 * time.Second

func parseServeFlags(args []string, deps commandDeps) (*cliOptions, error) {
	fs, options, helpVersion := newFlagSet("tailor serve", deps.Stderr, deps.LookupEnv)
	fs.String("addr", "", "Listen address, e.g. 127.0.0.1:8089")
	fs.String("token", "", "Require this bearer token on every request")
	fs.Int("replay-lines", 0, "Lines replayed to a new subscriber")
	fs.Usage = func() {
		fmt.Fprintln(fs.Output(), "Usage: tailor serve [flags]")
		fs.PrintDefaults()
	}
	if err := parseFlags(fs, options, helpVersion, args); err != nil {
		return nil, err
	}
	if fs.NArg() != 0 {
		fs.Usage()
		return nil, errUsage
	}
	return options, nil
}

// serveApp owns the sessions behind the HTTP routes.
type serveApp struct {
	tailor  *tailor.Tailor
	feeds   *stream.Feeds
	handler http.Handler
}

func newServeApp(settings config.Settings, logger *logging.Logger, registry *metrics.Registry) *serveApp {
	options := watcherOptions(settings, logger)
	options.Metrics = registry
	tl := tailor.New(tailor.Options{
		Logger:  logger,
		Metrics: registry,
		Watcher: options,
	})
	feeds := stream.NewFeeds(tl, stream.Options{
		Logger:      logger,
		Metrics:     registry,
		ReplayLines: settings.Serve.ReplayLines,
	})

	mux := http.NewServeMux()
	api.RegisterRoutes(mux, api.Config{
		Tailor:         tl,
		Feeds:          feeds,
		Logger:         logger,
		Metrics:        registry,
		AuthToken:      settings.Serve.Token,
		AllowedOrigins: settings.Serve.AllowedOrigins,
	})
	return &serveApp{tailor: tl, feeds: feeds, handler: mux}
}

// Close ends every subscriber stream before stopping the sessions.
func (app *serveApp) Close() {
	app.feeds.Close()
	app.tailor.Close()
}

func runServe(args []string, deps commandDeps) int {
	options, err := parseServeFlags(args, deps)
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

	app := newServeApp(settings, logger, metrics.Default)
	coordinator := newShutdownCoordinator(logger)
	coordinator.Add("sessions", func(context.Context) error {
		app.Close()
		return nil
	})

	listener, err := net.Listen("tcp", settings.Serve.Addr)
	if err != nil {
		logger.Error("listen failed", map[string]string{
			"addr":  settings.Serve.Addr,
			"error": err.Error(),
		})
		_ = coordinator.Run(context.Background())
		return 1
	}
	server := &http.Server{
		Handler:           app.handler,
		ReadHeaderTimeout: 5 * time.Second,
	}
	logger.Info("tailor listening", map[string]string{
		"addr":            listener.Addr().String(),
		"version":         version.Version,
		"auth":            strconv.FormatBool(settings.Serve.Token != ""),
		"allowed_origins": strings.Join(settings.Serve.AllowedOrigins, ","),
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	signals, stopNotify := deps.Notify()
	defer stopNotify()
	stopWatching := watchShutdownSignals(logger, cancel, signals)
	defer stopWatching()

	runner := &ServerRunner{
		Logger:          logger,
		ShutdownTimeout: httpServerShutdownTimeout,
	}
	serverErr := runner.Run(ctx, ManagedServer{
		Name: "http",
		Serve: func() error {
			return server.Serve(listener)
		},
		Shutdown: server.Shutdown,
	})

	exitCode := 0
	if serverErr != nil && !errors.Is(serverErr.err, http.ErrServerClosed) {
		exitCode = 1
	}
	if err := coordinator.Run(context.Background()); err != nil {
		exitCode = 1
	}
	return exitCode
}
