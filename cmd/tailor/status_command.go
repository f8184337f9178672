package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"text/tabwriter"
	"time"

	"github.com/adevaykin/tailor/internal/api"
	"github.com/adevaykin/tailor/internal/apiclient"
)

const statusRequestTimeout = 5 * time.Second

func parseStatusFlags(args []string, deps commandDeps) (*cliOptions, error) {
	fs, options, helpVersion := newFlagSet("tailor status", deps.Stderr, deps.LookupEnv)
	fs.String("addr", "", "Address of the running server")
	fs.String("token", "", "Bearer token for the server")
	fs.Usage = func() {
		fmt.Fprintln(fs.Output(), "Usage: tailor status [flags]")
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

// runStatus prints the sessions of a running "tailor serve".
func runStatus(args []string, deps commandDeps) int {
	options, err := parseStatusFlags(args, deps)
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

	client := &http.Client{Timeout: statusRequestTimeout}
	status, err := apiclient.FetchStatus(client, apiclient.BaseURL(settings.Serve.Addr), settings.Serve.Token)
	if err != nil {
		fmt.Fprintf(deps.Stderr, "tailor status: %v\n", err)
		return 1
	}
	printStatus(deps.Stdout, status)
	return 0
}

func printStatus(out io.Writer, status api.Status) {
	fmt.Fprintf(out, "tailor %s, %d session(s), %d subscriber(s), %d line(s) delivered\n",
		status.Version.String(), len(status.Sessions), status.Metrics.Subscribers, status.Metrics.Lines)
	if len(status.Sessions) == 0 {
		return
	}
	writer := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(writer, "ID\tKIND\tPATH")
	for _, session := range status.Sessions {
		fmt.Fprintf(writer, "%d\t%s\t%s\n", session.ID, session.Kind, session.Path)
	}
	_ = writer.Flush()
}
