// Package cli holds flag helpers shared by tailor's subcommands.
package cli

import (
	"flag"
	"fmt"
	"io"

	"github.com/adevaykin/tailor/internal/version"
)

const (
	defaultHelpDesc    = "Show help"
	defaultVersionDesc = "Print version and exit"
)

type HelpVersionFlags struct {
	Help    bool
	Version bool
}

// AddHelpVersionFlags registers -h/-help and -v/-version on fs.
func AddHelpVersionFlags(fs *flag.FlagSet, helpDesc, versionDesc string) *HelpVersionFlags {
	flags := &HelpVersionFlags{}
	if fs == nil {
		return flags
	}
	if helpDesc == "" {
		helpDesc = defaultHelpDesc
	}
	if versionDesc == "" {
		versionDesc = defaultVersionDesc
	}
	for _, name := range []string{"help", "h"} {
		fs.BoolVar(&flags.Help, name, false, helpDesc)
	}
	for _, name := range []string{"version", "v"} {
		fs.BoolVar(&flags.Version, name, false, versionDesc)
	}
	return flags
}

// PrintVersion writes "<program> dev" for unreleased builds and
// "<program> version X" otherwise.
func PrintVersion(out io.Writer, program string) {
	info := version.GetVersionInfo()
	if info.Version == "" || info.Version == "dev" {
		fmt.Fprintf(out, "%s dev\n", program)
		return
	}
	fmt.Fprintf(out, "%s version %s\n", program, info.String())
}
