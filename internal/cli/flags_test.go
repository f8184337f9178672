package cli

import (
	"bytes"
	"flag"
	"io"
	"testing"

	"github.com/adevaykin/tailor/internal/version"
)

func newFlagSet() (*flag.FlagSet, *HelpVersionFlags) {
	fs := flag.NewFlagSet("tailor", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	return fs, AddHelpVersionFlags(fs, "", "")
}

func TestHelpAndVersionAliases(t *testing.T) {
	cases := map[string]func(*HelpVersionFlags) bool{
		"-h":        func(f *HelpVersionFlags) bool { return f.Help },
		"--help":    func(f *HelpVersionFlags) bool { return f.Help },
		"-v":        func(f *HelpVersionFlags) bool { return f.Version },
		"--version": func(f *HelpVersionFlags) bool { return f.Version },
	}
	for arg, isSet := range cases {
		fs, flags := newFlagSet()
		if err := fs.Parse([]string{arg}); err != nil {
			t.Fatalf("parse %s: %v", arg, err)
		}
		if !isSet(flags) {
			t.Fatalf("expected %s to set its flag", arg)
		}
	}
}

func TestNilFlagSet(t *testing.T) {
	if flags := AddHelpVersionFlags(nil, "", ""); flags == nil || flags.Help || flags.Version {
		t.Fatalf("expected empty flags for nil flag set")
	}
}

func TestPrintVersion(t *testing.T) {
	previous := version.Version
	t.Cleanup(func() { version.Version = previous })

	var out bytes.Buffer
	version.Version = "dev"
	PrintVersion(&out, "tailor")
	if out.String() != "tailor dev\n" {
		t.Fatalf("unexpected dev output %q", out.String())
	}

	out.Reset()
	version.Version = "0.4.1"
	PrintVersion(&out, "tailor")
	if out.String() != "tailor version 0.4.1\n" {
		t.Fatalf("unexpected release output %q", out.String())
	}
}
