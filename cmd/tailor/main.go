// Command tailor follows a file, or the newest file in a directory, and prints
// new lines as they are written. "tailor serve" exposes the same sessions over
// websockets and "tailor status" lists what a running server is following.
package main

import (
	"io"
	"os"
	"os/signal"
	"syscall"
)

type command interface {
	Run(args []string) int
}

type commandDeps struct {
	Stdout    io.Writer
	Stderr    io.Writer
	LookupEnv func(string) (string, bool)
	// Notify delivers shutdown signals until the returned stop func is called.
	Notify func() (<-chan os.Signal, func())
}

func defaultCommandDeps() commandDeps {
	return commandDeps{
		Stdout:    os.Stdout,
		Stderr:    os.Stderr,
		LookupEnv: os.LookupEnv,
		Notify:    notifyShutdownSignals,
	}
}

func notifyShutdownSignals() (<-chan os.Signal, func()) {
	signals := make(chan os.Signal, 1)
	signal.Notify(signals, os.Interrupt, syscall.SIGTERM)
	return signals, func() { signal.Stop(signals) }
}

type tailCommand struct {
	deps commandDeps
}

func (c tailCommand) Run(args []string) int {
	return runTail(args, c.deps)
}

type serveCommand struct {
	deps commandDeps
}

func (c serveCommand) Run(args []string) int {
	return runServe(args, c.deps)
}

type statusCommand struct {
	deps commandDeps
}

func (c statusCommand) Run(args []string) int {
	return runStatus(args, c.deps)
}

func resolveCommand(args []string, deps commandDeps) (command, []string) {
	if len(args) > 0 {
		switch args[0] {
		case "serve":
			return serveCommand{deps: deps}, args[1:]
		case "status":
			return statusCommand{deps: deps}, args[1:]
		}
	}
	return tailCommand{deps: deps}, args
}

func main() {
	cmd, args := resolveCommand(os.Args[1:], defaultCommandDeps())
	os.Exit(cmd.Run(args))
}
