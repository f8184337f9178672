package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/adevaykin/tailor/internal/logging"
)

type ManagedServer struct {
	Name     string
	Serve    func() error
	Shutdown func(context.Context) error
}

// ServerRunner serves until stop is cancelled or any server fails, then shuts
// every server down within ShutdownTimeout.
type ServerRunner struct {
	Logger          *logging.Logger
	ShutdownTimeout time.Duration
}

type serverError struct {
	name string
	err  error
}

func (runner *ServerRunner) Run(stop context.Context, servers ...ManagedServer) *serverError {
	errorsChan := make(chan serverError, len(servers))
	started := 0
	for _, server := range servers {
		if server.Serve == nil {
			continue
		}
		started++
		go func() {
			errorsChan <- serverError{name: server.Name, err: server.Serve()}
		}()
	}
	if started == 0 {
		return nil
	}

	var failed *serverError
	select {
	case err := <-errorsChan:
		failed = &err
	case <-stop.Done():
	}
	runner.logServerError(failed)

	timeout := runner.ShutdownTimeout
	if timeout <= 0 {
		timeout = httpServerShutdownTimeout
	}
	shutdownContext, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	for _, server := range servers {
		if server.Shutdown == nil {
			continue
		}
		if err := server.Shutdown(shutdownContext); err != nil {
			runner.Logger.Warn(fmt.Sprintf("%s server shutdown failed", server.Name), map[string]string{
				"error": err.Error(),
			})
		}
	}

	pending := started
	if failed != nil {
		pending--
	}
	for ; pending > 0; pending-- {
		select {
		case err := <-errorsChan:
			runner.logServerError(&err)
		case <-time.After(timeout):
			return failed
		}
	}
	return failed
}

func (runner *ServerRunner) logServerError(serverErr *serverError) {
	if serverErr == nil || serverErr.err == nil || errors.Is(serverErr.err, http.ErrServerClosed) {
		return
	}
	runner.Logger.Error("http server stopped", map[string]string{
		"server": serverErr.name,
		"error":  serverErr.err.Error(),
	})
}
