/*
Copyright © 2023 NAME HERE <EMAIL ADDRESS>
*/
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"

	"modernc.org/sqlite"

	"github.com/lewtec/imgflare/internal/cloudflare"
	"github.com/lewtec/imgflare/internal/config"
	"github.com/lewtec/imgflare/internal/domain"
	"github.com/lewtec/imgflare/internal/report"
	"github.com/lewtec/imgflare/internal/workflow"
)

// Exit codes
const (
	exitOK       = 0
	exitFailed   = 1
	exitUsageErr = 2
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	code := run(ctx, os.Args[1:], os.Stdin, os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

// run executes one command line and returns the process exit code
func run(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	a := &app{}
	defer a.close()

	root := newRootCmd(a)
	root.SetArgs(args)
	root.SetIn(stdin)
	root.SetOut(stdout)
	root.SetErr(stderr)

	err := root.ExecuteContext(ctx)
	if err == nil {
		return exitOK
	}
	code := exitCode(err)
	if code == exitFailed {
		fmt.Fprintf(stderr, "could not complete because %v\n", err)
	} else {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		var usage *usageError
		if errors.As(err, &usage) {
			fmt.Fprintln(stderr, `Run "imgflare --help" for usage.`)
		}
	}
	return code
}

// usageError marks malformed command lines
type usageError struct {
	err error
}

func (e *usageError) Error() string { return e.err.Error() }
func (e *usageError) Unwrap() error { return e.err }

func usageErrorf(format string, args ...interface{}) error {
	return &usageError{err: fmt.Errorf(format, args...)}
}

// storeError marks failures to open or prepare the local database
type storeError struct {
	err error
}

func (e *storeError) Error() string { return e.err.Error() }
func (e *storeError) Unwrap() error { return e.err }

// exitCode maps an error to the process exit code. Handled failures of the
// tool's own operations exit 1; usage and anything unexpected exit 2.
func exitCode(err error) int {
	var (
		usage   *usageError
		invalid *workflow.ValidationError
		remote  *cloudflare.Error
		store   *storeError
		sqlErr  *sqlite.Error
		batch   *batchError
	)
	switch {
	case errors.As(err, &usage):
		return exitUsageErr
	case errors.Is(err, workflow.ErrNotConfigured),
		errors.Is(err, workflow.ErrNotPersisted),
		errors.Is(err, config.ErrInvalidAPIToken),
		errors.Is(err, config.ErrInvalidAccountID),
		errors.Is(err, config.ErrInvalidURL),
		errors.Is(err, config.ErrInvalidBatchInput),
		errors.Is(err, domain.ErrMalformedVariants),
		errors.Is(err, report.ErrUnknownFormat),
		errors.As(err, &invalid),
		errors.As(err, &remote),
		errors.As(err, &store),
		errors.As(err, &sqlErr),
		errors.As(err, &batch):
		return exitFailed
	}
	return exitUsageErr
}
