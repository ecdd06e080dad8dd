package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"refboard/internal/catalog"
	"refboard/internal/memory"
)

// Exit codes
const (
	exitOK       = 0
	exitError    = 1
	exitInvalid  = 2
	exitNotFound = 3
	exitConflict = 4
)

func main() {
	// Configure memory limit before anything large is allocated
	memory.ConfigureFromEnv()

	// Cancel in-flight work on interrupt
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

func run(ctx context.Context, args []string, out, errOut io.Writer) int {
	err := execute(ctx, args, out, errOut)
	if err == nil {
		return exitOK
	}
	fmt.Fprintf(errOut, "Error: %v\n", err)
	return exitCode(err)
}

func exitCode(err error) int {
	switch {
	case errors.Is(err, catalog.ErrInvalidInput):
		return exitInvalid
	case errors.Is(err, catalog.ErrNotFound):
		return exitNotFound
	case errors.Is(err, catalog.ErrConflict):
		return exitConflict
	default:
		return exitError
	}
}
