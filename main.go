package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/eegprep/eegprep/cmd"
	"github.com/eegprep/eegprep/internal/conf"
)

func main() {
	os.Exit(run())
}

func run() int {
	// Cancellation stops new subjects from starting; running ones finish
	// their current artifact write.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	appCtx := conf.NewContext()
	defer func() {
		if err := appCtx.Close(); err != nil {
			fmt.Fprintf(os.Stderr, "error closing log: %v\n", err)
		}
	}()

	if err := cmd.RootCommand(appCtx).ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}
