package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/shaneholloman/dotstate/cmd/dotstate"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	rootCmd := dotstate.NewRootCmd()
	cmd, err := rootCmd.ExecuteContextC(ctx)
	stop()
	if err != nil {
		dotstate.ReportError(cmd, os.Stderr, err)
		os.Exit(1)
	}
}
