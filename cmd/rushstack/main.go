package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"

	"github.com/aruniverse/rushstack/internal/cli"
)

func main() {
	// Signal-aware context for graceful shutdown: cancelling it stops workers
	// and kills running operation process groups.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := cli.Execute(ctx); err != nil {
		logrus.WithError(err).Error("rushstack failed")
		os.Exit(1)
	}
}
