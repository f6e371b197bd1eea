package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
)

func main() {
	// Interrupts stop the job between threads; the checkpoint is kept for the next run.
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := newApp().rootCmd().ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}
