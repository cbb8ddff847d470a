// Package main provides the mlineage CLI.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/ssogunle-tc/datahub/internal/cli"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := cli.Execute(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}
