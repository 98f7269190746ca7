package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/y0f/graphql-check/internal/cli"
)

var version = "dev"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	code := cli.Execute(ctx, version)
	stop()
	os.Exit(code)
}
