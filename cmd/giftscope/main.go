package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"giftscope/internal/api"
)

var version = "dev"

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	api.Version = version
	code := Execute(ctx)
	cancel()
	os.Exit(code)
}
