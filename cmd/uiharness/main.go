package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/guldbach/google-ads-builder-sub001/internal/app"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := app.NewApplication().Execute(ctx, os.Args[1:])
	stop()
	os.Exit(code)
}
