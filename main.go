package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/cantalupo555/enotifikasi-exporter/internal/cli"
)

// appVersion is set at build time via -ldflags="-X main.appVersion=x.x.x"
var appVersion = "dev"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := cli.Execute(ctx, appVersion)
	stop()
	os.Exit(code)
}
