package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/Demr1on/batmap-app/cmd"
	"github.com/Demr1on/batmap-app/internal/buildinfo"
	"github.com/Demr1on/batmap-app/internal/conf"
)

// Set through -ldflags "-X main.version=... -X main.buildDate=..."
var (
	version   string
	buildDate string
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	settings := &conf.Settings{}
	rootCmd := cmd.RootCommand(settings, buildinfo.NewContext(version, buildDate))

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}
