// Command shortener runs the URL shortening service: load the layered
// configuration, validate it, wire the component graph, and serve until a
// shutdown signal arrives. Exit code 0 on clean shutdown, non-zero on a
// startup validation or wiring failure.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/shortenlabs/shortener/cmn/log"
	"github.com/shortenlabs/shortener/config"
)

func main() {
	flags, err := config.ParseFlags(flag.CommandLine, os.Args[1:])
	if err != nil {
		// flag.CommandLine has already printed usage.
		os.Exit(2)
	}

	logger := log.Init("info", true)
	defer log.Sync()

	cfg, err := config.Load(flags.ConfigPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	cfg = flags.Apply(cfg)

	if err := cfg.Validate(); err != nil {
		logger.Errorw("invalid configuration", "error", err)
		os.Exit(1)
	}
	if flags.ValidateOnly {
		logger.Infow("configuration valid", "config", flags.ConfigPath)
		return
	}

	app, err := config.Build(cfg, logger)
	if err != nil {
		logger.Errorw("startup failed", "error", err)
		os.Exit(1)
	}

	ctx, cancel := config.WithSignals(context.Background())
	defer cancel()

	if err := app.Run(ctx); err != nil {
		logger.Errorw("server exited", "error", err)
		os.Exit(1)
	}
}
