package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"

	"github.com/dynencounters/npc-engine/internal/config"
)

// BuildDate can be set at build time via ldflags
var (
	CurrentVersion string = "0.1.0"
	BuildDate      string = "unknown"
)

func main() {
	fs := pflag.NewFlagSet("npc_engine", pflag.ContinueOnError)
	configDir := fs.String("config-dir", ".", "directory holding "+config.FileName)
	duration := fs.Duration("duration", 0, "stop after this long; 0 runs until interrupted")
	seed := fs.Uint64("seed", 1, "random seed of the demo world")
	fs.String("log-level", "info", "log level: debug, info, warn or error")
	fs.String("session-name", "default", "name recorded with every event of this run")
	fs.String("scenario", "", "scenario file to populate the demo world from")
	fs.String("storage", "memory", "storage backend: memory, postgres, sqlite or websocket")
	version := fs.Bool("version", false, "print the version and exit")

	if err := fs.Parse(os.Args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return
		}
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	if *version {
		fmt.Printf("npc_engine %s (built %s)\n", CurrentVersion, BuildDate)
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if *duration > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, *duration)
		defer cancel()
	}

	if err := config.BindFlags(fs); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	if err := run(ctx, *configDir, *seed); err != nil {
		fmt.Fprintln(os.Stderr, "npc_engine:", err)
		os.Exit(1)
	}
}
