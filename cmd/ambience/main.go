package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/GriffinCanCode/ambience-chat/internal/infrastructure/config"
	"github.com/GriffinCanCode/ambience-chat/internal/server"
)

func main() {
	cfg, err := loadConfig(os.Args[1:])
	if err != nil {
		fmt.Fprintf(os.Stderr, "ambience: %v\n", err)
		os.Exit(2)
	}

	srv, err := server.NewServer(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "ambience: failed to create server: %v\n", err)
		os.Exit(1)
	}
	defer srv.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := srv.Run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "ambience: %v\n", err)
		os.Exit(1)
	}
}

// loadConfig reads the environment, then applies the flags present in args
func loadConfig(args []string) (*config.Config, error) {
	fs := flag.NewFlagSet("ambience", flag.ContinueOnError)
	port := fs.String("port", "", "Control API port (PORT)")
	host := fs.String("host", "", "Control API host (HOST)")
	logLevel := fs.String("log-level", "", "Log level (LOG_LEVEL)")
	dev := fs.Bool("dev", false, "Development logging (LOG_DEV)")
	chainID := fs.Uint64("chain-id", 0, "Initial chain id (CHAIN_ID)")
	networks := fs.String("networks", "", "YAML network table (CHAIN_NETWORKS_FILE)")
	wsURL := fs.String("ws-url", "", "Realtime server URL (WS_URL)")
	origin := fs.String("origin", "", "Web app origin (APP_ORIGIN)")
	historyURL := fs.String("history-url", "", "History API base URL (HISTORY_API_URL)")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	set := make(map[string]bool)
	fs.Visit(func(f *flag.Flag) { set[f.Name] = true })

	// Flags feed the environment so envconfig applies defaults and
	// validation in one place
	overrides := map[string]string{
		"port":        "PORT",
		"host":        "HOST",
		"log-level":   "LOG_LEVEL",
		"dev":         "LOG_DEV",
		"chain-id":    "CHAIN_ID",
		"networks":    "CHAIN_NETWORKS_FILE",
		"ws-url":      "WS_URL",
		"origin":      "APP_ORIGIN",
		"history-url": "HISTORY_API_URL",
	}
	values := map[string]string{
		"port":        *port,
		"host":        *host,
		"log-level":   *logLevel,
		"dev":         fmt.Sprint(*dev),
		"chain-id":    fmt.Sprint(*chainID),
		"networks":    *networks,
		"ws-url":      *wsURL,
		"origin":      *origin,
		"history-url": *historyURL,
	}
	for name, env := range overrides {
		if !set[name] {
			continue
		}
		if err := os.Setenv(env, values[name]); err != nil {
			return nil, fmt.Errorf("failed to apply -%s: %w", name, err)
		}
	}

	return config.Load()
}
