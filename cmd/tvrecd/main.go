// Command tvrecd runs the tvrec recording daemon in the foreground, for use
// under a service manager.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"tvrec/internal/config"
	"tvrec/internal/daemonrun"
)

func main() {
	configPath := flag.String("config", "", "Configuration file path")
	logLevel := flag.String("log-level", "", "Override the configured log level")
	flag.Parse()

	if err := run(context.Background(), *configPath, *logLevel); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(ctx context.Context, configPath, logLevel string) error {
	cfg, _, _, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	return daemonrun.Run(ctx, cfg, daemonrun.Options{
		LogLevel:   logLevel,
		Foreground: true,
	})
}
