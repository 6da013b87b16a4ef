package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/halvard/muninn/internal"
	pkgconfig "github.com/halvard/muninn/pkg/config"
	_ "github.com/joho/godotenv/autoload"
	"github.com/urfave/cli/v3"
)

// loadConfig reads the config file named by --config on top of the
// built-in defaults. A missing file at the default path is fine; an
// explicitly requested file must exist.
func loadConfig(cmd *cli.Command) (*internal.Config, error) {
	configPath := cmd.String("config")

	cfg := internal.NewDefaultConfig()
	err := pkgconfig.Load(configPath, cfg)
	if err == nil {
		return cfg, nil
	}
	if errors.Is(err, os.ErrNotExist) && !cmd.IsSet("config") {
		return internal.NewDefaultConfig(), nil
	}
	return nil, fmt.Errorf("failed to parse config: %w", err)
}

func runServe(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	if err := internal.Run(ctx, internal.WithConfig(cfg)); err != nil {
		return fmt.Errorf("app run error: %w", err)
	}

	return nil
}

func runMCP(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	if err := internal.RunMCP(ctx, internal.WithConfig(cfg)); err != nil {
		return fmt.Errorf("mcp run error: %w", err)
	}

	return nil
}

func runSeedSync(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	if err := internal.RunSeedSync(ctx, internal.WithConfig(cfg)); err != nil {
		return fmt.Errorf("seed sync error: %w", err)
	}

	return nil
}

func main() {
	cmd := &cli.Command{
		Name:   "muninn",
		Usage:  "Governance document service with cached fetching, offline search, and REST/MCP access",
		Action: runServe,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "config",
				Aliases:     []string{"c"},
				Usage:       "Path to config file",
				DefaultText: "config/config.yaml",
				Value:       "config/config.yaml",
				Sources:     cli.EnvVars("MUNINN_CONFIG_FILE"),
			},
		},
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "Start the HTTP API server",
				Action: runServe,
			},
			{
				Name:   "mcp",
				Usage:  "Start the MCP server on stdio",
				Action: runMCP,
			},
			{
				Name:   "sync-seed",
				Usage:  "Refresh the fallback seed list from live listings and exit",
				Action: runSeedSync,
			},
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		slog.Error("application error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
