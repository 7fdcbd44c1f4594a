// Package formsmcp launches the forms MCP server on stdio.
package formsmcp

import (
	"context"
	"flag"

	entrypoint "github.com/mw/forms/internal/platform/cmd"
	"github.com/mw/forms/internal/services/forms/api/mcptools"
	server "github.com/mw/forms/internal/services/forms/app"
)

// Config holds forms MCP command configuration.
type Config struct {
	DBPath string `env:"DB_PATH" envDefault:"data/forms.db"`
}

// ParseConfig parses environment and flags into Config.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	var cfg Config
	if err := entrypoint.ParseConfig(&cfg); err != nil {
		return Config{}, err
	}
	if err := entrypoint.ParseArgs(fs, args); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Run serves the form administration tools over stdio until ctx ends.
func Run(ctx context.Context, cfg Config) error {
	return entrypoint.RunWithTelemetry(ctx, entrypoint.ServiceFormsMCP, func(ctx context.Context) error {
		store, err := server.OpenStore(cfg.DBPath)
		if err != nil {
			return err
		}
		mcpServer, err := mcptools.New(server.NewService(store), store)
		if err != nil {
			_ = store.Close()
			return err
		}
		return mcpServer.Serve(ctx)
	})
}
