// Package forms parses forms service flags and launches the service.
package forms

import (
	"context"
	"flag"
	"fmt"
	"strings"

	entrypoint "github.com/mw/forms/internal/platform/cmd"
	server "github.com/mw/forms/internal/services/forms/app"
)

// Config holds forms command configuration.
type Config struct {
	Addr      string `env:"HTTP_ADDR" envDefault:":8095"`
	JWTSecret string `env:"JWT_SECRET"`
}

// ParseConfig parses environment and flags into Config.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	var cfg Config
	if err := entrypoint.ParseConfig(&cfg); err != nil {
		return Config{}, err
	}
	fs.StringVar(&cfg.Addr, "addr", cfg.Addr, "The forms HTTP listen address")
	if err := entrypoint.ParseArgs(fs, args); err != nil {
		return Config{}, err
	}
	if strings.TrimSpace(cfg.JWTSecret) == "" {
		return Config{}, fmt.Errorf("MW_FORMS_JWT_SECRET is required")
	}
	return cfg, nil
}

// Run starts the forms HTTP admin API.
func Run(ctx context.Context, cfg Config) error {
	return entrypoint.RunWithTelemetry(ctx, entrypoint.ServiceForms, func(ctx context.Context) error {
		return server.Run(ctx, cfg.Addr, cfg.JWTSecret)
	})
}
