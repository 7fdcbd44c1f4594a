package config

import (
	"fmt"

	"github.com/caarlos0/env/v11"
)

// EnvPrefix namespaces every environment variable read by the forms service.
const EnvPrefix = "MW_FORMS_"

// ParseEnv loads configuration from MW_FORMS_-prefixed environment variables.
// Struct tags name the variable without the prefix.
func ParseEnv(target any) error {
	return ParseEnvWithPrefix(target, EnvPrefix)
}

// ParseEnvWithPrefix loads configuration from environment variables sharing prefix.
func ParseEnvWithPrefix(target any, prefix string) error {
	if err := env.ParseWithOptions(target, env.Options{Prefix: prefix}); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}
