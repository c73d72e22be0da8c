package config

import (
	"errors"
	"fmt"
	"os"

	"github.com/joho/godotenv"
)

// DotEnvFilename is consulted in the project root when a variable is missing from the environment.
const DotEnvFilename = ".env"

// LookupFunc resolves an environment variable. os.LookupEnv satisfies it.
type LookupFunc func(key string) (string, bool)

// DevModeEnabled reports whether minification must be disabled.
// The process environment takes precedence over the project's .env file.
func (c *Config) DevModeEnabled(lookup LookupFunc) (bool, error) {
	if lookup == nil {
		lookup = os.LookupEnv
	}

	if value, ok := lookup(c.DevMode.Env); ok {
		return value == c.DevMode.Value, nil
	}

	values, err := godotenv.Read(c.Path(DotEnvFilename))
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}

	if err != nil {
		return false, fmt.Errorf("read %s: %w", DotEnvFilename, err)
	}

	value, ok := values[c.DevMode.Env]

	return ok && value == c.DevMode.Value, nil
}
