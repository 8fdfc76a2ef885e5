package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/kelseyhightower/envconfig"
	"github.com/spf13/viper"
)

// envFileVar names the env file to export before decoding. Left unset, a
// ./.env file is picked up when present. No flags are registered here; flag
// handling belongs to the binary, not a library.
const envFileVar = "ENV_FILE"

// MustNew panics when the environment cannot satisfy T's envconfig tags.
// Intended for wiring in main, where a missing required setting is fatal.
func MustNew[T any](prefix string) *T {
	conf, err := New[T](prefix)
	if err != nil {
		panic(err)
	}
	return conf
}

// New decodes a config struct from the process environment, after exporting
// the ENV_FILE file (or ./.env when present) into it.
func New[T any](prefix string) (*T, error) {
	if path := strings.TrimSpace(os.Getenv(envFileVar)); path != "" {
		if err := exportEnvFile(path); err != nil {
			return nil, fmt.Errorf("load env file %s: %w", path, err)
		}
	} else if err := exportEnvFileIfExists(".env"); err != nil {
		return nil, fmt.Errorf("load default env file: %w", err)
	}

	var conf T
	if err := envconfig.Process(prefix, &conf); err != nil {
		return nil, err
	}
	return &conf, nil
}

func exportEnvFileIfExists(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return err
	}
	if info.IsDir() {
		return nil
	}
	return exportEnvFile(path)
}

// exportEnvFile reads the file through viper and materializes every setting
// as an environment variable, where envconfig can see it. Existing process
// environment wins: a variable already set is left alone.
func exportEnvFile(path string) error {
	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return err
	}
	for k, val := range v.AllSettings() {
		key := strings.ToUpper(k)
		if _, exists := os.LookupEnv(key); exists {
			continue
		}
		if err := os.Setenv(key, fmt.Sprint(val)); err != nil {
			return err
		}
	}
	return nil
}
