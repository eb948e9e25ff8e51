package main

import (
	"errors"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"

	"github.com/voyago/tripsession/internal/logger"
)

const (
	defaultBaseURL      = "http://localhost:8000"
	defaultLoggingLevel = logger.LevelInfo
	defaultStorage      = "memory"
)

type Config struct {
	// Default logging level
	LogLevel string

	// Trip platform backend to authenticate against
	BaseURL string

	// Storage backend: memory, file or sqlite
	Storage string

	// Path of the file or sqlite storage
	StoragePath string

	// Hex encoded key for the encrypted file storage (see cmd/genkey)
	StorageKey string
}

func NewConfig() *Config {
	return &Config{
		LogLevel: defaultLoggingLevel,
		BaseURL:  defaultBaseURL,
		Storage:  defaultStorage,
	}
}

// Load variable from '.env' file (should be located at working directory)
func (c *Config) LoadDotEnv(getwd func() (string, error)) error {
	wd, err := getwd()
	if err != nil {
		return err
	}

	envMap, err := godotenv.Read(filepath.Join(wd, ".env"))

	switch {
	case err == nil:
		c.LoadEnv(func(key string) string {
			return envMap[key]
		})
		return nil
	case errors.Is(err, os.ErrNotExist):
		return nil
	default:
		return err
	}
}

func (c *Config) LoadEnv(getenv func(string) string) {
	// Set option to value if it not empty
	setString := func(o *string) func(value string) {
		return func(value string) {
			if value != "" {
				*o = value
			}
		}
	}

	envMap := map[string]func(string){
		"TRIP_API_URL": setString(&c.BaseURL),
		"LOG_LEVEL":    setString(&c.LogLevel),
		"STORAGE":      setString(&c.Storage),
		"STORAGE_PATH": setString(&c.StoragePath),
		"STORAGE_KEY":  setString(&c.StorageKey),
	}

	for key, parseFn := range envMap {
		parseFn(getenv(key))
	}
}

// ParseFlags parses known flags and returns the leftover positional args
// (the subcommand and its arguments)
func (c *Config) ParseFlags(args []string) ([]string, error) {
	fs := pflag.NewFlagSet("tripsession", pflag.ContinueOnError)

	fs.StringVarP(&c.BaseURL, "api", "a", c.BaseURL, "Trip platform API address")
	fs.StringVarP(&c.LogLevel, "log-level", "l", c.LogLevel, "Logging level (debug, info, warn, error)")
	fs.StringVarP(&c.Storage, "storage", "s", c.Storage, "Storage backend (memory, file, sqlite)")
	fs.StringVarP(&c.StoragePath, "storage-path", "p", c.StoragePath, "Path of the file or sqlite storage")
	fs.StringVarP(&c.StorageKey, "storage-key", "k", c.StorageKey, "Hex key for the encrypted file storage")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	return fs.Args(), nil
}
