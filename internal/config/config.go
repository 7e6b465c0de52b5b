// Package config loads tinithink settings from defaults, a YAML file, the
// environment and command-line flags, in that order of precedence.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"

	"github.com/conorfennell/tinithink/internal/validate"
)

// EnvPrefix is stripped from environment variables; "__" separates nested
// keys, so TINITHINK_DB__DSN sets db.dsn.
const EnvPrefix = "TINITHINK_"

type Config struct {
	Server Server `koanf:"server"`
	DB     DB     `koanf:"db"`
	Import Import `koanf:"import"`
	Log    Log    `koanf:"log"`
}

type Server struct {
	Addr            string        `koanf:"addr" validate:"required"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout" validate:"gt=0"`
	AllowedOrigins  []string      `koanf:"allowed_origins"`
}

type DB struct {
	Driver string `koanf:"driver" validate:"oneof=sqlite gorm-sqlite postgres"`
	DSN    string `koanf:"dsn" validate:"required"`
}

type Import struct {
	ReposDir string `koanf:"repos_dir" validate:"required"`
}

type Log struct {
	Level  string `koanf:"level" validate:"oneof=debug info warn error"`
	Format string `koanf:"format" validate:"oneof=text json"`
}

// Flags registers one flag per config key. Flag names map onto keys with
// the first "-" turned into "." and the rest into "_", e.g.
// --server-shutdown-timeout → server.shutdown_timeout. The flag defaults
// are the config defaults.
func Flags(flags *pflag.FlagSet) {
	flags.StringP("config", "c", "", "Path to a YAML config file")
	flags.String("server-addr", ":8080", "Address to listen on")
	flags.Duration("server-shutdown-timeout", 10*time.Second, "How long to wait for in-flight requests on shutdown")
	flags.StringSlice("server-allowed-origins", []string{"http://localhost:5173"}, "Origins allowed by CORS")
	flags.String("db-driver", "sqlite", "Storage driver: sqlite, gorm-sqlite or postgres")
	flags.String("db-dsn", "tinithink.db", "Database file or connection string")
	flags.String("import-repos-dir", "repos", "Directory git deck repositories are cloned into")
	flags.String("log-level", "info", "Log level: debug, info, warn or error")
	flags.String("log-format", "text", "Log format: text or json")
}

// Load builds the Config from flags registered with Flags. A .env file in
// the working directory is read into the environment first when present.
// Flags the user set override every other layer; unset flags only supply
// keys no earlier layer provided.
func Load(flags *pflag.FlagSet) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	k := koanf.New(".")

	if path, _ := flags.GetString("config"); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", path, err)
		}
	} else if _, err := os.Stat("tinithink.yaml"); err == nil {
		if err := k.Load(file.Provider("tinithink.yaml"), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file tinithink.yaml: %w", err)
		}
	} else if !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to check for tinithink.yaml: %w", err)
	}

	err := k.Load(env.Provider(EnvPrefix, ".", func(s string) string {
		key := strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
		return strings.ReplaceAll(key, "__", ".")
	}), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to load environment: %w", err)
	}

	err = k.Load(posflag.ProviderWithFlag(flags, ".", k, func(f *pflag.Flag) (string, any) {
		section, name, ok := strings.Cut(f.Name, "-")
		if !ok {
			return "", nil
		}
		return section + "." + strings.ReplaceAll(name, "-", "_"), posflag.FlagVal(flags, f)
	}), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to load flags: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	if fields := validate.Struct(cfg); fields != nil {
		msgs := make([]string, len(fields))
		for i, f := range fields {
			msgs[i] = f.String()
		}
		return nil, fmt.Errorf("invalid config: %s", strings.Join(msgs, "; "))
	}
	return &cfg, nil
}

// SlogLevel maps the configured level name onto slog.
func (l Log) SlogLevel() slog.Level {
	switch l.Level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Handler builds the slog handler for the configured format.
func (l Log) Handler() slog.Handler {
	opts := &slog.HandlerOptions{Level: l.SlogLevel()}
	if l.Format == "json" {
		return slog.NewJSONHandler(os.Stderr, opts)
	}
	return slog.NewTextHandler(os.Stderr, opts)
}
